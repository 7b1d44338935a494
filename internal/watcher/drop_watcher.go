package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"impex-service/internal/events"
	"impex-service/internal/impex"
	"impex-service/internal/schema"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long a file must stay quiet before it is imported
const DefaultDebounce = 500 * time.Millisecond

// Suffixes appended to a drop file once it has been handled
const (
	SuffixDone   = ".done"
	SuffixFailed = ".failed"
)

// Importer is the create path of one record type
type Importer interface {
	Schema() *schema.Descriptor
	ProcessCreateFile(ctx context.Context, src impex.Source) (*impex.CreateResult, error)
}

// EventPublisher announces finished imports
type EventPublisher interface {
	PublishImport(ctx context.Context, s events.ImportSummary) error
}

// DropWatcher imports files written to <root>/<entity>/ through the create
// path and renames them with a .done or .failed suffix.
type DropWatcher struct {
	root      string
	importers map[string]Importer
	publisher EventPublisher
	debounce  time.Duration
	logger    *logrus.Entry

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	running sync.WaitGroup
}

// New creates a watcher for the given record types. publisher may be nil.
func New(root string, importers []Importer, publisher EventPublisher, logger *logrus.Logger) *DropWatcher {
	byEntity := make(map[string]Importer, len(importers))
	for _, imp := range importers {
		byEntity[imp.Schema().Entity()] = imp
	}
	return &DropWatcher{
		root:      root,
		importers: byEntity,
		publisher: publisher,
		debounce:  DefaultDebounce,
		logger:    logger.WithField("component", "watcher"),
		timers:    make(map[string]*time.Timer),
	}
}

// SetDebounce changes the quiet period before a file is imported
func (w *DropWatcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Dir returns the drop folder of an entity
func (w *DropWatcher) Dir(entity string) string {
	return filepath.Join(w.root, entity)
}

// Start creates the drop folders, imports files already waiting in them and
// begins watching for new ones.
func (w *DropWatcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	for entity := range w.importers {
		dir := w.Dir(entity)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fsw.Close()
			return fmt.Errorf("create drop folder %s: %w", dir, err)
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return fmt.Errorf("watch drop folder %s: %w", dir, err)
		}
	}
	w.watcher = fsw

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	for entity := range w.importers {
		w.scan(watchCtx, entity)
	}

	go w.loop(watchCtx)

	w.logger.WithField("root", w.root).Infof("Watching %d drop folder(s)", len(w.importers))
	return nil
}

// Stop ends watching and waits for imports in flight
func (w *DropWatcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.running.Wait()
}

func (w *DropWatcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			entity, ok := w.entityFor(event.Name)
			if !ok || !isImportable(event.Name) {
				continue
			}
			w.schedule(ctx, entity, event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("Watcher error")
		}
	}
}

// schedule debounces repeated writes to the same file
func (w *DropWatcher) schedule(ctx context.Context, entity, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if t, exists := w.timers[path]; exists {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.stopped {
			w.mu.Unlock()
			return
		}
		delete(w.timers, path)
		w.running.Add(1)
		w.mu.Unlock()

		defer w.running.Done()
		if err := w.ProcessFile(ctx, entity, path); err != nil {
			w.logger.WithError(err).WithField("path", path).Error("Drop file import failed")
		}
	})
}

func (w *DropWatcher) scan(ctx context.Context, entity string) {
	entries, err := os.ReadDir(w.Dir(entity))
	if err != nil {
		w.logger.WithError(err).WithField("entity", entity).Warn("Failed to scan drop folder")
		return
	}
	for _, e := range entries {
		if e.IsDir() || !isImportable(e.Name()) {
			continue
		}
		w.schedule(ctx, entity, filepath.Join(w.Dir(entity), e.Name()))
	}
}

// ProcessFile imports one drop file and renames it according to the outcome
func (w *DropWatcher) ProcessFile(ctx context.Context, entity, path string) error {
	imp, ok := w.importers[entity]
	if !ok {
		return fmt.Errorf("no importer for entity %q", entity)
	}
	logger := w.logger.WithFields(logrus.Fields{"entity": entity, "path": path})

	result, importErr := w.importFile(ctx, imp, path)

	suffix := SuffixDone
	if importErr != nil {
		suffix = SuffixFailed
	}
	if err := os.Rename(path, path+suffix); err != nil {
		logger.WithError(err).Warn("Failed to rename drop file")
	}
	if importErr != nil {
		return importErr
	}

	ids := make([]string, 0, len(result.Records))
	for _, rec := range result.Records {
		ids = append(ids, rec.ID)
	}
	logger.WithFields(logrus.Fields{"saved": len(ids), "rejected": len(result.Rejected)}).Info("Drop file imported")

	if w.publisher != nil && len(ids) > 0 {
		err := w.publisher.PublishImport(ctx, events.ImportSummary{
			Subject:   imp.Schema().Subject(),
			Entity:    entity,
			Action:    events.ActionImported,
			RecordIDs: ids,
			Rejected:  len(result.Rejected),
			Filename:  filepath.Base(path),
			Source:    "drop-folder",
		})
		if err != nil {
			logger.WithError(err).Warn("Failed to publish import event")
		}
	}
	return nil
}

func (w *DropWatcher) importFile(ctx context.Context, imp Importer, path string) (*impex.CreateResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return imp.ProcessCreateFile(ctx, impex.Source{
		Reader:   f,
		Filename: filepath.Base(path),
	})
}

func (w *DropWatcher) entityFor(path string) (string, bool) {
	entity := filepath.Base(filepath.Dir(path))
	_, ok := w.importers[entity]
	return entity, ok
}

func isImportable(name string) bool {
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".json")
}
