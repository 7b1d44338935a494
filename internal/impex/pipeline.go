package impex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"impex-service/internal/merge"
	"impex-service/internal/models"
	"impex-service/internal/parser"
	"impex-service/internal/repository"
	"impex-service/internal/schema"
	"impex-service/internal/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned by the update path when the target ID does not exist
var ErrNotFound = errors.New("record not found")

// Source is one uploaded file
type Source struct {
	Reader      io.Reader
	Filename    string
	ContentType string
}

// RowRejection describes a parsed row dropped on the create path
type RowRejection struct {
	Line       int                    `json:"line"`
	Violations []validation.Violation `json:"violations"`
}

// CreateResult is the outcome of a create import. Records holds exactly the
// persisted subset; Rejected lists the rows dropped by validation.
type CreateResult struct {
	Records  []*models.Record `json:"records"`
	Rejected []RowRejection   `json:"rejected,omitempty"`
	Total    int              `json:"total"`
}

// Pipeline runs bulk imports for one record type
type Pipeline struct {
	schema    *schema.Descriptor
	store     repository.Store
	parsers   parser.Registry
	validator *validation.Validator
	merger    *merge.Engine
	logger    *logrus.Entry
	now       func() time.Time
	newID     func() string
}

type Option func(*Pipeline)

// WithClock overrides the time source used for creation and modification stamps
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithIDGenerator overrides the identifier source for created records
func WithIDGenerator(newID func() string) Option {
	return func(p *Pipeline) { p.newID = newID }
}

// WithValidator shares a validator between pipelines
func WithValidator(v *validation.Validator) Option {
	return func(p *Pipeline) { p.validator = v }
}

func NewPipeline(d *schema.Descriptor, store repository.Store, logger *logrus.Entry, opts ...Option) *Pipeline {
	p := &Pipeline{
		schema: d,
		store:  store,
		logger: logger.WithFields(logrus.Fields{"component": "impex", "entity": d.Entity()}),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.validator == nil {
		p.validator = validation.New()
	}
	p.parsers = parser.NewRegistry(p.logger)
	p.merger = merge.New(p.now)
	return p
}

// Schema returns the record type this pipeline imports
func (p *Pipeline) Schema() *schema.Descriptor {
	return p.schema
}

// ProcessCreateFile parses the upload, drops rows that fail validation and
// persists the remaining records as new documents. Dropped rows are logged
// and reported in the result; they never fail the request.
func (p *Pipeline) ProcessCreateFile(ctx context.Context, src Source) (*CreateResult, error) {
	p.logger.WithField("filename", src.Filename).Info("Started processing file")

	batch, err := p.parse(src)
	if err != nil {
		return nil, err
	}

	result := &CreateResult{
		Records: make([]*models.Record, 0, len(batch)),
		Total:   len(batch),
	}

	for _, rec := range batch {
		if violations := p.validator.Validate(rec, p.schema); len(violations) > 0 {
			p.logger.WithFields(logrus.Fields{
				"line":       rec.Line,
				"violations": violations,
			}).Warn("Invalid record skipped")
			result.Rejected = append(result.Rejected, RowRejection{Line: rec.Line, Violations: violations})
			continue
		}
		p.stampCreated(rec)
		result.Records = append(result.Records, rec)
	}

	if len(result.Records) > 0 {
		saved, err := p.store.SaveAll(ctx, result.Records)
		if err != nil {
			return nil, fmt.Errorf("save %d %s: %w", len(result.Records), p.schema.Entity(), err)
		}
		result.Records = saved
	}

	p.logger.WithFields(logrus.Fields{
		"saved":    len(result.Records),
		"rejected": len(result.Rejected),
	}).Info("Successfully processed file")
	return result, nil
}

// ProcessUpdateFile merges the first record of the upload into the stored
// record with the given ID. An upload without records leaves the stored
// record untouched and returns it as is with updated set to false.
func (p *Pipeline) ProcessUpdateFile(ctx context.Context, id string, src Source) (rec *models.Record, updated bool, err error) {
	logger := p.logger.WithFields(logrus.Fields{"id": id, "filename": src.Filename})
	logger.Info("Updating record from file")

	batch, err := p.parse(src)
	if err != nil {
		return nil, false, err
	}

	existing, err := p.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("%w: %s %s", ErrNotFound, p.schema.Entity(), id)
		}
		return nil, false, fmt.Errorf("find %s %s: %w", p.schema.Entity(), id, err)
	}

	if len(batch) == 0 {
		logger.Warn("Update file contained no records, nothing changed")
		return existing, false, nil
	}
	if len(batch) > 1 {
		logger.WithField("ignored", len(batch)-1).Warn("Update file contained several records, using the first")
	}

	merged := p.merger.Merge(existing, batch[0], p.schema)
	merged.ID = existing.ID

	saved, err := p.store.Save(ctx, merged)
	if err != nil {
		return nil, false, fmt.Errorf("save %s %s: %w", p.schema.Entity(), id, err)
	}

	logger.Info("Record updated successfully")
	return saved, true, nil
}

func (p *Pipeline) parse(src Source) ([]*models.Record, error) {
	format, err := parser.DetectFormat(src.Filename, src.ContentType)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"filename":     src.Filename,
			"content_type": src.ContentType,
		}).WithError(err).Error("Rejected upload")
		return nil, err
	}

	prs, err := p.parsers.For(format)
	if err != nil {
		return nil, err
	}

	p.logger.WithField("format", format).Debug("Parsing file")
	batch, err := prs.Parse(src.Reader, p.schema)
	if err != nil {
		p.logger.WithError(err).Error("Error processing file")
		return nil, err
	}
	return batch, nil
}

// stampCreated assigns a fresh ID and the bookkeeping dates. A creation date
// supplied by the file is kept; the modification date is always now.
func (p *Pipeline) stampCreated(rec *models.Record) {
	now := p.now().UTC()
	rec.ID = p.newID()

	if created := p.schema.CreatedField(); created != "" && rec.Time(created).IsZero() {
		rec.Set(created, now)
	}
	if modified := p.schema.ModifiedField(); modified != "" {
		rec.Set(modified, now)
	}
}
