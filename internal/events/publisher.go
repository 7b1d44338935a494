package events

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/Tesseract-Nexus/go-shared/events"
)

// Import event actions, appended to a record type's subject
const (
	ActionImported = "imported"
	ActionUpdated  = "updated"
)

// ImportEvent reports the outcome of a bulk import for one record type
type ImportEvent struct {
	events.BaseEvent
	Entity    string                 `json:"entity"`
	RecordIDs []string               `json:"recordIds"`
	Imported  int                    `json:"imported"`
	Rejected  int                    `json:"rejected"`
	Filename  string                 `json:"filename,omitempty"`
	Source    string                 `json:"source,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`

	stream string
}

func (e *ImportEvent) GetSubject() string {
	return e.EventType
}

func (e *ImportEvent) GetStream() string {
	return e.stream
}

// StreamFor returns the JetStream stream carrying a subject's events,
// e.g. "return_order" -> "RETURN_ORDER_EVENTS".
func StreamFor(subject string) string {
	return strings.ToUpper(subject) + "_EVENTS"
}

// ImportSummary is what the HTTP layer and the drop-folder watcher report
type ImportSummary struct {
	Subject   string
	Entity    string
	Action    string
	RecordIDs []string
	Rejected  int
	Filename  string
	Source    string
}

// Publisher wraps the shared events publisher for import events
type Publisher struct {
	publisher *events.Publisher
	logger    *logrus.Entry
}

// NewPublisher connects to NATS and makes sure a stream exists for every subject
func NewPublisher(natsURL string, subjects []string, logger *logrus.Logger) (*Publisher, error) {
	config := events.DefaultPublisherConfig(natsURL)
	config.Name = "impex-service"

	publisher, err := events.NewPublisher(config, logger)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	for _, subject := range subjects {
		stream := StreamFor(subject)
		if err := publisher.EnsureStream(ctx, stream, []string{subject + ".>"}); err != nil {
			logger.WithError(err).WithField("stream", stream).Warn("Failed to ensure stream")
		}
	}

	return &Publisher{
		publisher: publisher,
		logger:    logger.WithField("component", "events.publisher"),
	}, nil
}

// PublishImport publishes "<subject>.<action>" for a finished import
func (p *Publisher) PublishImport(ctx context.Context, s ImportSummary) error {
	event := &ImportEvent{
		BaseEvent: events.BaseEvent{
			EventType: s.Subject + "." + s.Action,
			Timestamp: time.Now().UTC(),
		},
		Entity:    s.Entity,
		RecordIDs: s.RecordIDs,
		Imported:  len(s.RecordIDs),
		Rejected:  s.Rejected,
		Filename:  s.Filename,
		Source:    s.Source,
		stream:    StreamFor(s.Subject),
	}
	if len(s.RecordIDs) == 1 {
		// single record updates dedupe on the record itself
		event.SourceID = s.RecordIDs[0]
	}

	if err := p.publisher.Publish(ctx, event); err != nil {
		p.logger.WithError(err).WithField("event_type", event.EventType).Error("Failed to publish import event")
		return err
	}
	return nil
}

// IsConnected returns true if connected to NATS
func (p *Publisher) IsConnected() bool {
	return p.publisher.IsConnected()
}

// Close closes the publisher connection
func (p *Publisher) Close() {
	p.publisher.Close()
}
