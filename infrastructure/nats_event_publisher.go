package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"powerball/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	// EventStreamName is the JetStream stream carrying every subject below
	EventStreamName = "powerball_events"

	SubjectDrawRecorded  = "powerball.draw.recorded"
	SubjectSyncCompleted = "powerball.sync.completed"

	sourceService = "powerball-sync"
)

// MessagePublisher sends raw payloads to a subject
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// EventEnvelope wraps every event sent to NATS
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// NATSEventPublisher forwards bus events to NATS subjects
type NATSEventPublisher struct {
	client MessagePublisher
}

// NewNATSEventPublisher creates a new NATS event publisher
func NewNATSEventPublisher(client MessagePublisher) *NATSEventPublisher {
	return &NATSEventPublisher{client: client}
}

// Subjects lists every subject the publisher writes to
func (p *NATSEventPublisher) Subjects() []string {
	return []string{SubjectDrawRecorded, SubjectSyncCompleted}
}

// SubscribeTo forwards the bus events that have a subject
func (p *NATSEventPublisher) SubscribeTo(bus *events.Bus) {
	handler := func(ctx context.Context, e events.Event) {
		if err := p.Publish(ctx, e); err != nil {
			log.WithFields(log.Fields{
				"eventType": e.Type(),
				"error":     err,
			}).Error("Failed to forward event to NATS")
		}
	}
	bus.Subscribe(events.EventTypeDrawRecorded, handler)
	bus.Subscribe(events.EventTypeSyncCompleted, handler)
}

// Publish wraps the event in an envelope and sends it to its subject
func (p *NATSEventPublisher) Publish(ctx context.Context, event events.Event) error {
	subject, payload, err := subjectAndPayload(event)
	if err != nil {
		return err
	}

	envelope := EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     string(event.Type()),
		Timestamp:     time.Now().UTC(),
		SourceService: sourceService,
		Payload:       payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	if err := p.client.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Published event to NATS")
	return nil
}

type drawRecordedPayload struct {
	Draw     json.RawMessage `json:"draw"`
	Created  bool            `json:"created"`
	Backfill bool            `json:"backfill"`
}

func subjectAndPayload(event events.Event) (string, json.RawMessage, error) {
	var subject string
	var body any

	switch e := event.(type) {
	case events.DrawRecordedEvent:
		draw, err := json.Marshal(e.Draw)
		if err != nil {
			return "", nil, fmt.Errorf("failed to marshal draw: %w", err)
		}
		subject = SubjectDrawRecorded
		body = drawRecordedPayload{Draw: draw, Created: e.Created, Backfill: e.Backfill}
	case events.SyncCompletedEvent:
		subject = SubjectSyncCompleted
		body = e.Result
	default:
		return "", nil, fmt.Errorf("no NATS subject for event type %s", event.Type())
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return subject, payload, nil
}
