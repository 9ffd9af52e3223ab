package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/scootsmagoo/filtersfast-next-sub010/internal/services"
)

// PubSubLedgerPublisher publishes ledger events to a Pub/Sub topic for the
// reconciliation workers.
type PubSubLedgerPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubLedgerPublisher constructs a Pub/Sub backed ledger publisher.
func NewPubSubLedgerPublisher(topic *pubsub.Topic) (*PubSubLedgerPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub ledger publisher: topic is required")
	}
	return &PubSubLedgerPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishLedgerEvent sends event and waits for the server id.
func (p *PubSubLedgerPublisher) PublishLedgerEvent(ctx context.Context, event services.LedgerEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub ledger publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal ledger event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventId", event.EventID)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "subjectId", event.SubjectID)
	setAttr(attrs, "actorId", event.ActorID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish ledger event: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages. Call it once during shutdown.
func (p *PubSubLedgerPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
