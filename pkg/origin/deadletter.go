package origin

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
)

const ReasonMalformedRecord = "malformed_record"

// DeadLetter receives origin items that could not be turned into records.
type DeadLetter interface {
	Publish(ctx context.Context, rover string, item []byte, reason string) error
}

const publishTimeout = 5 * time.Second

// PubSubDeadLetter parks rejected NASA photo items on a Pub/Sub topic so they
// can be inspected without failing the search that saw them.
type PubSubDeadLetter struct {
	topic *pubsub.Topic
}

// NewPubSubDeadLetter parks rejected photo items on topic. A nil topic drops
// them silently.
func NewPubSubDeadLetter(topic *pubsub.Topic) *PubSubDeadLetter {
	return &PubSubDeadLetter{topic: topic}
}

// Publish sends the raw photo item, tagged with its rover and the rejection
// reason, and blocks until the topic acknowledges it.
func (p *PubSubDeadLetter) Publish(ctx context.Context, rover string, item []byte, reason string) error {
	if p.topic == nil {
		return nil
	}
	msg := &pubsub.Message{
		Data: item,
		Attributes: map[string]string{
			"source": "nasa",
			"rover":  rover,
			"reason": reason,
		},
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("dead-letter %s photo item: %w", rover, err)
	}
	return nil
}

// NoopDeadLetter is used when no dead-letter topic is configured.
type NoopDeadLetter struct{}

func (NoopDeadLetter) Publish(ctx context.Context, rover string, item []byte, reason string) error {
	return nil
}
