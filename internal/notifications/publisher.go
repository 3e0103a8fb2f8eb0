package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type topicPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) *gcppubsub.PublishResult
}

type pubsubPublisher struct {
	topic topicPublisher
}

// NewPubSubPublisher wraps a Pub/Sub topic publisher as a notification
// transport. Events are serialized as JSON with kind/priority attributes for
// subscriber-side filtering.
func NewPubSubPublisher(topic topicPublisher) (Publisher, error) {
	if topic == nil {
		return nil, fmt.Errorf("topic publisher required")
	}
	return &pubsubPublisher{topic: topic}, nil
}

func (p *pubsubPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding notification event: %w", err)
	}

	res := p.topic.Publish(ctx, &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"kind":     string(event.Kind),
			"priority": string(event.Priority),
		},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publishing notification event: %w", err)
	}
	return nil
}
