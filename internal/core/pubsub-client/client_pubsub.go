package pubsubclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	cfg "github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/core"
)

// PubSubClient wraps the Google Pub/Sub client as both publisher and
// subscriber. The broker guarantees at-least-once delivery; handlers must
// tolerate duplicates.
type PubSubClient struct {
	client *pubsub.Client

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func NewPubSubClient(ctx context.Context, cfg *cfg.Config) (*PubSubClient, error) {
	if cfg.GCPProject == "" {
		return nil, fmt.Errorf("GCP project not set")
	}

	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	client, err := pubsub.NewClient(ctx, cfg.GCPProject, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	log.Println("Connected to Pub/Sub successfully")

	return &PubSubClient{client: client, topics: make(map[string]*pubsub.Topic)}, nil
}

var _ core.EventPublisher = (*PubSubClient)(nil)
var _ core.EventSubscriber = (*PubSubClient)(nil)

// Publish JSON-encodes the payload and blocks until the broker confirms it.
func (c *PubSubClient) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", topic, err)
	}

	res := c.topic(topic).Publish(ctx, &pubsub.Message{Data: data})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Receive pulls messages from the subscription one at a time and maps the
// handler's error onto the acknowledgement: transient failures are nacked so
// the broker redelivers, everything else is acked. Malformed and unsupported
// messages are dropped rather than retried.
func (c *PubSubClient) Receive(ctx context.Context, subscription string, handler func(ctx context.Context, data []byte) error) error {
	sub := c.client.Subscription(subscription)

	// One message fully processed before the next is pulled; parallelism
	// comes from running more consumer instances, not from this loop.
	sub.ReceiveSettings.MaxOutstandingMessages = 1
	sub.ReceiveSettings.NumGoroutines = 1

	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		err := handler(ctx, m.Data)
		switch {
		case err == nil:
			m.Ack()
		case errors.Is(err, core.ErrTransient):
			log.Printf("%s: transient failure, nacking for redelivery: %v", subscription, err)
			m.Nack()
		case errors.Is(err, core.ErrMalformed), errors.Is(err, core.ErrUnsupported):
			log.Printf("%s: dropping message: %v", subscription, err)
			m.Ack()
		default:
			log.Printf("%s: unexpected handler error, dropping message %s: %v", subscription, m.ID, err)
			m.Ack()
		}
	})
}

func (c *PubSubClient) Close() error {
	c.mu.Lock()
	for _, t := range c.topics {
		t.Stop()
	}
	c.mu.Unlock()
	return c.client.Close()
}

func (c *PubSubClient) topic(name string) *pubsub.Topic {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.topics[name]
	if !ok {
		t = c.client.Topic(name)
		c.topics[name] = t
	}
	return t
}
