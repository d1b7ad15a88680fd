package testutil

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	jsoniter "github.com/json-iterator/go"
	"github.com/recruitlink/billing/internal/pubsub"
	"github.com/recruitlink/billing/internal/types"
)

var _ pubsub.PubSub = (*InMemoryPubSub)(nil)

// InMemoryPubSub records published messages per topic. Subscribers receive
// messages published after they subscribed.
type InMemoryPubSub struct {
	mu          sync.Mutex
	messages    map[string][]*message.Message
	subscribers map[string][]chan *message.Message
	PublishErr  error
}

func NewInMemoryPubSub() *InMemoryPubSub {
	return &InMemoryPubSub{
		messages:    make(map[string][]*message.Message),
		subscribers: make(map[string][]chan *message.Message),
	}
}

func (p *InMemoryPubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PublishErr != nil {
		return p.PublishErr
	}
	p.messages[topic] = append(p.messages[topic], msg)
	for _, ch := range p.subscribers[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (p *InMemoryPubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan *message.Message, 100)
	p.subscribers[topic] = append(p.subscribers[topic], ch)
	return ch, nil
}

// Messages returns what was published to topic
func (p *InMemoryPubSub) Messages(topic string) []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*message.Message(nil), p.messages[topic]...)
}

// Notifications decodes the billing notifications published to topic
func (p *InMemoryPubSub) Notifications(topic string) []*types.BillingNotification {
	var out []*types.BillingNotification
	for _, msg := range p.Messages(topic) {
		var n types.BillingNotification
		if err := jsoniter.Unmarshal(msg.Payload, &n); err == nil {
			out = append(out, &n)
		}
	}
	return out
}

func (p *InMemoryPubSub) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = make(map[string][]*message.Message)
}

func (p *InMemoryPubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for topic, subs := range p.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		delete(p.subscribers, topic)
	}
	return nil
}
