package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs-vn/document-search-platform/pkg/config"
)

// Message is a delivered in-memory event.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// MemBus is an in-process event bus used in standalone mode and tests. Each
// subscription owns one dispatch goroutine per key, so messages for the same
// key are handled strictly in order and never concurrently, while different
// keys proceed in parallel. This is the same contract the Kafka consumer
// group provides via hash partitioning.
type MemBus struct {
	mu           sync.Mutex
	subs         map[string][]*subscription // topic -> group subscriptions
	maxRetries   int
	retryBackoff time.Duration
	logger       *slog.Logger
	wg           sync.WaitGroup
	closed       bool
}

type subscription struct {
	bus     *MemBus
	topic   string
	group   string
	handler Handler

	mu     sync.Mutex
	queues map[string]chan Message // key -> ordered queue
	closed bool
}

// NewMemBus creates a MemBus with the given redelivery policy.
func NewMemBus(maxRetries int, retryBackoff time.Duration) *MemBus {
	return &MemBus{
		subs:         make(map[string][]*subscription),
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		logger:       slog.Default().With("component", "membus"),
	}
}

// Subscribe registers a handler for a topic under a consumer group. Each
// group receives every message once (at least).
func (b *MemBus) Subscribe(topic, group string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], &subscription{
		bus:     b,
		topic:   topic,
		group:   group,
		handler: handler,
		queues:  make(map[string]chan Message),
	})
}

// Publish enqueues a JSON-encoded payload for every group subscribed to the
// topic. It never blocks on consumers.
func (b *MemBus) Publish(ctx context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling event payload: %w", err)
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("bus closed")
	}
	subs := append([]*subscription(nil), b.subs[topic]...)
	b.mu.Unlock()

	msg := Message{Topic: topic, Key: []byte(key), Value: value}
	for _, sub := range subs {
		sub.enqueue(msg, key)
	}
	return nil
}

// Topic returns a Publisher bound to one topic.
func (b *MemBus) Topic(topic string) Publisher {
	return PublisherFunc(func(ctx context.Context, key string, payload any) error {
		return b.Publish(ctx, topic, key, payload)
	})
}

// Close stops accepting publishes and waits for in-flight deliveries.
func (b *MemBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, subs := range b.subs {
		for _, sub := range subs {
			sub.mu.Lock()
			sub.closed = true
			for _, q := range sub.queues {
				close(q)
			}
			sub.mu.Unlock()
		}
	}
	b.mu.Unlock()
	b.wg.Wait()
}

// enqueue sends on the key's queue while holding the subscription lock, so
// a concurrent Close can never close the channel mid-send or leave a fresh
// queue without a drainer. Messages arriving after Close are dropped.
func (s *subscription) enqueue(msg Message, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	q, ok := s.queues[key]
	if !ok {
		q = make(chan Message, 128)
		s.queues[key] = q
		s.bus.wg.Add(1)
		go s.dispatch(q)
	}
	q <- msg
}

// dispatch drains one key's queue sequentially, retrying failed handler runs
// with a fixed backoff and dead-lettering after the attempt cap.
func (s *subscription) dispatch(q chan Message) {
	defer s.bus.wg.Done()
	for msg := range q {
		var lastErr error
		delivered := false
		for attempt := 0; attempt <= s.bus.maxRetries; attempt++ {
			if attempt > 0 {
				time.Sleep(s.bus.retryBackoff)
			}
			lastErr = s.handler(context.Background(), msg.Key, msg.Value)
			if lastErr == nil {
				delivered = true
				break
			}
		}
		if !delivered {
			s.bus.logger.Error("message exhausted retries, dead-lettering",
				"topic", s.topic,
				"group", s.group,
				"key", string(msg.Key),
				"error", lastErr,
			)
			s.bus.deadLetter(msg)
		}
	}
}

// deadLetter republishes the raw message on the source topic's dead-letter
// topic so a subscriber (or test) can observe it.
func (b *MemBus) deadLetter(msg Message) {
	dlqTopic := config.DeadLetterTopic(msg.Topic)
	b.mu.Lock()
	subs := append([]*subscription(nil), b.subs[dlqTopic]...)
	b.mu.Unlock()
	for _, sub := range subs {
		sub.enqueue(Message{Topic: dlqTopic, Key: msg.Key, Value: msg.Value}, string(msg.Key))
	}
}
