package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/logging"
)

// ErrClosed is returned by a closed publisher
var ErrClosed = errors.New("publisher is closed")

const subscriberBuffer = 64

// TopicConfig controls replay to late subscribers
type TopicConfig struct {
	BufferSize int  // events kept per topic, 0 keeps none
	ReplayAll  bool // replay the whole buffer instead of only the newest event
}

// SSEPublisher is an in-process Publisher whose events are written out as Server-Sent Events
type SSEPublisher struct {
	mu      sync.RWMutex
	subs    map[string]map[*subscription]struct{}
	version map[string]int
	history map[string][]Event
	config  map[string]TopicConfig
	closed  bool
}

// NewSSEPublisher creates a publisher with no topics configured
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{
		subs:    make(map[string]map[*subscription]struct{}),
		version: make(map[string]int),
		history: make(map[string][]Event),
		config:  make(map[string]TopicConfig),
	}
}

// ConfigureTopic sets the replay policy of a topic
func (p *SSEPublisher) ConfigureTopic(topic string, cfg TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config[topic] = cfg
}

// Subscribe registers a subscriber and replays buffered events to it
func (p *SSEPublisher) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	sub := &subscription{topic: topic, events: make(chan Event, subscriberBuffer), pub: p}
	if p.subs[topic] == nil {
		p.subs[topic] = make(map[*subscription]struct{})
	}
	p.subs[topic][sub] = struct{}{}

	replay := p.history[topic]
	if !p.config[topic].ReplayAll && len(replay) > 1 {
		replay = replay[len(replay)-1:]
	}
	// Sent under the lock so a concurrent Publish cannot overtake the replay
	for _, ev := range replay {
		select {
		case sub.events <- ev:
		default:
			logging.Warn("dropping replayed event", "topic", topic, "version", ev.Version)
		}
	}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		sub.Close()
	}()
	return sub, nil
}

// Publish sends an event to every subscriber of topic without blocking
func (p *SSEPublisher) Publish(topic string, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	p.version[topic]++
	ev := Event{Topic: topic, Type: eventType, Data: payload, Version: p.version[topic]}

	if size := p.config[topic].BufferSize; size > 0 {
		h := append(p.history[topic], ev)
		if len(h) > size {
			h = h[len(h)-size:]
		}
		p.history[topic] = h
	}

	for sub := range p.subs[topic] {
		select {
		case sub.events <- ev:
		default:
			logging.Warn("subscriber is full, dropping event", "topic", topic, "version", ev.Version)
		}
	}
	return nil
}

// Close ends all subscriptions; their channels are closed
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, subs := range p.subs {
		for sub := range subs {
			sub.closeChannel()
		}
	}
	p.subs = make(map[string]map[*subscription]struct{})
	return nil
}

// Subscribers returns the number of open subscriptions on topic
func (p *SSEPublisher) Subscribers(topic string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs[topic])
}

func (p *SSEPublisher) remove(sub *subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if subs, ok := p.subs[sub.topic]; ok {
		if _, present := subs[sub]; present {
			delete(subs, sub)
			sub.closeChannel()
		}
		if len(subs) == 0 {
			delete(p.subs, sub.topic)
		}
	}
}

type subscription struct {
	topic  string
	events chan Event
	pub    *SSEPublisher

	once sync.Once
	done sync.Once
}

func (s *subscription) Topic() string        { return s.topic }
func (s *subscription) Events() <-chan Event { return s.events }

// Close unsubscribes; the events channel is closed afterwards
func (s *subscription) Close() error {
	s.once.Do(func() { s.pub.remove(s) })
	return nil
}

// closeChannel must be called with the publisher lock held
func (s *subscription) closeChannel() {
	s.done.Do(func() { close(s.events) })
}

// WriteSSE writes one event in the text/event-stream format
func WriteSSE(w io.Writer, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Topic, data)
	return err
}
