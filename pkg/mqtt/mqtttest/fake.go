// Package mqtttest provides an in-memory mqtt.Client for tests.
package mqtttest

import (
	"context"
	"sync"

	"github.com/saaga0h/doorpi/pkg/mqtt"
)

// Published is a message recorded by Fake.Publish
type Published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// Fake records subscriptions and publications. Deliver feeds a message to
// the handler subscribed under the exact filter given.
type Fake struct {
	mu         sync.Mutex
	connected  bool
	handlers   map[string]mqtt.MessageHandler
	published  []Published
	ConnectErr error
	PublishErr error
}

var _ mqtt.Client = (*Fake)(nil)

// New returns a disconnected Fake
func New() *Fake {
	return &Fake{handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *Fake) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.connected = true
	return nil
}

func (f *Fake) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func (f *Fake) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *Fake) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishErr != nil {
		return f.PublishErr
	}
	f.published = append(f.published, Published{Topic: topic, QoS: qos, Retained: retained, Payload: payload})
	return nil
}

func (f *Fake) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Deliver invokes the handler subscribed to filter with a message on topic.
// It reports false when nothing is subscribed to filter.
func (f *Fake) Deliver(filter, topic string, payload []byte) bool {
	f.mu.Lock()
	h, ok := f.handlers[filter]
	f.mu.Unlock()
	if !ok {
		return false
	}
	h(&Message{TopicName: topic, Body: payload})
	return true
}

// Published returns a copy of everything published so far
func (f *Fake) Published() []Published {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Published, len(f.published))
	copy(out, f.published)
	return out
}

// Message is a static mqtt.Message
type Message struct {
	TopicName string
	Body      []byte
	Acked     bool
}

func (m *Message) Topic() string   { return m.TopicName }
func (m *Message) Payload() []byte { return m.Body }
func (m *Message) Ack()            { m.Acked = true }
