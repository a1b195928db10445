package mocks

import (
	"context"
	"sync"

	"github.com/absmach/flround/pkg/fl"
	"github.com/absmach/flround/pkg/mqtt"
	"github.com/stretchr/testify/mock"
)

var _ mqtt.PubSub = (*MockPubSub)(nil)

type MockPubSub struct {
	mock.Mock
}

func (m *MockPubSub) Publish(ctx context.Context, topic string, msg any) error {
	args := m.Called(ctx, topic, msg)

	return args.Error(0)
}

func (m *MockPubSub) Subscribe(ctx context.Context, topic string, handler mqtt.Handler) error {
	args := m.Called(ctx, topic, handler)

	return args.Error(0)
}

func (m *MockPubSub) Unsubscribe(ctx context.Context, topic string) error {
	args := m.Called(ctx, topic)

	return args.Error(0)
}

func (m *MockPubSub) Disconnect(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

var _ mqtt.PubSub = (*Broker)(nil)

// Broker is an in-memory PubSub that delivers every published message to all
// matching subscriptions synchronously. Several clients may share one Broker.
type Broker struct {
	mu    sync.RWMutex
	subs  map[string]mqtt.Handler
	codec fl.Codec
}

func NewBroker() *Broker {
	return &Broker{
		subs:  make(map[string]mqtt.Handler),
		codec: fl.JSON,
	}
}

func (b *Broker) Publish(_ context.Context, topic string, msg any) error {
	data, ok := msg.([]byte)
	if !ok {
		var err error
		if data, err = b.codec.Marshal(msg); err != nil {
			return err
		}
	}

	b.mu.RLock()
	var handlers []mqtt.Handler
	for filter, h := range b.subs {
		if mqtt.Match(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		// Handler errors are logged by the real client and never reach the publisher.
		_ = h(topic, data)
	}

	return nil
}

func (b *Broker) Subscribe(_ context.Context, topic string, handler mqtt.Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[topic] = handler

	return nil
}

func (b *Broker) Unsubscribe(_ context.Context, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subs, topic)

	return nil
}

func (b *Broker) Disconnect(context.Context) error {
	return nil
}

func (b *Broker) Subscribed(topic string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.subs[topic]

	return ok
}
