package queue

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"hostdesk/internal/events"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu        sync.Mutex
	declared  []string
	published []amqp.Publishing
	keys      []string
	closed    int
}

func (c *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !durable {
		return amqp.Queue{}, errors.New("queue must be durable")
	}
	c.declared = append(c.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

func fakeDialer(ch *fakeChannel) Dialer {
	return func(string) (Channel, func() error, error) {
		return ch, func() error { return nil }, nil
	}
}

func TestPublish(t *testing.T) {
	ch := &fakeChannel{}
	logger := zerolog.New(io.Discard)
	p := NewPublisher("amqp://test", "hostdesk.events", fakeDialer(ch), &logger)

	ev := events.Event{ID: "id-1", Type: events.TableFinished, Payload: []byte(`{"table_id":4}`), CreatedAt: time.Now()}
	require.NoError(t, p.Publish(context.Background(), ev))

	assert.Equal(t, []string{"hostdesk.events"}, ch.declared)
	assert.Equal(t, []string{"hostdesk.events"}, ch.keys)
	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "id-1", msg.MessageId)
	assert.Equal(t, events.TableFinished, msg.Type)
	assert.JSONEq(t, `{"table_id":4}`, string(msg.Body))
	assert.Equal(t, 1, ch.closed)
}

func TestPublishDialError(t *testing.T) {
	errDown := errors.New("broker down")
	p := NewPublisher("amqp://test", "q", func(string) (Channel, func() error, error) {
		return nil, nil, errDown
	}, nil)

	assert.ErrorIs(t, p.Publish(context.Background(), events.Event{Type: "x"}), errDown)
}

func TestForwardAndRun(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher("amqp://test", "q", fakeDialer(ch), nil)

	bus := events.NewBus()
	p.Forward(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.NoError(t, bus.PublishJSON(events.TableFinished, events.TableFinish{TableID: 1}))
	require.NoError(t, bus.PublishJSON(events.TableFinishFailed, events.TableFinish{TableID: 2, Error: "x"}))

	assert.Eventually(t, func() bool { return ch.count() == 2 }, 2*time.Second, 10*time.Millisecond)
}
