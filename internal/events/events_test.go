package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishJSON(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(TableFinished, func(e Event) error {
		got = append(got, e)
		return nil
	})
	var all int
	bus.SubscribeAll(func(Event) error {
		all++
		return nil
	})

	require.NoError(t, bus.PublishJSON(TableFinished, TableFinish{TableID: 4, Date: "2025-01-15"}))
	require.NoError(t, bus.PublishJSON(TableFinishFailed, TableFinish{TableID: 4, Error: "boom"}))

	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].CreatedAt.IsZero())
	assert.Equal(t, 2, all)

	var payload TableFinish
	require.NoError(t, Decode(got[0], &payload))
	assert.Equal(t, int64(4), payload.TableID)
	assert.Equal(t, "2025-01-15", payload.Date)
}

func TestBusPublishRunsEveryHandler(t *testing.T) {
	bus := NewBus()
	errFirst := errors.New("first")

	calls := 0
	bus.Subscribe(TableFinished, func(Event) error {
		calls++
		return errFirst
	})
	bus.Subscribe(TableFinished, func(Event) error {
		calls++
		return errors.New("second")
	})

	err := bus.Publish(Event{Type: TableFinished})
	assert.ErrorIs(t, err, errFirst)
	assert.Equal(t, 2, calls)
}

func TestBusNoSubscribers(t *testing.T) {
	assert.NoError(t, NewBus().PublishJSON("unknown", map[string]int{"a": 1}))
}
