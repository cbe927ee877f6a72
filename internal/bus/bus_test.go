package bus

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAndPublish(t *testing.T) {
	b := New()
	defer b.Close()

	got := make(chan Event, 1)
	id := b.Subscribe(EventStateChanged, func(e Event) { got <- e })
	require.NotEmpty(t, id)

	e := NewEvent(EventStateChanged)
	e.State = "speaking"
	require.NoError(t, b.Publish(e))

	select {
	case received := <-got:
		assert.Equal(t, "speaking", received.State)
		assert.Equal(t, e.ID, received.ID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestTypedSubscriberIgnoresOtherTypes(t *testing.T) {
	b := New()
	defer b.Close()

	var typed, wildcard atomic.Int32
	b.Subscribe(EventActionStarted, func(Event) { typed.Add(1) })
	b.Subscribe("", func(Event) { wildcard.Add(1) })

	require.NoError(t, b.Publish(NewEvent(EventActionStarted)))
	require.NoError(t, b.Publish(NewEvent(EventFlourish)))

	require.Eventually(t, func() bool { return wildcard.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), typed.Load())
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	defer b.Close()

	id := b.Subscribe(EventFlourish, func(Event) {})
	assert.Equal(t, 1, b.SubscriptionsCount())
	require.NoError(t, b.Unsubscribe(id))
	assert.Zero(t, b.SubscriptionsCount())
	assert.Error(t, b.Unsubscribe(id))
}

func TestHistoryIsBounded(t *testing.T) {
	b := NewWithHistory(3)
	defer b.Close()

	for _, name := range []string{"a", "b", "c", "d"} {
		require.NoError(t, b.Publish(NewEvent(EventMotionRecorded).WithName(name)))
	}
	h := b.History(0)
	require.Len(t, h, 3)
	assert.Equal(t, "b", h[0].Name)
	assert.Equal(t, "d", b.History(1)[0].Name)
}

func TestFullQueueDrops(t *testing.T) {
	b := New()
	defer b.Close()

	release := make(chan struct{})
	b.Subscribe(EventFlourish, func(Event) { <-release })
	for i := 0; i < DefaultChannelBuffer+10; i++ {
		require.NoError(t, b.Publish(NewEvent(EventFlourish)))
	}
	assert.Greater(t, b.Dropped(), uint64(0))
	close(release)
}

func TestClose(t *testing.T) {
	b := New()
	b.Subscribe("", func(Event) {})
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.Publish(NewEvent(EventFlourish)), ErrClosed)
	assert.ErrorIs(t, b.Close(), ErrClosed)
	assert.Empty(t, b.Subscribe("", func(Event) {}))
}
