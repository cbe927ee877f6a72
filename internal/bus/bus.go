package bus

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	DefaultHistorySize = 256

	// DefaultChannelBuffer is the per-subscriber queue length. A full queue drops events.
	DefaultChannelBuffer = 64
)

var ErrClosed = errors.New("bus is closed")

type SubscriptionID string

type subscription struct {
	id        SubscriptionID
	eventType EventType
	handler   func(Event)
	ch        chan Event
	done      chan struct{}
}

// Bus is an in-process pub/sub. Each subscriber has its own goroutine, so a slow
// handler never stalls the tick loop that publishes.
type Bus struct {
	mu       sync.RWMutex
	subs     map[SubscriptionID]*subscription
	counter  uint64
	dropped  atomic.Uint64
	history  []Event
	histSize int
	wg       sync.WaitGroup
	closed   atomic.Bool
}

func New() *Bus {
	return NewWithHistory(DefaultHistorySize)
}

func NewWithHistory(historySize int) *Bus {
	if historySize < 0 {
		historySize = 0
	}
	return &Bus{
		subs:     make(map[SubscriptionID]*subscription),
		history:  make([]Event, 0, historySize),
		histSize: historySize,
	}
}

// Subscribe registers handler for eventType. An empty type receives everything.
func (b *Bus) Subscribe(eventType EventType, handler func(Event)) SubscriptionID {
	if b.closed.Load() {
		return ""
	}

	b.mu.Lock()
	b.counter++
	sub := &subscription{
		id:        SubscriptionID(fmt.Sprintf("sub_%d", b.counter)),
		eventType: eventType,
		handler:   handler,
		ch:        make(chan Event, DefaultChannelBuffer),
		done:      make(chan struct{}),
	}
	b.subs[sub.id] = sub
	b.mu.Unlock()

	b.wg.Add(1)
	go b.run(sub)
	return sub.id
}

func (b *Bus) run(sub *subscription) {
	defer b.wg.Done()
	for {
		select {
		case e := <-sub.ch:
			sub.handler(e)
		case <-sub.done:
			return
		}
	}
}

func (b *Bus) Unsubscribe(id SubscriptionID) error {
	if b.closed.Load() {
		return ErrClosed
	}
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("subscription %s not found", id)
	}
	close(sub.done)
	return nil
}

// Publish fans e out without blocking.
func (b *Bus) Publish(e Event) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.Lock()
	if b.histSize > 0 {
		b.history = append(b.history, e)
		if len(b.history) > b.histSize {
			b.history = b.history[len(b.history)-b.histSize:]
		}
	}
	b.mu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.eventType != "" && sub.eventType != e.Type {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// History returns up to the last n events, oldest first. n <= 0 returns everything retained.
func (b *Bus) History(n int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 || n > len(b.history) {
		n = len(b.history)
	}
	out := make([]Event, n)
	copy(out, b.history[len(b.history)-n:])
	return out
}

func (b *Bus) SubscriptionsCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped counts events discarded because a subscriber queue was full.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	b.mu.Lock()
	for id, sub := range b.subs {
		close(sub.done)
		delete(b.subs, id)
	}
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}
