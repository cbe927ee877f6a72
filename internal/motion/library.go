package motion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/cortexmotion/internal/metrics"
)

// DefaultCapacity is the number of motions a library keeps before evicting.
const DefaultCapacity = 50

var (
	ErrEmptyName   = errors.New("motion name is empty")
	ErrEmptyMotion = errors.New("motion has no frames")
)

// Persister is the optional serialization hook. Failures are logged, never fatal.
type Persister interface {
	SaveMotion(ctx context.Context, m *Learned) error
	DeleteMotion(ctx context.Context, name string) error
	LoadMotions(ctx context.Context) ([]*Learned, error)
}

type Option func(*Library)

func WithPersister(p Persister) Option {
	return func(l *Library) { l.persister = p }
}

// WithEvictionHook registers fn to be called with each evicted motion name.
func WithEvictionHook(fn func(name string)) Option {
	return func(l *Library) { l.onEvict = fn }
}

// Library is a bounded cache of learned motions. On overflow the least complex entries go first.
type Library struct {
	mu        sync.RWMutex
	capacity  int
	motions   map[string]*Learned
	persister Persister
	onEvict   func(name string)
	log       zerolog.Logger
}

func NewLibrary(capacity int, log zerolog.Logger, opts ...Option) *Library {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Library{
		capacity: capacity,
		motions:  make(map[string]*Learned),
		log:      log.With().Str("component", "motion").Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record stores frames under name, replacing any motion with the same name.
func (l *Library) Record(name string, frames []Frame, framerate float64) (*Learned, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("record %q: %w", name, ErrEmptyMotion)
	}

	m := newLearned(name, frames, framerate)

	l.mu.Lock()
	l.motions[name] = m
	evicted := l.evictLocked()
	l.mu.Unlock()

	l.log.Info().
		Str("motion", name).
		Int("frames", len(m.Frames)).
		Float64("duration", m.Duration).
		Float64("complexity", m.Complexity).
		Msg("Motion recorded")

	kept := true
	for _, e := range evicted {
		if e == name {
			kept = false
		}
		l.evicted(e)
	}
	if kept {
		l.persist(func(ctx context.Context, p Persister) error { return p.SaveMotion(ctx, m) })
	}
	return m, nil
}

func (l *Library) evictLocked() []string {
	if len(l.motions) <= l.capacity {
		return nil
	}
	all := make([]*Learned, 0, len(l.motions))
	for _, m := range l.motions {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Complexity != all[j].Complexity {
			return all[i].Complexity < all[j].Complexity
		}
		return all[i].Name < all[j].Name
	})

	var out []string
	for _, m := range all[:len(all)-l.capacity] {
		delete(l.motions, m.Name)
		out = append(out, m.Name)
	}
	return out
}

func (l *Library) evicted(name string) {
	metrics.MotionEvictions.Inc()
	l.log.Debug().Str("motion", name).Msg("Motion evicted")
	l.persist(func(ctx context.Context, p Persister) error { return p.DeleteMotion(ctx, name) })
	if l.onEvict != nil {
		l.onEvict(name)
	}
}

func (l *Library) persist(fn func(context.Context, Persister) error) {
	if l.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx, l.persister); err != nil {
		l.log.Warn().Err(err).Msg("Motion persistence failed")
	}
}

// Warm loads persisted motions, subject to capacity.
func (l *Library) Warm(ctx context.Context) (int, error) {
	if l.persister == nil {
		return 0, nil
	}
	loaded, err := l.persister.LoadMotions(ctx)
	if err != nil {
		return 0, fmt.Errorf("load motions: %w", err)
	}

	l.mu.Lock()
	for _, m := range loaded {
		if m == nil || m.Name == "" || len(m.Frames) == 0 {
			continue
		}
		l.motions[m.Name] = m
	}
	evicted := l.evictLocked()
	n := len(l.motions)
	l.mu.Unlock()

	for _, e := range evicted {
		l.evicted(e)
	}
	return n, nil
}

func (l *Library) Get(name string) (*Learned, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.motions[name]
	return m, ok
}

func (l *Library) Has(name string) bool {
	_, ok := l.Get(name)
	return ok
}

// List returns the learned motion names sorted.
func (l *Library) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.motions))
	for n := range l.motions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.motions)
}

func (l *Library) Capacity() int { return l.capacity }

func (l *Library) Remove(name string) bool {
	l.mu.Lock()
	_, ok := l.motions[name]
	delete(l.motions, name)
	l.mu.Unlock()

	if ok {
		l.persist(func(ctx context.Context, p Persister) error { return p.DeleteMotion(ctx, name) })
	}
	return ok
}

func (l *Library) Clear() {
	l.mu.Lock()
	names := make([]string, 0, len(l.motions))
	for n := range l.motions {
		names = append(names, n)
	}
	l.motions = make(map[string]*Learned)
	l.mu.Unlock()

	for _, n := range names {
		l.persist(func(ctx context.Context, p Persister) error { return p.DeleteMotion(ctx, n) })
	}
}
