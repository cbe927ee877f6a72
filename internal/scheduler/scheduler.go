package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/normanking/cortexmotion/internal/blendshape"
	"github.com/normanking/cortexmotion/internal/metrics"
	"github.com/normanking/cortexmotion/internal/skeleton"
	"github.com/rs/zerolog"
)

// Target keys name what a track writes. Two tracks conflict when they share a key.
func BoneTarget(name string) string  { return "bone:" + name }
func ShapeTarget(name string) string { return "shape:" + name }

// Track is one running animation. Advance writes into the frame and reports completion.
// Reset is called on the tick after a track is cancelled so it can release its targets.
type Track interface {
	ID() string
	Targets() []string
	Advance(dt float64, f *Frame) bool
	Reset(f *Frame)
}

// Hook runs every tick before the tracks, e.g. procedural idle motion.
type Hook func(dt float64, f *Frame)

type entry struct {
	track   Track
	targets map[string]struct{}
	onDone  func(completed bool)
	started time.Time
}

func (e *entry) overlaps(targets map[string]struct{}) bool {
	for k := range targets {
		if _, ok := e.targets[k]; ok {
			return true
		}
	}
	return false
}

// Scheduler owns the active tracks. A newly started track cancels every running
// track it shares a target with, so the last writer wins.
type Scheduler struct {
	mu     sync.Mutex
	rig    *skeleton.Rig
	cache  *blendshape.Cache
	sink   blendshape.Sink
	tracks []*entry
	resets []Track
	hooks  []Hook
	ticks  uint64
	log    zerolog.Logger
}

func New(rig *skeleton.Rig, cache *blendshape.Cache, sink blendshape.Sink, log zerolog.Logger) *Scheduler {
	if cache == nil {
		cache = blendshape.NewCache()
	}
	return &Scheduler{
		rig:   rig,
		cache: cache,
		sink:  sink,
		log:   log.With().Str("component", "scheduler").Logger(),
	}
}

func (s *Scheduler) Cache() *blendshape.Cache { return s.cache }

func (s *Scheduler) Rig() *skeleton.Rig { return s.rig }

// AddHook registers a per-tick hook. Hooks run in registration order.
func (s *Scheduler) AddHook(h Hook) {
	s.mu.Lock()
	s.hooks = append(s.hooks, h)
	s.mu.Unlock()
}

// Start schedules t. onDone, if set, is called once with true on completion or false on cancellation.
// Callbacks never run while the scheduler lock is held.
func (s *Scheduler) Start(t Track, onDone func(completed bool)) {
	e := &entry{track: t, targets: keySet(t.Targets()), onDone: onDone, started: time.Now()}

	s.mu.Lock()
	cancelled := s.cancelLocked(func(old *entry) bool {
		return old.track.ID() == t.ID() || old.overlaps(e.targets)
	})
	s.tracks = append(s.tracks, e)
	n := len(s.tracks)
	s.mu.Unlock()

	s.log.Debug().Str("track", t.ID()).Int("cancelled", len(cancelled)).Int("active", n).Msg("Track started")
	notify(cancelled, false)
}

// Stop cancels the track with the given id. Stopping an unknown id is a no-op.
func (s *Scheduler) Stop(id string) bool {
	s.mu.Lock()
	cancelled := s.cancelLocked(func(e *entry) bool { return e.track.ID() == id })
	s.mu.Unlock()

	notify(cancelled, false)
	return len(cancelled) > 0
}

// StopTargets cancels every track writing any of the given keys.
func (s *Scheduler) StopTargets(targets ...string) int {
	set := keySet(targets)
	s.mu.Lock()
	cancelled := s.cancelLocked(func(e *entry) bool { return e.overlaps(set) })
	s.mu.Unlock()

	notify(cancelled, false)
	return len(cancelled)
}

// StopAll cancels every running track.
func (s *Scheduler) StopAll() int {
	s.mu.Lock()
	cancelled := s.cancelLocked(func(*entry) bool { return true })
	s.mu.Unlock()

	notify(cancelled, false)
	return len(cancelled)
}

func (s *Scheduler) cancelLocked(match func(*entry) bool) []*entry {
	var cancelled []*entry
	kept := s.tracks[:0]
	for _, e := range s.tracks {
		if match(e) {
			cancelled = append(cancelled, e)
			s.resets = append(s.resets, e.track)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(s.tracks); i++ {
		s.tracks[i] = nil
	}
	s.tracks = kept
	return cancelled
}

// Active returns the ids of the running tracks in start order.
func (s *Scheduler) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.tracks))
	for i, e := range s.tracks {
		out[i] = e.track.ID()
	}
	return out
}

func (s *Scheduler) IsActive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.tracks {
		if e.track.ID() == id {
			return true
		}
	}
	return false
}

// Owner returns the id of the track currently writing target.
func (s *Scheduler) Owner(target string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.tracks {
		if _, ok := e.targets[target]; ok {
			return e.track.ID(), true
		}
	}
	return "", false
}

// Ticks returns how many updates have run.
func (s *Scheduler) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// Update runs one tick: pending resets, hooks, then tracks in start order, and
// finally commits the frame to the scene. Later writers in the same tick win.
func (s *Scheduler) Update(dt float64) {
	if dt < 0 {
		dt = 0
	}
	start := time.Now()

	s.mu.Lock()
	f := newFrame(s.rig, s.cache)
	for _, t := range s.resets {
		t.Reset(f)
	}
	s.resets = nil

	for _, h := range s.hooks {
		h(dt, f)
	}

	var finished []*entry
	kept := s.tracks[:0]
	for _, e := range s.tracks {
		if e.track.Advance(dt, f) {
			finished = append(finished, e)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(s.tracks); i++ {
		s.tracks[i] = nil
	}
	s.tracks = kept

	f.apply(s.sink)
	s.ticks++
	active := len(s.tracks)
	s.mu.Unlock()

	metrics.TickDuration.Observe(time.Since(start).Seconds())
	metrics.ActiveTracks.Set(float64(active))

	for _, e := range finished {
		s.log.Debug().Str("track", e.track.ID()).Dur("ran", time.Since(e.started)).Msg("Track finished")
	}
	notify(finished, true)
}

func notify(entries []*entry, completed bool) {
	for _, e := range entries {
		if e.onDone != nil {
			e.onDone(completed)
		}
	}
}

func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// SortedTargets is a helper for tracks that build their key list from a map.
func SortedTargets(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
