// Package character wires every motion engine into one runtime per character.
package character

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/cortexmotion/internal/blendshape"
	"github.com/normanking/cortexmotion/internal/bus"
	"github.com/normanking/cortexmotion/internal/command"
	"github.com/normanking/cortexmotion/internal/ik"
	"github.com/normanking/cortexmotion/internal/lipsync"
	"github.com/normanking/cortexmotion/internal/motion"
	"github.com/normanking/cortexmotion/internal/pose"
	"github.com/normanking/cortexmotion/internal/procedural"
	"github.com/normanking/cortexmotion/internal/scheduler"
	"github.com/normanking/cortexmotion/internal/skeleton"
)

var forward = procedural.Forward

const (
	breathPitch      = 0.02 // rad of chest pitch at full breath
	flourishScale    = 0.35
	flourishDuration = 1.2
	flourishFade     = 0.4
	resolutionBuffer = 256
)

// Runtime owns one character's engines. Update must be called from a single goroutine;
// every other method is safe to call concurrently with it.
type Runtime struct {
	cfg  Config
	base zerolog.Logger
	log  zerolog.Logger

	rig      *skeleton.Rig
	body     *body
	sched    *scheduler.Scheduler
	solver   *ik.Solver
	gen      *procedural.Generator
	flourish *procedural.Flourish
	library  *motion.Library
	poses    *pose.Registry
	parser   *command.Parser
	mapper   *lipsync.Mapper

	sink      blendshape.Sink
	bus       *bus.Bus
	persister motion.Persister
	lookup    lipsync.Lookup

	ctx         context.Context
	cancel      context.CancelFunc
	resolutions chan lipsync.Resolution

	mu         sync.Mutex
	state      State
	hold       string
	speech     *lipsync.Animator
	speechID   string
	flourishID string
	motions    map[string]string // learned motion name -> track id
}

func New(rig *skeleton.Rig, cfg Config, opts ...Option) *Runtime {
	r := &Runtime{
		cfg:         cfg.withDefaults(),
		base:        zerolog.Nop(),
		rig:         rig,
		resolutions: make(chan lipsync.Resolution, resolutionBuffer),
		motions:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.base.With().Str("component", "character").Logger()

	libOpts := []motion.Option{motion.WithEvictionHook(r.onEvicted)}
	if r.persister != nil {
		libOpts = append(libOpts, motion.WithPersister(r.persister))
	}
	if r.poses == nil {
		r.poses = pose.NewRegistry(r.base)
	}

	r.body = newBody(rig)
	r.sched = scheduler.New(rig, blendshape.NewCache(), r.sink, r.base)
	r.solver = ik.NewSolver(r.cfg.IK, r.base)
	r.gen = procedural.NewGenerator(r.cfg.Procedural)
	r.flourish = procedural.NewFlourish(r.cfg.FlourishInterval, r.cfg.FlourishVariants...)
	r.library = motion.NewLibrary(r.cfg.MotionCapacity, r.base, libOpts...)
	r.parser = command.NewParser(r.base)
	r.mapper = lipsync.NewMapper(r.lookup, r.cfg.LookupTimeout, r.base)
	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.sched.AddHook(r.idleHook)
	r.state = StateIdle
	r.flourish.Start()

	r.log.Info().
		Str("convention", rig.Convention().String()).
		Int("motion_capacity", r.cfg.MotionCapacity).
		Msg("Character runtime ready")
	return r
}

func (r *Runtime) Rig() *skeleton.Rig                  { return r.rig }
func (r *Runtime) Scheduler() *scheduler.Scheduler     { return r.sched }
func (r *Runtime) Library() *motion.Library            { return r.library }
func (r *Runtime) Generator() *procedural.Generator    { return r.gen }
func (r *Runtime) Poses() *pose.Registry               { return r.poses }
func (r *Runtime) Cache() *blendshape.Cache            { return r.sched.Cache() }
func (r *Runtime) Mapper() *lipsync.Mapper             { return r.mapper }
func (r *Runtime) Solver() *ik.Solver                  { return r.solver }
func (r *Runtime) FlourishTimer() *procedural.Flourish { return r.flourish }

func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetState switches the active state. Entering idle arms the flourish timer; any other state stops it.
func (r *Runtime) SetState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setStateLocked(s)
}

func (r *Runtime) setStateLocked(s State) {
	prev := r.state
	if prev == s {
		return
	}
	r.state = s
	if s == StateIdle {
		r.flourish.Start()
	} else {
		r.flourish.Stop()
		if r.flourishID != "" {
			r.sched.Stop(r.flourishID)
			r.flourishID = ""
		}
	}

	r.log.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("State changed")
	e := bus.NewEvent(bus.EventStateChanged)
	e.State, e.PrevState = s.String(), prev.String()
	r.publish(e)
}

// restingStateLocked is where a finished hold returns to.
func (r *Runtime) restingStateLocked() State {
	if r.speechID != "" {
		return StateSpeaking
	}
	return StateIdle
}

// Update advances the character by dt seconds: lookup results are patched in, the
// flourish timer runs, then the scheduler ticks and commits the frame.
func (r *Runtime) Update(dt float64) {
	r.body.refresh()
	r.drainResolutions()
	if name, ok := r.flourish.Update(dt); ok {
		r.playFlourish(name)
	}
	r.sched.Update(dt)
}

// idleHook writes the continuous procedural signals. Tracks run after it, so any
// active animation on the same bone or shape overrides it for the tick.
func (r *Runtime) idleHook(dt float64, f *scheduler.Frame) {
	r.gen.Update(dt)
	s := r.gen.Sample()

	if hips, ok := r.rig.Bone(skeleton.RoleHips); ok {
		tr := r.body.restOf(hips)
		tr.Position = tr.Position.Add(mgl64.Vec3{s.Sway, 0, 0})
		f.SetTransform(hips, tr)
	}
	if chest, ok := r.rig.Bone(skeleton.RoleChest); ok {
		tr := r.body.restOf(chest)
		tr.Rotation = tr.Rotation.Mul(mgl64.QuatRotate(-breathPitch*s.Breathing, mgl64.Vec3{1, 0, 0}))
		f.SetTransform(chest, tr)
	}

	var blink float32
	if s.Blink {
		blink = 1
	}
	f.SetShape(blendshape.EyeBlinkLeft, blink)
	f.SetShape(blendshape.EyeBlinkRight, blink)
}

func (r *Runtime) playFlourish(name string) {
	e := bus.NewEvent(bus.EventFlourish).WithName(name)
	r.publish(e)

	def, ok := r.poses.Lookup(name)
	if !ok || len(def.Weights) == 0 {
		return
	}
	h := newShapeHold(def.Weights, flourishDuration, flourishFade)
	h.scale = flourishScale
	h.fadeOut = flourishFade

	id := trackID("flourish", name)
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return
	}
	r.flourishID = id
	r.mu.Unlock()
	r.sched.Start(newTrack(id, h), nil)
}

// beginHold cancels the in-flight hold and starts t as the new one. When the hold
// ends on its own the character returns to its resting state.
func (r *Runtime) beginHold(kind command.ActionType, name string, state State, main part, extras ...part) string {
	return r.beginHoldWithID(trackID(string(kind), name), kind, name, state, main, extras...)
}

func (r *Runtime) beginHoldWithID(id string, kind command.ActionType, name string, state State, main part, extras ...part) string {
	t := newTrack(id, main, extras...)

	r.mu.Lock()
	prev := r.hold
	r.hold = id
	r.setStateLocked(state)
	r.mu.Unlock()

	if prev != "" {
		r.sched.Stop(prev)
	}
	r.sched.Start(t, func(completed bool) { r.holdDone(id, kind, name, completed) })

	e := bus.NewEvent(bus.EventActionStarted).WithName(name)
	e.Action = string(kind)
	r.publish(e)
	r.log.Debug().Str("action", string(kind)).Str("name", name).Str("track", id).Msg("Hold started")
	return id
}

func (r *Runtime) holdDone(id string, kind command.ActionType, name string, completed bool) {
	r.mu.Lock()
	if r.hold == id {
		r.hold = ""
		r.setStateLocked(r.restingStateLocked())
	}
	r.forgetMotionLocked(id)
	r.mu.Unlock()

	r.actionEnded(kind, name, completed)
}

func (r *Runtime) actionEnded(kind command.ActionType, name string, completed bool) {
	t := bus.EventActionFinished
	if !completed {
		t = bus.EventActionCancelled
	}
	e := bus.NewEvent(t).WithName(name)
	e.Action = string(kind)
	r.publish(e)
}

func (r *Runtime) publish(e bus.Event) {
	if r.bus == nil {
		return
	}
	_ = r.bus.Publish(e)
}

// Close stops every track and abandons pending lookups.
func (r *Runtime) Close() {
	r.cancel()
	r.sched.StopAll()
}

func trackID(kind, name string) string {
	return fmt.Sprintf("%s:%s:%s", kind, name, uuid.NewString()[:8])
}

// BonePose is a local transform in wire form. Rotation is x, y, z, w.
type BonePose struct {
	Position [3]float64 `json:"position"`
	Rotation [4]float64 `json:"rotation"`
}

// Snapshot is the committed state of the character after the last tick.
type Snapshot struct {
	Tick          uint64              `json:"tick"`
	State         string              `json:"state"`
	Shapes        map[string]float32  `json:"shapes"`
	Bones         map[string]BonePose `json:"bones"`
	Tracks        []string            `json:"tracks"`
	LookDirection [3]float64          `json:"look_direction"`
}

func (r *Runtime) Snapshot() Snapshot {
	type named struct {
		id   skeleton.NodeID
		name string
	}
	var nodes []named
	r.rig.Walk(func(id skeleton.NodeID, name string) bool {
		nodes = append(nodes, named{id, name})
		return true
	})

	bones := make(map[string]BonePose, len(nodes))
	for _, n := range nodes {
		if _, dup := bones[n.name]; dup {
			continue
		}
		t := r.rig.Transform(n.id)
		bones[n.name] = BonePose{
			Position: [3]float64{t.Position.X(), t.Position.Y(), t.Position.Z()},
			Rotation: [4]float64{t.Rotation.X(), t.Rotation.Y(), t.Rotation.Z(), t.Rotation.W},
		}
	}

	look := r.gen.LookDirection()
	return Snapshot{
		Tick:          r.sched.Ticks(),
		State:         r.State().String(),
		Shapes:        r.Cache().Snapshot(),
		Bones:         bones,
		Tracks:        r.sched.Active(),
		LookDirection: [3]float64{look.X(), look.Y(), look.Z()},
	}
}
