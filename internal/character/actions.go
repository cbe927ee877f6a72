package character

import (
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/normanking/cortexmotion/internal/bus"
	"github.com/normanking/cortexmotion/internal/command"
	"github.com/normanking/cortexmotion/internal/ik"
	"github.com/normanking/cortexmotion/internal/metrics"
	"github.com/normanking/cortexmotion/internal/motion"
	"github.com/normanking/cortexmotion/internal/pose"
	"github.com/normanking/cortexmotion/internal/scheduler"
	"github.com/normanking/cortexmotion/internal/skeleton"
)

const (
	poseFadeIn       = 0.15
	expressionFadeIn = 0.1
)

// HandleText executes every action token in text and speaks what is left.
// It returns the cleaned text.
func (r *Runtime) HandleText(text string) string {
	e := bus.NewEvent(bus.EventTextReceived)
	e.Text = text
	r.publish(e)

	clean, actions := r.parser.Parse(text)
	for _, a := range actions {
		r.Execute(a)
	}
	if strings.TrimSpace(clean) != "" {
		r.Speak(clean)
	}
	return clean
}

// Execute runs one action. It reports false when the action was skipped, e.g. an
// unknown pose name or a skeleton without the needed bones.
func (r *Runtime) Execute(a command.Action) bool {
	metrics.ActionsTotal.WithLabelValues(string(a.Type())).Inc()

	switch a := a.(type) {
	case command.Pose:
		return r.pose(a.Name, a.Duration)
	case command.Expression:
		return r.expression(a.Name)
	case command.Move:
		return r.move(a.Target, a.Duration)
	case command.Look:
		return r.look(a)
	case command.ComplexMotion:
		return r.complexMotion(a.Name, a.Duration)
	case command.Idle:
		r.Idle()
		return true
	}
	r.log.Debug().Str("type", string(a.Type())).Msg("Unhandled action")
	return false
}

func (r *Runtime) pose(name string, duration float64) bool {
	def, ok := r.poses.Lookup(name)
	if !ok {
		r.log.Warn().Str("pose", name).Msg("Unknown pose, skipping")
		return false
	}
	if def.Name == "" {
		def.Name = name
	}
	if duration <= 0 || !finite(duration) {
		duration = def.Duration
	}
	if duration <= 0 {
		duration = command.DefaultPoseDuration
	}

	var extras []part
	if def.Gesture != "" {
		if seq, ok := motion.Preset(def.Gesture); ok {
			seq.Loop = true
			extras = append(extras, newSequence(seq, r.body, r.solver, r.library, r.log))
		} else {
			r.log.Debug().Str("gesture", def.Gesture).Msg("Unknown gesture sequence")
		}
	}

	state := StateGesturing
	if p, ok := pose.ParsePreset(def.Name); ok && p == pose.PresetThinking {
		state = StateThinking
	}
	r.beginHold(command.TypePose, def.Name, state, newShapeHold(def.Weights, duration, poseFadeIn), extras...)
	return true
}

func (r *Runtime) expression(name string) bool {
	def, ok := r.poses.Lookup(name)
	if !ok {
		r.log.Warn().Str("expression", name).Msg("Unknown expression, skipping")
		return false
	}
	if def.Name == "" {
		def.Name = name
	}
	r.beginHold(command.TypeExpression, def.Name, StateGesturing, newShapeHold(def.Weights, r.cfg.ExpressionHold, expressionFadeIn))
	return true
}

// move reaches for target with the nearer arm while stepping the whole character part of the way.
func (r *Runtime) move(target mgl64.Vec3, duration float64) bool {
	if !finiteVec(target) {
		r.log.Warn().Msg("Move target is not finite, skipping")
		return false
	}
	if duration <= 0 || !finite(duration) {
		duration = command.DefaultMoveDuration
	}
	chain := r.armFor(target)
	reach := newLimbReach(r.body, r.solver, chain, target, duration)
	if len(reach.nodes) == 0 {
		r.log.Warn().Str("chain", chain.Name()).Msg("Chain does not resolve on this skeleton, skipping move")
		return false
	}
	if entity, ok := r.body.entity(); ok {
		if step := r.entityStep(entity, target); step.Len() > 0 {
			reach.withEntityStep(entity, step)
		}
	}
	r.beginHold(command.TypeMove, chain.Name(), StateMoving, reach)
	return true
}

// armFor picks the arm on the target's side. The character's left is +X in its own frame.
func (r *Runtime) armFor(target mgl64.Vec3) *ik.Chain {
	local := target
	if entity, ok := r.body.entity(); ok {
		w := r.rig.WorldTransform(entity)
		local = w.Rotation.Inverse().Rotate(target.Sub(w.Position))
	}
	if local.X() > 0 {
		return ik.LeftArm
	}
	return ik.RightArm
}

// entityStep is the clamped horizontal translation toward target.
func (r *Runtime) entityStep(entity skeleton.NodeID, target mgl64.Vec3) mgl64.Vec3 {
	delta := target.Sub(r.rig.WorldTransform(entity).Position)
	delta[1] = 0
	delta = delta.Mul(r.cfg.MoveFraction)
	if l := delta.Len(); l > r.cfg.MaxMoveStep {
		delta = delta.Mul(r.cfg.MaxMoveStep / l)
	}
	return delta
}

// look aims the head, or the whole entity without one, and updates the procedural look direction.
// It does not cancel the current hold.
func (r *Runtime) look(a command.Look) bool {
	node, ok := r.body.lookNode()
	origin := mgl64.Vec3{}
	if ok {
		origin = r.rig.WorldTransform(node).Position
	}

	var dir mgl64.Vec3
	switch a.Target {
	case command.LookUser:
		dir = r.cfg.userPosition().Sub(origin)
	case command.LookPoint:
		dir = a.Point.Sub(origin)
	default:
		dir = r.body.entityRotation().Rotate(forward)
	}
	if !finiteVec(dir) {
		r.log.Warn().Str("target", string(a.Target)).Msg("Look direction is not finite, skipping")
		return false
	}
	if dir.Len() < 1e-9 {
		dir = forward
	}
	dir = dir.Normalize()
	r.gen.SetLookDirection(dir)

	if !ok {
		r.log.Debug().Msg("No head or entity node, look applied to procedural direction only")
		return true
	}

	name := string(a.Target)
	id := trackID(string(command.TypeLook), name)
	t := newTrack(id, &turn{body: r.body, node: node, dir: dir, duration: r.cfg.LookDuration})
	r.sched.Start(t, func(completed bool) { r.actionEnded(command.TypeLook, name, completed) })

	e := bus.NewEvent(bus.EventActionStarted).WithName(name)
	e.Action = string(command.TypeLook)
	r.publish(e)
	return true
}

// complexMotion plays a learned motion, or falls back to the pose of the same name.
func (r *Runtime) complexMotion(name string, duration float64) bool {
	m, ok := r.library.Get(name)
	if !ok {
		r.log.Debug().Str("motion", name).Msg("Motion not learned, falling back to pose")
		return r.pose(name, duration)
	}

	p := newPlayback(r.body, motion.NewPlayback(m, duration, false))
	id := trackID(string(command.TypeComplexMotion), name)
	r.mu.Lock()
	r.motions[name] = id
	r.mu.Unlock()
	r.beginHoldWithID(id, command.TypeComplexMotion, name, StateGesturing, p)
	return true
}

// Idle cancels the current hold, returns limbs and head to the rest pose and enters idle.
func (r *Runtime) Idle() {
	r.mu.Lock()
	prev := r.hold
	r.hold = ""
	r.setStateLocked(r.restingStateLocked())
	r.mu.Unlock()

	if prev != "" {
		r.sched.Stop(prev)
	}

	var nodes []skeleton.NodeID
	for _, c := range []*ik.Chain{ik.RightArm, ik.LeftArm, ik.Head} {
		nodes = append(nodes, r.body.chainNodes(c)...)
	}
	if len(nodes) > 0 {
		r.sched.Start(newTrack(trackID("settle", "rest"), &settle{body: r.body, nodes: nodes}), nil)
	}
	r.publish(bus.NewEvent(bus.EventActionStarted).WithName("idle"))
}

// settle writes the rest pose for its nodes once.
type settle struct {
	body  *body
	nodes []skeleton.NodeID
}

func (s *settle) targets() []string { return s.body.boneTargets(s.nodes) }

func (s *settle) advance(_ float64, f *scheduler.Frame) bool {
	s.body.restore(f, s.nodes)
	return true
}

func (s *settle) reset(*scheduler.Frame) {}

// PlayMotion plays a learned motion outside the hold machinery. Unknown names are a soft failure.
func (r *Runtime) PlayMotion(name string, duration float64, loop bool) bool {
	m, ok := r.library.Get(name)
	if !ok {
		r.log.Debug().Str("motion", name).Msg("Motion not learned")
		return false
	}
	r.startMotion(name, motion.NewPlayback(m, duration, loop))
	return true
}

// PlayVariation plays a learned motion at speed, seeking phaseOffset seconds in.
func (r *Runtime) PlayVariation(name string, speed, phaseOffset float64) bool {
	m, ok := r.library.Get(name)
	if !ok {
		r.log.Debug().Str("motion", name).Msg("Motion not learned")
		return false
	}
	r.startMotion(name, motion.NewVariation(m, speed, phaseOffset))
	return true
}

func (r *Runtime) startMotion(name string, pb *motion.Playback) {
	id := trackID("motion", name)
	r.mu.Lock()
	r.motions[name] = id
	r.mu.Unlock()

	r.sched.Start(newTrack(id, newPlayback(r.body, pb)), func(completed bool) {
		r.mu.Lock()
		r.forgetMotionLocked(id)
		r.mu.Unlock()
		r.actionEnded(command.TypeComplexMotion, name, completed)
	})
}

// StopMotion stops a playing learned motion and returns its bones to rest. Safe to call when nothing plays.
func (r *Runtime) StopMotion(name string) bool {
	r.mu.Lock()
	id, ok := r.motions[name]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return r.sched.Stop(id)
}

func (r *Runtime) forgetMotionLocked(id string) {
	for name, tid := range r.motions {
		if tid == id {
			delete(r.motions, name)
		}
	}
}

// RecordMotion stores a captured motion in the library.
func (r *Runtime) RecordMotion(name string, frames []motion.Frame, framerate float64) (*motion.Learned, error) {
	m, err := r.library.Record(name, frames, framerate)
	if err != nil {
		return nil, err
	}
	e := bus.NewEvent(bus.EventMotionRecorded).WithName(m.Name)
	e.Details = map[string]any{"frames": len(m.Frames), "complexity": m.Complexity}
	r.publish(e)
	return m, nil
}

func (r *Runtime) onEvicted(name string) {
	r.publish(bus.NewEvent(bus.EventMotionEvicted).WithName(name))
}

func (r *Runtime) ListLearnedMotions() []string { return r.library.List() }

func (r *Runtime) HasMotion(name string) bool { return r.library.Has(name) }

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func finiteVec(v mgl64.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}
