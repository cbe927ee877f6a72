package character

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/normanking/cortexmotion/internal/blendshape"
	"github.com/normanking/cortexmotion/internal/ik"
	"github.com/normanking/cortexmotion/internal/lipsync"
	"github.com/normanking/cortexmotion/internal/motion"
	"github.com/normanking/cortexmotion/internal/scheduler"
	"github.com/normanking/cortexmotion/internal/skeleton"
)

// part is one animated concern inside a track.
type part interface {
	targets() []string
	advance(dt float64, f *scheduler.Frame) bool
	reset(f *scheduler.Frame)
}

// track runs a main part plus extras that live only as long as it does.
type track struct {
	id     string
	keys   []string
	main   part
	extras []part
}

func newTrack(id string, main part, extras ...part) *track {
	seen := make(map[string]struct{})
	for _, p := range append([]part{main}, extras...) {
		for _, k := range p.targets() {
			seen[k] = struct{}{}
		}
	}
	return &track{id: id, keys: scheduler.SortedTargets(seen), main: main, extras: extras}
}

func (t *track) ID() string        { return t.id }
func (t *track) Targets() []string { return t.keys }

func (t *track) Advance(dt float64, f *scheduler.Frame) bool {
	for _, e := range t.extras {
		e.advance(dt, f)
	}
	if !t.main.advance(dt, f) {
		return false
	}
	for _, e := range t.extras {
		e.reset(f)
	}
	return true
}

func (t *track) Reset(f *scheduler.Frame) {
	t.main.reset(f)
	for _, e := range t.extras {
		e.reset(f)
	}
}

// shapeHold eases shapes to their weights, holds, then zeroes them.
type shapeHold struct {
	weights  map[string]float32
	scale    float32
	fadeIn   float64
	fadeOut  float64
	duration float64

	from    map[string]float32
	elapsed float64
}

func newShapeHold(weights map[string]float32, duration, fadeIn float64) *shapeHold {
	return &shapeHold{weights: weights, scale: 1, duration: duration, fadeIn: math.Min(fadeIn, duration/2)}
}

func (h *shapeHold) targets() []string {
	out := make([]string, 0, len(h.weights))
	for name := range h.weights {
		out = append(out, scheduler.ShapeTarget(name))
	}
	return out
}

func (h *shapeHold) advance(dt float64, f *scheduler.Frame) bool {
	if h.from == nil {
		h.from = make(map[string]float32, len(h.weights))
		for name := range h.weights {
			h.from[name] = f.Shape(name)
		}
	}
	h.elapsed += dt
	if h.elapsed >= h.duration {
		h.reset(f)
		return true
	}

	w := 1.0
	if h.fadeIn > 0 && h.elapsed < h.fadeIn {
		w = h.elapsed / h.fadeIn
	}
	if left := h.duration - h.elapsed; h.fadeOut > 0 && left < h.fadeOut {
		w = math.Min(w, left/h.fadeOut)
	}
	for name, target := range h.weights {
		f.SetShape(name, blendshape.Lerp(h.from[name], target*h.scale, float32(w)))
	}
	return false
}

func (h *shapeHold) reset(f *scheduler.Frame) {
	for name := range h.weights {
		f.SetShape(name, 0)
	}
}

// shapeTransition eases shapes to their weights over duration and leaves them there.
type shapeTransition struct {
	weights  map[string]float32
	duration float64
	from     map[string]float32
	elapsed  float64
}

func (s *shapeTransition) targets() []string {
	return (&shapeHold{weights: s.weights}).targets()
}

func (s *shapeTransition) advance(dt float64, f *scheduler.Frame) bool {
	if s.from == nil {
		s.from = make(map[string]float32, len(s.weights))
		for name := range s.weights {
			s.from[name] = f.Shape(name)
		}
	}
	s.elapsed += dt
	t := 1.0
	if s.duration > 0 {
		t = math.Min(s.elapsed/s.duration, 1)
	}
	for name, target := range s.weights {
		f.SetShape(name, blendshape.Lerp(s.from[name], target, float32(t)))
	}
	return t >= 1
}

func (s *shapeTransition) reset(f *scheduler.Frame) {
	for name := range s.weights {
		f.SetShape(name, 0)
	}
}

type wait struct {
	duration float64
	elapsed  float64
}

func (w *wait) targets() []string { return nil }

func (w *wait) advance(dt float64, _ *scheduler.Frame) bool {
	w.elapsed += dt
	return w.elapsed >= w.duration
}

func (w *wait) reset(*scheduler.Frame) {}

// limbReach drives an IK chain along an eased path, optionally stepping the
// whole entity part of the way as well.
type limbReach struct {
	body     *body
	solver   *ik.Solver
	chain    *ik.Chain
	nodes    []skeleton.NodeID
	goal     mgl64.Vec3
	duration float64

	entity      skeleton.NodeID
	entityFrom  mgl64.Vec3
	entityDelta mgl64.Vec3
	carry       bool

	move    *ik.LimbMove
	failed  bool
	elapsed float64
}

func newLimbReach(b *body, s *ik.Solver, c *ik.Chain, goal mgl64.Vec3, duration float64) *limbReach {
	return &limbReach{body: b, solver: s, chain: c, nodes: b.chainNodes(c), goal: goal, duration: duration, entity: skeleton.InvalidNode}
}

// withEntityStep makes the entity travel delta (world space) over the reach.
func (l *limbReach) withEntityStep(entity skeleton.NodeID, delta mgl64.Vec3) *limbReach {
	l.entity = entity
	l.entityFrom = l.body.rig.Transform(entity).Position
	if p := l.body.rig.Parent(entity); p != skeleton.InvalidNode {
		delta = l.body.rig.WorldTransform(p).Rotation.Inverse().Rotate(delta)
	}
	l.entityDelta = delta
	l.carry = true
	return l
}

func (l *limbReach) targets() []string {
	ids := l.nodes
	if l.carry {
		ids = append(append([]skeleton.NodeID(nil), ids...), l.entity)
	}
	return l.body.boneTargets(ids)
}

func (l *limbReach) advance(dt float64, f *scheduler.Frame) bool {
	l.elapsed += dt
	if l.carry {
		t := 1.0
		if l.duration > 0 {
			t = ik.EaseInOutCubic(math.Min(l.elapsed/l.duration, 1))
		}
		tr := f.Transform(l.entity)
		tr.Position = l.entityFrom.Add(l.entityDelta.Mul(t))
		f.SetTransform(l.entity, tr)
	}

	if l.move == nil && !l.failed {
		var ok bool
		// the path starts from wherever the limb is on the first tick
		l.move, ok = l.solver.NewLimbMove(l.chain, f.Rig(), l.goal, l.duration)
		l.failed = !ok
		if ok {
			l.move.Step(dt, f.Rig())
		}
	} else if l.move != nil {
		l.move.Step(dt, f.Rig())
	}
	return l.elapsed >= l.duration
}

func (l *limbReach) reset(f *scheduler.Frame) {
	l.body.restore(f, l.nodes)
}

// turn rotates one node so its forward axis points along dir.
type turn struct {
	body     *body
	node     skeleton.NodeID
	dir      mgl64.Vec3
	duration float64

	from, to mgl64.Quat
	started  bool
	elapsed  float64
}

func (t *turn) targets() []string {
	return t.body.boneTargets([]skeleton.NodeID{t.node})
}

func (t *turn) advance(dt float64, f *scheduler.Frame) bool {
	if !t.started {
		t.from = f.Transform(t.node).Rotation
		t.to = aimRotation(t.body, f, t.node, t.dir)
		t.started = true
	}
	t.elapsed += dt
	p := 1.0
	if t.duration > 0 {
		p = ik.EaseInOutCubic(math.Min(t.elapsed/t.duration, 1))
	}
	tr := f.Transform(t.node)
	tr.Rotation = slerp(t.from, t.to, p)
	f.SetTransform(t.node, tr)
	return p >= 1
}

// reset leaves the node where it is; a cancelled look is superseded by the next one.
func (t *turn) reset(*scheduler.Frame) {}

// aimRotation is the local rotation that swings node's rest forward axis onto dir.
func aimRotation(b *body, f *scheduler.Frame, node skeleton.NodeID, dir mgl64.Vec3) mgl64.Quat {
	if dir.Len() < 1e-9 {
		dir = forward
	}
	parentRot := mgl64.QuatIdent()
	if p := f.Parent(node); p != skeleton.InvalidNode {
		parentRot = f.WorldTransform(p).Rotation
	}
	restLocal := b.restOf(node).Rotation
	restWorld := parentRot.Mul(restLocal)

	swing := mgl64.QuatBetweenVectors(restWorld.Rotate(forward), dir.Normalize())
	local := parentRot.Inverse().Mul(swing.Mul(restWorld)).Normalize()

	if head, ok := b.rig.Bone(skeleton.RoleHead); ok && head == node {
		if c := ik.Head.Constraints(); c != nil && c.HasLimits {
			local = ik.ClampEuler(local, c.MinAngles, c.MaxAngles)
		}
	}
	return local
}

func slerp(a, b mgl64.Quat, t float64) mgl64.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, t).Normalize()
}

// playback writes a learned motion's samples to the bones it names.
type playback struct {
	body  *body
	pb    *motion.Playback
	nodes map[string]skeleton.NodeID
}

func newPlayback(b *body, pb *motion.Playback) *playback {
	p := &playback{body: b, pb: pb, nodes: make(map[string]skeleton.NodeID)}
	for _, name := range pb.Motion().AffectedBones {
		if id, ok := b.rig.FindBone(name); ok {
			p.nodes[name] = id
		}
	}
	return p
}

func (p *playback) targets() []string {
	out := make([]string, 0, len(p.nodes))
	for name := range p.nodes {
		out = append(out, scheduler.BoneTarget(name))
	}
	return out
}

func (p *playback) advance(dt float64, f *scheduler.Frame) bool {
	keys, done := p.pb.Step(dt)
	for name, k := range keys {
		id, ok := p.nodes[name]
		if !ok {
			continue
		}
		tr := f.Transform(id)
		tr.Position = k.Position
		tr.Rotation = k.Rotation
		f.SetTransform(id, tr)
	}
	return done
}

func (p *playback) reset(f *scheduler.Frame) {
	for _, id := range p.nodes {
		f.SetTransform(id, p.body.restOf(id))
	}
}

// speech drives the mouth shapes from a lip-sync animator.
type speech struct {
	anim *lipsync.Animator
}

func (s *speech) targets() []string {
	shapes := lipsync.MouthShapes()
	out := make([]string, len(shapes))
	for i, name := range shapes {
		out[i] = scheduler.ShapeTarget(name)
	}
	return out
}

func (s *speech) advance(dt float64, f *scheduler.Frame) bool {
	shapes, done := s.anim.Step(dt)
	for name, w := range shapes {
		f.SetShape(name, w)
	}
	return done
}

func (s *speech) reset(f *scheduler.Frame) {
	for _, name := range lipsync.MouthShapes() {
		f.SetShape(name, 0)
	}
}

// sequence runs a declarative motion sequence step by step and returns the
// touched bones and shapes to neutral when it ends.
type sequence struct {
	seq     *motion.Sequence
	body    *body
	solver  *ik.Solver
	library *motion.Library
	log     zerolog.Logger

	keys    []string
	nodes   []skeleton.NodeID
	shapes  []string
	elapsed float64
	index   int
	current part
}

func newSequence(seq *motion.Sequence, b *body, s *ik.Solver, lib *motion.Library, log zerolog.Logger) *sequence {
	q := &sequence{seq: seq, body: b, solver: s, library: lib, log: log, index: -1}

	nodes := make(map[skeleton.NodeID]struct{})
	shapes := make(map[string]struct{})
	for _, st := range seq.Steps {
		switch st := st.(type) {
		case motion.MoveChain:
			if c, ok := ik.ChainByName(st.Chain); ok {
				for _, id := range b.chainNodes(c) {
					nodes[id] = struct{}{}
				}
			}
		case motion.BlendshapeTransition:
			for name := range st.Weights {
				shapes[name] = struct{}{}
			}
		case motion.LookAt:
			if id, ok := b.lookNode(); ok {
				nodes[id] = struct{}{}
			}
		case motion.PlayLearned:
			if m, ok := lib.Get(st.Name); ok {
				for _, name := range m.AffectedBones {
					if id, ok := b.rig.FindBone(name); ok {
						nodes[id] = struct{}{}
					}
				}
			}
		}
	}

	keys := make(map[string]struct{})
	for id := range nodes {
		q.nodes = append(q.nodes, id)
		keys[scheduler.BoneTarget(b.rig.Name(id))] = struct{}{}
	}
	for name := range shapes {
		q.shapes = append(q.shapes, name)
		keys[scheduler.ShapeTarget(name)] = struct{}{}
	}
	q.keys = scheduler.SortedTargets(keys)
	return q
}

func (q *sequence) targets() []string { return q.keys }

func (q *sequence) advance(dt float64, f *scheduler.Frame) bool {
	total := q.seq.Duration()
	if total <= 0 {
		q.reset(f)
		return true
	}

	idx, _, ok := q.seq.StepAt(q.elapsed)
	if !ok {
		if !q.seq.Loop {
			q.reset(f)
			return true
		}
		q.elapsed = math.Mod(q.elapsed, total)
		q.index = -1
		idx, _, _ = q.seq.StepAt(q.elapsed)
	}
	if idx != q.index {
		q.index = idx
		q.current = q.stepPart(q.seq.Steps[idx], f)
	}
	q.current.advance(dt, f)
	q.elapsed += dt
	return false
}

func (q *sequence) stepPart(st motion.Step, f *scheduler.Frame) part {
	switch st := st.(type) {
	case motion.MoveChain:
		c, ok := ik.ChainByName(st.Chain)
		if !ok {
			q.log.Debug().Str("chain", st.Chain).Msg("Unknown chain in sequence, waiting instead")
			break
		}
		nodes := q.body.chainNodes(c)
		if len(nodes) == 0 {
			break
		}
		root := f.WorldTransform(nodes[0]).Position
		goal := root.Add(q.body.entityRotation().Rotate(st.Offset))
		return newLimbReach(q.body, q.solver, c, goal, st.Duration)
	case motion.BlendshapeTransition:
		return &shapeTransition{weights: st.Weights, duration: st.Duration}
	case motion.LookAt:
		if id, ok := q.body.lookNode(); ok {
			return &turn{body: q.body, node: id, dir: q.body.entityRotation().Rotate(st.Direction), duration: st.Duration}
		}
	case motion.PlayLearned:
		if m, ok := q.library.Get(st.Name); ok {
			return newPlayback(q.body, motion.NewPlayback(m, st.Duration, false))
		}
		q.log.Debug().Str("motion", st.Name).Msg("Motion not learned, waiting instead")
	}
	return &wait{duration: st.StepDuration()}
}

func (q *sequence) reset(f *scheduler.Frame) {
	q.body.restore(f, q.nodes)
	for _, name := range q.shapes {
		f.SetShape(name, 0)
	}
}
