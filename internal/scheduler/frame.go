package scheduler

import (
	"github.com/normanking/cortexmotion/internal/blendshape"
	"github.com/normanking/cortexmotion/internal/skeleton"
)

// Frame collects one tick's writes. It is an Adapter overlay: reads see earlier
// writes from the same tick, and nothing reaches the scene until the apply step.
type Frame struct {
	base   *skeleton.Rig
	cache  *blendshape.Cache
	bones  map[skeleton.NodeID]skeleton.Transform
	order  []skeleton.NodeID
	shapes map[string]float32
	view   *skeleton.Rig
}

func newFrame(rig *skeleton.Rig, cache *blendshape.Cache) *Frame {
	return &Frame{
		base:   rig,
		cache:  cache,
		bones:  make(map[skeleton.NodeID]skeleton.Transform),
		shapes: make(map[string]float32),
	}
}

// NewFrame builds a standalone frame, e.g. for driving a track in tests.
func NewFrame(rig *skeleton.Rig, cache *blendshape.Cache) *Frame {
	return newFrame(rig, cache)
}

// Rig returns a rig whose reads and writes go through this frame.
func (f *Frame) Rig() *skeleton.Rig {
	if f.view == nil {
		f.view = f.base.View(f)
	}
	return f.view
}

func (f *Frame) FindBone(name string) (skeleton.NodeID, bool) { return f.base.FindBone(name) }
func (f *Frame) Name(id skeleton.NodeID) string                { return f.base.Name(id) }
func (f *Frame) Parent(id skeleton.NodeID) skeleton.NodeID     { return f.base.Parent(id) }
func (f *Frame) Generation() uint64                            { return f.base.Generation() }

func (f *Frame) Walk(fn func(id skeleton.NodeID, name string) bool) { f.base.Walk(fn) }

func (f *Frame) Transform(id skeleton.NodeID) skeleton.Transform {
	if t, ok := f.bones[id]; ok {
		return t
	}
	return f.base.Transform(id)
}

func (f *Frame) SetTransform(id skeleton.NodeID, t skeleton.Transform) {
	if _, ok := f.bones[id]; !ok {
		f.order = append(f.order, id)
	}
	f.bones[id] = t
}

func (f *Frame) WorldTransform(id skeleton.NodeID) skeleton.Transform {
	t := f.Transform(id)
	for p := f.base.Parent(id); p != skeleton.InvalidNode; p = f.base.Parent(p) {
		t = skeleton.Compose(f.Transform(p), t)
	}
	return t
}

// SetShape stages a clamped blendshape weight.
func (f *Frame) SetShape(name string, w float32) {
	f.shapes[name] = blendshape.Clamp(w)
}

// Shape returns the staged weight, or the cached one.
func (f *Frame) Shape(name string) float32 {
	if w, ok := f.shapes[name]; ok {
		return w
	}
	if f.cache == nil {
		return 0
	}
	return f.cache.Get(name)
}

// Shapes returns a copy of the staged weights.
func (f *Frame) Shapes() map[string]float32 {
	out := make(map[string]float32, len(f.shapes))
	for k, v := range f.shapes {
		out[k] = v
	}
	return out
}

// Dirty reports whether anything was staged.
func (f *Frame) Dirty() bool { return len(f.bones) > 0 || len(f.shapes) > 0 }

func (f *Frame) apply(sink blendshape.Sink) {
	for _, id := range f.order {
		f.base.SetTransform(id, f.bones[id])
	}
	for name, w := range f.shapes {
		if f.cache != nil {
			f.cache.Set(name, w)
		}
		if sink != nil {
			sink.SetMorphWeight(name, w)
		}
	}
}
