// Package motion records, stores and replays keyframed multi-bone animation.
package motion

import (
	"math"
	"sort"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultFramerate is used when a recording does not state one.
const DefaultFramerate = 30.0

// BoneKey is one bone's local transform in a frame.
type BoneKey struct {
	Position mgl64.Vec3 `json:"position"`
	Rotation mgl64.Quat `json:"rotation"`
}

// Frame is a timestamped snapshot keyed by scene bone name.
type Frame struct {
	Time  float64            `json:"time"`
	Bones map[string]BoneKey `json:"bones"`
}

func (f Frame) clone() Frame {
	bones := make(map[string]BoneKey, len(f.Bones))
	for k, v := range f.Bones {
		bones[k] = v
	}
	return Frame{Time: f.Time, Bones: bones}
}

// Learned is an immutable recorded motion.
type Learned struct {
	Name          string
	Frames        []Frame
	Duration      float64
	AffectedBones []string
	Framerate     float64
	Complexity    float64
	RecordedAt    time.Time
}

// newLearned normalises timestamps to index/framerate and derives the summary fields.
func newLearned(name string, frames []Frame, framerate float64) *Learned {
	if framerate <= 0 {
		framerate = DefaultFramerate
	}
	m := &Learned{
		Name:       name,
		Frames:     make([]Frame, len(frames)),
		Framerate:  framerate,
		RecordedAt: time.Now(),
	}

	seen := make(map[string]struct{})
	for i, f := range frames {
		c := f.clone()
		c.Time = float64(i) / framerate
		m.Frames[i] = c
		for b := range c.Bones {
			seen[b] = struct{}{}
		}
	}
	for b := range seen {
		m.AffectedBones = append(m.AffectedBones, b)
	}
	sort.Strings(m.AffectedBones)

	if n := len(m.Frames); n > 0 {
		m.Duration = m.Frames[n-1].Time
	}
	m.Complexity = Complexity(m.Frames)
	return m
}

// Complexity is the mean rotation angle in radians between consecutive frames over every bone present in both.
func Complexity(frames []Frame) float64 {
	var total float64
	var samples int
	for i := 1; i < len(frames); i++ {
		prev, cur := frames[i-1].Bones, frames[i].Bones
		for name, k := range cur {
			p, ok := prev[name]
			if !ok {
				continue
			}
			total += rotationDelta(p.Rotation, k.Rotation)
			samples++
		}
	}
	if samples == 0 {
		return 0
	}
	return total / float64(samples)
}

func rotationDelta(a, b mgl64.Quat) float64 {
	d := math.Abs(a.Normalize().Dot(b.Normalize()))
	return 2 * math.Acos(mgl64.Clamp(d, -1, 1))
}
