package motion

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Playback replays a learned motion by explicit time steps.
type Playback struct {
	motion   *Learned
	duration float64
	elapsed  float64
	loop     bool
	finished bool
}

// NewPlayback plays m over duration seconds, or its recorded duration when duration <= 0.
func NewPlayback(m *Learned, duration float64, loop bool) *Playback {
	if duration <= 0 {
		duration = m.Duration
	}
	return &Playback{motion: m, duration: duration, loop: loop}
}

// NewVariation plays m sped up by speed and seeks phaseOffset seconds into the rescaled run.
// Variations do not loop.
func NewVariation(m *Learned, speed, phaseOffset float64) *Playback {
	if speed <= 0 {
		speed = 1
	}
	p := NewPlayback(m, m.Duration/speed, false)
	if phaseOffset > 0 && p.duration > 0 {
		p.elapsed = math.Min(phaseOffset, p.duration)
	}
	return p
}

func (p *Playback) Motion() *Learned { return p.motion }

func (p *Playback) Duration() float64 { return p.duration }

func (p *Playback) Elapsed() float64 { return p.elapsed }

func (p *Playback) Loop() bool { return p.loop }

func (p *Playback) Finished() bool { return p.finished }

// Step samples the pose at the current time, then advances by dt.
// It reports true once a non-looping playback has written its last frame.
func (p *Playback) Step(dt float64) (map[string]BoneKey, bool) {
	if p.finished {
		return nil, true
	}
	if p.duration <= 0 {
		p.finished = !p.loop
		return p.Sample(0), p.finished
	}

	progress := p.elapsed / p.duration
	if progress > 1 {
		if p.loop {
			p.elapsed = 0
			progress = 0
		} else {
			p.finished = true
			return p.Sample(1), true
		}
	}

	pose := p.Sample(progress)
	p.elapsed += dt
	return pose, false
}

// Sample interpolates every affected bone at progress in [0,1].
func (p *Playback) Sample(progress float64) map[string]BoneKey {
	return p.motion.Sample(progress)
}

// Sample interpolates every affected bone at progress in [0,1]: position linearly,
// rotation spherically, between the two frames bracketing (frames-1)*progress.
func (m *Learned) Sample(progress float64) map[string]BoneKey {
	n := len(m.Frames)
	if n == 0 {
		return nil
	}
	progress = mgl64.Clamp(progress, 0, 1)

	idx := float64(n-1) * progress
	i0 := int(math.Floor(idx))
	if i0 > n-1 {
		i0 = n - 1
	}
	i1 := i0 + 1
	if i1 > n-1 {
		i1 = n - 1
	}
	t := idx - float64(i0)

	out := make(map[string]BoneKey, len(m.AffectedBones))
	for _, bone := range m.AffectedBones {
		a, okA := m.Frames[i0].Bones[bone]
		b, okB := m.Frames[i1].Bones[bone]
		switch {
		case okA && okB:
			out[bone] = BoneKey{
				Position: a.Position.Add(b.Position.Sub(a.Position).Mul(t)),
				Rotation: slerp(a.Rotation, b.Rotation, t),
			}
		case okA:
			out[bone] = a
		case okB:
			out[bone] = b
		}
	}
	return out
}

// slerp takes the shorter arc.
func slerp(a, b mgl64.Quat, t float64) mgl64.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, t).Normalize()
}
