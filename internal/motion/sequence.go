package motion

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/normanking/cortexmotion/internal/blendshape"
)

// Step is one declarative action in a Sequence.
type Step interface {
	StepDuration() float64
}

// MoveChain drives a named IK chain so its tip reaches Offset from the chain root's current
// world position when the step starts. Offset is in the character's facing frame.
type MoveChain struct {
	Chain    string
	Offset   mgl64.Vec3
	Duration float64
}

// BlendshapeTransition eases the named shapes to their target weights.
type BlendshapeTransition struct {
	Weights  map[string]float32
	Duration float64
}

type Wait struct {
	Duration float64
}

// LookAt turns the head toward Direction, expressed in the character's frame (+Z forward).
type LookAt struct {
	Direction mgl64.Vec3
	Duration  float64
}

// PlayLearned plays a learned motion. Zero Duration uses the recorded length.
type PlayLearned struct {
	Name     string
	Duration float64
}

func (s MoveChain) StepDuration() float64            { return s.Duration }
func (s BlendshapeTransition) StepDuration() float64 { return s.Duration }
func (s Wait) StepDuration() float64                 { return s.Duration }
func (s LookAt) StepDuration() float64               { return s.Duration }
func (s PlayLearned) StepDuration() float64          { return s.Duration }

// Sequence is a named ordered list of steps.
type Sequence struct {
	Name  string
	Steps []Step
	Loop  bool
}

// Duration is the sum of step durations for one pass.
func (s *Sequence) Duration() float64 {
	var d float64
	for _, st := range s.Steps {
		d += st.StepDuration()
	}
	return d
}

// StepAt returns the step active t seconds into one pass and the time already spent in it.
func (s *Sequence) StepAt(t float64) (int, float64, bool) {
	var start float64
	for i, st := range s.Steps {
		end := start + st.StepDuration()
		if t < end {
			return i, t - start, true
		}
		start = end
	}
	return len(s.Steps), 0, false
}

var (
	lookDown  = mgl64.Vec3{0, -0.35, 1}
	lookLeft  = mgl64.Vec3{0.45, 0, 1}
	lookRight = mgl64.Vec3{-0.45, 0, 1}
	lookAhead = mgl64.Vec3{0, 0, 1}
)

// Preset sequences. Offsets assume a roughly adult-sized humanoid.
var presets = map[string]func() *Sequence{
	"wave": func() *Sequence {
		up := mgl64.Vec3{-0.25, 0.35, 0.1}
		out := mgl64.Vec3{-0.4, 0.3, 0.1}
		return &Sequence{Name: "wave", Steps: []Step{
			MoveChain{Chain: "rightArm", Offset: up, Duration: 0.4},
			MoveChain{Chain: "rightArm", Offset: out, Duration: 0.25},
			MoveChain{Chain: "rightArm", Offset: up, Duration: 0.25},
			MoveChain{Chain: "rightArm", Offset: out, Duration: 0.25},
			MoveChain{Chain: "rightArm", Offset: up, Duration: 0.25},
		}}
	},
	"nod": func() *Sequence {
		return &Sequence{Name: "nod", Steps: []Step{
			LookAt{Direction: lookDown, Duration: 0.25},
			LookAt{Direction: lookAhead, Duration: 0.25},
			LookAt{Direction: lookDown, Duration: 0.25},
			LookAt{Direction: lookAhead, Duration: 0.25},
		}}
	},
	"shake": func() *Sequence {
		return &Sequence{Name: "shake", Steps: []Step{
			LookAt{Direction: lookLeft, Duration: 0.2},
			LookAt{Direction: lookRight, Duration: 0.3},
			LookAt{Direction: lookLeft, Duration: 0.3},
			LookAt{Direction: lookAhead, Duration: 0.2},
		}}
	},
	"smile": func() *Sequence {
		return &Sequence{Name: "smile", Steps: []Step{
			BlendshapeTransition{Weights: map[string]float32{
				blendshape.MouthSmileLeft:   0.8,
				blendshape.MouthSmileRight:  0.8,
				blendshape.CheekSquintLeft:  0.3,
				blendshape.CheekSquintRight: 0.3,
			}, Duration: 0.3},
			Wait{Duration: 1.0},
		}}
	},
	"surprise": func() *Sequence {
		return &Sequence{Name: "surprise", Steps: []Step{
			BlendshapeTransition{Weights: map[string]float32{
				blendshape.EyeWideLeft:      0.9,
				blendshape.EyeWideRight:     0.9,
				blendshape.BrowInnerUp:      0.8,
				blendshape.BrowOuterUpLeft:  0.6,
				blendshape.BrowOuterUpRight: 0.6,
				blendshape.JawOpen:          0.4,
			}, Duration: 0.15},
			Wait{Duration: 0.8},
		}}
	},
	"thinking": func() *Sequence {
		return &Sequence{Name: "thinking", Steps: []Step{
			LookAt{Direction: mgl64.Vec3{0.3, 0.3, 1}, Duration: 0.5},
			BlendshapeTransition{Weights: map[string]float32{
				blendshape.BrowDownLeft:   0.3,
				blendshape.MouthPressLeft: 0.3,
				blendshape.EyeLookUpLeft:  0.4,
				blendshape.EyeLookUpRight: 0.4,
			}, Duration: 0.4},
			Wait{Duration: 1.0},
			LookAt{Direction: lookAhead, Duration: 0.4},
		}}
	},
}

// Preset returns a fresh copy of a named preset sequence.
func Preset(name string) (*Sequence, bool) {
	fn, ok := presets[name]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// PresetNames lists the built-in sequences.
func PresetNames() []string {
	return []string{"wave", "nod", "shake", "smile", "surprise", "thinking"}
}
