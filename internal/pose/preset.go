// Package pose resolves pose and expression names to blendshape targets.
package pose

import (
	"strings"

	bs "github.com/normanking/cortexmotion/internal/blendshape"
)

// Preset is a built-in pose. Names outside this set go through the custom registry.
type Preset int

const (
	PresetNeutral Preset = iota
	PresetWave
	PresetNod
	PresetShake
	PresetSmile
	PresetSurprise
	PresetThinking
	PresetHappy
	PresetSad
	PresetAttentive
	PresetConcerned
)

var presetNames = map[Preset]string{
	PresetNeutral:   "neutral",
	PresetWave:      "wave",
	PresetNod:       "nod",
	PresetShake:     "shake",
	PresetSmile:     "smile",
	PresetSurprise:  "surprise",
	PresetThinking:  "thinking",
	PresetHappy:     "happy",
	PresetSad:       "sad",
	PresetAttentive: "attentive",
	PresetConcerned: "concerned",
}

func (p Preset) String() string {
	if n, ok := presetNames[p]; ok {
		return n
	}
	return "unknown"
}

// ParsePreset accepts the preset name in any case, plus "surprised" as an alias.
func ParsePreset(name string) (Preset, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "surprised" {
		return PresetSurprise, true
	}
	for p, n := range presetNames {
		if n == name {
			return p, true
		}
	}
	return 0, false
}

// Definition is what a pose does: blendshape targets, an optional gesture sequence, a default hold.
type Definition struct {
	Name     string             `yaml:"name"`
	Weights  map[string]float32 `yaml:"weights"`
	Gesture  string             `yaml:"gesture,omitempty"`
	Duration float64            `yaml:"duration,omitempty"`
}

// Shapes returns the blendshape names the definition writes, in no particular order.
func (d Definition) Shapes() []string {
	out := make([]string, 0, len(d.Weights))
	for k := range d.Weights {
		out = append(out, k)
	}
	return out
}

func weights(kv ...any) map[string]float32 {
	w := make(map[string]float32, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		w[kv[i].(string)] = float32(kv[i+1].(float64))
	}
	return w
}

var builtins = map[Preset]func() Definition{
	PresetNeutral: func() Definition {
		return Definition{Weights: map[string]float32{}}
	},
	PresetWave: func() Definition {
		return Definition{Gesture: "wave", Weights: weights(
			bs.MouthSmileLeft, 0.5, bs.MouthSmileRight, 0.5,
			bs.CheekSquintLeft, 0.2, bs.CheekSquintRight, 0.2,
		)}
	},
	PresetNod: func() Definition {
		return Definition{Gesture: "nod", Weights: weights(
			bs.MouthSmileLeft, 0.2, bs.MouthSmileRight, 0.2,
		)}
	},
	PresetShake: func() Definition {
		return Definition{Gesture: "shake", Weights: weights(
			bs.BrowDownLeft, 0.2, bs.BrowDownRight, 0.2,
			bs.MouthPressLeft, 0.2, bs.MouthPressRight, 0.2,
		)}
	},
	PresetSmile: func() Definition {
		return Definition{Weights: weights(
			bs.MouthSmileLeft, 0.8, bs.MouthSmileRight, 0.8,
			bs.CheekSquintLeft, 0.3, bs.CheekSquintRight, 0.3,
		)}
	},
	PresetSurprise: func() Definition {
		return Definition{Weights: weights(
			bs.BrowInnerUp, 0.8, bs.BrowOuterUpLeft, 0.6, bs.BrowOuterUpRight, 0.6,
			bs.EyeWideLeft, 0.9, bs.EyeWideRight, 0.9,
			bs.JawOpen, 0.4,
		)}
	},
	PresetThinking: func() Definition {
		return Definition{Weights: weights(
			bs.BrowInnerUp, 0.25,
			bs.EyeLookUpLeft, 0.3, bs.EyeLookUpRight, 0.3,
			bs.MouthPressLeft, 0.1, bs.MouthPressRight, 0.1,
		)}
	},
	PresetHappy: func() Definition {
		return Definition{Weights: weights(
			bs.MouthSmileLeft, 0.4, bs.MouthSmileRight, 0.4,
			bs.CheekSquintLeft, 0.25, bs.CheekSquintRight, 0.25,
			bs.EyeSquintLeft, 0.15, bs.EyeSquintRight, 0.15,
		)}
	},
	PresetSad: func() Definition {
		return Definition{Weights: weights(
			bs.BrowInnerUp, 0.4, bs.BrowDownLeft, 0.1, bs.BrowDownRight, 0.1,
			bs.MouthFrownLeft, 0.25, bs.MouthFrownRight, 0.25,
			bs.EyeSquintLeft, 0.1, bs.EyeSquintRight, 0.1,
		)}
	},
	PresetAttentive: func() Definition {
		return Definition{Weights: weights(
			bs.BrowInnerUp, 0.15,
			bs.EyeWideLeft, 0.1, bs.EyeWideRight, 0.1,
			bs.MouthSmileLeft, 0.05, bs.MouthSmileRight, 0.05,
		)}
	},
	PresetConcerned: func() Definition {
		return Definition{Weights: weights(
			bs.BrowInnerUp, 0.35, bs.BrowDownLeft, 0.2, bs.BrowDownRight, 0.2,
			bs.MouthFrownLeft, 0.15, bs.MouthFrownRight, 0.15,
		)}
	},
}

// Definition returns a fresh copy of the preset's definition.
func (p Preset) Definition() Definition {
	fn, ok := builtins[p]
	if !ok {
		return Definition{Name: p.String(), Weights: map[string]float32{}}
	}
	d := fn()
	d.Name = p.String()
	return d
}
