// Package procedural generates deterministic idle signals from phase accumulators.
package procedural

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

const twoPi = 2 * math.Pi

type Config struct {
	BreathingSpeed float64 `mapstructure:"breathing_speed"` // rad/s
	SwaySpeed      float64 `mapstructure:"sway_speed"`      // rad/s
	SwayAmplitude  float64 `mapstructure:"sway_amplitude"`  // meters
	BlinkSpeed     float64 `mapstructure:"blink_speed"`     // rad/s
	BlinkInterval  float64 `mapstructure:"blink_interval"`  // seconds
	BlinkDuration  float64 `mapstructure:"blink_duration"`  // seconds
}

func DefaultConfig() Config {
	return Config{
		BreathingSpeed: 0.5,
		SwaySpeed:      0.2,
		SwayAmplitude:  0.05,
		BlinkSpeed:     1.0,
		BlinkInterval:  3.0,
		BlinkDuration:  0.15,
	}
}

// Forward is the default head-look direction.
var Forward = mgl64.Vec3{0, 0, 1}

type Generator struct {
	mu sync.RWMutex

	cfg Config

	breathingPhase float64
	swayPhase      float64
	blinkPhase     float64

	lookDirection mgl64.Vec3
}

func NewGenerator(cfg Config) *Generator {
	def := DefaultConfig()
	if cfg.BreathingSpeed <= 0 {
		cfg.BreathingSpeed = def.BreathingSpeed
	}
	if cfg.SwaySpeed <= 0 {
		cfg.SwaySpeed = def.SwaySpeed
	}
	if cfg.SwayAmplitude <= 0 {
		cfg.SwayAmplitude = def.SwayAmplitude
	}
	if cfg.BlinkSpeed <= 0 {
		cfg.BlinkSpeed = def.BlinkSpeed
	}
	if cfg.BlinkInterval <= 0 {
		cfg.BlinkInterval = def.BlinkInterval
	}
	if cfg.BlinkDuration <= 0 || cfg.BlinkDuration >= cfg.BlinkInterval {
		cfg.BlinkDuration = def.BlinkDuration
	}
	return &Generator{cfg: cfg, lookDirection: Forward}
}

// Update advances every accumulator by dt seconds.
func (g *Generator) Update(dt float64) {
	if dt <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.breathingPhase = math.Mod(g.breathingPhase+g.cfg.BreathingSpeed*dt, twoPi)
	g.swayPhase = math.Mod(g.swayPhase+g.cfg.SwaySpeed*dt, twoPi)
	// wrapping at the blink interval keeps every cycle the same length
	g.blinkPhase = math.Mod(g.blinkPhase+g.cfg.BlinkSpeed*dt, g.cfg.BlinkInterval)
}

// BreathingIntensity is (sin(phase)+1)/2, always in [0,1].
func (g *Generator) BreathingIntensity() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return (math.Sin(g.breathingPhase) + 1) / 2
}

// SwayOffset is the lateral sway in meters.
func (g *Generator) SwayOffset() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return math.Sin(g.swayPhase) * g.cfg.SwayAmplitude
}

func (g *Generator) ShouldBlink() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return math.Mod(g.blinkPhase, g.cfg.BlinkInterval) < g.cfg.BlinkDuration
}

func (g *Generator) SetLookDirection(dir mgl64.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if dir.Len() < 1e-9 {
		g.lookDirection = Forward
		return
	}
	g.lookDirection = dir.Normalize()
}

func (g *Generator) LookDirection() mgl64.Vec3 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lookDirection
}

// Phases returns the breathing, sway and blink accumulators.
func (g *Generator) Phases() (breathing, sway, blink float64) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.breathingPhase, g.swayPhase, g.blinkPhase
}

func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.breathingPhase, g.swayPhase, g.blinkPhase = 0, 0, 0
	g.lookDirection = Forward
}

// Sample is a snapshot of every signal for one tick.
type Sample struct {
	Breathing     float64
	Sway          float64
	Blink         bool
	LookDirection mgl64.Vec3
}

func (g *Generator) Sample() Sample {
	return Sample{
		Breathing:     g.BreathingIntensity(),
		Sway:          g.SwayOffset(),
		Blink:         g.ShouldBlink(),
		LookDirection: g.LookDirection(),
	}
}
