package procedural

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

const dt = 1.0 / 60

func TestBreathingIntensity_BoundedAndPeriodic(t *testing.T) {
	g := NewGenerator(DefaultConfig())
	period := 2 * math.Pi / 0.5

	for i := 0; i < 1200; i++ {
		g.Update(dt)
		v := g.BreathingIntensity()
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}

	// one period later the signal repeats
	h := NewGenerator(DefaultConfig())
	h.Update(1.0)
	a := h.BreathingIntensity()
	h.Update(period)
	assert.InDelta(t, a, h.BreathingIntensity(), 1e-9)
	assert.InDelta(t, (math.Sin(0.5)+1)/2, a, 1e-12)
}

func TestSwayOffset(t *testing.T) {
	g := NewGenerator(DefaultConfig())
	g.Update(math.Pi / 2 / 0.2)
	assert.InDelta(t, 0.05, g.SwayOffset(), 1e-9)
}

func TestShouldBlink_PulsePerCycle(t *testing.T) {
	g := NewGenerator(DefaultConfig())

	// a binary-exact step keeps every cycle identical
	const step = 1.0 / 64
	const cycles = 5
	ticks := int(cycles * 3.0 / step)
	var blinking float64
	for i := 0; i < ticks; i++ {
		if g.ShouldBlink() {
			blinking += step
		}
		g.Update(step)
	}
	assert.InDelta(t, 0.15*cycles, blinking, cycles*step)
}

func TestShouldBlink_Boundaries(t *testing.T) {
	g := NewGenerator(DefaultConfig())
	assert.True(t, g.ShouldBlink())

	g.Update(0.1)
	assert.True(t, g.ShouldBlink())

	g.Update(0.1)
	assert.False(t, g.ShouldBlink())

	g.Update(2.9)
	assert.True(t, g.ShouldBlink(), "3.1s into the run is 0.1s into the second cycle")
}

func TestLookDirection(t *testing.T) {
	g := NewGenerator(DefaultConfig())
	assert.Equal(t, Forward, g.LookDirection())

	g.SetLookDirection(mgl64.Vec3{0, 0, 5})
	assert.InDelta(t, 1.0, g.LookDirection().Len(), 1e-12)

	g.SetLookDirection(mgl64.Vec3{})
	assert.Equal(t, Forward, g.LookDirection())
}

func TestGenerator_Deterministic(t *testing.T) {
	a, b := NewGenerator(DefaultConfig()), NewGenerator(DefaultConfig())
	for i := 0; i < 500; i++ {
		a.Update(dt)
		b.Update(dt)
	}
	assert.Equal(t, a.Sample(), b.Sample())
}

func TestFlourish(t *testing.T) {
	f := NewFlourish(0, "smile", "thinking")
	assert.Equal(t, DefaultFlourishInterval, f.Interval())

	_, fired := f.Update(10)
	assert.False(t, fired, "inactive timer never fires")

	f.Start()
	_, fired = f.Update(2.9)
	assert.False(t, fired)
	name, fired := f.Update(0.2)
	assert.True(t, fired)
	assert.Equal(t, "smile", name)

	name, _ = f.Update(3.0)
	assert.Equal(t, "thinking", name)

	f.Stop()
	assert.False(t, f.Active())
	_, fired = f.Update(5)
	assert.False(t, fired)
	assert.Equal(t, 2, f.Fired())
}
