package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultRate = 60.0
	// MaxStep caps dt so a stalled process does not fast-forward every animation.
	MaxStep = 0.1
)

// Driver calls a tick function at a fixed rate with the measured elapsed time.
type Driver struct {
	interval time.Duration
	maxStep  float64
	log      zerolog.Logger
}

func NewDriver(rate float64, log zerolog.Logger) *Driver {
	if rate <= 0 {
		rate = DefaultRate
	}
	return &Driver{
		interval: time.Duration(float64(time.Second) / rate),
		maxStep:  MaxStep,
		log:      log.With().Str("component", "driver").Logger(),
	}
}

func (d *Driver) Interval() time.Duration { return d.interval }

// SetMaxStep replaces the dt cap. Non-positive values are ignored.
func (d *Driver) SetMaxStep(s float64) {
	if s > 0 {
		d.maxStep = s
	}
}

// ClampStep bounds a measured delta to [0, MaxStep].
func ClampStep(dt float64) float64 { return clampStep(dt, MaxStep) }

func clampStep(dt, limit float64) float64 {
	switch {
	case dt < 0:
		return 0
	case dt > limit:
		return limit
	}
	return dt
}

// Run ticks until ctx is done.
func (d *Driver) Run(ctx context.Context, tick func(dt float64)) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.log.Info().Dur("interval", d.interval).Msg("Tick driver started")
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("Tick driver stopped")
			return ctx.Err()
		case now := <-ticker.C:
			dt := clampStep(now.Sub(last).Seconds(), d.maxStep)
			last = now
			tick(dt)
		}
	}
}
