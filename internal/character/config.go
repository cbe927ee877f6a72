package character

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/normanking/cortexmotion/internal/blendshape"
	"github.com/normanking/cortexmotion/internal/bus"
	"github.com/normanking/cortexmotion/internal/ik"
	"github.com/normanking/cortexmotion/internal/lipsync"
	"github.com/normanking/cortexmotion/internal/motion"
	"github.com/normanking/cortexmotion/internal/pose"
	"github.com/normanking/cortexmotion/internal/procedural"
)

type Config struct {
	IK         ik.Config         `mapstructure:"ik"`
	Procedural procedural.Config `mapstructure:"procedural"`

	MotionCapacity int `mapstructure:"motion_capacity"`

	FlourishInterval float64  `mapstructure:"flourish_interval"`
	FlourishVariants []string `mapstructure:"flourish_variants"`

	// ExpressionHold is how long an expression stays on before resetting.
	ExpressionHold float64 `mapstructure:"expression_hold"`
	LookDuration   float64 `mapstructure:"look_duration"`

	// Whole-body step toward a move target: MoveFraction of the horizontal
	// distance, never more than MaxMoveStep meters.
	MoveFraction float64 `mapstructure:"move_fraction"`
	MaxMoveStep  float64 `mapstructure:"max_move_step"`

	// UserPosition is where "look user" aims, in world space.
	UserPosition [3]float64 `mapstructure:"user_position"`

	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
}

func DefaultConfig() Config {
	return Config{
		IK:               ik.DefaultConfig(),
		Procedural:       procedural.DefaultConfig(),
		MotionCapacity:   motion.DefaultCapacity,
		FlourishInterval: procedural.DefaultFlourishInterval,
		FlourishVariants: []string{"attentive", "happy", "neutral"},
		ExpressionHold:   0.5,
		LookDuration:     0.3,
		MoveFraction:     0.5,
		MaxMoveStep:      0.25,
		UserPosition:     [3]float64{0, 1.6, 1.2},
		LookupTimeout:    lipsync.DefaultLookupTimeout,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MotionCapacity <= 0 {
		c.MotionCapacity = def.MotionCapacity
	}
	if c.FlourishInterval <= 0 {
		c.FlourishInterval = def.FlourishInterval
	}
	if c.FlourishVariants == nil {
		c.FlourishVariants = def.FlourishVariants
	}
	if c.ExpressionHold <= 0 {
		c.ExpressionHold = def.ExpressionHold
	}
	if c.LookDuration <= 0 {
		c.LookDuration = def.LookDuration
	}
	if c.MoveFraction <= 0 || c.MoveFraction > 1 {
		c.MoveFraction = def.MoveFraction
	}
	if c.MaxMoveStep <= 0 {
		c.MaxMoveStep = def.MaxMoveStep
	}
	if c.UserPosition == [3]float64{} {
		c.UserPosition = def.UserPosition
	}
	if c.LookupTimeout <= 0 {
		c.LookupTimeout = def.LookupTimeout
	}
	return c
}

func (c Config) userPosition() mgl64.Vec3 {
	return mgl64.Vec3{c.UserPosition[0], c.UserPosition[1], c.UserPosition[2]}
}

type Option func(*Runtime)

// WithSink sends committed blendshape weights to the renderer.
func WithSink(s blendshape.Sink) Option {
	return func(r *Runtime) { r.sink = s }
}

func WithBus(b *bus.Bus) Option {
	return func(r *Runtime) { r.bus = b }
}

// WithPersister saves recorded motions and lets Warm reload them.
func WithPersister(p motion.Persister) Option {
	return func(r *Runtime) { r.persister = p }
}

func WithPoses(reg *pose.Registry) Option {
	return func(r *Runtime) { r.poses = reg }
}

// WithLookup replaces the default pinyin ideograph lookup.
func WithLookup(l lipsync.Lookup) Option {
	return func(r *Runtime) { r.lookup = l }
}

func WithLogger(log zerolog.Logger) Option {
	return func(r *Runtime) { r.base = log }
}
