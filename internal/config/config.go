// Package config provides configuration management for cortexmotion
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/normanking/cortexmotion/internal/character"
	"github.com/normanking/cortexmotion/internal/logging"
	"github.com/normanking/cortexmotion/internal/scheduler"
)

const EnvPrefix = "CORTEXMOTION"

// Config holds all application configuration
type Config struct {
	Logging   logging.Config   `mapstructure:"logging"`
	Character character.Config `mapstructure:"character"`
	Skeleton  SkeletonConfig   `mapstructure:"skeleton"`
	Poses     PosesConfig      `mapstructure:"poses"`
	Store     StoreConfig      `mapstructure:"store"`
	Stream    StreamConfig     `mapstructure:"stream"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Tick      TickConfig       `mapstructure:"tick"`
}

// SkeletonConfig selects the model. An empty GLTF path uses the reference humanoid.
type SkeletonConfig struct {
	GLTF       string `mapstructure:"gltf"`
	Convention string `mapstructure:"convention"` // standard or localized, for the reference humanoid
}

type PosesConfig struct {
	Dir   string `mapstructure:"dir"`
	Watch bool   `mapstructure:"watch"`
}

// StoreConfig configures learned-motion persistence. An empty path disables it.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type StreamConfig struct {
	Addr string `mapstructure:"addr"`
	// FrameEvery broadcasts a snapshot every n ticks, 0 disables frames.
	FrameEvery int `mapstructure:"frame_every"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type TickConfig struct {
	Rate    float64 `mapstructure:"rate"`     // Hz
	MaxStep float64 `mapstructure:"max_step"` // seconds
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Logging:   *logging.DefaultConfig(),
		Character: character.DefaultConfig(),
		Skeleton:  SkeletonConfig{Convention: "standard"},
		Poses:     PosesConfig{Watch: true},
		Store:     StoreConfig{Path: "data/motions.db"},
		Stream:    StreamConfig{Addr: ":8765", FrameEvery: 2},
		Metrics:   MetricsConfig{Addr: ":9102"},
		Tick:      TickConfig{Rate: scheduler.DefaultRate, MaxStep: scheduler.MaxStep},
	}
}

// Load reads configuration from path (when set) and CORTEXMOTION_* environment variables
// over the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setDefaults registers every leaf key so environment overrides apply without a file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("logging.log_dir", cfg.Logging.LogDir)
	v.SetDefault("logging.level", string(cfg.Logging.Level))
	v.SetDefault("logging.console", cfg.Logging.Console)

	c := cfg.Character
	v.SetDefault("character.ik.max_iterations", c.IK.MaxIterations)
	v.SetDefault("character.ik.threshold", c.IK.Threshold)
	v.SetDefault("character.ik.step_factor", c.IK.StepFactor)
	v.SetDefault("character.procedural.breathing_speed", c.Procedural.BreathingSpeed)
	v.SetDefault("character.procedural.sway_speed", c.Procedural.SwaySpeed)
	v.SetDefault("character.procedural.sway_amplitude", c.Procedural.SwayAmplitude)
	v.SetDefault("character.procedural.blink_speed", c.Procedural.BlinkSpeed)
	v.SetDefault("character.procedural.blink_interval", c.Procedural.BlinkInterval)
	v.SetDefault("character.procedural.blink_duration", c.Procedural.BlinkDuration)
	v.SetDefault("character.motion_capacity", c.MotionCapacity)
	v.SetDefault("character.flourish_interval", c.FlourishInterval)
	v.SetDefault("character.flourish_variants", c.FlourishVariants)
	v.SetDefault("character.expression_hold", c.ExpressionHold)
	v.SetDefault("character.look_duration", c.LookDuration)
	v.SetDefault("character.move_fraction", c.MoveFraction)
	v.SetDefault("character.max_move_step", c.MaxMoveStep)
	v.SetDefault("character.user_position", c.UserPosition[:])
	v.SetDefault("character.lookup_timeout", c.LookupTimeout)

	v.SetDefault("skeleton.gltf", cfg.Skeleton.GLTF)
	v.SetDefault("skeleton.convention", cfg.Skeleton.Convention)
	v.SetDefault("poses.dir", cfg.Poses.Dir)
	v.SetDefault("poses.watch", cfg.Poses.Watch)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("stream.addr", cfg.Stream.Addr)
	v.SetDefault("stream.frame_every", cfg.Stream.FrameEvery)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
	v.SetDefault("tick.rate", cfg.Tick.Rate)
	v.SetDefault("tick.max_step", cfg.Tick.MaxStep)
}

var (
	ErrTickRate   = errors.New("tick rate must be positive")
	ErrConvention = errors.New("unknown skeleton convention")
)

func (c *Config) Validate() error {
	if c.Tick.Rate <= 0 {
		return fmt.Errorf("%w: %v", ErrTickRate, c.Tick.Rate)
	}
	if c.Tick.MaxStep <= 0 {
		c.Tick.MaxStep = scheduler.MaxStep
	}
	switch c.Skeleton.Convention {
	case "", "standard", "localized":
	default:
		return fmt.Errorf("%w: %q", ErrConvention, c.Skeleton.Convention)
	}
	if c.Character.LookupTimeout < 0 {
		c.Character.LookupTimeout = 0
	}
	return nil
}

// LookupTimeout is the per-ideograph lookup budget, never zero.
func (c *Config) LookupTimeout() time.Duration {
	if c.Character.LookupTimeout > 0 {
		return c.Character.LookupTimeout
	}
	return character.DefaultConfig().LookupTimeout
}
