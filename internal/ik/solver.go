package ik

import (
	"math"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"

	"github.com/normanking/cortexmotion/internal/metrics"
	"github.com/normanking/cortexmotion/internal/skeleton"
)

// alignedEpsilon is the cross-product magnitude below which a joint is treated as already aimed.
const alignedEpsilon = 1e-3

type Config struct {
	MaxIterations int     `mapstructure:"max_iterations"`
	Threshold     float64 `mapstructure:"threshold"`
	StepFactor    float64 `mapstructure:"step_factor"`
}

func DefaultConfig() Config {
	return Config{
		MaxIterations: 10,
		Threshold:     0.001,
		StepFactor:    0.1,
	}
}

// Result describes one Solve call. Running out of iterations is not a failure.
type Result struct {
	Iterations int
	Distance   float64
	Converged  bool
	// Skipped is set when the chain root or end effector does not resolve.
	Skipped bool
}

type Solver struct {
	cfg Config
	log zerolog.Logger
}

func NewSolver(cfg Config, log zerolog.Logger) *Solver {
	def := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.StepFactor <= 0 || cfg.StepFactor > 1 {
		cfg.StepFactor = def.StepFactor
	}
	return &Solver{cfg: cfg, log: log.With().Str("component", "ik").Logger()}
}

func (s *Solver) Config() Config { return s.cfg }

func resolveChain(chain *Chain, rig *skeleton.Rig) ([]skeleton.NodeID, bool) {
	roles := chain.roles
	if len(roles) < 2 {
		return nil, false
	}
	if _, ok := rig.Bone(roles[0]); !ok {
		return nil, false
	}
	if _, ok := rig.Bone(roles[len(roles)-1]); !ok {
		return nil, false
	}
	ids := make([]skeleton.NodeID, 0, len(roles))
	for _, r := range roles {
		if id, ok := rig.Bone(r); ok {
			ids = append(ids, id)
		}
	}
	return ids, true
}

// EndEffector returns the world position of the chain tip.
func EndEffector(chain *Chain, rig *skeleton.Rig) (mgl64.Vec3, bool) {
	if chain.Len() == 0 {
		return mgl64.Vec3{}, false
	}
	id, ok := rig.Bone(chain.roles[chain.Len()-1])
	if !ok {
		return mgl64.Vec3{}, false
	}
	return rig.WorldTransform(id).Position, true
}

// Solve rotates the chain's joints so its end effector approaches target.
// Each iteration walks leaf to root and turns every joint a StepFactor fraction
// of the way from "toward the tip" to "toward the target".
func (s *Solver) Solve(chain *Chain, target mgl64.Vec3, rig *skeleton.Rig) Result {
	if !finiteVec(target) {
		s.log.Warn().Str("chain", chain.name).Msg("Target is not finite, skipping")
		return Result{Skipped: true}
	}
	ids, ok := resolveChain(chain, rig)
	if !ok {
		s.log.Debug().Str("chain", chain.name).Msg("Chain does not resolve on this skeleton, skipping")
		return Result{Skipped: true}
	}
	tip := ids[len(ids)-1]

	var res Result
	for res.Iterations < s.cfg.MaxIterations {
		res.Distance = rig.WorldTransform(tip).Position.Sub(target).Len()
		if res.Distance < s.cfg.Threshold {
			res.Converged = true
			break
		}
		res.Iterations++
		for i := len(ids) - 1; i >= 0; i-- {
			s.rotateJoint(ids[i], tip, target, chain.constraints, rig)
		}
	}
	if !res.Converged {
		res.Distance = rig.WorldTransform(tip).Position.Sub(target).Len()
		res.Converged = res.Distance < s.cfg.Threshold
	}

	metrics.IKIterations.WithLabelValues(chain.name, strconv.FormatBool(res.Converged)).Observe(float64(res.Iterations))
	return res
}

func (s *Solver) rotateJoint(joint, tip skeleton.NodeID, target mgl64.Vec3, c *Constraints, rig *skeleton.Rig) {
	jw := rig.WorldTransform(joint)
	toTip := rig.WorldTransform(tip).Position.Sub(jw.Position)
	toTarget := target.Sub(jw.Position)
	if toTip.Len() < 1e-9 || toTarget.Len() < 1e-9 {
		return
	}

	a, b := toTip.Normalize(), toTarget.Normalize()
	axis := a.Cross(b)
	if axis.Len() < alignedEpsilon {
		return
	}

	angle := math.Acos(mgl64.Clamp(a.Dot(b), -1, 1)) * s.cfg.StepFactor
	if c != nil && c.MaxBend > 0 {
		angle = math.Min(angle, mgl64.DegToRad(c.MaxBend))
	}
	if math.IsNaN(angle) || math.IsInf(angle, 0) || !finiteVec(axis) {
		return
	}
	delta := mgl64.QuatRotate(angle, axis.Normalize())

	parentRot := mgl64.QuatIdent()
	if p := rig.Parent(joint); p != skeleton.InvalidNode {
		parentRot = rig.WorldTransform(p).Rotation
	}

	local := rig.Transform(joint)
	local.Rotation = parentRot.Inverse().Mul(delta).Mul(parentRot).Mul(local.Rotation).Normalize()
	if c != nil && c.HasLimits {
		local.Rotation = ClampEuler(local.Rotation, c.MinAngles, c.MaxAngles)
	}
	rig.SetTransform(joint, local)
}

func finiteVec(v mgl64.Vec3) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
