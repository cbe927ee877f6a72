package ik

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/normanking/cortexmotion/internal/skeleton"
)

// LimbMove drives a chain's end effector along an eased path, one Solve per step.
type LimbMove struct {
	solver   *Solver
	chain    *Chain
	from     mgl64.Vec3
	goal     mgl64.Vec3
	duration float64
	elapsed  float64
	last     Result
}

// NewLimbMove starts at the chain's current end effector. It returns false when the chain does not resolve.
func (s *Solver) NewLimbMove(chain *Chain, rig *skeleton.Rig, goal mgl64.Vec3, duration float64) (*LimbMove, bool) {
	from, ok := EndEffector(chain, rig)
	if !ok {
		return nil, false
	}
	return &LimbMove{solver: s, chain: chain, from: from, goal: goal, duration: duration}, true
}

func (m *LimbMove) Chain() *Chain { return m.chain }

func (m *LimbMove) Goal() mgl64.Vec3 { return m.goal }

// Target is the point the path is at after the time stepped so far.
func (m *LimbMove) Target() mgl64.Vec3 {
	if m.duration <= 0 {
		return m.goal
	}
	t := EaseInOutCubic(math.Min(m.elapsed/m.duration, 1))
	return m.from.Add(m.goal.Sub(m.from).Mul(t))
}

// Step advances by dt and solves toward the new path point. It reports true once the path is complete.
func (m *LimbMove) Step(dt float64, rig *skeleton.Rig) bool {
	m.elapsed += dt
	m.last = m.solver.Solve(m.chain, m.Target(), rig)
	return m.duration <= 0 || m.elapsed >= m.duration
}

func (m *LimbMove) LastResult() Result { return m.last }

func EaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}
