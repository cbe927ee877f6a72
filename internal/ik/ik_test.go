package ik

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexmotion/internal/skeleton"
)

// twoLinkRig is a straight arm along +X: shoulder at the origin, two unit links.
func twoLinkRig() (*skeleton.Rig, *skeleton.Graph) {
	g := skeleton.NewGraph()
	at := func(x float64) skeleton.Transform {
		t := skeleton.Identity()
		t.Position = mgl64.Vec3{x, 0, 0}
		return t
	}
	upper := g.AddNode("RightUpperArm", skeleton.InvalidNode, at(0))
	lower := g.AddNode("RightLowerArm", upper, at(1))
	g.AddNode("RightHand", lower, at(1))
	return skeleton.NewRig(g), g
}

var testChain = NewChain("test", nil, skeleton.RoleRightUpperArm, skeleton.RoleRightLowerArm, skeleton.RoleRightHand)

func assertFinite(t *testing.T, g *skeleton.Graph) {
	t.Helper()
	for i := 0; i < g.Len(); i++ {
		w := g.WorldTransform(skeleton.NodeID(i))
		for _, v := range []float64{w.Position[0], w.Position[1], w.Position[2], w.Rotation.W, w.Rotation.V[0], w.Rotation.V[1], w.Rotation.V[2]} {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "node %d has non-finite transform", i)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	s := NewSolver(Config{}, zerolog.Nop())
	assert.Equal(t, DefaultConfig(), s.Config())
	assert.Equal(t, 10, s.Config().MaxIterations)
	assert.Equal(t, 0.001, s.Config().Threshold)
	assert.Equal(t, 0.1, s.Config().StepFactor)
}

func TestSolve_ConvergesOnReachableTarget(t *testing.T) {
	rig, g := twoLinkRig()
	s := NewSolver(Config{MaxIterations: 200, StepFactor: 1}, zerolog.Nop())
	target := mgl64.Vec3{1.2, 0.8, 0}

	res := s.Solve(testChain, target, rig)

	assert.True(t, res.Converged)
	assert.Less(t, res.Distance, 0.001)
	assert.LessOrEqual(t, res.Iterations, 200)
	tip, ok := EndEffector(testChain, rig)
	require.True(t, ok)
	assert.InDelta(t, 0, tip.Sub(target).Len(), 0.001)
	assertFinite(t, g)
}

func TestSolve_DampedStepMovesTowardTarget(t *testing.T) {
	rig, _ := twoLinkRig()
	s := NewSolver(DefaultConfig(), zerolog.Nop())
	target := mgl64.Vec3{1.2, 0.8, 0}
	before, _ := EndEffector(testChain, rig)

	res := s.Solve(testChain, target, rig)

	after, _ := EndEffector(testChain, rig)
	assert.Less(t, after.Sub(target).Len(), before.Sub(target).Len())
	assert.Equal(t, 10, res.Iterations)
}

func TestSolve_UnreachableStopsAtCap(t *testing.T) {
	rig, g := twoLinkRig()
	s := NewSolver(DefaultConfig(), zerolog.Nop())

	res := s.Solve(testChain, mgl64.Vec3{3, 3, 0}, rig)
	assert.False(t, res.Converged)
	assert.Equal(t, 10, res.Iterations)
	assertFinite(t, g)
}

func TestSolve_AlignedTargetSkipsRotation(t *testing.T) {
	rig, g := twoLinkRig()
	s := NewSolver(Config{StepFactor: 1}, zerolog.Nop())

	res := s.Solve(testChain, mgl64.Vec3{5, 0, 0}, rig)
	assert.False(t, res.Converged)
	assert.InDelta(t, 3.0, res.Distance, 1e-9)
	for i := 0; i < g.Len(); i++ {
		assert.Equal(t, mgl64.QuatIdent(), g.Transform(skeleton.NodeID(i)).Rotation)
	}
	assertFinite(t, g)
}

func TestSolve_MissingChainIsNoop(t *testing.T) {
	rig := skeleton.NewRig(skeleton.NewGraph())
	res := NewSolver(DefaultConfig(), zerolog.Nop()).Solve(RightArm, mgl64.Vec3{1, 1, 1}, rig)
	assert.True(t, res.Skipped)
	assert.Zero(t, res.Iterations)
}

func TestSolve_NonFiniteTargetIsSkipped(t *testing.T) {
	rig, g := twoLinkRig()
	s := NewSolver(DefaultConfig(), zerolog.Nop())
	for _, target := range []mgl64.Vec3{{math.NaN(), 0, 0}, {0, math.Inf(1), 0}} {
		res := s.Solve(testChain, target, rig)
		assert.True(t, res.Skipped)
		assert.Zero(t, res.Iterations)
	}
	for i := 0; i < g.Len(); i++ {
		assert.Equal(t, mgl64.QuatIdent(), g.Transform(skeleton.NodeID(i)).Rotation)
	}
	assertFinite(t, g)
}

func TestSolve_EulerLimitsHoldJointsFixed(t *testing.T) {
	rig, _ := twoLinkRig()
	locked := NewChain("locked", &Constraints{HasLimits: true}, testChain.Roles()...)
	s := NewSolver(Config{StepFactor: 1}, zerolog.Nop())

	s.Solve(locked, mgl64.Vec3{1.2, 0.8, 0}, rig)

	tip, _ := EndEffector(locked, rig)
	assert.InDelta(t, 2.0, tip.X(), 1e-6)
	assert.InDelta(t, 0.0, tip.Y(), 1e-6)
}

func TestSolve_MaxBendCapsStep(t *testing.T) {
	rig, g := twoLinkRig()
	bent := NewChain("bent", &Constraints{MaxBend: 1}, testChain.Roles()...)
	s := NewSolver(Config{MaxIterations: 1, StepFactor: 1}, zerolog.Nop())

	s.Solve(bent, mgl64.Vec3{0, 2, 0}, rig)

	upper, _ := g.FindBone("RightUpperArm")
	q := g.Transform(upper).Rotation
	angle := 2 * math.Acos(mgl64.Clamp(math.Abs(q.W), -1, 1))
	assert.LessOrEqual(t, angle, mgl64.DegToRad(1)+1e-9)
	assert.Greater(t, angle, 0.0)
}

func TestClampEuler(t *testing.T) {
	q := mgl64.QuatRotate(math.Pi/2, axisZ)
	clamped := ClampEuler(q, mgl64.Vec3{-45, -45, -45}, mgl64.Vec3{45, 45, 45})
	assert.InDelta(t, math.Pi/4, ToEuler(clamped).Z(), 1e-9)

	e := mgl64.Vec3{0.3, -0.2, 0.5}
	back := ToEuler(FromEuler(e))
	assert.InDelta(t, e.X(), back.X(), 1e-9)
	assert.InDelta(t, e.Y(), back.Y(), 1e-9)
	assert.InDelta(t, e.Z(), back.Z(), 1e-9)
}

func TestLimbMove_EasesThenArrives(t *testing.T) {
	rig, _ := twoLinkRig()
	s := NewSolver(Config{MaxIterations: 200, StepFactor: 1}, zerolog.Nop())
	goal := mgl64.Vec3{1.2, 0.8, 0}

	m, ok := s.NewLimbMove(testChain, rig, goal, 1.0)
	require.True(t, ok)

	assert.False(t, m.Step(0.25, rig))
	expected := mgl64.Vec3{2, 0, 0}.Add(goal.Sub(mgl64.Vec3{2, 0, 0}).Mul(EaseInOutCubic(0.25)))
	assert.InDelta(t, 0, m.Target().Sub(expected).Len(), 1e-9)

	done := false
	for i := 0; i < 100 && !done; i++ {
		done = m.Step(1.0/60, rig)
	}
	require.True(t, done)
	tip, _ := EndEffector(testChain, rig)
	assert.InDelta(t, 0, tip.Sub(goal).Len(), 0.001)
}

func TestLimbMove_UnresolvedChain(t *testing.T) {
	rig := skeleton.NewRig(skeleton.NewGraph())
	_, ok := NewSolver(DefaultConfig(), zerolog.Nop()).NewLimbMove(RightArm, rig, mgl64.Vec3{}, 1)
	assert.False(t, ok)
}

func TestEaseInOutCubic(t *testing.T) {
	assert.Equal(t, 0.0, EaseInOutCubic(0))
	assert.Equal(t, 0.5, EaseInOutCubic(0.5))
	assert.Equal(t, 1.0, EaseInOutCubic(1))
}

func TestChainByName(t *testing.T) {
	c, ok := ChainByName("rightArm")
	require.True(t, ok)
	assert.Equal(t, skeleton.RoleRightHand, c.Roles()[c.Len()-1])
	_, ok = ChainByName("tail")
	assert.False(t, ok)
}
