// Package ik solves joint chains toward world-space targets.
package ik

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/normanking/cortexmotion/internal/skeleton"
)

// Constraints limit a chain's joints. Angles are degrees.
type Constraints struct {
	// MinAngles and MaxAngles bound each joint's local Euler angles (x, y, z) when HasLimits is set.
	MinAngles mgl64.Vec3
	MaxAngles mgl64.Vec3
	HasLimits bool
	// MaxBend caps the rotation applied to a joint in one step. Zero means unlimited.
	MaxBend float64
}

// Chain is an immutable root-to-leaf list of bone roles. The last role is the end effector.
type Chain struct {
	name        string
	roles       []skeleton.BoneRole
	constraints *Constraints
}

func NewChain(name string, constraints *Constraints, roles ...skeleton.BoneRole) *Chain {
	c := &Chain{name: name, roles: append([]skeleton.BoneRole(nil), roles...)}
	if constraints != nil {
		cc := *constraints
		c.constraints = &cc
	}
	return c
}

func (c *Chain) Name() string { return c.name }

func (c *Chain) Roles() []skeleton.BoneRole {
	return append([]skeleton.BoneRole(nil), c.roles...)
}

// Constraints returns a copy of the chain's limits, or nil.
func (c *Chain) Constraints() *Constraints {
	if c.constraints == nil {
		return nil
	}
	cc := *c.constraints
	return &cc
}

func (c *Chain) Len() int { return len(c.roles) }

var (
	armLimits = &Constraints{
		MinAngles: mgl64.Vec3{-90, -120, -90},
		MaxAngles: mgl64.Vec3{90, 120, 90},
		HasLimits: true,
		MaxBend:   30,
	}
	legLimits = &Constraints{
		MinAngles: mgl64.Vec3{-120, -30, -30},
		MaxAngles: mgl64.Vec3{30, 30, 30},
		HasLimits: true,
		MaxBend:   20,
	}
	headLimits = &Constraints{
		MinAngles: mgl64.Vec3{-40, -70, -30},
		MaxAngles: mgl64.Vec3{40, 70, 30},
		HasLimits: true,
		MaxBend:   15,
	}
)

var (
	RightArm = NewChain("rightArm", armLimits, skeleton.RoleRightUpperArm, skeleton.RoleRightLowerArm, skeleton.RoleRightHand)
	LeftArm  = NewChain("leftArm", armLimits, skeleton.RoleLeftUpperArm, skeleton.RoleLeftLowerArm, skeleton.RoleLeftHand)
	RightLeg = NewChain("rightLeg", legLimits, skeleton.RoleRightUpperLeg, skeleton.RoleRightLowerLeg, skeleton.RoleRightFoot)
	LeftLeg  = NewChain("leftLeg", legLimits, skeleton.RoleLeftUpperLeg, skeleton.RoleLeftLowerLeg, skeleton.RoleLeftFoot)
	Head     = NewChain("head", headLimits, skeleton.RoleNeck, skeleton.RoleHead)
	Spine    = NewChain("spine", nil, skeleton.RoleHips, skeleton.RoleSpine, skeleton.RoleChest, skeleton.RoleNeck)
)

// ChainByName returns one of the predefined chains.
func ChainByName(name string) (*Chain, bool) {
	for _, c := range []*Chain{RightArm, LeftArm, RightLeg, LeftLeg, Head, Spine} {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}
