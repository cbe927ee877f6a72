package skeleton

import "github.com/go-gl/mathgl/mgl64"

type humanoidBone struct {
	role   BoneRole
	parent BoneRole
	offset mgl64.Vec3
}

// humanoidLayout is a T-pose facing +Z with the character's left along +X. Parents precede children.
var humanoidLayout = []humanoidBone{
	{RoleRoot, -1, mgl64.Vec3{0, 0, 0}},
	{RoleHips, RoleRoot, mgl64.Vec3{0, 1.0, 0}},
	{RoleSpine, RoleHips, mgl64.Vec3{0, 0.1, 0}},
	{RoleChest, RoleSpine, mgl64.Vec3{0, 0.15, 0}},
	{RoleNeck, RoleChest, mgl64.Vec3{0, 0.2, 0}},
	{RoleHead, RoleNeck, mgl64.Vec3{0, 0.1, 0}},
	{RoleLeftEye, RoleHead, mgl64.Vec3{0.03, 0.05, 0.08}},
	{RoleRightEye, RoleHead, mgl64.Vec3{-0.03, 0.05, 0.08}},
	{RoleLeftShoulder, RoleChest, mgl64.Vec3{0.05, 0.15, 0}},
	{RoleLeftUpperArm, RoleLeftShoulder, mgl64.Vec3{0.1, 0, 0}},
	{RoleLeftLowerArm, RoleLeftUpperArm, mgl64.Vec3{0.28, 0, 0}},
	{RoleLeftHand, RoleLeftLowerArm, mgl64.Vec3{0.25, 0, 0}},
	{RoleRightShoulder, RoleChest, mgl64.Vec3{-0.05, 0.15, 0}},
	{RoleRightUpperArm, RoleRightShoulder, mgl64.Vec3{-0.1, 0, 0}},
	{RoleRightLowerArm, RoleRightUpperArm, mgl64.Vec3{-0.28, 0, 0}},
	{RoleRightHand, RoleRightLowerArm, mgl64.Vec3{-0.25, 0, 0}},
	{RoleLeftUpperLeg, RoleHips, mgl64.Vec3{0.1, -0.05, 0}},
	{RoleLeftLowerLeg, RoleLeftUpperLeg, mgl64.Vec3{0, -0.45, 0}},
	{RoleLeftFoot, RoleLeftLowerLeg, mgl64.Vec3{0, -0.42, 0}},
	{RoleRightUpperLeg, RoleHips, mgl64.Vec3{-0.1, -0.05, 0}},
	{RoleRightLowerLeg, RoleRightUpperLeg, mgl64.Vec3{0, -0.45, 0}},
	{RoleRightFoot, RoleRightLowerLeg, mgl64.Vec3{0, -0.42, 0}},
}

// NewHumanoid builds a reference humanoid skeleton named after convention.
func NewHumanoid(convention Convention) *Graph {
	g := NewGraph()
	ids := make(map[BoneRole]NodeID, len(humanoidLayout))
	for _, b := range humanoidLayout {
		parent := InvalidNode
		if id, ok := ids[b.parent]; ok {
			parent = id
		}
		t := Identity()
		t.Position = b.offset
		ids[b.role] = g.AddNode(convention.BoneName(b.role), parent, t)
	}
	return g
}
