// Package command extracts [ACTION:type,param,...] tokens from conversational text.
package command

import "github.com/go-gl/mathgl/mgl64"

type ActionType string

const (
	TypePose          ActionType = "pose"
	TypeMove          ActionType = "move"
	TypeLook          ActionType = "look"
	TypeExpression    ActionType = "expression"
	TypeComplexMotion ActionType = "complexMotion"
	TypeIdle          ActionType = "idle"
)

const (
	DefaultPoseDuration = 2.0
	DefaultMoveDuration = 1.0
)

// Action is one parsed command.
type Action interface {
	Type() ActionType
}

type Pose struct {
	Name     string
	Duration float64
}

type Move struct {
	Target   mgl64.Vec3
	Duration float64
}

type LookTarget string

const (
	LookUser    LookTarget = "user"
	LookForward LookTarget = "forward"
	LookPoint   LookTarget = "point"
)

// Look carries Point only when Target is LookPoint.
type Look struct {
	Target LookTarget
	Point  mgl64.Vec3
}

type Expression struct {
	Name string
}

// ComplexMotion plays a learned motion. Zero Duration keeps the recorded length.
type ComplexMotion struct {
	Name     string
	Duration float64
}

type Idle struct{}

func (Pose) Type() ActionType          { return TypePose }
func (Move) Type() ActionType          { return TypeMove }
func (Look) Type() ActionType          { return TypeLook }
func (Expression) Type() ActionType    { return TypeExpression }
func (ComplexMotion) Type() ActionType { return TypeComplexMotion }
func (Idle) Type() ActionType          { return TypeIdle }
