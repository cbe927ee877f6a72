package command

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParse_RemovesTokensInOrder(t *testing.T) {
	clean, actions := Parse("Hello [ACTION:pose,wave,2.0] there [ACTION:look,user]")

	assert.Equal(t, "Hello  there", clean)
	assert.Equal(t, []Action{
		Pose{Name: "wave", Duration: 2.0},
		Look{Target: LookUser},
	}, actions)
}

func TestParse_NoTokens(t *testing.T) {
	clean, actions := Parse("  just talking  ")
	assert.Equal(t, "just talking", clean)
	assert.Empty(t, actions)
}

func TestParse_AllTypes(t *testing.T) {
	text := "[ACTION:pose,Nod] [ACTION:move,1,0,-2] [ACTION:move,1,2,3,0.5] " +
		"[ACTION:look,forward] [ACTION:look,point,0,1.5,2] [ACTION:look,1,2,3] " +
		"[ACTION:expression,happy] [ACTION:complexMotion,dance,4] [ACTION:complex_motion,spin] [ACTION:idle]"

	clean, actions := NewParser(zerolog.Nop()).Parse(text)
	assert.Empty(t, clean)
	assert.Equal(t, []Action{
		Pose{Name: "nod", Duration: DefaultPoseDuration},
		Move{Target: mgl64.Vec3{1, 0, -2}, Duration: DefaultMoveDuration},
		Move{Target: mgl64.Vec3{1, 2, 3}, Duration: 0.5},
		Look{Target: LookForward},
		Look{Target: LookPoint, Point: mgl64.Vec3{0, 1.5, 2}},
		Look{Target: LookPoint, Point: mgl64.Vec3{1, 2, 3}},
		Expression{Name: "happy"},
		ComplexMotion{Name: "dance", Duration: 4},
		ComplexMotion{Name: "spin"},
		Idle{},
	}, actions)
}

func TestParse_DropsMalformed(t *testing.T) {
	cases := []string{
		"[ACTION:fly,high]",
		"[ACTION:pose]",
		"[ACTION:pose,wave,soon]",
		"[ACTION:pose,wave,-1]",
		"[ACTION:move,1,2]",
		"[ACTION:move,a,b,c]",
		"[ACTION:look,sideways]",
		"[ACTION:look,point,1,2]",
		"[ACTION:expression]",
		"[ACTION:idle,now]",
		"[ACTION:]",
		"[ACTION:move,NaN,0,0]",
		"[ACTION:move,0,+Inf,0]",
		"[ACTION:look,point,NaN,1,1]",
		"[ACTION:look,1,-Inf,1]",
		"[ACTION:pose,smile,NaN]",
		"[ACTION:pose,smile,Inf]",
		"[ACTION:complexMotion,dance,NaN]",
	}
	for _, c := range cases {
		clean, actions := Parse("a " + c + " b")
		assert.Equal(t, "a  b", clean, c)
		assert.Empty(t, actions, c)
	}
}

func TestParse_KeepsValidAroundMalformed(t *testing.T) {
	clean, actions := Parse("[ACTION:bogus]Hi[ACTION:expression,sad]")
	assert.Equal(t, "Hi", clean)
	assert.Equal(t, []Action{Expression{Name: "sad"}}, actions)
}

func TestActionTypes(t *testing.T) {
	assert.Equal(t, TypePose, Pose{}.Type())
	assert.Equal(t, TypeComplexMotion, ComplexMotion{}.Type())
	assert.Equal(t, TypeIdle, Idle{}.Type())
}
