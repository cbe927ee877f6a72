package character

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexmotion/internal/blendshape"
	"github.com/normanking/cortexmotion/internal/bus"
	"github.com/normanking/cortexmotion/internal/command"
	"github.com/normanking/cortexmotion/internal/lipsync"
	"github.com/normanking/cortexmotion/internal/motion"
	"github.com/normanking/cortexmotion/internal/scheduler"
	"github.com/normanking/cortexmotion/internal/skeleton"
	"github.com/normanking/cortexmotion/internal/store"
)

const tick = 1.0 / 60

func newHumanoidRuntime(t *testing.T, opts ...Option) (*Runtime, *skeleton.Graph) {
	t.Helper()
	g := skeleton.NewHumanoid(skeleton.ConventionStandard)
	r := New(skeleton.NewRig(g), DefaultConfig(), opts...)
	t.Cleanup(r.Close)
	return r, g
}

func run(r *Runtime, seconds float64) {
	n := int(math.Ceil(seconds / tick))
	for i := 0; i < n; i++ {
		r.Update(tick)
	}
}

func bone(t *testing.T, g *skeleton.Graph, name string) skeleton.NodeID {
	t.Helper()
	id, ok := g.FindBone(name)
	require.True(t, ok, name)
	return id
}

// recorder collects bus events.
type recorder struct {
	mu     sync.Mutex
	events []bus.Event
}

func (rec *recorder) add(e bus.Event) {
	rec.mu.Lock()
	rec.events = append(rec.events, e)
	rec.mu.Unlock()
}

func (rec *recorder) has(t bus.EventType, name string) bool {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, e := range rec.events {
		if e.Type == t && (name == "" || e.Name == name) {
			return true
		}
	}
	return false
}

func TestRuntime_SetStateTogglesFlourish(t *testing.T) {
	r, _ := newHumanoidRuntime(t)
	require.Equal(t, StateIdle, r.State())
	assert.True(t, r.FlourishTimer().Active())

	r.SetState(StateSpeaking)
	assert.False(t, r.FlourishTimer().Active())

	r.SetState(StateIdle)
	assert.True(t, r.FlourishTimer().Active())
}

func TestRuntime_FlourishFiresOnlyWhenIdle(t *testing.T) {
	r, _ := newHumanoidRuntime(t)
	run(r, 3.1)
	assert.Equal(t, 1, r.FlourishTimer().Fired())

	r.SetState(StateThinking)
	run(r, 3.1)
	assert.Equal(t, 1, r.FlourishTimer().Fired())
}

func TestRuntime_PoseHoldsThenResets(t *testing.T) {
	r, _ := newHumanoidRuntime(t)

	require.True(t, r.Execute(command.Pose{Name: "smile", Duration: 0.5}))
	assert.Equal(t, StateGesturing, r.State())

	run(r, 0.3)
	assert.InDelta(t, 0.8, r.Cache().Get(blendshape.MouthSmileLeft), 1e-6)

	run(r, 0.4)
	assert.Zero(t, r.Cache().Get(blendshape.MouthSmileLeft))
	assert.Equal(t, StateIdle, r.State())
	assert.True(t, r.FlourishTimer().Active())
}

func TestRuntime_NewActionCancelsHold(t *testing.T) {
	r, _ := newHumanoidRuntime(t)

	require.True(t, r.Execute(command.Pose{Name: "smile", Duration: 5}))
	run(r, 0.3)
	require.Greater(t, r.Cache().Get(blendshape.MouthSmileLeft), float32(0))

	require.True(t, r.Execute(command.Expression{Name: "surprise"}))
	assert.Len(t, r.Scheduler().Active(), 1)

	r.Update(tick)
	assert.Zero(t, r.Cache().Get(blendshape.MouthSmileLeft))
	assert.Greater(t, r.Cache().Get(blendshape.EyeWideLeft), float32(0))

	// the expression is a short hold
	run(r, 0.6)
	assert.Zero(t, r.Cache().Get(blendshape.EyeWideLeft))
	assert.Equal(t, StateIdle, r.State())
}

func TestRuntime_UnknownPoseIsSkipped(t *testing.T) {
	r, _ := newHumanoidRuntime(t)
	assert.False(t, r.Execute(command.Pose{Name: "moonwalk"}))
	assert.False(t, r.Execute(command.Expression{Name: "smirk"}))
	assert.Equal(t, StateIdle, r.State())
	assert.Empty(t, r.Scheduler().Active())
}

func TestRuntime_ThinkingPoseEntersThinking(t *testing.T) {
	r, _ := newHumanoidRuntime(t)
	require.True(t, r.Execute(command.Pose{Name: "thinking", Duration: 1}))
	assert.Equal(t, StateThinking, r.State())
	assert.False(t, r.FlourishTimer().Active())
}

func TestRuntime_MoveReachesAndStepsEntity(t *testing.T) {
	r, g := newHumanoidRuntime(t)
	target := mgl64.Vec3{-0.6, 1.3, 0.3}

	require.True(t, r.Execute(command.Move{Target: target, Duration: 1}))
	assert.Equal(t, StateMoving, r.State())

	run(r, 1.2)
	assert.Equal(t, StateIdle, r.State())

	root := g.WorldTransform(bone(t, g, "Root")).Position
	assert.InDelta(t, DefaultConfig().MaxMoveStep, root.Len(), 1e-6)
	assert.InDelta(t, 0, root.Y(), 1e-9)
	assert.Less(t, root.X(), 0.0)

	hand := g.WorldTransform(bone(t, g, "RightHand")).Position
	for i := 0; i < 3; i++ {
		assert.False(t, math.IsNaN(hand[i]))
	}
	assert.Less(t, hand.Sub(target).Len(), 0.2)
}

func TestRuntime_MoveWithoutArmIsSkipped(t *testing.T) {
	g := skeleton.NewGraph()
	g.AddNode("Root", skeleton.InvalidNode, skeleton.Identity())
	r := New(skeleton.NewRig(g), DefaultConfig())
	defer r.Close()

	assert.False(t, r.Execute(command.Move{Target: mgl64.Vec3{1, 1, 1}}))
	assert.Equal(t, StateIdle, r.State())
}

func TestRuntime_NonFiniteParametersKeepTransformsFinite(t *testing.T) {
	r, g := newHumanoidRuntime(t)
	nan, inf := math.NaN(), math.Inf(1)

	assert.False(t, r.Execute(command.Move{Target: mgl64.Vec3{nan, 0, 0}, Duration: 1}))
	assert.False(t, r.Execute(command.Look{Target: command.LookPoint, Point: mgl64.Vec3{nan, 1, 1}}))
	assert.False(t, r.Execute(command.Look{Target: command.LookPoint, Point: mgl64.Vec3{0, inf, 1}}))
	assert.Equal(t, StateIdle, r.State())

	// a non-finite hold length falls back to the default
	require.True(t, r.Execute(command.Pose{Name: "smile", Duration: nan}))
	run(r, command.DefaultPoseDuration+0.5)
	assert.Equal(t, StateIdle, r.State())
	assert.Empty(t, r.Scheduler().Active())

	for i := 0; i < g.Len(); i++ {
		w := g.WorldTransform(skeleton.NodeID(i))
		assert.True(t, finiteVec(w.Position), "node %d position", i)
		assert.True(t, finiteVec(w.Rotation.V) && finite(w.Rotation.W), "node %d rotation", i)
	}
	_, err := json.Marshal(r.Snapshot())
	assert.NoError(t, err)
}

func TestSequence_MoveChainOffsetsFromCurrentRoot(t *testing.T) {
	r, g := newHumanoidRuntime(t)
	root := bone(t, g, "Root")
	moved := g.Transform(root)
	moved.Position = mgl64.Vec3{0.4, 0, -0.3}
	g.SetTransform(root, moved)

	offset := mgl64.Vec3{-0.2, -0.3, 0.2}
	seq := &motion.Sequence{Name: "reach", Steps: []motion.Step{
		motion.MoveChain{Chain: "rightArm", Offset: offset, Duration: 0.5},
	}}
	q := newSequence(seq, r.body, r.solver, r.library, r.log)
	f := scheduler.NewFrame(r.rig, r.Cache())

	p, ok := q.stepPart(seq.Steps[0], f).(*limbReach)
	require.True(t, ok)
	shoulder := g.WorldTransform(bone(t, g, "RightUpperArm")).Position
	assert.InDelta(t, 0, p.goal.Sub(shoulder.Add(offset)).Len(), 1e-9)
	assert.InDelta(t, 0.4, shoulder.X()+0.15, 1e-9)
}

func TestRuntime_LookUserTurnsHead(t *testing.T) {
	r, g := newHumanoidRuntime(t)
	require.True(t, r.Execute(command.Pose{Name: "smile", Duration: 2}))

	require.True(t, r.Execute(command.Look{Target: command.LookUser}))
	// look does not replace the hold
	assert.Equal(t, StateGesturing, r.State())
	assert.Len(t, r.Scheduler().Active(), 2)

	head := g.WorldTransform(bone(t, g, "Head")).Position
	want := DefaultConfig().userPosition().Sub(head).Normalize()
	got := r.Generator().LookDirection()
	assert.InDelta(t, want.Y(), got.Y(), 1e-9)
	assert.InDelta(t, want.Z(), got.Z(), 1e-9)

	run(r, 0.5)
	facing := g.WorldTransform(bone(t, g, "Head")).Rotation.Rotate(forward)
	assert.InDelta(t, want.X(), facing.X(), 0.05)
	assert.InDelta(t, want.Y(), facing.Y(), 0.05)
	assert.InDelta(t, want.Z(), facing.Z(), 0.05)
}

func TestRuntime_LookWithoutHeadTurnsEntity(t *testing.T) {
	g := skeleton.NewGraph()
	root := g.AddNode("Root", skeleton.InvalidNode, skeleton.Identity())
	r := New(skeleton.NewRig(g), DefaultConfig())
	defer r.Close()

	require.True(t, r.Execute(command.Look{Target: command.LookPoint, Point: mgl64.Vec3{2, 0, 0}}))
	run(r, 0.5)

	facing := g.WorldTransform(root).Rotation.Rotate(forward)
	assert.InDelta(t, 1, facing.X(), 1e-6)
	assert.InDelta(t, 0, facing.Z(), 1e-6)
}

func swing(n int, step float64) []motion.Frame {
	frames := make([]motion.Frame, n)
	for i := range frames {
		frames[i] = motion.Frame{Bones: map[string]motion.BoneKey{
			"RightLowerArm": {
				Position: mgl64.Vec3{-0.28, 0, 0},
				Rotation: mgl64.QuatRotate(float64(i)*step, mgl64.Vec3{0, 0, 1}),
			},
		}}
	}
	return frames
}

func TestRuntime_ComplexMotionPlaysLearned(t *testing.T) {
	r, g := newHumanoidRuntime(t)
	_, err := r.RecordMotion("swing", swing(10, 0.1), 30)
	require.NoError(t, err)
	require.True(t, r.HasMotion("swing"))
	assert.Equal(t, []string{"swing"}, r.ListLearnedMotions())

	require.True(t, r.Execute(command.ComplexMotion{Name: "swing"}))
	assert.Equal(t, StateGesturing, r.State())

	run(r, 0.15)
	elbow := bone(t, g, "RightLowerArm")
	assert.Greater(t, math.Abs(g.Transform(elbow).Rotation.V.Z()), 0.01)

	run(r, 0.5)
	assert.Equal(t, StateIdle, r.State())
	assert.Empty(t, r.Scheduler().Active())
}

func TestRuntime_ComplexMotionFallsBackToPose(t *testing.T) {
	r, _ := newHumanoidRuntime(t)

	require.True(t, r.Execute(command.ComplexMotion{Name: "smile", Duration: 1}))
	run(r, 0.3)
	assert.Greater(t, r.Cache().Get(blendshape.MouthSmileLeft), float32(0))

	assert.False(t, r.Execute(command.ComplexMotion{Name: "backflip"}))
}

func TestRuntime_StopMotionIsIdempotent(t *testing.T) {
	r, g := newHumanoidRuntime(t)
	_, err := r.RecordMotion("swing", swing(10, 0.1), 30)
	require.NoError(t, err)

	assert.False(t, r.StopMotion("swing"))
	assert.False(t, r.PlayMotion("unknown", 0, false))

	require.True(t, r.PlayMotion("swing", 0, true))
	run(r, 0.2)
	elbow := bone(t, g, "RightLowerArm")
	require.Greater(t, math.Abs(g.Transform(elbow).Rotation.V.Z()), 0.01)

	assert.True(t, r.StopMotion("swing"))
	assert.False(t, r.StopMotion("swing"))
	r.Update(tick)
	assert.InDelta(t, 0, g.Transform(elbow).Rotation.V.Z(), 1e-9)
}

func TestRuntime_PlayVariation(t *testing.T) {
	r, _ := newHumanoidRuntime(t)
	_, err := r.RecordMotion("swing", swing(10, 0.1), 30)
	require.NoError(t, err)

	require.True(t, r.PlayVariation("swing", 2, 0.1))
	assert.Len(t, r.Scheduler().Active(), 1)
	// a 0.15 s run entered 0.1 s in
	run(r, 0.1)
	assert.Empty(t, r.Scheduler().Active())
}

func TestRuntime_SpeakAnimatesMouthThenResets(t *testing.T) {
	r, _ := newHumanoidRuntime(t)

	u := r.Speak("hello")
	require.NotEmpty(t, u.Timings)
	assert.Equal(t, StateSpeaking, r.State())
	assert.True(t, r.Speaking())

	run(r, 0.1)
	assert.Greater(t, r.Cache().Get(lipsync.VisemeE.Shape()), float32(0))

	run(r, 0.6)
	assert.False(t, r.Speaking())
	assert.Equal(t, StateIdle, r.State())
	for _, name := range lipsync.MouthShapes() {
		assert.Zero(t, r.Cache().Get(name), name)
	}
}

func TestRuntime_IdeographLookupsPatchOnTick(t *testing.T) {
	lookup := lipsync.LookupFunc(func(context.Context, rune) (string, error) { return "o", nil })
	r, _ := newHumanoidRuntime(t, WithLookup(lookup))

	u := r.Speak("好好")
	require.Len(t, u.Pending, 2)
	require.Eventually(t, func() bool { return len(r.resolutions) == 2 }, 2*time.Second, 5*time.Millisecond)

	r.Update(tick)
	assert.Greater(t, r.Cache().Get(lipsync.VisemeO.Shape()), float32(0))
	assert.Zero(t, r.Cache().Get(lipsync.VisemeNeutral.Shape()))
}

func TestRuntime_StopLipSync(t *testing.T) {
	r, _ := newHumanoidRuntime(t)
	assert.False(t, r.StopLipSync())

	r.Speak("a long sentence to speak")
	run(r, 0.2)
	assert.True(t, r.StopLipSync())
	assert.False(t, r.StopLipSync())
	assert.Equal(t, StateIdle, r.State())

	r.Update(tick)
	for _, name := range lipsync.MouthShapes() {
		assert.Zero(t, r.Cache().Get(name), name)
	}
}

func TestRuntime_HandleText(t *testing.T) {
	r, _ := newHumanoidRuntime(t)

	clean := r.HandleText("Hello [ACTION:pose,wave,2.0] there [ACTION:look,user]")
	assert.Equal(t, "Hello  there", clean)
	assert.Equal(t, StateGesturing, r.State())
	assert.True(t, r.Speaking())
	assert.Len(t, r.Scheduler().Active(), 3)

	run(r, 0.5)
	assert.Greater(t, r.Cache().Get(blendshape.MouthSmileLeft), float32(0))
}

func TestRuntime_IdleActionReturnsToRest(t *testing.T) {
	r, g := newHumanoidRuntime(t)
	require.True(t, r.Execute(command.Pose{Name: "wave", Duration: 3}))
	run(r, 0.5)

	shoulder := bone(t, g, "RightUpperArm")
	require.Greater(t, 1-math.Abs(g.Transform(shoulder).Rotation.W), 1e-6)

	require.True(t, r.Execute(command.Idle{}))
	assert.Equal(t, StateIdle, r.State())
	r.Update(tick)

	assert.InDelta(t, 1, math.Abs(g.Transform(shoulder).Rotation.W), 1e-9)
	assert.Zero(t, r.Cache().Get(blendshape.MouthSmileLeft))
}

func TestRuntime_PublishesEvents(t *testing.T) {
	b := bus.New()
	defer b.Close()
	rec := &recorder{}
	b.Subscribe("", rec.add)

	cfg := DefaultConfig()
	cfg.MotionCapacity = 1
	g := skeleton.NewHumanoid(skeleton.ConventionStandard)
	r := New(skeleton.NewRig(g), cfg, WithBus(b))
	defer r.Close()

	require.True(t, r.Execute(command.Pose{Name: "smile", Duration: 0.2}))
	run(r, 0.3)

	_, err := r.RecordMotion("small", swing(3, 0.05), 30)
	require.NoError(t, err)
	_, err = r.RecordMotion("big", swing(10, 0.1), 30)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return rec.has(bus.EventStateChanged, "") &&
			rec.has(bus.EventActionStarted, "smile") &&
			rec.has(bus.EventActionFinished, "smile") &&
			rec.has(bus.EventMotionEvicted, "small")
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRuntime_PersistsRecordedMotions(t *testing.T) {
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	r, _ := newHumanoidRuntime(t, WithPersister(db))
	_, err = r.RecordMotion("swing", swing(5, 0.1), 30)
	require.NoError(t, err)

	names, err := db.Names(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"swing"}, names)

	fresh, _ := newHumanoidRuntime(t, WithPersister(db))
	n, err := fresh.Warm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, fresh.HasMotion("swing"))
}

func TestRuntime_Snapshot(t *testing.T) {
	r, _ := newHumanoidRuntime(t)
	r.Update(tick)

	s := r.Snapshot()
	assert.Equal(t, "idle", s.State)
	assert.Equal(t, uint64(1), s.Tick)
	assert.Contains(t, s.Bones, "RightHand")
	assert.Contains(t, s.Shapes, blendshape.EyeBlinkLeft)
	assert.InDelta(t, 1, s.LookDirection[2], 1e-9)
}

func TestState_String(t *testing.T) {
	for _, s := range []State{StateIdle, StateSpeaking, StateMoving, StateGesturing, StateThinking} {
		parsed, ok := ParseState(s.String())
		require.True(t, ok)
		assert.Equal(t, s, parsed)
	}
	assert.Equal(t, "unknown", State(42).String())
}
