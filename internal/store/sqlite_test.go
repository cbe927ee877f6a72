package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexmotion/internal/motion"
)

func frames(n int) []motion.Frame {
	out := make([]motion.Frame, n)
	for i := range out {
		out[i] = motion.Frame{Bones: map[string]motion.BoneKey{
			"Head": {
				Position: mgl64.Vec3{0, float64(i), 0},
				Rotation: mgl64.QuatRotate(0.1*float64(i), mgl64.Vec3{0, 1, 0}),
			},
		}}
	}
	return out
}

func TestSQLite_RoundTripThroughLibrary(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "motions", "motions.db")

	db, err := Open(path)
	require.NoError(t, err)

	lib := motion.NewLibrary(0, zerolog.Nop(), motion.WithPersister(db))
	_, err = lib.Record("nod", frames(5), 30)
	require.NoError(t, err)
	_, err = lib.Record("tilt", frames(3), 30)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	names, err := db.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"nod", "tilt"}, names)

	warm := motion.NewLibrary(0, zerolog.Nop(), motion.WithPersister(db))
	n, err := warm.Warm(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	nod, ok := warm.Get("nod")
	require.True(t, ok)
	assert.Len(t, nod.Frames, 5)
	assert.InDelta(t, 4.0/30, nod.Duration, 1e-12)
	assert.Equal(t, []string{"Head"}, nod.AffectedBones)
	assert.InDelta(t, 3.0, nod.Frames[3].Bones["Head"].Position.Y(), 1e-12)
}

func TestSQLite_Delete(t *testing.T) {
	ctx := context.Background()
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	lib := motion.NewLibrary(0, zerolog.Nop(), motion.WithPersister(db))
	_, _ = lib.Record("a", frames(2), 30)
	lib.Remove("a")

	loaded, err := db.LoadMotions(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	assert.ErrorIs(t, db.SaveMotion(ctx, nil), ErrNilMotion)
}

func TestSQLite_LoadRejectsBadTimestamp(t *testing.T) {
	ctx := context.Background()
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.db.ExecContext(ctx, `
	INSERT INTO motions (name, framerate, duration, complexity, affected_bones, frames, recorded_at)
	VALUES ('nod', 30, 1, 0.1, 'Head', '[]', 'yesterday')
	`)
	require.NoError(t, err)

	_, err = db.LoadMotions(ctx)
	assert.ErrorContains(t, err, "recorded_at")
}
