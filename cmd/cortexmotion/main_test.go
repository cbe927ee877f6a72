package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexmotion/internal/config"
	"github.com/normanking/cortexmotion/internal/skeleton"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseCmd(t *testing.T) {
	out, err := execute(t, "parse", "Hello", "[ACTION:pose,wave,2.0]", "there")
	require.NoError(t, err)
	assert.Contains(t, out, `clean: "Hello  there"`)
	assert.Contains(t, out, "0: pose")
	assert.Contains(t, out, "wave")
}

func TestPhonemesCmd(t *testing.T) {
	out, err := execute(t, "phonemes", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "script: latin")
	assert.Contains(t, out, "PHONEME")
	assert.Contains(t, out, "E")
}

func TestMotionsCmd_EmptyStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cortexmotion.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  path: "+filepath.Join(dir, "motions.db")+"\n"), 0644))

	out, err := execute(t, "--config", path, "motions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No motions recorded.")

	_, err = execute(t, "--config", path, "motions", "delete", "missing")
	assert.NoError(t, err)
}

func TestLoadSkeleton(t *testing.T) {
	g, err := loadSkeleton(config.SkeletonConfig{Convention: "localized"})
	require.NoError(t, err)
	_, ok := g.FindBone(skeleton.ConventionLocalized.BoneName(skeleton.RoleHips))
	assert.True(t, ok)

	_, err = loadSkeleton(config.SkeletonConfig{GLTF: filepath.Join(t.TempDir(), "missing.gltf")})
	assert.Error(t, err)
}
