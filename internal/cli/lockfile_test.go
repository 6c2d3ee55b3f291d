package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockfileRoundTrip(t *testing.T) {
	workdir := t.TempDir()

	lock, err := LoadLockfile(workdir)
	require.NoError(t, err)
	assert.Empty(t, lock.Skills)

	now := time.Now().UTC().Truncate(time.Second)
	lock.Skills["gif-encoder"] = LockEntry{Version: "1.0.0", InstalledAt: now}
	require.NoError(t, SaveLockfile(workdir, lock))

	loaded, err := LoadLockfile(workdir)
	require.NoError(t, err)
	require.Contains(t, loaded.Skills, "gif-encoder")
	assert.Equal(t, "1.0.0", loaded.Skills["gif-encoder"].Version)
	assert.True(t, loaded.Skills["gif-encoder"].InstalledAt.Equal(now))
}

func TestOriginMarkerRoundTrip(t *testing.T) {
	skillDir := filepath.Join(t.TempDir(), "gif-encoder")

	marker, err := ReadOriginMarker(skillDir)
	require.NoError(t, err)
	assert.Nil(t, marker)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, WriteOriginMarker(skillDir, &OriginMarker{
		Version:          1,
		Registry:         "https://clawdhub.com",
		Slug:             "gif-encoder",
		InstalledVersion: "1.0.0",
		InstalledAt:      now,
	}))

	loaded, err := ReadOriginMarker(skillDir)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 1, loaded.Version)
	assert.Equal(t, "gif-encoder", loaded.Slug)
	assert.Equal(t, "1.0.0", loaded.InstalledVersion)
}
