package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawdhub/clawdhub/internal/bundle"
	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/internal/registry/database"
)

func TestResolveMatchesPublishedFingerprint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	v1 := env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
	v2 := env.mustPublish(t, "alice", "gif-encoder", "1.1.0", map[string]string{
		"SKILL.md": gifSkillMd,
		"extra.md": "More docs.\n",
	})

	resp, err := env.svc.Resolve(ctx, "gif-encoder", v1.Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, resp.Match)
	assert.Equal(t, v1.VersionID, resp.Match.ID)
	assert.Equal(t, "1.0.0", resp.Match.Version)
	require.NotNil(t, resp.LatestVersion)
	assert.Equal(t, v2.VersionID, resp.LatestVersion.ID)
}

func TestResolveUnknownHash(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	v1 := env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})

	resp, err := env.svc.Resolve(ctx, "gif-encoder", strings.Repeat("ab", 32))
	require.NoError(t, err)
	assert.Nil(t, resp.Match)
	require.NotNil(t, resp.LatestVersion)
	assert.Equal(t, v1.VersionID, resp.LatestVersion.ID)
}

func TestResolveUnknownSlug(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.svc.Resolve(context.Background(), "no-such-skill", strings.Repeat("ab", 32))
	require.NoError(t, err)
	assert.Nil(t, resp.Match)
	assert.Nil(t, resp.LatestVersion)
}

func TestResolveRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Resolve(context.Background(), "UPPER", strings.Repeat("ab", 32))
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = env.svc.Resolve(context.Background(), "gif-encoder", "not-a-digest")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestResolveRecomputeFallback(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()
	now := time.Now().UTC()

	// A version written without its fingerprint row forces the resolver
	// onto the recompute path.
	skill := &models.Skill{
		ID:               uuid.NewString(),
		Slug:             "manual-skill",
		DisplayName:      "Manual Skill",
		OwnerUserID:      "alice",
		Tags:             map[string]string{},
		ModerationStatus: models.ModerationActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, env.db.CreateSkill(ctx, nil, skill))

	sha := bundle.HashBytes([]byte(gifSkillMd))
	version := &models.SkillVersion{
		ID:      uuid.NewString(),
		SkillID: skill.ID,
		Version: "1.0.0",
		Files: []models.VersionFile{
			{Path: "SKILL.md", Size: int64(len(gifSkillMd)), SHA256: sha, StorageID: uuid.NewString()},
		},
		Fingerprint: bundle.Fingerprint([]bundle.FileDigest{{Path: "SKILL.md", SHA256: sha}}),
		CreatedBy:   "alice",
		CreatedAt:   now,
	}
	require.NoError(t, env.db.CreateVersion(ctx, nil, version))
	_, err := env.db.PatchSkill(ctx, nil, skill.ID, &database.SkillPatch{LatestVersionID: &version.ID})
	require.NoError(t, err)

	resp, err := env.svc.Resolve(ctx, "manual-skill", version.Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, resp.Match)
	assert.Equal(t, version.ID, resp.Match.ID)
}

func TestResolveSkipsSoftDeletedVersions(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	v1 := env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
	require.NoError(t, env.db.SetVersionSoftDeleted(ctx, nil, v1.VersionID, true))

	resp, err := env.svc.Resolve(ctx, "gif-encoder", v1.Fingerprint)
	require.NoError(t, err)
	assert.Nil(t, resp.Match)
}
