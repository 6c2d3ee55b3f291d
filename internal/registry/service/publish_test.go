package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawdhub/clawdhub/internal/bundle"
	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/internal/registry/database"
)

func TestPublishCreatesSkill(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	resp := env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{
		"SKILL.md":  gifSkillMd,
		"frames.py": "def encode(frames): ...\n",
	})
	assert.NotEmpty(t, resp.SkillID)
	assert.NotEmpty(t, resp.VersionID)

	skill, err := env.db.GetSkillBySlug(ctx, nil, "gif-encoder")
	require.NoError(t, err)
	assert.Equal(t, "alice", skill.OwnerUserID)
	assert.Equal(t, resp.VersionID, skill.LatestVersionID)
	assert.Equal(t, resp.VersionID, skill.Tags[models.TagLatest])
	assert.Equal(t, "Encodes animated GIF images from frame sequences.", skill.Summary)
	assert.Equal(t, int64(1), skill.Stats.Versions)

	version, err := env.db.GetVersion(ctx, nil, resp.VersionID)
	require.NoError(t, err)
	assert.Len(t, version.Files, 2)
	assert.Equal(t, models.ChangelogSourceAuto, version.ChangelogSource)

	digests := make([]bundle.FileDigest, 0, len(version.Files))
	for _, f := range version.Files {
		digests = append(digests, bundle.FileDigest{Path: f.Path, SHA256: f.SHA256})
	}
	assert.Equal(t, bundle.Fingerprint(digests), resp.Fingerprint)

	emb, err := env.db.GetLatestEmbedding(ctx, nil, skill.ID)
	require.NoError(t, err)
	assert.True(t, emb.IsLatest)
	assert.Equal(t, models.VisibilityLatest, emb.Visibility)
	assert.Equal(t, resp.VersionID, emb.VersionID)
}

func TestPublishSecondVersionRepointsLatest(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	v1 := env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
	v2 := env.mustPublish(t, "alice", "gif-encoder", "1.1.0", map[string]string{
		"SKILL.md": gifSkillMd,
		"extra.md": "More docs.\n",
	})

	skill, err := env.db.GetSkillBySlug(ctx, nil, "gif-encoder")
	require.NoError(t, err)
	assert.Equal(t, v2.VersionID, skill.LatestVersionID)
	assert.Equal(t, v2.VersionID, skill.Tags[models.TagLatest])
	assert.Equal(t, int64(2), skill.Stats.Versions)

	embs, err := env.db.ListEmbeddingsBySkill(ctx, nil, skill.ID)
	require.NoError(t, err)
	require.Len(t, embs, 2)
	for _, e := range embs {
		switch e.VersionID {
		case v1.VersionID:
			assert.False(t, e.IsLatest)
			assert.Equal(t, models.VisibilityArchived, e.Visibility)
		case v2.VersionID:
			assert.True(t, e.IsLatest)
			assert.Equal(t, models.VisibilityLatest, e.Visibility)
		default:
			t.Fatalf("unexpected embedding for version %s", e.VersionID)
		}
	}
}

func TestPublishUnchangedTextReusesEmbedding(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
	require.Equal(t, 1, env.fake.Calls)

	// Same embedding text: the stored vector is reused.
	v2 := env.mustPublish(t, "alice", "gif-encoder", "1.1.0", map[string]string{"SKILL.md": gifSkillMd})
	assert.Equal(t, 1, env.fake.Calls)

	skill, err := env.db.GetSkillBySlug(ctx, nil, "gif-encoder")
	require.NoError(t, err)
	emb, err := env.db.GetLatestEmbedding(ctx, nil, skill.ID)
	require.NoError(t, err)
	assert.Equal(t, v2.VersionID, emb.VersionID)
	assert.NotEmpty(t, emb.Vector)

	// Changed text goes back to the provider.
	env.mustPublish(t, "alice", "gif-encoder", "1.2.0", map[string]string{
		"SKILL.md": gifSkillMd + "\nNow with dithering support.\n",
	})
	assert.Equal(t, 2, env.fake.Calls)
}

func TestPublishVersionConflictLeavesStateIntact(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})

	req, inline := buildPublish("gif-encoder", "1.0.0", map[string]string{
		"SKILL.md": gifSkillMd,
		"new.md":   "Different content.\n",
	})
	_, err := env.svc.Publish(ctx, "alice", req, inline)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))

	skill, err := env.db.GetSkillBySlug(ctx, nil, "gif-encoder")
	require.NoError(t, err)
	assert.Equal(t, int64(1), skill.Stats.Versions)

	versions, _, err := env.db.ListVersions(ctx, nil, skill.ID, "", 10)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestPublishForeignSlugForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	env.seedUser(t, "bob", models.RoleUser)

	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})

	req, inline := buildPublish("gif-encoder", "2.0.0", map[string]string{"SKILL.md": gifSkillMd})
	_, err := env.svc.Publish(context.Background(), "bob", req, inline)
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))
}

func TestPublishValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(req *models.PublishRequest)
		kind   Kind
	}{
		{
			name:   "invalid slug",
			mutate: func(req *models.PublishRequest) { req.Slug = "Bad_Slug" },
			kind:   KindValidation,
		},
		{
			name:   "invalid semver",
			mutate: func(req *models.PublishRequest) { req.Version = "v1.0" },
			kind:   KindValidation,
		},
		{
			name:   "empty display name",
			mutate: func(req *models.PublishRequest) { req.DisplayName = "  " },
			kind:   KindValidation,
		},
		{
			name: "missing skill.md",
			mutate: func(req *models.PublishRequest) {
				req.Files[0].Path = "README.md"
			},
			kind: KindValidation,
		},
		{
			name: "path escape",
			mutate: func(req *models.PublishRequest) {
				req.Files = append(req.Files, models.PublishFile{Path: "../evil.md", Size: 4})
			},
			kind: KindValidation,
		},
		{
			name: "binary file",
			mutate: func(req *models.PublishRequest) {
				req.Files = append(req.Files, models.PublishFile{Path: "logo.png", Size: 4})
			},
			kind: KindUnsupportedMediaType,
		},
		{
			name: "oversized bundle",
			mutate: func(req *models.PublishRequest) {
				req.Files[0].Size = bundle.MaxBundleSize + 1
			},
			kind: KindPayloadTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, inline := buildPublish("valid-slug", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
			tt.mutate(req)
			_, err := env.svc.Publish(ctx, "alice", req, inline)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestPublishDigestMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)

	req, inline := buildPublish("gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
	req.Files[0].SHA256 = bundle.HashBytes([]byte("something else"))
	_, err := env.svc.Publish(context.Background(), "alice", req, inline)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestPublishDetectsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	env.seedUser(t, "bob", models.RoleUser)
	ctx := context.Background()

	files := map[string]string{"SKILL.md": gifSkillMd, "frames.py": "def encode(): ...\n"}
	orig := env.mustPublish(t, "alice", "gif-encoder", "1.0.0", files)
	env.mustPublish(t, "bob", "gif-encoder-copy", "1.0.0", files)

	copySkill, err := env.db.GetSkillBySlug(ctx, nil, "gif-encoder-copy")
	require.NoError(t, err)
	require.NotNil(t, copySkill.ForkOf)
	assert.Equal(t, models.ForkKindDuplicate, copySkill.ForkOf.Kind)
	assert.Equal(t, orig.SkillID, copySkill.ForkOf.SkillID)
	assert.Equal(t, orig.SkillID, copySkill.CanonicalSkillID)

	origSkill, err := env.db.GetSkillBySlug(ctx, nil, "gif-encoder")
	require.NoError(t, err)
	assert.Nil(t, origSkill.ForkOf)
	assert.Empty(t, origSkill.CanonicalSkillID)
}

func TestPublishExplicitFork(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	env.seedUser(t, "bob", models.RoleUser)
	ctx := context.Background()

	orig := env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})

	req, inline := buildPublish("gif-encoder-fork", "1.0.0", map[string]string{
		"SKILL.md": gifSkillMd,
		"patch.md": "Tweaked defaults.\n",
	})
	req.ForkOf = &models.PublishForkOf{Slug: "gif-encoder", Version: "1.0.0"}
	_, err := env.svc.Publish(ctx, "bob", req, inline)
	require.NoError(t, err)

	fork, err := env.db.GetSkillBySlug(ctx, nil, "gif-encoder-fork")
	require.NoError(t, err)
	require.NotNil(t, fork.ForkOf)
	assert.Equal(t, models.ForkKindFork, fork.ForkOf.Kind)
	assert.Equal(t, orig.SkillID, fork.ForkOf.SkillID)
	assert.Equal(t, orig.SkillID, fork.CanonicalSkillID)
}

func TestPublishEmbeddingFailureAborts(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	env.fake.Err = errors.New("provider quota exhausted")
	ctx := context.Background()

	req, inline := buildPublish("gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
	_, err := env.svc.Publish(ctx, "alice", req, inline)
	require.Error(t, err)
	assert.Equal(t, KindEmbeddingUnavailable, KindOf(err))

	_, err = env.db.GetSkillBySlug(ctx, nil, "gif-encoder")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestPublishRestoresSoftDeletedSkill(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
	require.NoError(t, env.svc.SetSoftDeleted(ctx, alice, "gif-encoder", true))

	env.mustPublish(t, "alice", "gif-encoder", "1.1.0", map[string]string{"SKILL.md": gifSkillMd})

	skill, err := env.db.GetSkillBySlug(ctx, nil, "gif-encoder")
	require.NoError(t, err)
	assert.Nil(t, skill.SoftDeletedAt)
}

func TestPublishUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	req, inline := buildPublish("gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
	_, err := env.svc.Publish(context.Background(), "", req, inline)
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, KindOf(err))
}
