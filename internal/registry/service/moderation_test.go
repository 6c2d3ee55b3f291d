package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawdhub/clawdhub/internal/models"
	"github.com/clawdhub/clawdhub/internal/registry/database"
	"github.com/clawdhub/clawdhub/internal/registry/storage"
)

func TestUpdateTagsRepointsLatest(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	v1 := env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
	v2 := env.mustPublish(t, "alice", "gif-encoder", "1.1.0", map[string]string{
		"SKILL.md": gifSkillMd,
		"extra.md": "More docs.\n",
	})

	updated, err := env.svc.UpdateTags(ctx, alice, "gif-encoder", map[string]string{
		models.TagLatest: v1.VersionID,
		"stable":         v1.VersionID,
	})
	require.NoError(t, err)
	assert.Equal(t, v1.VersionID, updated.LatestVersionID)
	assert.Equal(t, v1.VersionID, updated.Tags[models.TagLatest])
	assert.Equal(t, v1.VersionID, updated.Tags["stable"])

	embs, err := env.db.ListEmbeddingsBySkill(ctx, nil, updated.ID)
	require.NoError(t, err)
	for _, e := range embs {
		switch e.VersionID {
		case v1.VersionID:
			assert.True(t, e.IsLatest)
			assert.Equal(t, models.VisibilityLatest, e.Visibility)
		case v2.VersionID:
			assert.False(t, e.IsLatest)
			assert.Equal(t, models.VisibilityArchived, e.Visibility)
		}
	}
}

func TestUpdateTagsValidation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "alice", models.RoleUser)
	env.seedUser(t, "bob", models.RoleUser)
	ctx := context.Background()

	v1 := env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
	other := env.mustPublish(t, "alice", "gogkit", "1.0.0", map[string]string{"SKILL.md": gogkitSkillMd})

	// The latest tag cannot be removed.
	_, err := env.svc.UpdateTags(ctx, alice, "gif-encoder", map[string]string{models.TagLatest: ""})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	// Tags cannot point at another skill's version.
	_, err = env.svc.UpdateTags(ctx, alice, "gif-encoder", map[string]string{"stable": other.VersionID})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	// Removing a regular tag works.
	_, err = env.svc.UpdateTags(ctx, alice, "gif-encoder", map[string]string{"stable": v1.VersionID})
	require.NoError(t, err)
	updated, err := env.svc.UpdateTags(ctx, alice, "gif-encoder", map[string]string{"stable": ""})
	require.NoError(t, err)
	_, ok := updated.Tags["stable"]
	assert.False(t, ok)
}

func TestUpdateTagsPermissions(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	bob := env.seedUser(t, "bob", models.RoleUser)
	mod := env.seedUser(t, "mod", models.RoleModerator)
	ctx := context.Background()

	v1 := env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})

	_, err := env.svc.UpdateTags(ctx, bob, "gif-encoder", map[string]string{"stable": v1.VersionID})
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = env.svc.UpdateTags(ctx, mod, "gif-encoder", map[string]string{"stable": v1.VersionID})
	require.NoError(t, err)
}

func TestSetDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	bob := env.seedUser(t, "bob", models.RoleUser)
	mod := env.seedUser(t, "mod", models.RoleModerator)
	ctx := context.Background()

	orig := env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
	env.mustPublish(t, "alice", "gif-tools", "1.0.0", map[string]string{"SKILL.md": gifSkillMd + "\nExtra.\n"})

	_, err := env.svc.SetDuplicate(ctx, bob, "gif-tools", "gif-encoder")
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = env.svc.SetDuplicate(ctx, mod, "gif-tools", "gif-tools")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	marked, err := env.svc.SetDuplicate(ctx, mod, "gif-tools", "gif-encoder")
	require.NoError(t, err)
	assert.Equal(t, orig.SkillID, marked.CanonicalSkillID)
	require.NotNil(t, marked.ForkOf)
	assert.Equal(t, models.ForkKindDuplicate, marked.ForkOf.Kind)
	assert.Equal(t, "1.0.0", marked.ForkOf.Version)

	cleared, err := env.svc.SetDuplicate(ctx, mod, "gif-tools", "")
	require.NoError(t, err)
	assert.Empty(t, cleared.CanonicalSkillID)
	assert.Nil(t, cleared.ForkOf)
}

func TestChangeOwner(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	env.seedUser(t, "bob", models.RoleUser)
	mod := env.seedUser(t, "mod", models.RoleModerator)
	admin := env.seedUser(t, "admin", models.RoleAdmin)
	ctx := context.Background()

	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})

	_, err := env.svc.ChangeOwner(ctx, mod, "gif-encoder", "bob")
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = env.svc.ChangeOwner(ctx, admin, "gif-encoder", "nobody")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	updated, err := env.svc.ChangeOwner(ctx, admin, "gif-encoder", "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", updated.OwnerUserID)

	embs, err := env.db.ListEmbeddingsBySkill(ctx, nil, updated.ID)
	require.NoError(t, err)
	require.NotEmpty(t, embs)
	for _, e := range embs {
		assert.Equal(t, "bob", e.OwnerID)
	}
}

func TestSoftDeleteRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "alice", models.RoleUser)
	bob := env.seedUser(t, "bob", models.RoleUser)
	ctx := context.Background()

	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})

	err := env.svc.SetSoftDeleted(ctx, bob, "gif-encoder", true)
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))

	require.NoError(t, env.svc.SetSoftDeleted(ctx, alice, "gif-encoder", true))
	_, err = env.svc.GetSkill(ctx, "gif-encoder")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))

	skill, err := env.db.GetSkillBySlug(ctx, nil, "gif-encoder")
	require.NoError(t, err)
	embs, err := env.db.ListEmbeddingsBySkill(ctx, nil, skill.ID)
	require.NoError(t, err)
	for _, e := range embs {
		assert.Equal(t, models.VisibilityDeleted, e.Visibility)
	}

	require.NoError(t, env.svc.SetSoftDeleted(ctx, alice, "gif-encoder", false))
	detail, err := env.svc.GetSkill(ctx, "gif-encoder")
	require.NoError(t, err)
	assert.Nil(t, detail.Skill.SoftDeletedAt)

	var sawDelete, sawRestore bool
	for _, entry := range env.db.AuditEntries() {
		switch entry.Action {
		case "skill.softDelete":
			sawDelete = true
		case "skill.restore":
			sawRestore = true
		}
	}
	assert.True(t, sawDelete)
	assert.True(t, sawRestore)
}

func TestHardDelete(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	mod := env.seedUser(t, "mod", models.RoleModerator)
	admin := env.seedUser(t, "admin", models.RoleAdmin)
	ctx := context.Background()

	resp := env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})

	err := env.svc.HardDelete(ctx, mod, "gif-encoder")
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))

	version, err := env.db.GetVersion(ctx, nil, resp.VersionID)
	require.NoError(t, err)
	require.NotEmpty(t, version.Files)
	storageID := version.Files[0].StorageID

	require.NoError(t, env.svc.HardDelete(ctx, admin, "gif-encoder"))

	_, err = env.db.GetSkillBySlug(ctx, nil, "gif-encoder")
	assert.ErrorIs(t, err, database.ErrNotFound)
	_, err = env.store.GetBytes(ctx, storageID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSetBadgePermissions(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "alice", models.RoleUser)
	mod := env.seedUser(t, "mod", models.RoleModerator)
	admin := env.seedUser(t, "admin", models.RoleAdmin)
	ctx := context.Background()

	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})

	err := env.svc.SetBadge(ctx, alice, "gif-encoder", models.BadgeHighlighted, true)
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))

	require.NoError(t, env.svc.SetBadge(ctx, mod, "gif-encoder", models.BadgeHighlighted, true))

	err = env.svc.SetBadge(ctx, mod, "gif-encoder", models.BadgeOfficial, true)
	require.Error(t, err)
	assert.Equal(t, KindForbidden, KindOf(err))

	require.NoError(t, env.svc.SetBadge(ctx, admin, "gif-encoder", models.BadgeOfficial, true))

	err = env.svc.SetBadge(ctx, admin, "gif-encoder", models.BadgeKind("sparkly"), true)
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestRedactionApprovedRecomputesEmbeddings(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	admin := env.seedUser(t, "admin", models.RoleAdmin)
	ctx := context.Background()

	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
	env.mustPublish(t, "alice", "gif-encoder", "1.1.0", map[string]string{
		"SKILL.md": gifSkillMd,
		"extra.md": "More docs.\n",
	})

	require.NoError(t, env.svc.SetBadge(ctx, admin, "gif-encoder", models.BadgeRedactionApproved, true))

	skill, err := env.db.GetSkillBySlug(ctx, nil, "gif-encoder")
	require.NoError(t, err)
	embs, err := env.db.ListEmbeddingsBySkill(ctx, nil, skill.ID)
	require.NoError(t, err)
	require.Len(t, embs, 2)
	for _, e := range embs {
		assert.True(t, e.IsApproved)
		if e.IsLatest {
			assert.Equal(t, models.VisibilityLatestApproved, e.Visibility)
		} else {
			assert.Equal(t, models.VisibilityArchivedApproved, e.Visibility)
		}
	}

	require.NoError(t, env.svc.SetBadge(ctx, admin, "gif-encoder", models.BadgeRedactionApproved, false))
	embs, err = env.db.ListEmbeddingsBySkill(ctx, nil, skill.ID)
	require.NoError(t, err)
	for _, e := range embs {
		assert.False(t, e.IsApproved)
	}

	// A publish after approval inherits the badge.
	require.NoError(t, env.svc.SetBadge(ctx, admin, "gif-encoder", models.BadgeRedactionApproved, true))
	env.mustPublish(t, "alice", "gif-encoder", "1.2.0", map[string]string{
		"SKILL.md": gifSkillMd,
		"more.md":  "Even more docs.\n",
	})
	latest, err := env.db.GetLatestEmbedding(ctx, nil, skill.ID)
	require.NoError(t, err)
	assert.True(t, latest.IsApproved)
	assert.Equal(t, models.VisibilityLatestApproved, latest.Visibility)
}
