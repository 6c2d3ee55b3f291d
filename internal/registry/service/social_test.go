package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawdhub/clawdhub/internal/models"
)

func TestStarRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	env.seedUser(t, "bob", models.RoleUser)
	ctx := context.Background()

	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})

	require.NoError(t, env.svc.Star(ctx, "bob", "gif-encoder"))
	// Starring twice never double-counts.
	require.NoError(t, env.svc.Star(ctx, "bob", "gif-encoder"))

	skill, err := env.db.GetSkillBySlug(ctx, nil, "gif-encoder")
	require.NoError(t, err)
	assert.Equal(t, int64(1), skill.Stats.Stars)

	require.NoError(t, env.svc.Unstar(ctx, "bob", "gif-encoder"))
	require.NoError(t, env.svc.Unstar(ctx, "bob", "gif-encoder"))

	skill, err = env.db.GetSkillBySlug(ctx, nil, "gif-encoder")
	require.NoError(t, err)
	assert.Equal(t, int64(0), skill.Stats.Stars)
}

func TestStarRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})

	err := env.svc.Star(context.Background(), "", "gif-encoder")
	require.Error(t, err)
	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestComments(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	env.seedUser(t, "bob", models.RoleUser)
	ctx := context.Background()

	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})

	_, err := env.svc.AddComment(ctx, "bob", "gif-encoder", "   ")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = env.svc.AddComment(ctx, "bob", "gif-encoder", strings.Repeat("x", maxCommentLength+1))
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))

	first, err := env.svc.AddComment(ctx, "bob", "gif-encoder", "Works great on large frame sets.")
	require.NoError(t, err)
	second, err := env.svc.AddComment(ctx, "alice", "gif-encoder", "Thanks!")
	require.NoError(t, err)

	comments, err := env.svc.ListComments(ctx, "gif-encoder", 10)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, second.ID, comments[0].ID)
	assert.Equal(t, first.ID, comments[1].ID)

	skill, err := env.db.GetSkillBySlug(ctx, nil, "gif-encoder")
	require.NoError(t, err)
	assert.Equal(t, int64(2), skill.Stats.Comments)
}

func TestListCommentsSkipsDeleted(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})

	c, err := env.svc.AddComment(ctx, "alice", "gif-encoder", "First!")
	require.NoError(t, err)
	require.NoError(t, env.db.SoftDeleteComment(ctx, nil, c.ID))

	comments, err := env.svc.ListComments(ctx, "gif-encoder", 10)
	require.NoError(t, err)
	assert.Empty(t, comments)
}
