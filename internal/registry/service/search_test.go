package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawdhub/clawdhub/internal/models"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"GIF encoder", []string{"gif", "encoder"}},
		{"gif-encoder", []string{"gif", "encoder"}},
		{"  a b2  ", []string{"b2"}},
		{"!!!", nil},
		{"", nil},
		{"HTTP/2 server", []string{"http", "server"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Tokenize(tt.query), "query %q", tt.query)
	}
}

func TestMatchesAllTokens(t *testing.T) {
	assert.True(t, matchesAllTokens([]string{"gif"}, "GIF Encoder gif-encoder"))
	assert.True(t, matchesAllTokens([]string{"gif", "encoder"}, "gif-encoder makes GIFs"))
	// Substrings are not whole-word matches.
	assert.False(t, matchesAllTokens([]string{"gif"}, "gogkit scaffolds games"))
	assert.False(t, matchesAllTokens([]string{"gif", "missing"}, "gif tools"))
}

func TestSearchGatesOnExactTokens(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
	env.mustPublish(t, "alice", "gogkit", "1.0.0", map[string]string{"SKILL.md": gogkitSkillMd})

	results, err := env.svc.Search(ctx, "gif", 10, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "gif-encoder", results[0].Slug)
	assert.Equal(t, "1.0.0", results[0].Version)

	results, err = env.svc.Search(ctx, "gogkit", 10, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "gogkit", results[0].Slug)
}

func TestSearchEmptyQuery(t *testing.T) {
	env := newTestEnv(t)

	results, err := env.svc.Search(context.Background(), "  !!! ", 10, false)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchProviderFailureDegrades(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})

	env.fake.Err = errors.New("provider down")
	results, err := env.svc.Search(context.Background(), "gif", 10, false)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchExcludesSoftDeleted(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
	require.NoError(t, env.svc.SetSoftDeleted(ctx, alice, "gif-encoder", true))

	results, err := env.svc.Search(ctx, "gif", 10, false)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, env.svc.SetSoftDeleted(ctx, alice, "gif-encoder", false))
	results, err = env.svc.Search(ctx, "gif", 10, false)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchHighlightedOnly(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	mod := env.seedUser(t, "mod", models.RoleModerator)
	ctx := context.Background()

	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
	env.mustPublish(t, "alice", "gif-tools", "1.0.0", map[string]string{"SKILL.md": gifSkillMd + "\nExtra line.\n"})
	require.NoError(t, env.svc.SetBadge(ctx, mod, "gif-tools", models.BadgeHighlighted, true))

	results, err := env.svc.Search(ctx, "gif", 10, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "gif-tools", results[0].Slug)
}
