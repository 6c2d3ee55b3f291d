package service

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawdhub/clawdhub/internal/bundle"
	"github.com/clawdhub/clawdhub/internal/models"
)

func TestGetSkillDetail(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	mod := env.seedUser(t, "mod", models.RoleModerator)
	ctx := context.Background()

	resp := env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
	require.NoError(t, env.svc.SetBadge(ctx, mod, "gif-encoder", models.BadgeHighlighted, true))

	detail, err := env.svc.GetSkill(ctx, "gif-encoder")
	require.NoError(t, err)
	assert.Equal(t, "gif-encoder", detail.Skill.Slug)
	require.NotNil(t, detail.LatestVersion)
	assert.Equal(t, resp.VersionID, detail.LatestVersion.ID)
	require.NotNil(t, detail.Owner)
	assert.Equal(t, "alice", detail.Owner.ID)
	require.Len(t, detail.Badges, 1)
	assert.Equal(t, models.BadgeHighlighted, detail.Badges[0].Kind)

	_, err = env.svc.GetSkill(ctx, "no-such-skill")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestListVersionsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})
	env.mustPublish(t, "alice", "gif-encoder", "1.1.0", map[string]string{
		"SKILL.md": gifSkillMd,
		"extra.md": "More docs.\n",
	})

	page, err := env.svc.ListVersions(ctx, "gif-encoder", "", 10)
	require.NoError(t, err)
	require.Len(t, page.Versions, 2)
	assert.Equal(t, "1.1.0", page.Versions[0].Version)
	assert.Equal(t, "1.0.0", page.Versions[1].Version)
}

func TestGetVersionGoneAfterSoftDelete(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	resp := env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{"SKILL.md": gifSkillMd})

	v, err := env.svc.GetVersion(ctx, "gif-encoder", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, resp.VersionID, v.ID)

	require.NoError(t, env.db.SetVersionSoftDeleted(ctx, nil, resp.VersionID, true))
	_, err = env.svc.GetVersion(ctx, "gif-encoder", "1.0.0")
	require.Error(t, err)
	assert.Equal(t, KindGone, KindOf(err))
}

func TestGetFile(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	script := "def encode(frames): ...\n"
	v1 := env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{
		"SKILL.md":         gifSkillMd,
		"tools/encoder.py": script,
	})
	env.mustPublish(t, "alice", "gif-encoder", "1.1.0", map[string]string{"SKILL.md": gifSkillMd})

	// Latest version by default.
	fc, err := env.svc.GetFile(ctx, "gif-encoder", "SKILL.md", "", "")
	require.NoError(t, err)
	assert.Equal(t, gifSkillMd, string(fc.Content))
	assert.Equal(t, bundle.HashBytes([]byte(gifSkillMd)), fc.SHA256)
	assert.False(t, fc.Archived)

	// Older versions are flagged archived.
	fc, err = env.svc.GetFile(ctx, "gif-encoder", "tools/encoder.py", "1.0.0", "")
	require.NoError(t, err)
	assert.Equal(t, script, string(fc.Content))
	assert.True(t, fc.Archived)

	// Tag selection.
	alice := &models.User{ID: "alice", Role: models.RoleUser}
	_, err = env.svc.UpdateTags(ctx, alice, "gif-encoder", map[string]string{"stable": v1.VersionID})
	require.NoError(t, err)
	fc, err = env.svc.GetFile(ctx, "gif-encoder", "tools/encoder.py", "", "stable")
	require.NoError(t, err)
	assert.Equal(t, script, string(fc.Content))

	_, err = env.svc.GetFile(ctx, "gif-encoder", "missing.md", "", "")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = env.svc.GetFile(ctx, "gif-encoder", "SKILL.md", "", "no-such-tag")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestGetFileTooLarge(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	big := strings.Repeat("a", int(bundle.MaxRawFileSize)+1)
	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{
		"SKILL.md": gifSkillMd,
		"big.txt":  big,
	})

	_, err := env.svc.GetFile(ctx, "gif-encoder", "big.txt", "", "")
	require.Error(t, err)
	assert.Equal(t, KindPayloadTooLarge, KindOf(err))
}

func TestDownloadZip(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	script := "def encode(frames): ...\n"
	env.mustPublish(t, "alice", "gif-encoder", "1.0.0", map[string]string{
		"SKILL.md":         gifSkillMd,
		"tools/encoder.py": script,
	})

	data, name, err := env.svc.DownloadZip(ctx, "gif-encoder", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "gif-encoder-1.0.0.zip", name)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	got := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		got[f.Name] = string(content)
	}
	assert.Equal(t, map[string]string{
		"SKILL.md":         gifSkillMd,
		"tools/encoder.py": script,
	}, got)

	skill, err := env.db.GetSkillBySlug(ctx, nil, "gif-encoder")
	require.NoError(t, err)
	assert.Equal(t, int64(1), skill.Stats.Downloads)
}
