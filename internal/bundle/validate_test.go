package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidSlug(t *testing.T) {
	valid := []string{"demo", "gif-encoder", "a", "0day-scanner", "x-1-2"}
	for _, s := range valid {
		assert.True(t, ValidSlug(s), s)
	}

	invalid := []string{"", "-demo", "Demo", "demo_x", "demo.x", "demo skill", "démo"}
	for _, s := range invalid {
		assert.False(t, ValidSlug(s), s)
	}
}

func TestSanitizePath(t *testing.T) {
	got, err := SanitizePath("docs/usage.md")
	require.NoError(t, err)
	assert.Equal(t, "docs/usage.md", got)

	for _, bad := range []string{"", "/abs.md", "a/../b.md", "..", `dir\file.md`, "a//b.md"} {
		_, err := SanitizePath(bad)
		assert.Error(t, err, bad)
	}
}

func TestAllowedFile(t *testing.T) {
	assert.True(t, AllowedFile("SKILL.md", ""))
	assert.True(t, AllowedFile("conf/settings.yaml", ""))
	assert.True(t, AllowedFile(".gitignore", ""))
	assert.True(t, AllowedFile("blob.bin", "text/plain; charset=utf-8"))

	assert.False(t, AllowedFile("logo.png", ""))
	assert.False(t, AllowedFile("archive.tar.gz", ""))
	assert.False(t, AllowedFile("blob.bin", "application/octet-stream"))
}

func TestIsSkillMd(t *testing.T) {
	assert.True(t, IsSkillMd("SKILL.md"))
	assert.True(t, IsSkillMd("skill.md"))
	assert.True(t, IsSkillMd("skills.md"))
	assert.True(t, IsSkillMd("SKILLS.MD"))

	assert.False(t, IsSkillMd("docs/SKILL.md"))
	assert.False(t, IsSkillMd("README.md"))
}
