package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_OrderIndependent(t *testing.T) {
	a := []FileDigest{
		{Path: "SKILL.md", SHA256: HashBytes([]byte("alpha"))},
		{Path: "docs/usage.md", SHA256: HashBytes([]byte("beta"))},
		{Path: "config.yaml", SHA256: HashBytes([]byte("gamma"))},
	}
	b := []FileDigest{a[2], a[0], a[1]}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_DependsOnPathAndHash(t *testing.T) {
	base := []FileDigest{{Path: "SKILL.md", SHA256: HashBytes([]byte("content"))}}
	renamed := []FileDigest{{Path: "skill.md", SHA256: HashBytes([]byte("content"))}}
	changed := []FileDigest{{Path: "SKILL.md", SHA256: HashBytes([]byte("other"))}}

	assert.NotEqual(t, Fingerprint(base), Fingerprint(renamed))
	assert.NotEqual(t, Fingerprint(base), Fingerprint(changed))
}

func TestFingerprint_KnownValue(t *testing.T) {
	h := HashBytes([]byte("---\nname: demo\n---\nBody"))
	got := Fingerprint([]FileDigest{{Path: "SKILL.md", SHA256: h}})

	want := sha256.Sum256([]byte("SKILL.md:" + h))
	assert.Equal(t, hex.EncodeToString(want[:]), got)
}

func TestIsHexDigest(t *testing.T) {
	require.True(t, IsHexDigest(HashBytes([]byte("x"))))
	assert.False(t, IsHexDigest("ABCDEF"))
	assert.False(t, IsHexDigest("abc123"))
	assert.False(t, IsHexDigest(""))
}
