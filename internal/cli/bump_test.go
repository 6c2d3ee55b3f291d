package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBumpVersion(t *testing.T) {
	cases := []struct {
		current string
		kind    string
		want    string
	}{
		{"1.2.3", "patch", "1.2.4"},
		{"1.2.3", "", "1.2.4"},
		{"1.2.3", "minor", "1.3.0"},
		{"1.2.3", "major", "2.0.0"},
		{"0.9.9", "patch", "0.9.10"},
	}
	for _, tc := range cases {
		got, err := BumpVersion(tc.current, tc.kind)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s %s", tc.current, tc.kind)
	}
}

func TestBumpVersionRejectsBadInput(t *testing.T) {
	_, err := BumpVersion("not-semver", "patch")
	assert.Error(t, err)

	_, err = BumpVersion("1.2.3", "mega")
	assert.Error(t, err)
}

func TestVersionLess(t *testing.T) {
	assert.True(t, versionLess("1.2.3", "1.10.0"))
	assert.False(t, versionLess("2.0.0", "1.9.9"))
	assert.False(t, versionLess("1.2.3", "1.2.3"))
}
