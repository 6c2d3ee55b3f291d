package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// MaxBundleSize is the declared-size ceiling for one published version.
const MaxBundleSize = 50 << 20

// MaxRawFileSize is the ceiling for single-file raw reads over HTTP.
const MaxRawFileSize = 200 << 10

var hexDigestRe = regexp.MustCompile(`^[a-f0-9]{64}$`)

// IsHexDigest reports whether s is a 64-char lowercase hex SHA-256 digest.
func IsHexDigest(s string) bool {
	return hexDigestRe.MatchString(s)
}

// HashBytes returns the lowercase hex SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FileDigest pairs a bundle-relative path with the digest of its bytes.
type FileDigest struct {
	Path   string
	SHA256 string
}

// Fingerprint computes the bundle fingerprint: the SHA-256 of the
// newline-joined "path:sha256" entries sorted by path. It depends only on
// the (path, sha256) pairs, so server and client always agree.
func Fingerprint(files []FileDigest) string {
	entries := make([]string, 0, len(files))
	for _, f := range files {
		entries = append(entries, fmt.Sprintf("%s:%s", f.Path, f.SHA256))
	}
	sort.Strings(entries)
	return HashBytes([]byte(strings.Join(entries, "\n")))
}
