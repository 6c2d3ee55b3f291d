package cli

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// BumpVersion returns the next semver after current for the given bump kind
// (patch, minor or major).
func BumpVersion(current, kind string) (string, error) {
	v, err := semver.StrictNewVersion(current)
	if err != nil {
		return "", fmt.Errorf("invalid version %q: %w", current, err)
	}
	var next semver.Version
	switch kind {
	case "", "patch":
		next = v.IncPatch()
	case "minor":
		next = v.IncMinor()
	case "major":
		next = v.IncMajor()
	default:
		return "", fmt.Errorf("invalid bump %q: want patch, minor or major", kind)
	}
	return next.String(), nil
}

// versionLess reports whether a < b under semver ordering; unparseable
// versions compare as strings.
func versionLess(a, b string) bool {
	va, errA := semver.StrictNewVersion(a)
	vb, errB := semver.StrictNewVersion(b)
	if errA != nil || errB != nil {
		return a < b
	}
	return va.LessThan(vb)
}
