package analyzer

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// NormalizeVersion strips leading "^" and "@" from a declared specifier.
// Other range syntax ("~", ">=", "x") is left alone on purpose.
func NormalizeVersion(declared string) string {
	return strings.TrimLeft(declared, "^@")
}

// versionsEqual reports whether the stripped declared version and the registry's
// latest version are the same semantic version. Either side failing to parse
// makes them unequal. parsed is false when the declared side is not semver.
func versionsEqual(declared, latest string) (equal, parsed bool) {
	current, err := semver.NewVersion(declared)
	if err != nil {
		return false, false
	}
	latestVersion, err := semver.NewVersion(latest)
	if err != nil {
		return false, true
	}
	return current.Equal(latestVersion), true
}
