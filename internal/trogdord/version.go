package trogdord

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is the {major, minor, patch} triple trogdord reports.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or +1.
func (v Version) Compare(other Version) int {
	return semver.Compare("v"+v.String(), "v"+other.String())
}

// AtLeast reports whether v >= floor.
func (v Version) AtLeast(floor Version) bool {
	return v.Compare(floor) >= 0
}

// ParseVersion parses "1.2.3" or "v1.2.3". Missing minor or patch parts
// default to zero.
func ParseVersion(s string) (Version, error) {
	canon := semver.Canonical("v" + strings.TrimPrefix(s, "v"))
	if canon == "" {
		return Version{}, fmt.Errorf("%w: bad version %q", ErrInvalidArgument, s)
	}
	var v Version
	if _, err := fmt.Sscanf(strings.TrimPrefix(semver.MajorMinor(canon), "v"), "%d.%d", &v.Major, &v.Minor); err != nil {
		return Version{}, fmt.Errorf("%w: bad version %q", ErrInvalidArgument, s)
	}
	patch := strings.TrimPrefix(canon, semver.MajorMinor(canon)+".")
	if i := strings.IndexAny(patch, "-+"); i >= 0 {
		patch = patch[:i]
	}
	if _, err := fmt.Sscanf(patch, "%d", &v.Patch); err != nil {
		return Version{}, fmt.Errorf("%w: bad version %q", ErrInvalidArgument, s)
	}
	return v, nil
}

// MinDaemonVersion is the oldest trogdord this client is tested against.
var MinDaemonVersion = Version{Major: 0, Minor: 1, Patch: 0}
