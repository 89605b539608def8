package config

import "github.com/Masterminds/semver/v3"

// Version is the canonical version of the allocation service.
const Version = "1.0.0"

// GetVersion returns the current version.
func GetVersion() string {
	return Version
}

// ParseAlgorithmVersion validates that s is a well-formed semver string,
// per spec.md's algorithm.version field recorded on every AllocationRecord.
func ParseAlgorithmVersion(s string) (*semver.Version, error) {
	return semver.NewVersion(s)
}
