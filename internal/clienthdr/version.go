package clienthdr

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Supported client version window. The cart API is additive within a major
// version, so any 1.x client at or above the minimum works against it.
const (
	MinClientVersion = "1.0.0"
	ClientMajor      = "v1"
)

// Error codes surfaced to clients when version checks fail.
const (
	CodeClientRequired     = "storefront_client_required"
	CodeVersionUnsupported = "storefront_version_unsupported"
)

// VersionError reports an unsupported or malformed client version.
type VersionError struct {
	Code    string
	Message string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CheckVersion validates a client version against the supported window.
// Versions arrive without the "v" prefix that x/mod/semver expects.
func CheckVersion(version string) error {
	v := "v" + version
	if !semver.IsValid(v) {
		return &VersionError{
			Code:    CodeVersionUnsupported,
			Message: fmt.Sprintf("client version %q is not valid semver", version),
		}
	}
	if semver.Major(v) != ClientMajor {
		return &VersionError{
			Code:    CodeVersionUnsupported,
			Message: fmt.Sprintf("client major version %s is not supported, expected %s", semver.Major(v), ClientMajor),
		}
	}
	if semver.Compare(v, "v"+MinClientVersion) < 0 {
		return &VersionError{
			Code:    CodeVersionUnsupported,
			Message: fmt.Sprintf("client version %s is older than the minimum supported %s", version, MinClientVersion),
		}
	}
	return nil
}
