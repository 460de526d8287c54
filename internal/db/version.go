package db

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// ReportSchemaVersion is the JSON layout version stamped on every stored
// evaluation report. Readers refuse layouts newer than they understand.
const ReportSchemaVersion = "1.0"

// SupportedReportVersions lists the layouts this build can read back.
var SupportedReportVersions = []string{"1.0"}

// CheckReportCompatibility checks whether a stored report's schema version
// can be read by this build.
func CheckReportCompatibility(version string) error {
	if version == "" {
		return fmt.Errorf("missing report schema version")
	}

	// Parse versions
	current, err := parseVersion(version)
	if err != nil {
		return fmt.Errorf("invalid report schema version: %s", version)
	}

	target, err := parseVersion(ReportSchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid target schema version: %s", ReportSchemaVersion)
	}

	// Version is newer than supported
	if current.GreaterThan(target) {
		return fmt.Errorf("report requires schema version %s, but only %s is supported",
			version, ReportSchemaVersion)
	}

	// Older layouts are readable only within the same major version
	if current.LessThan(target) && current.Major() != target.Major() {
		return fmt.Errorf("no upgrade path from report schema version %s to %s",
			version, ReportSchemaVersion)
	}

	return nil
}

// CompareVersions compares two version strings
// Returns: -1 if a < b, 0 if a == b, 1 if a > b
func CompareVersions(a, b string) (int, error) {
	va, err := parseVersion(a)
	if err != nil {
		return 0, fmt.Errorf("invalid version: %s", a)
	}

	vb, err := parseVersion(b)
	if err != nil {
		return 0, fmt.Errorf("invalid version: %s", b)
	}

	return va.Compare(vb), nil
}

// IsReportVersionSupported checks if a report schema version is supported
func IsReportVersionSupported(version string) bool {
	for _, v := range SupportedReportVersions {
		if v == version {
			return true
		}
	}

	// Also check using semver comparison for patch versions
	v, err := parseVersion(version)
	if err != nil {
		return false
	}

	for _, supported := range SupportedReportVersions {
		sv, err := parseVersion(supported)
		if err != nil {
			continue
		}
		// Consider compatible if major.minor match
		if v.Major() == sv.Major() && v.Minor() == sv.Minor() {
			return true
		}
	}

	return false
}

// parseVersion parses a version string, tolerating short forms like "1.0" by
// retrying with a patch component appended.
func parseVersion(version string) (*semver.Version, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		v, err = semver.NewVersion(version + ".0")
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}
