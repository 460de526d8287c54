package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckReportCompatibility(t *testing.T) {
	tests := []struct {
		name        string
		version     string
		wantErr     bool
		errContains string
	}{
		{
			name:    "current version is readable",
			version: "1.0",
			wantErr: false,
		},
		{
			name:    "full patch form of current version is readable",
			version: "1.0.0",
			wantErr: false,
		},
		{
			name:        "missing version is rejected",
			version:     "",
			wantErr:     true,
			errContains: "missing report schema version",
		},
		{
			name:        "garbage version is rejected",
			version:     "not-a-version",
			wantErr:     true,
			errContains: "invalid report schema version",
		},
		{
			name:        "newer minor version is rejected",
			version:     "1.1",
			wantErr:     true,
			errContains: "report requires schema version",
		},
		{
			name:        "newer major version is rejected",
			version:     "2.0",
			wantErr:     true,
			errContains: "report requires schema version",
		},
		{
			name:        "older major version has no upgrade path",
			version:     "0.9",
			wantErr:     true,
			errContains: "no upgrade path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckReportCompatibility(tt.version)

			if tt.wantErr {
				require.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}

			require.NoError(t, err)
		})
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		name    string
		a       string
		b       string
		want    int
		wantErr bool
	}{
		{name: "equal versions", a: "1.0", b: "1.0", want: 0},
		{name: "equal across short and full form", a: "1.0", b: "1.0.0", want: 0},
		{name: "older is less", a: "0.9", b: "1.0", want: -1},
		{name: "newer is greater", a: "2.0", b: "1.0", want: 1},
		{name: "patch version is greater", a: "1.0.1", b: "1.0", want: 1},
		{name: "invalid first version", a: "bogus", b: "1.0", wantErr: true},
		{name: "invalid second version", a: "1.0", b: "bogus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompareVersions(tt.a, tt.b)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid version")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsReportVersionSupported(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    bool
	}{
		{name: "exact supported version", version: "1.0", want: true},
		{name: "patch release of supported version", version: "1.0.3", want: true},
		{name: "newer minor is unsupported", version: "1.1", want: false},
		{name: "newer major is unsupported", version: "2.0", want: false},
		{name: "empty version is unsupported", version: "", want: false},
		{name: "garbage version is unsupported", version: "abc", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsReportVersionSupported(tt.version))
		})
	}
}
