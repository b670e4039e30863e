package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionOf(t *testing.T) {
	tests := []struct {
		name     string
		info     *debug.BuildInfo
		expected string
	}{
		{
			name:     "main module",
			info:     &debug.BuildInfo{Main: debug.Module{Path: modulePath, Version: "v0.3.0"}},
			expected: "v0.3.0",
		},
		{
			name:     "devel",
			info:     &debug.BuildInfo{Main: debug.Module{Path: modulePath, Version: "(devel)"}},
			expected: Default,
		},
		{
			name: "dependency",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.com/runtime"},
				Deps: []*debug.Module{{Path: "go.uber.org/zap", Version: "v1.21.0"}, {Path: modulePath, Version: "v0.2.1"}},
			},
			expected: "v0.2.1",
		},
		{
			name: "replaced dependency",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.com/runtime"},
				Deps: []*debug.Module{{Path: modulePath, Version: "v0.2.1", Replace: &debug.Module{Path: "../", Version: "v0.0.0-20260101000000-abcdef012345"}}},
			},
			expected: "v0.0.0-20260101000000-abcdef012345",
		},
		{
			name:     "absent",
			info:     &debug.BuildInfo{Main: debug.Module{Path: "example.com/runtime"}},
			expected: Default,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, versionOf(tc.info))
		})
	}
}

func TestGetVersion(t *testing.T) {
	require.NotEmpty(t, GetVersion())
}
