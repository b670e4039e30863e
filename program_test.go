package baseline32

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestParseProgram(t *testing.T) {
	p, err := ParseProgram([]byte(sampleProgram))
	require.NoError(t, err)
	require.Len(t, p.Functions, 3)
	require.Equal(t, FunctionSource{Name: "add", Code: "i32.add a0 a0 a1"}, p.Functions[0])
	require.Equal(t, int32(16), p.Functions[1].FrameSize)
	require.Equal(t, "div_by_zero:\n  stub ThrowWasmTrapDivByZero\n", p.Functions[2].OOL)

	empty, err := ParseProgram(nil)
	require.NoError(t, err)
	require.Empty(t, empty.Functions)
}

func TestParseProgram_errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expErr []string
	}{
		{
			name:   "not toml",
			input:  "[[function]\n",
			expErr: []string{"failed to read program: "},
		},
		{
			name: "invalid functions",
			input: `
[[function]]
name = "f"
[[function]]
frame_size = -4
[[function]]
name = "f"
`,
			expErr: []string{
				"function[1]: missing name",
				"function[1]: frame_size must not be negative, but was -4",
				`function[2]: name "f" already used by function[0]`,
			},
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseProgram([]byte(tc.input))
			require.Error(t, err)
			errs := multierr.Errors(err)
			require.Len(t, errs, len(tc.expErr))
			for i, e := range errs {
				require.Contains(t, e.Error(), tc.expErr[i])
			}
		})
	}
}
