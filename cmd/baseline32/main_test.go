package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

const program = `
[[function]]
name = "add"
code = "i32.add a0 a0 a1"

[[function]]
name = "vector"
code = "v128.xor v1 v1 v2"
`

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestHelp(t *testing.T) {
	exitCode, _, stdErr := runMain(t, []string{"-h"})
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdErr, "baseline32 CLI\n\nUsage:\n  baseline32 <command>")
}

func TestVersion(t *testing.T) {
	exitCode, stdOut, stdErr := runMain(t, []string{"version"})
	require.Equal(t, 0, exitCode)
	require.NotEmpty(t, strings.TrimSpace(stdOut))
	require.Empty(t, stdErr)
}

func TestInvalidCommand(t *testing.T) {
	exitCode, _, stdErr := runMain(t, []string{"run"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdErr, "invalid command\n")
}

func TestCompile(t *testing.T) {
	path := writeFile(t, "program.toml", program)

	t.Run("text", func(t *testing.T) {
		exitCode, stdOut, stdErr := runMain(t, []string{"compile", path})
		require.Equal(t, 0, exitCode, stdErr)
		require.Empty(t, stdErr)
		require.True(t, strings.HasPrefix(stdOut, "add: ; offset=0x0 frame_size="), stdOut)
		require.Contains(t, stdOut, "\n  0000: ")
		require.Contains(t, stdOut, "\nvector: ; offset=0x")
	})

	t.Run("hex", func(t *testing.T) {
		exitCode, stdOut, _ := runMain(t, []string{"compile", "-format", "hex", path})
		require.Equal(t, 0, exitCode)
		lines := strings.Split(strings.TrimSpace(stdOut), "\n")
		require.Len(t, lines, 2)
		require.True(t, strings.HasPrefix(lines[0], "add 0x0 "), lines[0])
		require.True(t, strings.HasPrefix(lines[1], "vector 0x"), lines[1])
	})

	t.Run("json", func(t *testing.T) {
		exitCode, stdOut, _ := runMain(t, []string{"compile", "-format=json", "-stats", path})
		require.Equal(t, 0, exitCode)

		var out struct {
			Functions []struct {
				Name   string `json:"name"`
				Offset int    `json:"offset"`
				Code   string `json:"code"`
			} `json:"functions"`
			Stats struct {
				Functions int64 `json:"functions"`
			} `json:"stats"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdOut), &out))
		require.Len(t, out.Functions, 2)
		require.Equal(t, "add", out.Functions[0].Name)
		require.Zero(t, out.Functions[0].Offset)
		require.NotEmpty(t, out.Functions[0].Code)
		require.Zero(t, out.Functions[1].Offset%16)
		require.Equal(t, int64(2), out.Stats.Functions)
	})

	t.Run("format from env", func(t *testing.T) {
		t.Setenv(envFormat, "hex")
		exitCode, stdOut, _ := runMain(t, []string{"compile", path})
		require.Equal(t, 0, exitCode)
		require.True(t, strings.HasPrefix(stdOut, "add 0x0 "), stdOut)
	})

	t.Run("config", func(t *testing.T) {
		config := writeFile(t, "config.toml", "simd = false\n")
		exitCode, stdOut, stdErr := runMain(t, []string{"compile", "-config", config, "-stats", path})
		require.Equal(t, 0, exitCode)
		require.Contains(t, stdOut, "\nvector: baseline compilation bailed out: ")
		require.Equal(t, "functions: 1, bailouts: 1, instructions: ", stdErr[:len("functions: 1, bailouts: 1, instructions: ")])
	})

	t.Run("verbose", func(t *testing.T) {
		exitCode, _, stdErr := runMain(t, []string{"compile", "-v", path})
		require.Equal(t, 0, exitCode)
		require.Contains(t, stdErr, "function finalized")
		require.Contains(t, stdErr, "module compiled")
	})
}

func TestCompile_errors(t *testing.T) {
	valid := writeFile(t, "program.toml", program)
	tests := []struct {
		name   string
		args   []string
		env    map[string]string
		stdErr string
	}{
		{
			name:   "missing program",
			args:   []string{"compile"},
			stdErr: "missing path to program file\n",
		},
		{
			name:   "unreadable program",
			args:   []string{"compile", filepath.Join(t.TempDir(), "absent.toml")},
			stdErr: "error reading program: ",
		},
		{
			name:   "invalid program",
			args:   []string{"compile", writeFile(t, "dup.toml", "[[function]]\nname = \"f\"\n[[function]]\nname = \"f\"\n")},
			stdErr: `error reading program: function[1]: name "f" already used by function[0]`,
		},
		{
			name:   "parse error",
			args:   []string{"compile", writeFile(t, "bad.toml", "[[function]]\nname = \"bad\"\ncode = \"i32.add a0 q1 a1\"\n")},
			stdErr: "error compiling program: bad: 1:12: unknown register: q1 in body: i32.add\n",
		},
		{
			name:   "invalid format",
			args:   []string{"compile", "-format", "xml", valid},
			stdErr: "invalid format: xml\n",
		},
		{
			name:   "invalid config",
			args:   []string{"compile", "-config", writeFile(t, "config.toml", "stack_size_kb = 0\n"), valid},
			stdErr: "error compiling program: stack size must be between 1 and 1048576 KB, but was 0\n",
		},
		{
			name:   "invalid log level",
			args:   []string{"compile", valid},
			env:    map[string]string{envLogLevel: "loud"},
			stdErr: "invalid log level: ",
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			exitCode, _, stdErr := runMain(t, tc.args)
			require.Equal(t, 1, exitCode)
			require.Contains(t, stdErr, tc.stdErr)
		})
	}
}

func runMain(t *testing.T, args []string) (int, string, string) {
	t.Helper()
	oldArgs := os.Args
	t.Cleanup(func() {
		os.Args = oldArgs
	})
	os.Args = append([]string{"baseline32"}, args...)

	var exitCode int
	stdOut := &bytes.Buffer{}
	stdErr := &bytes.Buffer{}
	var exited bool
	func() {
		defer func() {
			if r := recover(); r != nil {
				exited = true
			}
		}()
		flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
		doMain(stdOut, stdErr, func(code int) {
			exitCode = code
			panic(code)
		})
	}()

	require.True(t, exited)

	return exitCode, stdOut.String(), stdErr.String()
}
