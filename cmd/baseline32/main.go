package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/segmentio/encoding/json"
	"github.com/xyproto/env/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tetratelabs/baseline32"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
	"github.com/tetratelabs/baseline32/internal/version"
)

// Environment variables providing the defaults of the compile flags.
const (
	envFormat   = "BASELINE32_FORMAT"
	envLogLevel = "BASELINE32_LOG_LEVEL"
)

func main() {
	doMain(os.Stdout, os.Stderr, os.Exit)
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut io.Writer, stdErr io.Writer, exit func(code int)) {
	flag.CommandLine.SetOutput(stdErr)

	var help bool
	flag.BoolVar(&help, "h", false, "print usage")

	flag.Parse()

	if help || flag.NArg() == 0 {
		printUsage(stdErr)
		exit(0)
	}

	subCmd := flag.Arg(0)
	switch subCmd {
	case "compile":
		doCompile(flag.Args()[1:], stdOut, stdErr, exit)
	case "version":
		fmt.Fprintln(stdOut, version.GetVersion())
		exit(0)
	default:
		fmt.Fprintln(stdErr, "invalid command")
		printUsage(stdErr)
		exit(1)
	}
}

func doCompile(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	// Reread the environment, which env caches.
	env.Load()

	flags := flag.NewFlagSet("compile", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	var configPath string
	flags.StringVar(&configPath, "config", "", "path to a TOML file overriding the default configuration")

	var format string
	flags.StringVar(&format, "format", env.Str(envFormat, "text"), "output format: text, hex or json. "+
		"Defaults to $"+envFormat+" when set.")

	var verbose bool
	flags.BoolVar(&verbose, "v", false, "log the compilation of each function to stderr")

	var stats bool
	flags.BoolVar(&stats, "stats", false, "print the compilation statistics to stderr")

	_ = flags.Parse(args)

	if help {
		printCompileUsage(stdErr, flags)
		exit(0)
	}

	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing path to program file")
		printCompileUsage(stdErr, flags)
		exit(1)
	}

	write, ok := formats[format]
	if !ok {
		fmt.Fprintf(stdErr, "invalid format: %s\n", format)
		exit(1)
	}

	logger, err := newLogger(stdErr, verbose)
	if err != nil {
		fmt.Fprintf(stdErr, "invalid log level: %v\n", err)
		exit(1)
	}
	defer logger.Sync() //nolint

	c := baseline32.NewConfig()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			fmt.Fprintf(stdErr, "error reading config: %v\n", err)
			exit(1)
		}
		if c, err = c.WithTOML(data); err != nil {
			fmt.Fprintf(stdErr, "error reading config: %v\n", err)
			exit(1)
		}
	}
	c = c.WithEnv().WithLogger(logger)

	data, err := os.ReadFile(flags.Arg(0))
	if err != nil {
		fmt.Fprintf(stdErr, "error reading program: %v\n", err)
		exit(1)
	}
	prog, err := baseline32.ParseProgram(data)
	if err != nil {
		fmt.Fprintf(stdErr, "error reading program: %v\n", err)
		exit(1)
	}

	m, err := baseline32.Compile(context.Background(), c, prog)
	if err != nil {
		fmt.Fprintf(stdErr, "error compiling program: %v\n", err)
		exit(1)
	}
	defer m.Close()

	if err = write(stdOut, m); err != nil {
		fmt.Fprintf(stdErr, "error writing output: %v\n", err)
		exit(1)
	}
	if stats {
		fmt.Fprintf(stdErr, "functions: %d, bailouts: %d, instructions: %d, large frames: %d\n",
			m.Stats.Functions, m.Stats.Bailouts, m.Stats.Instructions, m.Stats.LargeFrames)
	}
	exit(0)
}

// newLogger writes to stdErr at the level of $BASELINE32_LOG_LEVEL, or debug when verbose.
func newLogger(stdErr io.Writer, verbose bool) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	} else if name := env.Str(envLogLevel); name != "" {
		if err := level.UnmarshalText([]byte(name)); err != nil {
			return nil, err
		}
	}
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(stdErr), level)), nil
}

var formats = map[string]func(io.Writer, *baseline32.Module) error{
	"text": writeText,
	"hex":  writeHex,
	"json": writeJSON,
}

// writeText disassembles each function.
func writeText(w io.Writer, m *baseline32.Module) error {
	for i, f := range m.Functions {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if f.Bailout != nil {
			fmt.Fprintf(w, "%s: %v\n", f.Name, f.Bailout)
			continue
		}
		fmt.Fprintf(w, "%s: ; offset=%#x frame_size=%d\n", f.Name, f.Offset, f.FrameSize)
		lines, err := riscv32.Disassemble(f.Code)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		relocations := map[uint32]baseline32.Relocation{}
		for _, r := range f.Relocations {
			relocations[r.Offset] = r
		}
		for j, line := range lines {
			pc := uint32(j * 4)
			if r, ok := relocations[pc]; ok {
				fmt.Fprintf(w, "  %04x: %-32s ; %s\n", pc, line, r)
				continue
			}
			fmt.Fprintf(w, "  %04x: %s\n", pc, line)
		}
	}
	return nil
}

// writeHex prints one line per function: its name, offset and code.
func writeHex(w io.Writer, m *baseline32.Module) error {
	for _, f := range m.Functions {
		if f.Bailout != nil {
			fmt.Fprintf(w, "%s -\n", f.Name)
			continue
		}
		fmt.Fprintf(w, "%s %#x %s\n", f.Name, f.Offset, hex.EncodeToString(f.Code))
	}
	return nil
}

type jsonRelocation struct {
	Offset uint32 `json:"offset"`
	Kind   string `json:"kind"`
	Target uint32 `json:"target"`
}

type jsonSafepoint struct {
	PC          uint32 `json:"pc"`
	TaggedSlots []int  `json:"tagged_slots,omitempty"`
}

type jsonFunction struct {
	Name        string           `json:"name"`
	Offset      int              `json:"offset"`
	FrameSize   int32            `json:"frame_size"`
	Code        string           `json:"code,omitempty"`
	Relocations []jsonRelocation `json:"relocations,omitempty"`
	Safepoints  []jsonSafepoint  `json:"safepoints,omitempty"`
	Bailout     string           `json:"bailout,omitempty"`
}

type jsonModule struct {
	Functions []jsonFunction   `json:"functions"`
	Stats     baseline32.Stats `json:"stats"`
}

func writeJSON(w io.Writer, m *baseline32.Module) error {
	out := jsonModule{Functions: make([]jsonFunction, 0, len(m.Functions)), Stats: m.Stats}
	for _, f := range m.Functions {
		jf := jsonFunction{Name: f.Name}
		if f.Bailout != nil {
			jf.Bailout = f.Bailout.Error()
			out.Functions = append(out.Functions, jf)
			continue
		}
		jf.Offset, jf.FrameSize, jf.Code = f.Offset, f.FrameSize, hex.EncodeToString(f.Code)
		for _, r := range f.Relocations {
			jf.Relocations = append(jf.Relocations, jsonRelocation{Offset: r.Offset, Kind: r.Kind.String(), Target: r.Target})
		}
		for _, s := range f.Safepoints {
			jf.Safepoints = append(jf.Safepoints, jsonSafepoint{PC: s.PC, TaggedSlots: s.TaggedSlots})
		}
		out.Functions = append(out.Functions, jf)
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}

func printUsage(stdErr io.Writer) {
	fmt.Fprintln(stdErr, "baseline32 CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  baseline32 <command>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Commands:")
	fmt.Fprintln(stdErr, "  compile\tCompiles a program of operations to RV32 machine code")
	fmt.Fprintln(stdErr, "  version\tDisplays the version of baseline32 CLI")
}

func printCompileUsage(stdErr io.Writer, flags *flag.FlagSet) {
	fmt.Fprintln(stdErr, "baseline32 CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  baseline32 compile <options> <path to program file>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}
