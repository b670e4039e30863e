package baseline32

import (
	"fmt"
	"runtime"

	"github.com/pelletier/go-toml/v2"
	"github.com/xyproto/env/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tetratelabs/baseline32/internal/engine/baseline"
)

// maxStackSizeKB bounds the configurable stack size to what the frame check can express.
const maxStackSizeKB = 1 << 20

// Environment variables read by Config.WithEnv.
const (
	EnvStackSizeKB    = "BASELINE32_STACK_KB"
	EnvDebugCode      = "BASELINE32_DEBUG_CODE"
	EnvSIMD           = "BASELINE32_SIMD"
	EnvDynamicTiering = "BASELINE32_DYNAMIC_TIERING"
	EnvParallelism    = "BASELINE32_PARALLELISM"
)

// Config controls compilation, with the default implementation as NewConfig.
type Config struct {
	logger         *zap.Logger
	stackSizeKB    int
	debugCode      bool
	bigEndian      bool
	simd           bool
	dynamicTiering bool
	parallelism    int
}

// defaultConfig helps avoid copy/pasting the wrong defaults.
var defaultConfig = &Config{
	logger:         zap.NewNop(),
	stackSizeKB:    baseline.DefaultStackSizeKB,
	simd:           true,
	dynamicTiering: true,
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return defaultConfig.clone()
}

// clone ensures all fields are copied even if nil.
func (c *Config) clone() *Config {
	ret := *c
	return &ret
}

// WithLogger sets the logger of the compilers. Defaults to a no-op logger.
func (c *Config) WithLogger(logger *zap.Logger) *Config {
	if logger == nil {
		logger = zap.NewNop()
	}
	ret := c.clone()
	ret.logger = logger
	return ret
}

// WithStackSizeKB sets the stack size used to check large frames. Defaults to baseline.DefaultStackSizeKB.
//
// Note: Frames at least as large as the stack always overflow.
func (c *Config) WithStackSizeKB(kb int) *Config {
	ret := c.clone()
	ret.stackSizeKB = kb
	return ret
}

// WithDebugCode emits extra checks, such as breakpoints after calls which never return. Defaults to false.
func (c *Config) WithDebugCode(enabled bool) *Config {
	ret := c.clone()
	ret.debugCode = enabled
	return ret
}

// WithBigEndian swaps the words of i64 stack slots. Defaults to false.
func (c *Config) WithBigEndian(enabled bool) *Config {
	ret := c.clone()
	ret.bigEndian = enabled
	return ret
}

// WithSIMD enables the lowering of v128 operations. Defaults to true.
//
// When false, functions using v128 operations bail out.
func (c *Config) WithSIMD(enabled bool) *Config {
	ret := c.clone()
	ret.simd = enabled
	return ret
}

// WithDynamicTiering reserves the feedback vector and tier-up budget slots in every frame. Defaults to true.
func (c *Config) WithDynamicTiering(enabled bool) *Config {
	ret := c.clone()
	ret.dynamicTiering = enabled
	return ret
}

// WithParallelism sets the number of functions compiled concurrently. Zero, the default, uses
// runtime.GOMAXPROCS.
func (c *Config) WithParallelism(n int) *Config {
	ret := c.clone()
	ret.parallelism = n
	return ret
}

// WithEnv overrides the configuration with the environment variables which are set and not empty.
func (c *Config) WithEnv() *Config {
	// Reread the environment, which env caches.
	env.Load()
	ret := c.clone()
	if env.Has(EnvStackSizeKB) {
		ret.stackSizeKB = env.Int(EnvStackSizeKB, ret.stackSizeKB)
	}
	if env.Has(EnvDebugCode) {
		ret.debugCode = env.Bool(EnvDebugCode)
	}
	if env.Has(EnvSIMD) {
		ret.simd = env.Bool(EnvSIMD)
	}
	if env.Has(EnvDynamicTiering) {
		ret.dynamicTiering = env.Bool(EnvDynamicTiering)
	}
	if env.Has(EnvParallelism) {
		ret.parallelism = env.Int(EnvParallelism, ret.parallelism)
	}
	return ret
}

// configFile is the TOML form of Config. Absent keys keep their current value.
type configFile struct {
	StackSizeKB    *int  `toml:"stack_size_kb"`
	DebugCode      *bool `toml:"debug_code"`
	BigEndian      *bool `toml:"big_endian"`
	SIMD           *bool `toml:"simd"`
	DynamicTiering *bool `toml:"dynamic_tiering"`
	Parallelism    *int  `toml:"parallelism"`
}

// WithTOML overrides the configuration with the keys of the TOML document:
//
//	stack_size_kb = 984
//	debug_code = true
//	big_endian = false
//	simd = true
//	dynamic_tiering = true
//	parallelism = 4
func (c *Config) WithTOML(data []byte) (*Config, error) {
	var f configFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	ret := c.clone()
	if f.StackSizeKB != nil {
		ret.stackSizeKB = *f.StackSizeKB
	}
	if f.DebugCode != nil {
		ret.debugCode = *f.DebugCode
	}
	if f.BigEndian != nil {
		ret.bigEndian = *f.BigEndian
	}
	if f.SIMD != nil {
		ret.simd = *f.SIMD
	}
	if f.DynamicTiering != nil {
		ret.dynamicTiering = *f.DynamicTiering
	}
	if f.Parallelism != nil {
		ret.parallelism = *f.Parallelism
	}
	return ret, nil
}

// Validate returns every invalid setting of the configuration, combined with multierr.
func (c *Config) Validate() (err error) {
	if c.stackSizeKB < 1 || c.stackSizeKB > maxStackSizeKB {
		err = multierr.Append(err, fmt.Errorf("stack size must be between 1 and %d KB, but was %d", maxStackSizeKB, c.stackSizeKB))
	}
	if c.parallelism < 0 {
		err = multierr.Append(err, fmt.Errorf("parallelism must not be negative, but was %d", c.parallelism))
	}
	return
}

// options returns the compiler options of the configuration, updating stats.
func (c *Config) options(stats *baseline.Stats) *baseline.Options {
	return baseline.NewOptions().
		WithLogger(c.logger).
		WithStats(stats).
		WithStackSizeKB(c.stackSizeKB).
		WithDebugCode(c.debugCode).
		WithBigEndian(c.bigEndian).
		WithSIMD(c.simd).
		WithDynamicTiering(c.dynamicTiering)
}

func (c *Config) workers(functions int) int {
	n := c.parallelism
	if n == 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if n > functions {
		n = functions
	}
	if n < 1 {
		n = 1
	}
	return n
}
