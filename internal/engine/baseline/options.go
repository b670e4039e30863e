package baseline

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Options controls code generation, with the defaults returned by NewOptions.
type Options struct {
	// Logger receives debug events of the compiler. Defaults to a no-op logger.
	Logger *zap.Logger
	// Stats, when non-nil, is updated by every Compiler using these options.
	Stats *Stats
	// StackSizeKB is the size of the stack. Frames at least this large always overflow.
	StackSizeKB int
	// DebugCode emits extra checks, such as a breakpoint after calls which never return.
	DebugCode bool
	// BigEndian swaps the halves of i64 stack slots.
	BigEndian bool
	// EnableSIMD allows the lowering of S128 operations. Otherwise they bail out.
	EnableSIMD bool
	// DynamicTiering reserves the feedback vector and tier-up budget slots in every frame.
	DynamicTiering bool
}

// NewOptions returns the default options.
func NewOptions() *Options {
	return &Options{
		Logger:         zap.NewNop(),
		StackSizeKB:    DefaultStackSizeKB,
		EnableSIMD:     true,
		DynamicTiering: true,
	}
}

// clone ensures all fields are copied even if nil.
func (o *Options) clone() *Options {
	ret := *o
	return &ret
}

// WithLogger sets the logger. A nil logger is replaced by a no-op one.
func (o *Options) WithLogger(l *zap.Logger) *Options {
	ret := o.clone()
	if l == nil {
		l = zap.NewNop()
	}
	ret.Logger = l
	return ret
}

// WithStats sets the shared counters.
func (o *Options) WithStats(s *Stats) *Options {
	ret := o.clone()
	ret.Stats = s
	return ret
}

// WithStackSizeKB sets the stack size. Values below one are ignored.
func (o *Options) WithStackSizeKB(kb int) *Options {
	ret := o.clone()
	if kb > 0 {
		ret.StackSizeKB = kb
	}
	return ret
}

// WithDebugCode enables the extra checks of debug code.
func (o *Options) WithDebugCode(enabled bool) *Options {
	ret := o.clone()
	ret.DebugCode = enabled
	return ret
}

// WithBigEndian swaps the halves of i64 stack slots.
func (o *Options) WithBigEndian(enabled bool) *Options {
	ret := o.clone()
	ret.BigEndian = enabled
	return ret
}

// WithSIMD enables the lowering of S128 operations.
func (o *Options) WithSIMD(enabled bool) *Options {
	ret := o.clone()
	ret.EnableSIMD = enabled
	return ret
}

// WithDynamicTiering reserves the tier-up slots in every frame.
func (o *Options) WithDynamicTiering(enabled bool) *Options {
	ret := o.clone()
	ret.DynamicTiering = enabled
	return ret
}

// Stats are counters shared by concurrent compilers.
type Stats struct {
	Functions    atomic.Int64
	Bailouts     atomic.Int64
	Instructions atomic.Int64
	LargeFrames  atomic.Int64
}
