package baseline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

// Compiler lowers the operations of one function into RV32 machine code, one operation
// at a time. A Compiler must not be used concurrently; independent compilers share nothing
// but their Options.
type Compiler struct {
	opts       *Options
	logger     *zap.Logger
	assembler  *riscv32.AssemblerImpl
	frame      FrameLayout
	safepoints *SafepointTableBuilder

	relocations           []Relocation
	protectedInstructions []uint32

	reservation *FrameReservation
	bailoutErr  *BailoutError
}

// NewCompiler returns a compiler for a new function. nil options are the defaults.
func NewCompiler(opts *Options) *Compiler {
	if opts == nil {
		opts = NewOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{
		opts:       opts,
		logger:     logger,
		assembler:  riscv32.NewAssemblerImpl(),
		frame:      NewFrameLayout(opts.DynamicTiering),
		safepoints: &SafepointTableBuilder{},
	}
}

// Frame returns the frame layout of the function.
func (c *Compiler) Frame() *FrameLayout {
	return &c.frame
}

// SafepointTable returns the safepoint builder used when none is given to PatchStackFrame.
func (c *Compiler) SafepointTable() *SafepointTableBuilder {
	return c.safepoints
}

// Err returns the bail-out of the function, if any.
func (c *Compiler) Err() error {
	if c.bailoutErr == nil {
		return nil
	}
	return c.bailoutErr
}

// NewLabel returns a label to be bound with BindLabel or OperationLabel.
func (c *Compiler) NewLabel() *riscv32.Label {
	return c.assembler.NewLabel()
}

// BindLabel binds the label to the next instruction.
func (c *Compiler) BindLabel(l *riscv32.Label) {
	c.assembler.BindLabel(l)
}

// pcOffset returns the offset of the next instruction. Every node is one 4-byte instruction.
func (c *Compiler) pcOffset() uint32 {
	return uint32(c.assembler.Nodes()) * 4
}

// Lower emits the code of the operation. After a bail-out, operations are ignored and the
// bail-out is returned.
func (c *Compiler) Lower(op Operation) (err error) {
	if c.bailoutErr != nil {
		return c.bailoutErr
	}
	s := newScope()
	if err = c.lower(s, op); err != nil {
		return err
	}
	if c.bailoutErr != nil {
		return c.bailoutErr
	}
	return nil
}

// Function is the result of a successful compilation.
type Function struct {
	// Offset is the offset of the code in the code segment.
	Offset int
	Code   []byte
	// FrameSize is the size of the frame below the saved fp.
	FrameSize             int32
	Safepoints            []Safepoint
	Relocations           []Relocation
	ProtectedInstructions []uint32
}

// Finalize assembles the function and appends it to the code segment, when not nil.
func (c *Compiler) Finalize(seg *asm.CodeSegment) (*Function, error) {
	if c.bailoutErr != nil {
		return nil, c.bailoutErr
	}
	if c.reservation != nil && !c.reservation.Patched() {
		return nil, fmt.Errorf("stack frame reserved at %#x is never patched", c.reservation.Offset)
	}
	code, err := c.assembler.Assemble()
	if err != nil {
		return nil, err
	}

	f := &Function{
		FrameSize:             c.frame.TotalFrameSize(),
		Safepoints:            c.safepoints.Safepoints(),
		Relocations:           append([]Relocation(nil), c.relocations...),
		ProtectedInstructions: append([]uint32(nil), c.protectedInstructions...),
	}
	if seg != nil {
		buf := seg.Next()
		if _, err := buf.Write(code); err != nil {
			return nil, err
		}
		f.Offset = buf.Offset()
		f.Code = append([]byte(nil), buf.Bytes()...)
	} else {
		f.Code = append([]byte(nil), code...)
	}

	if c.opts.Stats != nil {
		c.opts.Stats.Functions.Inc()
		c.opts.Stats.Instructions.Add(int64(len(code) / 4))
	}
	c.logger.Debug("function finalized",
		zap.Int("code_size", len(code)),
		zap.Int32("frame_size", f.FrameSize),
		zap.Int("relocations", len(f.Relocations)),
		zap.Int("safepoints", len(f.Safepoints)))
	return f, nil
}

// Link patches the call sites of the function loaded at base with the addresses returned by resolve.
func (f *Function) Link(base uint32, resolve func(Relocation) (uint32, error)) error {
	for _, r := range f.Relocations {
		target, err := resolve(r)
		if err != nil {
			return fmt.Errorf("%s: %w", r, err)
		}
		delta := int64(int32(target - (base + r.Offset)))
		if err := riscv32.PatchPCRelative(f.Code, int(r.Offset), delta); err != nil {
			return fmt.Errorf("%s: %w", r, err)
		}
	}
	return nil
}
