package baseline32

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/engine/baseline"
	"github.com/tetratelabs/baseline32/internal/optext"
)

// ErrUnresolved is returned by Module.Link for a call site it has no target for.
var ErrUnresolved = errors.New("unresolved call target")

// Relocation is a call site patched by Module.Link.
type Relocation = baseline.Relocation

// Function is a compiled function of a Module.
type Function struct {
	Name string
	// Index is the position of the function in the Program.
	Index int
	// Offset is the offset of Code in the module, aligned to 16 bytes.
	Offset int
	Code   []byte
	// FrameSize is the size of the frame below the saved fp.
	FrameSize   int32
	Safepoints  []baseline.Safepoint
	Relocations []Relocation
	// Bailout is why the function was left to another tier, in which case it has no Code.
	Bailout error

	compiled *baseline.Function
}

// Stats counts the work of a Compile call.
type Stats struct {
	Functions    int64 `json:"functions"`
	Bailouts     int64 `json:"bailouts"`
	Instructions int64 `json:"instructions"`
	LargeFrames  int64 `json:"large_frames"`
}

// Module is the code of the functions of a Program, laid out in a code segment.
type Module struct {
	Functions []*Function
	Stats     Stats

	seg *asm.CodeSegment
}

// Compile compiles every function of the program concurrently, then lays out the code in program
// order. A function which bails out does not fail the compilation: its Bailout is set instead.
func Compile(ctx context.Context, c *Config, p *Program) (*Module, error) {
	if c == nil {
		c = NewConfig()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &baseline.Stats{}
	opts := c.options(stats)
	functions := make([]*Function, len(p.Functions))
	errs := make([]error, len(p.Functions))

	work := make(chan int)
	var wg sync.WaitGroup
	for n := c.workers(len(p.Functions)); n > 0; n-- {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				functions[i], errs[i] = compileFunction(opts, i, &p.Functions[i])
			}
		}()
	}
	var ctxErr error
feed:
	for i := range p.Functions {
		select {
		case work <- i:
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break feed
		}
	}
	close(work)
	wg.Wait()
	if ctxErr != nil {
		return nil, ctxErr
	}

	var err error
	for i, e := range errs {
		if e != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", p.Functions[i].Name, e))
		}
	}
	if err != nil {
		return nil, err
	}

	m := &Module{Functions: functions, seg: &asm.CodeSegment{}}
	if err := m.layout(); err != nil {
		_ = m.Close()
		return nil, err
	}
	m.Stats = Stats{
		Functions:    stats.Functions.Load(),
		Bailouts:     stats.Bailouts.Load(),
		Instructions: stats.Instructions.Load(),
		LargeFrames:  stats.LargeFrames.Load(),
	}
	c.logger.Debug("module compiled",
		zap.Int("functions", len(functions)),
		zap.Int64("bailouts", m.Stats.Bailouts),
		zap.Int("code_size", len(m.Bytes())))
	return m, nil
}

func compileFunction(opts *baseline.Options, index int, src *FunctionSource) (*Function, error) {
	text, err := optext.Parse(src.Code, src.OOL)
	if err != nil {
		return nil, err
	}
	f := &Function{Name: src.Name, Index: index}
	c := baseline.NewCompiler(opts)
	if err = lower(c, src.FrameSize, text); err == nil {
		f.compiled, err = c.Finalize(nil)
	}
	switch {
	case errors.Is(err, baseline.ErrBailout):
		f.Bailout = err
	case err != nil:
		return nil, err
	default:
		f.Code = f.compiled.Code
		f.FrameSize = f.compiled.FrameSize
		f.Safepoints = f.compiled.Safepoints
		f.Relocations = f.compiled.Relocations
	}
	return f, nil
}

// lower emits the prologue, the body with an implicit return, and the out-of-line code.
func lower(c *baseline.Compiler, frameSize int32, text *optext.Function) error {
	if err := c.Lower(&baseline.OperationEnterFrame{}); err != nil {
		return err
	}
	r := c.PrepareStackFrame()
	if frameSize > 0 {
		c.Frame().RecordUsedSpillOffset(frameSize)
	}
	body := text.Body
	if !returns(body) {
		body = append(body[:len(body):len(body)], &baseline.OperationLeaveFrame{}, &baseline.OperationDropStackSlotsAndRet{})
	}
	for _, ops := range [][]baseline.Operation{body, text.OOL} {
		for _, op := range ops {
			if err := c.Lower(op); err != nil {
				return err
			}
		}
	}
	return c.PatchStackFrame(r, nil)
}

func returns(body []baseline.Operation) bool {
	if len(body) == 0 {
		return false
	}
	_, ok := body[len(body)-1].(*baseline.OperationDropStackSlotsAndRet)
	return ok
}

// layout appends the code of the functions to the code segment.
func (m *Module) layout() error {
	for _, f := range m.Functions {
		if f.Bailout != nil {
			continue
		}
		buf := m.seg.Next()
		if _, err := buf.Write(f.Code); err != nil {
			return err
		}
		f.Offset = buf.Offset()
		f.compiled.Offset = f.Offset
	}
	return nil
}

// Link patches the call sites of every function, for the module loaded at base. Calls between
// functions of the module are resolved by index. Other targets are returned by resolve, which may
// be nil when there are none. Every unresolved call site is reported.
func (m *Module) Link(base uint32, resolve func(Relocation) (uint32, error)) (err error) {
	code := m.seg.Bytes()
	for _, f := range m.Functions {
		if f.Bailout != nil {
			continue
		}
		linkErr := f.compiled.Link(base+uint32(f.Offset), func(r Relocation) (uint32, error) {
			if r.Kind == baseline.RelocWasmCall {
				return m.functionAddress(base, r.Target)
			}
			if resolve == nil {
				return 0, ErrUnresolved
			}
			return resolve(r)
		})
		if linkErr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", f.Name, linkErr))
		}
		copy(code[f.Offset:], f.Code)
	}
	return
}

func (m *Module) functionAddress(base, index uint32) (uint32, error) {
	if int(index) >= len(m.Functions) {
		return 0, fmt.Errorf("%w: no function %d", ErrUnresolved, index)
	}
	f := m.Functions[index]
	if f.Bailout != nil {
		return 0, fmt.Errorf("%w: function %s bailed out", ErrUnresolved, f.Name)
	}
	return base + uint32(f.Offset), nil
}

// Bytes returns the code of the module. Function code starts at Function.Offset.
func (m *Module) Bytes() []byte {
	return m.seg.Bytes()
}

// Close releases the code segment.
func (m *Module) Close() error {
	return m.seg.Unmap()
}
