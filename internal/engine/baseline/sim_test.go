package baseline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
	"github.com/tetratelabs/baseline32/internal/testing/rv32sim"
)

const maxSteps = 1 << 22

// simulator compiles functions and runs them on an rv32sim machine. The instance it passes in
// a0 points to a stack limit of zero unless the test changes it.
type simulator struct {
	t        *testing.T
	m        *rv32sim.Machine
	instance uint32
	limit    uint32
}

func newSimulator(t *testing.T) *simulator {
	m := rv32sim.New(0)
	m.RegisterCFunctions()
	s := &simulator{t: t, m: m, instance: m.Alloc(64, 16), limit: m.Alloc(4, 4)}
	require.NoError(t, m.WriteUint32(s.instance+InstanceStackLimitAddressOffset, s.limit))
	return s
}

// setStackLimit sets the value of the stack limit read by stack checks.
func (s *simulator) setStackLimit(v uint32) {
	require.NoError(s.t, s.m.WriteUint32(s.limit, v))
}

// compile lowers body inside a frame followed by a return, then ool past the return, and loads
// the linked function. It returns the entry address.
func (s *simulator) compile(opts *Options, body, ool []Operation) uint32 {
	s.t.Helper()
	c := NewCompiler(opts)
	require.NoError(s.t, c.Lower(&OperationEnterFrame{}))
	r := c.PrepareStackFrame()
	for _, op := range body {
		require.NoError(s.t, c.Lower(op), op.Kind().String())
	}
	require.NoError(s.t, c.Lower(&OperationLeaveFrame{}))
	require.NoError(s.t, c.Lower(&OperationDropStackSlotsAndRet{}))
	for _, op := range ool {
		require.NoError(s.t, c.Lower(op), op.Kind().String())
	}
	require.NoError(s.t, c.PatchStackFrame(r, nil))
	return s.load(c)
}

// load finalizes the function of c, links it at the next code address and loads it.
func (s *simulator) load(c *Compiler) uint32 {
	s.t.Helper()
	f, err := c.Finalize(nil)
	require.NoError(s.t, err)
	base := s.m.CodeEnd()
	require.NoError(s.t, f.Link(base, s.resolve))
	entry, err := s.m.LoadCode(f.Code)
	require.NoError(s.t, err)
	require.Equal(s.t, base, entry)
	return entry
}

func (s *simulator) resolve(r Relocation) (uint32, error) {
	switch r.Kind {
	case RelocRuntimeStub:
		return s.m.RegisterTrap(RuntimeStub(r.Target).String()), nil
	case RelocExternalReference:
		if addr, ok := s.m.StubAddress(ExternalReference(r.Target).String()); ok {
			return addr, nil
		}
	}
	return 0, fmt.Errorf("no target for %s", r)
}

// call runs the function at entry on the hart with the instance in a0, and checks that sp is
// restored once it returns.
func (s *simulator) call(h *rv32sim.Hart, entry uint32) error {
	h.SetReg(riscv32.RegA0, s.instance)
	sp := h.Reg(riscv32.RegSP)
	if err := s.m.Call(h, entry, maxSteps); err != nil {
		return err
	}
	require.Equal(s.t, sp, h.Reg(riscv32.RegSP), "sp")
	return nil
}

// requireTrap requires err to be the trap of the runtime stub.
func requireTrap(t *testing.T, err error, stub RuntimeStub) {
	t.Helper()
	var trap *rv32sim.TrapError
	require.True(t, errors.As(err, &trap), "%v", err)
	require.Equal(t, stub.String(), trap.Name)
}

func setPair(h *rv32sim.Hart, r Reg, v uint64) {
	h.SetReg(r.Low(), uint32(v))
	h.SetReg(r.High(), uint32(v>>32))
}

func pairValue(h *rv32sim.Hart, r Reg) uint64 {
	return uint64(h.Reg(r.High()))<<32 | uint64(h.Reg(r.Low()))
}
