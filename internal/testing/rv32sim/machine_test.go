package rv32sim

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

// load assembles the code emitted by build, followed by a return, and loads it into m.
func load(t *testing.T, m *Machine, build func(a *riscv32.AssemblerImpl)) uint32 {
	a := riscv32.NewAssemblerImpl()
	build(a)
	a.CompileJumpToRegister(riscv32.JALR, riscv32.RegRA)
	code, err := a.Assemble()
	require.NoError(t, err)
	entry, err := m.LoadCode(code)
	require.NoError(t, err)
	return entry
}

func TestMachine_Call_integer(t *testing.T) {
	for _, tc := range []struct {
		name string
		inst func(a *riscv32.AssemblerImpl)
		a0   uint32
		a1   uint32
		want uint32
	}{
		{
			name: "add",
			inst: func(a *riscv32.AssemblerImpl) {
				a.CompileTwoRegistersToRegister(riscv32.ADD, riscv32.RegA0, riscv32.RegA1, riscv32.RegA0)
			},
			a0: 0xffffffff, a1: 2, want: 1,
		},
		{
			name: "sra",
			inst: func(a *riscv32.AssemblerImpl) {
				a.CompileTwoRegistersToRegister(riscv32.SRA, riscv32.RegA0, riscv32.RegA1, riscv32.RegA0)
			},
			a0: 0x80000000, a1: 33, want: 0xc0000000,
		},
		{
			name: "mulh",
			inst: func(a *riscv32.AssemblerImpl) {
				a.CompileTwoRegistersToRegister(riscv32.MULH, riscv32.RegA0, riscv32.RegA1, riscv32.RegA0)
			},
			a0: 0xffffffff, a1: 0xffffffff, want: 0,
		},
		{
			name: "mulhu",
			inst: func(a *riscv32.AssemblerImpl) {
				a.CompileTwoRegistersToRegister(riscv32.MULHU, riscv32.RegA0, riscv32.RegA1, riscv32.RegA0)
			},
			a0: 0xffffffff, a1: 0xffffffff, want: 0xfffffffe,
		},
		{
			name: "div by zero",
			inst: func(a *riscv32.AssemblerImpl) {
				a.CompileTwoRegistersToRegister(riscv32.DIV, riscv32.RegA0, riscv32.RegA1, riscv32.RegA0)
			},
			a0: 7, a1: 0, want: 0xffffffff,
		},
		{
			name: "div overflow",
			inst: func(a *riscv32.AssemblerImpl) {
				a.CompileTwoRegistersToRegister(riscv32.DIV, riscv32.RegA0, riscv32.RegA1, riscv32.RegA0)
			},
			a0: 0x80000000, a1: 0xffffffff, want: 0x80000000,
		},
		{
			name: "rem overflow",
			inst: func(a *riscv32.AssemblerImpl) {
				a.CompileTwoRegistersToRegister(riscv32.REM, riscv32.RegA0, riscv32.RegA1, riscv32.RegA0)
			},
			a0: 0x80000000, a1: 0xffffffff, want: 0,
		},
		{
			name: "sltiu",
			inst: func(a *riscv32.AssemblerImpl) {
				a.CompileRegisterAndConstToRegister(riscv32.SLTIU, riscv32.RegA0, -1, riscv32.RegA0)
			},
			a0: 5, want: 1,
		},
		{
			name: "lui and addi",
			inst: func(a *riscv32.AssemblerImpl) {
				a.CompileConstToRegister(riscv32.LUI, 0x12345, riscv32.RegA0)
				a.CompileRegisterAndConstToRegister(riscv32.ADDI, riscv32.RegA0, -1, riscv32.RegA0)
			},
			want: 0x12344fff,
		},
		{
			name: "write to zero is ignored",
			inst: func(a *riscv32.AssemblerImpl) {
				a.CompileRegisterAndConstToRegister(riscv32.ADDI, riscv32.RegZERO, 1, riscv32.RegZERO)
				a.CompileTwoRegistersToRegister(riscv32.ADD, riscv32.RegZERO, riscv32.RegZERO, riscv32.RegA0)
			},
			a0: 3, want: 0,
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			m := New(0)
			entry := load(t, m, tc.inst)
			h := m.NewHart()
			h.SetReg(riscv32.RegA0, tc.a0)
			h.SetReg(riscv32.RegA1, tc.a1)
			require.NoError(t, m.Call(h, entry, 100))
			require.Equal(t, tc.want, h.Reg(riscv32.RegA0))
		})
	}
}

func TestMachine_Call_branchLoop(t *testing.T) {
	m := New(0)
	// a0 = sum of 1..a1
	entry := load(t, m, func(a *riscv32.AssemblerImpl) {
		a.CompileRegisterAndConstToRegister(riscv32.ADDI, riscv32.RegZERO, 0, riscv32.RegA0)
		loop := a.NewLabel()
		done := a.NewLabel()
		a.BindLabel(loop)
		br := a.CompileConditionalBranch(riscv32.BEQ, riscv32.RegA1, riscv32.RegZERO)
		a.JumpToLabel(br, done)
		a.CompileTwoRegistersToRegister(riscv32.ADD, riscv32.RegA0, riscv32.RegA1, riscv32.RegA0)
		a.CompileRegisterAndConstToRegister(riscv32.ADDI, riscv32.RegA1, -1, riscv32.RegA1)
		j := a.CompileJump(riscv32.JAL)
		a.JumpToLabel(j, loop)
		a.BindLabel(done)
	})
	h := m.NewHart()
	h.SetReg(riscv32.RegA1, 100)
	require.NoError(t, m.Call(h, entry, 1000))
	require.Equal(t, uint32(5050), h.Reg(riscv32.RegA0))

	h.SetReg(riscv32.RegA1, 100)
	require.ErrorIs(t, m.Call(h, entry, 50), ErrStepLimit)
}

func TestMachine_memory(t *testing.T) {
	m := New(0)
	entry := load(t, m, func(a *riscv32.AssemblerImpl) {
		a.CompileMemoryToRegister(riscv32.LB, riscv32.RegA0, 0, riscv32.RegA1)
		a.CompileMemoryToRegister(riscv32.LHU, riscv32.RegA0, 0, riscv32.RegA2)
		a.CompileRegisterToMemory(riscv32.SW, riscv32.RegA1, riscv32.RegA0, 4)
	})
	addr := m.Alloc(8, 8)
	require.NoError(t, m.WriteUint16(addr, 0x80ff))

	h := m.NewHart()
	h.SetReg(riscv32.RegA0, addr)
	require.NoError(t, m.Call(h, entry, 100))
	require.Equal(t, uint32(0xffffffff), h.Reg(riscv32.RegA1))
	require.Equal(t, uint32(0x80ff), h.Reg(riscv32.RegA2))
	v, err := m.ReadUint32(addr + 4)
	require.NoError(t, err)
	require.Equal(t, uint32(0xffffffff), v)

	h.SetReg(riscv32.RegA0, 8)
	require.ErrorIs(t, m.Call(h, entry, 100), ErrOutOfBounds)
}

func TestMachine_stubs(t *testing.T) {
	m := New(0)
	called := 0
	stub := m.RegisterStub("double", func(h *Hart) error {
		called++
		h.SetReg(riscv32.RegA0, h.Reg(riscv32.RegA0)*2)
		return nil
	})
	trap := m.RegisterTrap("ThrowWasmTrapUnreachable")
	require.Equal(t, stub, m.RegisterStub("double", nil))

	callTo := func(target uint32) uint32 {
		a := riscv32.NewAssemblerImpl()
		// Keep ra in s1 across the call.
		a.CompileRegisterAndConstToRegister(riscv32.ADDI, riscv32.RegRA, 0, riscv32.RegS1)
		a.CompileFarJump(riscv32.RegRA, riscv32.RegRA)
		a.CompileJumpToRegister(riscv32.JALR, riscv32.RegS1)
		code, err := a.Assemble()
		require.NoError(t, err)
		base := m.CodeEnd()
		require.NoError(t, riscv32.PatchPCRelative(code, 4, int64(int32(target-(base+4)))))
		entry, err := m.LoadCode(code)
		require.NoError(t, err)
		require.Equal(t, base, entry)
		return entry
	}

	h := m.NewHart()
	h.SetReg(riscv32.RegA0, 21)
	require.NoError(t, m.Call(h, callTo(stub), 100))
	require.Equal(t, uint32(42), h.Reg(riscv32.RegA0))
	require.Equal(t, 1, called)

	entry := callTo(trap)
	err := m.Call(h, entry, 100)
	var trapErr *TrapError
	require.True(t, errors.As(err, &trapErr))
	require.Equal(t, "ThrowWasmTrapUnreachable", trapErr.Name)
	require.Equal(t, entry+12, trapErr.ReturnAddress)
}

func TestMachine_breakpoint(t *testing.T) {
	m := New(0)
	entry := load(t, m, func(a *riscv32.AssemblerImpl) {
		a.CompileStandAlone(riscv32.EBREAK)
	})
	err := m.Call(m.NewHart(), entry, 10)
	var bp *BreakpointError
	require.True(t, errors.As(err, &bp))
	require.Equal(t, entry, bp.PC)
}

func TestMachine_RunInterleaved_reservations(t *testing.T) {
	m := New(0)
	// Increments the word at a0 a1 times with an LR/SC loop.
	entry := load(t, m, func(a *riscv32.AssemblerImpl) {
		loop, retry, done := a.NewLabel(), a.NewLabel(), a.NewLabel()
		a.BindLabel(loop)
		br := a.CompileConditionalBranch(riscv32.BEQ, riscv32.RegA1, riscv32.RegZERO)
		a.JumpToLabel(br, done)
		a.BindLabel(retry)
		a.CompileAtomic(riscv32.LRW, riscv32.RegA0, riscv32.RegZERO, riscv32.RegT0, true, true)
		a.CompileRegisterAndConstToRegister(riscv32.ADDI, riscv32.RegT0, 1, riscv32.RegT0)
		a.CompileAtomic(riscv32.SCW, riscv32.RegA0, riscv32.RegT0, riscv32.RegT1, true, true)
		bne := a.CompileConditionalBranch(riscv32.BNE, riscv32.RegT1, riscv32.RegZERO)
		a.JumpToLabel(bne, retry)
		a.CompileRegisterAndConstToRegister(riscv32.ADDI, riscv32.RegA1, -1, riscv32.RegA1)
		j := a.CompileJump(riscv32.JAL)
		a.JumpToLabel(j, loop)
		a.BindLabel(done)
	})
	counter := m.Alloc(4, 4)

	const n = 500
	harts := []*Hart{m.NewHart(), m.NewHart(), m.NewHart()}
	for _, h := range harts {
		h.SetReg(riscv32.RegA0, counter)
		h.SetReg(riscv32.RegA1, n)
	}
	require.NoError(t, m.RunInterleaved(harts, []uint32{entry, entry, entry}, 1_000_000, 1))
	v, err := m.ReadUint32(counter)
	require.NoError(t, err)
	require.Equal(t, uint32(3*n), v)
}

func TestMachine_float(t *testing.T) {
	m := New(0)
	entry := load(t, m, func(a *riscv32.AssemblerImpl) {
		a.CompileTwoRegistersToRegister(riscv32.FMINS, riscv32.RegFA0, riscv32.RegFA1, riscv32.RegFA2)
		a.CompileTwoRegistersToRegister(riscv32.FEQS, riscv32.RegFA0, riscv32.RegFA0, riscv32.RegA0)
		a.CompileFloatingPointUnary(riscv32.FCVTWS, riscv32.RegFA1, riscv32.RegA1, riscv32.RDN)
		a.CompileFloatingPointUnary(riscv32.FCVTWS, riscv32.RegFA0, riscv32.RegA2, riscv32.RTZ)
		a.CompileTwoRegistersToRegister(riscv32.FADDD, riscv32.RegFA3, riscv32.RegFA3, riscv32.RegFA4)
	})
	h := m.NewHart()
	h.SetFloat32(riscv32.RegFA0, float32(math.NaN()))
	h.SetFloat32(riscv32.RegFA1, -1.5)
	h.SetFloat64(riscv32.RegFA3, math.Inf(1))
	require.NoError(t, m.Call(h, entry, 100))

	require.Equal(t, float32(-1.5), h.Float32(riscv32.RegFA2))
	require.Equal(t, uint32(0), h.Reg(riscv32.RegA0))
	require.Equal(t, uint32(0xfffffffe), h.Reg(riscv32.RegA1))
	require.Equal(t, uint32(math.MaxInt32), h.Reg(riscv32.RegA2))
	require.Equal(t, math.Inf(1), h.Float64(riscv32.RegFA4))

	// A single precision value which is not NaN-boxed reads as the canonical NaN.
	h.F[riscv32.RegisterNumber(riscv32.RegFA1)] = uint64(math.Float32bits(1))
	require.NoError(t, m.Call(h, entry, 100))
	require.Equal(t, uint64(0xffffffff_7fc00000), h.FloatReg(riscv32.RegFA2))
}

func TestMachine_vector(t *testing.T) {
	m := New(0)
	src := m.Alloc(16, 16)
	require.NoError(t, m.WriteBytes(src, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}))

	entry := load(t, m, func(a *riscv32.AssemblerImpl) {
		a.CompileVectorConfig(16, riscv32.E8, riscv32.M1)
		a.CompileMemoryToRegister(riscv32.VLE8V, riscv32.RegA0, 0, riscv32.REG_V1)
		// v2 = v1 + v1
		a.CompileVectorVV(riscv32.VADDVV, riscv32.REG_V1, riscv32.REG_V1, riscv32.REG_V2, false)
		// v0 = v1 > 8, v3 = v0 ? v2 : v1
		a.CompileRegisterAndConstToRegister(riscv32.ADDI, riscv32.RegZERO, 8, riscv32.RegT0)
		a.CompileVectorVX(riscv32.VMSGTUVX, riscv32.REG_V1, riscv32.RegT0, riscv32.REG_V0, false)
		a.CompileVectorVV(riscv32.VMERGEVVM, riscv32.REG_V1, riscv32.REG_V2, riscv32.REG_V3, false)
		// a1 = popcount(v0)
		a.CompileVectorUnary(riscv32.VCPOPM, riscv32.REG_V0, riscv32.RegA1, false)
		// v4 = v1 slid down by 15 at e8
		a.CompileVectorVI(riscv32.VSLIDEDOWNVI, riscv32.REG_V1, 15, riscv32.REG_V4, false)
		// a2 = lane 1 of v1 at e32
		a.CompileVectorConfig(4, riscv32.E32, riscv32.M1)
		a.CompileVectorVI(riscv32.VSLIDEDOWNVI, riscv32.REG_V1, 1, riscv32.REG_V5, false)
		a.CompileVectorUnary(riscv32.VMVXS, riscv32.REG_V5, riscv32.RegA2, false)
		a.CompileRegisterToMemory(riscv32.VSE32V, riscv32.REG_V3, riscv32.RegA0, 0)
	})
	h := m.NewHart()
	h.SetReg(riscv32.RegA0, src)
	require.NoError(t, m.Call(h, entry, 100))

	require.Equal(t, [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 18, 20, 22, 24, 26, 28, 30, 32}, h.VectorReg(riscv32.REG_V3))
	require.Equal(t, uint32(8), h.Reg(riscv32.RegA1))
	require.Equal(t, [16]byte{16}, h.VectorReg(riscv32.REG_V4))
	require.Equal(t, uint32(0x08070605), h.Reg(riscv32.RegA2))
	stored, err := m.Bytes(src, 16)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 18, 20, 22, 24, 26, 28, 30, 32}, stored)
}

func TestMachine_vectorFloat(t *testing.T) {
	m := New(0)
	entry := load(t, m, func(a *riscv32.AssemblerImpl) {
		a.CompileVectorConfig(2, riscv32.E64, riscv32.M1)
		a.CompileVectorMove(riscv32.VFMVVF, riscv32.RegFA0, riscv32.REG_V1)
		a.CompileVectorMove(riscv32.VFMVSF, riscv32.RegFA1, riscv32.REG_V1)
		a.CompileVectorMove(riscv32.VFMVVF, riscv32.RegFA1, riscv32.REG_V2)
		a.CompileVectorVV(riscv32.VFMINVV, riscv32.REG_V1, riscv32.REG_V2, riscv32.REG_V3, false)
		a.CompileVectorVV(riscv32.VMFEQVV, riscv32.REG_V1, riscv32.REG_V1, riscv32.REG_V0, false)
		a.CompileVectorUnary(riscv32.VFCVTRTZXFV, riscv32.REG_V1, riscv32.REG_V4, false)
	})
	h := m.NewHart()
	h.SetFloat64(riscv32.RegFA0, math.NaN())
	h.SetFloat64(riscv32.RegFA1, -2.5)
	require.NoError(t, m.Call(h, entry, 100))

	v3 := h.VectorReg(riscv32.REG_V3)
	require.Equal(t, math.Float64bits(-2.5), leUint64(v3[0:8]))
	require.Equal(t, math.Float64bits(-2.5), leUint64(v3[8:16]))
	require.Equal(t, byte(0b01), h.VectorReg(riscv32.REG_V0)[0]&0b11)
	v4 := h.VectorReg(riscv32.REG_V4)
	require.Equal(t, uint64(math.MaxUint64-1), leUint64(v4[0:8]))
	require.Equal(t, uint64(math.MaxInt64), leUint64(v4[8:16]))
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func TestCFunctions(t *testing.T) {
	m := New(0)
	m.RegisterCFunctions()
	h := m.NewHart()
	buf := m.Alloc(16, 8)

	call := func(name string) uint32 {
		fn := CFunctions()[name]
		require.NotNil(t, fn, name)
		h.X[10] = buf
		require.NoError(t, fn(h))
		return h.X[10]
	}

	minInt64 := int64(math.MinInt64)
	require.NoError(t, m.WriteUint64(buf, uint64(minInt64)))
	require.NoError(t, m.WriteUint64(buf+8, math.MaxUint64))
	require.Equal(t, uint32(0xffffffff), call("int64_div_wrapper"))

	require.NoError(t, m.WriteUint64(buf+8, 0))
	require.Equal(t, uint32(0), call("uint64_mod_wrapper"))

	require.NoError(t, m.WriteUint64(buf, 100))
	require.NoError(t, m.WriteUint64(buf+8, 7))
	require.Equal(t, uint32(1), call("uint64_div_wrapper"))
	q, err := m.ReadUint64(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(14), q)

	require.NoError(t, m.WriteUint64(buf, math.Float64bits(-2.5)))
	call("f64_nearest_int_wrapper")
	f, err := m.ReadUint64(buf)
	require.NoError(t, err)
	require.Equal(t, -2.0, math.Float64frombits(f))

	require.NoError(t, m.WriteUint32(buf, math.Float32bits(float32(math.NaN()))))
	require.Equal(t, uint32(0), call("float32_to_int64_wrapper"))
	require.Equal(t, uint32(1), call("float32_to_int64_sat_wrapper"))
	sat, err := m.ReadUint64(buf)
	require.NoError(t, err)
	require.Equal(t, uint64(0), sat)

	_, ok := m.StubAddress("float64_to_uint64_sat_wrapper")
	require.True(t, ok)
}
