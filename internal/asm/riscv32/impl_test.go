package riscv32

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/baseline32/internal/asm"
)

func TestNodeImpl_AssignJumpTarget(t *testing.T) {
	n := &NodeImpl{}
	target := &NodeImpl{}
	n.AssignJumpTarget(target)
	require.Equal(t, n.JumpTarget, target)
}

func TestNodeImpl_AssignSourceConstant(t *testing.T) {
	n := &NodeImpl{}
	n.AssignSourceConstant(12345)
	require.Equal(t, int64(12345), n.Imm)
}

func TestNodeImpl_Replace(t *testing.T) {
	next := &NodeImpl{Instruction: NOP}
	n := &NodeImpl{Instruction: ADDI, Rd: RegSP, Rs1: RegSP, Next: next, OffsetInBinaryField: 8, Masked: true}
	n.Replace(LUI, RegT5, asm.NilRegister, 3)
	require.Equal(t, &NodeImpl{Instruction: LUI, Rd: RegT5, Imm: 3, Next: next, OffsetInBinaryField: 8}, n)
}

func TestNodeImpl_String(t *testing.T) {
	for _, tc := range []struct {
		in  *NodeImpl
		exp string
	}{
		{in: &NodeImpl{Instruction: NOP}, exp: "nop"},
		{in: &NodeImpl{Instruction: ADD, Rd: RegA0, Rs1: RegA1, Rs2: RegA2}, exp: "add a0, a1, a2"},
		{in: &NodeImpl{Instruction: ADDI, Rd: RegSP, Rs1: RegSP, Imm: -16}, exp: "addi sp, sp, -16"},
		{in: &NodeImpl{Instruction: LW, Rd: RegA0, Rs1: RegFP, Imm: -8}, exp: "lw a0, -8(fp)"},
		{in: &NodeImpl{Instruction: SW, Rs2: RegRA, Rs1: RegSP, Imm: 4}, exp: "sw ra, 4(sp)"},
		{in: &NodeImpl{Instruction: BNE, Rs1: RegA0, Rs2: RegZERO, JumpTarget: &NodeImpl{Instruction: EBREAK}}, exp: "bne a0, zero, {ebreak}"},
		{in: &NodeImpl{Instruction: JAL, Rd: RegZERO, Imm: -8}, exp: "jal zero, {-8}"},
		{in: &NodeImpl{Instruction: FENCE, Imm: 0x31}, exp: "fence rw, w"},
		{in: &NodeImpl{Instruction: LRW, Rd: RegT0, Rs1: RegA0, Acquire: true}, exp: "lr.w.aq t0, (a0)"},
		{in: &NodeImpl{Instruction: SCW, Rd: RegT1, Rs1: RegA0, Rs2: RegT0, Release: true}, exp: "sc.w.rl t1, t0, (a0)"},
		{in: &NodeImpl{Instruction: FCVTWS, Rd: RegA0, Rs1: RegFA0}, exp: "fcvt.w.s a0, fa0"},
		{in: &NodeImpl{Instruction: VSETIVLI, Rd: RegZERO, Imm: 4, VType: VType(E32, M1)}, exp: "vsetivli zero, 4, e32, m1, ta, ma"},
		{in: &NodeImpl{Instruction: VADDVV, Rd: REG_V1, Rs2: REG_V2, Rs1: REG_V3}, exp: "vadd.vv v1, v2, v3"},
		{in: &NodeImpl{Instruction: VMERGEVXM, Rd: REG_V1, Rs2: REG_V2, Rs1: RegA0}, exp: "vmerge.vxm v1, v2, a0, v0.t"},
		{in: &NodeImpl{Instruction: VSLIDEDOWNVI, Rd: REG_V1, Rs2: REG_V2, Imm: 3}, exp: "vslidedown.vi v1, v2, 3"},
		{in: &NodeImpl{Instruction: VMVXS, Rd: RegA0, Rs2: REG_V1}, exp: "vmv.x.s a0, v1"},
		{in: &NodeImpl{Instruction: VMVVI, Rd: REG_V1, Imm: -1}, exp: "vmv.v.i v1, -1"},
	} {
		tc := tc
		t.Run(tc.exp, func(t *testing.T) {
			require.Equal(t, tc.exp, tc.in.String())
		})
	}
}

func TestAssemblerImpl_EncodeNode(t *testing.T) {
	for _, tc := range []struct {
		n   *NodeImpl
		exp uint32
	}{
		{n: &NodeImpl{Instruction: NOP}, exp: 0x00000013},
		{n: &NodeImpl{Instruction: EBREAK}, exp: 0x00100073},
		{n: &NodeImpl{Instruction: ECALL}, exp: 0x00000073},
		{n: &NodeImpl{Instruction: ADDI, Rd: RegSP, Rs1: RegSP, Imm: -16}, exp: 0xff010113},
		{n: &NodeImpl{Instruction: ADD, Rd: RegA0, Rs1: RegA1, Rs2: RegA2}, exp: 0x00c58533},
		{n: &NodeImpl{Instruction: SUB, Rd: RegA0, Rs1: RegA1, Rs2: RegA2}, exp: 0x40c58533},
		{n: &NodeImpl{Instruction: LW, Rd: RegA0, Rs1: RegSP, Imm: 8}, exp: 0x00812503},
		{n: &NodeImpl{Instruction: SW, Rs2: RegA0, Rs1: RegSP, Imm: 8}, exp: 0x00a12423},
		{n: &NodeImpl{Instruction: LUI, Rd: RegA0, Imm: 0x12345}, exp: 0x12345537},
		{n: &NodeImpl{Instruction: JAL, Rd: RegZERO, Imm: 8}, exp: 0x0080006f},
		{n: &NodeImpl{Instruction: BEQ, Rs1: RegA0, Rs2: RegA1, Imm: 8}, exp: 0x00b50463},
		{n: &NodeImpl{Instruction: BNE, Rs1: RegA0, Rs2: RegZERO, Imm: -4}, exp: 0xfe051ee3},
		{n: &NodeImpl{Instruction: LRW, Rd: RegA0, Rs1: RegA1, Acquire: true}, exp: 0x1405a52f},
		{n: &NodeImpl{Instruction: SCW, Rd: RegA2, Rs1: RegA1, Rs2: RegA0, Release: true}, exp: 0x1aa5a62f},
		{n: &NodeImpl{Instruction: FENCE, Imm: 0x33}, exp: 0x0330000f},
		{n: &NodeImpl{Instruction: FADDS, Rd: RegFA0, Rs1: RegFA1, Rs2: RegFA2}, exp: 0x00c58553},
		{n: &NodeImpl{Instruction: FADDD, Rd: RegFA0, Rs1: RegFA1, Rs2: RegFA2}, exp: 0x02c58553},
		{n: &NodeImpl{Instruction: FCVTWS, Rd: RegA0, Rs1: RegFA0, RoundingMode: RTZ}, exp: 0xc0051553},
		{n: &NodeImpl{Instruction: FMVXW, Rd: RegA0, Rs1: RegFA0}, exp: 0xe0050553},
		{n: &NodeImpl{Instruction: VSETIVLI, Rd: RegZERO, Imm: 4, VType: VType(E32, M1)}, exp: 0xcd027057},
		{n: &NodeImpl{Instruction: VADDVV, Rd: REG_V1, Rs2: REG_V2, Rs1: REG_V3}, exp: 0x022180d7},
		{n: &NodeImpl{Instruction: VLE32V, Rd: REG_V1, Rs1: RegA0}, exp: 0x02056087},
		{n: &NodeImpl{Instruction: VMVXS, Rd: RegA0, Rs2: REG_V1}, exp: 0x42102557},
		{n: &NodeImpl{Instruction: VMERGEVXM, Rd: REG_V1, Rs2: REG_V2, Rs1: RegA0}, exp: 0x5c2540d7},
		{n: &NodeImpl{Instruction: VSLIDEDOWNVI, Rd: REG_V1, Rs2: REG_V2, Imm: 3}, exp: 0x3e21b0d7},
	} {
		tc := tc
		t.Run(tc.n.String(), func(t *testing.T) {
			a := NewAssemblerImpl()
			actual, err := a.EncodeNode(tc.n)
			require.NoError(t, err)
			require.Equal(t, tc.exp, actual, "want 0x%08x but got 0x%08x", tc.exp, actual)

			// Decoding gives back the same instruction.
			decoded, err := Decode(actual)
			require.NoError(t, err)
			require.Equal(t, tc.n.Instruction, decoded.Instruction)
			require.Equal(t, tc.n.String(), decoded.String())
		})
	}
}

func TestAssemblerImpl_EncodeNode_errors(t *testing.T) {
	for _, tc := range []struct {
		name string
		n    *NodeImpl
		exp  string
	}{
		{
			name: "immediate",
			n:    &NodeImpl{Instruction: ADDI, Rd: RegA0, Rs1: RegA0, Imm: 4096},
			exp:  "addi a0, a0, 4096: immediate 0x1000 does not fit in 12 bits",
		},
		{
			name: "shift amount",
			n:    &NodeImpl{Instruction: SLLI, Rd: RegA0, Rs1: RegA0, Imm: 32},
			exp:  "slli a0, a0, 32: shift amount 32 out of range",
		},
		{
			name: "register file",
			n:    &NodeImpl{Instruction: ADD, Rd: RegA0, Rs1: RegFA0, Rs2: RegA0},
			exp:  "add a0, fa0, a0: rs1 must be in the integer register file but got fa0",
		},
		{
			name: "vector immediate",
			n:    &NodeImpl{Instruction: VADDVI, Rd: REG_V1, Rs2: REG_V1, Imm: 16},
			exp:  "vadd.vi v1, v1, 16: immediate 16 out of range",
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			a := NewAssemblerImpl()
			_, err := a.EncodeNode(tc.n)
			require.EqualError(t, err, tc.exp)
		})
	}
}

func TestAssemblerImpl_Assemble(t *testing.T) {
	a := NewAssemblerImpl()
	a.CompileRegisterAndConstToRegister(ADDI, RegSP, -16, RegSP)
	br := a.CompileConditionalBranch(BEQ, RegA0, RegZERO)
	a.CompileRegisterAndConstToRegister(ADDI, RegA0, 1, RegA0)
	a.SetJumpTargetOnNext(br)
	a.CompileStandAlone(EBREAK)

	code, err := a.Assemble()
	require.NoError(t, err)
	require.Equal(t, 16, len(code))
	require.Equal(t, uint32(0xff010113), binary.LittleEndian.Uint32(code))
	require.Equal(t, asm.NodeOffsetInBinary(4), br.OffsetInBinary())

	lines, err := Disassemble(code)
	require.NoError(t, err)
	require.Equal(t, []string{
		"addi sp, sp, -16",
		"beq a0, zero, {+8}",
		"addi a0, a0, 1",
		"ebreak",
	}, lines)
}

func TestAssemblerImpl_Labels(t *testing.T) {
	a := NewAssemblerImpl()
	loop := a.NewLabel()
	done := a.NewLabel()

	a.BindLabel(loop)
	a.CompileRegisterAndConstToRegister(ADDI, RegA0, -1, RegA0)
	a.JumpToLabel(a.CompileConditionalBranch(BEQ, RegA0, RegZERO), done)
	a.JumpToLabel(a.CompileJump(JAL), loop)
	a.BindLabel(done)
	a.CompileStandAlone(EBREAK)

	require.True(t, loop.Bound())
	require.True(t, done.Bound())
	require.Equal(t, 4, a.Nodes())

	code, err := a.Assemble()
	require.NoError(t, err)
	lines, err := Disassemble(code)
	require.NoError(t, err)
	require.Equal(t, []string{
		"addi a0, a0, -1",
		"beq a0, zero, {+8}",
		"jal zero, {-8}",
		"ebreak",
	}, lines)
}

func TestAssemblerImpl_Assemble_unboundLabel(t *testing.T) {
	a := NewAssemblerImpl()
	l := a.NewLabel()
	a.JumpToLabel(a.CompileJump(JAL), l)
	_, err := a.Assemble()
	require.EqualError(t, err, "label targeted by jal zero, {+0} is never bound")
}

func TestAssemblerImpl_Assemble_branchOutOfRange(t *testing.T) {
	a := NewAssemblerImpl()
	br := a.CompileConditionalBranch(BNE, RegA0, RegA1)
	for i := 0; i < 1024; i++ {
		a.CompileStandAlone(NOP)
	}
	a.SetJumpTargetOnNext(br)
	a.CompileStandAlone(EBREAK)

	_, err := a.Assemble()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrBranchOutOfRange))
}

func TestAssemblerImpl_FarJump(t *testing.T) {
	a := NewAssemblerImpl()
	hi := a.CompileFarJump(RegT6, RegZERO)
	a.CompileStandAlone(NOP)
	a.CompileStandAlone(NOP)
	target := a.CompileStandAlone(EBREAK)
	hi.AssignJumpTarget(target)

	code, err := a.Assemble()
	require.NoError(t, err)
	require.Equal(t, uint32(0x00000f97), binary.LittleEndian.Uint32(code[0:]))
	require.Equal(t, uint32(0x010f8067), binary.LittleEndian.Uint32(code[4:]))
}

func TestAssemblerImpl_immediateOf_pcRelative(t *testing.T) {
	a := NewAssemblerImpl()
	hi := &NodeImpl{Instruction: AUIPC, Rd: RegT6, OffsetInBinaryField: 0x10, JumpTarget: &NodeImpl{OffsetInBinaryField: 0x1810}}
	lo := &NodeImpl{Instruction: JALR, Rd: RegZERO, Rs1: RegT6, PCRelativeHi: hi}

	h, err := a.immediateOf(hi)
	require.NoError(t, err)
	l, err := a.immediateOf(lo)
	require.NoError(t, err)
	require.Equal(t, int64(2), h)
	require.Equal(t, int64(-2048), l)
	require.Equal(t, int64(0x1800), h<<12+l)
}

func TestAssemblerImpl_RewriteFarJump(t *testing.T) {
	a := NewAssemblerImpl()
	a.CompileRegisterAndConstToRegister(ADDI, RegSP, 0, RegSP)
	a.CompileStandAlone(NOP)
	after := a.CompileStandAlone(EBREAK)
	target := a.CompileStandAlone(NOP)

	first := a.Root
	a.RewriteFarJump(first, first.Next, RegT6, RegZERO, target)
	require.Equal(t, after, first.Next.Next)

	code, err := a.Assemble()
	require.NoError(t, err)
	lines, err := Disassemble(code)
	require.NoError(t, err)
	require.Equal(t, []string{"auipc t6, 0x0", "jalr zero, t6, 12", "ebreak", "nop"}, lines)
}

func TestAssemblerImpl_OnGenerateCallbacks(t *testing.T) {
	a := NewAssemblerImpl()
	n := a.CompileStandAlone(NOP)
	a.CompileStandAlone(NOP)
	var called bool
	a.AddOnGenerateCallBack(func(code []byte) error {
		called = true
		require.Equal(t, 8, len(code))
		require.Equal(t, asm.NodeOffsetInBinary(0), n.OffsetInBinary())
		return nil
	})
	_, err := a.Assemble()
	require.NoError(t, err)
	require.True(t, called)
}

func TestDecode_unknown(t *testing.T) {
	_, err := Decode(0xffffffff)
	require.EqualError(t, err, "cannot decode 0xffffffff")
}

func TestVLMax(t *testing.T) {
	require.Equal(t, 16, VLMax(E8, M1))
	require.Equal(t, 4, VLMax(E32, M1))
	require.Equal(t, 2, VLMax(E64, M1))
	require.Equal(t, 4, VLMax(E16, MF2))
	require.Equal(t, 8, VLMax(E32, M2))
}
