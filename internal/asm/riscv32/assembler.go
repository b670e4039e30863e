package riscv32

import (
	"github.com/tetratelabs/baseline32/internal/asm"
)

// Assembler is the interface for the RV32 specific assembler.
//
// Every node corresponds to exactly one 32-bit instruction, so that offsets in
// the binary can be computed before encoding and patched nodes never change size.
type Assembler interface {
	asm.AssemblerBase

	// CompileTwoRegistersToRegister adds an R-type instruction `rd = rs1 op rs2`.
	CompileTwoRegistersToRegister(instruction asm.Instruction, rs1, rs2, rd asm.Register)

	// CompileRegisterAndConstToRegister adds an I-type instruction `rd = rs1 op imm`, including
	// immediate shifts and jalr.
	CompileRegisterAndConstToRegister(instruction asm.Instruction, rs1 asm.Register, imm asm.ConstantValue, rd asm.Register) asm.Node

	// CompileFloatingPointUnary adds a unary floating point instruction (conversions, sqrt,
	// moves between register files) with the given static rounding mode.
	CompileFloatingPointUnary(instruction asm.Instruction, from, to asm.Register, rm RoundingMode)

	// CompileConditionalBranch adds a branch comparing rs1 and rs2. The target is
	// assigned later with AssignJumpTarget, SetJumpTargetOnNext or a Label.
	CompileConditionalBranch(instruction asm.Instruction, rs1, rs2 asm.Register) asm.Node

	// CompileJumpAndLink adds `jal rd, target` and returns its node.
	CompileJumpAndLink(rd asm.Register) asm.Node

	// CompileFarJump adds `auipc scratch, hi; jalr link, lo(scratch)` whose target is assigned
	// to the returned (auipc) node later. The pair reaches any 32-bit PC-relative offset.
	CompileFarJump(scratch, link asm.Register) asm.Node

	// CompileAtomic adds lr.w/sc.w. For lr.w, src must be asm.NilRegister.
	CompileAtomic(instruction asm.Instruction, addr, src, dst asm.Register, acquire, release bool)

	// CompileFence adds `fence pred, succ` with the FenceX bits.
	CompileFence(pred, succ byte)

	// CompileVectorConfig adds `vsetivli zero, avl, sew, lmul, ta, ma`.
	CompileVectorConfig(avl int, sew SEW, lmul LMUL)

	// CompileVectorVV adds a vector-vector instruction `vd = vs2 op vs1`.
	CompileVectorVV(instruction asm.Instruction, vs2, vs1, vd asm.Register, masked bool)

	// CompileVectorVX adds a vector-scalar instruction `vd = vs2 op rs1`, where rs1 is an integer
	// or a floating point register depending on the instruction.
	CompileVectorVX(instruction asm.Instruction, vs2, rs1, vd asm.Register, masked bool)

	// CompileVectorVI adds a vector-immediate instruction `vd = vs2 op imm`.
	CompileVectorVI(instruction asm.Instruction, vs2 asm.Register, imm asm.ConstantValue, vd asm.Register, masked bool)

	// CompileVectorUnary adds a unary vector instruction reading vs2, including the moves from
	// element zero to scalar registers.
	CompileVectorUnary(instruction asm.Instruction, vs2, vd asm.Register, masked bool)

	// CompileVectorMove adds vmv.v.v, vmv.v.x, vmv.s.x, vfmv.v.f or vfmv.s.f.
	CompileVectorMove(instruction asm.Instruction, src, vd asm.Register)

	// CompileVectorMoveImmediate adds vmv.v.i.
	CompileVectorMoveImmediate(imm asm.ConstantValue, vd asm.Register)

	// NewLabel returns an unbound label.
	NewLabel() *Label

	// BindLabel binds the label to the next node added to the assembler.
	BindLabel(l *Label)

	// JumpToLabel makes the jump-kind node target the label.
	JumpToLabel(n asm.Node, l *Label)

	// Nodes returns the number of nodes added so far.
	Nodes() int
}
