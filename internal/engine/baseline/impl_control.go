package baseline

import (
	"fmt"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

func (c *Compiler) compileLabel(_ *scope, o *OperationLabel) error {
	c.BindLabel(o.Label)
	return nil
}

func (c *Compiler) compileJump(_ *scope, o *OperationJump) error {
	c.jump(o.Label)
	return nil
}

func (c *Compiler) compileJumpToRegister(_ *scope, o *OperationJumpToRegister) error {
	c.assembler.CompileJumpToRegister(riscv32.JALR, o.Target)
	return nil
}

// conditionalBranch returns the branch instruction of the condition and its operands in order.
func conditionalBranch(cond Condition, lhs, rhs asm.Register) (asm.Instruction, asm.Register, asm.Register) {
	switch cond {
	case CondEqual:
		return riscv32.BEQ, lhs, rhs
	case CondNotEqual:
		return riscv32.BNE, lhs, rhs
	case CondLessThan:
		return riscv32.BLT, lhs, rhs
	case CondGreaterEqual:
		return riscv32.BGE, lhs, rhs
	case CondGreaterThan:
		return riscv32.BLT, rhs, lhs
	case CondLessEqual:
		return riscv32.BGE, rhs, lhs
	case CondUnsignedLessThan:
		return riscv32.BLTU, lhs, rhs
	case CondUnsignedGreaterEqual:
		return riscv32.BGEU, lhs, rhs
	case CondUnsignedGreaterThan:
		return riscv32.BLTU, rhs, lhs
	case CondUnsignedLessEqual:
		return riscv32.BGEU, rhs, lhs
	}
	panic(fmt.Sprintf("BUG: unknown condition %d", cond))
}

func (c *Compiler) compileCondJump(_ *scope, o *OperationCondJump) error {
	switch o.Type {
	case KindI32, KindRef, KindRefNull, KindRtt:
	default:
		panic(fmt.Sprintf("BUG: conditional jump on %s", o.Type))
	}
	if o.Type.IsReference() && o.Cond != CondEqual && o.Cond != CondNotEqual {
		panic(fmt.Sprintf("BUG: references compare with eq and ne only, got %s", o.Cond))
	}
	rhs := zero
	if o.Rhs.IsValid() {
		rhs = o.Rhs.Low()
	}
	inst, a, b := conditionalBranch(o.Cond, o.Lhs.Low(), rhs)
	c.branchFar(inst, a, b, o.Label)
	return nil
}

func (c *Compiler) compileI32CondJumpImm(s *scope, o *OperationI32CondJumpImm) error {
	rhs := zero
	if o.Imm != 0 {
		rhs = s.acquireGP()
		c.li(rhs, o.Imm)
		defer s.release(rhs)
	}
	inst, a, b := conditionalBranch(o.Cond, o.Lhs.Low(), rhs)
	c.branchFar(inst, a, b, o.Label)
	return nil
}

func (c *Compiler) compileI32SubImmJumpNegative(s *scope, o *OperationI32SubImmJumpNegative) error {
	v := o.Value.Low()
	c.addImm(s, v, v, -int64(o.Imm))
	c.branchFar(riscv32.BLT, v, zero, o.Label)
	return nil
}

func (c *Compiler) compileSmiCheck(s *scope, o *OperationSmiCheck) error {
	tag := s.acquireGP()
	c.ri(riscv32.ANDI, tag, o.Src, SmiTagMask)
	inst := riscv32.BEQ
	if o.JumpIfNotSmi {
		inst = riscv32.BNE
	}
	c.branchFar(inst, tag, zero, o.Label)
	s.release(tag)
	return nil
}

func (c *Compiler) compileSetIfNaN(s *scope, o *OperationSetIfNaN) error {
	feq := riscv32.FEQS
	if o.Type == KindF64 {
		feq = riscv32.FEQD
	}
	t := s.acquireGP()
	skip := c.NewLabel()
	c.rr(feq, t, o.Src.Low(), o.Src.Low())
	c.branch(riscv32.BNE, t, zero, skip)
	c.li(t, 1)
	c.assembler.CompileRegisterToMemory(riscv32.SW, t, o.Dst, 0)
	c.BindLabel(skip)
	s.release(t)
	return nil
}

// EmitSelect reports whether a select of the kind has a branchless lowering. RV32 has no
// conditional move, so selects are always lowered with branches.
func (c *Compiler) EmitSelect(ValueKind) bool {
	return false
}

func (c *Compiler) compileSelect(_ *scope, o *OperationSelect) error {
	other, done := c.NewLabel(), c.NewLabel()
	c.branch(riscv32.BEQ, o.Cond, zero, other)
	c.move(o.Dst, o.True)
	c.jump(done)
	c.BindLabel(other)
	c.move(o.Dst, o.False)
	c.BindLabel(done)
	return nil
}

// compileStackCheck jumps to the out-of-line code when sp is at or below the stack limit.
func (c *Compiler) compileStackCheck(_ *scope, o *OperationStackCheck) error {
	limit := o.LimitAddress
	c.assembler.CompileMemoryToRegister(riscv32.LW, limit, 0, limit)
	c.branchFar(riscv32.BGEU, limit, riscv32.RegSP, o.OOL)
	return nil
}

func (c *Compiler) compileTrap(_ *scope, _ *OperationTrap) error {
	c.assembler.CompileStandAlone(riscv32.EBREAK)
	return nil
}

func (c *Compiler) compileDebugBreak(_ *scope, _ *OperationDebugBreak) error {
	c.assembler.CompileStandAlone(riscv32.EBREAK)
	return nil
}
