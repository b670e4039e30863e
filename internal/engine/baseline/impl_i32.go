package baseline

import (
	"fmt"
	"math"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

var i32BinaryInstructions = [...]asm.Instruction{
	IntAdd:  riscv32.ADD,
	IntSub:  riscv32.SUB,
	IntMul:  riscv32.MUL,
	IntAnd:  riscv32.AND,
	IntOr:   riscv32.OR,
	IntXor:  riscv32.XOR,
	IntShl:  riscv32.SLL,
	IntShrS: riscv32.SRA,
	IntShrU: riscv32.SRL,
}

// compileI32Binary emits a single instruction. Register shifts only read the low five bits of
// the amount, as wasm requires.
func (c *Compiler) compileI32Binary(_ *scope, o *OperationI32Binary) error {
	c.rr(i32BinaryInstructions[o.Op], o.Dst.Low(), o.Lhs.Low(), o.Rhs.Low())
	return nil
}

func (c *Compiler) compileI32BinaryImm(s *scope, o *OperationI32BinaryImm) error {
	dst, lhs, imm := o.Dst.Low(), o.Lhs.Low(), int64(o.Imm)
	switch o.Op {
	case IntAdd:
		c.addImm(s, dst, lhs, imm)
	case IntSub:
		c.addImm(s, dst, lhs, int64(int32(-o.Imm)))
	case IntAnd, IntOr, IntXor:
		c.logicalImm(s, o.Op, dst, lhs, imm)
	case IntShl:
		c.ri(riscv32.SLLI, dst, lhs, imm&31)
	case IntShrS:
		c.ri(riscv32.SRAI, dst, lhs, imm&31)
	case IntShrU:
		c.ri(riscv32.SRLI, dst, lhs, imm&31)
	case IntMul:
		tmp := s.acquireGP()
		c.li(tmp, o.Imm)
		c.rr(riscv32.MUL, dst, lhs, tmp)
		s.release(tmp)
	default:
		panic(fmt.Sprintf("BUG: unknown i32 operator %d", o.Op))
	}
	return nil
}

// logicalImm emits and/or/xor with a 32-bit immediate.
func (c *Compiler) logicalImm(s *scope, op IntBinaryOp, dst, lhs asm.Register, imm int64) {
	var immInst, regInst asm.Instruction
	switch op {
	case IntAnd:
		immInst, regInst = riscv32.ANDI, riscv32.AND
	case IntOr:
		immInst, regInst = riscv32.ORI, riscv32.OR
	default:
		immInst, regInst = riscv32.XORI, riscv32.XOR
	}
	if fitsImm12(imm) {
		c.ri(immInst, dst, lhs, imm)
		return
	}
	tmp := s.acquireGP()
	c.li(tmp, int32(imm))
	c.rr(regInst, dst, lhs, tmp)
	s.release(tmp)
}

// compileI32Div checks the divisor before dividing: wasm traps where RISC-V returns a value.
func (c *Compiler) compileI32Div(s *scope, o *OperationI32Div) error {
	if o.DivByZero == nil {
		panic("BUG: i32 division without a division by zero label")
	}
	dst, lhs, rhs := o.Dst.Low(), o.Lhs.Low(), o.Rhs.Low()
	c.branchFar(riscv32.BEQ, rhs, zero, o.DivByZero)

	var inst asm.Instruction
	switch o.Op {
	case DivS:
		if o.Unrepresentable == nil {
			panic("BUG: i32.div_s without an unrepresentable label")
		}
		// (lhs ^ INT_MIN) | (rhs + 1) is zero only for INT_MIN / -1.
		t, u := s.acquireGP(), s.acquireGP()
		c.li(t, math.MinInt32)
		c.rr(riscv32.XOR, t, lhs, t)
		c.addi(u, rhs, 1)
		c.rr(riscv32.OR, t, t, u)
		c.branchFar(riscv32.BEQ, t, zero, o.Unrepresentable)
		s.release(t)
		s.release(u)
		inst = riscv32.DIV
	case DivU:
		inst = riscv32.DIVU
	case RemS:
		// rem returns 0 for INT_MIN % -1 as wasm requires.
		inst = riscv32.REM
	case RemU:
		inst = riscv32.REMU
	}
	c.rr(inst, dst, lhs, rhs)
	return nil
}

func (c *Compiler) compileI32Unary(s *scope, o *OperationI32Unary) error {
	dst, src := o.Dst.Low(), o.Src.Low()
	switch o.Op {
	case IntClz:
		x := s.acquireGP()
		c.mv(x, src)
		c.clz32(s, dst, x)
		s.release(x)
	case IntCtz:
		x := s.acquireGP()
		c.ctz32(s, dst, src, x)
		s.release(x)
	case IntPopcnt:
		x := s.acquireGP()
		c.mv(x, src)
		c.popcnt32(s, dst, x)
		s.release(x)
	case IntEqz:
		c.seqz(dst, src)
	case IntExtend8S:
		c.ri(riscv32.SLLI, dst, src, 24)
		c.ri(riscv32.SRAI, dst, dst, 24)
	case IntExtend16S:
		c.ri(riscv32.SLLI, dst, src, 16)
		c.ri(riscv32.SRAI, dst, dst, 16)
	default:
		c.bailout(ReasonOther, "i32."+o.Op.String())
	}
	return nil
}

// clz32 counts the leading zeros of x into dst with a binary search. x is clobbered and must
// not be dst.
func (c *Compiler) clz32(s *scope, dst, x asm.Register) {
	t := s.acquireGP()
	c.li(dst, 0)
	for _, shift := range [...]int64{16, 8, 4, 2, 1} {
		c.ri(riscv32.SRLI, t, x, 32-shift)
		skip := c.assembler.CompileConditionalBranch(riscv32.BNE, t, zero)
		c.addi(dst, dst, shift)
		c.ri(riscv32.SLLI, x, x, shift)
		c.assembler.SetJumpTargetOnNext(skip)
	}
	// x is still zero only when the input was: 31 counted so far.
	c.seqz(t, x)
	c.rr(riscv32.ADD, dst, dst, t)
	s.release(t)
}

// ctz32 counts the trailing zeros of src into dst as popcnt((src-1) & ^src). x is a scratch
// register which may not be dst.
func (c *Compiler) ctz32(s *scope, dst, src, x asm.Register) {
	t := s.acquireGP()
	c.addi(x, src, -1)
	c.ri(riscv32.XORI, t, src, -1)
	c.rr(riscv32.AND, x, x, t)
	s.release(t)
	c.popcnt32(s, dst, x)
}

// popcnt32 counts the set bits of x into dst. x is clobbered and must not be dst.
func (c *Compiler) popcnt32(s *scope, dst, x asm.Register) {
	t := s.acquireGP()
	// x -= (x >> 1) & 0x55555555
	c.ri(riscv32.SRLI, t, x, 1)
	c.li(dst, 0x55555555)
	c.rr(riscv32.AND, t, t, dst)
	c.rr(riscv32.SUB, x, x, t)
	// x = (x & 0x33333333) + ((x >> 2) & 0x33333333)
	c.li(dst, 0x33333333)
	c.ri(riscv32.SRLI, t, x, 2)
	c.rr(riscv32.AND, t, t, dst)
	c.rr(riscv32.AND, x, x, dst)
	c.rr(riscv32.ADD, x, x, t)
	// x = (x + (x >> 4)) & 0x0f0f0f0f
	c.ri(riscv32.SRLI, t, x, 4)
	c.rr(riscv32.ADD, x, x, t)
	c.li(dst, 0x0f0f0f0f)
	c.rr(riscv32.AND, x, x, dst)
	// dst = (x * 0x01010101) >> 24
	c.li(dst, 0x01010101)
	c.rr(riscv32.MUL, x, x, dst)
	c.ri(riscv32.SRLI, dst, x, 24)
	s.release(t)
}

func (c *Compiler) compileI32SetCond(_ *scope, o *OperationI32SetCond) error {
	c.setCond32(o.Cond, o.Dst.Low(), o.Lhs.Low(), o.Rhs.Low())
	return nil
}

// setCond32 sets dst to `lhs cond rhs` without any other register.
func (c *Compiler) setCond32(cond Condition, dst, lhs, rhs asm.Register) {
	switch cond {
	case CondEqual:
		c.rr(riscv32.XOR, dst, lhs, rhs)
		c.seqz(dst, dst)
	case CondNotEqual:
		c.rr(riscv32.XOR, dst, lhs, rhs)
		c.snez(dst, dst)
	case CondLessThan:
		c.rr(riscv32.SLT, dst, lhs, rhs)
	case CondUnsignedLessThan:
		c.rr(riscv32.SLTU, dst, lhs, rhs)
	case CondGreaterThan:
		c.rr(riscv32.SLT, dst, rhs, lhs)
	case CondUnsignedGreaterThan:
		c.rr(riscv32.SLTU, dst, rhs, lhs)
	case CondLessEqual:
		c.rr(riscv32.SLT, dst, rhs, lhs)
		c.ri(riscv32.XORI, dst, dst, 1)
	case CondUnsignedLessEqual:
		c.rr(riscv32.SLTU, dst, rhs, lhs)
		c.ri(riscv32.XORI, dst, dst, 1)
	case CondGreaterEqual:
		c.rr(riscv32.SLT, dst, lhs, rhs)
		c.ri(riscv32.XORI, dst, dst, 1)
	case CondUnsignedGreaterEqual:
		c.rr(riscv32.SLTU, dst, lhs, rhs)
		c.ri(riscv32.XORI, dst, dst, 1)
	default:
		panic(fmt.Sprintf("BUG: unknown condition %d", cond))
	}
}
