package baseline

import (
	"fmt"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

// i64 values live in register pairs. Results are computed into scratch registers first
// whenever a destination half may alias a source half still to be read.

func (c *Compiler) compileI64Binary(s *scope, o *OperationI64Binary) error {
	lL, lH := o.Lhs.Low(), o.Lhs.High()
	rL, rH := o.Rhs.Low(), o.Rhs.High()
	dL, dH := o.Dst.Low(), o.Dst.High()
	switch o.Op {
	case IntAdd:
		c.addPair(s, dL, dH, lL, lH, rL, rH)
	case IntSub:
		c.subPair(s, dL, dH, lL, lH, rL, rH)
	case IntMul:
		c.mulPair(s, dL, dH, lL, lH, rL, rH)
	case IntAnd, IntOr, IntXor:
		inst := i32BinaryInstructions[o.Op]
		t := s.acquireGP()
		c.rr(inst, t, lL, rL)
		c.rr(inst, dH, lH, rH)
		c.mv(dL, t)
		s.release(t)
	case IntShl, IntShrS, IntShrU:
		c.shiftPair(s, o.Op, o.Dst, o.Lhs, rL)
	default:
		panic(fmt.Sprintf("BUG: unknown i64 operator %d", o.Op))
	}
	return nil
}

// addPair adds with the carry out of the low words computed by sltu.
func (c *Compiler) addPair(s *scope, dL, dH, lL, lH, rL, rH asm.Register) {
	low, carry := s.acquireGP(), s.acquireGP()
	c.rr(riscv32.ADD, low, lL, rL)
	c.rr(riscv32.SLTU, carry, low, lL)
	c.rr(riscv32.ADD, dH, lH, rH)
	c.rr(riscv32.ADD, dH, dH, carry)
	c.mv(dL, low)
	s.release(low)
	s.release(carry)
}

// subPair subtracts with the borrow of the low words computed by sltu.
func (c *Compiler) subPair(s *scope, dL, dH, lL, lH, rL, rH asm.Register) {
	low, borrow := s.acquireGP(), s.acquireGP()
	c.rr(riscv32.SLTU, borrow, lL, rL)
	c.rr(riscv32.SUB, low, lL, rL)
	c.rr(riscv32.SUB, dH, lH, rH)
	c.rr(riscv32.SUB, dH, dH, borrow)
	c.mv(dL, low)
	s.release(low)
	s.release(borrow)
}

// mulPair computes the low 64 bits of the product:
// high = mulhu(lL, rL) + lH*rL + lL*rH, low = lL*rL.
func (c *Compiler) mulPair(s *scope, dL, dH, lL, lH, rL, rH asm.Register) {
	high, t := s.acquireGP(), s.acquireGP()
	c.rr(riscv32.MULHU, high, lL, rL)
	c.rr(riscv32.MUL, t, lH, rL)
	c.rr(riscv32.ADD, high, high, t)
	c.rr(riscv32.MUL, t, lL, rH)
	c.rr(riscv32.ADD, high, high, t)
	c.rr(riscv32.MUL, dL, lL, rL)
	c.mv(dH, high)
	s.release(high)
	s.release(t)
}

// shiftPair shifts src by amount modulo 64. Both halves of the result are written before the
// last read of the source, so a source aliasing the destination is first copied to scratch.
func (c *Compiler) shiftPair(s *scope, op IntBinaryOp, dst, src Reg, amount asm.Register) {
	sL, sH := src.Low(), src.High()
	dL, dH := dst.Low(), dst.High()
	if Alias(src, dst) {
		sL, sH = s.acquireGP(), s.acquireGP()
		c.mv(sL, src.Low())
		c.mv(sH, src.High())
		defer s.release(sL)
		defer s.release(sH)
	}

	n, t := s.acquireGP(), s.acquireGP()
	c.ri(riscv32.ANDI, n, amount, 63)
	c.addi(t, n, -32)
	big, done := c.NewLabel(), c.NewLabel()
	c.branch(riscv32.BGE, t, zero, big)

	// 0 <= n < 32: the bits crossing the halves are shifted by 32-n as two shifts, by 1 and by
	// 31-n, so that n = 0 moves nothing across.
	c.ri(riscv32.XORI, t, n, 31)
	switch op {
	case IntShl:
		c.ri(riscv32.SRLI, dL, sL, 1)
		c.rr(riscv32.SRL, dL, dL, t)
		c.rr(riscv32.SLL, dH, sH, n)
		c.rr(riscv32.OR, dH, dH, dL)
		c.rr(riscv32.SLL, dL, sL, n)
	case IntShrU, IntShrS:
		c.ri(riscv32.SLLI, dH, sH, 1)
		c.rr(riscv32.SLL, dH, dH, t)
		c.rr(riscv32.SRL, dL, sL, n)
		c.rr(riscv32.OR, dL, dL, dH)
		if op == IntShrU {
			c.rr(riscv32.SRL, dH, sH, n)
		} else {
			c.rr(riscv32.SRA, dH, sH, n)
		}
	}
	c.jump(done)

	// 32 <= n < 64: t holds n-32.
	c.BindLabel(big)
	switch op {
	case IntShl:
		c.rr(riscv32.SLL, dH, sL, t)
		c.li(dL, 0)
	case IntShrU:
		c.rr(riscv32.SRL, dL, sH, t)
		c.li(dH, 0)
	case IntShrS:
		c.rr(riscv32.SRA, dL, sH, t)
		c.ri(riscv32.SRAI, dH, sH, 31)
	}
	c.BindLabel(done)
	s.release(n)
	s.release(t)
}

// shiftPairImm shifts by a constant amount modulo 64.
func (c *Compiler) shiftPairImm(s *scope, op IntBinaryOp, dL, dH, sL, sH asm.Register, amount int64) {
	n := amount & 63
	if n == 0 {
		c.movePair(dL, dH, sL, sH)
		return
	}
	a, b := s.acquireGP(), s.acquireGP()
	defer func() {
		s.release(a)
		s.release(b)
	}()
	if n >= 32 {
		switch op {
		case IntShl:
			c.ri(riscv32.SLLI, a, sL, n-32)
			c.li(dL, 0)
			c.mv(dH, a)
		case IntShrU:
			c.ri(riscv32.SRLI, a, sH, n-32)
			c.li(dH, 0)
			c.mv(dL, a)
		case IntShrS:
			c.ri(riscv32.SRAI, a, sH, n-32)
			c.ri(riscv32.SRAI, dH, sH, 31)
			c.mv(dL, a)
		}
		return
	}
	switch op {
	case IntShl:
		c.ri(riscv32.SRLI, a, sL, 32-n)
		c.ri(riscv32.SLLI, b, sH, n)
		c.rr(riscv32.OR, b, b, a)
		c.ri(riscv32.SLLI, dL, sL, n)
		c.mv(dH, b)
	case IntShrU, IntShrS:
		c.ri(riscv32.SLLI, a, sH, 32-n)
		c.ri(riscv32.SRLI, b, sL, n)
		c.rr(riscv32.OR, b, b, a)
		if op == IntShrU {
			c.ri(riscv32.SRLI, dH, sH, n)
		} else {
			c.ri(riscv32.SRAI, dH, sH, n)
		}
		c.mv(dL, b)
	}
}

func (c *Compiler) compileI64BinaryImm(s *scope, o *OperationI64BinaryImm) error {
	lL, lH := o.Lhs.Low(), o.Lhs.High()
	dL, dH := o.Dst.Low(), o.Dst.High()
	switch o.Op {
	case IntAdd:
		c.addPairImm(s, dL, dH, lL, lH, o.Imm)
	case IntSub:
		c.addPairImm(s, dL, dH, lL, lH, -o.Imm)
	case IntAnd, IntOr, IntXor:
		inst := i32BinaryInstructions[o.Op]
		low, high := s.acquireGP(), s.acquireGP()
		c.li(low, int32(o.Imm))
		c.rr(inst, low, lL, low)
		c.li(high, int32(o.Imm>>32))
		c.rr(inst, dH, lH, high)
		c.mv(dL, low)
		s.release(low)
		s.release(high)
	case IntShl, IntShrS, IntShrU:
		c.shiftPairImm(s, o.Op, dL, dH, lL, lH, o.Imm)
	default:
		c.bailout(ReasonOther, "i64."+o.Op.String()+" with an immediate")
	}
	return nil
}

func (c *Compiler) addPairImm(s *scope, dL, dH, lL, lH asm.Register, imm int64) {
	low, carry := s.acquireGP(), s.acquireGP()
	c.li(low, int32(imm))
	c.rr(riscv32.ADD, low, lL, low)
	c.rr(riscv32.SLTU, carry, low, lL)
	c.rr(riscv32.ADD, dH, lH, carry)
	if hi := int64(int32(imm >> 32)); hi != 0 {
		if fitsImm12(hi) {
			c.addi(dH, dH, hi)
		} else {
			c.li(carry, int32(hi))
			c.rr(riscv32.ADD, dH, dH, carry)
		}
	}
	c.mv(dL, low)
	s.release(low)
	s.release(carry)
}

// compileI64Div calls the C helper with both operands in a stack buffer. The helper writes the
// result over the dividend and returns 0 for a zero divisor, -1 for an unrepresentable result.
func (c *Compiler) compileI64Div(s *scope, o *OperationI64Div) error {
	if o.DivByZero == nil {
		panic("BUG: i64 division without a division by zero label")
	}
	var ref ExternalReference
	switch o.Op {
	case DivS:
		if o.Unrepresentable == nil {
			panic("BUG: i64.div_s without an unrepresentable label")
		}
		ref = ExtInt64Div
	case DivU:
		ref = ExtUint64Div
	case RemS:
		ref = ExtInt64Mod
	case RemU:
		ref = ExtUint64Mod
	}

	status := s.acquireGP()
	c.callWithBuffer(ref, func() {
		c.storePair(s, o.Lhs, riscv32.RegSP, 0)
		c.storePair(s, o.Rhs, riscv32.RegSP, 8)
	}, func() {
		c.loadPair(s, o.Dst, riscv32.RegSP, 0)
	}, status)

	c.branchFar(riscv32.BEQ, status, zero, o.DivByZero)
	if o.Op == DivS {
		minusOne := s.acquireGP()
		c.li(minusOne, -1)
		c.branchFar(riscv32.BEQ, status, minusOne, o.Unrepresentable)
		s.release(minusOne)
	}
	s.release(status)
	return nil
}

func (c *Compiler) compileI64Unary(s *scope, o *OperationI64Unary) error {
	switch o.Op {
	case IntEqz:
		t := s.acquireGP()
		c.rr(riscv32.OR, t, o.Src.Low(), o.Src.High())
		c.seqz(o.Dst.Low(), t)
		s.release(t)
		return nil
	case IntExtend8S, IntExtend16S:
		shift := int64(24)
		if o.Op == IntExtend16S {
			shift = 16
		}
		c.ri(riscv32.SLLI, o.Dst.Low(), o.Src.Low(), shift)
		c.ri(riscv32.SRAI, o.Dst.Low(), o.Dst.Low(), shift)
		c.ri(riscv32.SRAI, o.Dst.High(), o.Dst.Low(), 31)
		return nil
	case IntExtend32S:
		c.mv(o.Dst.Low(), o.Src.Low())
		c.ri(riscv32.SRAI, o.Dst.High(), o.Dst.Low(), 31)
		return nil
	}

	sL, sH := o.Src.Low(), o.Src.High()
	dL, dH := o.Dst.Low(), o.Dst.High()
	x := s.acquireGP()
	switch o.Op {
	case IntClz:
		high, done := c.NewLabel(), c.NewLabel()
		c.branch(riscv32.BNE, sH, zero, high)
		c.mv(x, sL)
		c.clz32(s, dL, x)
		c.addi(dL, dL, 32)
		c.jump(done)
		c.BindLabel(high)
		c.mv(x, sH)
		c.clz32(s, dL, x)
		c.BindLabel(done)
		c.li(dH, 0)
	case IntCtz:
		low, done := c.NewLabel(), c.NewLabel()
		c.branch(riscv32.BNE, sL, zero, low)
		c.ctz32(s, dL, sH, x)
		c.addi(dL, dL, 32)
		c.jump(done)
		c.BindLabel(low)
		c.ctz32(s, dL, sL, x)
		c.BindLabel(done)
		c.li(dH, 0)
	case IntPopcnt:
		// The high word is read after dL is written.
		high := o.Src.High()
		if high == dL {
			high = s.acquireGP()
			c.mv(high, o.Src.High())
			defer s.release(high)
		}
		c.mv(x, o.Src.Low())
		c.popcnt32(s, dL, x)
		c.mv(x, high)
		c.popcnt32(s, dH, x)
		c.rr(riscv32.ADD, dL, dL, dH)
		c.li(dH, 0)
	default:
		panic(fmt.Sprintf("BUG: unknown i64 operator %d", o.Op))
	}
	s.release(x)
	return nil
}

// compileI64SetCond compares the high words, and the low words unsigned when the high words are equal.
func (c *Compiler) compileI64SetCond(s *scope, o *OperationI64SetCond) error {
	lL, lH := o.Lhs.Low(), o.Lhs.High()
	rL, rH := o.Rhs.Low(), o.Rhs.High()
	t := s.acquireGP()
	defer s.release(t)
	switch o.Cond {
	case CondEqual, CondNotEqual:
		u := s.acquireGP()
		c.rr(riscv32.XOR, t, lL, rL)
		c.rr(riscv32.XOR, u, lH, rH)
		c.rr(riscv32.OR, t, t, u)
		s.release(u)
		if o.Cond == CondEqual {
			c.seqz(o.Dst.Low(), t)
		} else {
			c.snez(o.Dst.Low(), t)
		}
		return nil
	}
	c.setCond32(o.Cond, t, lH, rH)
	done := c.assembler.CompileConditionalBranch(riscv32.BNE, lH, rH)
	c.setCond32(o.Cond.Unsigned(), t, lL, rL)
	c.assembler.SetJumpTargetOnNext(done)
	c.mv(o.Dst.Low(), t)
	return nil
}

// storePair stores the halves of the pair to an 8-byte slot.
func (c *Compiler) storePair(s *scope, r Reg, base asm.Register, offset int64) {
	c.store(s, riscv32.SW, r.Low(), base, offset+c.halfOffset(LowWord))
	c.store(s, riscv32.SW, r.High(), base, offset+c.halfOffset(HighWord))
}

// loadPair loads the halves of the pair from an 8-byte slot. The high word goes first when the
// low half is the base register.
func (c *Compiler) loadPair(s *scope, r Reg, base asm.Register, offset int64) {
	if r.Low() == base {
		c.load(s, riscv32.LW, r.High(), base, offset+c.halfOffset(HighWord))
		c.load(s, riscv32.LW, r.Low(), base, offset+c.halfOffset(LowWord))
		return
	}
	c.load(s, riscv32.LW, r.Low(), base, offset+c.halfOffset(LowWord))
	c.load(s, riscv32.LW, r.High(), base, offset+c.halfOffset(HighWord))
}

// halfOffset returns the byte offset of the word of an i64 in memory.
func (c *Compiler) halfOffset(half RegPairHalf) int64 {
	if (half == HighWord) != c.opts.BigEndian {
		return 4
	}
	return 0
}
