package baseline

import (
	"fmt"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

// floatInstructions are the instructions of one floating point width.
type floatInstructions struct {
	add, sub, mul, div, sqrt asm.Instruction
	sgnj, sgnjn, sgnjx       asm.Instruction
	min, max                 asm.Instruction
	feq, flt, fle            asm.Instruction
	load, store              asm.Instruction
}

var (
	f32Instructions = floatInstructions{
		add: riscv32.FADDS, sub: riscv32.FSUBS, mul: riscv32.FMULS, div: riscv32.FDIVS, sqrt: riscv32.FSQRTS,
		sgnj: riscv32.FSGNJS, sgnjn: riscv32.FSGNJNS, sgnjx: riscv32.FSGNJXS,
		min: riscv32.FMINS, max: riscv32.FMAXS,
		feq: riscv32.FEQS, flt: riscv32.FLTS, fle: riscv32.FLES,
		load: riscv32.FLW, store: riscv32.FSW,
	}
	f64Instructions = floatInstructions{
		add: riscv32.FADDD, sub: riscv32.FSUBD, mul: riscv32.FMULD, div: riscv32.FDIVD, sqrt: riscv32.FSQRTD,
		sgnj: riscv32.FSGNJD, sgnjn: riscv32.FSGNJND, sgnjx: riscv32.FSGNJXD,
		min: riscv32.FMIND, max: riscv32.FMAXD,
		feq: riscv32.FEQD, flt: riscv32.FLTD, fle: riscv32.FLED,
		load: riscv32.FLD, store: riscv32.FSD,
	}
)

func floatInstructionsOf(kind ValueKind) *floatInstructions {
	switch kind {
	case KindF32:
		return &f32Instructions
	case KindF64:
		return &f64Instructions
	}
	panic(fmt.Sprintf("BUG: %s is not a float kind", kind))
}

func (c *Compiler) compileFloatBinary(s *scope, o *OperationFloatBinary) error {
	in := floatInstructionsOf(o.Type)
	dst, lhs, rhs := o.Dst.Low(), o.Lhs.Low(), o.Rhs.Low()
	switch o.Op {
	case FloatAdd:
		c.rr(in.add, dst, lhs, rhs)
	case FloatSub:
		c.rr(in.sub, dst, lhs, rhs)
	case FloatMul:
		c.rr(in.mul, dst, lhs, rhs)
	case FloatDiv:
		c.rr(in.div, dst, lhs, rhs)
	case FloatCopySign:
		c.rr(in.sgnj, dst, lhs, rhs)
	case FloatMin:
		c.floatMinMax(s, in, in.min, dst, lhs, rhs)
	case FloatMax:
		c.floatMinMax(s, in, in.max, dst, lhs, rhs)
	default:
		panic(fmt.Sprintf("BUG: unknown float operator %d", o.Op))
	}
	return nil
}

// floatMinMax returns the canonical NaN when either operand is a NaN. fmin/fmax alone would
// return the other operand.
func (c *Compiler) floatMinMax(s *scope, in *floatInstructions, inst asm.Instruction, dst, lhs, rhs asm.Register) {
	t, u := s.acquireGP(), s.acquireGP()
	c.rr(in.feq, t, lhs, lhs)
	c.rr(in.feq, u, rhs, rhs)
	c.rr(riscv32.AND, t, t, u)
	s.release(t)
	s.release(u)

	nan, done := c.NewLabel(), c.NewLabel()
	c.branch(riscv32.BEQ, t, zero, nan)
	c.rr(inst, dst, lhs, rhs)
	c.jump(done)
	c.BindLabel(nan)
	// Arithmetic on a NaN produces the canonical NaN.
	c.rr(in.add, dst, lhs, rhs)
	c.BindLabel(done)
}

var f64RoundingReferences = map[FloatUnaryOp]ExternalReference{
	FloatCeil:    ExtF64Ceil,
	FloatFloor:   ExtF64Floor,
	FloatTrunc:   ExtF64Trunc,
	FloatNearest: ExtF64NearestInt,
}

var roundingModes = map[FloatUnaryOp]riscv32.RoundingMode{
	FloatCeil:    riscv32.RUP,
	FloatFloor:   riscv32.RDN,
	FloatTrunc:   riscv32.RTZ,
	FloatNearest: riscv32.RNE,
}

func (c *Compiler) compileFloatUnary(s *scope, o *OperationFloatUnary) error {
	in := floatInstructionsOf(o.Type)
	dst, src := o.Dst.Low(), o.Src.Low()
	switch o.Op {
	case FloatAbs:
		c.rr(in.sgnjx, dst, src, src)
	case FloatNeg:
		c.rr(in.sgnjn, dst, src, src)
	case FloatSqrt:
		c.assembler.CompileFloatingPointUnary(in.sqrt, src, dst, riscv32.RNE)
	case FloatCeil, FloatFloor, FloatTrunc, FloatNearest:
		if o.Type == KindF32 {
			c.roundF32(s, roundingModes[o.Op], dst, src)
			return nil
		}
		c.callWithBuffer(f64RoundingReferences[o.Op], func() {
			c.assembler.CompileRegisterToMemory(riscv32.FSD, src, riscv32.RegSP, 0)
		}, func() {
			c.assembler.CompileMemoryToRegister(riscv32.FLD, riscv32.RegSP, 0, dst)
		}, asm.NilRegister)
	default:
		panic(fmt.Sprintf("BUG: unknown float operator %d", o.Op))
	}
	return nil
}

// roundF32 rounds through an i32 conversion with the rounding mode. Values with an exponent of
// at least 150 (|x| >= 2^23, infinities and NaNs) are already integral and only get quieted.
func (c *Compiler) roundF32(s *scope, rm riscv32.RoundingMode, dst, src asm.Register) {
	t, u := s.acquireGP(), s.acquireGP()
	f := s.acquireFP()
	c.assembler.CompileFloatingPointUnary(riscv32.FMVXW, src, t, riscv32.RNE)
	c.ri(riscv32.SRLI, t, t, 23)
	c.ri(riscv32.ANDI, t, t, 0xff)
	c.li(u, 150)
	integral, done := c.NewLabel(), c.NewLabel()
	c.branch(riscv32.BGEU, t, u, integral)

	c.assembler.CompileFloatingPointUnary(riscv32.FCVTWS, src, t, rm)
	c.assembler.CompileFloatingPointUnary(riscv32.FCVTSW, t, f, rm)
	// The sign of src makes -0.5 round to -0.
	c.rr(riscv32.FSGNJS, dst, f, src)
	c.jump(done)

	c.BindLabel(integral)
	c.assembler.CompileFloatingPointUnary(riscv32.FMVWX, zero, f, riscv32.RNE)
	c.rr(riscv32.FADDS, dst, src, f)
	c.BindLabel(done)
	s.release(t)
	s.release(u)
	s.release(f)
}

func (c *Compiler) compileFloatSetCond(_ *scope, o *OperationFloatSetCond) error {
	in := floatInstructionsOf(o.Type)
	dst, lhs, rhs := o.Dst.Low(), o.Lhs.Low(), o.Rhs.Low()
	switch o.Cond {
	case CondEqual:
		c.rr(in.feq, dst, lhs, rhs)
	case CondNotEqual:
		c.rr(in.feq, dst, lhs, rhs)
		c.ri(riscv32.XORI, dst, dst, 1)
	case CondLessThan:
		c.rr(in.flt, dst, lhs, rhs)
	case CondLessEqual:
		c.rr(in.fle, dst, lhs, rhs)
	case CondGreaterThan:
		c.rr(in.flt, dst, rhs, lhs)
	case CondGreaterEqual:
		c.rr(in.fle, dst, rhs, lhs)
	default:
		panic(fmt.Sprintf("BUG: %s is not a float condition", o.Cond))
	}
	return nil
}
