package baseline

import (
	"fmt"
	"math"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

// int64CallConversions are the conversions between i64 and floats, done by C functions on a
// stack buffer. Trapping ones return 0 for invalid inputs.
var int64CallConversions = map[ConvertOp]struct {
	ref      ExternalReference
	trapping bool
}{
	ConvI64TruncF32S:    {ExtFloat32ToInt64, true},
	ConvI64TruncF32U:    {ExtFloat32ToUint64, true},
	ConvI64TruncF64S:    {ExtFloat64ToInt64, true},
	ConvI64TruncF64U:    {ExtFloat64ToUint64, true},
	ConvI64TruncSatF32S: {ExtFloat32ToInt64Sat, false},
	ConvI64TruncSatF32U: {ExtFloat32ToUint64Sat, false},
	ConvI64TruncSatF64S: {ExtFloat64ToInt64Sat, false},
	ConvI64TruncSatF64U: {ExtFloat64ToUint64Sat, false},
	ConvF32ConvertI64S:  {ExtInt64ToFloat32, false},
	ConvF32ConvertI64U:  {ExtUint64ToFloat32, false},
	ConvF64ConvertI64S:  {ExtInt64ToFloat64, false},
	ConvF64ConvertI64U:  {ExtUint64ToFloat64, false},
}

func (c *Compiler) compileConvert(s *scope, o *OperationConvert) error {
	dst, src := o.Dst, o.Src
	switch o.Op {
	case ConvI32WrapI64:
		c.mv(dst.Low(), src.Low())
	case ConvI64ExtendI32S:
		c.mv(dst.Low(), src.Low())
		c.ri(riscv32.SRAI, dst.High(), dst.Low(), 31)
	case ConvI64ExtendI32U:
		c.mv(dst.Low(), src.Low())
		c.li(dst.High(), 0)

	case ConvI32TruncF32S, ConvI32TruncF32U:
		c.truncF32ToI32(s, o.Op == ConvI32TruncF32S, dst.Low(), src.Low(), o.Trap)
	case ConvI32TruncF64S, ConvI32TruncF64U:
		c.truncF64ToI32(s, o.Op == ConvI32TruncF64S, dst.Low(), src.Low(), o.Trap)
	case ConvI32TruncSatF32S:
		c.truncSat(s, riscv32.FCVTWS, riscv32.FEQS, dst.Low(), src.Low())
	case ConvI32TruncSatF32U:
		c.truncSat(s, riscv32.FCVTWUS, riscv32.FEQS, dst.Low(), src.Low())
	case ConvI32TruncSatF64S:
		c.truncSat(s, riscv32.FCVTWD, riscv32.FEQD, dst.Low(), src.Low())
	case ConvI32TruncSatF64U:
		c.truncSat(s, riscv32.FCVTWUD, riscv32.FEQD, dst.Low(), src.Low())

	case ConvI32ReinterpretF32:
		c.assembler.CompileFloatingPointUnary(riscv32.FMVXW, src.Low(), dst.Low(), riscv32.RNE)
	case ConvF32ReinterpretI32:
		c.assembler.CompileFloatingPointUnary(riscv32.FMVWX, src.Low(), dst.Low(), riscv32.RNE)
	case ConvI64ReinterpretF64:
		c.withStackBuffer(func() {
			c.assembler.CompileRegisterToMemory(riscv32.FSD, src.Low(), riscv32.RegSP, 0)
			c.loadPair(s, dst, riscv32.RegSP, 0)
		})
	case ConvF64ReinterpretI64:
		c.withStackBuffer(func() {
			c.storePair(s, src, riscv32.RegSP, 0)
			c.assembler.CompileMemoryToRegister(riscv32.FLD, riscv32.RegSP, 0, dst.Low())
		})

	case ConvF32ConvertI32S:
		c.assembler.CompileFloatingPointUnary(riscv32.FCVTSW, src.Low(), dst.Low(), riscv32.RNE)
	case ConvF32ConvertI32U:
		c.assembler.CompileFloatingPointUnary(riscv32.FCVTSWU, src.Low(), dst.Low(), riscv32.RNE)
	case ConvF64ConvertI32S:
		c.assembler.CompileFloatingPointUnary(riscv32.FCVTDW, src.Low(), dst.Low(), riscv32.RNE)
	case ConvF64ConvertI32U:
		c.assembler.CompileFloatingPointUnary(riscv32.FCVTDWU, src.Low(), dst.Low(), riscv32.RNE)
	case ConvF32DemoteF64:
		c.assembler.CompileFloatingPointUnary(riscv32.FCVTSD, src.Low(), dst.Low(), riscv32.RNE)
	case ConvF64PromoteF32:
		c.assembler.CompileFloatingPointUnary(riscv32.FCVTDS, src.Low(), dst.Low(), riscv32.RNE)

	default:
		conv, ok := int64CallConversions[o.Op]
		if !ok {
			panic(fmt.Sprintf("BUG: unknown conversion %d", o.Op))
		}
		c.convertThroughCall(s, o, conv.ref, conv.trapping)
	}
	return nil
}

// truncF32ToI32 traps unless lo <= src < hi, where the bounds are exact f32 values. Both
// comparisons are false for NaN.
func (c *Compiler) truncF32ToI32(s *scope, signed bool, dst, src asm.Register, trap *riscv32.Label) {
	if trap == nil {
		panic("BUG: trapping conversion without a trap label")
	}
	var lo, hi float32 = -1, 4294967296
	cvt := riscv32.FCVTWUS
	if signed {
		lo, hi = -2147483648, 2147483648
		cvt = riscv32.FCVTWS
	}
	t := s.acquireGP()
	f := s.acquireFP()
	c.li(t, int32(math.Float32bits(lo)))
	c.assembler.CompileFloatingPointUnary(riscv32.FMVWX, t, f, riscv32.RNE)
	if signed {
		c.rr(riscv32.FLES, t, f, src)
	} else {
		// -1 < src: truncating -0.5 gives 0.
		c.rr(riscv32.FLTS, t, f, src)
	}
	c.branchFar(riscv32.BEQ, t, zero, trap)
	c.li(t, int32(math.Float32bits(hi)))
	c.assembler.CompileFloatingPointUnary(riscv32.FMVWX, t, f, riscv32.RNE)
	c.rr(riscv32.FLTS, t, src, f)
	c.branchFar(riscv32.BEQ, t, zero, trap)
	c.assembler.CompileFloatingPointUnary(cvt, src, dst, riscv32.RTZ)
	s.release(t)
	s.release(f)
}

// truncF64ToI32 converts with saturation, then checks that the result converted back differs
// from src by less than one. The difference of both is exact, and only saturated results are
// off by one or more.
func (c *Compiler) truncF64ToI32(s *scope, signed bool, dst, src asm.Register, trap *riscv32.Label) {
	if trap == nil {
		panic("BUG: trapping conversion without a trap label")
	}
	cvt, back := riscv32.FCVTWUD, riscv32.FCVTDWU
	if signed {
		cvt, back = riscv32.FCVTWD, riscv32.FCVTDW
	}
	t, u := s.acquireGP(), s.acquireGP()
	f := s.acquireFP()
	c.rr(riscv32.FEQD, t, src, src)
	c.branchFar(riscv32.BEQ, t, zero, trap)
	c.assembler.CompileFloatingPointUnary(cvt, src, t, riscv32.RTZ)
	c.assembler.CompileFloatingPointUnary(back, t, f, riscv32.RNE)
	c.rr(riscv32.FSUBD, f, src, f)
	c.assembler.CompileFloatingPointUnary(riscv32.FCVTWD, f, u, riscv32.RTZ)
	c.branchFar(riscv32.BNE, u, zero, trap)
	c.mv(dst, t)
	s.release(t)
	s.release(u)
	s.release(f)
}

// truncSat relies on the clamping of fcvt and clears the result of NaN inputs, which fcvt turns
// into the maximum value.
func (c *Compiler) truncSat(s *scope, cvt, feq asm.Instruction, dst, src asm.Register) {
	t, mask := s.acquireGP(), s.acquireGP()
	c.assembler.CompileFloatingPointUnary(cvt, src, t, riscv32.RTZ)
	c.rr(feq, mask, src, src)
	c.rr(riscv32.SUB, mask, zero, mask)
	c.rr(riscv32.AND, dst, t, mask)
	s.release(t)
	s.release(mask)
}

// convertThroughCall converts between i64 and floats with a C function working in place on the
// stack buffer.
func (c *Compiler) convertThroughCall(s *scope, o *OperationConvert, ref ExternalReference, trapping bool) {
	status := asm.NilRegister
	if trapping {
		if o.Trap == nil {
			panic("BUG: trapping conversion without a trap label")
		}
		status = s.acquireGP()
	}
	c.callWithBuffer(ref, func() {
		switch o.Src.Class() {
		case RegClassGPPair:
			c.storePair(s, o.Src, riscv32.RegSP, 0)
		case RegClassFP:
			store := riscv32.FSD
			switch o.Op {
			case ConvI64TruncF32S, ConvI64TruncF32U, ConvI64TruncSatF32S, ConvI64TruncSatF32U:
				store = riscv32.FSW
			}
			c.assembler.CompileRegisterToMemory(store, o.Src.Low(), riscv32.RegSP, 0)
		}
	}, func() {
		switch o.Dst.Class() {
		case RegClassGPPair:
			c.loadPair(s, o.Dst, riscv32.RegSP, 0)
		case RegClassFP:
			load := riscv32.FLD
			if o.Op == ConvF32ConvertI64S || o.Op == ConvF32ConvertI64U {
				load = riscv32.FLW
			}
			c.assembler.CompileMemoryToRegister(load, riscv32.RegSP, 0, o.Dst.Low())
		}
	}, status)
	if trapping {
		c.branchFar(riscv32.BEQ, status, zero, o.Trap)
		s.release(status)
	}
}
