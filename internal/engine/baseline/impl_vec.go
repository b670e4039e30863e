package baseline

import (
	"fmt"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

// S128 values are one vector register of 128 bits. Every operation configures the vector unit
// for the element width it needs, with tail and mask agnostic policies: sequences never rely on
// the elements past vl or under a cleared mask bit, lanes are inserted with vmerge instead.

func (c *Compiler) vset(sew riscv32.SEW) {
	c.vsetivli(sew, riscv32.M1)
}

// vsetvl configures the vector unit for n elements of the width.
func (c *Compiler) vsetvl(n int, sew riscv32.SEW, lmul riscv32.LMUL) {
	c.assembler.CompileVectorConfig(n, sew, lmul)
}

func (c *Compiler) vv(inst asm.Instruction, vd, vs2, vs1 asm.Register) {
	c.assembler.CompileVectorVV(inst, vs2, vs1, vd, false)
}

func (c *Compiler) vx(inst asm.Instruction, vd, vs2, rs1 asm.Register) {
	c.assembler.CompileVectorVX(inst, vs2, rs1, vd, false)
}

func (c *Compiler) vi(inst asm.Instruction, vd, vs2 asm.Register, imm int64) {
	c.assembler.CompileVectorVI(inst, vs2, imm, vd, false)
}

func (c *Compiler) vunary(inst asm.Instruction, vd, vs2 asm.Register) {
	c.assembler.CompileVectorUnary(inst, vs2, vd, false)
}

// merge sets vd to onTrue where the mask bit of v0 is set and to onFalse elsewhere.
func (c *Compiler) merge(vd, onFalse, onTrue asm.Register) {
	c.vv(riscv32.VMERGEVVM, vd, onFalse, onTrue)
}

// setMask loads the bits into the mask register v0, bit i selecting element i.
func (c *Compiler) setMask(s *scope, bits int64) {
	t := s.acquireGP()
	c.li(t, int32(bits))
	c.vset(riscv32.E32)
	c.assembler.CompileVectorMove(riscv32.VMVSX, t, maskReg)
	s.release(t)
}

// withMask runs body with v0 reserved.
func (c *Compiler) withMask(s *scope, body func()) {
	m := s.mask()
	body()
	s.release(m)
}

func sewOfSize(size int) riscv32.SEW {
	switch size {
	case 1:
		return riscv32.E8
	case 2:
		return riscv32.E16
	case 4:
		return riscv32.E32
	case 8:
		return riscv32.E64
	}
	panic(fmt.Sprintf("BUG: no element width of %d bytes", size))
}

func vload(sew riscv32.SEW) asm.Instruction {
	return [...]asm.Instruction{riscv32.VLE8V, riscv32.VLE16V, riscv32.VLE32V, riscv32.VLE64V}[sew]
}

func vstore(sew riscv32.SEW) asm.Instruction {
	return [...]asm.Instruction{riscv32.VSE8V, riscv32.VSE16V, riscv32.VSE32V, riscv32.VSE64V}[sew]
}

// splatWords fills vd with the 64-bit pattern hi:lo in every 64-bit element.
func (c *Compiler) splatWords(s *scope, vd asm.Register, lo, hi int32) {
	t := s.acquireGP()
	c.li(t, hi)
	c.vset(riscv32.E32)
	c.assembler.CompileVectorMove(riscv32.VMVVX, t, vd)
	s.release(t)
	if lo == hi {
		return
	}
	c.setMask(s, 0b0101)
	t = s.acquireGP()
	c.li(t, lo)
	c.vset(riscv32.E32)
	c.vx(riscv32.VMERGEVXM, vd, vd, t)
	s.release(t)
}

func (c *Compiler) compileV128Splat(s *scope, o *OperationV128Splat) error {
	dst := o.Dst.Low()
	switch o.Shape {
	case ShapeI8x16, ShapeI16x8, ShapeI32x4:
		c.vset(o.Shape.sew())
		c.assembler.CompileVectorMove(riscv32.VMVVX, o.Src.Low(), dst)
	case ShapeI64x2:
		c.withMask(s, func() {
			c.vset(riscv32.E32)
			c.assembler.CompileVectorMove(riscv32.VMVVX, o.Src.High(), dst)
			c.setMask(s, 0b0101)
			c.vx(riscv32.VMERGEVXM, dst, dst, o.Src.Low())
		})
	case ShapeF32x4, ShapeF64x2:
		c.vset(o.Shape.sew())
		c.assembler.CompileVectorMove(riscv32.VFMVVF, o.Src.Low(), dst)
	}
	return nil
}

// slideDown returns a register holding src with the element moved to position zero.
func (c *Compiler) slideDown(s *scope, sew riscv32.SEW, src asm.Register, element int) (asm.Register, func()) {
	if element == 0 {
		return src, func() {}
	}
	tmp := s.acquireVec()
	c.vset(sew)
	c.vi(riscv32.VSLIDEDOWNVI, tmp, src, int64(element))
	return tmp, func() { s.release(tmp) }
}

func (c *Compiler) compileV128ExtractLane(s *scope, o *OperationV128ExtractLane) error {
	lane := int(o.Lane)
	if lane >= o.Shape.Lanes() {
		panic(fmt.Sprintf("BUG: lane %d of %s", lane, o.Shape))
	}
	switch o.Shape {
	case ShapeI8x16, ShapeI16x8, ShapeI32x4:
		v, release := c.slideDown(s, o.Shape.sew(), o.Src.Low(), lane)
		c.vset(o.Shape.sew())
		c.vunary(riscv32.VMVXS, o.Dst.Low(), v)
		release()
		if !o.Signed {
			switch o.Shape {
			case ShapeI8x16:
				c.ri(riscv32.ANDI, o.Dst.Low(), o.Dst.Low(), 0xff)
			case ShapeI16x8:
				c.ri(riscv32.SLLI, o.Dst.Low(), o.Dst.Low(), 16)
				c.ri(riscv32.SRLI, o.Dst.Low(), o.Dst.Low(), 16)
			}
		}
	case ShapeI64x2:
		tmp := s.acquireVec()
		c.vset(riscv32.E32)
		c.vi(riscv32.VSLIDEDOWNVI, tmp, o.Src.Low(), int64(2*lane))
		c.vunary(riscv32.VMVXS, o.Dst.Low(), tmp)
		c.vi(riscv32.VSLIDEDOWNVI, tmp, tmp, 1)
		c.vunary(riscv32.VMVXS, o.Dst.High(), tmp)
		s.release(tmp)
	case ShapeF32x4, ShapeF64x2:
		v, release := c.slideDown(s, o.Shape.sew(), o.Src.Low(), lane)
		c.vset(o.Shape.sew())
		c.vunary(riscv32.VFMVFS, o.Dst.Low(), v)
		release()
	}
	return nil
}

// compileV128ReplaceLane merges the scalar into the lane selected by a one-bit mask.
func (c *Compiler) compileV128ReplaceLane(s *scope, o *OperationV128ReplaceLane) error {
	lane := int64(o.Lane)
	if int(lane) >= o.Shape.Lanes() {
		panic(fmt.Sprintf("BUG: lane %d of %s", lane, o.Shape))
	}
	dst, src := o.Dst.Low(), o.Src1.Low()
	c.withMask(s, func() {
		switch o.Shape {
		case ShapeI8x16, ShapeI16x8, ShapeI32x4:
			c.setMask(s, 1<<lane)
			c.vset(o.Shape.sew())
			c.vx(riscv32.VMERGEVXM, dst, src, o.Src2.Low())
		case ShapeI64x2:
			c.setMask(s, 1<<(2*lane))
			c.vx(riscv32.VMERGEVXM, dst, src, o.Src2.Low())
			c.setMask(s, 1<<(2*lane+1))
			c.vx(riscv32.VMERGEVXM, dst, dst, o.Src2.High())
		case ShapeF32x4, ShapeF64x2:
			c.setMask(s, 1<<lane)
			c.vset(o.Shape.sew())
			c.vx(riscv32.VFMERGEVFM, dst, src, o.Src2.Low())
		}
	})
	return nil
}

func (c *Compiler) compileLoadTransform(s *scope, o *OperationLoadTransform) error {
	dst := o.Dst.Low()
	size := o.Type.Size()
	addr, releaseAddr := c.memoryAddress(s, o.Base, o.Index, o.Offset)
	switch o.Transform {
	case LoadTransformSplat:
		sew := sewOfSize(size)
		idx, tmp := s.acquireVec(), s.acquireVec()
		c.vset(sew)
		c.assembler.CompileVectorMoveImmediate(0, idx)
		c.vsetvl(1, sew, riscv32.M1)
		c.protect(o.ProtectedPC)
		c.assembler.CompileMemoryToRegister(vload(sew), addr, 0, tmp)
		releaseAddr()
		c.vset(sew)
		c.vv(riscv32.VRGATHERVV, dst, tmp, idx)
		s.release(tmp)
		s.release(idx)
	case LoadTransformExtend:
		src := sewOfSize(size)
		tmp := s.acquireVec()
		c.vsetvl(8/size, src, riscv32.M1)
		c.protect(o.ProtectedPC)
		c.assembler.CompileMemoryToRegister(vload(src), addr, 0, tmp)
		releaseAddr()
		ext := riscv32.VZEXTVF2
		switch o.Type {
		case LoadI64_8S, LoadI64_16S, LoadI64_32S:
			ext = riscv32.VSEXTVF2
		}
		c.vset(src + 1)
		c.vunary(ext, dst, tmp)
		s.release(tmp)
	case LoadTransformZero:
		sew := sewOfSize(size)
		tmp := s.acquireVec()
		c.vsetvl(1, sew, riscv32.M1)
		c.protect(o.ProtectedPC)
		c.assembler.CompileMemoryToRegister(vload(sew), addr, 0, tmp)
		releaseAddr()
		c.withMask(s, func() {
			c.setMask(s, 1)
			c.vset(sew)
			c.assembler.CompileVectorMoveImmediate(0, dst)
			c.merge(dst, dst, tmp)
		})
		s.release(tmp)
	default:
		panic(fmt.Sprintf("BUG: unknown load transform %d", o.Transform))
	}
	return nil
}

func (c *Compiler) compileLoadLane(s *scope, o *OperationLoadLane) error {
	sew := sewOfSize(o.Type.Size())
	lane := int64(o.Lane)
	tmp := s.acquireVec()
	addr, releaseAddr := c.memoryAddress(s, o.Base, o.Index, o.Offset)
	c.vsetvl(1, sew, riscv32.M1)
	c.protect(o.ProtectedPC)
	c.assembler.CompileMemoryToRegister(vload(sew), addr, 0, tmp)
	releaseAddr()

	loaded := tmp
	if lane > 0 {
		loaded = s.acquireVec()
		defer s.release(loaded)
		c.vset(sew)
		c.vi(riscv32.VSLIDEUPVI, loaded, tmp, lane)
	}
	c.withMask(s, func() {
		c.setMask(s, 1<<lane)
		c.vset(sew)
		c.merge(o.Dst.Low(), o.Src.Low(), loaded)
	})
	s.release(tmp)
	return nil
}

func (c *Compiler) compileStoreLane(s *scope, o *OperationStoreLane) error {
	sew := sewOfSize(o.Type.Size())
	v, release := c.slideDown(s, sew, o.Src.Low(), int(o.Lane))
	addr, releaseAddr := c.memoryAddress(s, o.Base, o.Index, o.Offset)
	c.vsetvl(1, sew, riscv32.M1)
	c.protect(o.ProtectedPC)
	c.assembler.CompileRegisterToMemory(vstore(sew), v, addr, 0)
	releaseAddr()
	release()
	return nil
}

var (
	v128IntBinaryInstructions = map[V128BinaryOp]asm.Instruction{
		V128Add:     riscv32.VADDVV,
		V128Sub:     riscv32.VSUBVV,
		V128Mul:     riscv32.VMULVV,
		V128AddSatS: riscv32.VSADDVV,
		V128AddSatU: riscv32.VSADDUVV,
		V128SubSatS: riscv32.VSSUBVV,
		V128SubSatU: riscv32.VSSUBUVV,
		V128MinS:    riscv32.VMINVV,
		V128MinU:    riscv32.VMINUVV,
		V128MaxS:    riscv32.VMAXVV,
		V128MaxU:    riscv32.VMAXUVV,
		V128And:     riscv32.VANDVV,
		V128Or:      riscv32.VORVV,
		V128Xor:     riscv32.VXORVV,
	}
	v128FloatBinaryInstructions = map[V128BinaryOp]asm.Instruction{
		V128Add: riscv32.VFADDVV,
		V128Sub: riscv32.VFSUBVV,
		V128Mul: riscv32.VFMULVV,
		V128Div: riscv32.VFDIVVV,
	}
)

// compare is a lane comparison: the mask instruction and whether its operands are swapped.
type compare struct {
	inst    asm.Instruction
	swapped bool
}

var (
	v128IntCompares = map[V128BinaryOp]compare{
		V128Eq:  {riscv32.VMSEQVV, false},
		V128Ne:  {riscv32.VMSNEVV, false},
		V128LtS: {riscv32.VMSLTVV, false},
		V128LtU: {riscv32.VMSLTUVV, false},
		V128LeS: {riscv32.VMSLEVV, false},
		V128LeU: {riscv32.VMSLEUVV, false},
		V128GtS: {riscv32.VMSLTVV, true},
		V128GtU: {riscv32.VMSLTUVV, true},
		V128GeS: {riscv32.VMSLEVV, true},
		V128GeU: {riscv32.VMSLEUVV, true},
	}
	v128FloatCompares = map[V128BinaryOp]compare{
		V128Eq:  {riscv32.VMFEQVV, false},
		V128Ne:  {riscv32.VMFNEVV, false},
		V128LtS: {riscv32.VMFLTVV, false},
		V128LeS: {riscv32.VMFLEVV, false},
		V128GtS: {riscv32.VMFLTVV, true},
		V128GeS: {riscv32.VMFLEVV, true},
	}
)

func (c *Compiler) compileV128Binary(s *scope, o *OperationV128Binary) error {
	dst, lhs, rhs := o.Dst.Low(), o.Lhs.Low(), o.Rhs.Low()
	sew := o.Shape.sew()

	table, compares := v128IntBinaryInstructions, v128IntCompares
	if o.Shape.IsFloat() {
		table, compares = v128FloatBinaryInstructions, v128FloatCompares
	}
	if inst, ok := table[o.Op]; ok {
		c.vset(sew)
		c.vv(inst, dst, lhs, rhs)
		return nil
	}
	if cmp, ok := compares[o.Op]; ok {
		c.withMask(s, func() {
			a, b := lhs, rhs
			if cmp.swapped {
				a, b = b, a
			}
			c.vset(sew)
			c.vv(cmp.inst, maskReg, a, b)
			c.assembler.CompileVectorMoveImmediate(0, dst)
			c.vi(riscv32.VMERGEVIM, dst, dst, -1)
		})
		return nil
	}

	switch o.Op {
	case V128Min, V128Max:
		if !o.Shape.IsFloat() {
			break
		}
		c.v128FloatMinMax(s, o.Op == V128Min, sew, dst, lhs, rhs)
		return nil
	case V128Pmin, V128Pmax:
		if !o.Shape.IsFloat() {
			break
		}
		c.withMask(s, func() {
			c.vset(sew)
			// pmin is `rhs < lhs ? rhs : lhs`, pmax is `lhs < rhs ? rhs : lhs`.
			if o.Op == V128Pmin {
				c.vv(riscv32.VMFLTVV, maskReg, rhs, lhs)
			} else {
				c.vv(riscv32.VMFLTVV, maskReg, lhs, rhs)
			}
			c.merge(dst, lhs, rhs)
		})
		return nil
	case V128AndNot:
		tmp := s.acquireVec()
		c.vset(riscv32.E8)
		c.vi(riscv32.VXORVI, tmp, rhs, -1)
		c.vv(riscv32.VANDVV, dst, lhs, tmp)
		s.release(tmp)
		return nil
	case V128NarrowS, V128NarrowU:
		c.v128Narrow(s, o.Op == V128NarrowU, o.Shape, dst, lhs, rhs)
		return nil
	case V128ExtMulLowS, V128ExtMulLowU, V128ExtMulHighS, V128ExtMulHighU:
		c.v128ExtMul(s, o.Op, o.Shape, dst, lhs, rhs)
		return nil
	case V128Swizzle:
		tmp := s.acquireVec()
		c.vset(riscv32.E8)
		// Indexes past the last lane select zero.
		c.vv(riscv32.VRGATHERVV, tmp, lhs, rhs)
		c.move(o.Dst, Vec(tmp))
		s.release(tmp)
		return nil
	case V128Q15MulRSatS, V128Dot, V128AvgrU:
		c.bailout(ReasonSIMD, fmt.Sprintf("%s.%s", o.Shape, o.Op))
		return nil
	}
	panic(fmt.Sprintf("BUG: %s.%s", o.Shape, o.Op))
}

// v128FloatMinMax is min/max where a NaN in either operand gives the canonical NaN, computed by
// adding the operands.
func (c *Compiler) v128FloatMinMax(s *scope, isMin bool, sew riscv32.SEW, dst, lhs, rhs asm.Register) {
	inst := riscv32.VFMAXVV
	if isMin {
		inst = riscv32.VFMINVV
	}
	result, nan, ordered := s.acquireVec(), s.acquireVec(), s.acquireVec()
	c.withMask(s, func() {
		c.vset(sew)
		c.vv(inst, result, lhs, rhs)
		c.vv(riscv32.VFADDVV, nan, lhs, rhs)
		c.vv(riscv32.VMFEQVV, maskReg, lhs, lhs)
		c.vv(riscv32.VMFEQVV, ordered, rhs, rhs)
		c.vv(riscv32.VMANDMM, maskReg, maskReg, ordered)
		c.merge(dst, nan, result)
	})
	s.release(ordered)
	s.release(nan)
	s.release(result)
}

// v128Narrow narrows the lanes of lhs then rhs to half their width with saturation. Both are
// copied into a register group read as one double-width source.
func (c *Compiler) v128Narrow(s *scope, unsigned bool, shape Shape, dst, lhs, rhs asm.Register) {
	if shape != ShapeI16x8 && shape != ShapeI32x4 {
		panic(fmt.Sprintf("BUG: narrowing %s", shape))
	}
	wide := shape.sew()
	group := s.acquireVecGroup()
	c.vset(riscv32.E8)
	c.assembler.CompileVectorMove(riscv32.VMVVV, lhs, group)
	c.assembler.CompileVectorMove(riscv32.VMVVV, rhs, group+1)
	inst := riscv32.VNCLIPWI
	if unsigned {
		// Negative lanes saturate to zero.
		c.vsetivli(wide, riscv32.M2)
		c.vx(riscv32.VMAXVX, group, group, zero)
		inst = riscv32.VNCLIPUWI
	}
	c.vset(wide - 1)
	c.vi(inst, dst, group, 0)
	s.release(group + 1)
	s.release(group)
}

// v128ExtMul multiplies the low or high halves of the lanes into lanes of twice the width.
func (c *Compiler) v128ExtMul(s *scope, op V128BinaryOp, shape Shape, dst, lhs, rhs asm.Register) {
	if shape == ShapeI8x16 || shape.IsFloat() {
		panic(fmt.Sprintf("BUG: extended multiplication into %s", shape))
	}
	narrow := shape.sew() - 1
	half := int64(shape.Lanes())
	var tmps []asm.Register
	if op == V128ExtMulHighS || op == V128ExtMulHighU {
		l, r := s.acquireVec(), s.acquireVec()
		tmps = append(tmps, l, r)
		c.vset(narrow)
		c.vi(riscv32.VSLIDEDOWNVI, l, lhs, half)
		c.vi(riscv32.VSLIDEDOWNVI, r, rhs, half)
		lhs, rhs = l, r
	}
	inst := riscv32.VWMULVV
	if op == V128ExtMulLowU || op == V128ExtMulHighU {
		inst = riscv32.VWMULUVV
	}
	product := s.acquireVec()
	c.vsetivli(narrow, riscv32.MF2)
	c.vv(inst, product, lhs, rhs)
	c.move(Vec(dst), Vec(product))
	s.release(product)
	for _, t := range tmps {
		s.release(t)
	}
}

func (c *Compiler) compileV128Unary(s *scope, o *OperationV128Unary) error {
	dst, src := o.Dst.Low(), o.Src.Low()
	sew := o.Shape.sew()
	switch o.Op {
	case V128Neg:
		c.vset(sew)
		if o.Shape.IsFloat() {
			c.vv(riscv32.VFSGNJNVV, dst, src, src)
		} else {
			c.vi(riscv32.VRSUBVI, dst, src, 0)
		}
	case V128Abs:
		c.vset(sew)
		if o.Shape.IsFloat() {
			c.vv(riscv32.VFSGNJXVV, dst, src, src)
		} else {
			tmp := s.acquireVec()
			c.vi(riscv32.VRSUBVI, tmp, src, 0)
			c.vv(riscv32.VMAXVV, dst, src, tmp)
			s.release(tmp)
		}
	case V128Not:
		c.vset(riscv32.E8)
		c.vi(riscv32.VXORVI, dst, src, -1)
	case V128Sqrt:
		c.vset(sew)
		c.vunary(riscv32.VFSQRTV, dst, src)
	case V128Ceil, V128Floor, V128Trunc, V128Nearest:
		c.v128Round(s, o.Op, o.Shape, dst, src)
	case V128ExtendLowS, V128ExtendLowU, V128ExtendHighS, V128ExtendHighU:
		c.v128Extend(s, o.Op, o.Shape, dst, src)
	case V128TruncSatS, V128TruncSatU:
		inst := riscv32.VFCVTRTZXFV
		if o.Op == V128TruncSatU {
			inst = riscv32.VFCVTRTZXUFV
		}
		tmp := s.acquireVec()
		c.withMask(s, func() {
			c.vset(riscv32.E32)
			c.vunary(inst, tmp, src)
			c.vv(riscv32.VMFNEVV, maskReg, src, src)
			c.vi(riscv32.VMERGEVIM, tmp, tmp, 0)
		})
		c.move(o.Dst, Vec(tmp))
		s.release(tmp)
	case V128ConvertS, V128ConvertU:
		inst := riscv32.VFCVTFXV
		if o.Op == V128ConvertU {
			inst = riscv32.VFCVTFXUV
		}
		c.vset(riscv32.E32)
		c.vunary(inst, dst, src)
	case V128ConvertLowS, V128ConvertLowU, V128PromoteLow:
		inst := riscv32.VFWCVTFXV
		switch o.Op {
		case V128ConvertLowU:
			inst = riscv32.VFWCVTFXUV
		case V128PromoteLow:
			inst = riscv32.VFWCVTFFV
		}
		tmp := s.acquireVec()
		c.vsetivli(riscv32.E32, riscv32.MF2)
		c.vunary(inst, tmp, src)
		c.move(o.Dst, Vec(tmp))
		s.release(tmp)
	case V128DemoteZero:
		tmp := s.acquireVec()
		c.vsetivli(riscv32.E32, riscv32.MF2)
		c.vunary(riscv32.VFNCVTFFW, tmp, src)
		c.withMask(s, func() {
			c.setMask(s, 0b1100)
			c.vi(riscv32.VMERGEVIM, tmp, tmp, 0)
		})
		c.move(o.Dst, Vec(tmp))
		s.release(tmp)
	case V128Popcnt, V128ExtAddPairwiseS, V128ExtAddPairwiseU:
		c.bailout(ReasonSIMD, fmt.Sprintf("%s.%s", o.Shape, o.Op))
	default:
		panic(fmt.Sprintf("BUG: %s.%s", o.Shape, o.Op))
	}
	return nil
}

// v128Round rounds float lanes to integral values through a conversion to integers. Lanes whose
// magnitude is at least 2^(mantissa bits) are integral already and kept as is, NaNs included.
func (c *Compiler) v128Round(s *scope, op V128UnaryOp, shape Shape, dst, src asm.Register) {
	var one, limit uint64
	switch shape {
	case ShapeF32x4:
		one, limit = 0x3f800000_3f800000, 0x4b000000_4b000000
	case ShapeF64x2:
		one, limit = 0x3ff00000_00000000, 0x43300000_00000000
	default:
		panic(fmt.Sprintf("BUG: rounding %s", shape))
	}
	sew := shape.sew()
	rounded, adjusted, k, abs := s.acquireVec(), s.acquireVec(), s.acquireVec(), s.acquireVec()
	c.withMask(s, func() {
		c.vset(sew)
		if op == V128Nearest {
			c.vunary(riscv32.VFCVTXFV, rounded, src)
		} else {
			c.vunary(riscv32.VFCVTRTZXFV, rounded, src)
		}
		c.vunary(riscv32.VFCVTFXV, rounded, rounded)

		if op == V128Ceil || op == V128Floor {
			c.splatWords(s, k, int32(one), int32(one>>32))
			c.vset(sew)
			if op == V128Floor {
				// Truncation rounded negative lanes up.
				c.vv(riscv32.VMFLTVV, maskReg, src, rounded)
				c.vv(riscv32.VFSUBVV, adjusted, rounded, k)
			} else {
				c.vv(riscv32.VMFLTVV, maskReg, rounded, src)
				c.vv(riscv32.VFADDVV, adjusted, rounded, k)
			}
			c.merge(rounded, rounded, adjusted)
		}
		c.vv(riscv32.VFSGNJVV, rounded, rounded, src)

		c.splatWords(s, k, int32(limit), int32(limit>>32))
		c.vset(sew)
		c.vv(riscv32.VFSGNJXVV, abs, src, src)
		c.vv(riscv32.VMFLTVV, maskReg, abs, k)
		c.merge(dst, src, rounded)
	})
	s.release(abs)
	s.release(k)
	s.release(adjusted)
	s.release(rounded)
}

// v128Extend widens the low or high half of the lanes. Shape is the result shape.
func (c *Compiler) v128Extend(s *scope, op V128UnaryOp, shape Shape, dst, src asm.Register) {
	if shape == ShapeI8x16 || shape.IsFloat() {
		panic(fmt.Sprintf("BUG: extending into %s", shape))
	}
	narrow := shape.sew() - 1
	if op == V128ExtendHighS || op == V128ExtendHighU {
		high, release := c.slideDown(s, narrow, src, shape.Lanes())
		defer release()
		src = high
	}
	inst := riscv32.VSEXTVF2
	if op == V128ExtendLowU || op == V128ExtendHighU {
		inst = riscv32.VZEXTVF2
	}
	tmp := s.acquireVec()
	c.vset(shape.sew())
	c.vunary(inst, tmp, src)
	c.move(Vec(dst), Vec(tmp))
	s.release(tmp)
}

func (c *Compiler) compileV128Shift(s *scope, o *OperationV128Shift) error {
	bits := int64(o.Shape.LaneSize() * 8)
	t := s.acquireGP()
	c.ri(riscv32.ANDI, t, o.Amount.Low(), bits-1)
	c.vset(o.Shape.sew())
	c.vx(v128ShiftInstructions[o.Op][1], o.Dst.Low(), o.Src.Low(), t)
	s.release(t)
	return nil
}

// v128ShiftInstructions are the .vi and .vx forms of each shift.
var v128ShiftInstructions = map[V128ShiftOp][2]asm.Instruction{
	V128Shl:  {riscv32.VSLLVI, riscv32.VSLLVX},
	V128ShrS: {riscv32.VSRAVI, riscv32.VSRAVX},
	V128ShrU: {riscv32.VSRLVI, riscv32.VSRLVX},
}

func (c *Compiler) compileV128ShiftImm(s *scope, o *OperationV128ShiftImm) error {
	amount := int64(o.Amount) & int64(o.Shape.LaneSize()*8-1)
	forms := v128ShiftInstructions[o.Op]
	if amount <= 31 {
		c.vset(o.Shape.sew())
		c.vi(forms[0], o.Dst.Low(), o.Src.Low(), amount)
		return nil
	}
	t := s.acquireGP()
	c.li(t, int32(amount))
	c.vset(o.Shape.sew())
	c.vx(forms[1], o.Dst.Low(), o.Src.Low(), t)
	s.release(t)
	return nil
}

func (c *Compiler) compileV128Test(s *scope, o *OperationV128Test) error {
	dst, src := o.Dst.Low(), o.Src.Low()
	c.withMask(s, func() {
		switch o.Op {
		case V128AnyTrue:
			c.vset(riscv32.E8)
			c.vx(riscv32.VMSNEVX, maskReg, src, zero)
			c.vunary(riscv32.VCPOPM, dst, maskReg)
			c.snez(dst, dst)
		case V128AllTrue:
			c.vset(o.Shape.sew())
			c.vi(riscv32.VMSEQVI, maskReg, src, 0)
			c.vunary(riscv32.VCPOPM, dst, maskReg)
			c.seqz(dst, dst)
		case V128Bitmask:
			c.vset(o.Shape.sew())
			c.vx(riscv32.VMSLTVX, maskReg, src, zero)
			c.vset(riscv32.E32)
			c.vunary(riscv32.VMVXS, dst, maskReg)
			if lanes := o.Shape.Lanes(); lanes == 16 {
				c.ri(riscv32.SLLI, dst, dst, 16)
				c.ri(riscv32.SRLI, dst, dst, 16)
			} else {
				c.ri(riscv32.ANDI, dst, dst, int64(1)<<lanes-1)
			}
		default:
			panic(fmt.Sprintf("BUG: unknown test %d", o.Op))
		}
	})
	return nil
}

// compileV128Bitselect computes src2 ^ ((src1 ^ src2) & mask).
func (c *Compiler) compileV128Bitselect(s *scope, o *OperationV128Bitselect) error {
	tmp := s.acquireVec()
	c.vset(riscv32.E8)
	c.vv(riscv32.VXORVV, tmp, o.Src1.Low(), o.Src2.Low())
	c.vv(riscv32.VANDVV, tmp, tmp, o.Mask.Low())
	c.vv(riscv32.VXORVV, o.Dst.Low(), tmp, o.Src2.Low())
	s.release(tmp)
	return nil
}

func (c *Compiler) compileV128Const(s *scope, o *OperationV128Const) error {
	c.withMask(s, func() {
		c.v128Const(s, o.Dst.Low(), o.Lo, o.Hi)
	})
	return nil
}

// v128Const splats the first word, then merges each word which differs from it.
func (c *Compiler) v128Const(s *scope, dst asm.Register, lo, hi uint64) {
	words := [4]int32{int32(lo), int32(lo >> 32), int32(hi), int32(hi >> 32)}
	t := s.acquireGP()
	c.li(t, words[0])
	c.vset(riscv32.E32)
	c.assembler.CompileVectorMove(riscv32.VMVVX, t, dst)
	for i := 1; i < 4; i++ {
		if words[i] == words[0] {
			continue
		}
		c.setMask(s, 1<<i)
		c.li(t, words[i])
		c.vx(riscv32.VMERGEVXM, dst, dst, t)
	}
	s.release(t)
}

// compileV128Shuffle gathers the lanes selected in lhs, then those selected in rhs with the
// indexes rebased by 16, and combines both. Indexes out of range gather zero.
func (c *Compiler) compileV128Shuffle(s *scope, o *OperationV128Shuffle) error {
	var lo, hi uint64
	for i, l := range o.Lanes {
		if l >= 32 {
			panic(fmt.Sprintf("BUG: shuffle lane %d", l))
		}
		if i < 8 {
			lo |= uint64(l) << (8 * i)
		} else {
			hi |= uint64(l) << (8 * (i - 8))
		}
	}
	idx, fromLhs, fromRhs := s.acquireVec(), s.acquireVec(), s.acquireVec()
	c.withMask(s, func() {
		c.v128Const(s, idx, lo, hi)
	})
	c.vset(riscv32.E8)
	c.vv(riscv32.VRGATHERVV, fromLhs, o.Lhs.Low(), idx)
	c.vi(riscv32.VADDVI, idx, idx, -16)
	c.vv(riscv32.VRGATHERVV, fromRhs, o.Rhs.Low(), idx)
	c.vv(riscv32.VORVV, o.Dst.Low(), fromLhs, fromRhs)
	s.release(fromRhs)
	s.release(fromLhs)
	s.release(idx)
	return nil
}

func (c *Compiler) compileS128SetIfNaN(s *scope, o *OperationS128SetIfNaN) error {
	if !o.Shape.IsFloat() {
		panic(fmt.Sprintf("BUG: NaN check of %s", o.Shape))
	}
	t := s.acquireGP()
	skip := c.NewLabel()
	c.withMask(s, func() {
		c.vset(o.Shape.sew())
		c.vv(riscv32.VMFNEVV, maskReg, o.Src.Low(), o.Src.Low())
		c.vunary(riscv32.VCPOPM, t, maskReg)
	})
	c.branch(riscv32.BEQ, t, zero, skip)
	c.li(t, 1)
	c.assembler.CompileRegisterToMemory(riscv32.SW, t, o.Dst, 0)
	c.BindLabel(skip)
	s.release(t)
	return nil
}
