package rv32sim

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
	"github.com/tetratelabs/baseline32/internal/moremath"
)

const vregBytes = riscv32.VLEN / 8

func isVector(inst asm.Instruction) bool {
	return inst >= riscv32.VSETIVLI
}

// vunit executes one vector instruction. Operands are read from a snapshot of the register
// file taken before the instruction, so that overlapping operands read the old values.
// Tail and inactive elements are left undisturbed, which is one of the behaviors allowed
// by the agnostic policy.
type vunit struct {
	h      *Hart
	src    [vregFileSize]byte
	sew    int
	vl     int
	vlmax  int
	masked bool
}

func (u *vunit) offset(reg asm.Register, i, width int) int {
	off := int(reg-riscv32.REG_V0)*vregBytes + i*width
	if reg < riscv32.REG_V0 || reg > riscv32.REG_V31 || off+width > vregFileSize {
		panic(fmt.Sprintf("element %d of %d bytes is out of the register file from %s", i, width, riscv32.RegisterName(reg)))
	}
	return off
}

func (u *vunit) get(reg asm.Register, i, width int) uint64 {
	off := u.offset(reg, i, width)
	var buf [8]byte
	copy(buf[:], u.src[off:off+width])
	return binary.LittleEndian.Uint64(buf[:])
}

func (u *vunit) set(reg asm.Register, i, width int, v uint64) {
	off := u.offset(reg, i, width)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	copy(u.h.V[off:off+width], buf[:width])
}

func (u *vunit) bit(reg asm.Register, i int) bool {
	off := u.offset(reg, i/8, 1)
	return u.src[off]>>(i%8)&1 == 1
}

func (u *vunit) setBit(reg asm.Register, i int, b bool) {
	off := u.offset(reg, i/8, 1)
	if b {
		u.h.V[off] |= 1 << (i % 8)
	} else {
		u.h.V[off] &^= 1 << (i % 8)
	}
}

func (u *vunit) active(i int) bool {
	return !u.masked || u.bit(riscv32.REG_V0, i)
}

// rhs returns the second operand of element i: vs1, the scalar register or the immediate.
func (u *vunit) rhs(n *riscv32.NodeImpl, i int) uint64 {
	switch {
	case riscv32.IsVectorRegister(n.Rs1):
		return u.get(n.Rs1, i, u.sew)
	case riscv32.IsIntRegister(n.Rs1):
		return uint64(int64(int32(u.h.x(n.Rs1))))
	case riscv32.IsFloatRegister(n.Rs1):
		if u.sew == 4 {
			return uint64(u.h.f32(n.Rs1))
		}
		return u.h.f64(n.Rs1)
	}
	return uint64(n.Imm)
}

func widthMask(bits int) uint64 {
	if bits >= 64 {
		return math.MaxUint64
	}
	return 1<<bits - 1
}

func sext(v uint64, bits int) int64 {
	shift := 64 - bits
	return int64(v<<shift) >> shift
}

func (h *Hart) execVector(n *riscv32.NodeImpl) (err error) {
	if n.Instruction == riscv32.VSETIVLI {
		sew, lmul := riscv32.SEW(n.VType>>3&0b111), riscv32.LMUL(n.VType&0b111)
		vl := int(n.Imm)
		if vlmax := riscv32.VLMax(sew, lmul); vl > vlmax {
			vl = vlmax
		}
		h.VL, h.sew, h.lmul = vl, sew, lmul
		h.setX(n.Rd, uint32(vl))
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	u := &vunit{h: h, src: h.V, sew: h.sew.Bits() / 8, vl: h.VL, vlmax: riscv32.VLMax(h.sew, h.lmul), masked: n.Masked}
	inst := n.Instruction
	bits := u.sew * 8

	switch inst {
	case riscv32.VLE8V, riscv32.VLE16V, riscv32.VLE32V, riscv32.VLE64V:
		return u.load(n, loadStoreWidth(inst))
	case riscv32.VSE8V, riscv32.VSE16V, riscv32.VSE32V, riscv32.VSE64V:
		return u.store(n, loadStoreWidth(inst))

	case riscv32.VMVVV, riscv32.VMVVX, riscv32.VMVVI, riscv32.VFMVVF:
		for i := 0; i < u.vl; i++ {
			u.set(n.Rd, i, u.sew, u.rhs(n, i)&widthMask(bits))
		}
	case riscv32.VMVSX, riscv32.VFMVSF:
		if u.vl > 0 {
			u.set(n.Rd, 0, u.sew, u.rhs(n, 0)&widthMask(bits))
		}
	case riscv32.VMVXS:
		h.setX(n.Rd, uint32(sext(u.get(n.Rs2, 0, u.sew), bits)))
	case riscv32.VFMVFS:
		v := u.get(n.Rs2, 0, u.sew)
		if u.sew == 4 {
			h.setF32(n.Rd, uint32(v))
		} else {
			h.setF64(n.Rd, v)
		}

	case riscv32.VMERGEVVM, riscv32.VMERGEVXM, riscv32.VMERGEVIM, riscv32.VFMERGEVFM:
		for i := 0; i < u.vl; i++ {
			v := u.get(n.Rs2, i, u.sew)
			if u.bit(riscv32.REG_V0, i) {
				v = u.rhs(n, i) & widthMask(bits)
			}
			u.set(n.Rd, i, u.sew, v)
		}

	case riscv32.VRGATHERVV:
		for i := 0; i < u.vl; i++ {
			if !u.active(i) {
				continue
			}
			var v uint64
			if idx := u.get(n.Rs1, i, u.sew); idx < uint64(u.vlmax) {
				v = u.get(n.Rs2, int(idx), u.sew)
			}
			u.set(n.Rd, i, u.sew, v)
		}
	case riscv32.VSLIDEUPVI:
		off := int(n.Imm)
		for i := off; i < u.vl; i++ {
			if u.active(i) {
				u.set(n.Rd, i, u.sew, u.get(n.Rs2, i-off, u.sew))
			}
		}
	case riscv32.VSLIDEDOWNVI, riscv32.VSLIDEDOWNVX:
		off := uint64(n.Imm)
		if inst == riscv32.VSLIDEDOWNVX {
			off = uint64(h.x(n.Rs1))
		}
		for i := 0; i < u.vl; i++ {
			if !u.active(i) {
				continue
			}
			var v uint64
			if j := uint64(i) + off; j < uint64(u.vlmax) {
				v = u.get(n.Rs2, int(j), u.sew)
			}
			u.set(n.Rd, i, u.sew, v)
		}

	case riscv32.VNSRLWI, riscv32.VNCLIPUWI, riscv32.VNCLIPWI:
		for i := 0; i < u.vl; i++ {
			if u.active(i) {
				u.set(n.Rd, i, u.sew, narrow(inst, u.get(n.Rs2, i, 2*u.sew), uint(n.Imm)&uint(2*bits-1), bits))
			}
		}
	case riscv32.VWMULVV, riscv32.VWMULUVV:
		for i := 0; i < u.vl; i++ {
			if !u.active(i) {
				continue
			}
			a, b := u.get(n.Rs2, i, u.sew), u.get(n.Rs1, i, u.sew)
			v := a * b
			if inst == riscv32.VWMULVV {
				v = uint64(sext(a, bits) * sext(b, bits))
			}
			u.set(n.Rd, i, 2*u.sew, v&widthMask(2*bits))
		}
	case riscv32.VZEXTVF2, riscv32.VSEXTVF2, riscv32.VZEXTVF4, riscv32.VSEXTVF4:
		factor := 2
		if inst == riscv32.VZEXTVF4 || inst == riscv32.VSEXTVF4 {
			factor = 4
		}
		from := u.sew / factor
		for i := 0; i < u.vl; i++ {
			if !u.active(i) {
				continue
			}
			v := u.get(n.Rs2, i, from)
			if inst == riscv32.VSEXTVF2 || inst == riscv32.VSEXTVF4 {
				v = uint64(sext(v, from*8)) & widthMask(bits)
			}
			u.set(n.Rd, i, u.sew, v)
		}
	case riscv32.VREDMINUVS, riscv32.VREDMAXUVS:
		acc := u.get(n.Rs1, 0, u.sew)
		for i := 0; i < u.vl; i++ {
			if !u.active(i) {
				continue
			}
			v := u.get(n.Rs2, i, u.sew)
			if (inst == riscv32.VREDMINUVS) == (v < acc) {
				acc = v
			}
		}
		if u.vl > 0 {
			u.set(n.Rd, 0, u.sew, acc)
		}

	case riscv32.VMANDMM, riscv32.VMORMM, riscv32.VMXORMM, riscv32.VMNANDMM:
		for i := 0; i < u.vl; i++ {
			a, b := u.bit(n.Rs2, i), u.bit(n.Rs1, i)
			var v bool
			switch inst {
			case riscv32.VMANDMM:
				v = a && b
			case riscv32.VMORMM:
				v = a || b
			case riscv32.VMXORMM:
				v = a != b
			default:
				v = !(a && b)
			}
			u.setBit(n.Rd, i, v)
		}
	case riscv32.VCPOPM:
		var count uint32
		for i := 0; i < u.vl; i++ {
			if u.active(i) && u.bit(n.Rs2, i) {
				count++
			}
		}
		h.setX(n.Rd, count)

	case riscv32.VFSQRTV, riscv32.VFCVTXFV, riscv32.VFCVTFXV, riscv32.VFCVTFXUV,
		riscv32.VFCVTRTZXFV, riscv32.VFCVTRTZXUFV:
		for i := 0; i < u.vl; i++ {
			if u.active(i) {
				u.set(n.Rd, i, u.sew, u.floatUnary(inst, u.get(n.Rs2, i, u.sew)))
			}
		}
	case riscv32.VFWCVTFFV, riscv32.VFWCVTFXV, riscv32.VFWCVTFXUV:
		for i := 0; i < u.vl; i++ {
			if u.active(i) {
				u.set(n.Rd, i, 2*u.sew, widen(inst, u.get(n.Rs2, i, u.sew), bits))
			}
		}
	case riscv32.VFNCVTFFW:
		if u.sew != 4 {
			return fmt.Errorf("vfncvt.f.f.w at e%d", bits)
		}
		for i := 0; i < u.vl; i++ {
			if u.active(i) {
				f := math.Float64frombits(u.get(n.Rs2, i, 8))
				u.set(n.Rd, i, 4, uint64(canonical32(float32(f))))
			}
		}

	default:
		if cmp, ok := intCompare(inst); ok {
			for i := 0; i < u.vl; i++ {
				if u.active(i) {
					u.setBit(n.Rd, i, cmp(u.get(n.Rs2, i, u.sew), u.rhs(n, i)&widthMask(bits), bits))
				}
			}
			return nil
		}
		if cmp, ok := floatCompare(inst); ok {
			for i := 0; i < u.vl; i++ {
				if u.active(i) {
					u.setBit(n.Rd, i, cmp(u.float(u.get(n.Rs2, i, u.sew)), u.float(u.rhs(n, i))))
				}
			}
			return nil
		}
		if op, ok := intBinary(inst); ok {
			for i := 0; i < u.vl; i++ {
				if u.active(i) {
					u.set(n.Rd, i, u.sew, op(u.get(n.Rs2, i, u.sew), u.rhs(n, i)&widthMask(bits), bits)&widthMask(bits))
				}
			}
			return nil
		}
		if isFloatBinary(inst) {
			for i := 0; i < u.vl; i++ {
				if u.active(i) {
					u.set(n.Rd, i, u.sew, u.floatBinary(inst, u.get(n.Rs2, i, u.sew), u.rhs(n, i)))
				}
			}
			return nil
		}
		return fmt.Errorf("unsupported instruction %s", riscv32.InstructionName(inst))
	}
	return nil
}

func loadStoreWidth(inst asm.Instruction) int {
	switch inst {
	case riscv32.VLE8V, riscv32.VSE8V:
		return 1
	case riscv32.VLE16V, riscv32.VSE16V:
		return 2
	case riscv32.VLE32V, riscv32.VSE32V:
		return 4
	}
	return 8
}

func (u *vunit) load(n *riscv32.NodeImpl, width int) error {
	base := u.h.x(n.Rs1)
	for i := 0; i < u.vl; i++ {
		if !u.active(i) {
			continue
		}
		v, err := u.h.m.load(base+uint32(i*width), uint32(width))
		if err != nil {
			return err
		}
		u.set(n.Rd, i, width, v)
	}
	return nil
}

func (u *vunit) store(n *riscv32.NodeImpl, width int) error {
	base := u.h.x(n.Rs1)
	for i := 0; i < u.vl; i++ {
		if !u.active(i) {
			continue
		}
		if err := u.h.m.store(u.h, base+uint32(i*width), uint32(width), u.get(n.Rd, i, width)); err != nil {
			return err
		}
	}
	return nil
}

func intBinary(inst asm.Instruction) (func(a, b uint64, bits int) uint64, bool) {
	switch inst {
	case riscv32.VADDVV, riscv32.VADDVX, riscv32.VADDVI:
		return func(a, b uint64, _ int) uint64 { return a + b }, true
	case riscv32.VSUBVV, riscv32.VSUBVX:
		return func(a, b uint64, _ int) uint64 { return a - b }, true
	case riscv32.VRSUBVX, riscv32.VRSUBVI:
		return func(a, b uint64, _ int) uint64 { return b - a }, true
	case riscv32.VANDVV, riscv32.VANDVX, riscv32.VANDVI:
		return func(a, b uint64, _ int) uint64 { return a & b }, true
	case riscv32.VORVV, riscv32.VORVX:
		return func(a, b uint64, _ int) uint64 { return a | b }, true
	case riscv32.VXORVV, riscv32.VXORVX, riscv32.VXORVI:
		return func(a, b uint64, _ int) uint64 { return a ^ b }, true
	case riscv32.VMINUVV:
		return func(a, b uint64, _ int) uint64 {
			if a < b {
				return a
			}
			return b
		}, true
	case riscv32.VMAXUVV:
		return func(a, b uint64, _ int) uint64 {
			if a > b {
				return a
			}
			return b
		}, true
	case riscv32.VMINVV:
		return func(a, b uint64, bits int) uint64 {
			if sext(a, bits) < sext(b, bits) {
				return a
			}
			return b
		}, true
	case riscv32.VMAXVV, riscv32.VMAXVX:
		return func(a, b uint64, bits int) uint64 {
			if sext(a, bits) > sext(b, bits) {
				return a
			}
			return b
		}, true
	case riscv32.VSADDUVV:
		return func(a, b uint64, bits int) uint64 {
			s := (a + b) & widthMask(bits)
			if s < a {
				return widthMask(bits)
			}
			return s
		}, true
	case riscv32.VSSUBUVV:
		return func(a, b uint64, _ int) uint64 {
			if a < b {
				return 0
			}
			return a - b
		}, true
	case riscv32.VSADDVV:
		return func(a, b uint64, bits int) uint64 { return saturateSigned(sext(a, bits), sext(b, bits), false, bits) }, true
	case riscv32.VSSUBVV:
		return func(a, b uint64, bits int) uint64 { return saturateSigned(sext(a, bits), sext(b, bits), true, bits) }, true
	case riscv32.VSLLVV, riscv32.VSLLVX, riscv32.VSLLVI:
		return func(a, b uint64, bits int) uint64 { return a << (b & uint64(bits-1)) }, true
	case riscv32.VSRLVV, riscv32.VSRLVX, riscv32.VSRLVI:
		return func(a, b uint64, bits int) uint64 { return a >> (b & uint64(bits-1)) }, true
	case riscv32.VSRAVV, riscv32.VSRAVX, riscv32.VSRAVI:
		return func(a, b uint64, bits int) uint64 { return uint64(sext(a, bits) >> (b & uint64(bits-1))) }, true
	case riscv32.VMULVV:
		return func(a, b uint64, _ int) uint64 { return a * b }, true
	case riscv32.VMULHVV:
		return func(a, b uint64, bits int) uint64 {
			if bits == 64 {
				hi, _ := bits64MulSigned(int64(a), int64(b))
				return uint64(hi)
			}
			return uint64(sext(a, bits) * sext(b, bits) >> bits)
		}, true
	}
	return nil, false
}

// bits64MulSigned returns the 128-bit product of a and b.
func bits64MulSigned(a, b int64) (hi, lo int64) {
	h, l := bits.Mul64(uint64(a), uint64(b))
	if a < 0 {
		h -= uint64(b)
	}
	if b < 0 {
		h -= uint64(a)
	}
	return int64(h), int64(l)
}

func saturateSigned(a, b int64, sub bool, bits int) uint64 {
	hi := int64(widthMask(bits - 1))
	lo := -hi - 1
	if sub {
		if b == lo {
			if a >= 0 {
				return uint64(hi) & widthMask(bits)
			}
			return uint64(a-b) & widthMask(bits)
		}
		b = -b
	}
	var s int64
	switch {
	case b > 0 && a > hi-b:
		s = hi
	case b < 0 && a < lo-b:
		s = lo
	default:
		s = a + b
	}
	return uint64(s) & widthMask(bits)
}

func intCompare(inst asm.Instruction) (func(a, b uint64, bits int) bool, bool) {
	switch inst {
	case riscv32.VMSEQVV, riscv32.VMSEQVX, riscv32.VMSEQVI:
		return func(a, b uint64, _ int) bool { return a == b }, true
	case riscv32.VMSNEVV, riscv32.VMSNEVX:
		return func(a, b uint64, _ int) bool { return a != b }, true
	case riscv32.VMSLTUVV:
		return func(a, b uint64, _ int) bool { return a < b }, true
	case riscv32.VMSLEUVV:
		return func(a, b uint64, _ int) bool { return a <= b }, true
	case riscv32.VMSGTUVX:
		return func(a, b uint64, _ int) bool { return a > b }, true
	case riscv32.VMSLTVV, riscv32.VMSLTVX:
		return func(a, b uint64, bits int) bool { return sext(a, bits) < sext(b, bits) }, true
	case riscv32.VMSLEVV:
		return func(a, b uint64, bits int) bool { return sext(a, bits) <= sext(b, bits) }, true
	case riscv32.VMSGTVX:
		return func(a, b uint64, bits int) bool { return sext(a, bits) > sext(b, bits) }, true
	}
	return nil, false
}

func floatCompare(inst asm.Instruction) (func(a, b float64) bool, bool) {
	switch inst {
	case riscv32.VMFEQVV:
		return func(a, b float64) bool { return a == b }, true
	case riscv32.VMFNEVV:
		return func(a, b float64) bool { return a != b }, true
	case riscv32.VMFLTVV:
		return func(a, b float64) bool { return a < b }, true
	case riscv32.VMFLEVV:
		return func(a, b float64) bool { return a <= b }, true
	}
	return nil, false
}

func isFloatBinary(inst asm.Instruction) bool {
	switch inst {
	case riscv32.VFADDVV, riscv32.VFSUBVV, riscv32.VFMULVV, riscv32.VFDIVVV, riscv32.VFMINVV,
		riscv32.VFMAXVV, riscv32.VFSGNJVV, riscv32.VFSGNJNVV, riscv32.VFSGNJXVV:
		return true
	}
	return false
}

// float returns the element v of the current width as float64.
func (u *vunit) float(v uint64) float64 {
	if u.sew == 4 {
		return float64(math.Float32frombits(uint32(v)))
	}
	return math.Float64frombits(v)
}

// bitsOf rounds f to the current width and returns its canonical bits.
func (u *vunit) bitsOf(f float64) uint64 {
	if u.sew == 4 {
		return uint64(canonical32(float32(f)))
	}
	return canonical64(f)
}

func (u *vunit) floatBinary(inst asm.Instruction, a, b uint64) uint64 {
	switch inst {
	case riscv32.VFSGNJVV, riscv32.VFSGNJNVV, riscv32.VFSGNJXVV:
		sign := uint64(1) << (u.sew*8 - 1)
		switch inst {
		case riscv32.VFSGNJNVV:
			b = ^b
		case riscv32.VFSGNJXVV:
			b ^= a
		}
		return a&^sign | b&sign
	}
	x, y := u.float(a), u.float(b)
	var r float64
	switch inst {
	case riscv32.VFADDVV:
		r = x + y
	case riscv32.VFSUBVV:
		r = x - y
	case riscv32.VFMULVV:
		r = x * y
	case riscv32.VFDIVVV:
		r = x / y
	case riscv32.VFMINVV:
		r = moremath.MinimumNumber(x, y)
	default:
		r = moremath.MaximumNumber(x, y)
	}
	return u.bitsOf(r)
}

func (u *vunit) floatUnary(inst asm.Instruction, v uint64) uint64 {
	bits := u.sew * 8
	switch inst {
	case riscv32.VFSQRTV:
		return u.bitsOf(math.Sqrt(u.float(v)))
	case riscv32.VFCVTFXV:
		if u.sew == 4 {
			return uint64(math.Float32bits(float32(int32(v))))
		}
		return math.Float64bits(float64(int64(v)))
	case riscv32.VFCVTFXUV:
		if u.sew == 4 {
			return uint64(math.Float32bits(float32(uint32(v))))
		}
		return math.Float64bits(float64(v))
	case riscv32.VFCVTXFV:
		f := moremath.Round(u.float(v), byte(u.h.FRM))
		return convertToInt(f, bits, true)
	case riscv32.VFCVTRTZXFV:
		return convertToInt(math.Trunc(u.float(v)), bits, true)
	default:
		return convertToInt(math.Trunc(u.float(v)), bits, false)
	}
}

// convertToInt saturates the integral f to the integer range of the given width. NaN
// becomes the maximum value.
func convertToInt(f float64, bits int, signed bool) uint64 {
	if signed {
		limit := math.Ldexp(1, bits-1)
		switch {
		case math.IsNaN(f) || f >= limit:
			return widthMask(bits - 1)
		case f < -limit:
			return (widthMask(bits-1) + 1) & widthMask(bits)
		}
		return uint64(int64(f)) & widthMask(bits)
	}
	switch {
	case math.IsNaN(f) || f >= math.Ldexp(1, bits):
		return widthMask(bits)
	case f <= 0:
		return 0
	}
	return uint64(f)
}

func widen(inst asm.Instruction, v uint64, bits int) uint64 {
	switch inst {
	case riscv32.VFWCVTFFV:
		return canonical64(float64(math.Float32frombits(uint32(v))))
	case riscv32.VFWCVTFXV:
		f := float64(sext(v, bits))
		if bits == 16 {
			return uint64(math.Float32bits(float32(f)))
		}
		return math.Float64bits(f)
	default:
		if bits == 16 {
			return uint64(math.Float32bits(float32(v)))
		}
		return math.Float64bits(float64(v))
	}
}

func narrow(inst asm.Instruction, v uint64, shift uint, bits int) uint64 {
	switch inst {
	case riscv32.VNSRLWI:
		return (v >> shift) & widthMask(bits)
	case riscv32.VNCLIPUWI:
		r := v >> shift
		if shift > 0 {
			r += v >> (shift - 1) & 1
		}
		if r > widthMask(bits) {
			return widthMask(bits)
		}
		return r
	default:
		s := sext(v, 2*bits)
		r := s >> shift
		if shift > 0 {
			r += s >> (shift - 1) & 1
		}
		hi := int64(widthMask(bits - 1))
		switch {
		case r > hi:
			r = hi
		case r < -hi-1:
			r = -hi - 1
		}
		return uint64(r) & widthMask(bits)
	}
}
