package rv32sim

import (
	"fmt"
	"math"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
	"github.com/tetratelabs/baseline32/internal/moremath"
)

const (
	canonicalNaN32 uint32 = 0x7fc00000
	canonicalNaN64 uint64 = 0x7ff8000000000000
	nanBox         uint64 = 0xffffffff_00000000
)

func (h *Hart) f32(r asm.Register) uint32 {
	v := h.F[r-riscv32.REG_F0]
	if v&nanBox != nanBox {
		return canonicalNaN32
	}
	return uint32(v)
}

func (h *Hart) setF32(r asm.Register, v uint32) {
	h.F[r-riscv32.REG_F0] = nanBox | uint64(v)
}

func (h *Hart) f64(r asm.Register) uint64 {
	return h.F[r-riscv32.REG_F0]
}

func (h *Hart) setF64(r asm.Register, v uint64) {
	h.F[r-riscv32.REG_F0] = v
}

func canonical32(f float32) uint32 {
	if f != f {
		return canonicalNaN32
	}
	return math.Float32bits(f)
}

func canonical64(f float64) uint64 {
	if f != f {
		return canonicalNaN64
	}
	return math.Float64bits(f)
}

func (h *Hart) roundingMode(rm riscv32.RoundingMode) byte {
	if rm == riscv32.DYN {
		return byte(h.FRM)
	}
	return byte(rm)
}

// single is true for the single precision instructions of each pair.
func single(inst asm.Instruction) bool {
	switch inst {
	case riscv32.FLW, riscv32.FSW, riscv32.FADDS, riscv32.FSUBS, riscv32.FMULS, riscv32.FDIVS,
		riscv32.FSQRTS, riscv32.FSGNJS, riscv32.FSGNJNS, riscv32.FSGNJXS, riscv32.FMINS, riscv32.FMAXS,
		riscv32.FCVTWS, riscv32.FCVTWUS, riscv32.FCVTSW, riscv32.FCVTSWU, riscv32.FEQS, riscv32.FLTS,
		riscv32.FLES, riscv32.FCLASSS:
		return true
	}
	return false
}

// operand returns the value of the floating point register r as float64, exactly.
func (h *Hart) operand(inst asm.Instruction, r asm.Register) float64 {
	if single(inst) {
		return float64(math.Float32frombits(h.f32(r)))
	}
	return math.Float64frombits(h.f64(r))
}

func (h *Hart) result(inst asm.Instruction, r asm.Register, f float64) {
	if single(inst) {
		h.setF32(r, canonical32(float32(f)))
	} else {
		h.setF64(r, canonical64(f))
	}
}

func (h *Hart) execFloat(n *riscv32.NodeImpl) error {
	inst := n.Instruction
	switch inst {
	case riscv32.FLW, riscv32.FLD:
		size := uint32(8)
		if inst == riscv32.FLW {
			size = 4
		}
		v, err := h.m.load(h.x(n.Rs1)+uint32(n.Imm), size)
		if err != nil {
			return err
		}
		if inst == riscv32.FLW {
			h.setF32(n.Rd, uint32(v))
		} else {
			h.setF64(n.Rd, v)
		}
	case riscv32.FSW:
		return h.m.store(h, h.x(n.Rs1)+uint32(n.Imm), 4, h.f64(n.Rs2)&math.MaxUint32)
	case riscv32.FSD:
		return h.m.store(h, h.x(n.Rs1)+uint32(n.Imm), 8, h.f64(n.Rs2))
	case riscv32.FADDS, riscv32.FADDD:
		h.result(inst, n.Rd, h.operand(inst, n.Rs1)+h.operand(inst, n.Rs2))
	case riscv32.FSUBS, riscv32.FSUBD:
		h.result(inst, n.Rd, h.operand(inst, n.Rs1)-h.operand(inst, n.Rs2))
	case riscv32.FMULS:
		h.result(inst, n.Rd, float64(float32(h.operand(inst, n.Rs1))*float32(h.operand(inst, n.Rs2))))
	case riscv32.FMULD:
		h.result(inst, n.Rd, h.operand(inst, n.Rs1)*h.operand(inst, n.Rs2))
	case riscv32.FDIVS:
		h.result(inst, n.Rd, float64(float32(h.operand(inst, n.Rs1))/float32(h.operand(inst, n.Rs2))))
	case riscv32.FDIVD:
		h.result(inst, n.Rd, h.operand(inst, n.Rs1)/h.operand(inst, n.Rs2))
	case riscv32.FSQRTS:
		h.result(inst, n.Rd, float64(float32(math.Sqrt(h.operand(inst, n.Rs1)))))
	case riscv32.FSQRTD:
		h.result(inst, n.Rd, math.Sqrt(h.operand(inst, n.Rs1)))
	case riscv32.FMINS, riscv32.FMIND:
		h.result(inst, n.Rd, moremath.MinimumNumber(h.operand(inst, n.Rs1), h.operand(inst, n.Rs2)))
	case riscv32.FMAXS, riscv32.FMAXD:
		h.result(inst, n.Rd, moremath.MaximumNumber(h.operand(inst, n.Rs1), h.operand(inst, n.Rs2)))
	case riscv32.FSGNJS, riscv32.FSGNJNS, riscv32.FSGNJXS:
		h.setF32(n.Rd, uint32(signInject(inst, uint64(h.f32(n.Rs1)), uint64(h.f32(n.Rs2)), 31)))
	case riscv32.FSGNJD, riscv32.FSGNJND, riscv32.FSGNJXD:
		h.setF64(n.Rd, signInject(inst, h.f64(n.Rs1), h.f64(n.Rs2), 63))
	case riscv32.FEQS, riscv32.FEQD:
		h.setX(n.Rd, boolToUint32(h.operand(inst, n.Rs1) == h.operand(inst, n.Rs2)))
	case riscv32.FLTS, riscv32.FLTD:
		h.setX(n.Rd, boolToUint32(h.operand(inst, n.Rs1) < h.operand(inst, n.Rs2)))
	case riscv32.FLES, riscv32.FLED:
		h.setX(n.Rd, boolToUint32(h.operand(inst, n.Rs1) <= h.operand(inst, n.Rs2)))
	case riscv32.FCVTWS, riscv32.FCVTWD:
		f := moremath.Round(h.operand(inst, n.Rs1), h.roundingMode(n.RoundingMode))
		h.setX(n.Rd, uint32(moremath.TruncToInt32Sat(f)))
	case riscv32.FCVTWUS, riscv32.FCVTWUD:
		f := moremath.Round(h.operand(inst, n.Rs1), h.roundingMode(n.RoundingMode))
		h.setX(n.Rd, moremath.TruncToUint32Sat(f))
	case riscv32.FCVTSW:
		h.setF32(n.Rd, math.Float32bits(float32(int32(h.x(n.Rs1)))))
	case riscv32.FCVTSWU:
		h.setF32(n.Rd, math.Float32bits(float32(h.x(n.Rs1))))
	case riscv32.FCVTDW:
		h.setF64(n.Rd, math.Float64bits(float64(int32(h.x(n.Rs1)))))
	case riscv32.FCVTDWU:
		h.setF64(n.Rd, math.Float64bits(float64(h.x(n.Rs1))))
	case riscv32.FCVTSD:
		h.setF32(n.Rd, canonical32(float32(math.Float64frombits(h.f64(n.Rs1)))))
	case riscv32.FCVTDS:
		h.setF64(n.Rd, canonical64(float64(math.Float32frombits(h.f32(n.Rs1)))))
	case riscv32.FMVXW:
		h.setX(n.Rd, uint32(h.f64(n.Rs1)))
	case riscv32.FMVWX:
		h.setF32(n.Rd, h.x(n.Rs1))
	case riscv32.FCLASSS:
		h.setX(n.Rd, classify(float64(math.Float32frombits(h.f32(n.Rs1))), h.f32(n.Rs1)>>22&1 == 1, 0x1p-126))
	case riscv32.FCLASSD:
		h.setX(n.Rd, classify(math.Float64frombits(h.f64(n.Rs1)), h.f64(n.Rs1)>>51&1 == 1, 0x1p-1022))
	default:
		return fmt.Errorf("unsupported instruction %s", riscv32.InstructionName(inst))
	}
	return nil
}

func signInject(inst asm.Instruction, a, b uint64, signBit uint) uint64 {
	sign := uint64(1) << signBit
	switch inst {
	case riscv32.FSGNJNS, riscv32.FSGNJND:
		b = ^b
	case riscv32.FSGNJXS, riscv32.FSGNJXD:
		b ^= a
	}
	return a&^sign | b&sign
}

// classify implements fclass for f, where quiet tells a quiet NaN from a signaling one.
func classify(f float64, quiet bool, minNormal float64) uint32 {
	neg := math.Signbit(f)
	var bit uint
	switch {
	case math.IsNaN(f):
		bit = 8
		if quiet {
			bit = 9
		}
	case math.IsInf(f, -1):
		bit = 0
	case math.IsInf(f, 1):
		bit = 7
	case f == 0:
		bit = 4
		if neg {
			bit = 3
		}
	case math.Abs(f) < minNormal:
		bit = 5
		if neg {
			bit = 2
		}
	default:
		bit = 6
		if neg {
			bit = 1
		}
	}
	return 1 << bit
}
