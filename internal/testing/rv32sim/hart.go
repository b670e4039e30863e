package rv32sim

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

// vregFileSize is the size of the vector register file in bytes.
const vregFileSize = 32 * riscv32.VLEN / 8

// Hart is one hardware thread: its registers and its stack.
type Hart struct {
	m *Machine

	// X are the integer registers. X[0] is kept at zero.
	X [32]uint32
	// F are the floating point registers. Single precision values are NaN-boxed.
	F [32]uint64
	// V is the vector register file, vN starting at byte N*VLEN/8.
	V [vregFileSize]byte
	// PC is the address of the next instruction.
	PC uint32
	// FRM is the dynamic rounding mode.
	FRM riscv32.RoundingMode

	// VL is the vector length set by the last vsetivli.
	VL   int
	sew  riscv32.SEW
	lmul riscv32.LMUL

	reservation uint32
	reserved    bool

	// StackBase and StackTop delimit the stack of the hart.
	StackBase, StackTop uint32
	// Steps counts the executed instructions since the last Call.
	Steps int

	done bool
}

// Machine returns the machine of the hart.
func (h *Hart) Machine() *Machine {
	return h.m
}

// Reg returns the value of the integer register r.
func (h *Hart) Reg(r asm.Register) uint32 {
	return h.X[riscv32.RegisterNumber(r)]
}

// SetReg sets the integer register r. Writes to zero are ignored.
func (h *Hart) SetReg(r asm.Register, v uint32) {
	h.setX(r, v)
}

// FloatReg returns the raw bits of the floating point register r.
func (h *Hart) FloatReg(r asm.Register) uint64 {
	return h.F[riscv32.RegisterNumber(r)]
}

// SetFloat32 sets the floating point register r to the NaN-boxed f.
func (h *Hart) SetFloat32(r asm.Register, f float32) {
	h.setF32(r, math.Float32bits(f))
}

// SetFloat64 sets the floating point register r to f.
func (h *Hart) SetFloat64(r asm.Register, f float64) {
	h.F[riscv32.RegisterNumber(r)] = math.Float64bits(f)
}

// Float32 returns the single precision value of the floating point register r.
func (h *Hart) Float32(r asm.Register) float32 {
	return math.Float32frombits(h.f32(r))
}

// Float64 returns the double precision value of the floating point register r.
func (h *Hart) Float64(r asm.Register) float64 {
	return math.Float64frombits(h.F[riscv32.RegisterNumber(r)])
}

// VectorReg returns a copy of the 16 bytes of the vector register r.
func (h *Hart) VectorReg(r asm.Register) [riscv32.VLEN / 8]byte {
	var ret [riscv32.VLEN / 8]byte
	n := riscv32.RegisterNumber(r)
	copy(ret[:], h.V[n*riscv32.VLEN/8:])
	return ret
}

// SetVectorReg sets the 16 bytes of the vector register r.
func (h *Hart) SetVectorReg(r asm.Register, b [riscv32.VLEN / 8]byte) {
	n := riscv32.RegisterNumber(r)
	copy(h.V[n*riscv32.VLEN/8:], b[:])
}

func (h *Hart) start(entry uint32) {
	h.PC = entry
	h.X[1] = ExitAddress
	h.Steps = 0
	h.done = false
	h.reserved = false
}

func (h *Hart) x(r asm.Register) uint32 {
	return h.X[r-riscv32.REG_X0]
}

func (h *Hart) setX(r asm.Register, v uint32) {
	if n := r - riscv32.REG_X0; n != 0 {
		h.X[n] = v
	}
}

// Step executes one instruction, or the handler of the stub at PC.
func (h *Hart) Step() error {
	if h.done {
		return nil
	}
	h.Steps++
	if h.PC == ExitAddress {
		h.done = true
		return nil
	}
	if s, ok := h.m.stubAt(h.PC); ok {
		if h.m.trace {
			h.m.logger.Debug("stub", zap.String("name", s.name), zap.Uint32("ra", h.X[1]))
		}
		if err := s.handler(h); err != nil {
			return err
		}
		h.PC = h.X[1]
		if h.PC == ExitAddress {
			h.done = true
		}
		return nil
	}
	n, err := h.m.fetch(h.PC)
	if err != nil {
		return err
	}
	if h.m.trace {
		h.m.logger.Debug("step", zap.Uint32("pc", h.PC), zap.Stringer("inst", n))
	}
	next := h.PC + 4
	if err := h.exec(n, &next); err != nil {
		return fmt.Errorf("%s at %#x: %w", n, h.PC, err)
	}
	h.PC = next
	if h.PC == ExitAddress {
		h.done = true
	}
	return nil
}

func (h *Hart) exec(n *riscv32.NodeImpl, next *uint32) error {
	switch n.Instruction {
	case riscv32.NOP, riscv32.FENCE:
		return nil
	case riscv32.EBREAK:
		return &BreakpointError{PC: h.PC}
	case riscv32.ECALL:
		return fmt.Errorf("ecall is not supported")
	case riscv32.LUI:
		h.setX(n.Rd, uint32(n.Imm<<12))
	case riscv32.AUIPC:
		h.setX(n.Rd, h.PC+uint32(n.Imm<<12))
	case riscv32.JAL:
		h.setX(n.Rd, h.PC+4)
		*next = h.PC + uint32(n.Imm)
	case riscv32.JALR:
		target := (h.x(n.Rs1) + uint32(n.Imm)) &^ 1
		h.setX(n.Rd, h.PC+4)
		*next = target
	case riscv32.BEQ, riscv32.BNE, riscv32.BLT, riscv32.BGE, riscv32.BLTU, riscv32.BGEU:
		if branchTaken(n.Instruction, h.x(n.Rs1), h.x(n.Rs2)) {
			*next = h.PC + uint32(n.Imm)
		}
	case riscv32.LB, riscv32.LH, riscv32.LW, riscv32.LBU, riscv32.LHU:
		return h.execLoad(n)
	case riscv32.SB, riscv32.SH, riscv32.SW:
		size := uint32(4)
		switch n.Instruction {
		case riscv32.SB:
			size = 1
		case riscv32.SH:
			size = 2
		}
		return h.m.store(h, h.x(n.Rs1)+uint32(n.Imm), size, uint64(h.x(n.Rs2)))
	case riscv32.ADDI, riscv32.SLTI, riscv32.SLTIU, riscv32.XORI, riscv32.ORI, riscv32.ANDI,
		riscv32.SLLI, riscv32.SRLI, riscv32.SRAI:
		h.setX(n.Rd, aluImm(n.Instruction, h.x(n.Rs1), int32(n.Imm)))
	case riscv32.ADD, riscv32.SUB, riscv32.SLL, riscv32.SLT, riscv32.SLTU, riscv32.XOR,
		riscv32.SRL, riscv32.SRA, riscv32.OR, riscv32.AND:
		h.setX(n.Rd, alu(n.Instruction, h.x(n.Rs1), h.x(n.Rs2)))
	case riscv32.MUL, riscv32.MULH, riscv32.MULHSU, riscv32.MULHU,
		riscv32.DIV, riscv32.DIVU, riscv32.REM, riscv32.REMU:
		h.setX(n.Rd, mulDiv(n.Instruction, h.x(n.Rs1), h.x(n.Rs2)))
	case riscv32.LRW:
		addr := h.x(n.Rs1)
		if addr%4 != 0 {
			return fmt.Errorf("%w: %#x", ErrMisaligned, addr)
		}
		v, err := h.m.load(addr, 4)
		if err != nil {
			return err
		}
		h.setX(n.Rd, uint32(v))
		h.reservation, h.reserved = addr, true
	case riscv32.SCW:
		addr := h.x(n.Rs1)
		if addr%4 != 0 {
			return fmt.Errorf("%w: %#x", ErrMisaligned, addr)
		}
		ok := h.reserved && h.reservation == addr
		h.reserved = false
		if !ok {
			h.setX(n.Rd, 1)
			return nil
		}
		if err := h.m.store(h, addr, 4, uint64(h.x(n.Rs2))); err != nil {
			return err
		}
		h.setX(n.Rd, 0)
	default:
		if isVector(n.Instruction) {
			return h.execVector(n)
		}
		return h.execFloat(n)
	}
	return nil
}

func (h *Hart) execLoad(n *riscv32.NodeImpl) error {
	addr := h.x(n.Rs1) + uint32(n.Imm)
	var size uint32
	switch n.Instruction {
	case riscv32.LB, riscv32.LBU:
		size = 1
	case riscv32.LH, riscv32.LHU:
		size = 2
	default:
		size = 4
	}
	v, err := h.m.load(addr, size)
	if err != nil {
		return err
	}
	switch n.Instruction {
	case riscv32.LB:
		v = uint64(int8(v))
	case riscv32.LH:
		v = uint64(int16(v))
	}
	h.setX(n.Rd, uint32(v))
	return nil
}

func branchTaken(inst asm.Instruction, a, b uint32) bool {
	switch inst {
	case riscv32.BEQ:
		return a == b
	case riscv32.BNE:
		return a != b
	case riscv32.BLT:
		return int32(a) < int32(b)
	case riscv32.BGE:
		return int32(a) >= int32(b)
	case riscv32.BLTU:
		return a < b
	default:
		return a >= b
	}
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func aluImm(inst asm.Instruction, a uint32, imm int32) uint32 {
	switch inst {
	case riscv32.ADDI:
		return a + uint32(imm)
	case riscv32.SLTI:
		return boolToUint32(int32(a) < imm)
	case riscv32.SLTIU:
		return boolToUint32(a < uint32(imm))
	case riscv32.XORI:
		return a ^ uint32(imm)
	case riscv32.ORI:
		return a | uint32(imm)
	case riscv32.ANDI:
		return a & uint32(imm)
	case riscv32.SLLI:
		return a << (imm & 31)
	case riscv32.SRLI:
		return a >> (imm & 31)
	default:
		return uint32(int32(a) >> (imm & 31))
	}
}

func alu(inst asm.Instruction, a, b uint32) uint32 {
	switch inst {
	case riscv32.ADD:
		return a + b
	case riscv32.SUB:
		return a - b
	case riscv32.SLL:
		return a << (b & 31)
	case riscv32.SLT:
		return boolToUint32(int32(a) < int32(b))
	case riscv32.SLTU:
		return boolToUint32(a < b)
	case riscv32.XOR:
		return a ^ b
	case riscv32.SRL:
		return a >> (b & 31)
	case riscv32.SRA:
		return uint32(int32(a) >> (b & 31))
	case riscv32.OR:
		return a | b
	default:
		return a & b
	}
}

func mulDiv(inst asm.Instruction, a, b uint32) uint32 {
	switch inst {
	case riscv32.MUL:
		return a * b
	case riscv32.MULH:
		return uint32(uint64(int64(int32(a))*int64(int32(b))) >> 32)
	case riscv32.MULHSU:
		return uint32(uint64(int64(int32(a))*int64(b)) >> 32)
	case riscv32.MULHU:
		return uint32(uint64(a) * uint64(b) >> 32)
	case riscv32.DIV:
		switch {
		case b == 0:
			return math.MaxUint32
		case int32(a) == math.MinInt32 && int32(b) == -1:
			return a
		}
		return uint32(int32(a) / int32(b))
	case riscv32.DIVU:
		if b == 0 {
			return math.MaxUint32
		}
		return a / b
	case riscv32.REM:
		switch {
		case b == 0:
			return a
		case int32(a) == math.MinInt32 && int32(b) == -1:
			return 0
		}
		return uint32(int32(a) % int32(b))
	default:
		if b == 0 {
			return a
		}
		return a % b
	}
}
