package riscv32

import (
	"fmt"

	"github.com/tetratelabs/baseline32/internal/asm"
)

// RISC-V specific registers.
//
// Integer registers come first, then the floating point registers, then the
// vector registers, so that the register number inside each file is
// `reg - REG_X0`, `reg - REG_F0` and `reg - REG_V0` respectively.
const (
	// Integer registers.

	REG_X0 asm.Register = asm.NilRegister + 1 + iota
	REG_X1
	REG_X2
	REG_X3
	REG_X4
	REG_X5
	REG_X6
	REG_X7
	REG_X8
	REG_X9
	REG_X10
	REG_X11
	REG_X12
	REG_X13
	REG_X14
	REG_X15
	REG_X16
	REG_X17
	REG_X18
	REG_X19
	REG_X20
	REG_X21
	REG_X22
	REG_X23
	REG_X24
	REG_X25
	REG_X26
	REG_X27
	REG_X28
	REG_X29
	REG_X30
	REG_X31

	// Floating point registers.

	REG_F0
	REG_F1
	REG_F2
	REG_F3
	REG_F4
	REG_F5
	REG_F6
	REG_F7
	REG_F8
	REG_F9
	REG_F10
	REG_F11
	REG_F12
	REG_F13
	REG_F14
	REG_F15
	REG_F16
	REG_F17
	REG_F18
	REG_F19
	REG_F20
	REG_F21
	REG_F22
	REG_F23
	REG_F24
	REG_F25
	REG_F26
	REG_F27
	REG_F28
	REG_F29
	REG_F30
	REG_F31

	// Vector registers.

	REG_V0
	REG_V1
	REG_V2
	REG_V3
	REG_V4
	REG_V5
	REG_V6
	REG_V7
	REG_V8
	REG_V9
	REG_V10
	REG_V11
	REG_V12
	REG_V13
	REG_V14
	REG_V15
	REG_V16
	REG_V17
	REG_V18
	REG_V19
	REG_V20
	REG_V21
	REG_V22
	REG_V23
	REG_V24
	REG_V25
	REG_V26
	REG_V27
	REG_V28
	REG_V29
	REG_V30
	REG_V31
)

// ABI names of the integer registers.
const (
	RegZERO = REG_X0
	RegRA   = REG_X1
	RegSP   = REG_X2
	RegGP   = REG_X3
	RegTP   = REG_X4
	RegT0   = REG_X5
	RegT1   = REG_X6
	RegT2   = REG_X7
	RegFP   = REG_X8
	RegS1   = REG_X9
	RegA0   = REG_X10
	RegA1   = REG_X11
	RegA2   = REG_X12
	RegA3   = REG_X13
	RegA4   = REG_X14
	RegA5   = REG_X15
	RegA6   = REG_X16
	RegA7   = REG_X17
	RegS2   = REG_X18
	RegS3   = REG_X19
	RegS4   = REG_X20
	RegS5   = REG_X21
	RegS6   = REG_X22
	RegS7   = REG_X23
	RegS8   = REG_X24
	RegS9   = REG_X25
	RegS10  = REG_X26
	RegS11  = REG_X27
	RegT3   = REG_X28
	RegT4   = REG_X29
	RegT5   = REG_X30
	RegT6   = REG_X31
)

// ABI names of the floating point registers.
const (
	RegFT0  = REG_F0
	RegFT1  = REG_F1
	RegFT2  = REG_F2
	RegFT3  = REG_F3
	RegFT4  = REG_F4
	RegFT5  = REG_F5
	RegFT6  = REG_F6
	RegFT7  = REG_F7
	RegFS0  = REG_F8
	RegFS1  = REG_F9
	RegFA0  = REG_F10
	RegFA1  = REG_F11
	RegFA2  = REG_F12
	RegFA3  = REG_F13
	RegFA4  = REG_F14
	RegFA5  = REG_F15
	RegFA6  = REG_F16
	RegFA7  = REG_F17
	RegFS2  = REG_F18
	RegFS3  = REG_F19
	RegFS4  = REG_F20
	RegFS5  = REG_F21
	RegFS6  = REG_F22
	RegFS7  = REG_F23
	RegFS8  = REG_F24
	RegFS9  = REG_F25
	RegFS10 = REG_F26
	RegFS11 = REG_F27
	RegFT8  = REG_F28
	RegFT9  = REG_F29
	RegFT10 = REG_F30
	RegFT11 = REG_F31
)

var intRegisterNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"fp", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

var floatRegisterNames = [32]string{
	"ft0", "ft1", "ft2", "ft3", "ft4", "ft5", "ft6", "ft7",
	"fs0", "fs1", "fa0", "fa1", "fa2", "fa3", "fa4", "fa5",
	"fa6", "fa7", "fs2", "fs3", "fs4", "fs5", "fs6", "fs7",
	"fs8", "fs9", "fs10", "fs11", "ft8", "ft9", "ft10", "ft11",
}

// IsIntRegister returns true if r is one of x0-x31.
func IsIntRegister(r asm.Register) bool {
	return REG_X0 <= r && r <= REG_X31
}

// IsFloatRegister returns true if r is one of f0-f31.
func IsFloatRegister(r asm.Register) bool {
	return REG_F0 <= r && r <= REG_F31
}

// IsVectorRegister returns true if r is one of v0-v31.
func IsVectorRegister(r asm.Register) bool {
	return REG_V0 <= r && r <= REG_V31
}

// RegisterNumber returns the 5-bit number of the register inside its register file.
func RegisterNumber(r asm.Register) uint32 {
	switch {
	case IsIntRegister(r):
		return uint32(r - REG_X0)
	case IsFloatRegister(r):
		return uint32(r - REG_F0)
	case IsVectorRegister(r):
		return uint32(r - REG_V0)
	}
	panic(fmt.Sprintf("BUG: invalid register %d", r))
}

// RegisterName returns the ABI name of the register.
func RegisterName(r asm.Register) string {
	switch {
	case r == asm.NilRegister:
		return "nil"
	case IsIntRegister(r):
		return intRegisterNames[r-REG_X0]
	case IsFloatRegister(r):
		return floatRegisterNames[r-REG_F0]
	case IsVectorRegister(r):
		return fmt.Sprintf("v%d", r-REG_V0)
	}
	return "unknown"
}

// RoundingMode is the static rounding mode encoded in the funct3 field of floating point instructions.
type RoundingMode byte

const (
	// RNE rounds to nearest, ties to even.
	RNE RoundingMode = 0b000
	// RTZ rounds towards zero.
	RTZ RoundingMode = 0b001
	// RDN rounds down (towards -inf).
	RDN RoundingMode = 0b010
	// RUP rounds up (towards +inf).
	RUP RoundingMode = 0b011
	// RMM rounds to nearest, ties to max magnitude.
	RMM RoundingMode = 0b100
	// DYN uses the dynamic rounding mode in fcsr.
	DYN RoundingMode = 0b111
)

// Fence predecessor and successor bits.
const (
	FenceW byte = 1 << iota
	FenceR
	FenceO
	FenceI

	FenceRW = FenceR | FenceW
)

// SEW is the selected element width of the vector unit.
type SEW byte

const (
	E8 SEW = iota
	E16
	E32
	E64
)

// Bits returns the width of the element in bits.
func (s SEW) Bits() int {
	return 8 << s
}

// LMUL is the vector register group multiplier.
type LMUL byte

const (
	M1  LMUL = 0b000
	M2  LMUL = 0b001
	M4  LMUL = 0b010
	M8  LMUL = 0b011
	MF8 LMUL = 0b101
	MF4 LMUL = 0b110
	MF2 LMUL = 0b111
)

// VLEN is the vector register width in bits assumed by the code generator.
const VLEN = 128

// VLMax returns the maximum number of elements for the given configuration.
func VLMax(sew SEW, lmul LMUL) int {
	n := VLEN / sew.Bits()
	switch lmul {
	case M2:
		return n * 2
	case M4:
		return n * 4
	case M8:
		return n * 8
	case MF2:
		return n / 2
	case MF4:
		return n / 4
	case MF8:
		return n / 8
	}
	return n
}

// VType is the vtype CSR value written by vsetivli: tail and mask agnostic.
func VType(sew SEW, lmul LMUL) int64 {
	const ta, ma = 1 << 6, 1 << 7
	return ma | ta | int64(sew)<<3 | int64(lmul)
}

// RISC-V instructions.
//
// Note: naming convention follows the mnemonics in the ISA manual with dots removed,
// e.g. "fcvt.w.s" is FCVTWS and "vadd.vv" is VADDVV.
const (
	NOP asm.Instruction = iota

	// RV32I.
	LUI
	AUIPC
	JAL
	JALR
	BEQ
	BNE
	BLT
	BGE
	BLTU
	BGEU
	LB
	LH
	LW
	LBU
	LHU
	SB
	SH
	SW
	ADDI
	SLTI
	SLTIU
	XORI
	ORI
	ANDI
	SLLI
	SRLI
	SRAI
	ADD
	SUB
	SLL
	SLT
	SLTU
	XOR
	SRL
	SRA
	OR
	AND
	FENCE
	ECALL
	EBREAK

	// RV32M.
	MUL
	MULH
	MULHSU
	MULHU
	DIV
	DIVU
	REM
	REMU

	// RV32A.
	LRW
	SCW

	// RV32F.
	FLW
	FSW
	FADDS
	FSUBS
	FMULS
	FDIVS
	FSQRTS
	FSGNJS
	FSGNJNS
	FSGNJXS
	FMINS
	FMAXS
	FCVTWS
	FCVTWUS
	FCVTSW
	FCVTSWU
	FMVXW
	FMVWX
	FEQS
	FLTS
	FLES
	FCLASSS

	// RV32D.
	FLD
	FSD
	FADDD
	FSUBD
	FMULD
	FDIVD
	FSQRTD
	FSGNJD
	FSGNJND
	FSGNJXD
	FMIND
	FMAXD
	FCVTSD
	FCVTDS
	FCVTWD
	FCVTWUD
	FCVTDW
	FCVTDWU
	FEQD
	FLTD
	FLED
	FCLASSD

	// V: configuration, loads and stores.
	VSETIVLI
	VLE8V
	VLE16V
	VLE32V
	VLE64V
	VSE8V
	VSE16V
	VSE32V
	VSE64V

	// V: integer arithmetic.
	VADDVV
	VADDVX
	VADDVI
	VSUBVV
	VSUBVX
	VRSUBVX
	VRSUBVI
	VMINUVV
	VMINVV
	VMAXUVV
	VMAXVV
	VMAXVX
	VANDVV
	VANDVX
	VANDVI
	VORVV
	VORVX
	VXORVV
	VXORVX
	VXORVI
	VRGATHERVV
	VSLIDEUPVI
	VSLIDEDOWNVI
	VSLIDEDOWNVX
	VMERGEVVM
	VMERGEVXM
	VMERGEVIM
	VMVVV
	VMVVX
	VMVVI
	VMSEQVV
	VMSEQVX
	VMSEQVI
	VMSNEVV
	VMSNEVX
	VMSLTUVV
	VMSLTVV
	VMSLTVX
	VMSLEUVV
	VMSLEVV
	VMSGTUVX
	VMSGTVX
	VSADDUVV
	VSADDVV
	VSSUBUVV
	VSSUBVV
	VSLLVV
	VSLLVX
	VSLLVI
	VSRLVV
	VSRLVX
	VSRLVI
	VSRAVV
	VSRAVX
	VSRAVI
	VNSRLWI
	VNCLIPUWI
	VNCLIPWI
	VREDMINUVS
	VREDMAXUVS
	VMULVV
	VMULHVV
	VWMULVV
	VWMULUVV
	VMVXS
	VMVSX
	VCPOPM
	VZEXTVF2
	VSEXTVF2
	VZEXTVF4
	VSEXTVF4
	VMANDMM
	VMORMM
	VMXORMM
	VMNANDMM

	// V: floating point.
	VFADDVV
	VFSUBVV
	VFMULVV
	VFDIVVV
	VFMINVV
	VFMAXVV
	VFSGNJVV
	VFSGNJNVV
	VFSGNJXVV
	VFSQRTV
	VFMVFS
	VFMVSF
	VFMVVF
	VFMERGEVFM
	VMFEQVV
	VMFNEVV
	VMFLTVV
	VMFLEVV
	VFCVTXFV
	VFCVTFXV
	VFCVTFXUV
	VFCVTRTZXFV
	VFCVTRTZXUFV
	VFWCVTFFV
	VFWCVTFXV
	VFWCVTFXUV
	VFNCVTFFW

	instructionEnd
)

// InstructionName returns the mnemonic of the instruction.
func InstructionName(i asm.Instruction) string {
	if i < instructionEnd {
		if e := encodings[i]; e.name != "" {
			return e.name
		}
	}
	return "UNKNOWN"
}
