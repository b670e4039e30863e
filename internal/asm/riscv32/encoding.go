package riscv32

import (
	"encoding/binary"
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj/riscv"

	"github.com/tetratelabs/baseline32/internal/asm"
)

// format is the operand layout of an instruction, which decides both
// the way it is printed and the way it is encoded.
type format byte

const (
	formatFixed format = iota
	formatR
	formatRUnary
	formatI
	formatIShift
	formatLoad
	formatStore
	formatBranch
	formatU
	formatJ
	formatFence
	formatAMO
	formatVSetIVLI
	formatVLoad
	formatVStore
	formatVV
	formatVX
	formatVI
	formatVUnary
	formatVScalar
)

// Major opcodes.
const (
	opLoad    uint32 = 0b0000011
	opLoadFP  uint32 = 0b0000111
	opMiscMem uint32 = 0b0001111
	opOpImm   uint32 = 0b0010011
	opAUIPC   uint32 = 0b0010111
	opStore   uint32 = 0b0100011
	opStoreFP uint32 = 0b0100111
	opAMO     uint32 = 0b0101111
	opOp      uint32 = 0b0110011
	opLUI     uint32 = 0b0110111
	opOpFP    uint32 = 0b1010011
	opOpV     uint32 = 0b1010111
	opBranch  uint32 = 0b1100011
	opJALR    uint32 = 0b1100111
	opJAL     uint32 = 0b1101111
	opSystem  uint32 = 0b1110011
)

// funct3 of OP-V which selects the operand category.
const (
	opIVV uint32 = iota
	opFVV
	opMVV
	opIVI
	opIVX
	opFVF
	opMVX
	opCFG
)

type encoding struct {
	name   string
	format format
	opcode uint32
	funct3 uint32
	// funct is funct7 for R-type, funct5 for AMO and funct6 for vector instructions.
	funct uint32
	// fixed is the fixed rs2 field of unary floating point instructions, the fixed vs1 field of
	// unary vector instructions, or the whole word of formatFixed.
	fixed uint32
	// roundingMode is true when funct3 carries the rounding mode of the node.
	roundingMode bool
	// unsignedImm is true when the 5-bit vector immediate is unsigned.
	unsignedImm bool
	// alwaysMasked is true for instructions which always read v0 (vmerge).
	alwaysMasked bool
}

func fp(name string, funct7, funct3 uint32) encoding {
	return encoding{name: name, format: formatR, opcode: opOpFP, funct: funct7, funct3: funct3}
}

func fpRM(name string, funct7 uint32) encoding {
	return encoding{name: name, format: formatR, opcode: opOpFP, funct: funct7, roundingMode: true}
}

func fpUnary(name string, funct7, rs2 uint32, roundingMode bool, funct3 uint32) encoding {
	return encoding{name: name, format: formatRUnary, opcode: opOpFP, funct: funct7, fixed: rs2, roundingMode: roundingMode, funct3: funct3}
}

func v(name string, f format, funct3, funct6 uint32) encoding {
	return encoding{name: name, format: f, opcode: opOpV, funct3: funct3, funct: funct6}
}

func vu(name string, f format, funct3, funct6 uint32) encoding {
	return encoding{name: name, format: f, opcode: opOpV, funct3: funct3, funct: funct6, unsignedImm: true}
}

func vUnary(name string, funct3, funct6, vs1 uint32) encoding {
	return encoding{name: name, format: formatVUnary, opcode: opOpV, funct3: funct3, funct: funct6, fixed: vs1}
}

func vMerge(name string, f format, funct3 uint32) encoding {
	return encoding{name: name, format: f, opcode: opOpV, funct3: funct3, funct: 0b010111, alwaysMasked: true}
}

var encodings = [instructionEnd]encoding{
	NOP:    {name: "nop", format: formatFixed, fixed: 0x00000013},
	ECALL:  {name: "ecall", format: formatFixed, fixed: 0x00000073},
	EBREAK: {name: "ebreak", format: formatFixed, fixed: 0x00100073},
	FENCE:  {name: "fence", format: formatFence, opcode: opMiscMem},

	LUI:   {name: "lui", format: formatU, opcode: opLUI},
	AUIPC: {name: "auipc", format: formatU, opcode: opAUIPC},
	JAL:   {name: "jal", format: formatJ, opcode: opJAL},
	JALR:  {name: "jalr", format: formatI, opcode: opJALR},

	BEQ:  {name: "beq", format: formatBranch, opcode: opBranch, funct3: 0b000},
	BNE:  {name: "bne", format: formatBranch, opcode: opBranch, funct3: 0b001},
	BLT:  {name: "blt", format: formatBranch, opcode: opBranch, funct3: 0b100},
	BGE:  {name: "bge", format: formatBranch, opcode: opBranch, funct3: 0b101},
	BLTU: {name: "bltu", format: formatBranch, opcode: opBranch, funct3: 0b110},
	BGEU: {name: "bgeu", format: formatBranch, opcode: opBranch, funct3: 0b111},

	LB:  {name: "lb", format: formatLoad, opcode: opLoad, funct3: 0b000},
	LH:  {name: "lh", format: formatLoad, opcode: opLoad, funct3: 0b001},
	LW:  {name: "lw", format: formatLoad, opcode: opLoad, funct3: 0b010},
	LBU: {name: "lbu", format: formatLoad, opcode: opLoad, funct3: 0b100},
	LHU: {name: "lhu", format: formatLoad, opcode: opLoad, funct3: 0b101},
	SB:  {name: "sb", format: formatStore, opcode: opStore, funct3: 0b000},
	SH:  {name: "sh", format: formatStore, opcode: opStore, funct3: 0b001},
	SW:  {name: "sw", format: formatStore, opcode: opStore, funct3: 0b010},

	ADDI:  {name: "addi", format: formatI, opcode: opOpImm, funct3: 0b000},
	SLTI:  {name: "slti", format: formatI, opcode: opOpImm, funct3: 0b010},
	SLTIU: {name: "sltiu", format: formatI, opcode: opOpImm, funct3: 0b011},
	XORI:  {name: "xori", format: formatI, opcode: opOpImm, funct3: 0b100},
	ORI:   {name: "ori", format: formatI, opcode: opOpImm, funct3: 0b110},
	ANDI:  {name: "andi", format: formatI, opcode: opOpImm, funct3: 0b111},
	SLLI:  {name: "slli", format: formatIShift, opcode: opOpImm, funct3: 0b001},
	SRLI:  {name: "srli", format: formatIShift, opcode: opOpImm, funct3: 0b101},
	SRAI:  {name: "srai", format: formatIShift, opcode: opOpImm, funct3: 0b101, funct: 0b0100000},

	ADD:  {name: "add", format: formatR, opcode: opOp, funct3: 0b000},
	SUB:  {name: "sub", format: formatR, opcode: opOp, funct3: 0b000, funct: 0b0100000},
	SLL:  {name: "sll", format: formatR, opcode: opOp, funct3: 0b001},
	SLT:  {name: "slt", format: formatR, opcode: opOp, funct3: 0b010},
	SLTU: {name: "sltu", format: formatR, opcode: opOp, funct3: 0b011},
	XOR:  {name: "xor", format: formatR, opcode: opOp, funct3: 0b100},
	SRL:  {name: "srl", format: formatR, opcode: opOp, funct3: 0b101},
	SRA:  {name: "sra", format: formatR, opcode: opOp, funct3: 0b101, funct: 0b0100000},
	OR:   {name: "or", format: formatR, opcode: opOp, funct3: 0b110},
	AND:  {name: "and", format: formatR, opcode: opOp, funct3: 0b111},

	MUL:    {name: "mul", format: formatR, opcode: opOp, funct3: 0b000, funct: 1},
	MULH:   {name: "mulh", format: formatR, opcode: opOp, funct3: 0b001, funct: 1},
	MULHSU: {name: "mulhsu", format: formatR, opcode: opOp, funct3: 0b010, funct: 1},
	MULHU:  {name: "mulhu", format: formatR, opcode: opOp, funct3: 0b011, funct: 1},
	DIV:    {name: "div", format: formatR, opcode: opOp, funct3: 0b100, funct: 1},
	DIVU:   {name: "divu", format: formatR, opcode: opOp, funct3: 0b101, funct: 1},
	REM:    {name: "rem", format: formatR, opcode: opOp, funct3: 0b110, funct: 1},
	REMU:   {name: "remu", format: formatR, opcode: opOp, funct3: 0b111, funct: 1},

	LRW: {name: "lr.w", format: formatAMO, opcode: opAMO, funct3: 0b010, funct: 0b00010},
	SCW: {name: "sc.w", format: formatAMO, opcode: opAMO, funct3: 0b010, funct: 0b00011},

	FLW:     {name: "flw", format: formatLoad, opcode: opLoadFP, funct3: 0b010},
	FSW:     {name: "fsw", format: formatStore, opcode: opStoreFP, funct3: 0b010},
	FADDS:   fpRM("fadd.s", 0b0000000),
	FSUBS:   fpRM("fsub.s", 0b0000100),
	FMULS:   fpRM("fmul.s", 0b0001000),
	FDIVS:   fpRM("fdiv.s", 0b0001100),
	FSQRTS:  fpUnary("fsqrt.s", 0b0101100, 0, true, 0),
	FSGNJS:  fp("fsgnj.s", 0b0010000, 0b000),
	FSGNJNS: fp("fsgnjn.s", 0b0010000, 0b001),
	FSGNJXS: fp("fsgnjx.s", 0b0010000, 0b010),
	FMINS:   fp("fmin.s", 0b0010100, 0b000),
	FMAXS:   fp("fmax.s", 0b0010100, 0b001),
	FCVTWS:  fpUnary("fcvt.w.s", 0b1100000, 0, true, 0),
	FCVTWUS: fpUnary("fcvt.wu.s", 0b1100000, 1, true, 0),
	FCVTSW:  fpUnary("fcvt.s.w", 0b1101000, 0, true, 0),
	FCVTSWU: fpUnary("fcvt.s.wu", 0b1101000, 1, true, 0),
	FMVXW:   fpUnary("fmv.x.w", 0b1110000, 0, false, 0b000),
	FMVWX:   fpUnary("fmv.w.x", 0b1111000, 0, false, 0b000),
	FEQS:    fp("feq.s", 0b1010000, 0b010),
	FLTS:    fp("flt.s", 0b1010000, 0b001),
	FLES:    fp("fle.s", 0b1010000, 0b000),
	FCLASSS: fpUnary("fclass.s", 0b1110000, 0, false, 0b001),

	FLD:     {name: "fld", format: formatLoad, opcode: opLoadFP, funct3: 0b011},
	FSD:     {name: "fsd", format: formatStore, opcode: opStoreFP, funct3: 0b011},
	FADDD:   fpRM("fadd.d", 0b0000001),
	FSUBD:   fpRM("fsub.d", 0b0000101),
	FMULD:   fpRM("fmul.d", 0b0001001),
	FDIVD:   fpRM("fdiv.d", 0b0001101),
	FSQRTD:  fpUnary("fsqrt.d", 0b0101101, 0, true, 0),
	FSGNJD:  fp("fsgnj.d", 0b0010001, 0b000),
	FSGNJND: fp("fsgnjn.d", 0b0010001, 0b001),
	FSGNJXD: fp("fsgnjx.d", 0b0010001, 0b010),
	FMIND:   fp("fmin.d", 0b0010101, 0b000),
	FMAXD:   fp("fmax.d", 0b0010101, 0b001),
	FCVTSD:  fpUnary("fcvt.s.d", 0b0100000, 1, true, 0),
	FCVTDS:  fpUnary("fcvt.d.s", 0b0100001, 0, true, 0),
	FCVTWD:  fpUnary("fcvt.w.d", 0b1100001, 0, true, 0),
	FCVTWUD: fpUnary("fcvt.wu.d", 0b1100001, 1, true, 0),
	FCVTDW:  fpUnary("fcvt.d.w", 0b1101001, 0, true, 0),
	FCVTDWU: fpUnary("fcvt.d.wu", 0b1101001, 1, true, 0),
	FEQD:    fp("feq.d", 0b1010001, 0b010),
	FLTD:    fp("flt.d", 0b1010001, 0b001),
	FLED:    fp("fle.d", 0b1010001, 0b000),
	FCLASSD: fpUnary("fclass.d", 0b1110001, 0, false, 0b001),

	VSETIVLI: {name: "vsetivli", format: formatVSetIVLI, opcode: opOpV, funct3: opCFG},
	VLE8V:    {name: "vle8.v", format: formatVLoad, opcode: opLoadFP, funct3: 0b000},
	VLE16V:   {name: "vle16.v", format: formatVLoad, opcode: opLoadFP, funct3: 0b101},
	VLE32V:   {name: "vle32.v", format: formatVLoad, opcode: opLoadFP, funct3: 0b110},
	VLE64V:   {name: "vle64.v", format: formatVLoad, opcode: opLoadFP, funct3: 0b111},
	VSE8V:    {name: "vse8.v", format: formatVStore, opcode: opStoreFP, funct3: 0b000},
	VSE16V:   {name: "vse16.v", format: formatVStore, opcode: opStoreFP, funct3: 0b101},
	VSE32V:   {name: "vse32.v", format: formatVStore, opcode: opStoreFP, funct3: 0b110},
	VSE64V:   {name: "vse64.v", format: formatVStore, opcode: opStoreFP, funct3: 0b111},

	VADDVV:       v("vadd.vv", formatVV, opIVV, 0b000000),
	VADDVX:       v("vadd.vx", formatVX, opIVX, 0b000000),
	VADDVI:       v("vadd.vi", formatVI, opIVI, 0b000000),
	VSUBVV:       v("vsub.vv", formatVV, opIVV, 0b000010),
	VSUBVX:       v("vsub.vx", formatVX, opIVX, 0b000010),
	VRSUBVX:      v("vrsub.vx", formatVX, opIVX, 0b000011),
	VRSUBVI:      v("vrsub.vi", formatVI, opIVI, 0b000011),
	VMINUVV:      v("vminu.vv", formatVV, opIVV, 0b000100),
	VMINVV:       v("vmin.vv", formatVV, opIVV, 0b000101),
	VMAXUVV:      v("vmaxu.vv", formatVV, opIVV, 0b000110),
	VMAXVV:       v("vmax.vv", formatVV, opIVV, 0b000111),
	VMAXVX:       v("vmax.vx", formatVX, opIVX, 0b000111),
	VANDVV:       v("vand.vv", formatVV, opIVV, 0b001001),
	VANDVX:       v("vand.vx", formatVX, opIVX, 0b001001),
	VANDVI:       v("vand.vi", formatVI, opIVI, 0b001001),
	VORVV:        v("vor.vv", formatVV, opIVV, 0b001010),
	VORVX:        v("vor.vx", formatVX, opIVX, 0b001010),
	VXORVV:       v("vxor.vv", formatVV, opIVV, 0b001011),
	VXORVX:       v("vxor.vx", formatVX, opIVX, 0b001011),
	VXORVI:       v("vxor.vi", formatVI, opIVI, 0b001011),
	VRGATHERVV:   v("vrgather.vv", formatVV, opIVV, 0b001100),
	VSLIDEUPVI:   vu("vslideup.vi", formatVI, opIVI, 0b001110),
	VSLIDEDOWNVI: vu("vslidedown.vi", formatVI, opIVI, 0b001111),
	VSLIDEDOWNVX: v("vslidedown.vx", formatVX, opIVX, 0b001111),
	VMERGEVVM:    vMerge("vmerge.vvm", formatVV, opIVV),
	VMERGEVXM:    vMerge("vmerge.vxm", formatVX, opIVX),
	VMERGEVIM:    vMerge("vmerge.vim", formatVI, opIVI),
	VMVVV:        v("vmv.v.v", formatVScalar, opIVV, 0b010111),
	VMVVX:        v("vmv.v.x", formatVScalar, opIVX, 0b010111),
	VMVVI:        v("vmv.v.i", formatVScalar, opIVI, 0b010111),
	VMSEQVV:      v("vmseq.vv", formatVV, opIVV, 0b011000),
	VMSEQVX:      v("vmseq.vx", formatVX, opIVX, 0b011000),
	VMSEQVI:      v("vmseq.vi", formatVI, opIVI, 0b011000),
	VMSNEVV:      v("vmsne.vv", formatVV, opIVV, 0b011001),
	VMSNEVX:      v("vmsne.vx", formatVX, opIVX, 0b011001),
	VMSLTUVV:     v("vmsltu.vv", formatVV, opIVV, 0b011010),
	VMSLTVV:      v("vmslt.vv", formatVV, opIVV, 0b011011),
	VMSLTVX:      v("vmslt.vx", formatVX, opIVX, 0b011011),
	VMSLEUVV:     v("vmsleu.vv", formatVV, opIVV, 0b011100),
	VMSLEVV:      v("vmsle.vv", formatVV, opIVV, 0b011101),
	VMSGTUVX:     v("vmsgtu.vx", formatVX, opIVX, 0b011110),
	VMSGTVX:      v("vmsgt.vx", formatVX, opIVX, 0b011111),
	VSADDUVV:     v("vsaddu.vv", formatVV, opIVV, 0b100000),
	VSADDVV:      v("vsadd.vv", formatVV, opIVV, 0b100001),
	VSSUBUVV:     v("vssubu.vv", formatVV, opIVV, 0b100010),
	VSSUBVV:      v("vssub.vv", formatVV, opIVV, 0b100011),
	VSLLVV:       v("vsll.vv", formatVV, opIVV, 0b100101),
	VSLLVX:       v("vsll.vx", formatVX, opIVX, 0b100101),
	VSLLVI:       vu("vsll.vi", formatVI, opIVI, 0b100101),
	VSRLVV:       v("vsrl.vv", formatVV, opIVV, 0b101000),
	VSRLVX:       v("vsrl.vx", formatVX, opIVX, 0b101000),
	VSRLVI:       vu("vsrl.vi", formatVI, opIVI, 0b101000),
	VSRAVV:       v("vsra.vv", formatVV, opIVV, 0b101001),
	VSRAVX:       v("vsra.vx", formatVX, opIVX, 0b101001),
	VSRAVI:       vu("vsra.vi", formatVI, opIVI, 0b101001),
	VNSRLWI:      vu("vnsrl.wi", formatVI, opIVI, 0b101100),
	VNCLIPUWI:    vu("vnclipu.wi", formatVI, opIVI, 0b101110),
	VNCLIPWI:     vu("vnclip.wi", formatVI, opIVI, 0b101111),
	VREDMINUVS:   v("vredminu.vs", formatVV, opMVV, 0b000100),
	VREDMAXUVS:   v("vredmaxu.vs", formatVV, opMVV, 0b000110),
	VMULVV:       v("vmul.vv", formatVV, opMVV, 0b100101),
	VMULHVV:      v("vmulh.vv", formatVV, opMVV, 0b100111),
	VWMULVV:      v("vwmul.vv", formatVV, opMVV, 0b111011),
	VWMULUVV:     v("vwmulu.vv", formatVV, opMVV, 0b111000),
	VMVXS:        vUnary("vmv.x.s", opMVV, 0b010000, 0b00000),
	VMVSX:        v("vmv.s.x", formatVScalar, opMVX, 0b010000),
	VCPOPM:       vUnary("vcpop.m", opMVV, 0b010000, 0b10000),
	VZEXTVF2:     vUnary("vzext.vf2", opMVV, 0b010010, 0b00110),
	VSEXTVF2:     vUnary("vsext.vf2", opMVV, 0b010010, 0b00111),
	VZEXTVF4:     vUnary("vzext.vf4", opMVV, 0b010010, 0b00100),
	VSEXTVF4:     vUnary("vsext.vf4", opMVV, 0b010010, 0b00101),
	VMANDMM:      v("vmand.mm", formatVV, opMVV, 0b011001),
	VMORMM:       v("vmor.mm", formatVV, opMVV, 0b011010),
	VMXORMM:      v("vmxor.mm", formatVV, opMVV, 0b011011),
	VMNANDMM:     v("vmnand.mm", formatVV, opMVV, 0b011101),

	VFADDVV:      v("vfadd.vv", formatVV, opFVV, 0b000000),
	VFSUBVV:      v("vfsub.vv", formatVV, opFVV, 0b000010),
	VFMINVV:      v("vfmin.vv", formatVV, opFVV, 0b000100),
	VFMAXVV:      v("vfmax.vv", formatVV, opFVV, 0b000110),
	VFSGNJVV:     v("vfsgnj.vv", formatVV, opFVV, 0b001000),
	VFSGNJNVV:    v("vfsgnjn.vv", formatVV, opFVV, 0b001001),
	VFSGNJXVV:    v("vfsgnjx.vv", formatVV, opFVV, 0b001010),
	VMFEQVV:      v("vmfeq.vv", formatVV, opFVV, 0b011000),
	VMFLEVV:      v("vmfle.vv", formatVV, opFVV, 0b011001),
	VMFLTVV:      v("vmflt.vv", formatVV, opFVV, 0b011011),
	VMFNEVV:      v("vmfne.vv", formatVV, opFVV, 0b011100),
	VFDIVVV:      v("vfdiv.vv", formatVV, opFVV, 0b100000),
	VFMULVV:      v("vfmul.vv", formatVV, opFVV, 0b100100),
	VFSQRTV:      vUnary("vfsqrt.v", opFVV, 0b010011, 0b00000),
	VFMVFS:       vUnary("vfmv.f.s", opFVV, 0b010000, 0b00000),
	VFMVSF:       v("vfmv.s.f", formatVScalar, opFVF, 0b010000),
	VFMVVF:       v("vfmv.v.f", formatVScalar, opFVF, 0b010111),
	VFMERGEVFM:   vMerge("vfmerge.vfm", formatVX, opFVF),
	VFCVTXFV:     vUnary("vfcvt.x.f.v", opFVV, 0b010010, 0b00001),
	VFCVTFXUV:    vUnary("vfcvt.f.xu.v", opFVV, 0b010010, 0b00010),
	VFCVTFXV:     vUnary("vfcvt.f.x.v", opFVV, 0b010010, 0b00011),
	VFCVTRTZXUFV: vUnary("vfcvt.rtz.xu.f.v", opFVV, 0b010010, 0b00110),
	VFCVTRTZXFV:  vUnary("vfcvt.rtz.x.f.v", opFVV, 0b010010, 0b00111),
	VFWCVTFFV:    vUnary("vfwcvt.f.f.v", opFVV, 0b010010, 0b01100),
	VFWCVTFXV:    vUnary("vfwcvt.f.x.v", opFVV, 0b010010, 0b01011),
	VFWCVTFXUV:   vUnary("vfwcvt.f.xu.v", opFVV, 0b010010, 0b01010),
	VFNCVTFFW:    vUnary("vfncvt.f.f.w", opFVV, 0b010010, 0b10100),
}

func (a *AssemblerImpl) encodingOf(n *NodeImpl) (encoding, error) {
	if n.Instruction >= instructionEnd || encodings[n.Instruction].name == "" {
		return encoding{}, fmt.Errorf("unsupported instruction %d", n.Instruction)
	}
	return encodings[n.Instruction], nil
}

// encodeNode returns the 32-bit machine word of the node.
func (a *AssemblerImpl) encodeNode(n *NodeImpl) (uint32, error) {
	e, err := a.encodingOf(n)
	if err != nil {
		return 0, err
	}

	switch e.format {
	case formatFixed:
		return e.fixed, nil
	case formatR:
		funct3 := e.funct3
		if e.roundingMode {
			funct3 = uint32(n.RoundingMode)
		}
		return e.funct<<25 | reg(n.Rs2)<<20 | reg(n.Rs1)<<15 | funct3<<12 | reg(n.Rd)<<7 | e.opcode, nil
	case formatRUnary:
		funct3 := e.funct3
		if e.roundingMode {
			funct3 = uint32(n.RoundingMode)
		}
		return e.funct<<25 | e.fixed<<20 | reg(n.Rs1)<<15 | funct3<<12 | reg(n.Rd)<<7 | e.opcode, nil
	case formatI, formatLoad:
		imm, err := a.immediateOf(n)
		if err != nil {
			return 0, err
		}
		encoded, err := riscv.EncodeIImmediate(imm)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", n, err)
		}
		return uint32(encoded) | reg(n.Rs1)<<15 | e.funct3<<12 | reg(n.Rd)<<7 | e.opcode, nil
	case formatIShift:
		if n.Imm < 0 || n.Imm > 31 {
			return 0, fmt.Errorf("%s: shift amount %d out of range", n, n.Imm)
		}
		return e.funct<<25 | uint32(n.Imm)<<20 | reg(n.Rs1)<<15 | e.funct3<<12 | reg(n.Rd)<<7 | e.opcode, nil
	case formatStore:
		encoded, err := riscv.EncodeSImmediate(n.Imm)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", n, err)
		}
		return uint32(encoded) | reg(n.Rs2)<<20 | reg(n.Rs1)<<15 | e.funct3<<12 | e.opcode, nil
	case formatBranch:
		imm, err := a.branchOffset(n, 13)
		if err != nil {
			return 0, err
		}
		u := uint32(imm)
		return (u>>12&1)<<31 | (u>>5&0x3f)<<25 | reg(n.Rs2)<<20 | reg(n.Rs1)<<15 | e.funct3<<12 |
			(u>>1&0xf)<<8 | (u>>11&1)<<7 | e.opcode, nil
	case formatU:
		imm, err := a.immediateOf(n)
		if err != nil {
			return 0, err
		}
		encoded, err := riscv.EncodeUImmediate(imm)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", n, err)
		}
		return uint32(encoded) | reg(n.Rd)<<7 | e.opcode, nil
	case formatJ:
		imm, err := a.branchOffset(n, 21)
		if err != nil {
			return 0, err
		}
		u := uint32(imm)
		return (u>>20&1)<<31 | (u>>1&0x3ff)<<21 | (u>>11&1)<<20 | (u>>12&0xff)<<12 | reg(n.Rd)<<7 | e.opcode, nil
	case formatFence:
		return uint32(n.Imm&0xff)<<20 | e.opcode, nil
	case formatAMO:
		var aq, rl uint32
		if n.Acquire {
			aq = 1
		}
		if n.Release {
			rl = 1
		}
		return e.funct<<27 | aq<<26 | rl<<25 | reg(n.Rs2)<<20 | reg(n.Rs1)<<15 | e.funct3<<12 | reg(n.Rd)<<7 | e.opcode, nil
	case formatVSetIVLI:
		if n.Imm < 0 || n.Imm > 31 {
			return 0, fmt.Errorf("%s: avl %d out of range", n, n.Imm)
		}
		return 0b11<<30 | uint32(n.VType&0x3ff)<<20 | uint32(n.Imm)<<15 | e.funct3<<12 | reg(n.Rd)<<7 | e.opcode, nil
	case formatVLoad, formatVStore:
		return vm(n, e)<<25 | reg(n.Rs1)<<15 | e.funct3<<12 | reg(n.Rd)<<7 | e.opcode, nil
	case formatVV, formatVX:
		return e.funct<<26 | vm(n, e)<<25 | reg(n.Rs2)<<20 | reg(n.Rs1)<<15 | e.funct3<<12 | reg(n.Rd)<<7 | e.opcode, nil
	case formatVI:
		if e.unsignedImm {
			if n.Imm < 0 || n.Imm > 31 {
				return 0, fmt.Errorf("%s: immediate %d out of range", n, n.Imm)
			}
		} else if n.Imm < -16 || n.Imm > 15 {
			return 0, fmt.Errorf("%s: immediate %d out of range", n, n.Imm)
		}
		return e.funct<<26 | vm(n, e)<<25 | reg(n.Rs2)<<20 | uint32(n.Imm&0x1f)<<15 | e.funct3<<12 | reg(n.Rd)<<7 | e.opcode, nil
	case formatVUnary:
		return e.funct<<26 | vm(n, e)<<25 | reg(n.Rs2)<<20 | e.fixed<<15 | e.funct3<<12 | reg(n.Rd)<<7 | e.opcode, nil
	case formatVScalar:
		var src uint32
		if e.funct3 == opIVI {
			if n.Imm < -16 || n.Imm > 15 {
				return 0, fmt.Errorf("%s: immediate %d out of range", n, n.Imm)
			}
			src = uint32(n.Imm & 0x1f)
		} else {
			src = reg(n.Rs1)
		}
		return e.funct<<26 | 1<<25 | src<<15 | e.funct3<<12 | reg(n.Rd)<<7 | e.opcode, nil
	}
	return 0, fmt.Errorf("BUG: unknown format %d", e.format)
}

// immediateOf returns the immediate of the node, resolving the PC-relative
// immediates of auipc/jalr pairs which target another node.
func (a *AssemblerImpl) immediateOf(n *NodeImpl) (int64, error) {
	if n.Instruction == AUIPC && n.JumpTarget != nil {
		_, hi, err := riscv.Split32BitImmediate(int64(n.JumpTarget.OffsetInBinaryField) - int64(n.OffsetInBinaryField))
		return hi, err
	}
	if hi := n.PCRelativeHi; hi != nil {
		if hi.JumpTarget == nil {
			return n.Imm, nil
		}
		lo, _, err := riscv.Split32BitImmediate(int64(hi.JumpTarget.OffsetInBinaryField) - int64(hi.OffsetInBinaryField))
		return lo, err
	}
	return n.Imm, nil
}

// branchOffset returns the PC-relative offset of the jump target, checking that it is encodable
// in the signed immediate of the given width. Nodes without a target use their immediate.
func (a *AssemblerImpl) branchOffset(n *NodeImpl, bits uint) (int64, error) {
	offset := n.Imm
	if n.JumpTarget != nil {
		offset = int64(n.JumpTarget.OffsetInBinaryField) - int64(n.OffsetInBinaryField)
	}
	if offset&1 != 0 {
		return 0, fmt.Errorf("%s: misaligned branch offset %d", n, offset)
	}
	limit := int64(1) << (bits - 1)
	if offset < -limit || offset >= limit {
		return 0, fmt.Errorf("%s: branch offset %d exceeds %d bits: %w", n, offset, bits, ErrBranchOutOfRange)
	}
	return offset, nil
}

func vm(n *NodeImpl, e encoding) uint32 {
	if n.Masked || e.alwaysMasked {
		return 0
	}
	return 1
}

func reg(r asm.Register) uint32 {
	if r == asm.NilRegister {
		return 0
	}
	return RegisterNumber(r)
}

// PatchPCRelative rewrites the immediates of the auipc pair at the given offset of the code so that
// it targets offset+delta. The second instruction of the pair must be an I-type (jalr or addi).
func PatchPCRelative(code []byte, offset int, delta int64) error {
	if offset < 0 || offset+8 > len(code) {
		return fmt.Errorf("pc-relative pair at %#x is out of the code", offset)
	}
	hiWord := binary.LittleEndian.Uint32(code[offset:])
	loWord := binary.LittleEndian.Uint32(code[offset+4:])
	if hiWord&0x7f != opAUIPC {
		return fmt.Errorf("instruction at %#x is not auipc", offset)
	}
	lo, hi, err := riscv.Split32BitImmediate(delta)
	if err != nil {
		return err
	}
	u, err := riscv.EncodeUImmediate(hi)
	if err != nil {
		return err
	}
	i, err := riscv.EncodeIImmediate(lo)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(code[offset:], hiWord&0xfff|uint32(u))
	binary.LittleEndian.PutUint32(code[offset+4:], loWord&0xfffff|uint32(i))
	return nil
}
