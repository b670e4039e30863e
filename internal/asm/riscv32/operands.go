package riscv32

import (
	"fmt"

	"github.com/tetratelabs/baseline32/internal/asm"
)

// regFile is the register file an operand field refers to.
type regFile byte

const (
	fileNone regFile = iota
	fileX
	fileF
	fileV
)

func (f regFile) String() string {
	switch f {
	case fileX:
		return "integer"
	case fileF:
		return "floating point"
	case fileV:
		return "vector"
	}
	return "none"
}

func (f regFile) contains(r asm.Register) bool {
	switch f {
	case fileX:
		return IsIntRegister(r)
	case fileF:
		return IsFloatRegister(r)
	case fileV:
		return IsVectorRegister(r)
	}
	return r == asm.NilRegister
}

// operandFiles returns the register files of the rd, rs1 and rs2 fields of the instruction.
func operandFiles(inst asm.Instruction) (rd, rs1, rs2 regFile) {
	e := encodings[inst]
	switch e.format {
	case formatR:
		if e.opcode == opOpFP {
			rd, rs1, rs2 = fileF, fileF, fileF
			switch inst {
			case FEQS, FLTS, FLES, FEQD, FLTD, FLED:
				rd = fileX
			}
		} else {
			rd, rs1, rs2 = fileX, fileX, fileX
		}
	case formatRUnary:
		rd, rs1 = fileF, fileF
		switch inst {
		case FCVTWS, FCVTWUS, FCVTWD, FCVTWUD, FMVXW, FCLASSS, FCLASSD:
			rd = fileX
		case FCVTSW, FCVTSWU, FCVTDW, FCVTDWU, FMVWX:
			rs1 = fileX
		}
	case formatI, formatIShift:
		rd, rs1 = fileX, fileX
	case formatLoad:
		rd, rs1 = fileX, fileX
		if e.opcode == opLoadFP {
			rd = fileF
		}
	case formatStore:
		rs1, rs2 = fileX, fileX
		if e.opcode == opStoreFP {
			rs2 = fileF
		}
	case formatBranch:
		rs1, rs2 = fileX, fileX
	case formatU, formatJ, formatVSetIVLI:
		rd = fileX
	case formatAMO:
		rd, rs1, rs2 = fileX, fileX, fileX
		if inst == LRW {
			rs2 = fileNone
		}
	case formatVLoad, formatVStore:
		rd, rs1 = fileV, fileX
	case formatVV:
		rd, rs1, rs2 = fileV, fileV, fileV
	case formatVX:
		rd, rs1, rs2 = fileV, fileX, fileV
		if e.funct3 == opFVF {
			rs1 = fileF
		}
	case formatVI:
		rd, rs2 = fileV, fileV
	case formatVUnary:
		rd, rs2 = fileV, fileV
		switch inst {
		case VMVXS, VCPOPM:
			rd = fileX
		case VFMVFS:
			rd = fileF
		}
	case formatVScalar:
		rd = fileV
		switch e.funct3 {
		case opIVV:
			rs1 = fileV
		case opIVX, opMVX:
			rs1 = fileX
		case opFVF:
			rs1 = fileF
		}
	}
	return
}

// validateOperands checks that every register operand of the node belongs to the
// register file its field encodes.
func validateOperands(n *NodeImpl) error {
	rd, rs1, rs2 := operandFiles(n.Instruction)
	for _, o := range []struct {
		name string
		file regFile
		reg  asm.Register
	}{{"rd", rd, n.Rd}, {"rs1", rs1, n.Rs1}, {"rs2", rs2, n.Rs2}} {
		if o.file == fileNone {
			continue
		}
		if !o.file.contains(o.reg) {
			return fmt.Errorf("%s: %s must be in the %s register file but got %s", n, o.name, o.file, RegisterName(o.reg))
		}
	}
	return nil
}
