package riscv32

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"sort"

	"github.com/tetratelabs/baseline32/internal/asm"
)

type decodeEntry struct {
	mask, match uint32
	instruction asm.Instruction
}

// decodeTable is sorted so that more specific patterns are tried first.
var decodeTable = buildDecodeTable()

func buildDecodeTable() []decodeEntry {
	const (
		opcodeMask = 0x7f
		funct3Mask = 0x7 << 12
		funct7Mask = 0x7f << 25
		rs2Mask    = 0x1f << 20
		rs1Mask    = 0x1f << 15
		funct6Mask = 0x3f << 26
		vmMask     = 1 << 25
	)
	var table []decodeEntry
	for i := asm.Instruction(0); i < instructionEnd; i++ {
		e := encodings[i]
		if e.name == "" {
			continue
		}
		mask, match := uint32(opcodeMask), e.opcode
		switch e.format {
		case formatFixed:
			mask, match = 0xffffffff, e.fixed
		case formatR, formatRUnary:
			mask |= funct7Mask
			match |= e.funct << 25
			if !e.roundingMode {
				mask |= funct3Mask
				match |= e.funct3 << 12
			}
			if e.format == formatRUnary {
				mask |= rs2Mask
				match |= e.fixed << 20
			}
		case formatI, formatLoad, formatStore, formatBranch, formatFence:
			mask |= funct3Mask
			match |= e.funct3 << 12
		case formatIShift:
			mask |= funct3Mask | funct7Mask
			match |= e.funct3<<12 | e.funct<<25
		case formatU, formatJ:
		case formatAMO:
			mask |= funct3Mask | 0x1f<<27
			match |= e.funct3<<12 | e.funct<<27
			if i == LRW {
				mask |= rs2Mask
			}
		case formatVSetIVLI:
			mask |= funct3Mask | 0b11<<30
			match |= e.funct3<<12 | 0b11<<30
		case formatVLoad, formatVStore:
			mask |= funct3Mask | funct6Mask | rs2Mask
			match |= e.funct3 << 12
		case formatVV, formatVX, formatVI, formatVUnary, formatVScalar:
			mask |= funct3Mask | funct6Mask
			match |= e.funct3<<12 | e.funct<<26
			if e.alwaysMasked {
				mask |= vmMask
			}
			if e.format == formatVUnary {
				mask |= rs1Mask
				match |= e.fixed << 15
			}
			if e.format == formatVScalar {
				mask |= vmMask | rs2Mask
				match |= vmMask
			}
		}
		table = append(table, decodeEntry{mask: mask, match: match, instruction: i})
	}
	sort.SliceStable(table, func(i, j int) bool {
		return bits.OnesCount32(table[i].mask) > bits.OnesCount32(table[j].mask)
	})
	return table
}

// Decode returns the node of the given machine word. Branch and jump nodes carry their
// PC-relative offset in Imm, and have no JumpTarget.
func Decode(word uint32) (*NodeImpl, error) {
	for _, d := range decodeTable {
		if word&d.mask == d.match {
			return decodeOperands(word, d.instruction), nil
		}
	}
	return nil, fmt.Errorf("cannot decode 0x%08x", word)
}

func decodeOperands(w uint32, inst asm.Instruction) *NodeImpl {
	e := encodings[inst]
	n := &NodeImpl{Instruction: inst}
	rdFile, rs1File, rs2File := operandFiles(inst)
	n.Rd = registerOf(rdFile, w>>7)
	n.Rs1 = registerOf(rs1File, w>>15)
	n.Rs2 = registerOf(rs2File, w>>20)
	if e.roundingMode {
		n.RoundingMode = RoundingMode(w >> 12 & 0b111)
	}
	switch e.format {
	case formatI, formatLoad:
		n.Imm = signExtend(w>>20, 12)
	case formatIShift:
		n.Imm = int64(w >> 20 & 0x1f)
	case formatStore:
		n.Imm = signExtend(w>>25<<5|w>>7&0x1f, 12)
	case formatBranch:
		n.Imm = signExtend(w>>31<<12|(w>>7&1)<<11|(w>>25&0x3f)<<5|(w>>8&0xf)<<1, 13)
	case formatU:
		n.Imm = signExtend(w>>12, 20)
	case formatJ:
		n.Imm = signExtend(w>>31<<20|(w>>12&0xff)<<12|(w>>20&1)<<11|(w>>21&0x3ff)<<1, 21)
	case formatFence:
		n.Imm = int64(w >> 20 & 0xff)
	case formatAMO:
		n.Acquire = w>>26&1 == 1
		n.Release = w>>25&1 == 1
	case formatVSetIVLI:
		n.Imm = int64(w >> 15 & 0x1f)
		n.VType = int64(w >> 20 & 0x3ff)
	case formatVLoad, formatVStore, formatVV, formatVX, formatVUnary:
		n.Masked = w>>25&1 == 0 && !e.alwaysMasked
	case formatVI:
		n.Masked = w>>25&1 == 0 && !e.alwaysMasked
		if e.unsignedImm {
			n.Imm = int64(w >> 15 & 0x1f)
		} else {
			n.Imm = signExtend(w>>15, 5)
		}
	case formatVScalar:
		if e.funct3 == opIVI {
			n.Imm = signExtend(w>>15, 5)
		}
	}
	return n
}

func registerOf(f regFile, field uint32) asm.Register {
	num := asm.Register(field & 0x1f)
	switch f {
	case fileX:
		return REG_X0 + num
	case fileF:
		return REG_F0 + num
	case fileV:
		return REG_V0 + num
	}
	return asm.NilRegister
}

func signExtend(v uint32, width uint) int64 {
	shift := 32 - width
	return int64(int32(v<<shift) >> shift)
}

// Disassemble returns one line per instruction of the given code.
func Disassemble(code []byte) ([]string, error) {
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("code size %d is not a multiple of 4", len(code))
	}
	lines := make([]string, 0, len(code)/4)
	for i := 0; i < len(code); i += 4 {
		n, err := Decode(binary.LittleEndian.Uint32(code[i:]))
		if err != nil {
			return nil, fmt.Errorf("at offset %#x: %w", i, err)
		}
		lines = append(lines, n.String())
	}
	return lines, nil
}
