package optext

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
	"github.com/tetratelabs/baseline32/internal/engine/baseline"
)

// field is a whitespace separated token of a line.
type field struct {
	text string
	// col is the 1-based column of the first byte.
	col int
}

// fields splits the line into tokens, dropping the comment which starts at ";;" or at a '#'
// beginning a token. A '#' inside a token, as in "i32/#-5", is part of it.
func fields(line string) (ret []field) {
	if i := strings.Index(line, ";;"); i >= 0 {
		line = line[:i]
	}
	start := -1
	for i := 0; i <= len(line); i++ {
		space := i == len(line) || line[i] == ' ' || line[i] == '\t' || line[i] == ',' || line[i] == '\r'
		if !space && start < 0 && line[i] == '#' {
			break
		}
		switch {
		case space && start >= 0:
			ret = append(ret, field{text: line[start:i], col: start + 1})
			start = -1
		case !space && start < 0:
			start = i
		}
	}
	return
}

// registers maps the ABI names, as well as the xN, fN and s0 aliases, to machine registers.
var registers = func() map[string]asm.Register {
	m := map[string]asm.Register{}
	for r := riscv32.REG_X0; r <= riscv32.REG_V31; r++ {
		m[riscv32.RegisterName(r)] = r
	}
	for i := asm.Register(0); i < 32; i++ {
		m[fmt.Sprintf("x%d", i)] = riscv32.REG_X0 + i
		m[fmt.Sprintf("f%d", i)] = riscv32.REG_F0 + i
	}
	m["s0"] = riscv32.RegFP
	return m
}()

// machine parses an allocatable register.
func machine(f field) (asm.Register, error) {
	r, ok := registers[f.text]
	if !ok {
		return asm.NilRegister, errorAt(f, "unknown register: %s", f.text)
	}
	if !baseline.IsAllocatable(r) {
		return asm.NilRegister, errorAt(f, "reserved register: %s", f.text)
	}
	return r, nil
}

// gpMachine parses an allocatable general purpose register.
func gpMachine(f field) (asm.Register, error) {
	r, err := machine(f)
	if err != nil {
		return r, err
	}
	if !riscv32.IsIntRegister(r) {
		return asm.NilRegister, errorAt(f, "expected a general purpose register, but parsed %s", f.text)
	}
	return r, nil
}

// optionalGPMachine parses a general purpose register, or asm.NilRegister for "-".
func optionalGPMachine(f field) (asm.Register, error) {
	if f.text == "-" {
		return asm.NilRegister, nil
	}
	return gpMachine(f)
}

// reg parses the handle of a register of the class. Pairs are written "low:high".
func reg(f field, class baseline.RegClass) (baseline.Reg, error) {
	if class == baseline.RegClassGPPair {
		low, high, ok := strings.Cut(f.text, ":")
		if !ok {
			return baseline.NoReg, errorAt(f, "expected a register pair, but parsed %s", f.text)
		}
		l, err := gpMachine(field{text: low, col: f.col})
		if err != nil {
			return baseline.NoReg, err
		}
		h, err := gpMachine(field{text: high, col: f.col + len(low) + 1})
		if err != nil {
			return baseline.NoReg, err
		}
		if l == h {
			return baseline.NoReg, errorAt(f, "pair halves must differ: %s", f.text)
		}
		return baseline.Pair(l, h), nil
	}

	r, err := machine(f)
	if err != nil {
		return baseline.NoReg, err
	}
	switch {
	case class == baseline.RegClassGP && riscv32.IsIntRegister(r):
		return baseline.GP(r), nil
	case class == baseline.RegClassFP && riscv32.IsFloatRegister(r):
		return baseline.FP(r), nil
	case class == baseline.RegClassVec && riscv32.IsVectorRegister(r):
		return baseline.Vec(r), nil
	}
	return baseline.NoReg, errorAt(f, "expected a %s register, but parsed %s", class, f.text)
}

// valueReg parses the register holding a value of the kind.
func valueReg(f field, k baseline.ValueKind) (baseline.Reg, error) {
	class, _ := baseline.Classify(k)
	return reg(f, class)
}

func int32Operand(f field) (int32, error) {
	v, err := strconv.ParseInt(f.text, 0, 32)
	if err != nil {
		return 0, errorAt(f, "invalid i32: %s", f.text)
	}
	return int32(v), nil
}

func uint32Operand(f field) (uint32, error) {
	v, err := strconv.ParseUint(f.text, 0, 32)
	if err != nil {
		return 0, errorAt(f, "invalid u32: %s", f.text)
	}
	return uint32(v), nil
}

// int64Operand accepts signed values as well as unsigned ones up to math.MaxUint64.
func int64Operand(f field) (int64, error) {
	if v, err := strconv.ParseInt(f.text, 0, 64); err == nil {
		return v, nil
	}
	v, err := strconv.ParseUint(f.text, 0, 64)
	if err != nil {
		return 0, errorAt(f, "invalid i64: %s", f.text)
	}
	return int64(v), nil
}

func uint8Operand(f field) (uint8, error) {
	v, err := strconv.ParseUint(f.text, 0, 8)
	if err != nil {
		return 0, errorAt(f, "invalid u8: %s", f.text)
	}
	return uint8(v), nil
}

// constant parses the bits of a constant of the kind. Floats are written as decimal or hexadecimal
// floating point literals, "nan" or "inf".
func constant(f field, k baseline.ValueKind) (int64, error) {
	switch k {
	case baseline.KindF32:
		v, err := strconv.ParseFloat(f.text, 32)
		if err != nil {
			return 0, errorAt(f, "invalid f32: %s", f.text)
		}
		return int64(math.Float32bits(float32(v))), nil
	case baseline.KindF64:
		v, err := strconv.ParseFloat(f.text, 64)
		if err != nil {
			return 0, errorAt(f, "invalid f64: %s", f.text)
		}
		return int64(math.Float64bits(v)), nil
	case baseline.KindI64:
		return int64Operand(f)
	}
	v, err := int64Operand(f)
	if err != nil || v < math.MinInt32 || v > math.MaxUint32 {
		return 0, errorAt(f, "invalid %s: %s", k, f.text)
	}
	return int64(int32(v)), nil
}
