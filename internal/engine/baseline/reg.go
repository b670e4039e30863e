package baseline

import (
	"errors"
	"fmt"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

// ErrNotAPair is returned when the halves of a register which is not a GP pair are requested.
var ErrNotAPair = errors.New("register is not a pair")

// Reg is a register handle: either a single register of a class, or a pair of
// general purpose registers holding the low and high words of an i64.
type Reg struct {
	class     RegClass
	low, high asm.Register
}

// NoReg is the invalid register handle.
var NoReg = Reg{}

// GP returns the handle of the general purpose register.
func GP(r asm.Register) Reg {
	if !riscv32.IsIntRegister(r) {
		panic(fmt.Sprintf("BUG: %s is not a general purpose register", riscv32.RegisterName(r)))
	}
	return Reg{class: RegClassGP, low: r}
}

// FP returns the handle of the floating point register.
func FP(r asm.Register) Reg {
	if !riscv32.IsFloatRegister(r) {
		panic(fmt.Sprintf("BUG: %s is not a floating point register", riscv32.RegisterName(r)))
	}
	return Reg{class: RegClassFP, low: r}
}

// Vec returns the handle of the vector register.
func Vec(r asm.Register) Reg {
	if !riscv32.IsVectorRegister(r) {
		panic(fmt.Sprintf("BUG: %s is not a vector register", riscv32.RegisterName(r)))
	}
	return Reg{class: RegClassVec, low: r}
}

// Pair returns the handle of the GP pair. The halves must be distinct.
func Pair(low, high asm.Register) Reg {
	if low == high {
		panic(fmt.Sprintf("BUG: pair halves must differ but both are %s", riscv32.RegisterName(low)))
	}
	if !riscv32.IsIntRegister(low) || !riscv32.IsIntRegister(high) {
		panic("BUG: pair halves must be general purpose registers")
	}
	return Reg{class: RegClassGPPair, low: low, high: high}
}

// IsValid returns false for NoReg.
func (r Reg) IsValid() bool {
	return r.low != asm.NilRegister
}

// Class returns the register class.
func (r Reg) Class() RegClass {
	return r.class
}

// IsPair returns true for GP pairs.
func (r Reg) IsPair() bool {
	return r.class == RegClassGPPair
}

// Low returns the single register, or the low half of a pair.
func (r Reg) Low() asm.Register {
	return r.low
}

// High returns the high half of a pair, or asm.NilRegister.
func (r Reg) High() asm.Register {
	return r.high
}

// PairOf returns the halves of a GP pair.
func (r Reg) PairOf() (low, high asm.Register, err error) {
	if !r.IsPair() {
		return asm.NilRegister, asm.NilRegister, fmt.Errorf("%s: %w", r, ErrNotAPair)
	}
	return r.low, r.high, nil
}

// physical returns the machine registers of the handle.
func (r Reg) physical() []asm.Register {
	switch {
	case !r.IsValid():
		return nil
	case r.IsPair():
		return []asm.Register{r.low, r.high}
	}
	return []asm.Register{r.low}
}

// Overlaps returns true if the handle uses the machine register.
func (r Reg) Overlaps(m asm.Register) bool {
	return m != asm.NilRegister && (r.low == m || r.high == m)
}

// Alias returns true if the handles share any machine register, including a pair half
// equal to a single register.
func Alias(a, b Reg) bool {
	for _, m := range a.physical() {
		if b.Overlaps(m) {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (r Reg) String() string {
	switch {
	case !r.IsValid():
		return "noreg"
	case r.IsPair():
		return riscv32.RegisterName(r.low) + ":" + riscv32.RegisterName(r.high)
	}
	return riscv32.RegisterName(r.low)
}
