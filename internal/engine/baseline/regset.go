package baseline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

// ErrNoFreeRegister is returned when every allocatable register of a class is pinned.
var ErrNoFreeRegister = errors.New("no free register")

var (
	allocatableGP = []asm.Register{
		riscv32.RegA0, riscv32.RegA1, riscv32.RegA2, riscv32.RegA3, riscv32.RegA4, riscv32.RegA5, riscv32.RegA6, riscv32.RegA7,
		riscv32.RegT0, riscv32.RegT1, riscv32.RegT2, riscv32.RegT3, riscv32.RegT4,
		riscv32.RegS1, riscv32.RegS2, riscv32.RegS3, riscv32.RegS4, riscv32.RegS5, riscv32.RegS6, riscv32.RegS7,
	}
	allocatableFP = []asm.Register{
		riscv32.RegFT0, riscv32.RegFT1, riscv32.RegFT2, riscv32.RegFT3, riscv32.RegFT4, riscv32.RegFT5, riscv32.RegFT6, riscv32.RegFT7,
		riscv32.RegFA0, riscv32.RegFA1, riscv32.RegFA2, riscv32.RegFA3, riscv32.RegFA4, riscv32.RegFA5, riscv32.RegFA6, riscv32.RegFA7,
		riscv32.RegFS1, riscv32.RegFS2, riscv32.RegFS3, riscv32.RegFS4, riscv32.RegFS5, riscv32.RegFS6, riscv32.RegFS7,
	}
	allocatableVec = vectorRange(1, 23)
)

func vectorRange(from, to int) (ret []asm.Register) {
	for i := from; i <= to; i++ {
		ret = append(ret, riscv32.REG_V0+asm.Register(i))
	}
	return
}

// LivenessSet is a set over the 96 machine registers (x0-x31, f0-f31, v0-v31).
type LivenessSet [2]uint64

// Pin returns the set of the machine registers used by the handles.
func Pin(regs ...Reg) LivenessSet {
	var ret LivenessSet
	for _, r := range regs {
		ret = ret.Add(r)
	}
	return ret
}

func index(m asm.Register) (word int, bit uint64) {
	i := int(m - riscv32.REG_X0)
	if i < 0 || i >= 96 {
		panic(fmt.Sprintf("BUG: invalid machine register %d", m))
	}
	return i / 64, 1 << uint(i%64)
}

func (s LivenessSet) hasMachine(m asm.Register) bool {
	w, b := index(m)
	return s[w]&b != 0
}

func (s LivenessSet) addMachine(m asm.Register) LivenessSet {
	w, b := index(m)
	s[w] |= b
	return s
}

// Has returns true if any machine register of the handle is in the set.
func (s LivenessSet) Has(r Reg) bool {
	for _, m := range r.physical() {
		if s.hasMachine(m) {
			return true
		}
	}
	return false
}

// Add returns the set with the machine registers of the handle added.
func (s LivenessSet) Add(r Reg) LivenessSet {
	for _, m := range r.physical() {
		s = s.addMachine(m)
	}
	return s
}

// Remove returns the set with the machine registers of the handle removed.
func (s LivenessSet) Remove(r Reg) LivenessSet {
	for _, m := range r.physical() {
		w, b := index(m)
		s[w] &^= b
	}
	return s
}

// Union returns the union of both sets.
func (s LivenessSet) Union(o LivenessSet) LivenessSet {
	return LivenessSet{s[0] | o[0], s[1] | o[1]}
}

// IsEmpty returns true if no register is in the set.
func (s LivenessSet) IsEmpty() bool {
	return s[0] == 0 && s[1] == 0
}

// Range calls f for every machine register in the set, in register order.
func (s LivenessSet) Range(f func(m asm.Register)) {
	for i := 0; i < 96; i++ {
		if s[i/64]&(1<<uint(i%64)) != 0 {
			f(riscv32.REG_X0 + asm.Register(i))
		}
	}
}

// GP returns the general purpose registers of the set, in register order.
func (s LivenessSet) GP() (ret []asm.Register) {
	s.Range(func(m asm.Register) {
		if riscv32.IsIntRegister(m) {
			ret = append(ret, m)
		}
	})
	return
}

// FP returns the floating point registers of the set, in register order.
func (s LivenessSet) FP() (ret []asm.Register) {
	s.Range(func(m asm.Register) {
		if riscv32.IsFloatRegister(m) {
			ret = append(ret, m)
		}
	})
	return
}

// Vec returns the vector registers of the set, in register order.
func (s LivenessSet) Vec() (ret []asm.Register) {
	s.Range(func(m asm.Register) {
		if riscv32.IsVectorRegister(m) {
			ret = append(ret, m)
		}
	})
	return
}

// String implements fmt.Stringer.
func (s LivenessSet) String() string {
	var names []string
	s.Range(func(m asm.Register) {
		names = append(names, riscv32.RegisterName(m))
	})
	return "{" + strings.Join(names, ", ") + "}"
}

// AllocateUnused returns the first allocatable register of the class which is not pinned.
// GP pairs take the first two free GP registers.
func AllocateUnused(class RegClass, pinned LivenessSet) (Reg, error) {
	var candidates []asm.Register
	switch class {
	case RegClassGP, RegClassGPPair:
		candidates = allocatableGP
	case RegClassFP:
		candidates = allocatableFP
	case RegClassVec:
		candidates = allocatableVec
	}

	var free []asm.Register
	want := 1
	if class == RegClassGPPair {
		want = 2
	}
	for _, m := range candidates {
		if !pinned.hasMachine(m) {
			free = append(free, m)
			if len(free) == want {
				break
			}
		}
	}
	if len(free) < want {
		return NoReg, fmt.Errorf("%s: %w", class, ErrNoFreeRegister)
	}

	switch class {
	case RegClassFP:
		return FP(free[0]), nil
	case RegClassVec:
		return Vec(free[0]), nil
	case RegClassGPPair:
		return Pair(free[0], free[1]), nil
	}
	return GP(free[0]), nil
}

// mustAllocate is AllocateUnused for lowering rules, where running out of registers is a bug.
func mustAllocate(class RegClass, pinned LivenessSet) Reg {
	r, err := AllocateUnused(class, pinned)
	if err != nil {
		panic("BUG: " + err.Error())
	}
	return r
}

// EnsureDistinct returns candidate when it does not alias mustNotAlias. Otherwise it
// allocates a temporary of the same class disjoint from both and from set, emits a
// move of candidate into it, pins it in set and returns it.
func (c *Compiler) EnsureDistinct(candidate, mustNotAlias Reg, set *LivenessSet) Reg {
	if !Alias(candidate, mustNotAlias) {
		return candidate
	}
	pinned := set.Union(Pin(candidate, mustNotAlias))
	tmp := mustAllocate(candidate.Class(), pinned)
	c.move(tmp, candidate)
	*set = set.Add(tmp)
	return tmp
}

// IsAllocatable returns true if the machine register may hold values. Reserved registers,
// such as sp, fp and the scratch registers, are never allocatable.
func IsAllocatable(m asm.Register) bool {
	for _, candidates := range [][]asm.Register{allocatableGP, allocatableFP, allocatableVec} {
		for _, r := range candidates {
			if r == m {
				return true
			}
		}
	}
	return false
}
