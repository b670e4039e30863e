package baseline

import (
	"fmt"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

// Scratch registers. They are never handed out by AllocateUnused, so lowering rules clobber
// no register but their own operands and these.
var (
	scratchGP  = [...]asm.Register{riscv32.RegT5, riscv32.RegT6, riscv32.RegS8, riscv32.RegS9, riscv32.RegS10, riscv32.RegS11}
	scratchFP  = [...]asm.Register{riscv32.RegFT11}
	scratchVec = [...]asm.Register{riscv32.REG_V24, riscv32.REG_V25, riscv32.REG_V26, riscv32.REG_V27}
	maskReg    = riscv32.REG_V0
)

// scope hands out the scratch registers for the lowering of a single operation.
// Each scratch register can be acquired once per scope.
type scope struct {
	acquired LivenessSet
}

func newScope() *scope {
	return &scope{}
}

func (s *scope) acquire(from []asm.Register) asm.Register {
	for _, r := range from {
		if !s.acquired.hasMachine(r) {
			s.acquired = s.acquired.addMachine(r)
			return r
		}
	}
	panic(fmt.Sprintf("BUG: scratch registers %s exhausted", riscv32.RegisterName(from[0])))
}

// acquireGP returns t5, t6, then s8 to s11.
func (s *scope) acquireGP() asm.Register {
	return s.acquire(scratchGP[:])
}

// acquireFP returns ft11.
func (s *scope) acquireFP() asm.Register {
	return s.acquire(scratchFP[:])
}

// acquireVec returns v24 to v27 in order.
func (s *scope) acquireVec() asm.Register {
	return s.acquire(scratchVec[:])
}

// acquireVecGroup returns an aligned group of two vector scratch registers, for LMUL=2 operands.
func (s *scope) acquireVecGroup() asm.Register {
	for _, r := range [...]asm.Register{riscv32.REG_V24, riscv32.REG_V26} {
		if !s.acquired.hasMachine(r) && !s.acquired.hasMachine(r+1) {
			s.acquired = s.acquired.addMachine(r).addMachine(r + 1)
			return r
		}
	}
	panic("BUG: no aligned vector scratch group left")
}

// mask returns v0, which masked vector instructions read implicitly.
func (s *scope) mask() asm.Register {
	return s.acquire([]asm.Register{maskReg})
}

// release returns the scratch register to the scope.
func (s *scope) release(r asm.Register) {
	w, b := index(r)
	if s.acquired[w]&b == 0 {
		panic(fmt.Sprintf("BUG: releasing %s which is not acquired", riscv32.RegisterName(r)))
	}
	s.acquired[w] &^= b
}
