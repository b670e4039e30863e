package baseline

import (
	"fmt"
	"sort"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

// StackSlots collects the outgoing stack parameters of a call, to be pushed by
// OperationConstructStackSlots.
type StackSlots struct {
	slots []stackSlot
}

type stackSlot struct {
	src       ValueLocation
	srcOffset int32
	half      RegPairHalf
	dstSlot   int
}

// NewStackSlots returns an empty sequence.
func NewStackSlots() *StackSlots {
	return &StackSlots{}
}

// Add records that the value at src goes to the parameter slot dstSlot. srcOffset is the spill
// offset of stack sources. half selects the word of i64 sources, which take one slot per word.
func (ss *StackSlots) Add(src ValueLocation, srcOffset int32, half RegPairHalf, dstSlot int) {
	ss.slots = append(ss.slots, stackSlot{src: src, srcOffset: srcOffset, half: half, dstSlot: dstSlot})
}

// Len returns the number of recorded slots.
func (ss *StackSlots) Len() int {
	return len(ss.slots)
}

// pushedBytes returns the bytes pushed for the slot.
func (sl *stackSlot) pushedBytes() int64 {
	switch sl.src.Kind {
	case KindS128:
		return 16
	case KindF64:
		return 8
	}
	return 4
}

// constructStackSlots pushes the slots from the highest destination slot down. Before each push,
// sp goes down over the gap between the previous slot and this one, so that slots not
// written by this sequence are skipped.
func (c *Compiler) constructStackSlots(s *scope, ss *StackSlots, paramSlots int) {
	slots := append([]stackSlot(nil), ss.slots...)
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].dstSlot > slots[j].dstSlot })

	last := paramSlots
	for i := range slots {
		sl := &slots[i]
		decrement := int64(last-sl.dstSlot) * 4
		last = sl.dstSlot
		pushed := sl.pushedBytes()
		if decrement < pushed {
			panic(fmt.Sprintf("BUG: stack slot %d overlaps the previous one", sl.dstSlot))
		}
		c.adjustSP(s, -(decrement - pushed))

		switch sl.src.Location {
		case LocationStack:
			c.pushStackSource(s, sl)
		case LocationRegister:
			c.pushRegisterSource(s, sl)
		case LocationConst:
			v := sl.src.Const
			if sl.src.Kind == KindI64 && sl.half == HighWord {
				v >>= 31
			}
			t := s.acquireGP()
			c.li(t, v)
			c.push(t)
			s.release(t)
		}
	}
}

// pushStackSource copies the words of a spill slot, the highest address first.
func (c *Compiler) pushStackSource(s *scope, sl *stackSlot) {
	base := -int64(sl.srcOffset)
	var words []int64
	switch sl.src.Kind {
	case KindS128:
		words = []int64{base + 12, base + 8, base + 4, base}
	case KindF64:
		words = []int64{base + 4, base}
	default:
		words = []int64{base + c.halfOffset(sl.half)}
		if sl.src.Kind != KindI64 {
			words[0] = base
		}
	}
	t := s.acquireGP()
	for _, w := range words {
		c.load(s, riscv32.LW, t, riscv32.RegFP, w)
		c.push(t)
	}
	s.release(t)
}

func (c *Compiler) pushRegisterSource(s *scope, sl *stackSlot) {
	r := sl.src.Reg
	switch sl.src.Kind {
	case KindI64:
		half := r.Low()
		if sl.half == HighWord {
			half = r.High()
		}
		c.push(half)
	case KindF32:
		c.pushWith(riscv32.FSW, 4, r.Low())
	case KindF64:
		c.pushWith(riscv32.FSD, 8, r.Low())
	case KindS128:
		c.addi(riscv32.RegSP, riscv32.RegSP, -16)
		c.storeVector(s, r.Low(), riscv32.RegSP, 0)
	default:
		c.push(r.Low())
	}
}

// pushWith pushes the register with a store of the given size.
func (c *Compiler) pushWith(store asm.Instruction, size int64, r asm.Register) {
	c.addi(riscv32.RegSP, riscv32.RegSP, -size)
	c.assembler.CompileRegisterToMemory(store, r, riscv32.RegSP, 0)
}

func (c *Compiler) compileConstructStackSlots(s *scope, o *OperationConstructStackSlots) error {
	c.constructStackSlots(s, o.Slots, o.ParamSlots)
	return nil
}
