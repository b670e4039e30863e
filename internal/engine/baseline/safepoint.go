package baseline

import (
	"sort"

	"github.com/tetratelabs/baseline32/internal/asm"
)

// Safepoint is a PC where the garbage collector may inspect the frame. TaggedSlots are the
// spill slot indexes holding references.
type Safepoint struct {
	PC          uint32
	TaggedSlots []int
}

// DefineTaggedStackSlot marks the slot as holding a reference.
func (s *Safepoint) DefineTaggedStackSlot(slot int) {
	for _, t := range s.TaggedSlots {
		if t == slot {
			return
		}
	}
	s.TaggedSlots = append(s.TaggedSlots, slot)
	sort.Ints(s.TaggedSlots)
}

// SafepointTableBuilder collects the safepoints of a function in PC order.
type SafepointTableBuilder struct {
	entries []*Safepoint
}

// DefineSafepoint adds a safepoint at the current end of the code, which must follow a call.
func (b *SafepointTableBuilder) DefineSafepoint(c *Compiler) *Safepoint {
	sp := &Safepoint{PC: c.pcOffset()}
	b.entries = append(b.entries, sp)
	return sp
}

// Len returns the number of safepoints.
func (b *SafepointTableBuilder) Len() int {
	return len(b.entries)
}

// Safepoints returns a copy of the safepoints sorted by PC.
func (b *SafepointTableBuilder) Safepoints() []Safepoint {
	ret := make([]Safepoint, len(b.entries))
	for i, e := range b.entries {
		ret[i] = Safepoint{PC: e.PC, TaggedSlots: append([]int(nil), e.TaggedSlots...)}
	}
	sort.SliceStable(ret, func(i, j int) bool { return ret[i].PC < ret[j].PC })
	return ret
}

// RecordSpillsInSafepoint tags the slots of the registers of refSpills among allSpills, which
// are pushed in register order starting at slot spillOffset, and reserves their space in the frame.
func (c *Compiler) RecordSpillsInSafepoint(safepoint *Safepoint, allSpills, refSpills LivenessSet, spillOffset int) {
	spillSpaceSize := int32(0)
	allSpills.Range(func(m asm.Register) {
		if refSpills.hasMachine(m) {
			safepoint.DefineTaggedStackSlot(spillOffset)
		}
		spillOffset++
		spillSpaceSize += 4
	})
	c.frame.RecordOolSpillSpaceSize(spillSpaceSize)
}
