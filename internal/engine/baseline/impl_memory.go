package baseline

import (
	"fmt"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

// memoryOperand returns a base register and an immediate addressing base+index+offset, where
// the immediate plus span-4 also fits the 12-bit immediate of loads and stores. The returned
// function releases the scratch registers used.
func (c *Compiler) memoryOperand(s *scope, base, index asm.Register, offset uint32, span int64) (asm.Register, int64, func()) {
	var acquired []asm.Register
	addr := base
	if index != asm.NilRegister {
		t := s.acquireGP()
		acquired = append(acquired, t)
		c.rr(riscv32.ADD, t, base, index)
		addr = t
	}
	off := int64(offset)
	if !fitsImm12(off) || !fitsImm12(off+span-4) {
		t := s.acquireGP()
		acquired = append(acquired, t)
		c.li(t, int32(offset))
		c.rr(riscv32.ADD, t, addr, t)
		addr, off = t, 0
	}
	return addr, off, func() {
		for _, r := range acquired {
			s.release(r)
		}
	}
}

// memoryAddress returns a register holding base+index+offset, for instructions without an
// immediate offset.
func (c *Compiler) memoryAddress(s *scope, base, index asm.Register, offset uint32) (asm.Register, func()) {
	if index == asm.NilRegister && offset == 0 {
		return base, func() {}
	}
	t := s.acquireGP()
	addr := base
	if index != asm.NilRegister {
		c.rr(riscv32.ADD, t, base, index)
		addr = t
	}
	if offset != 0 {
		if off := int64(offset); fitsImm12(off) {
			c.addi(t, addr, off)
		} else {
			if addr == t {
				u := s.acquireGP()
				c.li(u, int32(offset))
				c.rr(riscv32.ADD, t, t, u)
				s.release(u)
			} else {
				c.li(t, int32(offset))
				c.rr(riscv32.ADD, t, addr, t)
			}
		}
	}
	return t, func() { s.release(t) }
}

// protect records the offset of the next instruction, which may fault on out of bounds accesses.
func (c *Compiler) protect(pc *uint32) {
	if pc == nil {
		return
	}
	*pc = c.pcOffset()
	c.protectedInstructions = append(c.protectedInstructions, *pc)
}

var scalarLoadInstructions = map[LoadType]asm.Instruction{
	LoadI32:     riscv32.LW,
	LoadI32_8S:  riscv32.LB,
	LoadI32_8U:  riscv32.LBU,
	LoadI32_16S: riscv32.LH,
	LoadI32_16U: riscv32.LHU,
	LoadI64_8S:  riscv32.LB,
	LoadI64_8U:  riscv32.LBU,
	LoadI64_16S: riscv32.LH,
	LoadI64_16U: riscv32.LHU,
	LoadI64_32S: riscv32.LW,
	LoadI64_32U: riscv32.LW,
	LoadF32:     riscv32.FLW,
	LoadF64:     riscv32.FLD,
}

func (c *Compiler) compileLoad(s *scope, o *OperationLoad) error {
	if o.Type == LoadS128 {
		addr, release := c.memoryAddress(s, o.Base, o.Index, o.Offset)
		c.vsetivli(riscv32.E8, riscv32.M1)
		c.protect(o.ProtectedPC)
		c.assembler.CompileMemoryToRegister(riscv32.VLE8V, addr, 0, o.Dst.Low())
		release()
		return nil
	}

	base, off, release := c.memoryOperand(s, o.Base, o.Index, o.Offset, int64(o.Type.Size()))
	defer release()
	dL, dH := o.Dst.Low(), o.Dst.High()
	if o.Type == LoadI64 {
		// Wasm memory is little-endian. The word holding the base is loaded last.
		if dL == base {
			c.protect(o.ProtectedPC)
			c.assembler.CompileMemoryToRegister(riscv32.LW, base, off+4, dH)
			c.assembler.CompileMemoryToRegister(riscv32.LW, base, off, dL)
		} else {
			c.protect(o.ProtectedPC)
			c.assembler.CompileMemoryToRegister(riscv32.LW, base, off, dL)
			c.assembler.CompileMemoryToRegister(riscv32.LW, base, off+4, dH)
		}
		return nil
	}

	inst, ok := scalarLoadInstructions[o.Type]
	if !ok {
		panic(fmt.Sprintf("BUG: unknown load type %d", o.Type))
	}
	c.protect(o.ProtectedPC)
	c.assembler.CompileMemoryToRegister(inst, base, off, dL)
	switch o.Type {
	case LoadI64_8S, LoadI64_16S, LoadI64_32S:
		c.ri(riscv32.SRAI, dH, dL, 31)
	case LoadI64_8U, LoadI64_16U, LoadI64_32U:
		c.li(dH, 0)
	}
	return nil
}

var scalarStoreInstructions = map[StoreType]asm.Instruction{
	StoreI32:    riscv32.SW,
	StoreI32_8:  riscv32.SB,
	StoreI32_16: riscv32.SH,
	StoreI64_8:  riscv32.SB,
	StoreI64_16: riscv32.SH,
	StoreI64_32: riscv32.SW,
	StoreF32:    riscv32.FSW,
	StoreF64:    riscv32.FSD,
}

func (c *Compiler) compileStore(s *scope, o *OperationStore) error {
	if o.Type == StoreS128 {
		addr, release := c.memoryAddress(s, o.Base, o.Index, o.Offset)
		c.vsetivli(riscv32.E8, riscv32.M1)
		c.protect(o.ProtectedPC)
		c.assembler.CompileRegisterToMemory(riscv32.VSE8V, o.Src.Low(), addr, 0)
		release()
		return nil
	}

	base, off, release := c.memoryOperand(s, o.Base, o.Index, o.Offset, int64(o.Type.Size()))
	defer release()
	if o.Type == StoreI64 {
		c.protect(o.ProtectedPC)
		c.assembler.CompileRegisterToMemory(riscv32.SW, o.Src.Low(), base, off)
		c.assembler.CompileRegisterToMemory(riscv32.SW, o.Src.High(), base, off+4)
		return nil
	}
	inst, ok := scalarStoreInstructions[o.Type]
	if !ok {
		panic(fmt.Sprintf("BUG: unknown store type %d", o.Type))
	}
	c.protect(o.ProtectedPC)
	c.assembler.CompileRegisterToMemory(inst, o.Src.Low(), base, off)
	return nil
}

func (c *Compiler) compileLoadTaggedPointer(s *scope, o *OperationLoadTaggedPointer) error {
	base, off, release := c.memoryOperand(s, o.Base, o.Index, uint32(o.Offset), 4)
	c.assembler.CompileMemoryToRegister(riscv32.LW, base, off, o.Dst)
	release()
	return nil
}

// compileStoreTaggedPointer stores the reference, then calls the write barrier stub when the
// destination page tracks outgoing pointers and the value is a heap object on a page tracking
// incoming ones. The stub preserves every register but a0 and a1, which are saved around it.
func (c *Compiler) compileStoreTaggedPointer(s *scope, o *OperationStoreTaggedPointer) error {
	base, off, release := c.memoryOperand(s, o.Base, o.Index, uint32(o.Offset), 4)
	c.assembler.CompileRegisterToMemory(riscv32.SW, o.Src, base, off)
	release()
	if o.SkipWriteBarrier {
		return nil
	}

	exit := c.NewLabel()
	flags := s.acquireGP()
	c.pageFlags(flags, o.Base)
	c.ri(riscv32.ANDI, flags, flags, PointersFromHereAreInterestingMask)
	c.branch(riscv32.BEQ, flags, zero, exit)
	c.ri(riscv32.ANDI, flags, o.Src, SmiTagMask)
	c.branch(riscv32.BEQ, flags, zero, exit)
	c.pageFlags(flags, o.Src)
	c.ri(riscv32.ANDI, flags, flags, PointersToHereAreInterestingMask)
	c.branch(riscv32.BEQ, flags, zero, exit)
	s.release(flags)

	slot, releaseSlot := c.memoryAddress(s, o.Base, o.Index, uint32(o.Offset))
	if slot == o.Base {
		// The slot is the object itself: keep it out of a0 and a1.
		t := s.acquireGP()
		c.mv(t, slot)
		releaseSlot()
		slot, releaseSlot = t, func() { s.release(t) }
	}
	c.push(riscv32.RegA0, riscv32.RegA1)
	c.mv(riscv32.RegA0, o.Base)
	c.mv(riscv32.RegA1, slot)
	c.callRuntimeStub(StubWriteBarrier)
	c.pop(riscv32.RegA0, riscv32.RegA1)
	releaseSlot()
	c.BindLabel(exit)
	return nil
}

// pageFlags loads the flags of the page holding the object.
func (c *Compiler) pageFlags(dst, object asm.Register) {
	c.li(dst, ^int32(PageAlignmentMask))
	c.rr(riscv32.AND, dst, object, dst)
	c.assembler.CompileMemoryToRegister(riscv32.LW, dst, PageFlagsOffset, dst)
}

func (c *Compiler) compileLoadFromInstance(s *scope, o *OperationLoadFromInstance) error {
	var inst asm.Instruction
	switch o.Size {
	case 1:
		inst = riscv32.LBU
	case 2:
		inst = riscv32.LHU
	case 4:
		inst = riscv32.LW
	default:
		panic(fmt.Sprintf("BUG: instance fields of %d bytes", o.Size))
	}
	c.load(s, inst, o.Dst, o.Instance, int64(o.Offset))
	return nil
}
