package baseline

import (
	"fmt"
	"math"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

// storeKind stores the value of the kind held in src to base+offset.
func (c *Compiler) storeKind(s *scope, kind ValueKind, src Reg, base asm.Register, offset int64) {
	switch kind {
	case KindI32, KindRef, KindRefNull, KindRtt:
		c.store(s, riscv32.SW, src.Low(), base, offset)
	case KindI64:
		c.storePair(s, src, base, offset)
	case KindF32:
		c.store(s, riscv32.FSW, src.Low(), base, offset)
	case KindF64:
		c.store(s, riscv32.FSD, src.Low(), base, offset)
	case KindS128:
		c.storeVector(s, src.Low(), base, offset)
	default:
		panic(fmt.Sprintf("BUG: storing %s", kind))
	}
}

// loadKind loads the value of the kind at base+offset into dst.
func (c *Compiler) loadKind(s *scope, kind ValueKind, dst Reg, base asm.Register, offset int64) {
	switch kind {
	case KindI32, KindRef, KindRefNull, KindRtt:
		c.load(s, riscv32.LW, dst.Low(), base, offset)
	case KindI64:
		c.loadPair(s, dst, base, offset)
	case KindF32:
		c.load(s, riscv32.FLW, dst.Low(), base, offset)
	case KindF64:
		c.load(s, riscv32.FLD, dst.Low(), base, offset)
	case KindS128:
		c.loadVector(s, dst.Low(), base, offset)
	default:
		panic(fmt.Sprintf("BUG: loading %s", kind))
	}
}

func (c *Compiler) compileSpill(s *scope, o *OperationSpill) error {
	c.frame.RecordUsedSpillOffset(o.Offset)
	c.storeKind(s, o.Type, o.Src, riscv32.RegFP, -int64(o.Offset))
	return nil
}

// compileSpillConst stores the constant, whose floats are given by their bits.
func (c *Compiler) compileSpillConst(s *scope, o *OperationSpillConst) error {
	c.frame.RecordUsedSpillOffset(o.Offset)
	offset := -int64(o.Offset)
	switch o.Type {
	case KindI32, KindF32, KindRef, KindRefNull, KindRtt:
		c.storeConstWord(s, int32(o.Value), offset)
	case KindI64:
		c.storeConstWord(s, int32(o.Value), offset+c.halfOffset(LowWord))
		c.storeConstWord(s, int32(o.Value>>32), offset+c.halfOffset(HighWord))
	case KindF64:
		// Same layout as fsd.
		c.storeConstWord(s, int32(o.Value), offset)
		c.storeConstWord(s, int32(o.Value>>32), offset+4)
	default:
		panic(fmt.Sprintf("BUG: spilling a %s constant", o.Type))
	}
	return nil
}

func (c *Compiler) storeConstWord(s *scope, v int32, offset int64) {
	src := zero
	if v != 0 {
		src = s.acquireGP()
		c.li(src, v)
		defer s.release(src)
	}
	c.store(s, riscv32.SW, src, riscv32.RegFP, offset)
}

func (c *Compiler) compileFill(s *scope, o *OperationFill) error {
	c.loadKind(s, o.Type, o.Dst, riscv32.RegFP, -int64(o.Offset))
	return nil
}

func (c *Compiler) compileFillI64Half(s *scope, o *OperationFillI64Half) error {
	c.load(s, riscv32.LW, o.Dst, riscv32.RegFP, -int64(o.Offset)+c.halfOffset(o.Half))
	return nil
}

// compileFillStackSlotsWithZero zeroes the bytes in (fp-start-size, fp-start]. Up to twelve
// slots are cleared with one store per word, larger areas with a loop.
func (c *Compiler) compileFillStackSlotsWithZero(s *scope, o *OperationFillStackSlotsWithZero) error {
	if o.Size%4 != 0 {
		panic(fmt.Sprintf("BUG: zeroing %d bytes of stack slots", o.Size))
	}
	start, size := int64(o.Start), int64(o.Size)
	if size <= 12*StackSlotSize {
		for k := int64(4); k <= size; k += 4 {
			c.store(s, riscv32.SW, zero, riscv32.RegFP, -(start + k))
		}
		return nil
	}

	cur, end := s.acquireGP(), s.acquireGP()
	c.li(cur, int32(-start-size))
	c.rr(riscv32.ADD, cur, riscv32.RegFP, cur)
	c.li(end, int32(-start))
	c.rr(riscv32.ADD, end, riscv32.RegFP, end)
	loop := c.NewLabel()
	c.BindLabel(loop)
	c.assembler.CompileRegisterToMemory(riscv32.SW, zero, cur, 0)
	c.addi(cur, cur, 4)
	c.branch(riscv32.BNE, cur, end, loop)
	s.release(end)
	s.release(cur)
	return nil
}

func (c *Compiler) compileMoveStackValue(s *scope, o *OperationMoveStackValue) error {
	dst, src := -int64(o.DstOffset), -int64(o.SrcOffset)
	if o.Type == KindS128 {
		v := s.acquireVec()
		c.loadVector(s, v, riscv32.RegFP, src)
		c.storeVector(s, v, riscv32.RegFP, dst)
		s.release(v)
		return nil
	}
	t := s.acquireGP()
	for k := int64(0); k < int64(o.Type.ElementSize()); k += 4 {
		c.load(s, riscv32.LW, t, riscv32.RegFP, src+k)
		c.store(s, riscv32.SW, t, riscv32.RegFP, dst+k)
	}
	s.release(t)
	return nil
}

func (c *Compiler) compileMove(_ *scope, o *OperationMove) error {
	if class, _ := Classify(o.Type); class != o.Dst.Class() {
		panic(fmt.Sprintf("BUG: moving %s in %s", o.Type, o.Dst))
	}
	c.move(o.Dst, o.Src)
	return nil
}

// compileLoadConstant materializes the constant, whose floats are given by their bits. f64
// constants go through the stack since RV32 has no move from a GP pair to a double.
func (c *Compiler) compileLoadConstant(s *scope, o *OperationLoadConstant) error {
	switch o.Type {
	case KindI32, KindRef, KindRefNull, KindRtt:
		c.li(o.Dst.Low(), int32(o.Value))
	case KindI64:
		c.li(o.Dst.Low(), int32(o.Value))
		c.li(o.Dst.High(), int32(o.Value>>32))
	case KindF32:
		t := s.acquireGP()
		c.li(t, int32(o.Value))
		c.assembler.CompileRegisterToRegister(riscv32.FMVWX, t, o.Dst.Low())
		s.release(t)
	case KindF64:
		t := s.acquireGP()
		c.withStackBuffer(func() {
			c.li(t, int32(o.Value))
			c.assembler.CompileRegisterToMemory(riscv32.SW, t, riscv32.RegSP, 0)
			c.li(t, int32(o.Value>>32))
			c.assembler.CompileRegisterToMemory(riscv32.SW, t, riscv32.RegSP, 4)
			c.assembler.CompileMemoryToRegister(riscv32.FLD, riscv32.RegSP, 0, o.Dst.Low())
		})
		s.release(t)
	default:
		panic(fmt.Sprintf("BUG: loading a %s constant", o.Type))
	}
	return nil
}

// callerFrameSlotOffset returns the offset from fp of a stack parameter or return slot.
func callerFrameSlotOffset(index uint32) int64 {
	offset := 4 * (int64(index) + 1)
	if offset > math.MaxInt32 {
		panic(fmt.Sprintf("BUG: caller frame slot %d", index))
	}
	return offset
}

func (c *Compiler) compileLoadCallerFrameSlot(s *scope, o *OperationLoadCallerFrameSlot) error {
	c.loadKind(s, o.Type, o.Dst, riscv32.RegFP, callerFrameSlotOffset(o.SlotIndex))
	return nil
}

func (c *Compiler) compileStoreCallerFrameSlot(s *scope, o *OperationStoreCallerFrameSlot) error {
	fp := o.FramePointer
	if fp == asm.NilRegister {
		fp = riscv32.RegFP
	}
	c.storeKind(s, o.Type, o.Src, fp, callerFrameSlotOffset(o.SlotIndex))
	return nil
}

func (c *Compiler) compileLoadReturnStackSlot(s *scope, o *OperationLoadReturnStackSlot) error {
	c.loadKind(s, o.Type, o.Dst, riscv32.RegSP, int64(o.Offset))
	return nil
}
