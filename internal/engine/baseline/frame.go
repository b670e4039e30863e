package baseline

import (
	"errors"

	"go.uber.org/zap"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

// ErrFrameAlreadyPatched is returned when a frame reservation is patched twice.
var ErrFrameAlreadyPatched = errors.New("stack frame already patched")

// InstanceRegister holds the instance on function entry.
const InstanceRegister = riscv32.RegA0

// FrameLayout tracks the spill offsets used by a function. Offsets are in bytes below fp.
type FrameLayout struct {
	static             int32
	top                int32
	maxUsedSpillOffset int32
	oolSpillSpaceSize  int32
}

// NewFrameLayout returns the layout of a frame without spill slots. With dynamic tiering the
// fixed slots include the feedback vector and the tier-up budget.
func NewFrameLayout(dynamicTiering bool) FrameLayout {
	static := int32(InstanceOffset)
	if dynamicTiering {
		static = TierupBudgetOffset
	}
	return FrameLayout{static: static, top: static, maxUsedSpillOffset: static}
}

// StaticFrameSize returns the size of the fixed slots below fp.
func (f *FrameLayout) StaticFrameSize() int32 {
	return f.static
}

// NextSpillOffset returns the offset of a new spill slot for the kind, below the previous one.
func (f *FrameLayout) NextSpillOffset(kind ValueKind) int32 {
	size := kind.SlotSize()
	offset := f.top + size
	if kind == KindS128 {
		offset = (offset + size - 1) &^ (size - 1)
	}
	f.top = offset
	f.RecordUsedSpillOffset(offset)
	return offset
}

// RecordUsedSpillOffset records that the frame extends at least to the offset.
func (f *FrameLayout) RecordUsedSpillOffset(offset int32) {
	if offset > f.maxUsedSpillOffset {
		f.maxUsedSpillOffset = offset
	}
}

// RecordOolSpillSpaceSize reserves space for registers spilled by out-of-line code.
func (f *FrameLayout) RecordOolSpillSpaceSize(size int32) {
	if size > f.oolSpillSpaceSize {
		f.oolSpillSpaceSize = size
	}
}

// TotalFrameSize returns the size of the frame below the saved fp.
func (f *FrameLayout) TotalFrameSize() int32 {
	return f.maxUsedSpillOffset + f.oolSpillSpaceSize
}

type reservationState byte

const (
	reservationReserved reservationState = iota
	reservationPatched
)

// FrameReservation is the placeholder of the stack pointer decrement, emitted before the frame
// size is known and patched once it is.
type FrameReservation struct {
	hi, lo *riscv32.NodeImpl
	// Offset is the offset of the placeholder in the function.
	Offset uint32
	state  reservationState
}

// Patched returns true once PatchStackFrame succeeded.
func (r *FrameReservation) Patched() bool {
	return r.state == reservationPatched
}

// EnterFrame saves ra and fp, points fp at the saved fp, then stores the frame marker and the
// instance register below it.
func (c *Compiler) EnterFrame() {
	s := newScope()
	c.addi(riscv32.RegSP, riscv32.RegSP, -16)
	c.assembler.CompileRegisterToMemory(riscv32.SW, riscv32.RegRA, riscv32.RegSP, 12)
	c.assembler.CompileRegisterToMemory(riscv32.SW, riscv32.RegFP, riscv32.RegSP, 8)
	c.addi(riscv32.RegFP, riscv32.RegSP, 8)
	marker := s.acquireGP()
	c.li(marker, FrameMarkerWasm)
	c.assembler.CompileRegisterToMemory(riscv32.SW, marker, riscv32.RegSP, 4)
	c.assembler.CompileRegisterToMemory(riscv32.SW, InstanceRegister, riscv32.RegSP, 0)
}

// LeaveFrame restores ra, fp and sp as they were before EnterFrame.
func (c *Compiler) LeaveFrame() {
	c.assembler.CompileMemoryToRegister(riscv32.LW, riscv32.RegFP, ReturnAddressOffset, riscv32.RegRA)
	c.addi(riscv32.RegSP, riscv32.RegFP, 8)
	c.assembler.CompileMemoryToRegister(riscv32.LW, riscv32.RegFP, SavedFPOffset, riscv32.RegFP)
}

// PrepareStackFrame emits the placeholder of the frame allocation and returns its reservation.
func (c *Compiler) PrepareStackFrame() *FrameReservation {
	if c.reservation != nil {
		panic("BUG: stack frame prepared twice")
	}
	offset := c.pcOffset()
	hi := c.assembler.CompileRegisterAndConstToRegister(riscv32.ADDI, riscv32.RegSP, 0, riscv32.RegSP).(*riscv32.NodeImpl)
	lo := c.assembler.CompileStandAlone(riscv32.NOP).(*riscv32.NodeImpl)
	c.reservation = &FrameReservation{hi: hi, lo: lo, Offset: offset}
	return c.reservation
}

// PatchStackFrame rewrites the placeholder once the frame size is known. Small frames are a
// direct decrement of sp. Large frames jump to out-of-line code appended to the function, which
// checks the stack limit before allocating and jumps back.
func (c *Compiler) PatchStackFrame(r *FrameReservation, safepoints *SafepointTableBuilder) error {
	if c.bailoutErr != nil {
		return c.bailoutErr
	}
	if r.state == reservationPatched {
		return ErrFrameAlreadyPatched
	}
	if safepoints == nil {
		safepoints = c.safepoints
	}
	r.state = reservationPatched

	frameSize := int64(c.frame.TotalFrameSize() - 2*4)
	if frameSize < 4096 {
		first := frameSize
		if first > 2048 {
			first = 2048
		}
		r.hi.Replace(riscv32.ADDI, riscv32.RegSP, riscv32.RegSP, -first)
		if rest := frameSize - first; rest > 0 {
			r.lo.Replace(riscv32.ADDI, riscv32.RegSP, riscv32.RegSP, -rest)
		}
		return nil
	}

	if c.opts.Stats != nil {
		c.opts.Stats.LargeFrames.Inc()
	}
	c.logger.Debug("large stack frame", zap.Int64("frame_size", frameSize), zap.Uint32("offset", r.Offset))

	s := newScope()
	tmp, limit := s.acquireGP(), s.acquireGP()
	ool := c.assembler.NewLabel()
	c.assembler.BindLabel(ool)
	cont := c.assembler.NewLabel()
	if frameSize < int64(c.opts.StackSizeKB)*1024 {
		c.assembler.CompileMemoryToRegister(riscv32.LW, riscv32.RegFP, -InstanceOffset, limit)
		c.assembler.CompileMemoryToRegister(riscv32.LW, limit, InstanceStackLimitAddressOffset, limit)
		c.assembler.CompileMemoryToRegister(riscv32.LW, limit, 0, limit)
		c.li(tmp, int32(frameSize))
		c.assembler.CompileTwoRegistersToRegister(riscv32.ADD, limit, tmp, limit)
		br := c.assembler.CompileConditionalBranch(riscv32.BGEU, riscv32.RegSP, limit)
		c.assembler.JumpToLabel(br, cont)
	}
	c.callRuntimeStub(StubStackOverflow)
	safepoints.DefineSafepoint(c)
	if c.opts.DebugCode {
		c.assembler.CompileStandAlone(riscv32.EBREAK)
	}
	c.assembler.BindLabel(cont)
	c.li(tmp, int32(frameSize))
	c.assembler.CompileTwoRegistersToRegister(riscv32.SUB, riscv32.RegSP, tmp, riscv32.RegSP)
	back := c.assembler.CompileFarJump(limit, riscv32.RegZERO)
	back.AssignJumpTarget(r.lo.Next)

	c.assembler.RewriteFarJump(r.hi, r.lo, limit, riscv32.RegZERO, ool.Target())
	return nil
}

// PrepareTailCall moves the callee's stack parameters and the return address over the current
// frame, so that the callee can be jumped to and returns to our caller.
func (c *Compiler) PrepareTailCall(numCalleeStackParams, stackParamDelta int) {
	s := newScope()
	scratch := s.acquireGP()

	c.assembler.CompileMemoryToRegister(riscv32.LW, riscv32.RegFP, ReturnAddressOffset, scratch)
	c.push(scratch)
	c.assembler.CompileMemoryToRegister(riscv32.LW, riscv32.RegFP, SavedFPOffset, scratch)
	c.push(scratch)

	slotCount := numCalleeStackParams + 2
	for i := slotCount - 1; i >= 0; i-- {
		c.load(s, riscv32.LW, scratch, riscv32.RegSP, int64(i*4))
		c.store(s, riscv32.SW, scratch, riscv32.RegFP, int64((i-stackParamDelta)*4))
	}

	c.addImm(s, riscv32.RegSP, riscv32.RegFP, int64(-stackParamDelta*4))
	c.pop(riscv32.RegRA, riscv32.RegFP)
}

// LoadInstanceFromFrame loads the instance spilled by EnterFrame.
func (c *Compiler) LoadInstanceFromFrame(dst asm.Register) {
	c.assembler.CompileMemoryToRegister(riscv32.LW, riscv32.RegFP, -InstanceOffset, dst)
}

// SpillInstance overwrites the instance slot.
func (c *Compiler) SpillInstance(instance asm.Register) {
	c.assembler.CompileRegisterToMemory(riscv32.SW, instance, riscv32.RegFP, -InstanceOffset)
}

// LoadFeedbackVector loads the feedback vector slot.
func (c *Compiler) LoadFeedbackVector(dst asm.Register) {
	c.mustHaveTieringSlots()
	c.assembler.CompileMemoryToRegister(riscv32.LW, riscv32.RegFP, -FeedbackVectorOffset, dst)
}

// SpillFeedbackVector overwrites the feedback vector slot.
func (c *Compiler) SpillFeedbackVector(src asm.Register) {
	c.mustHaveTieringSlots()
	c.assembler.CompileRegisterToMemory(riscv32.SW, src, riscv32.RegFP, -FeedbackVectorOffset)
}

// DecrementTierupBudget subtracts amount from the tier-up budget and jumps to outOfBudget once
// the budget is negative.
func (c *Compiler) DecrementTierupBudget(amount int32, outOfBudget *riscv32.Label) {
	c.mustHaveTieringSlots()
	s := newScope()
	budget := s.acquireGP()
	c.assembler.CompileMemoryToRegister(riscv32.LW, riscv32.RegFP, -TierupBudgetOffset, budget)
	c.addImm(s, budget, budget, -int64(amount))
	c.assembler.CompileRegisterToMemory(riscv32.SW, budget, riscv32.RegFP, -TierupBudgetOffset)
	c.branchFar(riscv32.BLT, budget, riscv32.RegZERO, outOfBudget)
}

func (c *Compiler) mustHaveTieringSlots() {
	if !c.opts.DynamicTiering {
		panic("BUG: tier-up slots are not reserved without dynamic tiering")
	}
}
