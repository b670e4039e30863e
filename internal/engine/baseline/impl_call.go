package baseline

import (
	"fmt"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

// cBufferSize is the size of the stack buffer passed to the C helpers of the compiler. It keeps
// sp 16-byte aligned.
const cBufferSize = 16

// withStackBuffer runs body with a 16-byte buffer at sp.
func (c *Compiler) withStackBuffer(body func()) {
	c.addi(riscv32.RegSP, riscv32.RegSP, -cBufferSize)
	body()
	c.addi(riscv32.RegSP, riscv32.RegSP, cBufferSize)
}

// callWithBuffer calls the C function with a0 pointing to a 16-byte stack buffer filled by fill,
// then runs drain with the buffer still allocated. The i32 returned by the function is copied to
// status unless it is NilRegister. Caller-saved registers and ra are clobbered.
func (c *Compiler) callWithBuffer(ref ExternalReference, fill, drain func(), status asm.Register) {
	c.withStackBuffer(func() {
		fill()
		c.mv(riscv32.RegA0, riscv32.RegSP)
		c.callExternal(ref)
		if status != asm.NilRegister {
			c.mv(status, riscv32.RegA0)
		}
		drain()
	})
}

func (c *Compiler) compileCallC(s *scope, o *OperationCallC) error {
	if len(o.Params) != len(o.Args) {
		panic(fmt.Sprintf("BUG: %d parameters but %d arguments", len(o.Params), len(o.Args)))
	}
	size := (int64(o.StackBytes) + 15) &^ 15
	c.adjustSP(s, -size)

	offset := int64(0)
	for i, kind := range o.Params {
		c.storeKind(s, kind, o.Args[i], riscv32.RegSP, offset)
		offset += int64(kind.ElementSize())
	}
	if offset > int64(o.StackBytes) {
		panic(fmt.Sprintf("BUG: %d bytes of arguments in a %d bytes buffer", offset, o.StackBytes))
	}

	c.mv(riscv32.RegA0, riscv32.RegSP)
	c.callExternal(o.Target)

	rets := o.Rets
	if o.HasReturn {
		c.mv(rets[0].Low(), riscv32.RegA0)
		rets = rets[1:]
	}
	if o.HasOutArg {
		c.loadKind(s, o.OutArg, rets[0], riscv32.RegSP, 0)
	}
	c.adjustSP(s, size)
	return nil
}

func (c *Compiler) compileCallNative(_ *scope, o *OperationCallNative) error {
	c.farCall(RelocWasmCall, o.FunctionIndex, riscv32.RegRA, riscv32.RegRA)
	c.safepoints.DefineSafepoint(c)
	return nil
}

func (c *Compiler) compileTailCallNative(_ *scope, o *OperationTailCallNative) error {
	c.farCall(RelocWasmCall, o.FunctionIndex, riscv32.RegT6, riscv32.RegZERO)
	return nil
}

// indirectTarget moves the call target into t6, popping it from the stack when target is
// NilRegister.
func (c *Compiler) indirectTarget(target asm.Register) asm.Register {
	t := riscv32.RegT6
	if target == asm.NilRegister {
		c.pop(t)
	} else {
		c.mv(t, target)
	}
	return t
}

func (c *Compiler) compileCallIndirect(_ *scope, o *OperationCallIndirect) error {
	t := c.indirectTarget(o.Target)
	c.assembler.CompileRegisterAndConstToRegister(riscv32.JALR, t, 0, riscv32.RegRA)
	c.safepoints.DefineSafepoint(c)
	return nil
}

func (c *Compiler) compileTailCallIndirect(_ *scope, o *OperationTailCallIndirect) error {
	t := c.indirectTarget(o.Target)
	c.assembler.CompileJumpToRegister(riscv32.JALR, t)
	return nil
}

func (c *Compiler) compileCallRuntimeStub(_ *scope, o *OperationCallRuntimeStub) error {
	c.callRuntimeStub(o.Stub)
	c.safepoints.DefineSafepoint(c)
	if c.opts.DebugCode && o.Stub != StubWriteBarrier && o.Stub != StubStackOverflow {
		// Trap stubs never return.
		c.assembler.CompileStandAlone(riscv32.EBREAK)
	}
	return nil
}

func (c *Compiler) compileAllocateStackSlot(s *scope, o *OperationAllocateStackSlot) error {
	c.adjustSP(s, -int64(o.Size))
	c.mv(o.Addr, riscv32.RegSP)
	return nil
}

func (c *Compiler) compileDeallocateStackSlot(s *scope, o *OperationDeallocateStackSlot) error {
	c.adjustSP(s, int64(o.Size))
	return nil
}

func (c *Compiler) compileDropStackSlotsAndRet(s *scope, o *OperationDropStackSlotsAndRet) error {
	c.adjustSP(s, 4*int64(o.Slots))
	c.assembler.CompileJumpToRegister(riscv32.JALR, riscv32.RegRA)
	return nil
}

// pushedSize returns the bytes taken by the registers pushed by PushRegisters.
func pushedSize(regs LivenessSet) int64 {
	return 4*int64(len(regs.GP())) + 8*int64(len(regs.FP())) + 16*int64(len(regs.Vec()))
}

// PushRegisters stores the registers below sp with a single adjustment: GP registers in
// ascending order at descending offsets from the top, then FP registers as doubles, then vector
// registers.
func (c *Compiler) PushRegisters(regs LivenessSet) {
	c.pushRegisters(newScope(), regs)
}

// PopRegisters restores the registers stored by PushRegisters with the same set.
func (c *Compiler) PopRegisters(regs LivenessSet) {
	c.popRegisters(newScope(), regs)
}

func (c *Compiler) pushRegisters(s *scope, regs LivenessSet) {
	size := pushedSize(regs)
	if size == 0 {
		return
	}
	c.adjustSP(s, -size)
	offset := size
	for _, r := range regs.GP() {
		offset -= 4
		c.store(s, riscv32.SW, r, riscv32.RegSP, offset)
	}
	for _, r := range regs.FP() {
		offset -= 8
		c.store(s, riscv32.FSD, r, riscv32.RegSP, offset)
	}
	for _, r := range regs.Vec() {
		offset -= 16
		c.storeVector(s, r, riscv32.RegSP, offset)
	}
}

func (c *Compiler) popRegisters(s *scope, regs LivenessSet) {
	size := pushedSize(regs)
	if size == 0 {
		return
	}
	offset := size
	for _, r := range regs.GP() {
		offset -= 4
		c.load(s, riscv32.LW, r, riscv32.RegSP, offset)
	}
	for _, r := range regs.FP() {
		offset -= 8
		c.load(s, riscv32.FLD, r, riscv32.RegSP, offset)
	}
	for _, r := range regs.Vec() {
		offset -= 16
		c.loadVector(s, r, riscv32.RegSP, offset)
	}
	c.adjustSP(s, size)
}
