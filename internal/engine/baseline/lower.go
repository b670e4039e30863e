package baseline

import "fmt"

// lower dispatches the operation to its lowering rule.
func (c *Compiler) lower(s *scope, op Operation) error {
	if usesSIMD(op) && !c.opts.EnableSIMD {
		c.bailout(ReasonSIMD, op.Kind().String())
		return nil
	}

	switch o := op.(type) {
	case *OperationI32Binary:
		return c.compileI32Binary(s, o)
	case *OperationI32BinaryImm:
		return c.compileI32BinaryImm(s, o)
	case *OperationI32Div:
		return c.compileI32Div(s, o)
	case *OperationI32Unary:
		return c.compileI32Unary(s, o)
	case *OperationI32SetCond:
		return c.compileI32SetCond(s, o)
	case *OperationI64Binary:
		return c.compileI64Binary(s, o)
	case *OperationI64BinaryImm:
		return c.compileI64BinaryImm(s, o)
	case *OperationI64Div:
		return c.compileI64Div(s, o)
	case *OperationI64Unary:
		return c.compileI64Unary(s, o)
	case *OperationI64SetCond:
		return c.compileI64SetCond(s, o)
	case *OperationFloatBinary:
		return c.compileFloatBinary(s, o)
	case *OperationFloatUnary:
		return c.compileFloatUnary(s, o)
	case *OperationFloatSetCond:
		return c.compileFloatSetCond(s, o)
	case *OperationConvert:
		return c.compileConvert(s, o)

	case *OperationLoad:
		return c.compileLoad(s, o)
	case *OperationStore:
		return c.compileStore(s, o)
	case *OperationLoadTaggedPointer:
		return c.compileLoadTaggedPointer(s, o)
	case *OperationStoreTaggedPointer:
		return c.compileStoreTaggedPointer(s, o)
	case *OperationLoadTransform:
		return c.compileLoadTransform(s, o)
	case *OperationLoadLane:
		return c.compileLoadLane(s, o)
	case *OperationStoreLane:
		return c.compileStoreLane(s, o)
	case *OperationLoadFromInstance:
		return c.compileLoadFromInstance(s, o)

	case *OperationAtomicLoad:
		return c.compileAtomicLoad(s, o)
	case *OperationAtomicStore:
		return c.compileAtomicStore(s, o)
	case *OperationAtomicRMW:
		return c.compileAtomicRMW(s, o)
	case *OperationAtomicCompareExchange:
		return c.compileAtomicCompareExchange(s, o)
	case *OperationAtomicFence:
		return c.compileAtomicFence(s, o)

	case *OperationV128Splat:
		return c.compileV128Splat(s, o)
	case *OperationV128ExtractLane:
		return c.compileV128ExtractLane(s, o)
	case *OperationV128ReplaceLane:
		return c.compileV128ReplaceLane(s, o)
	case *OperationV128Binary:
		return c.compileV128Binary(s, o)
	case *OperationV128Unary:
		return c.compileV128Unary(s, o)
	case *OperationV128Shift:
		return c.compileV128Shift(s, o)
	case *OperationV128ShiftImm:
		return c.compileV128ShiftImm(s, o)
	case *OperationV128Test:
		return c.compileV128Test(s, o)
	case *OperationV128Bitselect:
		return c.compileV128Bitselect(s, o)
	case *OperationV128Const:
		return c.compileV128Const(s, o)
	case *OperationV128Shuffle:
		return c.compileV128Shuffle(s, o)

	case *OperationLabel:
		return c.compileLabel(s, o)
	case *OperationJump:
		return c.compileJump(s, o)
	case *OperationJumpToRegister:
		return c.compileJumpToRegister(s, o)
	case *OperationCondJump:
		return c.compileCondJump(s, o)
	case *OperationI32CondJumpImm:
		return c.compileI32CondJumpImm(s, o)
	case *OperationI32SubImmJumpNegative:
		return c.compileI32SubImmJumpNegative(s, o)
	case *OperationSmiCheck:
		return c.compileSmiCheck(s, o)
	case *OperationSetIfNaN:
		return c.compileSetIfNaN(s, o)
	case *OperationS128SetIfNaN:
		return c.compileS128SetIfNaN(s, o)
	case *OperationSelect:
		return c.compileSelect(s, o)
	case *OperationStackCheck:
		return c.compileStackCheck(s, o)
	case *OperationTrap:
		return c.compileTrap(s, o)
	case *OperationDebugBreak:
		return c.compileDebugBreak(s, o)

	case *OperationCallC:
		return c.compileCallC(s, o)
	case *OperationCallNative:
		return c.compileCallNative(s, o)
	case *OperationTailCallNative:
		return c.compileTailCallNative(s, o)
	case *OperationCallIndirect:
		return c.compileCallIndirect(s, o)
	case *OperationTailCallIndirect:
		return c.compileTailCallIndirect(s, o)
	case *OperationCallRuntimeStub:
		return c.compileCallRuntimeStub(s, o)
	case *OperationAllocateStackSlot:
		return c.compileAllocateStackSlot(s, o)
	case *OperationDeallocateStackSlot:
		return c.compileDeallocateStackSlot(s, o)
	case *OperationDropStackSlotsAndRet:
		return c.compileDropStackSlotsAndRet(s, o)
	case *OperationEnterFrame:
		c.EnterFrame()
	case *OperationLeaveFrame:
		c.LeaveFrame()
	case *OperationPrepareTailCall:
		c.PrepareTailCall(o.NumCalleeStackParams, o.StackParamDelta)
	case *OperationPushRegisters:
		c.pushRegisters(s, o.Regs)
	case *OperationPopRegisters:
		c.popRegisters(s, o.Regs)
	case *OperationConstructStackSlots:
		return c.compileConstructStackSlots(s, o)

	case *OperationSpill:
		return c.compileSpill(s, o)
	case *OperationSpillConst:
		return c.compileSpillConst(s, o)
	case *OperationFill:
		return c.compileFill(s, o)
	case *OperationFillI64Half:
		return c.compileFillI64Half(s, o)
	case *OperationFillStackSlotsWithZero:
		return c.compileFillStackSlotsWithZero(s, o)
	case *OperationMoveStackValue:
		return c.compileMoveStackValue(s, o)
	case *OperationMove:
		return c.compileMove(s, o)
	case *OperationLoadConstant:
		return c.compileLoadConstant(s, o)
	case *OperationLoadCallerFrameSlot:
		return c.compileLoadCallerFrameSlot(s, o)
	case *OperationStoreCallerFrameSlot:
		return c.compileStoreCallerFrameSlot(s, o)
	case *OperationLoadReturnStackSlot:
		return c.compileLoadReturnStackSlot(s, o)
	case *OperationLoadInstance:
		c.LoadInstanceFromFrame(o.Dst)
	case *OperationSpillInstance:
		c.SpillInstance(o.Src)
	case *OperationLoadFeedbackVector:
		c.LoadFeedbackVector(o.Dst)
	case *OperationDecrementTierupBudget:
		c.DecrementTierupBudget(o.Amount, o.OutOfBudget)
	default:
		panic(fmt.Sprintf("BUG: unsupported operation %T", op))
	}
	return nil
}

// usesSIMD returns true for the operations reading or writing S128 values.
func usesSIMD(op Operation) bool {
	switch o := op.(type) {
	case *OperationV128Splat, *OperationV128ExtractLane, *OperationV128ReplaceLane,
		*OperationV128Binary, *OperationV128Unary, *OperationV128Shift, *OperationV128ShiftImm,
		*OperationV128Test, *OperationV128Bitselect, *OperationV128Const, *OperationV128Shuffle,
		*OperationLoadTransform, *OperationLoadLane, *OperationStoreLane, *OperationS128SetIfNaN:
		return true
	case *OperationLoad:
		return o.Type == LoadS128
	case *OperationStore:
		return o.Type == StoreS128
	case *OperationSpill:
		return o.Type == KindS128
	case *OperationFill:
		return o.Type == KindS128
	case *OperationMove:
		return o.Type == KindS128
	case *OperationMoveStackValue:
		return o.Type == KindS128
	}
	return false
}
