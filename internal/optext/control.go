package optext

import (
	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
	"github.com/tetratelabs/baseline32/internal/engine/baseline"
)

type controlOp func(p *parser, args []field) (baseline.Operation, error)

// controlOps are the operations whose mnemonic names no value kind.
var controlOps = map[string]controlOp{
	"jump": func(p *parser, args []field) (baseline.Operation, error) {
		if err := want(args, 1); err != nil {
			return nil, err
		}
		l, err := p.labelOperand(args[0])
		if err != nil {
			return nil, err
		}
		return &baseline.OperationJump{Label: l}, nil
	},
	"jump_reg": func(_ *parser, args []field) (baseline.Operation, error) {
		r, err := single(args)
		if err != nil {
			return nil, err
		}
		return &baseline.OperationJumpToRegister{Target: r}, nil
	},
	"trap":         nullary(func() baseline.Operation { return &baseline.OperationTrap{} }),
	"debug_break":  nullary(func() baseline.Operation { return &baseline.OperationDebugBreak{} }),
	"atomic.fence": nullary(func() baseline.Operation { return &baseline.OperationAtomicFence{} }),
	"stub": func(_ *parser, args []field) (baseline.Operation, error) {
		if err := want(args, 1); err != nil {
			return nil, err
		}
		stub, ok := baseline.RuntimeStubByName(args[0].text)
		if !ok {
			return nil, errorAt(args[0], "unknown runtime stub: %s", args[0].text)
		}
		return &baseline.OperationCallRuntimeStub{Stub: stub}, nil
	},
	"call": func(_ *parser, args []field) (baseline.Operation, error) {
		if err := want(args, 1); err != nil {
			return nil, err
		}
		index, err := uint32Operand(args[0])
		if err != nil {
			return nil, err
		}
		return &baseline.OperationCallNative{FunctionIndex: index}, nil
	},
	"call_indirect": func(_ *parser, args []field) (baseline.Operation, error) {
		r, err := single(args)
		if err != nil {
			return nil, err
		}
		return &baseline.OperationCallIndirect{Target: r}, nil
	},
	"stack_check": func(p *parser, args []field) (baseline.Operation, error) {
		// stack_check @ool limit_address
		if err := want(args, 2); err != nil {
			return nil, err
		}
		l, err := p.labelOperand(args[0])
		if err != nil {
			return nil, err
		}
		r, err := gpMachine(args[1])
		if err != nil {
			return nil, err
		}
		return &baseline.OperationStackCheck{OOL: l, LimitAddress: r}, nil
	},
	"br_if_smi":     smiCheck(false),
	"br_if_not_smi": smiCheck(true),
	"instance.load": func(_ *parser, args []field) (baseline.Operation, error) {
		r, err := single(args)
		if err != nil {
			return nil, err
		}
		return &baseline.OperationLoadInstance{Dst: r}, nil
	},
	"instance.spill": func(_ *parser, args []field) (baseline.Operation, error) {
		r, err := single(args)
		if err != nil {
			return nil, err
		}
		return &baseline.OperationSpillInstance{Src: r}, nil
	},
	"instance.field": func(_ *parser, args []field) (baseline.Operation, error) {
		// instance.field dst instance offset size
		if err := want(args, 4); err != nil {
			return nil, err
		}
		o := &baseline.OperationLoadFromInstance{}
		var err error
		if o.Dst, err = gpMachine(args[0]); err != nil {
			return nil, err
		}
		if o.Instance, err = gpMachine(args[1]); err != nil {
			return nil, err
		}
		if o.Offset, err = int32Operand(args[2]); err != nil {
			return nil, err
		}
		size, err := uint8Operand(args[3])
		if err != nil || (size != 1 && size != 2 && size != 4) {
			return nil, errorAt(args[3], "invalid field size: %s", args[3].text)
		}
		o.Size = int(size)
		return o, nil
	},
	"feedback.load": func(_ *parser, args []field) (baseline.Operation, error) {
		r, err := single(args)
		if err != nil {
			return nil, err
		}
		return &baseline.OperationLoadFeedbackVector{Dst: r}, nil
	},
	"tierup_budget": func(p *parser, args []field) (baseline.Operation, error) {
		// tierup_budget amount @out_of_budget
		if err := want(args, 2); err != nil {
			return nil, err
		}
		amount, err := int32Operand(args[0])
		if err != nil {
			return nil, err
		}
		l, err := p.labelOperand(args[1])
		if err != nil {
			return nil, err
		}
		return &baseline.OperationDecrementTierupBudget{Amount: amount, OutOfBudget: l}, nil
	},
	"zero_slots": func(_ *parser, args []field) (baseline.Operation, error) {
		// zero_slots start size
		if err := want(args, 2); err != nil {
			return nil, err
		}
		start, err := int32Operand(args[0])
		if err != nil {
			return nil, err
		}
		size, err := int32Operand(args[1])
		if err != nil {
			return nil, err
		}
		return &baseline.OperationFillStackSlotsWithZero{Start: start, Size: size}, nil
	},
	"alloca": func(_ *parser, args []field) (baseline.Operation, error) {
		// alloca addr size
		if err := want(args, 2); err != nil {
			return nil, err
		}
		addr, err := gpMachine(args[0])
		if err != nil {
			return nil, err
		}
		size, err := uint32Operand(args[1])
		if err != nil {
			return nil, err
		}
		return &baseline.OperationAllocateStackSlot{Addr: addr, Size: size}, nil
	},
	"dealloca": func(_ *parser, args []field) (baseline.Operation, error) {
		if err := want(args, 1); err != nil {
			return nil, err
		}
		size, err := uint32Operand(args[0])
		if err != nil {
			return nil, err
		}
		return &baseline.OperationDeallocateStackSlot{Size: size}, nil
	},
	"push_regs": func(_ *parser, args []field) (baseline.Operation, error) {
		regs, err := regSet(args)
		if err != nil {
			return nil, err
		}
		return &baseline.OperationPushRegisters{Regs: regs}, nil
	},
	"pop_regs": func(_ *parser, args []field) (baseline.Operation, error) {
		regs, err := regSet(args)
		if err != nil {
			return nil, err
		}
		return &baseline.OperationPopRegisters{Regs: regs}, nil
	},
}

func nullary(newOp func() baseline.Operation) controlOp {
	return func(_ *parser, args []field) (baseline.Operation, error) {
		if err := want(args, 0); err != nil {
			return nil, err
		}
		return newOp(), nil
	}
}

// single parses the only operand, a general purpose register.
func single(args []field) (ret asm.Register, err error) {
	if err = want(args, 1); err != nil {
		return
	}
	return gpMachine(args[0])
}

// regSet parses registers of any class into a set.
func regSet(args []field) (ret baseline.LivenessSet, err error) {
	for _, f := range args {
		m, err := machine(f)
		if err != nil {
			return ret, err
		}
		switch {
		case riscv32.IsIntRegister(m):
			ret = ret.Add(baseline.GP(m))
		case riscv32.IsFloatRegister(m):
			ret = ret.Add(baseline.FP(m))
		default:
			ret = ret.Add(baseline.Vec(m))
		}
	}
	return
}

// condJump parses "br_if.<cond> @label lhs rhs", where a "-" rhs compares with zero.
func (p *parser) condJump(cond string, args []field) (baseline.Operation, error) {
	c, ok := baseline.ConditionByName(cond)
	if !ok {
		return nil, unknownMnemonic("br_if." + cond)
	}
	if err := want(args, 3); err != nil {
		return nil, err
	}
	o := &baseline.OperationCondJump{Cond: c, Type: baseline.KindI32, Rhs: baseline.NoReg}
	var err error
	if o.Label, err = p.labelOperand(args[0]); err != nil {
		return nil, err
	}
	if o.Lhs, err = reg(args[1], baseline.RegClassGP); err != nil {
		return nil, err
	}
	if args[2].text != "-" {
		if o.Rhs, err = reg(args[2], baseline.RegClassGP); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// condJumpImm parses "br_if_imm.<cond> @label lhs imm".
func (p *parser) condJumpImm(cond string, args []field) (baseline.Operation, error) {
	c, ok := baseline.ConditionByName(cond)
	if !ok {
		return nil, unknownMnemonic("br_if_imm." + cond)
	}
	if err := want(args, 3); err != nil {
		return nil, err
	}
	o := &baseline.OperationI32CondJumpImm{Cond: c}
	var err error
	if o.Label, err = p.labelOperand(args[0]); err != nil {
		return nil, err
	}
	if o.Lhs, err = reg(args[1], baseline.RegClassGP); err != nil {
		return nil, err
	}
	if o.Imm, err = int32Operand(args[2]); err != nil {
		return nil, err
	}
	return o, nil
}

// smiCheck parses "br_if_smi @label src" and "br_if_not_smi @label src".
func smiCheck(jumpIfNotSmi bool) controlOp {
	return func(p *parser, args []field) (baseline.Operation, error) {
		if err := want(args, 2); err != nil {
			return nil, err
		}
		l, err := p.labelOperand(args[0])
		if err != nil {
			return nil, err
		}
		r, err := gpMachine(args[1])
		if err != nil {
			return nil, err
		}
		return &baseline.OperationSmiCheck{Src: r, Label: l, JumpIfNotSmi: jumpIfNotSmi}, nil
	}
}
