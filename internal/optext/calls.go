package optext

import (
	"strings"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/engine/baseline"
)

func init() {
	controlOps["tail_call"] = func(_ *parser, args []field) (baseline.Operation, error) {
		if err := want(args, 1); err != nil {
			return nil, err
		}
		index, err := uint32Operand(args[0])
		if err != nil {
			return nil, err
		}
		return &baseline.OperationTailCallNative{FunctionIndex: index}, nil
	}
	controlOps["tail_call_indirect"] = func(_ *parser, args []field) (baseline.Operation, error) {
		// tail_call_indirect target|-
		if err := want(args, 1); err != nil {
			return nil, err
		}
		r, err := optionalGPMachine(args[0])
		if err != nil {
			return nil, err
		}
		return &baseline.OperationTailCallIndirect{Target: r}, nil
	}
	controlOps["prepare_tail_call"] = func(_ *parser, args []field) (baseline.Operation, error) {
		// prepare_tail_call callee_stack_params stack_param_delta
		if err := want(args, 2); err != nil {
			return nil, err
		}
		params, err := int32Operand(args[0])
		if err != nil {
			return nil, err
		}
		if params < 0 {
			return nil, errorAt(args[0], "invalid stack parameter count: %s", args[0].text)
		}
		delta, err := int32Operand(args[1])
		if err != nil {
			return nil, err
		}
		return &baseline.OperationPrepareTailCall{NumCalleeStackParams: int(params), StackParamDelta: int(delta)}, nil
	}
	controlOps["call_c"] = (*parser).callC
	controlOps["push_slots"] = (*parser).pushSlots
}

// cut splits the field at the first sep, keeping the columns of both parts.
func cut(f field, sep string) (before, after field, found bool) {
	i := strings.Index(f.text, sep)
	if i < 0 {
		return f, field{col: f.col + len(f.text)}, false
	}
	return field{text: f.text[:i], col: f.col}, field{text: f.text[i+len(sep):], col: f.col + i + len(sep)}, true
}

// typed parses "kind=register".
func typed(f field) (baseline.ValueKind, baseline.Reg, error) {
	name, r, ok := cut(f, "=")
	k, known := kinds[name.text]
	if !ok || !known {
		return 0, baseline.NoReg, errorAt(f, "expected kind=register, but parsed %s", f.text)
	}
	ret, err := valueReg(r, k)
	return k, ret, err
}

// callC parses "call_c name stack_bytes kind=arg... [-> [status=reg] [kind=out]]":
//
//	call_c int64_div_wrapper 16 i64=a0:a1 i64=a2:a3 -> status=a4 i64=a0:a1
func (p *parser) callC(args []field) (baseline.Operation, error) {
	if len(args) < 2 {
		return nil, operandCount(2, len(args))
	}
	target, ok := baseline.ExternalReferenceByName(args[0].text)
	if !ok {
		return nil, errorAt(args[0], "unknown external reference: %s", args[0].text)
	}
	stackBytes, err := int32Operand(args[1])
	if err != nil {
		return nil, err
	}
	o := &baseline.OperationCallC{Target: target, StackBytes: stackBytes}

	params, rets := args[2:], []field(nil)
	for i, f := range params {
		if f.text == "->" {
			params, rets = params[:i], params[i+1:]
			break
		}
	}
	var size int32
	for _, f := range params {
		k, r, err := typed(f)
		if err != nil {
			return nil, err
		}
		o.Params = append(o.Params, k)
		o.Args = append(o.Args, r)
		size += k.ElementSize()
	}
	if size > stackBytes {
		return nil, errorAt(args[1], "arguments need %d bytes, but the buffer has %s", size, args[1].text)
	}

	if len(rets) > 0 {
		if name, r, ok := cut(rets[0], "="); ok && name.text == "status" {
			status, err := gpMachine(r)
			if err != nil {
				return nil, err
			}
			o.HasReturn = true
			o.Rets = append(o.Rets, baseline.GP(status))
			rets = rets[1:]
		}
	}
	switch len(rets) {
	case 0:
	case 1:
		k, r, err := typed(rets[0])
		if err != nil {
			return nil, err
		}
		o.HasOutArg, o.OutArg = true, k
		o.Rets = append(o.Rets, r)
	default:
		return nil, errorAt(rets[1], "unexpected %s after the out argument", rets[1].text)
	}
	return o, nil
}

// pushSlots parses "push_slots param_slots slot=kind/source[/lo|/hi]...". The source is a
// register, a spill offset in brackets or a constant after '#':
//
//	push_slots 4 3=i32/a0 2=i64/a2:a3/hi 1=i64/a2:a3/lo 0=f32/[16]
func (p *parser) pushSlots(args []field) (baseline.Operation, error) {
	if len(args) < 1 {
		return nil, operandCount(1, 0)
	}
	paramSlots, err := int32Operand(args[0])
	if err != nil {
		return nil, err
	}
	o := &baseline.OperationConstructStackSlots{Slots: baseline.NewStackSlots(), ParamSlots: int(paramSlots)}
	for _, f := range args[1:] {
		slot, rest, ok := cut(f, "=")
		if !ok {
			return nil, errorAt(f, "expected slot=kind/source, but parsed %s", f.text)
		}
		dst, err := int32Operand(slot)
		if err != nil {
			return nil, err
		}
		if dst < 0 || dst >= paramSlots {
			return nil, errorAt(slot, "invalid parameter slot: %s", slot.text)
		}
		kind, source, ok := cut(rest, "/")
		k, known := kinds[kind.text]
		if !ok || !known {
			return nil, errorAt(f, "expected slot=kind/source, but parsed %s", f.text)
		}
		source, halfText, hasHalf := cut(source, "/")
		half := baseline.LowWord
		if hasHalf {
			switch {
			case k != baseline.KindI64:
				return nil, errorAt(halfText, "unexpected half of %s: %s", k, halfText.text)
			case halfText.text == "hi":
				half = baseline.HighWord
			case halfText.text != "lo":
				return nil, errorAt(halfText, "expected lo or hi, but parsed %s", halfText.text)
			}
		}

		var loc baseline.ValueLocation
		var offset int32
		switch {
		case strings.HasPrefix(source.text, "[") && strings.HasSuffix(source.text, "]"):
			inner := field{text: source.text[1 : len(source.text)-1], col: source.col + 1}
			if offset, err = int32Operand(inner); err != nil {
				return nil, err
			}
			loc = baseline.StackLocation(k, offset)
		case strings.HasPrefix(source.text, "#"):
			v, err := int32Operand(field{text: source.text[1:], col: source.col + 1})
			if err != nil {
				return nil, err
			}
			loc = baseline.ConstLocation(k, v)
		default:
			r, err := valueReg(source, k)
			if err != nil {
				return nil, err
			}
			loc = baseline.RegisterLocation(k, r)
		}
		o.Slots.Add(loc, offset, half, int(dst))
	}
	return o, nil
}

// frameSlot parses the accesses to stack parameters and results:
//
//	i32.load_param dst slot
//	i64.store_result src slot [frame_pointer]
//	f64.load_return dst offset
func (p *parser) frameSlot(k baseline.ValueKind, rest string, args []field) (baseline.Operation, bool, error) {
	switch rest {
	case "load_param":
		if err := want(args, 2); err != nil {
			return nil, true, err
		}
		dst, err := valueReg(args[0], k)
		if err != nil {
			return nil, true, err
		}
		slot, err := uint32Operand(args[1])
		if err != nil {
			return nil, true, err
		}
		return &baseline.OperationLoadCallerFrameSlot{Dst: dst, SlotIndex: slot, Type: k}, true, nil
	case "store_result":
		if len(args) != 2 && len(args) != 3 {
			return nil, true, operandCount(2, len(args))
		}
		src, err := valueReg(args[0], k)
		if err != nil {
			return nil, true, err
		}
		slot, err := uint32Operand(args[1])
		if err != nil {
			return nil, true, err
		}
		fp := asm.NilRegister
		if len(args) == 3 {
			if fp, err = gpMachine(args[2]); err != nil {
				return nil, true, err
			}
		}
		return &baseline.OperationStoreCallerFrameSlot{Src: src, SlotIndex: slot, Type: k, FramePointer: fp}, true, nil
	case "load_return":
		if err := want(args, 2); err != nil {
			return nil, true, err
		}
		dst, err := valueReg(args[0], k)
		if err != nil {
			return nil, true, err
		}
		offset, err := int32Operand(args[1])
		if err != nil {
			return nil, true, err
		}
		return &baseline.OperationLoadReturnStackSlot{Dst: dst, Offset: offset, Type: k}, true, nil
	}
	return nil, false, nil
}

// ref parses the tagged pointer accesses:
//
//	ref.load dst base index offset
//	ref.store base index offset src [no_barrier]
func (p *parser) ref(rest string, args []field) (baseline.Operation, error) {
	switch rest {
	case "load":
		if err := want(args, 4); err != nil {
			return nil, err
		}
		o := &baseline.OperationLoadTaggedPointer{}
		var err error
		if o.Dst, err = gpMachine(args[0]); err != nil {
			return nil, err
		}
		if o.Base, o.Index, o.Offset, err = taggedAddress(args[1:]); err != nil {
			return nil, err
		}
		return o, nil
	case "store":
		if len(args) == 5 {
			if args[4].text != "no_barrier" {
				return nil, errorAt(args[4], "expected no_barrier, but parsed %s", args[4].text)
			}
		} else if err := want(args, 4); err != nil {
			return nil, err
		}
		o := &baseline.OperationStoreTaggedPointer{SkipWriteBarrier: len(args) == 5}
		var err error
		if o.Base, o.Index, o.Offset, err = taggedAddress(args[:3]); err != nil {
			return nil, err
		}
		if o.Src, err = gpMachine(args[3]); err != nil {
			return nil, err
		}
		return o, nil
	}
	return nil, unknownMnemonic("ref." + rest)
}

// taggedAddress parses "base index offset" with a signed offset.
func taggedAddress(args []field) (base, index asm.Register, offset int32, err error) {
	if base, err = gpMachine(args[0]); err != nil {
		return
	}
	if index, err = optionalGPMachine(args[1]); err != nil {
		return
	}
	offset, err = int32Operand(args[2])
	return
}
