package optext

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/engine/baseline"
)

// value parses the operations common to every kind: stack slots, moves, constants, selection and
// memory accesses. handled is false when the mnemonic is specific to the kind.
func (p *parser) value(k baseline.ValueKind, prefix, rest string, args []field) (op baseline.Operation, handled bool, err error) {
	handled = true
	switch rest {
	case "spill":
		// <k>.spill offset src
		if err = want(args, 2); err != nil {
			return
		}
		o := &baseline.OperationSpill{Type: k}
		if o.Offset, err = int32Operand(args[0]); err != nil {
			return
		}
		o.Src, err = valueReg(args[1], k)
		return o, true, err
	case "fill":
		// <k>.fill dst offset
		if err = want(args, 2); err != nil {
			return
		}
		o := &baseline.OperationFill{Type: k}
		if o.Dst, err = valueReg(args[0], k); err != nil {
			return
		}
		o.Offset, err = int32Operand(args[1])
		return o, true, err
	case "move_slot":
		// <k>.move_slot dst_offset src_offset
		if err = want(args, 2); err != nil {
			return
		}
		o := &baseline.OperationMoveStackValue{Type: k}
		if o.DstOffset, err = int32Operand(args[0]); err != nil {
			return
		}
		o.SrcOffset, err = int32Operand(args[1])
		return o, true, err
	case "move":
		// <k>.move dst src
		if err = want(args, 2); err != nil {
			return
		}
		o := &baseline.OperationMove{Type: k}
		if o.Dst, err = valueReg(args[0], k); err != nil {
			return
		}
		o.Src, err = valueReg(args[1], k)
		return o, true, err
	case "select":
		// <k>.select dst cond if_true if_false
		if err = want(args, 4); err != nil {
			return
		}
		o := &baseline.OperationSelect{Type: k}
		if o.Dst, err = valueReg(args[0], k); err != nil {
			return
		}
		if o.Cond, err = gpMachine(args[1]); err != nil {
			return
		}
		if o.True, err = valueReg(args[2], k); err != nil {
			return
		}
		o.False, err = valueReg(args[3], k)
		return o, true, err
	}

	if k != baseline.KindS128 {
		switch rest {
		case "const":
			// <k>.const dst value
			if err = want(args, 2); err != nil {
				return
			}
			o := &baseline.OperationLoadConstant{Type: k}
			if o.Dst, err = valueReg(args[0], k); err != nil {
				return
			}
			o.Value, err = constant(args[1], k)
			return o, true, err
		case "spill_const":
			// <k>.spill_const offset value
			if err = want(args, 2); err != nil {
				return
			}
			o := &baseline.OperationSpillConst{Type: k}
			if o.Offset, err = int32Operand(args[0]); err != nil {
				return
			}
			o.Value, err = constant(args[1], k)
			return o, true, err
		}
	}

	if op, handled, err = p.frameSlot(k, rest, args); handled {
		return
	}
	if t, ok := baseline.LoadTypeByName(prefix + "." + rest); ok {
		op, err = p.load(t, args)
		return op, true, err
	}
	if t, ok := baseline.StoreTypeByName(prefix + "." + rest); ok {
		op, err = p.store(t, args)
		return op, true, err
	}
	if atomic := strings.TrimPrefix(rest, "atomic."); atomic != rest {
		op, err = p.atomic(prefix, atomic, args)
		return op, true, err
	}
	return nil, false, nil
}

// address parses the "base index offset" operands of memory accesses.
func address(args []field) (base, index asm.Register, offset uint32, err error) {
	if base, err = gpMachine(args[0]); err != nil {
		return
	}
	if index, err = optionalGPMachine(args[1]); err != nil {
		return
	}
	offset, err = uint32Operand(args[2])
	return
}

// load parses "<type> dst base index offset".
func (p *parser) load(t baseline.LoadType, args []field) (baseline.Operation, error) {
	if err := want(args, 4); err != nil {
		return nil, err
	}
	o := &baseline.OperationLoad{Type: t}
	var err error
	if o.Dst, err = valueReg(args[0], t.ValueKind()); err != nil {
		return nil, err
	}
	if o.Base, o.Index, o.Offset, err = address(args[1:]); err != nil {
		return nil, err
	}
	return o, nil
}

// store parses "<type> base index offset src".
func (p *parser) store(t baseline.StoreType, args []field) (baseline.Operation, error) {
	if err := want(args, 4); err != nil {
		return nil, err
	}
	o := &baseline.OperationStore{Type: t}
	var err error
	if o.Base, o.Index, o.Offset, err = address(args[:3]); err != nil {
		return nil, err
	}
	if o.Src, err = valueReg(args[3], t.ValueKind()); err != nil {
		return nil, err
	}
	return o, nil
}

// atomicOps are the read-modify-write operators, by their name after the access width.
var atomicOps = map[string]baseline.AtomicOp{}

func init() {
	for op := baseline.AtomicAdd; op <= baseline.AtomicCompareExchange; op++ {
		atomicOps[op.String()] = op
	}
}

// atomic parses the atomic accesses, named after their memory type:
//
//	i32.atomic.load dst base index offset
//	i64.atomic.store32 base index offset src
//	i32.atomic.rmw8.add_u result base index offset value
//	i64.atomic.rmw.cmpxchg result base index offset expected new
func (p *parser) atomic(prefix, rest string, args []field) (baseline.Operation, error) {
	if t, ok := baseline.LoadTypeByName(prefix + "." + rest); ok {
		if err := want(args, 4); err != nil {
			return nil, err
		}
		o := &baseline.OperationAtomicLoad{Type: t}
		var err error
		if o.Dst, err = valueReg(args[0], t.ValueKind()); err != nil {
			return nil, err
		}
		if o.Base, o.Index, o.Offset, err = address(args[1:]); err != nil {
			return nil, err
		}
		return o, nil
	}
	if t, ok := baseline.StoreTypeByName(prefix + "." + rest); ok {
		if err := want(args, 4); err != nil {
			return nil, err
		}
		o := &baseline.OperationAtomicStore{Type: t}
		var err error
		if o.Base, o.Index, o.Offset, err = address(args[:3]); err != nil {
			return nil, err
		}
		if o.Src, err = valueReg(args[3], t.ValueKind()); err != nil {
			return nil, err
		}
		return o, nil
	}

	width, name, ok := strings.Cut(rest, ".")
	if !ok || !strings.HasPrefix(width, "rmw") {
		return nil, unknownMnemonic(prefix + ".atomic." + rest)
	}
	t, ok := baseline.StoreTypeByName(prefix + ".store" + strings.TrimPrefix(width, "rmw"))
	if !ok {
		return nil, fmt.Errorf("invalid access width: %s", width)
	}
	if int32(t.Size()) < t.ValueKind().ElementSize() {
		// Sub-word accesses zero-extend: "add_u".
		name = strings.TrimSuffix(name, "_u")
	}
	op, ok := atomicOps[name]
	if !ok {
		return nil, unknownMnemonic(prefix + ".atomic." + rest)
	}

	n := 5
	if op == baseline.AtomicCompareExchange {
		n = 6
	}
	if err := want(args, n); err != nil {
		return nil, err
	}
	k := t.ValueKind()
	result, err := valueReg(args[0], k)
	if err != nil {
		return nil, err
	}
	base, index, offset, err := address(args[1:4])
	if err != nil {
		return nil, err
	}
	value, err := valueReg(args[4], k)
	if err != nil {
		return nil, err
	}
	if op != baseline.AtomicCompareExchange {
		return &baseline.OperationAtomicRMW{
			Op: op, Base: base, Index: index, Offset: offset,
			Value: value, Result: result, Type: t,
		}, nil
	}
	newValue, err := valueReg(args[5], k)
	if err != nil {
		return nil, err
	}
	return &baseline.OperationAtomicCompareExchange{
		Base: base, Index: index, Offset: offset,
		Expected: value, NewValue: newValue, Result: result, Type: t,
	}, nil
}
