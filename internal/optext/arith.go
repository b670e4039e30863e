package optext

import (
	"strings"

	"github.com/tetratelabs/baseline32/internal/engine/baseline"
)

var (
	intBinaryOps   = map[string]baseline.IntBinaryOp{}
	intUnaryOps    = map[string]baseline.IntUnaryOp{}
	divOps         = map[string]baseline.DivOp{}
	floatBinaryOps = map[string]baseline.FloatBinaryOp{}
	floatUnaryOps  = map[string]baseline.FloatUnaryOp{}
)

func init() {
	for op := baseline.IntAdd; op <= baseline.IntShrU; op++ {
		intBinaryOps[op.String()] = op
	}
	for op := baseline.IntClz; op <= baseline.IntExtend32S; op++ {
		intUnaryOps[op.String()] = op
	}
	for op := baseline.DivS; op <= baseline.RemU; op++ {
		divOps[op.String()] = op
	}
	for op := baseline.FloatAdd; op <= baseline.FloatCopySign; op++ {
		floatBinaryOps[op.String()] = op
	}
	for op := baseline.FloatAbs; op <= baseline.FloatNearest; op++ {
		floatUnaryOps[op.String()] = op
	}
}

// integer parses the i32 and i64 arithmetic:
//
//	i32.add dst lhs rhs
//	i64.shl_imm dst lhs imm
//	i64.div_s dst lhs rhs @div_by_zero @unrepresentable
//	i32.popcnt dst src
//	i64.lt_u dst lhs rhs
//	i32.sub_br_if_neg value imm @label
func (p *parser) integer(k baseline.ValueKind, rest string, args []field) (baseline.Operation, error) {
	i64 := k == baseline.KindI64
	if rest == "sub_br_if_neg" && !i64 {
		if err := want(args, 3); err != nil {
			return nil, err
		}
		o := &baseline.OperationI32SubImmJumpNegative{}
		var err error
		if o.Value, err = reg(args[0], baseline.RegClassGP); err != nil {
			return nil, err
		}
		if o.Imm, err = int32Operand(args[1]); err != nil {
			return nil, err
		}
		if o.Label, err = p.labelOperand(args[2]); err != nil {
			return nil, err
		}
		return o, nil
	}

	if rest == "fill_half" && i64 {
		// i64.fill_half dst offset lo|hi
		if err := want(args, 3); err != nil {
			return nil, err
		}
		o := &baseline.OperationFillI64Half{}
		var err error
		if o.Dst, err = gpMachine(args[0]); err != nil {
			return nil, err
		}
		if o.Offset, err = int32Operand(args[1]); err != nil {
			return nil, err
		}
		switch args[2].text {
		case "lo":
		case "hi":
			o.Half = baseline.HighWord
		default:
			return nil, errorAt(args[2], "expected lo or hi, but parsed %s", args[2].text)
		}
		return o, nil
	}

	if name := strings.TrimSuffix(rest, "_imm"); name != rest {
		op, ok := intBinaryOps[name]
		if !ok {
			return nil, unknownMnemonic(k.String() + "." + rest)
		}
		if err := want(args, 3); err != nil {
			return nil, err
		}
		dst, err := valueReg(args[0], k)
		if err != nil {
			return nil, err
		}
		lhs, err := valueReg(args[1], k)
		if err != nil {
			return nil, err
		}
		if i64 {
			imm, err := int64Operand(args[2])
			if err != nil {
				return nil, err
			}
			return &baseline.OperationI64BinaryImm{Op: op, Dst: dst, Lhs: lhs, Imm: imm}, nil
		}
		imm, err := int32Operand(args[2])
		if err != nil {
			return nil, err
		}
		return &baseline.OperationI32BinaryImm{Op: op, Dst: dst, Lhs: lhs, Imm: imm}, nil
	}

	if op, ok := intBinaryOps[rest]; ok {
		dst, lhs, rhs, err := ternary(args, k, k, k)
		if err != nil {
			return nil, err
		}
		if i64 {
			return &baseline.OperationI64Binary{Op: op, Dst: dst, Lhs: lhs, Rhs: rhs}, nil
		}
		return &baseline.OperationI32Binary{Op: op, Dst: dst, Lhs: lhs, Rhs: rhs}, nil
	}

	if op, ok := divOps[rest]; ok {
		return p.div(k, op, args)
	}

	if op, ok := intUnaryOps[rest]; ok {
		if err := want(args, 2); err != nil {
			return nil, err
		}
		dstKind := k
		if op == baseline.IntEqz {
			dstKind = baseline.KindI32
		}
		dst, err := valueReg(args[0], dstKind)
		if err != nil {
			return nil, err
		}
		src, err := valueReg(args[1], k)
		if err != nil {
			return nil, err
		}
		if i64 {
			return &baseline.OperationI64Unary{Op: op, Dst: dst, Src: src}, nil
		}
		if op == baseline.IntExtend32S {
			return nil, unknownMnemonic(k.String() + "." + rest)
		}
		return &baseline.OperationI32Unary{Op: op, Dst: dst, Src: src}, nil
	}

	if cond, ok := baseline.ConditionByName(rest); ok {
		dst, lhs, rhs, err := ternary(args, baseline.KindI32, k, k)
		if err != nil {
			return nil, err
		}
		if i64 {
			return &baseline.OperationI64SetCond{Cond: cond, Dst: dst, Lhs: lhs, Rhs: rhs}, nil
		}
		return &baseline.OperationI32SetCond{Cond: cond, Dst: dst, Lhs: lhs, Rhs: rhs}, nil
	}
	return nil, unknownMnemonic(k.String() + "." + rest)
}

// div parses "<k>.<div_op> dst lhs rhs @div_by_zero [@unrepresentable]". Only div_s needs the
// second label.
func (p *parser) div(k baseline.ValueKind, op baseline.DivOp, args []field) (baseline.Operation, error) {
	n := 4
	if op == baseline.DivS {
		n = 5
	}
	if err := want(args, n); err != nil {
		return nil, err
	}
	dst, lhs, rhs, err := ternary(args[:3], k, k, k)
	if err != nil {
		return nil, err
	}
	divByZero, err := p.labelOperand(args[3])
	if err != nil {
		return nil, err
	}
	unrepresentable := divByZero
	if op == baseline.DivS {
		if unrepresentable, err = p.labelOperand(args[4]); err != nil {
			return nil, err
		}
	}
	if k == baseline.KindI64 {
		return &baseline.OperationI64Div{Op: op, Dst: dst, Lhs: lhs, Rhs: rhs, DivByZero: divByZero, Unrepresentable: unrepresentable}, nil
	}
	return &baseline.OperationI32Div{Op: op, Dst: dst, Lhs: lhs, Rhs: rhs, DivByZero: divByZero, Unrepresentable: unrepresentable}, nil
}

// floatConditions accepts the short names of the ordered comparisons.
var floatConditions = map[string]baseline.Condition{
	"lt": baseline.CondLessThan,
	"le": baseline.CondLessEqual,
	"gt": baseline.CondGreaterThan,
	"ge": baseline.CondGreaterEqual,
}

// float parses the f32 and f64 arithmetic:
//
//	f64.add dst lhs rhs
//	f32.sqrt dst src
//	f64.lt dst lhs rhs
//	f32.set_if_nan addr src
func (p *parser) float(k baseline.ValueKind, rest string, args []field) (baseline.Operation, error) {
	if op, ok := floatBinaryOps[rest]; ok {
		dst, lhs, rhs, err := ternary(args, k, k, k)
		if err != nil {
			return nil, err
		}
		return &baseline.OperationFloatBinary{Type: k, Op: op, Dst: dst, Lhs: lhs, Rhs: rhs}, nil
	}
	if op, ok := floatUnaryOps[rest]; ok {
		if err := want(args, 2); err != nil {
			return nil, err
		}
		dst, err := valueReg(args[0], k)
		if err != nil {
			return nil, err
		}
		src, err := valueReg(args[1], k)
		if err != nil {
			return nil, err
		}
		return &baseline.OperationFloatUnary{Type: k, Op: op, Dst: dst, Src: src}, nil
	}
	if rest == "set_if_nan" {
		if err := want(args, 2); err != nil {
			return nil, err
		}
		addr, err := gpMachine(args[0])
		if err != nil {
			return nil, err
		}
		src, err := valueReg(args[1], k)
		if err != nil {
			return nil, err
		}
		return &baseline.OperationSetIfNaN{Dst: addr, Src: src, Type: k}, nil
	}

	cond, ok := floatConditions[rest]
	if !ok {
		cond, ok = baseline.ConditionByName(rest)
	}
	// Floats have no unsigned comparisons.
	if !ok || cond >= baseline.CondUnsignedLessThan {
		return nil, unknownMnemonic(k.String() + "." + rest)
	}
	dst, lhs, rhs, err := ternary(args, baseline.KindI32, k, k)
	if err != nil {
		return nil, err
	}
	return &baseline.OperationFloatSetCond{Type: k, Cond: cond, Dst: dst, Lhs: lhs, Rhs: rhs}, nil
}

// convert parses "<conversion> dst src [@trap]". The trap label is required by the trapping
// float to integer truncations.
func (p *parser) convert(op baseline.ConvertOp, args []field) (baseline.Operation, error) {
	if len(args) != 2 && len(args) != 3 {
		return nil, operandCount(2, len(args))
	}
	name := op.String()
	to, from := kindPrefix(name), kindSuffix(name)
	dst, err := valueReg(args[0], to)
	if err != nil {
		return nil, err
	}
	src, err := valueReg(args[1], from)
	if err != nil {
		return nil, err
	}
	o := &baseline.OperationConvert{Op: op, Dst: dst, Src: src}
	traps := strings.Contains(name, ".trunc_f")
	switch {
	case len(args) == 3:
		if o.Trap, err = p.labelOperand(args[2]); err != nil {
			return nil, err
		}
	case traps:
		return nil, operandCount(3, len(args))
	}
	return o, nil
}

// kindPrefix returns the result kind of the conversion, such as i64 for "i64.extend_i32_s".
func kindPrefix(name string) baseline.ValueKind {
	return kinds[name[:3]]
}

// kindSuffix returns the source kind of the conversion, such as i32 for "i64.extend_i32_s".
func kindSuffix(name string) baseline.ValueKind {
	for _, candidate := range []string{"i32", "i64", "f32", "f64"} {
		if strings.Contains(name[3:], candidate) {
			return kinds[candidate]
		}
	}
	return kinds[name[:3]]
}

// ternary parses "dst lhs rhs" registers of the kinds.
func ternary(args []field, dstKind, lhsKind, rhsKind baseline.ValueKind) (dst, lhs, rhs baseline.Reg, err error) {
	if err = want(args, 3); err != nil {
		return
	}
	if dst, err = valueReg(args[0], dstKind); err != nil {
		return
	}
	if lhs, err = valueReg(args[1], lhsKind); err != nil {
		return
	}
	rhs, err = valueReg(args[2], rhsKind)
	return
}
