package optext

import (
	"strconv"

	"github.com/tetratelabs/baseline32/internal/engine/baseline"
)

var (
	v128ShiftOps = map[string]baseline.V128ShiftOp{}
	v128TestOps  = map[string]baseline.V128TestOp{}
)

func init() {
	for op := baseline.V128Shl; op <= baseline.V128ShrU; op++ {
		v128ShiftOps[op.String()] = op
	}
	for op := baseline.V128AnyTrue; op <= baseline.V128Bitmask; op++ {
		v128TestOps[op.String()] = op
	}
}

// laneKind returns the kind of the scalar lanes of the shape.
func laneKind(s baseline.Shape) baseline.ValueKind {
	switch s {
	case baseline.ShapeI64x2:
		return baseline.KindI64
	case baseline.ShapeF32x4:
		return baseline.KindF32
	case baseline.ShapeF64x2:
		return baseline.KindF64
	}
	return baseline.KindI32
}

// v128 parses the operations which ignore the lane shape:
//
//	v128.const dst lo hi
//	v128.not dst src
//	v128.and dst lhs rhs
//	v128.bitselect dst src1 src2 mask
//	v128.any_true dst src
//	v128.load8x8_s dst base index offset
//	v128.load32_lane dst src base index offset lane
//	v128.store16_lane base index offset src lane
func (p *parser) v128(rest string, args []field) (baseline.Operation, error) {
	s128 := baseline.KindS128
	switch rest {
	case "const":
		if err := want(args, 3); err != nil {
			return nil, err
		}
		dst, err := valueReg(args[0], s128)
		if err != nil {
			return nil, err
		}
		lo, err := int64Operand(args[1])
		if err != nil {
			return nil, err
		}
		hi, err := int64Operand(args[2])
		if err != nil {
			return nil, err
		}
		return &baseline.OperationV128Const{Dst: dst, Lo: uint64(lo), Hi: uint64(hi)}, nil
	case "not":
		if err := want(args, 2); err != nil {
			return nil, err
		}
		dst, err := valueReg(args[0], s128)
		if err != nil {
			return nil, err
		}
		src, err := valueReg(args[1], s128)
		if err != nil {
			return nil, err
		}
		return &baseline.OperationV128Unary{Op: baseline.V128Not, Shape: baseline.ShapeI8x16, Dst: dst, Src: src}, nil
	case "and", "or", "xor", "andnot":
		op, _ := baseline.V128BinaryOpByName(rest)
		dst, lhs, rhs, err := ternary(args, s128, s128, s128)
		if err != nil {
			return nil, err
		}
		return &baseline.OperationV128Binary{Op: op, Shape: baseline.ShapeI8x16, Dst: dst, Lhs: lhs, Rhs: rhs}, nil
	case "bitselect":
		if err := want(args, 4); err != nil {
			return nil, err
		}
		o := &baseline.OperationV128Bitselect{}
		for i, r := range []*baseline.Reg{&o.Dst, &o.Src1, &o.Src2, &o.Mask} {
			var err error
			if *r, err = valueReg(args[i], s128); err != nil {
				return nil, err
			}
		}
		return o, nil
	case "any_true":
		return p.test(baseline.V128AnyTrue, baseline.ShapeI8x16, args)
	}
	if t, ok := laneLoads[rest]; ok {
		return p.loadLane(t, args)
	}
	if t, ok := laneStores[rest]; ok {
		return p.storeLane(t, args)
	}
	if tr, ok := loadTransforms[rest]; ok {
		if err := want(args, 4); err != nil {
			return nil, err
		}
		o := &baseline.OperationLoadTransform{Type: tr.t, Transform: tr.transform}
		var err error
		if o.Dst, err = valueReg(args[0], s128); err != nil {
			return nil, err
		}
		if o.Base, o.Index, o.Offset, err = address(args[1:]); err != nil {
			return nil, err
		}
		return o, nil
	}
	return nil, unknownMnemonic("v128." + rest)
}

type loadTransform struct {
	t         baseline.LoadType
	transform baseline.LoadTransform
}

// loadTransforms are the v128 loads of less than 16 bytes, named after the type of each
// loaded lane.
var loadTransforms = map[string]loadTransform{
	"load8x8_s":    {baseline.LoadI64_8S, baseline.LoadTransformExtend},
	"load8x8_u":    {baseline.LoadI64_8U, baseline.LoadTransformExtend},
	"load16x4_s":   {baseline.LoadI64_16S, baseline.LoadTransformExtend},
	"load16x4_u":   {baseline.LoadI64_16U, baseline.LoadTransformExtend},
	"load32x2_s":   {baseline.LoadI64_32S, baseline.LoadTransformExtend},
	"load32x2_u":   {baseline.LoadI64_32U, baseline.LoadTransformExtend},
	"load8_splat":  {baseline.LoadI32_8U, baseline.LoadTransformSplat},
	"load16_splat": {baseline.LoadI32_16U, baseline.LoadTransformSplat},
	"load32_splat": {baseline.LoadI32, baseline.LoadTransformSplat},
	"load64_splat": {baseline.LoadI64, baseline.LoadTransformSplat},
	"load32_zero":  {baseline.LoadI32, baseline.LoadTransformZero},
	"load64_zero":  {baseline.LoadI64, baseline.LoadTransformZero},
}

var (
	laneLoads = map[string]baseline.LoadType{
		"load8_lane":  baseline.LoadI32_8U,
		"load16_lane": baseline.LoadI32_16U,
		"load32_lane": baseline.LoadI32,
		"load64_lane": baseline.LoadI64,
	}
	laneStores = map[string]baseline.StoreType{
		"store8_lane":  baseline.StoreI32_8,
		"store16_lane": baseline.StoreI32_16,
		"store32_lane": baseline.StoreI32,
		"store64_lane": baseline.StoreI64,
	}
)

// laneShape returns the integer shape whose lanes are size bytes wide.
func laneShape(size int) baseline.Shape {
	switch size {
	case 1:
		return baseline.ShapeI8x16
	case 2:
		return baseline.ShapeI16x8
	case 4:
		return baseline.ShapeI32x4
	}
	return baseline.ShapeI64x2
}

// loadLane parses "v128.load<N>_lane dst src base index offset lane".
func (p *parser) loadLane(t baseline.LoadType, args []field) (baseline.Operation, error) {
	if err := want(args, 6); err != nil {
		return nil, err
	}
	o := &baseline.OperationLoadLane{Type: t}
	var err error
	if o.Dst, err = valueReg(args[0], baseline.KindS128); err != nil {
		return nil, err
	}
	if o.Src, err = valueReg(args[1], baseline.KindS128); err != nil {
		return nil, err
	}
	if o.Base, o.Index, o.Offset, err = address(args[2:5]); err != nil {
		return nil, err
	}
	if o.Lane, err = lane(args[5], laneShape(t.Size())); err != nil {
		return nil, err
	}
	return o, nil
}

// storeLane parses "v128.store<N>_lane base index offset src lane".
func (p *parser) storeLane(t baseline.StoreType, args []field) (baseline.Operation, error) {
	if err := want(args, 5); err != nil {
		return nil, err
	}
	o := &baseline.OperationStoreLane{Type: t}
	var err error
	if o.Base, o.Index, o.Offset, err = address(args[:3]); err != nil {
		return nil, err
	}
	if o.Src, err = valueReg(args[3], baseline.KindS128); err != nil {
		return nil, err
	}
	if o.Lane, err = lane(args[4], laneShape(t.Size())); err != nil {
		return nil, err
	}
	return o, nil
}

// simd parses the operations of a lane shape:
//
//	i32x4.splat dst src
//	i8x16.extract_lane_s dst src lane
//	f64x2.replace_lane dst src1 src2 lane
//	i16x8.add_sat_s dst lhs rhs
//	f32x4.ceil dst src
//	i64x2.shl dst src amount
//	i32x4.all_true dst src
//	f32x4.set_if_nan addr src
//	i8x16.shuffle dst lhs rhs lane0 ... lane15
func (p *parser) simd(shape baseline.Shape, rest string, args []field) (baseline.Operation, error) {
	s128 := baseline.KindS128
	switch rest {
	case "splat":
		if err := want(args, 2); err != nil {
			return nil, err
		}
		dst, err := valueReg(args[0], s128)
		if err != nil {
			return nil, err
		}
		src, err := valueReg(args[1], laneKind(shape))
		if err != nil {
			return nil, err
		}
		return &baseline.OperationV128Splat{Shape: shape, Dst: dst, Src: src}, nil
	case "extract_lane", "extract_lane_s", "extract_lane_u":
		if err := want(args, 3); err != nil {
			return nil, err
		}
		o := &baseline.OperationV128ExtractLane{Shape: shape, Signed: rest == "extract_lane_s"}
		var err error
		if o.Dst, err = valueReg(args[0], laneKind(shape)); err != nil {
			return nil, err
		}
		if o.Src, err = valueReg(args[1], s128); err != nil {
			return nil, err
		}
		if o.Lane, err = lane(args[2], shape); err != nil {
			return nil, err
		}
		return o, nil
	case "replace_lane":
		if err := want(args, 4); err != nil {
			return nil, err
		}
		o := &baseline.OperationV128ReplaceLane{Shape: shape}
		var err error
		if o.Dst, err = valueReg(args[0], s128); err != nil {
			return nil, err
		}
		if o.Src1, err = valueReg(args[1], s128); err != nil {
			return nil, err
		}
		if o.Src2, err = valueReg(args[2], laneKind(shape)); err != nil {
			return nil, err
		}
		if o.Lane, err = lane(args[3], shape); err != nil {
			return nil, err
		}
		return o, nil
	case "set_if_nan":
		if !shape.IsFloat() {
			break
		}
		if err := want(args, 2); err != nil {
			return nil, err
		}
		addr, err := gpMachine(args[0])
		if err != nil {
			return nil, err
		}
		src, err := valueReg(args[1], s128)
		if err != nil {
			return nil, err
		}
		return &baseline.OperationS128SetIfNaN{Dst: addr, Src: src, Shape: shape}, nil
	case "shuffle":
		if shape != baseline.ShapeI8x16 {
			break
		}
		if err := want(args, 19); err != nil {
			return nil, err
		}
		o := &baseline.OperationV128Shuffle{}
		var err error
		if o.Dst, o.Lhs, o.Rhs, err = ternary(args[:3], s128, s128, s128); err != nil {
			return nil, err
		}
		for i, f := range args[3:] {
			v, err := uint8Operand(f)
			if err != nil || v >= 32 {
				return nil, errorAt(f, "invalid shuffle lane: %s", f.text)
			}
			o.Lanes[i] = v
		}
		return o, nil
	}

	if op, ok := v128ShiftOps[rest]; ok {
		if err := want(args, 3); err != nil {
			return nil, err
		}
		dst, err := valueReg(args[0], s128)
		if err != nil {
			return nil, err
		}
		src, err := valueReg(args[1], s128)
		if err != nil {
			return nil, err
		}
		if _, isReg := registers[args[2].text]; isReg {
			amount, err := reg(args[2], baseline.RegClassGP)
			if err != nil {
				return nil, err
			}
			return &baseline.OperationV128Shift{Op: op, Shape: shape, Dst: dst, Src: src, Amount: amount}, nil
		}
		amount, err := int32Operand(args[2])
		if err != nil {
			return nil, err
		}
		return &baseline.OperationV128ShiftImm{Op: op, Shape: shape, Dst: dst, Src: src, Amount: amount}, nil
	}
	if op, ok := v128TestOps[rest]; ok {
		return p.test(op, shape, args)
	}
	if op, ok := baseline.V128BinaryOpByName(rest); ok {
		dst, lhs, rhs, err := ternary(args, s128, s128, s128)
		if err != nil {
			return nil, err
		}
		return &baseline.OperationV128Binary{Op: op, Shape: shape, Dst: dst, Lhs: lhs, Rhs: rhs}, nil
	}
	if op, ok := baseline.V128UnaryOpByName(rest); ok {
		if err := want(args, 2); err != nil {
			return nil, err
		}
		dst, err := valueReg(args[0], s128)
		if err != nil {
			return nil, err
		}
		src, err := valueReg(args[1], s128)
		if err != nil {
			return nil, err
		}
		return &baseline.OperationV128Unary{Op: op, Shape: shape, Dst: dst, Src: src}, nil
	}
	return nil, unknownMnemonic(shape.String() + "." + rest)
}

func (p *parser) test(op baseline.V128TestOp, shape baseline.Shape, args []field) (baseline.Operation, error) {
	if err := want(args, 2); err != nil {
		return nil, err
	}
	dst, err := valueReg(args[0], baseline.KindI32)
	if err != nil {
		return nil, err
	}
	src, err := valueReg(args[1], baseline.KindS128)
	if err != nil {
		return nil, err
	}
	return &baseline.OperationV128Test{Op: op, Shape: shape, Dst: dst, Src: src}, nil
}

// lane parses a lane index of the shape.
func lane(f field, shape baseline.Shape) (uint8, error) {
	v, err := strconv.ParseUint(f.text, 0, 8)
	if err != nil || int(v) >= shape.Lanes() {
		return 0, errorAt(f, "invalid %s lane: %s", shape, f.text)
	}
	return uint8(v), nil
}
