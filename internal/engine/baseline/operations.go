package baseline

import (
	"fmt"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

// Operation is an instruction of the operation stream lowered by Compiler.Lower.
// The set of operations is closed: only the Operation* types of this package implement it.
type Operation interface {
	// Kind returns the kind of the operation.
	Kind() OperationKind
	isOperation()
}

// OperationKind is the kind of each implementation of Operation interface.
type OperationKind uint16

// IntBinaryOp is the operator of OperationI32Binary and OperationI64Binary.
type IntBinaryOp byte

const (
	IntAdd IntBinaryOp = iota
	IntSub
	IntMul
	IntAnd
	IntOr
	IntXor
	IntShl
	IntShrS
	IntShrU
)

var intBinaryOpNames = [...]string{"add", "sub", "mul", "and", "or", "xor", "shl", "shr_s", "shr_u"}

// String implements fmt.Stringer.
func (o IntBinaryOp) String() string { return intBinaryOpNames[o] }

// IntUnaryOp is the operator of OperationI32Unary and OperationI64Unary.
type IntUnaryOp byte

const (
	IntClz IntUnaryOp = iota
	IntCtz
	IntPopcnt
	IntEqz
	IntExtend8S
	IntExtend16S
	// IntExtend32S is only valid for i64.
	IntExtend32S
)

var intUnaryOpNames = [...]string{"clz", "ctz", "popcnt", "eqz", "extend8_s", "extend16_s", "extend32_s"}

// String implements fmt.Stringer.
func (o IntUnaryOp) String() string { return intUnaryOpNames[o] }

// DivOp is the operator of OperationI32Div and OperationI64Div.
type DivOp byte

const (
	DivS DivOp = iota
	DivU
	RemS
	RemU
)

var divOpNames = [...]string{"div_s", "div_u", "rem_s", "rem_u"}

// String implements fmt.Stringer.
func (o DivOp) String() string { return divOpNames[o] }

// FloatBinaryOp is the operator of OperationFloatBinary.
type FloatBinaryOp byte

const (
	FloatAdd FloatBinaryOp = iota
	FloatSub
	FloatMul
	FloatDiv
	FloatMin
	FloatMax
	FloatCopySign
)

var floatBinaryOpNames = [...]string{"add", "sub", "mul", "div", "min", "max", "copysign"}

// String implements fmt.Stringer.
func (o FloatBinaryOp) String() string { return floatBinaryOpNames[o] }

// FloatUnaryOp is the operator of OperationFloatUnary.
type FloatUnaryOp byte

const (
	FloatAbs FloatUnaryOp = iota
	FloatNeg
	FloatSqrt
	FloatCeil
	FloatFloor
	FloatTrunc
	FloatNearest
)

var floatUnaryOpNames = [...]string{"abs", "neg", "sqrt", "ceil", "floor", "trunc", "nearest"}

// String implements fmt.Stringer.
func (o FloatUnaryOp) String() string { return floatUnaryOpNames[o] }

// ConvertOp is the conversion of OperationConvert.
type ConvertOp byte

const (
	ConvI32WrapI64 ConvertOp = iota
	ConvI32TruncF32S
	ConvI32TruncF32U
	ConvI32TruncF64S
	ConvI32TruncF64U
	ConvI32TruncSatF32S
	ConvI32TruncSatF32U
	ConvI32TruncSatF64S
	ConvI32TruncSatF64U
	ConvI32ReinterpretF32
	ConvI64ExtendI32S
	ConvI64ExtendI32U
	ConvI64TruncF32S
	ConvI64TruncF32U
	ConvI64TruncF64S
	ConvI64TruncF64U
	ConvI64TruncSatF32S
	ConvI64TruncSatF32U
	ConvI64TruncSatF64S
	ConvI64TruncSatF64U
	ConvI64ReinterpretF64
	ConvF32ConvertI32S
	ConvF32ConvertI32U
	ConvF32ConvertI64S
	ConvF32ConvertI64U
	ConvF32DemoteF64
	ConvF32ReinterpretI32
	ConvF64ConvertI32S
	ConvF64ConvertI32U
	ConvF64ConvertI64S
	ConvF64ConvertI64U
	ConvF64PromoteF32
	ConvF64ReinterpretI64
	convEnd
)

var convertOpNames = [convEnd]string{
	"i32.wrap_i64", "i32.trunc_f32_s", "i32.trunc_f32_u", "i32.trunc_f64_s", "i32.trunc_f64_u",
	"i32.trunc_sat_f32_s", "i32.trunc_sat_f32_u", "i32.trunc_sat_f64_s", "i32.trunc_sat_f64_u", "i32.reinterpret_f32",
	"i64.extend_i32_s", "i64.extend_i32_u", "i64.trunc_f32_s", "i64.trunc_f32_u", "i64.trunc_f64_s", "i64.trunc_f64_u",
	"i64.trunc_sat_f32_s", "i64.trunc_sat_f32_u", "i64.trunc_sat_f64_s", "i64.trunc_sat_f64_u", "i64.reinterpret_f64",
	"f32.convert_i32_s", "f32.convert_i32_u", "f32.convert_i64_s", "f32.convert_i64_u", "f32.demote_f64", "f32.reinterpret_i32",
	"f64.convert_i32_s", "f64.convert_i32_u", "f64.convert_i64_s", "f64.convert_i64_u", "f64.promote_f32", "f64.reinterpret_i64",
}

// String implements fmt.Stringer.
func (o ConvertOp) String() string { return convertOpNames[o] }

// ConvertOpByName returns the conversion of the given name, such as "i32.wrap_i64".
func ConvertOpByName(name string) (ConvertOp, bool) {
	for i, n := range convertOpNames {
		if n == name {
			return ConvertOp(i), true
		}
	}
	return 0, false
}

// LoadType is the memory type of a load.
type LoadType byte

const (
	LoadI32 LoadType = iota
	LoadI32_8S
	LoadI32_8U
	LoadI32_16S
	LoadI32_16U
	LoadI64
	LoadI64_8S
	LoadI64_8U
	LoadI64_16S
	LoadI64_16U
	LoadI64_32S
	LoadI64_32U
	LoadF32
	LoadF64
	LoadS128
	loadTypeEnd
)

var loadTypeNames = [loadTypeEnd]string{
	"i32.load", "i32.load8_s", "i32.load8_u", "i32.load16_s", "i32.load16_u",
	"i64.load", "i64.load8_s", "i64.load8_u", "i64.load16_s", "i64.load16_u", "i64.load32_s", "i64.load32_u",
	"f32.load", "f64.load", "v128.load",
}

// String implements fmt.Stringer.
func (t LoadType) String() string { return loadTypeNames[t] }

// LoadTypeByName returns the load type of the given name, such as "i64.load8_u".
func LoadTypeByName(name string) (LoadType, bool) {
	for i, n := range loadTypeNames {
		if n == name {
			return LoadType(i), true
		}
	}
	return 0, false
}

// Size returns the number of bytes read from memory.
func (t LoadType) Size() int {
	switch t {
	case LoadI32_8S, LoadI32_8U, LoadI64_8S, LoadI64_8U:
		return 1
	case LoadI32_16S, LoadI32_16U, LoadI64_16S, LoadI64_16U:
		return 2
	case LoadI64, LoadF64:
		return 8
	case LoadS128:
		return 16
	}
	return 4
}

// ValueKind returns the kind of the loaded value.
func (t LoadType) ValueKind() ValueKind {
	switch t {
	case LoadI64, LoadI64_8S, LoadI64_8U, LoadI64_16S, LoadI64_16U, LoadI64_32S, LoadI64_32U:
		return KindI64
	case LoadF32:
		return KindF32
	case LoadF64:
		return KindF64
	case LoadS128:
		return KindS128
	}
	return KindI32
}

// StoreType is the memory type of a store.
type StoreType byte

const (
	StoreI32 StoreType = iota
	StoreI32_8
	StoreI32_16
	StoreI64
	StoreI64_8
	StoreI64_16
	StoreI64_32
	StoreF32
	StoreF64
	StoreS128
	storeTypeEnd
)

var storeTypeNames = [storeTypeEnd]string{
	"i32.store", "i32.store8", "i32.store16", "i64.store", "i64.store8", "i64.store16", "i64.store32",
	"f32.store", "f64.store", "v128.store",
}

// String implements fmt.Stringer.
func (t StoreType) String() string { return storeTypeNames[t] }

// StoreTypeByName returns the store type of the given name, such as "i64.store32".
func StoreTypeByName(name string) (StoreType, bool) {
	for i, n := range storeTypeNames {
		if n == name {
			return StoreType(i), true
		}
	}
	return 0, false
}

// Size returns the number of bytes written to memory.
func (t StoreType) Size() int {
	switch t {
	case StoreI32_8, StoreI64_8:
		return 1
	case StoreI32_16, StoreI64_16:
		return 2
	case StoreI64, StoreF64:
		return 8
	case StoreS128:
		return 16
	}
	return 4
}

// ValueKind returns the kind of the stored value.
func (t StoreType) ValueKind() ValueKind {
	switch t {
	case StoreI64, StoreI64_8, StoreI64_16, StoreI64_32:
		return KindI64
	case StoreF32:
		return KindF32
	case StoreF64:
		return KindF64
	case StoreS128:
		return KindS128
	}
	return KindI32
}

// AtomicOp is the operator of OperationAtomicRMW.
type AtomicOp byte

const (
	AtomicAdd AtomicOp = iota
	AtomicSub
	AtomicAnd
	AtomicOr
	AtomicXor
	AtomicExchange
	AtomicCompareExchange
)

var atomicOpNames = [...]string{"add", "sub", "and", "or", "xor", "xchg", "cmpxchg"}

// String implements fmt.Stringer.
func (o AtomicOp) String() string { return atomicOpNames[o] }

// Shape is the lane interpretation of an S128 value.
type Shape byte

const (
	ShapeI8x16 Shape = iota
	ShapeI16x8
	ShapeI32x4
	ShapeI64x2
	ShapeF32x4
	ShapeF64x2
)

var shapeNames = [...]string{"i8x16", "i16x8", "i32x4", "i64x2", "f32x4", "f64x2"}

// String implements fmt.Stringer.
func (s Shape) String() string { return shapeNames[s] }

// ShapeByName returns the shape of the given name, such as "i16x8".
func ShapeByName(name string) (Shape, bool) {
	for i, n := range shapeNames {
		if n == name {
			return Shape(i), true
		}
	}
	return 0, false
}

// Lanes returns the number of lanes.
func (s Shape) Lanes() int {
	return 16 / s.LaneSize()
}

// LaneSize returns the size of a lane in bytes.
func (s Shape) LaneSize() int {
	switch s {
	case ShapeI8x16:
		return 1
	case ShapeI16x8:
		return 2
	case ShapeI32x4, ShapeF32x4:
		return 4
	}
	return 8
}

// IsFloat returns true for float lanes.
func (s Shape) IsFloat() bool {
	return s == ShapeF32x4 || s == ShapeF64x2
}

// sew returns the element width of the lanes.
func (s Shape) sew() riscv32.SEW {
	switch s.LaneSize() {
	case 1:
		return riscv32.E8
	case 2:
		return riscv32.E16
	case 4:
		return riscv32.E32
	}
	return riscv32.E64
}

// V128BinaryOp is the operator of OperationV128Binary.
type V128BinaryOp byte

const (
	V128Add V128BinaryOp = iota
	V128Sub
	V128Mul
	V128Div
	V128AddSatS
	V128AddSatU
	V128SubSatS
	V128SubSatU
	V128MinS
	V128MinU
	V128MaxS
	V128MaxU
	V128Min
	V128Max
	V128Pmin
	V128Pmax
	V128Eq
	V128Ne
	V128LtS
	V128LtU
	V128LeS
	V128LeU
	V128GtS
	V128GtU
	V128GeS
	V128GeU
	V128And
	V128Or
	V128Xor
	V128AndNot
	V128NarrowS
	V128NarrowU
	V128ExtMulLowS
	V128ExtMulLowU
	V128ExtMulHighS
	V128ExtMulHighU
	V128Swizzle
	V128Q15MulRSatS
	V128Dot
	V128AvgrU
	v128BinaryEnd
)

var v128BinaryOpNames = [v128BinaryEnd]string{
	"add", "sub", "mul", "div", "add_sat_s", "add_sat_u", "sub_sat_s", "sub_sat_u",
	"min_s", "min_u", "max_s", "max_u", "min", "max", "pmin", "pmax",
	"eq", "ne", "lt_s", "lt_u", "le_s", "le_u", "gt_s", "gt_u", "ge_s", "ge_u",
	"and", "or", "xor", "andnot", "narrow_s", "narrow_u",
	"extmul_low_s", "extmul_low_u", "extmul_high_s", "extmul_high_u",
	"swizzle", "q15mulr_sat_s", "dot", "avgr_u",
}

// String implements fmt.Stringer.
func (o V128BinaryOp) String() string { return v128BinaryOpNames[o] }

// V128BinaryOpByName returns the operator of the given name, such as "add_sat_s".
func V128BinaryOpByName(name string) (V128BinaryOp, bool) {
	for i, n := range v128BinaryOpNames {
		if n == name {
			return V128BinaryOp(i), true
		}
	}
	return 0, false
}

// V128UnaryOp is the operator of OperationV128Unary.
type V128UnaryOp byte

const (
	V128Neg V128UnaryOp = iota
	V128Abs
	V128Not
	V128Sqrt
	V128Ceil
	V128Floor
	V128Trunc
	V128Nearest
	V128Popcnt
	V128ExtendLowS
	V128ExtendLowU
	V128ExtendHighS
	V128ExtendHighU
	V128TruncSatS
	V128TruncSatU
	V128ConvertS
	V128ConvertU
	V128ConvertLowS
	V128ConvertLowU
	V128DemoteZero
	V128PromoteLow
	V128ExtAddPairwiseS
	V128ExtAddPairwiseU
	v128UnaryEnd
)

var v128UnaryOpNames = [v128UnaryEnd]string{
	"neg", "abs", "not", "sqrt", "ceil", "floor", "trunc", "nearest", "popcnt",
	"extend_low_s", "extend_low_u", "extend_high_s", "extend_high_u",
	"trunc_sat_s", "trunc_sat_u", "convert_s", "convert_u", "convert_low_s", "convert_low_u",
	"demote_zero", "promote_low", "extadd_pairwise_s", "extadd_pairwise_u",
}

// String implements fmt.Stringer.
func (o V128UnaryOp) String() string { return v128UnaryOpNames[o] }

// V128UnaryOpByName returns the operator of the given name, such as "extend_low_s".
func V128UnaryOpByName(name string) (V128UnaryOp, bool) {
	for i, n := range v128UnaryOpNames {
		if n == name {
			return V128UnaryOp(i), true
		}
	}
	return 0, false
}

// V128ShiftOp is the operator of OperationV128Shift and OperationV128ShiftImm.
type V128ShiftOp byte

const (
	V128Shl V128ShiftOp = iota
	V128ShrS
	V128ShrU
)

var v128ShiftOpNames = [...]string{"shl", "shr_s", "shr_u"}

// String implements fmt.Stringer.
func (o V128ShiftOp) String() string { return v128ShiftOpNames[o] }

// V128TestOp is the operator of OperationV128Test.
type V128TestOp byte

const (
	V128AnyTrue V128TestOp = iota
	V128AllTrue
	V128Bitmask
)

var v128TestOpNames = [...]string{"any_true", "all_true", "bitmask"}

// String implements fmt.Stringer.
func (o V128TestOp) String() string { return v128TestOpNames[o] }

// LoadTransform is the transformation of OperationLoadTransform.
type LoadTransform byte

const (
	// LoadTransformExtend loads 64 bits and extends each lane to twice its width.
	LoadTransformExtend LoadTransform = iota
	// LoadTransformZero loads one lane and zeroes the others.
	LoadTransformZero
	// LoadTransformSplat loads one lane and copies it to all the lanes.
	LoadTransformSplat
)

var loadTransformNames = [...]string{"extend", "zero", "splat"}

// String implements fmt.Stringer.
func (t LoadTransform) String() string { return loadTransformNames[t] }

// operation is embedded by every operation to close the set of implementations.
type operation struct{}

func (operation) isOperation() {}

// Integer operations.
type (
	// OperationI32Binary is `Dst = Lhs op Rhs` on i32 registers.
	OperationI32Binary struct {
		operation
		Op            IntBinaryOp
		Dst, Lhs, Rhs Reg
	}

	// OperationI32BinaryImm is `Dst = Lhs op Imm` on i32 registers. Mul is not supported.
	OperationI32BinaryImm struct {
		operation
		Op       IntBinaryOp
		Dst, Lhs Reg
		Imm      int32
	}

	// OperationI32Div is an i32 division or remainder which traps on a zero divisor and, for DivS,
	// on the unrepresentable INT_MIN / -1.
	OperationI32Div struct {
		operation
		Op                         DivOp
		Dst, Lhs, Rhs              Reg
		DivByZero, Unrepresentable *riscv32.Label
	}

	// OperationI32Unary is `Dst = op Src` on i32 registers.
	OperationI32Unary struct {
		operation
		Op       IntUnaryOp
		Dst, Src Reg
	}

	// OperationI32SetCond sets Dst to 1 if `Lhs cond Rhs`, otherwise to 0.
	OperationI32SetCond struct {
		operation
		Cond          Condition
		Dst, Lhs, Rhs Reg
	}

	// OperationI64Binary is `Dst = Lhs op Rhs` on register pairs. Shifts read the amount from
	// the low word of Rhs.
	OperationI64Binary struct {
		operation
		Op            IntBinaryOp
		Dst, Lhs, Rhs Reg
	}

	// OperationI64BinaryImm is `Dst = Lhs op Imm` on register pairs. Mul is not supported.
	OperationI64BinaryImm struct {
		operation
		Op       IntBinaryOp
		Dst, Lhs Reg
		Imm      int64
	}

	// OperationI64Div is an i64 division or remainder, lowered to a C call.
	OperationI64Div struct {
		operation
		Op                         DivOp
		Dst, Lhs, Rhs              Reg
		DivByZero, Unrepresentable *riscv32.Label
	}

	// OperationI64Unary is `Dst = op Src` on register pairs. The Dst of Eqz is a GP register.
	OperationI64Unary struct {
		operation
		Op       IntUnaryOp
		Dst, Src Reg
	}

	// OperationI64SetCond sets the GP register Dst to 1 if `Lhs cond Rhs` on register pairs.
	OperationI64SetCond struct {
		operation
		Cond          Condition
		Dst, Lhs, Rhs Reg
	}
)

// Float operations.
type (
	// OperationFloatBinary is `Dst = Lhs op Rhs` on f32 or f64 registers.
	OperationFloatBinary struct {
		operation
		Type          ValueKind
		Op            FloatBinaryOp
		Dst, Lhs, Rhs Reg
	}

	// OperationFloatUnary is `Dst = op Src` on f32 or f64 registers.
	OperationFloatUnary struct {
		operation
		Type     ValueKind
		Op       FloatUnaryOp
		Dst, Src Reg
	}

	// OperationFloatSetCond sets the GP register Dst to 1 if `Lhs cond Rhs`. Only the signed
	// conditions, eq and ne are valid.
	OperationFloatSetCond struct {
		operation
		Type          ValueKind
		Cond          Condition
		Dst, Lhs, Rhs Reg
	}

	// OperationConvert converts Src into Dst. Trapping conversions jump to Trap on invalid input.
	OperationConvert struct {
		operation
		Op       ConvertOp
		Dst, Src Reg
		Trap     *riscv32.Label
	}
)

// Memory operations. The address is Base + Index + Offset, where Index is optional.
type (
	// OperationLoad loads Dst from memory. ProtectedPC, when not nil, receives the offset of
	// the instruction which faults on out of bounds accesses.
	OperationLoad struct {
		operation
		Dst         Reg
		Base, Index asm.Register
		Offset      uint32
		Type        LoadType
		ProtectedPC *uint32
	}

	// OperationStore stores Src into memory.
	OperationStore struct {
		operation
		Base, Index asm.Register
		Offset      uint32
		Src         Reg
		Type        StoreType
		ProtectedPC *uint32
	}

	// OperationLoadTaggedPointer loads a reference field.
	OperationLoadTaggedPointer struct {
		operation
		Dst, Base, Index asm.Register
		Offset           int32
	}

	// OperationStoreTaggedPointer stores a reference field and calls the write barrier when the
	// page flags of the object and the value require it.
	OperationStoreTaggedPointer struct {
		operation
		Base, Index      asm.Register
		Offset           int32
		Src              asm.Register
		SkipWriteBarrier bool
	}

	// OperationLoadTransform loads memory into an S128 register with a transformation. Type is
	// the type of each loaded lane: LoadI64_8S reads 8 bytes into eight i16 lanes, LoadI32_8U
	// reads one byte for splat, LoadI32 or LoadI64 for zero.
	OperationLoadTransform struct {
		operation
		Dst         Reg
		Base, Index asm.Register
		Offset      uint32
		Type        LoadType
		Transform   LoadTransform
		ProtectedPC *uint32
	}

	// OperationLoadLane replaces the lane of Src with memory into Dst.
	OperationLoadLane struct {
		operation
		Dst, Src    Reg
		Base, Index asm.Register
		Offset      uint32
		Type        LoadType
		Lane        uint8
		ProtectedPC *uint32
	}

	// OperationStoreLane stores the lane of Src.
	OperationStoreLane struct {
		operation
		Base, Index asm.Register
		Offset      uint32
		Src         Reg
		Type        StoreType
		Lane        uint8
		ProtectedPC *uint32
	}

	// OperationLoadFromInstance loads a field of Size bytes of the instance.
	OperationLoadFromInstance struct {
		operation
		Dst, Instance asm.Register
		Offset        int32
		Size          int
	}
)

// Atomic operations. The address must be aligned to the access size.
type (
	// OperationAtomicLoad is a sequentially consistent load.
	OperationAtomicLoad struct {
		operation
		Dst         Reg
		Base, Index asm.Register
		Offset      uint32
		Type        LoadType
	}

	// OperationAtomicStore is a sequentially consistent store.
	OperationAtomicStore struct {
		operation
		Base, Index asm.Register
		Offset      uint32
		Src         Reg
		Type        StoreType
	}

	// OperationAtomicRMW applies Op to memory and Value, storing the old memory value in Result.
	OperationAtomicRMW struct {
		operation
		Op            AtomicOp
		Base, Index   asm.Register
		Offset        uint32
		Value, Result Reg
		Type          StoreType
	}

	// OperationAtomicCompareExchange stores NewValue if memory equals Expected. Result is the old
	// value.
	OperationAtomicCompareExchange struct {
		operation
		Base, Index                asm.Register
		Offset                     uint32
		Expected, NewValue, Result Reg
		Type                       StoreType
	}

	// OperationAtomicFence is a full memory barrier.
	OperationAtomicFence struct {
		operation
	}
)

// SIMD operations. S128 values live in vector registers, scalars in GP, pair or FP registers
// depending on the lane type.
type (
	// OperationV128Splat copies the scalar Src to every lane of Dst.
	OperationV128Splat struct {
		operation
		Shape    Shape
		Dst, Src Reg
	}

	// OperationV128ExtractLane copies the lane of Src to the scalar Dst. Signed selects the sign
	// extension of i8x16 and i16x8 lanes.
	OperationV128ExtractLane struct {
		operation
		Shape    Shape
		Signed   bool
		Dst, Src Reg
		Lane     uint8
	}

	// OperationV128ReplaceLane copies Src1 to Dst with the lane replaced by the scalar Src2.
	OperationV128ReplaceLane struct {
		operation
		Shape           Shape
		Dst, Src1, Src2 Reg
		Lane            uint8
	}

	// OperationV128Binary is `Dst = Lhs op Rhs` lane-wise. For narrowing, Shape is the source shape.
	// For extended multiplication, Shape is the result shape.
	OperationV128Binary struct {
		operation
		Op            V128BinaryOp
		Shape         Shape
		Dst, Lhs, Rhs Reg
	}

	// OperationV128Unary is `Dst = op Src` lane-wise. For extensions and conversions, Shape is the
	// result shape.
	OperationV128Unary struct {
		operation
		Op       V128UnaryOp
		Shape    Shape
		Dst, Src Reg
	}

	// OperationV128Shift shifts every lane by the GP register Amount modulo the lane width.
	OperationV128Shift struct {
		operation
		Op               V128ShiftOp
		Shape            Shape
		Dst, Src, Amount Reg
	}

	// OperationV128ShiftImm shifts every lane by Amount modulo the lane width.
	OperationV128ShiftImm struct {
		operation
		Op       V128ShiftOp
		Shape    Shape
		Dst, Src Reg
		Amount   int32
	}

	// OperationV128Test reduces the lanes of Src into the GP register Dst.
	OperationV128Test struct {
		operation
		Op       V128TestOp
		Shape    Shape
		Dst, Src Reg
	}

	// OperationV128Bitselect is `Dst = (Src1 & Mask) | (Src2 & ^Mask)`.
	OperationV128Bitselect struct {
		operation
		Dst, Src1, Src2, Mask Reg
	}

	// OperationV128Const materializes the 128-bit constant Hi:Lo.
	OperationV128Const struct {
		operation
		Dst    Reg
		Lo, Hi uint64
	}

	// OperationV128Shuffle selects bytes of Lhs and Rhs.
	OperationV128Shuffle struct {
		operation
		Dst, Lhs, Rhs Reg
		Lanes         [16]byte
	}
)

// Control operations.
type (
	// OperationLabel binds the label to the next instruction.
	OperationLabel struct {
		operation
		Label *riscv32.Label
	}

	// OperationJump jumps to the label.
	OperationJump struct {
		operation
		Label *riscv32.Label
	}

	// OperationJumpToRegister jumps to the address in Target.
	OperationJumpToRegister struct {
		operation
		Target asm.Register
	}

	// OperationCondJump jumps to the label if `Lhs cond Rhs`. Type is KindI32 or a reference kind,
	// and an invalid Rhs compares with zero.
	OperationCondJump struct {
		operation
		Cond     Condition
		Label    *riscv32.Label
		Type     ValueKind
		Lhs, Rhs Reg
	}

	// OperationI32CondJumpImm jumps to the label if `Lhs cond Imm`.
	OperationI32CondJumpImm struct {
		operation
		Cond  Condition
		Label *riscv32.Label
		Lhs   Reg
		Imm   int32
	}

	// OperationI32SubImmJumpNegative subtracts Imm from Value and jumps if the result is negative.
	OperationI32SubImmJumpNegative struct {
		operation
		Value Reg
		Imm   int32
		Label *riscv32.Label
	}

	// OperationSmiCheck jumps to the label if Src is a Smi, or if it is not when JumpIfNotSmi is
	// set. A Smi has the tag bits of SmiTagMask clear.
	OperationSmiCheck struct {
		operation
		Src          asm.Register
		Label        *riscv32.Label
		JumpIfNotSmi bool
	}

	// OperationSetIfNaN stores 1 to the i32 at address Dst if the float Src is a NaN.
	OperationSetIfNaN struct {
		operation
		Dst  asm.Register
		Src  Reg
		Type ValueKind
	}

	// OperationS128SetIfNaN stores 1 to the i32 at address Dst if any lane of Src is a NaN.
	OperationS128SetIfNaN struct {
		operation
		Dst   asm.Register
		Src   Reg
		Shape Shape
	}

	// OperationSelect is `Dst = Cond != 0 ? True : False`.
	OperationSelect struct {
		operation
		Type        ValueKind
		Dst         Reg
		Cond        asm.Register
		True, False Reg
	}

	// OperationStackCheck jumps to OOL when sp is at or below the limit stored at LimitAddress.
	// LimitAddress is clobbered.
	OperationStackCheck struct {
		operation
		OOL          *riscv32.Label
		LimitAddress asm.Register
	}

	// OperationTrap stops execution.
	OperationTrap struct {
		operation
	}

	// OperationDebugBreak stops execution in the debugger.
	OperationDebugBreak struct {
		operation
	}
)

// Call and stack operations.
type (
	// OperationCallC calls the external reference with a pointer to a stack buffer of StackBytes
	// bytes in a0, holding the Args of the Params kinds in order. The first of Rets receives the
	// i32 return value if HasReturn, the next one the OutArg kind read back from the buffer.
	OperationCallC struct {
		operation
		Params     []ValueKind
		Args       []Reg
		HasReturn  bool
		Rets       []Reg
		OutArg     ValueKind
		HasOutArg  bool
		StackBytes int32
		Target     ExternalReference
	}

	// OperationCallNative calls the function of the index.
	OperationCallNative struct {
		operation
		FunctionIndex uint32
	}

	// OperationTailCallNative jumps to the function of the index.
	OperationTailCallNative struct {
		operation
		FunctionIndex uint32
	}

	// OperationCallIndirect calls the address in Target, or the address popped from the stack
	// when Target is NilRegister.
	OperationCallIndirect struct {
		operation
		Target asm.Register
	}

	// OperationTailCallIndirect jumps to the address in Target, or the address popped from the
	// stack when Target is NilRegister.
	OperationTailCallIndirect struct {
		operation
		Target asm.Register
	}

	// OperationCallRuntimeStub calls the runtime stub.
	OperationCallRuntimeStub struct {
		operation
		Stub RuntimeStub
	}

	// OperationAllocateStackSlot reserves Size bytes on the stack and sets Addr to their address.
	OperationAllocateStackSlot struct {
		operation
		Addr asm.Register
		Size uint32
	}

	// OperationDeallocateStackSlot releases Size bytes of the stack.
	OperationDeallocateStackSlot struct {
		operation
		Size uint32
	}

	// OperationDropStackSlotsAndRet drops Slots words of the stack and returns.
	OperationDropStackSlotsAndRet struct {
		operation
		Slots uint32
	}

	// OperationEnterFrame builds the frame of the function.
	OperationEnterFrame struct {
		operation
	}

	// OperationLeaveFrame tears the frame of the function down.
	OperationLeaveFrame struct {
		operation
	}

	// OperationPrepareTailCall moves the frame for a tail call.
	OperationPrepareTailCall struct {
		operation
		NumCalleeStackParams, StackParamDelta int
	}

	// OperationPushRegisters saves the registers on the stack.
	OperationPushRegisters struct {
		operation
		Regs LivenessSet
	}

	// OperationPopRegisters restores the registers saved by OperationPushRegisters.
	OperationPopRegisters struct {
		operation
		Regs LivenessSet
	}

	// OperationConstructStackSlots pushes the outgoing stack parameters.
	OperationConstructStackSlots struct {
		operation
		Slots      *StackSlots
		ParamSlots int
	}
)

// Spill, fill and move operations. Offsets are bytes below fp.
type (
	// OperationSpill stores the register to the spill slot.
	OperationSpill struct {
		operation
		Offset int32
		Src    Reg
		Type   ValueKind
	}

	// OperationSpillConst stores the constant to the spill slot.
	OperationSpillConst struct {
		operation
		Offset int32
		Type   ValueKind
		Value  int64
	}

	// OperationFill loads the register from the spill slot.
	OperationFill struct {
		operation
		Dst    Reg
		Offset int32
		Type   ValueKind
	}

	// OperationFillI64Half loads one word of an i64 spill slot.
	OperationFillI64Half struct {
		operation
		Dst    asm.Register
		Offset int32
		Half   RegPairHalf
	}

	// OperationFillStackSlotsWithZero zeroes Size bytes of spill slots below Start.
	OperationFillStackSlotsWithZero struct {
		operation
		Start, Size int32
	}

	// OperationMoveStackValue copies a spill slot to another.
	OperationMoveStackValue struct {
		operation
		DstOffset, SrcOffset int32
		Type                 ValueKind
	}

	// OperationMove copies a register to another of the same class.
	OperationMove struct {
		operation
		Dst, Src Reg
		Type     ValueKind
	}

	// OperationLoadConstant materializes the bits of the constant in Dst.
	OperationLoadConstant struct {
		operation
		Dst   Reg
		Type  ValueKind
		Value int64
	}

	// OperationLoadCallerFrameSlot loads a stack parameter of the function.
	OperationLoadCallerFrameSlot struct {
		operation
		Dst       Reg
		SlotIndex uint32
		Type      ValueKind
	}

	// OperationStoreCallerFrameSlot stores a stack return value of the function, relative to the
	// frame pointer register FramePointer.
	OperationStoreCallerFrameSlot struct {
		operation
		Src          Reg
		SlotIndex    uint32
		Type         ValueKind
		FramePointer asm.Register
	}

	// OperationLoadReturnStackSlot loads a stack return value of a callee at sp+Offset.
	OperationLoadReturnStackSlot struct {
		operation
		Dst    Reg
		Offset int32
		Type   ValueKind
	}

	// OperationLoadInstance loads the instance from its frame slot.
	OperationLoadInstance struct {
		operation
		Dst asm.Register
	}

	// OperationSpillInstance stores the instance to its frame slot.
	OperationSpillInstance struct {
		operation
		Src asm.Register
	}

	// OperationLoadFeedbackVector loads the feedback vector from its frame slot.
	OperationLoadFeedbackVector struct {
		operation
		Dst asm.Register
	}

	// OperationDecrementTierupBudget subtracts Amount from the tier-up budget and jumps to
	// OutOfBudget once it is negative.
	OperationDecrementTierupBudget struct {
		operation
		Amount      int32
		OutOfBudget *riscv32.Label
	}
)

// OperationKind values, one per Operation type.
const (
	OperationKindI32Binary OperationKind = iota
	OperationKindI32BinaryImm
	OperationKindI32Div
	OperationKindI32Unary
	OperationKindI32SetCond
	OperationKindI64Binary
	OperationKindI64BinaryImm
	OperationKindI64Div
	OperationKindI64Unary
	OperationKindI64SetCond
	OperationKindFloatBinary
	OperationKindFloatUnary
	OperationKindFloatSetCond
	OperationKindConvert
	OperationKindLoad
	OperationKindStore
	OperationKindLoadTaggedPointer
	OperationKindStoreTaggedPointer
	OperationKindLoadTransform
	OperationKindLoadLane
	OperationKindStoreLane
	OperationKindLoadFromInstance
	OperationKindAtomicLoad
	OperationKindAtomicStore
	OperationKindAtomicRMW
	OperationKindAtomicCompareExchange
	OperationKindAtomicFence
	OperationKindV128Splat
	OperationKindV128ExtractLane
	OperationKindV128ReplaceLane
	OperationKindV128Binary
	OperationKindV128Unary
	OperationKindV128Shift
	OperationKindV128ShiftImm
	OperationKindV128Test
	OperationKindV128Bitselect
	OperationKindV128Const
	OperationKindV128Shuffle
	OperationKindLabel
	OperationKindJump
	OperationKindJumpToRegister
	OperationKindCondJump
	OperationKindI32CondJumpImm
	OperationKindI32SubImmJumpNegative
	OperationKindSmiCheck
	OperationKindSetIfNaN
	OperationKindS128SetIfNaN
	OperationKindSelect
	OperationKindStackCheck
	OperationKindTrap
	OperationKindDebugBreak
	OperationKindCallC
	OperationKindCallNative
	OperationKindTailCallNative
	OperationKindCallIndirect
	OperationKindTailCallIndirect
	OperationKindCallRuntimeStub
	OperationKindAllocateStackSlot
	OperationKindDeallocateStackSlot
	OperationKindDropStackSlotsAndRet
	OperationKindEnterFrame
	OperationKindLeaveFrame
	OperationKindPrepareTailCall
	OperationKindPushRegisters
	OperationKindPopRegisters
	OperationKindConstructStackSlots
	OperationKindSpill
	OperationKindSpillConst
	OperationKindFill
	OperationKindFillI64Half
	OperationKindFillStackSlotsWithZero
	OperationKindMoveStackValue
	OperationKindMove
	OperationKindLoadConstant
	OperationKindLoadCallerFrameSlot
	OperationKindStoreCallerFrameSlot
	OperationKindLoadReturnStackSlot
	OperationKindLoadInstance
	OperationKindSpillInstance
	OperationKindLoadFeedbackVector
	OperationKindDecrementTierupBudget
	operationKindEnd
)

var operationKindNames = [operationKindEnd]string{
	OperationKindI32Binary:              "i32_binary",
	OperationKindI32BinaryImm:           "i32_binary_imm",
	OperationKindI32Div:                 "i32_div",
	OperationKindI32Unary:               "i32_unary",
	OperationKindI32SetCond:             "i32_set_cond",
	OperationKindI64Binary:              "i64_binary",
	OperationKindI64BinaryImm:           "i64_binary_imm",
	OperationKindI64Div:                 "i64_div",
	OperationKindI64Unary:               "i64_unary",
	OperationKindI64SetCond:             "i64_set_cond",
	OperationKindFloatBinary:            "float_binary",
	OperationKindFloatUnary:             "float_unary",
	OperationKindFloatSetCond:           "float_set_cond",
	OperationKindConvert:                "convert",
	OperationKindLoad:                   "load",
	OperationKindStore:                  "store",
	OperationKindLoadTaggedPointer:      "load_tagged_pointer",
	OperationKindStoreTaggedPointer:     "store_tagged_pointer",
	OperationKindLoadTransform:          "load_transform",
	OperationKindLoadLane:               "load_lane",
	OperationKindStoreLane:              "store_lane",
	OperationKindLoadFromInstance:       "load_from_instance",
	OperationKindAtomicLoad:             "atomic_load",
	OperationKindAtomicStore:            "atomic_store",
	OperationKindAtomicRMW:              "atomic_rmw",
	OperationKindAtomicCompareExchange:  "atomic_compare_exchange",
	OperationKindAtomicFence:            "atomic_fence",
	OperationKindV128Splat:              "v128_splat",
	OperationKindV128ExtractLane:        "v128_extract_lane",
	OperationKindV128ReplaceLane:        "v128_replace_lane",
	OperationKindV128Binary:             "v128_binary",
	OperationKindV128Unary:              "v128_unary",
	OperationKindV128Shift:              "v128_shift",
	OperationKindV128ShiftImm:           "v128_shift_imm",
	OperationKindV128Test:               "v128_test",
	OperationKindV128Bitselect:          "v128_bitselect",
	OperationKindV128Const:              "v128_const",
	OperationKindV128Shuffle:            "v128_shuffle",
	OperationKindLabel:                  "label",
	OperationKindJump:                   "jump",
	OperationKindJumpToRegister:         "jump_to_register",
	OperationKindCondJump:               "cond_jump",
	OperationKindI32CondJumpImm:         "i32_cond_jump_imm",
	OperationKindI32SubImmJumpNegative:  "i32_sub_imm_jump_negative",
	OperationKindSmiCheck:               "smi_check",
	OperationKindSetIfNaN:               "set_if_nan",
	OperationKindS128SetIfNaN:           "s128_set_if_nan",
	OperationKindSelect:                 "select",
	OperationKindStackCheck:             "stack_check",
	OperationKindTrap:                   "trap",
	OperationKindDebugBreak:             "debug_break",
	OperationKindCallC:                  "call_c",
	OperationKindCallNative:             "call_native",
	OperationKindTailCallNative:         "tail_call_native",
	OperationKindCallIndirect:           "call_indirect",
	OperationKindTailCallIndirect:       "tail_call_indirect",
	OperationKindCallRuntimeStub:        "call_runtime_stub",
	OperationKindAllocateStackSlot:      "allocate_stack_slot",
	OperationKindDeallocateStackSlot:    "deallocate_stack_slot",
	OperationKindDropStackSlotsAndRet:   "drop_stack_slots_and_ret",
	OperationKindEnterFrame:             "enter_frame",
	OperationKindLeaveFrame:             "leave_frame",
	OperationKindPrepareTailCall:        "prepare_tail_call",
	OperationKindPushRegisters:          "push_registers",
	OperationKindPopRegisters:           "pop_registers",
	OperationKindConstructStackSlots:    "construct_stack_slots",
	OperationKindSpill:                  "spill",
	OperationKindSpillConst:             "spill_const",
	OperationKindFill:                   "fill",
	OperationKindFillI64Half:            "fill_i64_half",
	OperationKindFillStackSlotsWithZero: "fill_stack_slots_with_zero",
	OperationKindMoveStackValue:         "move_stack_value",
	OperationKindMove:                   "move",
	OperationKindLoadConstant:           "load_constant",
	OperationKindLoadCallerFrameSlot:    "load_caller_frame_slot",
	OperationKindStoreCallerFrameSlot:   "store_caller_frame_slot",
	OperationKindLoadReturnStackSlot:    "load_return_stack_slot",
	OperationKindLoadInstance:           "load_instance",
	OperationKindSpillInstance:          "spill_instance",
	OperationKindLoadFeedbackVector:     "load_feedback_vector",
	OperationKindDecrementTierupBudget:  "decrement_tierup_budget",
}

// String implements fmt.Stringer.
func (k OperationKind) String() string {
	if k < operationKindEnd {
		return operationKindNames[k]
	}
	return fmt.Sprintf("operation(%d)", k)
}

// Kind implements Operation.Kind.
func (*OperationI32Binary) Kind() OperationKind { return OperationKindI32Binary }

// Kind implements Operation.Kind.
func (*OperationI32BinaryImm) Kind() OperationKind { return OperationKindI32BinaryImm }

// Kind implements Operation.Kind.
func (*OperationI32Div) Kind() OperationKind { return OperationKindI32Div }

// Kind implements Operation.Kind.
func (*OperationI32Unary) Kind() OperationKind { return OperationKindI32Unary }

// Kind implements Operation.Kind.
func (*OperationI32SetCond) Kind() OperationKind { return OperationKindI32SetCond }

// Kind implements Operation.Kind.
func (*OperationI64Binary) Kind() OperationKind { return OperationKindI64Binary }

// Kind implements Operation.Kind.
func (*OperationI64BinaryImm) Kind() OperationKind { return OperationKindI64BinaryImm }

// Kind implements Operation.Kind.
func (*OperationI64Div) Kind() OperationKind { return OperationKindI64Div }

// Kind implements Operation.Kind.
func (*OperationI64Unary) Kind() OperationKind { return OperationKindI64Unary }

// Kind implements Operation.Kind.
func (*OperationI64SetCond) Kind() OperationKind { return OperationKindI64SetCond }

// Kind implements Operation.Kind.
func (*OperationFloatBinary) Kind() OperationKind { return OperationKindFloatBinary }

// Kind implements Operation.Kind.
func (*OperationFloatUnary) Kind() OperationKind { return OperationKindFloatUnary }

// Kind implements Operation.Kind.
func (*OperationFloatSetCond) Kind() OperationKind { return OperationKindFloatSetCond }

// Kind implements Operation.Kind.
func (*OperationConvert) Kind() OperationKind { return OperationKindConvert }

// Kind implements Operation.Kind.
func (*OperationLoad) Kind() OperationKind { return OperationKindLoad }

// Kind implements Operation.Kind.
func (*OperationStore) Kind() OperationKind { return OperationKindStore }

// Kind implements Operation.Kind.
func (*OperationLoadTaggedPointer) Kind() OperationKind { return OperationKindLoadTaggedPointer }

// Kind implements Operation.Kind.
func (*OperationStoreTaggedPointer) Kind() OperationKind { return OperationKindStoreTaggedPointer }

// Kind implements Operation.Kind.
func (*OperationLoadTransform) Kind() OperationKind { return OperationKindLoadTransform }

// Kind implements Operation.Kind.
func (*OperationLoadLane) Kind() OperationKind { return OperationKindLoadLane }

// Kind implements Operation.Kind.
func (*OperationStoreLane) Kind() OperationKind { return OperationKindStoreLane }

// Kind implements Operation.Kind.
func (*OperationLoadFromInstance) Kind() OperationKind { return OperationKindLoadFromInstance }

// Kind implements Operation.Kind.
func (*OperationAtomicLoad) Kind() OperationKind { return OperationKindAtomicLoad }

// Kind implements Operation.Kind.
func (*OperationAtomicStore) Kind() OperationKind { return OperationKindAtomicStore }

// Kind implements Operation.Kind.
func (*OperationAtomicRMW) Kind() OperationKind { return OperationKindAtomicRMW }

// Kind implements Operation.Kind.
func (*OperationAtomicCompareExchange) Kind() OperationKind {
	return OperationKindAtomicCompareExchange
}

// Kind implements Operation.Kind.
func (*OperationAtomicFence) Kind() OperationKind { return OperationKindAtomicFence }

// Kind implements Operation.Kind.
func (*OperationV128Splat) Kind() OperationKind { return OperationKindV128Splat }

// Kind implements Operation.Kind.
func (*OperationV128ExtractLane) Kind() OperationKind { return OperationKindV128ExtractLane }

// Kind implements Operation.Kind.
func (*OperationV128ReplaceLane) Kind() OperationKind { return OperationKindV128ReplaceLane }

// Kind implements Operation.Kind.
func (*OperationV128Binary) Kind() OperationKind { return OperationKindV128Binary }

// Kind implements Operation.Kind.
func (*OperationV128Unary) Kind() OperationKind { return OperationKindV128Unary }

// Kind implements Operation.Kind.
func (*OperationV128Shift) Kind() OperationKind { return OperationKindV128Shift }

// Kind implements Operation.Kind.
func (*OperationV128ShiftImm) Kind() OperationKind { return OperationKindV128ShiftImm }

// Kind implements Operation.Kind.
func (*OperationV128Test) Kind() OperationKind { return OperationKindV128Test }

// Kind implements Operation.Kind.
func (*OperationV128Bitselect) Kind() OperationKind { return OperationKindV128Bitselect }

// Kind implements Operation.Kind.
func (*OperationV128Const) Kind() OperationKind { return OperationKindV128Const }

// Kind implements Operation.Kind.
func (*OperationV128Shuffle) Kind() OperationKind { return OperationKindV128Shuffle }

// Kind implements Operation.Kind.
func (*OperationLabel) Kind() OperationKind { return OperationKindLabel }

// Kind implements Operation.Kind.
func (*OperationJump) Kind() OperationKind { return OperationKindJump }

// Kind implements Operation.Kind.
func (*OperationJumpToRegister) Kind() OperationKind { return OperationKindJumpToRegister }

// Kind implements Operation.Kind.
func (*OperationCondJump) Kind() OperationKind { return OperationKindCondJump }

// Kind implements Operation.Kind.
func (*OperationI32CondJumpImm) Kind() OperationKind { return OperationKindI32CondJumpImm }

// Kind implements Operation.Kind.
func (*OperationSmiCheck) Kind() OperationKind { return OperationKindSmiCheck }

// Kind implements Operation.Kind.
func (*OperationI32SubImmJumpNegative) Kind() OperationKind {
	return OperationKindI32SubImmJumpNegative
}

// Kind implements Operation.Kind.
func (*OperationSetIfNaN) Kind() OperationKind { return OperationKindSetIfNaN }

// Kind implements Operation.Kind.
func (*OperationS128SetIfNaN) Kind() OperationKind { return OperationKindS128SetIfNaN }

// Kind implements Operation.Kind.
func (*OperationSelect) Kind() OperationKind { return OperationKindSelect }

// Kind implements Operation.Kind.
func (*OperationStackCheck) Kind() OperationKind { return OperationKindStackCheck }

// Kind implements Operation.Kind.
func (*OperationTrap) Kind() OperationKind { return OperationKindTrap }

// Kind implements Operation.Kind.
func (*OperationDebugBreak) Kind() OperationKind { return OperationKindDebugBreak }

// Kind implements Operation.Kind.
func (*OperationCallC) Kind() OperationKind { return OperationKindCallC }

// Kind implements Operation.Kind.
func (*OperationCallNative) Kind() OperationKind { return OperationKindCallNative }

// Kind implements Operation.Kind.
func (*OperationTailCallNative) Kind() OperationKind { return OperationKindTailCallNative }

// Kind implements Operation.Kind.
func (*OperationCallIndirect) Kind() OperationKind { return OperationKindCallIndirect }

// Kind implements Operation.Kind.
func (*OperationTailCallIndirect) Kind() OperationKind { return OperationKindTailCallIndirect }

// Kind implements Operation.Kind.
func (*OperationCallRuntimeStub) Kind() OperationKind { return OperationKindCallRuntimeStub }

// Kind implements Operation.Kind.
func (*OperationAllocateStackSlot) Kind() OperationKind { return OperationKindAllocateStackSlot }

// Kind implements Operation.Kind.
func (*OperationDeallocateStackSlot) Kind() OperationKind { return OperationKindDeallocateStackSlot }

// Kind implements Operation.Kind.
func (*OperationDropStackSlotsAndRet) Kind() OperationKind { return OperationKindDropStackSlotsAndRet }

// Kind implements Operation.Kind.
func (*OperationEnterFrame) Kind() OperationKind { return OperationKindEnterFrame }

// Kind implements Operation.Kind.
func (*OperationLeaveFrame) Kind() OperationKind { return OperationKindLeaveFrame }

// Kind implements Operation.Kind.
func (*OperationPrepareTailCall) Kind() OperationKind { return OperationKindPrepareTailCall }

// Kind implements Operation.Kind.
func (*OperationPushRegisters) Kind() OperationKind { return OperationKindPushRegisters }

// Kind implements Operation.Kind.
func (*OperationPopRegisters) Kind() OperationKind { return OperationKindPopRegisters }

// Kind implements Operation.Kind.
func (*OperationConstructStackSlots) Kind() OperationKind { return OperationKindConstructStackSlots }

// Kind implements Operation.Kind.
func (*OperationSpill) Kind() OperationKind { return OperationKindSpill }

// Kind implements Operation.Kind.
func (*OperationSpillConst) Kind() OperationKind { return OperationKindSpillConst }

// Kind implements Operation.Kind.
func (*OperationFill) Kind() OperationKind { return OperationKindFill }

// Kind implements Operation.Kind.
func (*OperationFillI64Half) Kind() OperationKind { return OperationKindFillI64Half }

// Kind implements Operation.Kind.
func (*OperationFillStackSlotsWithZero) Kind() OperationKind {
	return OperationKindFillStackSlotsWithZero
}

// Kind implements Operation.Kind.
func (*OperationMoveStackValue) Kind() OperationKind { return OperationKindMoveStackValue }

// Kind implements Operation.Kind.
func (*OperationMove) Kind() OperationKind { return OperationKindMove }

// Kind implements Operation.Kind.
func (*OperationLoadConstant) Kind() OperationKind { return OperationKindLoadConstant }

// Kind implements Operation.Kind.
func (*OperationLoadCallerFrameSlot) Kind() OperationKind { return OperationKindLoadCallerFrameSlot }

// Kind implements Operation.Kind.
func (*OperationStoreCallerFrameSlot) Kind() OperationKind { return OperationKindStoreCallerFrameSlot }

// Kind implements Operation.Kind.
func (*OperationLoadReturnStackSlot) Kind() OperationKind { return OperationKindLoadReturnStackSlot }

// Kind implements Operation.Kind.
func (*OperationLoadInstance) Kind() OperationKind { return OperationKindLoadInstance }

// Kind implements Operation.Kind.
func (*OperationSpillInstance) Kind() OperationKind { return OperationKindSpillInstance }

// Kind implements Operation.Kind.
func (*OperationLoadFeedbackVector) Kind() OperationKind { return OperationKindLoadFeedbackVector }

// Kind implements Operation.Kind.
func (*OperationDecrementTierupBudget) Kind() OperationKind {
	return OperationKindDecrementTierupBudget
}
