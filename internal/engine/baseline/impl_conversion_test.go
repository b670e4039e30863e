package baseline

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

var truncInputs = []float64{
	0, math.Copysign(0, -1), 0.9, -0.9, -1, 1.5, -2.5,
	-2147483648.9, -2147483649, 2147483647.9, 2147483648, 4294967295.5, 4294967296,
	1e10, -1e10, math.Inf(1), math.Inf(-1), math.NaN(),
}

func truncI32S(f float64) (uint32, bool) {
	t := math.Trunc(f)
	if math.IsNaN(t) || t < math.MinInt32 || t > math.MaxInt32 {
		return 0, false
	}
	return uint32(int32(t)), true
}

func truncI32U(f float64) (uint32, bool) {
	t := math.Trunc(f)
	if math.IsNaN(t) || t < 0 || t > math.MaxUint32 {
		return 0, false
	}
	return uint32(t), true
}

func truncSatI32S(f float64) (uint32, bool) {
	switch t := math.Trunc(f); {
	case math.IsNaN(t):
		return 0, true
	case t < math.MinInt32:
		return 0x80000000, true
	case t > math.MaxInt32:
		return math.MaxInt32, true
	default:
		return uint32(int32(t)), true
	}
}

func truncSatI32U(f float64) (uint32, bool) {
	switch t := math.Trunc(f); {
	case math.IsNaN(t) || t < 0:
		return 0, true
	case t > math.MaxUint32:
		return math.MaxUint32, true
	default:
		return uint32(t), true
	}
}

func TestCompiler_ConvertTruncI32(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	for _, tc := range []struct {
		op  ConvertOp
		typ ValueKind
		// exp returns false when the conversion traps.
		exp func(float64) (uint32, bool)
	}{
		{op: ConvI32TruncF32S, typ: KindF32, exp: truncI32S},
		{op: ConvI32TruncF32U, typ: KindF32, exp: truncI32U},
		{op: ConvI32TruncF64S, typ: KindF64, exp: truncI32S},
		{op: ConvI32TruncF64U, typ: KindF64, exp: truncI32U},
		{op: ConvI32TruncSatF32S, typ: KindF32, exp: truncSatI32S},
		{op: ConvI32TruncSatF32U, typ: KindF32, exp: truncSatI32U},
		{op: ConvI32TruncSatF64S, typ: KindF64, exp: truncSatI32S},
		{op: ConvI32TruncSatF64U, typ: KindF64, exp: truncSatI32U},
	} {
		tc := tc
		t.Run(tc.op.String(), func(t *testing.T) {
			trap := &riscv32.Label{}
			entry := s.compile(nil, []Operation{
				&OperationConvert{Op: tc.op, Dst: i32Dst, Src: floatLhs, Trap: trap},
			}, []Operation{
				&OperationLabel{Label: trap},
				&OperationCallRuntimeStub{Stub: StubThrowFloatUnrepresentable},
			})
			for _, x := range truncInputs {
				if tc.typ == KindF32 {
					x = float64(float32(x))
				}
				setFloat(h, tc.typ, floatLhs, x)
				err := s.call(h, entry)
				exp, ok := tc.exp(x)
				if !ok {
					requireTrap(t, err, StubThrowFloatUnrepresentable)
					continue
				}
				require.NoError(t, err, "%s %v", tc.op, x)
				require.Equal(t, exp, h.Reg(i32Dst.Low()), "%s %v", tc.op, x)
			}
		})
	}
}

func TestCompiler_ConvertI64Float(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	for _, tc := range []struct {
		name  string
		op    ConvertOp
		src   float64
		exp   uint64
		traps bool
	}{
		{name: "f64 to s", op: ConvI64TruncF64S, src: 1e18, exp: 1e18},
		{name: "f64 to s negative", op: ConvI64TruncF64S, src: -2.5, exp: uint64(-2 & math.MaxUint64)},
		{name: "f64 to s min", op: ConvI64TruncF64S, src: -9223372036854775808, exp: 1 << 63},
		{name: "f64 to s overflow", op: ConvI64TruncF64S, src: 1e19, traps: true},
		{name: "f64 to s NaN", op: ConvI64TruncF64S, src: math.NaN(), traps: true},
		{name: "f64 to u", op: ConvI64TruncF64U, src: 1e19, exp: 10000000000000000000},
		{name: "f64 to u -0.9", op: ConvI64TruncF64U, src: -0.9, exp: 0},
		{name: "f64 to u negative", op: ConvI64TruncF64U, src: -1, traps: true},
		{name: "f32 to s", op: ConvI64TruncF32S, src: -3.5, exp: uint64(-3 & math.MaxUint64)},
		{name: "f32 to s -inf", op: ConvI64TruncF32S, src: math.Inf(-1), traps: true},
		{name: "f32 to u", op: ConvI64TruncF32U, src: 4294967296, exp: 4294967296},
		{name: "sat f32 to u negative", op: ConvI64TruncSatF32U, src: -5, exp: 0},
		{name: "sat f32 to u inf", op: ConvI64TruncSatF32U, src: math.Inf(1), exp: math.MaxUint64},
		{name: "sat f32 to u NaN", op: ConvI64TruncSatF32U, src: math.NaN(), exp: 0},
		{name: "sat f64 to s -inf", op: ConvI64TruncSatF64S, src: math.Inf(-1), exp: 1 << 63},
		{name: "sat f64 to s inf", op: ConvI64TruncSatF64S, src: math.Inf(1), exp: math.MaxInt64},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			typ := KindF64
			switch tc.op {
			case ConvI64TruncF32S, ConvI64TruncF32U, ConvI64TruncSatF32S, ConvI64TruncSatF32U:
				typ = KindF32
			}
			trap := &riscv32.Label{}
			entry := s.compile(nil, []Operation{
				&OperationConvert{Op: tc.op, Dst: i64Dst, Src: floatLhs, Trap: trap},
			}, []Operation{
				&OperationLabel{Label: trap},
				&OperationCallRuntimeStub{Stub: StubThrowFloatUnrepresentable},
			})
			setFloat(h, typ, floatLhs, tc.src)
			err := s.call(h, entry)
			if tc.traps {
				requireTrap(t, err, StubThrowFloatUnrepresentable)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.exp, pairValue(h, i64Dst))
		})
	}
}

func TestCompiler_ConvertFloatFromInt(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	i32Inputs := []uint32{0, 1, 0x7fffffff, 0x80000000, 0xffffffff, 16777217}
	i64Inputs := []uint64{0, 1, math.MaxUint64, 1 << 63, math.MaxInt64, 1<<53 + 1, 0x12345678_9abcdef0}
	for _, tc := range []struct {
		op  ConvertOp
		typ ValueKind
		i32 func(uint32) float64
		i64 func(uint64) float64
	}{
		{op: ConvF32ConvertI32S, typ: KindF32, i32: func(v uint32) float64 { return float64(float32(int32(v))) }},
		{op: ConvF32ConvertI32U, typ: KindF32, i32: func(v uint32) float64 { return float64(float32(v)) }},
		{op: ConvF64ConvertI32S, typ: KindF64, i32: func(v uint32) float64 { return float64(int32(v)) }},
		{op: ConvF64ConvertI32U, typ: KindF64, i32: func(v uint32) float64 { return float64(v) }},
		{op: ConvF32ConvertI64S, typ: KindF32, i64: func(v uint64) float64 { return float64(float32(int64(v))) }},
		{op: ConvF32ConvertI64U, typ: KindF32, i64: func(v uint64) float64 { return float64(float32(v)) }},
		{op: ConvF64ConvertI64S, typ: KindF64, i64: func(v uint64) float64 { return float64(int64(v)) }},
		{op: ConvF64ConvertI64U, typ: KindF64, i64: func(v uint64) float64 { return float64(v) }},
	} {
		tc := tc
		t.Run(tc.op.String(), func(t *testing.T) {
			if tc.i32 != nil {
				entry := s.compile(nil, []Operation{&OperationConvert{Op: tc.op, Dst: floatDst, Src: i32Lhs}}, nil)
				for _, v := range i32Inputs {
					h.SetReg(i32Lhs.Low(), v)
					require.NoError(t, s.call(h, entry))
					requireFloat(t, tc.i32(v), getFloat(h, tc.typ, floatDst), "%s %#x", tc.op, v)
				}
				return
			}
			entry := s.compile(nil, []Operation{&OperationConvert{Op: tc.op, Dst: floatDst, Src: i64Lhs}}, nil)
			for _, v := range i64Inputs {
				setPair(h, i64Lhs, v)
				require.NoError(t, s.call(h, entry))
				requireFloat(t, tc.i64(v), getFloat(h, tc.typ, floatDst), "%s %#x", tc.op, v)
			}
		})
	}
}

func TestCompiler_ConvertFloatPrecision(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()

	demote := s.compile(nil, []Operation{&OperationConvert{Op: ConvF32DemoteF64, Dst: floatDst, Src: floatLhs}}, nil)
	promote := s.compile(nil, []Operation{&OperationConvert{Op: ConvF64PromoteF32, Dst: floatDst, Src: floatLhs}}, nil)
	for _, x := range append(floatValues, 1e300, -1e-300, 16777217) {
		t.Run(fmt.Sprint(x), func(t *testing.T) {
			h.SetFloat64(floatLhs.Low(), x)
			require.NoError(t, s.call(h, demote))
			requireFloat(t, float64(float32(x)), float64(h.Float32(floatDst.Low())))

			h.SetFloat32(floatLhs.Low(), float32(x))
			require.NoError(t, s.call(h, promote))
			requireFloat(t, float64(float32(x)), h.Float64(floatDst.Low()))
		})
	}
}

func TestCompiler_ConvertIntegers(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()

	wrap := s.compile(nil, []Operation{&OperationConvert{Op: ConvI32WrapI64, Dst: i32Dst, Src: i64Lhs}}, nil)
	extendS := s.compile(nil, []Operation{&OperationConvert{Op: ConvI64ExtendI32S, Dst: i64Dst, Src: i32Lhs}}, nil)
	extendU := s.compile(nil, []Operation{&OperationConvert{Op: ConvI64ExtendI32U, Dst: i64Dst, Src: i32Lhs}}, nil)

	for _, v := range i64Boundaries {
		setPair(h, i64Lhs, v)
		require.NoError(t, s.call(h, wrap))
		require.Equal(t, uint32(v), h.Reg(i32Dst.Low()), "wrap %#x", v)
	}
	for _, v := range i32Boundaries {
		setPair(h, i64Dst, math.MaxUint64)
		h.SetReg(i32Lhs.Low(), v)
		require.NoError(t, s.call(h, extendS))
		require.Equal(t, uint64(int64(int32(v))), pairValue(h, i64Dst), "extend_s %#x", v)

		setPair(h, i64Dst, math.MaxUint64)
		h.SetReg(i32Lhs.Low(), v)
		require.NoError(t, s.call(h, extendU))
		require.Equal(t, uint64(v), pairValue(h, i64Dst), "extend_u %#x", v)
	}
}

func TestCompiler_ConvertReinterpret(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()

	t.Run("f32", func(t *testing.T) {
		toInt := s.compile(nil, []Operation{&OperationConvert{Op: ConvI32ReinterpretF32, Dst: i32Dst, Src: floatLhs}}, nil)
		toFloat := s.compile(nil, []Operation{&OperationConvert{Op: ConvF32ReinterpretI32, Dst: floatDst, Src: i32Lhs}}, nil)
		for _, bits := range []uint32{0, 0x80000000, 0x3f800000, 0xc0490fdb, 0x7f800000, 0x00000001} {
			h.SetFloat32(floatLhs.Low(), math.Float32frombits(bits))
			require.NoError(t, s.call(h, toInt))
			require.Equal(t, bits, h.Reg(i32Dst.Low()))

			h.SetReg(i32Lhs.Low(), bits)
			require.NoError(t, s.call(h, toFloat))
			require.Equal(t, bits, math.Float32bits(h.Float32(floatDst.Low())))
		}
	})

	t.Run("f64", func(t *testing.T) {
		toInt := s.compile(nil, []Operation{&OperationConvert{Op: ConvI64ReinterpretF64, Dst: i64Dst, Src: floatLhs}}, nil)
		toFloat := s.compile(nil, []Operation{&OperationConvert{Op: ConvF64ReinterpretI64, Dst: floatDst, Src: i64Lhs}}, nil)
		for _, bits := range []uint64{0, 1 << 63, 0x3ff00000_00000000, 0x400921fb_54442d18, 0x7ff00000_00000000, 1} {
			h.SetFloat64(floatLhs.Low(), math.Float64frombits(bits))
			require.NoError(t, s.call(h, toInt))
			require.Equal(t, bits, pairValue(h, i64Dst))

			setPair(h, i64Lhs, bits)
			require.NoError(t, s.call(h, toFloat))
			require.Equal(t, bits, math.Float64bits(h.Float64(floatDst.Low())))
		}
	})
}

func TestCompiler_Convert_panicsWithoutTrapLabel(t *testing.T) {
	for _, op := range []ConvertOp{ConvI32TruncF32S, ConvI32TruncF64U, ConvI64TruncF64S} {
		op := op
		t.Run(op.String(), func(t *testing.T) {
			c := NewCompiler(nil)
			dst := i32Dst
			if op == ConvI64TruncF64S {
				dst = i64Dst
			}
			require.PanicsWithValue(t, "BUG: trapping conversion without a trap label", func() {
				_ = c.Lower(&OperationConvert{Op: op, Dst: dst, Src: floatLhs})
			})
		})
	}
}
