package baseline

import (
	"math"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
)

var (
	i32Lhs = GP(riscv32.RegA1)
	i32Rhs = GP(riscv32.RegA2)
	i32Dst = GP(riscv32.RegA3)
)

var i32Boundaries = []uint32{0, 1, 2, 31, 32, 0x7f, 0x80, 0xffff, 0x7fffffff, 0x80000000, 0xfffffffe, math.MaxUint32, 0x12345678}

func TestCompiler_I32Binary(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	for _, tc := range []struct {
		op  IntBinaryOp
		exp func(x, y uint32) uint32
	}{
		{op: IntAdd, exp: func(x, y uint32) uint32 { return x + y }},
		{op: IntSub, exp: func(x, y uint32) uint32 { return x - y }},
		{op: IntMul, exp: func(x, y uint32) uint32 { return x * y }},
		{op: IntAnd, exp: func(x, y uint32) uint32 { return x & y }},
		{op: IntOr, exp: func(x, y uint32) uint32 { return x | y }},
		{op: IntXor, exp: func(x, y uint32) uint32 { return x ^ y }},
		{op: IntShl, exp: func(x, y uint32) uint32 { return x << (y & 31) }},
		{op: IntShrS, exp: func(x, y uint32) uint32 { return uint32(int32(x) >> (y & 31)) }},
		{op: IntShrU, exp: func(x, y uint32) uint32 { return x >> (y & 31) }},
	} {
		tc := tc
		t.Run(tc.op.String(), func(t *testing.T) {
			entry := s.compile(nil, []Operation{
				&OperationI32Binary{Op: tc.op, Dst: i32Dst, Lhs: i32Lhs, Rhs: i32Rhs},
			}, nil)
			for _, x := range i32Boundaries {
				for _, y := range i32Boundaries {
					h.SetReg(i32Lhs.Low(), x)
					h.SetReg(i32Rhs.Low(), y)
					require.NoError(t, s.call(h, entry))
					require.Equal(t, tc.exp(x, y), h.Reg(i32Dst.Low()), "%#x %s %#x", x, tc.op, y)
				}
			}
		})
	}
}

func TestCompiler_I32BinaryImm(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	tests := []struct {
		op  IntBinaryOp
		imm int32
		exp func(x uint32) uint32
	}{
		{op: IntAdd, imm: 7, exp: func(x uint32) uint32 { return x + 7 }},
		{op: IntAdd, imm: 0x12345, exp: func(x uint32) uint32 { return x + 0x12345 }},
		{op: IntSub, imm: -2048, exp: func(x uint32) uint32 { return x + 2048 }},
		{op: IntSub, imm: math.MinInt32, exp: func(x uint32) uint32 { return x - 0x80000000 }},
		{op: IntMul, imm: -3, exp: func(x uint32) uint32 { return x * 0xfffffffd }},
		{op: IntAnd, imm: 0xff, exp: func(x uint32) uint32 { return x & 0xff }},
		{op: IntAnd, imm: 0xff00ff, exp: func(x uint32) uint32 { return x & 0xff00ff }},
		{op: IntOr, imm: -1, exp: func(x uint32) uint32 { return math.MaxUint32 }},
		{op: IntXor, imm: 0x7ffff, exp: func(x uint32) uint32 { return x ^ 0x7ffff }},
		{op: IntShl, imm: 35, exp: func(x uint32) uint32 { return x << 3 }},
		{op: IntShrS, imm: 31, exp: func(x uint32) uint32 { return uint32(int32(x) >> 31) }},
		{op: IntShrU, imm: 4, exp: func(x uint32) uint32 { return x >> 4 }},
	}
	for _, tt := range tests {
		tc := tt
		entry := s.compile(nil, []Operation{
			&OperationI32BinaryImm{Op: tc.op, Dst: i32Dst, Lhs: i32Lhs, Imm: tc.imm},
		}, nil)
		for _, x := range i32Boundaries {
			h.SetReg(i32Lhs.Low(), x)
			require.NoError(t, s.call(h, entry))
			require.Equal(t, tc.exp(x), h.Reg(i32Dst.Low()), "%#x %s %d", x, tc.op, tc.imm)
		}
	}
}

func TestCompiler_I32Div(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	minInt32 := uint32(0x80000000)
	minusOne := uint32(math.MaxUint32)
	for _, tc := range []struct {
		name  string
		op    DivOp
		x, y  uint32
		exp   uint32
		trap  RuntimeStub
		traps bool
	}{
		{name: "div_s", op: DivS, x: 7, y: uint32(0xfffffffe), exp: uint32(0xfffffffd)},
		{name: "div_s min by 1", op: DivS, x: minInt32, y: 1, exp: minInt32},
		{name: "div_s min by -1", op: DivS, x: minInt32, y: minusOne, trap: StubThrowDivUnrepresentable, traps: true},
		{name: "div_s by zero", op: DivS, x: 1, y: 0, trap: StubThrowDivByZero, traps: true},
		{name: "div_u", op: DivU, x: math.MaxUint32, y: 3, exp: math.MaxUint32 / 3},
		{name: "div_u by zero", op: DivU, x: 1, y: 0, trap: StubThrowDivByZero, traps: true},
		{name: "rem_s", op: RemS, x: uint32(0xfffffff9), y: 2, exp: minusOne},
		{name: "rem_s min by -1", op: RemS, x: minInt32, y: minusOne, exp: 0},
		{name: "rem_s by zero", op: RemS, x: 1, y: 0, trap: StubThrowDivByZero, traps: true},
		{name: "rem_u", op: RemU, x: math.MaxUint32, y: 0x10000, exp: 0xffff},
		{name: "rem_u by zero", op: RemU, x: 1, y: 0, trap: StubThrowDivByZero, traps: true},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			divByZero, unrepresentable := &riscv32.Label{}, &riscv32.Label{}
			entry := s.compile(nil, []Operation{
				&OperationI32Div{Op: tc.op, Dst: i32Dst, Lhs: i32Lhs, Rhs: i32Rhs, DivByZero: divByZero, Unrepresentable: unrepresentable},
			}, []Operation{
				&OperationLabel{Label: divByZero},
				&OperationCallRuntimeStub{Stub: StubThrowDivByZero},
				&OperationLabel{Label: unrepresentable},
				&OperationCallRuntimeStub{Stub: StubThrowDivUnrepresentable},
			})
			h.SetReg(i32Lhs.Low(), tc.x)
			h.SetReg(i32Rhs.Low(), tc.y)
			err := s.call(h, entry)
			if tc.traps {
				requireTrap(t, err, tc.trap)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.exp, h.Reg(i32Dst.Low()))
		})
	}
}

func TestCompiler_I32Unary(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	for _, tc := range []struct {
		op  IntUnaryOp
		exp func(x uint32) uint32
	}{
		{op: IntClz, exp: func(x uint32) uint32 { return uint32(bits.LeadingZeros32(x)) }},
		{op: IntCtz, exp: func(x uint32) uint32 { return uint32(bits.TrailingZeros32(x)) }},
		{op: IntPopcnt, exp: func(x uint32) uint32 { return uint32(bits.OnesCount32(x)) }},
		{op: IntEqz, exp: func(x uint32) uint32 { return boolToUint32(x == 0) }},
		{op: IntExtend8S, exp: func(x uint32) uint32 { return uint32(int32(int8(x))) }},
		{op: IntExtend16S, exp: func(x uint32) uint32 { return uint32(int32(int16(x))) }},
	} {
		tc := tc
		t.Run(tc.op.String(), func(t *testing.T) {
			for _, dst := range []Reg{i32Dst, i32Lhs} {
				entry := s.compile(nil, []Operation{&OperationI32Unary{Op: tc.op, Dst: dst, Src: i32Lhs}}, nil)
				for _, x := range i32Boundaries {
					h.SetReg(i32Lhs.Low(), x)
					require.NoError(t, s.call(h, entry))
					require.Equal(t, tc.exp(x), h.Reg(dst.Low()), "%s %#x into %s", tc.op, x, dst)
				}
			}
		})
	}
}

func TestCompiler_I32SetCond(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	for _, tc := range []struct {
		cond Condition
		exp  func(x, y uint32) bool
	}{
		{cond: CondEqual, exp: func(x, y uint32) bool { return x == y }},
		{cond: CondNotEqual, exp: func(x, y uint32) bool { return x != y }},
		{cond: CondLessThan, exp: func(x, y uint32) bool { return int32(x) < int32(y) }},
		{cond: CondLessEqual, exp: func(x, y uint32) bool { return int32(x) <= int32(y) }},
		{cond: CondGreaterThan, exp: func(x, y uint32) bool { return int32(x) > int32(y) }},
		{cond: CondGreaterEqual, exp: func(x, y uint32) bool { return int32(x) >= int32(y) }},
		{cond: CondUnsignedLessThan, exp: func(x, y uint32) bool { return x < y }},
		{cond: CondUnsignedLessEqual, exp: func(x, y uint32) bool { return x <= y }},
		{cond: CondUnsignedGreaterThan, exp: func(x, y uint32) bool { return x > y }},
		{cond: CondUnsignedGreaterEqual, exp: func(x, y uint32) bool { return x >= y }},
	} {
		tc := tc
		t.Run(tc.cond.String(), func(t *testing.T) {
			entry := s.compile(nil, []Operation{
				&OperationI32SetCond{Cond: tc.cond, Dst: i32Dst, Lhs: i32Lhs, Rhs: i32Rhs},
			}, nil)
			for _, x := range i32Boundaries {
				for _, y := range i32Boundaries {
					h.SetReg(i32Lhs.Low(), x)
					h.SetReg(i32Rhs.Low(), y)
					require.NoError(t, s.call(h, entry))
					require.Equal(t, boolToUint32(tc.exp(x, y)), h.Reg(i32Dst.Low()), "%#x %s %#x", x, tc.cond, y)
				}
			}
		})
	}
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
