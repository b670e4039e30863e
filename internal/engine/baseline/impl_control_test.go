package baseline

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
	"github.com/tetratelabs/baseline32/internal/testing/rv32sim"
)

// notTaken returns the operations of a conditional jump over a marker setting i32Dst to 1.
func notTaken(jump Operation, l *riscv32.Label) []Operation {
	return []Operation{
		jump,
		&OperationI32BinaryImm{Op: IntOr, Dst: i32Dst, Lhs: i32Dst, Imm: 1},
		&OperationLabel{Label: l},
	}
}

func TestCompiler_CondJump(t *testing.T) {
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
			l, z := &riscv32.Label{}, &riscv32.Label{}
			withRhs := s.compile(nil, notTaken(&OperationCondJump{Type: KindI32, Cond: tc.cond, Lhs: i32Lhs, Rhs: i32Rhs, Label: l}, l), nil)
			withZero := s.compile(nil, notTaken(&OperationCondJump{Type: KindI32, Cond: tc.cond, Lhs: i32Lhs, Label: z}, z), nil)
			for _, x := range i32Boundaries {
				for _, y := range i32Boundaries {
					h.SetReg(i32Lhs.Low(), x)
					h.SetReg(i32Rhs.Low(), y)
					h.SetReg(i32Dst.Low(), 0)
					require.NoError(t, s.call(h, withRhs))
					require.Equal(t, boolToUint32(!tc.exp(x, y)), h.Reg(i32Dst.Low()), "%#x %s %#x", x, tc.cond, y)
				}
				h.SetReg(i32Dst.Low(), 0)
				require.NoError(t, s.call(h, withZero))
				require.Equal(t, boolToUint32(!tc.exp(x, 0)), h.Reg(i32Dst.Low()), "%#x %s 0", x, tc.cond)
			}
		})
	}
}

func TestCompiler_CondJump_references(t *testing.T) {
	c := NewCompiler(nil)
	l := &riscv32.Label{}
	require.NoError(t, c.Lower(&OperationCondJump{Type: KindRef, Cond: CondEqual, Lhs: i32Lhs, Rhs: i32Rhs, Label: l}))
	require.NoError(t, c.Lower(&OperationCondJump{Type: KindRefNull, Cond: CondNotEqual, Lhs: i32Lhs, Label: l}))
	require.PanicsWithValue(t, "BUG: references compare with eq and ne only, got lt_u", func() {
		_ = c.Lower(&OperationCondJump{Type: KindRef, Cond: CondUnsignedLessThan, Lhs: i32Lhs, Rhs: i32Rhs, Label: l})
	})
	require.PanicsWithValue(t, "BUG: conditional jump on f64", func() {
		_ = c.Lower(&OperationCondJump{Type: KindF64, Cond: CondEqual, Lhs: floatLhs, Rhs: floatRhs, Label: l})
	})
}

func TestCompiler_I32CondJumpImm(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	for _, tc := range []struct {
		cond Condition
		imm  int32
	}{
		{cond: CondEqual, imm: 0},
		{cond: CondNotEqual, imm: 0},
		{cond: CondLessThan, imm: -5},
		{cond: CondGreaterEqual, imm: 31},
		{cond: CondUnsignedGreaterThan, imm: 0x7fff},
		{cond: CondUnsignedLessEqual, imm: math.MinInt32},
	} {
		l := &riscv32.Label{}
		entry := s.compile(nil, notTaken(&OperationI32CondJumpImm{Cond: tc.cond, Lhs: i32Lhs, Imm: tc.imm, Label: l}, l), nil)
		for _, x := range i32Boundaries {
			var taken bool
			y := uint32(tc.imm)
			switch tc.cond {
			case CondEqual:
				taken = x == y
			case CondNotEqual:
				taken = x != y
			case CondLessThan:
				taken = int32(x) < int32(y)
			case CondGreaterEqual:
				taken = int32(x) >= int32(y)
			case CondUnsignedGreaterThan:
				taken = x > y
			case CondUnsignedLessEqual:
				taken = x <= y
			}
			h.SetReg(i32Lhs.Low(), x)
			h.SetReg(i32Dst.Low(), 0)
			require.NoError(t, s.call(h, entry))
			require.Equal(t, boolToUint32(!taken), h.Reg(i32Dst.Low()), "%#x %s %d", x, tc.cond, tc.imm)
		}
	}
}

func TestCompiler_I32SubImmJumpNegative(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	for _, imm := range []int32{1, 100, 0x12345} {
		l := &riscv32.Label{}
		entry := s.compile(nil, notTaken(&OperationI32SubImmJumpNegative{Value: i32Lhs, Imm: imm, Label: l}, l), nil)
		for _, x := range []uint32{0, 1, 100, 0x12344, 0x12345, 0x7fffffff, 0x80000000} {
			h.SetReg(i32Lhs.Low(), x)
			h.SetReg(i32Dst.Low(), 0)
			require.NoError(t, s.call(h, entry))
			v := x - uint32(imm)
			require.Equal(t, v, h.Reg(i32Lhs.Low()))
			require.Equal(t, boolToUint32(int32(v) >= 0), h.Reg(i32Dst.Low()), "%#x - %d", x, imm)
		}
	}
}

func TestCompiler_SmiCheck(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	src := riscv32.RegA1
	for _, tc := range []struct {
		name         string
		jumpIfNotSmi bool
	}{
		{name: "jump if smi"},
		{name: "jump if not smi", jumpIfNotSmi: true},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			l := &riscv32.Label{}
			entry := s.compile(nil, notTaken(&OperationSmiCheck{Src: src, Label: l, JumpIfNotSmi: tc.jumpIfNotSmi}, l), nil)
			for _, v := range []uint32{0, 1, 2, 0x7ffffffe, 0x80000001, 0xffffffff} {
				h.SetReg(src, v)
				h.SetReg(i32Dst.Low(), 0)
				require.NoError(t, s.call(h, entry))
				smi := v&SmiTagMask == 0
				taken := smi != tc.jumpIfNotSmi
				require.Equal(t, boolToUint32(!taken), h.Reg(i32Dst.Low()), "%#x", v)
				require.Equal(t, v, h.Reg(src))
			}
		})
	}
}

func TestCompiler_CondJump_far(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	l := &riscv32.Label{}
	// The body between the branch and its label is beyond the reach of a conditional branch.
	const adds = 1500
	body := []Operation{&OperationCondJump{Type: KindI32, Cond: CondNotEqual, Lhs: i32Lhs, Label: l}}
	for i := 0; i < adds; i++ {
		body = append(body, &OperationI32BinaryImm{Op: IntAdd, Dst: i32Dst, Lhs: i32Dst, Imm: 1})
	}
	body = append(body, &OperationLabel{Label: l})
	entry := s.compile(nil, body, nil)

	for _, x := range []uint32{0, 1} {
		h.SetReg(i32Lhs.Low(), x)
		h.SetReg(i32Dst.Low(), 0)
		require.NoError(t, s.call(h, entry))
		if x == 0 {
			require.Equal(t, uint32(adds), h.Reg(i32Dst.Low()))
		} else {
			require.Zero(t, h.Reg(i32Dst.Low()))
		}
	}
}

func TestCompiler_Jump(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	l := &riscv32.Label{}
	entry := s.compile(nil, notTaken(&OperationJump{Label: l}, l), nil)
	h.SetReg(i32Dst.Low(), 0)
	require.NoError(t, s.call(h, entry))
	require.Zero(t, h.Reg(i32Dst.Low()))
}

func TestCompiler_SetIfNaN(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	flag := s.m.Alloc(4, 4)
	for _, typ := range []ValueKind{KindF32, KindF64} {
		entry := s.compile(nil, []Operation{
			&OperationSetIfNaN{Type: typ, Src: floatLhs, Dst: riscv32.RegA1},
		}, nil)
		for _, x := range floatValues {
			require.NoError(t, s.m.WriteUint32(flag, 0))
			setFloat(h, typ, floatLhs, x)
			h.SetReg(riscv32.RegA1, flag)
			require.NoError(t, s.call(h, entry))
			got, err := s.m.ReadUint32(flag)
			require.NoError(t, err)
			require.Equal(t, boolToUint32(math.IsNaN(x)), got, "%s %v", typ, x)
		}
	}
}

func TestCompiler_Select(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	cond := riscv32.RegA7
	require.False(t, NewCompiler(nil).EmitSelect(KindI32))

	t.Run("i32", func(t *testing.T) {
		entry := s.compile(nil, []Operation{
			&OperationSelect{Type: KindI32, Cond: cond, Dst: i32Dst, True: i32Lhs, False: i32Rhs},
		}, nil)
		for _, c := range []uint32{0, 1, 0x80000000} {
			h.SetReg(cond, c)
			h.SetReg(i32Lhs.Low(), 11)
			h.SetReg(i32Rhs.Low(), 22)
			require.NoError(t, s.call(h, entry))
			exp := uint32(11)
			if c == 0 {
				exp = 22
			}
			require.Equal(t, exp, h.Reg(i32Dst.Low()))
		}
	})

	t.Run("i64", func(t *testing.T) {
		entry := s.compile(nil, []Operation{
			&OperationSelect{Type: KindI64, Cond: cond, Dst: i64Dst, True: i64Lhs, False: i64Rhs},
		}, nil)
		for _, c := range []uint32{0, 7} {
			h.SetReg(cond, c)
			setPair(h, i64Lhs, 0x11111111_22222222)
			setPair(h, i64Rhs, 0x33333333_44444444)
			require.NoError(t, s.call(h, entry))
			exp := uint64(0x11111111_22222222)
			if c == 0 {
				exp = 0x33333333_44444444
			}
			require.Equal(t, exp, pairValue(h, i64Dst))
		}
	})

	t.Run("f64", func(t *testing.T) {
		entry := s.compile(nil, []Operation{
			&OperationSelect{Type: KindF64, Cond: cond, Dst: floatDst, True: floatLhs, False: floatRhs},
		}, nil)
		for _, c := range []uint32{0, 1} {
			h.SetReg(cond, c)
			h.SetFloat64(floatLhs.Low(), 1.5)
			h.SetFloat64(floatRhs.Low(), math.Copysign(0, -1))
			require.NoError(t, s.call(h, entry))
			exp := 1.5
			if c == 0 {
				exp = math.Copysign(0, -1)
			}
			requireFloat(t, exp, h.Float64(floatDst.Low()))
		}
	})
}

func TestCompiler_Trap(t *testing.T) {
	for _, op := range []Operation{&OperationTrap{}, &OperationDebugBreak{}} {
		s := newSimulator(t)
		h := s.m.NewHart()
		entry := s.compile(nil, []Operation{op}, nil)
		err := s.call(h, entry)
		var brk *rv32sim.BreakpointError
		require.True(t, errors.As(err, &brk), "%v", err)
		require.Equal(t, h.PC, brk.PC)
		require.Greater(t, brk.PC, entry)
	}
}
