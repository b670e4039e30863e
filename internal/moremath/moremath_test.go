package moremath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWasmCompatMin(t *testing.T) {
	require.Equal(t, WasmCompatMin(-1.1, 123), -1.1)
	require.Equal(t, WasmCompatMin(-1.1, math.Inf(1)), -1.1)
	require.Equal(t, WasmCompatMin(math.Inf(-1), 123), math.Inf(-1))

	// NaN cannot be compared with themselves, so we have to use IsNaN
	require.True(t, math.IsNaN(WasmCompatMin(math.NaN(), 1.0)))
	require.True(t, math.IsNaN(WasmCompatMin(1.0, math.NaN())))
	require.True(t, math.IsNaN(WasmCompatMin(math.Inf(-1), math.NaN())))
	require.True(t, math.IsNaN(WasmCompatMin(math.Inf(1), math.NaN())))
	require.True(t, math.IsNaN(WasmCompatMin(math.NaN(), math.NaN())))
}

func TestWasmCompatMax(t *testing.T) {
	require.Equal(t, WasmCompatMax(-1.1, 123.1), 123.1)
	require.Equal(t, WasmCompatMax(-1.1, math.Inf(1)), math.Inf(1))
	require.Equal(t, WasmCompatMax(math.Inf(-1), 123.1), 123.1)

	// NaN cannot be compared with themselves, so we have to use IsNaN
	require.True(t, math.IsNaN(WasmCompatMax(math.NaN(), 1.0)))
	require.True(t, math.IsNaN(WasmCompatMax(1.0, math.NaN())))
	require.True(t, math.IsNaN(WasmCompatMax(math.Inf(-1), math.NaN())))
	require.True(t, math.IsNaN(WasmCompatMax(math.Inf(1), math.NaN())))
	require.True(t, math.IsNaN(WasmCompatMax(math.NaN(), math.NaN())))
}

func TestWasmCompatNearestF32(t *testing.T) {
	require.Equal(t, WasmCompatNearestF32(-1.5), float32(-2.0))

	// This is the diff from math.Round.
	require.Equal(t, WasmCompatNearestF32(-4.5), float32(-4.0))
	require.Equal(t, float32(math.Round(-4.5)), float32(-5.0))

	// Prevent constant folding by using two variables. -float32(0) is not actually negative.
	// https://github.com/golang/go/issues/2196
	zero := float32(0)
	negZero := -zero

	// Sign bit preserved for +/- zero
	require.False(t, math.Signbit(float64(zero)))
	require.False(t, math.Signbit(float64(WasmCompatNearestF32(zero))))
	require.True(t, math.Signbit(float64(negZero)))
	require.True(t, math.Signbit(float64(WasmCompatNearestF32(negZero))))
}

func TestWasmCompatNearestF64(t *testing.T) {
	require.Equal(t, WasmCompatNearestF64(-1.5), -2.0)

	// This is the diff from math.Round.
	require.Equal(t, WasmCompatNearestF64(-4.5), -4.0)
	require.Equal(t, math.Round(-4.5), -5.0)

	// Prevent constant folding by using two variables. -float64(0) is not actually negative.
	// https://github.com/golang/go/issues/2196
	zero := float64(0)
	negZero := -zero

	// Sign bit preserved for +/- zero
	require.False(t, math.Signbit(zero))
	require.False(t, math.Signbit(WasmCompatNearestF64(zero)))
	require.True(t, math.Signbit(negZero))
	require.True(t, math.Signbit(WasmCompatNearestF64(negZero)))
}

func TestMinimumNumber(t *testing.T) {
	zero := float64(0)
	negZero := -zero

	require.Equal(t, 1.0, MinimumNumber(math.NaN(), 1.0))
	require.Equal(t, 1.0, MinimumNumber(1.0, math.NaN()))
	require.Equal(t, -1.1, MinimumNumber(-1.1, 123))
	require.True(t, math.IsNaN(MinimumNumber(math.NaN(), math.NaN())))
	require.True(t, math.Signbit(MinimumNumber(zero, negZero)))
	require.True(t, math.Signbit(MinimumNumber(negZero, zero)))

	require.Equal(t, 1.0, MaximumNumber(math.NaN(), 1.0))
	require.Equal(t, 123.0, MaximumNumber(-1.1, 123))
	require.True(t, math.IsNaN(MaximumNumber(math.NaN(), math.NaN())))
	require.False(t, math.Signbit(MaximumNumber(zero, negZero)))
	require.False(t, math.Signbit(MaximumNumber(negZero, zero)))
}

func TestRound(t *testing.T) {
	for _, tc := range []struct {
		mode     byte
		in, want float64
	}{
		{mode: 0, in: 2.5, want: 2},
		{mode: 0, in: -4.5, want: -4},
		{mode: 1, in: -2.7, want: -2},
		{mode: 2, in: -2.2, want: -3},
		{mode: 3, in: 2.2, want: 3},
		{mode: 4, in: 2.5, want: 3},
	} {
		require.Equal(t, tc.want, Round(tc.in, tc.mode), "mode %d of %v", tc.mode, tc.in)
	}
}

func TestTruncToInt64(t *testing.T) {
	v, ok := TruncToInt64(-1.9)
	require.True(t, ok)
	require.Equal(t, int64(-1), v)

	_, ok = TruncToInt64(math.NaN())
	require.False(t, ok)
	_, ok = TruncToInt64(9.3e18)
	require.False(t, ok)
	v, ok = TruncToInt64(-9223372036854775808.0)
	require.True(t, ok)
	require.Equal(t, int64(math.MinInt64), v)

	u, ok := TruncToUint64(-0.9)
	require.True(t, ok)
	require.Equal(t, uint64(0), u)
	_, ok = TruncToUint64(-1)
	require.False(t, ok)
	_, ok = TruncToUint64(1.9e19)
	require.False(t, ok)
}

func TestTruncSat(t *testing.T) {
	require.Equal(t, int64(0), TruncToInt64Sat(math.NaN()))
	require.Equal(t, int64(math.MaxInt64), TruncToInt64Sat(math.Inf(1)))
	require.Equal(t, int64(math.MinInt64), TruncToInt64Sat(math.Inf(-1)))
	require.Equal(t, uint64(0), TruncToUint64Sat(-5))
	require.Equal(t, uint64(math.MaxUint64), TruncToUint64Sat(math.Inf(1)))

	require.Equal(t, int32(math.MaxInt32), TruncToInt32Sat(math.NaN()))
	require.Equal(t, int32(math.MinInt32), TruncToInt32Sat(-3e9))
	require.Equal(t, uint32(math.MaxUint32), TruncToUint32Sat(math.NaN()))
	require.Equal(t, uint32(0), TruncToUint32Sat(-1))
}

func TestInt64Div(t *testing.T) {
	for _, tc := range []struct {
		name       string
		x, y       int64
		div, mod   int64
		divS, modS int32
	}{
		{name: "regular", x: -7, y: 2, div: -3, mod: -1, divS: 1, modS: 1},
		{name: "by zero", x: 1, y: 0, divS: 0, modS: 0},
		{name: "overflow", x: math.MinInt64, y: -1, divS: -1, modS: 1},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			q, status := Int64Div(tc.x, tc.y)
			require.Equal(t, tc.divS, status)
			if status == 1 {
				require.Equal(t, tc.div, q)
			}
			r, status := Int64Mod(tc.x, tc.y)
			require.Equal(t, tc.modS, status)
			if status == 1 {
				require.Equal(t, tc.mod, r)
			}
		})
	}

	q, status := Uint64Div(math.MaxUint64, 2)
	require.Equal(t, int32(1), status)
	require.Equal(t, uint64(math.MaxUint64/2), q)
	_, status = Uint64Mod(1, 0)
	require.Equal(t, int32(0), status)
}
