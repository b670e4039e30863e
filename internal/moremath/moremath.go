// Package moremath implements the float and 64-bit integer helpers which are either missing
// from the standard library or differ from it in their NaN, signed zero or overflow handling.
package moremath

import "math"

// WasmCompatMin is math.Min with a change that either one of NaN results in NaN even if
// another is -Inf.
// https://github.com/golang/go/blob/1d20a362d0ca4898d77865e314ef6f73582daef0/src/math/dim.go#L74-L91
func WasmCompatMin(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, -1) || math.IsInf(y, -1):
		return math.Inf(-1)
	case x == 0 && x == y:
		if math.Signbit(x) {
			return x
		}
		return y
	}
	if x < y {
		return x
	}
	return y
}

// WasmCompatMax is math.Max with a change that either one of NaN results in NaN even if
// another is Inf.
// https://github.com/golang/go/blob/1d20a362d0ca4898d77865e314ef6f73582daef0/src/math/dim.go#L42-L59
func WasmCompatMax(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, 1) || math.IsInf(y, 1):
		return math.Inf(1)

	case x == 0 && x == y:
		if math.Signbit(x) {
			return y
		}
		return x
	}
	if x > y {
		return x
	}
	return y
}

// WasmCompatNearestF32 is math.RoundToEven which keeps the sign of zero.
func WasmCompatNearestF32(f float32) float32 {
	return float32(WasmCompatNearestF64(float64(f)))
}

// WasmCompatNearestF64 is math.RoundToEven which keeps the sign of zero.
func WasmCompatNearestF64(f float64) float64 {
	r := math.RoundToEven(f)
	if r == 0 {
		return math.Copysign(0, f)
	}
	return r
}

// MinimumNumber is the IEEE 754-2019 minimumNumber operation implemented by fmin: a NaN
// operand is ignored unless both are NaN, and -0 is smaller than +0.
func MinimumNumber(x, y float64) float64 {
	switch {
	case math.IsNaN(x) && math.IsNaN(y):
		return math.NaN()
	case math.IsNaN(x):
		return y
	case math.IsNaN(y):
		return x
	case x == 0 && y == 0:
		if math.Signbit(x) {
			return x
		}
		return y
	case x < y:
		return x
	}
	return y
}

// MaximumNumber is the IEEE 754-2019 maximumNumber operation implemented by fmax.
func MaximumNumber(x, y float64) float64 {
	switch {
	case math.IsNaN(x) && math.IsNaN(y):
		return math.NaN()
	case math.IsNaN(x):
		return y
	case math.IsNaN(y):
		return x
	case x == 0 && y == 0:
		if math.Signbit(x) {
			return y
		}
		return x
	case x > y:
		return x
	}
	return y
}

// Round rounds f to an integral value in the given mode, which is one of the RISC-V rounding
// modes RNE (0), RTZ (1), RDN (2), RUP (3) or RMM (4).
func Round(f float64, mode byte) float64 {
	switch mode {
	case 1:
		return math.Trunc(f)
	case 2:
		return math.Floor(f)
	case 3:
		return math.Ceil(f)
	case 4:
		return math.Round(f)
	}
	return WasmCompatNearestF64(f)
}

// TruncToInt64 truncates f towards zero. ok is false when f is NaN or out of range.
func TruncToInt64(f float64) (v int64, ok bool) {
	t := math.Trunc(f)
	if math.IsNaN(t) || t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, false
	}
	return int64(t), true
}

// TruncToUint64 truncates f towards zero. ok is false when f is NaN or out of range.
func TruncToUint64(f float64) (v uint64, ok bool) {
	t := math.Trunc(f)
	if math.IsNaN(t) || t <= -1 || t >= math.MaxUint64 {
		return 0, false
	}
	return uint64(t), true
}

// TruncToInt64Sat truncates f towards zero, clamping out of range values and turning NaN into 0.
func TruncToInt64Sat(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f < math.MinInt64:
		return math.MinInt64
	case f >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(f)
}

// TruncToUint64Sat truncates f towards zero, clamping out of range values and turning NaN into 0.
func TruncToUint64Sat(f float64) uint64 {
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= math.MaxUint64:
		return math.MaxUint64
	}
	return uint64(f)
}

// TruncToInt32Sat is the saturating conversion of fcvt.w: NaN becomes the maximum value.
func TruncToInt32Sat(f float64) int32 {
	switch {
	case math.IsNaN(f) || f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

// TruncToUint32Sat is the saturating conversion of fcvt.wu: NaN becomes the maximum value.
func TruncToUint32Sat(f float64) uint32 {
	switch {
	case math.IsNaN(f) || f >= math.MaxUint32:
		return math.MaxUint32
	case f <= 0:
		return 0
	}
	return uint32(f)
}

// Int64Div divides with the status convention of the runtime: 0 on division by zero and -1
// when the quotient is not representable.
func Int64Div(x, y int64) (int64, int32) {
	switch {
	case y == 0:
		return 0, 0
	case x == math.MinInt64 && y == -1:
		return 0, -1
	}
	return x / y, 1
}

// Int64Mod is the remainder of Int64Div, where MinInt64 % -1 is 0.
func Int64Mod(x, y int64) (int64, int32) {
	switch {
	case y == 0:
		return 0, 0
	case y == -1:
		return 0, 1
	}
	return x % y, 1
}

// Uint64Div divides and returns the status 0 on division by zero.
func Uint64Div(x, y uint64) (uint64, int32) {
	if y == 0 {
		return 0, 0
	}
	return x / y, 1
}

// Uint64Mod is the remainder of Uint64Div.
func Uint64Mod(x, y uint64) (uint64, int32) {
	if y == 0 {
		return 0, 0
	}
	return x % y, 1
}
