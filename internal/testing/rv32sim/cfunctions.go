package rv32sim

import (
	"math"

	"github.com/tetratelabs/baseline32/internal/moremath"
)

// CFunctions returns the handlers of the C functions called by generated code, by name. Each
// works in place on the buffer pointed to by a0 and returns its i32 status in a0.
func CFunctions() map[string]Handler {
	return map[string]Handler{
		"int64_div_wrapper":  binaryI64(func(x, y uint64) (uint64, int32) { q, s := moremath.Int64Div(int64(x), int64(y)); return uint64(q), s }),
		"int64_mod_wrapper":  binaryI64(func(x, y uint64) (uint64, int32) { r, s := moremath.Int64Mod(int64(x), int64(y)); return uint64(r), s }),
		"uint64_div_wrapper": binaryI64(moremath.Uint64Div),
		"uint64_mod_wrapper": binaryI64(moremath.Uint64Mod),

		"f64_ceil_wrapper":        unaryF64(math.Ceil),
		"f64_floor_wrapper":       unaryF64(math.Floor),
		"f64_trunc_wrapper":       unaryF64(math.Trunc),
		"f64_nearest_int_wrapper": unaryF64(moremath.WasmCompatNearestF64),

		"int64_to_float32_wrapper":  fromI64(func(v uint64) uint64 { return uint64(math.Float32bits(float32(int64(v)))) }, 4),
		"uint64_to_float32_wrapper": fromI64(func(v uint64) uint64 { return uint64(math.Float32bits(float32(v))) }, 4),
		"int64_to_float64_wrapper":  fromI64(func(v uint64) uint64 { return math.Float64bits(float64(int64(v))) }, 8),
		"uint64_to_float64_wrapper": fromI64(func(v uint64) uint64 { return math.Float64bits(float64(v)) }, 8),

		"float32_to_int64_wrapper":  toI64(4, func(f float64) (uint64, bool) { v, ok := moremath.TruncToInt64(f); return uint64(v), ok }),
		"float32_to_uint64_wrapper": toI64(4, moremath.TruncToUint64),
		"float64_to_int64_wrapper":  toI64(8, func(f float64) (uint64, bool) { v, ok := moremath.TruncToInt64(f); return uint64(v), ok }),
		"float64_to_uint64_wrapper": toI64(8, moremath.TruncToUint64),

		"float32_to_int64_sat_wrapper":  toI64(4, func(f float64) (uint64, bool) { return uint64(moremath.TruncToInt64Sat(f)), true }),
		"float32_to_uint64_sat_wrapper": toI64(4, func(f float64) (uint64, bool) { return moremath.TruncToUint64Sat(f), true }),
		"float64_to_int64_sat_wrapper":  toI64(8, func(f float64) (uint64, bool) { return uint64(moremath.TruncToInt64Sat(f)), true }),
		"float64_to_uint64_sat_wrapper": toI64(8, func(f float64) (uint64, bool) { return moremath.TruncToUint64Sat(f), true }),
	}
}

// RegisterCFunctions registers every handler of CFunctions.
func (m *Machine) RegisterCFunctions() {
	for name, handler := range CFunctions() {
		m.RegisterStub(name, handler)
	}
}

func binaryI64(op func(x, y uint64) (uint64, int32)) Handler {
	return func(h *Hart) error {
		buf := h.X[10]
		x, err := h.m.load(buf, 8)
		if err != nil {
			return err
		}
		y, err := h.m.load(buf+8, 8)
		if err != nil {
			return err
		}
		r, status := op(x, y)
		if status == 1 {
			if err := h.m.store(h, buf, 8, r); err != nil {
				return err
			}
		}
		h.X[10] = uint32(status)
		return nil
	}
}

func unaryF64(op func(float64) float64) Handler {
	return func(h *Hart) error {
		buf := h.X[10]
		v, err := h.m.load(buf, 8)
		if err != nil {
			return err
		}
		return h.m.store(h, buf, 8, canonical64(op(math.Float64frombits(v))))
	}
}

func fromI64(op func(uint64) uint64, size uint32) Handler {
	return func(h *Hart) error {
		buf := h.X[10]
		v, err := h.m.load(buf, 8)
		if err != nil {
			return err
		}
		return h.m.store(h, buf, size, op(v))
	}
}

func toI64(size uint32, op func(float64) (uint64, bool)) Handler {
	return func(h *Hart) error {
		buf := h.X[10]
		v, err := h.m.load(buf, size)
		if err != nil {
			return err
		}
		f := math.Float64frombits(v)
		if size == 4 {
			f = float64(math.Float32frombits(uint32(v)))
		}
		r, ok := op(f)
		if !ok {
			h.X[10] = 0
			return nil
		}
		h.X[10] = 1
		return h.m.store(h, buf, 8, r)
	}
}
