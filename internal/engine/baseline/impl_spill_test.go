package baseline

import (
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
	"github.com/tetratelabs/baseline32/internal/testing/rv32sim"
)

const (
	v128Lo = uint64(0x0706050403020100)
	v128Hi = uint64(0x8f8e8d8c8b8a8988)
)

// valueOf returns the bits of the value of the kind held in r.
func valueOf(h *rv32sim.Hart, kind ValueKind, r Reg) (lo, hi uint64) {
	switch kind {
	case KindI64:
		return pairValue(h, r), 0
	case KindF32:
		return uint64(math.Float32bits(h.Float32(r.Low()))), 0
	case KindF64:
		return h.FloatReg(r.Low()), 0
	case KindS128:
		b := h.VectorReg(r.Low())
		return binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:])
	}
	return uint64(h.Reg(r.Low())), 0
}

// loadValue returns the operation materializing lo (and hi for S128) in r.
func loadValue(kind ValueKind, r Reg, lo, hi uint64) Operation {
	if kind == KindS128 {
		return &OperationV128Const{Dst: r, Lo: lo, Hi: hi}
	}
	return &OperationLoadConstant{Dst: r, Type: kind, Value: int64(lo)}
}

var spillKinds = []struct {
	kind     ValueKind
	src, dst Reg
	lo, hi   uint64
}{
	{kind: KindI32, src: GP(riscv32.RegA1), dst: GP(riscv32.RegA2), lo: 0x89abcdef},
	{kind: KindI64, src: Pair(riscv32.RegA1, riscv32.RegA2), dst: Pair(riscv32.RegA3, riscv32.RegA4), lo: 0x01234567_89abcdef},
	{kind: KindF32, src: FP(riscv32.RegFT0), dst: FP(riscv32.RegFT1), lo: uint64(math.Float32bits(-math.Pi))},
	{kind: KindF64, src: FP(riscv32.RegFT0), dst: FP(riscv32.RegFT1), lo: math.Float64bits(math.E)},
	{kind: KindS128, src: Vec(riscv32.REG_V1), dst: Vec(riscv32.REG_V2), lo: v128Lo, hi: v128Hi},
	{kind: KindRef, src: GP(riscv32.RegS1), dst: GP(riscv32.RegS2), lo: 0x00012345},
}

func TestCompiler_SpillFill(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	for _, tc := range spillKinds {
		for _, offset := range []int32{32, 2048, 5008} {
			tc, offset := tc, offset
			t.Run(fmt.Sprintf("%s at %d", tc.kind, offset), func(t *testing.T) {
				entry := s.compile(nil, []Operation{
					loadValue(tc.kind, tc.src, tc.lo, tc.hi),
					&OperationSpill{Offset: offset, Src: tc.src, Type: tc.kind},
					loadValue(tc.kind, tc.src, 0, 0),
					&OperationFill{Dst: tc.dst, Offset: offset, Type: tc.kind},
				}, nil)
				require.NoError(t, s.call(h, entry))
				lo, hi := valueOf(h, tc.kind, tc.dst)
				require.Equal(t, tc.lo, lo, "%#x", lo)
				require.Equal(t, tc.hi, hi, "%#x", hi)
			})
		}
	}
}

func TestCompiler_MoveStackValue(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	for _, tc := range spillKinds {
		tc := tc
		t.Run(tc.kind.String(), func(t *testing.T) {
			entry := s.compile(nil, []Operation{
				loadValue(tc.kind, tc.src, tc.lo, tc.hi),
				&OperationSpill{Offset: 48, Src: tc.src, Type: tc.kind},
				&OperationMoveStackValue{DstOffset: 4096, SrcOffset: 48, Type: tc.kind},
				&OperationFill{Dst: tc.dst, Offset: 4096, Type: tc.kind},
			}, nil)
			require.NoError(t, s.call(h, entry))
			lo, hi := valueOf(h, tc.kind, tc.dst)
			require.Equal(t, tc.lo, lo)
			require.Equal(t, tc.hi, hi)
		})
	}
}

func TestCompiler_Move(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	for _, tc := range spillKinds {
		tc := tc
		t.Run(tc.kind.String(), func(t *testing.T) {
			entry := s.compile(nil, []Operation{
				loadValue(tc.kind, tc.src, tc.lo, tc.hi),
				&OperationMove{Dst: tc.dst, Src: tc.src, Type: tc.kind},
			}, nil)
			require.NoError(t, s.call(h, entry))
			lo, hi := valueOf(h, tc.kind, tc.dst)
			require.Equal(t, tc.lo, lo)
			require.Equal(t, tc.hi, hi)
		})
	}
}

func TestCompiler_Move_swappedPair(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	src := Pair(riscv32.RegA1, riscv32.RegA2)
	for _, dst := range []Reg{Pair(riscv32.RegA2, riscv32.RegA1), Pair(riscv32.RegA2, riscv32.RegA3), Pair(riscv32.RegA3, riscv32.RegA1)} {
		dst := dst
		t.Run(dst.String(), func(t *testing.T) {
			entry := s.compile(nil, []Operation{&OperationMove{Dst: dst, Src: src, Type: KindI64}}, nil)
			setPair(h, src, 0xaaaaaaaa_55555555)
			require.NoError(t, s.call(h, entry))
			require.Equal(t, uint64(0xaaaaaaaa_55555555), pairValue(h, dst))
		})
	}
}

func TestCompiler_SpillConst(t *testing.T) {
	for _, bigEndian := range []bool{false, true} {
		bigEndian := bigEndian
		name := "little endian"
		if bigEndian {
			name = "big endian"
		}
		t.Run(name, func(t *testing.T) {
			s := newSimulator(t)
			h := s.m.NewHart()
			opts := NewOptions().WithBigEndian(bigEndian)
			v := int64(-0x0123456789abcdef)
			low, high := GP(riscv32.RegA1), GP(riscv32.RegA2)
			first := GP(riscv32.RegA3)
			pair := Pair(riscv32.RegA4, riscv32.RegA5)
			f64 := FP(riscv32.RegFA0)
			f32 := FP(riscv32.RegFA1)
			entry := s.compile(opts, []Operation{
				&OperationSpillConst{Offset: 24, Type: KindI64, Value: v},
				&OperationFillI64Half{Dst: low.Low(), Offset: 24, Half: LowWord},
				&OperationFillI64Half{Dst: high.Low(), Offset: 24, Half: HighWord},
				&OperationFill{Dst: first, Offset: 24, Type: KindI32},
				&OperationFill{Dst: pair, Offset: 24, Type: KindI64},
				&OperationSpillConst{Offset: 32, Type: KindF64, Value: int64(math.Float64bits(-1.5))},
				&OperationFill{Dst: f64, Offset: 32, Type: KindF64},
				&OperationSpillConst{Offset: 40, Type: KindF32, Value: int64(math.Float32bits(2.25))},
				&OperationFill{Dst: f32, Offset: 40, Type: KindF32},
			}, nil)
			require.NoError(t, s.call(h, entry))

			require.Equal(t, uint32(v), h.Reg(low.Low()))
			require.Equal(t, uint32(v>>32), h.Reg(high.Low()))
			require.Equal(t, uint64(v), pairValue(h, pair))
			if bigEndian {
				require.Equal(t, uint32(v>>32), h.Reg(first.Low()))
			} else {
				require.Equal(t, uint32(v), h.Reg(first.Low()))
			}
			require.Equal(t, -1.5, h.Float64(f64.Low()))
			require.Equal(t, float32(2.25), h.Float32(f32.Low()))
		})
	}
}

func TestCompiler_FillStackSlotsWithZero(t *testing.T) {
	for _, tc := range []struct {
		name        string
		start, size int32
	}{
		{name: "unrolled", start: 24, size: 16},
		{name: "unrolled limit", start: 24, size: 12 * StackSlotSize},
		{name: "loop", start: 24, size: 128},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			s := newSimulator(t)
			h := s.m.NewHart()
			const v = int64(0x5a5a5a5a_a5a5a5a5)
			first, last := tc.start+StackSlotSize, tc.start+tc.size

			var body []Operation
			for offset := tc.start; offset <= last+StackSlotSize; offset += StackSlotSize {
				body = append(body, &OperationSpillConst{Offset: offset, Type: KindI64, Value: v})
			}
			body = append(body, &OperationFillStackSlotsWithZero{Start: tc.start, Size: tc.size})
			var check []uint32
			for offset := tc.start; offset <= last+StackSlotSize; offset += StackSlotSize {
				body = append(body,
					&OperationFill{Dst: Pair(riscv32.RegA1, riscv32.RegA2), Offset: offset, Type: KindI64},
					&OperationStore{Base: riscv32.RegS1, Offset: uint32(8 * len(check)), Src: Pair(riscv32.RegA1, riscv32.RegA2), Type: StoreI64},
				)
				check = append(check, uint32(offset))
			}
			entry := s.compile(nil, body, nil)
			out := s.m.Alloc(uint32(8*len(check)), 8)
			h.SetReg(riscv32.RegS1, out)
			require.NoError(t, s.call(h, entry))

			for i, offset := range check {
				got, err := s.m.ReadUint64(out + uint32(8*i))
				require.NoError(t, err)
				exp := uint64(v)
				if int32(offset) >= first && int32(offset) <= last {
					exp = 0
				}
				require.Equal(t, exp, got, "slot at fp-%d", offset)
			}
		})
	}
}
