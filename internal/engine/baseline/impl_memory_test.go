package baseline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/baseline32/internal/asm"
	"github.com/tetratelabs/baseline32/internal/asm/riscv32"
	"github.com/tetratelabs/baseline32/internal/testing/rv32sim"
)

var (
	memBase  = riscv32.RegA1
	memIndex = riscv32.RegA2
)

// memoryPattern has the high bit of every byte set, so narrow signed loads extend with ones.
var memoryPattern = []byte{0x81, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87, 0x88, 0x89, 0x8a, 0x8b, 0x8c, 0x8d, 0x8e, 0x8f, 0x90}

// memoryAddressings are the base, index and offset forms of a memory access.
var memoryAddressings = []struct {
	name   string
	index  uint32
	offset uint32
}{
	{name: "base"},
	{name: "offset", offset: 8},
	{name: "offset at the immediate limit", offset: 2044},
	{name: "index", index: 24},
	{name: "index and large offset", index: 16, offset: 0x12344},
}

func TestCompiler_Load(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	mem := s.m.Alloc(0x20000, 16)
	tests := []struct {
		typ LoadType
		exp uint64
	}{
		{typ: LoadI32, exp: 0x84838281},
		{typ: LoadI32_8S, exp: 0xffffff81},
		{typ: LoadI32_8U, exp: 0x81},
		{typ: LoadI32_16S, exp: 0xffff8281},
		{typ: LoadI32_16U, exp: 0x8281},
		{typ: LoadI64, exp: 0x88878685_84838281},
		{typ: LoadI64_8S, exp: 0xffffffff_ffffff81},
		{typ: LoadI64_8U, exp: 0x81},
		{typ: LoadI64_16S, exp: 0xffffffff_ffff8281},
		{typ: LoadI64_16U, exp: 0x8281},
		{typ: LoadI64_32S, exp: 0xffffffff_84838281},
		{typ: LoadI64_32U, exp: 0x84838281},
		{typ: LoadF32, exp: 0x84838281},
		{typ: LoadF64, exp: 0x88878685_84838281},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.typ.String(), func(t *testing.T) {
			for _, a := range memoryAddressings {
				var dst Reg
				switch tc.typ.ValueKind() {
				case KindI32:
					dst = i32Dst
				case KindI64:
					dst = i64Dst
				default:
					dst = floatDst
				}
				index := asm.NilRegister
				if a.index != 0 {
					index = memIndex
				}
				entry := s.compile(nil, []Operation{
					&OperationLoad{Type: tc.typ, Dst: dst, Base: memBase, Index: index, Offset: a.offset},
				}, nil)
				require.NoError(t, s.m.WriteBytes(mem+a.index+a.offset, memoryPattern))
				h.SetReg(memBase, mem)
				h.SetReg(memIndex, a.index)
				setPair(h, i64Dst, 0)
				require.NoError(t, s.call(h, entry), a.name)

				var got uint64
				switch tc.typ {
				case LoadF32:
					got = uint64(math.Float32bits(h.Float32(dst.Low())))
				case LoadF64:
					got = math.Float64bits(h.Float64(dst.Low()))
				default:
					if dst.Class() == RegClassGPPair {
						got = pairValue(h, dst)
					} else {
						got = uint64(h.Reg(dst.Low()))
					}
				}
				require.Equal(t, tc.exp, got, a.name)
			}
		})
	}
}

func TestCompiler_Load_i64IntoBase(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	mem := s.m.Alloc(16, 16)
	require.NoError(t, s.m.WriteBytes(mem, memoryPattern))

	for _, dst := range []Reg{Pair(memBase, riscv32.RegA4), Pair(riscv32.RegA4, memBase)} {
		entry := s.compile(nil, []Operation{&OperationLoad{Type: LoadI64, Dst: dst, Base: memBase, Offset: 4}}, nil)
		h.SetReg(memBase, mem)
		require.NoError(t, s.call(h, entry))
		require.Equal(t, uint64(0x8c8b8a89_88878685), pairValue(h, dst), dst.String())
	}
}

func TestCompiler_Store(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	mem := s.m.Alloc(0x20000, 16)
	const value = 0x88878685_84838281
	tests := []struct {
		typ StoreType
		// exp is the memory written, followed by an untouched byte.
		exp []byte
	}{
		{typ: StoreI32, exp: []byte{0x81, 0x82, 0x83, 0x84, 0}},
		{typ: StoreI32_8, exp: []byte{0x81, 0}},
		{typ: StoreI32_16, exp: []byte{0x81, 0x82, 0}},
		{typ: StoreI64, exp: []byte{0x81, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87, 0x88, 0}},
		{typ: StoreI64_8, exp: []byte{0x81, 0}},
		{typ: StoreI64_16, exp: []byte{0x81, 0x82, 0}},
		{typ: StoreI64_32, exp: []byte{0x81, 0x82, 0x83, 0x84, 0}},
		{typ: StoreF32, exp: []byte{0x81, 0x82, 0x83, 0x84, 0}},
		{typ: StoreF64, exp: []byte{0x81, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87, 0x88, 0}},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.typ.String(), func(t *testing.T) {
			for _, a := range memoryAddressings {
				var src Reg
				switch tc.typ.ValueKind() {
				case KindI32:
					src = i32Dst
					h.SetReg(src.Low(), value&math.MaxUint32)
				case KindI64:
					src = i64Dst
					setPair(h, src, value)
				case KindF32:
					src = floatDst
					h.SetFloat32(src.Low(), math.Float32frombits(value&math.MaxUint32))
				default:
					src = floatDst
					h.SetFloat64(src.Low(), math.Float64frombits(value))
				}
				index := asm.NilRegister
				if a.index != 0 {
					index = memIndex
				}
				entry := s.compile(nil, []Operation{
					&OperationStore{Type: tc.typ, Src: src, Base: memBase, Index: index, Offset: a.offset},
				}, nil)
				addr := mem + a.index + a.offset
				require.NoError(t, s.m.WriteBytes(addr, make([]byte, 16)))
				h.SetReg(memBase, mem)
				h.SetReg(memIndex, a.index)
				require.NoError(t, s.call(h, entry), a.name)

				got, err := s.m.Bytes(addr, uint32(len(tc.exp)))
				require.NoError(t, err)
				require.Equal(t, tc.exp, got, a.name)
			}
		})
	}
}

func TestCompiler_LoadStoreS128(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	mem := s.m.Alloc(0x2000, 16)
	require.NoError(t, s.m.WriteBytes(mem+0x10, memoryPattern))

	entry := s.compile(nil, []Operation{
		&OperationLoad{Type: LoadS128, Dst: vecLhs, Base: memBase, Offset: 0x10},
		&OperationStore{Type: StoreS128, Src: vecLhs, Base: memBase, Index: memIndex, Offset: 0x1000},
	}, nil)
	h.SetReg(memBase, mem)
	h.SetReg(memIndex, 0x20)
	require.NoError(t, s.call(h, entry))

	got, err := s.m.Bytes(mem+0x1020, 16)
	require.NoError(t, err)
	require.Equal(t, memoryPattern, got)
}

func TestCompiler_Load_protectedPC(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()

	var pc uint32
	c := NewCompiler(nil)
	require.NoError(t, c.Lower(&OperationEnterFrame{}))
	r := c.PrepareStackFrame()
	require.NoError(t, c.Lower(&OperationLoad{Type: LoadI64, Dst: i64Dst, Base: memBase, Offset: 0x10000, ProtectedPC: &pc}))
	require.NoError(t, c.Lower(&OperationLeaveFrame{}))
	require.NoError(t, c.Lower(&OperationDropStackSlotsAndRet{}))
	require.NoError(t, c.PatchStackFrame(r, nil))
	f, err := c.Finalize(nil)
	require.NoError(t, err)
	require.Equal(t, []uint32{pc}, f.ProtectedInstructions)

	base := s.m.CodeEnd()
	require.NoError(t, f.Link(base, s.resolve))
	entry, err := s.m.LoadCode(f.Code)
	require.NoError(t, err)
	// The null guard faults.
	h.SetReg(memBase, 0xffff0000)
	err = s.call(h, entry)
	require.ErrorIs(t, err, rv32sim.ErrOutOfBounds)
	require.Equal(t, entry+pc, h.PC)
}

func TestCompiler_TaggedPointer(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	const page = PageAlignmentMask + 1
	objects := s.m.Alloc(page, page)
	values := s.m.Alloc(page, page)
	object := objects + 0x100
	value := values + 0x201

	load := s.compile(nil, []Operation{
		&OperationLoadTaggedPointer{Dst: riscv32.RegA3, Base: memBase, Index: memIndex, Offset: 12},
	}, nil)
	store := s.compile(nil, []Operation{
		&OperationStoreTaggedPointer{Base: memBase, Offset: 12, Src: riscv32.RegA3},
	}, nil)
	storeIndexed := s.compile(nil, []Operation{
		&OperationStoreTaggedPointer{Base: memBase, Index: memIndex, Offset: 12, Src: riscv32.RegA3},
	}, nil)
	storeNoBarrier := s.compile(nil, []Operation{
		&OperationStoreTaggedPointer{Base: memBase, Offset: 12, Src: riscv32.RegA3, SkipWriteBarrier: true},
	}, nil)

	t.Run("load", func(t *testing.T) {
		require.NoError(t, s.m.WriteUint32(object+4+12, value))
		h.SetReg(memBase, object)
		h.SetReg(memIndex, 4)
		require.NoError(t, s.call(h, load))
		require.Equal(t, value, h.Reg(riscv32.RegA3))
	})

	for _, tc := range []struct {
		name     string
		from, to uint32
		value    uint32
		entry    uint32
		index    uint32
		barrier  bool
	}{
		{name: "no flags", value: value, entry: store},
		{name: "only from", from: PointersFromHereAreInterestingMask, value: value, entry: store},
		{name: "only to", to: PointersToHereAreInterestingMask, value: value, entry: store},
		{name: "smi", from: PointersFromHereAreInterestingMask, to: PointersToHereAreInterestingMask, value: 0x200, entry: store},
		{name: "skipped", from: PointersFromHereAreInterestingMask, to: PointersToHereAreInterestingMask, value: value, entry: storeNoBarrier},
		{
			name: "barrier", from: PointersFromHereAreInterestingMask, to: PointersToHereAreInterestingMask,
			value: value, entry: store, barrier: true,
		},
		{
			name: "barrier indexed", from: PointersFromHereAreInterestingMask, to: PointersToHereAreInterestingMask,
			value: value, entry: storeIndexed, index: 8, barrier: true,
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, s.m.WriteUint32(objects+PageFlagsOffset, tc.from))
			require.NoError(t, s.m.WriteUint32(values+PageFlagsOffset, tc.to))
			slot := object + tc.index + 12
			require.NoError(t, s.m.WriteUint32(slot, 0))
			h.SetReg(memBase, object)
			h.SetReg(memIndex, tc.index)
			h.SetReg(riscv32.RegA3, tc.value)

			err := s.call(h, tc.entry)
			if tc.barrier {
				requireTrap(t, err, StubWriteBarrier)
				require.Equal(t, object, h.Reg(riscv32.RegA0))
				require.Equal(t, slot, h.Reg(riscv32.RegA1))
			} else {
				require.NoError(t, err)
			}
			stored, err := s.m.ReadUint32(slot)
			require.NoError(t, err)
			require.Equal(t, tc.value, stored)
		})
	}
}

func TestCompiler_LoadFromInstance(t *testing.T) {
	s := newSimulator(t)
	h := s.m.NewHart()
	require.NoError(t, s.m.WriteUint32(s.instance+0x20, 0x84838281))

	for _, tc := range []struct {
		size int
		exp  uint32
	}{
		{size: 1, exp: 0x81},
		{size: 2, exp: 0x8281},
		{size: 4, exp: 0x84838281},
	} {
		entry := s.compile(nil, []Operation{
			&OperationLoadFromInstance{Dst: riscv32.RegA3, Instance: riscv32.RegA0, Offset: 0x20, Size: tc.size},
		}, nil)
		require.NoError(t, s.call(h, entry))
		require.Equal(t, tc.exp, h.Reg(riscv32.RegA3))
	}
}
