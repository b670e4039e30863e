package baseline

import "fmt"

// Frame layout, in bytes relative to fp. The return address and the caller's fp are
// above fp, the fixed slots and the spill area below.
const (
	ReturnAddressOffset = 4
	SavedFPOffset       = 0

	FrameMarkerOffset    = 4
	InstanceOffset       = 8
	FeedbackVectorOffset = 12
	TierupBudgetOffset   = 16

	// StackSlotSize is the size of a spill slot of any kind but S128.
	StackSlotSize = 8

	// FrameMarkerWasm is stored at FrameMarkerOffset by EnterFrame so that stack walkers can
	// tell baseline frames apart.
	FrameMarkerWasm int32 = 0x12 << 1
)

// Offsets of the fields read from the instance object.
const (
	InstanceStackLimitAddressOffset = 8
	InstanceMemoryStartOffset       = 12
)

// Heap page layout read by the write barrier.
const (
	PageAlignmentMask                  = 1<<18 - 1
	PageFlagsOffset                    = 4
	PointersFromHereAreInterestingMask = 1 << 1
	PointersToHereAreInterestingMask   = 1 << 2
	SmiTagMask                         = 1
)

// DefaultStackSizeKB is the stack size assumed by the frame size check.
const DefaultStackSizeKB = 984

// RuntimeStub identifies an entry point of the runtime called by generated code.
type RuntimeStub byte

const (
	StubStackOverflow RuntimeStub = iota
	StubWriteBarrier
	StubThrowUnreachable
	StubThrowDivByZero
	StubThrowDivUnrepresentable
	StubThrowFloatUnrepresentable
	StubThrowMemoryOutOfBounds
	stubEnd
)

// String implements fmt.Stringer.
func (s RuntimeStub) String() string {
	switch s {
	case StubStackOverflow:
		return "WasmStackOverflow"
	case StubWriteBarrier:
		return "RecordWrite"
	case StubThrowUnreachable:
		return "ThrowWasmTrapUnreachable"
	case StubThrowDivByZero:
		return "ThrowWasmTrapDivByZero"
	case StubThrowDivUnrepresentable:
		return "ThrowWasmTrapDivUnrepresentable"
	case StubThrowFloatUnrepresentable:
		return "ThrowWasmTrapFloatUnrepresentable"
	case StubThrowMemoryOutOfBounds:
		return "ThrowWasmTrapMemOutOfBounds"
	}
	return fmt.Sprintf("stub(%d)", s)
}

// RuntimeStubByName returns the stub of the given name.
func RuntimeStubByName(name string) (RuntimeStub, bool) {
	for s := RuntimeStub(0); s < stubEnd; s++ {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}

// ExternalReference identifies a C function called through CallC. Every function takes
// a pointer to an argument buffer in a0 and may return an i32 status in a0.
type ExternalReference byte

const (
	ExtInt64Div ExternalReference = iota
	ExtInt64Mod
	ExtUint64Div
	ExtUint64Mod
	ExtF64Ceil
	ExtF64Floor
	ExtF64Trunc
	ExtF64NearestInt
	ExtInt64ToFloat32
	ExtUint64ToFloat32
	ExtInt64ToFloat64
	ExtUint64ToFloat64
	ExtFloat32ToInt64
	ExtFloat32ToUint64
	ExtFloat64ToInt64
	ExtFloat64ToUint64
	ExtFloat32ToInt64Sat
	ExtFloat32ToUint64Sat
	ExtFloat64ToInt64Sat
	ExtFloat64ToUint64Sat
	extEnd
)

var externalReferenceNames = [extEnd]string{
	ExtInt64Div:           "int64_div_wrapper",
	ExtInt64Mod:           "int64_mod_wrapper",
	ExtUint64Div:          "uint64_div_wrapper",
	ExtUint64Mod:          "uint64_mod_wrapper",
	ExtF64Ceil:            "f64_ceil_wrapper",
	ExtF64Floor:           "f64_floor_wrapper",
	ExtF64Trunc:           "f64_trunc_wrapper",
	ExtF64NearestInt:      "f64_nearest_int_wrapper",
	ExtInt64ToFloat32:     "int64_to_float32_wrapper",
	ExtUint64ToFloat32:    "uint64_to_float32_wrapper",
	ExtInt64ToFloat64:     "int64_to_float64_wrapper",
	ExtUint64ToFloat64:    "uint64_to_float64_wrapper",
	ExtFloat32ToInt64:     "float32_to_int64_wrapper",
	ExtFloat32ToUint64:    "float32_to_uint64_wrapper",
	ExtFloat64ToInt64:     "float64_to_int64_wrapper",
	ExtFloat64ToUint64:    "float64_to_uint64_wrapper",
	ExtFloat32ToInt64Sat:  "float32_to_int64_sat_wrapper",
	ExtFloat32ToUint64Sat: "float32_to_uint64_sat_wrapper",
	ExtFloat64ToInt64Sat:  "float64_to_int64_sat_wrapper",
	ExtFloat64ToUint64Sat: "float64_to_uint64_sat_wrapper",
}

// String implements fmt.Stringer.
func (e ExternalReference) String() string {
	if e < extEnd {
		return externalReferenceNames[e]
	}
	return fmt.Sprintf("external(%d)", e)
}

// ExternalReferenceByName returns the external reference of the given name, such as
// "int64_div_wrapper".
func ExternalReferenceByName(name string) (ExternalReference, bool) {
	for i, n := range externalReferenceNames {
		if n == name {
			return ExternalReference(i), true
		}
	}
	return 0, false
}

// RelocationKind is the kind of target of a call site.
type RelocationKind byte

const (
	// RelocRuntimeStub is a call to a RuntimeStub.
	RelocRuntimeStub RelocationKind = iota
	// RelocExternalReference is a call to an ExternalReference.
	RelocExternalReference
	// RelocWasmCall is a direct call to another function by index.
	RelocWasmCall
)

// String implements fmt.Stringer.
func (k RelocationKind) String() string {
	switch k {
	case RelocRuntimeStub:
		return "runtime_stub"
	case RelocExternalReference:
		return "external_reference"
	case RelocWasmCall:
		return "wasm_call"
	}
	return fmt.Sprintf("reloc(%d)", k)
}

// Relocation is an `auipc; jalr` pair at Offset whose target is resolved at link time.
type Relocation struct {
	Offset uint32
	Kind   RelocationKind
	// Target is the RuntimeStub, the ExternalReference or the function index depending on Kind.
	Target uint32
}

// String implements fmt.Stringer.
func (r Relocation) String() string {
	var target string
	switch r.Kind {
	case RelocRuntimeStub:
		target = RuntimeStub(r.Target).String()
	case RelocExternalReference:
		target = ExternalReference(r.Target).String()
	default:
		target = fmt.Sprintf("func[%d]", r.Target)
	}
	return fmt.Sprintf("%#x: %s %s", r.Offset, r.Kind, target)
}
