package baseline

import "fmt"

// ValueKind is the type of a value flowing through the operation stream.
type ValueKind byte

const (
	KindI32 ValueKind = iota
	KindI64
	KindF32
	KindF64
	KindS128
	KindRef
	KindRefNull
	KindRtt
)

// String implements fmt.Stringer.
func (k ValueKind) String() string {
	switch k {
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindS128:
		return "s128"
	case KindRef:
		return "ref"
	case KindRefNull:
		return "ref_null"
	case KindRtt:
		return "rtt"
	}
	return fmt.Sprintf("kind(%d)", k)
}

// IsReference returns true if the value is a tagged pointer tracked by safepoints.
func (k ValueKind) IsReference() bool {
	return k == KindRef || k == KindRefNull || k == KindRtt
}

// ElementSize returns the size of the value in bytes.
func (k ValueKind) ElementSize() int32 {
	switch k {
	case KindI64, KindF64:
		return 8
	case KindS128:
		return 16
	}
	return 4
}

// SlotSize returns the size of the spill slot of the value in bytes.
func (k ValueKind) SlotSize() int32 {
	if k == KindS128 {
		return 16
	}
	return StackSlotSize
}

// RegClass is the class of registers a value lives in.
type RegClass byte

const (
	RegClassGP RegClass = iota
	RegClassFP
	RegClassVec
	RegClassGPPair
)

// String implements fmt.Stringer.
func (c RegClass) String() string {
	switch c {
	case RegClassGP:
		return "gp"
	case RegClassFP:
		return "fp"
	case RegClassVec:
		return "vec"
	case RegClassGPPair:
		return "gp_pair"
	}
	return fmt.Sprintf("class(%d)", c)
}

// Classify returns the register class of the kind and the number of 32-bit words its value takes.
func Classify(k ValueKind) (class RegClass, words int) {
	switch k {
	case KindI64:
		return RegClassGPPair, 2
	case KindF32:
		return RegClassFP, 1
	case KindF64:
		return RegClassFP, 2
	case KindS128:
		return RegClassVec, 4
	}
	return RegClassGP, 1
}
