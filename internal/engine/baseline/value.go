package baseline

import "fmt"

// Condition is the comparison of set_cond and conditional jumps.
type Condition byte

const (
	CondEqual Condition = iota
	CondNotEqual
	CondLessThan
	CondLessEqual
	CondGreaterThan
	CondGreaterEqual
	CondUnsignedLessThan
	CondUnsignedLessEqual
	CondUnsignedGreaterThan
	CondUnsignedGreaterEqual
)

var conditionNames = [...]string{
	CondEqual:                "eq",
	CondNotEqual:             "ne",
	CondLessThan:             "lt_s",
	CondLessEqual:            "le_s",
	CondGreaterThan:          "gt_s",
	CondGreaterEqual:         "ge_s",
	CondUnsignedLessThan:     "lt_u",
	CondUnsignedLessEqual:    "le_u",
	CondUnsignedGreaterThan:  "gt_u",
	CondUnsignedGreaterEqual: "ge_u",
}

// String implements fmt.Stringer.
func (c Condition) String() string {
	if int(c) < len(conditionNames) {
		return conditionNames[c]
	}
	return fmt.Sprintf("cond(%d)", c)
}

// ConditionByName returns the condition of the given name.
func ConditionByName(name string) (Condition, bool) {
	for i, n := range conditionNames {
		if n == name {
			return Condition(i), true
		}
	}
	return 0, false
}

// Unsigned returns the unsigned variant of the condition.
func (c Condition) Unsigned() Condition {
	switch c {
	case CondLessThan:
		return CondUnsignedLessThan
	case CondLessEqual:
		return CondUnsignedLessEqual
	case CondGreaterThan:
		return CondUnsignedGreaterThan
	case CondGreaterEqual:
		return CondUnsignedGreaterEqual
	}
	return c
}

// RegPairHalf selects a word of an i64.
type RegPairHalf byte

const (
	LowWord RegPairHalf = iota
	HighWord
)

// LocationKind is where a value lives.
type LocationKind byte

const (
	LocationRegister LocationKind = iota
	LocationStack
	LocationConst
)

// ValueLocation is the location of a value tracked by the operation stream: a register, a
// spill slot at Offset bytes below fp, or an i32 constant.
type ValueLocation struct {
	Location LocationKind
	Kind     ValueKind
	Reg      Reg
	Offset   int32
	Const    int32
}

// RegisterLocation returns the location of a value held in the register.
func RegisterLocation(kind ValueKind, r Reg) ValueLocation {
	return ValueLocation{Location: LocationRegister, Kind: kind, Reg: r}
}

// StackLocation returns the location of a value spilled at the offset.
func StackLocation(kind ValueKind, offset int32) ValueLocation {
	return ValueLocation{Location: LocationStack, Kind: kind, Offset: offset}
}

// ConstLocation returns the location of a constant.
func ConstLocation(kind ValueKind, v int32) ValueLocation {
	return ValueLocation{Location: LocationConst, Kind: kind, Const: v}
}

// String implements fmt.Stringer.
func (l ValueLocation) String() string {
	switch l.Location {
	case LocationRegister:
		return fmt.Sprintf("%s:%s", l.Kind, l.Reg)
	case LocationStack:
		return fmt.Sprintf("%s:[fp-%d]", l.Kind, l.Offset)
	}
	return fmt.Sprintf("%s:%d", l.Kind, l.Const)
}
