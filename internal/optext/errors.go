package optext

import (
	"errors"
	"fmt"
)

// ErrUndefinedLabel is returned when a label is used but never bound.
var ErrUndefinedLabel = errors.New("undefined label")

// FormatError allows control over the format of errors parsing operation text.
type FormatError struct {
	// Line is the 1-based source line of the error.
	Line int
	// Col is the 1-based column of the operand which failed to parse, or zero when the whole line is at fault.
	Col int
	// Context is where symbolically the error occurred. Ex "ool: i32.add"
	Context string
	cause   error
}

func (e *FormatError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("%d:%d: %v", e.Line, e.Col, e.cause)
	}
	return fmt.Sprintf("%d:%d: %v in %s", e.Line, e.Col, e.cause, e.Context)
}

func (e *FormatError) Unwrap() error {
	return e.cause
}

// operandError is the failure of a single operand, positioned by the line parser.
type operandError struct {
	col   int
	cause error
}

func (e *operandError) Error() string {
	return e.cause.Error()
}

func errorAt(f field, format string, args ...interface{}) error {
	return &operandError{col: f.col, cause: fmt.Errorf(format, args...)}
}

func unknownMnemonic(mnemonic string) error {
	return fmt.Errorf("unknown operation: %s", mnemonic)
}

func operandCount(expected, actual int) error {
	return fmt.Errorf("expected %d operands, but parsed %d", expected, actual)
}
