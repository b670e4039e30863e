package baseline

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrBailout matches every *BailoutError with errors.Is.
var ErrBailout = errors.New("baseline compilation bailed out")

// BailoutReason classifies why a function cannot be compiled by the baseline compiler.
type BailoutReason byte

const (
	ReasonOther BailoutReason = iota
	ReasonSIMD
	ReasonUnsupportedArchitecture
	ReasonAtomics
)

// String implements fmt.Stringer.
func (r BailoutReason) String() string {
	switch r {
	case ReasonSIMD:
		return "simd"
	case ReasonUnsupportedArchitecture:
		return "unsupported architecture"
	case ReasonAtomics:
		return "atomics"
	}
	return "other"
}

// BailoutError is returned when an operation has no lowering. The whole function must then be
// compiled by another tier.
type BailoutError struct {
	Reason BailoutReason
	Detail string
}

// Error implements error.
func (e *BailoutError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", ErrBailout, e.Detail, e.Reason)
}

// Is implements the interface used by errors.Is.
func (e *BailoutError) Is(target error) bool {
	return target == ErrBailout
}

// bailout records the first bail-out of the function. Later ones are ignored.
func (c *Compiler) bailout(reason BailoutReason, detail string) {
	if c.bailoutErr != nil {
		return
	}
	c.bailoutErr = &BailoutError{Reason: reason, Detail: detail}
	if c.opts.Stats != nil {
		c.opts.Stats.Bailouts.Inc()
	}
	c.logger.Debug("bailout", zap.Stringer("reason", reason), zap.String("detail", detail))
}
