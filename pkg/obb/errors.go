package obb

import "fmt"

// InvalidInputError reports arguments that cannot produce a valid OBB:
// too few or degenerate points for fitting, negative half sizes, or a
// rotation that is not orthonormal.
type InvalidInputError struct {
	Op     string
	Reason string
	Err    error
}

func (e *InvalidInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("obb: %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("obb: %s: %s", e.Op, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

// SerializationError reports a serialized OBB with missing fields, wrong
// array lengths, a wrong type tag, or values violating the OBB invariants.
type SerializationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *SerializationError) Error() string {
	msg := "obb: decode"
	if e.Field != "" {
		msg += " " + e.Field
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SerializationError) Unwrap() error { return e.Err }

// NumericError reports a computation that would have produced NaN or
// infinite geometry, such as normalizing by a zero surface area.
type NumericError struct {
	Op     string
	Reason string
	Err    error
}

func (e *NumericError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("obb: %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("obb: %s: %s", e.Op, e.Reason)
}

func (e *NumericError) Unwrap() error { return e.Err }
