package river

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below via errors.Is.
var (
	ErrFormat           = errors.New("river: malformed field path")
	ErrRowShape         = errors.New("river: row does not match header")
	ErrSequence         = errors.New("river: lifecycle violation")
	ErrUnknownOperation = errors.New("river: unknown operation type")
)

// FormatError reports a column name that cannot be parsed into a field path,
// or a header whose paths disagree on the shape of the document.
type FormatError struct {
	Column string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("river: column %q: %s", e.Column, e.Reason)
}

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// RowShapeError reports a row whose length differs from the header.
type RowShapeError struct {
	Want int
	Got  int
}

func (e *RowShapeError) Error() string {
	return fmt.Sprintf("river: row has %d values, header has %d columns", e.Got, e.Want)
}

func (e *RowShapeError) Is(target error) bool { return target == ErrRowShape }

// SequenceError reports a session call made in the wrong state.
type SequenceError struct {
	Op    string
	State string
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("river: %s not allowed while session is %s", e.Op, e.State)
}

func (e *SequenceError) Is(target error) bool { return target == ErrSequence }

// UnknownOperationError reports an operation type outside index/create/delete.
// It is never returned to the caller; the session recovers by indexing and
// hands the error to its Observer.
type UnknownOperationError struct {
	OpType string
	ID     string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("river: unknown operation type %q for id %q, indexing instead", e.OpType, e.ID)
}

func (e *UnknownOperationError) Is(target error) bool { return target == ErrUnknownOperation }
