package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
)

// MissingFieldError reports a read of a column that is absent from a record.
// Step and Index are filled in by the pipeline stage that hit it; Index is -1
// when the record position is unknown.
type MissingFieldError struct {
	Column Column
	Step   string
	Index  int
}

func (e *MissingFieldError) Error() string {
	msg := fmt.Sprintf("missing field %q", e.Column)
	if e.Step != "" {
		msg = fmt.Sprintf("%s: %s", e.Step, msg)
	}
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s (record %d)", msg, e.Index)
	}
	return msg
}

// At returns a copy of e located at step and record index.
func (e *MissingFieldError) At(step string, index int) *MissingFieldError {
	return &MissingFieldError{Column: e.Column, Step: step, Index: index}
}

// InvalidDateError reports a date value that cannot be parsed.
type InvalidDateError struct {
	Value string
	Step  string
	Index int
	Err   error
}

func (e *InvalidDateError) Error() string {
	msg := fmt.Sprintf("invalid date %q", e.Value)
	if e.Step != "" {
		msg = fmt.Sprintf("%s: %s", e.Step, msg)
	}
	if e.Index >= 0 {
		msg = fmt.Sprintf("%s (record %d)", msg, e.Index)
	}
	return msg
}

func (e *InvalidDateError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidDate
}
