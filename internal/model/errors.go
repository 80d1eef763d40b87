package model

import (
	"errors"
	"fmt"
)

// ErrNoListings means the listing page never showed a single entry.
var ErrNoListings = errors.New("no listing entries found")

// FieldError describes a listing field that could not be read for one record.
type FieldError struct {
	JobID string
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("field %s of %s: %v", e.Field, e.JobID, e.Err)
	}
	return fmt.Sprintf("field %s of %s", e.Field, e.JobID)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
