package domain

import (
	"errors"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrNoMatch is returned by a resolver when the geocoder knows no candidate for an address.
	ErrNoMatch = errors.New("geocoder: no match for address")
)

// ValidationError reports a submission the service refuses to persist.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation failed")
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if len(e.Fields) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Fields, ", "))
	}
	return b.String()
}

func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
