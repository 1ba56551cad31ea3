package symbolizer

import (
	"errors"
	"fmt"
)

// Status is the outcome code of a library call. Every error returned by the
// library wraps exactly one Status.
type Status int

const (
	Success Status = iota
	ErrInvalidParameter
	ErrInvalidSize
	ErrLoadFailed
	ErrSymbolNotFound
	ErrLineNotAvailable
	ErrNotImplemented
	ErrFeatureNotAvailable
	ErrNoMem
	ErrRecursive
	ErrGeneric
)

var statusText = map[Status]string{
	Success:                "success",
	ErrInvalidParameter:    "invalid parameter",
	ErrInvalidSize:         "invalid size",
	ErrLoadFailed:          "module load failed",
	ErrSymbolNotFound:      "symbol not found",
	ErrLineNotAvailable:    "line information not available",
	ErrNotImplemented:      "not implemented",
	ErrFeatureNotAvailable: "feature not available",
	ErrNoMem:               "out of memory",
	ErrRecursive:           "recursive call",
	ErrGeneric:             "symbol library error",
}

func (s Status) Error() string {
	if text, ok := statusText[s]; ok {
		return text
	}
	return fmt.Sprintf("status %d", int(s))
}

// StatusOf extracts the Status carried by err. A nil error is Success and an
// error from outside the library is ErrGeneric.
func StatusOf(err error) Status {
	if err == nil {
		return Success
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return ErrGeneric
}

// Found reports whether err still describes a resolved symbol, i.e. it is
// nil or only line information is missing.
func Found(err error) bool {
	s := StatusOf(err)
	return s == Success || s == ErrLineNotAvailable
}

func statusErr(s Status, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), s)
}
