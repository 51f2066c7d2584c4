// Table-driven normalization of driver error messages to container codes.
// Unknown tokens map to INTERNAL; no heuristics beyond substring matching.
package driver

import (
	"errors"
	"fmt"
	"strings"
)

// Normalized container errors.
var (
	ErrInvalidRange = errors.New("INVALID_RANGE")
	ErrBusy         = errors.New("BUSY")
	ErrUnavailable  = errors.New("UNAVAILABLE")
	ErrInternal     = errors.New("INTERNAL")
)

// TokenMap defines the error token mapping for one driver backend.
type TokenMap struct {
	Range       []string // Tokens that map to INVALID_RANGE
	Busy        []string // Tokens that map to BUSY
	Unavailable []string // Tokens that map to UNAVAILABLE
}

// ErrorMappings contains the deterministic token tables per backend.
// Extend by adding a backend entry; unknown backends fall back to "generic".
var ErrorMappings = map[string]TokenMap{
	"rpio": {
		Range: []string{
			"BAD DUTY",
			"BAD PULSE",
			"PIN IS NOT PWM",
			"OUT OF RANGE",
		},
		Busy: []string{
			"DEVICE OR RESOURCE BUSY",
			"EBUSY",
		},
		Unavailable: []string{
			"PERMISSION DENIED",
			"NO SUCH FILE",
			"NOT OPEN",
			"/DEV/MEM",
			"/DEV/GPIOMEM",
		},
	},
	"generic": {
		Range: []string{
			"OUT_OF_RANGE",
			"INVALID_PARAMETER",
			"INVALID_RANGE",
			"BAD_VALUE",
			"RANGE_ERROR",
		},
		Busy: []string{
			"BUSY",
			"RETRY",
			"RATE_LIMIT",
			"BACKOFF",
		},
		Unavailable: []string{
			"UNAVAILABLE",
			"OFFLINE",
			"NOT_READY",
			"NOT OPEN",
		},
	},
}

// DriverError wraps a backend error with its normalized code and the
// original diagnostic.
type DriverError struct {
	Code     error // Normalized container code
	Original error // Backend error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("%v (driver: %v)", e.Code, e.Original)
}

func (e *DriverError) Unwrap() error {
	return e.Code
}

// Normalize maps a backend error to a normalized container code using the
// generic token table.
func Normalize(err error) error {
	return NormalizeFor(err, "generic")
}

// NormalizeFor maps a backend error using a specific backend's token table.
func NormalizeFor(err error, backend string) error {
	if err == nil {
		return nil
	}

	return &DriverError{
		Code:     mapErrorToCode(err.Error(), backend),
		Original: err,
	}
}

func mapErrorToCode(msg, backend string) error {
	table, ok := ErrorMappings[backend]
	if !ok {
		table = ErrorMappings["generic"]
	}

	upper := strings.ToUpper(msg)

	for _, token := range table.Range {
		if strings.Contains(upper, token) {
			return ErrInvalidRange
		}
	}
	for _, token := range table.Busy {
		if strings.Contains(upper, token) {
			return ErrBusy
		}
	}
	for _, token := range table.Unavailable {
		if strings.Contains(upper, token) {
			return ErrUnavailable
		}
	}

	return ErrInternal
}
