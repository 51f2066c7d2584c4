package driver

import (
	"errors"
	"fmt"
	"testing"
)

func TestNormalizeForRPIOTokens(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected error
	}{
		{"bad duty", "bad duty 1.2", ErrInvalidRange},
		{"non-pwm pin", "pin is not pwm capable", ErrInvalidRange},
		{"busy device", "open /dev/gpiomem: device or resource busy", ErrBusy},
		{"permission denied", "open /dev/mem: permission denied", ErrUnavailable},
		{"missing device", "open /dev/gpiomem: no such file or directory", ErrUnavailable},
		{"unknown message", "kernel exploded", ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NormalizeFor(errors.New(tt.input), "rpio")
			if !errors.Is(err, tt.expected) {
				t.Errorf("NormalizeFor(%q) = %v, want %v", tt.input, err, tt.expected)
			}
		})
	}
}

func TestNormalizeGenericTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected error
	}{
		{"value OUT_OF_RANGE", ErrInvalidRange},
		{"resource busy, retry later", ErrBusy},
		{"backend offline", ErrUnavailable},
		{"something else entirely", ErrInternal},
	}

	for _, tt := range tests {
		err := Normalize(errors.New(tt.input))
		if !errors.Is(err, tt.expected) {
			t.Errorf("Normalize(%q) = %v, want %v", tt.input, err, tt.expected)
		}
	}
}

func TestNormalizeNilPassthrough(t *testing.T) {
	if err := Normalize(nil); err != nil {
		t.Errorf("Normalize(nil) = %v, want nil", err)
	}
}

func TestNormalizeCaseInsensitive(t *testing.T) {
	err := NormalizeFor(errors.New("Device Or Resource Busy"), "rpio")
	if !errors.Is(err, ErrBusy) {
		t.Errorf("expected BUSY for mixed-case message, got %v", err)
	}
}

func TestNormalizeUnknownBackendFallsBack(t *testing.T) {
	err := NormalizeFor(errors.New("value OUT_OF_RANGE"), "no-such-backend")
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("unknown backend should use the generic table, got %v", err)
	}
}

func TestDriverErrorPreservesOriginal(t *testing.T) {
	original := errors.New("bad duty 7")
	err := NormalizeFor(original, "rpio")

	var drvErr *DriverError
	if !errors.As(err, &drvErr) {
		t.Fatalf("expected *DriverError, got %T", err)
	}
	if drvErr.Original != original {
		t.Errorf("original error lost: %v", drvErr.Original)
	}

	// The normalized code survives another layer of wrapping.
	wrapped := fmt.Errorf("apply tick: %w", err)
	if !errors.Is(wrapped, ErrInvalidRange) {
		t.Errorf("wrapped error lost its code: %v", wrapped)
	}
}

func TestDirectionString(t *testing.T) {
	tests := []struct {
		dir  Direction
		want string
	}{
		{Coast, "coast"},
		{Forward, "forward"},
		{Reverse, "reverse"},
		{Brake, "brake"},
		{Direction(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.dir.String(); got != tt.want {
			t.Errorf("Direction(%d).String() = %q, want %q", tt.dir, got, tt.want)
		}
	}
}
