package bencherr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCategoryMatchesThroughWrapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
		code int
	}{
		{Validation("criterion", "invalid choice %q", "gini"), "ValidationError", 2},
		{Configuration("repetitions", "must be >= 1"), "ConfigurationError", 1},
		{ShapeMismatch("rmse", "3 != 4"), "ShapeMismatchError", 1},
		{DegenerateInput("r2_score", "constant truth"), "DegenerateInputError", 1},
		{Schema("times", "length 1, want 2"), "SchemaError", 1},
		{errors.New("boom"), "Error", 1},
	}

	for _, tt := range tests {
		wrapped := fmt.Errorf("stage training: %w", tt.err)

		if got := Category(wrapped); got != tt.want {
			t.Errorf("Category(%v) = %q, want %q", wrapped, got, tt.want)
		}
		if got := ExitCode(wrapped); got != tt.code {
			t.Errorf("ExitCode(%v) = %d, want %d", wrapped, got, tt.code)
		}
	}
}

func TestErrorMessageNamesSubject(t *testing.T) {
	err := Validation("criterion", "invalid choice %q", "gini")

	want := `--criterion: invalid choice "gini"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	if errors.Is(err, ErrSchema) {
		t.Error("validation error must not match ErrSchema")
	}
}

func TestExitCodeNil(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Errorf("ExitCode(nil) = %d, want 0", got)
	}
}
