package model

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateRunID(t *testing.T) {
	for _, id := range []string{"run-1", "9c7f1a52-6c1e-4f51-9a4e-0d3b1f7c2a10", "bench_2", "v1.2"} {
		if err := ValidateRunID(id); err != nil {
			t.Fatalf("expected %q to be accepted: %v", id, err)
		}
	}
	for _, id := range []string{"", ".", "..", "../x", "a/b", `a\b`, "-flag", "a b", strings.Repeat("a", MaxRunIDLength+1)} {
		if err := ValidateRunID(id); !errors.Is(err, ErrConfiguration) {
			t.Fatalf("expected %q to be rejected with ErrConfiguration, got %v", id, err)
		}
	}
}
