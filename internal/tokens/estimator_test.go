package tokens

import (
	"strings"
	"testing"
)

func TestCharEstimator(t *testing.T) {
	e := NewCharEstimator(0)

	tests := map[string]int{
		"":      0,
		"a":     1,
		"abcd":  1,
		"abcde": 2,
		"héllo": 2,
		"日本語の文": 2,
	}
	for in, want := range tests {
		if got := e.Estimate(in); got != want {
			t.Errorf("Estimate(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestCharEstimatorRatio(t *testing.T) {
	e := NewCharEstimator(2)
	if got := e.Estimate("abcdef"); got != 3 {
		t.Errorf("Expected 3 tokens at ratio 2, got %d", got)
	}

	zero := &CharEstimator{}
	if got := zero.Estimate("abcdefgh"); got != 2 {
		t.Errorf("Expected zero ratio to fall back to default, got %d", got)
	}
}

func TestCharEstimatorMonotone(t *testing.T) {
	e := NewCharEstimator(DefaultCharsPerToken)
	prev := 0
	for n := 0; n < 200; n++ {
		got := e.Estimate(strings.Repeat("x", n))
		if got < prev {
			t.Fatalf("Estimate decreased at length %d: %d < %d", n, got, prev)
		}
		prev = got
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", "chars", " CHAR "} {
		est, err := New(name, 4)
		if err != nil {
			t.Fatalf("New(%q) failed: %v", name, err)
		}
		if _, ok := est.(*CharEstimator); !ok {
			t.Errorf("New(%q) = %T, want *CharEstimator", name, est)
		}
	}

	est, err := New("bogus", 3)
	if err == nil {
		t.Fatal("Expected error for unknown tokenizer")
	}
	if c, ok := est.(*CharEstimator); !ok || c.CharsPerToken != 3 {
		t.Errorf("Expected character fallback with ratio 3, got %#v", est)
	}
}
