package tokens

import "testing"

func TestEstimateIsPositiveAndMonotonic(t *testing.T) {
	e := NewEstimator()

	short, err := e.Estimate("Hello there")
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	if short <= 0 {
		t.Fatalf("expected positive count, got %d", short)
	}

	long, err := e.Estimate("Hello there, let's work through the chapter on osmosis and diffusion together.")
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	if long <= short {
		t.Fatalf("longer text must cost more tokens: %d <= %d", long, short)
	}
}

func TestEstimateEmpty(t *testing.T) {
	e := NewEstimator()
	n, err := e.Estimate("")
	if err != nil {
		t.Fatalf("Estimate returned error: %v", err)
	}
	if n != 0 {
		t.Fatalf("empty text should cost 0 tokens, got %d", n)
	}
}
