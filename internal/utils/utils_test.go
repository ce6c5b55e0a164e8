package utils

import (
	"math/rand"
	"testing"
)

func TestArgmax(t *testing.T) {
	if got := Argmax([]float64{1, 5, 3, 5}); got != 1 {
		t.Errorf("Argmax = %d, want 1", got)
	}
	if got := Argmax([]int{-3, -1, -2}); got != 1 {
		t.Errorf("Argmax = %d, want 1", got)
	}
}

func TestSumAndCumulate(t *testing.T) {
	arr := []int{1, 2, 3, 4}
	if got := SumSlice(arr); got != 10 {
		t.Errorf("SumSlice = %d, want 10", got)
	}
	dst := make([]int, len(arr))
	if total := Cumulate(dst, arr); total != 10 || dst[2] != 6 {
		t.Errorf("Cumulate = %d, %v", total, dst)
	}
}

func TestSelectCumulative(t *testing.T) {
	cumulative := []float64{1, 1, 3, 6}
	tests := []struct {
		choice float64
		want   int
	}{
		{0, 0},
		{0.99, 0},
		{1, 2}, // zero-width slot 1 is never chosen
		{2.5, 2},
		{3, 3},
		{5.999, 3},
		{6, 3},
	}
	for _, tt := range tests {
		if got := SelectCumulative(cumulative, tt.choice); got != tt.want {
			t.Errorf("SelectCumulative(%v) = %d, want %d", tt.choice, got, tt.want)
		}
	}
}

func TestR(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sum := 0.
	const n = 20000
	for range n {
		r := R(rng)
		if r < 0 {
			t.Fatalf("negative variate %v", r)
		}
		sum += r
	}
	if mean := sum / n; mean < 0.95 || mean > 1.05 {
		t.Errorf("mean = %v, want about 1", mean)
	}
}
