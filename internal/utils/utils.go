package utils

import (
	"cmp"
	"math"
	"math/rand"

	"golang.org/x/exp/constraints"
)

func Argmax[T cmp.Ordered](arr []T) (argmax int) {
	for i := range arr {
		if cmp.Compare(arr[i], arr[argmax]) == 1 {
			argmax = i
		}
	}
	return
}

type Number interface {
	constraints.Float | constraints.Integer
}

func SumSlice[T Number](arr []T) (r T) {
	for i := range arr {
		r += arr[i]
	}
	return
}

// Cumulate writes running sums of arr into dst and returns the total.
func Cumulate[T Number](dst, arr []T) (total T) {
	for i := range arr {
		total += arr[i]
		dst[i] = total
	}
	return
}

// SelectCumulative picks the first index whose running sum exceeds choice.
// The last index is returned when rounding leaves choice at the very top.
func SelectCumulative(cumulative []float64, choice float64) int {
	lo, hi := 0, len(cumulative)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if choice < cumulative[mid] {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// R draws a unit-rate exponential variate from rng.
func R(rng *rand.Rand) float64 {
	return -math.Log(1. - rng.Float64())
}
