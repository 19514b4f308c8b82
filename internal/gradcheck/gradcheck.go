// Package gradcheck estimates gradients numerically so analytic backward passes
// can be verified.
package gradcheck

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"github.com/servonet/servonet/internal/tensor"
)

// DefaultStep is the central-difference step used when step <= 0.
const DefaultStep = 1e-5

// Numerical estimates ∂f/∂x by central differences.
//
// f is evaluated with x perturbed in place, one coordinate at a time, so f
// must read x (directly or through a tensor sharing its memory). x is restored
// before returning.
func Numerical(f func() float64, x []float64, step float64) []float64 {
	if step <= 0 {
		step = DefaultStep
	}
	origin := append([]float64(nil), x...)
	grad := fd.Gradient(nil, func(p []float64) float64 {
		copy(x, p)
		return f()
	}, origin, &fd.Settings{Formula: fd.Central, Step: step})
	copy(x, origin)
	return grad
}

// Tensor estimates ∂f/∂t for a scalar function of the tensor t.
// t is perturbed in place and restored.
func Tensor[T tensor.Float](f func() float64, t *tensor.Tensor[T], step float64) []float64 {
	data := t.Data()
	x := make([]float64, len(data))
	for i, v := range data {
		x[i] = float64(v)
	}
	origin := append([]T(nil), data...)
	grad := Numerical(func() float64 {
		for i, v := range x {
			data[i] = T(v)
		}
		return f()
	}, x, step)
	copy(data, origin)
	return grad
}

// Array estimates the gradient of Σ f()·dout with respect to t, the numerical
// counterpart of a layer backward pass given upstream gradient dout.
func Array[T tensor.Float](f func() *tensor.Tensor[T], t, dout *tensor.Tensor[T], step float64) []float64 {
	d := Float64s(dout)
	return Tensor(func() float64 {
		return floats.Dot(Float64s(f()), d)
	}, t, step)
}

// RelError returns max_i |a_i - b_i| / max(1e-8, |a_i| + |b_i|).
func RelError(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("gradcheck: length mismatch")
	}
	var worst float64
	for i := range a {
		den := math.Max(1e-8, math.Abs(a[i])+math.Abs(b[i]))
		worst = math.Max(worst, math.Abs(a[i]-b[i])/den)
	}
	return worst
}

// NormRelError returns ||a - b|| / max(1e-8, ||a|| + ||b||) in the 2-norm.
// Unlike RelError it is not dominated by entries whose true value is close to
// zero, where finite-difference roundoff is of the same order as the value.
func NormRelError(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("gradcheck: length mismatch")
	}
	den := math.Max(1e-8, floats.Norm(a, 2)+floats.Norm(b, 2))
	return floats.Distance(a, b, 2) / den
}

// Float64s copies a tensor's data into a float64 slice.
func Float64s[T tensor.Float](t *tensor.Tensor[T]) []float64 {
	out := make([]float64, t.NumElements())
	for i, v := range t.Data() {
		out[i] = float64(v)
	}
	return out
}
