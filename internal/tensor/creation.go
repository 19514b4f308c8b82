package tensor

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	b := tensor.Zeros[float32](tensor.Shape{32})
func Zeros[T Float](shape Shape) *Tensor[T] {
	return New[T](shape)
}

// ZerosLike creates a zero tensor with the shape of t.
func ZerosLike[T Float](t *Tensor[T]) *Tensor[T] {
	return New[T](t.shape)
}

// Full creates a tensor filled with a specific value.
func Full[T Float](shape Shape, value T) *Tensor[T] {
	t := New[T](shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Randn creates a tensor with values drawn independently from N(0, std²).
//
// src may be nil, in which case the global math/rand/v2 source is used.
// Samples are drawn in float64 and rounded to T.
func Randn[T Float](shape Shape, std float64, src rand.Source) *Tensor[T] {
	t := New[T](shape)
	dist := distuv.Normal{Mu: 0, Sigma: std, Src: src}
	for i := range t.data {
		t.data[i] = T(dist.Rand())
	}
	return t
}
