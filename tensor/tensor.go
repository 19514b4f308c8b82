// Copyright 2026 The Servonet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public dense tensor type used by servonet networks.
//
// Tensors are row-major, hold float32 or float64 elements and use NCHW layout
// for image batches:
//
//	x := tensor.Zeros[float32](tensor.Shape{8, 3, 32, 32})
//	x.Set(1, 0, 2, 5, 5)
//	y := tensor.Convert[float64](x)
package tensor

import (
	"math/rand/v2"

	"github.com/servonet/servonet/internal/tensor"
)

// Float is the constraint for tensor element types: float32 or float64.
type Float = tensor.Float

// DataType represents the element type of a tensor at runtime.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Tensor is a dense row-major array.
type Tensor[T Float] = tensor.Tensor[T]

// DTypeOf returns the DataType of T.
func DTypeOf[T Float]() DataType {
	return tensor.DTypeOf[T]()
}

// New creates a zero tensor. It panics on an invalid shape.
func New[T Float](shape Shape) *Tensor[T] {
	return tensor.New[T](shape)
}

// FromSlice creates a tensor holding a copy of data.
func FromSlice[T Float](data []T, shape Shape) (*Tensor[T], error) {
	return tensor.FromSlice(data, shape)
}

// Zeros creates a tensor filled with zeros.
func Zeros[T Float](shape Shape) *Tensor[T] {
	return tensor.Zeros[T](shape)
}

// Full creates a tensor filled with value.
func Full[T Float](shape Shape, value T) *Tensor[T] {
	return tensor.Full(shape, value)
}

// Randn creates a tensor with values drawn from N(0, std²).
// A nil src uses the global math/rand/v2 source.
func Randn[T Float](shape Shape, std float64, src rand.Source) *Tensor[T] {
	return tensor.Randn[T](shape, std, src)
}

// Convert copies src into a tensor of element type D.
func Convert[D, S Float](src *Tensor[S]) *Tensor[D] {
	return tensor.Convert[D](src)
}
