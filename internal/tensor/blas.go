package tensor

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"
)

// Matrix is a row-major matrix view over a flat slice with Stride == Cols.
type Matrix[T Float] struct {
	Rows, Cols int
	Data       []T
}

// AsMatrix views t as a [rows, cols] matrix, collapsing trailing dimensions.
func AsMatrix[T Float](t *Tensor[T]) Matrix[T] {
	rows, cols := t.shape.Flat2D()
	return Matrix[T]{Rows: rows, Cols: cols, Data: t.data}
}

// Gemm computes c = alpha * op(a) * op(b) + beta * c, dispatching to the gonum
// single or double precision BLAS depending on T.
func Gemm[T Float](tA, tB blas.Transpose, alpha T, a, b Matrix[T], beta T, c Matrix[T]) {
	switch cd := any(c.Data).(type) {
	case []float32:
		blas32.Gemm(tA, tB, float32(alpha),
			general32(a.Rows, a.Cols, any(a.Data).([]float32)),
			general32(b.Rows, b.Cols, any(b.Data).([]float32)),
			float32(beta),
			general32(c.Rows, c.Cols, cd))
	case []float64:
		blas64.Gemm(tA, tB, float64(alpha),
			general64(a.Rows, a.Cols, any(a.Data).([]float64)),
			general64(b.Rows, b.Cols, any(b.Data).([]float64)),
			float64(beta),
			general64(c.Rows, c.Cols, cd))
	default:
		panic("gemm: unsupported dtype")
	}
}

// Axpy adds alpha * x to y in place.
func Axpy[T Float](alpha T, x, y []T) {
	if len(x) != len(y) {
		panic("axpy: length mismatch")
	}
	switch xd := any(x).(type) {
	case []float32:
		blas32.Axpy(float32(alpha), vector32(xd), vector32(any(y).([]float32)))
	case []float64:
		blas64.Axpy(float64(alpha), vector64(xd), vector64(any(y).([]float64)))
	default:
		panic("axpy: unsupported dtype")
	}
}

// SumSquares returns Σx² accumulated in float64.
func SumSquares[T Float](x []T) float64 {
	switch xd := any(x).(type) {
	case []float32:
		var sum float64
		for _, v := range xd {
			sum += float64(v) * float64(v)
		}
		return sum
	case []float64:
		return blas64.Dot(vector64(xd), vector64(xd))
	default:
		panic("sumsquares: unsupported dtype")
	}
}

func general32(rows, cols int, data []float32) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}

func general64(rows, cols int, data []float64) blas64.General {
	return blas64.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}

func vector32(data []float32) blas32.Vector {
	return blas32.Vector{N: len(data), Inc: 1, Data: data}
}

func vector64(data []float64) blas64.Vector {
	return blas64.Vector{N: len(data), Inc: 1, Data: data}
}
