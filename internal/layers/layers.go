// Package layers implements the forward and backward passes of the layer
// primitives used by the convolutional networks.
//
// Every forward function returns its output together with a cache holding the
// intermediates its backward function needs:
//
//	out, cache := layers.ConvForward(x, w, b, layers.ConvParam{Stride: 1, Pad: 1})
//	...
//	dx, dw, db := layers.ConvBackward(dout, cache)
//
// Caches are only valid for one backward call and must be consumed in reverse
// order of the forward calls that produced them.
//
// All tensors use the NCHW layout for image batches. Shape violations are
// programming errors and panic with a message naming the primitive.
package layers

import (
	"github.com/servonet/servonet/internal/parallel"
)

// Parallel controls how primitives fan out over the batch dimension.
// It is read at every call; set it before running networks concurrently.
var Parallel = parallel.DefaultConfig()

// ConvParam configures a 2D convolution.
type ConvParam struct {
	Stride int // Step between neighbouring receptive fields.
	Pad    int // Zero padding added on every spatial border.
}

// SamePadding returns the stride-1 convolution parameters that keep the spatial
// size unchanged for an odd filter size. The padding is (filterSize-1)/2 using
// integer division.
func SamePadding(filterSize int) ConvParam {
	return ConvParam{Stride: 1, Pad: (filterSize - 1) / 2}
}

// PoolParam configures a 2D max pooling window.
type PoolParam struct {
	Height int
	Width  int
	Stride int
}

// Pool2x2 is the 2x2, stride 2 pooling used by every convolutional stage.
var Pool2x2 = PoolParam{Height: 2, Width: 2, Stride: 2}

// OutputDims returns the pooled spatial size (h - Height)/Stride + 1 by
// (w - Width)/Stride + 1, using integer division.
func (p PoolParam) OutputDims(h, w int) (int, int) {
	return (h-p.Height)/p.Stride + 1, (w-p.Width)/p.Stride + 1
}

// OutputDims returns the convolved spatial size for a kh x kw kernel.
func (p ConvParam) OutputDims(h, w, kh, kw int) (int, int) {
	return (h+2*p.Pad-kh)/p.Stride + 1, (w+2*p.Pad-kw)/p.Stride + 1
}
