package layers

import (
	"fmt"
	"math"

	"github.com/servonet/servonet/internal/parallel"
	"github.com/servonet/servonet/internal/tensor"
)

// PoolCache records where each pooled maximum came from.
type PoolCache struct {
	inShape tensor.Shape
	argmax  []int // flat input index of the max for every output element
}

// MaxPoolForward performs 2D max pooling.
//
// Input shape:  [N, C, H, W]
// Output shape: [N, C, HOut, WOut] with HOut = (H - Height)/Stride + 1.
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
//
// Ties resolve to the first maximum in row-major window order.
func MaxPoolForward[T tensor.Float](x *tensor.Tensor[T], p PoolParam) (*tensor.Tensor[T], *PoolCache) {
	xs := x.Shape()
	if len(xs) != 4 {
		panic(fmt.Sprintf("maxpool: expected 4D input [N,C,H,W], got %v", xs))
	}
	if p.Height <= 0 || p.Width <= 0 || p.Stride <= 0 {
		panic(fmt.Sprintf("maxpool: invalid window %dx%d stride %d", p.Height, p.Width, p.Stride))
	}
	n, c, h, w := xs[0], xs[1], xs[2], xs[3]
	if p.Height > h || p.Width > w {
		panic(fmt.Sprintf("maxpool: window %dx%d too large for input %dx%d", p.Height, p.Width, h, w))
	}

	hOut, wOut := p.OutputDims(h, w)
	out := tensor.New[T](tensor.Shape{n, c, hOut, wOut})
	argmax := make([]int, n*c*hOut*wOut)
	xd, od := x.Data(), out.Data()

	parallel.For(n*c, func(plane int) {
		base := plane * h * w
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				best := T(math.Inf(-1))
				bestIdx := -1
				for ki := 0; ki < p.Height; ki++ {
					row := base + (oh*p.Stride+ki)*w
					for kj := 0; kj < p.Width; kj++ {
						idx := row + ow*p.Stride + kj
						if bestIdx < 0 || xd[idx] > best {
							best, bestIdx = xd[idx], idx
						}
					}
				}
				o := (plane*hOut+oh)*wOut + ow
				od[o] = best
				argmax[o] = bestIdx
			}
		}
	}, Parallel)

	return out, &PoolCache{inShape: xs.Clone(), argmax: argmax}
}

// MaxPoolBackward routes every upstream gradient to the input position that
// produced the maximum; all other positions receive zero.
func MaxPoolBackward[T tensor.Float](dout *tensor.Tensor[T], cache *PoolCache) *tensor.Tensor[T] {
	if dout.NumElements() != len(cache.argmax) {
		panic(fmt.Sprintf("maxpool backward: upstream gradient has %d elements, want %d",
			dout.NumElements(), len(cache.argmax)))
	}
	dx := tensor.New[T](cache.inShape)
	dxd := dx.Data()
	for o, g := range dout.Data() {
		dxd[cache.argmax[o]] += g
	}
	return dx
}
