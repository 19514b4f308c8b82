package layers

import (
	"fmt"

	"github.com/servonet/servonet/internal/tensor"
)

// ReluCache keeps the forward input of a ReLU.
type ReluCache[T tensor.Float] struct {
	x *tensor.Tensor[T]
}

// ReluForward computes max(0, x) elementwise for any shape.
func ReluForward[T tensor.Float](x *tensor.Tensor[T]) (*tensor.Tensor[T], *ReluCache[T]) {
	out := tensor.ZerosLike(x)
	od := out.Data()
	for i, v := range x.Data() {
		if v > 0 {
			od[i] = v
		}
	}
	return out, &ReluCache[T]{x: x}
}

// ReluBackward passes the upstream gradient through where the input was positive.
func ReluBackward[T tensor.Float](dout *tensor.Tensor[T], cache *ReluCache[T]) *tensor.Tensor[T] {
	if !dout.Shape().Equal(cache.x.Shape()) {
		panic(fmt.Sprintf("relu backward: upstream gradient %v, want %v", dout.Shape(), cache.x.Shape()))
	}
	dx := tensor.ZerosLike(dout)
	dxd, dd := dx.Data(), dout.Data()
	for i, v := range cache.x.Data() {
		if v > 0 {
			dxd[i] = dd[i]
		}
	}
	return dx
}
