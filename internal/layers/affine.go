package layers

import (
	"fmt"

	"gonum.org/v1/gonum/blas"

	"github.com/servonet/servonet/internal/tensor"
)

// AffineCache keeps the forward input and weights of an affine layer.
type AffineCache[T tensor.Float] struct {
	x *tensor.Tensor[T]
	w *tensor.Tensor[T]
}

// AffineForward computes out = reshape(x, [N, D]) @ w + b.
//
// x may have any rank ≥ 1; every dimension after the first is flattened, so a
// conv output [N, F, H, W] feeds an affine layer with D = F*H*W.
// w has shape [D, M], b has shape [M], out has shape [N, M].
func AffineForward[T tensor.Float](x, w, b *tensor.Tensor[T]) (*tensor.Tensor[T], *AffineCache[T]) {
	xm := tensor.AsMatrix(x)
	ws := w.Shape()
	if len(ws) != 2 || ws[0] != xm.Cols {
		panic(fmt.Sprintf("affine: input %v flattens to %d features, weight is %v", x.Shape(), xm.Cols, ws))
	}
	m := ws[1]
	if b.NumElements() != m {
		panic(fmt.Sprintf("affine: bias has %d elements, want %d", b.NumElements(), m))
	}

	out := tensor.New[T](tensor.Shape{xm.Rows, m})
	od, bd := out.Data(), b.Data()
	for i := 0; i < xm.Rows; i++ {
		copy(od[i*m:(i+1)*m], bd)
	}
	tensor.Gemm(blas.NoTrans, blas.NoTrans, 1, xm, tensor.AsMatrix(w), 1, tensor.AsMatrix(out))

	return out, &AffineCache[T]{x: x, w: w}
}

// AffineBackward computes gradients of an affine layer.
//
// Returns dx with the original (unflattened) shape of x, dw [D, M] and db [M].
func AffineBackward[T tensor.Float](dout *tensor.Tensor[T], cache *AffineCache[T]) (dx, dw, db *tensor.Tensor[T]) {
	xm := tensor.AsMatrix(cache.x)
	wm := tensor.AsMatrix(cache.w)
	want := tensor.Shape{xm.Rows, wm.Cols}
	if !dout.Shape().Equal(want) {
		panic(fmt.Sprintf("affine backward: upstream gradient %v, want %v", dout.Shape(), want))
	}
	dm := tensor.AsMatrix(dout)

	dx = tensor.ZerosLike(cache.x)
	tensor.Gemm(blas.NoTrans, blas.Trans, 1, dm, wm, 0, tensor.AsMatrix(dx))

	dw = tensor.ZerosLike(cache.w)
	tensor.Gemm(blas.Trans, blas.NoTrans, 1, xm, dm, 0, tensor.AsMatrix(dw))

	db = tensor.New[T](tensor.Shape{wm.Cols})
	dbd := db.Data()
	for i := 0; i < dm.Rows; i++ {
		for j, v := range dm.Data[i*dm.Cols : (i+1)*dm.Cols] {
			dbd[j] += v
		}
	}
	return dx, dw, db
}
