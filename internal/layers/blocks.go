package layers

import "github.com/servonet/servonet/internal/tensor"

// ConvReluPoolCache bundles the caches of one conv -> relu -> pool block.
type ConvReluPoolCache[T tensor.Float] struct {
	conv *ConvCache[T]
	relu *ReluCache[T]
	pool *PoolCache
}

// ConvReluPoolForward runs a convolution, a ReLU and a max pool in sequence.
func ConvReluPoolForward[T tensor.Float](x, w, b *tensor.Tensor[T], cp ConvParam, pp PoolParam) (*tensor.Tensor[T], *ConvReluPoolCache[T]) {
	a, convCache := ConvForward(x, w, b, cp)
	s, reluCache := ReluForward(a)
	out, poolCache := MaxPoolForward(s, pp)
	return out, &ConvReluPoolCache[T]{conv: convCache, relu: reluCache, pool: poolCache}
}

// ConvReluPoolBackward is the backward pass of ConvReluPoolForward.
func ConvReluPoolBackward[T tensor.Float](dout *tensor.Tensor[T], cache *ConvReluPoolCache[T]) (dx, dw, db *tensor.Tensor[T]) {
	ds := MaxPoolBackward(dout, cache.pool)
	da := ReluBackward(ds, cache.relu)
	return ConvBackward(da, cache.conv)
}

// AffineReluCache bundles the caches of one affine -> relu block.
type AffineReluCache[T tensor.Float] struct {
	affine *AffineCache[T]
	relu   *ReluCache[T]
}

// AffineReluForward runs an affine transform followed by a ReLU.
func AffineReluForward[T tensor.Float](x, w, b *tensor.Tensor[T]) (*tensor.Tensor[T], *AffineReluCache[T]) {
	a, affineCache := AffineForward(x, w, b)
	out, reluCache := ReluForward(a)
	return out, &AffineReluCache[T]{affine: affineCache, relu: reluCache}
}

// AffineReluBackward is the backward pass of AffineReluForward.
func AffineReluBackward[T tensor.Float](dout *tensor.Tensor[T], cache *AffineReluCache[T]) (dx, dw, db *tensor.Tensor[T]) {
	da := ReluBackward(dout, cache.relu)
	return AffineBackward(da, cache.affine)
}
