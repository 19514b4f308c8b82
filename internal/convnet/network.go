// Package convnet defines convolutional networks built from the layers package:
// a stack of conv-relu-pool stages, fully connected hidden stages and a final
// affine layer scored by a softmax or L2 loss.
//
// One Network type covers every stage count; the Architecture value passed to
// New decides the layout. Numeric precision is the type parameter:
//
//	net, err := convnet.New[float32](convnet.ThreeLayer, convnet.DefaultConfig())
//	scores, err := net.Scores(x)                          // inference only
//	loss, grads, err := net.Loss(x, convnet.Labels[float32](y))
package convnet

import (
	"fmt"
	"math/rand/v2"

	"github.com/servonet/servonet/internal/layers"
	"github.com/servonet/servonet/internal/tensor"
)

// Network is a convolutional network with its parameters.
//
// Calls on one Network run sequentially; each Loss call is independent of the
// previous ones and holds no state besides the parameters.
type Network[T tensor.Float] struct {
	arch   Architecture
	cfg    Config
	dims   []Spatial
	params *Params[T]
}

// chain holds the caches of one forward pass in stage order.
type chain[T tensor.Float] struct {
	conv     []*layers.ConvReluPoolCache[T]
	hidden   []*layers.AffineReluCache[T]
	out      *layers.AffineCache[T]
	featMaps tensor.Shape // shape of the last pooled output, nil without conv stages
}

// New builds a network and initializes its parameters.
//
// Weights are drawn from N(0, WeightScale²) (the output layer additionally
// scaled by arch.OutputScale); biases start at zero. Shapes follow from the
// input size, filter count and size, hidden width and class count, with each
// 2x2 pool flooring odd sizes.
func New[T tensor.Float](arch Architecture, cfg Config) (*Network[T], error) {
	if err := cfg.Validate(arch); err != nil {
		return nil, err
	}
	dims, err := cfg.stageDims(arch.ConvStages)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)

	n := &Network[T]{arch: arch, cfg: cfg, dims: dims}
	n.params = newParams[T](n.paramNames())

	layer := 1
	in := cfg.InputDim.C
	for i := 0; i < arch.ConvStages; i++ {
		fs := cfg.FilterSize
		n.params.put(WeightName(layer), tensor.Randn[T](tensor.Shape{cfg.NumFilters, in, fs, fs}, cfg.WeightScale, src))
		n.params.put(BiasName(layer), tensor.Zeros[T](tensor.Shape{cfg.NumFilters}))
		in = cfg.NumFilters
		layer++
	}

	features := cfg.InputDim.C * cfg.InputDim.H * cfg.InputDim.W
	if arch.ConvStages > 0 {
		last := dims[len(dims)-1]
		features = cfg.NumFilters * last.H * last.W
	}
	for i := 0; i < arch.HiddenStages; i++ {
		n.params.put(WeightName(layer), tensor.Randn[T](tensor.Shape{features, cfg.HiddenDim}, cfg.WeightScale, src))
		n.params.put(BiasName(layer), tensor.Zeros[T](tensor.Shape{cfg.HiddenDim}))
		features = cfg.HiddenDim
		layer++
	}

	n.params.put(WeightName(layer), tensor.Randn[T](tensor.Shape{features, cfg.NumClasses}, cfg.WeightScale*arch.OutputScale, src))
	n.params.put(BiasName(layer), tensor.Zeros[T](tensor.Shape{cfg.NumClasses}))

	return n, nil
}

func (n *Network[T]) paramNames() []string {
	names := make([]string, 0, 2*n.arch.NumLayers())
	for i := 1; i <= n.arch.NumLayers(); i++ {
		names = append(names, WeightName(i), BiasName(i))
	}
	return names
}

// Architecture returns the stage layout.
func (n *Network[T]) Architecture() Architecture { return n.arch }

// Config returns the hyperparameters the network was built with.
func (n *Network[T]) Config() Config { return n.cfg }

// Params returns the live parameters. Writes through the returned tensors
// change the network.
func (n *Network[T]) Params() *Params[T] { return n.params }

// OutputDims returns the spatial size after each conv-relu-pool stage.
func (n *Network[T]) OutputDims() []Spatial {
	return append([]Spatial(nil), n.dims...)
}

// Scores runs the forward pass and returns class scores [N, NumClasses].
// No gradients are computed.
func (n *Network[T]) Scores(x *tensor.Tensor[T]) (*tensor.Tensor[T], error) {
	if err := n.checkInput(x); err != nil {
		return nil, err
	}
	scores, _ := n.forward(x)
	return scores, nil
}

// Predict returns the argmax class of every sample.
// Only networks with a softmax loss produce class scores.
func (n *Network[T]) Predict(x *tensor.Tensor[T]) ([]int, error) {
	if n.arch.Loss != Softmax {
		return nil, fmt.Errorf("%w: %s uses %s loss", ErrNotClassifier, n.arch.Name, n.arch.Loss)
	}
	scores, err := n.Scores(x)
	if err != nil {
		return nil, err
	}

	rows, cols := scores.Dim(0), scores.Dim(1)
	data := scores.Data()
	pred := make([]int, rows)
	for i := 0; i < rows; i++ {
		row := data[i*cols : (i+1)*cols]
		best := 0
		for j, v := range row {
			if v > row[best] {
				best = j
			}
		}
		pred[i] = best
	}
	return pred, nil
}

// Loss runs the forward and backward passes.
//
// It returns the data loss plus the L2 penalty, and the gradient of that loss
// with respect to every parameter, keyed like Params. The target must match
// the architecture's loss kind: Labels for softmax, Values for L2.
func (n *Network[T]) Loss(x *tensor.Tensor[T], target Target[T]) (float64, *Params[T], error) {
	if err := n.checkInput(x); err != nil {
		return 0, nil, err
	}
	if err := target.check(n.arch.Loss, x.Dim(0), n.cfg.NumClasses); err != nil {
		return 0, nil, err
	}

	scores, c := n.forward(x)
	loss, dscores := n.dataLoss(scores, target)
	loss += n.Penalty()

	grads := n.backward(dscores, c)
	n.regularize(grads)
	return loss, grads, nil
}

// dataLoss scores the network output against an already validated target.
func (n *Network[T]) dataLoss(scores *tensor.Tensor[T], target Target[T]) (float64, *tensor.Tensor[T]) {
	if n.arch.Loss == L2 {
		return layers.L2Loss(scores, target.values)
	}
	return layers.SoftmaxLoss(scores, target.labels)
}

func (n *Network[T]) forward(x *tensor.Tensor[T]) (*tensor.Tensor[T], *chain[T]) {
	c := &chain[T]{
		conv:   make([]*layers.ConvReluPoolCache[T], 0, n.arch.ConvStages),
		hidden: make([]*layers.AffineReluCache[T], 0, n.arch.HiddenStages),
	}
	conv := layers.SamePadding(n.cfg.FilterSize)

	out := x
	layer := 1
	for i := 0; i < n.arch.ConvStages; i++ {
		var cache *layers.ConvReluPoolCache[T]
		out, cache = layers.ConvReluPoolForward(out, n.weight(layer), n.bias(layer), conv, layers.Pool2x2)
		c.conv = append(c.conv, cache)
		layer++
	}

	// Flatten [N, F, H, W] feature maps for the fully connected stages.
	batch := x.Dim(0)
	if n.arch.ConvStages > 0 {
		c.featMaps = out.Shape().Clone()
	}
	out = out.Reshape(batch, out.NumElements()/batch)

	for i := 0; i < n.arch.HiddenStages; i++ {
		var cache *layers.AffineReluCache[T]
		out, cache = layers.AffineReluForward(out, n.weight(layer), n.bias(layer))
		c.hidden = append(c.hidden, cache)
		layer++
	}

	scores, cache := layers.AffineForward(out, n.weight(layer), n.bias(layer))
	c.out = cache
	return scores, c
}

func (n *Network[T]) backward(dscores *tensor.Tensor[T], c *chain[T]) *Params[T] {
	grads := newParams[T](n.params.names)
	layer := n.arch.NumLayers()

	dx, dw, db := layers.AffineBackward(dscores, c.out)
	grads.put(WeightName(layer), dw)
	grads.put(BiasName(layer), db)

	for i := len(c.hidden) - 1; i >= 0; i-- {
		layer--
		dx, dw, db = layers.AffineReluBackward(dx, c.hidden[i])
		grads.put(WeightName(layer), dw)
		grads.put(BiasName(layer), db)
	}

	if len(c.conv) == 0 {
		return grads
	}

	dx = dx.Reshape(c.featMaps...)
	for i := len(c.conv) - 1; i >= 0; i-- {
		layer--
		dx, dw, db = layers.ConvReluPoolBackward(dx, c.conv[i])
		grads.put(WeightName(layer), dw)
		grads.put(BiasName(layer), db)
	}
	return grads
}

// penalized returns the layer indices whose weights carry the L2 penalty.
func (n *Network[T]) penalized() []int {
	last := n.arch.NumLayers()
	if !n.arch.PenalizeOutput {
		last--
	}
	idx := make([]int, 0, last)
	for i := 1; i <= last; i++ {
		idx = append(idx, i)
	}
	return idx
}

// Penalty returns the L2 regularization term for the current weights.
// Biases are never penalized.
func (n *Network[T]) Penalty() float64 {
	if n.cfg.Reg == 0 {
		return 0
	}
	var penalty float64
	for i, layer := range n.penalized() {
		coef := n.cfg.Reg
		if n.cfg.RegMode == RegUniform || i == 0 {
			coef *= 0.5
		}
		penalty += coef * tensor.SumSquares(n.weight(layer).Data())
	}
	return penalty
}

// regularize adds reg·W to every penalized weight gradient.
func (n *Network[T]) regularize(grads *Params[T]) {
	if n.cfg.Reg == 0 {
		return
	}
	reg := T(n.cfg.Reg)
	for _, layer := range n.penalized() {
		tensor.Axpy(reg, n.weight(layer).Data(), grads.Get(WeightName(layer)).Data())
	}
}

func (n *Network[T]) weight(layer int) *tensor.Tensor[T] { return n.params.Get(WeightName(layer)) }
func (n *Network[T]) bias(layer int) *tensor.Tensor[T]   { return n.params.Get(BiasName(layer)) }

func (n *Network[T]) checkInput(x *tensor.Tensor[T]) error {
	want := n.cfg.InputDim
	s := x.Shape()
	if len(s) != 4 || s[1] != want.C || s[2] != want.H || s[3] != want.W {
		return fmt.Errorf("%w: got %v, want [N %d %d %d]", ErrShapeMismatch, s, want.C, want.H, want.W)
	}
	return nil
}
