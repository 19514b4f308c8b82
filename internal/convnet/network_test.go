package convnet

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servonet/servonet/internal/tensor"
)

// smallConfig is a network small enough for numeric gradient checks.
func smallConfig() Config {
	return Config{
		InputDim:    InputDim{C: 3, H: 8, W: 8},
		NumFilters:  2,
		FilterSize:  3,
		HiddenDim:   4,
		NumClasses:  3,
		WeightScale: 0.5,
		Seed:        7,
	}
}

func randInput[T tensor.Float](seed uint64, shape ...int) *tensor.Tensor[T] {
	return tensor.Randn[T](tensor.Shape(shape), 1, rand.NewPCG(seed, seed+1))
}

func TestNew_ParamShapes(t *testing.T) {
	tests := []struct {
		arch   Architecture
		shapes map[string]tensor.Shape
	}{
		{ThreeLayer, map[string]tensor.Shape{
			"W1": {32, 3, 7, 7}, "b1": {32},
			"W2": {8192, 100}, "b2": {100},
			"W3": {100, 10}, "b3": {10},
		}},
		{FourLayer, map[string]tensor.Shape{
			"W1": {32, 3, 7, 7}, "b1": {32},
			"W2": {32, 32, 7, 7}, "b2": {32},
			"W3": {2048, 100}, "b3": {100},
			"W4": {100, 10}, "b4": {10},
		}},
		{FiveLayer, map[string]tensor.Shape{
			"W1": {32, 3, 7, 7}, "b1": {32},
			"W2": {32, 32, 7, 7}, "b2": {32},
			"W3": {32, 32, 7, 7}, "b3": {32},
			"W4": {512, 100}, "b4": {100},
			"W5": {100, 10}, "b5": {10},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.arch.Name, func(t *testing.T) {
			net, err := New[float32](tt.arch, DefaultConfig())
			require.NoError(t, err)

			params := net.Params()
			require.Equal(t, len(tt.shapes), params.Len())
			for name, shape := range tt.shapes {
				p, err := params.Lookup(name)
				require.NoError(t, err)
				assert.Equal(t, shape, p.Shape(), name)
			}
			for i := 1; i <= tt.arch.NumLayers(); i++ {
				for _, v := range params.Get(BiasName(i)).Data() {
					require.Zero(t, v)
				}
			}
		})
	}
}

func TestNew_WeightScale(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 3
	net, err := New[float64](FiveLayer, cfg)
	require.NoError(t, err)

	std := func(data []float64) float64 {
		return math.Sqrt(tensor.SumSquares(data) / float64(len(data)))
	}
	// W4 has 51200 samples, W5 only 1000.
	assert.InEpsilon(t, 1e-3, std(net.Params().Get("W4").Data()), 0.05)
	assert.InEpsilon(t, 1e-6, std(net.Params().Get("W5").Data()), 0.15)
}

func TestNew_SeedIsDeterministic(t *testing.T) {
	cfg := smallConfig()
	a, err := New[float64](ThreeLayer, cfg)
	require.NoError(t, err)
	b, err := New[float64](ThreeLayer, cfg)
	require.NoError(t, err)

	a.Params().Each(func(name string, p *tensor.Tensor[float64]) {
		assert.Equal(t, p.Data(), b.Params().Get(name).Data(), name)
	})
}

func TestNew_OddInput(t *testing.T) {
	cfg := smallConfig()
	cfg.InputDim = InputDim{C: 1, H: 9, W: 7}
	net, err := New[float64](FourLayer, cfg)
	require.NoError(t, err)

	assert.Equal(t, []Spatial{{4, 3}, {2, 1}}, net.OutputDims())
	assert.Equal(t, tensor.Shape{2 * 2 * 1, 4}, net.Params().Get("W3").Shape())

	scores, err := net.Scores(randInput[float64](1, 3, 1, 9, 7))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 3}, scores.Shape())
}

func TestNew_NoConvStages(t *testing.T) {
	arch := Architecture{Name: "mlp", HiddenStages: 1, Loss: Softmax, OutputScale: 1, PenalizeOutput: true}
	net, err := New[float64](arch, smallConfig())
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{3 * 8 * 8, 4}, net.Params().Get("W1").Shape())
	assert.Empty(t, net.OutputDims())

	loss, grads, err := net.Loss(randInput[float64](1, 2, 3, 8, 8), Labels[float64]([]int{0, 2}))
	require.NoError(t, err)
	assert.Greater(t, loss, 0.0)
	assert.Equal(t, 4, grads.Len())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := smallConfig()
	cfg.NumClasses = 0
	_, err := New[float64](ThreeLayer, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = smallConfig()
	cfg.InputDim = InputDim{C: 3, H: 2, W: 2}
	_, err = New[float64](FiveLayer, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoss_InitialSoftmaxLoss(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 11
	net, err := New[float64](ThreeLayer, cfg)
	require.NoError(t, err)

	x := randInput[float64](2, 2, 3, 32, 32)
	loss, grads, err := net.Loss(x, Labels[float64]([]int{1, 7}))
	require.NoError(t, err)

	// Tiny weights give near-uniform class scores.
	assert.InDelta(t, math.Log(10), loss, 1e-2)
	net.Params().Each(func(name string, p *tensor.Tensor[float64]) {
		assert.Equal(t, p.Shape(), grads.Get(name).Shape(), name)
	})
}

func TestScores_Shape(t *testing.T) {
	for _, arch := range Presets() {
		net, err := New[float32](arch, smallConfig())
		require.NoError(t, err)

		scores, err := net.Scores(randInput[float32](1, 5, 3, 8, 8))
		require.NoError(t, err, arch.Name)
		assert.Equal(t, tensor.Shape{5, 3}, scores.Shape(), arch.Name)
	}
}

func TestScores_ShapeMismatch(t *testing.T) {
	net, err := New[float64](ThreeLayer, smallConfig())
	require.NoError(t, err)

	for _, shape := range []tensor.Shape{{2, 3, 8}, {2, 1, 8, 8}, {2, 3, 8, 9}} {
		_, err := net.Scores(tensor.Zeros[float64](shape))
		assert.ErrorIs(t, err, ErrShapeMismatch, "%v", shape)
	}
}

func TestScores_DoesNotChangeParams(t *testing.T) {
	net, err := New[float64](FourLayer, smallConfig())
	require.NoError(t, err)
	before := map[string][]float64{}
	net.Params().Each(func(name string, p *tensor.Tensor[float64]) {
		before[name] = append([]float64(nil), p.Data()...)
	})

	x := randInput[float64](4, 2, 3, 8, 8)
	first, err := net.Scores(x)
	require.NoError(t, err)
	_, _, err = net.Loss(x, Labels[float64]([]int{0, 1}))
	require.NoError(t, err)
	second, err := net.Scores(x)
	require.NoError(t, err)

	assert.Equal(t, first.Data(), second.Data())
	net.Params().Each(func(name string, p *tensor.Tensor[float64]) {
		assert.Equal(t, before[name], p.Data(), name)
	})
}

func TestPredict(t *testing.T) {
	net, err := New[float64](ThreeLayer, smallConfig())
	require.NoError(t, err)

	x := randInput[float64](5, 4, 3, 8, 8)
	pred, err := net.Predict(x)
	require.NoError(t, err)
	scores, err := net.Scores(x)
	require.NoError(t, err)

	require.Len(t, pred, 4)
	for i, p := range pred {
		for j := 0; j < 3; j++ {
			assert.GreaterOrEqual(t, scores.At(i, p), scores.At(i, j))
		}
	}

	l2, err := New[float64](FiveLayer, smallConfig())
	require.NoError(t, err)
	_, err = l2.Predict(x)
	assert.ErrorIs(t, err, ErrNotClassifier)
}

func TestLoss_TargetErrors(t *testing.T) {
	cfg := smallConfig()
	x := randInput[float64](1, 2, 3, 8, 8)

	softmax, err := New[float64](ThreeLayer, cfg)
	require.NoError(t, err)
	_, _, err = softmax.Loss(x, Labels[float64]([]int{0}))
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, _, err = softmax.Loss(x, Labels[float64]([]int{0, 3}))
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, _, err = softmax.Loss(x, Values(tensor.Zeros[float64](tensor.Shape{2, 3})))
	assert.ErrorIs(t, err, ErrTargetKind)
	_, _, err = softmax.Loss(tensor.Zeros[float64](tensor.Shape{2, 3, 4, 4}), Labels[float64]([]int{0, 1}))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	l2, err := New[float64](FiveLayer, cfg)
	require.NoError(t, err)
	_, _, err = l2.Loss(x, Labels[float64]([]int{0, 1}))
	assert.ErrorIs(t, err, ErrTargetKind)
	_, _, err = l2.Loss(x, Values(tensor.Zeros[float64](tensor.Shape{2, 4})))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestLoss_IncludesPenalty(t *testing.T) {
	cfg := smallConfig()
	x := randInput[float64](2, 2, 3, 8, 8)
	y := Labels[float64]([]int{2, 0})

	plain, err := New[float64](FourLayer, cfg)
	require.NoError(t, err)
	cfg.Reg = 0.5
	regularized, err := New[float64](FourLayer, cfg)
	require.NoError(t, err)

	base, baseGrads, err := plain.Loss(x, y)
	require.NoError(t, err)
	loss, grads, err := regularized.Loss(x, y)
	require.NoError(t, err)

	assert.Zero(t, plain.Penalty())
	assert.Greater(t, regularized.Penalty(), 0.0)
	assert.InDelta(t, base+regularized.Penalty(), loss, 1e-9)

	// Every weight gradient gains reg·W; biases are untouched.
	for i := 1; i <= 4; i++ {
		w := regularized.Params().Get(WeightName(i)).Data()
		got := grads.Get(WeightName(i)).Data()
		want := baseGrads.Get(WeightName(i)).Data()
		for k := range got {
			require.InDelta(t, want[k]+0.5*w[k], got[k], 1e-12)
		}
		assert.Equal(t, baseGrads.Get(BiasName(i)).Data(), grads.Get(BiasName(i)).Data())
	}
}

func TestPenalty_Legacy(t *testing.T) {
	cfg := smallConfig()
	cfg.Reg = 0.1
	net, err := New[float64](ThreeLayer, cfg)
	require.NoError(t, err)

	sum := func(name string) float64 { return tensor.SumSquares(net.Params().Get(name).Data()) }
	want := 0.5*0.1*sum("W1") + 0.1*sum("W2") + 0.1*sum("W3")
	assert.InDelta(t, want, net.Penalty(), 1e-12)

	net.cfg.RegMode = RegUniform
	want = 0.5 * 0.1 * (sum("W1") + sum("W2") + sum("W3"))
	assert.InDelta(t, want, net.Penalty(), 1e-12)
}

func TestPenalty_FiveLayerSkipsOutput(t *testing.T) {
	cfg := smallConfig()
	x := randInput[float64](3, 2, 3, 8, 8)
	y := Values(randInput[float64](4, 2, 3))

	plain, err := New[float64](FiveLayer, cfg)
	require.NoError(t, err)
	cfg.Reg = 0.3
	regularized, err := New[float64](FiveLayer, cfg)
	require.NoError(t, err)

	sum := func(name string) float64 { return tensor.SumSquares(regularized.Params().Get(name).Data()) }
	want := 0.5*0.3*sum("W1") + 0.3*(sum("W2")+sum("W3")+sum("W4"))
	assert.InDelta(t, want, regularized.Penalty(), 1e-12)

	_, baseGrads, err := plain.Loss(x, y)
	require.NoError(t, err)
	_, grads, err := regularized.Loss(x, y)
	require.NoError(t, err)
	assert.Equal(t, baseGrads.Get("W5").Data(), grads.Get("W5").Data())
	assert.NotEqual(t, baseGrads.Get("W4").Data(), grads.Get("W4").Data())
}

func TestLoss_L2(t *testing.T) {
	cfg := smallConfig()
	net, err := New[float64](FiveLayer, cfg)
	require.NoError(t, err)

	x := randInput[float64](6, 2, 3, 8, 8)
	scores, err := net.Scores(x)
	require.NoError(t, err)

	// Targets equal to the scores give zero data loss and zero gradients.
	loss, grads, err := net.Loss(x, Values(scores.Clone()))
	require.NoError(t, err)
	assert.InDelta(t, 0, loss, 1e-15)
	for _, v := range grads.Get("W5").Data() {
		assert.Zero(t, v)
	}

	target := scores.Clone()
	target.Data()[0] += 2
	loss, _, err = net.Loss(x, Values(target))
	require.NoError(t, err)
	assert.InDelta(t, 0.5*4/2, loss, 1e-12)
}

func TestLoss_Float32(t *testing.T) {
	cfg := smallConfig()
	net32, err := New[float32](ThreeLayer, cfg)
	require.NoError(t, err)
	net64, err := New[float64](ThreeLayer, cfg)
	require.NoError(t, err)

	x := randInput[float64](8, 2, 3, 8, 8)
	y := []int{1, 2}

	loss64, _, err := net64.Loss(x, Labels[float64](y))
	require.NoError(t, err)
	loss32, grads32, err := net32.Loss(tensor.Convert[float32](x), Labels[float32](y))
	require.NoError(t, err)

	assert.InEpsilon(t, loss64, loss32, 1e-4)
	assert.Equal(t, tensor.Float32, grads32.Get("W1").DType())
}

func TestLoss_Repeatable(t *testing.T) {
	net, err := New[float64](FourLayer, smallConfig())
	require.NoError(t, err)
	x := randInput[float64](9, 3, 3, 8, 8)
	y := Labels[float64]([]int{0, 1, 2})

	first, g1, err := net.Loss(x, y)
	require.NoError(t, err)
	second, g2, err := net.Loss(x, y)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	g1.Each(func(name string, g *tensor.Tensor[float64]) {
		assert.Equal(t, g.Data(), g2.Get(name).Data(), name)
	})
}
