package convnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servonet/servonet/internal/tensor"
)

const checkTol = 1e-5

func checkTarget(arch Architecture, cfg Config, batch int) Target[float64] {
	if arch.Loss == L2 {
		return Values(randInput[float64](21, batch, cfg.NumClasses))
	}
	labels := make([]int, batch)
	for i := range labels {
		labels[i] = i % cfg.NumClasses
	}
	return Labels[float64](labels)
}

func TestCheckGradients(t *testing.T) {
	// The five-layer preset is checked with a full-size output layer; its
	// 1e-3 output scale only shrinks every gradient uniformly.
	five := FiveLayer
	five.OutputScale = 1

	for _, arch := range []Architecture{ThreeLayer, FourLayer, five} {
		for _, reg := range []float64{0, 0.3} {
			cfg := smallConfig()
			cfg.Reg = reg
			cfg.RegMode = RegUniform

			net, err := New[float64](arch, cfg)
			require.NoError(t, err)
			x := randInput[float64](13, 2, 3, 8, 8)

			errs, err := CheckGradients(net, x, checkTarget(arch, cfg, 2), 1e-6)
			require.NoError(t, err)
			require.Len(t, errs, 2*arch.NumLayers())
			for name, e := range errs {
				assert.Less(t, e, checkTol, "%s reg=%g %s: relative error %g", arch.Name, reg, name, e)
			}
		}
	}
}

func TestCheckGradients_LegacyPenalty(t *testing.T) {
	cfg := smallConfig()
	cfg.Reg = 0.5
	net, err := New[float64](ThreeLayer, cfg)
	require.NoError(t, err)

	errs, err := CheckGradients(net, randInput[float64](13, 2, 3, 8, 8), Labels[float64]([]int{0, 1}), 1e-6)
	require.NoError(t, err)

	// The first weight is penalized by 0.5·reg and matches its reg·W gradient;
	// later weights carry reg·ΣW² with the same reg·W gradient.
	assert.Less(t, errs["W1"], checkTol)
	assert.Less(t, errs["b2"], checkTol)
	assert.Greater(t, errs["W2"], 1e-3)
	assert.Greater(t, errs["W3"], 1e-3)
}

func TestCheckGradients_RestoresParams(t *testing.T) {
	net, err := New[float64](ThreeLayer, smallConfig())
	require.NoError(t, err)
	before := net.Params().Get("W1").Clone()

	_, err = CheckGradients(net, randInput[float64](1, 1, 3, 8, 8), Labels[float64]([]int{2}), 0)
	require.NoError(t, err)
	assert.Equal(t, before.Data(), net.Params().Get("W1").Data())
}

func TestCheckGradients_BadInput(t *testing.T) {
	net, err := New[float64](ThreeLayer, smallConfig())
	require.NoError(t, err)

	_, err = CheckGradients(net, tensor.Zeros[float64](tensor.Shape{1, 3, 4, 4}), Labels[float64]([]int{0}), 0)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}
