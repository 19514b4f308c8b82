package tensor

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataTypeSize(t *testing.T) {
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 8, Float64.Size())
	assert.Equal(t, "float32", DTypeOf[float32]().String())
	assert.Equal(t, "float64", DTypeOf[float64]().String())
}

func TestShape(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.True(t, s.Equal(Shape{2, 3, 4}))
	assert.False(t, s.Equal(Shape{2, 3}))
	assert.Equal(t, 1, Shape{}.NumElements())

	rows, cols := Shape{5, 2, 3, 3}.Flat2D()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 18, cols)

	require.Error(t, Shape{2, 0}.Validate())
	require.NoError(t, s.Validate())
}

func TestShape_CloneIsIndependent(t *testing.T) {
	s := Shape{1, 2}
	c := s.Clone()
	c[0] = 9
	assert.Equal(t, 1, s[0])
}

func TestFromSlice(t *testing.T) {
	x, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, float32(6), x.At(1, 2))
	assert.Equal(t, float32(2), x.At(0, 1))

	_, err = FromSlice([]float32{1, 2, 3}, Shape{2, 3})
	require.Error(t, err)
}

func TestSetAt(t *testing.T) {
	x := Zeros[float64](Shape{2, 2, 2})
	x.Set(7, 1, 0, 1)
	assert.Equal(t, 7.0, x.Data()[5])
	assert.Panics(t, func() { x.At(2, 0, 0) })
	assert.Panics(t, func() { x.At(0, 0) })
}

func TestReshapeSharesData(t *testing.T) {
	x := Zeros[float32](Shape{2, 3, 2, 2})
	v := x.Reshape(2, 12)
	v.Set(3, 1, 11)
	assert.Equal(t, float32(3), x.At(1, 2, 1, 1))
	assert.Panics(t, func() { x.Reshape(5, 5) })
}

func TestClone(t *testing.T) {
	x := Full[float32](Shape{3}, 2)
	c := x.Clone()
	c.Data()[0] = 0
	assert.Equal(t, float32(2), x.Data()[0])
}

func TestConvert(t *testing.T) {
	x, err := FromSlice([]float64{1.5, -2.25}, Shape{2})
	require.NoError(t, err)
	y := Convert[float32](x)
	assert.Equal(t, Float32, y.DType())
	assert.Equal(t, []float32{1.5, -2.25}, y.Data())
}

func TestRandn_Statistics(t *testing.T) {
	src := rand.NewPCG(1, 2)
	x := Randn[float64](Shape{100, 100}, 0.5, src)

	var sum, sq float64
	for _, v := range x.Data() {
		sum += v
		sq += v * v
	}
	n := float64(x.NumElements())
	mean := sum / n
	std := math.Sqrt(sq/n - mean*mean)

	assert.InDelta(t, 0.0, mean, 0.02)
	assert.InDelta(t, 0.5, std, 0.02)
}

func TestRandn_Reproducible(t *testing.T) {
	a := Randn[float32](Shape{4, 4}, 1, rand.NewPCG(7, 7))
	b := Randn[float32](Shape{4, 4}, 1, rand.NewPCG(7, 7))
	assert.Equal(t, a.Data(), b.Data())
}
