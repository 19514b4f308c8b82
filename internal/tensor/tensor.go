package tensor

import "fmt"

// Tensor is a dense, row-major, multi-dimensional array of T.
//
// The zero value is not usable; build tensors with New, FromSlice, Zeros or Randn.
//
// Example:
//
//	x := tensor.Zeros[float32](tensor.Shape{2, 3, 8, 8})
//	x.Set(1, 0, 0, 4, 4)
type Tensor[T Float] struct {
	shape   Shape
	strides []int
	data    []T
}

// New allocates a zero-filled tensor with the given shape.
// Panics if the shape has a non-positive dimension.
func New[T Float](shape Shape) *Tensor[T] {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("tensor.New: %v", err))
	}
	s := shape.Clone()
	return &Tensor[T]{
		shape:   s,
		strides: s.ComputeStrides(),
		data:    make([]T, s.NumElements()),
	}
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice[T Float](data []T, shape Shape) (*Tensor[T], error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	t := New[T](shape)
	copy(t.data, data)
	return t, nil
}

// Shape returns the tensor's shape. The returned slice must not be modified.
func (t *Tensor[T]) Shape() Shape {
	return t.shape
}

// DType returns the tensor's data type.
func (t *Tensor[T]) DType() DataType {
	return DTypeOf[T]()
}

// NumElements returns the total number of elements.
func (t *Tensor[T]) NumElements() int {
	return len(t.data)
}

// Dim returns the size of dimension i.
func (t *Tensor[T]) Dim(i int) int {
	return t.shape[i]
}

// Data returns the backing slice of the tensor (zero-copy).
//
// WARNING: Modifications to the returned slice will modify the tensor.
func (t *Tensor[T]) Data() []T {
	return t.data
}

// At returns the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor[T]) At(indices ...int) T {
	return t.data[t.offset(indices)]
}

// Set sets the element at the given indices.
// Panics if indices are out of bounds.
func (t *Tensor[T]) Set(value T, indices ...int) {
	t.data[t.offset(indices)] = value
}

func (t *Tensor[T]) offset(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(t.shape), len(indices)))
	}

	offset := 0
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, t.shape[i]))
		}
		offset += idx * t.strides[i]
	}
	return offset
}

// Reshape returns a view of the same data with a new shape.
// Panics if the element counts differ.
func (t *Tensor[T]) Reshape(dims ...int) *Tensor[T] {
	shape := Shape(dims)
	if shape.NumElements() != len(t.data) {
		panic(fmt.Sprintf("reshape: cannot view %v (%d elements) as %v", t.shape, len(t.data), shape))
	}
	s := shape.Clone()
	return &Tensor[T]{
		shape:   s,
		strides: s.ComputeStrides(),
		data:    t.data,
	}
}

// Clone creates a deep copy of the tensor.
func (t *Tensor[T]) Clone() *Tensor[T] {
	c := New[T](t.shape)
	copy(c.data, t.data)
	return c
}

// String returns a human-readable representation of the tensor.
func (t *Tensor[T]) String() string {
	return fmt.Sprintf("Tensor[%s]%v", t.DType(), t.shape)
}

// Convert copies a tensor into another precision.
func Convert[D, S Float](src *Tensor[S]) *Tensor[D] {
	dst := New[D](src.shape)
	for i, v := range src.data {
		dst.data[i] = D(v)
	}
	return dst
}
