package convnet

import (
	"fmt"
	"strconv"

	"github.com/servonet/servonet/internal/tensor"
)

// WeightName returns the key of the weight of layer i (1-based), e.g. "W2".
func WeightName(i int) string { return "W" + strconv.Itoa(i) }

// BiasName returns the key of the bias of layer i (1-based), e.g. "b2".
func BiasName(i int) string { return "b" + strconv.Itoa(i) }

// Params is an ordered, fixed set of named tensors.
//
// A network's parameters and the gradients returned by Loss share the same
// names in the same order: W1, b1, W2, b2, ...
type Params[T tensor.Float] struct {
	names  []string
	values map[string]*tensor.Tensor[T]
}

func newParams[T tensor.Float](names []string) *Params[T] {
	return &Params[T]{
		names:  names,
		values: make(map[string]*tensor.Tensor[T], len(names)),
	}
}

// Names returns the parameter names in layer order.
func (p *Params[T]) Names() []string {
	return append([]string(nil), p.names...)
}

// Len returns the number of parameters.
func (p *Params[T]) Len() int {
	return len(p.names)
}

// Get returns the named tensor, or nil if the name is unknown.
func (p *Params[T]) Get(name string) *tensor.Tensor[T] {
	return p.values[name]
}

// Lookup returns the named tensor or ErrUnknownParam.
func (p *Params[T]) Lookup(name string) (*tensor.Tensor[T], error) {
	t, ok := p.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}
	return t, nil
}

// Set replaces a parameter's values with a copy of t. The name must exist and
// the shape must match.
func (p *Params[T]) Set(name string, t *tensor.Tensor[T]) error {
	cur, err := p.Lookup(name)
	if err != nil {
		return err
	}
	if !cur.Shape().Equal(t.Shape()) {
		return fmt.Errorf("%w: %s is %v, got %v", ErrParamShape, name, cur.Shape(), t.Shape())
	}
	copy(cur.Data(), t.Data())
	return nil
}

// Each calls fn for every parameter in layer order.
func (p *Params[T]) Each(fn func(name string, t *tensor.Tensor[T])) {
	for _, name := range p.names {
		fn(name, p.values[name])
	}
}

// NumElements returns the total number of scalars across all parameters.
func (p *Params[T]) NumElements() int {
	n := 0
	for _, t := range p.values {
		n += t.NumElements()
	}
	return n
}

func (p *Params[T]) put(name string, t *tensor.Tensor[T]) {
	p.values[name] = t
}
