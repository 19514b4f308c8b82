package convnet

import (
	"fmt"

	"github.com/servonet/servonet/internal/tensor"
)

// Target is the supervision passed to Network.Loss: integer class labels for
// softmax networks or a real-valued [N, NumClasses] tensor for L2 networks.
type Target[T tensor.Float] struct {
	labels []int
	values *tensor.Tensor[T]
}

// Labels wraps class indices, one per sample.
func Labels[T tensor.Float](y []int) Target[T] {
	return Target[T]{labels: y}
}

// Values wraps regression targets shaped [N, NumClasses].
func Values[T tensor.Float](y *tensor.Tensor[T]) Target[T] {
	return Target[T]{values: y}
}

// Kind reports which loss the target feeds.
func (t Target[T]) Kind() LossKind {
	if t.values != nil {
		return L2
	}
	return Softmax
}

func (t Target[T]) check(kind LossKind, batch, classes int) error {
	if t.Kind() != kind {
		return fmt.Errorf("%w: network expects %s targets, got %s", ErrTargetKind, kind, t.Kind())
	}

	switch kind {
	case Softmax:
		if len(t.labels) != batch {
			return fmt.Errorf("%w: %d labels for %d samples", ErrShapeMismatch, len(t.labels), batch)
		}
		for i, y := range t.labels {
			if y < 0 || y >= classes {
				return fmt.Errorf("%w: label %d at %d outside [0, %d)", ErrShapeMismatch, y, i, classes)
			}
		}
	case L2:
		want := tensor.Shape{batch, classes}
		if !t.values.Shape().Equal(want) {
			return fmt.Errorf("%w: targets %v, want %v", ErrShapeMismatch, t.values.Shape(), want)
		}
	}
	return nil
}
