package convnet

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/servonet/servonet/internal/serialization"
	"github.com/servonet/servonet/internal/tensor"
)

// Checkpoint metadata keys.
const (
	metaArch   = "architecture"
	metaConfig = "config"
)

// Save writes the architecture, configuration and parameters to w in the
// SafeTensors layout.
func (n *Network[T]) Save(w io.Writer) error {
	arch, err := yaml.Marshal(n.arch)
	if err != nil {
		return fmt.Errorf("encode architecture: %w", err)
	}
	cfg, err := yaml.Marshal(n.cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tensors := make(map[string]*tensor.Tensor[T], n.params.Len())
	n.params.Each(func(name string, t *tensor.Tensor[T]) {
		tensors[name] = t
	})
	return serialization.Write(w, tensors, map[string]string{
		metaArch:   string(arch),
		metaConfig: string(cfg),
	})
}

// Load reads a network written by Save. The stored parameters are converted
// to T when the checkpoint was saved at another precision.
func Load[T tensor.Float](r io.Reader) (*Network[T], error) {
	f, err := serialization.Read[T](r)
	if err != nil {
		return nil, err
	}

	var (
		arch Architecture
		cfg  Config
	)
	for key, dst := range map[string]any{metaArch: &arch, metaConfig: &cfg} {
		text, ok := f.Metadata[key]
		if !ok {
			return nil, fmt.Errorf("%w: missing %s metadata", ErrCheckpoint, key)
		}
		if err := yaml.Unmarshal([]byte(text), dst); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCheckpoint, key, err)
		}
	}

	n, err := New[T](arch, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCheckpoint, err)
	}
	if len(f.Tensors) != n.params.Len() {
		return nil, fmt.Errorf("%w: %d tensors for %d parameters", ErrCheckpoint, len(f.Tensors), n.params.Len())
	}
	for name, t := range f.Tensors {
		if err := n.params.Set(name, t); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCheckpoint, err)
		}
	}
	return n, nil
}
