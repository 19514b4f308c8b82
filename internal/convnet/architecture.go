package convnet

import (
	"fmt"
	"strings"
)

// LossKind selects the data loss applied to the final scores.
type LossKind int

const (
	// Softmax is mean softmax cross-entropy over integer class labels.
	Softmax LossKind = iota
	// L2 is the 0.5/N sum-of-squares regression loss over real-valued targets.
	L2
)

// String returns the loss name.
func (k LossKind) String() string {
	switch k {
	case Softmax:
		return "softmax"
	case L2:
		return "l2"
	default:
		return fmt.Sprintf("LossKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k LossKind) MarshalText() ([]byte, error) {
	switch k {
	case Softmax, L2:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidLossKind, int(k))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *LossKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "softmax":
		*k = Softmax
	case "l2":
		*k = L2
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLossKind, text)
	}
	return nil
}

// Architecture describes the stage layout of a network:
//
//	[conv - relu - 2x2 max pool] x ConvStages
//	[affine - relu] x HiddenStages
//	affine - Loss
type Architecture struct {
	Name         string   `yaml:"name"`
	ConvStages   int      `yaml:"conv_stages"`
	HiddenStages int      `yaml:"hidden_stages"`
	Loss         LossKind `yaml:"loss"`

	// OutputScale multiplies the weight scale of the final affine layer.
	OutputScale float64 `yaml:"output_scale"`

	// PenalizeOutput includes the final affine weight in the L2 penalty and its
	// regularization gradient.
	PenalizeOutput bool `yaml:"penalize_output"`
}

// Preset architectures.
var (
	// ThreeLayer is conv - relu - pool - affine - relu - affine - softmax.
	ThreeLayer = Architecture{
		Name:           "three-layer",
		ConvStages:     1,
		HiddenStages:   1,
		Loss:           Softmax,
		OutputScale:    1,
		PenalizeOutput: true,
	}

	// FourLayer adds a second conv - relu - pool stage.
	FourLayer = Architecture{
		Name:           "four-layer",
		ConvStages:     2,
		HiddenStages:   1,
		Loss:           Softmax,
		OutputScale:    1,
		PenalizeOutput: true,
	}

	// FiveLayer has three conv stages and regresses real-valued targets with
	// an L2 loss. Its output layer starts 1000x smaller and is not regularized.
	FiveLayer = Architecture{
		Name:           "five-layer",
		ConvStages:     3,
		HiddenStages:   1,
		Loss:           L2,
		OutputScale:    1e-3,
		PenalizeOutput: false,
	}
)

// Presets lists the built-in architectures.
func Presets() []Architecture {
	return []Architecture{ThreeLayer, FourLayer, FiveLayer}
}

// ArchitectureByName returns the preset with the given name. The names
// "3", "4" and "5" are accepted as shorthands.
func ArchitectureByName(name string) (Architecture, error) {
	switch strings.ToLower(name) {
	case "3", "three", ThreeLayer.Name:
		return ThreeLayer, nil
	case "4", "four", FourLayer.Name:
		return FourLayer, nil
	case "5", "five", FiveLayer.Name:
		return FiveLayer, nil
	}
	return Architecture{}, fmt.Errorf("%w: %q", ErrUnknownArch, name)
}

// NumLayers is the number of weight layers, conv and affine together.
func (a Architecture) NumLayers() int {
	return a.ConvStages + a.HiddenStages + 1
}

// Validate checks the stage counts.
func (a Architecture) Validate() error {
	if a.ConvStages < 0 || a.HiddenStages < 0 {
		return fmt.Errorf("%w: negative stage count (conv=%d, hidden=%d)", ErrInvalidConfig, a.ConvStages, a.HiddenStages)
	}
	if a.OutputScale < 0 {
		return fmt.Errorf("%w: negative output scale %g", ErrInvalidConfig, a.OutputScale)
	}
	if a.Loss != Softmax && a.Loss != L2 {
		return fmt.Errorf("%w: %d", ErrInvalidLossKind, int(a.Loss))
	}
	return nil
}

// String returns a compact description of the layer chain.
func (a Architecture) String() string {
	var b strings.Builder
	for i := 0; i < a.ConvStages; i++ {
		b.WriteString("conv-relu-pool ")
	}
	for i := 0; i < a.HiddenStages; i++ {
		b.WriteString("affine-relu ")
	}
	b.WriteString("affine-")
	b.WriteString(a.Loss.String())
	return b.String()
}
