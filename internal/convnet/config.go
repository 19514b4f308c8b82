package convnet

import (
	"fmt"
	"strings"

	"github.com/servonet/servonet/internal/layers"
)

// RegMode selects how the L2 penalty weighs each weight tensor.
type RegMode int

const (
	// RegLegacy weighs the first weight by 0.5·reg and every other penalized
	// weight by reg, while the gradient adds reg·W everywhere.
	RegLegacy RegMode = iota
	// RegUniform weighs every penalized weight by 0.5·reg, so the penalty
	// gradient is exactly reg·W.
	RegUniform
)

// String returns the mode name.
func (m RegMode) String() string {
	switch m {
	case RegLegacy:
		return "legacy"
	case RegUniform:
		return "uniform"
	default:
		return fmt.Sprintf("RegMode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m RegMode) MarshalText() ([]byte, error) {
	switch m {
	case RegLegacy, RegUniform:
		return []byte(m.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidRegMode, int(m))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *RegMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "legacy", "":
		*m = RegLegacy
	case "uniform":
		*m = RegUniform
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRegMode, text)
	}
	return nil
}

// InputDim is the per-sample image size.
type InputDim struct {
	C int `yaml:"c"`
	H int `yaml:"h"`
	W int `yaml:"w"`
}

// Config holds the hyperparameters of a network.
type Config struct {
	InputDim    InputDim `yaml:"input_dim"`
	NumFilters  int      `yaml:"num_filters"`
	FilterSize  int      `yaml:"filter_size"`
	HiddenDim   int      `yaml:"hidden_dim"`
	NumClasses  int      `yaml:"num_classes"`
	WeightScale float64  `yaml:"weight_scale"` // standard deviation of the initial weights
	Reg         float64  `yaml:"reg"`          // L2 regularization strength
	RegMode     RegMode  `yaml:"reg_mode"`
	Seed        uint64   `yaml:"seed"` // 0 draws a random seed
}

// DefaultConfig returns the defaults of the coursework networks.
func DefaultConfig() Config {
	return Config{
		InputDim:    InputDim{C: 3, H: 32, W: 32},
		NumFilters:  32,
		FilterSize:  7,
		HiddenDim:   100,
		NumClasses:  10,
		WeightScale: 1e-3,
		Reg:         0,
		RegMode:     RegLegacy,
	}
}

// Spatial is a height/width pair.
type Spatial struct {
	H, W int
}

// stageDims returns the spatial size after each conv-relu-pool stage and
// reports the first stage whose input is too small.
func (c Config) stageDims(convStages int) ([]Spatial, error) {
	conv := layers.SamePadding(c.FilterSize)
	dims := make([]Spatial, 0, convStages)
	h, w := c.InputDim.H, c.InputDim.W
	for i := 0; i < convStages; i++ {
		ch, cw := conv.OutputDims(h, w, c.FilterSize, c.FilterSize)
		if ch < layers.Pool2x2.Height || cw < layers.Pool2x2.Width {
			return nil, fmt.Errorf("%w: stage %d input %dx%d too small for filter %d and 2x2 pooling",
				ErrInvalidConfig, i+1, h, w, c.FilterSize)
		}
		h, w = layers.Pool2x2.OutputDims(ch, cw)
		dims = append(dims, Spatial{H: h, W: w})
	}
	return dims, nil
}

// Validate checks the configuration for an architecture.
func (c Config) Validate(arch Architecture) error {
	if err := arch.Validate(); err != nil {
		return err
	}

	var problems []string
	if c.InputDim.C <= 0 || c.InputDim.H <= 0 || c.InputDim.W <= 0 {
		problems = append(problems, fmt.Sprintf("input_dim %+v must be positive", c.InputDim))
	}
	if arch.ConvStages > 0 {
		if c.NumFilters <= 0 {
			problems = append(problems, fmt.Sprintf("num_filters %d must be positive", c.NumFilters))
		}
		if c.FilterSize <= 0 {
			problems = append(problems, fmt.Sprintf("filter_size %d must be positive", c.FilterSize))
		}
	}
	if arch.HiddenStages > 0 && c.HiddenDim <= 0 {
		problems = append(problems, fmt.Sprintf("hidden_dim %d must be positive", c.HiddenDim))
	}
	if c.NumClasses <= 0 {
		problems = append(problems, fmt.Sprintf("num_classes %d must be positive", c.NumClasses))
	}
	if c.WeightScale < 0 {
		problems = append(problems, fmt.Sprintf("weight_scale %g must not be negative", c.WeightScale))
	}
	if c.Reg < 0 {
		problems = append(problems, fmt.Sprintf("reg %g must not be negative", c.Reg))
	}
	if c.RegMode != RegLegacy && c.RegMode != RegUniform {
		problems = append(problems, fmt.Sprintf("reg_mode %d unknown", int(c.RegMode)))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}

	_, err := c.stageDims(arch.ConvStages)
	return err
}
