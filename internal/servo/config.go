package servo

import (
	"fmt"
	"runtime"
)

// Config describes where the servoing images live and how they are split.
type Config struct {
	Dir        string `yaml:"dir"`         // directory holding rgb{i}{j}.jpg
	Sequences  int    `yaml:"sequences"`   // i runs over 1..Sequences
	Views      int    `yaml:"views"`       // j runs over 1..Views
	Size       int    `yaml:"size"`        // images are resized to Size x Size
	TrainCount int    `yaml:"train_count"` // leading samples used for training
	Workers    int    `yaml:"workers"`     // concurrent decoders, 0 means NumCPU
}

// DefaultConfig returns the layout of the original servoing set: 200 sequences
// of 4 views, 32x32 images, 700 training samples.
func DefaultConfig() Config {
	return Config{
		Dir:        "Dataset",
		Sequences:  200,
		Views:      4,
		Size:       32,
		TrainCount: 700,
	}
}

// NumSamples is Sequences·Views.
func (c Config) NumSamples() int {
	return c.Sequences * c.Views
}

// FileName returns the image name of sample n, counting sequences then views.
func (c Config) FileName(n int) string {
	return fmt.Sprintf("rgb%d%d.jpg", n/c.Views+1, n%c.Views+1)
}

// Validate checks that the split leaves at least one validation sample.
func (c Config) Validate() error {
	if c.Sequences <= 0 || c.Views <= 0 {
		return fmt.Errorf("%w: %d sequences of %d views", ErrDatasetShape, c.Sequences, c.Views)
	}
	if c.Size <= 0 {
		return fmt.Errorf("%w: image size %d", ErrDatasetShape, c.Size)
	}
	if c.TrainCount <= 0 || c.TrainCount >= c.NumSamples() {
		return fmt.Errorf("%w: train count %d must be in (0, %d)", ErrDatasetShape, c.TrainCount, c.NumSamples())
	}
	return nil
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}
