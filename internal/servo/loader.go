// Package servo loads the visual servoing image set: sequences of camera views
// stored as JPEG files, each labelled with one of four servo targets.
package servo

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"io/fs"
	"os"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/floats"

	"github.com/servonet/servonet/internal/parallel"
	"github.com/servonet/servonet/internal/tensor"
)

// Load reads the dataset from cfg.Dir.
func Load(ctx context.Context, cfg Config) (*Dataset, error) {
	return LoadFS(ctx, os.DirFS(cfg.Dir), cfg)
}

// LoadFS reads the dataset from fsys, ignoring cfg.Dir.
//
// Files are decoded concurrently, resized bilinearly to Size x Size and stored
// channel-first. A missing file yields an error matching fs.ErrNotExist.
func LoadFS(ctx context.Context, fsys fs.FS, cfg Config) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := cfg.NumSamples()
	sample := 3 * cfg.Size * cfg.Size
	x := tensor.Zeros[float64](tensor.Shape{n, 3, cfg.Size, cfg.Size})
	pix := x.Data()

	err := parallel.ForEach(ctx, n, cfg.workers(), func(_ context.Context, i int) error {
		return readImage(fsys, cfg.FileName(i), cfg.Size, pix[i*sample:(i+1)*sample])
	})
	if err != nil {
		return nil, err
	}

	y := tensor.Zeros[float64](tensor.Shape{n, 2})
	for i := 0; i < n; i++ {
		t := Target(i)
		copy(y.Data()[2*i:2*i+2], t[:])
	}

	train, val := cfg.TrainCount, n-cfg.TrainCount
	d := &Dataset{
		XTrain: slice(x, 0, train),
		YTrain: slice(y, 0, train),
		XVal:   slice(x, train, n),
		YVal:   slice(y, train, n),
	}
	d.XTest, d.YTest = d.XVal, d.YVal

	d.Mean = tensor.Zeros[float64](tensor.Shape{3, cfg.Size, cfg.Size})
	mean := d.Mean.Data()
	for i := 0; i < train; i++ {
		floats.Add(mean, d.XTrain.Data()[i*sample:(i+1)*sample])
	}
	floats.Scale(1/float64(train), mean)

	for _, split := range []struct {
		x *tensor.Tensor[float64]
		n int
	}{{d.XTrain, train}, {d.XVal, val}} {
		data := split.x.Data()
		for i := 0; i < split.n; i++ {
			floats.Sub(data[i*sample:(i+1)*sample], mean)
		}
	}
	return d, nil
}

// readImage decodes name, resizes it and writes it into dst as [3, size, size]
// in 0..255 scale.
func readImage(fsys fs.FS, name string, size int, dst []float64) error {
	f, err := fsys.Open(name)
	if err != nil {
		return fmt.Errorf("open servo image: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	if src.Bounds().Empty() {
		return fmt.Errorf("%w: %s is empty", ErrDatasetShape, name)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(rgba, rgba.Bounds(), src, src.Bounds(), draw.Src, nil)

	plane := size * size
	for yy := 0; yy < size; yy++ {
		row := rgba.Pix[yy*rgba.Stride:]
		for xx := 0; xx < size; xx++ {
			p := yy*size + xx
			dst[p] = float64(row[4*xx])
			dst[plane+p] = float64(row[4*xx+1])
			dst[2*plane+p] = float64(row[4*xx+2])
		}
	}
	return nil
}

// slice copies rows [from, to) of the leading axis into a new tensor.
func slice(t *tensor.Tensor[float64], from, to int) *tensor.Tensor[float64] {
	shape := t.Shape().Clone()
	stride := t.NumElements() / shape[0]
	shape[0] = to - from
	out, err := tensor.FromSlice(t.Data()[from*stride:to*stride], shape)
	if err != nil {
		panic(err)
	}
	return out
}
