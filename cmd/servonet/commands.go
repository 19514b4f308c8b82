package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/servonet/servonet/internal/convnet"
	"github.com/servonet/servonet/internal/servo"
	"github.com/servonet/servonet/internal/tensor"
)

// env is a resolved command invocation.
type env struct {
	cfg        fileConfig
	arch       convnet.Architecture
	configured bool   // a -config file was given
	params     string // checkpoint to load
	log        *slog.Logger
	out        io.Writer
}

func parse(name string, args []string, stdout, stderr io.Writer, extra func(*flag.FlagSet)) (*env, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	var o options
	o.register(fs)
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg, arch, err := o.resolve(fs)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:        cfg,
		arch:       arch,
		configured: o.configPath != "",
		params:     o.params,
		log:        newLogger(stderr, o.verbose),
		out:        stdout,
	}, nil
}

func runInit(_ context.Context, args []string, stdout, stderr io.Writer) error {
	var out string
	e, err := parse("init", args, stdout, stderr, func(fs *flag.FlagSet) {
		fs.StringVar(&out, "out", "", "write the initialized network to this checkpoint file")
	})
	if err != nil {
		return err
	}
	if e.cfg.DType == "float64" {
		return describe[float64](e, out)
	}
	return describe[float32](e, out)
}

func describe[T tensor.Float](e *env, out string) error {
	net, err := build[T](e, e.cfg.Network)
	if err != nil {
		return err
	}
	e.arch = net.Architecture()
	fmt.Fprintf(e.out, "%s: %s\n", e.arch.Name, e.arch)
	for i, d := range net.OutputDims() {
		fmt.Fprintf(e.out, "  stage %d output %dx%d\n", i+1, d.H, d.W)
	}
	net.Params().Each(func(name string, p *tensor.Tensor[T]) {
		fmt.Fprintf(e.out, "  %-3s %v\n", name, p.Shape())
	})
	fmt.Fprintf(e.out, "parameters: %d (%s)\n", net.Params().NumElements(), tensor.DTypeOf[T]())

	if out == "" {
		return nil
	}
	return save(net, out, e.log)
}

// build loads the -params checkpoint when one was given and otherwise
// initializes a fresh network from cfg.
func build[T tensor.Float](e *env, cfg convnet.Config) (*convnet.Network[T], error) {
	if e.params == "" {
		return convnet.New[T](e.arch, cfg)
	}
	f, err := os.Open(e.params)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	net, err := convnet.Load[T](bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", e.params, err)
	}
	e.log.Info("loaded checkpoint", "path", e.params, "arch", net.Architecture().Name)
	return net, nil
}

func save[T tensor.Float](net *convnet.Network[T], path string, log *slog.Logger) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := net.Save(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info("saved checkpoint", "path", path)
	return nil
}

func runScores(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	e, err := parse("scores", args, stdout, stderr, nil)
	if err != nil {
		return err
	}
	if e.cfg.DType == "float64" {
		return scores[float64](ctx, e)
	}
	return scores[float32](ctx, e)
}

func scores[T tensor.Float](ctx context.Context, e *env) error {
	net, x, _, err := setup[T](ctx, e)
	if err != nil {
		return err
	}

	start := time.Now()
	s, err := net.Scores(x)
	if err != nil {
		return err
	}
	e.log.Debug("forward pass", "batch", x.Dim(0), "elapsed", time.Since(start))

	var pred []int
	if net.Architecture().Loss == convnet.Softmax {
		if pred, err = net.Predict(x); err != nil {
			return err
		}
	}
	for i := 0; i < s.Dim(0); i++ {
		row := s.Data()[i*s.Dim(1) : (i+1)*s.Dim(1)]
		fmt.Fprintf(e.out, "%d: %s", i, formatRow(row))
		if pred != nil {
			fmt.Fprintf(e.out, " -> %d", pred[i])
		}
		fmt.Fprintln(e.out)
	}
	return nil
}

func runLoss(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	e, err := parse("loss", args, stdout, stderr, nil)
	if err != nil {
		return err
	}
	if e.cfg.DType == "float64" {
		return loss[float64](ctx, e)
	}
	return loss[float32](ctx, e)
}

func loss[T tensor.Float](ctx context.Context, e *env) error {
	net, x, target, err := setup[T](ctx, e)
	if err != nil {
		return err
	}

	start := time.Now()
	l, grads, err := net.Loss(x, target)
	if err != nil {
		return err
	}
	e.log.Debug("forward and backward pass", "batch", x.Dim(0), "elapsed", time.Since(start))

	penalty := net.Penalty()
	fmt.Fprintf(e.out, "loss %.6g (data %.6g, penalty %.6g)\n", l, l-penalty, penalty)
	grads.Each(func(name string, g *tensor.Tensor[T]) {
		fmt.Fprintf(e.out, "  |d%s| = %.4g\n", name, math.Sqrt(tensor.SumSquares(g.Data())))
	})
	return nil
}

// gradcheckConfig is small enough for a full numerical check.
func gradcheckConfig() convnet.Config {
	return convnet.Config{
		InputDim:    convnet.InputDim{C: 3, H: 8, W: 8},
		NumFilters:  2,
		FilterSize:  3,
		HiddenDim:   4,
		NumClasses:  3,
		WeightScale: 0.5,
	}
}

func runGradcheck(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		step float64
		tol  float64
	)
	e, err := parse("gradcheck", args, stdout, stderr, func(fs *flag.FlagSet) {
		fs.Float64Var(&step, "step", 1e-6, "central difference step")
		fs.Float64Var(&tol, "tol", 1e-5, "maximum relative error")
	})
	if err != nil {
		return err
	}

	cfg := e.cfg
	if !e.configured {
		small := gradcheckConfig()
		small.Seed = cfg.Network.Seed
		small.Reg = cfg.Network.Reg
		small.RegMode = cfg.Network.RegMode
		cfg.Network = small
		if cfg.Batch > 2 {
			cfg.Batch = 2
		}
	}
	e.cfg = cfg
	if e.cfg.Network.RegMode == convnet.RegLegacy && e.cfg.Network.Reg > 0 {
		e.log.Warn("legacy regularization penalizes later weights twice as much as their gradient implies; expect mismatches")
	}

	net, x, target, err := setup[float64](ctx, e)
	if err != nil {
		return err
	}
	start := time.Now()
	errs, err := convnet.CheckGradients(net, x, target, step)
	if err != nil {
		return err
	}
	e.log.Debug("gradient check", "params", net.Params().NumElements(), "elapsed", time.Since(start))

	var worst float64
	for _, name := range net.Params().Names() {
		fmt.Fprintf(e.out, "%-3s relative error %.3e\n", name, errs[name])
		worst = math.Max(worst, errs[name])
	}
	if worst > tol {
		return fmt.Errorf("gradient check failed: max relative error %.3e > %.1e", worst, tol)
	}
	fmt.Fprintf(e.out, "ok (max %.3e)\n", worst)
	return nil
}

// setup builds the network and a batch of inputs with matching targets.
//
// With a data directory the batch is the head of the servo training split and
// the network regresses its two-valued targets. Otherwise inputs are N(0, 1)
// noise, labels cycle through the classes and L2 targets are noise.
func setup[T tensor.Float](ctx context.Context, e *env) (*convnet.Network[T], *tensor.Tensor[T], convnet.Target[T], error) {
	var none convnet.Target[T]
	errTargets := fmt.Errorf("%w: servo targets are real-valued, use an l2 architecture", convnet.ErrTargetKind)
	cfg := e.cfg.Network

	var d *servo.Dataset
	if e.cfg.Data.Dir != "" {
		if e.params == "" && e.arch.Loss != convnet.L2 {
			return nil, nil, none, errTargets
		}
		start := time.Now()
		var err error
		if d, err = servo.Load(ctx, e.cfg.Data); err != nil {
			return nil, nil, none, err
		}
		e.log.Info("loaded servo set", "dir", e.cfg.Data.Dir,
			"train", d.XTrain.Dim(0), "val", d.XVal.Dim(0), "elapsed", time.Since(start))

		cfg.InputDim = convnet.InputDim{C: 3, H: e.cfg.Data.Size, W: e.cfg.Data.Size}
		cfg.NumClasses = 2
	}

	net, err := build[T](e, cfg)
	if err != nil {
		return nil, nil, none, err
	}
	arch, cfg := net.Architecture(), net.Config()
	e.log.Debug("built network", "arch", arch.Name, "params", net.Params().NumElements())

	if d != nil {
		if arch.Loss != convnet.L2 {
			return nil, nil, none, errTargets
		}
		n := min(e.cfg.Batch, d.XTrain.Dim(0))
		x := head(tensor.Convert[T](d.XTrain), n)
		y := head(tensor.Convert[T](d.YTrain), n)
		return net, x, convnet.Values(y), nil
	}

	seed := cfg.Seed + 1
	src := rand.NewPCG(seed, seed<<1)
	in := cfg.InputDim
	x := tensor.Randn[T](tensor.Shape{e.cfg.Batch, in.C, in.H, in.W}, 1, src)
	if arch.Loss == convnet.L2 {
		return net, x, convnet.Values(tensor.Randn[T](tensor.Shape{e.cfg.Batch, cfg.NumClasses}, 1, src)), nil
	}
	labels := make([]int, e.cfg.Batch)
	for i := range labels {
		labels[i] = i % cfg.NumClasses
	}
	return net, x, convnet.Labels[T](labels), nil
}

// head returns a copy of the first n rows of t.
func head[T tensor.Float](t *tensor.Tensor[T], n int) *tensor.Tensor[T] {
	shape := t.Shape().Clone()
	stride := t.NumElements() / shape[0]
	shape[0] = n
	out, err := tensor.FromSlice(t.Data()[:n*stride], shape)
	if err != nil {
		panic(err)
	}
	return out
}

func formatRow[T tensor.Float](row []T) string {
	b := make([]byte, 0, 12*len(row))
	for i, v := range row {
		if i > 0 {
			b = append(b, ' ')
		}
		b = fmt.Appendf(b, "%9.4g", v)
	}
	return string(b)
}
