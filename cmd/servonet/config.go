package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/servonet/servonet/internal/convnet"
	"github.com/servonet/servonet/internal/servo"
)

// fileConfig is the layout of the optional -config YAML file.
//
//	arch: five-layer
//	dtype: float64
//	batch: 8
//	network:
//	  num_filters: 16
//	  reg: 0.001
//	data:
//	  dir: ./Dataset
type fileConfig struct {
	Arch    string         `yaml:"arch"`
	DType   string         `yaml:"dtype"`
	Batch   int            `yaml:"batch"`
	Network convnet.Config `yaml:"network"`
	Data    servo.Config   `yaml:"data"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		Arch:    convnet.ThreeLayer.Name,
		DType:   "float32",
		Batch:   4,
		Network: convnet.DefaultConfig(),
		Data:    dataDefaults(),
	}
}

// dataDefaults is the servo layout with no directory; inputs are random until
// a directory is configured.
func dataDefaults() servo.Config {
	c := servo.DefaultConfig()
	c.Dir = ""
	return c
}

// loadConfig reads path over the defaults. An empty path returns the defaults.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// options are the flags shared by every command except version.
type options struct {
	configPath string
	arch       string
	dtype      string
	batch      int
	seed       uint64
	reg        float64
	regMode    string
	dataDir    string
	params     string
	verbose    bool
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "YAML config file")
	fs.StringVar(&o.arch, "arch", "", "architecture: three-layer, four-layer or five-layer")
	fs.StringVar(&o.dtype, "dtype", "", "precision: float32 or float64")
	fs.IntVar(&o.batch, "batch", 0, "batch size of random inputs")
	fs.Uint64Var(&o.seed, "seed", 0, "weight initialization seed (0 = random)")
	fs.Float64Var(&o.reg, "reg", 0, "L2 regularization strength")
	fs.StringVar(&o.regMode, "reg-mode", "", "regularization mode: legacy or uniform")
	fs.StringVar(&o.dataDir, "data", "", "servo dataset directory; random inputs when empty")
	fs.StringVar(&o.params, "params", "", "load the network from a checkpoint instead of initializing it")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")
}

// resolve loads the config file and applies the flags that were set on fs.
// Numeric flags override the file only when given, so -seed 0 and -reg 0 win
// over non-zero file values.
func (o *options) resolve(fs *flag.FlagSet) (fileConfig, convnet.Architecture, error) {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return cfg, convnet.Architecture{}, err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if o.arch != "" {
		cfg.Arch = o.arch
	}
	if o.dtype != "" {
		cfg.DType = o.dtype
	}
	if set["batch"] {
		cfg.Batch = o.batch
	}
	if set["seed"] {
		cfg.Network.Seed = o.seed
	}
	if set["reg"] {
		cfg.Network.Reg = o.reg
	}
	if o.regMode != "" {
		if err := cfg.Network.RegMode.UnmarshalText([]byte(o.regMode)); err != nil {
			return cfg, convnet.Architecture{}, err
		}
	}
	if o.dataDir != "" {
		cfg.Data.Dir = o.dataDir
	}

	switch cfg.DType {
	case "float32", "float64":
	default:
		return cfg, convnet.Architecture{}, fmt.Errorf("unknown dtype %q", cfg.DType)
	}
	if cfg.Batch <= 0 {
		return cfg, convnet.Architecture{}, fmt.Errorf("batch must be positive, got %d", cfg.Batch)
	}

	arch, err := convnet.ArchitectureByName(cfg.Arch)
	if err != nil {
		return cfg, arch, err
	}
	return cfg, arch, nil
}
