package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servonet/servonet/internal/convnet"
)

func runArgs(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servonet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const smallYAML = `
arch: four-layer
dtype: float64
batch: 3
network:
  input_dim: {c: 3, h: 8, w: 8}
  num_filters: 2
  filter_size: 3
  hidden_dim: 5
  num_classes: 4
  weight_scale: 0.1
  seed: 9
`

func TestRun_Version(t *testing.T) {
	out, err := runArgs(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "servonet "+version+"\n", out)
}

func TestRun_Usage(t *testing.T) {
	_, err := runArgs(t)
	assert.ErrorIs(t, err, flag.ErrHelp)

	_, err = runArgs(t, "train")
	assert.ErrorContains(t, err, `unknown command "train"`)
}

func TestRun_Init(t *testing.T) {
	out, err := runArgs(t, "init", "-config", writeConfig(t, smallYAML))
	require.NoError(t, err)

	assert.Contains(t, out, "four-layer: conv-relu-pool conv-relu-pool affine-relu affine-softmax")
	assert.Contains(t, out, "stage 2 output 2x2")
	assert.Contains(t, out, "W3  [8 5]")
	assert.Contains(t, out, "(float64)")
}

func TestRun_InitDefaults(t *testing.T) {
	out, err := runArgs(t, "init", "-arch", "5", "-seed", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "W4  [512 100]")
	assert.Contains(t, out, "W5  [100 10]")
	assert.Contains(t, out, "(float32)")
}

func TestRun_Scores(t *testing.T) {
	out, err := runArgs(t, "scores", "-config", writeConfig(t, smallYAML))
	require.NoError(t, err)

	assert.Contains(t, out, "0: ")
	assert.Contains(t, out, "2: ")
	assert.Contains(t, out, " -> ")
}

func TestRun_Loss(t *testing.T) {
	path := writeConfig(t, smallYAML)
	out, err := runArgs(t, "loss", "-config", path, "-reg", "0.1", "-arch", "five-layer")
	require.NoError(t, err)

	assert.Contains(t, out, "loss ")
	assert.Contains(t, out, "|dW5|")
	assert.Contains(t, out, "|db1|")
}

func TestRun_Gradcheck(t *testing.T) {
	out, err := runArgs(t, "gradcheck", "-seed", "5", "-arch", "three-layer")
	require.NoError(t, err)

	assert.Contains(t, out, "W1  relative error")
	assert.Contains(t, out, "ok (max")
}

func TestRun_GradcheckUniformReg(t *testing.T) {
	out, err := runArgs(t, "gradcheck", "-seed", "5", "-arch", "4", "-reg", "0.2", "-reg-mode", "uniform")
	require.NoError(t, err)
	assert.Contains(t, out, "ok (max")
}

func TestRun_Errors(t *testing.T) {
	_, err := runArgs(t, "init", "-dtype", "int8")
	assert.ErrorContains(t, err, "unknown dtype")

	_, err = runArgs(t, "init", "-arch", "seven")
	assert.ErrorIs(t, err, convnet.ErrUnknownArch)

	_, err = runArgs(t, "loss", "-reg-mode", "l1")
	assert.ErrorIs(t, err, convnet.ErrInvalidRegMode)

	_, err = runArgs(t, "scores", "-data", t.TempDir())
	assert.ErrorIs(t, err, convnet.ErrTargetKind)

	_, err = runArgs(t, "init", "-config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = runArgs(t, "init", "-bogus")
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultFileConfig(), cfg)
	assert.Empty(t, cfg.Data.Dir)

	cfg, err = loadConfig(writeConfig(t, smallYAML+"data:\n  dir: /srv/servo\n  size: 16\n"))
	require.NoError(t, err)
	assert.Equal(t, "four-layer", cfg.Arch)
	assert.Equal(t, 3, cfg.Batch)
	assert.Equal(t, 2, cfg.Network.NumFilters)
	assert.Equal(t, 0.1, cfg.Network.WeightScale)
	assert.Equal(t, uint64(9), cfg.Network.Seed)
	assert.Equal(t, "/srv/servo", cfg.Data.Dir)
	assert.Equal(t, 16, cfg.Data.Size)
	assert.Equal(t, 200, cfg.Data.Sequences)

	_, err = loadConfig(writeConfig(t, "network: [1, 2]"))
	assert.ErrorContains(t, err, "parse config")
}

func TestResolve_ZeroFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, smallYAML+"  reg: 0.3\n")

	resolve := func(args ...string) fileConfig {
		t.Helper()
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		var o options
		o.register(fs)
		require.NoError(t, fs.Parse(append([]string{"-config", path}, args...)))
		cfg, _, err := o.resolve(fs)
		require.NoError(t, err)
		return cfg
	}

	cfg := resolve()
	assert.Equal(t, uint64(9), cfg.Network.Seed)
	assert.Equal(t, 0.3, cfg.Network.Reg)

	cfg = resolve("-seed", "0", "-reg", "0")
	assert.Equal(t, uint64(0), cfg.Network.Seed)
	assert.Equal(t, 0.0, cfg.Network.Reg)
	assert.Equal(t, 3, cfg.Batch)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var o options
	o.register(fs)
	require.NoError(t, fs.Parse([]string{"-batch", "0"}))
	_, _, err := o.resolve(fs)
	assert.ErrorContains(t, err, "batch must be positive")
}

func TestRun_Checkpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "net.safetensors")
	_, err := runArgs(t, "init", "-config", writeConfig(t, smallYAML), "-out", path)
	require.NoError(t, err)

	// The checkpoint carries its own architecture; -arch is ignored.
	out, err := runArgs(t, "scores", "-params", path, "-arch", "five-layer", "-batch", "2")
	require.NoError(t, err)
	assert.Contains(t, out, " -> ")

	first, err := runArgs(t, "loss", "-params", path, "-dtype", "float64")
	require.NoError(t, err)
	second, err := runArgs(t, "loss", "-params", path, "-dtype", "float64")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, first, "|dW4|")

	_, err = runArgs(t, "loss", "-params", filepath.Join(t.TempDir(), "none"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
