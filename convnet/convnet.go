// Copyright 2026 The Servonet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package convnet provides convolutional networks with analytic gradients.
//
// A network is a stack of conv-relu-pool stages, fully connected hidden
// stages and a final affine layer scored by softmax cross-entropy or an L2
// regression loss. Three preset layouts are provided:
//
//	net, err := convnet.New[float64](convnet.ThreeLayer, convnet.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	loss, grads, err := net.Loss(x, convnet.Labels[float64](y))
//
// Gradients are keyed "W1", "b1", "W2", ... like the network parameters.
package convnet

import (
	"io"

	"github.com/servonet/servonet/internal/convnet"
	"github.com/servonet/servonet/tensor"
)

// Network is a convolutional network with its parameters.
type Network[T tensor.Float] = convnet.Network[T]

// Params is an ordered set of named parameter or gradient tensors.
type Params[T tensor.Float] = convnet.Params[T]

// Target is the supervision for Network.Loss.
type Target[T tensor.Float] = convnet.Target[T]

// Config holds the hyperparameters of a network.
type Config = convnet.Config

// InputDim is the per-sample image size.
type InputDim = convnet.InputDim

// Spatial is a height/width pair.
type Spatial = convnet.Spatial

// Architecture describes the stage layout of a network.
type Architecture = convnet.Architecture

// LossKind selects the data loss.
type LossKind = convnet.LossKind

// RegMode selects how the L2 penalty weighs each weight tensor.
type RegMode = convnet.RegMode

// Loss kinds.
const (
	Softmax LossKind = convnet.Softmax
	L2      LossKind = convnet.L2
)

// Regularization modes.
const (
	RegLegacy  RegMode = convnet.RegLegacy
	RegUniform RegMode = convnet.RegUniform
)

// Preset architectures.
var (
	ThreeLayer = convnet.ThreeLayer
	FourLayer  = convnet.FourLayer
	FiveLayer  = convnet.FiveLayer
)

// Errors returned by the package.
var (
	ErrInvalidConfig   = convnet.ErrInvalidConfig
	ErrShapeMismatch   = convnet.ErrShapeMismatch
	ErrTargetKind      = convnet.ErrTargetKind
	ErrUnknownArch     = convnet.ErrUnknownArch
	ErrNotClassifier   = convnet.ErrNotClassifier
	ErrInvalidRegMode  = convnet.ErrInvalidRegMode
	ErrUnknownParam    = convnet.ErrUnknownParam
	ErrParamShape      = convnet.ErrParamShape
	ErrInvalidLossKind = convnet.ErrInvalidLossKind
	ErrCheckpoint      = convnet.ErrCheckpoint
)

// New builds a network and initializes its parameters.
func New[T tensor.Float](arch Architecture, cfg Config) (*Network[T], error) {
	return convnet.New[T](arch, cfg)
}

// Load reads a network written by Network.Save, converting its parameters to T.
func Load[T tensor.Float](r io.Reader) (*Network[T], error) {
	return convnet.Load[T](r)
}

// DefaultConfig returns the default hyperparameters: 3x32x32 inputs, 32 7x7
// filters, 100 hidden units, 10 classes, weight scale 1e-3, no regularization.
func DefaultConfig() Config {
	return convnet.DefaultConfig()
}

// Presets lists the built-in architectures.
func Presets() []Architecture {
	return convnet.Presets()
}

// ArchitectureByName returns a preset by name ("three-layer" or "3", ...).
func ArchitectureByName(name string) (Architecture, error) {
	return convnet.ArchitectureByName(name)
}

// Labels wraps class indices for softmax networks.
func Labels[T tensor.Float](y []int) Target[T] {
	return convnet.Labels[T](y)
}

// Values wraps [N, NumClasses] regression targets for L2 networks.
func Values[T tensor.Float](y *tensor.Tensor[T]) Target[T] {
	return convnet.Values(y)
}

// WeightName returns the key of the weight of layer i (1-based).
func WeightName(i int) string {
	return convnet.WeightName(i)
}

// BiasName returns the key of the bias of layer i (1-based).
func BiasName(i int) string {
	return convnet.BiasName(i)
}

// CheckGradients compares analytic and central-difference gradients and
// returns the normwise relative error per parameter.
func CheckGradients[T tensor.Float](n *Network[T], x *tensor.Tensor[T], target Target[T], step float64) (map[string]float64, error) {
	return convnet.CheckGradients(n, x, target, step)
}
