// Copyright 2026 The Servonet Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package servo loads the visual servoing image set.
//
// The set is a directory of rgb{i}{j}.jpg files, sequence i and view j, each
// resized to a small square and labelled with one of four servo targets:
//
//	d, err := servo.Load(ctx, servo.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	splits := d.Map() // X_train, y_train, X_val, y_val, X_test, y_test
package servo

import (
	"context"
	"io/fs"

	"github.com/servonet/servonet/internal/servo"
)

// Config describes the dataset location, layout and split.
type Config = servo.Config

// Dataset is the mean-centred servoing set.
type Dataset = servo.Dataset

// Split keys of Dataset.Map.
const (
	KeyXTrain = servo.KeyXTrain
	KeyYTrain = servo.KeyYTrain
	KeyXVal   = servo.KeyXVal
	KeyYVal   = servo.KeyYVal
	KeyXTest  = servo.KeyXTest
	KeyYTest  = servo.KeyYTest
)

// ErrDatasetShape is returned for impossible layouts and unusable images.
var ErrDatasetShape = servo.ErrDatasetShape

// DefaultConfig returns 200 sequences of 4 views in ./Dataset, resized to
// 32x32, with 700 training samples.
func DefaultConfig() Config {
	return servo.DefaultConfig()
}

// Load reads the dataset from cfg.Dir.
func Load(ctx context.Context, cfg Config) (*Dataset, error) {
	return servo.Load(ctx, cfg)
}

// LoadFS reads the dataset from fsys.
func LoadFS(ctx context.Context, fsys fs.FS, cfg Config) (*Dataset, error) {
	return servo.LoadFS(ctx, fsys, cfg)
}

// Target returns the regression target of sample n.
func Target(n int) [2]float64 {
	return servo.Target(n)
}
