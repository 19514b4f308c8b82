// Package serialization stores named tensors in the SafeTensors layout:
//
//	[8 bytes: header size (uint64 LE)]
//	[header: JSON object, tensor name -> {dtype, shape, data_offsets}]
//	[tensor data: raw little-endian bytes, tensors in name order]
//
// The optional "__metadata__" header entry holds string pairs. Writers add a
// SHA-256 of the data section under MetaChecksum, which readers verify.
package serialization

import (
	"fmt"

	"github.com/servonet/servonet/internal/tensor"
)

// Header keys.
const (
	metadataKey  = "__metadata__"
	MetaChecksum = "sha256"
)

// SafeTensors dtype names.
const (
	DTypeF32 = "F32"
	DTypeF64 = "F64"
)

// TensorHeader is one tensor entry of the JSON header.
type TensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// TensorMeta describes a tensor's location in the data section.
type TensorMeta struct {
	Name   string
	DType  tensor.DataType
	Shape  tensor.Shape
	Offset int64
	Size   int64
}

func dtypeName(dt tensor.DataType) string {
	if dt == tensor.Float64 {
		return DTypeF64
	}
	return DTypeF32
}

func parseDType(s string) (tensor.DataType, error) {
	switch s {
	case DTypeF32:
		return tensor.Float32, nil
	case DTypeF64:
		return tensor.Float64, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedDType, s)
	}
}
