package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/servonet/servonet/internal/tensor"
)

// Write stores tensors and metadata to w.
//
// Tensors are laid out in name order. MetaChecksum is set to the SHA-256 of
// the data section, overriding any value in metadata.
func Write[T tensor.Float](w io.Writer, tensors map[string]*tensor.Tensor[T], metadata map[string]string) error {
	names := slices.Sorted(maps.Keys(tensors))
	if len(names) > MaxTensorCount {
		return &ValidationError{Err: ErrTooManyTensors, Details: fmt.Sprintf("got %d, max %d", len(names), MaxTensorCount)}
	}

	var data bytes.Buffer
	header := make(map[string]any, len(names)+1)
	for _, name := range names {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		t := tensors[name]
		start := int64(data.Len())
		// bytes.Buffer writes do not fail.
		_ = binary.Write(&data, binary.LittleEndian, t.Data())

		shape := make([]int64, len(t.Shape()))
		for i, d := range t.Shape() {
			shape[i] = int64(d)
		}
		header[name] = TensorHeader{
			DType:       dtypeName(t.DType()),
			Shape:       shape,
			DataOffsets: [2]int64{start, int64(data.Len())},
		}
	}

	meta := make(map[string]string, len(metadata)+1)
	maps.Copy(meta, metadata)
	meta[MetaChecksum] = ComputeChecksum(data.Bytes())
	header[metadataKey] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, len(headerJSON))
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}
