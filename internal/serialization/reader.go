package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"

	"github.com/servonet/servonet/internal/tensor"
)

// File is the decoded content of a tensor file.
type File[T tensor.Float] struct {
	Metadata map[string]string
	Tensors  map[string]*tensor.Tensor[T]
}

// Names returns the tensor names in file order.
func (f *File[T]) Names() []string {
	return slices.Sorted(maps.Keys(f.Tensors))
}

// Read decodes a tensor file, converting every tensor to T.
//
// Offsets are validated before any tensor is decoded, and the data section is
// checked against MetaChecksum when the file carries one.
func Read[T tensor.Float](r io.Reader) (*File[T], error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	f := &File[T]{Metadata: map[string]string{}, Tensors: make(map[string]*tensor.Tensor[T], len(raw))}
	if m, ok := raw[metadataKey]; ok {
		if err := json.Unmarshal(m, &f.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
		delete(raw, metadataKey)
	}

	metas, err := parseTensors(raw)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if err := ValidateTensorOffsets(metas, int64(len(data))); err != nil {
		return nil, err
	}
	if sum, ok := f.Metadata[MetaChecksum]; ok {
		if err := ValidateChecksum(data, sum); err != nil {
			return nil, err
		}
	}

	for _, m := range metas {
		t, err := decode[T](m, data[m.Offset:m.Offset+m.Size])
		if err != nil {
			return nil, err
		}
		f.Tensors[m.Name] = t
	}
	return f, nil
}

func parseTensors(raw map[string]json.RawMessage) ([]TensorMeta, error) {
	if len(raw) > MaxTensorCount {
		return nil, &ValidationError{Err: ErrTooManyTensors, Details: fmt.Sprintf("got %d, max %d", len(raw), MaxTensorCount)}
	}

	metas := make([]TensorMeta, 0, len(raw))
	for _, name := range slices.Sorted(maps.Keys(raw)) {
		if err := ValidateTensorName(name); err != nil {
			return nil, err
		}
		var h TensorHeader
		if err := json.Unmarshal(raw[name], &h); err != nil {
			return nil, fmt.Errorf("failed to parse tensor %q: %w", name, err)
		}
		dt, err := parseDType(h.DType)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}

		shape := make(tensor.Shape, len(h.Shape))
		for i, d := range h.Shape {
			shape[i] = int(d)
		}
		if err := shape.Validate(); err != nil {
			return nil, &ValidationError{Err: ErrSizeMismatch, Tensor: name, Details: err.Error()}
		}

		want, err := byteSize(shape, dt)
		if err != nil {
			return nil, &ValidationError{Err: ErrSizeMismatch, Tensor: name, Details: err.Error()}
		}

		m := TensorMeta{
			Name:   name,
			DType:  dt,
			Shape:  shape,
			Offset: h.DataOffsets[0],
			Size:   h.DataOffsets[1] - h.DataOffsets[0],
		}
		if m.Size != want {
			return nil, &ValidationError{
				Err:     ErrSizeMismatch,
				Tensor:  name,
				Details: fmt.Sprintf("%v %s needs %d bytes, offsets span %d", shape, dt, want, m.Size),
			}
		}
		metas = append(metas, m)
	}
	return metas, nil
}

// byteSize returns the encoded size of shape in dtype dt, failing instead of
// wrapping around when the product does not fit in an int.
func byteSize(shape tensor.Shape, dt tensor.DataType) (int64, error) {
	acc := dt.Size()
	for _, d := range shape {
		if d > math.MaxInt/acc {
			return 0, fmt.Errorf("%v %s overflows the addressable size", shape, dt)
		}
		acc *= d
	}
	return int64(acc), nil
}

func decode[T tensor.Float](m TensorMeta, b []byte) (*tensor.Tensor[T], error) {
	var values []T
	switch m.DType {
	case tensor.Float32:
		src := make([]float32, m.Shape.NumElements())
		if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, src); err != nil {
			return nil, fmt.Errorf("failed to decode tensor %q: %w", m.Name, err)
		}
		values = make([]T, len(src))
		for i, v := range src {
			values[i] = T(v)
		}
	case tensor.Float64:
		src := make([]float64, m.Shape.NumElements())
		if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, src); err != nil {
			return nil, fmt.Errorf("failed to decode tensor %q: %w", m.Name, err)
		}
		values = make([]T, len(src))
		for i, v := range src {
			values[i] = T(v)
		}
	}
	return tensor.FromSlice(values, m.Shape)
}
