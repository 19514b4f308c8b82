package convnet

import "errors"

// Common errors.
var (
	ErrInvalidConfig   = errors.New("invalid network configuration")
	ErrShapeMismatch   = errors.New("input shape does not match network")
	ErrTargetKind      = errors.New("target kind does not match the network loss")
	ErrUnknownArch     = errors.New("unknown architecture")
	ErrNotClassifier   = errors.New("network does not produce class scores")
	ErrInvalidRegMode  = errors.New("invalid regularization mode")
	ErrUnknownParam    = errors.New("unknown parameter")
	ErrParamShape      = errors.New("parameter shape mismatch")
	ErrInvalidLossKind = errors.New("invalid loss kind")
	ErrCheckpoint      = errors.New("invalid network checkpoint")
)
