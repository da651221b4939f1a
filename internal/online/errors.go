package online

import "errors"

var (
	ErrConstruction  = errors.New("cannot construct online node")
	ErrCapacity      = errors.New("batch larger than window")
	ErrShapeMismatch = errors.New("paired batches differ in length")
)
