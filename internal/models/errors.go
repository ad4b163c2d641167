package models

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is matched by every ShapeMismatchError.
var ErrShapeMismatch = errors.New("volume shape mismatch")

// ShapeMismatchError indicates that two volumes compared voxel by voxel do
// not share the same dimensions.
type ShapeMismatchError struct {
	Expected [3]int
	Actual   [3]int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("volume shape mismatch: expected %dx%dx%d, got %dx%dx%d",
		e.Expected[0], e.Expected[1], e.Expected[2], e.Actual[0], e.Actual[1], e.Actual[2])
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }

// CheckShapes returns a *ShapeMismatchError when a and b differ in shape.
func CheckShapes(a, b *Volume) error {
	if a.SameShape(b) {
		return nil
	}
	return &ShapeMismatchError{Expected: a.Shape(), Actual: b.Shape()}
}
