package rbtree

import (
	"errors"
	"fmt"
)

var (
	ErrBuilderDone = errors.New("builder has already been finished")

	ErrRootNotBlack   = errors.New("root node is not black")
	ErrRedViolation   = errors.New("red node has a red child")
	ErrBlackHeight    = errors.New("unequal black height")
	ErrCountMismatch  = errors.New("subtree count mismatch")
	ErrOrderViolation = errors.New("keys out of order")
)

// IndexOutOfBoundsError reports an indexed access outside [0, Size).
type IndexOutOfBoundsError struct {
	Index int
	Size  int
}

func (e *IndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("index %d out of bounds for tree of size %d", e.Index, e.Size)
}
