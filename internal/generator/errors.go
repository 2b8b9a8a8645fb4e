package generator

import (
	"errors"
	"fmt"
)

// ErrSkipped is returned by Validate for an optional operation whose template
// source does not exist. The transaction leaves such operations out.
var ErrSkipped = errors.New("operation skipped")

// FileOperationError reports a failed filesystem step.
type FileOperationError struct {
	Op   string // read, stat, mkdir, write
	Path string
	Err  error
}

func (e *FileOperationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileOperationError) Unwrap() error {
	return e.Err
}
