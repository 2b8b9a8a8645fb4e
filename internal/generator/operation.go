package generator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"
)

// Operation represents a file system operation that can be validated and executed.
//
// Validate checks if the operation would succeed without executing it and
// without side effects. It returns ErrSkipped for an optional operation whose
// source is absent.
//
// Execute performs the operation through the transaction, which records every
// mutation for rollback.
//
// Description returns a human-readable description for output (e.g., "Create db/schema.ts").
type Operation interface {
	Validate(ctx context.Context, fsys afero.Fs) error
	Execute(ctx context.Context, tx *Transaction) error
	Description() string
}

// CopyFileOp copies a template file to a destination, overwriting whatever is
// there. An overwritten file is restored on rollback.
type CopyFileOp struct {
	Source   fs.FS       // Template tree
	From     string      // Path inside Source
	To       string      // Destination path
	Mode     fs.FileMode // Defaults to 0644
	Optional bool        // Skip silently when From does not exist
}

func (op *CopyFileOp) Validate(ctx context.Context, fsys afero.Fs) error {
	if err := checkSource(op.Source, op.From, op.Optional); err != nil {
		return err
	}
	return checkDestination(fsys, op.To)
}

func (op *CopyFileOp) Execute(ctx context.Context, tx *Transaction) error {
	content, err := readSource(op.Source, op.From, op.Optional)
	if err != nil {
		return err
	}
	return tx.WriteFile(op.To, content, modeOrDefault(op.Mode))
}

func (op *CopyFileOp) Description() string {
	return fmt.Sprintf("Create %s", op.To)
}

// AppendFileOp merges a template file into an existing destination by
// appending Separator and the template content. When the destination does not
// exist it behaves like CopyFileOp.
type AppendFileOp struct {
	Source    fs.FS
	From      string
	To        string
	Separator string
	Mode      fs.FileMode // Used only when the destination is created
	Optional  bool
}

func (op *AppendFileOp) Validate(ctx context.Context, fsys afero.Fs) error {
	if err := checkSource(op.Source, op.From, op.Optional); err != nil {
		return err
	}
	return checkDestination(fsys, op.To)
}

func (op *AppendFileOp) Execute(ctx context.Context, tx *Transaction) error {
	content, err := readSource(op.Source, op.From, op.Optional)
	if err != nil {
		return err
	}

	exists, err := afero.Exists(tx.Fs(), op.To)
	if err != nil {
		return &FileOperationError{Op: "stat", Path: op.To, Err: err}
	}
	if !exists {
		return tx.WriteFile(op.To, content, modeOrDefault(op.Mode))
	}
	return tx.AppendFile(op.To, content, op.Separator)
}

func (op *AppendFileOp) Description() string {
	return fmt.Sprintf("Merge %s", op.To)
}

func checkSource(src fs.FS, name string, optional bool) error {
	_, err := fs.Stat(src, name)
	if err == nil {
		return nil
	}
	if optional && errors.Is(err, fs.ErrNotExist) {
		return ErrSkipped
	}
	return &FileOperationError{Op: "read", Path: name, Err: err}
}

func checkDestination(fsys afero.Fs, path string) error {
	isDir, err := afero.IsDir(fsys, path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &FileOperationError{Op: "stat", Path: path, Err: err}
	}
	if isDir {
		return &FileOperationError{Op: "write", Path: path, Err: errors.New("destination is a directory")}
	}
	return nil
}

func readSource(src fs.FS, name string, optional bool) ([]byte, error) {
	content, err := fs.ReadFile(src, name)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSkipped
		}
		return nil, &FileOperationError{Op: "read", Path: name, Err: err}
	}
	return content, nil
}

func modeOrDefault(mode fs.FileMode) fs.FileMode {
	if mode == 0 {
		return defaultMode
	}
	return mode
}
