package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/spf13/afero"

	"github.com/simonhull/firebird-suite/kestrel/internal/logger"
)

// Transaction represents a set of file operations that are applied together
// and can be rolled back
type Transaction struct {
	fs       afero.Fs
	log      logger.Logger
	progress io.Writer
	ops      []Operation
	record   *Record

	mu        sync.Mutex
	applied   bool
	committed bool
}

// Option configures a Transaction.
type Option func(*Transaction)

// WithLogger sets the logger used for per-operation and rollback diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(t *Transaction) {
		if l != nil {
			t.log = l
		}
	}
}

// WithProgress prints a "✓ <description>" line to w after each operation.
func WithProgress(w io.Writer) Option {
	return func(t *Transaction) {
		t.progress = w
	}
}

// NewTransaction creates a new file operation transaction over fsys
func NewTransaction(fsys afero.Fs, opts ...Option) *Transaction {
	t := &Transaction{
		fs:     fsys,
		log:    logger.NewSilent(),
		record: &Record{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Add stages operations (doesn't execute yet)
func (t *Transaction) Add(ops ...Operation) {
	t.ops = append(t.ops, ops...)
}

// Operations returns the staged operations in order.
func (t *Transaction) Operations() []Operation {
	return slices.Clone(t.ops)
}

// Record returns the mutation record of this transaction.
func (t *Transaction) Record() *Record {
	return t.record
}

// Fs returns the filesystem the transaction writes to.
func (t *Transaction) Fs() afero.Fs {
	return t.fs
}

// Apply validates every staged operation, then executes them in order.
// Validation failures touch nothing. The first execution failure, or a
// cancelled ctx, stops the batch; everything done so far is rolled back and
// the original error is returned.
func (t *Transaction) Apply(ctx context.Context) error {
	t.mu.Lock()
	if t.applied {
		t.mu.Unlock()
		return errors.New("transaction already applied")
	}
	t.applied = true
	t.mu.Unlock()

	// Phase 1: validate
	run := make([]Operation, 0, len(t.ops))
	for _, op := range t.ops {
		err := op.Validate(ctx, t.fs)
		switch {
		case errors.Is(err, ErrSkipped):
			t.log.Debug("skipping operation", logger.F("op", op.Description()))
		case err != nil:
			return fmt.Errorf("validation failed: %w", err)
		default:
			run = append(run, op)
		}
	}

	// Phase 2: execute
	for _, op := range run {
		if err := ctx.Err(); err != nil {
			return t.fail(fmt.Errorf("interrupted before %q: %w", op.Description(), err))
		}

		err := op.Execute(ctx, t)
		if errors.Is(err, ErrSkipped) {
			continue
		}
		if err != nil {
			return t.fail(err)
		}

		t.log.Debug("applied", logger.F("op", op.Description()))
		if t.progress != nil {
			fmt.Fprintf(t.progress, "✓ %s\n", op.Description())
		}
	}

	return nil
}

// fail rolls back and returns the original error. Rollback problems are
// logged, not returned.
func (t *Transaction) fail(err error) error {
	t.log.Error("operation failed, rolling back", logger.Err(err))
	if rbErr := t.Rollback(); rbErr != nil {
		t.log.Warn("rollback incomplete", logger.Err(rbErr))
	}
	return err
}

// Commit accepts every change. The record is discarded and later Rollback
// calls do nothing.
func (t *Transaction) Commit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.committed = true
	t.record.take()
}

// Committed reports whether Commit was called.
func (t *Transaction) Committed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}

// Rollback undoes what the transaction did so far: deletes created files,
// restores replaced files, and removes created directories that are empty.
// Merged files are left in place and logged.
//
// Each step is attempted even if an earlier one failed; the failures are
// logged and returned joined. Rollback is idempotent: once the record has been
// replayed (or the transaction committed) it does nothing.
func (t *Transaction) Rollback() error {
	if t.Committed() {
		return nil
	}

	created, replaced, merged, dirs := t.record.take()
	var errs []error

	for i := len(created) - 1; i >= 0; i-- {
		path := created[i]
		if err := t.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			t.log.Warn("failed to remove created file", logger.F("path", path), logger.Err(err))
			errs = append(errs, fmt.Errorf("removing %s: %w", path, err))
			continue
		}
		t.log.Debug("removed", logger.F("path", path))
	}

	for i := len(replaced) - 1; i >= 0; i-- {
		s := replaced[i]
		if err := afero.WriteFile(t.fs, s.path, s.content, s.mode); err != nil {
			t.log.Warn("failed to restore replaced file", logger.F("path", s.path), logger.Err(err))
			errs = append(errs, fmt.Errorf("restoring %s: %w", s.path, err))
			continue
		}
		t.log.Debug("restored", logger.F("path", s.path))
	}

	for _, path := range merged {
		t.log.Warn("merged file keeps appended content", logger.F("path", path))
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		dir := dirs[i]
		if ok, _ := afero.DirExists(t.fs, dir); !ok {
			continue
		}
		empty, err := afero.IsEmpty(t.fs, dir)
		if err != nil {
			t.log.Warn("failed to inspect created directory", logger.F("path", dir), logger.Err(err))
			continue
		}
		if !empty {
			continue
		}
		if err := t.fs.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			t.log.Warn("failed to remove created directory", logger.F("path", dir), logger.Err(err))
			errs = append(errs, fmt.Errorf("removing %s: %w", dir, err))
		}
	}

	return errors.Join(errs...)
}

// EnsureDir creates dir and any missing parents, recording each directory it
// creates.
func (t *Transaction) EnsureDir(dir string) error {
	var missing []string
	for d := filepath.Clean(dir); ; d = filepath.Dir(d) {
		info, err := t.fs.Stat(d)
		if err == nil {
			if !info.IsDir() {
				return &FileOperationError{Op: "mkdir", Path: d, Err: errors.New("not a directory")}
			}
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return &FileOperationError{Op: "stat", Path: d, Err: err}
		}
		missing = append(missing, d)
		if parent := filepath.Dir(d); parent == d {
			break
		}
	}

	// parents first
	for i := len(missing) - 1; i >= 0; i-- {
		d := missing[i]
		t.record.trackDir(d)
		if err := t.fs.Mkdir(d, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
			return &FileOperationError{Op: "mkdir", Path: d, Err: err}
		}
	}
	return nil
}

// WriteFile writes content to path, recording the path as created, or
// snapshotting the previous content when the file already exists.
func (t *Transaction) WriteFile(path string, content []byte, mode fs.FileMode) error {
	if err := t.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}

	info, err := t.fs.Stat(path)
	switch {
	case err == nil:
		if info.IsDir() {
			return &FileOperationError{Op: "write", Path: path, Err: errors.New("destination is a directory")}
		}
		prev, err := afero.ReadFile(t.fs, path)
		if err != nil {
			return &FileOperationError{Op: "read", Path: path, Err: err}
		}
		t.record.trackReplaced(path, prev, info.Mode().Perm())
	case errors.Is(err, fs.ErrNotExist):
		// tracked before the write so a partial write is cleaned up too
		t.record.trackCreated(path)
	default:
		return &FileOperationError{Op: "stat", Path: path, Err: err}
	}

	if err := afero.WriteFile(t.fs, path, content, mode); err != nil {
		return &FileOperationError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// AppendFile appends sep and content to the existing file at path and records
// it as merged. Merged files are not reverted by Rollback.
func (t *Transaction) AppendFile(path string, content []byte, sep string) error {
	info, err := t.fs.Stat(path)
	if err != nil {
		return &FileOperationError{Op: "stat", Path: path, Err: err}
	}

	existing, err := afero.ReadFile(t.fs, path)
	if err != nil {
		return &FileOperationError{Op: "read", Path: path, Err: err}
	}

	merged := make([]byte, 0, len(existing)+len(sep)+len(content))
	merged = append(merged, existing...)
	merged = append(merged, sep...)
	merged = append(merged, content...)

	t.record.trackMerged(path)
	if err := afero.WriteFile(t.fs, path, merged, info.Mode().Perm()); err != nil {
		return &FileOperationError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// defaultMode is used when an operation does not set one.
const defaultMode os.FileMode = 0o644
