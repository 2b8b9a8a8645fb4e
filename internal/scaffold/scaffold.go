// Package scaffold turns a resolved template plan into file operations
// against a project root and runs them as one transaction.
package scaffold

import (
	"context"
	"io"
	"path"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/simonhull/firebird-suite/kestrel/internal/generator"
	"github.com/simonhull/firebird-suite/kestrel/internal/logger"
	"github.com/simonhull/firebird-suite/kestrel/internal/templates"
)

// MergeSeparator goes between existing content and appended template content.
const MergeSeparator = "\n"

// Engine copies template trees into projects.
type Engine struct {
	fs       afero.Fs
	store    *templates.Store
	log      logger.Logger
	progress io.Writer
}

// NewEngine creates an engine writing to fsys. A nil logger discards logs.
func NewEngine(fsys afero.Fs, store *templates.Store, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewSilent()
	}
	return &Engine{fs: fsys, store: store, log: log}
}

// SetProgress makes Apply print one line per completed operation to w.
func (e *Engine) SetProgress(w io.Writer) {
	e.progress = w
}

// Operations lists, in manifest order, the operations that install plan into
// root, followed by staging the env sample. Mergeable targets are appended to;
// everything else is copied. Files the backend tree does not ship are skipped.
func (e *Engine) Operations(plan *templates.Plan, root string) ([]generator.Operation, error) {
	tree, err := e.store.Tree(plan.Backend)
	if err != nil {
		return nil, err
	}

	ops := make([]generator.Operation, 0, len(plan.Files)+1)
	for _, rel := range plan.Files {
		dest := filepath.Join(root, filepath.FromSlash(rel))
		if plan.IsMergeable(rel) {
			ops = append(ops, &generator.AppendFileOp{
				Source:    tree,
				From:      rel,
				To:        dest,
				Separator: MergeSeparator,
				Optional:  true,
			})
			continue
		}
		ops = append(ops, &generator.CopyFileOp{
			Source:   tree,
			From:     rel,
			To:       dest,
			Optional: true,
		})
	}

	if plan.EnvSample != "" {
		ops = append(ops, &generator.CopyFileOp{
			Source:   tree,
			From:     path.Clean(plan.EnvSample),
			To:       filepath.Join(root, plan.EnvTarget),
			Optional: true,
		})
	}

	return ops, nil
}

// Apply installs plan into root. On failure everything written so far has
// been rolled back. On success the returned transaction is still open: the
// caller commits it once the remaining setup succeeds, or rolls it back.
func (e *Engine) Apply(ctx context.Context, plan *templates.Plan, root string) (*generator.Transaction, error) {
	ops, err := e.Operations(plan, root)
	if err != nil {
		return nil, err
	}

	log := e.log.WithFields(logger.F("backend", plan.Backend), logger.F("orm", plan.ORM))
	log.Debug("scaffolding", logger.F("root", root), logger.F("operations", len(ops)))

	return generator.Execute(ctx, e.fs, ops, generator.ExecuteOptions{
		Writer: e.progressWriter(),
		Logger: log,
	})
}

// Preview writes what Apply would do to w without touching the filesystem.
func (e *Engine) Preview(ctx context.Context, plan *templates.Plan, root string, w io.Writer) error {
	ops, err := e.Operations(plan, root)
	if err != nil {
		return err
	}
	_, err = generator.Execute(ctx, e.fs, ops, generator.ExecuteOptions{
		DryRun: true,
		Writer: w,
		Logger: e.log,
	})
	return err
}

func (e *Engine) progressWriter() io.Writer {
	if e.progress == nil {
		return io.Discard
	}
	return e.progress
}
