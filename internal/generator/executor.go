package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/simonhull/firebird-suite/kestrel/internal/logger"
)

// ExecuteOptions configures execution behavior
type ExecuteOptions struct {
	DryRun bool
	Writer io.Writer // Where to write output (defaults to os.Stdout)
	Logger logger.Logger
}

// Execute runs operations as one transaction and returns it so the caller can
// Commit, or Rollback if a later step fails. In dry-run mode it reports what
// would happen and returns a nil transaction.
func Execute(ctx context.Context, fsys afero.Fs, ops []Operation, opts ExecuteOptions) (*Transaction, error) {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	if opts.DryRun {
		for _, op := range ops {
			err := op.Validate(ctx, fsys)
			switch {
			case errors.Is(err, ErrSkipped):
				continue
			case err != nil:
				return nil, fmt.Errorf("validation failed: %w", err)
			}
			fmt.Fprintf(opts.Writer, "✓ [DRY RUN] %s\n", op.Description())
		}
		return nil, nil
	}

	tx := NewTransaction(fsys, WithLogger(opts.Logger), WithProgress(opts.Writer))
	tx.Add(ops...)
	if err := tx.Apply(ctx); err != nil {
		return tx, err
	}
	return tx, nil
}
