// Package prompt asks the operator which backend and ORM to scaffold.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"

	"github.com/simonhull/firebird-suite/kestrel/internal/templates"
)

// ErrCancelled indicates the operator aborted a prompt or the run was
// interrupted while one was open.
var ErrCancelled = errors.New("cancelled")

// Selection is the operator's answer.
type Selection struct {
	Backend string
	ORM     string
}

// Chooser returns the operator's choices among what a store offers.
type Chooser interface {
	Choose(ctx context.Context, store *templates.Store) (Selection, error)
}

// Form asks with interactive huh selects.
type Form struct {
	Input  io.Reader // defaults to stdin
	Output io.Writer // defaults to stdout

	// Backend or ORM, when set, is taken as answered and not asked.
	Backend string
	ORM     string
}

// Choose asks for the backend, then the ORM. Each question runs as its own
// form, preselecting the catalog default.
func (f *Form) Choose(ctx context.Context, store *templates.Store) (Selection, error) {
	sel := Selection{Backend: f.Backend, ORM: f.ORM}

	if sel.Backend == "" {
		answer, err := f.ask(ctx, "Which database backend?", store.Backends(), store.DefaultBackend())
		if err != nil {
			return Selection{}, err
		}
		sel.Backend = answer
	}

	if sel.ORM == "" {
		answer, err := f.ask(ctx, "Which ORM?", store.ORMs(), store.DefaultORM())
		if err != nil {
			return Selection{}, err
		}
		sel.ORM = answer
	}

	return sel, validate(store, sel)
}

func (f *Form) ask(ctx context.Context, title string, choices []templates.Choice, def string) (string, error) {
	selected := def

	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(title).
			Options(options(choices)...).
			Value(&selected),
	)).WithAccessible(false)
	if f.Input != nil {
		form = form.WithInput(f.Input)
	}
	if f.Output != nil {
		form = form.WithOutput(f.Output)
	}

	if err := form.RunWithContext(ctx); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrCancelled
		}
		return "", fmt.Errorf("prompt error: %w", err)
	}
	return selected, nil
}

func options(choices []templates.Choice) []huh.Option[string] {
	opts := make([]huh.Option[string], len(choices))
	for i, ch := range choices {
		label := ch.Label
		if label == "" {
			label = ch.Key
		}
		opts[i] = huh.NewOption(label, ch.Key)
	}
	return opts
}

// Static answers without asking. It is used when flags or config supply both
// choices, and in tests.
type Static Selection

// Choose validates the preset answers against the store.
func (s Static) Choose(ctx context.Context, store *templates.Store) (Selection, error) {
	if err := ctx.Err(); err != nil {
		return Selection{}, fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	sel := Selection(s)
	return sel, validate(store, sel)
}

func validate(store *templates.Store, sel Selection) error {
	if !hasKey(store.Backends(), sel.Backend) {
		return fmt.Errorf("%w: %q", templates.ErrUnknownBackend, sel.Backend)
	}
	if !hasKey(store.ORMs(), sel.ORM) {
		return fmt.Errorf("%w: %q", templates.ErrUnknownORM, sel.ORM)
	}
	return nil
}

func hasKey(choices []templates.Choice, key string) bool {
	for _, ch := range choices {
		if ch.Key == key {
			return true
		}
	}
	return false
}
