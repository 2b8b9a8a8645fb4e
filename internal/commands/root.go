package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/simonhull/firebird-suite/kestrel"
	"github.com/simonhull/firebird-suite/kestrel/internal/config"
	"github.com/simonhull/firebird-suite/kestrel/internal/exec"
	"github.com/simonhull/firebird-suite/kestrel/internal/installer"
	"github.com/simonhull/firebird-suite/kestrel/internal/logger"
	"github.com/simonhull/firebird-suite/kestrel/internal/output"
	"github.com/simonhull/firebird-suite/kestrel/internal/prompt"
	"github.com/simonhull/firebird-suite/kestrel/internal/templates"
)

// ErrNoTerminal indicates choices are missing and there is no terminal to ask
// for them.
var ErrNoTerminal = errors.New("stdin is not a terminal; pass --backend and --orm")

// environment holds everything the root command reaches outside the process.
type environment struct {
	fs        afero.Fs
	getwd     func() (string, error)
	stdinTTY  func() bool
	stderrTTY func() bool
	store     func() (*templates.Store, error)

	// newInstaller overrides the package-manager backed installer.
	newInstaller InstallerFactory
}

func defaultEnvironment() *environment {
	return &environment{
		fs:        afero.NewOsFs(),
		getwd:     os.Getwd,
		stdinTTY:  func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
		stderrTTY: func() bool { return term.IsTerminal(int(os.Stderr.Fd())) },
		store:     templates.Default,
	}
}

// RootCmd creates and returns the root command for the kestrel CLI
func RootCmd() *cobra.Command {
	return newRootCmd(defaultEnvironment())
}

func newRootCmd(env *environment) *cobra.Command {
	var (
		dir    string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "kestrel",
		Short: "Scaffold database-backed authentication into a Next.js project",
		Long: `Kestrel adds authentication boilerplate to an existing Next.js project:
• Login, logout and register API routes
• A database client and user schema
• A JWT helper and a Drizzle config

Pick a backend (MySQL, PostgreSQL or libSQL) and kestrel copies the templates,
installs the dependencies with your package manager, and adds db:* scripts.
If anything fails along the way, the files it created are removed again.

Run it in the project root with no arguments to be asked, or pass the choices:
  kestrel --backend postgresql --orm drizzle`,
		Version:       kestrel.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			output.SetOutput(cmd.OutOrStdout())

			root, err := projectRoot(env, dir)
			if err != nil {
				return err
			}

			cfg, err := config.Load(env.fs, root, cmd.Flags())
			if err != nil {
				return err
			}
			output.SetVerbose(cfg.Verbose)

			level := logger.LevelWarn
			if cfg.Verbose {
				level = logger.LevelDebug
			}
			log := logger.New(level, cmd.ErrOrStderr())
			if cfg.File != "" {
				log.Debug("loaded config", logger.F("file", cfg.File))
			}

			if cfg.Interactive() && !env.stdinTTY() {
				return ErrNoTerminal
			}

			store, err := env.store()
			if err != nil {
				return err
			}

			var chooser prompt.Chooser = prompt.Static{Backend: cfg.Backend, ORM: cfg.ORM}
			if cfg.Interactive() {
				chooser = &prompt.Form{
					Input:   cmd.InOrStdin(),
					Output:  cmd.OutOrStdout(),
					Backend: cfg.Backend,
					ORM:     cfg.ORM,
				}
			}

			newInstaller := env.newInstaller
			if newInstaller == nil {
				spinner := env.stderrTTY() && !cfg.Verbose
				newInstaller = packageManagerInstaller(cmd, log, spinner)
			}

			runner := &Runner{
				Fs:           env.fs,
				Store:        store,
				Chooser:      chooser,
				NewInstaller: newInstaller,
				Log:          log,
			}
			return runner.Run(cmd.Context(), RunOptions{
				Root:   root,
				DryRun: dryRun,
				Config: cfg,
			})
		},
	}

	cmd.Flags().String("backend", "", "database backend (mysql, postgresql, libsql)")
	cmd.Flags().String("orm", "", "ORM to configure (drizzle)")
	cmd.Flags().String("package-manager", "", "package manager to install with (npm, pnpm, yarn, bun); detected from the lockfile by default")
	cmd.Flags().StringVar(&dir, "dir", "", "project root (defaults to the current directory)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be done without changing anything")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for debugging")

	return cmd
}

func projectRoot(env *environment, dir string) (string, error) {
	if dir == "" {
		wd, err := env.getwd()
		if err != nil {
			return "", fmt.Errorf("finding current directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	return abs, nil
}

// packageManagerInstaller runs the real package manager in the project root.
// With the spinner off, its output is streamed with a gutter.
func packageManagerInstaller(cmd *cobra.Command, log logger.Logger, spinner bool) InstallerFactory {
	return func(pm installer.PackageManager, root string) DependencyInstaller {
		opts := &exec.Options{
			Dir:    root,
			Stdout: cmd.OutOrStdout(),
			Stderr: cmd.ErrOrStderr(),
		}
		if !spinner {
			opts.Stdout = exec.NewPrefixWriter(cmd.OutOrStdout(), "   │ ")
			opts.Stderr = exec.NewPrefixWriter(cmd.ErrOrStderr(), "   │ ")
		}
		return installer.New(pm, exec.NewExecutor(opts),
			installer.WithLogger(log),
			installer.WithSpinner(spinner),
		)
	}
}
