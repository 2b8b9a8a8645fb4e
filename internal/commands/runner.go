package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/simonhull/firebird-suite/kestrel/internal/config"
	"github.com/simonhull/firebird-suite/kestrel/internal/installer"
	"github.com/simonhull/firebird-suite/kestrel/internal/logger"
	"github.com/simonhull/firebird-suite/kestrel/internal/output"
	"github.com/simonhull/firebird-suite/kestrel/internal/project"
	"github.com/simonhull/firebird-suite/kestrel/internal/prompt"
	"github.com/simonhull/firebird-suite/kestrel/internal/scaffold"
	"github.com/simonhull/firebird-suite/kestrel/internal/templates"
)

// DependencyInstaller installs a plan's dependencies into the project.
type DependencyInstaller interface {
	Install(ctx context.Context, plan *templates.Plan) error
}

// InstallerFactory returns the installer for a package manager in root.
type InstallerFactory func(pm installer.PackageManager, root string) DependencyInstaller

// Runner performs one scaffolding run.
type Runner struct {
	Fs           afero.Fs
	Store        *templates.Store
	Chooser      prompt.Chooser
	NewInstaller InstallerFactory
	Log          logger.Logger
}

// RunOptions are the per-run inputs.
type RunOptions struct {
	Root   string
	DryRun bool
	Config *config.Config
}

// Run probes the project, asks for choices, copies the templates, installs
// dependencies and adds scripts. A failure after files were copied, including
// an interrupt, removes what the run created before Run returns.
func (r *Runner) Run(ctx context.Context, opts RunOptions) error {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{Framework: project.DefaultFramework}
	}
	log := r.Log
	if log == nil {
		log = logger.NewSilent()
	}

	manifest, err := project.Probe(r.Fs, opts.Root, cfg.Framework)
	if err != nil {
		return err
	}
	output.Verbose(fmt.Sprintf("Found %s", manifest.Path()))

	sel, err := r.Chooser.Choose(ctx, r.Store)
	if err != nil {
		return err
	}

	plan, err := r.Store.Resolve(sel.Backend, sel.ORM)
	if err != nil {
		return err
	}
	if cfg.EnvFile != "" {
		plan.EnvTarget = cfg.EnvFile
	}

	pm, err := r.packageManager(cfg, opts.Root)
	if err != nil {
		return err
	}
	log = log.WithFields(logger.F("backend", plan.Backend), logger.F("orm", plan.ORM), logger.F("pm", pm.Name))

	engine := scaffold.NewEngine(r.Fs, r.Store, log)
	if opts.DryRun {
		return preview(ctx, engine, plan, opts.Root, pm)
	}

	output.Info(fmt.Sprintf("Adding %s + %s authentication to %s", plan.Backend, plan.ORM, opts.Root))
	engine.SetProgress(output.Writer())

	tx, err := engine.Apply(ctx, plan, opts.Root)
	if err != nil {
		output.Error("Copying templates failed")
		if tx != nil {
			output.Warn("🧹 Rolled back created files.")
		}
		return fmt.Errorf("copying templates: %w", err)
	}
	output.Success("Files copied successfully.")

	// Undo the copy unless everything below succeeds.
	defer func() {
		if tx.Committed() {
			return
		}
		if err := tx.Rollback(); err != nil {
			log.Warn("rollback incomplete", logger.Err(err))
			output.Warn("Some created files could not be removed; see the log above.")
			return
		}
		output.Warn("🧹 Rolled back created files.")
	}()

	merged := tx.Record().Merged()

	inst := r.NewInstaller(pm, opts.Root)
	output.Info(fmt.Sprintf("Installing dependencies with %s", pm.Name))
	if err := inst.Install(ctx, plan); err != nil {
		output.Error(fmt.Sprintf("Installing dependencies with %s failed", pm.Name))
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}
	tx.Commit()

	r.addScripts(manifest, plan, log)

	output.Success("Setup complete.")
	output.Markdown(nextSteps(plan, pm, opts.Root, merged))
	return nil
}

func (r *Runner) packageManager(cfg *config.Config, root string) (installer.PackageManager, error) {
	name := cfg.PackageManager
	if name == "" {
		name = project.DetectPackageManager(r.Fs, root)
		output.Verbose(fmt.Sprintf("Detected package manager: %s", name))
	}
	return installer.Lookup(name)
}

// addScripts is best-effort: the scaffold and the installed dependencies are
// kept even when package.json cannot be updated.
func (r *Runner) addScripts(manifest *project.Manifest, plan *templates.Plan, log logger.Logger) {
	if len(plan.Scripts) == 0 {
		return
	}

	scripts := make([]project.Script, len(plan.Scripts))
	for i, s := range plan.Scripts {
		scripts[i] = project.Script(s)
	}

	err := manifest.AddScripts(scripts...)
	if err == nil {
		err = manifest.Save()
	}
	if err != nil {
		log.Warn("could not add scripts", logger.Err(err))
		var writeErr *project.ManifestWriteError
		if errors.As(err, &writeErr) {
			output.Warn(fmt.Sprintf("Could not update %s: %v", writeErr.Path, writeErr.Err))
		} else {
			output.Warn(fmt.Sprintf("Could not add scripts: %v", err))
		}
		output.Step("Add them by hand:")
		for _, s := range plan.Scripts {
			output.Step(fmt.Sprintf("  %q: %q", s.Name, s.Command))
		}
		return
	}

	names := make([]string, len(plan.Scripts))
	for i, s := range plan.Scripts {
		names[i] = s.Name
	}
	output.Success(fmt.Sprintf("Added scripts: %s", strings.Join(names, ", ")))
}

func preview(ctx context.Context, engine *scaffold.Engine, plan *templates.Plan, root string, pm installer.PackageManager) error {
	output.Info("Dry run: no files will be changed")
	if err := engine.Preview(ctx, plan, root, output.Writer()); err != nil {
		return err
	}

	w := output.Writer()
	if len(plan.Dependencies) > 0 {
		fmt.Fprintf(w, "✓ [DRY RUN] %s %s\n", pm.Name, strings.Join(pm.Args(false, plan.Dependencies), " "))
	}
	if len(plan.DevDependencies) > 0 {
		fmt.Fprintf(w, "✓ [DRY RUN] %s %s\n", pm.Name, strings.Join(pm.Args(true, plan.DevDependencies), " "))
	}
	for _, s := range plan.Scripts {
		fmt.Fprintf(w, "✓ [DRY RUN] Add script %s: %s\n", s.Name, s.Command)
	}
	return nil
}
