// Package installer adds npm packages to the target project through its
// package manager.
package installer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/simonhull/firebird-suite/kestrel/internal/logger"
	"github.com/simonhull/firebird-suite/kestrel/internal/templates"
)

// ErrUnknownPackageManager indicates a package manager name outside Supported.
var ErrUnknownPackageManager = errors.New("unknown package manager")

// PackageManager knows how to add packages with one package-manager binary.
type PackageManager struct {
	Name   string
	Add    []string // arguments that add runtime dependencies
	AddDev []string // arguments that add development dependencies
}

var managers = []PackageManager{
	{Name: "npm", Add: []string{"install"}, AddDev: []string{"install", "-D"}},
	{Name: "pnpm", Add: []string{"add"}, AddDev: []string{"add", "-D"}},
	{Name: "yarn", Add: []string{"add"}, AddDev: []string{"add", "-D"}},
	{Name: "bun", Add: []string{"add"}, AddDev: []string{"add", "-d"}},
}

// Supported returns the names of the known package managers.
func Supported() []string {
	names := make([]string, len(managers))
	for i, pm := range managers {
		names[i] = pm.Name
	}
	return names
}

// Lookup returns the package manager with the given name.
func Lookup(name string) (PackageManager, error) {
	for _, pm := range managers {
		if pm.Name == name {
			return pm, nil
		}
	}
	return PackageManager{}, fmt.Errorf("%w %q (supported: %s)", ErrUnknownPackageManager, name, strings.Join(Supported(), ", "))
}

// Args returns the full argument list that installs packages.
func (pm PackageManager) Args(dev bool, packages []string) []string {
	base := pm.Add
	if dev {
		base = pm.AddDev
	}
	return append(slices.Clone(base), packages...)
}

// RunScript returns the command line that runs a package.json script.
func (pm PackageManager) RunScript(script string) string {
	return pm.Name + " run " + script
}

// InstallError reports a failed package-manager invocation.
type InstallError struct {
	Manager  string
	Dev      bool
	Packages []string
	Err      error
}

func (e *InstallError) Error() string {
	kind := "dependencies"
	if e.Dev {
		kind = "dev dependencies"
	}
	return fmt.Sprintf("%s could not install %s (%s): %v", e.Manager, kind, strings.Join(e.Packages, " "), e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// CommandRunner runs one external command to completion.
// *exec.Executor satisfies it.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
	RunWithSpinner(ctx context.Context, message string, name string, args ...string) error
}

// Installer adds a plan's dependencies with one package manager.
type Installer struct {
	pm      PackageManager
	runner  CommandRunner
	log     logger.Logger
	spinner bool
}

// Option configures an Installer.
type Option func(*Installer)

// WithLogger sets the logger for invocation diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(i *Installer) {
		if l != nil {
			i.log = l
		}
	}
}

// WithSpinner hides package-manager output behind a spinner.
func WithSpinner(enabled bool) Option {
	return func(i *Installer) {
		i.spinner = enabled
	}
}

// New creates an installer for pm that runs commands through runner.
func New(pm PackageManager, runner CommandRunner, opts ...Option) *Installer {
	i := &Installer{
		pm:     pm,
		runner: runner,
		log:    logger.NewSilent(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Manager returns the package manager in use.
func (i *Installer) Manager() PackageManager {
	return i.pm
}

// Install adds the plan's runtime dependencies, then its development
// dependencies. Each invocation blocks until the package manager exits; an
// empty list is skipped. There is no timeout; cancel ctx to stop.
func (i *Installer) Install(ctx context.Context, plan *templates.Plan) error {
	if err := i.install(ctx, false, plan.Dependencies); err != nil {
		return err
	}
	return i.install(ctx, true, plan.DevDependencies)
}

func (i *Installer) install(ctx context.Context, dev bool, packages []string) error {
	if len(packages) == 0 {
		return nil
	}

	args := i.pm.Args(dev, packages)
	i.log.Debug("running package manager",
		logger.F("cmd", i.pm.Name+" "+strings.Join(args, " ")))

	var err error
	if i.spinner {
		msg := "Installing dependencies"
		if dev {
			msg = "Installing dev dependencies"
		}
		err = i.runner.RunWithSpinner(ctx, msg, i.pm.Name, args...)
	} else {
		err = i.runner.Run(ctx, i.pm.Name, args...)
	}
	if err != nil {
		return &InstallError{Manager: i.pm.Name, Dev: dev, Packages: slices.Clone(packages), Err: err}
	}
	return nil
}
