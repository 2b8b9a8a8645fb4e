package commands

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/simonhull/firebird-suite/kestrel/internal/installer"
	"github.com/simonhull/firebird-suite/kestrel/internal/output"
	"github.com/simonhull/firebird-suite/kestrel/internal/project"
	"github.com/simonhull/firebird-suite/kestrel/internal/templates"
)

const root = "/work/app"

const packageJSON = `{
  "name": "my-app",
  "scripts": {
    "dev": "next dev"
  },
  "dependencies": {
    "next": "14.2.3",
    "react": "^18"
  }
}
`

// fakeInstaller stands in for the package manager. On success it records the
// dependencies in package.json the way npm would.
type fakeInstaller struct {
	fs      afero.Fs
	manager string
	plans   []*templates.Plan
	err     error
	before  func()
}

func (f *fakeInstaller) factory(pm installer.PackageManager, dir string) DependencyInstaller {
	f.manager = pm.Name
	return f
}

func (f *fakeInstaller) Install(ctx context.Context, plan *templates.Plan) error {
	f.plans = append(f.plans, plan)
	if f.before != nil {
		f.before()
	}
	if f.err != nil {
		return f.err
	}

	path := root + "/package.json"
	data, err := afero.ReadFile(f.fs, path)
	if err != nil {
		return err
	}
	for _, dep := range plan.Dependencies {
		if data, err = sjson.SetBytes(data, "dependencies."+escape(dep), "^1.0.0"); err != nil {
			return err
		}
	}
	for _, dep := range plan.DevDependencies {
		if data, err = sjson.SetBytes(data, "devDependencies."+escape(dep), "^1.0.0"); err != nil {
			return err
		}
	}
	return afero.WriteFile(f.fs, path, data, 0o644)
}

func escape(name string) string {
	var b bytes.Buffer
	for _, r := range name {
		if r == '@' || r == '/' || r == '.' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

type harness struct {
	fs        afero.Fs
	installer *fakeInstaller
	stdout    bytes.Buffer
	stderr    bytes.Buffer
	tty       bool
}

func newHarness(t *testing.T, manifest string) *harness {
	t.Helper()
	h := &harness{fs: afero.NewMemMapFs()}
	h.installer = &fakeInstaller{fs: h.fs}
	require.NoError(t, h.fs.MkdirAll(root, 0o755))
	if manifest != "" {
		require.NoError(t, afero.WriteFile(h.fs, root+"/package.json", []byte(manifest), 0o644))
	}
	t.Cleanup(func() { output.SetOutput(nil) })
	return h
}

func (h *harness) run(ctx context.Context, args ...string) error {
	cmd := newRootCmd(&environment{
		fs:           h.fs,
		getwd:        func() (string, error) { return root, nil },
		stdinTTY:     func() bool { return h.tty },
		stderrTTY:    func() bool { return false },
		store:        templates.Default,
		newInstaller: h.installer.factory,
	})
	cmd.SetArgs(args)
	cmd.SetOut(&h.stdout)
	cmd.SetErr(&h.stderr)
	cmd.SetIn(&bytes.Buffer{})
	return cmd.ExecuteContext(ctx)
}

// files returns every regular file under root with its content.
func (h *harness) files(t *testing.T) map[string]string {
	t.Helper()
	out := map[string]string{}
	require.NoError(t, afero.Walk(h.fs, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			out[path+"/"] = ""
			return nil
		}
		data, err := afero.ReadFile(h.fs, path)
		out[path] = string(data)
		return err
	}))
	return out
}

func (h *harness) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := afero.ReadFile(h.fs, root+"/"+rel)
	require.NoError(t, err)
	return string(data)
}

func templateFile(t *testing.T, backend, rel string) string {
	t.Helper()
	store, err := templates.Default()
	require.NoError(t, err)
	tree, err := store.Tree(backend)
	require.NoError(t, err)
	data, err := fs.ReadFile(tree, rel)
	require.NoError(t, err)
	return string(data)
}

func TestRun_MySQLDrizzle(t *testing.T) {
	h := newHarness(t, packageJSON)

	err := h.run(context.Background(), "--backend", "mysql", "--orm", "drizzle")
	require.NoError(t, err)
	assert.Equal(t, 0, ExitCode(err))

	for _, rel := range []string{
		"app/api/auth/route.ts",
		"app/api/auth/login/route.ts",
		"app/api/auth/logout/route.ts",
		"app/api/auth/register/route.ts",
		"db/index.ts",
		"db/schema.ts",
		"lib/auth.ts",
		"drizzle.config.ts",
	} {
		assert.Equal(t, templateFile(t, "mysql", rel), h.read(t, rel), rel)
	}
	assert.Equal(t, templateFile(t, "mysql", ".env"), h.read(t, ".auth.env"))

	require.Len(t, h.installer.plans, 1)
	plan := h.installer.plans[0]
	assert.Equal(t, "npm", h.installer.manager)
	assert.Equal(t, []string{"jsonwebtoken", "mysql2", "drizzle-orm"}, plan.Dependencies)
	assert.Equal(t, []string{"dotenv", "@types/jsonwebtoken", "drizzle-kit"}, plan.DevDependencies)

	pkg := h.read(t, "package.json")
	assert.Equal(t, "drizzle-kit generate", gjson.Get(pkg, `scripts.db\:generate`).String())
	assert.Equal(t, "drizzle-kit migrate", gjson.Get(pkg, `scripts.db\:migrate`).String())
	assert.Equal(t, "next dev", gjson.Get(pkg, "scripts.dev").String())
	// dependencies written by the package manager survive the script patch
	assert.Equal(t, "^1.0.0", gjson.Get(pkg, "dependencies.mysql2").String())
	assert.Equal(t, "^1.0.0", gjson.Get(pkg, `devDependencies.\@types\/jsonwebtoken`).String())

	out := h.stdout.String()
	assert.Contains(t, out, "Files copied successfully.")
	assert.Contains(t, out, "Setup complete.")
	assert.Contains(t, out, ".env.local")
	assert.Contains(t, out, "npm run db:generate")
}

func TestRun_InstallerFailureRollsBack(t *testing.T) {
	h := newHarness(t, packageJSON)
	before := h.files(t)

	h.installer.err = &installer.InstallError{
		Manager:  "npm",
		Packages: []string{"jsonwebtoken"},
		Err:      errors.New("exit status 1"),
	}

	err := h.run(context.Background(), "--backend", "mysql", "--orm", "drizzle")
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))

	var installErr *installer.InstallError
	assert.ErrorAs(t, err, &installErr)

	// every staged file is gone and package.json is untouched
	assert.Equal(t, before, h.files(t))
	assert.Contains(t, h.stdout.String(), "Rolled back created files.")
}

func TestRun_MergedFileKeptOnRollback(t *testing.T) {
	h := newHarness(t, packageJSON)
	require.NoError(t, afero.WriteFile(h.fs, root+"/lib/auth.ts", []byte("export const mine = 1;\n"), 0o644))
	h.installer.err = errors.New("network down")

	err := h.run(context.Background(), "--backend", "postgresql", "--orm", "drizzle")
	require.Error(t, err)

	assert.Equal(t, "export const mine = 1;\n\n"+templateFile(t, "postgresql", "lib/auth.ts"), h.read(t, "lib/auth.ts"))
	exists, _ := afero.Exists(h.fs, root+"/db")
	assert.False(t, exists)
}

func TestRun_InterruptedDuringInstall(t *testing.T) {
	h := newHarness(t, packageJSON)
	before := h.files(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.installer.before = cancel
	h.installer.err = context.Canceled

	err := h.run(ctx, "--backend", "libsql", "--orm", "drizzle")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, ExitCode(err))
	assert.Equal(t, before, h.files(t))
}

func TestRun_ProbeFailures(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		wantErr  error
	}{
		{"no package.json", "", project.ErrNotAProject},
		{"not next", `{"dependencies":{"react":"^18"}}`, project.ErrUnsupportedFramework},
		{"broken json", `{"dependencies":`, project.ErrInvalidManifest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.manifest)
			before := h.files(t)

			err := h.run(context.Background(), "--backend", "mysql", "--orm", "drizzle")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 1, ExitCode(err))

			assert.Equal(t, before, h.files(t))
			assert.Empty(t, h.installer.plans)
		})
	}
}

func TestRun_DryRun(t *testing.T) {
	h := newHarness(t, packageJSON)
	before := h.files(t)

	err := h.run(context.Background(), "--backend", "postgresql", "--orm", "drizzle", "--dry-run")
	require.NoError(t, err)

	assert.Equal(t, before, h.files(t))
	assert.Empty(t, h.installer.plans)

	out := h.stdout.String()
	assert.Contains(t, out, "[DRY RUN] Create "+root+"/db/schema.ts")
	assert.Contains(t, out, "[DRY RUN] npm install jsonwebtoken pg drizzle-orm")
	assert.Contains(t, out, "[DRY RUN] npm install -D dotenv @types/jsonwebtoken @types/pg drizzle-kit")
	assert.Contains(t, out, "[DRY RUN] Add script db:migrate: drizzle-kit migrate")
}

func TestRun_NoTerminalWithoutChoices(t *testing.T) {
	h := newHarness(t, packageJSON)

	err := h.run(context.Background(), "--backend", "mysql")
	assert.ErrorIs(t, err, ErrNoTerminal)
	assert.Empty(t, h.installer.plans)
}

func TestRun_UnknownBackend(t *testing.T) {
	h := newHarness(t, packageJSON)
	before := h.files(t)

	err := h.run(context.Background(), "--backend", "oracle", "--orm", "drizzle")
	assert.ErrorIs(t, err, templates.ErrUnknownBackend)
	assert.Equal(t, before, h.files(t))
}

func TestRun_PackageManagerSelection(t *testing.T) {
	t.Run("lockfile", func(t *testing.T) {
		h := newHarness(t, packageJSON)
		require.NoError(t, afero.WriteFile(h.fs, root+"/pnpm-lock.yaml", nil, 0o644))

		require.NoError(t, h.run(context.Background(), "--backend", "mysql", "--orm", "drizzle"))
		assert.Equal(t, "pnpm", h.installer.manager)
		assert.Contains(t, h.stdout.String(), "pnpm run db:migrate")
	})

	t.Run("flag", func(t *testing.T) {
		h := newHarness(t, packageJSON)
		require.NoError(t, afero.WriteFile(h.fs, root+"/pnpm-lock.yaml", nil, 0o644))

		require.NoError(t, h.run(context.Background(), "--backend", "mysql", "--orm", "drizzle", "--package-manager", "bun"))
		assert.Equal(t, "bun", h.installer.manager)
	})

	t.Run("unknown", func(t *testing.T) {
		h := newHarness(t, packageJSON)
		before := h.files(t)

		err := h.run(context.Background(), "--backend", "mysql", "--orm", "drizzle", "--package-manager", "pip")
		assert.ErrorIs(t, err, installer.ErrUnknownPackageManager)
		assert.Equal(t, before, h.files(t))
	})
}

func TestRun_ConfigFile(t *testing.T) {
	h := newHarness(t, packageJSON)
	require.NoError(t, afero.WriteFile(h.fs, root+"/kestrel.yml", []byte("backend: libsql\norm: drizzle\nenv_file: .env.auth\n"), 0o644))

	require.NoError(t, h.run(context.Background()))

	require.Len(t, h.installer.plans, 1)
	assert.Equal(t, "libsql", h.installer.plans[0].Backend)
	assert.Equal(t, templateFile(t, "libsql", ".env"), h.read(t, ".env.auth"))

	exists, _ := afero.Exists(h.fs, root+"/app/api/auth/logout/route.ts")
	assert.False(t, exists, "libsql ships no logout route")
}

func TestRun_ManifestWriteFailureIsAWarning(t *testing.T) {
	h := newHarness(t, packageJSON)
	// package.json disappears while the package manager runs
	h.installer.before = func() {
		_ = h.fs.Remove(root + "/package.json")
	}
	h.installer.fs = afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(h.installer.fs, root+"/package.json", []byte(packageJSON), 0o644))

	err := h.run(context.Background(), "--backend", "mysql", "--orm", "drizzle")
	require.NoError(t, err)

	// scaffold is kept
	assert.Equal(t, templateFile(t, "mysql", "db/schema.ts"), h.read(t, "db/schema.ts"))
	assert.Contains(t, h.stdout.String(), "Could not update")
	assert.Contains(t, h.stdout.String(), `"db:generate"`)
}

func TestRun_Version(t *testing.T) {
	h := newHarness(t, packageJSON)
	require.NoError(t, h.run(context.Background(), "--version"))
	assert.Contains(t, h.stdout.String(), "kestrel version")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 1, ExitCode(context.Canceled))
}
