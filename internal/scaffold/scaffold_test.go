package scaffold

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonhull/firebird-suite/kestrel/internal/generator"
	"github.com/simonhull/firebird-suite/kestrel/internal/templates"
)

const root = "/app"

const existingAuth = "export const session = () => null;\n"

func newProject(t *testing.T) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, root+"/package.json", []byte(`{"dependencies":{"next":"14"}}`), 0o644))
	return fsys
}

func readFile(t *testing.T, fsys afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	return string(data)
}

func exists(t *testing.T, fsys afero.Fs, path string) bool {
	t.Helper()
	ok, err := afero.Exists(fsys, path)
	require.NoError(t, err)
	return ok
}

func TestEngine_AllBackends(t *testing.T) {
	store, err := templates.Default()
	require.NoError(t, err)

	for _, b := range store.Backends() {
		for _, o := range store.ORMs() {
			t.Run(b.Key+"/"+o.Key, func(t *testing.T) {
				fsys := newProject(t)
				require.NoError(t, afero.WriteFile(fsys, root+"/lib/auth.ts", []byte(existingAuth), 0o644))

				plan, err := store.Resolve(b.Key, o.Key)
				require.NoError(t, err)
				tree, err := store.Tree(b.Key)
				require.NoError(t, err)

				tx, err := NewEngine(fsys, store, nil).Apply(context.Background(), plan, root)
				require.NoError(t, err)
				tx.Commit()

				for _, rel := range plan.Files {
					dest := filepath.Join(root, rel)
					want, err := fs.ReadFile(tree, rel)
					if errors.Is(err, fs.ErrNotExist) {
						assert.False(t, exists(t, fsys, dest), "%s is not shipped and must not be created", rel)
						continue
					}
					require.NoError(t, err)

					got := readFile(t, fsys, dest)
					if plan.IsMergeable(rel) {
						assert.Equal(t, existingAuth+MergeSeparator+string(want), got, rel)
					} else {
						assert.Equal(t, string(want), got, rel)
					}
				}

				env, err := fs.ReadFile(tree, plan.EnvSample)
				require.NoError(t, err)
				assert.Equal(t, string(env), readFile(t, fsys, root+"/.auth.env"))

				// the operator's own .env is never touched
				assert.False(t, exists(t, fsys, root+"/.env"))
			})
		}
	}
}

func TestEngine_MergeTargetMissing(t *testing.T) {
	store, err := templates.Default()
	require.NoError(t, err)
	plan, err := store.Resolve("postgresql", "drizzle")
	require.NoError(t, err)
	tree, err := store.Tree("postgresql")
	require.NoError(t, err)

	fsys := newProject(t)
	tx, err := NewEngine(fsys, store, nil).Apply(context.Background(), plan, root)
	require.NoError(t, err)

	want, err := fs.ReadFile(tree, "lib/auth.ts")
	require.NoError(t, err)
	assert.Equal(t, string(want), readFile(t, fsys, root+"/lib/auth.ts"))
	assert.Contains(t, tx.Record().Created(), root+"/lib/auth.ts")
}

func TestEngine_Operations(t *testing.T) {
	store, err := templates.Default()
	require.NoError(t, err)
	plan, err := store.Resolve("mysql", "drizzle")
	require.NoError(t, err)

	ops, err := NewEngine(afero.NewMemMapFs(), store, nil).Operations(plan, root)
	require.NoError(t, err)
	require.Len(t, ops, len(plan.Files)+1)

	merge, ok := ops[6].(*generator.AppendFileOp)
	require.True(t, ok, "lib/auth.ts should be merged")
	assert.Equal(t, "/app/lib/auth.ts", merge.To)
	assert.Equal(t, "\n", merge.Separator)

	env, ok := ops[len(ops)-1].(*generator.CopyFileOp)
	require.True(t, ok)
	assert.Equal(t, ".env", env.From)
	assert.Equal(t, "/app/.auth.env", env.To)
	assert.True(t, env.Optional)
}

func TestEngine_UnknownBackend(t *testing.T) {
	store, err := templates.Default()
	require.NoError(t, err)

	_, err = NewEngine(afero.NewMemMapFs(), store, nil).Operations(&templates.Plan{Backend: "oracle"}, root)
	assert.ErrorIs(t, err, templates.ErrUnknownBackend)
}

func TestEngine_Preview(t *testing.T) {
	store, err := templates.Default()
	require.NoError(t, err)
	plan, err := store.Resolve("libsql", "drizzle")
	require.NoError(t, err)

	fsys := newProject(t)
	var buf bytes.Buffer
	require.NoError(t, NewEngine(fsys, store, nil).Preview(context.Background(), plan, root, &buf))

	out := buf.String()
	assert.Contains(t, out, "[DRY RUN] Create /app/db/schema.ts")
	assert.Contains(t, out, "[DRY RUN] Merge /app/lib/auth.ts")
	assert.Contains(t, out, "[DRY RUN] Create /app/.auth.env")
	assert.NotContains(t, out, "logout")

	assert.False(t, exists(t, fsys, root+"/db"))
}

func TestEngine_Progress(t *testing.T) {
	store, err := templates.Default()
	require.NoError(t, err)
	plan, err := store.Resolve("mysql", "drizzle")
	require.NoError(t, err)

	var buf bytes.Buffer
	engine := NewEngine(newProject(t), store, nil)
	engine.SetProgress(&buf)

	_, err = engine.Apply(context.Background(), plan, root)
	require.NoError(t, err)
	assert.Equal(t, len(plan.Files)+1, strings.Count(buf.String(), "✓ "))
}

// failingFs fails every write to one path.
type failingFs struct {
	afero.Fs
	path string
}

var errDiskFull = errors.New("no space left on device")

func (f *failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if name == f.path && flag&os.O_WRONLY != 0 {
		return nil, &os.PathError{Op: "open", Path: name, Err: errDiskFull}
	}
	return f.Fs.OpenFile(name, flag, perm)
}

const failureCatalog = `
manifest:
  - one.ts
  - lib/auth.ts
  - nested/dir/three.ts
  - four.ts
mergeable: [lib/auth.ts]
env:
  sample: .env
  target: .auth.env
backends:
  - key: db
orms:
  - key: orm
`

func TestEngine_FailureAtEntryK(t *testing.T) {
	store, err := templates.Load(fstest.MapFS{
		"catalog.yml":            {Data: []byte(failureCatalog)},
		"db/one.ts":              {Data: []byte("one")},
		"db/lib/auth.ts":         {Data: []byte("auth")},
		"db/nested/dir/three.ts": {Data: []byte("three")},
		"db/four.ts":             {Data: []byte("four")},
		"db/.env":                {Data: []byte("SECRET=x")},
	})
	require.NoError(t, err)
	plan, err := store.Resolve("db", "orm")
	require.NoError(t, err)

	for k, rel := range []string{"one.ts", "nested/dir/three.ts", "four.ts", ".auth.env"} {
		t.Run(rel, func(t *testing.T) {
			mem := newProject(t)
			require.NoError(t, afero.WriteFile(mem, root+"/lib/auth.ts", []byte(existingAuth), 0o644))
			require.NoError(t, afero.WriteFile(mem, root+"/four.ts", []byte("mine"), 0o644))

			fsys := &failingFs{Fs: mem, path: filepath.Join(root, rel)}
			tx, err := NewEngine(fsys, store, nil).Apply(context.Background(), plan, root)
			require.Error(t, err, "entry %d", k)
			require.ErrorIs(t, err, errDiskFull)
			assert.NotNil(t, tx)

			var opErr *generator.FileOperationError
			require.ErrorAs(t, err, &opErr)
			assert.Equal(t, filepath.Join(root, rel), opErr.Path)

			// created files are gone, along with the directories made for them
			assert.False(t, exists(t, mem, root+"/one.ts"))
			assert.False(t, exists(t, mem, root+"/nested"))
			assert.False(t, exists(t, mem, root+"/.auth.env"))

			// the replaced file is restored
			assert.Equal(t, "mine", readFile(t, mem, root+"/four.ts"))

			// merged content stays once the merge ran
			auth := readFile(t, mem, root+"/lib/auth.ts")
			if rel == "one.ts" {
				assert.Equal(t, existingAuth, auth)
			} else {
				assert.Equal(t, existingAuth+"\nauth", auth)
			}

			// untouched project files survive
			assert.True(t, exists(t, mem, root+"/package.json"))

			// a second rollback is harmless
			assert.NoError(t, tx.Rollback())
		})
	}
}

func TestEngine_RollbackAfterSuccess(t *testing.T) {
	store, err := templates.Default()
	require.NoError(t, err)
	plan, err := store.Resolve("mysql", "drizzle")
	require.NoError(t, err)

	fsys := newProject(t)
	tx, err := NewEngine(fsys, store, nil).Apply(context.Background(), plan, root)
	require.NoError(t, err)

	// a later step failed; the caller undoes the scaffold
	require.NoError(t, tx.Rollback())

	for _, dir := range []string{"/app/app", "/app/db", "/app/lib"} {
		assert.False(t, exists(t, fsys, dir), dir)
	}
	assert.False(t, exists(t, fsys, root+"/drizzle.config.ts"))
	assert.False(t, exists(t, fsys, root+"/.auth.env"))
	assert.True(t, exists(t, fsys, root+"/package.json"))
}
