package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joncooperworks/harnesstest/caller"
)

// racingFs loses the first mkdirFailures name races to a simulated competitor.
type racingFs struct {
	afero.Fs
	mu            sync.Mutex
	mkdirFailures int
	mkdirCalls    int
	removeErr     error
}

func (f *racingFs) Mkdir(name string, perm os.FileMode) error {
	f.mu.Lock()
	f.mkdirCalls++
	lose := f.mkdirCalls <= f.mkdirFailures
	f.mu.Unlock()
	if lose {
		// the competitor wins the name
		if err := f.Fs.Mkdir(name, perm); err != nil {
			return err
		}
		return &os.PathError{Op: "mkdir", Path: name, Err: os.ErrExist}
	}
	return f.Fs.Mkdir(name, perm)
}

func (f *racingFs) Remove(name string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.Fs.Remove(name)
}

func newMemFs(t *testing.T, dirs ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, dir := range dirs {
		require.NoError(t, fs.MkdirAll(dir, 0o755))
	}
	return fs
}

func assertEmptyDir(t *testing.T, fs afero.Fs, dir string) {
	t.Helper()
	info, err := fs.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "%s is not a directory", dir)
	entries, err := afero.ReadDir(fs, dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreate(t *testing.T) {
	fs := newMemFs(t, "/scratch")
	p := New(WithFs(fs))

	dir, err := p.Create("plugin-", ".tmp", "/scratch")
	require.NoError(t, err)

	assert.Equal(t, "/scratch", filepath.Dir(dir))
	base := filepath.Base(dir)
	assert.True(t, strings.HasPrefix(base, "plugin-"), "name %q lacks prefix", base)
	assert.True(t, strings.HasSuffix(base, ".tmp"), "name %q lacks suffix", base)
	assertEmptyDir(t, fs, dir)
}

func TestCreate_DefaultParent(t *testing.T) {
	fs := newMemFs(t, "/configured")
	p := New(WithFs(fs), WithTempDir("/configured"))

	dir, err := p.Create("x", "", "")
	require.NoError(t, err)
	assert.Equal(t, "/configured", filepath.Dir(dir))
}

func TestCreate_RetriesLostRaces(t *testing.T) {
	fs := &racingFs{Fs: newMemFs(t, "/scratch"), mkdirFailures: MaxAttempts - 1}
	p := New(WithFs(fs))

	dir, err := p.Create("race", "", "/scratch")
	require.NoError(t, err)
	assert.Equal(t, MaxAttempts, fs.mkdirCalls)
	assertEmptyDir(t, fs, dir)
}

func TestCreate_TooManyRaces(t *testing.T) {
	fs := &racingFs{Fs: newMemFs(t, "/scratch"), mkdirFailures: MaxAttempts}
	p := New(WithFs(fs))

	_, err := p.Create("race", "", "/scratch")
	if !errors.Is(err, ErrTooManyRaces) {
		t.Fatalf("Create() error = %v, want ErrTooManyRaces", err)
	}
	if fs.mkdirCalls != MaxAttempts {
		t.Errorf("mkdir attempts = %d, want %d", fs.mkdirCalls, MaxAttempts)
	}
}

func TestCreate_DeleteFailureIsFatal(t *testing.T) {
	removeErr := errors.New("permission denied")
	fs := &racingFs{Fs: newMemFs(t, "/scratch"), removeErr: removeErr}
	p := New(WithFs(fs))

	_, err := p.Create("fatal", "", "/scratch")
	if !errors.Is(err, removeErr) {
		t.Fatalf("Create() error = %v, want wrapped %v", err, removeErr)
	}
	if !strings.Contains(err.Error(), "could not delete file") {
		t.Errorf("Create() error = %v, want 'could not delete file'", err)
	}
	if fs.mkdirCalls != 0 {
		t.Errorf("mkdir attempts = %d, want 0 (no retry after delete failure)", fs.mkdirCalls)
	}
}

func TestCreate_MissingParent(t *testing.T) {
	p := New()

	_, err := p.Create("x", "", filepath.Join(t.TempDir(), "does", "not", "exist"))
	if err == nil {
		t.Error("Create() in missing parent error = nil, want error")
	}
}

func TestCreate_ConcurrentCallsNeverCollide(t *testing.T) {
	parent := t.TempDir()
	p := New()

	const workers = 32
	paths := make([]string, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = p.Create("same", "", parent)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for i := range paths {
		require.NoError(t, errs[i])
		assert.False(t, seen[paths[i]], "duplicate sandbox %s", paths[i])
		seen[paths[i]] = true
		assertEmptyDir(t, afero.NewOsFs(), paths[i])
	}
}

func TestCreateFor_BuildOutputSibling(t *testing.T) {
	fs := newMemFs(t, "/project/build/test", "/tmp-default")
	p := New(WithFs(fs), WithTempDir("/tmp-default"))

	frame := &caller.Frame{File: "/project/build/test/env_test.go"}
	dir, err := p.CreateFor("env", frame)
	require.NoError(t, err)
	assert.Equal(t, "/project/build", filepath.Dir(dir))
	assertEmptyDir(t, fs, dir)
}

func TestCreateFor_CustomSuffix(t *testing.T) {
	fs := newMemFs(t, "/project/out/tests", "/tmp-default")
	p := New(WithFs(fs), WithTempDir("/tmp-default"), WithBuildOutputSuffix("/out/tests/"))

	dir, err := p.CreateFor("env", &caller.Frame{File: "/project/out/tests/a_test.go"})
	require.NoError(t, err)
	assert.Equal(t, "/project/out", filepath.Dir(dir))
}

func TestCreateFor_FallsBackOutsideBuildTree(t *testing.T) {
	fs := newMemFs(t, "/src/pkg", "/tmp-default")
	p := New(WithFs(fs), WithTempDir("/tmp-default"))

	for _, frame := range []*caller.Frame{nil, {File: "/src/pkg/pkg_test.go"}} {
		dir, err := p.CreateFor("env", frame)
		require.NoError(t, err)
		assert.Equal(t, "/tmp-default", filepath.Dir(dir))
	}
}

func TestCreateFor_FallsBackWhenBuildTreeRaceLost(t *testing.T) {
	fs := &racingFs{Fs: newMemFs(t, "/project/build/test", "/tmp-default"), mkdirFailures: 1}
	p := New(WithFs(fs), WithTempDir("/tmp-default"))

	dir, err := p.CreateFor("env", &caller.Frame{File: "/project/build/test/env_test.go"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp-default", filepath.Dir(dir))
	assert.Equal(t, 2, fs.mkdirCalls)
}

func TestCreateTemporaryDirectory_NoExternalCaller(t *testing.T) {
	// every frame belongs to this package or to the test driver
	p := New(WithFs(newMemFs(t, "/tmp-default")), WithTempDir("/tmp-default"))

	_, err := p.CreateTemporaryDirectory("orphan")
	if !errors.Is(err, caller.ErrNoCaller) {
		t.Errorf("CreateTemporaryDirectory() error = %v, want ErrNoCaller", err)
	}
}

func TestRelease_NestedTree(t *testing.T) {
	p := New()
	dir, err := p.Create("release", "", t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b", "c"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0o755))
	for _, file := range []string{"top.txt", "a/one.txt", "a/b/two.txt", "a/b/c/three.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(file), 0o644))
	}
	require.NoError(t, os.Symlink(filepath.Join(dir, "a"), filepath.Join(dir, "link")))

	if !p.Release(dir) {
		t.Fatal("Release() = false, want true")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("sandbox still exists after Release(): %v", err)
	}

	if p.Release(dir) {
		t.Error("second Release() = true, want false for an already removed directory")
	}
}

func TestRelease_EmptyPathIsNoop(t *testing.T) {
	if !New().Release("") {
		t.Error("Release(\"\") = false, want true")
	}
}

// failingRemoveFs refuses to remove one path.
type failingRemoveFs struct {
	afero.Fs
	refuse string
}

func (f *failingRemoveFs) Remove(name string) error {
	if name == f.refuse {
		return &os.PathError{Op: "remove", Path: name, Err: os.ErrPermission}
	}
	return f.Fs.Remove(name)
}

func TestRelease_StopsAtFirstFailure(t *testing.T) {
	mem := newMemFs(t, "/box/a_locked", "/box/z_dir")
	require.NoError(t, afero.WriteFile(mem, "/box/a_locked/stuck", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(mem, "/box/z_dir/kept.txt", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(mem, "/box/z_file", []byte("x"), 0o644))

	fs := &failingRemoveFs{Fs: mem, refuse: "/box/a_locked/stuck"}
	p := New(WithFs(fs))

	if p.Release("/box") {
		t.Fatal("Release() = true, want false")
	}
	// later siblings are never touched once an earlier entry fails
	for _, path := range []string{"/box", "/box/a_locked/stuck", "/box/z_dir/kept.txt", "/box/z_file"} {
		exists, err := afero.Exists(mem, path)
		require.NoError(t, err)
		assert.True(t, exists, "%s should survive a failed release", path)
	}
}

func TestRelease_DescendsBeforeLaterSiblings(t *testing.T) {
	mem := newMemFs(t, "/box/b_dir/inner")
	require.NoError(t, afero.WriteFile(mem, "/box/a_file", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(mem, "/box/b_dir/inner/deep", []byte("x"), 0o644))
	require.NoError(t, afero.WriteFile(mem, "/box/c_file", []byte("x"), 0o644))

	rec := &recordingFs{Fs: mem}
	if !New(WithFs(rec)).Release("/box") {
		t.Fatal("Release() = false, want true")
	}
	assert.Equal(t, []string{
		"/box/a_file",
		"/box/b_dir/inner/deep",
		"/box/b_dir/inner",
		"/box/b_dir",
		"/box/c_file",
		"/box",
	}, rec.removed)
}

// recordingFs records removals in order.
type recordingFs struct {
	afero.Fs
	removed []string
}

func (f *recordingFs) Remove(name string) error {
	f.removed = append(f.removed, filepath.ToSlash(name))
	return f.Fs.Remove(name)
}
