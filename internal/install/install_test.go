package install

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milkyapps/llvmgr/internal/cache"
	"github.com/milkyapps/llvmgr/internal/progress"
	"github.com/milkyapps/llvmgr/internal/testutils"
)

type buildCall struct {
	dir  string
	args []string
}

// fakeBuilder records invocations and lays down build outputs on --build.
type fakeBuilder struct {
	generator string
	failOn    string

	mu    sync.Mutex
	calls []buildCall
}

func (f *fakeBuilder) Generator(context.Context) (string, error) {
	return f.generator, nil
}

func (f *fakeBuilder) Run(_ context.Context, rep progress.Reporter, dir string, args ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, buildCall{dir: dir, args: args})
	f.mu.Unlock()

	_ = rep.SetSubtaskWithPercentage("[1/1] "+strings.Join(args, " "), 1)

	if f.failOn != "" && args[0] == f.failOn {
		return errors.New("exit status 1")
	}
	if args[0] != "--build" {
		return nil
	}

	out := dir
	if isMultiConfig(f.generator) {
		out = filepath.Join(dir, "Release")
	}
	for _, p := range []string{"bin/clang", "lib/libLLVM.a", "include/llvm/Config.h"} {
		full := filepath.Join(out, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(full, []byte(p), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBuilder) argLists() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, c := range f.calls {
		out = append(out, c.args)
	}
	return out
}

func newEnv(t *testing.T, baseURL string, b Builder) *Env {
	t.Helper()

	c, err := cache.Open(t.TempDir())
	require.NoError(t, err)

	ansi := false
	reg := progress.New(progress.Options{Output: &bytes.Buffer{}, Width: 120, TickInterval: time.Hour, ANSI: &ansi})
	t.Cleanup(func() { reg.Close() })

	return &Env{Cache: c, Registry: reg, Builder: b, BaseURL: baseURL, Jobs: 4}
}

func TestLookup(t *testing.T) {
	r, err := Lookup("llvm", "17")
	require.NoError(t, err)
	assert.Equal(t, "17.0.6", r.Release)
	assert.Equal(t, "LLVM_SYS_170_PREFIX", r.EnvVar)

	r, err = Lookup("llvm", "18.1.2")
	require.NoError(t, err)
	assert.Equal(t, "18", r.Version)

	_, err = Lookup("llvm", "15")
	assert.ErrorIs(t, err, ErrUnknownRecipe)
	_, err = Lookup("gcc", "13")
	assert.ErrorIs(t, err, ErrUnknownRecipe)
}

func TestRecipesSorted(t *testing.T) {
	var versions []string
	for _, r := range Recipes() {
		versions = append(versions, r.Name+" "+r.Version)
	}
	assert.Equal(t, []string{"llvm 16", "llvm 17", "llvm 18"}, versions)
}

func monorepoServer(t *testing.T, release string) *testutils.FileServer {
	t.Helper()
	tarball := testutils.Gzip(t, testutils.BuildTar(t, []testutils.TarEntry{
		{Name: "llvm-project-llvmorg-" + release + "/", Dir: true},
		{Name: "llvm-project-llvmorg-" + release + "/llvm/CMakeLists.txt", Body: "project(LLVM)"},
	}))
	return testutils.StartFileServer(t, testutils.TestFile{
		Name: "archive/refs/tags/llvmorg-" + release + ".tar.gz",
		Data: tarball,
	})
}

func TestInstallMonorepoNinja(t *testing.T) {
	server := monorepoServer(t, "17.0.6")
	b := &fakeBuilder{generator: "Unix Makefiles"}
	env := newEnv(t, server.URL, b)

	require.NoError(t, Run(context.Background(), env, "llvm", "17"))

	root := env.Cache.Path("17.0.6")
	assert.FileExists(t, filepath.Join(root, "src", "llvm", "CMakeLists.txt"))
	assert.NoFileExists(t, env.Cache.Path("llvmorg-17.0.6.tar.gz"), "archive should be removed")

	assert.Equal(t, [][]string{
		{"../llvm", "-DCMAKE_BUILD_TYPE=Release", "-G", "Ninja", "-DLLVM_ENABLE_PROJECTS=lld;clang"},
		{"--build", "."},
		{"-DCMAKE_INSTALL_PREFIX=" + root, "-P", "cmake_install.cmake"},
	}, b.argLists())
	for _, c := range b.calls {
		assert.Equal(t, filepath.Join(root, "src", "build"), c.dir)
	}

	shell, err := env.Cache.ReadShell()
	require.NoError(t, err)
	assert.Equal(t, root, shell.EnvVars["LLVM_SYS_170_PREFIX"])
}

func TestInstallMonorepoVisualStudio(t *testing.T) {
	server := monorepoServer(t, "18.1.2")
	b := &fakeBuilder{generator: "Visual Studio 17 2022"}
	env := newEnv(t, server.URL, b)

	require.NoError(t, Run(context.Background(), env, "llvm", "18"))

	root := env.Cache.Path("18.1.2")
	assert.Equal(t, [][]string{
		{"../llvm", "-DLLVM_ENABLE_PROJECTS=lld;clang"},
		{"--build", ".", "--config", "Release", "-j", "4"},
		{"-DCMAKE_INSTALL_PREFIX=" + root, "-P", "cmake_install.cmake"},
	}, b.argLists())

	shell, err := env.Cache.ReadShell()
	require.NoError(t, err)
	assert.Equal(t, root, shell.EnvVars["LLVM_SYS_180_PREFIX"])
}

func TestInstallMonorepoBuildFailure(t *testing.T) {
	server := monorepoServer(t, "17.0.6")
	b := &fakeBuilder{generator: "Ninja", failOn: "--build"}
	env := newEnv(t, server.URL, b)

	err := Run(context.Background(), env, "llvm", "17")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build")
	assert.Len(t, b.argLists(), 2, "install step must not run after a failed build")

	shell, err := env.Cache.ReadShell()
	require.NoError(t, err)
	assert.NotContains(t, shell.EnvVars, "LLVM_SYS_170_PREFIX")
}

func TestInstallMonorepoDownloadFailure(t *testing.T) {
	server := testutils.StartFileServer(t)
	b := &fakeBuilder{generator: "Ninja"}
	env := newEnv(t, server.URL, b)

	err := Run(context.Background(), env, "llvm", "17")
	require.Error(t, err)
	assert.Empty(t, b.argLists())
}

func splitServer(t *testing.T) *testutils.FileServer {
	t.Helper()
	var files []testutils.TestFile
	for _, part := range []string{"llvm", "cmake", "third-party"} {
		top := part + "-16.0.1.src"
		entries := []testutils.TarEntry{
			{Name: top + "/" + part + ".txt", Body: part},
		}
		if part == "llvm" {
			entries = append(entries, testutils.TarEntry{Name: top + "/include/llvm/Src.h", Body: "src"})
		}
		files = append(files, testutils.TestFile{
			Name: "releases/download/llvmorg-16.0.1/" + part + "-16.0.1.src.tar.xz",
			Data: testutils.XZ(t, testutils.BuildTar(t, entries)),
		})
	}
	return testutils.StartFileServer(t, files...)
}

func TestInstallSplitSourcesNinja(t *testing.T) {
	server := splitServer(t)
	b := &fakeBuilder{generator: "Ninja"}
	env := newEnv(t, server.URL, b)

	require.NoError(t, Run(context.Background(), env, "llvm", "16"))

	root := env.Cache.Path("16.0.1")
	assert.Equal(t, [][]string{
		{"..", "-DCMAKE_BUILD_TYPE=Release", "-G", "Ninja", "-DLLVM_ENABLE_PROJECTS=lld;clang"},
		{"--build", "."},
		{"-DCMAKE_INSTALL_PREFIX=" + root, "-P", "cmake_install.cmake"},
	}, b.argLists())
	assert.Equal(t, filepath.Join(root, "llvm", "build"), b.calls[0].dir)

	assert.FileExists(t, filepath.Join(root, "bin", "clang"))
	assert.FileExists(t, filepath.Join(root, "lib", "libLLVM.a"))
	assert.FileExists(t, filepath.Join(root, "include", "llvm", "Config.h"))
	for _, part := range []string{"llvm", "cmake", "third-party"} {
		assert.NoDirExists(t, filepath.Join(root, part))
		assert.NoFileExists(t, env.Cache.Path(part+"-16.0.1.src.tar.xz"))
	}

	shell, err := env.Cache.ReadShell()
	require.NoError(t, err)
	assert.Equal(t, root, shell.EnvVars["LLVM_SYS_160_PREFIX"])
}

func TestInstallSplitSourcesVisualStudio(t *testing.T) {
	server := splitServer(t)
	b := &fakeBuilder{generator: "Visual Studio 17 2022"}
	env := newEnv(t, server.URL, b)

	require.NoError(t, Run(context.Background(), env, "llvm", "16"))

	root := env.Cache.Path("16.0.1")
	assert.Equal(t, [][]string{
		{"..", "-DLLVM_ENABLE_PROJECTS=lld;clang"},
		{"--build", ".", "--config", "Release", "-j", "4"},
	}, b.argLists())

	assert.FileExists(t, filepath.Join(root, "bin", "clang"))
	assert.FileExists(t, filepath.Join(root, "lib", "libLLVM.a"))
	assert.FileExists(t, filepath.Join(root, "include", "llvm", "Src.h"), "headers come from the source tree")
}

func TestRunUnknownRecipe(t *testing.T) {
	env := newEnv(t, "http://127.0.0.1:1", &fakeBuilder{})
	err := Run(context.Background(), env, "llvm", "3")
	assert.ErrorIs(t, err, ErrUnknownRecipe)
}
