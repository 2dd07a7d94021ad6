package install

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/milkyapps/llvmgr/internal/cache"
	"github.com/milkyapps/llvmgr/internal/pipeline"
	"github.com/milkyapps/llvmgr/internal/progress"
)

const enableProjects = "-DLLVM_ENABLE_PROJECTS=lld;clang"

// installSplitSources handles releases published as separate llvm, cmake and
// third-party tarballs. They are built in place and the outputs are moved
// into the prefix.
func installSplitSources(ctx context.Context, env *Env, r *Recipe) error {
	root := r.Prefix(env.Cache)
	if err := cache.RemoveDir(root); err != nil {
		return err
	}

	generator, err := env.Builder.Generator(ctx)
	if err != nil {
		return fmt.Errorf("detect generator: %w", err)
	}

	parts := []string{"llvm", "cmake", "third-party"}
	items := make([]pipeline.Item, len(parts))
	for i, part := range parts {
		dest, err := env.Cache.Dir(filepath.Join(r.Release, part))
		if err != nil {
			return err
		}
		items[i] = pipeline.Item{
			URL:  fmt.Sprintf("%s/releases/download/llvmorg-%s/%s-%s.src.tar.xz", env.BaseURL, r.Release, part, r.Release),
			Dest: dest,
		}
	}

	if _, err := pipeline.RetrieveAll(ctx, env.Registry, items, env.Pipeline); err != nil {
		return err
	}

	compile, err := env.Registry.NewTask("Compilation")
	if err != nil {
		return err
	}
	clean, err := env.Registry.NewTask("Cleaning")
	if err != nil {
		return err
	}
	shell, err := env.Registry.NewTask("Env Vars")
	if err != nil {
		return err
	}

	for _, part := range parts {
		name := fmt.Sprintf("%s-%s.src.tar.xz", part, r.Release)
		_ = clean.SetSubtask(name)
		removeFile(env.Logger, env.Cache.Path(name))
	}

	srcDir := env.Cache.Path(filepath.Join(r.Release, "llvm"))
	build, err := env.Cache.Dir(filepath.Join(r.Release, "llvm", "build"))
	if err != nil {
		return err
	}

	var outputs []string
	if isMultiConfig(generator) {
		if err := runSteps(ctx, env, compile, build,
			[]string{"..", enableProjects},
			[]string{"--build", ".", "--config", "Release", "-j", strconv.Itoa(env.Jobs)},
		); err != nil {
			return err
		}
		outputs = []string{
			filepath.Join(build, "Release", "bin"),
			filepath.Join(build, "Release", "lib"),
			filepath.Join(srcDir, "include"),
		}
	} else {
		if err := runSteps(ctx, env, compile, build,
			[]string{"..", "-DCMAKE_BUILD_TYPE=Release", "-G", "Ninja", enableProjects},
			[]string{"--build", "."},
			[]string{"-DCMAKE_INSTALL_PREFIX=" + root, "-P", "cmake_install.cmake"},
		); err != nil {
			return err
		}
		outputs = []string{
			filepath.Join(build, "bin"),
			filepath.Join(build, "lib"),
			filepath.Join(build, "include"),
		}
	}
	_ = compile.Finish()

	for _, out := range outputs {
		_ = clean.SetSubtask(filepath.Base(out))
		if err := cache.MoveDir(out, root); err != nil {
			return err
		}
	}
	for _, part := range parts {
		_ = clean.SetSubtask(part)
		if err := cache.RemoveDir(filepath.Join(root, part)); err != nil {
			return err
		}
	}
	_ = clean.Finish()

	return configureShell(env, shell, r, root)
}

// installMonorepo handles releases built from the single GitHub tag archive
// and installed with cmake_install.cmake.
func installMonorepo(ctx context.Context, env *Env, r *Recipe) error {
	root := r.Prefix(env.Cache)
	url := fmt.Sprintf("%s/archive/refs/tags/llvmorg-%s.tar.gz", env.BaseURL, r.Release)

	generator, err := env.Builder.Generator(ctx)
	if err != nil {
		return fmt.Errorf("detect generator: %w", err)
	}

	source, err := env.Registry.NewTask(fmt.Sprintf("llvmorg-%s.tar.gz", r.Release))
	if err != nil {
		return err
	}
	compile, err := env.Registry.NewTask("Compilation")
	if err != nil {
		return err
	}
	installTask, err := env.Registry.NewTask("Installation")
	if err != nil {
		return err
	}
	shell, err := env.Registry.NewTask("Configuring shell")
	if err != nil {
		return err
	}

	if err := cache.RemoveDir(root); err != nil {
		return err
	}
	srcDir, err := env.Cache.Dir(filepath.Join(r.Release, "src"))
	if err != nil {
		return err
	}

	opts := env.Pipeline
	opts.RemoveArchive = true
	if _, err := pipeline.Retrieve(ctx, source, url, srcDir, opts); err != nil {
		return fmt.Errorf("processing %s: %w", url, err)
	}
	_ = source.Finish()

	build, err := env.Cache.Dir(filepath.Join(r.Release, "src", "build"))
	if err != nil {
		return err
	}

	if isMultiConfig(generator) {
		err = runSteps(ctx, env, compile, build,
			[]string{"../llvm", enableProjects},
			[]string{"--build", ".", "--config", "Release", "-j", strconv.Itoa(env.Jobs)},
		)
	} else {
		err = runSteps(ctx, env, compile, build,
			[]string{"../llvm", "-DCMAKE_BUILD_TYPE=Release", "-G", "Ninja", enableProjects},
			[]string{"--build", "."},
		)
	}
	if err != nil {
		return err
	}
	_ = compile.Finish()

	if err := runSteps(ctx, env, installTask, build,
		[]string{"-DCMAKE_INSTALL_PREFIX=" + root, "-P", "cmake_install.cmake"},
	); err != nil {
		return err
	}
	_ = installTask.Finish()

	return configureShell(env, shell, r, root)
}

func runSteps(ctx context.Context, env *Env, rep progress.Reporter, dir string, steps ...[]string) error {
	for _, args := range steps {
		if err := env.Builder.Run(ctx, rep, dir, args...); err != nil {
			return fmt.Errorf("build: %w", err)
		}
	}
	return nil
}

func configureShell(env *Env, task *progress.Handle, r *Recipe, root string) error {
	_ = task.SetSubtask("configuring shell")
	if err := env.Cache.SetEnv(r.EnvVar, root); err != nil {
		return err
	}
	_ = task.Finish()
	return nil
}

func removeFile(log *zap.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("remove downloaded file", zap.String("path", path), zap.Error(err))
	}
}
