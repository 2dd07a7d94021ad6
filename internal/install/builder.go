package install

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/milkyapps/llvmgr/internal/buildlog"
	"github.com/milkyapps/llvmgr/internal/progress"
)

// Builder runs the build tool for a recipe.
type Builder interface {
	// Generator returns the build tool's default generator name.
	Generator(ctx context.Context) (string, error)

	// Run executes the build tool in dir, reporting its output through rep.
	Run(ctx context.Context, rep progress.Reporter, dir string, args ...string) error
}

// CMake is the Builder backed by the cmake executable.
type CMake struct {
	Exe    string
	Logger *zap.Logger
}

// FindCMake locates cmake. The error wraps buildlog.ErrCMakeNotFound and
// carries an install hint for the platform.
func FindCMake(logger *zap.Logger) (*CMake, error) {
	exe, err := buildlog.LookCMake()
	if err != nil {
		return nil, fmt.Errorf("%w\n%s", err, buildlog.InstallHint())
	}
	return &CMake{Exe: exe, Logger: logger}, nil
}

func (c *CMake) Generator(ctx context.Context) (string, error) {
	return buildlog.DefaultGenerator(ctx, c.Exe)
}

func (c *CMake) Run(ctx context.Context, rep progress.Reporter, dir string, args ...string) error {
	r := &buildlog.Runner{Exe: c.Exe, Dir: dir, Logger: c.Logger}
	return r.Run(ctx, rep, args...)
}
