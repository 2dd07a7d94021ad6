package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/milkyapps/llvmgr/internal/buildlog"
	"github.com/milkyapps/llvmgr/internal/cache"
	"github.com/milkyapps/llvmgr/internal/install"
	"github.com/milkyapps/llvmgr/internal/pipeline"
)

// Exit codes
const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitInvalidArgs    = 2
	ExitDownloadFailed = 3
	ExitExtractFailed  = 4
	ExitBuildFailed    = 5
	ExitConfigError    = 6
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(stdout, stderr)
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err == nil {
		return ExitSuccess
	}
	if ctx.Err() != nil {
		fmt.Fprintln(stderr, "[llvmgr] Interrupted")
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitCode(err)
}

// usageError marks bad command-line input.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// configError marks a configuration that failed to load or validate.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var (
		usage *usageError
		cfg   *configError
		stage *pipeline.StageError
		exit  *buildlog.ExitError
	)
	switch {
	case errors.As(err, &usage),
		errors.Is(err, install.ErrUnknownRecipe),
		errors.Is(err, cache.ErrUnknownShell),
		strings.HasPrefix(err.Error(), "unknown command"):
		return ExitInvalidArgs
	case errors.As(err, &cfg):
		return ExitConfigError
	case errors.As(err, &stage):
		if stage.Stage == pipeline.StageDownload {
			return ExitDownloadFailed
		}
		return ExitExtractFailed
	case errors.As(err, &exit),
		errors.Is(err, buildlog.ErrCMakeNotFound),
		errors.Is(err, buildlog.ErrNoGenerator):
		return ExitBuildFailed
	default:
		return ExitGeneralError
	}
}
