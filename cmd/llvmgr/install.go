package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/milkyapps/llvmgr/internal/cache"
	"github.com/milkyapps/llvmgr/internal/install"
	"github.com/milkyapps/llvmgr/internal/progress"
)

func newInstallCmd(a *app) *cobra.Command {
	var (
		jobs    int
		baseURL string
	)
	cmd := &cobra.Command{
		Use:   "install <name> <version>",
		Short: "Download, build and install a toolchain into the cache",
		Long: `Download the sources of a toolchain release, build them with cmake and
install the result into the cache. The prefix is recorded in the shell env
file; see 'llvmgr env'.

Run 'llvmgr list' for the available recipes.`,
		Example: "  llvmgr install llvm 17\n  llvmgr install llvm 18.1.2 -j 8",
		Args:    exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.install(cmd.Context(), args[0], args[1], jobs, baseURL)
		},
	}
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "parallel build jobs (default from config, else one per CPU)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "LLVM project URL to download releases from")
	return cmd
}

func (a *app) install(ctx context.Context, name, version string, jobs int, baseURL string) error {
	r, err := install.Lookup(name, version)
	if err != nil {
		return err
	}

	builder := a.builder
	if builder == nil {
		cm, err := install.FindCMake(a.logger)
		if err != nil {
			return err
		}
		a.logger.Debug("cmake found", zap.String("exe", cm.Exe))
		builder = cm
	}

	mirror, err := a.openMirror(ctx)
	if err != nil {
		return err
	}

	if jobs <= 0 {
		jobs = a.cfg.Jobs
	}

	a.status("Installing %s %s into %s", r.Name, r.Release, r.Prefix(a.cache))

	reg := a.newRegistry()
	defer closeRegistry(a.logger, reg)
	env := &install.Env{
		Cache:    a.cache,
		Registry: reg,
		Builder:  builder,
		Pipeline: a.pipelineOptions(mirror),
		BaseURL:  baseURL,
		Jobs:     jobs,
		Logger:   a.logger,
	}
	if err := r.Run(ctx, env); err != nil {
		return fmt.Errorf("install %s %s: %w", r.Name, r.Release, err)
	}
	// Draw the final frame before printing below it.
	closeRegistry(a.logger, reg)

	a.status("Installed %s %s; %s is set in %s", r.Name, r.Release, r.EnvVar, a.cache.Path(cache.ShellFile))
	a.status("Run 'eval \"$(llvmgr env)\"' to use it in this shell")
	return nil
}

// closeRegistry stops the broker, which draws the final frame. Repeated
// calls are no-ops.
func closeRegistry(log *zap.Logger, reg *progress.Registry) {
	if err := reg.Close(); err != nil && !errors.Is(err, progress.ErrBrokerGone) {
		log.Warn("close progress", zap.Error(err))
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available recipes",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, r := range install.Recipes() {
				state := "not installed"
				if dirExists(r.Prefix(a.cache)) {
					state = "installed"
				}
				fmt.Fprintf(a.stdout, "%s %s\t%s\t%s\n", r.Name, r.Version, r.Release, state)
			}
			return nil
		},
	}
}
