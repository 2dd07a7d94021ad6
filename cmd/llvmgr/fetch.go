package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/milkyapps/llvmgr/internal/downloader"
	"github.com/milkyapps/llvmgr/internal/pipeline"
	"github.com/milkyapps/llvmgr/internal/progress"
)

func newFetchCmd(a *app) *cobra.Command {
	var keep bool
	cmd := &cobra.Command{
		Use:   "fetch <url> <dest>",
		Short: "Download an archive and extract it into a directory",
		Long: `Download a .tar.xz, .tar.gz or .tar.zst archive into the cache, decompress
it and extract it into dest, dropping the archive's top-level directory.`,
		Example: "  llvmgr fetch https://github.com/llvm/llvm-project/releases/download/llvmorg-16.0.1/cmake-16.0.1.src.tar.xz ./cmake",
		Args:    exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fetch(cmd.Context(), args[0], args[1], keep)
		},
	}
	cmd.Flags().BoolVar(&keep, "keep", true, "keep the downloaded archive in the cache")
	return cmd
}

func (a *app) fetch(ctx context.Context, url, dest string, keep bool) error {
	name, err := downloader.FileName(url)
	if err != nil {
		return &usageError{err: err}
	}
	dest, err = filepath.Abs(dest)
	if err != nil {
		return &usageError{err: err}
	}

	mirror, err := a.openMirror(ctx)
	if err != nil {
		return err
	}
	opts := a.pipelineOptions(mirror)
	opts.RemoveArchive = !keep

	reg := a.newRegistry()
	defer closeRegistry(a.logger, reg)
	task, err := reg.NewTask(name)
	if err != nil {
		return err
	}
	res, err := pipeline.Retrieve(ctx, task, url, dest, opts)
	if err != nil {
		return err
	}
	_ = task.Finish()
	// Draw the final frame before printing below it.
	closeRegistry(a.logger, reg)

	switch {
	case res.Cached:
		a.status("Using cached %s", res.Archive)
	case res.FromMirror:
		a.status("Fetched %s from mirror", name)
	}
	if keep {
		if fi, err := os.Stat(res.Archive); err == nil {
			a.status("Archive %s (%s)", res.Archive, progress.FormatBytes(fi.Size()))
		}
	}
	a.status("Extracted %s to %s", name, dest)
	return nil
}

func dirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
