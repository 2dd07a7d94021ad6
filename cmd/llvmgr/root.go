package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/milkyapps/llvmgr/internal/cache"
	"github.com/milkyapps/llvmgr/internal/config"
	"github.com/milkyapps/llvmgr/internal/downloader"
	"github.com/milkyapps/llvmgr/internal/install"
	"github.com/milkyapps/llvmgr/internal/logging"
	"github.com/milkyapps/llvmgr/internal/pipeline"
	"github.com/milkyapps/llvmgr/internal/progress"
)

// logFile is the default log file name inside the cache root.
const logFile = "llvmgr.log"

// app holds the global flags and whatever setup built from them.
type app struct {
	stdout io.Writer
	stderr io.Writer

	cfgFile  string
	verbose  bool
	cacheDir string
	mirror   string

	cfg     config.Config
	cache   *cache.Cache
	logger  *zap.Logger
	closers []func() error

	// builder replaces cmake when set.
	builder install.Builder

	registries []*progress.Registry
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, logger: zap.NewNop()}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "llvmgr",
		Short: "Download, build and install LLVM toolchains",
		Long: `llvmgr downloads LLVM source releases, builds them with cmake and keeps
the result in a local cache. Use 'llvmgr env' to load the installed
toolchain into your shell.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "copy debug logs to stderr")
	flags.StringVar(&a.cacheDir, "cache-dir", "", "cache directory (default ~/.cache/llvmgr)")
	flags.StringVar(&a.mirror, "mirror", "", "bucket URL used as an archive mirror (s3://, gs://, file://, mem://)")

	root.AddCommand(
		newInstallCmd(a),
		newListCmd(a),
		newFetchCmd(a),
		newEnvCmd(a),
		newVersionCmd(a),
	)
	return root
}

// exactArgs is cobra.ExactArgs with the error marked as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return usageArgs(cobra.ExactArgs(n))
}

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func (a *app) setup() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return &configError{err: err}
	}
	cfg = cfg.Merge(config.Config{CacheDir: a.cacheDir, Mirror: a.mirror})
	if err := cfg.Validate(); err != nil {
		return &configError{err: err}
	}
	a.cfg = cfg

	c, err := cache.Open(cfg.CacheDir)
	if err != nil {
		return err
	}
	a.cache = c

	logger, closeLog, err := logging.New(logging.Options{
		Config:  cfg.Log,
		File:    c.Path(logFile),
		Verbose: a.verbose,
		Stderr:  a.stderr,
	})
	if err != nil {
		return &configError{err: err}
	}
	a.logger = logger
	a.closers = append(a.closers, closeLog)

	logger.Debug("configuration loaded",
		zap.String("cache_dir", c.Root()),
		zap.String("mirror", cfg.Mirror),
		zap.Int64("buffer_size", cfg.BufferSize),
	)
	return nil
}

// close releases resources in reverse order of acquisition. It is safe to
// call more than once.
func (a *app) close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// openMirror opens the configured mirror bucket, or returns nil when none is
// configured.
func (a *app) openMirror(ctx context.Context) (*blob.Bucket, error) {
	if a.cfg.Mirror == "" {
		return nil, nil
	}
	bucket, err := blob.OpenBucket(ctx, a.cfg.Mirror)
	if err != nil {
		return nil, &configError{err: fmt.Errorf("open mirror %s: %w", a.cfg.Mirror, err)}
	}
	a.closers = append(a.closers, bucket.Close)
	a.logger.Debug("mirror opened", zap.String("url", a.cfg.Mirror))
	return bucket, nil
}

func (a *app) pipelineOptions(mirror *blob.Bucket) pipeline.Options {
	return pipeline.Options{
		CacheRoot: a.cache.Root(),
		Download: downloader.Options{
			HTTPOptions: a.cfg.HTTPOptions(),
			Mirror:      mirror,
			Logger:      a.logger,
		},
		BufferSize: int(a.cfg.BufferSize),
		Logger:     a.logger,
	}
}

func (a *app) newRegistry() *progress.Registry {
	reg := progress.New(progress.Options{
		Output:       a.stderr,
		Width:        a.cfg.Progress.Width,
		TickInterval: a.cfg.Progress.TickInterval,
		Logger:       a.logger,
	})
	a.registries = append(a.registries, reg)
	return reg
}

// status prints a user-facing line to stderr.
func (a *app) status(format string, args ...any) {
	fmt.Fprintf(a.stderr, "[llvmgr] "+format+"\n", args...)
}
