package pipeline

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/milkyapps/llvmgr/internal/archive"
	"github.com/milkyapps/llvmgr/internal/downloader"
	"github.com/milkyapps/llvmgr/internal/progress"
)

// Stage names one step of a retrieval.
type Stage string

const (
	StageDownload   Stage = "download"
	StageDecompress Stage = "decompress"
	StageExtract    Stage = "extract"
)

// StageError reports the step at which a retrieval failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Options configures a retrieval.
type Options struct {
	// CacheRoot is where archives are downloaded to.
	CacheRoot string

	// Download configures the downloader.
	Download downloader.Options

	// BufferSize is the decompressor read size.
	// Default: 16 KiB
	BufferSize int

	// RemoveArchive deletes the downloaded archive after a successful
	// extraction.
	RemoveArchive bool

	// Logger receives stage transitions. Default: no-op.
	Logger *zap.Logger
}

// Result describes a completed retrieval.
type Result struct {
	// Archive is the cached archive path. It no longer exists when
	// Options.RemoveArchive was set.
	Archive string

	// Cached is true when the archive was already in the cache.
	Cached bool

	// FromMirror is true when the archive came from the mirror bucket.
	FromMirror bool
}

// Retrieve downloads url, decompresses it and extracts it into dest, all
// against rep. The first failing stage aborts the rest; a partly written
// dest is left as is.
func Retrieve(ctx context.Context, rep progress.Reporter, url, dest string, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Download.Logger == nil {
		opts.Download.Logger = log
	}
	log = log.With(zap.String("url", url), zap.String("dest", dest))

	dl, err := downloader.Download(ctx, rep, url, opts.CacheRoot, opts.Download)
	if err != nil {
		return nil, &StageError{Stage: StageDownload, Err: err}
	}
	log.Debug("archive ready", zap.String("path", dl.Path), zap.Bool("cached", dl.Cached))

	data, err := archive.DecompressFile(rep, dl.Path, opts.BufferSize)
	if err != nil {
		return nil, &StageError{Stage: StageDecompress, Err: err}
	}
	log.Debug("archive decompressed", zap.Int("bytes", len(data)))

	if err := archive.Extract(rep, data, dest); err != nil {
		return nil, &StageError{Stage: StageExtract, Err: err}
	}
	log.Info("archive extracted")

	res := &Result{Archive: dl.Path, Cached: dl.Cached, FromMirror: dl.FromMirror}
	if opts.RemoveArchive {
		_ = rep.SetSubtask("cleaning downloaded files")
		if err := os.Remove(dl.Path); err != nil {
			log.Warn("remove archive", zap.Error(err))
		}
	}
	return res, nil
}

// Item is one archive for RetrieveAll.
type Item struct {
	// Name labels the task row. Default: the archive file name.
	Name string
	URL  string
	Dest string
}

// RetrieveAll creates one task per item up front, then retrieves the items
// in order, finishing each task as its item completes. It stops at the first
// failure.
func RetrieveAll(ctx context.Context, reg *progress.Registry, items []Item, opts Options) ([]*Result, error) {
	handles := make([]*progress.Handle, len(items))
	for i, it := range items {
		name := it.Name
		if name == "" {
			var err error
			if name, err = downloader.FileName(it.URL); err != nil {
				name = it.URL
			}
		}
		h, err := reg.NewTask(name)
		if err != nil {
			return nil, fmt.Errorf("create task %s: %w", name, err)
		}
		handles[i] = h
	}

	results := make([]*Result, 0, len(items))
	for i, it := range items {
		res, err := Retrieve(ctx, handles[i], it.URL, it.Dest, opts)
		if err != nil {
			return results, fmt.Errorf("processing %s: %w", it.URL, err)
		}
		_ = handles[i].Finish()
		results = append(results, res)
	}
	return results, nil
}
