package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	llvmhttp "github.com/milkyapps/llvmgr/internal/http"
	"github.com/milkyapps/llvmgr/internal/progress"
)

var (
	// ErrInvalidURL is returned when the URL cannot be parsed or has no
	// path segment to name the cached file after.
	ErrInvalidURL = errors.New("downloader: invalid url")

	// ErrContentLength is returned when the server does not declare the
	// body size.
	ErrContentLength = errors.New("downloader: missing content length")

	// ErrHTTPStatus matches every non-2xx response.
	ErrHTTPStatus = llvmhttp.ErrStatus

	// ErrCache wraps filesystem failures inside the cache directory.
	ErrCache = errors.New("downloader: cache error")
)

// StatusError carries the status code of a failed request.
type StatusError = llvmhttp.StatusError

// DefaultChunkSize is the read size used when streaming a body to disk.
const DefaultChunkSize = 16 * 1024

// Options configures the downloader.
type Options struct {
	// Client performs the request. Default: a client built from HTTPOptions.
	Client *llvmhttp.Client

	// HTTPOptions configures the default client.
	HTTPOptions llvmhttp.Options

	// Mirror is an optional bucket consulted before the network and
	// populated after a successful download.
	Mirror *blob.Bucket

	// ChunkSize is the read size; progress is reported after each read.
	// Default: 16 KiB
	ChunkSize int

	// Logger receives mirror failures. Default: no-op.
	Logger *zap.Logger
}

// Result describes a file in the cache.
type Result struct {
	// Path is the local file.
	Path string

	// Size is the file length in bytes.
	Size int64

	// Cached is true when the file already existed and nothing was fetched.
	Cached bool

	// FromMirror is true when the file was copied from the mirror bucket.
	FromMirror bool
}

// FileName returns the cache key for rawURL: its last non-empty path segment.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	p := u.EscapedPath()
	for p != "" && p != "/" {
		name := path.Base(p)
		if name != "" && name != "/" && name != "." {
			if unescaped, err := url.PathUnescape(name); err == nil {
				name = unescaped
			}
			if name == ".." || filepath.Base(name) != name {
				return "", fmt.Errorf("%w: unusable file name %q", ErrInvalidURL, name)
			}
			return name, nil
		}
		p = path.Dir(p)
	}
	return "", fmt.Errorf("%w: %q has no path segments", ErrInvalidURL, rawURL)
}

// Download fetches rawURL into cacheRoot, named after the URL's last path
// segment. An existing file with that name is returned as is.
func Download(ctx context.Context, rep progress.Reporter, rawURL, cacheRoot string, opts Options) (*Result, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Client == nil {
		opts.Client = llvmhttp.NewClient(withHTTPDefaults(opts.HTTPOptions))
	}
	log := opts.Logger.With(zap.String("url", rawURL))

	_ = rep.SetSubtask("downloading")

	name, err := FileName(rawURL)
	if err != nil {
		return nil, err
	}
	target := filepath.Join(cacheRoot, name)

	if fi, err := os.Stat(target); err == nil {
		log.Debug("cache hit", zap.String("path", target))
		return &Result{Path: target, Size: fi.Size(), Cached: true}, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrCache, target, err)
	}

	if opts.Mirror != nil {
		res, err := fetchMirror(ctx, rep, opts.Mirror, name, target, opts.ChunkSize)
		switch {
		case err == nil:
			log.Info("fetched from mirror", zap.String("path", target))
			return res, nil
		case gcerrors.Code(err) == gcerrors.NotFound:
			log.Debug("mirror miss", zap.String("key", name))
		case errors.Is(err, ErrCache):
			return nil, err
		default:
			log.Warn("mirror read failed", zap.Error(err))
		}
	}

	resp, err := opts.Client.Get(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.ContentLength < 0 {
		return nil, fmt.Errorf("%w: %s", ErrContentLength, rawURL)
	}

	size, err := writeFile(rep, resp.Body, resp.ContentLength, target, opts.ChunkSize)
	if err != nil {
		return nil, err
	}
	log.Info("downloaded", zap.String("path", target), zap.Int64("bytes", size))

	if opts.Mirror != nil {
		if err := upload(ctx, opts.Mirror, name, target); err != nil {
			log.Warn("mirror upload failed", zap.Error(err))
		}
	}

	return &Result{Path: target, Size: size}, nil
}

// withHTTPDefaults fills the zero fields of o from llvmhttp.DefaultOptions.
// RetryAttempts stays as given; zero means no retries.
func withHTTPDefaults(o llvmhttp.Options) llvmhttp.Options {
	def := llvmhttp.DefaultOptions()
	if o.MaxIdleConnsPerHost <= 0 {
		o.MaxIdleConnsPerHost = def.MaxIdleConnsPerHost
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = def.RetryBackoff
	}
	if o.RetryMaxBackoff <= 0 {
		o.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if o.UserAgent == "" {
		o.UserAgent = def.UserAgent
	}
	return o
}

// fetchMirror copies key from bucket into target. A missing key yields an
// error whose gcerrors code is NotFound.
func fetchMirror(ctx context.Context, rep progress.Reporter, bucket *blob.Bucket, key, target string, chunk int) (*Result, error) {
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	size, err := writeFile(rep, r, r.Size(), target, chunk)
	if err != nil {
		return nil, err
	}
	return &Result{Path: target, Size: size, FromMirror: true}, nil
}

func upload(ctx context.Context, bucket *blob.Bucket, key, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// writeFile streams src into a temp file next to target and renames it into
// place once the body is complete. The temp file is removed on failure.
func writeFile(rep progress.Reporter, src io.Reader, total int64, target string, chunk int) (int64, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCache, err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(target)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCache, err)
	}
	tmp := f.Name()
	ok := false
	defer func() {
		if !ok {
			f.Close()
			os.Remove(tmp)
		}
	}()

	n, err := copyWithProgress(rep, f, src, total, make([]byte, chunk))
	if err != nil {
		return n, err
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("%w: %w", ErrCache, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return n, fmt.Errorf("%w: %w", ErrCache, err)
	}
	ok = true
	return n, nil
}

// copyWithProgress copies src to dst one buffer at a time, reporting
// written/total after every chunk. The fraction is not clamped.
func copyWithProgress(rep progress.Reporter, dst io.Writer, src io.Reader, total int64, buf []byte) (int64, error) {
	var written int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, fmt.Errorf("%w: write: %w", ErrCache, werr)
			}
			if total > 0 {
				_ = rep.SetPercentage(float64(written) / float64(total))
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, fmt.Errorf("read body: %w", rerr)
		}
	}
}
