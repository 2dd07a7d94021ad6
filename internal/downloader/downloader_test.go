package downloader

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/memblob"

	llvmhttp "github.com/milkyapps/llvmgr/internal/http"
	"github.com/milkyapps/llvmgr/internal/testutils"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/llvm/llvm-project/archive/refs/tags/llvmorg-17.0.6.tar.gz", "llvmorg-17.0.6.tar.gz"},
		{"https://example.com/a/b/", "b"},
		{"https://example.com/file%20name.tar.xz", "file name.tar.xz"},
		{"https://example.com/x.tar.gz?token=abc", "x.tar.gz"},
	}

	for _, tt := range tests {
		got, err := FileName(tt.url)
		if err != nil {
			t.Errorf("FileName(%q): %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestFileNameInvalid(t *testing.T) {
	urls := []string{
		"https://example.com",
		"https://example.com/",
		"://missing-scheme",
		"https://example.com/%2e%2e",
	}

	for _, u := range urls {
		if _, err := FileName(u); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("FileName(%q): expected ErrInvalidURL, got %v", u, err)
		}
	}
}

func TestDownloadBasic(t *testing.T) {
	data := testutils.GenerateTestData(100 * 1024)
	server := testutils.StartFileServer(t, testutils.TestFile{Name: "src.tar.xz", Data: data})
	cacheRoot := filepath.Join(t.TempDir(), "cache")

	rec := &testutils.Recorder{}
	res, err := Download(context.Background(), rec, server.FileURL("src.tar.xz"), cacheRoot, Options{})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}

	if res.Cached || res.FromMirror {
		t.Errorf("expected a network fetch, got %+v", res)
	}
	if res.Path != filepath.Join(cacheRoot, "src.tar.xz") {
		t.Errorf("unexpected path %s", res.Path)
	}
	if res.Size != int64(len(data)) {
		t.Errorf("expected size %d, got %d", len(data), res.Size)
	}

	got, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("downloaded content mismatch")
	}

	if subs := rec.Subtasks(); len(subs) == 0 || subs[0] != "downloading" {
		t.Errorf("expected subtask 'downloading', got %v", subs)
	}

	pcts := rec.Percentages()
	if len(pcts) == 0 {
		t.Fatal("expected percentage reports")
	}
	for i := 1; i < len(pcts); i++ {
		if pcts[i] < pcts[i-1] {
			t.Errorf("percentage went backwards: %v -> %v", pcts[i-1], pcts[i])
		}
	}
	if last := pcts[len(pcts)-1]; last != 1 {
		t.Errorf("expected final percentage 1, got %v", last)
	}

	entries, _ := os.ReadDir(cacheRoot)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".part") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestDownloadCacheHit(t *testing.T) {
	server := testutils.StartFileServer(t, testutils.TestFile{Name: "src.tar.gz", Data: []byte("remote")})
	cacheRoot := t.TempDir()

	cached := filepath.Join(cacheRoot, "src.tar.gz")
	if err := os.WriteFile(cached, []byte("stale but trusted"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := Download(context.Background(), &testutils.Recorder{}, server.FileURL("src.tar.gz"), cacheRoot, Options{})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !res.Cached {
		t.Error("expected Cached to be true")
	}
	if res.Path != cached {
		t.Errorf("expected %s, got %s", cached, res.Path)
	}
	if server.Hits() != 0 {
		t.Errorf("expected no requests, got %d", server.Hits())
	}
}

func TestDownloadMissingContentLength(t *testing.T) {
	server := testutils.StartFileServer(t, testutils.TestFile{Name: "src.tar.gz", Data: []byte("chunked body"), OmitLength: true})
	cacheRoot := filepath.Join(t.TempDir(), "cache")

	_, err := Download(context.Background(), &testutils.Recorder{}, server.FileURL("src.tar.gz"), cacheRoot, Options{})
	if !errors.Is(err, ErrContentLength) {
		t.Fatalf("expected ErrContentLength, got %v", err)
	}

	if _, err := os.Stat(cacheRoot); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected cache root to be untouched, stat returned %v", err)
	}
}

func TestDownloadHTTPStatus(t *testing.T) {
	server := testutils.StartFileServer(t)
	cacheRoot := t.TempDir()

	_, err := Download(context.Background(), &testutils.Recorder{}, server.FileURL("missing.tar.gz"), cacheRoot, Options{})
	if !errors.Is(err, ErrHTTPStatus) {
		t.Fatalf("expected ErrHTTPStatus, got %v", err)
	}

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if se.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", se.Code)
	}

	if entries, _ := os.ReadDir(cacheRoot); len(entries) != 0 {
		t.Errorf("expected empty cache, found %d entries", len(entries))
	}
}

func TestDownloadInvalidURL(t *testing.T) {
	_, err := Download(context.Background(), &testutils.Recorder{}, "https://example.com/", t.TempDir(), Options{})
	if !errors.Is(err, ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL, got %v", err)
	}
}

func openMemBucket(t *testing.T) *blob.Bucket {
	t.Helper()
	bucket, err := blob.OpenBucket(context.Background(), "mem://")
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	t.Cleanup(func() { bucket.Close() })
	return bucket
}

func TestDownloadMirrorHit(t *testing.T) {
	ctx := context.Background()
	data := testutils.GenerateTestData(40 * 1024)
	bucket := openMemBucket(t)
	if err := bucket.WriteAll(ctx, "src.tar.xz", data, nil); err != nil {
		t.Fatalf("seed mirror: %v", err)
	}

	server := testutils.StartFileServer(t, testutils.TestFile{Name: "src.tar.xz", Data: []byte("origin")})
	rec := &testutils.Recorder{}

	res, err := Download(ctx, rec, server.FileURL("src.tar.xz"), t.TempDir(), Options{Mirror: bucket})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !res.FromMirror {
		t.Error("expected FromMirror to be true")
	}
	if server.Hits() != 0 {
		t.Errorf("expected origin to be skipped, got %d requests", server.Hits())
	}

	got, _ := os.ReadFile(res.Path)
	if !bytes.Equal(got, data) {
		t.Error("mirror content mismatch")
	}
	if last := rec.LastPercentage(); last != 1 {
		t.Errorf("expected final percentage 1, got %v", last)
	}
}

func TestDownloadPopulatesMirror(t *testing.T) {
	ctx := context.Background()
	data := testutils.GenerateTestData(8 * 1024)
	bucket := openMemBucket(t)
	server := testutils.StartFileServer(t, testutils.TestFile{Name: "src.tar.gz", Data: data})

	res, err := Download(ctx, &testutils.Recorder{}, server.FileURL("src.tar.gz"), t.TempDir(), Options{Mirror: bucket})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.FromMirror {
		t.Error("expected an origin fetch")
	}
	if server.Hits() != 1 {
		t.Errorf("expected 1 request, got %d", server.Hits())
	}

	got, err := bucket.ReadAll(ctx, "src.tar.gz")
	if err != nil {
		t.Fatalf("read mirror: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("mirror was not populated with the downloaded bytes")
	}
}

func TestCopyWithProgressIsUnclamped(t *testing.T) {
	rec := &testutils.Recorder{}
	src := bytes.NewReader(make([]byte, 30))

	var dst bytes.Buffer
	n, err := copyWithProgress(rec, &dst, src, 20, make([]byte, 10))
	if err != nil {
		t.Fatalf("copyWithProgress: %v", err)
	}
	if n != 30 {
		t.Errorf("expected 30 bytes, got %d", n)
	}

	want := []float64{0.5, 1, 1.5}
	got := rec.Percentages()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("report %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestCopyWithProgressWriteError(t *testing.T) {
	_, err := copyWithProgress(&testutils.Recorder{}, errWriter{}, bytes.NewReader([]byte("x")), 1, make([]byte, 4))
	if !errors.Is(err, ErrCache) {
		t.Errorf("expected ErrCache, got %v", err)
	}
}

func TestWithHTTPDefaultsKeepsSetFields(t *testing.T) {
	got := withHTTPDefaults(llvmhttp.Options{RetryAttempts: 3, Timeout: 5 * time.Second})
	def := llvmhttp.DefaultOptions()

	if got.RetryAttempts != 3 {
		t.Errorf("RetryAttempts = %d, want 3", got.RetryAttempts)
	}
	if got.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", got.Timeout)
	}
	if got.MaxIdleConnsPerHost != def.MaxIdleConnsPerHost {
		t.Errorf("MaxIdleConnsPerHost = %d, want default %d", got.MaxIdleConnsPerHost, def.MaxIdleConnsPerHost)
	}
	if got.RetryBackoff != def.RetryBackoff || got.RetryMaxBackoff != def.RetryMaxBackoff {
		t.Errorf("backoff = %v/%v, want defaults", got.RetryBackoff, got.RetryMaxBackoff)
	}
	if got.UserAgent != def.UserAgent {
		t.Errorf("UserAgent = %q, want %q", got.UserAgent, def.UserAgent)
	}
}

func TestDownloadHonorsPartialHTTPOptions(t *testing.T) {
	data := testutils.GenerateTestData(4096)
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}))
	defer server.Close()

	opts := Options{HTTPOptions: llvmhttp.Options{
		RetryAttempts:   2,
		RetryBackoff:    time.Millisecond,
		RetryMaxBackoff: 5 * time.Millisecond,
	}}
	res, err := Download(context.Background(), &testutils.Recorder{}, server.URL+"/src.tar.gz", t.TempDir(), opts)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if res.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", res.Size, len(data))
	}
	if n := hits.Load(); n != 3 {
		t.Errorf("expected 3 requests, got %d", n)
	}
}
