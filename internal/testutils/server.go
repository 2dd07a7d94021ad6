package testutils

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
)

// TestFile is a file served by a FileServer.
type TestFile struct {
	Name string
	Data []byte

	// OmitLength streams the body chunked, without a Content-Length header.
	OmitLength bool

	// Status overrides the response status when non-zero.
	Status int
}

// FileServer serves TestFiles by path and counts the requests it receives.
type FileServer struct {
	*httptest.Server
	hits atomic.Int64
}

// Hits returns how many requests reached the server.
func (s *FileServer) Hits() int64 {
	return s.hits.Load()
}

// FileURL returns the absolute URL of name.
func (s *FileServer) FileURL(name string) string {
	return s.Server.URL + "/" + name
}

// StartFileServer starts an HTTP server for files. It is closed on test cleanup.
func StartFileServer(t *testing.T, files ...TestFile) *FileServer {
	t.Helper()

	fileMap := make(map[string]TestFile)
	for _, f := range files {
		fileMap["/"+f.Name] = f
	}

	s := &FileServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)

		f, ok := fileMap[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if f.Status != 0 {
			w.WriteHeader(f.Status)
			return
		}

		if f.OmitLength {
			// Flushing before the body forces chunked transfer encoding.
			w.WriteHeader(http.StatusOK)
			w.(http.Flusher).Flush()
			w.Write(f.Data)
			return
		}

		w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
		w.Write(f.Data)
	}))
	t.Cleanup(s.Server.Close)
	return s
}
