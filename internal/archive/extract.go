package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/milkyapps/llvmgr/internal/progress"
)

// ErrUnsafePath is returned for entries that would land outside dest.
var ErrUnsafePath = errors.New("archive: entry escapes destination")

// ExtractError reports which step of extraction failed.
type ExtractError struct {
	Op   string
	Path string
	Err  error
}

func (e *ExtractError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("untar %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("untar %s: %v", e.Op, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Extract writes the regular files of the tar in data under dest, dropping
// the first component of every entry path. Directories, links and other
// special entries are skipped. After each entry rep receives i/total, so the
// last report is (N-1)/N.
func Extract(rep progress.Reporter, data []byte, dest string) error {
	_ = rep.SetSubtask("untar-ing")

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return &ExtractError{Op: "create dest", Path: dest, Err: err}
	}

	total, err := countEntries(data)
	if err != nil {
		return err
	}

	tr := tar.NewReader(bytes.NewReader(data))
	for i := 0; ; i++ {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &ExtractError{Op: "entry", Err: err}
		}

		if hdr.Typeflag == tar.TypeReg {
			if err := writeEntry(tr, hdr, dest); err != nil {
				return err
			}
		}

		_ = rep.SetPercentage(float64(i) / float64(total))
	}
}

// countEntries walks a fresh reader over data; tar readers are single-use.
func countEntries(data []byte) (int, error) {
	tr := tar.NewReader(bytes.NewReader(data))
	n := 0
	for {
		_, err := tr.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return 0, &ExtractError{Op: "entries", Err: err}
		}
		n++
	}
}

func writeEntry(r io.Reader, hdr *tar.Header, dest string) error {
	rel := stripFirst(hdr.Name)
	if rel == "" {
		return nil
	}

	target, err := within(dest, rel)
	if err != nil {
		return &ExtractError{Op: "path", Path: hdr.Name, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &ExtractError{Op: "create parent", Path: target, Err: err}
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode).Perm()|0o200)
	if err != nil {
		return &ExtractError{Op: "create", Path: target, Err: err}
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return &ExtractError{Op: "write", Path: target, Err: err}
	}
	if err := f.Close(); err != nil {
		return &ExtractError{Op: "close", Path: target, Err: err}
	}
	return nil
}

// stripFirst drops the archive's top-level wrapping directory. Empty and "."
// components are ignored; ".." is kept so within can reject it.
func stripFirst(name string) string {
	var parts []string
	for _, p := range strings.Split(name, "/") {
		if p != "" && p != "." {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[1:], "/")
}

// within joins rel under dest and rejects results outside dest.
func within(dest, rel string) (string, error) {
	if filepath.IsAbs(rel) || !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", ErrUnsafePath
	}
	return filepath.Join(dest, filepath.FromSlash(rel)), nil
}
