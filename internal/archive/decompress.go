package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/milkyapps/llvmgr/internal/progress"
)

// DefaultBufferSize is the read size used when bufSize is not positive.
const DefaultBufferSize = 16 * 1024

// countingReader counts bytes pulled from the compressed source. The zstd
// decoder reads from a separate goroutine, so the counter is atomic.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// Decompress decodes r fully into memory. total is the compressed size; after
// each read from the decoder rep receives consumed/total, where consumed
// counts compressed bytes read so far.
func Decompress(rep progress.Reporter, r io.Reader, total int64, format Format, bufSize int) ([]byte, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	_ = rep.SetSubtask("un" + format.String() + "-ing")

	src := &countingReader{r: r}
	dec, closeDec, err := newDecoder(format, src)
	if err != nil {
		return nil, fmt.Errorf("open %s stream: %w", format, err)
	}
	defer closeDec()

	report := func() {
		if total > 0 {
			_ = rep.SetPercentage(float64(src.n.Load()) / float64(total))
		}
	}

	var out bytes.Buffer
	buf := make([]byte, bufSize)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
			report()
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s stream: %w", format, err)
		}
	}
	report()

	return out.Bytes(), nil
}

// DecompressFile decompresses the file at path, picking the format from its
// name and the total from its size.
func DecompressFile(rep progress.Reporter, path string, bufSize int) ([]byte, error) {
	format, err := FormatFromName(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	return Decompress(rep, f, fi.Size(), format, bufSize)
}
