package archive

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// ErrUnknownFormat is returned for file names without a recognized
// compression suffix.
var ErrUnknownFormat = errors.New("archive: unknown compression format")

// Format is the compression filter applied over a tar stream.
type Format int

const (
	FormatXZ Format = iota + 1
	FormatGzip
	FormatZstd
)

func (f Format) String() string {
	switch f {
	case FormatXZ:
		return "xz"
	case FormatGzip:
		return "gz"
	case FormatZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

var suffixes = []struct {
	suffix string
	format Format
}{
	{".tar.xz", FormatXZ},
	{".txz", FormatXZ},
	{".tar.gz", FormatGzip},
	{".tgz", FormatGzip},
	{".tar.zst", FormatZstd},
	{".tzst", FormatZstd},
}

// FormatFromName picks the format from a file name suffix.
func FormatFromName(name string) (Format, error) {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.format, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
}

// newDecoder wraps r in the decoder for f. The returned closer releases
// decoder resources and must be called once reading is done.
func newDecoder(f Format, r io.Reader) (io.Reader, func(), error) {
	switch f {
	case FormatXZ:
		d, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return d, func() {}, nil
	case FormatGzip:
		d, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return d, func() { d.Close() }, nil
	case FormatZstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %v", ErrUnknownFormat, f)
	}
}
