package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
)

// ErrUnsupportedFormat is returned for files no decoder claims.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

type decodeFunc func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)

var decoders = map[string]decodeFunc{
	".wav": decodeWAV,
	".mp3": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return mp3.Decode(f)
	},
	".ogg": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return vorbis.Decode(f)
	},
	".flac": func(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
		return flac.Decode(f)
	},
}

// SupportedExtensions lists the file extensions the engine can decode.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(decoders))
	for ext := range decoders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// open decodes path by extension. The returned stream owns the file.
func open(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return nil, beep.Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("unable to open sound: %w", err)
	}

	stream, format, err := decode(f)
	if err != nil {
		_ = f.Close()
		return nil, beep.Format{}, fmt.Errorf("unable to decode %s: %w", filepath.Base(path), err)
	}
	return stream, format, nil
}
