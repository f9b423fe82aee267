package tags

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
)

// Stream is an open, decoding music file.
type Stream struct {
	beep.StreamSeekCloser
	Format beep.Format
	file   *os.File
}

// Open opens path and starts decoding it.
func Open(path string) (*Stream, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ExtMP3 && ext != ExtFLAC {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch ext {
	case ExtMP3:
		streamer, format, err = mp3.Decode(f)
	case ExtFLAC:
		if err = skipID3v2(f); err == nil {
			streamer, format, err = flac.Decode(f)
		}
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}

	return &Stream{StreamSeekCloser: streamer, Format: format, file: f}, nil
}

// Close closes the decoder and the file.
func (s *Stream) Close() error {
	err := s.StreamSeekCloser.Close()
	if ferr := s.file.Close(); err == nil {
		err = ferr
	}
	return err
}

// ReadPCM decodes up to len(buf)/channels frames as interleaved signed
// 16-bit samples. It returns the number of frames decoded and false at the
// end of the stream.
func (s *Stream) ReadPCM(buf []int16, scratch [][2]float64) (int, bool) {
	channels := s.Format.NumChannels
	frames := min(len(buf)/channels, len(scratch))
	n, ok := s.Stream(scratch[:frames])
	for i := range n {
		for ch := range channels {
			buf[i*channels+ch] = toInt16(scratch[i][ch])
		}
	}
	return n, ok
}

func toInt16(v float64) int16 {
	switch {
	case v >= 1:
		return 32767
	case v <= -1:
		return -32768
	default:
		return int16(v * 32767)
	}
}

// skipID3v2 skips an ID3v2 header prepended to FLAC files.
func skipID3v2(r io.ReadSeeker) error {
	header := make([]byte, 10)
	n, err := r.Read(header)
	if err != nil {
		return err
	}
	if n < 10 {
		_, err = r.Seek(0, io.SeekStart)
		return err
	}

	if string(header[0:3]) != id3Magic {
		_, err = r.Seek(0, io.SeekStart)
		return err
	}

	// ID3v2 size is stored as a syncsafe integer in bytes 6-9
	size := int64(header[6])<<21 | int64(header[7])<<14 | int64(header[8])<<7 | int64(header[9])
	_, err = r.Seek(10+size, io.SeekStart)
	return err
}
