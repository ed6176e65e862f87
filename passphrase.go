package main

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"runtime"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// zeroBytes overwrites a byte slice with zeros
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// passphraseSource yields dictionary words one line at a time, dropping
// anything outside the 802.11i length bounds. It is single pass and not
// safe for concurrent use.
type passphraseSource struct {
	r        *bufio.Reader
	rejected int64
	err      error
	done     bool
}

func newPassphraseSource(r io.Reader) *passphraseSource {
	return &passphraseSource{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next acceptable passphrase. The returned slice is
// owned by the caller.
func (s *passphraseSource) Next() ([]byte, bool) {
	for !s.done {
		line, err := s.r.ReadBytes('\n')
		if err != nil {
			s.done = true
			if err != io.EOF {
				s.err = errors.E("failed to read dictionary", err)
				return nil, false
			}
			if len(line) == 0 {
				return nil, false
			}
		}
		line = trimLine(line)
		if err := validatePassphrase(line); err != nil {
			s.rejected++
			log.Debug.Print(err)
			continue
		}
		return line, true
	}
	return nil, false
}

// Err returns the read error that ended the sequence, if any. End of
// input is not an error.
func (s *passphraseSource) Err() error {
	return s.err
}

// Rejected returns the number of lines dropped by the length filter
func (s *passphraseSource) Rejected() int64 {
	return s.rejected
}

func trimLine(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	return bytes.TrimSuffix(line, []byte{'\r'})
}

// openDictionary opens a word list. "-" reads STDIN; .gz and .zst files
// are decompressed on the fly.
func openDictionary(path string) (io.ReadCloser, error) {
	if path == "-" {
		log.Print("Using STDIN for words.")
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E("failed to open dictionary", path, err)
	}
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.E(errors.Invalid, "failed to open gzip dictionary", path, err)
		}
		return &stackedReader{Reader: gz, closers: []io.Closer{gz, f}}, nil
	case fileio.Zstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.E(errors.Invalid, "failed to open zstd dictionary", path, err)
		}
		return &stackedReader{Reader: zr, closers: []io.Closer{zstdCloser{zr}, f}}, nil
	}
	return f, nil
}

// stackedReader reads from a decompressor and closes it along with the
// underlying file
type stackedReader struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedReader) Close() error {
	var err error
	for _, c := range s.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

type zstdCloser struct{ d *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}
