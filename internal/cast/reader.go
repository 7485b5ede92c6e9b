package cast

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
)

// ErrNoHeader is returned when the file is exhausted (or starts with a
// line that doesn't parse as a header) before a header is found.
var ErrNoHeader = errors.New("cast: no header")

// Reader streams a header then events from an asciicast v3 file with
// bounded memory: one line is buffered at a time, and Events never
// materializes the full file.
type Reader struct {
	f    *os.File
	br   *bufio.Reader
	err  error
	done bool
}

// Open opens path for streaming. It fails only on I/O error opening
// the file; malformed content is reported per-line via Events/Header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cast file: %w", err)
	}
	return &Reader{f: f, br: bufio.NewReaderSize(f, 64*1024)}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Err returns the first I/O error encountered while reading, if any.
// Call it after draining Events to distinguish a clean EOF from a
// failed read.
func (r *Reader) Err() error {
	return r.err
}

// readLine returns the next non-empty line, trimmed of its trailing
// newline. ok is false once the file is exhausted or a read error
// occurred (check Err in the latter case).
func (r *Reader) readLine() (line []byte, ok bool) {
	if r.done {
		return nil, false
	}
	for {
		b, err := r.br.ReadBytes('\n')
		if err != nil && err != io.EOF {
			r.err = fmt.Errorf("read cast file: %w", err)
			r.done = true
			return nil, false
		}
		if err == io.EOF {
			r.done = true
		}
		trimmed := bytes.TrimRight(b, "\r\n")
		if len(trimmed) == 0 {
			if r.done {
				return nil, false
			}
			continue
		}
		return trimmed, true
	}
}

// Header reads and parses the first non-empty line of the file. It
// must be called exactly once, before Events.
func (r *Reader) Header() (Header, error) {
	line, ok := r.readLine()
	if !ok {
		if r.err != nil {
			return Header{}, r.err
		}
		return Header{}, ErrNoHeader
	}
	h, valid := parseHeader(line)
	if !valid {
		return Header{}, ErrNoHeader
	}
	return h, nil
}

// Events returns a lazy, forward-only sequence of events following the
// header. Malformed lines (invalid JSON, or not a 3-element array) are
// skipped silently and do not consume an event index — only
// successfully parsed events are indexed, in input order.
func (r *Reader) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		idx := 0
		for {
			line, ok := r.readLine()
			if !ok {
				return
			}
			ev, perr := parseEventLine(line)
			if perr != nil {
				continue
			}
			ev.Index = idx
			idx++
			if !yield(ev) {
				return
			}
		}
	}
}
