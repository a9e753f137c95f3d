package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxLineBytes is the largest line, excluding its terminator, that is decoded.
const MaxLineBytes = 1 << 20

const readBufferSize = 64 * 1024

// ErrLineTooLong is reported for lines longer than the configured maximum.
var ErrLineTooLong = errors.New("line exceeds maximum length")

// Options configures a Decoder or LineScanner.
type Options struct {
	// MaxLineBytes overrides the default line ceiling when > 0.
	MaxLineBytes int
	// Stop is polled before and after every blocking read; once it returns
	// true the loop ends.
	Stop func() bool
	// OnLine receives every raw non-blank line before decoding.
	OnLine func(line []byte)
	// OnDrop receives every line that was skipped and why. line is nil for
	// oversize lines.
	OnDrop func(line []byte, err error)
}

// lineReader splits a stream on '\n' without ever buffering more than max
// bytes of a single line.
type lineReader struct {
	br  *bufio.Reader
	max int
	buf []byte
}

func newLineReader(r io.Reader, max int) *lineReader {
	if max <= 0 {
		max = MaxLineBytes
	}
	return &lineReader{br: bufio.NewReaderSize(r, readBufferSize), max: max}
}

// next returns the next line with its "\n" or "\r\n" terminator removed. A
// final line without terminator is returned before io.EOF. For lines over
// the limit the content is discarded and size reports how long it was.
func (r *lineReader) next() (line []byte, size int, tooLong bool, err error) {
	r.buf = r.buf[:0]
	for {
		frag, rerr := r.br.ReadSlice('\n')
		size += len(frag)
		if !tooLong {
			if len(r.buf)+len(frag) > r.max+2 {
				tooLong = true
				r.buf = r.buf[:0]
			} else {
				r.buf = append(r.buf, frag...)
			}
		}

		switch {
		case rerr == nil:
			size -= len(frag) - len(trimEOL(frag))
		case errors.Is(rerr, bufio.ErrBufferFull):
			continue
		case errors.Is(rerr, io.EOF):
			if size == 0 {
				return nil, 0, false, io.EOF
			}
		default:
			return nil, size, false, rerr
		}

		line = trimEOL(r.buf)
		if tooLong || len(line) > r.max {
			return nil, size, true, nil
		}
		return line, size, false, nil
	}
}

func trimEOL(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte("\n"))
	return bytes.TrimSuffix(b, []byte("\r"))
}

// Decoder reads Messages from the worker's standard output. Bad lines are
// dropped and reading continues; Next only returns false at end of stream,
// on a read error, or when Stop reports true.
type Decoder struct {
	lr   *lineReader
	opts Options
	msg  Message
	err  error
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader, opts Options) *Decoder {
	return &Decoder{lr: newLineReader(r, opts.MaxLineBytes), opts: opts}
}

// Next advances to the next valid message.
func (d *Decoder) Next() bool {
	d.msg = nil
	for {
		if d.stopped() {
			return false
		}
		line, size, tooLong, err := d.lr.next()
		if d.stopped() {
			return false
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				d.err = err
			}
			return false
		}
		if tooLong {
			d.drop(nil, fmt.Errorf("%w: %d bytes", ErrLineTooLong, size))
			continue
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if d.opts.OnLine != nil {
			d.opts.OnLine(line)
		}

		msg, err := Decode(line)
		if err != nil {
			d.drop(line, err)
			continue
		}
		d.msg = msg
		return true
	}
}

// Message returns the message read by the last successful Next.
func (d *Decoder) Message() Message { return d.msg }

// Err returns the read error that ended the stream, or nil on EOF or stop.
func (d *Decoder) Err() error { return d.err }

func (d *Decoder) stopped() bool {
	return d.opts.Stop != nil && d.opts.Stop()
}

func (d *Decoder) drop(line []byte, err error) {
	if d.opts.OnDrop != nil {
		d.opts.OnDrop(line, err)
	}
}

// LineScanner reads free-text diagnostic lines, such as the worker's
// standard error, with the same framing rules as Decoder.
type LineScanner struct {
	lr   *lineReader
	opts Options
	text string
	err  error
}

// NewLineScanner returns a LineScanner reading from r.
func NewLineScanner(r io.Reader, opts Options) *LineScanner {
	return &LineScanner{lr: newLineReader(r, opts.MaxLineBytes), opts: opts}
}

// Next advances to the next non-blank line.
func (s *LineScanner) Next() bool {
	for {
		if s.opts.Stop != nil && s.opts.Stop() {
			return false
		}
		line, size, tooLong, err := s.lr.next()
		if s.opts.Stop != nil && s.opts.Stop() {
			return false
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = err
			}
			return false
		}
		if tooLong {
			if s.opts.OnDrop != nil {
				s.opts.OnDrop(nil, fmt.Errorf("%w: %d bytes", ErrLineTooLong, size))
			}
			continue
		}
		text := strings.TrimSpace(strings.ToValidUTF8(string(line), "�"))
		if text == "" {
			continue
		}
		s.text = text
		return true
	}
}

// Text returns the line read by the last successful Next.
func (s *LineScanner) Text() string { return s.text }

// Err returns the read error that ended the stream, or nil on EOF or stop.
func (s *LineScanner) Err() error { return s.err }

// DropReason classifies a drop error for metrics labels.
func DropReason(err error) string {
	var de *DecodeError
	switch {
	case errors.Is(err, ErrLineTooLong):
		return "oversize"
	case errors.Is(err, ErrUnknownType):
		return "unknown_type"
	case errors.As(err, &de):
		return "malformed"
	default:
		return "other"
	}
}
