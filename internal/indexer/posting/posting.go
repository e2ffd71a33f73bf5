// Package posting implements the line format shared by block files and the
// final index:
//
//	<word> <count> <pos1> <pos2> ... <posN>\n
//
// Fields are separated by single spaces and positions are written in
// ascending order.
package posting

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrMalformedLine is returned for a line that has no parseable count.
var ErrMalformedLine = errors.New("malformed posting line")

// Entry is one word and the global positions at which it occurs.
type Entry struct {
	Word      string
	Positions []int64
}

// AppendLine appends the encoded form of e, newline included, to dst.
func AppendLine(dst []byte, e Entry) []byte {
	dst = append(dst, e.Word...)
	dst = append(dst, ' ')
	dst = strconv.AppendInt(dst, int64(len(e.Positions)), 10)
	for _, p := range e.Positions {
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, p, 10)
	}
	return append(dst, '\n')
}

// ParseLine decodes a single line (without its newline). It returns the
// declared count alongside the entry: when the line carries fewer valid
// positions than declared, the entry holds the ones that could be read and
// no error is reported.
func ParseLine(line string) (Entry, int, error) {
	sp := strings.IndexByte(line, ' ')
	if sp < 0 {
		return Entry{}, 0, fmt.Errorf("%w: missing count", ErrMalformedLine)
	}
	word := line[:sp]
	fields := strings.Fields(line[sp+1:])
	if len(fields) == 0 {
		return Entry{}, 0, fmt.Errorf("%w: missing count", ErrMalformedLine)
	}
	declared, err := strconv.Atoi(fields[0])
	if err != nil || declared < 0 {
		return Entry{}, 0, fmt.Errorf("%w: bad count %q", ErrMalformedLine, fields[0])
	}
	fields = fields[1:]
	n := declared
	if n > len(fields) {
		n = len(fields)
	}
	positions := make([]int64, 0, n)
	for _, f := range fields[:n] {
		p, err := strconv.ParseInt(f, 10, 64)
		if err != nil || p < 0 {
			break
		}
		positions = append(positions, p)
	}
	return Entry{Word: word, Positions: positions}, declared, nil
}

// Writer encodes entries onto a buffered stream.
type Writer struct {
	w       *bufio.Writer
	scratch []byte
	lines   int64
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 256*1024)}
}

// Write encodes one entry.
func (w *Writer) Write(e Entry) error {
	w.scratch = AppendLine(w.scratch[:0], e)
	if _, err := w.w.Write(w.scratch); err != nil {
		return fmt.Errorf("writing entry %q: %w", e.Word, err)
	}
	w.lines++
	return nil
}

// Lines returns the number of entries written so far.
func (w *Writer) Lines() int64 {
	return w.lines
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Reader decodes entries line by line. Lines have no length limit.
type Reader struct {
	r    *bufio.Reader
	line int
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 256*1024)}
}

// Next returns the next entry and its declared count. It returns io.EOF after
// the last line. A malformed line yields an error wrapping ErrMalformedLine;
// reading may continue past it.
func (r *Reader) Next() (Entry, int, error) {
	raw, err := r.r.ReadBytes('\n')
	if len(raw) == 0 {
		if err == nil || err == io.EOF {
			return Entry{}, 0, io.EOF
		}
		return Entry{}, 0, err
	}
	if err != nil && err != io.EOF {
		return Entry{}, 0, err
	}
	r.line++
	raw = bytes.TrimSuffix(raw, []byte{'\n'})
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	e, declared, perr := ParseLine(string(raw))
	if perr != nil {
		return Entry{}, 0, fmt.Errorf("line %d: %w", r.line, perr)
	}
	return e, declared, nil
}

// Line returns the number of the line most recently read, starting at 1.
func (r *Reader) Line() int {
	return r.line
}
