// Package tokenizer turns a corpus into canonical tokens and groups them into
// fixed-size blocks of consecutive global positions. Normalisation folds case,
// maps accented Latin letters to their base letter, and drops everything that
// is not alphanumeric.
package tokenizer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxWordBytes bounds the length of a single raw word read by a
// ScannerSource.
const DefaultMaxWordBytes = 1 << 20

// WordSource yields the raw whitespace-delimited words of a corpus in order.
// Next returns io.EOF once the corpus is exhausted.
type WordSource interface {
	Next() ([]byte, error)
}

// ScannerSource reads raw words from an io.Reader.
type ScannerSource struct {
	scanner *bufio.Scanner
}

// NewScannerSource returns a WordSource splitting r on white space. Words
// longer than maxWordBytes make Next fail with bufio.ErrTooLong.
func NewScannerSource(r io.Reader, maxWordBytes int) *ScannerSource {
	if maxWordBytes <= 0 {
		maxWordBytes = DefaultMaxWordBytes
	}
	initial := 64 * 1024
	if initial > maxWordBytes {
		initial = maxWordBytes
	}
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, initial), maxWordBytes)
	s.Split(bufio.ScanWords)
	return &ScannerSource{scanner: s}
}

// Next returns the next raw word. The returned slice is only valid until the
// following call.
func (s *ScannerSource) Next() ([]byte, error) {
	if s.scanner.Scan() {
		return s.scanner.Bytes(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Block is a contiguous run of canonical tokens. Tokens[i] sits at global
// position Offset+i. Blocks are numbered in creation order, which is also
// ascending offset order.
type Block struct {
	Index  int
	Offset int64
	Tokens []string
}

// Len returns the number of tokens in the block.
func (b Block) Len() int {
	return len(b.Tokens)
}

// Buffer accumulates tokens and hands them off as a Block every time the
// configured block size is reached. Offsets are assigned here, sequentially,
// before the block leaves the buffer.
type Buffer struct {
	size   int
	tokens []string
	next   int
	total  int64
	emit   func(Block)
}

// NewBuffer creates a Buffer that calls emit with every completed block.
// emit may block; Push does not return until it has.
func NewBuffer(blockSize int, emit func(Block)) *Buffer {
	return &Buffer{
		size: blockSize,
		emit: emit,
	}
}

// Push appends one canonical token.
func (b *Buffer) Push(token string) {
	b.tokens = append(b.tokens, token)
	b.total++
	if len(b.tokens) >= b.size {
		b.hand()
	}
}

// PushFields splits text on white space and pushes every field as a token.
// A single normalised word may therefore yield zero, one or several tokens.
func (b *Buffer) PushFields(text string) {
	for _, tok := range strings.Fields(text) {
		b.Push(tok)
	}
}

// Flush emits the buffered tokens as a final, possibly undersized block.
func (b *Buffer) Flush() {
	if len(b.tokens) > 0 {
		b.hand()
	}
}

// Blocks returns how many blocks have been emitted.
func (b *Buffer) Blocks() int {
	return b.next
}

// Tokens returns how many tokens have been pushed.
func (b *Buffer) Tokens() int64 {
	return b.total
}

func (b *Buffer) hand() {
	blk := Block{
		Index:  b.next,
		Offset: int64(b.next) * int64(b.size),
		Tokens: b.tokens,
	}
	// the emitted slice now belongs to the receiver
	b.tokens = nil
	b.next++
	b.emit(blk)
}

// Stats summarises one tokenisation pass.
type Stats struct {
	RawWords int64
	Tokens   int64
	Blocks   int
}

// checkEvery is how many raw words Tokenize reads between context checks.
const checkEvery = 1024

// Tokenize reads every raw word from src, normalises it, and feeds the
// resulting tokens through a Buffer of blockSize tokens. Words that normalise
// to nothing contribute no token.
//
// Once ctx is done Tokenize stops reading and returns ctx.Err() without
// flushing: blocks already emitted stay emitted, and no partial block is
// handed off.
func Tokenize(ctx context.Context, src WordSource, blockSize int, emit func(Block)) (Stats, error) {
	if blockSize <= 0 {
		return Stats{}, fmt.Errorf("block size must be positive, got %d", blockSize)
	}
	buf := NewBuffer(blockSize, emit)
	var raw int64
	stats := func() Stats {
		return Stats{RawWords: raw, Tokens: buf.Tokens(), Blocks: buf.Blocks()}
	}
	for {
		if raw%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return stats(), err
			}
		}
		word, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats(), fmt.Errorf("reading raw word %d: %w", raw, err)
		}
		raw++
		buf.PushFields(Normalize(word))
	}
	buf.Flush()
	return stats(), nil
}
