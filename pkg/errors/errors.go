// Package errors defines the sentinel errors shared by the indexing pipeline
// and maps them to process exit codes.
package errors

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrNoBlocks      = errors.New("no block files to merge")
	ErrBlockFailed   = errors.New("block indexing failed")
	ErrMergeFailed   = errors.New("merge failed")
	ErrLocked        = errors.New("block directory locked by another run")
)

// Exit codes returned by the command line tools.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitConfig   = 2
	ExitNoBlocks = 3
	ExitBlocks   = 4
	ExitLocked   = 5

	// ExitInterrupted follows the shell convention of 128 + SIGINT.
	ExitInterrupted = 130
)

// BlockError reports the failure of a single block. It matches ErrBlockFailed
// under errors.Is and unwraps to the underlying cause.
type BlockError struct {
	Block int
	Err   error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("block %d: %v", e.Block, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

func (e *BlockError) Is(target error) bool {
	return target == ErrBlockFailed
}

// NewBlockError wraps err as the failure of block n.
func NewBlockError(n int, err error) *BlockError {
	return &BlockError{Block: n, Err: err}
}

// Newf wraps a sentinel with a formatted message.
func Newf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// ExitCode maps an error to the exit code of the command that produced it.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfig
	case errors.Is(err, ErrNoBlocks):
		return ExitNoBlocks
	case errors.Is(err, ErrBlockFailed):
		return ExitBlocks
	case errors.Is(err, ErrLocked):
		return ExitLocked
	default:
		return ExitFailure
	}
}
