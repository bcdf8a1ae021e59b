package schemas

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/wayfinder/internal/llmutil"
)

var (
	// ErrParse marks a malformed or missing response section.
	ErrParse = errors.New("parse error")
	// ErrStorage marks a file or index I/O failure.
	ErrStorage = errors.New("storage error")
	// ErrEmbedding marks a failed embedding call.
	ErrEmbedding = errors.New("embedding error")
)

// StorageError wraps an I/O failure in one of the stores.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewStorageError returns nil when err is nil.
func NewStorageError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Path: path, Err: err}
}

// EmbeddingError wraps a failed embedding call.
type EmbeddingError struct {
	Text string
	Err  error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding %q: %v", truncateForError(e.Text, 80), e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

func (e *EmbeddingError) Is(target error) bool { return target == ErrEmbedding }

// NewEmbeddingError returns nil when err is nil.
func NewEmbeddingError(text string, err error) error {
	if err == nil {
		return nil
	}
	return &EmbeddingError{Text: text, Err: err}
}

func truncateForError(s string, n int) string {
	return llmutil.TruncateString(s, n)
}
