package star

import (
	"errors"
	"fmt"
	"io/fs"
)

// DecompressionError reports a truncated or corrupt compressed input.
type DecompressionError struct {
	Codec string
	Err   error
}

func (e *DecompressionError) Error() string {
	return fmt.Sprintf("decompress %s: %v", e.Codec, e.Err)
}

func (e *DecompressionError) Unwrap() error { return e.Err }

// DecodeError reports a decoded value with the wrong shape. Index is the
// position of the offending star, or -1 for the top-level value.
type DecodeError struct {
	Index int
	Msg   string
	Err   error
}

func (e *DecodeError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Index < 0 {
		return "decode: " + msg
	}
	return fmt.Sprintf("decode star %d: %s", e.Index, msg)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// MalformedTrackError reports a raw track whose length is not a whole
// number of records.
type MalformedTrackError struct {
	Index int
	Name  string
	Len   int
}

func (e *MalformedTrackError) Error() string {
	who := fmt.Sprintf("star %d", e.Index)
	if e.Name != "" {
		who = fmt.Sprintf("star %d (%q)", e.Index, e.Name)
	}
	return fmt.Sprintf("%s: raw track is %d bytes, not a multiple of %d", who, e.Len, RecordSize)
}

// IOError reports a failed file operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// NewIOError wraps err as an IOError, taking the path from a *fs.PathError
// when there is one.
func NewIOError(op, path string, err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return &IOError{Op: op, Path: pe.Path, Err: pe.Err}
	}
	return &IOError{Op: op, Path: path, Err: err}
}
