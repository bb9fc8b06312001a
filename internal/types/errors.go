package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrToolNotFound  = errors.New("media tool not found on PATH")
	ErrProbeFailed   = errors.New("probe failed")
	ErrAllContentCut = errors.New("all content would be cut out (no kept segments)")
	ErrEncodeFailed  = errors.New("encode failed")
	ErrIO            = errors.New("io error")
	ErrNoSegments    = errors.New("no segments provided")
	ErrInvalidClip   = errors.New("invalid clip")
)

// EncodeError reports an encoder that exited non-zero. It matches ErrEncodeFailed.
type EncodeError struct {
	ExitCode    int
	Diagnostics string
}

func (e *EncodeError) Error() string {
	msg := fmt.Sprintf("encode failed (exit status %d)", e.ExitCode)
	if d := strings.TrimSpace(e.Diagnostics); d != "" {
		msg += ": " + d
	}
	return msg
}

func (e *EncodeError) Is(target error) bool { return target == ErrEncodeFailed }
