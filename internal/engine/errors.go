package engine

import (
	"errors"
	"fmt"
)

// ErrChecksumMismatch is returned when the output does not match Job.Expect.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ProcessError reports that the transfer tool exited with a non-zero status.
type ProcessError struct {
	ExitCode int
	Stderr   string // last diagnostic line, if any
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("transfer tool exited with status %d: %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("transfer tool exited with status %d", e.ExitCode)
}

// RuntimeError reports a failure managing the child process itself.
type RuntimeError struct {
	Op  string
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}
