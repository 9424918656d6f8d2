package main

import (
	"errors"
	"fmt"
	"strings"
)

type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// Missing or ambiguous fight input, malformed descriptor.
	ErrInput = Error("invalid input")
	// A baseline record the compile depends on is absent from the game data.
	ErrNotFound = Error("record not found")
	// An external tool exited with a non-zero status.
	ErrTool = Error("external tool failed")
	// A source image does not have the expected cell size.
	ErrDimension = Error("image dimension mismatch")
	// An optional feature was skipped; the compile continues.
	ErrSkipped = Error("optional step skipped")
)

// ToolError carries the captured output of a failed tool invocation.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Output   []byte
	Err      error
}

func (e *ToolError) Error() string {
	out := strings.TrimSpace(string(e.Output))
	if out == "" {
		return fmt.Sprintf("%v %v: exit status %d: %v", e.Tool, strings.Join(e.Args, " "), e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%v %v: exit status %d: %v\n%v", e.Tool, strings.Join(e.Args, " "), e.ExitCode, e.Err, out)
}

func (e *ToolError) Unwrap() []error {
	return []error{ErrTool, e.Err}
}

// IsFatal reports whether err must abort the compile.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrSkipped)
}

func inputErrorf(dir string, format string, a ...interface{}) error {
	return fmt.Errorf("%w: %v: %v", ErrInput, dir, fmt.Sprintf(format, a...))
}
