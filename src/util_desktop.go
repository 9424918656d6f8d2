//go:build !raw

package main

import (
	"io"
	"os"

	"github.com/sqweek/dialog"
)

// Log writer implementation. The returned func closes the log file, if any.
func NewLogWriter(file string) (io.Writer, func() error) {
	if file == "" {
		return os.Stderr, func() error { return nil }
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return os.Stderr, func() error { return nil }
	}
	return io.MultiWriter(os.Stderr, f), f.Close
}

// Message box implementation
func ShowInfoDialog(message, title string) {
	dialog.Message("%s", message).Title(title).Info()
}

func ShowErrorDialog(message string) {
	dialog.Message("%s", message).Title("Arena Maker Error").Error()
}
