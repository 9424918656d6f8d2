//go:build raw

package main

import (
	"io"
	"os"
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

// Message box implementation using stderr
func ShowInfoDialog(message, title string) {
	print(title + "\n\n" + message + "\n")
}

func ShowErrorDialog(message string) {
	print("Arena Maker Error\n\n" + message + "\n")
}
