// Package logx provides best-effort logging to stderr.
package logx

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr
)

// SetOutput redirects log output. The TUI uses it to keep stderr off the alt screen.
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	if w == nil {
		w = io.Discard
	}
	out = w
	return prev
}

// Errf writes a formatted line to the log output.
func Errf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if _, err := fmt.Fprintf(out, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

// Errln writes its arguments followed by a newline.
func Errln(args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if _, err := fmt.Fprintln(out, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
