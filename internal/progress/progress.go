// Package progress reports step progress of long-running operations.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Reporter receives progress of a counted operation
type Reporter interface {
	Start(label string, total int)
	Step()
	Done()
}

// Nop discards progress
type Nop struct{}

func (Nop) Start(string, int) {}
func (Nop) Step()             {}
func (Nop) Done()             {}

// Bar renders a single-line progress bar
type Bar struct {
	mu    sync.Mutex
	w     io.Writer
	label string
	total int
	done  int
}

// NewBar returns a bar writing to w
func NewBar(w io.Writer) *Bar {
	return &Bar{w: w}
}

// ForTerminal returns a bar on stderr when it is a terminal, Nop otherwise
func ForTerminal() Reporter {
	if IsTerminal(os.Stderr) {
		return NewBar(os.Stderr)
	}
	return Nop{}
}

// Start resets the bar for a new operation
func (b *Bar) Start(label string, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.label, b.total, b.done = label, total, 0
	b.render()
}

// Step advances the bar by one
func (b *Bar) Step() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done++
	b.render()
}

// Done clears the bar line
func (b *Bar) Done() {
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprint(b.w, "\r\033[K")
}

func (b *Bar) render() {
	pct := 100
	if b.total > 0 {
		pct = b.done * 100 / b.total
	}
	fmt.Fprintf(b.w, "\r%s [%s] %d/%d", b.label, Render(pct, 20), b.done, b.total)
}

// Render creates a simple progress bar of the given width
func Render(percent, width int) string {
	filled := percent * width / 100
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// IsTerminal checks if the file descriptor is a terminal
func IsTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
