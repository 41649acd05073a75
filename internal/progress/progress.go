// Package progress provides terminal progress bars and spinners.
// All output goes to stderr to avoid polluting stdout/pipes.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Bar renders an ASCII progress bar, used when refining several files.
type Bar struct {
	Total   int
	Current int
	Failed  int
	Label   string
	Width   int
	Enabled bool

	out io.Writer
	mu  sync.Mutex
}

// New creates a progress bar.
// Automatically disabled if not a TTY, if --json is set, or SHEETKIT_NO_PROGRESS=1.
func New(label string, total int) *Bar {
	return &Bar{
		Total:   total,
		Label:   label,
		Width:   30,
		Enabled: shouldEnable(),
		out:     os.Stderr,
	}
}

// Done records one finished item. Bars are shared by worker goroutines.
func (b *Bar) Done(name string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Current < b.Total {
		b.Current++
	}
	if !ok {
		b.Failed++
	}
	b.render(name)
}

// Finish prints a final completion line.
func (b *Bar) Finish(summary string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.Enabled {
		return
	}
	mark := "✓"
	if b.Failed > 0 {
		mark = "!"
	}
	fmt.Fprintf(b.writer(), "\r\033[K%s %s\n", mark, summary)
}

func (b *Bar) render(status string) {
	if !b.Enabled {
		return
	}

	filled := 0
	if b.Total > 0 {
		filled = b.Current * b.Width / b.Total
	}
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", b.Width-filled)
	fmt.Fprintf(b.writer(), "\r\033[K%s [%s] %d/%d  %s", b.Label, bar, b.Current, b.Total, status)
}

func (b *Bar) writer() io.Writer {
	if b.out == nil {
		return os.Stderr
	}
	return b.out
}

// Pct returns the current percentage (0-100) of the bar.
func (b *Bar) Pct() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Total == 0 {
		return 0
	}
	return float64(b.Current) / float64(b.Total) * 100
}

// Spinner runs while waiting on the provider.
type Spinner struct {
	Label   string
	Enabled bool

	out     io.Writer
	mu      sync.Mutex
	done    chan struct{}
	stopped bool
}

// NewSpinner creates a spinner.
func NewSpinner(label string) *Spinner {
	return &Spinner{
		Label:   label,
		Enabled: shouldEnable(),
		out:     os.Stderr,
		done:    make(chan struct{}),
	}
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	if !s.Enabled {
		return
	}

	s.mu.Lock()
	s.stopped = false
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		frames := []rune{'⠋', '⠙', '⠹', '⠸', '⠼', '⠴', '⠦', '⠧', '⠇', '⠏'}
		start := time.Now()
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for i := 0; ; i++ {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.mu.Lock()
				if !s.stopped {
					fmt.Fprintf(s.writer(), "\r\033[K%c %s (%ds)", frames[i%len(frames)], s.Label, int(time.Since(start).Seconds()))
				}
				s.mu.Unlock()
			}
		}
	}()
}

// Stop stops the spinner and prints a result line marked as success or
// failure.
func (s *Spinner) Stop(result string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true

	select {
	case <-s.done:
	default:
		close(s.done)
	}

	if s.Enabled {
		mark := "✓"
		if !ok {
			mark = "✗"
		}
		fmt.Fprintf(s.writer(), "\r\033[K%s %s\n", mark, result)
	}
}

// Update changes the spinner label while it's running.
func (s *Spinner) Update(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Label = label
}

func (s *Spinner) writer() io.Writer {
	if s.out == nil {
		return os.Stderr
	}
	return s.out
}

func shouldEnable() bool {
	if os.Getenv("SHEETKIT_NO_PROGRESS") == "1" {
		return false
	}
	// --json sets this for the whole process
	if os.Getenv("SHEETKIT_JSON") == "true" {
		return false
	}
	return isTTY()
}

func isTTY() bool {
	stat, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
