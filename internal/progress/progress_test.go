package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewDisabledInNonTTY(t *testing.T) {
	// In tests, stderr is typically not a TTY
	bar := New("test", 10)
	if bar.Enabled && !isTTY() {
		t.Error("expected bar to be disabled in non-TTY")
	}
}

func TestNewWithEnvDisable(t *testing.T) {
	t.Setenv("SHEETKIT_NO_PROGRESS", "1")
	if New("test", 10).Enabled {
		t.Error("expected bar to be disabled with SHEETKIT_NO_PROGRESS=1")
	}
	if NewSpinner("test").Enabled {
		t.Error("expected spinner to be disabled with SHEETKIT_NO_PROGRESS=1")
	}
}

func TestNewWithJSONDisable(t *testing.T) {
	t.Setenv("SHEETKIT_JSON", "true")
	if New("test", 10).Enabled {
		t.Error("expected bar to be disabled with SHEETKIT_JSON=true")
	}
}

func TestBarDone(t *testing.T) {
	bar := &Bar{Total: 3, Width: 30}
	bar.Done("a.xlsx", true)
	bar.Done("b.xlsx", false)
	if bar.Current != 2 || bar.Failed != 1 {
		t.Errorf("current=%d failed=%d", bar.Current, bar.Failed)
	}
	bar.Done("c.xlsx", true)
	bar.Done("d.xlsx", true) // over the total
	if bar.Current != 3 {
		t.Errorf("expected current capped at 3, got %d", bar.Current)
	}
	if bar.Pct() != 100 {
		t.Errorf("expected 100%%, got %f", bar.Pct())
	}
}

func TestBarPctZero(t *testing.T) {
	bar := &Bar{Total: 0}
	if bar.Pct() != 0 {
		t.Errorf("expected 0 for zero total, got %f", bar.Pct())
	}
}

func TestBarConcurrentDone(t *testing.T) {
	bar := &Bar{Total: 50, Width: 30}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bar.Done("x", true)
		}()
	}
	wg.Wait()
	if bar.Current != 50 {
		t.Errorf("expected 50, got %d", bar.Current)
	}
}

func TestBarRender(t *testing.T) {
	var buf bytes.Buffer
	bar := &Bar{Total: 2, Width: 10, Label: "Refining", Enabled: true, out: &buf}
	bar.Done("a.xlsx", true)
	if !strings.Contains(buf.String(), "[=====     ] 1/2  a.xlsx") {
		t.Errorf("render = %q", buf.String())
	}
	bar.Done("b.xlsx", false)
	bar.Finish("2 files")
	if !strings.Contains(buf.String(), "! 2 files") {
		t.Errorf("finish with failures should be marked: %q", buf.String())
	}
}

func TestSpinnerStopOutput(t *testing.T) {
	var buf bytes.Buffer
	s := &Spinner{Label: "Asking openai", Enabled: true, out: &buf, done: make(chan struct{})}
	s.Start()
	time.Sleep(120 * time.Millisecond)
	s.Stop("recovered 3 rows", true)

	out := buf.String()
	if !strings.Contains(out, "Asking openai") {
		t.Errorf("spinner never drew its label: %q", out)
	}
	if !strings.HasSuffix(out, "✓ recovered 3 rows\n") {
		t.Errorf("stop line = %q", out)
	}
}

func TestSpinnerFailureMark(t *testing.T) {
	var buf bytes.Buffer
	s := &Spinner{Enabled: true, out: &buf, done: make(chan struct{})}
	s.Stop("rate limited", false)
	if !strings.Contains(buf.String(), "✗ rate limited") {
		t.Errorf("got %q", buf.String())
	}
}

func TestSpinnerDisabledIsSilent(t *testing.T) {
	var buf bytes.Buffer
	s := &Spinner{Enabled: false, out: &buf, done: make(chan struct{})}
	s.Start()
	s.Update("new label")
	s.Stop("done", true)
	s.Stop("twice", true)
	if buf.Len() != 0 {
		t.Errorf("disabled spinner wrote %q", buf.String())
	}
}
