// Package watch refines spreadsheets as they are dropped into a folder.
// Each file is loaded, refined and written out on its own; a failure on one
// file never affects the others.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/klytics/sheetkit/internal/refine"
)

// Statuses recorded on an Event.
const (
	StatusRecovered   = "recovered"
	StatusUnrecovered = "unrecovered"
	StatusError       = "error"
	StatusSkipped     = "skipped"
)

// OutputSuffix marks files written by the watcher so they are never picked
// up again when the output folder is inside a watched one.
const OutputSuffix = refine.TableSuffix

// WatchConfig holds the complete watcher configuration.
type WatchConfig struct {
	Directories []string `json:"directories"`
	Instruction string   `json:"instruction"`
	Recipe      string   `json:"recipe,omitempty"`
	Pattern     string   `json:"pattern,omitempty"` // glob on the base name, e.g. "sales_*.xlsx"
	OutDir      string   `json:"outDir,omitempty"`  // defaults to <dir>/refined
	Recursive   bool     `json:"recursive"`
	Existing    bool     `json:"existing"`   // process files already present at start
	Debounce    int      `json:"debounceMs"` // milliseconds to wait before processing
}

// Event represents a file event that was detected and processed.
type Event struct {
	Time      time.Time `json:"time"`
	Path      string    `json:"path"`
	Operation string    `json:"operation"` // "create", "write", "existing"
	Status    string    `json:"status"`
	Output    string    `json:"output,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Processed is what a handler reports back for one file.
type Processed struct {
	Status string
	Output string
}

// EventHandler processes one spreadsheet.
type EventHandler func(ctx context.Context, path string) (Processed, error)

// Watcher monitors directories for new spreadsheets.
type Watcher struct {
	Config  WatchConfig
	Logger  *slog.Logger
	Handler EventHandler

	mu       sync.Mutex
	events   []Event
	watcher  *fsnotify.Watcher
	debounce map[string]*time.Timer
	inflight sync.WaitGroup
	started  time.Time
}

// Status represents the current watcher status.
type Status struct {
	Running     bool     `json:"running"`
	Directories []string `json:"directories"`
	EventCount  int      `json:"eventCount"`
	StartedAt   string   `json:"startedAt,omitempty"`
}

// New creates a new Watcher with the given configuration.
func New(config WatchConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create file watcher: %w", err)
	}
	if config.Debounce <= 0 {
		config.Debounce = 500
	}
	return &Watcher{
		Config:   config,
		Logger:   slog.Default().With("component", "watch"),
		watcher:  fsw,
		debounce: make(map[string]*time.Timer),
	}, nil
}

// Start begins watching the configured directories. It blocks until the
// context is cancelled and then waits for files already being processed.
func (w *Watcher) Start(ctx context.Context) error {
	defer w.inflight.Wait()

	for _, dir := range w.Config.Directories {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("could not resolve %s: %w", dir, err)
		}
		if w.Config.Recursive {
			err = w.addRecursive(absDir)
		} else {
			err = w.watcher.Add(absDir)
		}
		if err != nil {
			w.watcher.Close()
			return fmt.Errorf("could not watch %s: %w", absDir, err)
		}
		if w.Config.Existing {
			w.scanExisting(ctx, absDir)
		}
	}

	w.mu.Lock()
	w.started = time.Now()
	w.mu.Unlock()
	w.Logger.Info("watching", "directories", len(w.Config.Directories), "recursive", w.Config.Recursive)

	for {
		select {
		case <-ctx.Done():
			w.Logger.Info("stopping watcher")
			w.stopTimers()
			return w.watcher.Close()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if info.IsDir() {
			if strings.HasPrefix(filepath.Base(path), ".") && path != dir {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) scanExisting(ctx context.Context, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.Logger.Warn("could not list directory", "dir", dir, "error", err)
		return
	}
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if !e.IsDir() && w.matches(path) {
			w.schedule(ctx, path, "existing")
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !w.matches(event.Name) {
		return
	}
	op := "write"
	if event.Has(fsnotify.Create) {
		op = "create"
	}
	w.schedule(ctx, event.Name, op)
}

// schedule debounces path: editors and copies emit several writes per file.
func (w *Watcher) schedule(ctx context.Context, path, operation string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.debounce[path]; ok && timer.Stop() {
		w.inflight.Done()
	}
	w.inflight.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(time.Duration(w.Config.Debounce)*time.Millisecond, func() {
		defer w.inflight.Done()
		w.mu.Lock()
		if w.debounce[path] == timer {
			delete(w.debounce, path)
		}
		w.mu.Unlock()
		w.processFile(ctx, path, operation)
	})
	w.debounce[path] = timer
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.debounce {
		if timer.Stop() {
			w.inflight.Done()
		}
		delete(w.debounce, path)
	}
}

func (w *Watcher) processFile(ctx context.Context, path, operation string) {
	evt := Event{Time: time.Now(), Path: path, Operation: operation}
	log := w.Logger.With("file", path)

	if w.Handler == nil {
		evt.Status = StatusSkipped
		log.Info("matched file (no handler)")
	} else if res, err := w.Handler(ctx, path); err != nil {
		evt.Status = StatusError
		evt.Error = err.Error()
		log.Warn("could not process file", "error", err)
	} else {
		evt.Status = res.Status
		evt.Output = res.Output
		log.Info("processed file", "status", res.Status, "output", res.Output)
	}

	w.mu.Lock()
	w.events = append(w.events, evt)
	w.mu.Unlock()
}

// matches reports whether path is a spreadsheet this watcher should refine.
func (w *Watcher) matches(path string) bool {
	base := filepath.Base(path)
	if !strings.EqualFold(filepath.Ext(base), ".xlsx") {
		return false
	}
	// Office lock files and our own outputs
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".~") || strings.HasSuffix(base, OutputSuffix) {
		return false
	}
	if w.Config.Pattern != "" {
		matched, _ := filepath.Match(w.Config.Pattern, base)
		return matched
	}
	return true
}

// GetStatus returns the current watcher status.
func (w *Watcher) GetStatus() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := Status{
		Running:     !w.started.IsZero(),
		Directories: w.Config.Directories,
		EventCount:  len(w.events),
	}
	if !w.started.IsZero() {
		st.StartedAt = w.started.Format(time.RFC3339)
	}
	return st
}

// GetEvents returns all recorded events.
func (w *Watcher) GetEvents() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	events := make([]Event, len(w.events))
	copy(events, w.events)
	return events
}

const (
	pidFile    = "watch.pid"
	configFile = "watch-config.json"
)

// WritePIDFile writes the current process ID to the PID file in the given directory.
func WritePIDFile(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, pidFile), []byte(fmt.Sprintf("%d", os.Getpid())), 0644)
}

// ReadPIDFile reads the PID from the PID file.
func ReadPIDFile(dir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dir, pidFile))
	if err != nil {
		return 0, err
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}
	return pid, nil
}

// RemovePIDFile removes the PID file.
func RemovePIDFile(dir string) error {
	return os.Remove(filepath.Join(dir, pidFile))
}

// SaveConfig writes the watcher config to a JSON file.
func SaveConfig(dir string, config WatchConfig) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, configFile), data, 0644)
}

// LoadConfig reads the watcher config from a JSON file.
func LoadConfig(dir string) (*WatchConfig, error) {
	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if err != nil {
		return nil, err
	}
	var config WatchConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("invalid watch config: %w", err)
	}
	return &config, nil
}
