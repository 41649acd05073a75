// Package history keeps a local record of refine requests, one JSON object
// per line, so past instructions and their outcomes can be listed.
package history

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klytics/sheetkit/internal/recovery"
	"github.com/klytics/sheetkit/internal/refine"
)

// FileName is the history file inside the config directory.
const FileName = "history.jsonl"

// Entry is one refine request.
type Entry struct {
	Time         time.Time `json:"time"`
	ID           string    `json:"id,omitempty"`
	Command      string    `json:"command"`
	File         string    `json:"file,omitempty"`
	Instruction  string    `json:"instruction"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model,omitempty"`
	Status       string    `json:"status"` // "recovered", "unrecovered", "error"
	Reason       string    `json:"reason,omitempty"`
	Output       string    `json:"output,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	InputTokens  int       `json:"input_tokens,omitempty"`
	OutputTokens int       `json:"output_tokens,omitempty"`
}

// NewEntry describes one refine attempt. res and err may both be set when
// the failure came after the reply, such as a save error.
func NewEntry(command, provider, file, instruction, output string, res *refine.Result, err error) Entry {
	e := Entry{
		Command:     command,
		File:        file,
		Instruction: instruction,
		Provider:    provider,
		Output:      output,
		Status:      "error",
	}
	if res != nil {
		e.ID = res.ID.String()
		e.Status = res.Outcome.Status()
		e.DurationMs = res.Duration.Milliseconds()
		if res.Reply != nil {
			e.Model = res.Reply.Model
			e.InputTokens = res.Reply.InputTokens
			e.OutputTokens = res.Reply.OutputTokens
		}
		if u, ok := res.Outcome.(recovery.Unrecovered); ok {
			e.Reason = u.Reason.String()
		}
	}
	// An error after the reply arrived, such as a failed save, still marks
	// the request as failed.
	if err != nil {
		e.Status = "error"
		e.Reason = string(refine.Classify(err))
	}
	return e
}

// FileEntry is NewEntry for a file refined by RefineFile.
func FileEntry(command, provider, instruction string, fr *refine.FileResult) Entry {
	return NewEntry(command, provider, fr.Source, instruction, fr.Output, fr.Result, fr.Err)
}

// Logger appends entries to a file. A disabled Logger or one with no path
// does nothing. Safe for concurrent use.
type Logger struct {
	FilePath string
	Enabled  bool

	mu sync.Mutex
}

// DefaultPath returns the history file inside dir.
func DefaultPath(dir string) string {
	return filepath.Join(dir, FileName)
}

// NewLogger creates a Logger.
func NewLogger(filePath string, enabled bool) *Logger {
	return &Logger{FilePath: filePath, Enabled: enabled}
}

// Record writes a single entry. It is best effort: a history that cannot be
// written never fails the request it describes.
func (l *Logger) Record(_ context.Context, e Entry) {
	if l == nil || !l.Enabled || l.FilePath == "" {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.Instruction = Redact(e.Instruction)

	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.FilePath), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(l.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.Write(data)
}

// ReadEntries reads all entries from the file. A missing file is an empty
// history.
func ReadEntries(filePath string) ([]Entry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue // skip malformed lines
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Filter selects entries for listing.
type Filter struct {
	Since  time.Time
	Status string
	File   string // substring of the file path
	Limit  int    // most recent N; 0 keeps all
}

// FilterEntries returns entries matching f, oldest first.
func FilterEntries(entries []Entry, f Filter) []Entry {
	var result []Entry
	for _, e := range entries {
		if !f.Since.IsZero() && e.Time.Before(f.Since) {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.File != "" && !strings.Contains(e.File, f.File) {
			continue
		}
		result = append(result, e)
	}
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[len(result)-f.Limit:]
	}
	return result
}

// Clear truncates the history file.
func Clear(filePath string) error {
	err := os.Truncate(filePath, 0)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// sensitivePatterns are word prefixes that indicate pasted secrets.
var sensitivePatterns = []string{"sk-", "gsk_", "sk_live_"}

// Redact replaces words in an instruction that look like API keys.
func Redact(text string) string {
	fields := strings.Fields(text)
	changed := false
	for i, w := range fields {
		for _, pat := range sensitivePatterns {
			if strings.HasPrefix(w, pat) && len(w) > len(pat) {
				fields[i] = "[REDACTED]"
				changed = true
				break
			}
		}
	}
	if !changed {
		return text
	}
	return strings.Join(fields, " ")
}
