package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/klytics/sheetkit/cmd/version"
)

// Exit codes for consistent error reporting.
const (
	ExitOK          = 0 // success
	ExitUserError   = 1 // bad flags, missing file, unreadable spreadsheet, reply not a table
	ExitSystemError = 2 // network failure, IO error, provider error
)

// JSONResult is the standard JSON output envelope for all commands.
type JSONResult struct {
	OK      bool   `json:"ok"`
	Command string `json:"command"`
	Version string `json:"version"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// PrintJSON writes a standard success JSON result.
func PrintJSON(w io.Writer, cmd string, data any) error {
	return encode(w, JSONResult{
		OK:      true,
		Command: cmd,
		Version: version.Version,
		Data:    data,
	})
}

// PrintJSONError writes a standard error JSON result. kind is a stable
// machine-readable class such as "rate_limited".
func PrintJSONError(w io.Writer, cmd string, err error, kind string, code int) error {
	if encErr := encode(w, JSONResult{
		OK:      false,
		Command: cmd,
		Version: version.Version,
		Error:   err.Error(),
		Kind:    kind,
		Code:    code,
	}); encErr != nil {
		return fmt.Errorf("could not encode JSON error: %w", encErr)
	}
	return nil
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
