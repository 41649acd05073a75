package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/klytics/sheetkit/cmd/cmdutil"
	"github.com/klytics/sheetkit/internal/ai"
	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/history"
	"github.com/klytics/sheetkit/internal/output"
	"github.com/klytics/sheetkit/internal/refine"
	"github.com/klytics/sheetkit/internal/table"
)

// isolate points the config directory at a fresh home and selects a fake
// Ollama server that answers every chat request with reply.
func isolate(t *testing.T, reply string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SHEETKIT_SYSTEM_CONFIG", filepath.Join(home, "none.yaml"))
	t.Setenv("SHEETKIT_NO_PROGRESS", "1")
	t.Setenv("SHEETKIT_PROVIDER", "ollama")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":   "fake-llama",
			"message": map[string]string{"role": "assistant", "content": reply},
		})
	}))
	t.Cleanup(srv.Close)
	t.Setenv("SHEETKIT_BASE_URL", srv.URL)

	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
	return home
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	closeLog()
	return out.String(), err
}

func writeSheet(t *testing.T, dir, name string) string {
	t.Helper()
	tbl, err := table.FromRecords([]string{"name", "age"}, [][]string{{"Sara", "30"}, {"Ali", ""}, {"John", "22"}})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := xlsx.WriteFile(tbl, path); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestAllCommandsExist validates that every command appears in --help.
func TestAllCommandsExist(t *testing.T) {
	isolate(t, "")
	commands := []string{
		"read", "refine", "clean", "export", "serve", "shell", "watch",
		"recipe", "history", "config", "doctor", "completion", "version",
	}
	out, err := execute(t, "--help")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range commands {
		if !strings.Contains(out, name) {
			t.Errorf("command %q not found in --help output", name)
		}
	}
}

// TestAllCommandsHaveHelp validates every command accepts --help.
func TestAllCommandsHaveHelp(t *testing.T) {
	isolate(t, "")
	paths := [][]string{
		{"read"}, {"refine"}, {"clean"}, {"export"}, {"serve"}, {"shell"},
		{"watch", "start"}, {"watch", "stop"}, {"watch", "status"}, {"watch", "config"},
		{"recipe", "list"}, {"recipe", "show"}, {"recipe", "add"}, {"recipe", "remove"},
		{"history"},
		{"config", "init"}, {"config", "show"}, {"config", "validate"}, {"config", "env"},
		{"completion", "bash"}, {"doctor"}, {"version"},
	}
	for _, path := range paths {
		t.Run(strings.Join(path, "_"), func(t *testing.T) {
			if _, err := execute(t, append(path, "--help")...); err != nil {
				t.Errorf("sheetkit %s --help: %v", strings.Join(path, " "), err)
			}
		})
	}
}

func TestVersionOutput(t *testing.T) {
	isolate(t, "")
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "sheetkit ") {
		t.Errorf("version output = %q", out)
	}
}

func TestReadJSON(t *testing.T) {
	isolate(t, "")
	src := writeSheet(t, t.TempDir(), "people.xlsx")

	out, err := execute(t, "read", src, "--json")
	if err != nil {
		t.Fatal(err)
	}
	var env output.JSONResult
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("--json output is not valid JSON: %v\n%s", err, out)
	}
	if !env.OK || env.Command != "read" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestReadCSV(t *testing.T) {
	isolate(t, "")
	src := writeSheet(t, t.TempDir(), "people.xlsx")

	out, err := execute(t, "read", src, "--csv", "--rows", "1")
	if err != nil {
		t.Fatal(err)
	}
	if out != "name,age\nSara,30\n" {
		t.Errorf("csv = %q", out)
	}
}

func TestReadRejectsOtherFormats(t *testing.T) {
	isolate(t, "")
	if _, err := execute(t, "read", "notes.docx"); err == nil {
		t.Error("expected an error for a non-.xlsx file")
	}
}

func TestClean(t *testing.T) {
	isolate(t, "")
	dir := t.TempDir()
	src := writeSheet(t, dir, "people.xlsx")
	dst := filepath.Join(dir, "clean.xlsx")

	if _, err := execute(t, "clean", src, "-o", dst); err != nil {
		t.Fatal(err)
	}
	got, err := xlsx.LoadFile(dst, xlsx.LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got.NumRows() != 2 {
		t.Errorf("rows = %d, want 2", got.NumRows())
	}
	if cols := got.Columns(); cols[0] != "Name" || cols[1] != "Age" {
		t.Errorf("columns = %v", cols)
	}
}

func TestRefineRecovered(t *testing.T) {
	home := isolate(t, "```csv\nName,Age\nSara,30\nJohn,22\n```")
	dir := t.TempDir()
	src := writeSheet(t, dir, "people.xlsx")
	dst := filepath.Join(dir, "out.xlsx")

	out, err := execute(t, "refine", src, "-p", "drop rows with missing values", "-o", dst, "--preview", "0")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Saved 2 rows") {
		t.Errorf("output = %q", out)
	}
	got, err := xlsx.LoadFile(dst, xlsx.LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got.NumRows() != 2 {
		t.Errorf("rows = %d, want 2", got.NumRows())
	}

	entries, err := history.ReadEntries(filepath.Join(home, ".sheetkit", history.FileName))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Status != "recovered" || entries[0].Model != "fake-llama" {
		t.Errorf("history = %+v", entries)
	}
}

func TestRefineUnrecovered(t *testing.T) {
	isolate(t, "I removed the incomplete rows for you.")
	dir := t.TempDir()
	src := writeSheet(t, dir, "people.xlsx")
	dst := filepath.Join(dir, "out.xlsx")

	out, err := execute(t, "refine", src, "-p", "drop rows with missing values", "-o", dst)
	var reported *cmdutil.ReportedError
	if !errors.As(err, &reported) || reported.Code != output.ExitUserError {
		t.Fatalf("err = %v, want a reported user error", err)
	}
	if !errors.Is(err, refine.ErrNotATable) {
		t.Errorf("err = %v, want ErrNotATable", err)
	}
	if !strings.Contains(out, "I removed the incomplete rows for you.") {
		t.Errorf("raw reply not printed: %q", out)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("nothing should be exported without --keep-original")
	}

	if _, err := execute(t, "refine", src, "-p", "drop rows", "-o", dst, "--keep-original"); err == nil {
		t.Fatal("expected a reported error")
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("--keep-original should export the input: %v", err)
	}
}

func TestRefineNeedsInstruction(t *testing.T) {
	isolate(t, "")
	src := writeSheet(t, t.TempDir(), "people.xlsx")
	_, err := execute(t, "refine", src, "-p", "   ")
	if !errors.Is(err, refine.ErrEmptyInstruction) {
		t.Errorf("err = %v, want ErrEmptyInstruction", err)
	}
}

func TestRefineBatch(t *testing.T) {
	isolate(t, "Name,Age\nSara,30\n")
	dir := t.TempDir()
	a := writeSheet(t, dir, "q1.xlsx")
	b := writeSheet(t, dir, "q2.xlsx")
	out := filepath.Join(dir, "refined")

	if _, err := execute(t, "refine", a, b, "--recipe", "trim", "--out-dir", out); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"q1", "q2"} {
		if _, err := os.Stat(filepath.Join(out, name+refine.TableSuffix)); err != nil {
			t.Errorf("batch output missing: %v", err)
		}
	}
}

func TestRefineDoesNotOverwriteInput(t *testing.T) {
	isolate(t, "Name,Age\nSara,30\n")
	dir := t.TempDir()
	src := writeSheet(t, dir, xlsx.DefaultFilename)

	if _, err := execute(t, "refine", src, "-p", "drop rows with missing values", "--preview", "0"); err != nil {
		t.Fatal(err)
	}
	got, err := xlsx.LoadFile(filepath.Join(dir, "cleaned_data"+refine.TableSuffix), xlsx.LoadOptions{})
	if err != nil {
		t.Fatalf("expected the result next to the input: %v", err)
	}
	if got.NumRows() != 1 {
		t.Errorf("rows = %d, want 1", got.NumRows())
	}
	input, err := xlsx.LoadFile(src, xlsx.LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if input.NumRows() != 3 {
		t.Errorf("input was changed: %d rows", input.NumRows())
	}

	_, err = execute(t, "refine", src, "-p", "sort", "-o", src)
	if !errors.Is(err, cmdutil.ErrOverwriteInput) {
		t.Errorf("err = %v, want ErrOverwriteInput", err)
	}
}

func TestCleanDoesNotOverwriteInput(t *testing.T) {
	isolate(t, "")
	dir := t.TempDir()
	src := writeSheet(t, dir, xlsx.DefaultFilename)

	if _, err := execute(t, "clean", src); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cleaned_data"+refine.TableSuffix)); err != nil {
		t.Errorf("expected the result next to the input: %v", err)
	}
	input, err := xlsx.LoadFile(src, xlsx.LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if input.NumRows() != 3 {
		t.Errorf("input was changed: %d rows", input.NumRows())
	}
}

func TestRefineRejectsFlagsForOtherMode(t *testing.T) {
	isolate(t, "")
	dir := t.TempDir()
	a := writeSheet(t, dir, "q1.xlsx")
	b := writeSheet(t, dir, "q2.xlsx")

	tests := []struct {
		name string
		args []string
		flag string
	}{
		{"output with several files", []string{a, b, "-o", filepath.Join(dir, "x.xlsx")}, "--output"},
		{"sheet with several files", []string{a, b, "--sheet", "Sheet1"}, "--sheet"},
		{"keep-original with several files", []string{a, b, "--keep-original"}, "--keep-original"},
		{"out-dir with one file", []string{a, "--out-dir", dir}, "--out-dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"refine", "-p", "sort"}, tt.args...)
			_, err := execute(t, args...)
			if err == nil || !strings.Contains(err.Error(), tt.flag+" only applies") {
				t.Errorf("err = %v, want a %s usage error", err, tt.flag)
			}
		})
	}
}

func TestRefineSaveFailureIsRecorded(t *testing.T) {
	home := isolate(t, "Name,Age\nSara,30\n")
	dir := t.TempDir()
	src := writeSheet(t, dir, "people.xlsx")
	dst := filepath.Join(dir, "missing", "out.xlsx")

	if _, err := execute(t, "refine", src, "-p", "sort", "-o", dst); err == nil {
		t.Fatal("expected the save to fail")
	}
	entries, err := history.ReadEntries(filepath.Join(home, ".sheetkit", history.FileName))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Status != "error" || entries[0].Model != "fake-llama" {
		t.Errorf("history = %+v", entries)
	}
}

func TestExportReply(t *testing.T) {
	isolate(t, "")
	dir := t.TempDir()
	reply := filepath.Join(dir, "people"+refine.ReplySuffix)
	content := "the reply has a header (Name) but no data rows\n\nName,Age\nSara,30\n"
	if err := os.WriteFile(reply, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(dir, "fixed.xlsx")

	if _, err := execute(t, "export", reply, "-o", dst); err != nil {
		t.Fatal(err)
	}
	got, err := xlsx.LoadFile(dst, xlsx.LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got.NumRows() != 1 {
		t.Errorf("rows = %d, want 1", got.NumRows())
	}
}

func TestWatchStatusNotRunning(t *testing.T) {
	isolate(t, "")
	out, err := execute(t, "watch", "status")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "not running") {
		t.Errorf("output = %q", out)
	}
}

func TestConfigShowRuns(t *testing.T) {
	isolate(t, "")
	out, err := execute(t, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ollama") {
		t.Errorf("config show should report the provider:\n%s", out)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&ai.Error{Kind: ai.KindRateLimited, Provider: "groq", Status: 429}, output.ExitSystemError},
		{&ai.Error{Kind: ai.KindProvider, Provider: "openai", Status: 500}, output.ExitSystemError},
		{&ai.Error{Kind: ai.KindTransport, Provider: "ollama"}, output.ExitSystemError},
		{refine.ErrEmptyInstruction, output.ExitUserError},
		{&xlsx.LoadError{Err: errors.New("zip: not a valid zip file")}, output.ExitUserError},
		{errors.New("anything else"), output.ExitUserError},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
