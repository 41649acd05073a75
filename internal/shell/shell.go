// Package shell provides the interactive sheetkit REPL.
//
// A Session owns one current table. Instructions are refined against it and
// the proposed result is held until the user accepts or discards it.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/klytics/sheetkit/internal/formats/xlsx"
	"github.com/klytics/sheetkit/internal/history"
	"github.com/klytics/sheetkit/internal/output"
	"github.com/klytics/sheetkit/internal/recipes"
	"github.com/klytics/sheetkit/internal/recovery"
	"github.com/klytics/sheetkit/internal/refine"
	"github.com/klytics/sheetkit/internal/table"
)

// ErrNoTable is returned by commands that need a loaded table.
var ErrNoTable = errors.New("no table loaded: use 'load <file.xlsx>'")

const defaultPreviewRows = 10

// Session manages an interactive sheetkit shell session.
type Session struct {
	Refiner *refine.Refiner
	Recipes *recipes.Book
	// History, when set, records every ask.
	History *history.Logger

	// Path is where the current table came from; Save defaults next to it.
	Path    string
	Table   *table.Table
	Pending *refine.Result

	CommandHistory []string
	HistoryFile    string
	StartTime      time.Time
	PreviewRows    int

	// KnownCommands is the list of shell commands for completion.
	KnownCommands []string

	undo []*table.Table
}

// NewSession creates a new interactive session around ref. t may be nil
// when no file was given on the command line.
func NewSession(ref *refine.Refiner, t *table.Table, path string) *Session {
	home, _ := os.UserHomeDir()
	histFile := filepath.Join(home, ".sheetkit", "shell_history")
	os.MkdirAll(filepath.Dir(histFile), 0755)

	return &Session{
		Refiner:     ref,
		Path:        path,
		Table:       t,
		HistoryFile: histFile,
		StartTime:   time.Now(),
		PreviewRows: defaultPreviewRows,
		KnownCommands: []string{
			"load", "show", "info", "ask", "recipe", "accept", "discard",
			"raw", "undo", "clean", "save", "csv",
			"help", "history", "exit", "quit",
		},
	}
}

// Run starts the REPL loop. Blocks until 'exit' or Ctrl+D.
func (s *Session) Run(ctx context.Context) error {
	if s.Refiner == nil {
		return fmt.Errorf("shell refiner not configured")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sheetkit> ",
		HistoryFile:     s.HistoryFile,
		AutoComplete:    readline.NewPrefixCompleter(s.buildCompleter()...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println("sheetkit interactive shell")
	fmt.Println("Type an instruction to refine the table, 'help' for commands, 'exit' to quit.")
	if s.Table != nil {
		fmt.Printf("Loaded %s (%d rows, %d columns)\n", s.label(), s.Table.NumRows(), s.Table.NumCols())
	}
	fmt.Println()

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or interrupt
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.CommandHistory = append(s.CommandHistory, line)

		switch line {
		case "exit", "quit":
			if s.Pending != nil {
				fmt.Println("A refined table is pending; it was not accepted.")
			}
			fmt.Printf("\nSession ended. %d commands run in %s.\n",
				len(s.CommandHistory)-1, formatDuration(time.Since(s.StartTime)))
			return nil
		case "history":
			for i, cmd := range s.CommandHistory {
				fmt.Printf("  %d  %s\n", i+1, cmd)
			}
			continue
		}

		out, err := s.Eval(ctx, line)
		if out != "" {
			fmt.Print(out)
			if !strings.HasSuffix(out, "\n") {
				fmt.Println()
			}
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", refine.UserMessage(err))
		}
	}
	return nil
}

// Eval runs a single command line and returns what it printed. A line that
// does not start with a known command is treated as an instruction.
func (s *Session) Eval(ctx context.Context, line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	var buf bytes.Buffer
	var err error
	switch name {
	case "help":
		s.printHelp(&buf)
	case "load":
		err = s.load(&buf, rest)
	case "show":
		err = s.show(&buf, rest)
	case "info":
		err = s.info(&buf)
	case "csv":
		if s.Table == nil {
			return "", ErrNoTable
		}
		err = s.Table.WriteCSV(&buf)
	case "ask":
		err = s.ask(ctx, &buf, rest)
	case "recipe":
		err = s.recipe(ctx, &buf, rest)
	case "accept":
		err = s.accept(&buf)
	case "discard":
		if s.Pending == nil {
			return "", fmt.Errorf("nothing to discard")
		}
		s.Pending = nil
		fmt.Fprintln(&buf, "Discarded the refined table.")
	case "raw":
		if s.Pending == nil {
			return "", fmt.Errorf("no reply yet: ask for a change first")
		}
		fmt.Fprintln(&buf, s.Pending.Reply.Text)
	case "undo":
		err = s.revert(&buf)
	case "clean":
		err = s.clean(&buf, rest)
	case "save":
		err = s.save(&buf, rest)
	default:
		err = s.ask(ctx, &buf, line)
	}
	return buf.String(), err
}

func (s *Session) load(w io.Writer, arg string) error {
	path, sheet, _ := strings.Cut(arg, " ")
	if path == "" {
		return fmt.Errorf("usage: load <file.xlsx> [sheet]")
	}
	t, err := xlsx.LoadFile(path, xlsx.LoadOptions{Sheet: strings.TrimSpace(sheet)})
	if err != nil {
		return err
	}
	s.replace(t)
	s.Path = path
	s.Pending = nil
	fmt.Fprintf(w, "Loaded %s (%d rows, %d columns)\n", path, t.NumRows(), t.NumCols())
	return nil
}

func (s *Session) show(w io.Writer, arg string) error {
	if s.Table == nil {
		return ErrNoTable
	}
	rows := s.PreviewRows
	switch arg {
	case "":
	case "all":
		rows = 0
	default:
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return fmt.Errorf("usage: show [rows|all]")
		}
		rows = n
	}
	output.PrintTable(w, s.Table, output.TableOptions{MaxRows: rows})
	return nil
}

func (s *Session) info(w io.Writer) error {
	if s.Table == nil {
		return ErrNoTable
	}
	fmt.Fprintf(w, "Source:  %s\n", s.label())
	fmt.Fprintf(w, "Rows:    %d\n", s.Table.NumRows())
	fmt.Fprintf(w, "Columns: %s\n", strings.Join(s.Table.Columns(), ", "))
	if s.Pending != nil {
		fmt.Fprintf(w, "Pending: %s\n", refine.Describe(s.Pending))
	}
	return nil
}

// ask refines the current table. A recovered result is held in Pending until
// accepted; an unrecovered one prints the raw reply and diagnostic.
func (s *Session) ask(ctx context.Context, w io.Writer, instruction string) error {
	if s.Table == nil {
		return ErrNoTable
	}
	res, err := s.Refiner.Refine(ctx, s.Table, instruction)
	s.History.Record(ctx, history.NewEntry("sheetkit shell", s.Refiner.Provider.Name(), s.Path, instruction, "", res, err))
	if err != nil {
		return err
	}
	s.Pending = res

	switch out := res.Outcome.(type) {
	case recovery.Recovered:
		output.PrintTable(w, out.Table, output.TableOptions{MaxRows: s.PreviewRows, Title: "Proposed table"})
		fmt.Fprintln(w, "Type 'accept' to keep it or 'discard' to drop it.")
	case recovery.Unrecovered:
		fmt.Fprintln(w, "The reply could not be read as a table.")
		fmt.Fprintf(w, "Reason: %s\n\n", out.Diagnostic)
		fmt.Fprintln(w, out.Raw)
	}
	return nil
}

func (s *Session) recipe(ctx context.Context, w io.Writer, name string) error {
	if s.Recipes == nil {
		return fmt.Errorf("no recipe book configured")
	}
	if name == "" {
		for _, r := range s.Recipes.List() {
			fmt.Fprintf(w, "  %-18s %s\n", r.Name, r.Description)
		}
		return nil
	}
	r, err := s.Recipes.Find(name)
	if err != nil {
		return err
	}
	return s.ask(ctx, w, r.Instruction)
}

func (s *Session) accept(w io.Writer) error {
	if s.Pending == nil {
		return fmt.Errorf("nothing to accept: ask for a change first")
	}
	t := s.Pending.Table()
	if t == nil {
		return fmt.Errorf("the last reply was not a table; nothing to accept")
	}
	s.replace(t)
	s.Pending = nil
	fmt.Fprintf(w, "Accepted (%d rows, %d columns). Use 'save' to write it.\n", t.NumRows(), t.NumCols())
	return nil
}

func (s *Session) revert(w io.Writer) error {
	if len(s.undo) == 0 {
		return fmt.Errorf("nothing to undo")
	}
	s.Table = s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	fmt.Fprintf(w, "Restored previous table (%d rows, %d columns)\n", s.Table.NumRows(), s.Table.NumCols())
	return nil
}

func (s *Session) clean(w io.Writer, arg string) error {
	if s.Table == nil {
		return ErrNoTable
	}
	t := s.Table
	switch arg {
	case "missing":
		t = t.DropMissing()
	case "headers":
		t = t.NormalizeHeaders()
	case "":
		t = t.NormalizeHeaders().DropMissing()
	default:
		return fmt.Errorf("usage: clean [missing|headers]")
	}
	dropped := s.Table.NumRows() - t.NumRows()
	s.replace(t)
	fmt.Fprintf(w, "Cleaned: %d rows removed, %d remain\n", dropped, t.NumRows())
	return nil
}

func (s *Session) save(w io.Writer, path string) error {
	if s.Table == nil {
		return ErrNoTable
	}
	if path == "" {
		path = xlsx.DefaultFilename
		if s.Path != "" {
			path = filepath.Join(filepath.Dir(s.Path), xlsx.DefaultFilename)
		}
	}
	if err := xlsx.WriteFile(s.Table, path); err != nil {
		return err
	}
	fmt.Fprintf(w, "Saved %d rows to %s\n", s.Table.NumRows(), path)
	return nil
}

// replace swaps in a new current table, keeping the old one for undo.
func (s *Session) replace(t *table.Table) {
	if s.Table != nil {
		s.undo = append(s.undo, s.Table)
	}
	s.Table = t
}

func (s *Session) label() string {
	if s.Path == "" {
		return "(unsaved)"
	}
	return s.Path
}

// Complete returns tab-completion candidates for the given input.
func (s *Session) Complete(input string) []string {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return s.KnownCommands
	}

	if len(parts) == 1 && !strings.HasSuffix(input, " ") {
		var matches []string
		for _, cmd := range s.KnownCommands {
			if strings.HasPrefix(cmd, parts[0]) {
				matches = append(matches, cmd)
			}
		}
		sort.Strings(matches)
		return matches
	}

	if len(parts) == 2 && !strings.HasSuffix(input, " ") {
		var matches []string
		for _, sub := range s.argumentsFor(parts[0]) {
			if strings.HasPrefix(sub, parts[1]) {
				matches = append(matches, sub)
			}
		}
		return matches
	}
	return nil
}

func (s *Session) argumentsFor(cmd string) []string {
	switch cmd {
	case "clean":
		return []string{"missing", "headers"}
	case "show":
		return []string{"all"}
	case "recipe":
		if s.Recipes == nil {
			return nil
		}
		var names []string
		for _, r := range s.Recipes.List() {
			names = append(names, r.Name)
		}
		return names
	}
	return nil
}

func (s *Session) printHelp(w io.Writer) {
	fmt.Fprintln(w, "Anything that is not a command is sent as an instruction.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  load <file> [sheet]   load a spreadsheet")
	fmt.Fprintln(w, "  show [rows|all]       preview the current table")
	fmt.Fprintln(w, "  info                  source, size and columns")
	fmt.Fprintln(w, "  csv                   print the table as CSV")
	fmt.Fprintln(w, "  ask <instruction>     refine the current table")
	fmt.Fprintln(w, "  recipe [name]         list recipes, or run one")
	fmt.Fprintln(w, "  accept | discard      keep or drop the proposed table")
	fmt.Fprintln(w, "  raw                   print the last model reply")
	fmt.Fprintln(w, "  undo                  restore the previous table")
	fmt.Fprintln(w, "  clean [missing|headers]")
	fmt.Fprintln(w, "  save [file]           write the table as .xlsx")
	fmt.Fprintln(w, "  history | exit")
}

func (s *Session) buildCompleter() []readline.PrefixCompleterInterface {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range s.KnownCommands {
		var subItems []readline.PrefixCompleterInterface
		for _, sub := range s.argumentsFor(cmd) {
			subItems = append(subItems, readline.PcItem(sub))
		}
		items = append(items, readline.PcItem(cmd, subItems...))
	}
	return items
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	m := int(d.Minutes())
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", m, sec)
}
