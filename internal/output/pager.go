package output

import (
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ShouldPage returns true if output should be piped through a pager: stdout
// is a terminal and the content is taller than it.
func ShouldPage(content string) bool {
	if !isTerminal() || os.Getenv("SHEETKIT_NO_PAGER") == "1" {
		return false
	}
	return strings.Count(content, "\n") > termHeight()
}

// Page pipes content through the user's preferred pager (PAGER env, or "less -RS").
func Page(content string) error {
	pager := os.Getenv("PAGER")
	args := []string{}
	if pager == "" {
		// -R keeps colours, -S stops wide rows from wrapping
		pager, args = "less", []string{"-RS"}
	}

	cmd := exec.Command(pager, args...)
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

func termHeight() int {
	if n, err := strconv.Atoi(os.Getenv("LINES")); err == nil && n > 0 {
		return n
	}
	return 40
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
