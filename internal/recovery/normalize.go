package recovery

import "strings"

// normalize strips a BOM, surrounding blank lines and one enclosing code
// fence. It returns the remaining text and the number of lines removed from
// the top, so parser line numbers can be reported against the raw reply.
func normalize(text string) (string, int) {
	text = strings.TrimPrefix(text, "\ufeff")
	lines := strings.Split(text, "\n")

	first, last := trimBlank(lines, 0, len(lines)-1)
	if first > last {
		return "", 0
	}

	if isFenceOpen(lines[first]) && last > first && strings.TrimSpace(lines[last]) == "```" {
		first, last = trimBlank(lines, first+1, last-1)
		if first > last {
			return "", 0
		}
	}

	return strings.Join(lines[first:last+1], "\n") + "\n", first
}

func trimBlank(lines []string, first, last int) (int, int) {
	for first <= last && strings.TrimSpace(lines[first]) == "" {
		first++
	}
	for last >= first && strings.TrimSpace(lines[last]) == "" {
		last--
	}
	return first, last
}

// isFenceOpen matches ``` optionally followed by a language tag such as csv.
func isFenceOpen(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "```") {
		return false
	}
	tag := strings.TrimPrefix(line, "```")
	return !strings.ContainsAny(tag, " ,`")
}
