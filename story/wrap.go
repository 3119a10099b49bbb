package story

import (
	"strings"
)

// Wrap splits text into lines of at most width runes. Runs of whitespace,
// including newlines, collapse to single spaces; a word longer than width
// is split across lines, first filling whatever room the current line has.
func Wrap(text string, width int) []string {
	if width < 1 {
		width = 1
	}

	var (
		lines []string
		line  []rune
	)
	for _, word := range strings.Fields(text) {
		w := []rune(word)
		for len(w) > 0 {
			sep := 0
			if len(line) > 0 {
				sep = 1
			}

			if len(line)+sep+len(w) <= width {
				if sep == 1 {
					line = append(line, ' ')
				}
				line = append(line, w...)
				w = nil
				continue
			}

			if len(w) > width {
				room := width - len(line) - sep
				if room < 1 {
					lines = append(lines, string(line))
					line = line[:0]
					continue
				}
				if sep == 1 {
					line = append(line, ' ')
				}
				line = append(line, w[:room]...)
				w = w[room:]
			}

			lines = append(lines, string(line))
			line = line[:0]
		}
	}
	if len(line) > 0 {
		lines = append(lines, string(line))
	}
	return lines
}

// Fill wraps text and joins the lines with newlines.
func Fill(text string, width int) string {
	return strings.Join(Wrap(text, width), "\n")
}
