package logger

import (
	"fmt"
	"strings"
)

// SanitizeForLog neutralizes log injection in strings we did not produce
// ourselves (upload filenames, model output) before they reach a log line.
// Printable text, Unicode included, passes through. Newlines, tabs, and other
// control characters (ANSI escapes among them) are escaped so one value
// cannot forge extra log entries or drive the terminal.
func SanitizeForLog(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		if r >= 32 && r != 127 {
			b.WriteRune(r)
			continue
		}
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			fmt.Fprintf(&b, `\x%02x`, r)
		}
	}
	return b.String()
}
