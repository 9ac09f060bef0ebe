// Package notify formats attendance rosters and delivers them to a
// destination address through a queue drained by a background sender.
package notify

import (
	"strings"

	"github.com/kozaktomas/rollcall/internal/attendance"
)

// Template holds the fixed lines of a roster message.
type Template struct {
	Header       string `yaml:"header"`
	AbsentHeader string `yaml:"absent_header"`
	AllPresent   string `yaml:"all_present"`
}

// FormatRoster renders a round summary: the header, one line per present
// identity in detection order, a blank line, and then either the absent list
// or the all-present line.
func FormatRoster(tpl Template, s attendance.Summary) string {
	var b strings.Builder

	b.WriteString(tpl.Header)
	b.WriteByte('\n')
	for _, e := range s.Present {
		b.WriteString(e.Identity)
		b.WriteString(" at ")
		b.WriteString(e.Time.Format(attendance.TimeLayout))
		b.WriteString(" on ")
		b.WriteString(e.Time.Format(attendance.DateLayout))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	if len(s.Absent) > 0 {
		b.WriteString(tpl.AbsentHeader)
		b.WriteByte('\n')
		for _, id := range s.Absent {
			b.WriteString(id)
			b.WriteByte('\n')
		}
	} else {
		b.WriteString(tpl.AllPresent)
	}

	return b.String()
}
