// Package render turns a meeting record into notification text.
// Rendering is pure; it never touches the network or the ledger.
package render

import (
	"fmt"
	"strings"
	"time"

	"granomail/internal/meeting"
)

const subjectPrefix = "Granola Meeting: "

// Subject formats the email subject line:
//
//	Granola Meeting: <title> - <YYYY-MM-DD>
//
// The date is the meeting start date and is omitted when unknown.
func Subject(m meeting.Meeting) string {
	var date string
	if m.StartTime != nil {
		date = m.StartTime.Format("2006-01-02")
	}
	return fmt.Sprintf("%s%s - %s", subjectPrefix, m.DisplayTitle(), date)
}

// Body renders the meeting as a markdown document: header with times and
// duration, then the transcript.
func Body(m meeting.Meeting) string {
	var b strings.Builder

	b.WriteString("# ")
	b.WriteString(m.DisplayTitle())
	b.WriteString("\n\n")

	writeMetaLine(&b, "Start", m.StartTime)
	writeMetaLine(&b, "End", m.EndTime)
	if d := m.Duration(); d > 0 {
		fmt.Fprintf(&b, "- **Duration:** %s\n", formatDuration(d))
	}
	b.WriteString("\n")

	if m.HasTranscript() {
		b.WriteString("## Transcript\n\n")
		b.WriteString(strings.TrimSpace(m.Transcript))
		b.WriteString("\n")
	} else {
		b.WriteString("_No transcript available._\n")
	}

	return b.String()
}

func writeMetaLine(b *strings.Builder, label string, t *time.Time) {
	if t == nil {
		return
	}
	fmt.Fprintf(b, "- **%s:** %s\n", label, t.Format("2006-01-02 15:04 MST"))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}
