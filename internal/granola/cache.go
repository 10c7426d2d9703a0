// Package granola reads the local Granola cache document and exposes it
// as meeting records.
//
// The cache (cache-v3.json) is a JSON wrapper {"cache": "<json string>"}
// whose value is itself JSON text: a state object holding "documents"
// (meeting metadata keyed by id) and "transcripts" (segment lists keyed
// by document id). The double encoding is a Granola implementation
// detail; everything downstream only sees meeting.Meeting values.
package granola

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"granomail/internal/meeting"
	logx "granomail/pkg/logx"
)

// Source is a meeting.Source backed by a Granola cache file.
type Source struct {
	path string
	loc  *time.Location
	log  logx.Logger
}

// NewSource builds a cache-backed source. Timestamps stored without a UTC
// offset are anchored to loc (nil means the system local timezone); this
// is deliberate and configurable rather than a silent default, since the
// cache is written by whatever machine ran the meeting.
func NewSource(path string, loc *time.Location, log logx.Logger) *Source {
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Source{path: path, loc: loc, log: log}
}

type cacheEnvelope struct {
	Cache string `json:"cache"`
}

type cacheState struct {
	State struct {
		Documents   map[string]cacheDocument  `json:"documents"`
		Transcripts map[string][]cacheSegment `json:"transcripts"`
	} `json:"state"`
}

type cacheDocument struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`

	GoogleCalendarEvent *struct {
		Start *calendarInstant `json:"start"`
		End   *calendarInstant `json:"end"`
	} `json:"google_calendar_event"`
}

type calendarInstant struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

type cacheSegment struct {
	Text           string `json:"text"`
	Source         string `json:"source"`
	StartTimestamp string `json:"start_timestamp"`
	EndTimestamp   string `json:"end_timestamp"`
}

// FetchAll parses the cache file and returns all meeting records in a
// stable (id-sorted) order. Any read or parse failure is returned as-is:
// an unreadable cache is fatal for the invocation, per the run contract.
func (s *Source) FetchAll(ctx context.Context) ([]meeting.Meeting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read granola cache %s: %w", s.path, err)
	}

	var env cacheEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse granola cache %s: %w", s.path, err)
	}
	if strings.TrimSpace(env.Cache) == "" {
		return nil, fmt.Errorf("parse granola cache %s: empty cache field", s.path)
	}

	var state cacheState
	if err := json.Unmarshal([]byte(env.Cache), &state); err != nil {
		return nil, fmt.Errorf("parse granola cache %s: inner state: %w", s.path, err)
	}

	out := make([]meeting.Meeting, 0, len(state.State.Documents))
	for id, doc := range state.State.Documents {
		if strings.TrimSpace(id) == "" {
			continue
		}
		m := s.toMeeting(id, doc, state.State.Transcripts[id])
		out = append(out, m)
	}

	// Map iteration order is random; the scheduler wants a stable order so
	// forced-prefix matches and reports are reproducible between runs.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	s.log.Debug("granola cache loaded",
		logx.String("path", s.path),
		logx.Int("meetings", len(out)))
	return out, nil
}

func (s *Source) toMeeting(id string, doc cacheDocument, segs []cacheSegment) meeting.Meeting {
	m := meeting.Meeting{ID: id, Title: doc.Title}

	// Start: prefer the calendar event, fall back to document creation.
	if t, ok := s.parseInstant(calendarTime(docStart(doc))); ok {
		m.StartTime = &t
	} else if t, ok := s.parseInstant(doc.CreatedAt); ok {
		m.StartTime = &t
	}

	// End: prefer the calendar event, fall back to the last transcript
	// segment. A meeting with neither is treated as still open.
	if t, ok := s.parseInstant(calendarTime(docEnd(doc))); ok {
		m.EndTime = &t
	} else if t, ok := s.lastSegmentEnd(segs); ok {
		m.EndTime = &t
	}

	m.Transcript = joinSegments(segs)
	return m
}

func docStart(doc cacheDocument) *calendarInstant {
	if doc.GoogleCalendarEvent == nil {
		return nil
	}
	return doc.GoogleCalendarEvent.Start
}

func docEnd(doc cacheDocument) *calendarInstant {
	if doc.GoogleCalendarEvent == nil {
		return nil
	}
	return doc.GoogleCalendarEvent.End
}

func calendarTime(ci *calendarInstant) string {
	if ci == nil {
		return ""
	}
	if ci.DateTime != "" {
		return ci.DateTime
	}
	// All-day events only carry a date; callers treat the parse failure as
	// "no usable instant".
	return ""
}

func (s *Source) lastSegmentEnd(segs []cacheSegment) (time.Time, bool) {
	var best time.Time
	found := false
	for _, seg := range segs {
		t, ok := s.parseInstant(seg.EndTimestamp)
		if !ok {
			t, ok = s.parseInstant(seg.StartTimestamp)
		}
		if ok && (!found || t.After(best)) {
			best = t
			found = true
		}
	}
	return best, found
}

// instantLayouts lists accepted timestamp shapes, offset-carrying first.
// The offset-less layouts are parsed in the configured location.
var instantLayouts = []struct {
	layout string
	naive  bool
}{
	{layout: time.RFC3339Nano},
	{layout: time.RFC3339},
	{layout: "2006-01-02T15:04:05.999999999", naive: true},
	{layout: "2006-01-02T15:04:05", naive: true},
	{layout: "2006-01-02 15:04:05", naive: true},
}

func (s *Source) parseInstant(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, l := range instantLayouts {
		var (
			t   time.Time
			err error
		)
		if l.naive {
			t, err = time.ParseInLocation(l.layout, raw, s.loc)
		} else {
			t, err = time.Parse(l.layout, raw)
		}
		if err == nil {
			return t, true
		}
	}
	s.log.Trace("unparseable cache timestamp", logx.String("value", raw))
	return time.Time{}, false
}

func joinSegments(segs []cacheSegment) string {
	if len(segs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, seg := range segs {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		if seg.Source != "" {
			b.WriteString(speakerLabel(seg.Source))
			b.WriteString(": ")
		}
		b.WriteString(text)
	}
	return b.String()
}

// speakerLabel maps Granola's audio channel names to readable labels.
func speakerLabel(source string) string {
	switch strings.ToLower(source) {
	case "microphone":
		return "Me"
	case "system":
		return "Them"
	default:
		return source
	}
}
