package logs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"framebroker/internal/logging"
)

// Entry is one decoded JSON log record.
type Entry struct {
	Time      time.Time
	Level     slog.Level
	Component string
	Message   string
	Attrs     map[string]any
	Raw       string
}

// ParseEntry decodes a JSON log line. Lines that are not JSON objects return
// false.
func ParseEntry(line string) (Entry, bool) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return Entry{}, false
	}
	entry := Entry{Raw: line, Attrs: make(map[string]any, len(fields))}
	for key, value := range fields {
		switch key {
		case "ts", slog.TimeKey:
			if s, ok := value.(string); ok {
				entry.Time, _ = time.Parse(time.RFC3339Nano, s)
			}
		case slog.LevelKey:
			if s, ok := value.(string); ok {
				entry.Level = parseLevel(s)
			}
		case slog.MessageKey:
			entry.Message, _ = value.(string)
		case logging.FieldComponent:
			entry.Component, _ = value.(string)
		default:
			entry.Attrs[key] = value
		}
	}
	return entry, true
}

// Attr returns the string form of a structured field, or "" when absent.
func (e Entry) Attr(key string) string {
	value, ok := e.Attrs[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// Filter selects entries. Zero fields match everything; a nil MinLevel
// applies no level threshold.
type Filter struct {
	Component string
	MinLevel  *slog.Level
	SessionID string
	JobID     string
}

// AtLeast returns a copy of f that drops entries below level.
func (f Filter) AtLeast(level slog.Level) Filter {
	f.MinLevel = &level
	return f
}

// IsZero reports whether f matches every entry.
func (f Filter) IsZero() bool {
	return f.Component == "" && f.SessionID == "" && f.JobID == "" && f.MinLevel == nil
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Entry) bool {
	if f.MinLevel != nil && e.Level < *f.MinLevel {
		return false
	}
	if f.Component != "" && !strings.EqualFold(e.Component, f.Component) {
		return false
	}
	if f.SessionID != "" && e.Attr(logging.FieldSessionID) != f.SessionID {
		return false
	}
	if f.JobID != "" && !strings.HasPrefix(e.Attr(logging.FieldJobID), f.JobID) {
		return false
	}
	return true
}

// MatchLine parses line and applies the filter. Non-JSON lines only pass an
// empty filter.
func (f Filter) MatchLine(line string) bool {
	entry, ok := ParseEntry(line)
	if !ok {
		return f.IsZero()
	}
	return f.Match(entry)
}

// ParseLevel maps a level name to slog.Level. Unknown names map to debug so
// nothing is hidden by a typo.
func ParseLevel(name string) slog.Level {
	return parseLevel(name)
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// Format renders an entry as a single human-readable line:
// "15:04:05.000 LEVEL component message key=value ...".
func Format(e Entry) string {
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("15:04:05.000"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s", strings.ToUpper(e.Level.String()))
	if e.Component != "" {
		b.WriteByte(' ')
		b.WriteString(e.Component)
	}
	b.WriteByte(' ')
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Attrs))
	for key := range e.Attrs {
		if key == logging.FieldRunID || key == slog.SourceKey {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := e.Attr(key)
		if strings.ContainsAny(value, " \t\"=") {
			value = fmt.Sprintf("%q", value)
		}
		fmt.Fprintf(&b, " %s=%s", key, value)
	}
	return b.String()
}
