package incident

import (
	"regexp"
	"strings"
	"time"
)

// ObservationFormat tags how a legacy log line was written.
type ObservationFormat string

const (
	// FormatBracketed is "[<timestamp>] <user>: <message>", user optional.
	FormatBracketed ObservationFormat = "bracketed"
	// FormatDashed is "<timestamp> - <message>".
	FormatDashed ObservationFormat = "dashed"
	// FormatPlain is any other line; it carries no timestamp and no user.
	FormatPlain ObservationFormat = "plain"
)

// Observation is one parsed line of the legacy observation log.
type Observation struct {
	Line      int
	Format    ObservationFormat
	Timestamp *time.Time
	User      string
	Message   string
	Raw       string
	// Malformed is set when the line looked timestamped but the timestamp did not parse.
	Malformed bool
}

var (
	bracketedLine = regexp.MustCompile(`^\[([^\]]*)\]\s*(.*)$`)
	bracketedUser = regexp.MustCompile(`^([^:\[\]]{1,60}?):\s*(.*)$`)
	dashedLine    = regexp.MustCompile(`^(\d{4}-\d{1,2}-\d{1,2}[T ]\d{1,2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?)\s+-\s+(.*)$`)
)

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z0700",
}

var localLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-1-2 15:04",
	"2006-1-2 15:04:05",
}

// ParseObservationTimestamp accepts the ISO-like forms found in legacy logs.
// Timestamps without an offset are read in loc.
func ParseObservationTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range zonedLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	for _, layout := range localLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ParseObservationLine tries the bracketed, dashed and plain formats in that order.
// It never fails: a bad timestamp degrades the line to a plain observation.
func ParseObservationLine(line string, loc *time.Location) Observation {
	raw := strings.TrimRight(line, "\r")
	trimmed := strings.TrimSpace(raw)
	obs := Observation{Format: FormatPlain, Message: trimmed, Raw: raw}

	if match := bracketedLine.FindStringSubmatch(trimmed); match != nil {
		ts, ok := ParseObservationTimestamp(match[1], loc)
		if !ok {
			obs.Malformed = true
			return obs
		}
		obs.Format = FormatBracketed
		obs.Timestamp = &ts
		obs.Message = strings.TrimSpace(match[2])
		if user := bracketedUser.FindStringSubmatch(obs.Message); user != nil {
			obs.User = strings.TrimSpace(user[1])
			obs.Message = strings.TrimSpace(user[2])
		}
		return obs
	}

	if match := dashedLine.FindStringSubmatch(trimmed); match != nil {
		ts, ok := ParseObservationTimestamp(match[1], loc)
		if !ok {
			obs.Malformed = true
			return obs
		}
		obs.Format = FormatDashed
		obs.Timestamp = &ts
		obs.Message = strings.TrimSpace(match[2])
		return obs
	}

	return obs
}

// ParseObservationLog parses every non-blank line; Line is 1-based in the original text.
func ParseObservationLog(text string, loc *time.Location) []Observation {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	out := make([]Observation, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		obs := ParseObservationLine(line, loc)
		obs.Line = i + 1
		out = append(out, obs)
	}
	return out
}

// FormatObservation renders a line in the bracketed format the parser reads back.
func FormatObservation(at time.Time, user string, message string, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	stamp := at.In(loc).Format("2006-01-02 15:04")
	user = strings.TrimSpace(strings.ReplaceAll(user, ":", ""))
	message = strings.Join(strings.Fields(message), " ")
	if user == "" {
		return "[" + stamp + "] " + message
	}
	return "[" + stamp + "] " + user + ": " + message
}
