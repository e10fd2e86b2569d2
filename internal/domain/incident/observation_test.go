package incident

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseObservationLineFormats(t *testing.T) {
	at := func(h, m int) *time.Time {
		ts := time.Date(2024, 1, 15, h, m, 0, 0, time.UTC)
		return &ts
	}

	cases := []struct {
		line string
		want Observation
	}{
		{
			line: "[2024-01-15 10:30] Ana: Revisado motor",
			want: Observation{Format: FormatBracketed, Timestamp: at(10, 30), User: "Ana", Message: "Revisado motor"},
		},
		{
			line: "[2024-01-15 10:30] sin usuario",
			want: Observation{Format: FormatBracketed, Timestamp: at(10, 30), Message: "sin usuario"},
		},
		{
			line: "2024-01-15T11:05:00Z - Cliente llamó",
			want: Observation{Format: FormatDashed, Timestamp: at(11, 5), Message: "Cliente llamó"},
		},
		{
			line: "Se revisó el motor",
			want: Observation{Format: FormatPlain, Message: "Se revisó el motor"},
		},
		{
			line: "[ayer por la tarde] Ana: algo",
			want: Observation{Format: FormatPlain, Message: "[ayer por la tarde] Ana: algo", Malformed: true},
		},
	}

	for _, c := range cases {
		got := ParseObservationLine(c.line, time.UTC)
		c.want.Raw = c.line
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Fatalf("ParseObservationLine(%q) mismatch (-want +got):\n%s", c.line, diff)
		}
	}
}

func TestParseObservationTimestampUsesLocation(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	ts, ok := ParseObservationTimestamp("2024-01-15 10:30", madrid)
	if !ok {
		t.Fatalf("ParseObservationTimestamp() ok = false")
	}
	if want := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC); !ts.Equal(want) {
		t.Fatalf("ParseObservationTimestamp() = %v, want %v", ts.UTC(), want)
	}

	zoned, ok := ParseObservationTimestamp("2024-01-15T10:30:00+02:00", madrid)
	if !ok || !zoned.Equal(time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("ParseObservationTimestamp(offset) = %v, %v", zoned, ok)
	}
}

func TestParseObservationLogSkipsBlankLines(t *testing.T) {
	text := "[2024-01-15 10:30] Ana: uno\n\n  \nlinea libre\r\n"
	got := ParseObservationLog(text, time.UTC)
	if len(got) != 2 {
		t.Fatalf("ParseObservationLog() len = %d, want 2", len(got))
	}
	if got[0].Line != 1 || got[1].Line != 4 || got[1].Message != "linea libre" {
		t.Fatalf("ParseObservationLog() = %#v", got)
	}
	if ParseObservationLog("   ", time.UTC) != nil {
		t.Fatalf("ParseObservationLog(blank) should be nil")
	}
}

func TestFormatObservationRoundTrips(t *testing.T) {
	at := time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC)
	line := FormatObservation(at, "Ana", "Revisado   motor", time.UTC)
	if line != "[2024-01-15 10:30] Ana: Revisado motor" {
		t.Fatalf("FormatObservation() = %q", line)
	}
	obs := ParseObservationLine(line, time.UTC)
	if obs.User != "Ana" || obs.Message != "Revisado motor" || obs.Timestamp == nil {
		t.Fatalf("ParseObservationLine(FormatObservation()) = %#v", obs)
	}
}
