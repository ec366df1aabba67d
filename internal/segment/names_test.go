package segment

import (
	"testing"
	"time"
)

func TestHourKey(t *testing.T) {
	ts := time.Date(2025, 12, 21, 23, 59, 58, 0, time.UTC)
	if got := HourKey(ts); got != "2025-12-21_23" {
		t.Errorf("HourKey = %q, want %q", got, "2025-12-21_23")
	}

	// Non-UTC input converts before formatting.
	loc := time.FixedZone("GST", 4*3600)
	ts = time.Date(2025, 12, 22, 1, 30, 0, 0, loc)
	if got := HourKey(ts); got != "2025-12-21_21" {
		t.Errorf("HourKey(non-UTC) = %q, want %q", got, "2025-12-21_21")
	}
}

func TestKeyTimeRoundTrip(t *testing.T) {
	ts := time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)
	got, ok := KeyTime(HourKey(ts))
	if !ok {
		t.Fatal("KeyTime rejected a valid key")
	}
	if !got.Equal(ts) {
		t.Errorf("KeyTime round trip = %v, want %v", got, ts)
	}

	if _, ok := KeyTime("not-a-key"); ok {
		t.Error("KeyTime accepted a malformed key")
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"adsb_state_2025-12-21_14.jsonl", "2025-12-21_14"},
		{"adsb_state_2025-12-21_14.jsonl.gz", "2025-12-21_14"},
		{"/opt/adsb-logs/adsb_state_2025-12-21_14.jsonl.gz", "2025-12-21_14"},
		{"adsb_state_2025-12-21_14.jsonl.gz.part", ""},
		{"adsb_state_garbage.jsonl", ""},
		{"adsb_state_2025-12-21_14.csv", ""},
		{"other_2025-12-21_14.jsonl", ""},
		{"adsb_state_2025-12-2114.jsonl", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ParseKey(tt.name); got != tt.want {
			t.Errorf("ParseKey(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestKeyHour(t *testing.T) {
	if got := KeyHour("2025-12-21_07"); got != 7 {
		t.Errorf("KeyHour = %d, want 7", got)
	}
	if got := KeyHour("junk"); got != -1 {
		t.Errorf("KeyHour(junk) = %d, want -1", got)
	}
}

func TestIsCompressed(t *testing.T) {
	if !IsCompressed("adsb_state_2025-12-21_14.jsonl.gz") {
		t.Error("IsCompressed(.gz) = false")
	}
	if IsCompressed("adsb_state_2025-12-21_14.jsonl") {
		t.Error("IsCompressed(.jsonl) = true")
	}
}
