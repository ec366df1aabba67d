package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcoculver/adsb-logger/internal/segment"
)

func writeSegment(t *testing.T, dir, key string, lines ...string) string {
	t.Helper()
	path := segment.ActivePath(dir, key)
	var body string
	for _, l := range lines {
		body += l + "\n"
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func line(hex, flight string, ts int64) string {
	return fmt.Sprintf(`{"hex":%q,"flight":%q,"_ts":%d}`, hex, flight, ts)
}

func TestFilesSortsByTimestamp(t *testing.T) {
	dir := t.TempDir()
	// Hour files scanned in name order, records deliberately out of order
	// across them.
	a := writeSegment(t, dir, "2025-12-21_14",
		line("896180", "FDB123", 300),
		line("896180", "FDB123", 100),
	)
	b := writeSegment(t, dir, "2025-12-21_15",
		line("896180", "FDB123", 200),
	)

	recs := Files([]string{a, b}, segment.Filter{}, nil)
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	for i, want := range []int64{100, 200, 300} {
		if recs[i].TS() != want {
			t.Errorf("recs[%d].TS = %d, want %d", i, recs[i].TS(), want)
		}
	}
}

func TestFilesSkipsUnreadable(t *testing.T) {
	dir := t.TempDir()
	good := writeSegment(t, dir, "2025-12-21_14", line("896180", "FDB123", 1))
	missing := filepath.Join(dir, "adsb_state_2025-12-21_15.jsonl")

	recs := Files([]string{missing, good}, segment.Filter{}, nil)
	if len(recs) != 1 {
		t.Errorf("got %d records, want 1 from the readable file", len(recs))
	}
}

func TestFilesProgressCallback(t *testing.T) {
	dir := t.TempDir()
	a := writeSegment(t, dir, "2025-12-21_14", line("896180", "FDB123", 1))
	b := writeSegment(t, dir, "2025-12-21_15", line("896180", "FDB123", 2))

	var calls int
	Files([]string{a, b}, segment.Filter{}, func(index, total int, path string) {
		if total != 2 {
			t.Errorf("progress total = %d, want 2", total)
		}
		if index != calls {
			t.Errorf("progress index = %d, want %d", index, calls)
		}
		calls++
	})
	if calls != 2 {
		t.Errorf("progress called %d times, want 2", calls)
	}
}

func TestCallsign(t *testing.T) {
	dir := t.TempDir()
	writeSegment(t, dir, "2025-12-21_02",
		line("896180", "FDB123", 100),
		line("896181", "UAE55K", 101),
	)
	writeSegment(t, dir, "2025-12-21_14", line("896180", "FDB123", 200))

	store := segment.NewStore(dir)
	date := time.Date(2025, 12, 21, 0, 0, 0, 0, time.UTC)

	recs := Callsign(store, "FDB123", "", date, 0, 23)
	if len(recs) != 2 {
		t.Errorf("full day: got %d records, want 2", len(recs))
	}

	recs = Callsign(store, "FDB123", "", date, 0, 3)
	if len(recs) != 1 || recs[0].TS() != 100 {
		t.Errorf("hour window: got %v", recs)
	}
}

func TestRangeFiltersTimestamps(t *testing.T) {
	dir := t.TempDir()
	day := time.Date(2025, 12, 21, 0, 0, 0, 0, time.UTC)
	early := day.Add(10 * time.Minute)
	mid := day.Add(30 * time.Minute)
	late := day.Add(50 * time.Minute)
	writeSegment(t, dir, "2025-12-21_00",
		line("896180", "FDB123", early.Unix()),
		line("896180", "FDB123", mid.Unix()),
		line("896180", "FDB123", late.Unix()),
	)

	store := segment.NewStore(dir)
	recs := Range(store, "FDB123", "", day.Add(20*time.Minute), day.Add(40*time.Minute))
	if len(recs) != 1 || recs[0].TS() != mid.Unix() {
		t.Errorf("Range = %v, want only the middle record", recs)
	}
}

func TestUniqueCallsigns(t *testing.T) {
	dir := t.TempDir()
	writeSegment(t, dir, "2025-12-21_02",
		line("896180", "FDB123", 1),
		line("896181", "UAE55K", 2),
		`{"hex":"896182","_ts":3}`,
	)
	writeSegment(t, dir, "2025-12-21_14", line("896180", "FDB123", 4))

	names, hours := UniqueCallsigns(segment.NewStore(dir), time.Date(2025, 12, 21, 0, 0, 0, 0, time.UTC))

	if len(names) != 2 || names[0] != "FDB123" || names[1] != "UAE55K" {
		t.Fatalf("names = %v", names)
	}
	if got := hours["FDB123"]; len(got) != 2 || got[0] != 2 || got[1] != 14 {
		t.Errorf("hours[FDB123] = %v, want [2 14]", got)
	}
	if got := hours["UAE55K"]; len(got) != 1 || got[0] != 2 {
		t.Errorf("hours[UAE55K] = %v, want [2]", got)
	}
}
