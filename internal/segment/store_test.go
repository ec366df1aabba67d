package segment

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}

func TestFilesForDateMergesLayouts(t *testing.T) {
	dir := t.TempDir()
	date := time.Date(2025, 12, 21, 0, 0, 0, 0, time.UTC)

	touch(t, filepath.Join(dir, "adsb_state_2025-12-21_03.jsonl.gz"))
	touch(t, filepath.Join(dir, "adsb_state_2025-12-21_14.jsonl"))
	touch(t, filepath.Join(dir, "2025", "12", "21", "adsb_state_2025-12-21_01.jsonl.gz"))
	// Duplicate base name in both layouts: flat wins.
	touch(t, filepath.Join(dir, "2025", "12", "21", "adsb_state_2025-12-21_03.jsonl.gz"))
	// Different date and junk names are excluded.
	touch(t, filepath.Join(dir, "adsb_state_2025-12-22_00.jsonl.gz"))
	touch(t, filepath.Join(dir, "adsb_state_2025-12-21_14.jsonl.gz.part"))

	files := NewStore(dir).FilesForDate(date)
	got := baseNames(files)
	want := []string{
		"adsb_state_2025-12-21_01.jsonl.gz",
		"adsb_state_2025-12-21_03.jsonl.gz",
		"adsb_state_2025-12-21_14.jsonl",
	}
	if len(got) != len(want) {
		t.Fatalf("FilesForDate = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FilesForDate[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// The duplicate resolved to the flat copy.
	if files[1] != filepath.Join(dir, "adsb_state_2025-12-21_03.jsonl.gz") {
		t.Errorf("duplicate resolved to %q, want flat layout path", files[1])
	}
}

func TestFilesForHours(t *testing.T) {
	dir := t.TempDir()
	date := time.Date(2025, 12, 21, 0, 0, 0, 0, time.UTC)
	for _, h := range []string{"00", "01", "12", "22", "23"} {
		touch(t, filepath.Join(dir, "adsb_state_2025-12-21_"+h+".jsonl.gz"))
	}

	files := NewStore(dir).FilesForHours(date, 21, 23)
	got := baseNames(files)
	want := []string{
		"adsb_state_2025-12-21_22.jsonl.gz",
		"adsb_state_2025-12-21_23.jsonl.gz",
	}
	if len(got) != len(want) {
		t.Fatalf("FilesForHours = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FilesForHours[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFilesForRange(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "adsb_state_2025-12-20_23.jsonl.gz"))
	touch(t, filepath.Join(dir, "adsb_state_2025-12-21_00.jsonl.gz"))
	touch(t, filepath.Join(dir, "adsb_state_2025-12-22_05.jsonl.gz"))

	start := time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 12, 21, 0, 0, 0, 0, time.UTC)
	got := baseNames(NewStore(dir).FilesForRange(start, end))
	want := []string{
		"adsb_state_2025-12-20_23.jsonl.gz",
		"adsb_state_2025-12-21_00.jsonl.gz",
	}
	if len(got) != len(want) {
		t.Fatalf("FilesForRange = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("FilesForRange[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 12, 31, 12, 0, 0, 0, time.UTC)

	old := filepath.Join(dir, "adsb_state_2025-11-30_11.jsonl.gz")
	boundary := filepath.Join(dir, "adsb_state_2025-12-01_12.jsonl.gz")
	fresh := filepath.Join(dir, "adsb_state_2025-12-30_00.jsonl.gz")
	other := filepath.Join(dir, "callsigns.db")
	for _, p := range []string{old, boundary, fresh, other} {
		touch(t, p)
	}

	removed, err := NewStore(dir).Prune(30, now)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old segment survived prune")
	}
	// The cutoff hour itself is kept (strictly-before comparison).
	if _, err := os.Stat(boundary); err != nil {
		t.Errorf("boundary segment pruned: %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh segment pruned: %v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("non-segment file pruned: %v", err)
	}
}
