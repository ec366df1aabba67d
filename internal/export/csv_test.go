package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marcoculver/adsb-logger/internal/adsb"
)

func readCSV(t *testing.T, path string) (header []string, rows [][]string, comments []string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var csvLines []string
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if strings.HasPrefix(line, "#") {
			comments = append(comments, line)
			continue
		}
		csvLines = append(csvLines, line)
	}

	r := csv.NewReader(strings.NewReader(strings.Join(csvLines, "\n")))
	all, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) == 0 {
		t.Fatal("empty csv")
	}
	return all[0], all[1:], comments
}

func TestWriteCSVColumns(t *testing.T) {
	records := []adsb.Record{
		{"_ts": int64(100), "hex": "896180", "flight": "FDB123", "lat": 25.25, "lon": 55.36, "gs": 412.5},
		{"_ts": int64(101), "hex": "896180", "flight": "FDB123", "alt_baro": "ground", "custom_field": "x"},
	}
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := WriteCSV(records, path, true); err != nil {
		t.Fatal(err)
	}

	header, rows, comments := readCSV(t, path)

	want := []string{"_ts", "hex", "flight", "lat", "lon", "alt_baro", "gs", "custom_field"}
	if len(header) != len(want) {
		t.Fatalf("header = %v, want %v", header, want)
	}
	for i := range want {
		if header[i] != want[i] {
			t.Errorf("header[%d] = %q, want %q", i, header[i], want[i])
		}
	}

	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	// First row: gs renders compactly, alt_baro empty.
	if rows[0][6] != "412.5" {
		t.Errorf("gs cell = %q, want 412.5", rows[0][6])
	}
	if rows[0][5] != "" {
		t.Errorf("alt_baro cell = %q, want empty", rows[0][5])
	}
	// Second row keeps the ground sentinel verbatim.
	if rows[1][5] != "ground" {
		t.Errorf("alt_baro cell = %q, want ground", rows[1][5])
	}

	if len(comments) == 0 {
		t.Error("no group legend comments written")
	}
	found := false
	for _, c := range comments {
		if strings.Contains(c, "position: lat, lon, alt_baro, alt_geom") {
			found = true
		}
	}
	if !found {
		t.Errorf("position group comment missing: %v", comments)
	}
}

func TestWriteCSVWithoutComments(t *testing.T) {
	records := []adsb.Record{{"_ts": int64(100), "hex": "896180"}}
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := WriteCSV(records, path, false); err != nil {
		t.Fatal(err)
	}
	_, _, comments := readCSV(t, path)
	if len(comments) != 0 {
		t.Errorf("unexpected comments: %v", comments)
	}
}

func TestWriteCSVEmptyIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := WriteCSV(nil, path, true); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file created for empty record set")
	}
}

func TestCellValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{true, "1"},
		{false, "0"},
		{"ground", "ground"},
		{412.5, "412.5"},
		{412.0, "412"},
		{int64(7), "7"},
	}
	for _, tt := range tests {
		if got := cellValue(tt.in); got != tt.want {
			t.Errorf("cellValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteMinimalCSV(t *testing.T) {
	records := []adsb.Record{
		{"_ts_iso": "2025-12-21T14:00:00Z", "flight": "FDB123", "lat": 25.25, "lon": 55.36},
	}
	path := filepath.Join(t.TempDir(), "min.csv")
	if err := WriteMinimalCSV(records, path); err != nil {
		t.Fatal(err)
	}

	header, rows, _ := readCSV(t, path)
	if len(header) != 8 {
		t.Errorf("minimal header has %d columns, want 8", len(header))
	}
	// Columns without data still appear, empty.
	if len(rows) != 1 || rows[0][4] != "" {
		t.Errorf("rows = %v", rows)
	}
}
