package flight

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marcoculver/adsb-logger/internal/adsb"
)

func analyzePoint(hex, cs string, ts time.Time, alt float64) adsb.Record {
	return adsb.Record{
		"hex": hex, "flight": cs, "_ts": ts.Unix(),
		"t": "B738", "r": "A6-FEB",
		"alt_baro": alt, "baro_rate": -1800.0,
		"lat": 25.1, "lon": 55.3,
		"tas": 410.0, "ias": 290.0, "gs": 420.0,
	}
}

func TestAnalyzerRun(t *testing.T) {
	store := newTestStore(t)
	date := time.Date(2025, 12, 21, 0, 0, 0, 0, time.UTC)
	base := date.Add(10 * time.Hour)

	// One clean FDB descent from 35000 through the floor.
	for i, alt := range []float64{35000, 28000, 21000, 14000} {
		appendHour(t, store, base, analyzePoint("896180", "FDB123", base.Add(time.Duration(i)*time.Minute), alt))
	}
	// An Emirates arrival that must be ignored.
	for i, alt := range []float64{35000, 28000, 21000, 14000} {
		appendHour(t, store, base, analyzePoint("896190", "UAE55K", base.Add(time.Duration(i)*time.Minute), alt))
	}
	// FDB callsign on a non-fleet type: filtered out.
	r := analyzePoint("896191", "FDB999", base, 35000)
	r["t"] = "A320"
	appendHour(t, store, base, r)

	a := NewAnalyzer(store)
	stats, err := a.Run(date, date)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 {
		t.Fatalf("got %d descents, want 1", len(stats))
	}
	s := stats[0]
	if s.Callsign != "FDB123" || s.AircraftType != "B738" {
		t.Errorf("stats identity = %q/%q", s.Callsign, s.AircraftType)
	}
	if s.NumPoints != 3 {
		t.Errorf("NumPoints = %d, want 3", s.NumPoints)
	}
}

func TestWriteDescentCSV(t *testing.T) {
	stats := []*DescentStats{{
		Callsign: "FDB123", Registration: "A6-FEB", AircraftType: "B738",
		StartTime: time.Date(2025, 12, 21, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 12, 21, 10, 12, 0, 0, time.UTC),
		DurationMins: 12, StartAltitudeFt: 35000, EndAltitudeFt: 15200,
		AvgTAS: 410, AvgIAS: 290, AvgGS: 420,
		MaxTAS: 430, MaxIAS: 300, MaxGS: 440,
		MinTAS: 390, MinIAS: 280, MinGS: 400,
		NumPoints: 25,
	}}

	path := filepath.Join(t.TempDir(), "descent_speeds.csv")
	if err := WriteDescentCSV(stats, path); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header + 1", len(rows))
	}
	if len(rows[0]) != 18 || rows[0][0] != "callsign" || rows[0][17] != "num_points" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "FDB123" || rows[1][5] != "12.00" || rows[1][8] != "410.0" {
		t.Errorf("row = %v", rows[1])
	}
}

func TestWriteFleetSummary(t *testing.T) {
	stats := []*DescentStats{
		{AircraftType: "B738", AvgTAS: 400, AvgIAS: 290, AvgGS: 410, MinTAS: 380, MaxTAS: 420, MinIAS: 280, MaxIAS: 300, MinGS: 390, MaxGS: 430},
		{AircraftType: "B38M", AvgTAS: 420, AvgIAS: 300, AvgGS: 430, MinTAS: 400, MaxTAS: 440, MinIAS: 290, MaxIAS: 310, MinGS: 410, MaxGS: 450},
	}
	path := filepath.Join(t.TempDir(), "fleet_summary.txt")
	now := time.Date(2025, 12, 22, 9, 0, 0, 0, time.UTC)
	if err := WriteFleetSummary(stats, path, now); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		"Fleet Descent Speed Analysis Summary",
		"Analysis Date: 2025-12-22 09:00:00",
		"Total Flights Analyzed: 2",
		"Average TAS: 410.0 knots",
		"TAS Range: 380.0 - 440.0 knots",
		"B738 (1 flights):",
		"B38M (1 flights):",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q\n%s", want, text)
		}
	}

	if err := WriteFleetSummary(nil, path, now); err == nil {
		t.Error("empty summary did not error")
	}
}
