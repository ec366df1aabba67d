package flight

import (
	"strings"
	"testing"
	"time"

	"github.com/marcoculver/adsb-logger/internal/adsb"
)

func rec(hex string, ts int64, extra map[string]any) adsb.Record {
	r := adsb.Record{"hex": hex, "_ts": ts}
	for k, v := range extra {
		r[k] = v
	}
	return r
}

func TestSameFlight(t *testing.T) {
	a := rec("896180", 1000, nil)

	tests := []struct {
		name string
		b    adsb.Record
		want bool
	}{
		{"within gap", rec("896180", 1200, nil), true},
		{"at gap boundary", rec("896180", 1300, nil), true},
		{"past gap", rec("896180", 1301, nil), false},
		{"different hex", rec("896181", 1001, nil), false},
		{"reversed order", rec("896180", 800, nil), true},
	}
	for _, tt := range tests {
		if got := SameFlight(a, tt.b, 300); got != tt.want {
			t.Errorf("%s: SameFlight = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSplit(t *testing.T) {
	records := []adsb.Record{
		rec("896180", 1000, nil),
		rec("896180", 1100, nil),
		rec("896180", 9000, nil), // same airframe, second rotation
		rec("896180", 9100, nil),
		rec("896181", 9150, nil), // different airframe
	}

	flights := Split(records, 300)
	if len(flights) != 3 {
		t.Fatalf("got %d flights, want 3", len(flights))
	}
	if len(flights[0]) != 2 || len(flights[1]) != 2 || len(flights[2]) != 1 {
		t.Errorf("flight sizes = %d/%d/%d, want 2/2/1",
			len(flights[0]), len(flights[1]), len(flights[2]))
	}

	if got := Split(nil, 300); got != nil {
		t.Errorf("Split(nil) = %v, want nil", got)
	}
}

func TestComputeMetadata(t *testing.T) {
	records := []adsb.Record{
		rec("896180", 1000, map[string]any{
			"alt_baro": "ground", "gs": 5.0,
		}),
		rec("896180", 1060, map[string]any{
			"lat": 25.25, "lon": 55.36, "alt_baro": 2000.0, "gs": 180.0,
			"r": "A6-FEB", "t": "B738",
		}),
		rec("896180", 1120, map[string]any{
			"lat": 25.50, "lon": 55.70, "alt_baro": 36000.0, "gs": 450.0,
			"ownOp": "Flydubai",
		}),
	}

	var m Metadata
	ComputeMetadata(&m, records)

	if m.HexCode != "896180" || m.Registration != "A6-FEB" || m.AircraftType != "B738" {
		t.Errorf("identity = %q/%q/%q", m.HexCode, m.Registration, m.AircraftType)
	}
	if m.Operator != "Flydubai" {
		t.Errorf("Operator = %q", m.Operator)
	}
	if m.DurationMinutes != 2 {
		t.Errorf("DurationMinutes = %v, want 2", m.DurationMinutes)
	}
	if m.FirstPosition == nil || m.FirstPosition.Lat != 25.25 {
		t.Errorf("FirstPosition = %v", m.FirstPosition)
	}
	if m.LastPosition == nil || m.LastPosition.Lat != 25.50 {
		t.Errorf("LastPosition = %v", m.LastPosition)
	}

	// "ground" must not feed the extrema; the real min is 2000.
	if m.MinAltitudeFt == nil || *m.MinAltitudeFt != 2000 {
		t.Errorf("MinAltitudeFt = %v, want 2000", m.MinAltitudeFt)
	}
	if m.MaxAltitudeFt == nil || *m.MaxAltitudeFt != 36000 {
		t.Errorf("MaxAltitudeFt = %v, want 36000", m.MaxAltitudeFt)
	}
	if m.MaxGroundSpeed == nil || *m.MaxGroundSpeed != 450 {
		t.Errorf("MaxGroundSpeed = %v, want 450", m.MaxGroundSpeed)
	}
}

func TestComputeMetadataEmpty(t *testing.T) {
	var m Metadata
	ComputeMetadata(&m, nil)
	if m.DurationMinutes != 0 || m.MaxAltitudeFt != nil {
		t.Errorf("empty input changed metadata: %+v", m)
	}
}

func TestSummary(t *testing.T) {
	maxAlt := 36000.0
	d := &Data{
		Metadata: Metadata{
			Callsign:      "FDB123",
			AircraftType:  "B738",
			Registration:  "A6-FEB",
			FirstSeen:     time.Date(2025, 12, 21, 4, 0, 0, 0, time.UTC),
			LastSeen:      time.Date(2025, 12, 21, 6, 30, 0, 0, time.UTC),
			MaxAltitudeFt: &maxAlt,
			RequestedDate: "2025-12-21",
		},
	}

	got := Summary(d)
	for _, want := range []string{
		"Flight Summary: FDB123",
		"Aircraft: B738 (A6-FEB)",
		"Operator: Unknown",
		"First Seen: 2025-12-21 04:00:00 UTC",
		"Max Altitude:     36000 ft",
		"Min Altitude: N/A",
		"Crossover:      No",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Summary missing %q\n%s", want, got)
		}
	}
}

func TestExtractorNoRecords(t *testing.T) {
	e := NewExtractor(newTestStore(t), t.TempDir())
	date := time.Date(2025, 12, 21, 0, 0, 0, 0, time.UTC)

	d, err := e.Extract("fdb123", date, false, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Records) != 0 {
		t.Errorf("got %d records, want 0", len(d.Records))
	}
	if d.Metadata.Callsign != "FDB123" {
		t.Errorf("Callsign = %q, want normalized FDB123", d.Metadata.Callsign)
	}
	if d.Metadata.RequestedDate != "2025-12-21" {
		t.Errorf("RequestedDate = %q", d.Metadata.RequestedDate)
	}
}
