package adsb

import (
	"testing"
)

func TestNum(t *testing.T) {
	r := Record{
		"alt_baro": "ground",
		"gs":       412.5,
		"_ts":      int64(100),
	}

	if _, ok := r.Num("alt_baro"); ok {
		t.Error(`Num("alt_baro") accepted the ground sentinel`)
	}
	if v, ok := r.Num("gs"); !ok || v != 412.5 {
		t.Errorf(`Num("gs") = %v, %v, want 412.5, true`, v, ok)
	}
	if v, ok := r.Num("_ts"); !ok || v != 100 {
		t.Errorf(`Num("_ts") = %v, %v, want 100, true`, v, ok)
	}
	if _, ok := r.Num("missing"); ok {
		t.Error("Num on missing key reported ok")
	}
}

func TestIdentityAccessors(t *testing.T) {
	r := Record{
		"hex":    " 896180 ",
		"flight": "fdb123 ",
		"lat":    25.25,
		"lon":    55.36,
	}

	if got := r.Hex(); got != "896180" {
		t.Errorf("Hex = %q, want %q", got, "896180")
	}
	if got := r.Callsign(); got != "FDB123" {
		t.Errorf("Callsign = %q, want %q", got, "FDB123")
	}
	lat, lon, ok := r.Position()
	if !ok || lat != 25.25 || lon != 55.36 {
		t.Errorf("Position = %v, %v, %v", lat, lon, ok)
	}

	delete(r, "lon")
	if _, _, ok := r.Position(); ok {
		t.Error("Position ok without lon")
	}
}

func TestProject(t *testing.T) {
	snap := &Snapshot{
		Now: 1766325600.5,
		Aircraft: []map[string]any{
			{
				"hex":      "896180",
				"type":     "adsb_icao",
				"flight":   "FDB123 ",
				"alt_baro": "ground",
				"gs":       2.5,
				"unknown":  "dropped",
			},
			{"hex": "  "}, // no usable hex: skipped
			{"flight": "UAE55K"},
		},
	}

	recs := Project(snap, 1766325600, "2025-12-21T14:00:00Z", 7)
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	r := recs[0]

	if r.TS() != 1766325600 {
		t.Errorf("_ts = %d, want 1766325600", r.TS())
	}
	if got := r.Str("_ts_iso"); got != "2025-12-21T14:00:00Z" {
		t.Errorf("_ts_iso = %q", got)
	}
	if r.Poll() != 7 {
		t.Errorf("_poll = %d, want 7", r.Poll())
	}
	if got := r.Str("src"); got != "adsb_icao" {
		t.Errorf("src = %q, want adsb_icao", got)
	}
	if _, ok := r["type"]; ok {
		t.Error("raw type field leaked into record")
	}
	if got, _ := r["alt_baro"].(string); got != "ground" {
		t.Errorf("alt_baro = %v, want the ground sentinel verbatim", r["alt_baro"])
	}
	if _, ok := r["unknown"]; ok {
		t.Error("unlisted field survived projection")
	}
}

func TestProjectEmpty(t *testing.T) {
	if recs := Project(nil, 0, "", 0); recs != nil {
		t.Errorf("Project(nil) = %v, want nil", recs)
	}
	if recs := Project(&Snapshot{}, 0, "", 0); recs != nil {
		t.Errorf("Project(empty) = %v, want nil", recs)
	}
}
