// Package adsb defines the canonical per-aircraft record written to the
// archive and the projection from tar1090/readsb aircraft.json entries.
package adsb

import (
	"strings"
)

// KeepFields lists the aircraft.json fields that are carried into archived
// records. Values are copied as-is; in particular alt_baro may be the string
// "ground" and must stay that way.
var KeepFields = []string{
	"hex", "flight",
	"lat", "lon",
	"alt_baro", "alt_geom",
	"gs", "ias", "tas", "mach",
	"track", "track_rate",
	"mag_heading", "true_heading", "calc_track",
	"roll",
	"baro_rate", "geom_rate",
	"wd", "ws", "oat", "tat",
	"squawk", "category", "emergency",
	"nav_qnh", "nav_heading", "nav_altitude_mcp", "nav_altitude_fms",
	"nic", "nac_p", "nac_v", "sil", "gva", "sda",
	"rssi", "seen", "seen_pos", "messages",
	"r_dst", "r_dir",
	"mlat", "tisb",

	// aircraft identity fields
	"t",     // ICAO type designator (e.g. B738)
	"r",     // registration
	"desc",  // description
	"ownOp", // owner/operator, sometimes present
}

// Record is one archived aircraft observation. Field values keep whatever
// JSON type the decoder emitted (numbers decode as float64, alt_baro may be
// the string "ground").
type Record map[string]any

// Str returns the trimmed string value for key, or "" if absent or not a
// string.
func (r Record) Str(key string) string {
	if v, ok := r[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// TS returns the record timestamp (_ts) in UTC epoch seconds.
func (r Record) TS() int64 {
	switch v := r["_ts"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Poll returns the poll index (_poll).
func (r Record) Poll() int64 {
	switch v := r["_poll"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Num returns the numeric value for key. Missing values, the "ground"
// altitude sentinel, and non-numeric strings all report ok=false.
func (r Record) Num(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Hex returns the lowercased trimmed ICAO hex address.
func (r Record) Hex() string {
	return strings.ToLower(r.Str("hex"))
}

// Callsign returns the uppercased trimmed flight field.
func (r Record) Callsign() string {
	return strings.ToUpper(r.Str("flight"))
}

// Position returns lat/lon if both are present.
func (r Record) Position() (lat, lon float64, ok bool) {
	lat, latOK := r.Num("lat")
	lon, lonOK := r.Num("lon")
	return lat, lon, latOK && lonOK
}

// Project converts one snapshot into archive records. Entries without a hex
// address are skipped; recognized fields are copied without coercion.
func Project(snap *Snapshot, tsEpoch int64, tsISO string, pollIdx int64) []Record {
	if snap == nil || len(snap.Aircraft) == 0 {
		return nil
	}

	recs := make([]Record, 0, len(snap.Aircraft))
	for _, a := range snap.Aircraft {
		hx, _ := a["hex"].(string)
		if strings.TrimSpace(strings.ToLower(hx)) == "" {
			continue
		}

		rec := Record{
			"_ts":     tsEpoch,
			"_ts_iso": tsISO,
			"_poll":   pollIdx,
		}

		// readsb's "type" is the message source; stored under src.
		if src, ok := a["type"]; ok {
			rec["src"] = src
		}

		for _, k := range KeepFields {
			if v, ok := a[k]; ok {
				rec[k] = v
			}
		}

		recs = append(recs, rec)
	}
	return recs
}
