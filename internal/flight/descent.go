package flight

import (
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcoculver/adsb-logger/internal/adsb"
)

// earthRadiusNM is the mean Earth radius in nautical miles.
const earthRadiusNM = 3440.065

// DescentConfig controls arrival descent detection. The zero value is not
// usable; start from DefaultDescentConfig.
type DescentConfig struct {
	// TMALat/TMALon is the terminal area reference point descents must be
	// heading into.
	TMALat float64
	TMALon float64

	// StartAltFt: only aircraft below this altitude can enter a descent.
	StartAltFt float64
	// EndAltFt: the descent segment ends at or below this altitude.
	EndAltFt float64
	// MinRateFtMin: baro rate must be below this (more negative) to enter.
	MinRateFtMin float64
	// RadiusNM: aircraft must be within this distance of the TMA point.
	RadiusNM float64
}

// DefaultDescentConfig matches arrivals into Dubai (DXB).
func DefaultDescentConfig() DescentConfig {
	return DescentConfig{
		TMALat:       25.2532,
		TMALon:       55.3657,
		StartAltFt:   40000,
		EndAltFt:     15000,
		MinRateFtMin: -100,
		RadiusNM:     150,
	}
}

// HaversineNM returns the great-circle distance between two points in
// nautical miles.
func HaversineNM(lat1, lon1, lat2, lon2 float64) float64 {
	lat1r := lat1 * math.Pi / 180
	lat2r := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1r)*math.Cos(lat2r)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusNM * 2 * math.Asin(math.Sqrt(a))
}

// Tracker accumulates one aircraft's points and detects its arrival
// descent segment.
type Tracker struct {
	Hex          string
	Callsign     string
	Registration string
	AircraftType string

	cfg            DescentConfig
	descentStarted bool
	inDescent      bool
	points         []adsb.Record
}

// NewTracker starts tracking one airframe.
func NewTracker(hex, callsign string, cfg DescentConfig) *Tracker {
	return &Tracker{Hex: hex, Callsign: callsign, cfg: cfg}
}

// Started reports whether a descent entry was ever seen.
func (t *Tracker) Started() bool { return t.descentStarted }

// Active reports whether the aircraft is mid-descent.
func (t *Tracker) Active() bool { return t.inDescent }

// AddPoint feeds one record in timestamp order. Identity fields are picked
// up from the first record that carries them.
func (t *Tracker) AddPoint(r adsb.Record) {
	if t.Registration == "" {
		t.Registration = r.Str("r")
	}
	if t.AircraftType == "" {
		t.AircraftType = r.Str("t")
	}

	alt, altOK := r.Num("alt_baro")
	lat, lon, posOK := r.Position()
	if !altOK || !posOK {
		return
	}

	if !t.descentStarted {
		rate, rateOK := r.Num("baro_rate")
		dist := HaversineNM(lat, lon, t.cfg.TMALat, t.cfg.TMALon)
		if alt < t.cfg.StartAltFt && alt > t.cfg.EndAltFt &&
			dist < t.cfg.RadiusNM && rateOK && rate < t.cfg.MinRateFtMin {
			t.descentStarted = true
			t.inDescent = true
			logrus.WithFields(logrus.Fields{
				"callsign": t.Callsign,
				"alt_ft":   alt,
				"dist_nm":  dist,
			}).Debug("descent started")
		}
	}

	if t.inDescent {
		if alt > t.cfg.EndAltFt {
			t.points = append(t.points, r)
		} else {
			t.inDescent = false
			logrus.WithFields(logrus.Fields{
				"callsign": t.Callsign,
				"points":   len(t.points),
			}).Debug("descent complete")
		}
	}
}

// DescentStats summarizes one descent segment's speeds.
type DescentStats struct {
	Callsign     string
	Registration string
	AircraftType string

	StartTime    time.Time
	EndTime      time.Time
	DurationMins float64

	StartAltitudeFt float64
	EndAltitudeFt   float64

	AvgTAS, AvgIAS, AvgGS float64
	MaxTAS, MaxIAS, MaxGS float64
	MinTAS, MinIAS, MinGS float64

	NumPoints int
}

func speedSeries(points []adsb.Record, field string) []float64 {
	var out []float64
	for _, p := range points {
		if v, ok := p.Num(field); ok && v != 0 {
			out = append(out, v)
		}
	}
	return out
}

func avgMinMax(vals []float64) (avg, min, max float64) {
	min, max = vals[0], vals[0]
	sum := 0.0
	for _, v := range vals {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return sum / float64(len(vals)), min, max
}

// Stats computes the descent summary, or nil when the segment is too thin
// (fewer than 2 points or a speed channel entirely missing).
func (t *Tracker) Stats() *DescentStats {
	if len(t.points) < 2 {
		return nil
	}

	tas := speedSeries(t.points, "tas")
	ias := speedSeries(t.points, "ias")
	gs := speedSeries(t.points, "gs")
	if len(tas) == 0 || len(ias) == 0 || len(gs) == 0 {
		return nil
	}

	s := &DescentStats{
		Callsign:     t.Callsign,
		Registration: orUnknown(t.Registration),
		AircraftType: orUnknown(t.AircraftType),
		StartTime:    time.Unix(t.points[0].TS(), 0).UTC(),
		EndTime:      time.Unix(t.points[len(t.points)-1].TS(), 0).UTC(),
		NumPoints:    len(t.points),
	}
	s.DurationMins = s.EndTime.Sub(s.StartTime).Minutes()

	var startAlt, endAlt float64
	haveAlt := false
	for _, p := range t.points {
		if alt, ok := p.Num("alt_baro"); ok {
			if !haveAlt {
				startAlt, endAlt = alt, alt
				haveAlt = true
				continue
			}
			if alt > startAlt {
				startAlt = alt
			}
			if alt < endAlt {
				endAlt = alt
			}
		}
	}
	s.StartAltitudeFt = startAlt
	s.EndAltitudeFt = endAlt

	s.AvgTAS, s.MinTAS, s.MaxTAS = avgMinMax(tas)
	s.AvgIAS, s.MinIAS, s.MaxIAS = avgMinMax(ias)
	s.AvgGS, s.MinGS, s.MaxGS = avgMinMax(gs)
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// FleetSummary aggregates descent statistics across flights.
type FleetSummary struct {
	Flights int

	AvgTAS, AvgIAS, AvgGS float64
	MinTAS, MaxTAS        float64
	MinIAS, MaxIAS        float64
	MinGS, MaxGS          float64

	ByType map[string]TypeSummary
}

// TypeSummary is per-aircraft-type descent averages.
type TypeSummary struct {
	Flights               int
	AvgTAS, AvgIAS, AvgGS float64
}

// Summarize computes fleet-level aggregates, or nil for an empty input.
func Summarize(stats []*DescentStats) *FleetSummary {
	if len(stats) == 0 {
		return nil
	}

	fs := &FleetSummary{
		Flights: len(stats),
		ByType:  make(map[string]TypeSummary),
	}

	fs.MinTAS, fs.MaxTAS = stats[0].MinTAS, stats[0].MaxTAS
	fs.MinIAS, fs.MaxIAS = stats[0].MinIAS, stats[0].MaxIAS
	fs.MinGS, fs.MaxGS = stats[0].MinGS, stats[0].MaxGS

	byType := make(map[string][]*DescentStats)
	for _, s := range stats {
		fs.AvgTAS += s.AvgTAS
		fs.AvgIAS += s.AvgIAS
		fs.AvgGS += s.AvgGS
		fs.MinTAS = math.Min(fs.MinTAS, s.MinTAS)
		fs.MaxTAS = math.Max(fs.MaxTAS, s.MaxTAS)
		fs.MinIAS = math.Min(fs.MinIAS, s.MinIAS)
		fs.MaxIAS = math.Max(fs.MaxIAS, s.MaxIAS)
		fs.MinGS = math.Min(fs.MinGS, s.MinGS)
		fs.MaxGS = math.Max(fs.MaxGS, s.MaxGS)
		byType[s.AircraftType] = append(byType[s.AircraftType], s)
	}
	n := float64(len(stats))
	fs.AvgTAS /= n
	fs.AvgIAS /= n
	fs.AvgGS /= n

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		group := byType[t]
		var ts TypeSummary
		ts.Flights = len(group)
		for _, s := range group {
			ts.AvgTAS += s.AvgTAS
			ts.AvgIAS += s.AvgIAS
			ts.AvgGS += s.AvgGS
		}
		gn := float64(len(group))
		ts.AvgTAS /= gn
		ts.AvgIAS /= gn
		ts.AvgGS /= gn
		fs.ByType[t] = ts
	}
	return fs
}
