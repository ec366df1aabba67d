package flight

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcoculver/adsb-logger/internal/adsb"
	"github.com/marcoculver/adsb-logger/internal/segment"
)

// flydubaiTypes is the airframe fleet operated under the FDB prefix. Records
// carrying a different known type under an FDB callsign are bad data and
// skipped.
var flydubaiTypes = map[string]bool{
	"B738": true, "B38M": true, "B39M": true,
	"B737": true, "B73G": true, "B73H": true,
}

// Analyzer scans the archive for one airline's arrival descents.
type Analyzer struct {
	Store          *segment.Store
	CallsignPrefix string
	Types          map[string]bool // nil disables the type filter
	Descent        DescentConfig

	trackers map[string]*Tracker
	results  []*DescentStats
}

// NewAnalyzer creates an analyzer for the Flydubai fleet into DXB. Prefix
// and descent geometry are adjustable after construction.
func NewAnalyzer(store *segment.Store) *Analyzer {
	return &Analyzer{
		Store:          store,
		CallsignPrefix: "FDB",
		Types:          flydubaiTypes,
		Descent:        DefaultDescentConfig(),
		trackers:       make(map[string]*Tracker),
	}
}

func (a *Analyzer) accept(r adsb.Record) bool {
	cs := r.Callsign()
	if !strings.HasPrefix(cs, a.CallsignPrefix) || r.Hex() == "" {
		return false
	}
	if a.Types != nil {
		if t := r.Str("t"); t != "" && !a.Types[t] {
			return false
		}
	}
	return true
}

func (a *Analyzer) feed(r adsb.Record) {
	if !a.accept(r) {
		return
	}
	hex := r.Hex()
	tr, ok := a.trackers[hex]
	if !ok {
		tr = NewTracker(hex, r.Callsign(), a.Descent)
		a.trackers[hex] = tr
	}
	tr.AddPoint(r)
}

// flushCompleted collects stats from trackers whose descent has ended and
// drops them, bounding memory on long scans.
func (a *Analyzer) flushCompleted(final bool) {
	for hex, tr := range a.trackers {
		done := tr.Started() && !tr.Active()
		if !done && !(final && tr.Started()) {
			continue
		}
		if s := tr.Stats(); s != nil {
			a.results = append(a.results, s)
		}
		delete(a.trackers, hex)
	}
}

// Run scans the date range and returns per-flight descent statistics in
// scan order.
func (a *Analyzer) Run(start, end time.Time) ([]*DescentStats, error) {
	files := a.Store.FilesForRange(start, end)
	logrus.WithField("files", len(files)).Info("descent analysis starting")

	for i, path := range files {
		err := segment.StreamRecords(path, segment.Filter{CallsignPrefix: a.CallsignPrefix}, func(r adsb.Record) error {
			a.feed(r)
			return nil
		})
		if err != nil {
			logrus.WithError(err).WithField("file", filepath.Base(path)).Warn("segment scan ended early")
		}

		if i > 0 && i%10 == 0 {
			a.flushCompleted(false)
			logrus.WithFields(logrus.Fields{
				"descents": len(a.results),
				"tracking": len(a.trackers),
			}).Info("analysis progress")
		}
	}
	a.flushCompleted(true)

	logrus.WithField("descents", len(a.results)).Info("descent analysis complete")
	return a.results, nil
}

// descentCSVHeader is the fixed column order of the per-flight CSV.
var descentCSVHeader = []string{
	"callsign", "registration", "aircraft_type",
	"start_time", "end_time", "duration_mins",
	"start_altitude_ft", "end_altitude_ft",
	"avg_tas_kt", "avg_ias_kt", "avg_gs_kt",
	"max_tas_kt", "max_ias_kt", "max_gs_kt",
	"min_tas_kt", "min_ias_kt", "min_gs_kt",
	"num_points",
}

func f1(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }

// WriteDescentCSV writes one row per descent.
func WriteDescentCSV(stats []*DescentStats, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(descentCSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range stats {
		row := []string{
			s.Callsign, s.Registration, s.AircraftType,
			s.StartTime.Format(time.RFC3339), s.EndTime.Format(time.RFC3339),
			strconv.FormatFloat(s.DurationMins, 'f', 2, 64),
			strconv.FormatFloat(s.StartAltitudeFt, 'f', 0, 64),
			strconv.FormatFloat(s.EndAltitudeFt, 'f', 0, 64),
			f1(s.AvgTAS), f1(s.AvgIAS), f1(s.AvgGS),
			f1(s.MaxTAS), f1(s.MaxIAS), f1(s.MaxGS),
			f1(s.MinTAS), f1(s.MinIAS), f1(s.MinGS),
			strconv.Itoa(s.NumPoints),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// WriteFleetSummary renders the fleet-level report.
func WriteFleetSummary(stats []*DescentStats, path string, now time.Time) error {
	fs := Summarize(stats)
	if fs == nil {
		return fmt.Errorf("no descent data to summarize")
	}

	var b strings.Builder
	b.WriteString("Fleet Descent Speed Analysis Summary\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	fmt.Fprintf(&b, "Analysis Date: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total Flights Analyzed: %d\n", fs.Flights)
	b.WriteString("Altitude Range: Descent start to 15,000 ft\n\n")

	b.WriteString("Fleet Average Descent Speeds:\n")
	fmt.Fprintf(&b, "  Average TAS: %.1f knots\n", fs.AvgTAS)
	fmt.Fprintf(&b, "  Average IAS: %.1f knots\n", fs.AvgIAS)
	fmt.Fprintf(&b, "  Average G/S: %.1f knots\n\n", fs.AvgGS)

	b.WriteString("Speed Ranges:\n")
	fmt.Fprintf(&b, "  TAS Range: %.1f - %.1f knots\n", fs.MinTAS, fs.MaxTAS)
	fmt.Fprintf(&b, "  IAS Range: %.1f - %.1f knots\n", fs.MinIAS, fs.MaxIAS)
	fmt.Fprintf(&b, "  G/S Range: %.1f - %.1f knots\n\n", fs.MinGS, fs.MaxGS)

	b.WriteString("By Aircraft Type:\n")
	types := make([]string, 0, len(fs.ByType))
	for t := range fs.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		ts := fs.ByType[t]
		fmt.Fprintf(&b, "\n  %s (%d flights):\n", t, ts.Flights)
		fmt.Fprintf(&b, "    Avg TAS: %.1f kt, Avg IAS: %.1f kt, Avg G/S: %.1f kt\n",
			ts.AvgTAS, ts.AvgIAS, ts.AvgGS)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}
