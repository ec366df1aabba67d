package callsign

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcoculver/adsb-logger/internal/adsb"
	"github.com/marcoculver/adsb-logger/internal/fr24"
	"github.com/marcoculver/adsb-logger/internal/segment"
)

// Airline describes one tracked carrier.
type Airline struct {
	Name             string
	CallsignPrefixes []string
}

// TrackedAirlines is the default carrier set.
var TrackedAirlines = []Airline{
	{Name: "Emirates", CallsignPrefixes: []string{"UAE"}},
	{Name: "Flydubai", CallsignPrefixes: []string{"FDB"}},
}

const (
	// DefaultMonitorInterval is how often the live monitor rescans.
	DefaultMonitorInterval = 60 * time.Second

	// DefaultLookbackHours is how far back the live monitor looks for
	// segment files.
	DefaultLookbackHours = 1

	// DefaultRouteCacheAge is how long a cached route lookup stays valid.
	DefaultRouteCacheAge = 24 * time.Hour
)

// Monitor watches the archive (or a live snapshot endpoint) for tracked
// callsigns and keeps the registry current.
type Monitor struct {
	DB       *DB
	API      *fr24.Client
	Store    *segment.Store
	Airlines []Airline

	// SkipAPI disables route lookups entirely (historical scans).
	SkipAPI bool

	Interval      time.Duration
	LookbackHours int
	RouteCacheAge time.Duration

	// sessionSeen dedups API lookups within one process lifetime.
	sessionSeen map[string]bool

	// Tail position over the file most recently scanned.
	lastFile string
	lastLine int
}

// NewMonitor creates a monitor over the archive with default settings.
func NewMonitor(db *DB, api *fr24.Client, store *segment.Store) *Monitor {
	return &Monitor{
		DB:            db,
		API:           api,
		Store:         store,
		Airlines:      TrackedAirlines,
		Interval:      DefaultMonitorInterval,
		LookbackHours: DefaultLookbackHours,
		RouteCacheAge: DefaultRouteCacheAge,
		sessionSeen:   make(map[string]bool),
	}
}

// AirlineFor returns the tracked airline name for a callsign, or "".
func (m *Monitor) AirlineFor(callsign string) string {
	callsign = strings.ToUpper(strings.TrimSpace(callsign))
	for _, a := range m.Airlines {
		for _, p := range a.CallsignPrefixes {
			if strings.HasPrefix(callsign, p) {
				return a.Name
			}
		}
	}
	return ""
}

// Tracked reports whether a callsign belongs to a tracked airline.
func (m *Monitor) Tracked(callsign string) bool {
	return m.AirlineFor(callsign) != ""
}

// prefilter returns the raw-line filter matching any tracked prefix. The
// segment reader verifies the parsed flight field afterwards, so one filter
// per prefix keeps the prefilter cheap without false drops.
func (m *Monitor) prefixes() []string {
	var out []string
	for _, a := range m.Airlines {
		out = append(out, a.CallsignPrefixes...)
	}
	return out
}

// ProcessRecord handles one archived record: route resolution (cache, API,
// heuristic in that order), registry upsert, and sighting insert. Reports
// whether the record was tracked.
func (m *Monitor) ProcessRecord(ctx context.Context, r adsb.Record) (bool, error) {
	callsign := r.Callsign()
	if !m.Tracked(callsign) {
		return false, nil
	}
	airline := m.AirlineFor(callsign)

	seenAt := time.Now().UTC()
	if ts := r.TS(); ts > 0 {
		seenAt = time.Unix(ts, 0).UTC()
	}

	e := Entry{
		Callsign:     callsign,
		Airline:      airline,
		HexCode:      r.Hex(),
		AircraftType: r.Str("t"),
		Registration: r.Str("r"),
	}

	cached, err := m.DB.CachedRoute(callsign, m.RouteCacheAge)
	if err != nil {
		return false, err
	}
	switch {
	case cached != nil:
		e.FlightNumber = cached.FlightNumber
		e.Route = cached.Route
		e.Origin = cached.Origin
		e.Destination = cached.Destination

	case !m.sessionSeen[callsign]:
		m.sessionSeen[callsign] = true
		if !m.SkipAPI && m.API != nil {
			if f, err := m.API.LookupCallsign(ctx, callsign); err == nil && f != nil {
				e.FlightNumber = f.FlightNumber
				e.Route = f.Route
				e.Origin = f.Origin
				e.Destination = f.Destination
				if e.AircraftType == "" {
					e.AircraftType = f.AircraftType
				}
				if e.Registration == "" {
					e.Registration = f.Registration
				}
				if err := m.DB.CacheRoute(Route{
					Callsign:     callsign,
					FlightNumber: f.FlightNumber,
					Route:        f.Route,
					Origin:       f.Origin,
					Destination:  f.Destination,
				}); err != nil {
					logrus.WithError(err).Warn("route cache write failed")
				}
				logrus.WithFields(logrus.Fields{
					"callsign": callsign,
					"route":    f.Route,
				}).Info("looked up route")
			}
		}
	}

	if e.FlightNumber == "" {
		e.FlightNumber = fr24.FlightNumber(callsign)
	}

	if _, err := m.DB.Upsert(e); err != nil {
		return false, err
	}
	if err := m.DB.AddSighting(callsign, seenAt, e.HexCode); err != nil {
		return false, err
	}
	return true, nil
}

// scanFile reads a segment from startLine, processing tracked records.
// Returns the new line position.
func (m *Monitor) scanFile(ctx context.Context, path string, startLine int) int {
	tracked := 0
	pos := startLine

	// Scan unfiltered and let Tracked decide; the prefix check is cheap
	// per record and multi-prefix matching has no single-Filter form.
	newPos, err := segment.StreamRecordsFrom(path, segment.Filter{}, startLine, func(r adsb.Record) error {
		ok, perr := m.ProcessRecord(ctx, r)
		if perr != nil {
			return perr
		}
		if ok {
			tracked++
		}
		return nil
	})
	if err != nil {
		logrus.WithError(err).WithField("file", path).Warn("monitor scan ended early")
	}
	if newPos > pos {
		pos = newPos
	}
	if tracked > 0 {
		logrus.WithFields(logrus.Fields{
			"file":    path,
			"tracked": tracked,
		}).Debug("tracked callsigns found")
	}
	return pos
}

// recentFiles returns the segment files covering now back LookbackHours,
// sorted ascending by name. The newest file comes last, so the tail
// position saved in RunOnce matches it on the next cycle instead of forcing
// a rescan of the growing active segment from line 0.
func (m *Monitor) recentFiles(now time.Time) []string {
	seen := make(map[string]bool)
	var out []string
	for h := m.LookbackHours; h >= 0; h-- {
		t := now.Add(-time.Duration(h) * time.Hour)
		for _, p := range m.Store.FilesForHours(t, t.UTC().Hour(), t.UTC().Hour()) {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return filepath.Base(out[i]) < filepath.Base(out[j])
	})
	return out
}

// RunOnce performs one live scan cycle over the recent files.
func (m *Monitor) RunOnce(ctx context.Context) {
	for _, path := range m.recentFiles(time.Now().UTC()) {
		start := 0
		if path == m.lastFile {
			start = m.lastLine
		}
		m.lastLine = m.scanFile(ctx, path, start)
		m.lastFile = path
	}
}

// Run tails the archive until the context is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	logrus.WithFields(logrus.Fields{
		"tracking": strings.Join(m.prefixes(), ", "),
		"interval": m.Interval,
	}).Info("starting callsign monitor")

	if !m.SkipAPI && m.API != nil {
		if m.API.TestConnection(ctx) {
			logrus.Info("fr24 API connection verified")
		} else {
			logrus.Warn("fr24 API connection failed, using heuristic flight numbers")
		}
	}

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		m.RunOnce(ctx)
		select {
		case <-ctx.Done():
			logrus.Info("callsign monitor stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ScanHistorical processes every segment in the inclusive date range,
// without API lookups unless explicitly enabled.
func (m *Monitor) ScanHistorical(ctx context.Context, start, end time.Time) error {
	files := m.Store.FilesForRange(start, end)
	for i, path := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		m.scanFile(ctx, path, 0)
		logrus.WithFields(logrus.Fields{
			"file":     path,
			"progress": i + 1,
			"total":    len(files),
		}).Info("scanned")
	}

	stats, err := m.DB.GetStats()
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"files":     len(files),
		"callsigns": stats.TotalCallsigns,
	}).Info("historical scan complete")
	return nil
}

// RunLive polls a snapshot endpoint instead of the archive. Suited to
// containerized decoder setups where the monitor runs apart from the
// ingest host.
func (m *Monitor) RunLive(ctx context.Context, fetcher *adsb.Fetcher) error {
	logrus.WithField("url", fetcher.URL).Info("starting live callsign monitor")

	if !m.SkipAPI && m.API != nil {
		m.API.TestConnection(ctx)
	}

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		snap, err := fetcher.Fetch(ctx)
		if err != nil {
			logrus.WithError(err).Warn("snapshot fetch failed")
		} else {
			now := time.Now().UTC()
			recs := adsb.Project(snap, now.Unix(), now.Format(time.RFC3339), 0)
			for _, r := range recs {
				if _, err := m.ProcessRecord(ctx, r); err != nil {
					logrus.WithError(err).Warn("record processing failed")
				}
			}
		}

		select {
		case <-ctx.Done():
			logrus.Info("live callsign monitor stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
