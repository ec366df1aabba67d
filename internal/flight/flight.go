package flight

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcoculver/adsb-logger/internal/adsb"
	"github.com/marcoculver/adsb-logger/internal/scan"
	"github.com/marcoculver/adsb-logger/internal/segment"
)

// Position is a lat/lon pair in decimal degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Metadata summarizes one extracted flight.
type Metadata struct {
	Callsign     string `json:"callsign"`
	HexCode      string `json:"hex,omitempty"`
	Registration string `json:"registration,omitempty"`
	AircraftType string `json:"aircraft_type,omitempty"`
	Operator     string `json:"operator,omitempty"`

	FirstSeen       time.Time `json:"first_seen,omitempty"`
	LastSeen        time.Time `json:"last_seen,omitempty"`
	DurationMinutes float64   `json:"duration_minutes"`

	FirstPosition *Position `json:"first_position,omitempty"`
	LastPosition  *Position `json:"last_position,omitempty"`
	MaxAltitudeFt *float64  `json:"max_altitude_ft,omitempty"`
	MinAltitudeFt *float64  `json:"min_altitude_ft,omitempty"`
	MaxGroundSpeed *float64 `json:"max_ground_speed_kts,omitempty"`

	RequestedDate     string  `json:"requested_date"`
	ActualStartDate   string  `json:"actual_start_date"`
	ActualEndDate     string  `json:"actual_end_date"`
	CrossoverDetected bool    `json:"crossover_detected"`
	FilesScanned      int     `json:"files_scanned"`
	RecordsExtracted  int     `json:"records_extracted"`
	ExtractionSeconds float64 `json:"extraction_time_seconds"`
}

// Data is a complete extraction result.
type Data struct {
	Metadata Metadata
	Records  []adsb.Record
	OutDir   string
}

// SameFlight reports whether two records belong to one continuous flight:
// same hex address and a time gap within maxGap seconds.
func SameFlight(a, b adsb.Record, maxGap int64) bool {
	if a.Hex() != b.Hex() {
		return false
	}
	gap := b.TS() - a.TS()
	if gap < 0 {
		gap = -gap
	}
	return gap <= maxGap
}

// Split partitions timestamp-ordered records into separate continuous
// flights. A callsign reused for two rotations in one day splits at the
// silent gap between them.
func Split(records []adsb.Record, maxGap int64) [][]adsb.Record {
	if len(records) == 0 {
		return nil
	}
	var flights [][]adsb.Record
	current := []adsb.Record{records[0]}
	for i := 1; i < len(records); i++ {
		if SameFlight(records[i-1], records[i], maxGap) {
			current = append(current, records[i])
		} else {
			flights = append(flights, current)
			current = []adsb.Record{records[i]}
		}
	}
	flights = append(flights, current)

	logrus.WithFields(logrus.Fields{
		"records": len(records),
		"flights": len(flights),
	}).Debug("split records into flights")
	return flights
}

// ComputeMetadata fills the flight-derived fields of m from ordered records.
func ComputeMetadata(m *Metadata, records []adsb.Record) {
	if len(records) == 0 {
		return
	}

	firstTS := records[0].TS()
	lastTS := records[len(records)-1].TS()
	if firstTS > 0 {
		m.FirstSeen = time.Unix(firstTS, 0).UTC()
	}
	if lastTS > 0 {
		m.LastSeen = time.Unix(lastTS, 0).UTC()
	}
	if firstTS > 0 && lastTS > 0 {
		m.DurationMinutes = float64(lastTS-firstTS) / 60.0
	}

	// Identity: first record carrying each field wins.
	for _, r := range records {
		if m.HexCode == "" {
			m.HexCode = r.Hex()
		}
		if m.Registration == "" {
			m.Registration = r.Str("r")
		}
		if m.AircraftType == "" {
			m.AircraftType = r.Str("t")
		}
		if m.Operator == "" {
			m.Operator = r.Str("ownOp")
		}
		if m.HexCode != "" && m.Registration != "" && m.AircraftType != "" && m.Operator != "" {
			break
		}
	}

	for _, r := range records {
		if lat, lon, ok := r.Position(); ok {
			m.FirstPosition = &Position{Lat: lat, Lon: lon}
			break
		}
	}
	for i := len(records) - 1; i >= 0; i-- {
		if lat, lon, ok := records[i].Position(); ok {
			m.LastPosition = &Position{Lat: lat, Lon: lon}
			break
		}
	}

	// The "ground" sentinel never feeds the extrema.
	for _, r := range records {
		if alt, ok := r.Num("alt_baro"); ok {
			if m.MaxAltitudeFt == nil || alt > *m.MaxAltitudeFt {
				v := alt
				m.MaxAltitudeFt = &v
			}
			if m.MinAltitudeFt == nil || alt < *m.MinAltitudeFt {
				v := alt
				m.MinAltitudeFt = &v
			}
		}
		if gs, ok := r.Num("gs"); ok {
			if m.MaxGroundSpeed == nil || gs > *m.MaxGroundSpeed {
				v := gs
				m.MaxGroundSpeed = &v
			}
		}
	}
}

// Extractor orchestrates a full extraction: crossover resolution, archive
// scan, metadata, output directory.
type Extractor struct {
	Store     *segment.Store
	OutputDir string
	Crossover *CrossoverDetector
}

// NewExtractor creates an extractor writing under outputDir.
func NewExtractor(store *segment.Store, outputDir string) *Extractor {
	return &Extractor{
		Store:     store,
		OutputDir: outputDir,
		Crossover: NewCrossoverDetector(store),
	}
}

// Extract pulls all of a callsign's records for date, expanding across
// midnight when checkCrossover is set. A result with zero records is not an
// error; its metadata still reports what was searched.
func (e *Extractor) Extract(callsign string, date time.Time, checkCrossover, makeDir bool, progress scan.Progress) (*Data, error) {
	started := time.Now()
	callsign = strings.ToUpper(strings.TrimSpace(callsign))
	date = date.UTC().Truncate(24 * time.Hour)

	logrus.WithFields(logrus.Fields{
		"callsign": callsign,
		"date":     date.Format("2006-01-02"),
	}).Info("extracting flight data")

	m := Metadata{
		Callsign:      callsign,
		RequestedDate: date.Format("2006-01-02"),
	}

	start, end := date, date
	if checkCrossover {
		start, end = e.Crossover.Detect(callsign, date)
	}
	m.ActualStartDate = start.Format("2006-01-02")
	m.ActualEndDate = end.Format("2006-01-02")
	m.CrossoverDetected = !start.Equal(date) || !end.Equal(date)

	var files []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		files = append(files, e.Store.FilesForDate(d)...)
	}
	m.FilesScanned = len(files)

	records := scan.Files(files, segment.Filter{Callsign: callsign}, progress)
	m.RecordsExtracted = len(records)

	if len(records) == 0 {
		logrus.WithField("callsign", callsign).Warn("no records found")
		m.ExtractionSeconds = time.Since(started).Seconds()
		return &Data{Metadata: m}, nil
	}

	ComputeMetadata(&m, records)

	outDir := ""
	if makeDir {
		var err error
		outDir, err = e.CreateOutputDir(callsign, date)
		if err != nil {
			return nil, err
		}
	}

	m.ExtractionSeconds = time.Since(started).Seconds()

	logrus.WithFields(logrus.Fields{
		"callsign":     callsign,
		"records":      len(records),
		"duration_min": fmt.Sprintf("%.1f", m.DurationMinutes),
	}).Info("extraction complete")

	return &Data{Metadata: m, Records: records, OutDir: outDir}, nil
}

// CreateOutputDir makes <OutputDir>/YYYYMMDD_CALLSIGN/ (plus charts/).
func (e *Extractor) CreateOutputDir(callsign string, date time.Time) (string, error) {
	dir := filepath.Join(e.OutputDir, date.Format("20060102")+"_"+strings.ToUpper(callsign))
	if err := os.MkdirAll(filepath.Join(dir, "charts"), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return dir, nil
}

// SaveMetadata writes metadata.json into the flight's output directory.
func SaveMetadata(d *Data) (string, error) {
	if d.OutDir == "" {
		return "", fmt.Errorf("no output directory set")
	}
	path := filepath.Join(d.OutDir, "metadata.json")

	b, err := json.MarshalIndent(d.Metadata, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write metadata: %w", err)
	}
	return path, nil
}

// Summary renders the human-readable flight summary.
func Summary(d *Data) string {
	m := d.Metadata
	var b strings.Builder

	orNA := func(s, fallback string) string {
		if s == "" {
			return fallback
		}
		return s
	}

	fmt.Fprintf(&b, "Flight Summary: %s\n", m.Callsign)
	b.WriteString(strings.Repeat("=", 40) + "\n\n")
	fmt.Fprintf(&b, "Aircraft: %s (%s)\n", orNA(m.AircraftType, "Unknown"), orNA(m.Registration, "N/A"))
	fmt.Fprintf(&b, "Operator: %s\n", orNA(m.Operator, "Unknown"))
	fmt.Fprintf(&b, "ICAO Hex: %s\n\n", orNA(m.HexCode, "Unknown"))

	tsOrNA := func(t time.Time) string {
		if t.IsZero() {
			return "N/A"
		}
		return t.Format("2006-01-02 15:04:05 UTC")
	}
	fmt.Fprintf(&b, "First Seen: %s\n", tsOrNA(m.FirstSeen))
	fmt.Fprintf(&b, "Last Seen:  %s\n", tsOrNA(m.LastSeen))
	fmt.Fprintf(&b, "Duration:   %.1f minutes\n\n", m.DurationMinutes)

	if m.FirstPosition != nil {
		fmt.Fprintf(&b, "Start: %.4f, %.4f\n", m.FirstPosition.Lat, m.FirstPosition.Lon)
	}
	if m.LastPosition != nil {
		fmt.Fprintf(&b, "End:   %.4f, %.4f\n", m.LastPosition.Lat, m.LastPosition.Lon)
	}
	b.WriteString("\n")

	if m.MaxAltitudeFt != nil {
		fmt.Fprintf(&b, "Max Altitude:     %.0f ft\n", *m.MaxAltitudeFt)
	} else {
		b.WriteString("Max Altitude: N/A\n")
	}
	if m.MinAltitudeFt != nil {
		fmt.Fprintf(&b, "Min Altitude:     %.0f ft\n", *m.MinAltitudeFt)
	} else {
		b.WriteString("Min Altitude: N/A\n")
	}
	if m.MaxGroundSpeed != nil {
		fmt.Fprintf(&b, "Max Ground Speed: %.0f kts\n", *m.MaxGroundSpeed)
	} else {
		b.WriteString("Max Speed: N/A\n")
	}

	b.WriteString("\nExtraction Info:\n")
	fmt.Fprintf(&b, "  Requested Date: %s\n", m.RequestedDate)
	yn := "No"
	if m.CrossoverDetected {
		yn = "Yes"
	}
	fmt.Fprintf(&b, "  Crossover:      %s\n", yn)
	fmt.Fprintf(&b, "  Files Scanned:  %d\n", m.FilesScanned)
	fmt.Fprintf(&b, "  Records:        %d\n", m.RecordsExtracted)
	fmt.Fprintf(&b, "  Time:           %.2fs\n", m.ExtractionSeconds)

	return b.String()
}

// SaveSummary writes summary.txt into the flight's output directory.
func SaveSummary(d *Data) (string, error) {
	if d.OutDir == "" {
		return "", fmt.Errorf("no output directory set")
	}
	path := filepath.Join(d.OutDir, "summary.txt")
	if err := os.WriteFile(path, []byte(Summary(d)), 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}
