package callsign

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Entry is one registry row.
type Entry struct {
	ID            int64
	Callsign      string
	FlightNumber  string
	Route         string
	Origin        string
	Destination   string
	Airline       string
	HexCode       string
	AircraftType  string
	Registration  string
	FirstSeen     string
	LastSeen      string
	SightingCount int
}

// Route is cached route data for one callsign.
type Route struct {
	Callsign     string
	FlightNumber string
	Route        string
	Origin       string
	Destination  string
	CachedAt     time.Time
}

// Schedule is the observed frequency pattern for one callsign.
type Schedule struct {
	Callsign       string      `json:"callsign"`
	TotalSightings int         `json:"total_sightings"`
	ByDayOfWeek    map[int]int `json:"by_day_of_week"`
	ByHour         map[int]int `json:"by_hour"`
}

// Stats summarizes the registry.
type Stats struct {
	TotalCallsigns int            `json:"total_callsigns"`
	TotalSightings int            `json:"total_sightings"`
	ByAirline      map[string]int `json:"by_airline"`
	TopCallsigns   []TopCallsign  `json:"top_callsigns"`
}

// TopCallsign is one entry of the most-seen list.
type TopCallsign struct {
	Callsign      string `json:"callsign"`
	SightingCount int    `json:"sighting_count"`
}

// DB wraps the SQLite registry database.
type DB struct {
	db *sql.DB

	// Now is the wall clock; replaceable in tests.
	Now func() time.Time
}

// Open opens or creates the registry at path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logrus.WithField("path", path).Info("callsign registry opened")
	return &DB{db: db, Now: time.Now}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) nowISO() string {
	return d.Now().UTC().Format(time.RFC3339)
}

// nullable converts "" to SQL NULL so COALESCE keeps existing values on
// update.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Upsert inserts or updates a callsign. New rows start at sighting_count 1;
// existing rows bump the count and keep old values where the new ones are
// empty. Returns true for a newly seen callsign.
func (d *DB) Upsert(e Entry) (bool, error) {
	now := d.nowISO()

	var count int
	err := d.db.QueryRow("SELECT sighting_count FROM callsigns WHERE callsign = ?", e.Callsign).Scan(&count)
	switch {
	case err == sql.ErrNoRows:
		_, err := d.db.Exec(`
			INSERT INTO callsigns (
				callsign, airline, hex_code, aircraft_type, registration,
				flight_number, route, origin, destination,
				first_seen, last_seen, sighting_count, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			e.Callsign, e.Airline, nullable(e.HexCode), nullable(e.AircraftType), nullable(e.Registration),
			nullable(e.FlightNumber), nullable(e.Route), nullable(e.Origin), nullable(e.Destination),
			now, now, now, now)
		if err != nil {
			return false, fmt.Errorf("insert callsign: %w", err)
		}
		logrus.WithFields(logrus.Fields{
			"callsign": e.Callsign,
			"airline":  e.Airline,
		}).Info("new callsign")
		return true, nil

	case err != nil:
		return false, fmt.Errorf("query callsign: %w", err)
	}

	_, err = d.db.Exec(`
		UPDATE callsigns SET
			last_seen = ?,
			sighting_count = ?,
			updated_at = ?,
			hex_code = COALESCE(?, hex_code),
			aircraft_type = COALESCE(?, aircraft_type),
			registration = COALESCE(?, registration),
			flight_number = COALESCE(?, flight_number),
			route = COALESCE(?, route),
			origin = COALESCE(?, origin),
			destination = COALESCE(?, destination)
		WHERE callsign = ?`,
		now, count+1, now,
		nullable(e.HexCode), nullable(e.AircraftType), nullable(e.Registration),
		nullable(e.FlightNumber), nullable(e.Route), nullable(e.Origin), nullable(e.Destination),
		e.Callsign)
	if err != nil {
		return false, fmt.Errorf("update callsign: %w", err)
	}
	return false, nil
}

// AddSighting records one sighting for schedule analysis. Weekday is stored
// with Monday=0, matching the schedule reports.
func (d *DB) AddSighting(callsign string, seenAt time.Time, hexCode string) error {
	seenAt = seenAt.UTC()
	dow := (int(seenAt.Weekday()) + 6) % 7
	_, err := d.db.Exec(`
		INSERT INTO sightings (callsign, seen_at, day_of_week, hour_of_day, hex_code)
		VALUES (?, ?, ?, ?, ?)`,
		callsign, seenAt.Format(time.RFC3339), dow, seenAt.Hour(), nullable(hexCode))
	if err != nil {
		return fmt.Errorf("insert sighting: %w", err)
	}
	return nil
}

func scanEntry(row interface{ Scan(...any) error }) (Entry, error) {
	var e Entry
	var flightNumber, route, origin, dest, airline, hexCode, acType, reg sql.NullString
	err := row.Scan(&e.ID, &e.Callsign, &flightNumber, &route, &origin, &dest,
		&airline, &hexCode, &acType, &reg,
		&e.FirstSeen, &e.LastSeen, &e.SightingCount)
	if err != nil {
		return e, err
	}
	e.FlightNumber = flightNumber.String
	e.Route = route.String
	e.Origin = origin.String
	e.Destination = dest.String
	e.Airline = airline.String
	e.HexCode = hexCode.String
	e.AircraftType = acType.String
	e.Registration = reg.String
	return e, nil
}

const entryColumns = `id, callsign, flight_number, route, origin, destination,
	airline, hex_code, aircraft_type, registration,
	first_seen, last_seen, sighting_count`

// Get returns one callsign's entry, or nil when unknown.
func (d *DB) Get(callsign string) (*Entry, error) {
	row := d.db.QueryRow("SELECT "+entryColumns+" FROM callsigns WHERE callsign = ?", callsign)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query callsign: %w", err)
	}
	return &e, nil
}

// All returns every entry ordered by sighting count, optionally filtered by
// airline.
func (d *DB) All(airline string) ([]Entry, error) {
	var rows *sql.Rows
	var err error
	if airline != "" {
		rows, err = d.db.Query("SELECT "+entryColumns+" FROM callsigns WHERE airline = ? ORDER BY sighting_count DESC", airline)
	} else {
		rows, err = d.db.Query("SELECT " + entryColumns + " FROM callsigns ORDER BY sighting_count DESC")
	}
	if err != nil {
		return nil, fmt.Errorf("query callsigns: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan callsign: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Schedule computes frequency by weekday and hour for one callsign.
func (d *DB) Schedule(callsign string) (*Schedule, error) {
	s := &Schedule{
		Callsign:    callsign,
		ByDayOfWeek: make(map[int]int),
		ByHour:      make(map[int]int),
	}

	rows, err := d.db.Query(`
		SELECT day_of_week, COUNT(*) FROM sightings WHERE callsign = ?
		GROUP BY day_of_week ORDER BY day_of_week`, callsign)
	if err != nil {
		return nil, fmt.Errorf("query schedule: %w", err)
	}
	for rows.Next() {
		var dow, n int
		if err := rows.Scan(&dow, &n); err != nil {
			rows.Close()
			return nil, err
		}
		s.ByDayOfWeek[dow] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = d.db.Query(`
		SELECT hour_of_day, COUNT(*) FROM sightings WHERE callsign = ?
		GROUP BY hour_of_day ORDER BY hour_of_day`, callsign)
	if err != nil {
		return nil, fmt.Errorf("query schedule: %w", err)
	}
	for rows.Next() {
		var hour, n int
		if err := rows.Scan(&hour, &n); err != nil {
			rows.Close()
			return nil, err
		}
		s.ByHour[hour] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := d.db.QueryRow("SELECT COUNT(*) FROM sightings WHERE callsign = ?", callsign).Scan(&s.TotalSightings); err != nil {
		return nil, fmt.Errorf("count sightings: %w", err)
	}
	return s, nil
}

// CacheRoute stores a route lookup result, replacing any previous one.
func (d *DB) CacheRoute(r Route) error {
	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO route_cache
		(callsign, flight_number, route, origin, destination, cached_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Callsign, nullable(r.FlightNumber), nullable(r.Route),
		nullable(r.Origin), nullable(r.Destination), d.nowISO())
	if err != nil {
		return fmt.Errorf("cache route: %w", err)
	}
	return nil
}

// CachedRoute returns the cached route if present and younger than maxAge.
func (d *DB) CachedRoute(callsign string, maxAge time.Duration) (*Route, error) {
	var r Route
	var flightNumber, route, origin, dest sql.NullString
	var cachedAt string
	err := d.db.QueryRow(`
		SELECT callsign, flight_number, route, origin, destination, cached_at
		FROM route_cache WHERE callsign = ?`, callsign).
		Scan(&r.Callsign, &flightNumber, &route, &origin, &dest, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query route cache: %w", err)
	}

	r.FlightNumber = flightNumber.String
	r.Route = route.String
	r.Origin = origin.String
	r.Destination = dest.String

	t, err := time.Parse(time.RFC3339, cachedAt)
	if err != nil {
		return nil, nil
	}
	r.CachedAt = t
	if d.Now().UTC().Sub(t) > maxAge {
		return nil, nil
	}
	return &r, nil
}

// ExportCSV writes all entries (optionally one airline) to a CSV file with a
// fixed column order. Missing values become empty cells.
func (d *DB) ExportCSV(path, airline string) error {
	entries, err := d.All(airline)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	if len(entries) == 0 {
		_, err := f.WriteString("No data\n")
		return err
	}

	w := csv.NewWriter(f)
	header := []string{
		"callsign", "flight_number", "route", "origin", "destination",
		"airline", "hex_code", "aircraft_type", "registration",
		"first_seen", "last_seen", "sighting_count",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.Callsign, e.FlightNumber, e.Route, e.Origin, e.Destination,
			e.Airline, e.HexCode, e.AircraftType, e.Registration,
			e.FirstSeen, e.LastSeen, fmt.Sprintf("%d", e.SightingCount),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"callsigns": len(entries),
		"path":      path,
	}).Info("exported callsigns")
	return nil
}

// GetStats computes registry totals, per-airline counts, and the ten most
// sighted callsigns.
func (d *DB) GetStats() (*Stats, error) {
	s := &Stats{ByAirline: make(map[string]int)}

	if err := d.db.QueryRow("SELECT COUNT(*) FROM callsigns").Scan(&s.TotalCallsigns); err != nil {
		return nil, fmt.Errorf("count callsigns: %w", err)
	}
	if err := d.db.QueryRow("SELECT COUNT(*) FROM sightings").Scan(&s.TotalSightings); err != nil {
		return nil, fmt.Errorf("count sightings: %w", err)
	}

	rows, err := d.db.Query("SELECT airline, COUNT(*) FROM callsigns GROUP BY airline")
	if err != nil {
		return nil, fmt.Errorf("query airlines: %w", err)
	}
	for rows.Next() {
		var airline sql.NullString
		var n int
		if err := rows.Scan(&airline, &n); err != nil {
			rows.Close()
			return nil, err
		}
		s.ByAirline[airline.String] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = d.db.Query("SELECT callsign, sighting_count FROM callsigns ORDER BY sighting_count DESC LIMIT 10")
	if err != nil {
		return nil, fmt.Errorf("query top callsigns: %w", err)
	}
	for rows.Next() {
		var tc TopCallsign
		if err := rows.Scan(&tc.Callsign, &tc.SightingCount); err != nil {
			rows.Close()
			return nil, err
		}
		s.TopCallsigns = append(s.TopCallsigns, tc)
	}
	rows.Close()
	return s, rows.Err()
}
