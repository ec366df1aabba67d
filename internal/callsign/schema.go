// Package callsign provides the persistent callsign registry: which
// callsigns were seen, when, on what airframe, and with what route.
package callsign

// schema contains the SQLite table definitions for the registry.
const schema = `
-- One row per unique callsign.
CREATE TABLE IF NOT EXISTS callsigns (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	callsign       TEXT NOT NULL,
	flight_number  TEXT,
	route          TEXT,
	origin         TEXT,
	destination    TEXT,
	airline        TEXT,
	hex_code       TEXT,
	aircraft_type  TEXT,
	registration   TEXT,
	first_seen     TEXT NOT NULL,
	last_seen      TEXT NOT NULL,
	sighting_count INTEGER DEFAULT 1,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL,
	UNIQUE(callsign)
);

-- One row per sighting, for schedule analysis. day_of_week is 0=Monday.
CREATE TABLE IF NOT EXISTS sightings (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	callsign    TEXT NOT NULL,
	seen_at     TEXT NOT NULL,
	day_of_week INTEGER,
	hour_of_day INTEGER,
	hex_code    TEXT,
	FOREIGN KEY (callsign) REFERENCES callsigns(callsign)
);

-- Route lookups cached from the flight data API.
CREATE TABLE IF NOT EXISTS route_cache (
	callsign      TEXT PRIMARY KEY,
	flight_number TEXT,
	route         TEXT,
	origin        TEXT,
	destination   TEXT,
	cached_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_callsigns_callsign ON callsigns(callsign);
CREATE INDEX IF NOT EXISTS idx_callsigns_airline ON callsigns(airline);
CREATE INDEX IF NOT EXISTS idx_sightings_callsign ON sightings(callsign);
CREATE INDEX IF NOT EXISTS idx_sightings_dow ON sightings(day_of_week);
CREATE INDEX IF NOT EXISTS idx_sightings_hour ON sightings(hour_of_day);
`
