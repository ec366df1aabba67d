// Package flight reconstructs individual flights from archived records:
// midnight crossover resolution, splitting shared callsigns into separate
// legs, metadata computation, and descent analysis.
package flight

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcoculver/adsb-logger/internal/scan"
	"github.com/marcoculver/adsb-logger/internal/segment"
)

const (
	// DefaultGapThreshold is the largest silence, in seconds, still counted
	// as the same flight.
	DefaultGapThreshold = 300

	// DefaultMaxCrossoverHours bounds how far past midnight the crossover
	// search walks.
	DefaultMaxCrossoverHours = 6

	// DefaultMidnightWindow is how many hours around midnight are probed
	// for activity.
	DefaultMidnightWindow = 3

	// midnightProximity is how close to midnight, in seconds, a flight must
	// have been active for the adjacent day to be searched at all.
	midnightProximity = 1800
)

// CrossoverDetector expands a requested date to the date range actually
// covered by a flight that crosses 00:00 UTC.
type CrossoverDetector struct {
	Store             *segment.Store
	GapThreshold      int64
	MaxCrossoverHours int
	MidnightWindow    int
}

// NewCrossoverDetector creates a detector over the archive with default
// thresholds.
func NewCrossoverDetector(store *segment.Store) *CrossoverDetector {
	return &CrossoverDetector{
		Store:             store,
		GapThreshold:      DefaultGapThreshold,
		MaxCrossoverHours: DefaultMaxCrossoverHours,
		MidnightWindow:    DefaultMidnightWindow,
	}
}

// Detect returns the (start, end) dates covering the callsign's flight
// around the requested date. Both equal date when nothing crosses midnight.
func (d *CrossoverDetector) Detect(callsign string, date time.Time) (time.Time, time.Time) {
	date = date.UTC().Truncate(24 * time.Hour)

	end := d.forward(callsign, date)
	start := d.backward(callsign, date)

	if !start.Equal(date) || !end.Equal(date) {
		logrus.WithFields(logrus.Fields{
			"callsign": callsign,
			"start":    start.Format("2006-01-02"),
			"end":      end.Format("2006-01-02"),
		}).Info("midnight crossover detected")
	}
	return start, end
}

// forward checks whether the flight was still active near the end of date
// and, if so, walks into the next day to find where it actually ends.
func (d *CrossoverDetector) forward(callsign string, date time.Time) time.Time {
	evening := scan.Callsign(d.Store, callsign, "", date, 24-d.MidnightWindow, 23)
	if len(evening) == 0 {
		return date
	}

	lastTS := evening[len(evening)-1].TS()
	midnight := date.AddDate(0, 0, 1)
	if midnight.Unix()-lastTS > midnightProximity {
		return date
	}

	return d.findEndDate(callsign, date.AddDate(0, 0, 1), lastTS)
}

// backward checks whether the flight was already active near the start of
// date and, if so, walks into the previous day to find where it began.
func (d *CrossoverDetector) backward(callsign string, date time.Time) time.Time {
	morning := scan.Callsign(d.Store, callsign, "", date, 0, d.MidnightWindow-1)
	if len(morning) == 0 {
		return date
	}

	firstTS := morning[0].TS()
	if firstTS-date.Unix() > midnightProximity {
		return date
	}

	return d.findStartDate(callsign, date.AddDate(0, 0, -1), firstTS)
}

// findEndDate walks forward hour by hour from checkDate until the record
// chain breaks or the hour budget runs out. Returns the last date with
// connected records, which is the day before checkDate when the flight
// never continued.
func (d *CrossoverDetector) findEndDate(callsign string, checkDate time.Time, lastKnownTS int64) time.Time {
	endDate := checkDate.AddDate(0, 0, -1)
	current := checkDate
	prevTS := lastKnownTS

	for h := 0; h < d.MaxCrossoverHours; h++ {
		hour := h % 24
		if hour == 0 && h > 0 {
			current = current.AddDate(0, 0, 1)
		}

		recs := scan.Callsign(d.Store, callsign, "", current, hour, hour)
		if len(recs) == 0 {
			if h > 0 && int64(h)*3600 > d.GapThreshold {
				return endDate
			}
			continue
		}

		for _, r := range recs {
			ts := r.TS()
			if ts-prevTS > d.GapThreshold {
				logrus.WithField("gap_s", ts-prevTS).Debug("forward crossover gap, ending search")
				return endDate
			}
			prevTS = ts
			endDate = current
		}
	}
	return endDate
}

// findStartDate walks backward hour by hour from checkDate until the chain
// breaks. Returns the earliest date with connected records, which is the day
// after checkDate when the flight started on the requested day after all.
func (d *CrossoverDetector) findStartDate(callsign string, checkDate time.Time, firstKnownTS int64) time.Time {
	startDate := checkDate.AddDate(0, 0, 1)
	current := checkDate
	nextTS := firstKnownTS

	for h := 0; h < d.MaxCrossoverHours; h++ {
		hour := 23 - (h % 24)
		if hour == 23 && h > 0 {
			current = current.AddDate(0, 0, -1)
		}

		recs := scan.Callsign(d.Store, callsign, "", current, hour, hour)
		if len(recs) == 0 {
			if int64(h+1)*3600 > d.GapThreshold {
				return startDate
			}
			continue
		}

		if nextTS-recs[len(recs)-1].TS() > d.GapThreshold {
			logrus.WithField("gap_s", nextTS-recs[len(recs)-1].TS()).Debug("backward crossover gap, ending search")
			return startDate
		}

		nextTS = recs[0].TS()
		startDate = current
	}
	return startDate
}
