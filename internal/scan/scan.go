// Package scan runs multi-file archive queries: collect matching records
// across segments, list callsigns seen on a date, pull a time range.
package scan

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcoculver/adsb-logger/internal/adsb"
	"github.com/marcoculver/adsb-logger/internal/segment"
)

// Progress is called once per file before it is scanned. May be nil.
type Progress func(index, total int, path string)

// Files collects matching records from the given segment files, sorted by
// timestamp. A file that cannot be read is logged and skipped; records
// already collected from it are kept.
func Files(files []string, filter segment.Filter, progress Progress) []adsb.Record {
	var out []adsb.Record
	for i, path := range files {
		if progress != nil {
			progress(i, len(files), path)
		}
		err := segment.StreamRecords(path, filter, func(r adsb.Record) error {
			out = append(out, r)
			return nil
		})
		if err != nil {
			logrus.WithError(err).WithField("file", filepath.Base(path)).Warn("segment scan ended early")
		}
	}
	// Stable keeps intra-poll file order for records sharing a timestamp.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TS() < out[j].TS()
	})
	return out
}

// Callsign scans all segments of a UTC date for one callsign, optionally
// narrowed to an hex address and an inclusive hour range.
func Callsign(store *segment.Store, callsign, hex string, date time.Time, startHour, endHour int) []adsb.Record {
	var files []string
	if startHour == 0 && endHour == 23 {
		files = store.FilesForDate(date)
	} else {
		files = store.FilesForHours(date, startHour, endHour)
	}
	return Files(files, segment.Filter{Callsign: callsign, Hex: hex}, nil)
}

// Range collects a callsign's records between start and end (inclusive
// timestamps), reading only the segments those hours can live in.
func Range(store *segment.Store, callsign, hex string, start, end time.Time) []adsb.Record {
	files := store.FilesForRange(start, end)
	recs := Files(files, segment.Filter{Callsign: callsign, Hex: hex}, nil)

	lo, hi := start.Unix(), end.Unix()
	out := recs[:0]
	for _, r := range recs {
		if ts := r.TS(); ts >= lo && ts <= hi {
			out = append(out, r)
		}
	}
	return out
}

// UniqueCallsigns returns every distinct callsign observed on a UTC date,
// sorted, with the hours each was seen in. Records without a flight field
// are ignored.
func UniqueCallsigns(store *segment.Store, date time.Time) ([]string, map[string][]int) {
	hoursFor := make(map[string]map[int]bool)

	for _, path := range store.FilesForDate(date) {
		hour := segment.KeyHour(segment.ParseKey(path))
		err := segment.StreamRecords(path, segment.Filter{}, func(r adsb.Record) error {
			cs := r.Callsign()
			if cs == "" {
				return nil
			}
			if hoursFor[cs] == nil {
				hoursFor[cs] = make(map[int]bool)
			}
			if hour >= 0 {
				hoursFor[cs][hour] = true
			}
			return nil
		})
		if err != nil {
			logrus.WithError(err).WithField("file", filepath.Base(path)).Warn("segment scan ended early")
		}
	}

	names := make([]string, 0, len(hoursFor))
	byHour := make(map[string][]int, len(hoursFor))
	for cs, hs := range hoursFor {
		names = append(names, cs)
		hours := make([]int, 0, len(hs))
		for h := range hs {
			hours = append(hours, h)
		}
		sort.Ints(hours)
		byHour[cs] = hours
	}
	sort.Strings(names)
	return names, byHour
}
