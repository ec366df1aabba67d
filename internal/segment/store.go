package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Store is a read view over an archive root. Segments may live flat in the
// root or under a date-organized YYYY/MM/DD/ tree; both are searched and
// merged.
type Store struct {
	Root string
}

// NewStore creates a store over root.
func NewStore(root string) *Store {
	return &Store{Root: root}
}

// FilesForDate returns every segment for the given UTC date, ascending by
// hour. Duplicates between the flat and organized layouts collapse to one
// entry (flat wins, matching the writer's output location).
func (s *Store) FilesForDate(d time.Time) []string {
	d = d.UTC()
	datePrefix := d.Format("2006-01-02")

	seen := make(map[string]string) // base name -> path
	add := func(paths []string) {
		for _, p := range paths {
			base := filepath.Base(p)
			if ParseKey(base) == "" {
				continue
			}
			if _, ok := seen[base]; !ok {
				seen[base] = p
			}
		}
	}

	// Flat layout first.
	flat, _ := filepath.Glob(filepath.Join(s.Root, FilePrefix+datePrefix+"_*"))
	add(flat)

	// Organized layout: <root>/YYYY/MM/DD/
	orgDir := filepath.Join(s.Root, d.Format("2006"), d.Format("01"), d.Format("02"))
	if st, err := os.Stat(orgDir); err == nil && st.IsDir() {
		org, _ := filepath.Glob(filepath.Join(orgDir, FilePrefix+datePrefix+"_*"))
		add(org)
	}

	names := make([]string, 0, len(seen))
	for base := range seen {
		names = append(names, base)
	}
	sort.Strings(names) // name order is hour order

	out := make([]string, 0, len(names))
	for _, base := range names {
		out = append(out, seen[base])
	}
	return out
}

// FilesForHours filters FilesForDate to segments whose hour is within
// [startHour, endHour].
func (s *Store) FilesForHours(d time.Time, startHour, endHour int) []string {
	var out []string
	for _, p := range s.FilesForDate(d) {
		h := KeyHour(ParseKey(p))
		if h < 0 {
			logrus.WithField("file", filepath.Base(p)).Warn("could not parse hour from filename")
			continue
		}
		if h >= startHour && h <= endHour {
			out = append(out, p)
		}
	}
	return out
}

// FilesForRange returns all segments for the inclusive date range, sorted by
// name.
func (s *Store) FilesForRange(start, end time.Time) []string {
	var out []string
	for d := start.UTC().Truncate(24 * time.Hour); !d.After(end.UTC()); d = d.AddDate(0, 0, 1) {
		out = append(out, s.FilesForDate(d)...)
	}
	sort.Slice(out, func(i, j int) bool {
		return filepath.Base(out[i]) < filepath.Base(out[j])
	})
	return out
}

// Prune deletes segments in the flat root whose hour key is older than
// keepDays before now. Files whose names do not parse as segments are left
// alone.
func (s *Store) Prune(keepDays int, now time.Time) (removed int, err error) {
	cutoff := now.UTC().AddDate(0, 0, -keepDays)

	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return 0, fmt.Errorf("read archive dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key := ParseKey(e.Name())
		if key == "" {
			continue
		}
		kt, ok := KeyTime(key)
		if !ok {
			continue
		}
		if kt.Before(cutoff) {
			p := filepath.Join(s.Root, e.Name())
			if rmErr := os.Remove(p); rmErr != nil && !os.IsNotExist(rmErr) {
				logrus.WithError(rmErr).WithField("file", e.Name()).Warn("prune failed")
				continue
			}
			removed++
		}
	}
	return removed, nil
}
