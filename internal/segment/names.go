// Package segment implements the hour-segmented JSONL(.gz) archive: file
// naming, the active-hour writer with atomic finalize, streaming readers,
// and retention pruning.
package segment

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	// FilePrefix starts every segment file name.
	FilePrefix = "adsb_state_"

	suffixJSONL = ".jsonl"
	suffixGz    = ".jsonl.gz"
	suffixPart  = ".jsonl.gz.part"

	keyLayout = "2006-01-02_15"
)

// HourKey formats t (converted to UTC) as the segment hour key
// YYYY-MM-DD_HH.
func HourKey(t time.Time) string {
	return t.UTC().Format(keyLayout)
}

// KeyTime decodes an hour key back to its UTC hour. ok is false for
// malformed keys.
func KeyTime(key string) (time.Time, bool) {
	t, err := time.Parse(keyLayout, key)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// ParseKey extracts the hour key from a segment file name, either plain or
// finalized. Anything that is not exactly prefix + 13-char key + suffix
// yields "".
func ParseKey(name string) string {
	name = filepath.Base(name)
	if !strings.HasPrefix(name, FilePrefix) {
		return ""
	}
	var core string
	switch {
	case strings.HasSuffix(name, suffixGz):
		core = name[len(FilePrefix) : len(name)-len(suffixGz)]
	case strings.HasSuffix(name, suffixJSONL):
		core = name[len(FilePrefix) : len(name)-len(suffixJSONL)]
	default:
		return ""
	}
	// sanity: "2025-12-21_23"
	if len(core) != 13 || core[4] != '-' || core[7] != '-' || core[10] != '_' {
		return ""
	}
	return core
}

// KeyHour returns the hour (0-23) encoded in a key, or -1 if malformed.
func KeyHour(key string) int {
	t, ok := KeyTime(key)
	if !ok {
		return -1
	}
	return t.Hour()
}

// ActivePath is the plain JSONL path for an hour key in dir.
func ActivePath(dir, key string) string {
	return filepath.Join(dir, FilePrefix+key+suffixJSONL)
}

// FinalPath is the compressed path for an hour key in dir.
func FinalPath(dir, key string) string {
	return filepath.Join(dir, FilePrefix+key+suffixGz)
}

// partPath is the temporary compression target for an hour key in dir.
func partPath(dir, key string) string {
	return filepath.Join(dir, FilePrefix+key+suffixPart)
}

// IsCompressed reports whether path names a finalized segment.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, suffixGz)
}
