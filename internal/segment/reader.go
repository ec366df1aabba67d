package segment

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/marcoculver/adsb-logger/internal/adsb"
)

// Filter selects records during a segment scan. A zero Filter matches
// everything; every non-empty field must match. All matches start with a
// cheap case-insensitive substring prefilter on the raw line, then verify
// against the parsed fields, so false prefilter hits never reach the
// caller. Callsign and Hex verify by exact (case-folded) equality;
// CallsignPrefix verifies by prefix.
type Filter struct {
	Callsign       string
	CallsignPrefix string
	Hex            string
}

func (f Filter) empty() bool {
	return f.Callsign == "" && f.CallsignPrefix == "" && f.Hex == ""
}

// unmarshalRecord is the full-record decode, a var so scans can be
// instrumented.
var unmarshalRecord = json.Unmarshal

// prefilterHit reports whether the raw line can possibly match. A matching
// record contains each wanted value somewhere in its line, so every set
// field's substring must be present. Substring match is over-broad on
// purpose; exact verification happens after parse.
func (f Filter) prefilterHit(line string) bool {
	if f.empty() {
		return true
	}
	lower := strings.ToLower(line)
	if f.Callsign != "" && !strings.Contains(lower, strings.ToLower(f.Callsign)) {
		return false
	}
	if f.CallsignPrefix != "" && !strings.Contains(lower, strings.ToLower(f.CallsignPrefix)) {
		return false
	}
	if f.Hex != "" && !strings.Contains(lower, strings.ToLower(f.Hex)) {
		return false
	}
	return true
}

// verify checks the parsed fields of a prefilter hit. Every set field must
// match; a record passing on callsign alone must not slip through a
// narrower callsign+hex scan.
func (f Filter) verify(line string) bool {
	if f.Callsign != "" || f.CallsignPrefix != "" {
		fl := strings.ToUpper(strings.TrimSpace(gjson.Get(line, "flight").String()))
		if f.Callsign != "" && fl != strings.ToUpper(f.Callsign) {
			return false
		}
		if f.CallsignPrefix != "" && !strings.HasPrefix(fl, strings.ToUpper(f.CallsignPrefix)) {
			return false
		}
	}
	if f.Hex != "" {
		hx := strings.TrimSpace(gjson.Get(line, "hex").String())
		if !strings.EqualFold(hx, f.Hex) {
			return false
		}
	}
	return true
}

// StreamRecords reads one segment file, plain or gzipped, calling fn for
// every record that passes the filter. Corrupt JSON lines are skipped with
// a debug log; a read error mid-file (truncated gzip and the like) ends
// that file early and is returned for the caller to decide on. fn returning
// an error aborts the stream.
func StreamRecords(path string, filter Filter, fn func(adsb.Record) error) error {
	_, err := StreamRecordsFrom(path, filter, 0, fn)
	return err
}

// StreamRecordsFrom is StreamRecords with a resumable position: the first
// fromLine lines are skipped without parsing, and the returned count is the
// total number of lines seen, usable as fromLine on the next call. The live
// monitor uses this to tail the active segment across polls.
func StreamRecordsFrom(path string, filter Filter, fromLine int, fn func(adsb.Record) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open segment %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if IsCompressed(path) {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("gzip reader %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	base := filepath.Base(path)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 60*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo <= fromLine {
			continue
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !filter.prefilterHit(line) {
			continue
		}
		if !filter.verify(line) {
			continue
		}

		var rec adsb.Record
		if err := unmarshalRecord([]byte(line), &rec); err != nil {
			logrus.WithFields(logrus.Fields{
				"file": base,
				"line": lineNo,
			}).WithError(err).Debug("skipping corrupt record line")
			continue
		}
		if err := fn(rec); err != nil {
			return lineNo, err
		}
	}
	if err := scanner.Err(); err != nil {
		return lineNo, fmt.Errorf("read segment %s: %w", path, err)
	}
	return lineNo, nil
}
