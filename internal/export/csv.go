// Package export writes extraction artifacts: grouped-column CSV and 3D KML
// flight paths.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/marcoculver/adsb-logger/internal/adsb"
)

// columnGroups orders CSV columns for logical reading. Group order matters;
// it drives both the header comments and the flattened column order.
var columnGroups = []struct {
	Name    string
	Columns []string
}{
	{"timestamp", []string{"_ts", "_ts_iso"}},
	{"identity", []string{"hex", "flight", "squawk", "category", "t", "r", "desc", "ownOp"}},
	{"position", []string{"lat", "lon", "alt_baro", "alt_geom"}},
	{"velocity", []string{"gs", "ias", "tas", "mach", "baro_rate", "geom_rate"}},
	{"direction", []string{"track", "true_heading", "mag_heading", "calc_track", "track_rate", "roll"}},
	{"atmospheric", []string{"wd", "ws", "oat", "tat"}},
	{"navigation", []string{"nav_altitude_mcp", "nav_altitude_fms", "nav_heading", "nav_qnh"}},
	{"data_quality", []string{"nic", "nac_p", "nac_v", "sil", "gva", "sda", "rssi"}},
	{"signal", []string{"messages", "seen", "seen_pos", "r_dst", "r_dir"}},
	{"source", []string{"src", "mlat", "tisb", "_poll"}},
}

// columnOrder is the flattened group order.
var columnOrder = func() []string {
	var out []string
	for _, g := range columnGroups {
		out = append(out, g.Columns...)
	}
	return out
}()

// minimalColumns is the reduced column set for quick analysis.
var minimalColumns = []string{
	"_ts_iso", "flight", "lat", "lon", "alt_baro", "gs", "track", "baro_rate",
}

// cellValue renders one record value for CSV: nil and missing become empty,
// bools become 1/0, numbers print compactly, everything else via Sprint.
func cellValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		if x {
			return "1"
		}
		return "0"
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

// usedColumns finds every key with at least one non-empty value.
func usedColumns(records []adsb.Record) map[string]bool {
	used := make(map[string]bool)
	for _, r := range records {
		for k, v := range r {
			if v == nil || v == "" {
				continue
			}
			used[k] = true
		}
	}
	return used
}

// WriteCSV exports records to path with grouped column order. Only columns
// that carry data appear; unknown keys are appended alphabetically after the
// known groups. When withComments is set a commented group legend precedes
// the header row.
func WriteCSV(records []adsb.Record, path string, withComments bool) error {
	if len(records) == 0 {
		logrus.Warn("no records to export")
		return nil
	}

	used := usedColumns(records)

	var columns []string
	known := make(map[string]bool)
	for _, c := range columnOrder {
		known[c] = true
		if used[c] {
			columns = append(columns, c)
		}
	}
	var extra []string
	for c := range used {
		if !known[c] {
			extra = append(extra, c)
		}
	}
	sort.Strings(extra)
	columns = append(columns, extra...)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	if withComments {
		fmt.Fprintln(f, "# ADS-B Flight Data Export")
		fmt.Fprintln(f, "# Column Groups:")
		for _, g := range columnGroups {
			fmt.Fprintf(f, "#   %s: %s\n", g.Name, strings.Join(g.Columns, ", "))
		}
		fmt.Fprintln(f, "#")
	}

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(columns))
	for _, r := range records {
		for i, c := range columns {
			row[i] = cellValue(r[c])
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
		"records": len(records),
		"columns": len(columns),
		"path":    path,
	}).Info("csv export complete")
	return nil
}

// WriteMinimalCSV exports only the essential columns, always all of them.
func WriteMinimalCSV(records []adsb.Record, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(minimalColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	row := make([]string, len(minimalColumns))
	for _, r := range records {
		for i, c := range minimalColumns {
			row[i] = cellValue(r[c])
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
