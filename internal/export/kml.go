package export

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/marcoculver/adsb-logger/internal/adsb"
)

// KML structures for XML marshalling, following the KML 2.2 specification:
// https://developers.google.com/kml/documentation/kmlreference

// KML is the root element of a KML document.
type KML struct {
	XMLName   xml.Name `xml:"kml"`
	Namespace string   `xml:"xmlns,attr"`
	Document  Document `xml:"Document"`
}

// Document contains the document metadata and features.
type Document struct {
	Name       string      `xml:"name"`
	Styles     []Style     `xml:"Style,omitempty"`
	Placemarks []Placemark `xml:"Placemark"`
}

// Style defines the visual appearance of features.
type Style struct {
	ID        string     `xml:"id,attr"`
	LineStyle *LineStyle `xml:"LineStyle,omitempty"`
	IconStyle *IconStyle `xml:"IconStyle,omitempty"`
}

// LineStyle defines how lines are displayed.
type LineStyle struct {
	Color string `xml:"color"` // aabbggrr
	Width int    `xml:"width"`
}

// IconStyle defines how icons are displayed.
type IconStyle struct {
	Scale float64 `xml:"scale,omitempty"`
	Icon  Icon    `xml:"Icon"`
}

// Icon specifies the icon image.
type Icon struct {
	Href string `xml:"href"`
}

// Placemark represents a geographic feature with geometry and metadata.
type Placemark struct {
	Name        string      `xml:"name"`
	Description string      `xml:"description,omitempty"`
	StyleURL    string      `xml:"styleUrl,omitempty"`
	LineString  *LineString `xml:"LineString,omitempty"`
	Point       *Point      `xml:"Point,omitempty"`
}

// LineString is a connected path of coordinates.
type LineString struct {
	AltitudeMode string `xml:"altitudeMode"`
	Tessellate   int    `xml:"tessellate"`
	Coordinates  string `xml:"coordinates"` // lon,lat,alt tuples
}

// Point represents a geographic location.
type Point struct {
	AltitudeMode string `xml:"altitudeMode"`
	Coordinates  string `xml:"coordinates"`
}

// altitudeColors maps altitude bands (ft) to KML colors (aabbggrr).
var altitudeColors = []struct {
	MinAltFt float64
	Color    string
}{
	{0, "ff0000ff"},     // red: ground
	{10000, "ff00a5ff"}, // orange
	{20000, "ff00ffff"}, // yellow
	{30000, "ff00ff00"}, // green
	{40000, "ffff7f00"}, // cyan
	{50000, "ffff0000"}, // blue
}

// AltitudeColor maps an altitude to its band color.
func AltitudeColor(altFt float64) string {
	for i := len(altitudeColors) - 1; i >= 0; i-- {
		if altFt >= altitudeColors[i].MinAltFt {
			return altitudeColors[i].Color
		}
	}
	return altitudeColors[0].Color
}

const ftToM = 0.3048

// altitudeFt reads alt_baro treating "ground" and junk as 0, which keeps the
// path anchored to the surface while taxiing.
func altitudeFt(r adsb.Record) float64 {
	if v, ok := r.Num("alt_baro"); ok {
		return v
	}
	return 0
}

func coordTuple(r adsb.Record) (string, bool) {
	lat, lon, ok := r.Position()
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%.6f,%.6f,%.1f", lon, lat, altitudeFt(r)*ftToM), true
}

// WriteKML renders the flight as a 3D KML path with start, end, and
// max-altitude placemarks. Records without a position are skipped; with no
// positioned records at all no file is written.
func WriteKML(records []adsb.Record, path, callsign, flightDate string) error {
	var positioned []adsb.Record
	var coords []string
	for _, r := range records {
		if c, ok := coordTuple(r); ok {
			positioned = append(positioned, r)
			coords = append(coords, c)
		}
	}
	if len(positioned) == 0 {
		logrus.Warn("no positioned records for KML generation")
		return nil
	}

	title := callsign
	if flightDate != "" {
		title += " - " + flightDate
	}

	start := positioned[0]
	end := positioned[len(positioned)-1]

	maxIdx := 0
	for i, r := range positioned {
		if altitudeFt(r) > altitudeFt(positioned[maxIdx]) {
			maxIdx = i
		}
	}
	maxAlt := positioned[maxIdx]

	placemarks := []Placemark{
		{
			Name:     "Flight Path",
			StyleURL: "#flightPath",
			LineString: &LineString{
				AltitudeMode: "absolute",
				Tessellate:   1,
				Coordinates:  strings.Join(coords, " "),
			},
		},
		pointPlacemark("Start", "#startIcon", start),
		pointPlacemark("End", "#endIcon", end),
	}
	if alt := altitudeFt(maxAlt); alt > 0 {
		pm := pointPlacemark(fmt.Sprintf("Max Alt: %.0f ft", alt), "#maxIcon", maxAlt)
		placemarks = append(placemarks, pm)
	}

	doc := KML{
		Namespace: "http://www.opengis.net/kml/2.2",
		Document: Document{
			Name: title,
			Styles: []Style{
				{ID: "flightPath", LineStyle: &LineStyle{Color: AltitudeColor(40000), Width: 3}},
				{ID: "startIcon", IconStyle: &IconStyle{Scale: 1.0, Icon: Icon{Href: "http://maps.google.com/mapfiles/kml/paddle/grn-circle.png"}}},
				{ID: "endIcon", IconStyle: &IconStyle{Scale: 1.0, Icon: Icon{Href: "http://maps.google.com/mapfiles/kml/paddle/red-circle.png"}}},
				{ID: "maxIcon", IconStyle: &IconStyle{Scale: 0.8, Icon: Icon{Href: "http://maps.google.com/mapfiles/kml/paddle/blu-circle.png"}}},
			},
			Placemarks: placemarks,
		},
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("generate kml: %w", err)
	}
	out := xml.Header + string(data)

	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("write kml: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"points": len(positioned),
		"path":   path,
	}).Info("kml export complete")
	return nil
}

func pointPlacemark(name, styleURL string, r adsb.Record) Placemark {
	c, _ := coordTuple(r)
	desc := ""
	if iso := r.Str("_ts_iso"); iso != "" {
		desc = "Time: " + iso
	}
	return Placemark{
		Name:        name,
		Description: desc,
		StyleURL:    styleURL,
		Point: &Point{
			AltitudeMode: "absolute",
			Coordinates:  c,
		},
	}
}
