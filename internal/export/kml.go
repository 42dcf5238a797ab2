package export

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"

	"github.com/mapswipe-utils/mapswipe2hdx/internal/geo"
)

// KML output document structure. Attributes go into ExtendedData as
// strings; type information is not preserved, which is an accepted
// limitation of the format.
type kmlRoot struct {
	XMLName  xml.Name    `xml:"kml"`
	XMLNS    string      `xml:"xmlns,attr"`
	Document kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	Name       string         `xml:"name"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name          string           `xml:"name,omitempty"`
	ExtendedData  *kmlExtendedData `xml:"ExtendedData,omitempty"`
	Point         *kmlCoords       `xml:"Point,omitempty"`
	LineString    *kmlCoords       `xml:"LineString,omitempty"`
	Polygon       *kmlPolygon      `xml:"Polygon,omitempty"`
	MultiGeometry *kmlMulti        `xml:"MultiGeometry,omitempty"`
}

type kmlExtendedData struct {
	Data []kmlData `xml:"Data"`
}

type kmlData struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

type kmlCoords struct {
	Coordinates string `xml:"coordinates"`
}

type kmlPolygon struct {
	Outer kmlBoundary   `xml:"outerBoundaryIs"`
	Inner []kmlBoundary `xml:"innerBoundaryIs,omitempty"`
}

type kmlBoundary struct {
	LinearRing kmlCoords `xml:"LinearRing"`
}

type kmlMulti struct {
	Points      []kmlCoords  `xml:"Point,omitempty"`
	LineStrings []kmlCoords  `xml:"LineString,omitempty"`
	Polygons    []kmlPolygon `xml:"Polygon,omitempty"`
}

func writeKML(col *geo.Collection, baseName, outDir string) ([]string, error) {
	path := filepath.Join(outDir, baseName+".kml")

	doc := kmlRoot{
		XMLNS:    "http://www.opengis.net/kml/2.2",
		Document: kmlDocument{Name: baseName},
	}

	for _, f := range col.Features {
		pm := kmlPlacemark{}

		if name, ok := f.Properties["name"].(string); ok {
			pm.Name = name
		}

		if len(col.Schema) > 0 {
			ed := &kmlExtendedData{}
			for _, attr := range col.Schema {
				ed.Data = append(ed.Data, kmlData{Name: attr, Value: kmlValue(f.Properties[attr])})
			}
			pm.ExtendedData = ed
		}

		if f.Geometry != nil {
			if err := setKMLGeometry(&pm, f.Geometry); err != nil {
				return nil, err
			}
		}

		doc.Document.Placemarks = append(doc.Document.Placemarks, pm)
	}

	out, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", path).Msg("Failed to close file")
		}
	}()

	if _, err := out.WriteString(xml.Header); err != nil {
		return nil, err
	}

	enc := xml.NewEncoder(out)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}

	return []string{path}, nil
}

func setKMLGeometry(pm *kmlPlacemark, g orb.Geometry) error {
	switch t := g.(type) {
	case orb.Point:
		pm.Point = &kmlCoords{Coordinates: kmlPoint(t)}
	case orb.LineString:
		pm.LineString = &kmlCoords{Coordinates: kmlLine(t)}
	case orb.Polygon:
		pm.Polygon = kmlPoly(t)
	case orb.MultiPoint:
		multi := &kmlMulti{}
		for _, p := range t {
			multi.Points = append(multi.Points, kmlCoords{Coordinates: kmlPoint(p)})
		}
		pm.MultiGeometry = multi
	case orb.MultiLineString:
		multi := &kmlMulti{}
		for _, ls := range t {
			multi.LineStrings = append(multi.LineStrings, kmlCoords{Coordinates: kmlLine(ls)})
		}
		pm.MultiGeometry = multi
	case orb.MultiPolygon:
		multi := &kmlMulti{}
		for _, poly := range t {
			multi.Polygons = append(multi.Polygons, *kmlPoly(poly))
		}
		pm.MultiGeometry = multi
	default:
		return fmt.Errorf("unsupported geometry type %s", g.GeoJSONType())
	}
	return nil
}

func kmlPoly(p orb.Polygon) *kmlPolygon {
	out := &kmlPolygon{}
	for i, ring := range p {
		coords := kmlCoords{Coordinates: kmlLine(orb.LineString(ring))}
		if i == 0 {
			out.Outer = kmlBoundary{LinearRing: coords}
		} else {
			out.Inner = append(out.Inner, kmlBoundary{LinearRing: coords})
		}
	}
	return out
}

func kmlLine(ls orb.LineString) string {
	parts := make([]string, 0, len(ls))
	for _, p := range ls {
		parts = append(parts, kmlPoint(p))
	}
	return strings.Join(parts, " ")
}

func kmlPoint(p orb.Point) string {
	return strconv.FormatFloat(p[0], 'f', -1, 64) + "," + strconv.FormatFloat(p[1], 'f', -1, 64)
}

func kmlValue(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
