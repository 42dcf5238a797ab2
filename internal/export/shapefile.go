package export

import (
	"fmt"
	"path/filepath"
	"strconv"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"

	"github.com/mapswipe-utils/mapswipe2hdx/internal/geo"
)

// writeShapefiles writes one shapefile per geometry type present, since
// the format cannot mix geometry types in a single file. Geometry types
// with no features produce no file.
func writeShapefiles(col *geo.Collection, baseName, outDir string) ([]string, error) {
	var files []string

	for _, part := range col.PartitionByGeometryType() {
		shapeType, err := shapeTypeFor(part.GeometryType)
		if err != nil {
			return nil, err
		}

		path := filepath.Join(outDir, fmt.Sprintf("%s_%s.shp", baseName, part.GeometryType))
		if err := writeShapefile(path, shapeType, part, col.Schema); err != nil {
			return nil, err
		}

		log.Debug().
			Str("path", path).
			Str("geometry", part.GeometryType).
			Int("features", len(part.Features)).
			Msg("Shapefile written")

		files = append(files, path)
	}

	return files, nil
}

func writeShapefile(path string, shapeType shp.ShapeType, part geo.Partition, schema []string) error {
	w, err := shp.Create(path, shapeType)
	if err != nil {
		return err
	}
	defer w.Close()

	fields := make([]shp.Field, 0, len(schema))
	for _, name := range schema {
		fields = append(fields, dbfField(name, part.Features))
	}
	w.SetFields(fields)

	for row, f := range part.Features {
		shape, err := toShape(f.Geometry)
		if err != nil {
			return err
		}
		w.Write(shape)

		for i, name := range schema {
			v := f.Properties[name]
			if v == nil {
				continue
			}
			if err := w.WriteAttribute(row, i, dbfValue(v)); err != nil {
				return err
			}
		}
	}

	return nil
}

func shapeTypeFor(geomType string) (shp.ShapeType, error) {
	switch geomType {
	case "Point":
		return shp.POINT, nil
	case "MultiPoint":
		return shp.MULTIPOINT, nil
	case "LineString", "MultiLineString":
		return shp.POLYLINE, nil
	case "Polygon", "MultiPolygon":
		return shp.POLYGON, nil
	}
	return shp.NULL, fmt.Errorf("geometry type %s is not representable as a shapefile", geomType)
}

func toShape(g orb.Geometry) (shp.Shape, error) {
	switch t := g.(type) {
	case orb.Point:
		return &shp.Point{X: t[0], Y: t[1]}, nil
	case orb.MultiPoint:
		points := shpPoints(orb.LineString(t))
		return &shp.MultiPoint{
			Box:       shp.BBoxFromPoints(points),
			NumPoints: int32(len(points)),
			Points:    points,
		}, nil
	case orb.LineString:
		return shp.NewPolyLine([][]shp.Point{shpPoints(t)}), nil
	case orb.MultiLineString:
		parts := make([][]shp.Point, 0, len(t))
		for _, ls := range t {
			parts = append(parts, shpPoints(ls))
		}
		return shp.NewPolyLine(parts), nil
	case orb.Polygon:
		return (*shp.Polygon)(shp.NewPolyLine(ringParts(t))), nil
	case orb.MultiPolygon:
		var parts [][]shp.Point
		for _, poly := range t {
			parts = append(parts, ringParts(poly)...)
		}
		return (*shp.Polygon)(shp.NewPolyLine(parts)), nil
	}
	return nil, fmt.Errorf("geometry type %s is not representable as a shapefile", g.GeoJSONType())
}

func ringParts(p orb.Polygon) [][]shp.Point {
	parts := make([][]shp.Point, 0, len(p))
	for _, ring := range p {
		parts = append(parts, shpPoints(orb.LineString(ring)))
	}
	return parts
}

func shpPoints(ls orb.LineString) []shp.Point {
	points := make([]shp.Point, 0, len(ls))
	for _, p := range ls {
		points = append(points, shp.Point{X: p[0], Y: p[1]})
	}
	return points
}

// dbfField derives the DBF column for an attribute from the first non-null
// value. DBF limits field names to 10 bytes; longer names are truncated.
func dbfField(name string, features []*geojson.Feature) shp.Field {
	short := name
	if len(short) > 10 {
		short = short[:10]
	}

	for _, f := range features {
		switch f.Properties[name].(type) {
		case nil:
			continue
		case float64, float32, int, int64:
			return shp.FloatField(short, 32, 8)
		default:
			return shp.StringField(short, 128)
		}
	}
	return shp.StringField(short, 128)
}

func dbfValue(v interface{}) interface{} {
	if b, ok := v.(bool); ok {
		return strconv.FormatBool(b)
	}
	return v
}
