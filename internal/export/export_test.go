package export

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"

	"github.com/mapswipe-utils/mapswipe2hdx/internal/geo"
)

func testCollection(t *testing.T) *geo.Collection {
	t.Helper()

	var col geo.Collection

	a := geojson.NewFeatureCollection()
	for i := 0; i < 3; i++ {
		f := geojson.NewFeature(orb.Point{float64(i), float64(i)})
		f.Properties["severity"] = float64(i + 1)
		f.Properties["project_name"] = "Project Alpha"
		a.Append(f)
	}
	col.Append(a)

	b := geojson.NewFeatureCollection()
	for i := 0; i < 2; i++ {
		f := geojson.NewFeature(orb.Point{float64(10 + i), float64(10 + i)})
		f.Properties["confidence"] = 0.5
		f.Properties["project_name"] = "Project Beta"
		b.Append(f)
	}
	col.Append(b)

	return &col
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"geojson", "gpkg", "kml", "shp"} {
		f, err := ParseFormat(name)
		require.NoError(t, err)
		require.Equal(t, name, string(f))
	}

	_, err := ParseFormat("csv")
	require.Error(t, err)
}

func TestExportGeoJSON(t *testing.T) {
	col := testCollection(t)
	dir := t.TempDir()

	art, err := Export(col, "results_yes_maybe", GeoJSON, dir)
	require.NoError(t, err)
	require.Len(t, art.Files, 1)

	data, err := os.ReadFile(art.Files[0])
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, fc.Features, 5)

	// Widened schema: every row carries both attributes, null-filled
	for _, f := range fc.Features {
		_, hasSeverity := f.Properties["severity"]
		_, hasConfidence := f.Properties["confidence"]
		require.True(t, hasSeverity)
		require.True(t, hasConfidence)
	}
	require.Nil(t, fc.Features[0].Properties["confidence"])
	require.Nil(t, fc.Features[4].Properties["severity"])
}

func TestExportGeoPackage(t *testing.T) {
	col := testCollection(t)
	dir := t.TempDir()

	art, err := Export(col, "results_yes_maybe", GeoPackage, dir)
	require.NoError(t, err)
	require.Len(t, art.Files, 1)

	db, err := sql.Open("sqlite", art.Files[0])
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "results_yes_maybe"`).Scan(&count))
	require.Equal(t, 5, count)

	var table string
	require.NoError(t, db.QueryRow(`SELECT table_name FROM gpkg_contents`).Scan(&table))
	require.Equal(t, "results_yes_maybe", table)

	var nulls int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "results_yes_maybe" WHERE "confidence" IS NULL`).Scan(&nulls))
	require.Equal(t, 3, nulls)

	var geomLen int
	require.NoError(t, db.QueryRow(`SELECT LENGTH(geom) FROM "results_yes_maybe" LIMIT 1`).Scan(&geomLen))
	// 8-byte GPKG header plus a WKB point
	require.Equal(t, 8+21, geomLen)
}

func TestExportKML(t *testing.T) {
	col := testCollection(t)
	dir := t.TempDir()

	art, err := Export(col, "results_yes_maybe", KML, dir)
	require.NoError(t, err)

	data, err := os.ReadFile(art.Files[0])
	require.NoError(t, err)

	body := string(data)
	require.Equal(t, 5, strings.Count(body, "<Placemark>"))
	require.Contains(t, body, `<Data name="severity">`)
	require.Contains(t, body, `<Data name="project_name">`)
	require.Contains(t, body, "<coordinates>0,0</coordinates>")
}

func TestExportKMLPolygon(t *testing.T) {
	var col geo.Collection
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}))
	col.Append(fc)

	dir := t.TempDir()
	art, err := Export(&col, "aois", KML, dir)
	require.NoError(t, err)

	data, err := os.ReadFile(art.Files[0])
	require.NoError(t, err)
	require.Contains(t, string(data), "<outerBoundaryIs>")
	require.Contains(t, string(data), "0,0 1,0 1,1 0,0")
}

func TestExportShapefilePartitionsByGeometryType(t *testing.T) {
	var col geo.Collection

	fc := geojson.NewFeatureCollection()
	p1 := geojson.NewFeature(orb.Point{1, 1})
	p1.Properties["name"] = "pt1"
	p2 := geojson.NewFeature(orb.Point{2, 2})
	p2.Properties["name"] = "pt2"
	poly := geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}})
	poly.Properties["name"] = "poly1"
	fc.Append(p1)
	fc.Append(poly)
	fc.Append(p2)
	col.Append(fc)

	dir := t.TempDir()
	art, err := Export(&col, "results_yes_maybe", Shapefile, dir)
	require.NoError(t, err)
	require.Len(t, art.Files, 2)
	require.Equal(t, filepath.Join(dir, "results_yes_maybe_Point.shp"), art.Files[0])
	require.Equal(t, filepath.Join(dir, "results_yes_maybe_Polygon.shp"), art.Files[1])

	require.Equal(t, 2, countShapes(t, art.Files[0]))
	require.Equal(t, 1, countShapes(t, art.Files[1]))
}

func countShapes(t *testing.T, path string) int {
	t.Helper()

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close()

	n := 0
	for r.Next() {
		n++
	}
	return n
}

func TestExportEmptyShapefileProducesNoFiles(t *testing.T) {
	var col geo.Collection

	dir := t.TempDir()
	art, err := Export(&col, "results_yes_maybe", Shapefile, dir)
	require.NoError(t, err)
	require.Empty(t, art.Files)
}

func TestExportErrorNamesFormat(t *testing.T) {
	col := testCollection(t)

	// Not writable: the output directory path exists as a file
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0644))

	_, err := Export(col, "results_yes_maybe", GeoJSON, filepath.Join(blocked, "sub"))
	var eerr *ExportError
	require.ErrorAs(t, err, &eerr)
	require.Equal(t, GeoJSON, eerr.Format)
}
