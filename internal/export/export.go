// Package export writes aggregated feature collections to disk in the
// supported vector formats.
package export

import (
	"fmt"
	"os"

	"github.com/mapswipe-utils/mapswipe2hdx/internal/geo"
)

// Format is one of the supported output vector formats.
type Format string

const (
	GeoJSON    Format = "geojson"
	GeoPackage Format = "gpkg"
	KML        Format = "kml"
	Shapefile  Format = "shp"
)

// ParseFormat maps a settings string to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case GeoJSON, GeoPackage, KML, Shapefile:
		return Format(s), nil
	}
	return "", fmt.Errorf("unsupported file format %q", s)
}

// DisplayName returns the user-friendly name of the format.
func (f Format) DisplayName() string {
	switch f {
	case GeoJSON:
		return "GeoJSON"
	case GeoPackage:
		return "GeoPackage"
	case KML:
		return "KML"
	case Shapefile:
		return "Shapefile"
	}
	return string(f)
}

// Artifact describes one export output: the directory it was written to
// and the files produced, in write order. The directory is transient and
// removed once the archive packager has consumed it.
type Artifact struct {
	Format Format
	Dir    string
	Files  []string
}

// ExportError reports a write failure for one format.
type ExportError struct {
	Format Format
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export to %s: %v", e.Format, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Export writes the collection into outDir as baseName in the given
// format, creating outDir if needed. The shapefile format is split into
// one file per geometry type present, since it cannot mix geometry types;
// the other formats produce a single file.
func Export(col *geo.Collection, baseName string, format Format, outDir string) (*Artifact, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, &ExportError{Format: format, Err: err}
	}

	var (
		files []string
		err   error
	)

	switch format {
	case GeoJSON:
		files, err = writeGeoJSON(col, baseName, outDir)
	case GeoPackage:
		files, err = writeGeoPackage(col, baseName, outDir)
	case KML:
		files, err = writeKML(col, baseName, outDir)
	case Shapefile:
		files, err = writeShapefiles(col, baseName, outDir)
	default:
		err = fmt.Errorf("unsupported file format %q", format)
	}

	if err != nil {
		return nil, &ExportError{Format: format, Err: err}
	}

	return &Artifact{Format: format, Dir: outDir, Files: files}, nil
}
