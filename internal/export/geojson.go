package export

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/mapswipe-utils/mapswipe2hdx/internal/geo"
)

// writeGeoJSON marshals the collection and writes it to a single file.
// Null-filled attributes from schema widening serialize as JSON nulls, so
// every row carries the full unioned schema.
func writeGeoJSON(col *geo.Collection, baseName, outDir string) ([]string, error) {
	path := filepath.Join(outDir, baseName+".geojson")

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	// We care about write errors on close
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			log.Error().Err(closeErr).Str("path", path).Msg("Failed to close file")
		}
	}()

	if err := json.NewEncoder(f).Encode(col.FeatureCollection()); err != nil {
		return nil, err
	}

	return []string{path}, nil
}
