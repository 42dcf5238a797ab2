package export

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
	_ "modernc.org/sqlite"

	"github.com/mapswipe-utils/mapswipe2hdx/internal/geo"
)

const gpkgSRID = 4326

// writeGeoPackage writes the collection into a single-table GeoPackage.
// A GeoPackage is a SQLite database with registry tables describing the
// feature tables and their spatial reference systems.
func writeGeoPackage(col *geo.Collection, baseName, outDir string) ([]string, error) {
	path := filepath.Join(outDir, baseName+".gpkg")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geopackage: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := initGeoPackage(db); err != nil {
		return nil, err
	}

	table := baseName
	if err := createFeatureTable(db, table, col); err != nil {
		return nil, err
	}

	if err := insertFeatures(db, table, col); err != nil {
		return nil, err
	}

	return []string{path}, nil
}

func initGeoPackage(db *sql.DB) error {
	stmts := []string{
		"PRAGMA application_id = 0x47504B47",
		"PRAGMA user_version = 10300",
		`CREATE TABLE gpkg_spatial_ref_sys (
			srs_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL PRIMARY KEY,
			organization TEXT NOT NULL,
			organization_coordsys_id INTEGER NOT NULL,
			definition TEXT NOT NULL,
			description TEXT
		)`,
		`INSERT INTO gpkg_spatial_ref_sys VALUES
			('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', NULL),
			('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', NULL),
			('WGS 84 geodetic', 4326, 'EPSG', 4326,
			 'GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]',
			 'longitude/latitude coordinates in decimal degrees')`,
		`CREATE TABLE gpkg_contents (
			table_name TEXT NOT NULL PRIMARY KEY,
			data_type TEXT NOT NULL,
			identifier TEXT UNIQUE,
			description TEXT DEFAULT '',
			last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
			srs_id INTEGER,
			CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
		)`,
		`CREATE TABLE gpkg_geometry_columns (
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			geometry_type_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL,
			z TINYINT NOT NULL,
			m TINYINT NOT NULL,
			CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize geopackage: %w", err)
		}
	}
	return nil
}

func createFeatureTable(db *sql.DB, table string, col *geo.Collection) error {
	cols := []string{"fid INTEGER PRIMARY KEY AUTOINCREMENT", "geom BLOB"}
	for _, name := range col.Schema {
		cols = append(cols, fmt.Sprintf("%s %s", quoteIdent(name), columnType(col, name)))
	}

	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(cols, ", "))
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create feature table: %w", err)
	}

	if _, err := db.Exec(
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, srs_id) VALUES (?, 'features', ?, ?)`,
		table, table, gpkgSRID,
	); err != nil {
		return err
	}

	_, err := db.Exec(
		`INSERT INTO gpkg_geometry_columns VALUES (?, 'geom', 'GEOMETRY', ?, 0, 0)`,
		table, gpkgSRID,
	)
	return err
}

func insertFeatures(db *sql.DB, table string, col *geo.Collection) error {
	cols := []string{"geom"}
	marks := []string{"?"}
	for _, name := range col.Schema {
		cols = append(cols, quoteIdent(name))
		marks = append(marks, "?")
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(cols, ", "), strings.Join(marks, ", "),
	)

	tx, err := db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, f := range col.Features {
		blob, err := gpkgGeometry(f)
		if err != nil {
			_ = tx.Rollback()
			return err
		}

		args := []interface{}{blob}
		for _, name := range col.Schema {
			args = append(args, columnValue(f.Properties[name]))
		}

		if _, err := stmt.Exec(args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert feature: %w", err)
		}
	}

	return tx.Commit()
}

// gpkgGeometry encodes a feature geometry as a GeoPackage geometry blob:
// the standard 8-byte header (magic, version, flags, SRS ID) followed by
// the little-endian WKB payload.
func gpkgGeometry(f *geojson.Feature) ([]byte, error) {
	if f.Geometry == nil {
		return nil, nil
	}

	payload, err := wkb.Marshal(f.Geometry, binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("failed to encode geometry: %w", err)
	}

	header := make([]byte, 8)
	header[0] = 0x47 // 'G'
	header[1] = 0x50 // 'P'
	header[2] = 0    // version
	header[3] = 0x01 // little-endian, no envelope
	binary.LittleEndian.PutUint32(header[4:], gpkgSRID)

	return append(header, payload...), nil
}

// columnType picks the SQLite affinity for an attribute by scanning the
// first non-null value. Projects do not share a schema, so TEXT is the
// fallback for never-seen or mixed values.
func columnType(col *geo.Collection, name string) string {
	for _, f := range col.Features {
		switch f.Properties[name].(type) {
		case nil:
			continue
		case float64, float32, int, int64:
			return "REAL"
		case bool:
			return "INTEGER"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}

func columnValue(v interface{}) interface{} {
	switch t := v.(type) {
	case bool:
		if t {
			return 1
		}
		return 0
	case string, float64, float32, int, int64, nil:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
