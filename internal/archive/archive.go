// Package archive compresses per-format export directories into
// distributable zip bundles with an embedded provenance manifest.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultThreshold is the member size at which whole-file writes
	// switch to buffered streaming.
	DefaultThreshold = 100 * 1024 * 1024
	// DefaultBufferSize is the copy buffer used when streaming large
	// members. Peak memory per member stays bounded by this value no
	// matter how large a shapefile component grows.
	DefaultBufferSize = 4 * 1024 * 1024
)

// Bundle is a finished archive ready to hand to the registry.
type Bundle struct {
	ArchivePath string
	Manifest    string
}

// Packager zips export directories. The zero value is not usable; call
// New. Threshold and BufferSize are settable for tests.
type Packager struct {
	Threshold  int64
	BufferSize int
}

// New creates a Packager with the default streaming parameters.
func New() *Packager {
	return &Packager{
		Threshold:  DefaultThreshold,
		BufferSize: DefaultBufferSize,
	}
}

// Package zips every regular file directly under outDir into archivePath
// and appends a Readme.txt manifest. Members at or above Threshold are
// streamed through a fixed-size buffer. On success outDir is removed;
// removal failure is logged but not fatal. The zip writer handles zip64
// for members and archives past the legacy 4 GiB limits.
func (p *Packager) Package(outDir, archivePath, datasetName string) (*Bundle, error) {
	out, err := os.Create(archivePath)
	if err != nil {
		return nil, err
	}

	zw := zip.NewWriter(out)

	entries, err := os.ReadDir(outDir)
	if err != nil {
		_ = zw.Close()
		_ = out.Close()
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := p.addMember(zw, filepath.Join(outDir, entry.Name()), entry.Name()); err != nil {
			_ = zw.Close()
			_ = out.Close()
			return nil, err
		}
	}

	manifest := buildManifest(datasetName, time.Now().UTC())
	mw, err := zw.Create("Readme.txt")
	if err == nil {
		_, err = io.WriteString(mw, manifest)
	}
	if err != nil {
		_ = zw.Close()
		_ = out.Close()
		return nil, err
	}

	if err := zw.Close(); err != nil {
		_ = out.Close()
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, err
	}

	if err := os.RemoveAll(outDir); err != nil {
		log.Error().Err(err).Str("dir", outDir).Msg("Failed to remove export directory")
	}

	return &Bundle{ArchivePath: archivePath, Manifest: manifest}, nil
}

func (p *Packager) addMember(zw *zip.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: info.ModTime(),
	}

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	if info.Size() >= p.Threshold {
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()

		_, err = io.CopyBuffer(w, src, make([]byte, p.BufferSize))
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func buildManifest(datasetName string, now time.Time) string {
	return fmt.Sprintf(
		"Exported using MapSwipe Data Aggregator\n"+
			"Timestamp (UTC%s): %s\n"+
			"Data Source: https://mapswipe.org/\n"+
			"Dataset: %s\n",
		now.Format("-0700"),
		now.Format("2006-01-02 15:04:05"),
		datasetName,
	)
}
