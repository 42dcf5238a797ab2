// Package pipeline drives the full run: aggregate project data, export it
// per format, package the archives and publish them to the registry.
package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mapswipe-utils/mapswipe2hdx/internal/aggregate"
	"github.com/mapswipe-utils/mapswipe2hdx/internal/archive"
	"github.com/mapswipe-utils/mapswipe2hdx/internal/config"
	"github.com/mapswipe-utils/mapswipe2hdx/internal/export"
	"github.com/mapswipe-utils/mapswipe2hdx/internal/hdx"
)

// ErrNoData means no configured project yielded a usable collection pair;
// nothing was exported or published.
var ErrNoData = errors.New("no valid data fetched from the configured MapSwipe projects")

// Publisher is the registry boundary: it receives the dataset metadata and
// one archive resource per format and returns the dataset URL.
type Publisher interface {
	Publish(meta hdx.Metadata, resources []hdx.Resource) (string, error)
}

// Pipeline wires the stages together. Everything runs sequentially on the
// calling goroutine.
type Pipeline struct {
	Config    *config.Settings
	Fetcher   aggregate.Fetcher
	Publisher Publisher
	Packager  *archive.Packager
	WorkDir   string
}

// New creates a Pipeline writing its artifacts under workDir ("." when
// empty).
func New(cfg *config.Settings, fetcher aggregate.Fetcher, publisher Publisher, workDir string) *Pipeline {
	if workDir == "" {
		workDir = "."
	}
	return &Pipeline{
		Config:    cfg,
		Fetcher:   fetcher,
		Publisher: publisher,
		Packager:  archive.New(),
		WorkDir:   workDir,
	}
}

// Run executes the whole pipeline and returns the published dataset URL.
// Configuration, export, packaging and registry errors halt the run; a run
// with zero usable projects returns ErrNoData without touching the
// registry, so an incomplete dataset is never published.
func (p *Pipeline) Run() (string, error) {
	if err := p.Config.Validate(); err != nil {
		return "", err
	}

	resources, err := p.Export()
	if err != nil {
		return "", err
	}

	url, err := p.Publisher.Publish(hdx.NewMetadata(p.Config), resources)
	if err != nil {
		return "", err
	}

	log.Info().Str("url", url).Msg("Dataset published")
	return url, nil
}

// Export aggregates the configured projects and produces one packaged
// archive per requested format, returning the resource descriptions to
// publish. It does not need registry credentials.
func (p *Pipeline) Export() ([]hdx.Resource, error) {
	res := aggregate.Aggregate(p.Fetcher, p.Config.Projects)
	if res.Fetched == 0 || (res.Results.Empty() && res.AOIs.Empty()) {
		log.Error().
			Int("projects", len(p.Config.Projects)).
			Int("faults", len(res.Faults)).
			Msg("No valid data fetched from the configured MapSwipe projects")
		return nil, ErrNoData
	}

	log.Info().
		Int("fetched", res.Fetched).
		Int("results", len(res.Results.Features)).
		Int("aois", len(res.AOIs.Features)).
		Msg("Aggregation finished")

	var resources []hdx.Resource
	prefix := p.Config.DatasetPrefix

	for _, name := range p.Config.FileFormats {
		format, err := export.ParseFormat(name)
		if err != nil {
			return nil, err
		}

		outDir := filepath.Join(p.WorkDir, fmt.Sprintf("%s_%s", prefix, format))

		if _, err := export.Export(&res.Results, "results_yes_maybe", format, outDir); err != nil {
			log.Error().Err(err).Str("format", string(format)).Msg("Export failed")
			return nil, err
		}
		if _, err := export.Export(&res.AOIs, "aois", format, outDir); err != nil {
			log.Error().Err(err).Str("format", string(format)).Msg("Export failed")
			return nil, err
		}

		archiveName := archiveFileName(prefix, format)
		bundle, err := p.Packager.Package(outDir, filepath.Join(p.WorkDir, archiveName), p.Config.DatasetName)
		if err != nil {
			return nil, err
		}

		log.Info().Str("archive", bundle.ArchivePath).Msg("Archive packaged")

		resources = append(resources, hdx.Resource{
			Name:        fmt.Sprintf("%s_results_yes_maybe.%s", prefix, format),
			Description: fmt.Sprintf("Combined results from MapSwipe projects in %s format", format.DisplayName()),
			Format:      string(format),
			FilePath:    bundle.ArchivePath,
		})
	}

	return resources, nil
}

// archiveFileName lower-cases and underscores the archive name so it is
// safe as an uploaded file name.
func archiveFileName(prefix string, format export.Format) string {
	name := fmt.Sprintf("%s_%s.zip", prefix, format)
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}
