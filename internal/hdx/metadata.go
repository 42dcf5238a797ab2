// Package hdx builds dataset metadata and publishes archive bundles to the
// Humanitarian Data Exchange registry (a CKAN-style HTTP API).
package hdx

import (
	"fmt"
	"strings"

	"github.com/mapswipe-utils/mapswipe2hdx/internal/config"
	"github.com/mapswipe-utils/mapswipe2hdx/internal/mapswipe"
)

// Metadata describes the dataset once; it is built from settings before
// any fetch happens and read-only afterwards.
type Metadata struct {
	Title      string
	Name       string
	Notes      string
	OwnerOrg   string
	Maintainer string
	License    string
	Location   string
	Frequency  string
	Tags       []string
}

// Resource describes one uploaded archive, one per exported format.
type Resource struct {
	Name        string
	Description string
	Format      string
	FilePath    string
}

// NewMetadata builds the dataset metadata from settings. The description
// is augmented with a link list of the source MapSwipe projects.
func NewMetadata(cfg *config.Settings) Metadata {
	return Metadata{
		Title:      cfg.DatasetName,
		Name:       cfg.DatasetPrefix,
		Notes:      attachProjectLinks(cfg.DatasetDescription, cfg.Projects),
		OwnerOrg:   cfg.HDXOwnerOrg,
		Maintainer: cfg.HDXMaintainer,
		License:    cfg.DatasetLicense,
		Location:   cfg.DatasetLocation,
		Frequency:  cfg.DatasetFrequency,
		Tags:       cfg.DatasetTags,
	}
}

func attachProjectLinks(description string, projects []config.Project) string {
	var links []string
	for _, p := range projects {
		id := mapswipe.ResolveProjectID(p.ProjectID)
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("Project %s", id)
		}
		links = append(links, fmt.Sprintf("- [%s](https://mapswipe.org/en/projects/%s/)", name, id))
	}

	if len(links) == 0 {
		return description
	}

	if description != "" && !strings.HasSuffix(description, "\n\n") {
		description += "\n\n"
	}
	return description + " Source MapSwipe Projects\n\n" + strings.Join(links, "\n")
}
