// Package config handles settings loading and shared data structures.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Project references a single MapSwipe project by ID or project-page URL.
type Project struct {
	ProjectID string `yaml:"project_id" json:"project_id"`
	Name      string `yaml:"name,omitempty" json:"name,omitempty"`
}

// Settings represents the root settings file structure. Zero values are
// filled with defaults by Finalize; the HDX_* environment variables take
// precedence over file values.
type Settings struct {
	HDXSite            string    `yaml:"hdx_site,omitempty"`
	HDXAPIKey          string    `yaml:"hdx_api_key,omitempty"`
	HDXOwnerOrg        string    `yaml:"hdx_owner_org,omitempty"`
	HDXMaintainer      string    `yaml:"hdx_maintainer,omitempty"`
	DatasetName        string    `yaml:"dataset_name,omitempty"`
	DatasetDescription string    `yaml:"dataset_description,omitempty"`
	DatasetPrefix      string    `yaml:"dataset_prefix,omitempty"`
	DatasetLocation    string    `yaml:"dataset_location,omitempty"`
	DatasetFrequency   string    `yaml:"dataset_frequency,omitempty"`
	DatasetTags        []string  `yaml:"dataset_tags,omitempty"`
	DatasetLicense     string    `yaml:"dataset_license,omitempty"`
	Projects           []Project `yaml:"projects"`
	FileFormats        []string  `yaml:"file_formats,omitempty"`
}

// ConfigurationError reports mandatory settings that are missing.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing mandatory settings: %s", strings.Join(e.Missing, ", "))
}

// Load reads and parses the YAML settings file from the specified path.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse parses inline YAML settings text.
func Parse(data []byte) (*Settings, error) {
	var cfg Settings
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Finalize()
	return &cfg, nil
}

// Finalize applies environment overrides and fills defaults. Must be called
// on hand-built Settings before use; Load and Parse call it themselves.
func (s *Settings) Finalize() {
	if v := os.Getenv("HDX_SITE"); v != "" {
		s.HDXSite = v
	}
	if v := os.Getenv("HDX_API_KEY"); v != "" {
		s.HDXAPIKey = v
	}
	if v := os.Getenv("HDX_OWNER_ORG"); v != "" {
		s.HDXOwnerOrg = v
	}
	if v := os.Getenv("HDX_MAINTAINER"); v != "" {
		s.HDXMaintainer = v
	}

	if s.HDXSite == "" {
		s.HDXSite = "demo"
	}
	if s.DatasetName == "" {
		s.DatasetName = "MapSwipe Results"
	}
	if s.DatasetDescription == "" {
		s.DatasetDescription = "MapSwipe results aggregated from multiple projects."
	}
	if s.DatasetPrefix == "" {
		s.DatasetPrefix = strings.ReplaceAll(strings.ToLower(s.DatasetName), " ", "_")
	}
	if s.DatasetLocation == "" {
		s.DatasetLocation = "Global"
	}
	if s.DatasetFrequency == "" {
		s.DatasetFrequency = "As Needed"
	}
	if len(s.DatasetTags) == 0 {
		s.DatasetTags = []string{"geodata"}
	}
	if s.DatasetLicense == "" {
		s.DatasetLicense = "hdx-odc-odbl"
	}
	if len(s.FileFormats) == 0 {
		s.FileFormats = []string{"geojson"}
	}
}

// Validate checks the mandatory HDX credential fields.
func (s *Settings) Validate() error {
	var missing []string
	if s.HDXAPIKey == "" {
		missing = append(missing, "hdx_api_key")
	}
	if s.HDXOwnerOrg == "" {
		missing = append(missing, "hdx_owner_org")
	}
	if s.HDXMaintainer == "" {
		missing = append(missing, "hdx_maintainer")
	}

	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}
