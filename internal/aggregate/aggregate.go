// Package aggregate combines per-project feature collections into the two
// dataset-wide collections published to HDX.
package aggregate

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"

	"github.com/mapswipe-utils/mapswipe2hdx/internal/config"
	"github.com/mapswipe-utils/mapswipe2hdx/internal/geo"
	"github.com/mapswipe-utils/mapswipe2hdx/internal/mapswipe"
)

// Fetcher retrieves the results/AOI collection pair for one project.
type Fetcher interface {
	FetchProject(id string) (*geojson.FeatureCollection, *geojson.FeatureCollection, error)
}

// Fault records a project that was skipped during aggregation.
type Fault struct {
	ProjectID string
	Err       error
}

// Result holds the combined collections. Fetched counts projects that
// contributed data, so "nothing fetched" is distinguishable from projects
// that legitimately contributed zero features.
type Result struct {
	Results geo.Collection
	AOIs    geo.Collection
	Fetched int
	Faults  []Fault
}

// Aggregate fetches every referenced project in order and merges the
// results into two schema-widened collections. A fetch or parse failure
// skips that project entirely (neither side is merged) and is recorded as
// a Fault; it never aborts the run. Features fetched without a
// project_name attribute are tagged with the project's display name.
func Aggregate(f Fetcher, projects []config.Project) Result {
	var res Result

	for _, p := range projects {
		id := mapswipe.ResolveProjectID(p.ProjectID)
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("Project %s", id)
		}

		log.Info().Str("project", name).Str("id", id).Msg("Fetching project")

		results, aoi, err := f.FetchProject(id)
		if err != nil {
			log.Error().Err(err).Str("id", id).Msg("Failed to fetch project data")
			res.Faults = append(res.Faults, Fault{ProjectID: id, Err: err})
			continue
		}

		geo.SetMissingProperty(results, "project_name", name)
		geo.SetMissingProperty(aoi, "project_name", name)

		res.Results.Append(results)
		res.AOIs.Append(aoi)
		res.Fetched++
	}

	return res
}
