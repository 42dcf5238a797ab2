package aggregate

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"

	"github.com/mapswipe-utils/mapswipe2hdx/internal/config"
)

type pair struct {
	results *geojson.FeatureCollection
	aoi     *geojson.FeatureCollection
}

type stubFetcher struct {
	data map[string]pair
	errs map[string]error
}

func (s *stubFetcher) FetchProject(id string) (*geojson.FeatureCollection, *geojson.FeatureCollection, error) {
	if err, ok := s.errs[id]; ok {
		return nil, nil, err
	}
	p, ok := s.data[id]
	if !ok {
		return nil, nil, errors.New("unexpected project " + id)
	}
	return p.results, p.aoi, nil
}

func pointFC(props ...map[string]interface{}) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range props {
		f := geojson.NewFeature(orb.Point{0, 0})
		for k, v := range p {
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	return fc
}

func aoiFC() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}))
	return fc
}

func TestAggregateSchemaWidening(t *testing.T) {
	fetcher := &stubFetcher{data: map[string]pair{
		"a": {
			results: pointFC(
				map[string]interface{}{"severity": 1.0},
				map[string]interface{}{"severity": 2.0},
				map[string]interface{}{"severity": 3.0},
			),
			aoi: aoiFC(),
		},
		"b": {
			results: pointFC(
				map[string]interface{}{"confidence": 0.5},
				map[string]interface{}{"confidence": 0.6},
			),
			aoi: aoiFC(),
		},
	}}

	projects := []config.Project{
		{ProjectID: "a", Name: "Project Alpha"},
		{ProjectID: "b"},
	}

	res := Aggregate(fetcher, projects)
	require.Equal(t, 2, res.Fetched)
	require.Empty(t, res.Faults)
	require.Len(t, res.Results.Features, 5)
	require.Len(t, res.AOIs.Features, 2)

	// First three rows: project A, confidence null-filled
	for _, f := range res.Results.Features[:3] {
		require.Equal(t, "Project Alpha", f.Properties["project_name"])
		v, ok := f.Properties["confidence"]
		require.True(t, ok)
		require.Nil(t, v)
		require.NotNil(t, f.Properties["severity"])
	}

	// Last two rows: project B with the default display name, severity
	// null-filled
	for _, f := range res.Results.Features[3:] {
		require.Equal(t, "Project b", f.Properties["project_name"])
		v, ok := f.Properties["severity"]
		require.True(t, ok)
		require.Nil(t, v)
		require.NotNil(t, f.Properties["confidence"])
	}
}

func TestAggregateFaultIsolation(t *testing.T) {
	fetcher := &stubFetcher{
		data: map[string]pair{
			"a": {results: pointFC(map[string]interface{}{"n": "a1"}), aoi: aoiFC()},
			"c": {results: pointFC(map[string]interface{}{"n": "c1"}), aoi: aoiFC()},
		},
		errs: map[string]error{"b": errors.New("connection refused")},
	}

	projects := []config.Project{
		{ProjectID: "a"},
		{ProjectID: "b"},
		{ProjectID: "c"},
	}

	res := Aggregate(fetcher, projects)
	require.Equal(t, 2, res.Fetched)
	require.Len(t, res.Faults, 1)
	require.Equal(t, "b", res.Faults[0].ProjectID)

	var names []string
	for _, f := range res.Results.Features {
		names = append(names, f.Properties["n"].(string))
	}
	require.Equal(t, []string{"a1", "c1"}, names)
	require.Len(t, res.AOIs.Features, 2)
}

func TestAggregateKeepsExistingProjectName(t *testing.T) {
	fetcher := &stubFetcher{data: map[string]pair{
		"a": {
			results: pointFC(map[string]interface{}{"project_name": "Upstream Name"}),
			aoi:     aoiFC(),
		},
	}}

	res := Aggregate(fetcher, []config.Project{{ProjectID: "a", Name: "Configured Name"}})
	require.Equal(t, "Upstream Name", res.Results.Features[0].Properties["project_name"])
	require.Equal(t, "Configured Name", res.AOIs.Features[0].Properties["project_name"])
}

func TestAggregateResolvesURLReferences(t *testing.T) {
	fetcher := &stubFetcher{data: map[string]pair{
		"-xyz": {results: pointFC(map[string]interface{}{}), aoi: aoiFC()},
	}}

	res := Aggregate(fetcher, []config.Project{
		{ProjectID: "https://mapswipe.org/en/projects/-xyz/"},
	})
	require.Equal(t, 1, res.Fetched)
	require.Equal(t, "Project -xyz", res.Results.Features[0].Properties["project_name"])
}

func TestAggregateNothingFetched(t *testing.T) {
	fetcher := &stubFetcher{errs: map[string]error{"a": errors.New("down")}}

	res := Aggregate(fetcher, []config.Project{{ProjectID: "a"}})
	require.Equal(t, 0, res.Fetched)
	require.True(t, res.Results.Empty())
	require.True(t, res.AOIs.Empty())
	require.Len(t, res.Faults, 1)
}
