package mapswipe

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveProjectID(t *testing.T) {
	cases := []struct {
		ref  string
		want string
	}{
		{"-abc123", "-abc123"},
		{"https://mapswipe.org/en/projects/-abc123/", "-abc123"},
		{"https://mapswipe.org/en/projects/-abc123", "-abc123"},
		{"http://mapswipe.org/projects/proj_42", "proj_42"},
		// no extractable segment: degrade to the input
		{"https://mapswipe.org/en/about/", "https://mapswipe.org/en/about/"},
		{"plain-id", "plain-id"},
	}

	for _, c := range cases {
		require.Equal(t, c.want, ResolveProjectID(c.ref), "ref %q", c.ref)
	}
}

const resultsBody = `{"type":"FeatureCollection","features":[
	{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{"severity":3}}
]}`

const aoiBody = `{"type":"FeatureCollection","features":[
	{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},"properties":{}}
]}`

func TestFetchProject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/yes_maybe/yes_maybe_p1.geojson":
			_, _ = w.Write([]byte(resultsBody))
		case "/project_geometries/project_geom_p1.geojson":
			_, _ = w.Write([]byte(aoiBody))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)

	results, aoi, err := c.FetchProject("p1")
	require.NoError(t, err)
	require.Len(t, results.Features, 1)
	require.Len(t, aoi.Features, 1)
	require.Equal(t, "Point", results.Features[0].Geometry.GeoJSONType())
	require.Equal(t, "Polygon", aoi.Features[0].Geometry.GeoJSONType())
}

func TestFetchProjectStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)

	results, aoi, err := c.FetchProject("missing")
	require.Nil(t, results)
	require.Nil(t, aoi)

	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, http.StatusNotFound, ferr.Status)
}

func TestFetchProjectParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not geojson</html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)

	_, _, err := c.FetchProject("p1")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestFetchProjectAOIFailureFailsPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/yes_maybe/yes_maybe_p1.geojson" {
			_, _ = w.Write([]byte(resultsBody))
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL)

	results, aoi, err := c.FetchProject("p1")
	require.Error(t, err)
	require.True(t, errors.As(err, new(*FetchError)))
	require.Nil(t, results)
	require.Nil(t, aoi)
}
