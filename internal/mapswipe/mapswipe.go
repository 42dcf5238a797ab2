// Package mapswipe handles project identifier resolution and the download
// of per-project result and AOI feature collections from the MapSwipe API.
package mapswipe

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public MapSwipe API root.
const DefaultBaseURL = "https://apps.mapswipe.org/api"

var projectURLRe = regexp.MustCompile(`projects/([-\w]+)/?$`)

// ResolveProjectID normalizes a project reference to a canonical project
// ID. Project-page URLs have the trailing "projects/<id>" path segment
// extracted; anything else is returned unchanged. Extraction failure is
// logged and degrades to returning the input as-is.
func ResolveProjectID(ref string) string {
	if !strings.HasPrefix(ref, "http") {
		return ref
	}

	if m := projectURLRe.FindStringSubmatch(ref); m != nil {
		return m[1]
	}

	log.Warn().Str("reference", ref).Msg("Could not extract project ID from URL")
	return ref
}

// FetchError reports a non-success HTTP status from the MapSwipe API.
type FetchError struct {
	URL    string
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
}

// ParseError reports a payload that is not a valid feature collection.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Client downloads project data. Every call hits the network; there is no
// caching and no retrying.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a Client on the given HTTP client. An empty baseURL
// selects the public MapSwipe API.
func NewClient(hc *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: hc, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// FetchProject retrieves the validated yes/maybe results and the AOI
// geometry for one project. Both collections must be retrievable; any
// fetch or parse failure on either side fails the whole pair so callers
// can skip the project and continue.
func (c *Client) FetchProject(id string) (*geojson.FeatureCollection, *geojson.FeatureCollection, error) {
	results, err := c.fetchCollection(fmt.Sprintf("%s/yes_maybe/yes_maybe_%s.geojson", c.baseURL, id))
	if err != nil {
		return nil, nil, err
	}

	aoi, err := c.fetchCollection(fmt.Sprintf("%s/project_geometries/project_geom_%s.geojson", c.baseURL, id))
	if err != nil {
		return nil, nil, err
	}

	return results, aoi, nil
}

func (c *Client) fetchCollection(url string) (*geojson.FeatureCollection, error) {
	resp, err := c.http.Get(url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, &ParseError{URL: url, Err: err}
	}

	return fc, nil
}
