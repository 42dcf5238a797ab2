package hdx

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RegistryError reports a failed registry call. Registry failures are
// fatal for the whole run; callers do not retry or degrade.
type RegistryError struct {
	Action  string
	Status  int
	Message string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry %s failed (status %d): %s", e.Action, e.Status, e.Message)
}

// conflict reports whether the error means the dataset already exists.
func (e *RegistryError) conflict() bool {
	return e.Status == http.StatusConflict
}

// Client talks to one HDX site with a pre-obtained API key.
type Client struct {
	http   *http.Client
	site   string
	apiKey string
}

// NewClient creates a registry client. The site is either a full base URL
// or an HDX site shorthand such as "demo" or "prod".
func NewClient(hc *http.Client, site, apiKey string) *Client {
	return &Client{http: hc, site: siteURL(site), apiKey: apiKey}
}

func siteURL(site string) string {
	if strings.HasPrefix(site, "http") {
		return strings.TrimSuffix(site, "/")
	}
	if site == "prod" {
		return "https://data.humdata.org"
	}
	return fmt.Sprintf("https://%s.data-humdata.org", site)
}

// Publish creates or updates the dataset and uploads one archive resource
// per exported format. Returns the dataset URL.
func (c *Client) Publish(meta Metadata, resources []Resource) (string, error) {
	body := packageBody(meta)

	if _, err := c.action("package_create", body); err != nil {
		rerr, ok := err.(*RegistryError)
		if !ok || !rerr.conflict() {
			return "", err
		}
		log.Debug().Str("dataset", meta.Name).Msg("Dataset exists, updating")
	}

	update, _ := sjson.SetBytes(body, "id", meta.Name)
	if _, err := c.action("package_update", update); err != nil {
		return "", err
	}

	for _, r := range resources {
		if err := c.uploadResource(meta.Name, r); err != nil {
			return "", err
		}
		log.Info().Str("resource", r.Name).Str("format", r.Format).Msg("Resource uploaded")
	}

	return fmt.Sprintf("%s/dataset/%s", c.site, meta.Name), nil
}

func packageBody(meta Metadata) []byte {
	body := []byte(`{}`)
	set := func(path string, value interface{}) {
		body, _ = sjson.SetBytes(body, path, value)
	}

	set("name", meta.Name)
	set("title", meta.Title)
	set("notes", meta.Notes)
	set("owner_org", meta.OwnerOrg)
	set("maintainer", meta.Maintainer)
	set("license_id", meta.License)
	set("private", false)
	set("subnational", false)
	set("dataset_source", "MapSwipe")
	set("methodology", "Other")
	set("methodology_other", "Human validated results from MapSwipe app")
	set("data_update_frequency", meta.Frequency)
	set("groups.0.name", strings.ReplaceAll(strings.ToLower(meta.Location), " ", "-"))
	for i, tag := range meta.Tags {
		set(fmt.Sprintf("tags.%d.name", i), tag)
	}

	return body
}

// action issues one CKAN action call and returns the raw response body.
func (c *Client) action(name string, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%s/api/3/action/%s", c.site, name)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RegistryError{
			Action:  name,
			Status:  resp.StatusCode,
			Message: registryMessage(respBody),
		}
	}

	if !gjson.GetBytes(respBody, "success").Bool() {
		return nil, &RegistryError{
			Action:  name,
			Status:  resp.StatusCode,
			Message: registryMessage(respBody),
		}
	}

	return respBody, nil
}

func registryMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message").String(); msg != "" {
		return msg
	}
	if msg := gjson.GetBytes(body, "error").String(); msg != "" {
		return msg
	}
	return "unknown registry error"
}

func (c *Client) uploadResource(datasetName string, r Resource) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"package_id":  datasetName,
		"name":        r.Name,
		"description": r.Description,
		"format":      r.Format,
		"url_type":    "upload",
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}

	part, err := mw.CreateFormFile("upload", filepath.Base(r.FilePath))
	if err != nil {
		return err
	}

	f, err := os.Open(r.FilePath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := mw.Close(); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/3/action/resource_create", c.site)
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !gjson.GetBytes(respBody, "success").Bool() {
		return &RegistryError{
			Action:  "resource_create",
			Status:  resp.StatusCode,
			Message: registryMessage(respBody),
		}
	}

	return nil
}
