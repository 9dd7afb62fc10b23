// Package tracker pulls stories and bugs from the issue-tracker REST API
// and writes them as one dataset snapshot.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/issuelens/issuelens/internal/dataset"
	"github.com/issuelens/issuelens/internal/oputil"
)

// ConfigFile is the credentials location under the config directory.
const ConfigFile = "tracker.yaml"

// Config holds the tracker endpoint and basic-auth credentials.
type Config struct {
	APIUser     string `yaml:"api_user"`
	APIPassword string `yaml:"api_password"`
	WorkspaceID string `yaml:"workspace_id"`
	BaseURL     string `yaml:"base_url"`
}

// LoadConfig reads the tracker credentials file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oputil.Wrap(err, oputil.KindConfigError, "tracker config %s", path).
			WithSuggestion("create the file with api_user, api_password, workspace_id, and base_url")
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, oputil.Wrap(err, oputil.KindConfigError, "tracker config %s", path)
	}
	if cfg.APIUser == "" || cfg.APIPassword == "" || cfg.WorkspaceID == "" || cfg.BaseURL == "" {
		return nil, oputil.New(oputil.KindConfigError,
			"tracker config %s: api_user, api_password, workspace_id, and base_url are all required", path)
	}
	return &cfg, nil
}

// Client fetches pages from the tracker.
type Client struct {
	cfg    *Config
	http   *http.Client
	logger *slog.Logger
	// PageSize is records per page (default 200).
	PageSize int
}

// NewClient builds a tracker client.
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
		PageSize: 200,
	}
}

// FetchAll pulls every story and bug page and returns the combined dataset.
func (c *Client) FetchAll(ctx context.Context) (*dataset.Dataset, error) {
	stories, err := c.fetchKind(ctx, "/stories", "Story")
	if err != nil {
		return nil, err
	}
	bugs, err := c.fetchKind(ctx, "/bugs", "Bug")
	if err != nil {
		return nil, err
	}
	return &dataset.Dataset{Stories: stories, Bugs: bugs}, nil
}

// pageEnvelope is the tracker's list response: each element wraps the record
// under its kind key.
type pageEnvelope struct {
	Data []map[string]map[string]any `json:"data"`
}

// fetchKind walks pages until one comes back empty or a record has no id.
func (c *Client) fetchKind(ctx context.Context, path, envelopeKey string) ([]dataset.Issue, error) {
	var items []dataset.Issue
	for page := 1; ; page++ {
		batch, err := c.fetchPage(ctx, path, envelopeKey, page)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		stop := false
		for _, it := range batch {
			if it.ID() == "" {
				stop = true
				break
			}
			items = append(items, it)
		}
		c.logger.Debug("tracker page fetched", "path", path, "page", page, "records", len(batch))
		if stop || len(batch) < c.PageSize {
			break
		}
	}
	return items, nil
}

func (c *Client) fetchPage(ctx context.Context, path, envelopeKey string, page int) ([]dataset.Issue, error) {
	u := c.cfg.BaseURL + path + "?" + url.Values{
		"workspace_id": {c.cfg.WorkspaceID},
		"page":         {strconv.Itoa(page)},
		"limit":        {strconv.Itoa(c.PageSize)},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.cfg.APIUser, c.cfg.APIPassword)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, oputil.Wrap(err, oputil.KindAPITransient, "tracker request %s page %d", path, page)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, oputil.New(oputil.KindConfigError, "tracker rejected the credentials (HTTP 401)").
			WithSuggestion("check api_user and api_password in the tracker config")
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, oputil.New(oputil.KindAPITransient,
			"tracker returned %d for %s page %d: %s", resp.StatusCode, path, page, msg)
	}

	var envelope pageEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, oputil.Wrap(err, oputil.KindInputMalformed, "decode tracker page %s %d", path, page)
	}

	items := make([]dataset.Issue, 0, len(envelope.Data))
	for _, wrapper := range envelope.Data {
		raw, ok := wrapper[envelopeKey]
		if !ok {
			continue
		}
		items = append(items, flatten(raw))
	}
	return items, nil
}

// flatten stringifies the record's fields and drops the empty ones.
func flatten(raw map[string]any) dataset.Issue {
	it := dataset.Issue{}
	for key, value := range raw {
		var s string
		switch v := value.(type) {
		case nil:
			continue
		case string:
			s = v
		case float64:
			s = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(v)
		default:
			s = fmt.Sprintf("%v", v)
		}
		if s == "" {
			continue
		}
		it[key] = s
	}
	return it
}
