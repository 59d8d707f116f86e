// Package homeassistant adapts a Home Assistant instance to the context
// builder: live states and history come from the REST API, area, device and
// entity names from the registry files under .storage.
package homeassistant

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	hscontext "github.com/hrygo/homesense/plugin/ai/context"
	"github.com/hrygo/homesense/plugin/ai/timeout"
)

// Config holds the REST API connection settings.
type Config struct {
	// URL is the base URL of the instance, e.g. http://homeassistant.local:8123
	URL string
	// Token is a long-lived access token.
	Token string
	// Timeout bounds every request.
	Timeout time.Duration
}

// DefaultConfig returns the default REST configuration.
func DefaultConfig() *Config {
	return &Config{
		URL:     "http://homeassistant.local:8123",
		Timeout: timeout.HostRequestTimeout,
	}
}

// ConfigFromEnv creates a config from HOMESENSE_HA_URL, HOMESENSE_HA_TOKEN
// and HOMESENSE_HA_TIMEOUT. Inside an add-on the supervisor token is used
// when no token is set.
func ConfigFromEnv() *Config {
	config := DefaultConfig()

	if u := os.Getenv("HOMESENSE_HA_URL"); u != "" {
		config.URL = u
	}
	if token := os.Getenv("HOMESENSE_HA_TOKEN"); token != "" {
		config.Token = token
	} else if token := os.Getenv("SUPERVISOR_TOKEN"); token != "" {
		config.URL = "http://supervisor/core"
		config.Token = token
	}
	if raw := os.Getenv("HOMESENSE_HA_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			config.Timeout = d
		}
	}

	return config
}

// Client talks to the Home Assistant REST API.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// NewClient creates a REST client.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type apiState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

type apiLogbookEntry struct {
	When     flexTime `json:"when"`
	Name     string   `json:"name"`
	Message  string   `json:"message"`
	State    string   `json:"state"`
	EntityID string   `json:"entity_id"`
	Domain   string   `json:"domain"`
}

// flexTime accepts ISO 8601 strings and Unix timestamps in seconds.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return errors.Wrapf(err, "invalid timestamp %q", s)
		}
		t.Time = parsed
		return nil
	}

	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return errors.Wrapf(err, "invalid timestamp %s", data)
	}
	t.Time = time.UnixMicro(int64(seconds * 1e6)).UTC()
	return nil
}

// Ping checks that the API is reachable and the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Message string `json:"message"`
	}
	return c.getJSON(ctx, "/api/", nil, &out)
}

// ListAllStates returns every current entity state.
func (c *Client) ListAllStates(ctx context.Context) ([]*hscontext.EntityState, error) {
	var raw []apiState
	if err := c.getJSON(ctx, "/api/states", nil, &raw); err != nil {
		return nil, err
	}

	states := make([]*hscontext.EntityState, 0, len(raw))
	for _, s := range raw {
		states = append(states, &hscontext.EntityState{
			EntityID:    s.EntityID,
			State:       s.State,
			Attributes:  s.Attributes,
			LastChanged: s.LastChanged,
			LastUpdated: s.LastUpdated,
		})
	}
	return states, nil
}

// GetSignificantStates returns the significant state changes per entity
// between start and end.
func (c *Client) GetSignificantStates(ctx context.Context, start, end time.Time) (map[string][]hscontext.StateChange, error) {
	query := url.Values{}
	query.Set("end_time", end.UTC().Format(time.RFC3339))
	query.Set("significant_changes_only", "")
	query.Set("minimal_response", "")
	query.Set("no_attributes", "")

	var raw [][]apiState
	if err := c.getJSON(ctx, "/api/history/period/"+url.PathEscape(start.UTC().Format(time.RFC3339)), query, &raw); err != nil {
		return nil, err
	}

	result := make(map[string][]hscontext.StateChange, len(raw))
	for _, series := range raw {
		if len(series) == 0 || series[0].EntityID == "" {
			continue
		}
		// Minimal responses only carry the entity id on the first row.
		entityID := series[0].EntityID
		changes := make([]hscontext.StateChange, 0, len(series))
		for _, s := range series {
			changes = append(changes, hscontext.StateChange{State: s.State, LastChanged: s.LastChanged})
		}
		result[entityID] = changes
	}
	return result, nil
}

// GetEvents returns logbook entries between start and end.
func (c *Client) GetEvents(ctx context.Context, start, end time.Time) ([]*hscontext.LogbookEvent, error) {
	query := url.Values{}
	query.Set("end_time", end.UTC().Format(time.RFC3339))

	var raw []apiLogbookEntry
	if err := c.getJSON(ctx, "/api/logbook/"+url.PathEscape(start.UTC().Format(time.RFC3339)), query, &raw); err != nil {
		return nil, err
	}

	events := make([]*hscontext.LogbookEvent, 0, len(raw))
	for _, e := range raw {
		message := e.Message
		if message == "" && e.State != "" {
			message = "changed to " + e.State
		}
		domain := e.Domain
		if domain == "" && e.EntityID != "" {
			domain = hscontext.DomainOf(e.EntityID)
		}
		events = append(events, &hscontext.LogbookEvent{
			When:     e.When.Time,
			Name:     e.Name,
			Message:  message,
			EntityID: e.EntityID,
			Domain:   domain,
		})
	}
	return events, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := strings.TrimRight(c.config.URL, "/") + path
	if len(query) > 0 {
		// Flag parameters are sent without "=".
		endpoint += "?" + strings.ReplaceAll(query.Encode(), "=&", "&")
		endpoint = strings.TrimSuffix(endpoint, "=")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request to %s failed", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("home assistant returned status %d for %s: %s", resp.StatusCode, path, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode %s", path)
	}
	return nil
}
