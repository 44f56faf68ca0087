// Package remote talks to the cloud key-value store that mirrors this
// installation's journal data. Records live under a per-device namespace at
// REST paths shaped like <base>/users/<device>/<path>.json, with JSON bodies
// and "null" responses for absent keys.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"movienight/models"
)

// ErrDisabled is returned by every operation when no base URL is configured.
var ErrDisabled = errors.New("remote sync disabled")

// UserValues carries one optional numeric value per member, as stored in the
// remote schema. Pointers distinguish "absent" from 0.
type UserValues struct {
	JoJo *float64 `json:"jojo,omitempty"`
	DoDo *float64 `json:"dodo,omitempty"`
}

// UserStatuses carries one optional watch status per member.
type UserStatuses struct {
	JoJo models.WatchStatus `json:"jojo,omitempty"`
	DoDo models.WatchStatus `json:"dodo,omitempty"`
}

// ScopeThreads holds the raw comment value per scope. Raw because old
// installations stored a bare string where newer ones store a message array.
type ScopeThreads struct {
	Shared json.RawMessage `json:"shared,omitempty"`
	JoJo   json.RawMessage `json:"jojo,omitempty"`
	DoDo   json.RawMessage `json:"dodo,omitempty"`
}

// Snapshot is the full remote annotation tree for one device namespace.
type Snapshot struct {
	WatchProgress   map[string]float64                 `json:"watchProgress,omitempty"`
	Ratings         map[string]UserValues              `json:"ratings,omitempty"`
	Comments        map[string]ScopeThreads            `json:"comments,omitempty"`
	EpisodeProgress map[string]UserValues              `json:"episodeProgress,omitempty"`
	EpisodeRatings  map[string]map[string]UserValues   `json:"episodeRatings,omitempty"`
	EpisodeStatus   map[string]map[string]UserStatuses `json:"episodeStatus,omitempty"`
}

// Client is an HTTP client for the remote store. A zero-configured client
// (empty base URL) is valid and reports itself disabled.
type Client struct {
	httpClient *http.Client
	baseURL    string
	deviceID   string
	retries    uint
}

// NewClient builds a client for the given base URL and device namespace.
// Pass an empty baseURL to disable remote sync.
func NewClient(baseURL, deviceID string, timeout time.Duration, writeRetries int) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if writeRetries < 1 {
		writeRetries = 1
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		deviceID:   deviceID,
		retries:    uint(writeRetries),
	}
}

// Enabled reports whether a remote store is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/users/%s/%s.json", c.baseURL, url.PathEscape(c.deviceID), path)
}

// get fetches path into v. The second return reports whether the key held a
// value; absent keys (404 or a literal "null" body) are not errors.
func (c *Client) get(ctx context.Context, path string, v any) (bool, error) {
	if !c.Enabled() {
		return false, ErrDisabled
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("remote get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, fmt.Errorf("remote get %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("remote get %s: read body: %w", path, err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return false, nil
	}

	if err := json.Unmarshal(trimmed, v); err != nil {
		return false, fmt.Errorf("remote get %s: decode: %w", path, err)
	}
	return true, nil
}

// put writes v to path, retrying transient failures with backoff.
func (c *Client) put(ctx context.Context, path string, v any) error {
	if !c.Enabled() {
		return ErrDisabled
	}

	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint(path), bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("remote put %s: %w", path, err)
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

			if resp.StatusCode >= http.StatusBadRequest {
				err := fmt.Errorf("remote put %s: status %d", path, resp.StatusCode)
				if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
					return retry.Unrecoverable(err)
				}
				return err
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.retries),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

// Snapshot returns the device's full annotation tree, or nil when nothing has
// ever been synced.
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	found, err := c.get(ctx, "", &snap)
	if err != nil || !found {
		return nil, err
	}
	return &snap, nil
}

// Entries returns the remote entry catalog, or nil when none is stored.
func (c *Client) Entries(ctx context.Context) ([]models.Entry, error) {
	var entries []models.Entry
	found, err := c.get(ctx, "movieEntries", &entries)
	if err != nil || !found {
		return nil, err
	}
	return entries, nil
}

// SaveEntries replaces the remote entry catalog wholesale.
func (c *Client) SaveEntries(ctx context.Context, entries []models.Entry) error {
	return c.put(ctx, "movieEntries", entries)
}

// SetRating writes a single member's rating for an entry.
func (c *Client) SetRating(ctx context.Context, entryID string, user models.User, value int) error {
	return c.put(ctx, fmt.Sprintf("ratings/%s/%s", entryID, user), value)
}

// SetWatchProgress writes the playback position for an entry.
func (c *Client) SetWatchProgress(ctx context.Context, entryID string, seconds float64) error {
	return c.put(ctx, "watchProgress/"+entryID, seconds)
}

// SetEpisodeProgress writes a member's last-watched episode index.
func (c *Client) SetEpisodeProgress(ctx context.Context, entryID string, user models.User, episodeIndex int) error {
	return c.put(ctx, fmt.Sprintf("episodeProgress/%s/%s", entryID, user), episodeIndex)
}

// SetEpisodeRating writes a member's rating for one episode.
func (c *Client) SetEpisodeRating(ctx context.Context, entryID string, episode int, user models.User, value int) error {
	return c.put(ctx, fmt.Sprintf("episodeRatings/%s/ep%d/%s", entryID, episode, user), value)
}

// SetEpisodeStatus writes a member's watch status for one episode.
func (c *Client) SetEpisodeStatus(ctx context.Context, entryID string, episode int, user models.User, status models.WatchStatus) error {
	return c.put(ctx, fmt.Sprintf("episodeStatus/%s/ep%d/%s", entryID, episode, user), status)
}

// SetCommentThread replaces one scope's comment thread for an entry.
func (c *Client) SetCommentThread(ctx context.Context, entryID string, scope models.Scope, thread []models.Message) error {
	return c.put(ctx, fmt.Sprintf("comments/%s/%s", entryID, scope), thread)
}
