// Package spotify is a thin client for the Spotify Web API endpoints the
// tool layer needs: track search, playback control and player state. Every
// request carries the access token the TokenProvider yields at call time, so
// a silent refresh between calls is picked up automatically.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultBaseURL = "https://api.spotify.com"
	defaultTimeout = 15 * time.Second

	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// ErrNoActiveDevice means the player endpoint found no device to act on.
// Playback needs a Spotify app open somewhere.
var ErrNoActiveDevice = errors.New("no active Spotify device: open Spotify on a device and try again")

// APIError is a non-success Spotify API response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Spotify API error %d: %s", e.StatusCode, e.Message)
}

// apiErrorBody is the provider's error envelope.
type apiErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// TokenProvider yields the current access token. Wired to the authorization
// manager so every request uses the freshest token.
type TokenProvider func() string

// ClientOptions tune a Client. BaseURL overrides the API host, for tests.
type ClientOptions struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client calls the Spotify Web API.
type Client struct {
	client *resty.Client
	token  TokenProvider
}

// NewClient creates a Spotify Web API client.
func NewClient(token TokenProvider, opts ClientOptions) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	client := resty.NewWithClient(httpClient)
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client.SetBaseURL(baseURL)
	client.SetHeader("Accept", "application/json")

	return &Client{client: client, token: token}
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.client.NewRequest().
		SetContext(ctx).
		SetAuthToken(c.token()).
		SetError(&apiErrorBody{})
}

func (c *Client) apiError(resp *resty.Response) error {
	message := http.StatusText(resp.StatusCode())
	if body, ok := resp.Error().(*apiErrorBody); ok && body.Error.Message != "" {
		message = body.Error.Message
	}
	return &APIError{StatusCode: resp.StatusCode(), Message: message}
}

// SearchTracks searches for tracks matching query. limit is clamped to the
// API's 1..50 range; zero means the default of 10.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	var result searchResponse
	resp, err := c.request(ctx).
		SetResult(&result).
		SetQueryParams(map[string]string{
			"q":     query,
			"type":  "track",
			"limit": strconv.Itoa(limit),
		}).
		Get("/v1/search")
	if err != nil {
		return nil, fmt.Errorf("track search failed: %w", err)
	}
	if resp.IsError() {
		return nil, c.apiError(resp)
	}
	return result.Tracks.Items, nil
}

// StartPlayback starts playing the given track URIs, on deviceID when set or
// on the active device otherwise.
func (c *Client) StartPlayback(ctx context.Context, deviceID string, uris []string) error {
	if len(uris) == 0 {
		return fmt.Errorf("no track URIs to play")
	}

	req := c.request(ctx).SetBody(map[string]any{"uris": uris})
	if deviceID != "" {
		req.SetQueryParam("device_id", deviceID)
	}

	resp, err := req.Put("/v1/me/player/play")
	if err != nil {
		return fmt.Errorf("playback request failed: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrNoActiveDevice
	}
	if resp.IsError() {
		return c.apiError(resp)
	}
	return nil
}

// Devices lists the user's Spotify Connect devices.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var result devicesResponse
	resp, err := c.request(ctx).
		SetResult(&result).
		Get("/v1/me/player/devices")
	if err != nil {
		return nil, fmt.Errorf("device listing failed: %w", err)
	}
	if resp.IsError() {
		return nil, c.apiError(resp)
	}
	return result.Devices, nil
}

// CurrentlyPlaying returns the player state, or nil when nothing is playing
// (the API answers 204).
func (c *Client) CurrentlyPlaying(ctx context.Context) (*Playing, error) {
	var result Playing
	resp, err := c.request(ctx).
		SetResult(&result).
		Get("/v1/me/player/currently-playing")
	if err != nil {
		return nil, fmt.Errorf("player state request failed: %w", err)
	}
	if resp.StatusCode() == http.StatusNoContent {
		return nil, nil
	}
	if resp.IsError() {
		return nil, c.apiError(resp)
	}
	return &result, nil
}
