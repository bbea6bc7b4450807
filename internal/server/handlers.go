package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"workbeat/internal/azuredevops"
	"workbeat/internal/mood"
	"workbeat/internal/spotify"
)

// defaultTrackCount is how many tracks the search and playback tools use
// when the caller does not ask for a specific number.
const defaultTrackCount = 5

// statusReport is the spotify_auth_status tool output.
type statusReport struct {
	Authorized          bool   `json:"authorized"`
	Message             string `json:"message"`
	AuthURL             string `json:"authUrl,omitempty"`
	ServerAuthAvailable bool   `json:"serverAuthAvailable"`
}

type trackSummary struct {
	Name    string `json:"name"`
	Artists string `json:"artists"`
	Album   string `json:"album,omitempty"`
	URI     string `json:"uri"`
}

type playbackReport struct {
	Playing  bool     `json:"playing"`
	DeviceID string   `json:"deviceId,omitempty"`
	URIs     []string `json:"uris"`
}

type deviceSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
	Volume int    `json:"volume"`
}

// nowPlayingReport is the get_current_track tool output. Track is absent when
// the player is idle.
type nowPlayingReport struct {
	Playing    bool          `json:"playing"`
	ProgressMS int           `json:"progressMs,omitempty"`
	Track      *trackSummary `json:"track,omitempty"`
}

type workItemRef struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type,omitempty"`
}

type moodSummary struct {
	Category string   `json:"category"`
	Genres   []string `json:"genres,omitempty"`
	Energy   float64  `json:"energy"`
	Valence  float64  `json:"valence"`
}

// moodPlaybackReport is the play_work_item_music tool output.
type moodPlaybackReport struct {
	WorkItem workItemRef    `json:"workItem"`
	Profile  moodSummary    `json:"profile"`
	Query    string         `json:"query"`
	Tracks   []trackSummary `json:"tracks"`
	DeviceID string         `json:"deviceId,omitempty"`
}

// handleGetWorkItem handles the get_work_item MCP tool. It fetches the work
// item from Azure DevOps and returns it as JSON.
func (s *Server) handleGetWorkItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := intArg(request, "id")
	if !ok || id <= 0 {
		return mcp.NewToolResultError("id argument is required and must be a positive number"), nil
	}

	client, err := s.devopsClient()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Azure DevOps is not configured: %v", err)), nil
	}

	item, err := client.FetchWorkItem(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch work item %d: %v", id, err)), nil
	}

	return jsonResult(item)
}

// handleCreatePullRequest handles the create_pull_request MCP tool. The
// source branch is generated from the title when omitted and the target
// branch defaults to main.
func (s *Server) handleCreatePullRequest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil || strings.TrimSpace(title) == "" {
		return mcp.NewToolResultError("title argument is required"), nil
	}

	pr := azuredevops.NewPullRequest{
		Title:        title,
		Description:  stringArg(request, "description"),
		SourceBranch: stringArg(request, "source_branch"),
		TargetBranch: stringArg(request, "target_branch"),
	}
	if id, ok := intArg(request, "work_item_id"); ok {
		pr.WorkItemID = id
	}
	if pr.SourceBranch == "" {
		pr.SourceBranch = generateBranchName(title)
	}
	if pr.TargetBranch == "" {
		pr.TargetBranch = "main"
	}

	client, err := s.devopsClient()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Azure DevOps is not configured: %v", err)), nil
	}

	created, err := client.CreatePullRequest(ctx, pr, stringArg(request, "repository_id"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create pull request: %v", err)), nil
	}

	return jsonResult(created)
}

// handleSpotifyAuthStatus handles the spotify_auth_status MCP tool.
func (s *Server) handleSpotifyAuthStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := s.auth.CheckAuthStatus(ctx)
	return jsonResult(statusReport{
		Authorized:          status.Authorized,
		Message:             status.Message,
		AuthURL:             status.AuthURL,
		ServerAuthAvailable: status.ServerAuthAvailable,
	})
}

// handleSearchTracks handles the search_tracks MCP tool.
func (s *Server) handleSearchTracks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query argument is required"), nil
	}
	limit := defaultTrackCount
	if n, ok := intArg(request, "limit"); ok {
		limit = n
	}

	if denied := s.requireSpotifyAuth(ctx); denied != nil {
		return denied, nil
	}

	tracks, err := s.spotify.SearchTracks(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Spotify search failed: %v", err)), nil
	}

	return jsonResult(trackSummaries(tracks))
}

// handleListDevices handles the list_devices MCP tool.
func (s *Server) handleListDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if denied := s.requireSpotifyAuth(ctx); denied != nil {
		return denied, nil
	}

	devices, err := s.spotify.Devices(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list devices: %v", err)), nil
	}

	out := make([]deviceSummary, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceSummary{
			ID:     d.ID,
			Name:   d.Name,
			Type:   d.Type,
			Active: d.IsActive,
			Volume: d.VolumePercent,
		})
	}
	return jsonResult(out)
}

// handleGetCurrentTrack handles the get_current_track MCP tool.
func (s *Server) handleGetCurrentTrack(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if denied := s.requireSpotifyAuth(ctx); denied != nil {
		return denied, nil
	}

	playing, err := s.spotify.CurrentlyPlaying(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to read player state: %v", err)), nil
	}
	if playing == nil {
		return jsonResult(nowPlayingReport{})
	}

	report := nowPlayingReport{Playing: playing.IsPlaying, ProgressMS: playing.ProgressMS}
	if playing.Item != nil {
		report.Track = &trackSummary{
			Name:    playing.Item.Name,
			Artists: playing.Item.ArtistNames(),
			Album:   playing.Item.Album.Name,
			URI:     playing.Item.URI,
		}
	}
	return jsonResult(report)
}

// handlePlayTracks handles the play_tracks MCP tool. The uris argument is a
// comma separated string, an array is accepted too.
func (s *Server) handlePlayTracks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uris := uriArgs(request)
	if len(uris) == 0 {
		return mcp.NewToolResultError("uris argument is required"), nil
	}

	if denied := s.requireSpotifyAuth(ctx); denied != nil {
		return denied, nil
	}

	deviceID := stringArg(request, "device_id")
	if err := s.spotify.StartPlayback(ctx, deviceID, uris); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to start playback: %v", err)), nil
	}

	return jsonResult(playbackReport{Playing: true, DeviceID: deviceID, URIs: uris})
}

// handlePlayWorkItemMusic handles the play_work_item_music MCP tool. It
// fetches the work item, derives a mood profile from its text, searches
// Spotify with the profile query and starts playback of the results.
func (s *Server) handlePlayWorkItemMusic(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, ok := intArg(request, "id")
	if !ok || id <= 0 {
		return mcp.NewToolResultError("id argument is required and must be a positive number"), nil
	}

	if denied := s.requireSpotifyAuth(ctx); denied != nil {
		return denied, nil
	}

	devops, err := s.devopsClient()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Azure DevOps is not configured: %v", err)), nil
	}
	item, err := devops.FetchWorkItem(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch work item %d: %v", id, err)), nil
	}

	profile := mood.ProfileFor(mood.Content{
		Title:       item.Title,
		Description: item.Description,
		Type:        item.Type,
		Tags:        item.Tags,
	})

	tracks, err := s.spotify.SearchTracks(ctx, profile.Query(), defaultTrackCount)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Spotify search failed: %v", err)), nil
	}
	if len(tracks) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("No tracks found for %q", profile.Query())), nil
	}

	uris := make([]string, 0, len(tracks))
	for _, t := range tracks {
		uris = append(uris, t.URI)
	}
	deviceID := stringArg(request, "device_id")
	if err := s.spotify.StartPlayback(ctx, deviceID, uris); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to start playback: %v", err)), nil
	}

	return jsonResult(moodPlaybackReport{
		WorkItem: workItemRef{ID: item.ID, Title: item.Title, Type: item.Type},
		Profile: moodSummary{
			Category: profile.Category,
			Genres:   profile.Genres,
			Energy:   profile.Energy,
			Valence:  profile.Valence,
		},
		Query:    profile.Query(),
		Tracks:   trackSummaries(tracks),
		DeviceID: deviceID,
	})
}

// requireSpotifyAuth resolves the authorization status and converts an
// unauthorized state into a tool error carrying the authorization URL.
// It returns nil when calls may proceed.
func (s *Server) requireSpotifyAuth(ctx context.Context) *mcp.CallToolResult {
	status := s.auth.CheckAuthStatus(ctx)
	if status.Authorized {
		return nil
	}
	msg := status.Message
	if status.AuthURL != "" {
		msg = fmt.Sprintf("%s\nAuthorization URL: %s", msg, status.AuthURL)
	}
	return mcp.NewToolResultError(msg)
}

// generateBranchName derives a branch name from a pull request title, e.g.
// "Fix invoice rounding" becomes "workbeat/fix-invoice-rounding-1a2b3c4d".
func generateBranchName(title string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, title)
	slug = strings.Join(strings.FieldsFunc(slug, func(r rune) bool { return r == '-' }), "-")
	if len(slug) > 40 {
		slug = strings.Trim(slug[:40], "-")
	}
	if slug == "" {
		slug = "change"
	}
	return fmt.Sprintf("workbeat/%s-%s", slug, uuid.NewString()[:8])
}

func trackSummaries(tracks []spotify.Track) []trackSummary {
	out := make([]trackSummary, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, trackSummary{
			Name:    t.Name,
			Artists: t.ArtistNames(),
			Album:   t.Album.Name,
			URI:     t.URI,
		})
	}
	return out
}

// jsonResult renders v as indented JSON tool output.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// stringArg returns a trimmed string argument, or "" when absent.
func stringArg(request mcp.CallToolRequest, key string) string {
	if v, ok := request.GetArguments()[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// intArg returns an integer argument, tolerating the float64 that JSON
// decoding produces for every number.
func intArg(request mcp.CallToolRequest, key string) (int, bool) {
	switch v := request.GetArguments()[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// uriArgs accepts the uris argument as a comma separated string or as an
// array of strings.
func uriArgs(request mcp.CallToolRequest) []string {
	var raw []string
	switch v := request.GetArguments()["uris"].(type) {
	case string:
		raw = strings.Split(v, ",")
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}
	uris := make([]string, 0, len(raw))
	for _, u := range raw {
		if u = strings.TrimSpace(u); u != "" {
			uris = append(uris, u)
		}
	}
	return uris
}
