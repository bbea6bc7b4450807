package server

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	// Work item lookup
	getWorkItemTool := mcp.NewTool("get_work_item",
		mcp.WithDescription("Retrieve an Azure DevOps work item by its ID"),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Work item ID"),
		),
	)
	s.mcp.AddTool(getWorkItemTool, s.handleGetWorkItem)

	// Pull request creation
	createPullRequestTool := mcp.NewTool("create_pull_request",
		mcp.WithDescription("Create a pull request in an Azure DevOps repository"),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Pull request title"),
		),
		mcp.WithString("description",
			mcp.Description("Pull request description in markdown"),
		),
		mcp.WithString("source_branch",
			mcp.Description("Source branch name; generated from the title when omitted"),
		),
		mcp.WithString("target_branch",
			mcp.Description("Target branch name (default: main)"),
		),
		mcp.WithString("repository_id",
			mcp.Description("Repository name or ID; the configured repository when omitted"),
		),
		mcp.WithNumber("work_item_id",
			mcp.Description("Work item to link to the pull request"),
		),
	)
	s.mcp.AddTool(createPullRequestTool, s.handleCreatePullRequest)

	// Spotify authorization status
	spotifyAuthStatusTool := mcp.NewTool("spotify_auth_status",
		mcp.WithDescription("Report whether Spotify is authorized and how to authorize when it is not"),
	)
	s.mcp.AddTool(spotifyAuthStatusTool, s.handleSpotifyAuthStatus)

	// Track search
	searchTracksTool := mcp.NewTool("search_tracks",
		mcp.WithDescription("Search Spotify for tracks"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of tracks to return, 1-50 (default: 5)"),
		),
	)
	s.mcp.AddTool(searchTracksTool, s.handleSearchTracks)

	// Device discovery, mainly to find device_id values for playback
	listDevicesTool := mcp.NewTool("list_devices",
		mcp.WithDescription("List the user's Spotify Connect devices and their IDs"),
	)
	s.mcp.AddTool(listDevicesTool, s.handleListDevices)

	// Player state
	getCurrentTrackTool := mcp.NewTool("get_current_track",
		mcp.WithDescription("Report what Spotify is currently playing"),
	)
	s.mcp.AddTool(getCurrentTrackTool, s.handleGetCurrentTrack)

	// Direct playback
	playTracksTool := mcp.NewTool("play_tracks",
		mcp.WithDescription("Start Spotify playback of the given track URIs"),
		mcp.WithString("uris",
			mcp.Required(),
			mcp.Description("Comma-separated Spotify track URIs (spotify:track:...)"),
		),
		mcp.WithString("device_id",
			mcp.Description("Device to play on; the active device when omitted"),
		),
	)
	s.mcp.AddTool(playTracksTool, s.handlePlayTracks)

	// Mood-matched playback
	playWorkItemMusicTool := mcp.NewTool("play_work_item_music",
		mcp.WithDescription("Fetch a work item, derive a mood profile from it and start matching Spotify playback"),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Work item ID"),
		),
		mcp.WithString("device_id",
			mcp.Description("Device to play on; the active device when omitted"),
		),
	)
	s.mcp.AddTool(playWorkItemMusicTool, s.handlePlayWorkItemMusic)
}
