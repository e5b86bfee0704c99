package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/emmett/sublive/internal/app"
)

type Config struct {
	ServerName    string
	ServerVersion string
}

// Server exposes the live subtitles to MCP clients
type Server struct {
	config    Config
	mcpServer *sdk.Server
	hub       *app.Hub
}

func NewServer(cfg Config, hub *app.Hub) *Server {
	if cfg.ServerName == "" {
		cfg.ServerName = "sublive"
	}
	s := &Server{
		config: cfg,
		hub:    hub,
	}

	// Create MCP server
	s.mcpServer = sdk.NewServer(&sdk.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}, nil)

	// Register tools
	s.registerTools()

	return s
}

// Run serves over stdio until ctx is cancelled or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &sdk.StdioTransport{})
}

// Connect serves a single session over t
func (s *Server) Connect(ctx context.Context, t sdk.Transport) (*sdk.ServerSession, error) {
	return s.mcpServer.Connect(ctx, t, nil)
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "get_subtitles",
		Description: "Return the subtitles currently on screen, one line per speaker turn. Interim text is marked with a trailing ellipsis.",
	}, s.handleGetSubtitles)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "get_status",
		Description: "Return the transcription session status, subtitle capacity and time of last speech",
	}, s.handleGetStatus)

	sdk.AddTool(s.mcpServer, &sdk.Tool{
		Name:        "set_capacity",
		Description: "Change how many final subtitle blocks are kept on screen",
	}, s.handleSetCapacity)
}
