package server

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/richard-senior/leaguesim/internal/logger"
	"github.com/richard-senior/leaguesim/pkg/tools"
)

const (
	Name    = "leaguesim"
	Version = "0.3.0"
)

// Server wraps the tool server and remembers what it registered
type Server struct {
	mcp   *mcp.Server
	tools []string
	mu    sync.Mutex
}

// Singleton instance
var (
	instance *Server
	once     sync.Once
)

// GetInstance returns the singleton server with the default tools registered
func GetInstance() *Server {
	once.Do(func() {
		instance = &Server{
			mcp: mcp.NewServer(&mcp.Implementation{Name: Name, Version: Version}, nil),
		}
		instance.RegisterDefaultTools()
	})
	return instance
}

// addTool registers a typed handler and records its name
func addTool[T any](s *Server, tool *mcp.Tool, handler mcp.ToolHandlerFor[T, any]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mcp.AddTool(s.mcp, tool, handler)
	s.tools = append(s.tools, tool.Name)
	logger.Info("Registered tool:", tool.Name)
}

// RegisterDefaultTools registers all the default tools with the server
func (s *Server) RegisterDefaultTools() {
	logger.Info("Registering default tools...")
	addTool[tools.ForecastLeagueArgs](s, tools.ForecastLeagueTool(), tools.HandleForecastLeague)
	addTool[tools.ListLeaguesArgs](s, tools.ListLeaguesTool(), tools.HandleListLeagues)
	addTool[tools.RunHistoryArgs](s, tools.RunHistoryTool(), tools.HandleRunHistory)
}

// ToolNames lists registered tools in registration order
func (s *Server) ToolNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tools...)
}

// Start serves over stdin/stdout until the client disconnects, ctx ends or
// SIGINT/SIGTERM arrives
func (s *Server) Start(ctx context.Context) error {
	logger.Info("Starting tool server")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		logger.Info("Tool server shutting down")
		return nil
	}
	return err
}

// Connect attaches the server to an arbitrary transport, used by tests
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}
