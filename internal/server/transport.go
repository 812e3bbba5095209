// Package server provides the MCP server core implementation, handling
// protocol communication, tool registration, and request routing.
package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
)

// TransportStarter abstracts the transport implementations (STDIO, SSE,
// StreamableHTTP) the MCP server can run on.
type TransportStarter interface {
	// Start binds the transport to the MCP server and blocks until the
	// client disconnects or an error occurs.
	Start(ctx context.Context, mcpServer *server.MCPServer) error

	// Shutdown gracefully stops the transport and closes active connections.
	Shutdown(ctx context.Context) error

	// Type returns the transport name for logging ("stdio", "sse",
	// "streamablehttp").
	Type() string
}

// StdioTransport serves the MCP protocol over stdin/stdout. Logs must go to
// stderr to keep the protocol stream clean.
type StdioTransport struct{}

func (s *StdioTransport) Start(ctx context.Context, mcpServer *server.MCPServer) error {
	return server.ServeStdio(mcpServer)
}

// Shutdown is a no-op; stdin/stdout are closed when the process exits.
func (s *StdioTransport) Shutdown(ctx context.Context) error {
	return nil
}

func (s *StdioTransport) Type() string {
	return "stdio"
}

// SSETransport serves the MCP protocol over HTTP with Server-Sent Events,
// supporting multiple concurrent client sessions.
type SSETransport struct {
	address string
	server  *server.SSEServer
}

func (s *SSETransport) Start(ctx context.Context, mcpServer *server.MCPServer) error {
	s.server = server.NewSSEServer(mcpServer)
	return s.server.Start(s.address)
}

func (s *SSETransport) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *SSETransport) Type() string {
	return "sse"
}

// StreamableHTTPTransport serves the MCP protocol over the streamable HTTP
// transport, suitable for web clients that POST requests and read streamed
// responses.
type StreamableHTTPTransport struct {
	address string
	server  *server.StreamableHTTPServer
}

func (s *StreamableHTTPTransport) Start(ctx context.Context, mcpServer *server.MCPServer) error {
	s.server = server.NewStreamableHTTPServer(mcpServer)
	return s.server.Start(s.address)
}

func (s *StreamableHTTPTransport) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *StreamableHTTPTransport) Type() string {
	return "streamablehttp"
}

// transportConfig is the slice of configuration NewTransport needs, satisfied
// by *config.Config and by test doubles.
type transportConfig interface {
	GetTransportType() string
	GetPort() int
	GetTransportAddress() string
}

// NewTransport creates the transport named by the configuration. Network
// transports require a configured port.
func NewTransport(cfg transportConfig) (TransportStarter, error) {
	switch cfg.GetTransportType() {
	case "stdio":
		return &StdioTransport{}, nil
	case "sse":
		if cfg.GetPort() == 0 {
			return nil, fmt.Errorf("port must be configured for SSE transport")
		}
		return &SSETransport{address: cfg.GetTransportAddress()}, nil
	case "streamablehttp":
		if cfg.GetPort() == 0 {
			return nil, fmt.Errorf("port must be configured for StreamableHTTP transport")
		}
		return &StreamableHTTPTransport{address: cfg.GetTransportAddress()}, nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s (must be one of: stdio, sse, streamablehttp)", cfg.GetTransportType())
	}
}
