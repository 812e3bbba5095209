package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/nvnetdocs/connectx7-docs-mcp-server/internal/cache"
	"github.com/nvnetdocs/connectx7-docs-mcp-server/internal/config"
	"github.com/nvnetdocs/connectx7-docs-mcp-server/internal/docs"
	"github.com/nvnetdocs/connectx7-docs-mcp-server/internal/fetcher"
	"github.com/nvnetdocs/connectx7-docs-mcp-server/internal/index"
	"github.com/nvnetdocs/connectx7-docs-mcp-server/internal/registry"
)

// Server wires the documentation service into an MCP server and runs it on
// the configured transport.
type Server struct {
	config      *config.Config
	logger      *slog.Logger
	registry    *registry.Registry
	service     *docs.Service
	mcpServer   *server.MCPServer
	transport   TransportStarter
	initialized bool
}

// NewServer creates the MCP server from configuration. The server is not
// started until Start() is called.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	reg, err := registry.New(cfg.SourceDescriptors())
	if err != nil {
		return nil, fmt.Errorf("failed to build source registry: %w", err)
	}

	transport, err := NewTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	mcpServer := server.NewMCPServer(
		"connectx7-docs-mcp-server",
		"1.0.0",
	)

	return &Server{
		config:    cfg,
		logger:    logger,
		registry:  reg,
		mcpServer: mcpServer,
		transport: transport,
	}, nil
}

// Initialize opens the cache store, builds the fetcher and the documentation
// service, and rehydrates the search index from cached documents. Must be
// called before RegisterTools and Start.
func (s *Server) Initialize(ctx context.Context) error {
	if s.initialized {
		return fmt.Errorf("server already initialized")
	}

	s.logger.Info("Starting server initialization", "cache_dir", s.config.CacheDir)

	store, err := cache.Open(s.config.CacheDir, s.config.DefaultTTL(), s.config.TTLOverrideDurations(), s.logger)
	if err != nil {
		return fmt.Errorf("failed to open cache store: %w", err)
	}

	// stderr keeps fetch logs off the protocol stream on stdio transport.
	zerologLogger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	policy := fetcher.DefaultRetryPolicy()
	policy.MaxRetries = s.config.MaxRetries
	client := fetcher.NewClient(
		time.Duration(s.config.FetchTimeout)*time.Second,
		policy,
		s.config.MaxConcurrent,
		zerologLogger,
	)

	ix := index.New(s.config.SnippetLength)
	s.service = docs.NewService(s.registry, client, store, ix, s.logger, s.config.MaxSearchResults)

	restored := s.service.RebuildIndex()
	s.logger.Info("Server initialized", "sources", s.registry.Len(), "cached_documents", restored)

	s.initialized = true
	return nil
}

// RegisterTools registers the documentation tools with the MCP server.
// Must be called after Initialize and before Start.
func (s *Server) RegisterTools() error {
	if !s.initialized {
		return fmt.Errorf("server not initialized, call Initialize() first")
	}

	s.logger.Info("Registering MCP tools")

	fetchTool := mcp.NewTool(
		"fetch_docs",
		mcp.WithDescription("Fetch the documentation page for a registered source. Serves from the local cache when fresh; set refresh to force a re-fetch."),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Source identifier (e.g. 'connectx7', 'doca', 'rdma'). Use list_docs to see all sources."),
		),
		mcp.WithBoolean("refresh",
			mcp.Description("Bypass the cache and fetch a fresh copy (default: false)"),
		),
	)
	s.mcpServer.AddTool(fetchTool, s.handleFetchTool)

	searchTool := mcp.NewTool(
		"search_docs",
		mcp.WithDescription("Search previously fetched documentation by keywords. Returns matching sources ranked by relevance with snippets."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query (keywords or topic)"),
		),
		mcp.WithString("sources",
			mcp.Description("Comma-separated source identifiers to restrict the search to (default: all sources)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 10)"),
		),
	)
	s.mcpServer.AddTool(searchTool, s.handleSearchTool)

	listTool := mcp.NewTool(
		"list_docs",
		mcp.WithDescription("List every registered documentation source with its identifier, title, URL, and cache status."),
	)
	s.mcpServer.AddTool(listTool, s.handleListTool)

	linksTool := mcp.NewTool(
		"get_official_links",
		mcp.WithDescription("Return the official NVIDIA networking documentation links grouped by category."),
	)
	s.mcpServer.AddTool(linksTool, s.handleLinksTool)

	clearTool := mcp.NewTool(
		"clear_doc_cache",
		mcp.WithDescription("Clear the cached documentation for one source, or for all sources when no source is given."),
		mcp.WithString("source",
			mcp.Description("Source identifier to clear (default: clear everything)"),
		),
	)
	s.mcpServer.AddTool(clearTool, s.handleClearTool)

	s.logger.Info("MCP tools registered successfully")
	return nil
}

// Start runs the MCP server on the configured transport. Blocks until the
// client disconnects or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	if !s.initialized {
		return fmt.Errorf("server not initialized, call Initialize() first")
	}

	s.logger.Info("Starting MCP server", "transport", s.transport.Type())
	if addr := s.config.GetTransportAddress(); addr != "" {
		s.logger.Info("Transport address", "address", addr)
	}

	if err := s.transport.Start(ctx, s.mcpServer); err != nil {
		s.logger.Error("MCP server error", "error", err, "transport", s.transport.Type())
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the transport.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server", "transport", s.transport.Type())

	if err := s.transport.Shutdown(ctx); err != nil {
		s.logger.Error("Error during transport shutdown", "error", err, "transport", s.transport.Type())
		return fmt.Errorf("transport shutdown error: %w", err)
	}

	s.logger.Info("Server shutdown complete", "transport", s.transport.Type())
	return nil
}

func (s *Server) handleFetchTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID, err := request.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("source parameter is required and must be a non-empty string"), nil
	}
	refresh := request.GetBool("refresh", false)

	outcome, err := s.service.Fetch(ctx, sourceID, refresh)
	if err != nil {
		var unknown *registry.UnknownSourceError
		if errors.As(err, &unknown) {
			return mcp.NewToolResultError(unknown.Error()), nil
		}
		s.logger.Error("Fetch failed", "source", sourceID, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch %s: %v", sourceID, err)), nil
	}

	origin := "freshly fetched"
	if outcome.FromCache {
		origin = "served from cache"
	}

	doc := outcome.Document
	var content strings.Builder
	content.WriteString(fmt.Sprintf("# %s\n\n", doc.Title))
	content.WriteString(fmt.Sprintf("Source: %s (%s)\n", sourceID, origin))
	content.WriteString(fmt.Sprintf("URL: %s\n", doc.URL))
	content.WriteString(fmt.Sprintf("Retrieved: %s\n\n", doc.FetchedAt.UTC().Format(time.RFC3339)))
	content.WriteString(doc.Text)

	s.logger.Info("Document fetched", "source", sourceID, "from_cache", outcome.FromCache, "bytes", len(doc.Text))

	return mcp.NewToolResultText(content.String()), nil
}

func (s *Server) handleSearchTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required and must be a non-empty string"), nil
	}
	limit := request.GetInt("limit", 0)
	sourceIDs := splitSourceList(request.GetString("sources", ""))

	results, err := s.service.SearchSources(query, sourceIDs, limit)
	if err != nil {
		if errors.Is(err, docs.ErrInvalidQuery) {
			return mcp.NewToolResultError("query parameter is required and must be a non-empty string"), nil
		}
		var unknown *registry.UnknownSourceError
		if errors.As(err, &unknown) {
			return mcp.NewToolResultError(unknown.Error()), nil
		}
		s.logger.Error("Search failed", "query", query, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	var content strings.Builder
	content.WriteString(fmt.Sprintf("Found %d results for query: %s\n\n", len(results), query))
	if len(results) == 0 && s.service.CachedCount() == 0 {
		content.WriteString("No documentation has been fetched yet. Use fetch_docs to retrieve a source before searching.\n")
	}

	for i, result := range results {
		desc, rerr := s.registry.Resolve(result.SourceID)
		title := result.SourceID
		url := ""
		if rerr == nil {
			title = desc.Title
			url = desc.URL
		}
		content.WriteString(fmt.Sprintf("%d. %s [%s]\n", i+1, title, result.SourceID))
		if url != "" {
			content.WriteString(fmt.Sprintf("   URL: %s\n", url))
		}
		content.WriteString(fmt.Sprintf("   Relevance: %.2f\n", result.Score))
		content.WriteString(fmt.Sprintf("   Snippet: %s\n\n", result.Snippet))
	}

	s.logger.Info("Search completed", "query", query, "results", len(results))

	return mcp.NewToolResultText(content.String()), nil
}

func (s *Server) handleListTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sources := s.service.List()

	var content strings.Builder
	content.WriteString(fmt.Sprintf("Registered documentation sources (%d):\n\n", len(sources)))
	for _, src := range sources {
		status := "not cached"
		if s.service.IsCached(src.ID) {
			status = "cached"
		}
		content.WriteString(fmt.Sprintf("- %s: %s\n", src.ID, src.Title))
		content.WriteString(fmt.Sprintf("  URL: %s\n", src.URL))
		content.WriteString(fmt.Sprintf("  Category: %s, status: %s\n", src.Category, status))
	}

	content.WriteString("\nUsage:\n")
	content.WriteString("  fetch_docs(source=\"connectx7\") retrieves and caches a page\n")
	content.WriteString("  search_docs(query=\"rdma tuning\") searches fetched content\n")
	content.WriteString("  clear_doc_cache(source=\"connectx7\") discards a cached page\n")

	return mcp.NewToolResultText(content.String()), nil
}

func (s *Server) handleLinksTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groups := s.service.OfficialLinks()

	var content strings.Builder
	content.WriteString("Official NVIDIA networking documentation:\n\n")
	for _, group := range groups {
		content.WriteString(fmt.Sprintf("## %s\n", categoryHeading(group.Category)))
		for _, src := range group.Sources {
			content.WriteString(fmt.Sprintf("- %s: %s\n", src.Title, src.URL))
		}
		content.WriteString("\n")
	}

	return mcp.NewToolResultText(content.String()), nil
}

func (s *Server) handleClearTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID := request.GetString("source", "")

	if err := s.service.ClearCache(sourceID); err != nil {
		var unknown *registry.UnknownSourceError
		if errors.As(err, &unknown) {
			return mcp.NewToolResultError(unknown.Error()), nil
		}
		s.logger.Error("Cache clear failed", "source", sourceID, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to clear cache: %v", err)), nil
	}

	if sourceID == "" {
		return mcp.NewToolResultText("Cleared all cached documentation."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Cleared cached documentation for %s.", sourceID)), nil
}

// splitSourceList parses a comma-separated source list, dropping empty
// entries.
func splitSourceList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if id := strings.TrimSpace(p); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func categoryHeading(c registry.Category) string {
	switch c {
	case registry.CategoryPrimary:
		return "Primary Documentation"
	case registry.CategoryDriver:
		return "Drivers"
	case registry.CategoryTools:
		return "Tools and Downloads"
	case registry.CategoryCommunity:
		return "Community"
	default:
		return string(c)
	}
}
