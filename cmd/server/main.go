// ConnectX-7 Documentation MCP Server
//
// Main entry point for the NVIDIA ConnectX-7 documentation MCP server. It
// gives LLMs on-demand access to ConnectX-7, DOCA, VMA, and RDMA
// documentation through the Model Context Protocol (MCP).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvnetdocs/connectx7-docs-mcp-server/internal/config"
	"github.com/nvnetdocs/connectx7-docs-mcp-server/internal/logger"
	"github.com/nvnetdocs/connectx7-docs-mcp-server/internal/server"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configFile  string
	logLevel    string
	cacheDir    string
	showVersion bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "connectx7-docs-mcp-server",
		Short: "NVIDIA ConnectX-7 Documentation MCP Server",
		Long: `ConnectX-7 Documentation MCP Server provides LLMs with on-demand access
to NVIDIA networking documentation through the Model Context Protocol (MCP).

The server exposes five tools:
  - fetch_docs: Fetch a documentation page by source identifier
  - search_docs: Search previously fetched documentation by keywords
  - list_docs: List all registered documentation sources
  - get_official_links: List official NVIDIA documentation links by category
  - clear_doc_cache: Clear cached documentation

Documentation is fetched lazily on first request and cached on disk, so
searches and repeat fetches work without network access until the cache
entry expires.`,
		RunE: runServer,
	}

	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (optional)")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Directory for the document cache (default: user cache dir)")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Show version information")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Printf("ConnectX-7 Documentation MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Commit:  %s\n", commit)
		fmt.Printf("Built:   %s\n", date)
		return nil
	}

	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration from file: %w", err)
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	// Flags override file and environment settings.
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}

	// Logs go to stderr; stdout carries the MCP protocol on stdio transport.
	log, err := logger.NewLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	log.Info("Starting ConnectX-7 Documentation MCP Server",
		"version", version,
		"commit", commit,
		"date", date)

	srv, err := server.NewServer(cfg, log)
	if err != nil {
		log.Error("Failed to create server", "error", err)
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		log.Info("Initializing server (opening cache, rebuilding index)")
		if err := srv.Initialize(ctx); err != nil {
			errChan <- fmt.Errorf("server initialization failed: %w", err)
			return
		}

		if err := srv.RegisterTools(); err != nil {
			errChan <- fmt.Errorf("tool registration failed: %w", err)
			return
		}

		log.Info("Server initialized successfully, starting MCP server")

		if err := srv.Start(ctx); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
			return
		}

		errChan <- nil
	}()

	select {
	case err := <-errChan:
		if err != nil {
			log.Error("Server error", "error", err)
			return err
		}
		log.Info("Server stopped normally")
		return nil

	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Error during shutdown", "error", err)
			return fmt.Errorf("shutdown error: %w", err)
		}

		log.Info("Server shutdown complete")
		return nil
	}
}
