// ABOUTME: MCP command starts the Model Context Protocol server
// ABOUTME: Lets LLM agents ask the tutor and inspect sessions over stdio
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harper/tutor/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs the tutor as an MCP (Model Context Protocol) server on stdio so
LLM agents can ask questions, preview routing decisions, search study
material and read or update the student profile.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically launched by the agent host)
  tutor mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "tutor": {
  #       "command": "tutor",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	tutor, logger, err := openEngine(cmd)
	if err != nil {
		return err
	}

	server := mcpserver.NewMCPServer("tutor", versionInfo.Version)
	handlers := mcp.RegisterTools(server, tutor, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("MCP server starting on stdio", "online", tutor.Online())

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		err = nil
	case err = <-serverErr:
	}

	handlers.Shutdown()
	if cerr := tutor.Close(); cerr != nil {
		logger.Warn("error closing storage", "error", cerr)
	}
	logger.Info("shutdown complete")

	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
