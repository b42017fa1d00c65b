// ABOUTME: Main entry point for the tutor MCP server with stdio transport
// ABOUTME: Builds the engine from the environment and serves every tutor tool
package main

import (
	"os"

	"github.com/harper/tutor/internal/config"
	"github.com/harper/tutor/internal/engine"
	"github.com/harper/tutor/internal/logging"
	"github.com/harper/tutor/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

var version = "dev"

func main() {
	logger := logging.New(os.Stderr, logging.ParseLevel(os.Getenv("TUTOR_LOG_LEVEL")), false)

	if err := config.LoadDotEnv(); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger = logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel), false)

	if !cfg.HasOpenAI() {
		logger.Warn("OPENAI_API_KEY not set - only routing and history tools will work")
	}

	tutor, err := engine.New(cfg, logger)
	if err != nil {
		logger.Error("failed to start tutor", "error", err)
		os.Exit(1)
	}

	server := mcpserver.NewMCPServer("tutor", version)
	handlers := mcp.RegisterTools(server, tutor, logger)

	logger.Info("tutor MCP server starting on stdio")
	serveErr := mcpserver.ServeStdio(server)

	handlers.Shutdown()
	if err := tutor.Close(); err != nil {
		logger.Warn("error closing storage", "error", err)
	}
	if serveErr != nil {
		logger.Error("server error", "error", serveErr)
		os.Exit(1)
	}
}
