package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/httpclient"
)

func main() {
	// OVERSEER_URL wins over the config file
	baseURL := os.Getenv("OVERSEER_URL")
	if baseURL == "" {
		configPath := os.Getenv("OVERSEER_CONFIG")
		var paths []string
		if configPath != "" {
			paths = append(paths, configPath)
		} else if _, err := os.Stat("overseer.toml"); err == nil {
			paths = append(paths, "overseer.toml")
		}

		config, err := common.LoadFromFiles(paths...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		baseURL = config.Server.BaseURL()
	}

	// Minimal logging to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	client := httpclient.New(baseURL)
	common.ResolveVersion()

	mcpServer := server.NewMCPServer(
		"overseer",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)
	registerTools(mcpServer, client, logger)

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}

func registerTools(mcpServer *server.MCPServer, api overseerAPI, logger arbor.ILogger) {
	mcpServer.AddTool(createTriggerJobTool(), handleTriggerJob(api, logger))
	mcpServer.AddTool(createGetJobTool(), handleGetJob(api, logger))
	mcpServer.AddTool(createListRecentJobsTool(), handleListRecentJobs(api, logger))
	mcpServer.AddTool(createGetLatestHealthTool(), handleGetLatestHealth(api, logger))
	mcpServer.AddTool(createGetStatisticsTool(), handleGetStatistics(api, logger))
}
