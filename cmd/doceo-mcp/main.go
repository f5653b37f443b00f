package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"
	"github.com/ternarybob/doceo/internal/common"
	"github.com/ternarybob/doceo/internal/httpclient"
)

func main() {
	// Initialize minimal logger for MCP server (console only, no file output)
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn") // Minimal logging to avoid cluttering MCP stdio

	// The MCP server is a client of the running doceo instance. The badger
	// store is single-process, so tools go through the HTTP API instead of
	// opening the data directory the server already owns.
	apiURL := os.Getenv("DOCEO_API_URL")
	if apiURL == "" {
		// Derive the URL from the server config when one is available
		configPath := os.Getenv("DOCEO_CONFIG")
		if configPath == "" {
			configPath = "doceo.toml"
		}
		if config, err := common.LoadFromFiles(configPath); err == nil {
			apiURL = fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)
		} else {
			apiURL = "http://localhost:8085"
		}
	}

	token := os.Getenv("DOCEO_API_TOKEN")

	timeout := 30 * time.Second
	if raw := os.Getenv("DOCEO_API_TIMEOUT"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			timeout = parsed
		}
	}

	client := httpclient.NewClient(apiURL, token, timeout)

	// Create MCP server
	mcpServer := server.NewMCPServer(
		"doceo",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	// Register training job tools
	mcpServer.AddTool(createSubmitTrainingJobTool(), handleSubmitTrainingJob(client, logger))
	mcpServer.AddTool(createGetJobTool(), handleGetJob(client, logger))
	mcpServer.AddTool(createListJobsTool(), handleListJobs(client, logger))
	mcpServer.AddTool(createCancelJobTool(), handleCancelJob(client, logger))

	// Register dataset tools
	mcpServer.AddTool(createCreateDatasetTool(), handleCreateDataset(client, logger))
	mcpServer.AddTool(createListDatasetsTool(), handleListDatasets(client, logger))

	// Register corpus tools
	mcpServer.AddTool(createSearchCorpusTool(), handleSearchCorpus(client, logger))

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
