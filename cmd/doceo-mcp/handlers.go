package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/doceo/internal/httpclient"
	"github.com/ternarybob/doceo/internal/models"
)

// handleSubmitTrainingJob implements the submit_training_job tool
func handleSubmitTrainingJob(client *httpclient.Client, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// Parse required parameters
		kind, err := request.RequireString("kind")
		if err != nil || kind == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: kind parameter is required (lora, qlora, or continuous)"),
				},
			}, nil
		}

		configRef, err := request.RequireString("config_ref")
		if err != nil || configRef == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: config_ref parameter is required"),
				},
			}, nil
		}

		datasetRef, err := request.RequireString("dataset_ref")
		if err != nil || datasetRef == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: dataset_ref parameter is required"),
				},
			}, nil
		}

		submission := &models.JobSubmission{
			Kind:        kind,
			Name:        request.GetString("name", ""),
			Description: request.GetString("description", ""),
			ConfigRef:   configRef,
			DatasetRef:  datasetRef,
			Priority:    request.GetInt("priority", 0),
			Tags:        request.GetStringSlice("tags", nil),
		}

		job, err := client.SubmitJob(ctx, submission)
		if err != nil {
			logger.Error().Err(err).Str("kind", kind).Msg("Job submission failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Submission error: %v", err)),
				},
			}, nil
		}

		// Format as markdown
		markdown := formatJob(job)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleGetJob implements the get_job tool
func handleGetJob(client *httpclient.Client, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// Parse job_id parameter (required)
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: job_id parameter is required"),
				},
			}, nil
		}

		job, err := client.GetJob(ctx, jobID)
		if err != nil {
			logger.Error().Err(err).Str("job_id", jobID).Msg("GetJob failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Job not found: %v", err)),
				},
			}, nil
		}

		markdown := formatJob(job)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleListJobs implements the list_jobs tool
func handleListJobs(client *httpclient.Client, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		state := request.GetString("state", "")

		// Parse limit (default: 20, max: 100)
		limit := request.GetInt("limit", 20)
		if limit > 100 {
			limit = 100
		}

		list, err := client.ListJobs(ctx, state, limit)
		if err != nil {
			logger.Error().Err(err).Msg("ListJobs failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("List error: %v", err)),
				},
			}, nil
		}

		markdown := formatJobList(state, list)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleCancelJob implements the cancel_job tool
func handleCancelJob(client *httpclient.Client, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// Parse job_id parameter (required)
		jobID, err := request.RequireString("job_id")
		if err != nil || jobID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: job_id parameter is required"),
				},
			}, nil
		}

		result, err := client.CancelJob(ctx, jobID)
		if err != nil {
			logger.Error().Err(err).Str("job_id", jobID).Msg("CancelJob failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Cancel error: %v", err)),
				},
			}, nil
		}

		markdown := formatCancelResult(jobID, result)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleCreateDataset implements the create_dataset tool
func handleCreateDataset(client *httpclient.Client, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// Parse required parameters
		name, err := request.RequireString("name")
		if err != nil || name == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: name parameter is required"),
				},
			}, nil
		}

		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: query parameter is required"),
				},
			}, nil
		}

		req := &models.DatasetRequest{
			Name:        name,
			Description: request.GetString("description", ""),
			Query: models.DatasetQuery{
				QueryText: query,
				TopK:      request.GetInt("max_documents", 0),
			},
			Formats: request.GetStringSlice("formats", nil),
		}

		record, err := client.CreateDataset(ctx, req)
		if err != nil {
			logger.Error().Err(err).Str("name", name).Msg("CreateDataset failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Dataset error: %v", err)),
				},
			}, nil
		}

		markdown := formatDataset(record)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleListDatasets implements the list_datasets tool
func handleListDatasets(client *httpclient.Client, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		state := request.GetString("state", "")
		limit := request.GetInt("limit", 20)

		list, err := client.ListDatasets(ctx, state, limit)
		if err != nil {
			logger.Error().Err(err).Msg("ListDatasets failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("List error: %v", err)),
				},
			}, nil
		}

		markdown := formatDatasetList(state, list)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleSearchCorpus implements the search_corpus tool
func handleSearchCorpus(client *httpclient.Client, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// Parse query parameter (required)
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: query parameter is required"),
				},
			}, nil
		}

		// Parse limit (default: 10, max: 100)
		limit := request.GetInt("limit", 10)
		if limit > 100 {
			limit = 100
		}

		resp, err := client.SearchCorpus(ctx, query, limit)
		if err != nil {
			logger.Error().Err(err).Str("query", query).Msg("Search failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Search error: %v", err)),
				},
			}, nil
		}

		markdown := formatSearchResults(resp)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}
