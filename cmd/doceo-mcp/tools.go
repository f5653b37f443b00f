package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createSubmitTrainingJobTool returns the submit_training_job tool definition
func createSubmitTrainingJobTool() mcp.Tool {
	return mcp.NewTool("submit_training_job",
		mcp.WithDescription("Submit an adapter fine-tuning job to the Doceo worker pool"),
		mcp.WithString("kind",
			mcp.Required(),
			mcp.Description("Training kind: lora, qlora, or continuous"),
		),
		mcp.WithString("config_ref",
			mcp.Required(),
			mcp.Description("Training config reference (file path or registry key)"),
		),
		mcp.WithString("dataset_ref",
			mcp.Required(),
			mcp.Description("Dataset reference (dataset ID or export path)"),
		),
		mcp.WithString("name",
			mcp.Description("Human-readable job name"),
		),
		mcp.WithString("description",
			mcp.Description("Job description"),
		),
		mcp.WithNumber("priority",
			mcp.Description("Priority 0-100 (stored for callers, dispatch is FIFO)"),
		),
		mcp.WithArray("tags",
			mcp.WithStringItems(),
			mcp.Description("User-defined tags for filtering"),
		),
	)
}

// createGetJobTool returns the get_job tool definition
func createGetJobTool() mcp.Tool {
	return mcp.NewTool("get_job",
		mcp.WithDescription("Retrieve a training job with its current state, progress, and metrics"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID (format: job_{uuid})"),
		),
	)
}

// createListJobsTool returns the list_jobs tool definition
func createListJobsTool() mcp.Tool {
	return mcp.NewTool("list_jobs",
		mcp.WithDescription("List training jobs with per-state totals, optionally filtered by state"),
		mcp.WithString("state",
			mcp.Description("Filter: pending, queued, running, completed, failed, cancelled"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20, max: 100)"),
		),
	)
}

// createCancelJobTool returns the cancel_job tool definition
func createCancelJobTool() mcp.Tool {
	return mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a pending or queued training job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("Job ID (format: job_{uuid})"),
		),
	)
}

// createCreateDatasetTool returns the create_dataset tool definition
func createCreateDatasetTool() mcp.Tool {
	return mcp.NewTool("create_dataset",
		mcp.WithDescription("Build a training dataset from corpus documents matching a search query"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Dataset name"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query selecting the corpus documents to include"),
		),
		mcp.WithString("description",
			mcp.Description("Dataset description"),
		),
		mcp.WithArray("formats",
			mcp.WithStringItems(),
			mcp.Description("Export formats: jsonl, csv, parquet (default: configured formats)"),
		),
		mcp.WithNumber("max_documents",
			mcp.Description("Cap on documents in the dataset (0 = unlimited)"),
		),
	)
}

// createListDatasetsTool returns the list_datasets tool definition
func createListDatasetsTool() mcp.Tool {
	return mcp.NewTool("list_datasets",
		mcp.WithDescription("List dataset build records, optionally filtered by state"),
		mcp.WithString("state",
			mcp.Description("Filter: pending, processing, completed, failed"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 20)"),
		),
	)
}

// createSearchCorpusTool returns the search_corpus tool definition
func createSearchCorpusTool() mcp.Tool {
	return mcp.NewTool("search_corpus",
		mcp.WithDescription("Search the ingested corpus and return scored document matches"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query (terms are matched against title and content)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default: 10, max: 100)"),
		),
	)
}
