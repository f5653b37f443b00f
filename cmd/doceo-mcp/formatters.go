package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/doceo/internal/httpclient"
	"github.com/ternarybob/doceo/internal/models"
)

// formatJob formats a single training job as markdown
func formatJob(job *models.TrainingJob) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", job.Name))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", job.ID))
	sb.WriteString(fmt.Sprintf("**Kind:** %s\n", job.Kind))
	sb.WriteString(fmt.Sprintf("**State:** %s\n", job.State))
	sb.WriteString(fmt.Sprintf("**Config:** %s\n", job.ConfigRef))
	sb.WriteString(fmt.Sprintf("**Dataset:** %s\n", job.DatasetRef))
	if len(job.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("**Tags:** %s\n", strings.Join(job.Tags, ", ")))
	}
	sb.WriteString(fmt.Sprintf("**Created:** %s\n", job.CreatedAt.Format(time.RFC3339)))
	if job.StartedAt != nil {
		sb.WriteString(fmt.Sprintf("**Started:** %s\n", job.StartedAt.Format(time.RFC3339)))
	}
	if job.CompletedAt != nil {
		sb.WriteString(fmt.Sprintf("**Completed:** %s\n", job.CompletedAt.Format(time.RFC3339)))
	}
	sb.WriteString("\n")

	if job.Progress.TotalEpochs > 0 {
		sb.WriteString(fmt.Sprintf("**Progress:** %.1f%% (epoch %d of %d)\n\n",
			job.Progress.Percent, job.Progress.CurrentEpoch, job.Progress.TotalEpochs))
	}

	if len(job.Metrics) > 0 {
		sb.WriteString("## Metrics\n\n")
		// Sorted for stable output
		keys := make([]string, 0, len(job.Metrics))
		for k := range job.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("- %s: %.4f\n", k, job.Metrics[k]))
		}
		sb.WriteString("\n")
	}

	if job.ArtifactRef != "" {
		sb.WriteString(fmt.Sprintf("**Artifact:** %s\n", job.ArtifactRef))
	}
	if job.Error != "" {
		sb.WriteString(fmt.Sprintf("**Error:** %s\n", job.Error))
	}

	return sb.String()
}

// formatJobList formats a job listing as markdown
func formatJobList(state string, list *httpclient.JobList) string {
	var sb strings.Builder
	if state != "" {
		sb.WriteString(fmt.Sprintf("## Training Jobs - %s (%d results)\n\n", state, list.Count))
	} else {
		sb.WriteString(fmt.Sprintf("## Training Jobs (%d results)\n\n", list.Count))
	}

	if len(list.Totals) > 0 {
		parts := make([]string, 0, len(list.Totals))
		keys := make([]string, 0, len(list.Totals))
		for k := range list.Totals {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %d", k, list.Totals[k]))
		}
		sb.WriteString(fmt.Sprintf("**Totals:** %s\n\n", strings.Join(parts, ", ")))
	}

	if len(list.Jobs) == 0 {
		sb.WriteString("No jobs found.\n")
		return sb.String()
	}

	for i, job := range list.Jobs {
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s - %s)\n", i+1, job.Name, job.Kind, job.State))
		sb.WriteString(fmt.Sprintf("   ID: %s\n", job.ID))
		if job.Progress.TotalEpochs > 0 {
			sb.WriteString(fmt.Sprintf("   Progress: %.1f%%\n", job.Progress.Percent))
		}
		sb.WriteString(fmt.Sprintf("   Created: %s\n", job.CreatedAt.Format(time.RFC3339)))
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatCancelResult formats a cancellation outcome as markdown
func formatCancelResult(jobID string, result *httpclient.CancelResult) string {
	var sb strings.Builder
	if result.Cancelled {
		sb.WriteString(fmt.Sprintf("## Job %s cancelled\n\n", jobID))
	} else {
		sb.WriteString(fmt.Sprintf("## Job %s not cancelled\n\n", jobID))
	}
	sb.WriteString(fmt.Sprintf("**Current state:** %s\n", result.CurrentState))
	return sb.String()
}

// formatDataset formats a single dataset record as markdown
func formatDataset(record *models.DatasetRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", record.Name))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", record.ID))
	sb.WriteString(fmt.Sprintf("**State:** %s\n", record.State))
	sb.WriteString(fmt.Sprintf("**Query:** %s\n", record.Query.QueryText))
	if len(record.Formats) > 0 {
		sb.WriteString(fmt.Sprintf("**Formats:** %s\n", strings.Join(record.Formats, ", ")))
	}
	sb.WriteString(fmt.Sprintf("**Created:** %s\n\n", record.CreatedAt.Format(time.RFC3339)))

	if record.Stats.DocumentCount > 0 {
		sb.WriteString("## Stats\n\n")
		sb.WriteString(fmt.Sprintf("- Documents: %d\n", record.Stats.DocumentCount))
		sb.WriteString(fmt.Sprintf("- Tokens: %d\n", record.Stats.TotalTokens))
		sb.WriteString(fmt.Sprintf("- Avg quality: %.2f\n", record.Stats.AvgQuality))
		sb.WriteString("\n")
	}

	if len(record.ExportPaths) > 0 {
		sb.WriteString("## Exports\n\n")
		formats := make([]string, 0, len(record.ExportPaths))
		for format := range record.ExportPaths {
			formats = append(formats, format)
		}
		sort.Strings(formats)
		for _, format := range formats {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", format, record.ExportPaths[format]))
		}
		sb.WriteString("\n")
	}

	if record.ReportPath != "" {
		sb.WriteString(fmt.Sprintf("**Report:** %s\n", record.ReportPath))
	}
	if record.Error != "" {
		sb.WriteString(fmt.Sprintf("**Error:** %s\n", record.Error))
	}

	return sb.String()
}

// formatDatasetList formats a dataset listing as markdown
func formatDatasetList(state string, list *httpclient.DatasetList) string {
	var sb strings.Builder
	if state != "" {
		sb.WriteString(fmt.Sprintf("## Datasets - %s (%d results)\n\n", state, list.Count))
	} else {
		sb.WriteString(fmt.Sprintf("## Datasets (%d results)\n\n", list.Count))
	}

	if len(list.Datasets) == 0 {
		sb.WriteString("No datasets found.\n")
		return sb.String()
	}

	for i, record := range list.Datasets {
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s)\n", i+1, record.Name, record.State))
		sb.WriteString(fmt.Sprintf("   ID: %s\n", record.ID))
		sb.WriteString(fmt.Sprintf("   Query: %s\n", record.Query.QueryText))
		if record.Stats.DocumentCount > 0 {
			sb.WriteString(fmt.Sprintf("   Documents: %d (%d tokens)\n",
				record.Stats.DocumentCount, record.Stats.TotalTokens))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatSearchResults formats corpus search results as markdown
func formatSearchResults(resp *httpclient.SearchResponse) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Search Results for \"%s\" (%d results)\n\n", resp.Query, resp.Count))

	if len(resp.Results) == 0 {
		sb.WriteString("No results found.\n")
		return sb.String()
	}

	for i, result := range resp.Results {
		title := result.DocumentID
		if t, ok := result.Metadata["title"].(string); ok && t != "" {
			title = t
		}
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, title))
		sb.WriteString(fmt.Sprintf("**ID:** %s\n", result.DocumentID))
		if source := result.Source(); source != "" {
			sb.WriteString(fmt.Sprintf("**Source:** %s\n", source))
		}
		sb.WriteString(fmt.Sprintf("**Score:** %.2f (quality %.2f)\n\n", result.Score, result.QualityScore))

		// Content preview (first 300 chars)
		content := result.Content
		if len(content) > 300 {
			content = content[:300] + "..."
		}
		sb.WriteString("#### Content:\n")
		sb.WriteString(content)
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}
