package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/codeingest/internal/ingest"
	"github.com/dshills/codeingest/internal/storage"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(18)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("78"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// maxListedErrors caps the errors printed in a job summary
const maxListedErrors = 10

func row(label string, value interface{}) string {
	return labelStyle.Render(label) + fmt.Sprint(value)
}

func renderStatus(status ingest.JobStatus) string {
	if status == ingest.JobCompleted {
		return successStyle.Render(string(status))
	}
	return errorStyle.Render(string(status))
}

// renderJobSummary formats a finished job for the terminal
func renderJobSummary(s *ingest.JobSnapshot) string {
	lines := []string{
		titleStyle.Render("Ingestion " + s.ProjectID),
		row("Job", s.JobID),
		row("Status", renderStatus(s.Status)),
		row("Files", s.TotalFiles),
		row("Successful", s.SuccessfulFiles),
		row("Failed", s.FailedFiles),
		row("Skipped", s.SkippedFiles),
		row("Chunks", s.TotalChunks),
		row("Duration", s.Duration().Round(time.Millisecond)),
	}

	if len(s.StrategiesUsed) > 0 {
		names := make([]string, 0, len(s.StrategiesUsed))
		for name := range s.StrategiesUsed {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%s=%d", name, s.StrategiesUsed[name])
		}
		lines = append(lines, row("Strategies", strings.Join(parts, " ")))
	}

	if len(s.Errors) > 0 {
		lines = append(lines, "", errorStyle.Render("Errors"))
		for i, msg := range s.Errors {
			if i == maxListedErrors {
				lines = append(lines, dimStyle.Render(fmt.Sprintf("... and %d more", len(s.Errors)-i)))
				break
			}
			lines = append(lines, "  "+msg)
		}
	}

	return boxStyle.Render(strings.Join(lines, "\n"))
}

// renderCapabilities formats parser capabilities for the terminal
func renderCapabilities(info ingest.CapabilitiesInfo) string {
	advanced := errorStyle.Render("unavailable")
	if info.AdvancedParserAvailable {
		advanced = successStyle.Render("available")
	}

	lines := []string{
		titleStyle.Render("Parser capabilities"),
		row("Advanced parser", advanced),
		row("Strategies", strings.Join(info.SupportedStrategies, ", ")),
	}
	if info.Reason != "" {
		lines = append(lines, row("Reason", dimStyle.Render(info.Reason)))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// renderStats formats ledger coverage for the terminal
func renderStats(projectID string, stats *storage.ProjectStats, recent []*storage.LedgerEntry) string {
	lines := []string{
		titleStyle.Render("Project " + projectID),
		row("Files", stats.TotalFiles),
		row("Indexed", successStyle.Render(fmt.Sprint(stats.IndexedFiles))),
		row("Errors", errorStyle.Render(fmt.Sprint(stats.ErrorFiles))),
		row("Chunks", stats.TotalChunks),
	}

	if len(recent) > 0 {
		lines = append(lines, "", titleStyle.Render("Recently indexed"))
		for _, e := range recent {
			lines = append(lines, fmt.Sprintf("  %s %s %s",
				dimStyle.Render(e.LastIndexedAt.Format("2006-01-02 15:04:05")),
				e.FilePath,
				dimStyle.Render(fmt.Sprintf("(%d chunks)", e.ChunkCount))))
		}
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}
