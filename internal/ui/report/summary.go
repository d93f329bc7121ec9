// Package report renders import runs for the terminal and for trend files.
package report

import (
	"fmt"
	"strings"
	"time"

	"graphloader/internal/data/history"
	"graphloader/internal/shared/util"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Width(16)

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#334155")).
			Padding(0, 1)
)

// RenderSummary formats one run as a bordered terminal block.
func RenderSummary(run history.Run, heap util.HeapStats) string {
	status := successStyle.Render("✅ " + string(run.Status))
	if run.Status != history.StatusSucceeded {
		status = failureStyle.Render("❌ " + string(run.Status))
	}

	rows := [][2]string{
		{"run", run.ID},
		{"store", run.StorePath},
		{"orientation", run.Orientation},
		{"concurrency", fmt.Sprintf("%d", run.Concurrency)},
		{"duration", run.Duration.Round(time.Millisecond).String()},
	}
	if run.Status == history.StatusSucceeded {
		rows = append(rows,
			[2]string{"nodes", fmt.Sprintf("%d", run.NodeCount)},
			[2]string{"relationships", fmt.Sprintf("%d", run.RelationshipCount)},
			[2]string{"compressed", formatBytes(run.CompressedBytes)},
			[2]string{"digest", shortDigest(run.Digest)},
		)
	} else {
		rows = append(rows, [2]string{"error", run.Error})
	}
	rows = append(rows, [2]string{"heap", fmt.Sprintf("%d MB alloc, %d MB sys, %d GCs", heap.AllocMB, heap.SysMB, heap.NumGC)})

	var b strings.Builder
	b.WriteString(titleStyle.Render("Graph import") + "  " + status + "\n")
	for i, row := range rows {
		b.WriteString(labelStyle.Render(row[0]))
		b.WriteString(row[1])
		if i < len(rows)-1 {
			b.WriteString("\n")
		}
	}
	return boxStyle.Render(b.String())
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func shortDigest(d string) string {
	if len(d) > 16 {
		return d[:16]
	}
	return d
}
