package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/calref/maestro/internal/plan"
	"github.com/calref/maestro/pkg/models"
)

var (
	statusTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusBoxStyle   = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")).
				Padding(0, 1)
	statusDoneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	statusActiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	statusFailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active plan and its progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		store := plan.New(db)
		p, err := store.ActivePlan()
		if err != nil {
			fmt.Println("No active plan. Run 'maestro plan create <description>' to start.")
			return nil
		}

		progress, err := store.GetProgress(p.ID)
		if err != nil {
			return err
		}

		var sb strings.Builder
		sb.WriteString(statusTitleStyle.Render(p.Description))
		sb.WriteString("\n\n")
		fmt.Fprintf(&sb, "Plan:     %s\n", p.ID)
		fmt.Fprintf(&sb, "Status:   %s\n", p.Status)
		fmt.Fprintf(&sb, "Progress: %s %.0f%%\n", progressBar(progress.PercentComplete), progress.PercentComplete)
		fmt.Fprintf(&sb, "Tasks:    %s / %s / %s / %d pending\n",
			statusDoneStyle.Render(fmt.Sprintf("%d done", progress.Completed)),
			statusActiveStyle.Render(fmt.Sprintf("%d running", progress.InProgress)),
			statusFailStyle.Render(fmt.Sprintf("%d failed", progress.Failed)),
			progress.Pending)

		fmt.Println(statusBoxStyle.Render(sb.String()))

		running := models.TaskStatusInProgress
		tasks, err := store.ListTasks(p.ID, &running)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			agent := t.ClaimedBy
			if agent == "" {
				agent = t.AssignedAgent
			}
			fmt.Printf("  %s %s (%s)\n", statusActiveStyle.Render("▶"), t.Description, agent)
		}
		return nil
	},
}

// progressBar renders a 20-cell bar for a 0-100 percentage.
func progressBar(percent float64) string {
	const width = 20
	filled := int(percent / 100 * width)
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
