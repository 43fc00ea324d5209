package plan

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/calref/maestro/pkg/models"
)

// statusMarker maps task statuses to their report markers.
func statusMarker(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusCompleted:
		return "[x]"
	case models.TaskStatusInProgress:
		return "[~]"
	case models.TaskStatusFailed:
		return "[!]"
	default:
		return "[ ]"
	}
}

// ExportMarkdown renders a human-readable progress report for a plan:
// header, progress bar, mermaid timeline, and the full task list.
// Output is deterministic for a given set of task rows.
func (s *Store) ExportMarkdown(planID string) (string, error) {
	p, err := s.GetPlan(planID)
	if err != nil {
		return "", err
	}
	progress, err := s.GetProgress(planID)
	if err != nil {
		return "", err
	}
	tasks, err := s.ListTasks(planID, nil)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", p.Description)
	fmt.Fprintf(&b, "**Created:** %s  \n", p.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Status:** %s  \n", p.Status)
	fmt.Fprintf(&b, "**ID:** `%s`\n\n", p.ID)

	b.WriteString("## Progress\n\n")
	const barWidth = 20
	filled := int(progress.PercentComplete / 100.0 * barWidth)
	fmt.Fprintf(&b, "```\n[%s%s] %.1f%% (%d/%d)\n```\n\n",
		strings.Repeat("#", filled), strings.Repeat(" ", barWidth-filled),
		progress.PercentComplete, progress.Completed, progress.Total)
	fmt.Fprintf(&b, "- Pending: %d\n", progress.Pending)
	fmt.Fprintf(&b, "- In Progress: %d\n", progress.InProgress)
	fmt.Fprintf(&b, "- Completed: %d\n", progress.Completed)
	fmt.Fprintf(&b, "- Failed: %d\n\n", progress.Failed)

	mermaid := renderMermaid(tasks)
	fmt.Fprintf(&b, "## Timeline\n\n```mermaid\n%s```\n\n", mermaid)

	b.WriteString("## Tasks\n\n")
	for _, t := range tasks {
		fmt.Fprintf(&b, "- %s **%s**", statusMarker(t.Status), t.Description)
		if t.AssignedAgent != "" {
			fmt.Fprintf(&b, " → @%s", t.AssignedAgent)
		} else if t.ClaimedBy != "" {
			fmt.Fprintf(&b, " → @%s", t.ClaimedBy)
		}
		b.WriteString("\n")
		if t.Output != "" && t.Status == models.TaskStatusCompleted {
			fmt.Fprintf(&b, "  - Output: %s\n", t.Output)
		}
		if t.Error != "" && t.Status == models.TaskStatusFailed {
			fmt.Fprintf(&b, "  - Error: %s\n", t.Error)
		}
	}

	return b.String(), nil
}

// planExport is the machine-readable export shape.
type planExport struct {
	Plan     models.Plan     `json:"plan"`
	Progress models.Progress `json:"progress"`
	Tasks    []models.Task   `json:"tasks"`
}

// ExportJSON renders a machine-readable export of the plan, its
// progress roll-up, and all task rows.
func (s *Store) ExportJSON(planID string) (string, error) {
	p, err := s.GetPlan(planID)
	if err != nil {
		return "", err
	}
	progress, err := s.GetProgress(planID)
	if err != nil {
		return "", err
	}
	tasks, err := s.ListTasks(planID, nil)
	if err != nil {
		return "", err
	}

	out, err := json.MarshalIndent(planExport{Plan: *p, Progress: *progress, Tasks: tasks}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export json: %w", err)
	}
	return string(out), nil
}

// GenerateMermaid renders a Gantt-style diagram of the plan's tasks
// keyed by their start and completion times.
func (s *Store) GenerateMermaid(planID string) (string, error) {
	tasks, err := s.ListTasks(planID, nil)
	if err != nil {
		return "", err
	}
	if _, err := s.GetPlan(planID); err != nil {
		return "", err
	}
	return renderMermaid(tasks), nil
}

func renderMermaid(tasks []models.Task) string {
	var b strings.Builder
	b.WriteString("gantt\n")
	b.WriteString("    title Execution Plan Progress\n")
	b.WriteString("    dateFormat X\n")
	b.WriteString("    axisFormat %H:%M\n\n")

	for _, t := range tasks {
		var class string
		switch t.Status {
		case models.TaskStatusCompleted:
			class = "done, "
		case models.TaskStatusInProgress:
			class = "active, "
		case models.TaskStatusFailed:
			class = "crit, "
		}

		start := t.CreatedAt
		if t.StartedAt != nil {
			start = *t.StartedAt
		}
		end := start.Add(time.Minute)
		if t.CompletedAt != nil {
			end = *t.CompletedAt
		}

		fmt.Fprintf(&b, "    %s :%s%d, %d\n",
			mermaidLabel(t.Description), class, start.Unix(), end.Unix())
	}
	return b.String()
}

// mermaidLabel truncates a description and strips characters that break
// mermaid's gantt syntax.
func mermaidLabel(desc string) string {
	if desc == "" {
		desc = "Task"
	}
	if r := []rune(desc); len(r) > 48 {
		desc = string(r[:48])
	}
	replacer := strings.NewReplacer(":", " ", "\n", " ", "\r", " ")
	return replacer.Replace(desc)
}

// StatsJSON returns store-wide counters as a JSON document.
func (s *Store) StatsJSON() (string, error) {
	row := s.db.QueryRow(`
		SELECT
		  (SELECT COUNT(*) FROM plans),
		  (SELECT COUNT(*) FROM plans WHERE status = 'active'),
		  (SELECT COUNT(*) FROM tasks),
		  (SELECT COUNT(*) FROM tasks WHERE status = 'completed')
	`)

	stats := struct {
		TotalPlans     int    `json:"total_plans"`
		ActivePlans    int    `json:"active_plans"`
		TotalTasks     int    `json:"total_tasks"`
		CompletedTasks int    `json:"completed_tasks"`
		DBPath         string `json:"db_path"`
	}{}
	if err := row.Scan(&stats.TotalPlans, &stats.ActivePlans, &stats.TotalTasks, &stats.CompletedTasks); err != nil {
		return "", fmt.Errorf("stats: %w", err)
	}
	stats.DBPath = s.db.Path()

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return "", fmt.Errorf("stats json: %w", err)
	}
	return string(out), nil
}
