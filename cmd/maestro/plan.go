package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calref/maestro/internal/plan"
	"github.com/calref/maestro/pkg/models"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage plans",
}

var planCreateContext string

var planCreateCmd = &cobra.Command{
	Use:   "create <description>",
	Short: "Create a new plan",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		store := plan.New(db)
		id, err := store.CreatePlan(strings.Join(args, " "), planCreateContext)
		if err != nil {
			return err
		}
		fmt.Printf("Created plan %s\n", id)
		return nil
	},
}

var planListStatus string

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List plans, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		var filter *models.PlanStatus
		if planListStatus != "" {
			s := models.PlanStatus(planListStatus)
			if !s.Valid() {
				return fmt.Errorf("unknown plan status %q", planListStatus)
			}
			filter = &s
		}

		store := plan.New(db)
		plans, err := store.ListPlans(filter, 50, 0)
		if err != nil {
			return err
		}
		if len(plans) == 0 {
			fmt.Println("No plans found.")
			return nil
		}

		for _, p := range plans {
			fmt.Printf("%s  %-10s  %3d tasks  %s\n", p.ID, p.Status, p.TotalTasks, p.Description)
		}
		return nil
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show <plan-id>",
	Short: "Show a plan and its tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		store := plan.New(db)
		md, err := store.ExportMarkdown(args[0])
		if err != nil {
			return err
		}
		fmt.Println(md)
		return nil
	},
}

var planExportFormat string

var planExportCmd = &cobra.Command{
	Use:   "export <plan-id>",
	Short: "Export a plan (markdown, json, or mermaid)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		store := plan.New(db)
		var out string
		switch planExportFormat {
		case "markdown", "md":
			out, err = store.ExportMarkdown(args[0])
		case "json":
			out, err = store.ExportJSON(args[0])
		case "mermaid":
			out, err = store.GenerateMermaid(args[0])
		default:
			return fmt.Errorf("unknown export format %q", planExportFormat)
		}
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

var planDeleteCmd = &cobra.Command{
	Use:   "delete <plan-id>",
	Short: "Delete a plan and all of its tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		store := plan.New(db)
		if err := store.DeletePlan(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted plan %s\n", args[0])
		return nil
	},
}

var (
	cleanupMaxAge int
	cleanupStatus string
	cleanupVacuum bool
)

var planCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		maxAge := cleanupMaxAge
		if maxAge <= 0 {
			maxAge = loadConfig().Cleanup.MaxAgeDays
		}

		var filter *models.PlanStatus
		if cleanupStatus != "" {
			s := models.PlanStatus(cleanupStatus)
			if !s.Valid() {
				return fmt.Errorf("unknown plan status %q", cleanupStatus)
			}
			filter = &s
		}

		store := plan.New(db)
		deleted, err := store.CleanupOld(maxAge, filter)
		if err != nil {
			return err
		}
		fmt.Printf("%s deleted %d plan(s) older than %d days\n",
			color.GreenString("✓"), deleted, maxAge)

		if cleanupVacuum {
			if err := store.Vacuum(); err != nil {
				return fmt.Errorf("vacuum: %w", err)
			}
			fmt.Printf("%s database compacted\n", color.GreenString("✓"))
		}
		return nil
	},
}

var planStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print store statistics as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		store := plan.New(db)
		out, err := store.StatsJSON()
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	planCreateCmd.Flags().StringVar(&planCreateContext, "context", "", "Free-form context stored with the plan")
	planListCmd.Flags().StringVar(&planListStatus, "status", "", "Filter by status (pending, active, completed)")
	planExportCmd.Flags().StringVar(&planExportFormat, "format", "markdown", "Export format: markdown, json, or mermaid")
	planCleanupCmd.Flags().IntVar(&cleanupMaxAge, "max-age", 0, "Delete plans older than this many days (default from config)")
	planCleanupCmd.Flags().StringVar(&cleanupStatus, "status", "", "Only delete plans with this status")
	planCleanupCmd.Flags().BoolVar(&cleanupVacuum, "vacuum", false, "Compact the database afterwards")

	planCmd.AddCommand(planCreateCmd)
	planCmd.AddCommand(planListCmd)
	planCmd.AddCommand(planShowCmd)
	planCmd.AddCommand(planExportCmd)
	planCmd.AddCommand(planDeleteCmd)
	planCmd.AddCommand(planCleanupCmd)
	planCmd.AddCommand(planStatsCmd)
}
