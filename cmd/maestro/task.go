package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calref/maestro/internal/plan"
	"github.com/calref/maestro/pkg/models"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks within a plan",
}

var (
	taskAddPlan     string
	taskAddAgent    string
	taskAddPriority int
	taskAddParent   string
)

var taskAddCmd = &cobra.Command{
	Use:   "add <description>",
	Short: "Add a task to a plan",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		store := plan.New(db)
		id, err := store.AddTask(taskAddPlan, strings.Join(args, " "),
			taskAddAgent, taskAddPriority, taskAddParent)
		if err != nil {
			return err
		}
		fmt.Printf("Created task %s\n", id)
		return nil
	},
}

var taskListPlan string
var taskListStatus string

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a plan's tasks in scheduling order",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		var filter *models.TaskStatus
		if taskListStatus != "" {
			s := models.TaskStatus(taskListStatus)
			if !s.Valid() {
				return fmt.Errorf("unknown task status %q", taskListStatus)
			}
			filter = &s
		}

		store := plan.New(db)
		tasks, err := store.ListTasks(taskListPlan, filter)
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}

		for _, t := range tasks {
			agent := t.AssignedAgent
			if agent == "" {
				agent = "-"
			}
			fmt.Printf("%s  %-12s  p%-3d  @%-12s  %s\n", t.ID, t.Status, t.Priority, agent, t.Description)
		}
		return nil
	},
}

var taskClaimCmd = &cobra.Command{
	Use:   "claim <task-id> <agent>",
	Short: "Atomically claim a pending task for an agent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		store := plan.New(db)
		if err := store.ClaimTask(args[0], args[1]); err != nil {
			if errors.Is(err, plan.ErrBusy) {
				return fmt.Errorf("task %s is already claimed", args[0])
			}
			return err
		}
		fmt.Printf("%s task %s claimed by %s\n", color.GreenString("✓"), args[0], args[1])
		return nil
	},
}

var taskNextCmd = &cobra.Command{
	Use:   "next <plan-id> <agent>",
	Short: "Show the next schedulable task for an agent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		store := plan.New(db)
		t, err := store.NextTask(args[0], args[1])
		if err != nil {
			if errors.Is(err, plan.ErrNotFound) {
				fmt.Println("No pending tasks available.")
				return nil
			}
			return err
		}
		fmt.Printf("%s  p%d  %s\n", t.ID, t.Priority, t.Description)
		return nil
	},
}

var taskCompleteOutput string

var taskCompleteCmd = &cobra.Command{
	Use:   "complete <task-id>",
	Short: "Mark an in-progress task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		store := plan.New(db)
		if err := store.CompleteTask(args[0], taskCompleteOutput); err != nil {
			return err
		}
		fmt.Printf("%s task %s completed\n", color.GreenString("✓"), args[0])
		return nil
	},
}

var taskFailReason string

var taskFailCmd = &cobra.Command{
	Use:   "fail <task-id>",
	Short: "Mark an in-progress task failed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		store := plan.New(db)
		if err := store.FailTask(args[0], taskFailReason); err != nil {
			return err
		}
		fmt.Printf("%s task %s failed\n", color.YellowString("!"), args[0])
		return nil
	},
}

func init() {
	taskAddCmd.Flags().StringVar(&taskAddPlan, "plan", "", "Plan id (required)")
	taskAddCmd.Flags().StringVar(&taskAddAgent, "agent", "", "Pre-assign to an agent")
	taskAddCmd.Flags().IntVar(&taskAddPriority, "priority", 50, "Scheduling priority (higher first)")
	taskAddCmd.Flags().StringVar(&taskAddParent, "parent", "", "Parent task id for subtasks")
	taskAddCmd.MarkFlagRequired("plan")

	taskListCmd.Flags().StringVar(&taskListPlan, "plan", "", "Plan id (required)")
	taskListCmd.Flags().StringVar(&taskListStatus, "status", "", "Filter by status")
	taskListCmd.MarkFlagRequired("plan")

	taskCompleteCmd.Flags().StringVar(&taskCompleteOutput, "output", "", "Result text stored with the task")
	taskFailCmd.Flags().StringVar(&taskFailReason, "error", "", "Failure reason stored with the task")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskClaimCmd)
	taskCmd.AddCommand(taskNextCmd)
	taskCmd.AddCommand(taskCompleteCmd)
	taskCmd.AddCommand(taskFailCmd)
}
