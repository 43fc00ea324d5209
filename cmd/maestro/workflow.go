package main

import (
	"fmt"
	"strconv"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calref/maestro/internal/agent"
	"github.com/calref/maestro/internal/workflow"
	"github.com/calref/maestro/pkg/models"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Run and inspect workflows",
}

var (
	workflowInput      string
	workflowID         int64
	workflowCheckpoint bool
)

var workflowRunCmd = &cobra.Command{
	Use:   "run <definition.yaml>",
	Short: "Execute a workflow definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := workflow.LoadFile(args[0])
		if err != nil {
			return err
		}
		wf.WorkflowID = workflowID

		cfg := loadConfig()

		registry := agent.NewRegistry()
		if cfg.Workflow.PersonaDir != "" {
			if err := registry.LoadDir(cfg.Workflow.PersonaDir); err != nil {
				return err
			}
		}

		executor, err := agent.NewAnthropicExecutor(agent.AnthropicConfig{
			APIKey:    cfg.Anthropic.APIKey,
			Model:     anthropic.Model(cfg.Anthropic.Model),
			MaxTokens: cfg.Anthropic.MaxTokens,
			Registry:  registry,
			DebugLog:  debugLog,
		})
		if err != nil {
			return err
		}

		opts := []workflow.Option{
			workflow.WithNodeTimeout(cfg.Workflow.NodeTimeout),
			workflow.WithMaxSteps(cfg.Workflow.MaxSteps),
			workflow.WithDebugLog(debugLog),
		}

		if workflowCheckpoint || workflowID != 0 {
			db, err := openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			opts = append(opts, workflow.WithStore(db))
		}

		engine := workflow.NewEngine(executor, opts...)

		output, err := engine.Execute(cmd.Context(), wf, workflowInput)
		if err != nil {
			return err
		}

		switch wf.Status {
		case models.RunPaused:
			fmt.Printf("%s workflow paused at node %q, waiting for input\n",
				color.YellowString("⏸"), wf.CurrentID)
		default:
			fmt.Printf("%s workflow %q finished: %s\n", color.GreenString("✓"), wf.Name, wf.Status)
		}
		if output != "" {
			fmt.Println(output)
		}

		if workflowCheckpoint && wf.WorkflowID != 0 {
			id, err := engine.Checkpoint(wf, "final")
			if err != nil {
				return fmt.Errorf("checkpoint: %w", err)
			}
			fmt.Printf("Saved checkpoint %d\n", id)
		}
		return nil
	},
}

var workflowCheckpointsCmd = &cobra.Command{
	Use:   "checkpoints <workflow-id>",
	Short: "List a workflow's checkpoints, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("workflow id must be numeric: %w", err)
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		cps, err := db.ListCheckpoints(id)
		if err != nil {
			return err
		}
		if len(cps) == 0 {
			fmt.Println("No checkpoints found.")
			return nil
		}

		for _, cp := range cps {
			label := workflow.CheckpointLabel(&cp)
			if label == "" {
				label = "-"
			}
			fmt.Printf("%6d  %s  node=%-16s  %s\n",
				cp.ID, cp.CreatedAt.Format("2006-01-02 15:04:05"), cp.NodeID, label)
		}
		return nil
	},
}

var workflowValidateCmd = &cobra.Command{
	Use:   "validate <definition.yaml>",
	Short: "Parse a workflow definition and report graph errors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := workflow.LoadFile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s workflow %q: %d nodes, entry %q\n",
			color.GreenString("✓"), wf.Name, len(wf.NodeIDs()), wf.Entry())
		return nil
	},
}

func init() {
	workflowRunCmd.Flags().StringVar(&workflowInput, "input", "", "Initial input passed to the entry node")
	workflowRunCmd.Flags().Int64Var(&workflowID, "workflow-id", 0, "Persistent id scoping durable checkpoints")
	workflowRunCmd.Flags().BoolVar(&workflowCheckpoint, "checkpoint", false, "Save a checkpoint when the run ends")

	workflowCmd.AddCommand(workflowRunCmd)
	workflowCmd.AddCommand(workflowCheckpointsCmd)
	workflowCmd.AddCommand(workflowValidateCmd)
}
