package main

import (
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calref/maestro/internal/agent"
	"github.com/calref/maestro/internal/groupchat"
	"github.com/calref/maestro/pkg/models"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run a multi-agent group discussion",
}

var (
	chatParticipants []string
	chatMode         string
	chatRounds       int
	chatThreshold    float64
)

var chatRunCmd = &cobra.Command{
	Use:   "run <topic>",
	Short: "Discuss a topic until consensus or the round limit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(chatParticipants) < 2 {
			return fmt.Errorf("at least two participants are required, got %d", len(chatParticipants))
		}
		topic := strings.Join(args, " ")

		cfg := loadConfig()
		threshold := chatThreshold
		if threshold <= 0 {
			threshold = cfg.Chat.ConsensusThreshold
		}
		rounds := chatRounds
		if rounds <= 0 {
			rounds = cfg.Chat.MaxRounds
		}

		chat, err := groupchat.New(chatParticipants, models.ChatMode(chatMode),
			groupchat.WithThreshold(threshold))
		if err != nil {
			return err
		}

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

		fmt.Printf("Discussing: %s\n\n", topic)

		turns := rounds * len(chatParticipants)
		for i := 0; i < turns; i++ {
			speaker := chat.NextSpeaker()

			prompt := buildChatPrompt(topic, speaker, chat.Messages())
			reply, err := executor.Execute(cmd.Context(), speaker, prompt, nil)
			if err != nil {
				return fmt.Errorf("agent %q: %w", speaker, err)
			}
			if err := chat.AddMessage(speaker, reply); err != nil {
				return err
			}
			fmt.Printf("%s: %s\n\n", color.CyanString(speaker), reply)

			if chat.Mode() == models.ChatConsensus && chat.CheckConsensus() {
				fmt.Printf("%s consensus reached (%.0f%% agreement)\n",
					color.GreenString("✓"), chat.AgreementRatio()*100)
				return nil
			}
		}

		if chat.Mode() == models.ChatConsensus {
			fmt.Printf("%s no consensus after %d rounds (%.0f%% agreement)\n",
				color.YellowString("!"), rounds, chat.AgreementRatio()*100)
		}
		return nil
	},
}

// buildChatPrompt renders the discussion so far for the next speaker.
func buildChatPrompt(topic, speaker string, history []models.Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %q in a group discussion about:\n%s\n", speaker, topic)
	if len(history) > 0 {
		sb.WriteString("\nDiscussion so far:\n")
		for _, m := range history {
			fmt.Fprintf(&sb, "%s: %s\n", m.Speaker, m.Text)
		}
	}
	sb.WriteString("\nGive your next contribution. If you support the current direction, say so explicitly.")
	return sb.String()
}

func init() {
	chatRunCmd.Flags().StringSliceVar(&chatParticipants, "participants", nil, "Comma-separated participant agent ids")
	chatRunCmd.Flags().StringVar(&chatMode, "mode", "round_robin", "Turn policy: round_robin or consensus")
	chatRunCmd.Flags().IntVar(&chatRounds, "rounds", 0, "Maximum discussion rounds (default from config)")
	chatRunCmd.Flags().Float64Var(&chatThreshold, "threshold", 0, "Consensus agreement threshold (default from config)")
	chatRunCmd.MarkFlagRequired("participants")

	chatCmd.AddCommand(chatRunCmd)
}
