package agent

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultSystemPrompt = "You are a capable assistant executing one step of a larger plan. " +
	"Be direct and return only the result of the requested work."

// AnthropicExecutor executes agent work against the Anthropic Messages
// API. Personas resolve per-agent system prompts and model overrides;
// agents without a persona run with a generic prompt.
type AnthropicExecutor struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	registry  *Registry
	debugLog  func(format string, args ...any)
}

// AnthropicConfig configures an AnthropicExecutor.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// Model is the default model; persona overrides win.
	Model anthropic.Model
	// MaxTokens bounds each response. Zero uses a sensible default.
	MaxTokens int64
	// Registry resolves agent ids to personas. Optional.
	Registry *Registry
	// DebugLog receives diagnostic output. Optional.
	DebugLog func(format string, args ...any)
}

// NewAnthropicExecutor creates an executor backed by the Anthropic API.
func NewAnthropicExecutor(cfg AnthropicConfig) (*AnthropicExecutor, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}
	debugLog := cfg.DebugLog
	if debugLog == nil {
		debugLog = func(format string, args ...any) {}
	}

	return &AnthropicExecutor{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
		registry:  cfg.Registry,
		debugLog:  debugLog,
	}, nil
}

// Execute sends one prompt to the API as the given agent and returns
// the concatenated text of the response.
func (e *AnthropicExecutor) Execute(ctx context.Context, agentID, prompt string, state map[string]string) (string, error) {
	system := defaultSystemPrompt
	model := e.model

	if e.registry != nil {
		if p, ok := e.registry.Get(agentID); ok {
			if p.SystemPrompt != "" {
				system = p.SystemPrompt
			}
			if p.Model != "" {
				model = anthropic.Model(p.Model)
			}
		}
	}

	userPrompt := prompt
	if ctxBlock := formatState(state); ctxBlock != "" {
		userPrompt = fmt.Sprintf("%s\n\n## Context\n%s", prompt, ctxBlock)
	}

	e.debugLog("[agent] %s model=%s prompt=%d bytes", agentID, model, len(userPrompt))

	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: e.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("API call failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(variant.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// formatState renders run state as a markdown list for prompt context.
// Only small values are included; large blobs would crowd the prompt.
func formatState(state map[string]string) string {
	if len(state) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, key := range sortedKeys(state) {
		value := state[key]
		if len(value) > 2000 {
			value = value[:2000] + "..."
		}
		fmt.Fprintf(&sb, "- %s: %s\n", key, value)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// sortedKeys keeps prompt construction deterministic.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
