package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tiermem/tiermem/internal/model"
)

const defaultModel = "claude-sonnet-4-20250514"

const classifySystemPrompt = `You label conversation turns for a memory system.
Reply with a single JSON object and nothing else:
{
  "category": "fact" | "preference" | "knowledge" | "context" | "rule",
  "importance": "low" | "medium" | "high",
  "summary": "one sentence capturing what is worth remembering",
  "promote": true when the turn states durable personal information
}`

// AnthropicClassifier asks Claude to label the turn. Replies are
// constrained to one JSON object; anything the model wraps around it
// (fences, prose) is stripped before parsing.
type AnthropicClassifier struct {
	client *anthropic.Client
	model  string
}

// NewAnthropic builds a classifier against the Anthropic API. An empty
// model selects the default.
func NewAnthropic(apiKey, modelName string) *AnthropicClassifier {
	if modelName == "" {
		modelName = defaultModel
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicClassifier{client: &client, model: modelName}
}

func (c *AnthropicClassifier) Classify(ctx context.Context, userInput, aiOutput string) (Result, error) {
	payload := "User: " + userInput + "\n\nAssistant: " + aiOutput

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(payload)),
		},
		System: []anthropic.TextBlockParam{
			{Text: classifySystemPrompt},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("classify request: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return parseResult(text.String())
}

// parseResult extracts the JSON object from the model's reply and
// coerces out-of-vocabulary labels to the safe defaults.
func parseResult(raw string) (Result, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.Index(raw, "{"); i >= 0 {
		if j := strings.LastIndex(raw, "}"); j > i {
			raw = raw[i : j+1]
		}
	}

	var wire struct {
		Category   string `json:"category"`
		Importance string `json:"importance"`
		Summary    string `json:"summary"`
		Promote    bool   `json:"promote"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return Result{}, fmt.Errorf("classify reply not JSON: %w", err)
	}

	if !model.ValidCategories[wire.Category] {
		wire.Category = model.CategoryContext
	}
	if !model.ValidImportances[wire.Importance] {
		wire.Importance = model.ImportanceMedium
	}

	return Result{
		Category:   wire.Category,
		Importance: wire.Importance,
		Summary:    strings.TrimSpace(wire.Summary),
		Promote:    wire.Promote,
	}, nil
}
