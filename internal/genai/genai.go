// Package genai provides GenAI-enhanced operations using OpenAI API.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/treelogistics/driverdesk/internal/models"
)

const intentSystemPrompt = `You classify WhatsApp messages from delivery drivers of Tree Logistics.
Respond with a single JSON object and nothing else:
{"category": "...", "confidence": 0.0, "extracted_info": {}}
category must be one of: Salary, HR, Accident/Damage, Equipment, Report, Vacation/Sick Leave, Vehicle, Schedule, Performance, General.
confidence is between 0 and 1. extracted_info may contain keys like "dates" or "iban" when present in the message.
Messages may be in English, Albanian or German.`

const followUpSystemPrompt = `You help file support requests for delivery drivers of Tree Logistics.
Given the request category and what the driver already said, ask ONE short clarifying question that helps the back office act.
Never ask for the driver's name, employee id or department; those are already known.
Reply with the question only.`

// Client wraps the OpenAI chat completion API for intent classification
// and clarifying question generation.
type Client struct {
	client openai.Client
	model  openai.ChatModel
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the default chat model.
func WithModel(model openai.ChatModel) Option {
	return func(c *Client) { c.model = model }
}

// NewClient initializes a GenAI client using the OPENAI_API_KEY
// environment variable.
func NewClient(opts ...Option) (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	c := &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.ChatModelGPT4oMini,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ClassifyIntent asks the model to categorize one driver message.
func (c *Client) ClassifyIntent(ctx context.Context, text string) (models.Intent, error) {
	raw, err := c.complete(ctx, intentSystemPrompt, text)
	if err != nil {
		return models.Intent{}, fmt.Errorf("failed to classify intent: %w", err)
	}
	intent, err := parseIntentJSON(raw)
	if err != nil {
		return models.Intent{}, fmt.Errorf("failed to parse intent response: %w", err)
	}
	slog.Debug("GenAI classified intent", "category", intent.Category, "confidence", intent.Confidence)
	return intent, nil
}

// FollowUpQuestion asks the model for the next clarifying question.
func (c *Client) FollowUpQuestion(ctx context.Context, category models.RequestCategory, details []string) (string, error) {
	user := fmt.Sprintf("Category: %s\nDriver said so far:\n%s", category, strings.Join(details, "\n"))
	question, err := c.complete(ctx, followUpSystemPrompt, user)
	if err != nil {
		return "", fmt.Errorf("failed to generate follow-up question: %w", err)
	}
	return strings.TrimSpace(question), nil
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(0.1),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// knownCategories guards against the model inventing category names.
var knownCategories = map[string]models.RequestCategory{
	"salary":              models.CategorySalary,
	"hr":                  models.CategoryHR,
	"accident/damage":     models.CategoryAccident,
	"equipment":           models.CategoryEquipment,
	"report":              models.CategoryReport,
	"vacation/sick leave": models.CategoryVacation,
	"vehicle":             models.CategoryVehicle,
	"schedule":            models.CategorySchedule,
	"performance":         models.CategoryPerformance,
	"general":             models.CategoryGeneral,
}

// parseIntentJSON decodes the model's JSON reply, tolerating markdown
// code fences the model sometimes wraps around it.
func parseIntentJSON(raw string) (models.Intent, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	var parsed struct {
		Category      string            `json:"category"`
		Confidence    float64           `json:"confidence"`
		ExtractedInfo map[string]string `json:"extracted_info"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return models.Intent{}, err
	}

	category, ok := knownCategories[strings.ToLower(strings.TrimSpace(parsed.Category))]
	if !ok {
		return models.Intent{}, fmt.Errorf("unknown category %q", parsed.Category)
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return models.Intent{}, fmt.Errorf("confidence %v out of range", parsed.Confidence)
	}
	return models.Intent{
		Category:      category,
		Confidence:    parsed.Confidence,
		ExtractedInfo: parsed.ExtractedInfo,
	}, nil
}
