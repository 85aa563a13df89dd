package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/grantdesk/backend/internal/metrics"
	"github.com/grantdesk/backend/pkg/circuitbreaker"
	"github.com/grantdesk/backend/pkg/logger"
	"github.com/grantdesk/backend/pkg/retry"
)

type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(apiKey, model string, temperature float32, maxTokens int) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized", zap.String("model", model))

	return &Client{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			result = &CompletionResponse{
				Content: resp.Choices[0].Message.Content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

// AnalyzeDocuments answers a question grounded in the supplied document
// excerpts. The caller is responsible for truncating documentContext to
// the configured character budget.
func (c *Client) AnalyzeDocuments(ctx context.Context, question, documentContext string) (string, error) {
	systemPrompt := `You are an assistant for EU-funded project administration. Answer questions
using ONLY the provided project documents. Reference document titles when
citing facts. If the documents do not contain the answer, say so plainly.
Be concise and factual.`

	userPrompt := fmt.Sprintf("Documents:\n%s\n\nQuestion: %s", documentContext, question)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to analyze documents: %w", err)
	}

	logger.Info("Document analysis generated", zap.Int("response_length", len(resp.Content)))

	return resp.Content, nil
}

// DeadlineItem is one date-anchored item extracted from document text.
// Tasks carry a start/end span; milestones carry a single due date.
// Dates are ISO yyyy-mm-dd strings.
type DeadlineItem struct {
	Label string `json:"label"`
	Type  string `json:"type"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	Due   string `json:"due,omitempty"`
}

// ExtractDeadlineItems asks the completion API for date-anchored items in
// the given text.
func (c *Client) ExtractDeadlineItems(ctx context.Context, text string) ([]DeadlineItem, error) {
	systemPrompt := `You extract deadlines from EU project documents. Find every date-anchored
obligation: submissions, deliverables, reporting periods, review meetings.

Classify each item:
- "task" when it spans a period (has start and end dates)
- "milestone" when it is a single due date

Return ONLY a JSON array, dates as yyyy-mm-dd:
[{"label": "Submit periodic report", "type": "milestone", "due": "2025-01-15"},
 {"label": "Reporting period 1", "type": "task", "start": "2024-06-01", "end": "2024-12-31"}]`

	userPrompt := fmt.Sprintf("Extract deadlines from this document:\n\n%s\n\nReturn JSON only.", text)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.1,
		MaxTokens:    800,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract deadlines: %w", err)
	}

	items := parseDeadlineItems(resp.Content)

	logger.Info("Deadline items extracted", zap.Int("count", len(items)))

	return items, nil
}

// parseDeadlineItems tolerates prose around the JSON array, which models
// produce despite the "JSON only" instruction.
func parseDeadlineItems(content string) []DeadlineItem {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil
	}

	var items []DeadlineItem
	if err := json.Unmarshal([]byte(content[start:end+1]), &items); err != nil {
		logger.Warn("Failed to parse deadline extraction", zap.Error(err))
		return nil
	}

	valid := items[:0]
	for _, item := range items {
		if item.Type != "task" && item.Type != "milestone" {
			continue
		}
		valid = append(valid, item)
	}

	return valid
}
