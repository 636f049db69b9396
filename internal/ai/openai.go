// Package ai answers quiz questions with the OpenAI chat completion API.
package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dreamup/answer-agent/internal/agent"
	"github.com/dreamup/answer-agent/internal/solver"
)

// DefaultModel has vision capabilities, needed for screenshot questions
const DefaultModel = "gpt-4o"

// Instruction is sent with every question
const Instruction = `You are answering a maths homework question.
Work it out, then reply with ONLY the final answer: a number or a short phrase.
Do not show working, units or explanations.`

// Config configures the OpenAI completer
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, e.g. for a proxy
	BaseURL string
	// Retry defaults to agent.SingleRetryConfig
	Retry *agent.RetryConfig
}

// OpenAI implements solver.Completer
type OpenAI struct {
	client *openai.Client
	model  string
	retry  agent.RetryConfig
}

var _ solver.Completer = (*OpenAI)(nil)

// NewOpenAI creates a completer. The API key falls back to OPENAI_API_KEY.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not provided and not found in environment")
		}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	retry := agent.SingleRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		retry:  retry,
	}, nil
}

// Model returns the model in use
func (o *OpenAI) Model() string {
	return o.model
}

// Complete asks the model for the answer to q. A failed call is retried once.
func (o *OpenAI) Complete(ctx context.Context, q solver.PendingQuestion) (string, error) {
	req, err := o.buildRequest(q)
	if err != nil {
		return "", err
	}

	var answer string
	err = agent.Retry(ctx, o.retry, func() error {
		resp, err := o.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return agent.NewLLMError("no response choices returned from API", nil)
		}
		answer = stripMarkdownCodeFence(resp.Choices[0].Message.Content)
		if answer == "" {
			return agent.NewLLMError("empty answer returned from API", nil)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (o *OpenAI) buildRequest(q solver.PendingQuestion) (openai.ChatCompletionRequest, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		MaxTokens:   100,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: Instruction},
		},
	}

	switch {
	case q.HasImage():
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeText,
					Text: "Answer the question in this image.",
				},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    "data:image/png;base64," + base64.StdEncoding.EncodeToString(q.Image),
						Detail: openai.ImageURLDetailHigh,
					},
				},
			},
		})
	case strings.TrimSpace(q.Text) != "":
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: q.Text,
		})
	default:
		return req, fmt.Errorf("question has neither text nor image")
	}

	return req, nil
}

// classify marks client errors that will not succeed on retry as non-retryable
func classify(err error) error {
	cerr := agent.NewLLMError("failed to create chat completion", err)

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			cerr.Retryable = false
		}
	}
	return cerr
}

// stripMarkdownCodeFence removes markdown code fence wrappers from a response
func stripMarkdownCodeFence(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Drop a language tag on the opening fence
		if idx := strings.Index(text, "\n"); idx != -1 && !strings.Contains(text[:idx], "```") {
			text = text[idx+1:]
		}
		if idx := strings.Index(text, "```"); idx != -1 {
			text = text[:idx]
		}
	}

	return strings.TrimSpace(text)
}
