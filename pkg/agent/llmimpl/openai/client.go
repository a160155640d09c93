// Package openai provides the OpenAI implementation of the agent LLM
// client interface using the official openai-go package.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"devteam/pkg/agent"
)

// Client wraps the official OpenAI Go client to implement agent.LLMClient.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates a new OpenAI client for the given model.
func NewClient(apiKey, model string) agent.LLMClient {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		client: client,
		model:  model,
	}
}

// Complete implements the agent.LLMClient interface via chat completions.
func (c *Client) Complete(ctx context.Context, in agent.CompletionRequest) (agent.CompletionResponse, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(in.Messages))
	for i := range in.Messages {
		msg := &in.Messages[i]
		switch msg.Role {
		case agent.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case agent.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case agent.RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		default:
			return agent.CompletionResponse{}, fmt.Errorf("unsupported message role: %s", msg.Role)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:               c.model,
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(in.MaxTokens)),
		Temperature:         openai.Float(float64(in.Temperature)),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return agent.CompletionResponse{}, fmt.Errorf("OpenAI API request failed: %w", err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return agent.CompletionResponse{}, agent.ErrEmptyResponse
	}

	choice := resp.Choices[0]
	if choice.Message.Content == "" {
		return agent.CompletionResponse{}, agent.ErrEmptyResponse
	}

	return agent.CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
	}, nil
}

// GetModelName returns the model name for this client.
func (c *Client) GetModelName() string {
	return c.model
}
