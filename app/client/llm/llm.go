package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"kgbot/app/config"

	"github.com/sashabaranov/go-openai"
)

const requestTimeout = 600 * time.Second

// Completer is what the agents see; tests substitute a scripted fake.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}

// Embedder produces embedding vectors for index building and retrieval.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	maxRetries  int
}

func NewClient(cfg config.ModelConfig) *Client {
	clientConfig := openai.DefaultConfig(cfg.Token)

	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: requestTimeout,
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRetries:  maxRetries,
	}
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, nil)
}

func (c *Client) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	})
}

func (c *Client) complete(ctx context.Context, prompt string, format *openai.ChatCompletionResponseFormat) (string, error) {
	request := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature:    c.temperature,
		ResponseFormat: format,
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		aiResponse, err := c.client.CreateChatCompletion(ctx, request)
		if err != nil {
			lastErr = fmt.Errorf("failed to create chat completion: %w", err)
			continue
		}

		if len(aiResponse.Choices) == 0 {
			lastErr = fmt.Errorf("no chat completion found")
			continue
		}

		return aiResponse.Choices[0].Message.Content, nil
	}

	return "", lastErr
}

type EmbeddingClient struct {
	client *openai.Client
	model  string
}

func NewEmbeddingClient(cfg config.ModelConfig) *EmbeddingClient {
	clientConfig := openai.DefaultConfig(cfg.Token)

	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: requestTimeout,
	}

	return &EmbeddingClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
	}
}

func (c *EmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	result := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		result[i] = item.Embedding
	}

	return result, nil
}
