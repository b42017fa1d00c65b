// ABOUTME: OpenAI client for chat completions, embeddings and student profile extraction
// ABOUTME: Wraps go-openai with retry backoff, a per-call timeout and a token-bucket rate limiter
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/harper/tutor/internal/util"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is the default model for embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultBurst is the request burst allowed by the rate limiter
	DefaultBurst = 4
)

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel openai.EmbeddingModel
	MaxRetries     int
	RetryDelay     time.Duration
	CallTimeout    time.Duration

	// RateLimit is the sustained requests per second; zero disables limiting
	RateLimit float64
	Burst     int
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	chatModel := os.Getenv("TUTOR_OPENAI_MODEL")
	if chatModel == "" {
		chatModel = DefaultChatModel
	}

	return &ClientConfig{
		APIKey:         apiKey,
		ChatModel:      chatModel,
		EmbeddingModel: DefaultEmbeddingModel,
		MaxRetries:     3,
		RetryDelay:     time.Second * 2,
		CallTimeout:    30 * time.Second,
		RateLimit:      2,
		Burst:          DefaultBurst,
	}
}

// CompletionOptions tune a single chat completion
type CompletionOptions struct {
	Temperature float32
	// JSON asks the model for a single JSON object
	JSON bool
}

// ChatCompleter is the chat surface used by the classifier and responders
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string, opts CompletionOptions) (string, error)
}

// OpenAIClient wraps the OpenAI API client with retry logic
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel openai.EmbeddingModel
	maxRetries     int
	retryDelay     time.Duration
	callTimeout    time.Duration
	limiter        *rate.Limiter
}

// NewOpenAIClient creates a new OpenAI client with the given API key using default configuration
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithConfig(DefaultConfig(apiKey))
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom configuration
func NewOpenAIClientWithConfig(config *ClientConfig) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	oc := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		oc.BaseURL = config.BaseURL
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	burst := config.Burst
	if burst <= 0 {
		burst = 1
	}

	chatModel := config.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	embeddingModel := config.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(oc),
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		maxRetries:     config.MaxRetries,
		retryDelay:     config.RetryDelay,
		callTimeout:    config.CallTimeout,
		limiter:        rate.NewLimiter(limit, burst),
	}, nil
}

// GetClient returns the underlying OpenAI client for direct use
func (c *OpenAIClient) GetClient() *openai.Client {
	return c.client
}

// ChatModel returns the chat model in use
func (c *OpenAIClient) ChatModel() string {
	return c.chatModel
}

// withRetry runs call until it succeeds, the retries are exhausted or ctx ends.
// Each attempt waits for the rate limiter and runs under the per-call timeout.
func (c *OpenAIClient) withRetry(ctx context.Context, what string, call func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(util.CalculateBackoff(c.retryDelay, attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if c.callTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
		}
		err := call(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
		if !retryable(err) {
			break
		}
	}

	return fmt.Errorf("failed to %s after %d attempts: %w", what, c.maxRetries+1, lastErr)
}

// retryable reports whether an API error is worth another attempt
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 400, 401, 403, 404:
			return false
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.HTTPStatusCode {
		case 400, 401, 403, 404:
			return false
		}
	}
	return true
}

// Complete runs a chat completion and returns the content of the first choice
func (c *OpenAIClient) Complete(ctx context.Context, system, user string, opts CompletionOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: user,
			},
		},
		Temperature: opts.Temperature,
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	var content string
	err := c.withRetry(ctx, "complete chat", func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no completion choices returned")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

// GenerateEmbedding generates an embedding vector for text
func (c *OpenAIClient) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	var embedding64 []float64

	err := c.withRetry(ctx, "generate embedding", func(ctx context.Context) error {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: c.embeddingModel,
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("no embeddings returned")
		}

		// Convert []float32 to []float64
		embedding32 := resp.Data[0].Embedding
		embedding64 = make([]float64, len(embedding32))
		for i, v := range embedding32 {
			embedding64[i] = float64(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return embedding64, nil
}

const studentInfoPrompt = `Eres un asistente que extrae información del perfil de un estudiante de matemáticas.
A partir del mensaje del estudiante, extrae solo lo que se indique de forma explícita o sea muy evidente:
- name: nombre del estudiante (string)
- level: nivel de comprensión: "principiante", "intermedio" o "avanzado" (string)
- mastered_topics: temas que el estudiante domina (array de strings)
- difficulty_areas: temas con los que el estudiante tiene dificultades (array de strings)
- preferences: preferencias de aprendizaje, por ejemplo "ejemplos visuales" (array de strings)

Omite los campos sin información. Responde ÚNICAMENTE con un objeto JSON.`

// ExtractStudentInfo pulls learner profile fields from a student message
func (c *OpenAIClient) ExtractStudentInfo(ctx context.Context, message string) (map[string]interface{}, error) {
	content, err := c.Complete(ctx, studentInfoPrompt, "Mensaje del estudiante:\n\n"+message,
		CompletionOptions{Temperature: 0.1, JSON: true})
	if err != nil {
		return nil, err
	}

	var info map[string]interface{}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &info); err != nil {
		return nil, fmt.Errorf("failed to parse student info JSON: %w", err)
	}
	return info, nil
}

// stripCodeFence removes a surrounding markdown code fence some models add to JSON
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
