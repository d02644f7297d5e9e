package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cfraser/adventure-engine/pkg/chat"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"

	// DefaultOpenAITemperature balances narrative variety with schema
	// compliance for structured outputs.
	DefaultOpenAITemperature = 0.7
)

// OpenAIService implements LLMService using the OpenAI chat completions API.
type OpenAIService struct {
	apiKey     string
	modelName  string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ LLMService = (*OpenAIService)(nil)

type openAIChatRequest struct {
	Model       string         `json:"model"`
	Messages    []chat.Message `json:"messages"`
	Temperature float64        `json:"temperature,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIService creates an OpenAI-backed LLM service.
func NewOpenAIService(apiKey string, modelName string, logger *slog.Logger) *OpenAIService {
	return &OpenAIService{
		apiKey:    apiKey,
		modelName: modelName,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		logger: logger,
	}
}

// InitModel is a no-op for OpenAI; models are hosted remotely.
func (s *OpenAIService) InitModel(ctx context.Context, modelName string) error {
	s.logger.Info("Using OpenAI model", "model", modelName)
	return nil
}

// IsModelReady always reports true; OpenAI models need no local warmup.
func (s *OpenAIService) IsModelReady(ctx context.Context, modelName string) (bool, error) {
	return true, nil
}

// Chat generates a reply using the OpenAI chat completions API.
func (s *OpenAIService) Chat(ctx context.Context, messages []chat.Message) (string, error) {
	reqBody := openAIChatRequest{
		Model:       s.modelName,
		Messages:    messages,
		Temperature: DefaultOpenAITemperature,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := openAIBaseURL + "/chat/completions"
	s.logger.Debug("Making OpenAI chat request",
		"url", url,
		"model", s.modelName,
		"message_count", len(messages))

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var responseBody bytes.Buffer
	if _, err := responseBody.ReadFrom(resp.Body); err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Error("OpenAI API returned error",
			"status_code", resp.StatusCode,
			"response_body", responseBody.String())
		return "", fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	var chatResp openAIChatResponse
	if err := json.Unmarshal(responseBody.Bytes(), &chatResp); err != nil {
		s.logger.Error("Failed to decode OpenAI response",
			"error", err,
			"response_body", responseBody.String())
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	choice := chatResp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("model refused request: %s", choice.Message.Refusal)
	}

	return choice.Message.Content, nil
}
