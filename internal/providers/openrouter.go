package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultChatTimeout = 30 * time.Second

// OpenRouterProvider implements Provider for OpenAI-compatible chat
// completion APIs (OpenRouter, OpenAI, Groq, DeepSeek, etc.).
type OpenRouterProvider struct {
	name         string
	apiKey       string
	apiBase      string
	chatPath     string
	defaultModel string
	client       *http.Client
}

func NewOpenRouterProvider(apiKey, apiBase, defaultModel string) *OpenRouterProvider {
	if apiBase == "" {
		apiBase = "https://openrouter.ai/api/v1"
	}
	apiBase = strings.TrimRight(apiBase, "/")

	return &OpenRouterProvider{
		name:         "openrouter",
		apiKey:       apiKey,
		apiBase:      apiBase,
		chatPath:     "/chat/completions",
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: defaultChatTimeout},
	}
}

func (p *OpenRouterProvider) Name() string         { return p.name }
func (p *OpenRouterProvider) DefaultModel() string { return p.defaultModel }

func (p *OpenRouterProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	body := map[string]interface{}{
		"model":    model,
		"messages": req.Messages,
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}

	respBody, err := p.doRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	defer respBody.Close()

	var oaiResp openRouterResponse
	if err := json.NewDecoder(respBody).Decode(&oaiResp); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", p.name, err)
	}

	return p.parseResponse(&oaiResp)
}

func (p *OpenRouterProvider) doRequest(ctx context.Context, body interface{}) (io.ReadCloser, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", p.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.apiBase+p.chatPath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", p.name, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", p.name, err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%s: status %d: %s", p.name, resp.StatusCode, string(respBody))
	}

	return resp.Body, nil
}

func (p *OpenRouterProvider) parseResponse(resp *openRouterResponse) (*ChatResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: response contains no choices", p.name)
	}

	result := &ChatResponse{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: resp.Choices[0].FinishReason,
	}
	if result.FinishReason == "" {
		result.FinishReason = "stop"
	}

	if resp.Usage != nil {
		result.Usage = &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return result, nil
}

// openRouterResponse is the OpenAI-compatible completion wire format.
type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
