package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"
)

const DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

type OpenRouterClient struct {
	apiKey  string
	model   string
	baseURL string
	logger  *utils.Logger
	client  *http.Client
}

type openRouterRequest struct {
	Model          string                `json:"model"`
	Messages       []openRouterMessage   `json:"messages"`
	ResponseFormat *openRouterRespFormat `json:"response_format,omitempty"`
	Temperature    *float64              `json:"temperature,omitempty"`
}

// Content is a plain string or a list of contentPart.
type openRouterMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type openRouterRespFormat struct {
	Type       string         `json:"type"`
	JSONSchema jsonSchemaSpec `json:"json_schema"`
}

type jsonSchemaSpec struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type openRouterResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

func NewOpenRouterClient(apiKey, model, baseURL string, logger *utils.Logger) *OpenRouterClient {
	if baseURL == "" {
		baseURL = DefaultOpenRouterBaseURL
	}
	return &OpenRouterClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (c *OpenRouterClient) ModelID() string {
	return c.model
}

func (c *OpenRouterClient) GenerateObject(ctx context.Context, req *ObjectRequest) (*ObjectResponse, error) {
	name := req.Name
	if name == "" {
		name = "result"
	}
	temperature := 0.0

	body := openRouterRequest{
		Model:    c.model,
		Messages: toOpenRouterMessages(req.System, req.Messages),
		ResponseFormat: &openRouterRespFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaSpec{
				Name:   name,
				Strict: true,
				Schema: req.Schema.JSONSchema(),
			},
		},
		Temperature: &temperature,
	}

	resp, err := c.send(ctx, &body)
	if err != nil {
		return nil, err
	}

	content := extractJSON(strings.TrimSpace(resp.Choices[0].Message.Content))
	if !json.Valid([]byte(content)) {
		c.logger.Error("Model returned invalid JSON", "model", c.model, "content", content)
		return nil, fmt.Errorf("model response for %s is not valid JSON", name)
	}

	return &ObjectResponse{
		Object: json.RawMessage(content),
		Usage:  resp.usage(),
		Model:  resp.modelOr(c.model),
	}, nil
}

func (c *OpenRouterClient) GenerateText(ctx context.Context, req *TextRequest) (*TextResponse, error) {
	body := openRouterRequest{
		Model:    c.model,
		Messages: toOpenRouterMessages(req.System, req.Messages),
	}

	resp, err := c.send(ctx, &body)
	if err != nil {
		return nil, err
	}

	return &TextResponse{
		Text:  resp.Choices[0].Message.Content,
		Usage: resp.usage(),
		Model: resp.modelOr(c.model),
	}, nil
}

func (c *OpenRouterClient) send(ctx context.Context, reqBody *openRouterRequest) (*openRouterResponse, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Title", "invoice-chat-api")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach model API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read model API response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("OpenRouter API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("OpenRouter API returned status %d", resp.StatusCode)
	}

	var orResp openRouterResponse
	if err := json.Unmarshal(body, &orResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model API response: %w", err)
	}

	if orResp.Error != nil {
		return nil, fmt.Errorf("OpenRouter API error: %s", orResp.Error.Message)
	}

	if len(orResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in model API response")
	}

	return &orResp, nil
}

func (r *openRouterResponse) usage() models.TokenUsage {
	if r.Usage == nil {
		return models.TokenUsage{}
	}
	u := models.TokenUsage{
		PromptTokens:     r.Usage.PromptTokens,
		CompletionTokens: r.Usage.CompletionTokens,
		TotalTokens:      r.Usage.TotalTokens,
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

func (r *openRouterResponse) modelOr(fallback string) string {
	if r.Model != "" {
		return r.Model
	}
	return fallback
}

func toOpenRouterMessages(system string, msgs []Message) []openRouterMessage {
	out := make([]openRouterMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, openRouterMessage{Role: "system", Content: system})
	}

	for _, m := range msgs {
		if !hasData(m.Parts) {
			var sb strings.Builder
			for i, p := range m.Parts {
				if i > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(p.Text)
			}
			out = append(out, openRouterMessage{Role: m.Role, Content: sb.String()})
			continue
		}

		parts := make([]contentPart, 0, len(m.Parts))
		for _, p := range m.Parts {
			if p.IsData() {
				url := "data:" + p.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
				parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: url}})
				continue
			}
			parts = append(parts, contentPart{Type: "text", Text: p.Text})
		}
		out = append(out, openRouterMessage{Role: m.Role, Content: parts})
	}
	return out
}

func hasData(parts []Part) bool {
	for _, p := range parts {
		if p.IsData() {
			return true
		}
	}
	return false
}

// extractJSON attempts to extract JSON from markdown code blocks
func extractJSON(content string) string {
	if len(content) > 7 && content[:3] == "```" {
		start := 0
		end := len(content)

		// Find first newline after opening ```
		for i := 3; i < len(content); i++ {
			if content[i] == '\n' {
				start = i + 1
				break
			}
		}

		// Find closing ```
		for i := len(content) - 1; i >= 0; i-- {
			if i >= 2 && content[i-2:i+1] == "```" {
				end = i - 2
				break
			}
		}

		if start < end {
			content = strings.TrimSpace(content[start:end])
		}
	}

	return content
}
