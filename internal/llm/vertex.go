package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
)

// VertexClient calls Gemini models on Vertex AI.
type VertexClient struct {
	modelName  string
	baseClient *genai.Client
}

func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	return &VertexClient{modelName: modelName, baseClient: baseClient}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

func (c *VertexClient) ModelID() string {
	return c.modelName
}

// model returns a per-call model handle; GenerativeModel carries config and must not be shared.
func (c *VertexClient) model(system string) *genai.GenerativeModel {
	m := c.baseClient.GenerativeModel(c.modelName)
	if system != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	return m
}

func (c *VertexClient) GenerateObject(ctx context.Context, req *ObjectRequest) (*ObjectResponse, error) {
	m := c.model(req.System)
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toGenaiSchema(req.Schema),
		Temperature:      genai.Ptr[float32](0.0),
	}

	resp, err := c.generate(ctx, m, req.Messages)
	if err != nil {
		return nil, err
	}

	content := extractJSON(strings.TrimSpace(responseText(resp)))
	if !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("Gemini model response for %s is not valid JSON", req.Name)
	}

	return &ObjectResponse{
		Object: json.RawMessage(content),
		Usage:  usageOf(resp),
		Model:  c.modelName,
	}, nil
}

func (c *VertexClient) GenerateText(ctx context.Context, req *TextRequest) (*TextResponse, error) {
	resp, err := c.generate(ctx, c.model(req.System), req.Messages)
	if err != nil {
		return nil, err
	}

	return &TextResponse{
		Text:  responseText(resp),
		Usage: usageOf(resp),
		Model: c.modelName,
	}, nil
}

// generate sends the last message with the earlier ones as chat history.
func (c *VertexClient) generate(ctx context.Context, m *genai.GenerativeModel, msgs []Message) (*genai.GenerateContentResponse, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("no messages for Gemini model")
	}

	last := msgs[len(msgs)-1]
	var (
		resp *genai.GenerateContentResponse
		err  error
	)
	if len(msgs) == 1 {
		resp, err = m.GenerateContent(ctx, toGenaiParts(last.Parts)...)
	} else {
		cs := m.StartChat()
		cs.History = toGenaiContents(msgs[:len(msgs)-1])
		resp, err = cs.SendMessage(ctx, toGenaiParts(last.Parts)...)
	}
	if err != nil {
		return nil, fmt.Errorf("Gemini model API call failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini model")
	}
	return resp, nil
}

func toGenaiParts(parts []Part) []genai.Part {
	out := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.IsData() {
			out = append(out, genai.Blob{MIMEType: p.MIMEType, Data: p.Data})
			continue
		}
		out = append(out, genai.Text(p.Text))
	}
	return out
}

func toGenaiContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{Role: role, Parts: toGenaiParts(m.Parts)})
	}
	return out
}

func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}

	out := &genai.Schema{Description: s.Description}
	switch s.Type {
	case TypeObject:
		out.Type = genai.TypeObject
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = toGenaiSchema(p)
		}
		out.Required = append([]string{}, s.Order...)
	case TypeArray:
		out.Type = genai.TypeArray
		out.Items = toGenaiSchema(s.Items)
	case TypeNumber:
		out.Type = genai.TypeNumber
	case TypeBoolean:
		out.Type = genai.TypeBoolean
	default:
		out.Type = genai.TypeString
	}
	return out
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

func usageOf(resp *genai.GenerateContentResponse) models.TokenUsage {
	if resp.UsageMetadata == nil {
		return models.TokenUsage{}
	}
	return models.TokenUsage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}
