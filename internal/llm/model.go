// Package llm is the generative-model boundary. Backends turn a provider
// neutral request (system prompt, text and image parts, optional JSON
// schema) into a provider call and report token usage.
package llm

import (
	"context"
	"encoding/json"

	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Part is either text or inline binary data such as a page image.
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

func TextPart(text string) Part {
	return Part{Text: text}
}

func DataPart(mimeType string, data []byte) Part {
	return Part{MIMEType: mimeType, Data: data}
}

func (p Part) IsData() bool {
	return p.Data != nil
}

type Message struct {
	Role  string
	Parts []Part
}

// ObjectRequest asks the model for a single JSON value conforming to Schema.
type ObjectRequest struct {
	Name     string
	Schema   *Schema
	System   string
	Messages []Message
}

type ObjectResponse struct {
	Object json.RawMessage
	Usage  models.TokenUsage
	Model  string
}

type TextRequest struct {
	System   string
	Messages []Message
}

type TextResponse struct {
	Text  string
	Usage models.TokenUsage
	Model string
}

type Model interface {
	GenerateObject(ctx context.Context, req *ObjectRequest) (*ObjectResponse, error)
	GenerateText(ctx context.Context, req *TextRequest) (*TextResponse, error)
	// ModelID is the identifier usage is priced under.
	ModelID() string
}
