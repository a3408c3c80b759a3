package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BerylCAtieno/invoice-chat-api/internal/llm"
	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
	"github.com/BerylCAtieno/invoice-chat-api/internal/promptcache"
	"github.com/BerylCAtieno/invoice-chat-api/internal/repository"
	"github.com/BerylCAtieno/invoice-chat-api/internal/utils"
)

const (
	chatSystemPrompt = "You are a helpful assistant for invoice processing. You can help users understand their invoices and answer questions about invoice management."

	titleSystemPrompt = `- you will generate a short title based on the first message a user begins a conversation with
- ensure it is not more than 80 characters long
- the title should be a summary of the user's message
- do not use quotes or colons`

	maxTitleLength = 80
)

// ResponseCache is the subset of the prompt cache used for chat titles.
type ResponseCache interface {
	Lookup(ctx context.Context, key string) ([]byte, bool)
	Store(ctx context.Context, key string, value []byte, tokensSaved int)
}

type ChatService interface {
	CreateChat(ctx context.Context, userID string, chat *models.Chat) (*models.Chat, error)
	ListChats(ctx context.Context, userID string) ([]models.Chat, error)
	GetMessages(ctx context.Context, userID, chatID string) ([]models.ChatMessage, error)
	SendMessage(ctx context.Context, userID, chatID, content string) (*models.ChatMessage, error)
	DeleteChat(ctx context.Context, userID, chatID string) error
}

type chatService struct {
	chats  repository.ChatRepository
	model  llm.Model
	cache  ResponseCache
	logger *utils.Logger
}

func NewChatService(chats repository.ChatRepository, model llm.Model, cache ResponseCache, logger *utils.Logger) ChatService {
	return &chatService{
		chats:  chats,
		model:  model,
		cache:  cache,
		logger: logger,
	}
}

func (s *chatService) CreateChat(ctx context.Context, userID string, chat *models.Chat) (*models.Chat, error) {
	if chat.ID == "" {
		chat.ID = utils.GenerateID()
	}
	chat.UserID = userID
	if strings.TrimSpace(chat.Title) == "" {
		chat.Title = "New chat"
	}

	existing, err := s.chats.GetByID(ctx, chat.ID)
	if err != nil {
		s.logger.Error("Failed to get chat", "error", err, "id", chat.ID)
		return nil, utils.NewInternalError("Failed to retrieve chat")
	}
	if existing != nil {
		return nil, utils.NewBadRequestError("Chat already exists")
	}

	if err := s.chats.Create(ctx, chat); err != nil {
		s.logger.Error("Failed to create chat", "error", err, "id", chat.ID)
		return nil, utils.NewInternalError("Failed to create chat")
	}
	return chat, nil
}

func (s *chatService) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	chats, err := s.chats.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list chats", "error", err, "userId", userID)
		return nil, utils.NewInternalError("Failed to retrieve chats")
	}
	return chats, nil
}

func (s *chatService) ownedChat(ctx context.Context, userID, chatID string) (*models.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		s.logger.Error("Failed to get chat", "error", err, "id", chatID)
		return nil, utils.NewInternalError("Failed to retrieve chat")
	}
	if chat == nil || chat.UserID != userID {
		return nil, utils.NewNotFoundError("Chat not found")
	}
	return chat, nil
}

func (s *chatService) GetMessages(ctx context.Context, userID, chatID string) ([]models.ChatMessage, error) {
	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return nil, err
	}

	msgs, err := s.chats.ListMessages(ctx, chatID)
	if err != nil {
		s.logger.Error("Failed to list messages", "error", err, "chatId", chatID)
		return nil, utils.NewInternalError("Failed to retrieve messages")
	}
	return msgs, nil
}

// SendMessage stores a user turn, asks the model for a reply over the whole
// thread and stores the reply. The chat is created on first use with a
// title generated from the message.
func (s *chatService) SendMessage(ctx context.Context, userID, chatID, content string) (*models.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, utils.NewBadRequestError("No user message found")
	}

	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		s.logger.Error("Failed to get chat", "error", err, "id", chatID)
		return nil, utils.NewInternalError("Failed to retrieve chat")
	}
	if chat != nil && chat.UserID != userID {
		return nil, utils.NewNotFoundError("Chat not found")
	}
	if chat == nil {
		chat = &models.Chat{ID: chatID, UserID: userID, Title: s.generateTitle(ctx, content)}
		if err := s.chats.Create(ctx, chat); err != nil {
			s.logger.Error("Failed to create chat", "error", err, "id", chatID)
			return nil, utils.NewInternalError("Failed to create chat")
		}
	}

	userMsg := &models.ChatMessage{
		ID:        utils.GenerateID(),
		ChatID:    chatID,
		Role:      models.RoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.chats.SaveMessage(ctx, userMsg); err != nil {
		s.logger.Error("Failed to save message", "error", err, "chatId", chatID)
		return nil, utils.NewInternalError("An error occurred while processing your request")
	}

	history, err := s.chats.ListMessages(ctx, chatID)
	if err != nil {
		s.logger.Error("Failed to list messages", "error", err, "chatId", chatID)
		return nil, utils.NewInternalError("Failed to retrieve messages")
	}

	resp, err := s.model.GenerateText(ctx, &llm.TextRequest{
		System:   chatSystemPrompt,
		Messages: toModelMessages(history),
	})
	if err != nil {
		s.logger.Error("Chat completion failed", "error", err, "chatId", chatID)
		return nil, utils.NewInternalError("Oops, an error occurred!")
	}

	reply := &models.ChatMessage{
		ID:        utils.GenerateID(),
		ChatID:    chatID,
		Role:      models.RoleAssistant,
		Content:   resp.Text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.chats.SaveMessage(ctx, reply); err != nil {
		s.logger.Error("Failed to save reply", "error", err, "chatId", chatID)
	}
	return reply, nil
}

func toModelMessages(history []models.ChatMessage) []llm.Message {
	msgs := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == models.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Parts: []llm.Part{llm.TextPart(m.Content)}})
	}
	return msgs
}

// generateTitle summarizes the first message of a chat, falling back to a
// truncated copy of the message when the model is unavailable.
func (s *chatService) generateTitle(ctx context.Context, content string) string {
	key, err := promptcache.Fingerprint(promptcache.PrefixTitle, struct {
		Model   string `json:"model"`
		Content string `json:"content"`
	}{s.model.ModelID(), content})
	if err == nil {
		if cached, ok := s.cache.Lookup(ctx, key); ok {
			return string(cached)
		}
	}

	resp, err := s.model.GenerateText(ctx, &llm.TextRequest{
		System:   titleSystemPrompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Parts: []llm.Part{llm.TextPart(content)}}},
	})
	if err != nil {
		s.logger.Warn("Title generation failed", "error", err)
		return truncate(content, maxTitleLength)
	}

	title := truncate(strings.TrimSpace(resp.Text), maxTitleLength)
	if title == "" {
		return truncate(content, maxTitleLength)
	}
	if key != "" {
		s.cache.Store(ctx, key, []byte(title), resp.Usage.TotalTokens)
	}
	return title
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func (s *chatService) DeleteChat(ctx context.Context, userID, chatID string) error {
	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return err
	}

	if err := s.chats.Delete(ctx, chatID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.NewNotFoundError("Chat not found")
		}
		s.logger.Error("Failed to delete chat", "error", err, "id", chatID)
		return utils.NewInternalError("Failed to delete chat")
	}
	return nil
}
