package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/BerylCAtieno/invoice-chat-api/internal/models"
	"github.com/jmoiron/sqlx"
)

type ChatRepository interface {
	Create(ctx context.Context, chat *models.Chat) error
	GetByID(ctx context.Context, id string) (*models.Chat, error)
	ListByUser(ctx context.Context, userID string) ([]models.Chat, error)
	Delete(ctx context.Context, id string) error
	SaveMessage(ctx context.Context, msg *models.ChatMessage) error
	ListMessages(ctx context.Context, chatID string) ([]models.ChatMessage, error)
}

type chatRow struct {
	ID         string `db:"id"`
	UserID     string `db:"user_id"`
	Title      string `db:"title"`
	Visibility string `db:"visibility"`
	CreatedAt  int64  `db:"created_at"`
}

type messageRow struct {
	ID        string `db:"id"`
	ChatID    string `db:"chat_id"`
	Role      string `db:"role"`
	Content   string `db:"content"`
	CreatedAt int64  `db:"created_at"`
}

type chatRepository struct {
	db *sqlx.DB
}

func NewChatRepository(db *sqlx.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Create(ctx context.Context, chat *models.Chat) error {
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}
	if chat.Visibility == "" {
		chat.Visibility = "private"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chats (id, user_id, title, visibility, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, chat.ID, chat.UserID, chat.Title, chat.Visibility, toMillis(chat.CreatedAt))
	return err
}

func (r *chatRepository) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	var row chatRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM chats WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	chat := row.toModel()
	return &chat, nil
}

func (r chatRow) toModel() models.Chat {
	return models.Chat{
		ID:         r.ID,
		UserID:     r.UserID,
		Title:      r.Title,
		Visibility: r.Visibility,
		CreatedAt:  fromMillis(r.CreatedAt),
	}
}

func (r *chatRepository) ListByUser(ctx context.Context, userID string) ([]models.Chat, error) {
	var rows []chatRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM chats WHERE user_id = ? ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}

	chats := make([]models.Chat, 0, len(rows))
	for _, row := range rows {
		chats = append(chats, row.toModel())
	}
	return chats, nil
}

// Delete removes the chat together with its messages and invoices.
func (r *chatRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *chatRepository) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.ChatID, msg.Role, msg.Content, toMillis(msg.CreatedAt))
	return err
}

func (r *chatRepository) ListMessages(ctx context.Context, chatID string) ([]models.ChatMessage, error) {
	var rows []messageRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM messages WHERE chat_id = ? ORDER BY created_at, rowid
	`, chatID)
	if err != nil {
		return nil, err
	}

	msgs := make([]models.ChatMessage, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, models.ChatMessage{
			ID:        row.ID,
			ChatID:    row.ChatID,
			Role:      row.Role,
			Content:   row.Content,
			CreatedAt: fromMillis(row.CreatedAt),
		})
	}
	return msgs, nil
}
