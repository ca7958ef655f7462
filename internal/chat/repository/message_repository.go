package repository

import (
	"context"
	"errors"
	"time"

	"secure_chat_service/internal/chat/domain"
	errprocess "secure_chat_service/pkg/err"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// MessageRepository definition message repo function
type MessageRepository interface {
	Insert(ctx context.Context, m *domain.Message) error
	FindByID(ctx context.Context, id string) (*domain.Message, error)
	UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error
	FindConversation(ctx context.Context, userID, peerID string, limit int) ([]domain.Message, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository create message repo
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

// Insert insert a message
func (r *messageRepository) Insert(ctx context.Context, m *domain.Message) error {
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	query := `INSERT INTO messages (id, sender_id, receiver_id, body, is_encrypted, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.pool.Exec(ctx, query,
		m.ID, m.SenderID, m.ReceiverID, m.Body, m.IsEncrypted, string(m.Status), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return errprocess.Set("insert message failed: " + err.Error())
	}
	return nil
}

// FindByID find message by id
func (r *messageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	query := `SELECT id, sender_id, receiver_id, body, is_encrypted, status, created_at, updated_at
		FROM messages WHERE id = $1`
	var m domain.Message
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.SenderID, &m.ReceiverID, &m.Body, &m.IsEncrypted, &status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errprocess.New(errprocess.KindNotFound, "message not found")
		}
		return nil, errprocess.Set("find message failed: " + err.Error())
	}
	m.Status = domain.MessageStatus(status)
	return &m, nil
}

// UpdateStatus update message delivery status
func (r *messageRepository) UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) error {
	query := `UPDATE messages SET status = $1, updated_at = $2 WHERE id = $3`
	tag, err := r.pool.Exec(ctx, query, string(status), time.Now(), id)
	if err != nil {
		return errprocess.Set("update message status failed: " + err.Error())
	}
	if tag.RowsAffected() == 0 {
		return errprocess.New(errprocess.KindNotFound, "message not found")
	}
	return nil
}

// FindConversation find latest messages between two users
func (r *messageRepository) FindConversation(ctx context.Context, userID, peerID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, sender_id, receiver_id, body, is_encrypted, status, created_at, updated_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at DESC LIMIT $3`
	rows, err := r.pool.Query(ctx, query, userID, peerID, limit)
	if err != nil {
		return nil, errprocess.Set("find conversation failed: " + err.Error())
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		var status string
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Body, &m.IsEncrypted, &status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, errprocess.Set("scan conversation failed: " + err.Error())
		}
		m.Status = domain.MessageStatus(status)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errprocess.Set("read conversation failed: " + err.Error())
	}
	return messages, nil
}
