package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"simple-gpt/internal/domain"
)

// ErrNotFound cubre tanto filas inexistentes como filas de otro dueño;
// el caller nunca puede distinguir los dos casos.
var ErrNotFound = errors.New("not found")

type ConversationRepository interface {
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Conversation, error)
	GetByID(ctx context.Context, id, ownerID string) (domain.ConversationWithMessages, error)
	CreateWithMessages(ctx context.Context, conv domain.Conversation, messages []domain.Message) error
	AppendMessages(ctx context.Context, id, ownerID string, messages []domain.Message) error
	Rename(ctx context.Context, id, ownerID, title string) error
	Delete(ctx context.Context, id, ownerID string) error
	DeleteOlderThan(ctx context.Context, ownerID string, cutoff time.Time) (int64, error)
}

type PgConversationRepository struct {
	pool *pgxpool.Pool
}

func NewPgConversationRepository(pool *pgxpool.Pool) *PgConversationRepository {
	return &PgConversationRepository{pool: pool}
}

// ListByOwner devuelve las conversaciones del usuario ordenadas por
// updated_at descendente, cada una con su preview de último mensaje
// (asistente primero, usuario como fallback).
func (r *PgConversationRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Conversation, error) {
	const query = `
		SELECT c.id, c.user_id, c.title, c.created_at, c.updated_at,
		       COALESCE(a.content, u.content, '') AS last_message
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT content FROM messages
			WHERE conversation_id = c.id AND role = 'assistant'
			ORDER BY created_at DESC LIMIT 1
		) a ON true
		LEFT JOIN LATERAL (
			SELECT content FROM messages
			WHERE conversation_id = c.id AND role = 'user'
			ORDER BY created_at DESC LIMIT 1
		) u ON true
		WHERE c.user_id = $1
		ORDER BY c.updated_at DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		err = rows.Scan(
			&conv.ID,
			&conv.OwnerID,
			&conv.Title,
			&conv.CreatedAt,
			&conv.UpdatedAt,
			&conv.LastMessage,
		)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return conversations, nil
}

func (r *PgConversationRepository) GetByID(ctx context.Context, id, ownerID string) (domain.ConversationWithMessages, error) {
	const convQuery = `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND user_id = $2
	`
	var result domain.ConversationWithMessages
	err := r.pool.QueryRow(ctx, convQuery, id, ownerID).Scan(
		&result.ID,
		&result.OwnerID,
		&result.Title,
		&result.CreatedAt,
		&result.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ConversationWithMessages{}, ErrNotFound
	}
	if err != nil {
		return domain.ConversationWithMessages{}, err
	}

	const msgQuery = `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, msgQuery, id)
	if err != nil {
		return domain.ConversationWithMessages{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var msg domain.Message
		err = rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Role,
			&msg.Content,
			&msg.CreatedAt,
		)
		if err != nil {
			return domain.ConversationWithMessages{}, err
		}
		msg.Persisted = true
		result.Messages = append(result.Messages, msg)
	}

	if err = rows.Err(); err != nil {
		return domain.ConversationWithMessages{}, err
	}

	return result, nil
}

// CreateWithMessages inserta la conversación y su primer intercambio en una
// sola transacción: nunca queda una conversación huérfana sin mensajes.
func (r *PgConversationRepository) CreateWithMessages(ctx context.Context, conv domain.Conversation, messages []domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const convQuery = `
		INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = tx.Exec(ctx, convQuery, conv.ID, conv.OwnerID, conv.Title, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return err
	}

	if err = insertMessages(ctx, tx, conv.ID, messages); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AppendMessages verifica propiedad, inserta los mensajes y actualiza
// updated_at, todo dentro de una transacción.
func (r *PgConversationRepository) AppendMessages(ctx context.Context, id, ownerID string, messages []domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const ownerQuery = `SELECT 1 FROM conversations WHERE id = $1 AND user_id = $2`
	var one int
	err = tx.QueryRow(ctx, ownerQuery, id, ownerID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if err = insertMessages(ctx, tx, id, messages); err != nil {
		return err
	}

	const bumpQuery = `UPDATE conversations SET updated_at = $2 WHERE id = $1`
	if _, err = tx.Exec(ctx, bumpQuery, id, time.Now().UTC()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PgConversationRepository) Rename(ctx context.Context, id, ownerID, title string) error {
	const query = `
		UPDATE conversations
		SET title = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, ownerID, title, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgConversationRepository) Delete(ctx context.Context, id, ownerID string) error {
	// Los mensajes caen por ON DELETE CASCADE.
	const query = `DELETE FROM conversations WHERE id = $1 AND user_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgConversationRepository) DeleteOlderThan(ctx context.Context, ownerID string, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM conversations WHERE user_id = $1 AND updated_at < $2`
	tag, err := r.pool.Exec(ctx, query, ownerID, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func insertMessages(ctx context.Context, tx pgx.Tx, conversationID string, messages []domain.Message) error {
	const query = `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, msg := range messages {
		_, err := tx.Exec(ctx, query,
			msg.ID,
			conversationID,
			msg.Role,
			msg.Content,
			msg.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
