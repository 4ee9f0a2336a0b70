package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"simple-gpt/internal/domain"
	"simple-gpt/internal/repository"
)

// ConversationGateway es la fachada CRUD sobre el store remoto. Asigna ids
// canónicos, deriva títulos y garantiza que un usuario solo toque lo suyo
// (la verificación de propiedad vive en el repositorio, vía ErrNotFound).
type ConversationGateway struct {
	logger *zap.Logger
	repo   repository.ConversationRepository
	now    func() time.Time
}

var (
	ErrGatewayNotConfigured = errors.New("conversation gateway not configured")
	ErrGatewayInvalidInput  = errors.New("conversation invalid input")
)

func NewConversationGateway(logger *zap.Logger, repo repository.ConversationRepository) *ConversationGateway {
	return &ConversationGateway{
		logger: logger,
		repo:   repo,
		now:    time.Now,
	}
}

func (g *ConversationGateway) List(ctx context.Context, ownerID string) ([]domain.Conversation, error) {
	if g == nil || g.repo == nil {
		return nil, ErrGatewayNotConfigured
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return []domain.Conversation{}, nil
	}
	return g.repo.ListByOwner(ctx, ownerID)
}

func (g *ConversationGateway) Get(ctx context.Context, id, ownerID string) (domain.ConversationWithMessages, error) {
	if g == nil || g.repo == nil {
		return domain.ConversationWithMessages{}, ErrGatewayNotConfigured
	}
	if strings.TrimSpace(id) == "" || strings.TrimSpace(ownerID) == "" {
		return domain.ConversationWithMessages{}, ErrGatewayInvalidInput
	}
	return g.repo.GetByID(ctx, id, ownerID)
}

// CreateWithMessages crea la conversación junto con su primer intercambio.
// Si el título es el placeholder se deriva del primer mensaje del usuario.
func (g *ConversationGateway) CreateWithMessages(ctx context.Context, ownerID, title string, messages []domain.Message) (domain.Conversation, error) {
	if g == nil || g.repo == nil {
		return domain.Conversation{}, ErrGatewayNotConfigured
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" || len(messages) == 0 {
		return domain.Conversation{}, ErrGatewayInvalidInput
	}
	for _, m := range messages {
		if !m.Role.Valid() {
			return domain.Conversation{}, ErrGatewayInvalidInput
		}
	}

	if IsPlaceholderTitle(title) {
		title = domain.DefaultConversationTitle
		for _, m := range messages {
			if m.Role == domain.RoleUser {
				title = GenerateTitle(m.Content)
				break
			}
		}
	}

	now := g.now().UTC()
	conv := domain.Conversation{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	prepared := g.prepareMessages(conv.ID, messages)
	if err := g.repo.CreateWithMessages(ctx, conv, prepared); err != nil {
		return domain.Conversation{}, err
	}

	// Mismo criterio que el preview del listado: último mensaje del
	// asistente, con el del usuario como fallback.
	var lastUser string
	for _, m := range prepared {
		switch m.Role {
		case domain.RoleAssistant:
			conv.LastMessage = m.Content
		case domain.RoleUser:
			lastUser = m.Content
		case domain.RoleSystem:
		}
	}
	if conv.LastMessage == "" {
		conv.LastMessage = lastUser
	}
	return conv, nil
}

// Append inserta solo los mensajes que todavía no tienen id canónico del
// store; los ya persistidos se saltan para que los reintentos sean
// idempotentes. Devuelve los mensajes efectivamente insertados.
func (g *ConversationGateway) Append(ctx context.Context, id, ownerID string, messages []domain.Message) ([]domain.Message, error) {
	if g == nil || g.repo == nil {
		return nil, ErrGatewayNotConfigured
	}
	if strings.TrimSpace(id) == "" || strings.TrimSpace(ownerID) == "" {
		return nil, ErrGatewayInvalidInput
	}

	var fresh []domain.Message
	for _, m := range messages {
		if isPersistedMessage(m) {
			continue
		}
		if !m.Role.Valid() {
			return nil, ErrGatewayInvalidInput
		}
		fresh = append(fresh, m)
	}
	if len(fresh) == 0 {
		g.logger.Debug("append skipped, no new messages", zap.String("conversation_id", id))
		return nil, nil
	}

	prepared := g.prepareMessages(id, fresh)
	if err := g.repo.AppendMessages(ctx, id, ownerID, prepared); err != nil {
		return nil, err
	}
	return prepared, nil
}

func (g *ConversationGateway) Rename(ctx context.Context, id, ownerID, title string) error {
	if g == nil || g.repo == nil {
		return ErrGatewayNotConfigured
	}
	title = strings.TrimSpace(title)
	if strings.TrimSpace(id) == "" || strings.TrimSpace(ownerID) == "" || title == "" {
		return ErrGatewayInvalidInput
	}
	return g.repo.Rename(ctx, id, ownerID, title)
}

func (g *ConversationGateway) Delete(ctx context.Context, id, ownerID string) error {
	if g == nil || g.repo == nil {
		return ErrGatewayNotConfigured
	}
	if strings.TrimSpace(id) == "" || strings.TrimSpace(ownerID) == "" {
		return ErrGatewayInvalidInput
	}
	return g.repo.Delete(ctx, id, ownerID)
}

// prepareMessages asigna ids canónicos y timestamps monotónicos preservando
// el orden de llegada.
func (g *ConversationGateway) prepareMessages(conversationID string, messages []domain.Message) []domain.Message {
	now := g.now().UTC()
	prepared := make([]domain.Message, len(messages))
	for i, m := range messages {
		m.ID = uuid.NewString()
		m.ConversationID = conversationID
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		}
		m.Persisted = true
		prepared[i] = m
	}
	return prepared
}

// isPersistedMessage detecta mensajes que ya viven en el store: o el flag
// explícito, o un id con forma de uuid (los ids locales del cliente son
// strings basados en timestamp).
func isPersistedMessage(m domain.Message) bool {
	if m.Persisted {
		return true
	}
	if m.ID == "" {
		return false
	}
	_, err := uuid.Parse(m.ID)
	return err == nil
}
