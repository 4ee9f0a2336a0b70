package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"simple-gpt/internal/domain"
	"simple-gpt/internal/repository"
)

type mockConversationRepo struct {
	conversations []domain.Conversation
	conv          domain.ConversationWithMessages
	err           error

	createdConv  domain.Conversation
	createdMsgs  []domain.Message
	appendedMsgs []domain.Message
	appendCalls  int
	renamedTitle string
	deletedID    string
	prunedBefore time.Time
}

func (m *mockConversationRepo) ListByOwner(context.Context, string) ([]domain.Conversation, error) {
	return m.conversations, m.err
}

func (m *mockConversationRepo) GetByID(context.Context, string, string) (domain.ConversationWithMessages, error) {
	return m.conv, m.err
}

func (m *mockConversationRepo) CreateWithMessages(_ context.Context, conv domain.Conversation, messages []domain.Message) error {
	if m.err != nil {
		return m.err
	}
	m.createdConv = conv
	m.createdMsgs = messages
	return nil
}

func (m *mockConversationRepo) AppendMessages(_ context.Context, _, _ string, messages []domain.Message) error {
	m.appendCalls++
	if m.err != nil {
		return m.err
	}
	m.appendedMsgs = messages
	return nil
}

func (m *mockConversationRepo) Rename(_ context.Context, _, _ string, title string) error {
	if m.err != nil {
		return m.err
	}
	m.renamedTitle = title
	return nil
}

func (m *mockConversationRepo) Delete(_ context.Context, id, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.deletedID = id
	return nil
}

func (m *mockConversationRepo) DeleteOlderThan(_ context.Context, _ string, cutoff time.Time) (int64, error) {
	m.prunedBefore = cutoff
	return 0, m.err
}

func TestGatewayCreateDerivesTitle(t *testing.T) {
	repo := &mockConversationRepo{}
	gateway := NewConversationGateway(zap.NewNop(), repo)

	messages := []domain.Message{
		{Role: domain.RoleUser, Content: "what is gravity?"},
		{Role: domain.RoleAssistant, Content: "A fundamental force."},
	}
	conv, err := gateway.CreateWithMessages(context.Background(), "u1", "", messages)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conv.Title != "what is gravity?" {
		t.Fatalf("expected derived title, got %q", conv.Title)
	}
	if repo.createdConv.Title != conv.Title {
		t.Fatalf("repo received a different title: %q", repo.createdConv.Title)
	}
	if conv.LastMessage != "A fundamental force." {
		t.Fatalf("expected assistant preview, got %q", conv.LastMessage)
	}
}

func TestGatewayCreatePreviewFallsBackToUser(t *testing.T) {
	repo := &mockConversationRepo{}
	gateway := NewConversationGateway(zap.NewNop(), repo)

	messages := []domain.Message{
		{Role: domain.RoleUser, Content: "primera"},
		{Role: domain.RoleUser, Content: "segunda"},
	}
	conv, err := gateway.CreateWithMessages(context.Background(), "u1", "", messages)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Sin respuesta del asistente, el preview usa el último mensaje del usuario.
	if conv.LastMessage != "segunda" {
		t.Fatalf("expected user fallback preview, got %q", conv.LastMessage)
	}
}

func TestGatewayCreateKeepsExplicitTitle(t *testing.T) {
	repo := &mockConversationRepo{}
	gateway := NewConversationGateway(zap.NewNop(), repo)

	messages := []domain.Message{{Role: domain.RoleUser, Content: "what is gravity?"}}
	conv, err := gateway.CreateWithMessages(context.Background(), "u1", "Physics notes", messages)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conv.Title != "Physics notes" {
		t.Fatalf("explicit title must survive, got %q", conv.Title)
	}
}

func TestGatewayCreateAssignsCanonicalIDs(t *testing.T) {
	repo := &mockConversationRepo{}
	gateway := NewConversationGateway(zap.NewNop(), repo)

	messages := []domain.Message{
		{ID: "local-1", Role: domain.RoleUser, Content: "hola"},
		{ID: "local-2", Role: domain.RoleAssistant, Content: "hola!"},
	}
	if _, err := gateway.CreateWithMessages(context.Background(), "u1", "", messages); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(repo.createdMsgs) != 2 {
		t.Fatalf("expected 2 prepared messages, got %d", len(repo.createdMsgs))
	}
	for _, m := range repo.createdMsgs {
		if _, err := uuid.Parse(m.ID); err != nil {
			t.Fatalf("expected uuid id, got %q", m.ID)
		}
		if !m.Persisted {
			t.Fatalf("prepared message must be marked persisted")
		}
		if m.ConversationID != repo.createdConv.ID {
			t.Fatalf("message not bound to the new conversation")
		}
	}
	if !repo.createdMsgs[0].CreatedAt.Before(repo.createdMsgs[1].CreatedAt) {
		t.Fatalf("prepared timestamps must preserve arrival order")
	}
}

func TestGatewayAppendSkipsPersistedMessages(t *testing.T) {
	repo := &mockConversationRepo{}
	gateway := NewConversationGateway(zap.NewNop(), repo)

	messages := []domain.Message{
		{ID: uuid.NewString(), Role: domain.RoleUser, Content: "ya guardado"},
		{ID: "m-flag", Role: domain.RoleAssistant, Content: "tambien", Persisted: true},
		{ID: "local-99", Role: domain.RoleUser, Content: "nuevo"},
	}
	inserted, err := gateway.Append(context.Background(), "c1", "u1", messages)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(inserted) != 1 || inserted[0].Content != "nuevo" {
		t.Fatalf("expected only the fresh message, got %+v", inserted)
	}
	if len(repo.appendedMsgs) != 1 {
		t.Fatalf("repo received %d messages, want 1", len(repo.appendedMsgs))
	}
}

func TestGatewayAppendAllPersistedIsNoop(t *testing.T) {
	repo := &mockConversationRepo{}
	gateway := NewConversationGateway(zap.NewNop(), repo)

	messages := []domain.Message{
		{ID: uuid.NewString(), Role: domain.RoleUser, Content: "uno"},
		{ID: uuid.NewString(), Role: domain.RoleAssistant, Content: "dos"},
	}
	inserted, err := gateway.Append(context.Background(), "c1", "u1", messages)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if inserted != nil {
		t.Fatalf("expected nil inserted, got %+v", inserted)
	}
	if repo.appendCalls != 0 {
		t.Fatalf("retry with persisted messages must not hit the store")
	}
}

func TestGatewayAppendRejectsInvalidRole(t *testing.T) {
	gateway := NewConversationGateway(zap.NewNop(), &mockConversationRepo{})
	_, err := gateway.Append(context.Background(), "c1", "u1", []domain.Message{
		{ID: "local-1", Role: "moderator", Content: "x"},
	})
	if !errors.Is(err, ErrGatewayInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestGatewayRenameValidation(t *testing.T) {
	gateway := NewConversationGateway(zap.NewNop(), &mockConversationRepo{})
	if err := gateway.Rename(context.Background(), "c1", "u1", "   "); !errors.Is(err, ErrGatewayInvalidInput) {
		t.Fatalf("expected invalid input for blank title, got %v", err)
	}
	if err := gateway.Rename(context.Background(), "", "u1", "ok"); !errors.Is(err, ErrGatewayInvalidInput) {
		t.Fatalf("expected invalid input for missing id, got %v", err)
	}
}

func TestGatewayNotFoundPassthrough(t *testing.T) {
	repo := &mockConversationRepo{err: repository.ErrNotFound}
	gateway := NewConversationGateway(zap.NewNop(), repo)

	if _, err := gateway.Get(context.Background(), "c1", "u1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := gateway.Delete(context.Background(), "c1", "u1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGatewayListEmptyOwner(t *testing.T) {
	gateway := NewConversationGateway(zap.NewNop(), &mockConversationRepo{})
	conversations, err := gateway.List(context.Background(), "   ")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(conversations) != 0 {
		t.Fatalf("anonymous owner has no conversations, got %d", len(conversations))
	}
}
