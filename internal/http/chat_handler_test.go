package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"simple-gpt/internal/domain"
	"simple-gpt/internal/llm"
	"simple-gpt/internal/repository"
	"simple-gpt/internal/service"
)

type fakeSubscriptionRepo struct {
	sub domain.Subscription
	err error
}

func (f *fakeSubscriptionRepo) GetActiveByUser(context.Context, string) (domain.Subscription, error) {
	return f.sub, f.err
}

func (f *fakeSubscriptionRepo) Upsert(context.Context, domain.Subscription) error {
	return errors.New("not implemented")
}

type fakeUsageRepo struct {
	count    int
	incCalls int
}

func (f *fakeUsageRepo) GetOrCreate(_ context.Context, userID, date string) (domain.DailyUsage, error) {
	return domain.DailyUsage{UserID: userID, Date: date, MessageCount: f.count}, nil
}

func (f *fakeUsageRepo) Increment(context.Context, string, string) (int, error) {
	f.incCalls++
	f.count++
	return f.count, nil
}

func newChatRouter(client llm.Client, tracker *service.UsageTracker, identity domain.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewChatHandler(zap.NewNop(), client, tracker)

	r := gin.New()
	r.POST("/chat", func(c *gin.Context) {
		c.Set(identityKey, identity)
		c.Next()
	}, handler.Chat)
	return r
}

func postChat(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

const chatBody = `{"messages":[{"role":"user","content":"hola"}]}`

func TestChat_Success(t *testing.T) {
	usage := &fakeUsageRepo{}
	tracker := service.NewUsageTracker(zap.NewNop(),
		&fakeSubscriptionRepo{sub: domain.FreeSubscription("u1", domain.DefaultPlanLimits())},
		usage, nil, nil, domain.LimitOf(1))
	client := &llm.MockClient{Response: "hola!"}
	r := newChatRouter(client, tracker, domain.Identity{UserID: "u1"})

	rec := postChat(r, chatBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got struct {
		Reply domain.Message `json:"reply"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Reply.Role != domain.RoleAssistant || got.Reply.Content != "hola!" {
		t.Fatalf("unexpected reply: %+v", got.Reply)
	}
	if usage.incCalls != 1 {
		t.Fatalf("successful chat must consume quota, inc=%d", usage.incCalls)
	}
	if client.LastSys != llm.SystemPrompt {
		t.Fatalf("expected the service system prompt")
	}
}

func TestChat_AuthenticatedAtLimit(t *testing.T) {
	usage := &fakeUsageRepo{count: 5}
	tracker := service.NewUsageTracker(zap.NewNop(),
		&fakeSubscriptionRepo{sub: domain.FreeSubscription("u1", domain.DefaultPlanLimits())},
		usage, nil, nil, domain.LimitOf(1))
	client := &llm.MockClient{Response: "nunca"}
	r := newChatRouter(client, tracker, domain.Identity{UserID: "u1"})

	rec := postChat(r, chatBody)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", rec.Code, rec.Body.String())
	}
	if client.Calls != 0 {
		t.Fatalf("blocked chat must not call the model")
	}

	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["error"] != "daily limit reached" {
		t.Fatalf("unexpected error payload: %v", got)
	}
	if got["timeUntilReset"] == "" {
		t.Fatalf("429 must carry the reset countdown")
	}
}

func TestChat_AnonymousTrialExhausted(t *testing.T) {
	anon := service.NewMemoryAnonymousUsage()
	anon.Increment("client-1")
	tracker := service.NewUsageTracker(zap.NewNop(), &fakeSubscriptionRepo{err: repository.ErrNotFound}, &fakeUsageRepo{}, anon, nil, domain.LimitOf(1))
	client := &llm.MockClient{Response: "nunca"}
	r := newChatRouter(client, tracker, domain.Identity{AnonymousID: "client-1"})

	rec := postChat(r, chatBody)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if client.Calls != 0 {
		t.Fatalf("blocked chat must not call the model")
	}

	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["error"] != "sign-up required" {
		t.Fatalf("unexpected error payload: %v", got)
	}
}

func TestChat_AnonymousFirstQuestionAllowed(t *testing.T) {
	tracker := service.NewUsageTracker(zap.NewNop(), &fakeSubscriptionRepo{err: repository.ErrNotFound}, &fakeUsageRepo{}, service.NewMemoryAnonymousUsage(), nil, domain.LimitOf(1))
	client := &llm.MockClient{Response: "hola!"}
	r := newChatRouter(client, tracker, domain.Identity{AnonymousID: "client-1"})

	rec := postChat(r, chatBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for first anonymous question, got %d: %s", rec.Code, rec.Body.String())
	}
	if client.Calls != 1 {
		t.Fatalf("expected one model call, got %d", client.Calls)
	}
}

func TestChat_AnonymousWithoutClientIDBlocked(t *testing.T) {
	tracker := service.NewUsageTracker(zap.NewNop(), &fakeSubscriptionRepo{err: repository.ErrNotFound}, &fakeUsageRepo{}, service.NewMemoryAnonymousUsage(), nil, domain.LimitOf(1))
	client := &llm.MockClient{Response: "nunca"}
	// Sin Authorization ni X-Anonymous-Id: identidad anónima vacía.
	r := newChatRouter(client, tracker, domain.Identity{})

	rec := postChat(r, chatBody)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without a client id, got %d: %s", rec.Code, rec.Body.String())
	}
	if client.Calls != 0 {
		t.Fatalf("ungated request must not reach the model")
	}
}

func TestChat_RejectsEmptyMessages(t *testing.T) {
	tracker := service.NewUsageTracker(zap.NewNop(), &fakeSubscriptionRepo{}, &fakeUsageRepo{}, nil, nil, domain.LimitOf(1))
	r := newChatRouter(&llm.MockClient{}, tracker, domain.Identity{UserID: "u1"})

	rec := postChat(r, `{"messages":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChat_ModelFailure(t *testing.T) {
	usage := &fakeUsageRepo{}
	tracker := service.NewUsageTracker(zap.NewNop(),
		&fakeSubscriptionRepo{sub: domain.FreeSubscription("u1", domain.DefaultPlanLimits())},
		usage, nil, nil, domain.LimitOf(1))
	client := &llm.MockClient{Err: errors.New("upstream 500")}
	r := newChatRouter(client, tracker, domain.Identity{UserID: "u1"})

	rec := postChat(r, chatBody)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if usage.incCalls != 0 {
		t.Fatalf("failed chat must not consume quota")
	}
}
