package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"simple-gpt/internal/domain"
	"simple-gpt/internal/repository"
)

type mockSubscriptionRepo struct {
	sub domain.Subscription
	err error
}

func (m *mockSubscriptionRepo) GetActiveByUser(context.Context, string) (domain.Subscription, error) {
	return m.sub, m.err
}

func (m *mockSubscriptionRepo) Upsert(context.Context, domain.Subscription) error {
	return errors.New("not implemented")
}

type mockUsageRepo struct {
	usage    domain.DailyUsage
	getErr   error
	count    int
	incErr   error
	incCalls int
	lastUser string
	lastDate string
}

func (m *mockUsageRepo) GetOrCreate(_ context.Context, userID, date string) (domain.DailyUsage, error) {
	m.lastUser = userID
	m.lastDate = date
	return m.usage, m.getErr
}

func (m *mockUsageRepo) Increment(_ context.Context, userID, date string) (int, error) {
	m.incCalls++
	m.lastUser = userID
	m.lastDate = date
	if m.incErr != nil {
		return 0, m.incErr
	}
	m.count++
	return m.count, nil
}

func freeSub(userID string) domain.Subscription {
	return domain.FreeSubscription(userID, domain.DefaultPlanLimits())
}

func TestUsageTrackerCheck_FreeUnderLimit(t *testing.T) {
	subs := &mockSubscriptionRepo{sub: freeSub("u1")}
	usage := &mockUsageRepo{usage: domain.DailyUsage{UserID: "u1", MessageCount: 4}}
	tracker := NewUsageTracker(zap.NewNop(), subs, usage, nil, nil, domain.LimitOf(1))

	status, err := tracker.Check(context.Background(), domain.Identity{UserID: "u1"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if status.HasReachedLimit {
		t.Fatalf("4 of 5 must be allowed")
	}
	if status.MessageCount != 4 {
		t.Fatalf("expected count 4, got %d", status.MessageCount)
	}
	if status.Plan != domain.PlanFree {
		t.Fatalf("expected free plan, got %q", status.Plan)
	}
	if status.TimeUntilReset == "" {
		t.Fatalf("expected a reset countdown for capped plans")
	}
}

func TestUsageTrackerCheck_FreeAtLimit(t *testing.T) {
	subs := &mockSubscriptionRepo{sub: freeSub("u1")}
	usage := &mockUsageRepo{usage: domain.DailyUsage{UserID: "u1", MessageCount: 5}}
	tracker := NewUsageTracker(zap.NewNop(), subs, usage, nil, nil, domain.LimitOf(1))

	status, err := tracker.Check(context.Background(), domain.Identity{UserID: "u1"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !status.HasReachedLimit {
		t.Fatalf("5 of 5 must be blocked")
	}
}

func TestUsageTrackerCheck_ProUnlimited(t *testing.T) {
	pro := domain.Subscription{
		UserID:            "u1",
		Plan:              domain.PlanPro,
		Status:            domain.SubscriptionStatusActive,
		DailyMessageLimit: domain.Unlimited(),
		HistoryDays:       domain.LimitOf(30),
	}
	subs := &mockSubscriptionRepo{sub: pro}
	usage := &mockUsageRepo{usage: domain.DailyUsage{UserID: "u1", MessageCount: 9999}}
	tracker := NewUsageTracker(zap.NewNop(), subs, usage, nil, nil, domain.LimitOf(1))

	status, err := tracker.Check(context.Background(), domain.Identity{UserID: "u1"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if status.HasReachedLimit {
		t.Fatalf("unlimited plan must never be blocked")
	}
}

func TestUsageTrackerCheck_NoSubscriptionRowIsFree(t *testing.T) {
	subs := &mockSubscriptionRepo{err: repository.ErrNotFound}
	usage := &mockUsageRepo{usage: domain.DailyUsage{UserID: "u1", MessageCount: 5}}
	tracker := NewUsageTracker(zap.NewNop(), subs, usage, nil, nil, domain.LimitOf(1))

	status, err := tracker.Check(context.Background(), domain.Identity{UserID: "u1"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !status.HasReachedLimit {
		t.Fatalf("missing subscription row implies free limits")
	}
	if status.Plan != domain.PlanFree {
		t.Fatalf("expected free plan fallback, got %q", status.Plan)
	}
}

func TestUsageTrackerCheck_StoreFailureFailsOpen(t *testing.T) {
	subs := &mockSubscriptionRepo{sub: freeSub("u1")}
	usage := &mockUsageRepo{getErr: errors.New("db down")}
	tracker := NewUsageTracker(zap.NewNop(), subs, usage, nil, nil, domain.LimitOf(1))

	status, err := tracker.Check(context.Background(), domain.Identity{UserID: "u1"})
	if err != nil {
		t.Fatalf("store failure must not surface as error: %v", err)
	}
	if status.HasReachedLimit {
		t.Fatalf("fail open means the request is allowed")
	}
	if !status.Fallback {
		t.Fatalf("expected Fallback marker on degraded status")
	}
}

func TestUsageTrackerCheck_AnonymousTrial(t *testing.T) {
	anon := NewMemoryAnonymousUsage()
	tracker := NewUsageTracker(zap.NewNop(), &mockSubscriptionRepo{}, &mockUsageRepo{}, anon, nil, domain.LimitOf(1))
	id := domain.Identity{AnonymousID: "client-1"}

	status, err := tracker.Check(context.Background(), id)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if status.HasReachedLimit {
		t.Fatalf("fresh anonymous client must be allowed")
	}

	if _, err := tracker.Increment(context.Background(), id); err != nil {
		t.Fatalf("increment: %v", err)
	}

	status, err = tracker.Check(context.Background(), id)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !status.HasReachedLimit {
		t.Fatalf("anonymous trial is one-shot, second check must block")
	}
	// No hay reset diario para anónimos.
	if status.TimeUntilReset != "" {
		t.Fatalf("anonymous quota has no reset, got %q", status.TimeUntilReset)
	}
}

func TestUsageTrackerCheck_AnonymousWithoutClientIDBlocked(t *testing.T) {
	anon := NewMemoryAnonymousUsage()
	tracker := NewUsageTracker(zap.NewNop(), &mockSubscriptionRepo{}, &mockUsageRepo{}, anon, nil, domain.LimitOf(1))

	for _, clientID := range []string{"", "   "} {
		status, err := tracker.Check(context.Background(), domain.Identity{AnonymousID: clientID})
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if !status.HasReachedLimit {
			t.Fatalf("omitting the client id must not grant an unlimited trial (id=%q)", clientID)
		}
	}

	status, err := tracker.Increment(context.Background(), domain.Identity{})
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if !status.HasReachedLimit {
		t.Fatalf("increment without client id must report the trial as spent")
	}
}

func TestUsageTrackerIncrement_UsesUTCDateKey(t *testing.T) {
	subs := &mockSubscriptionRepo{sub: freeSub("u1")}
	usage := &mockUsageRepo{}
	tracker := NewUsageTracker(zap.NewNop(), subs, usage, nil, nil, domain.LimitOf(1))

	if _, err := tracker.Increment(context.Background(), domain.Identity{UserID: "u1"}); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if usage.lastDate != domain.UsageDate(time.Now()) {
		t.Fatalf("expected UTC date key, got %q", usage.lastDate)
	}
	if usage.incCalls != 1 {
		t.Fatalf("expected one increment, got %d", usage.incCalls)
	}
}

func TestFormatTimeUntilReset(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 minutes"},
		{time.Minute, "1 minute"},
		{45 * time.Minute, "45 minutes"},
		{time.Hour, "1 hour, 0 minutes"},
		{61 * time.Minute, "1 hour, 1 minute"},
		{2*time.Hour + 30*time.Minute, "2 hours, 30 minutes"},
		{-time.Minute, "0 minutes"},
	}
	for _, tc := range cases {
		if got := FormatTimeUntilReset(tc.d); got != tc.want {
			t.Fatalf("FormatTimeUntilReset(%v)=%q want %q", tc.d, got, tc.want)
		}
	}
}
