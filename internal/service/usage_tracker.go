package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"simple-gpt/internal/domain"
	"simple-gpt/internal/repository"
)

// UsageTracker responde "¿puede proceder esta petición?" y registra que
// ocurrió. Usuarios autenticados cuentan contra la fila diaria del store;
// anónimos contra su contador de prueba local.
type UsageTracker struct {
	logger    *zap.Logger
	subs      repository.SubscriptionRepository
	usage     repository.UsageRepository
	anon      AnonymousUsage
	limits    domain.PlanLimits
	anonLimit domain.Limit
	now       func() time.Time
}

var ErrUsageTrackerNotConfigured = errors.New("usage tracker not configured")

func NewUsageTracker(
	logger *zap.Logger,
	subs repository.SubscriptionRepository,
	usage repository.UsageRepository,
	anon AnonymousUsage,
	limits domain.PlanLimits,
	anonLimit domain.Limit,
) *UsageTracker {
	if anon == nil {
		anon = NewMemoryAnonymousUsage()
	}
	if limits == nil {
		limits = domain.DefaultPlanLimits()
	}
	return &UsageTracker{
		logger:    logger,
		subs:      subs,
		usage:     usage,
		anon:      anon,
		limits:    limits,
		anonLimit: anonLimit,
		now:       time.Now,
	}
}

// Subscription devuelve la suscripción activa del usuario; sin fila, el
// plan free implícito.
func (t *UsageTracker) Subscription(ctx context.Context, userID string) (domain.Subscription, error) {
	if t == nil || t.subs == nil {
		return domain.Subscription{}, ErrUsageTrackerNotConfigured
	}
	sub, err := t.subs.GetActiveByUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.FreeSubscription(userID, t.limits), nil
	}
	if err != nil {
		return domain.Subscription{}, err
	}
	return sub, nil
}

// Check resuelve el estado de cuota de la identidad sin consumirla.
// Ante fallas del store el request se permite igual (fail open) con un
// límite conservador y Fallback marcado para que la UI lo muestre.
func (t *UsageTracker) Check(ctx context.Context, id domain.Identity) (domain.UsageStatus, error) {
	if t == nil || t.usage == nil {
		return domain.UsageStatus{}, ErrUsageTrackerNotConfigured
	}

	if !id.IsSignedIn() {
		clientID := strings.TrimSpace(id.AnonymousID)
		if clientID == "" {
			// Sin identificador no hay contador que consultar; omitir el
			// header no puede convertirse en prueba ilimitada.
			return t.blockedAnonymousStatus(), nil
		}
		count, err := t.anon.Count(clientID)
		if err != nil {
			t.logger.Warn("anonymous usage check failed, failing open", zap.Error(err))
			return t.fallbackStatus(t.anonLimit), nil
		}
		return domain.UsageStatus{
			MessageCount:    count,
			MessageLimit:    t.anonLimit,
			HasReachedLimit: t.anonLimit.Reached(count),
		}, nil
	}

	sub, err := t.Subscription(ctx, id.UserID)
	if err != nil {
		t.logger.Warn("subscription lookup failed, failing open", zap.Error(err), zap.String("user_id", id.UserID))
		return t.fallbackStatus(t.limits.Quota(domain.PlanFree).DailyMessages), nil
	}

	usage, err := t.usage.GetOrCreate(ctx, id.UserID, domain.UsageDate(t.now()))
	if err != nil {
		t.logger.Warn("usage lookup failed, failing open", zap.Error(err), zap.String("user_id", id.UserID))
		status := t.fallbackStatus(sub.DailyMessageLimit)
		status.Plan = sub.Plan
		return status, nil
	}

	return domain.UsageStatus{
		MessageCount:    usage.MessageCount,
		MessageLimit:    sub.DailyMessageLimit,
		HasReachedLimit: sub.DailyMessageLimit.Reached(usage.MessageCount),
		TimeUntilReset:  t.TimeUntilReset(),
		Plan:            sub.Plan,
	}, nil
}

// Increment registra que la petición ocurrió y devuelve el estado
// reconciliado con el contador autoritativo.
func (t *UsageTracker) Increment(ctx context.Context, id domain.Identity) (domain.UsageStatus, error) {
	if t == nil || t.usage == nil {
		return domain.UsageStatus{}, ErrUsageTrackerNotConfigured
	}

	if !id.IsSignedIn() {
		clientID := strings.TrimSpace(id.AnonymousID)
		if clientID == "" {
			return t.blockedAnonymousStatus(), nil
		}
		count, err := t.anon.Increment(clientID)
		if err != nil {
			return domain.UsageStatus{}, err
		}
		return domain.UsageStatus{
			MessageCount:    count,
			MessageLimit:    t.anonLimit,
			HasReachedLimit: t.anonLimit.Reached(count),
		}, nil
	}

	sub, err := t.Subscription(ctx, id.UserID)
	if err != nil {
		return domain.UsageStatus{}, err
	}

	count, err := t.usage.Increment(ctx, id.UserID, domain.UsageDate(t.now()))
	if err != nil {
		return domain.UsageStatus{}, err
	}

	return domain.UsageStatus{
		MessageCount:    count,
		MessageLimit:    sub.DailyMessageLimit,
		HasReachedLimit: sub.DailyMessageLimit.Reached(count),
		TimeUntilReset:  t.TimeUntilReset(),
		Plan:            sub.Plan,
	}, nil
}

// TimeUntilReset formatea el tiempo restante hasta la medianoche local.
func (t *UsageTracker) TimeUntilReset() string {
	now := t.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return FormatTimeUntilReset(midnight.Sub(now))
}

// blockedAnonymousStatus es la respuesta para anónimos sin client id: se los
// trata como si ya hubieran gastado la prueba.
func (t *UsageTracker) blockedAnonymousStatus() domain.UsageStatus {
	return domain.UsageStatus{
		MessageLimit:    t.anonLimit,
		HasReachedLimit: true,
	}
}

func (t *UsageTracker) fallbackStatus(limit domain.Limit) domain.UsageStatus {
	return domain.UsageStatus{
		MessageLimit:   limit,
		TimeUntilReset: t.TimeUntilReset(),
		Fallback:       true,
	}
}

// FormatTimeUntilReset produce "H hours, M minutes" o "M minutes" si queda
// menos de una hora, con singulares correctos.
func FormatTimeUntilReset(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	var b strings.Builder
	if hours > 0 {
		fmt.Fprintf(&b, "%d hour%s, ", hours, plural(hours))
	}
	fmt.Fprintf(&b, "%d minute%s", minutes, plural(minutes))
	return b.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
