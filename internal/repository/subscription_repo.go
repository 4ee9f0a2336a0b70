package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"simple-gpt/internal/domain"
)

type SubscriptionRepository interface {
	GetActiveByUser(ctx context.Context, userID string) (domain.Subscription, error)
	Upsert(ctx context.Context, sub domain.Subscription) error
}

type PgSubscriptionRepository struct {
	pool *pgxpool.Pool
}

func NewPgSubscriptionRepository(pool *pgxpool.Pool) *PgSubscriptionRepository {
	return &PgSubscriptionRepository{pool: pool}
}

// GetActiveByUser devuelve la suscripción activa del usuario o ErrNotFound.
// Los límites se guardan como centinelas (-1 = sin tope) y se normalizan aquí.
func (r *PgSubscriptionRepository) GetActiveByUser(ctx context.Context, userID string) (domain.Subscription, error) {
	const query = `
		SELECT id, user_id, plan, status, daily_message_limit, history_days,
		       cancel_at_period_end, current_period_end,
		       COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, ''),
		       created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1 AND status = $2
	`
	var (
		sub          domain.Subscription
		messageLimit int
		historyDays  int
	)
	err := r.pool.QueryRow(ctx, query, userID, domain.SubscriptionStatusActive).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Plan,
		&sub.Status,
		&messageLimit,
		&historyDays,
		&sub.CancelAtPeriodEnd,
		&sub.CurrentPeriodEnd,
		&sub.StripeCustomerID,
		&sub.StripeSubscriptionID,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Subscription{}, ErrNotFound
	}
	if err != nil {
		return domain.Subscription{}, err
	}
	sub.DailyMessageLimit = domain.ParseLimit(messageLimit)
	sub.HistoryDays = domain.ParseLimit(historyDays)
	return sub, nil
}

func (r *PgSubscriptionRepository) Upsert(ctx context.Context, sub domain.Subscription) error {
	const query = `
		INSERT INTO subscriptions (id, user_id, plan, status, daily_message_limit,
		                           history_days, cancel_at_period_end, current_period_end,
		                           stripe_customer_id, stripe_subscription_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE
		SET plan = EXCLUDED.plan,
		    status = EXCLUDED.status,
		    daily_message_limit = EXCLUDED.daily_message_limit,
		    history_days = EXCLUDED.history_days,
		    cancel_at_period_end = EXCLUDED.cancel_at_period_end,
		    current_period_end = EXCLUDED.current_period_end,
		    stripe_customer_id = EXCLUDED.stripe_customer_id,
		    stripe_subscription_id = EXCLUDED.stripe_subscription_id,
		    updated_at = now()
	`
	id := sub.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, query,
		id,
		sub.UserID,
		sub.Plan,
		sub.Status,
		sub.DailyMessageLimit.Sentinel(),
		sub.HistoryDays.Sentinel(),
		sub.CancelAtPeriodEnd,
		sub.CurrentPeriodEnd,
		nullIfEmpty(sub.StripeCustomerID),
		nullIfEmpty(sub.StripeSubscriptionID),
	)
	return err
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
