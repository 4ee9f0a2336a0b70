package domain

import "time"

// Subscription es la fila que mantiene el proveedor de pagos vía webhooks.
// Este servicio solo la lee para calcular cuotas efectivas.
type Subscription struct {
	ID                   string     `json:"id,omitempty"`
	UserID               string     `json:"user_id"`
	Plan                 Plan       `json:"plan"`
	Status               string     `json:"status"`
	DailyMessageLimit    Limit      `json:"-"`
	HistoryDays          Limit      `json:"-"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	StripeCustomerID     string     `json:"-"`
	StripeSubscriptionID string     `json:"-"`
	CreatedAt            time.Time  `json:"created_at,omitempty"`
	UpdatedAt            time.Time  `json:"updated_at,omitempty"`
}

const SubscriptionStatusActive = "active"

// FreeSubscription construye la suscripción implícita de un usuario sin fila.
func FreeSubscription(userID string, limits PlanLimits) Subscription {
	quota := limits.Quota(PlanFree)
	return Subscription{
		UserID:            userID,
		Plan:              PlanFree,
		Status:            SubscriptionStatusActive,
		DailyMessageLimit: quota.DailyMessages,
		HistoryDays:       quota.HistoryDays,
	}
}
