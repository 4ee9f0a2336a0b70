package domain

import "time"

// DailyUsage es la fila (user_id, date) con el contador de mensajes del día.
type DailyUsage struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Date         string    `json:"date"` // YYYY-MM-DD en UTC
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UsageDate formatea un instante como clave de día para user_usage.
func UsageDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// UsageStatus es la respuesta a "¿puede proceder esta petición?".
// Fallback indica que la cuota se resolvió con un valor conservador porque
// el store no respondió; el request se permite igual (fail open).
type UsageStatus struct {
	MessageCount    int    `json:"messageCount"`
	MessageLimit    Limit  `json:"-"`
	HasReachedLimit bool   `json:"hasReachedLimit"`
	TimeUntilReset  string `json:"timeUntilReset,omitempty"`
	Plan            Plan   `json:"plan,omitempty"`
	Fallback        bool   `json:"fallback,omitempty"`
}
