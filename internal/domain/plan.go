package domain

// Plan es el nivel de suscripción de un usuario.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPro     Plan = "pro"
	PlanPremium Plan = "premium"
)

// Limit es la única representación de una cuota en todo el servicio.
// El valor negativo centinela (-1) solo existe en el borde (DB y JSON);
// internamente siempre se usa este tipo.
type Limit struct {
	value     int
	unlimited bool
}

// LimitOf construye un límite finito de n unidades.
func LimitOf(n int) Limit {
	if n < 0 {
		return Unlimited()
	}
	return Limit{value: n}
}

// Unlimited construye un límite sin tope.
func Unlimited() Limit {
	return Limit{unlimited: true}
}

// ParseLimit interpreta el centinela almacenado: negativo significa sin tope.
func ParseLimit(sentinel int) Limit {
	if sentinel < 0 {
		return Unlimited()
	}
	return Limit{value: sentinel}
}

// IsUnlimited reporta si el límite no tiene tope.
func (l Limit) IsUnlimited() bool { return l.unlimited }

// Value devuelve el tope finito; no tiene sentido si IsUnlimited.
func (l Limit) Value() int { return l.value }

// Reached reporta si count agotó la cuota. Siempre false sin tope.
func (l Limit) Reached(count int) bool {
	if l.unlimited {
		return false
	}
	return count >= l.value
}

// Remaining devuelve cuántas unidades quedan; 0 como mínimo.
func (l Limit) Remaining(count int) int {
	if l.unlimited || count >= l.value {
		if l.unlimited {
			return -1
		}
		return 0
	}
	return l.value - count
}

// Sentinel serializa el límite al formato de borde: -1 para sin tope.
func (l Limit) Sentinel() int {
	if l.unlimited {
		return -1
	}
	return l.value
}

// PlanQuota agrupa los límites efectivos de un plan.
type PlanQuota struct {
	DailyMessages Limit
	HistoryDays   Limit
}

// PlanLimits es la tabla configurable plan -> cuotas.
type PlanLimits map[Plan]PlanQuota

// DefaultPlanLimits devuelve la tabla de cuotas por defecto.
func DefaultPlanLimits() PlanLimits {
	return PlanLimits{
		PlanFree:    {DailyMessages: LimitOf(5), HistoryDays: LimitOf(7)},
		PlanPro:     {DailyMessages: Unlimited(), HistoryDays: LimitOf(30)},
		PlanPremium: {DailyMessages: Unlimited(), HistoryDays: Unlimited()},
	}
}

// Quota devuelve las cuotas del plan, con fallback al plan free.
func (p PlanLimits) Quota(plan Plan) PlanQuota {
	if q, ok := p[plan]; ok {
		return q
	}
	return p[PlanFree]
}
