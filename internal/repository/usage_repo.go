package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"simple-gpt/internal/domain"
)

type UsageRepository interface {
	GetOrCreate(ctx context.Context, userID, date string) (domain.DailyUsage, error)
	Increment(ctx context.Context, userID, date string) (int, error)
}

type PgUsageRepository struct {
	pool *pgxpool.Pool
}

func NewPgUsageRepository(pool *pgxpool.Pool) *PgUsageRepository {
	return &PgUsageRepository{pool: pool}
}

// GetOrCreate devuelve la fila (user_id, date), creándola en cero si no existe.
// La columna date es DATE en Postgres; se escanea como time.Time y se vuelve a
// la clave de día en texto con domain.UsageDate.
func (r *PgUsageRepository) GetOrCreate(ctx context.Context, userID, date string) (domain.DailyUsage, error) {
	const query = `
		INSERT INTO user_usage (id, user_id, date, message_count)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (user_id, date) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, date, message_count, created_at, updated_at
	`
	var (
		usage domain.DailyUsage
		day   time.Time
	)
	err := r.pool.QueryRow(ctx, query, uuid.NewString(), userID, date).Scan(
		&usage.ID,
		&usage.UserID,
		&day,
		&usage.MessageCount,
		&usage.CreatedAt,
		&usage.UpdatedAt,
	)
	if err != nil {
		return domain.DailyUsage{}, err
	}
	usage.Date = domain.UsageDate(day)
	return usage, nil
}

// Increment suma uno al contador del día y devuelve el total resultante.
// El upsert hace la operación atómica aunque la fila no exista todavía.
func (r *PgUsageRepository) Increment(ctx context.Context, userID, date string) (int, error) {
	const query = `
		INSERT INTO user_usage (id, user_id, date, message_count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (user_id, date) DO UPDATE
		SET message_count = user_usage.message_count + 1, updated_at = now()
		RETURNING message_count
	`
	var count int
	err := r.pool.QueryRow(ctx, query, uuid.NewString(), userID, date).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
