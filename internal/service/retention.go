package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"simple-gpt/internal/domain"
	"simple-gpt/internal/repository"
)

// RetentionService poda conversaciones más viejas que la ventana de historia
// del plan del dueño. Planes con historia sin tope no se podan nunca.
type RetentionService struct {
	logger *zap.Logger
	convs  repository.ConversationRepository
	subs   repository.SubscriptionRepository
	limits domain.PlanLimits
	now    func() time.Time
}

var ErrRetentionNotConfigured = errors.New("retention service not configured")

func NewRetentionService(
	logger *zap.Logger,
	convs repository.ConversationRepository,
	subs repository.SubscriptionRepository,
	limits domain.PlanLimits,
) *RetentionService {
	if limits == nil {
		limits = domain.DefaultPlanLimits()
	}
	return &RetentionService{
		logger: logger,
		convs:  convs,
		subs:   subs,
		limits: limits,
		now:    time.Now,
	}
}

// PruneOwner borra las conversaciones del usuario fuera de su ventana de
// historia y devuelve cuántas cayeron.
func (s *RetentionService) PruneOwner(ctx context.Context, ownerID string) (int64, error) {
	if s == nil || s.convs == nil || s.subs == nil {
		return 0, ErrRetentionNotConfigured
	}

	sub, err := s.subs.GetActiveByUser(ctx, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		sub = domain.FreeSubscription(ownerID, s.limits)
	} else if err != nil {
		return 0, err
	}

	if sub.HistoryDays.IsUnlimited() {
		return 0, nil
	}

	cutoff := s.now().UTC().AddDate(0, 0, -sub.HistoryDays.Value())
	pruned, err := s.convs.DeleteOlderThan(ctx, ownerID, cutoff)
	if err != nil {
		return 0, err
	}
	if pruned > 0 {
		s.logger.Info("pruned old conversations",
			zap.String("user_id", ownerID),
			zap.Int64("count", pruned),
		)
	}
	return pruned, nil
}
