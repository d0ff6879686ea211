package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/draftly/server/internal/shared/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service implements the credit ledger. All balance reads and mutations
// go through here; nothing else writes accounts.credit_balance.
type Service struct {
	repo    Repository
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService creates a new ledger service.
func NewService(repo Repository, m *metrics.Metrics, logger *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		metrics: m,
		logger:  logger,
	}
}

// GetBalance returns the account's current credit balance.
func (s *Service) GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return s.repo.GetBalance(ctx, accountID)
}

// TryDebit atomically decrements the balance iff it covers the amount.
// Returns ErrInsufficientCredits otherwise, leaving the balance unchanged.
func (s *Service) TryDebit(ctx context.Context, accountID uuid.UUID, amount int64, reason string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	err := s.repo.Debit(ctx, accountID, amount, reason)
	switch {
	case err == nil:
		s.recordDebit("applied")
		s.logger.Info("credits debited",
			zap.String("account_id", accountID.String()),
			zap.Int64("amount", amount),
			zap.String("reason", reason),
		)
		return nil
	case errors.Is(err, ErrInsufficientCredits):
		s.recordDebit("insufficient")
		return err
	default:
		s.recordDebit("error")
		return fmt.Errorf("debit: %w", err)
	}
}

// Credit atomically increments the balance, at most once per idempotency
// key. Duplicate keys return ErrAlreadyApplied without re-incrementing.
func (s *Service) Credit(ctx context.Context, accountID uuid.UUID, amount int64, idempotencyKey, reason string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if idempotencyKey == "" {
		return fmt.Errorf("credit: idempotency key required")
	}

	err := s.repo.Credit(ctx, accountID, amount, idempotencyKey, reason)
	switch {
	case err == nil:
		if s.metrics != nil {
			s.metrics.RecordCredit(reason)
		}
		s.logger.Info("credits added",
			zap.String("account_id", accountID.String()),
			zap.Int64("amount", amount),
			zap.String("reason", reason),
			zap.String("idempotency_key", idempotencyKey),
		)
		return nil
	case errors.Is(err, ErrAlreadyApplied):
		s.logger.Info("duplicate credit ignored",
			zap.String("account_id", accountID.String()),
			zap.String("idempotency_key", idempotencyKey),
		)
		return err
	default:
		return fmt.Errorf("credit: %w", err)
	}
}

// ListEntries returns the account's entries, newest first.
func (s *Service) ListEntries(ctx context.Context, accountID uuid.UUID, page, pageSize int) ([]*Entry, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.repo.ListEntries(ctx, accountID, (page-1)*pageSize, pageSize)
}

func (s *Service) recordDebit(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordDebit(outcome)
	}
}
