package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/draftly/server/internal/module/ledger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreditGranter grants credits through the ledger. Declared here so the
// user module can be tested without the ledger package.
type CreditGranter interface {
	Credit(ctx context.Context, accountID uuid.UUID, amount int64, idempotencyKey, reason string) error
}

// Service implements account operations.
type Service struct {
	repo        Repository
	granter     CreditGranter
	signupGrant int64
	logger      *zap.Logger
}

// NewService creates a new account service.
func NewService(repo Repository, granter CreditGranter, signupGrant int64, logger *zap.Logger) *Service {
	return &Service{
		repo:        repo,
		granter:     granter,
		signupGrant: signupGrant,
		logger:      logger,
	}
}

// EnsureAccount provisions the account on first authenticated access and
// returns it. The optional signup grant goes through the ledger with a
// per-account idempotency key, so concurrent first requests cannot
// double-grant.
func (s *Service) EnsureAccount(ctx context.Context, id uuid.UUID, email, name string) (*Account, error) {
	account := &Account{
		ID:    id,
		Email: email,
		Name:  name,
		Plan:  PlanFree,
	}

	created, err := s.repo.Ensure(ctx, account)
	if err != nil {
		return nil, err
	}

	if created {
		s.logger.Info("account provisioned",
			zap.String("account_id", id.String()),
			zap.String("email", email),
		)
		if s.signupGrant > 0 && s.granter != nil {
			key := "signup:" + id.String()
			err := s.granter.Credit(ctx, id, s.signupGrant, key, ledger.ReasonSignupGrant)
			// A duplicate grant means a concurrent first request won the
			// race; anything else is a real failure.
			if err != nil && !errors.Is(err, ledger.ErrAlreadyApplied) {
				s.logger.Error("signup grant failed",
					zap.String("account_id", id.String()),
					zap.Error(err),
				)
			}
		}
	}

	return s.repo.Get(ctx, id)
}

// GetAccount returns the account by ID.
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.Get(ctx, id)
}

// UpdateSubscriptionMeta records subscription lifecycle state reported by
// the payment provider. No credit grant happens here.
func (s *Service) UpdateSubscriptionMeta(ctx context.Context, id uuid.UUID, status, tier string, periodEnd *time.Time) error {
	if err := s.repo.UpdateSubscription(ctx, id, status, tier, periodEnd); err != nil {
		return fmt.Errorf("update subscription meta: %w", err)
	}

	if plan := planForTier(tier); plan != "" {
		if err := s.repo.SetPlan(ctx, id, plan); err != nil {
			s.logger.Warn("failed to sync plan from subscription tier",
				zap.String("account_id", id.String()),
				zap.String("tier", tier),
				zap.Error(err),
			)
		}
	}

	return nil
}

// SetStripeCustomerID stores the provider-side customer reference.
func (s *Service) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	return s.repo.SetStripeCustomerID(ctx, id, customerID)
}

// planForTier maps a subscription price tier to a display plan.
// Unknown tiers leave the plan untouched.
func planForTier(tier string) Plan {
	switch {
	case strings.Contains(tier, "pro"):
		return PlanPro
	case strings.Contains(tier, "standard"):
		return PlanStandard
	default:
		return ""
	}
}
