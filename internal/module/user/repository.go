package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for account data access.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*Account, error)
	Ensure(ctx context.Context, account *Account) (created bool, err error)
	UpdateSubscription(ctx context.Context, id uuid.UUID, status, tier string, periodEnd *time.Time) error
	SetPlan(ctx context.Context, id uuid.UUID, plan Plan) error
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new account repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	var account Account
	err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

// Ensure inserts the account if it does not exist yet. Safe under
// concurrent first requests for the same account: the insert is
// do-nothing on conflict and reports whether a row was created.
func (r *repository) Ensure(ctx context.Context, account *Account) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(account)
	if res.Error != nil {
		return false, fmt.Errorf("ensure account: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateSubscription(ctx context.Context, id uuid.UUID, status, tier string, periodEnd *time.Time) error {
	updates := map[string]any{
		"subscription_status": status,
		"subscription_tier":   tier,
	}
	if periodEnd != nil {
		updates["subscription_period_end"] = *periodEnd
	}

	res := r.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update subscription metadata: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *repository) SetPlan(ctx context.Context, id uuid.UUID, plan Plan) error {
	res := r.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ?", id).
		Update("plan", plan)
	if res.Error != nil {
		return fmt.Errorf("set plan: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *repository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	res := r.db.WithContext(ctx).
		Model(&Account{}).
		Where("id = ?", id).
		Update("stripe_customer_id", customerID)
	if res.Error != nil {
		return fmt.Errorf("set stripe customer id: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
