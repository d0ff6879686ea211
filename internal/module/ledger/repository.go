package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for ledger data access. Balance
// mutations rely on the store's atomicity: a single conditional UPDATE
// serializes concurrent debits on the same account row, and the unique
// index on idempotency keys serializes duplicate credits.
type Repository interface {
	GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error)
	Debit(ctx context.Context, accountID uuid.UUID, amount int64, reason string) error
	Credit(ctx context.Context, accountID uuid.UUID, amount int64, idempotencyKey, reason string) error
	ListEntries(ctx context.Context, accountID uuid.UUID, offset, limit int) ([]*Entry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new ledger repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).
		Table("accounts").
		Select("credit_balance").
		Where("id = ?", accountID).
		Take(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// Debit decrements the balance iff it stays non-negative. The guard lives
// in the WHERE clause, so concurrent debits on one account serialize on
// the row and can never drive the balance below zero.
func (r *repository) Debit(ctx context.Context, accountID uuid.UUID, amount int64, reason string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			"UPDATE accounts SET credit_balance = credit_balance - ?, updated_at = ? WHERE id = ? AND credit_balance >= ?",
			amount, time.Now().UTC(), accountID, amount,
		)
		if res.Error != nil {
			return fmt.Errorf("debit balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Table("accounts").Where("id = ?", accountID).Count(&count).Error; err != nil {
				return fmt.Errorf("check account: %w", err)
			}
			if count == 0 {
				return ErrAccountNotFound
			}
			return ErrInsufficientCredits
		}

		entry := &Entry{
			AccountID: accountID,
			Delta:     -amount,
			Reason:    reason,
			AppliedAt: time.Now().UTC(),
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("record debit entry: %w", err)
		}
		return nil
	})
}

// Credit increments the balance at most once per idempotency key. The
// entry insert happens first inside the transaction: a duplicate key
// aborts before the balance is touched.
func (r *repository) Credit(ctx context.Context, accountID uuid.UUID, amount int64, idempotencyKey, reason string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := &Entry{
			AccountID:      accountID,
			Delta:          amount,
			Reason:         reason,
			IdempotencyKey: &idempotencyKey,
			AppliedAt:      time.Now().UTC(),
		}
		if err := tx.Create(entry).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyApplied
			}
			return fmt.Errorf("record credit entry: %w", err)
		}

		res := tx.Exec(
			"UPDATE accounts SET credit_balance = credit_balance + ?, updated_at = ? WHERE id = ?",
			amount, time.Now().UTC(), accountID,
		)
		if res.Error != nil {
			return fmt.Errorf("credit balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAccountNotFound
		}
		return nil
	})
}

func (r *repository) ListEntries(ctx context.Context, accountID uuid.UUID, offset, limit int) ([]*Entry, error) {
	var entries []*Entry
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("applied_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}
