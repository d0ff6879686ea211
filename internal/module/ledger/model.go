package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Entry reasons.
const (
	ReasonGenerationDebit   = "generation_debit"
	ReasonPurchaseCredit    = "purchase_credit"
	ReasonSubscriptionGrant = "subscription_grant"
	ReasonSignupGrant       = "signup_grant"
	ReasonAdminAdjust       = "admin_adjust"
)

// Entry records one applied balance mutation. Credit entries carry the
// idempotency key that guards against duplicate application; debit
// entries are keyed per request and exist for the statement view.
type Entry struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	AccountID uuid.UUID `json:"account_id" gorm:"type:uuid;not null;index"`
	Delta     int64     `json:"delta" gorm:"not null"`
	Reason    string    `json:"reason" gorm:"not null"`

	// IdempotencyKey is unique across all entries that carry one.
	// At most one entry per key is ever applied.
	IdempotencyKey *string `json:"idempotency_key,omitempty" gorm:"uniqueIndex"`

	AppliedAt time.Time `json:"applied_at" gorm:"not null"`
}

// TableName returns the database table name.
func (Entry) TableName() string {
	return "ledger_entries"
}
