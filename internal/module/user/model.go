package user

import (
	"time"

	"github.com/google/uuid"
)

// Plan represents the display plan tier of an account.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanStandard Plan = "standard"
	PlanPro      Plan = "pro"
)

// IsValid checks if the plan is a known tier.
func (p Plan) IsValid() bool {
	switch p {
	case PlanFree, PlanStandard, PlanPro:
		return true
	default:
		return false
	}
}

// Account represents an authenticated end-user identity with a credit
// balance. Accounts are provisioned on first authenticated access; the
// identity itself (token issuance) lives with the external provider.
type Account struct {
	ID    uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Email string    `json:"email" gorm:"uniqueIndex;not null"`
	Name  string    `json:"name"`
	Plan  Plan      `json:"plan" gorm:"not null;default:free"`

	// CreditBalance is mutated only through the ledger's atomic
	// debit/credit statements, never by application-level read-modify-write.
	CreditBalance int64 `json:"credit_balance" gorm:"not null;default:0;check:credit_balance >= 0"`

	// Subscription metadata, written by the payment reconciler.
	SubscriptionStatus    string     `json:"subscription_status,omitempty"`
	SubscriptionTier      string     `json:"subscription_tier,omitempty"`
	SubscriptionPeriodEnd *time.Time `json:"subscription_period_end,omitempty"`
	StripeCustomerID      string     `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (Account) TableName() string {
	return "accounts"
}
