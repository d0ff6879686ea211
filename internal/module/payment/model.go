package payment

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is a stored payment provider event. The unique index on
// EventID is the first line of defense against duplicate delivery; the
// ledger's idempotency key is the second.
type WebhookEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventID     string    `gorm:"uniqueIndex;not null"`
	Type        string    `gorm:"not null"`
	Payload     string    `gorm:"type:jsonb"`
	Processed   bool      `gorm:"default:false"`
	ProcessedAt *time.Time
	Error       *string
	CreatedAt   time.Time
}

// TableName returns the table name.
func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// creditTiers maps a purchasable credit pack to the credits it grants.
// An unrecognized tier grants nothing; the event is still marked applied
// so the provider stops redelivering it.
var creditTiers = map[string]int64{
	"starter": 100,
	"creator": 500,
	"pro":     1000,
	"studio":  3000,
}

// tierPriceCents maps a credit pack to its checkout price in USD cents.
var tierPriceCents = map[string]int64{
	"starter": 500,
	"creator": 2000,
	"pro":     3500,
	"studio":  9000,
}

// amountForTier returns the credits granted for a tier, or 0 for an
// unknown tier.
func amountForTier(tier string) int64 {
	return creditTiers[tier]
}
