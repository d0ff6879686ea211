package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository stores webhook events for deduplication and audit.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// RecordEvent stores a fresh event. For a duplicate event id it loads
// the stored row instead, so the caller can tell a successfully handled
// redelivery apart from one whose processing failed and must run again.
func (r *Repository) RecordEvent(ctx context.Context, eventID, eventType, payload string) (*WebhookEvent, bool, error) {
	event := &WebhookEvent{
		ID:      uuid.New(),
		EventID: eventID,
		Type:    eventType,
		Payload: payload,
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var prior WebhookEvent
			if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&prior).Error; err != nil {
				return nil, false, fmt.Errorf("load stored event: %w", err)
			}
			return &prior, false, nil
		}
		return nil, false, fmt.Errorf("record event: %w", err)
	}
	return event, true, nil
}

// MarkProcessed records the outcome of processing an event. A success
// clears any error left by an earlier failed attempt.
func (r *Repository) MarkProcessed(ctx context.Context, eventID string, processErr error) error {
	now := time.Now()
	updates := map[string]any{
		"processed":    true,
		"processed_at": &now,
		"error":        nil,
	}
	if processErr != nil {
		msg := processErr.Error()
		updates["error"] = &msg
	}
	err := r.db.WithContext(ctx).Model(&WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}
