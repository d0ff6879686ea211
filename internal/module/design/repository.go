package design

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository handles design persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new design repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create stores a new design.
func (r *Repository) Create(ctx context.Context, d *Design) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("create design: %w", err)
	}
	return nil
}

// Get retrieves a design by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Design, error) {
	var d Design
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDesignNotFound
		}
		return nil, fmt.Errorf("get design: %w", err)
	}
	return &d, nil
}

// ListByAccount returns the account's designs, newest first.
func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID, offset, limit int) ([]*Design, int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&Design{}).Where("account_id = ?", accountID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count designs: %w", err)
	}

	var designs []*Design
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&designs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list designs: %w", err)
	}
	return designs, total, nil
}

// Update applies a metadata edit. The ownership check and the write happen
// on the same loaded row.
func (r *Repository) Update(ctx context.Context, id, callerID uuid.UUID, req *UpdateRequest) (*Design, error) {
	d, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.AccountID != callerID {
		return nil, ErrForbidden
	}

	updates := map[string]any{}
	if req.Prompt != nil {
		updates["prompt"] = *req.Prompt
	}
	if req.Type != nil {
		updates["type"] = *req.Type
	}
	if req.Size != nil {
		updates["size"] = *req.Size
	}
	if len(updates) == 0 {
		return d, nil
	}

	err = r.db.WithContext(ctx).Model(d).
		Where("account_id = ?", callerID).
		Updates(updates).Error
	if err != nil {
		return nil, fmt.Errorf("update design: %w", err)
	}
	return d, nil
}

// Delete removes a design after the ownership check.
func (r *Repository) Delete(ctx context.Context, id, callerID uuid.UUID) error {
	d, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if d.AccountID != callerID {
		return ErrForbidden
	}

	result := r.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", id, callerID).
		Delete(&Design{})
	if result.Error != nil {
		return fmt.Errorf("delete design: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDesignNotFound
	}
	return nil
}
