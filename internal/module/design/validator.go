package design

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/draftly/server/internal/module/ledger"
)

// BalanceReader reads an account's current credit balance.
type BalanceReader interface {
	GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// ValidatedRequest is the normalized outcome of request validation.
type ValidatedRequest struct {
	AccountID    uuid.UUID
	Prompt       string
	Type         Type
	Size         string
	PixelSize    string
	ReferenceURL string
}

// Validator checks a generation request before any external call is made.
// It has no side effects and does not reserve credit; the debit happens
// only after both generations succeed.
type Validator struct {
	balances BalanceReader
	cost     int64
}

// NewValidator creates a request validator.
func NewValidator(balances BalanceReader, costPerGeneration int64) *Validator {
	if costPerGeneration <= 0 {
		costPerGeneration = 1
	}
	return &Validator{balances: balances, cost: costPerGeneration}
}

// Cost returns the credit cost of one generation.
func (v *Validator) Cost() int64 {
	return v.cost
}

// Validate checks the request shape and the account's balance, failing on
// the first violation.
func (v *Validator) Validate(ctx context.Context, accountID uuid.UUID, req *GenerateRequest) (*ValidatedRequest, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	designType := Type(req.Type)
	if !designType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, req.Type)
	}

	pixelSize, err := resolveSize(req.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSize, err)
	}

	balance, err := v.balances.GetBalance(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("check balance: %w", err)
	}
	if balance < v.cost {
		return nil, ledger.ErrInsufficientCredits
	}

	return &ValidatedRequest{
		AccountID:    accountID,
		Prompt:       prompt,
		Type:         designType,
		Size:         req.Size,
		PixelSize:    pixelSize,
		ReferenceURL: req.ReferenceURL,
	}, nil
}
