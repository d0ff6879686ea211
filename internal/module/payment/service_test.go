package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/draftly/server/internal/module/ledger"
	"github.com/draftly/server/internal/shared/config"
)

// fakeGranter mirrors the ledger's idempotency contract. Setting
// failures makes the next N grants fail as if the backend were down.
type fakeGranter struct {
	balances map[uuid.UUID]int64
	applied  map[string]bool
	failures int
}

func newFakeGranter() *fakeGranter {
	return &fakeGranter{
		balances: make(map[uuid.UUID]int64),
		applied:  make(map[string]bool),
	}
}

func (g *fakeGranter) Credit(_ context.Context, accountID uuid.UUID, amount int64, idempotencyKey, _ string) error {
	if g.failures > 0 {
		g.failures--
		return errors.New("connection refused")
	}
	if g.applied[idempotencyKey] {
		return ledger.ErrAlreadyApplied
	}
	g.applied[idempotencyKey] = true
	g.balances[accountID] += amount
	return nil
}

type subscriptionUpdate struct {
	status    string
	tier      string
	periodEnd *time.Time
}

type fakeAccounts struct {
	subscriptions map[uuid.UUID]subscriptionUpdate
	customerIDs   map[uuid.UUID]string
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		subscriptions: make(map[uuid.UUID]subscriptionUpdate),
		customerIDs:   make(map[uuid.UUID]string),
	}
}

func (a *fakeAccounts) UpdateSubscriptionMeta(_ context.Context, id uuid.UUID, status, tier string, periodEnd *time.Time) error {
	a.subscriptions[id] = subscriptionUpdate{status: status, tier: tier, periodEnd: periodEnd}
	return nil
}

func (a *fakeAccounts) SetStripeCustomerID(_ context.Context, id uuid.UUID, customerID string) error {
	a.customerIDs[id] = customerID
	return nil
}

func newTestService(granter *fakeGranter, accounts *fakeAccounts) *Service {
	return NewService(nil, granter, accounts, &config.StripeConfig{}, zap.NewNop())
}

func checkoutEvent(t *testing.T, eventID, clientRef, tier string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"client_reference_id": clientRef,
		"metadata":            map[string]string{"tier": tier},
	})
	require.NoError(t, err)
	return &stripe.Event{
		ID:   eventID,
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestApplyCheckoutCompleted(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()

	t.Run("redelivered event credits once", func(t *testing.T) {
		granter := newFakeGranter()
		svc := newTestService(granter, newFakeAccounts())
		event := checkoutEvent(t, "evt_1", accountID.String(), "creator")

		require.NoError(t, svc.Apply(ctx, event))
		assert.EqualValues(t, 500, granter.balances[accountID])

		err := svc.Apply(ctx, event)
		require.ErrorIs(t, err, ledger.ErrAlreadyApplied)
		assert.EqualValues(t, 500, granter.balances[accountID])
	})

	t.Run("distinct events accumulate", func(t *testing.T) {
		granter := newFakeGranter()
		svc := newTestService(granter, newFakeAccounts())

		require.NoError(t, svc.Apply(ctx, checkoutEvent(t, "evt_a", accountID.String(), "starter")))
		require.NoError(t, svc.Apply(ctx, checkoutEvent(t, "evt_b", accountID.String(), "studio")))
		assert.EqualValues(t, 3100, granter.balances[accountID])
	})

	t.Run("unknown tier is acknowledged without credit", func(t *testing.T) {
		granter := newFakeGranter()
		svc := newTestService(granter, newFakeAccounts())

		require.NoError(t, svc.Apply(ctx, checkoutEvent(t, "evt_x", accountID.String(), "platinum")))
		assert.EqualValues(t, 0, granter.balances[accountID])
	})

	t.Run("unparseable client reference is unresolved", func(t *testing.T) {
		granter := newFakeGranter()
		svc := newTestService(granter, newFakeAccounts())

		err := svc.Apply(ctx, checkoutEvent(t, "evt_y", "not-a-uuid", "creator"))
		require.ErrorIs(t, err, ErrUnresolvedAccount)
		assert.Empty(t, granter.balances)
	})
}

func TestApplySubscriptionChange(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()
	periodEnd := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	raw, err := json.Marshal(map[string]any{
		"id":                 "sub_123",
		"status":             "active",
		"current_period_end": periodEnd.Unix(),
		"metadata":           map[string]string{"account_id": accountID.String()},
		"items": map[string]any{
			"data": []map[string]any{
				{"price": map[string]any{"id": "price_pro", "nickname": "pro"}},
			},
		},
	})
	require.NoError(t, err)

	t.Run("records metadata without granting credit", func(t *testing.T) {
		granter := newFakeGranter()
		accounts := newFakeAccounts()
		svc := newTestService(granter, accounts)

		err := svc.Apply(ctx, &stripe.Event{
			ID:   "evt_sub",
			Type: "customer.subscription.updated",
			Data: &stripe.EventData{Raw: raw},
		})
		require.NoError(t, err)

		update, ok := accounts.subscriptions[accountID]
		require.True(t, ok)
		assert.Equal(t, "active", update.status)
		assert.Equal(t, "pro", update.tier)
		require.NotNil(t, update.periodEnd)
		assert.Equal(t, periodEnd.Unix(), update.periodEnd.Unix())
		assert.Empty(t, granter.balances)
	})

	t.Run("missing account metadata is unresolved", func(t *testing.T) {
		svc := newTestService(newFakeGranter(), newFakeAccounts())
		orphan, err := json.Marshal(map[string]any{"id": "sub_456", "status": "active"})
		require.NoError(t, err)

		applyErr := svc.Apply(ctx, &stripe.Event{
			ID:   "evt_orphan",
			Type: "customer.subscription.created",
			Data: &stripe.EventData{Raw: orphan},
		})
		require.ErrorIs(t, applyErr, ErrUnresolvedAccount)
	})
}

func TestApplyIgnoresUnhandledTypes(t *testing.T) {
	svc := newTestService(newFakeGranter(), newFakeAccounts())
	err := svc.Apply(context.Background(), &stripe.Event{
		ID:   "evt_other",
		Type: "invoice.paid",
		Data: &stripe.EventData{Raw: []byte(`{}`)},
	})
	require.NoError(t, err)
}

func TestAmountForTier(t *testing.T) {
	assert.EqualValues(t, 100, amountForTier("starter"))
	assert.EqualValues(t, 500, amountForTier("creator"))
	assert.EqualValues(t, 1000, amountForTier("pro"))
	assert.EqualValues(t, 3000, amountForTier("studio"))
	assert.EqualValues(t, 0, amountForTier("platinum"))
}
