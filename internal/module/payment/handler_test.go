package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/draftly/server/internal/shared/config"
)

const testWebhookSecret = "whsec_test_secret"

// fakeEventStore keeps webhook events in memory with the same dedup
// contract as the database-backed repository.
type fakeEventStore struct {
	events map[string]*WebhookEvent
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{events: make(map[string]*WebhookEvent)}
}

func (s *fakeEventStore) RecordEvent(_ context.Context, eventID, eventType, payload string) (*WebhookEvent, bool, error) {
	if prior, ok := s.events[eventID]; ok {
		copied := *prior
		return &copied, false, nil
	}
	e := &WebhookEvent{
		ID:      uuid.New(),
		EventID: eventID,
		Type:    eventType,
		Payload: payload,
	}
	s.events[eventID] = e
	return e, true, nil
}

func (s *fakeEventStore) MarkProcessed(_ context.Context, eventID string, processErr error) error {
	e, ok := s.events[eventID]
	if !ok {
		return nil
	}
	now := time.Now()
	e.Processed = true
	e.ProcessedAt = &now
	e.Error = nil
	if processErr != nil {
		msg := processErr.Error()
		e.Error = &msg
	}
	return nil
}

func newWebhookRouter(store *fakeEventStore, granter *fakeGranter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := NewService(store, granter, newFakeAccounts(), &config.StripeConfig{WebhookSecret: testWebhookSecret}, zap.NewNop())
	h := NewHandler(svc, nil, zap.NewNop())
	r := gin.New()
	h.RegisterWebhookRoutes(r.Group("/webhooks"))
	return r
}

func checkoutPayload(t *testing.T, eventID, clientRef, tier string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":   eventID,
		"type": "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{
				"client_reference_id": clientRef,
				"metadata":            map[string]string{"tier": tier},
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func postWebhook(t *testing.T, r *gin.Engine, payload []byte, secret string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	req.Header.Set("Stripe-Signature", signed.Header)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStripeWebhookEndpoint(t *testing.T) {
	accountID := uuid.New()

	t.Run("invalid signature is rejected without side effects", func(t *testing.T) {
		store := newFakeEventStore()
		granter := newFakeGranter()
		r := newWebhookRouter(store, granter)

		w := postWebhook(t, r, checkoutPayload(t, "evt_sig", accountID.String(), "creator"), "whsec_wrong")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, store.events)
		assert.Empty(t, granter.balances)
	})

	t.Run("successful event is applied and acknowledged", func(t *testing.T) {
		store := newFakeEventStore()
		granter := newFakeGranter()
		r := newWebhookRouter(store, granter)
		payload := checkoutPayload(t, "evt_ok", accountID.String(), "creator")

		w := postWebhook(t, r, payload, testWebhookSecret)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 500, granter.balances[accountID])

		stored := store.events["evt_ok"]
		require.NotNil(t, stored)
		assert.True(t, stored.Processed)
		assert.Nil(t, stored.Error)
	})

	t.Run("redelivery after transient failure is reprocessed", func(t *testing.T) {
		store := newFakeEventStore()
		granter := newFakeGranter()
		granter.failures = 1
		r := newWebhookRouter(store, granter)
		payload := checkoutPayload(t, "evt_retry", accountID.String(), "pro")

		// First delivery hits a ledger outage; the 500 asks Stripe to
		// redeliver.
		w := postWebhook(t, r, payload, testWebhookSecret)
		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Empty(t, granter.balances)
		stored := store.events["evt_retry"]
		require.NotNil(t, stored)
		require.NotNil(t, stored.Error)

		// The redelivery must run the credit again, not short-circuit on
		// the dedup row.
		w = postWebhook(t, r, payload, testWebhookSecret)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 1000, granter.balances[accountID])
		stored = store.events["evt_retry"]
		assert.True(t, stored.Processed)
		assert.Nil(t, stored.Error)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "processed", resp["status"])
	})

	t.Run("redelivery after success is acknowledged without reapplying", func(t *testing.T) {
		store := newFakeEventStore()
		granter := newFakeGranter()
		r := newWebhookRouter(store, granter)
		payload := checkoutPayload(t, "evt_dup", accountID.String(), "starter")

		w := postWebhook(t, r, payload, testWebhookSecret)
		require.Equal(t, http.StatusOK, w.Code)

		w = postWebhook(t, r, payload, testWebhookSecret)
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, 100, granter.balances[accountID])

		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "already_processed", resp["status"])
	})

	t.Run("unresolved account is acknowledged and dropped", func(t *testing.T) {
		store := newFakeEventStore()
		granter := newFakeGranter()
		r := newWebhookRouter(store, granter)

		w := postWebhook(t, r, checkoutPayload(t, "evt_orphan", "not-a-uuid", "creator"), testWebhookSecret)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, granter.balances)

		stored := store.events["evt_orphan"]
		require.NotNil(t, stored)
		assert.True(t, stored.Processed)
	})
}
