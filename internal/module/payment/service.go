package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/draftly/server/internal/module/ledger"
	"github.com/draftly/server/internal/shared/config"
)

// CreditGranter applies idempotent credit grants to the ledger.
type CreditGranter interface {
	Credit(ctx context.Context, accountID uuid.UUID, amount int64, idempotencyKey, reason string) error
}

// AccountUpdater records subscription metadata on accounts.
type AccountUpdater interface {
	UpdateSubscriptionMeta(ctx context.Context, id uuid.UUID, status, tier string, periodEnd *time.Time) error
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
}

// EventStore persists webhook events for deduplication and audit.
type EventStore interface {
	RecordEvent(ctx context.Context, eventID, eventType, payload string) (*WebhookEvent, bool, error)
	MarkProcessed(ctx context.Context, eventID string, processErr error) error
}

// Service reconciles payment provider events into the credit ledger and
// creates checkout sessions.
type Service struct {
	repo     EventStore
	credits  CreditGranter
	accounts AccountUpdater
	cfg      *config.StripeConfig
	logger   *zap.Logger
}

// NewService creates a payment service and configures the Stripe client.
func NewService(
	repo EventStore,
	credits CreditGranter,
	accounts AccountUpdater,
	cfg *config.StripeConfig,
	logger *zap.Logger,
) *Service {
	stripe.Key = cfg.SecretKey
	return &Service{
		repo:     repo,
		credits:  credits,
		accounts: accounts,
		cfg:      cfg,
		logger:   logger,
	}
}

// CreateCheckoutSession starts a checkout for one credit pack and returns
// the hosted payment URL. The account id rides along as the client
// reference so the completion webhook can be correlated without session
// state.
func (s *Service) CreateCheckoutSession(ctx context.Context, accountID uuid.UUID, tier string) (string, error) {
	priceCents, ok := tierPriceCents[tier]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, tier)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(accountID.String()),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("usd"),
					UnitAmount: stripe.Int64(priceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Draftly %s credit pack (%d credits)", tier, creditTiers[tier])),
					},
				},
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("tier", tier)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	s.logger.Info("checkout session created",
		zap.Stringer("account_id", accountID),
		zap.String("tier", tier),
		zap.String("session_id", sess.ID),
	)
	return sess.URL, nil
}

// VerifySignature checks the webhook signature and parses the event.
// Stripe sends events at the account's pinned API version, which may
// trail the library's, so the version mismatch check is disabled.
func (s *Service) VerifySignature(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return &event, nil
}

// Apply maps one verified provider event onto the ledger or account
// metadata. It returns ledger.ErrAlreadyApplied for redelivered credits
// and ErrUnresolvedAccount for events that cannot be correlated; both are
// permanent conditions the caller should acknowledge, not retry. Any
// other error is transient.
func (s *Service) Apply(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		return s.applyCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		return s.applySubscriptionChange(ctx, event)
	default:
		s.logger.Debug("ignoring webhook event type", zap.String("type", string(event.Type)))
		return nil
	}
}

func (s *Service) applyCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return fmt.Errorf("%w: malformed checkout session: %v", ErrUnresolvedAccount, err)
	}

	accountID, err := uuid.Parse(sess.ClientReferenceID)
	if err != nil {
		return fmt.Errorf("%w: bad client reference %q", ErrUnresolvedAccount, sess.ClientReferenceID)
	}

	if sess.Customer != nil && sess.Customer.ID != "" {
		if err := s.accounts.SetStripeCustomerID(ctx, accountID, sess.Customer.ID); err != nil {
			s.logger.Warn("failed to record stripe customer id",
				zap.Stringer("account_id", accountID),
				zap.Error(err),
			)
		}
	}

	tier := sess.Metadata["tier"]
	amount := amountForTier(tier)
	if amount == 0 {
		// Data-quality condition, not a failure. Acknowledge the event so
		// the provider stops redelivering it.
		s.logger.Error("checkout completed with unrecognized tier",
			zap.String("event_id", event.ID),
			zap.String("tier", tier),
		)
		return nil
	}

	if err := s.credits.Credit(ctx, accountID, amount, event.ID, ledger.ReasonPurchaseCredit); err != nil {
		return err
	}

	s.logger.Info("purchase credited",
		zap.Stringer("account_id", accountID),
		zap.String("tier", tier),
		zap.Int64("credits", amount),
	)
	return nil
}

func (s *Service) applySubscriptionChange(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("%w: malformed subscription: %v", ErrUnresolvedAccount, err)
	}

	accountID, err := uuid.Parse(sub.Metadata["account_id"])
	if err != nil {
		return fmt.Errorf("%w: subscription %s carries no account id", ErrUnresolvedAccount, sub.ID)
	}

	tier := subscriptionTier(&sub)
	var periodEnd *time.Time
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		periodEnd = &end
	}

	// Lifecycle events only touch account metadata. Renewal periods do
	// not auto-grant credits; purchases are the only credit source.
	return s.accounts.UpdateSubscriptionMeta(ctx, accountID, string(sub.Status), tier, periodEnd)
}

// RecordEvent stores a fresh webhook event for dedup and audit. For an
// event id seen before it reports false along with the stored row.
func (s *Service) RecordEvent(ctx context.Context, eventID, eventType, payload string) (*WebhookEvent, bool, error) {
	return s.repo.RecordEvent(ctx, eventID, eventType, payload)
}

// MarkProcessed records the processing outcome of a stored event.
func (s *Service) MarkProcessed(ctx context.Context, eventID string, processErr error) error {
	return s.repo.MarkProcessed(ctx, eventID, processErr)
}

// subscriptionTier extracts the price tier from the first subscription
// item.
func subscriptionTier(sub *stripe.Subscription) string {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return ""
	}
	price := sub.Items.Data[0].Price
	if price.Nickname != "" {
		return price.Nickname
	}
	return price.ID
}
