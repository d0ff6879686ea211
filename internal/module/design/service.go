package design

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/draftly/server/internal/module/gateway"
	"github.com/draftly/server/internal/module/ledger"
	"github.com/draftly/server/internal/shared/metrics"
)

// Generation stages, in execution order. Failures are labeled with the
// stage they occurred in.
const (
	stageValidating       = "validating"
	stageImageGenerating  = "image_generating"
	stageVectorGenerating = "vector_generating"
	stageArchiving        = "archiving"
	stagePersisting       = "persisting"
	stageDebiting         = "debiting"
)

// Store is the persistence surface the service depends on.
type Store interface {
	Create(ctx context.Context, d *Design) error
	Get(ctx context.Context, id uuid.UUID) (*Design, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, offset, limit int) ([]*Design, int64, error)
	Update(ctx context.Context, id, callerID uuid.UUID, req *UpdateRequest) (*Design, error)
	Delete(ctx context.Context, id, callerID uuid.UUID) error
}

// CreditDebitor charges credits for a completed generation.
type CreditDebitor interface {
	TryDebit(ctx context.Context, accountID uuid.UUID, amount int64, reason string) error
}

// Archiver copies generated image URLs into durable storage and returns
// the archived URLs. Implementations may be disabled, in which case they
// return the input unchanged.
type Archiver interface {
	Archive(ctx context.Context, accountID, designID uuid.UUID, urls []string) ([]string, error)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service orchestrates design generation and owns the design CRUD surface.
type Service struct {
	validator *Validator
	generator gateway.Generator
	store     Store
	credits   CreditDebitor
	archiver  Archiver
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewService creates a design service. The archiver may be nil when image
// archiving is disabled.
func NewService(
	validator *Validator,
	generator gateway.Generator,
	store Store,
	credits CreditDebitor,
	archiver Archiver,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		validator: validator,
		generator: generator,
		store:     store,
		credits:   credits,
		archiver:  archiver,
		metrics:   m,
		logger:    logger,
	}
}

// Generate runs one generation request through the full pipeline:
// validate, raster batch, vector document, persist, then debit. The debit
// comes strictly last so an account is never charged for a failed or
// partial generation.
func (s *Service) Generate(ctx context.Context, accountID uuid.UUID, req *GenerateRequest) (*Design, error) {
	start := time.Now()

	validated, err := s.validator.Validate(ctx, accountID, req)
	if err != nil {
		s.recordFailure(req.Type, stageValidating, start)
		return nil, err
	}

	images, err := s.generator.GenerateImages(ctx, validated.Prompt, validated.PixelSize)
	if err != nil {
		s.recordFailure(req.Type, stageImageGenerating, start)
		s.logger.Warn("image generation failed",
			zap.Stringer("account_id", accountID),
			zap.Error(err),
		)
		return nil, s.generationError(err)
	}

	imageURLs := make([]string, len(images))
	for i, img := range images {
		imageURLs[i] = img.URL
	}

	svg, err := s.generator.GenerateVector(ctx, validated.Prompt, string(validated.Type), validated.Size, imageURLs)
	if err != nil {
		// The raster batch is discarded; nothing was persisted or charged.
		s.recordFailure(req.Type, stageVectorGenerating, start)
		s.logger.Warn("vector generation failed",
			zap.Stringer("account_id", accountID),
			zap.Error(err),
		)
		return nil, s.generationError(err)
	}

	d := &Design{
		ID:        uuid.New(),
		AccountID: accountID,
		Prompt:    validated.Prompt,
		Type:      validated.Type,
		Size:      validated.Size,
		Images:    imageURLs,
		SVG:       svg,
	}

	// Provider URLs expire; copy the batch into our own bucket. Archiving
	// is best effort and never fails the request.
	if s.archiver != nil {
		archived, err := s.archiver.Archive(ctx, accountID, d.ID, imageURLs)
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordGenerationFailure(stageArchiving)
			}
			s.logger.Warn("image archiving failed, keeping provider urls",
				zap.Stringer("design_id", d.ID),
				zap.Error(err),
			)
		} else {
			d.Images = archived
		}
	}

	// Once the design is stored it must also be billed, together, even if
	// the client hangs up mid-request. The tail of the pipeline therefore
	// no longer observes request cancellation.
	ctx = context.WithoutCancel(ctx)

	if err := s.store.Create(ctx, d); err != nil {
		s.recordFailure(req.Type, stagePersisting, start)
		return nil, fmt.Errorf("persist design: %w", err)
	}

	if err := s.credits.TryDebit(ctx, accountID, s.validator.Cost(), ledger.ReasonGenerationDebit); err != nil {
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			// A concurrent spend drained the balance between validation
			// and debit. The persisted design stays with the account;
			// the caller sees a distinct billing anomaly.
			s.recordOutcome(req.Type, "charge_failed", start)
			s.logger.Warn("debit raced with concurrent spend, design kept",
				zap.Stringer("account_id", accountID),
				zap.Stringer("design_id", d.ID),
			)
			return d, ErrChargeFailed
		}
		s.recordFailure(req.Type, stageDebiting, start)
		return nil, fmt.Errorf("debit credits: %w", err)
	}

	s.recordOutcome(req.Type, "completed", start)
	s.logger.Info("design generated",
		zap.Stringer("account_id", accountID),
		zap.Stringer("design_id", d.ID),
		zap.String("type", string(d.Type)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return d, nil
}

// Get returns a design by id. Reads are not restricted to the owner.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Design, error) {
	return s.store.Get(ctx, id)
}

// List returns one page of the account's designs, newest first.
func (s *Service) List(ctx context.Context, accountID uuid.UUID, page, pageSize int) ([]*Design, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return s.store.ListByAccount(ctx, accountID, (page-1)*pageSize, pageSize)
}

// Update edits design metadata for the owning account.
func (s *Service) Update(ctx context.Context, id, callerID uuid.UUID, req *UpdateRequest) (*Design, error) {
	if req.Prompt != nil && *req.Prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if req.Type != nil && !Type(*req.Type).Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, *req.Type)
	}
	if req.Size != nil {
		if _, err := resolveSize(*req.Size); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSize, err)
		}
	}
	return s.store.Update(ctx, id, callerID, req)
}

// Delete removes a design owned by the calling account.
func (s *Service) Delete(ctx context.Context, id, callerID uuid.UUID) error {
	return s.store.Delete(ctx, id, callerID)
}

// generationError collapses model failures into the generic generation
// error while keeping the cause visible for logging.
func (s *Service) generationError(err error) error {
	return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
}

func (s *Service) recordFailure(designType, stage string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordGenerationFailure(stage)
	s.metrics.RecordGeneration(designType, "failed", time.Since(start))
}

func (s *Service) recordOutcome(designType, outcome string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordGeneration(designType, outcome, time.Since(start))
}
