package design

import "errors"

var (
	// ErrDesignNotFound indicates the design does not exist.
	ErrDesignNotFound = errors.New("design not found")
	// ErrForbidden indicates the caller does not own the design.
	ErrForbidden = errors.New("design belongs to another account")

	// ErrEmptyPrompt indicates a missing or blank prompt.
	ErrEmptyPrompt = errors.New("prompt must not be empty")
	// ErrInvalidType indicates a type outside the catalog.
	ErrInvalidType = errors.New("unknown design type")
	// ErrInvalidSize indicates an unrecognized size token.
	ErrInvalidSize = errors.New("invalid design size")

	// ErrGenerationFailed indicates the model pipeline failed after
	// exhausting retries. No credit was charged.
	ErrGenerationFailed = errors.New("design generation failed")
	// ErrChargeFailed indicates the design was persisted but the final
	// debit lost a race with a concurrent spend.
	ErrChargeFailed = errors.New("design created but credit charge failed")

	// ErrUnsupportedFormat indicates an unknown download format.
	ErrUnsupportedFormat = errors.New("unsupported download format")
	// ErrTranscode indicates the stored document could not be rendered.
	ErrTranscode = errors.New("failed to transcode design")
)
