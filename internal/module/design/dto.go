package design

import (
	"time"

	"github.com/google/uuid"
)

// GenerateRequest is the payload for creating a design.
type GenerateRequest struct {
	Prompt       string `json:"prompt"`
	Type         string `json:"type"`
	Size         string `json:"size"`
	ReferenceURL string `json:"reference_url,omitempty"`
}

// GenerateResponse is returned after a successful generation.
type GenerateResponse struct {
	ID     uuid.UUID `json:"id"`
	Images []string  `json:"images"`
}

// UpdateRequest is the payload for editing design metadata. Nil fields are
// left unchanged.
type UpdateRequest struct {
	Prompt *string `json:"prompt,omitempty"`
	Type   *string `json:"type,omitempty"`
	Size   *string `json:"size,omitempty"`
}

// Response is the API shape of a design.
type Response struct {
	ID        uuid.UUID `json:"id"`
	Prompt    string    `json:"prompt"`
	Type      Type      `json:"type"`
	Size      string    `json:"size"`
	Images    []string  `json:"images"`
	SVG       string    `json:"svg,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListResponse is a page of designs.
type ListResponse struct {
	Designs  []Response `json:"designs"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Total    int64      `json:"total"`
}

func toResponse(d *Design) Response {
	return Response{
		ID:        d.ID,
		Prompt:    d.Prompt,
		Type:      d.Type,
		Size:      d.Size,
		Images:    []string(d.Images),
		SVG:       d.SVG,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
