package gateway

import "context"

// Image is one raster result from the image model.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// ImageGenerator generates a fixed-size batch of raster images.
type ImageGenerator interface {
	GenerateImages(ctx context.Context, prompt, size string) ([]Image, error)
}

// VectorGenerator generates a single SVG document grounded on the raster
// results.
type VectorGenerator interface {
	GenerateVector(ctx context.Context, prompt, designType, size string, imageURLs []string) (string, error)
}

// Generator is the combined model gateway surface.
type Generator interface {
	ImageGenerator
	VectorGenerator
}
