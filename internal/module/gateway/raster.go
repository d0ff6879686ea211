package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/draftly/server/internal/shared/config"
)

// RasterClient calls the external raster image model.
type RasterClient struct {
	baseURL    string
	apiKey     string
	model      string
	batchCount int
	client     *http.Client
}

// NewRasterClient creates a new raster model client. The http.Client
// carries no timeout of its own; per-call deadlines come from the
// caller's context.
func NewRasterClient(cfg *config.RasterModelConfig) *RasterClient {
	batch := cfg.BatchCount
	if batch <= 0 {
		batch = 4
	}
	return &RasterClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		batchCount: batch,
		client:     &http.Client{},
	}
}

// rasterRequest represents a raster generation request.
type rasterRequest struct {
	Prompt    string `json:"prompt"`
	ImageSize string `json:"image_size"`
	NumImages int    `json:"num_images"`
}

// rasterResponse represents a raster generation response.
type rasterResponse struct {
	Images []struct {
		URL    string `json:"url"`
		Width  int    `json:"width,omitempty"`
		Height int    `json:"height,omitempty"`
	} `json:"images"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code,omitempty"`
	} `json:"error,omitempty"`
}

// GenerateImages requests one batch of images from the raster model.
func (c *RasterClient) GenerateImages(ctx context.Context, prompt, size string) ([]Image, error) {
	body, err := json.Marshal(&rasterRequest{
		Prompt:    prompt,
		ImageSize: size,
		NumImages: c.batchCount,
	})
	if err != nil {
		return nil, newModelError(c.model, KindBadRequest, fmt.Errorf("marshal request: %w", err))
	}

	url := c.baseURL + "/" + c.model
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, newModelError(c.model, KindBadRequest, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		// Network errors and context deadlines are transient.
		return nil, newModelError(c.model, KindTransient, fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newModelError(c.model, KindTransient, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newModelError(c.model, kindForStatus(resp.StatusCode),
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(respBody, 200)))
	}

	var out rasterResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, newModelError(c.model, KindTransient, fmt.Errorf("unmarshal response: %w", err))
	}
	if out.Error != nil {
		return nil, newModelError(c.model, KindBadRequest, fmt.Errorf("provider error: %s", out.Error.Message))
	}
	if len(out.Images) == 0 {
		return nil, newModelError(c.model, KindTransient, fmt.Errorf("empty image batch"))
	}

	images := make([]Image, len(out.Images))
	for i, img := range out.Images {
		images[i] = Image{URL: img.URL, Width: img.Width, Height: img.Height}
	}
	return images, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
