package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/draftly/server/internal/shared/config"
)

const vectorAPIVersion = "2023-06-01"

// VectorClient calls the external vector model through its messages API.
type VectorClient struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
}

// NewVectorClient creates a new vector model client.
func NewVectorClient(cfg *config.VectorModelConfig) *VectorClient {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &VectorClient{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: maxTokens,
		client:    &http.Client{},
	}
}

type vectorMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type vectorRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []vectorMessage `json:"messages"`
}

type vectorResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"content"`
	StopReason string `json:"stop_reason,omitempty"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateVector asks the vector model for a single SVG document grounded
// on the raster batch. The structural requirements embedded in the prompt
// are a fixed contract with the model, not a per-request option.
func (c *VectorClient) GenerateVector(ctx context.Context, prompt, designType, size string, imageURLs []string) (string, error) {
	body, err := json.Marshal(&vectorRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []vectorMessage{
			{Role: "user", Content: buildVectorPrompt(prompt, designType, size, imageURLs)},
		},
	})
	if err != nil {
		return "", newModelError(c.model, KindBadRequest, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", newModelError(c.model, KindBadRequest, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", vectorAPIVersion)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", newModelError(c.model, KindTransient, fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newModelError(c.model, KindTransient, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", newModelError(c.model, kindForStatus(resp.StatusCode),
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(respBody, 200)))
	}

	var out vectorResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", newModelError(c.model, KindTransient, fmt.Errorf("unmarshal response: %w", err))
	}
	if out.Error != nil {
		return "", newModelError(c.model, KindBadRequest, fmt.Errorf("provider error: %s", out.Error.Message))
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	svg, err := extractSVG(text.String())
	if err != nil {
		return "", newModelError(c.model, KindTransient, err)
	}
	return svg, nil
}

// buildVectorPrompt assembles the generation prompt with the fixed
// structural contract the downstream transcoder depends on.
func buildVectorPrompt(prompt, designType, size string, imageURLs []string) string {
	var b strings.Builder
	b.WriteString("Generate an SVG design for the following request.\n")
	b.WriteString("Type: " + designType + "\n")
	b.WriteString("Size: " + size + "\n")
	for _, url := range imageURLs {
		b.WriteString("Reference image: " + url + "\n")
	}
	b.WriteString("Prompt: " + prompt + "\n\n")
	b.WriteString("Requirements:\n")
	b.WriteString("1. Output valid XML with a single <svg> root element and no surrounding prose.\n")
	b.WriteString("2. Do not include any text outside the SVG; use <!-- --> comments inside it if needed.\n")
	b.WriteString("3. Favor vector primitives (paths, gradients, text elements) over embedded raster images; embed rasters only when unavoidable.\n")
	b.WriteString("4. Use <defs> and <g> groupings where they improve the artwork.\n")
	b.WriteString("5. Respect the requested theme and layout while keeping balance and whitespace.\n")
	b.WriteString("6. Set the viewBox to match the requested aspect ratio.\n")
	return b.String()
}

// extractSVG pulls the SVG document out of the model's text output and
// rejects responses without a well-formed root element. Models sometimes
// wrap output in code fences despite instructions.
func extractSVG(text string) (string, error) {
	start := strings.Index(text, "<svg")
	if start < 0 {
		return "", fmt.Errorf("response contains no <svg> root")
	}
	end := strings.LastIndex(text, "</svg>")
	if end < 0 || end < start {
		return "", fmt.Errorf("response contains an unterminated <svg> element")
	}
	return text[start : end+len("</svg>")], nil
}
