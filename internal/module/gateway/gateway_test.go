package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/draftly/server/internal/shared/config"
)

func testModelsConfig(rasterURL, vectorURL string) *config.ModelsConfig {
	return &config.ModelsConfig{
		Raster: config.RasterModelConfig{
			BaseURL:    rasterURL,
			APIKey:     "test-key",
			Model:      "flux-pro/v1.1-ultra",
			BatchCount: 4,
		},
		Vector: config.VectorModelConfig{
			BaseURL:   vectorURL,
			APIKey:    "test-key",
			Model:     "claude-3-sonnet-20240229",
			MaxTokens: 4096,
		},
		CallTimeout:    5 * time.Second,
		MaxRetries:     2,
		RetryBackoff:   time.Millisecond,
		BreakerTimeout: time.Minute,
	}
}

func newTestGateway(t *testing.T, rasterURL, vectorURL string) *Gateway {
	t.Helper()
	return New(testModelsConfig(rasterURL, vectorURL), nil, zap.NewNop())
}

func TestGenerateImages(t *testing.T) {
	t.Run("returns the full batch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Key test-key", r.Header.Get("Authorization"))
			assert.Equal(t, "/flux-pro/v1.1-ultra", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"images":[
				{"url":"https://img.test/1.png","width":1024,"height":1024},
				{"url":"https://img.test/2.png","width":1024,"height":1024},
				{"url":"https://img.test/3.png","width":1024,"height":1024},
				{"url":"https://img.test/4.png","width":1024,"height":1024}
			]}`))
		}))
		defer srv.Close()

		gw := newTestGateway(t, srv.URL, srv.URL)
		images, err := gw.GenerateImages(context.Background(), "sunset poster", "1024x1024")
		require.NoError(t, err)
		require.Len(t, images, 4)
		assert.Equal(t, "https://img.test/1.png", images[0].URL)
		assert.Equal(t, 1024, images[0].Width)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`{"images":[{"url":"https://img.test/1.png"}]}`))
		}))
		defer srv.Close()

		gw := newTestGateway(t, srv.URL, srv.URL)
		images, err := gw.GenerateImages(context.Background(), "retry me", "1024x1024")
		require.NoError(t, err)
		assert.Len(t, images, 1)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("does not retry bad requests", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		gw := newTestGateway(t, srv.URL, srv.URL)
		_, err := gw.GenerateImages(context.Background(), "", "1024x1024")
		require.Error(t, err)
		merr, ok := AsModelError(err)
		require.True(t, ok)
		assert.Equal(t, KindBadRequest, merr.Kind)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("maps quota and content policy statuses", func(t *testing.T) {
		for status, kind := range map[int]ErrorKind{
			http.StatusTooManyRequests: KindQuota,
			http.StatusForbidden:       KindContentPolicy,
		} {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))

			gw := newTestGateway(t, srv.URL, srv.URL)
			_, err := gw.GenerateImages(context.Background(), "prompt", "1024x1024")
			require.Error(t, err)
			merr, ok := AsModelError(err)
			require.True(t, ok)
			assert.Equal(t, kind, merr.Kind)
			srv.Close()
		}
	})

	t.Run("empty batch is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"images":[]}`))
		}))
		defer srv.Close()

		gw := newTestGateway(t, srv.URL, srv.URL)
		_, err := gw.GenerateImages(context.Background(), "prompt", "1024x1024")
		require.Error(t, err)
		merr, ok := AsModelError(err)
		require.True(t, ok)
		assert.Equal(t, KindTransient, merr.Kind)
	})
}

func TestGenerateVector(t *testing.T) {
	t.Run("extracts the SVG document", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
			assert.Equal(t, vectorAPIVersion, r.Header.Get("anthropic-version"))
			assert.Equal(t, "/v1/messages", r.URL.Path)
			w.Write([]byte(`{"content":[{"type":"text","text":"Here is the design:\n<svg viewBox=\"0 0 100 100\"><rect/></svg>\nEnjoy."}]}`))
		}))
		defer srv.Close()

		gw := newTestGateway(t, srv.URL, srv.URL)
		svg, err := gw.GenerateVector(context.Background(), "a red square", "logo", "1:1", []string{"https://img.test/1.png"})
		require.NoError(t, err)
		assert.Equal(t, `<svg viewBox="0 0 100 100"><rect/></svg>`, svg)
	})

	t.Run("rejects output without an svg root", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"content":[{"type":"text","text":"sorry, I cannot draw that"}]}`))
		}))
		defer srv.Close()

		gw := newTestGateway(t, srv.URL, srv.URL)
		_, err := gw.GenerateVector(context.Background(), "prompt", "logo", "1:1", nil)
		require.Error(t, err)
	})
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testModelsConfig(srv.URL, srv.URL)
	cfg.MaxRetries = 0
	gw := New(cfg, nil, zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := gw.GenerateImages(context.Background(), "prompt", "1024x1024")
		require.Error(t, err)
	}

	// The breaker is open now; failures short-circuit without a request.
	_, err := gw.GenerateImages(context.Background(), "prompt", "1024x1024")
	require.Error(t, err)
	merr, ok := AsModelError(err)
	require.True(t, ok)
	assert.Equal(t, KindTransient, merr.Kind)
}

func TestExtractSVG(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "fenced output",
			in:   "```xml\n<svg viewBox=\"0 0 10 10\"></svg>\n```",
			want: `<svg viewBox="0 0 10 10"></svg>`,
		},
		{
			name: "bare document",
			in:   `<svg></svg>`,
			want: `<svg></svg>`,
		},
		{
			name:    "no svg at all",
			in:      "plain prose",
			wantErr: true,
		},
		{
			name:    "unterminated",
			in:      `<svg><rect/>`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractSVG(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
