package design

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/draftly/server/internal/module/ledger"
	"github.com/draftly/server/internal/shared/middleware"
)

func newTestRouter(svc *Service, accountID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		if accountID != uuid.Nil {
			c.Set(middleware.UserIDKey, accountID)
		}
		c.Next()
	})
	NewHandler(svc, NewTranscoder(), zap.NewNop()).RegisterRoutes(api)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGenerateEndpoint(t *testing.T) {
	accountID := uuid.New()

	t.Run("created", func(t *testing.T) {
		svc := newTestService(newFakeStore(), &fakeCredits{balance: 1}, newFakeGenerator())
		r := newTestRouter(svc, accountID)

		w := doJSON(t, r, http.MethodPost, "/api/v1/designs", GenerateRequest{
			Prompt: "summer sale", Type: "banner", Size: "16:9",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp GenerateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEqual(t, uuid.Nil, resp.ID)
		assert.Len(t, resp.Images, 4)
	})

	t.Run("missing identity is unauthorized", func(t *testing.T) {
		svc := newTestService(newFakeStore(), &fakeCredits{balance: 1}, newFakeGenerator())
		r := newTestRouter(svc, uuid.Nil)

		w := doJSON(t, r, http.MethodPost, "/api/v1/designs", GenerateRequest{
			Prompt: "x", Type: "banner", Size: "1:1",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("validation failure is a bad request", func(t *testing.T) {
		svc := newTestService(newFakeStore(), &fakeCredits{balance: 1}, newFakeGenerator())
		r := newTestRouter(svc, accountID)

		w := doJSON(t, r, http.MethodPost, "/api/v1/designs", GenerateRequest{
			Prompt: "x", Type: "businessCard", Size: "1:1",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty balance is payment required", func(t *testing.T) {
		svc := newTestService(newFakeStore(), &fakeCredits{balance: 0}, newFakeGenerator())
		r := newTestRouter(svc, accountID)

		w := doJSON(t, r, http.MethodPost, "/api/v1/designs", GenerateRequest{
			Prompt: "poster", Type: "poster", Size: "4:3",
		})
		assert.Equal(t, http.StatusPaymentRequired, w.Code)
	})

	t.Run("unknown account is not found, not an internal error", func(t *testing.T) {
		credits := &fakeCredits{balanceErr: ledger.ErrAccountNotFound}
		svc := newTestService(newFakeStore(), credits, newFakeGenerator())
		r := newTestRouter(svc, accountID)

		w := doJSON(t, r, http.MethodPost, "/api/v1/designs", GenerateRequest{
			Prompt: "poster", Type: "poster", Size: "4:3",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "account_not_found")
	})

	t.Run("model failure is an internal error", func(t *testing.T) {
		gen := newFakeGenerator()
		gen.imageErr = fmt.Errorf("boom")
		svc := newTestService(newFakeStore(), &fakeCredits{balance: 1}, gen)
		r := newTestRouter(svc, accountID)

		w := doJSON(t, r, http.MethodPost, "/api/v1/designs", GenerateRequest{
			Prompt: "poster", Type: "poster", Size: "4:3",
		})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestDesignCRUDEndpoints(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()

	svc := newTestService(newFakeStore(), &fakeCredits{balance: 5}, newFakeGenerator())
	ownerRouter := newTestRouter(svc, owner)
	strangerRouter := newTestRouter(svc, stranger)

	w := doJSON(t, ownerRouter, http.MethodPost, "/api/v1/designs", GenerateRequest{
		Prompt: "logo", Type: "logo", Size: "1:1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	designPath := "/api/v1/designs/" + created.ID.String()

	t.Run("get", func(t *testing.T) {
		w := doJSON(t, ownerRouter, http.MethodGet, designPath, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "logo", resp.Prompt)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		w := doJSON(t, ownerRouter, http.MethodGet, "/api/v1/designs/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id is a bad request", func(t *testing.T) {
		w := doJSON(t, ownerRouter, http.MethodGet, "/api/v1/designs/abc", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("stranger cannot delete", func(t *testing.T) {
		w := doJSON(t, strangerRouter, http.MethodDelete, designPath, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = doJSON(t, ownerRouter, http.MethodGet, designPath, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("owner can patch", func(t *testing.T) {
		prompt := "refined logo"
		w := doJSON(t, ownerRouter, http.MethodPatch, designPath, UpdateRequest{Prompt: &prompt})
		require.Equal(t, http.StatusOK, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, prompt, resp.Prompt)
	})

	t.Run("download svg", func(t *testing.T) {
		w := doJSON(t, ownerRouter, http.MethodGet, designPath+"/download?format=svg", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "design.svg")
		assert.Contains(t, w.Body.String(), "<svg")
	})

	t.Run("download png", func(t *testing.T) {
		w := doJSON(t, ownerRouter, http.MethodGet, designPath+"/download?format=png", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "design.png")
	})

	t.Run("unsupported download format", func(t *testing.T) {
		w := doJSON(t, ownerRouter, http.MethodGet, designPath+"/download?format=pdf", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("owner can delete", func(t *testing.T) {
		w := doJSON(t, ownerRouter, http.MethodDelete, designPath, nil)
		require.Equal(t, http.StatusNoContent, w.Code)

		w = doJSON(t, ownerRouter, http.MethodGet, designPath, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
