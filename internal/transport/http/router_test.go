package httptransport

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apihub/internal/platform/health"
	"apihub/pkg/platform/middleware/auth"
	"apihub/pkg/requestcontext"
)

type whoAmI struct{}

func (whoAmI) Register(r chi.Router) {
	r.Get("/v1/whoami", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, requestcontext.User(r.Context()))
	})
	r.Post("/v1/echo", func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func newTestRouter() (http.Handler, *auth.HS256Validator) {
	validator := auth.NewHS256Validator("router-test-key", "apihub-portal", "apihub")
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# metrics")
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(RouterConfig{
		API:          []RouteRegistrar{whoAmI{}},
		Health:       health.New("test"),
		Metrics:      metrics,
		Validator:    validator,
		MaxBodyBytes: 16,
	}, logger), validator
}

func TestAPIRequiresBearerToken(t *testing.T) {
	router, validator := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	token, err := validator.Issue("Dev@Example.com", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev@example.com", rec.Body.String())
}

func TestOperationalEndpointsAreOpen(t *testing.T) {
	router, _ := newTestRouter()

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestBodyRules(t *testing.T) {
	router, validator := newTestRouter()
	token, err := validator.Issue("dev@example.com", time.Hour)
	require.NoError(t, err)

	post := func(contentType, body string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/echo", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, post("application/json", `{}`))
	assert.Equal(t, http.StatusUnsupportedMediaType, post("text/plain", `{}`))
	assert.Equal(t, http.StatusRequestEntityTooLarge, post("application/json", `{"name":"far too long for the limit"}`))
}

func TestKeepsValidRequestID(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "trace-123", rec.Header().Get("X-Request-ID"))
}
