package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/docquery-backend/internal/docquery/config"
	"github.com/yungbote/docquery-backend/internal/docquery/service"
	"github.com/yungbote/docquery-backend/internal/observability"
	"github.com/yungbote/docquery-backend/internal/platform/apierr"
	"github.com/yungbote/docquery-backend/internal/platform/logger"
)

type fakeService struct {
	got  service.QueryRequest
	resp *service.QueryResponse
	err  error
	// block waits for context cancellation before returning.
	block bool
	panic any
}

func (f *fakeService) Query(ctx context.Context, req service.QueryRequest) (*service.QueryResponse, error) {
	f.got = req
	if f.panic != nil {
		panic(f.panic)
	}
	if f.block {
		<-ctx.Done()
		return nil, apierr.Internal(ctx.Err())
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Env: "test",
		HTTP: config.HTTPConfig{
			RequestTimeout:  config.Duration{Duration: 2 * time.Second},
			MaxRequestBytes: 1 << 10,
		},
	}
}

func newTestHandler(t *testing.T, cfg *config.Config, deps Deps) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewHandler(cfg, logger.NewNop(), deps)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body=%s", rec.Body.String())
	return env.Error
}

func signToken(t *testing.T, secret, subject string, ttl time.Duration) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestHealthAndReadiness(t *testing.T) {
	h := newTestHandler(t, testConfig(), Deps{
		Service: &fakeService{},
		Readiness: map[string]ReadinessCheck{
			"firestore": func(context.Context) error { return errors.New("unreachable") },
		},
	})

	assert.Equal(t, http.StatusOK, doJSON(t, h, http.MethodGet, "/healthz", "", nil).Code)

	rec := doJSON(t, h, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unreachable")
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestQuerySuccess(t *testing.T) {
	svc := &fakeService{resp: &service.QueryResponse{
		Answer:  "March.",
		Sources: []service.Source{{ID: "contract-2024", Score: 13, Matches: []string{"id:contract"}}},
	}}
	h := newTestHandler(t, testConfig(), Deps{Service: svc})

	rec := doJSON(t, h, http.MethodPost, "/v1/query", `{"query":"contract renewal","userId":"u1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out service.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "March.", out.Answer)
	require.Len(t, out.Sources, 1)
	assert.Equal(t, "contract-2024", out.Sources[0].ID)
	assert.Equal(t, service.QueryRequest{Query: "contract renewal", UserID: "u1"}, svc.got)
}

func TestQueryErrorCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"invalid argument", apierr.InvalidArgument(service.ErrMissingQuery), http.StatusBadRequest, apierr.CodeInvalidArgument, service.ErrMissingQuery.Error()},
		{"resource exhausted", apierr.ResourceExhausted(errors.New("token limit")), http.StatusTooManyRequests, apierr.CodeResourceExhausted, "token limit"},
		{"failed precondition", apierr.FailedPrecondition(errors.New("bad request")), http.StatusBadRequest, apierr.CodeFailedPrecondition, "bad request"},
		{"internal", apierr.Internal(errors.New("generation failed: status=503 body=backend overloaded")), http.StatusInternalServerError, apierr.CodeInternal, "status=503 body=backend overloaded"},
		{"plain error", errors.New("document store unavailable"), http.StatusInternalServerError, apierr.CodeInternal, "document store unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, testConfig(), Deps{Service: &fakeService{err: tt.err}})
			rec := doJSON(t, h, http.MethodPost, "/v1/query", `{"query":"q","userId":"u1"}`, nil)
			require.Equal(t, tt.wantStatus, rec.Code)
			apiErr := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Contains(t, apiErr.Message, tt.wantMsg)
		})
	}
}

func TestQueryPanicIsMasked(t *testing.T) {
	h := newTestHandler(t, testConfig(), Deps{Service: &fakeService{panic: "nil map write in ranking"}})
	rec := doJSON(t, h, http.MethodPost, "/v1/query", `{"query":"q","userId":"u1"}`, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	assert.Equal(t, APIError{Message: "internal error", Code: apierr.CodeInternal}, decodeError(t, rec))
}

func TestQueryRejectsMalformedBody(t *testing.T) {
	svc := &fakeService{}
	h := newTestHandler(t, testConfig(), Deps{Service: svc})

	rec := doJSON(t, h, http.MethodPost, "/v1/query", `["not","an","object"]`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, apierr.CodeInvalidArgument, decodeError(t, rec).Code)

	big := `{"query":"` + strings.Repeat("x", 2<<10) + `","userId":"u1"}`
	rec = doJSON(t, h, http.MethodPost, "/v1/query", big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestQueryCallerIdentity(t *testing.T) {
	const secret = "test-secret"
	svc := &fakeService{resp: &service.QueryResponse{Answer: "ok", Sources: []service.Source{}}}
	h := newTestHandler(t, testConfig(), Deps{
		Service: svc,
		Auth:    NewAuthenticator(logger.NewNop(), AuthConfig{Secret: secret}),
	})
	bearer := http.Header{"Authorization": []string{"Bearer " + signToken(t, secret, "user-42", time.Hour)}}

	rec := doJSON(t, h, http.MethodPost, "/v1/query", `{"query":"renewal"}`, bearer)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "user-42", svc.got.UserID)

	rec = doJSON(t, h, http.MethodPost, "/v1/query", `{"query":"renewal","userId":"someone-else"}`, bearer)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "mismatched userId")

	expired := http.Header{"Authorization": []string{"Bearer " + signToken(t, secret, "user-42", -time.Minute)}}
	rec = doJSON(t, h, http.MethodPost, "/v1/query", `{"query":"renewal"}`, expired)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "expired token")

	wrongKey := http.Header{"Authorization": []string{"Bearer " + signToken(t, "other-secret", "user-42", time.Hour)}}
	rec = doJSON(t, h, http.MethodPost, "/v1/query", `{"query":"renewal"}`, wrongKey)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "wrong signing key")
}

func TestQueryAuthRequired(t *testing.T) {
	h := newTestHandler(t, testConfig(), Deps{
		Service: &fakeService{},
		Auth:    NewAuthenticator(logger.NewNop(), AuthConfig{Secret: "s", Required: true}),
	})
	rec := doJSON(t, h, http.MethodPost, "/v1/query", `{"query":"renewal","userId":"u1"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQueryRequestTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.RequestTimeout = config.Duration{Duration: 20 * time.Millisecond}
	h := newTestHandler(t, cfg, Deps{Service: &fakeService{block: true}})

	start := time.Now()
	rec := doJSON(t, h, http.MethodPost, "/v1/query", `{"query":"q","userId":"u1"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Less(t, time.Since(start), time.Second, "timeout was not applied")
}

func TestMetricsEndpoint(t *testing.T) {
	m := observability.NewMetrics()
	h := newTestHandler(t, testConfig(), Deps{
		Service: &fakeService{resp: &service.QueryResponse{Answer: "ok", Sources: []service.Source{}}},
		Metrics: m,
	})
	doJSON(t, h, http.MethodPost, "/v1/query", `{"query":"q","userId":"u1"}`, nil)

	rec := doJSON(t, h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dq_api_requests_total{method="POST",route="/v1/query",status="200"} 1`)
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.CORSOrigins = []string{"https://app.example.com"}
	h := newTestHandler(t, cfg, Deps{Service: &fakeService{}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/query", bytes.NewReader(nil))
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
