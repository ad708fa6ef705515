package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/docquery-backend/internal/docquery/config"
	"github.com/yungbote/docquery-backend/internal/docquery/generation"
	"github.com/yungbote/docquery-backend/internal/docquery/prompt"
	"github.com/yungbote/docquery-backend/internal/docquery/service"
	"github.com/yungbote/docquery-backend/internal/docquery/store"
	"github.com/yungbote/docquery-backend/internal/docquery/store/memstore"
	"github.com/yungbote/docquery-backend/internal/platform/logger"
)

type echoGenerator struct {
	prompts []string
}

func (g *echoGenerator) Generate(_ context.Context, req prompt.Request) (*generation.Result, error) {
	g.prompts = append(g.prompts, req.Prompt())
	return &generation.Result{Answer: "answered", Model: "gemini-test"}, nil
}

func testConfig() *config.Config {
	temp := 0.0
	return &config.Config{
		Env: "test",
		HTTP: config.HTTPConfig{
			Addr:            "127.0.0.1:0",
			RequestTimeout:  config.Duration{Duration: 5 * time.Second},
			ShutdownTimeout: config.Duration{Duration: time.Second},
			MaxRequestBytes: 1 << 20,
		},
		Generation: config.GenerationConfig{Temperature: &temp, MaxOutputTokens: 256},
		Budget:     config.BudgetConfig{TotalTokens: 2000, ReservedTokens: 100, MinBodyTokens: 10},
		Retrieval:  config.RetrievalConfig{MaxCandidates: 2},
	}
}

func TestBuildServesQueries(t *testing.T) {
	gin.SetMode(gin.TestMode)
	docs := memstore.NewDocuments()
	objects := memstore.NewObjects()
	objects.Put("u1/a.txt", []byte("The renewal deadline is March 1."))
	docs.Add("u1",
		store.Document{ID: "a", Fields: map[string]string{store.FieldSubject: "Renewal"}, TextStoragePath: "u1/a.txt"},
		store.Document{ID: "b", Fields: map[string]string{store.FieldNotes: "renewal"}},
		store.Document{ID: "c", Fields: map[string]string{store.FieldTo: "renewal@example.com"}},
	)
	gen := &echoGenerator{}
	closed := 0

	a := Build(testConfig(), logger.NewNop(), Components{
		Documents: docs,
		Objects:   objects,
		Generator: gen,
		Closers:   []func() error{func() error { closed++; return nil }},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"query":"renewal","userId":"u1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out service.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "answered", out.Answer)
	require.Len(t, out.Sources, 2)
	assert.Equal(t, "a", out.Sources[0].ID)
	assert.Equal(t, "b", out.Sources[1].ID)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "The renewal deadline is March 1.")
	assert.NotContains(t, gen.prompts[0], "Document c:")

	require.NoError(t, a.Close(context.Background()))
	assert.Equal(t, 1, closed)
}

func TestRunStopsOnCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := Build(testConfig(), logger.NewNop(), Components{
		Documents: memstore.NewDocuments(),
		Objects:   memstore.NewObjects(),
		Generator: &echoGenerator{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Run did not return after cancel")
	}
}
