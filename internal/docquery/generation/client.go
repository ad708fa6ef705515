package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/yungbote/docquery-backend/internal/docquery/prompt"
	"github.com/yungbote/docquery-backend/internal/observability"
	"github.com/yungbote/docquery-backend/internal/platform/logger"
)

const (
	DefaultBaseURL            = "https://generativelanguage.googleapis.com"
	DefaultIdentityAPIVersion = "v1"
	DefaultAPIKeyAPIVersion   = "v1beta"

	maxResponseBytes = 8 << 20
)

var DefaultModels = []string{"gemini-1.5-flash", "gemini-1.5-pro", "gemini-pro"}

type Config struct {
	BaseURL string
	// Models are tried in order under each auth strategy.
	Models             []string
	IdentityAPIVersion string
	APIKeyAPIVersion   string
	// APIKey enables the key-based fallback strategy when non-empty.
	APIKey  string
	Timeout time.Duration
}

type Result struct {
	Answer   string
	Model    string
	Auth     AuthMode
	Attempts []Attempt
}

type Client struct {
	log        *logger.Logger
	cfg        Config
	tokens     oauth2.TokenSource
	httpClient *http.Client
	tracer     trace.Tracer
}

// New builds a client. tokens may be nil, in which case the service identity strategy fails
// immediately and the API key strategy (if configured) is used.
func New(log *logger.Logger, cfg Config, tokens oauth2.TokenSource) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.IdentityAPIVersion) == "" {
		cfg.IdentityAPIVersion = DefaultIdentityAPIVersion
	}
	if strings.TrimSpace(cfg.APIKeyAPIVersion) == "" {
		cfg.APIKeyAPIVersion = DefaultAPIKeyAPIVersion
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Models = normalizeModels(cfg.Models)
	if len(cfg.Models) == 0 {
		return nil, errors.New("generation: at least one model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		log:        log.With("component", "GenerationClient"),
		cfg:        cfg,
		tokens:     tokens,
		httpClient: &http.Client{Transport: tr},
		tracer:     otel.Tracer("docquery/generation"),
	}, nil
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(log *logger.Logger, cfg Config, tokens oauth2.TokenSource, httpClient *http.Client) (*Client, error) {
	c, err := New(log, cfg, tokens)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c, nil
}

func normalizeModels(models []string) []string {
	out := make([]string, 0, len(models))
	seen := map[string]bool{}
	for _, m := range models {
		m = strings.TrimPrefix(strings.TrimSpace(m), "models/")
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// Generate runs the auth/model fallback matrix for req. On failure the returned error is an *Error
// classified from the last concrete attempt failure.
func (c *Client) Generate(ctx context.Context, req prompt.Request) (*Result, error) {
	if strings.TrimSpace(req.Prompt()) == "" {
		return nil, &Error{Kind: FailureInternal, Err: errEmptyPrompt}
	}

	plan := NewPlan(PlanConfig{
		Models:             c.cfg.Models,
		IdentityAPIVersion: c.cfg.IdentityAPIVersion,
		APIKeyAPIVersion:   c.cfg.APIKeyAPIVersion,
		HasServiceIdentity: true,
		HasAPIKey:          c.cfg.APIKey != "",
	})

	answer, winner, err := plan.Run(ctx, func(ctx context.Context, a *Attempt) (string, error) {
		return c.attempt(ctx, req, a)
	})
	if err != nil {
		kind := Classify(err)
		c.log.Error("generation failed", "kind", kind.String(), "attempts", len(plan.Attempts), "error", err)
		return nil, &Error{Kind: kind, Attempts: plan.Snapshot(), Err: err}
	}

	c.log.Info("generation succeeded", "model", winner.Model, "auth", winner.Auth.String())
	return &Result{
		Answer:   answer,
		Model:    winner.Model,
		Auth:     winner.Auth,
		Attempts: plan.Snapshot(),
	}, nil
}

func (c *Client) attempt(ctx context.Context, req prompt.Request, a *Attempt) (string, error) {
	ctx, span := c.tracer.Start(ctx, "generation.attempt", trace.WithAttributes(
		attribute.String("gen.model", a.Model),
		attribute.String("gen.auth", a.Auth.String()),
		attribute.String("gen.api_version", a.APIVersion),
	))
	defer span.End()

	start := time.Now()
	answer, err := c.do(ctx, req, a)
	outcome := "succeeded"
	switch {
	case err == nil:
	case IsNotFound(err):
		outcome = "not_found"
	default:
		outcome = "failed"
	}
	observability.Current().ObserveGenerationAttempt(a.Model, a.Auth.String(), outcome, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		c.log.Warn("generation attempt failed",
			"model", a.Model,
			"auth", a.Auth.String(),
			"not_found", IsNotFound(err),
			"error", err,
		)
		return "", err
	}
	span.SetStatus(otelcodes.Ok, "")
	return answer, nil
}

func (c *Client) endpoint(a *Attempt) string {
	method := familyForModel(a.Model).method()
	u := fmt.Sprintf("%s/%s/models/%s:%s", c.cfg.BaseURL, a.APIVersion, url.PathEscape(a.Model), method)
	if a.Auth == AuthAPIKey {
		u += "?" + url.Values{"key": []string{c.cfg.APIKey}}.Encode()
	}
	return u
}

func buildBody(model string, req prompt.Request) any {
	if familyForModel(model) == familyLegacyPrompt {
		return generateTextRequest{
			Prompt:          textPrompt{Text: req.Prompt()},
			Temperature:     req.Temperature(),
			MaxOutputTokens: req.MaxOutputTokens(),
		}
	}
	return generateContentRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []contentPart{{Text: req.Prompt()}},
		}},
		GenerationConfig: generationConfig{
			Temperature:     req.Temperature(),
			MaxOutputTokens: req.MaxOutputTokens(),
		},
	}
}

func (c *Client) do(ctx context.Context, req prompt.Request, a *Attempt) (string, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildBody(a.Model, req)); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(a), &buf)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	if a.Auth == AuthServiceIdentity {
		if c.tokens == nil {
			return "", ErrNoServiceIdentity
		}
		tok, err := c.tokens.Token()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNoServiceIdentity, err)
		}
		tok.SetAuthHeader(httpReq)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read generation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	return parseAnswer(a.Model, raw)
}

func parseAnswer(model string, raw []byte) (string, error) {
	if familyForModel(model) == familyLegacyPrompt {
		var out generateTextResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if answer, ok := out.answer(); ok {
			return answer, nil
		}
		return "", ErrMalformedResponse
	}

	var out generateContentResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if answer, ok := out.answer(); ok {
		return answer, nil
	}
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", ErrMalformedResponse, out.PromptFeedback.BlockReason)
	}
	return "", ErrMalformedResponse
}
