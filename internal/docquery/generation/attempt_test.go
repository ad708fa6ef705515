package generation

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlanOrder(t *testing.T) {
	p := NewPlan(PlanConfig{
		Models:             []string{"m1", "m2"},
		IdentityAPIVersion: "v1",
		APIKeyAPIVersion:   "v1beta",
		HasServiceIdentity: true,
		HasAPIKey:          true,
	})
	assert.Equal(t, []Attempt{
		{Auth: AuthServiceIdentity, Model: "m1", APIVersion: "v1"},
		{Auth: AuthServiceIdentity, Model: "m2", APIVersion: "v1"},
		{Auth: AuthAPIKey, Model: "m1", APIVersion: "v1beta"},
		{Auth: AuthAPIKey, Model: "m2", APIVersion: "v1beta"},
	}, p.Attempts)

	identityOnly := NewPlan(PlanConfig{Models: []string{"m1"}, HasServiceIdentity: true})
	assert.Len(t, identityOnly.Attempts, 1)
}

func TestPlanRunNotFoundAdvancesModel(t *testing.T) {
	p := NewPlan(PlanConfig{Models: []string{"m1", "m2"}, HasServiceIdentity: true, HasAPIKey: true})
	answer, winner, err := p.Run(context.Background(), func(_ context.Context, a *Attempt) (string, error) {
		if a.Model == "m1" {
			return "", &HTTPError{StatusCode: http.StatusNotFound}
		}
		return "ok from " + a.Model, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok from m2", answer)
	require.NotNil(t, winner)
	assert.Equal(t, "m2", winner.Model)
	assert.Equal(t, AuthServiceIdentity, winner.Auth)

	assert.Equal(t, StateFailedRetryable, p.Attempts[0].State)
	assert.Equal(t, StateSucceeded, p.Attempts[1].State)
	for _, a := range p.Attempts[2:] {
		assert.Equal(t, StatePending, a.State, "api key attempt %s", a.Model)
	}
}

func TestPlanRunNonNotFoundAbortsStrategy(t *testing.T) {
	p := NewPlan(PlanConfig{Models: []string{"m1", "m2"}, HasServiceIdentity: true, HasAPIKey: true})
	var calls []string
	_, winner, err := p.Run(context.Background(), func(_ context.Context, a *Attempt) (string, error) {
		calls = append(calls, a.Auth.String()+"/"+a.Model)
		if a.Auth == AuthServiceIdentity {
			return "", &HTTPError{StatusCode: http.StatusInternalServerError}
		}
		return "answer", nil
	})
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, AuthAPIKey, winner.Auth)
	assert.Equal(t, "m1", winner.Model)
	assert.Equal(t, []string{"service_identity/m1", "api_key/m1"}, calls)
	assert.Equal(t, StateFailedFinal, p.Attempts[0].State)
	assert.Equal(t, StatePending, p.Attempts[1].State)
}

func TestPlanRunReturnsLastError(t *testing.T) {
	first := errors.New("first")
	last := &HTTPError{StatusCode: http.StatusBadRequest, Body: "bad"}
	p := NewPlan(PlanConfig{Models: []string{"m1"}, HasServiceIdentity: true, HasAPIKey: true})
	_, winner, err := p.Run(context.Background(), func(_ context.Context, a *Attempt) (string, error) {
		if a.Auth == AuthServiceIdentity {
			return "", first
		}
		return "", last
	})
	assert.Nil(t, winner)
	assert.ErrorIs(t, err, last)
}

func TestPlanRunEmpty(t *testing.T) {
	_, _, err := NewPlan(PlanConfig{}).Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoAttempts)
}

func TestPlanRunStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPlan(PlanConfig{Models: []string{"m1"}, HasServiceIdentity: true})
	called := false
	_, _, err := p.Run(ctx, func(context.Context, *Attempt) (string, error) {
		called = true
		return "", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"token limit", &HTTPError{StatusCode: 400, Body: `{"error":{"message":"maximum token limit exceeded"}}`}, FailureTokenLimit},
		{"too long", &HTTPError{StatusCode: 413, Body: "request too long"}, FailureTokenLimit},
		{"plain bad request", &HTTPError{StatusCode: 400, Body: "invalid field"}, FailureBadRequest},
		{"server error mentioning tokens", &HTTPError{StatusCode: 500, Body: "token service down"}, FailureInternal},
		{"not found", &HTTPError{StatusCode: 404}, FailureInternal},
		{"malformed", ErrMalformedResponse, FailureInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
