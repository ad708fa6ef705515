package generation

import (
	"context"
	"fmt"
)

type AuthMode int

const (
	AuthServiceIdentity AuthMode = iota
	AuthAPIKey
)

func (m AuthMode) String() string {
	switch m {
	case AuthServiceIdentity:
		return "service_identity"
	case AuthAPIKey:
		return "api_key"
	default:
		return fmt.Sprintf("auth(%d)", int(m))
	}
}

type AttemptState int

const (
	StatePending AttemptState = iota
	StateTrying
	StateFailedRetryable
	StateFailedFinal
	StateSucceeded
)

func (s AttemptState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateTrying:
		return "trying"
	case StateFailedRetryable:
		return "failed_retryable"
	case StateFailedFinal:
		return "failed_final"
	case StateSucceeded:
		return "succeeded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Attempt is one (auth strategy, model) cell of the fallback matrix.
type Attempt struct {
	Auth       AuthMode
	Model      string
	APIVersion string
	State      AttemptState
	Err        error
}

type PlanConfig struct {
	Models             []string
	IdentityAPIVersion string
	APIKeyAPIVersion   string
	HasServiceIdentity bool
	HasAPIKey          bool
}

// Plan is the ordered fallback matrix: service identity over every model, then the API key over every model.
type Plan struct {
	Attempts []Attempt
}

func NewPlan(cfg PlanConfig) *Plan {
	p := &Plan{}
	if cfg.HasServiceIdentity {
		for _, m := range cfg.Models {
			p.Attempts = append(p.Attempts, Attempt{Auth: AuthServiceIdentity, Model: m, APIVersion: cfg.IdentityAPIVersion})
		}
	}
	if cfg.HasAPIKey {
		for _, m := range cfg.Models {
			p.Attempts = append(p.Attempts, Attempt{Auth: AuthAPIKey, Model: m, APIVersion: cfg.APIKeyAPIVersion})
		}
	}
	return p
}

// CallFunc performs a single attempt and returns the answer text.
type CallFunc func(ctx context.Context, a *Attempt) (string, error)

// Run walks the plan in order. A not-found failure moves on to the next model of the same
// strategy; any other failure ends the strategy and its remaining attempts stay pending.
// The first success ends the run. When everything fails the last error is returned.
func (p *Plan) Run(ctx context.Context, call CallFunc) (string, *Attempt, error) {
	aborted := map[AuthMode]bool{}
	var lastErr error
	for i := range p.Attempts {
		a := &p.Attempts[i]
		if aborted[a.Auth] {
			continue
		}
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		a.State = StateTrying
		answer, err := call(ctx, a)
		if err == nil {
			a.State = StateSucceeded
			return answer, a, nil
		}

		a.Err = err
		lastErr = err
		if IsNotFound(err) {
			a.State = StateFailedRetryable
			continue
		}
		a.State = StateFailedFinal
		aborted[a.Auth] = true
	}
	if lastErr == nil {
		lastErr = ErrNoAttempts
	}
	return "", nil, lastErr
}

// Snapshot copies the attempts for reporting.
func (p *Plan) Snapshot() []Attempt {
	out := make([]Attempt, len(p.Attempts))
	copy(out, p.Attempts)
	return out
}
