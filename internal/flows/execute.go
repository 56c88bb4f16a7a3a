package flows

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authpipe/refresh"
)

// RequestBuilder produces a fresh request for every attempt.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// ExecuteFailureKind classifies execute flow failures for root-level mapping.
type ExecuteFailureKind int

const (
	ExecuteFailureNone ExecuteFailureKind = iota
	ExecuteFailureBuild
	ExecuteFailureTransport
	ExecuteFailureCancelled
	ExecuteFailureSessionEnded
	ExecuteFailureRefreshUnavailable
)

// ExecuteResult carries the final response or the failure.
type ExecuteResult struct {
	Response *http.Response
	Failure  ExecuteFailureKind
	Err      error
	// Retried is set when the request was re-issued after a refresh.
	Retried bool
	// Refresh holds the outcome when a refresh was attempted.
	Refresh *refresh.Outcome
}

// ExecuteDeps captures the authenticated request pipeline dependencies.
type ExecuteDeps struct {
	AccessToken func() string
	Attach      func(req *http.Request, accessToken string)
	Do          func(*http.Request) (*http.Response, error)
	Refresh     func(ctx context.Context, failedAccess string) (refresh.Outcome, error)
	// EndSession clears credentials and raises the session-ended signal.
	// failedAccess is the token the server rejected. It must be idempotent.
	EndSession                   func(ctx context.Context, failedAccess string, outcome refresh.Outcome)
	EndSessionOnTransportFailure bool

	OnUnauthorized func()
	OnRetry        func()
}

// RunExecute issues build's request with the current credentials. On a 401
// it refreshes through the coordinator and re-issues the request once.
func RunExecute(ctx context.Context, build RequestBuilder, deps ExecuteDeps) ExecuteResult {
	access := deps.AccessToken()
	resp, res, ok := attempt(ctx, build, access, deps)
	if !ok {
		return res
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return ExecuteResult{Response: resp}
	}

	Drain(resp)
	if deps.OnUnauthorized != nil {
		deps.OnUnauthorized()
	}

	outcome, err := deps.Refresh(ctx, access)
	if err != nil {
		return ExecuteResult{Failure: ExecuteFailureCancelled, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return ExecuteResult{Failure: ExecuteFailureCancelled, Err: err, Refresh: &outcome}
	}

	switch outcome.Kind {
	case refresh.Success:
	case refresh.TransportFailure:
		if outcome.Local() || !deps.EndSessionOnTransportFailure {
			return ExecuteResult{Failure: ExecuteFailureRefreshUnavailable, Err: outcome.Err, Refresh: &outcome}
		}
		fallthrough
	default:
		deps.EndSession(context.WithoutCancel(ctx), access, outcome)
		return ExecuteResult{Failure: ExecuteFailureSessionEnded, Err: outcome.Err, Refresh: &outcome}
	}

	if deps.OnRetry != nil {
		deps.OnRetry()
	}
	resp, res, ok = attempt(ctx, build, outcome.Tokens.AccessToken, deps)
	res.Retried = true
	res.Refresh = &outcome
	if !ok {
		return res
	}
	return ExecuteResult{Response: resp, Retried: true, Refresh: &outcome}
}

func attempt(ctx context.Context, build RequestBuilder, access string, deps ExecuteDeps) (*http.Response, ExecuteResult, bool) {
	if err := ctx.Err(); err != nil {
		return nil, ExecuteResult{Failure: ExecuteFailureCancelled, Err: err}, false
	}
	req, err := build(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ExecuteResult{Failure: ExecuteFailureCancelled, Err: ctxErr}, false
		}
		return nil, ExecuteResult{Failure: ExecuteFailureBuild, Err: err}, false
	}
	if access != "" {
		deps.Attach(req, access)
	}

	resp, err := deps.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ExecuteResult{Failure: ExecuteFailureCancelled, Err: ctxErr}, false
		}
		return nil, ExecuteResult{Failure: ExecuteFailureTransport, Err: err}, false
	}
	return resp, ExecuteResult{}, true
}
