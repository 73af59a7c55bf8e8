package paradex

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotRegistered is returned by authentication when the account has never
// been onboarded. The client reacts by onboarding once and retrying.
var ErrNotRegistered = errors.New("paradex: account not registered")

// TransportError wraps a failure to get any response at all.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a non-2xx response, kept verbatim.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d) on %s %s: %s", e.Status, e.Method, e.Path, e.Body)
}

// FundingError means onboarding was refused because the account holds too
// little collateral. It is not retried.
type FundingError struct {
	Account    string
	MinimumUSD float64
	Body       string
}

func (e *FundingError) Error() string {
	return fmt.Sprintf("account %s must be funded with at least %.2f USDC before it can be registered: %s",
		e.Account, e.MinimumUSD, e.Body)
}

func notRegistered(body string) bool {
	b := strings.ToLower(body)
	for _, m := range []string{"not_onboarded", "not onboarded", "never called /onboarding", "not registered"} {
		if strings.Contains(b, m) {
			return true
		}
	}
	return false
}

func underfunded(body string) bool {
	b := strings.ToLower(body)
	for _, m := range []string{"insufficient", "deposit", "fund"} {
		if strings.Contains(b, m) {
			return true
		}
	}
	return false
}

// authError marks a failure to obtain a token. Authentication already ran its
// own attempts, so the outer call does not repeat it.
type authError struct{ err error }

func (e *authError) Error() string { return "authenticate: " + e.err.Error() }
func (e *authError) Unwrap() error { return e.err }

// retryable reports whether another attempt can change the outcome. Auth
// signals are state transitions, not transient faults.
func retryable(err error) bool {
	var fe *FundingError
	var ae *authError
	switch {
	case errors.Is(err, ErrNotRegistered), errors.As(err, &fe), errors.As(err, &ae):
		return false
	}
	return true
}
