package paradex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	tokenLifetime = 7 * 24 * time.Hour
	tokenMargin   = 60 * time.Second
	signatureTTL  = 30 * time.Minute

	// authTimeout bounds one shared authentication, onboarding included.
	authTimeout = 2 * time.Minute
)

type AuthState int

const (
	Unauthenticated AuthState = iota
	Authenticating
	Authenticated
	Onboarding
)

func (s AuthState) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Onboarding:
		return "onboarding"
	default:
		return "unauthenticated"
	}
}

// session is the one live bearer token of a client.
type session struct {
	mu     sync.Mutex
	token  string
	expiry time.Time
	state  AuthState
}

// State reports where the client is in its authentication lifecycle.
func (c *Client) State() AuthState {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	return c.session.state
}

func (c *Client) setState(s AuthState) {
	c.session.mu.Lock()
	c.session.state = s
	c.session.mu.Unlock()
}

func (c *Client) validToken() (string, bool) {
	c.session.mu.Lock()
	defer c.session.mu.Unlock()
	if c.session.token == "" || !c.now().Before(c.session.expiry.Add(-tokenMargin)) {
		return "", false
	}
	return c.session.token, true
}

func (c *Client) storeToken(tok string) {
	c.session.mu.Lock()
	c.session.token = tok
	c.session.expiry = c.now().Add(tokenLifetime)
	c.session.state = Authenticated
	c.session.mu.Unlock()
}

// invalidate drops the token after the server rejected it.
func (c *Client) invalidate() {
	c.session.mu.Lock()
	c.session.token = ""
	c.session.expiry = time.Time{}
	c.session.state = Unauthenticated
	c.session.mu.Unlock()
}

// token returns a usable bearer token. Callers that find it missing or close
// to expiry share a single in-flight authentication. The shared work is
// detached from any one caller's context; each caller stops waiting when its
// own ctx is done.
func (c *Client) token(ctx context.Context) (string, error) {
	if tok, ok := c.validToken(); ok {
		return tok, nil
	}
	ch := c.authGroup.DoChan("auth", func() (any, error) {
		if tok, ok := c.validToken(); ok {
			return tok, nil
		}
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), authTimeout)
		defer cancel()
		return c.authenticate(actx)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// authenticate walks Authenticating -> (Onboarding -> Authenticating) ->
// Authenticated. Onboarding happens at most once per call.
func (c *Client) authenticate(ctx context.Context) (string, error) {
	onboarded := false
	for {
		c.setState(Authenticating)
		tok, err := c.requestToken(ctx)
		if err == nil {
			c.storeToken(tok)
			c.obs.ObserveAuth("success")
			c.log.Info("authenticated", "account", c.signer.Account(), "onboarded", onboarded)
			return tok, nil
		}

		if !errors.Is(err, ErrNotRegistered) || onboarded {
			c.setState(Unauthenticated)
			c.obs.ObserveAuth("failure")
			c.log.Error("authentication failed", "account", c.signer.Account(), "error", err)
			return "", err
		}

		c.setState(Onboarding)
		c.obs.ObserveAuth("onboarding")
		c.log.Info("account not registered, onboarding", "account", c.signer.Account())
		if err := c.onboard(ctx); err != nil {
			c.setState(Unauthenticated)
			c.obs.ObserveAuth("failure")
			c.log.Error("onboarding failed", "account", c.signer.Account(), "error", err)
			return "", err
		}
		onboarded = true
	}
}

type authResponse struct {
	JWTToken string `json:"jwt_token"`
}

func (c *Client) requestToken(ctx context.Context) (string, error) {
	const path = "/v1/auth"
	var resp authResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   path,
		sign: func(h http.Header, body []byte) error {
			ts := c.now().Unix()
			exp := c.now().Add(signatureTTL).Unix()
			sig, err := sign(c.signer, authTypedData(c.chainID, http.MethodPost, path, string(body), ts, exp))
			if err != nil {
				return err
			}
			h.Set("PARADEX-STARKNET-ACCOUNT", c.signer.Account())
			h.Set("PARADEX-STARKNET-SIGNATURE", sig)
			h.Set("PARADEX-TIMESTAMP", strconv.FormatInt(ts, 10))
			h.Set("PARADEX-SIGNATURE-EXPIRATION", strconv.FormatInt(exp, 10))
			return nil
		},
		classify: func(status int, body string) error {
			if notRegistered(body) {
				return fmt.Errorf("%w: %s", ErrNotRegistered, body)
			}
			return nil
		},
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.JWTToken == "" {
		return "", errors.New("auth response carried no jwt_token")
	}
	return resp.JWTToken, nil
}

type onboardingRequest struct {
	PublicKey string `json:"public_key"`
}

func (c *Client) onboard(ctx context.Context) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/v1/onboarding",
		body:   onboardingRequest{PublicKey: c.signer.PublicKey()},
		sign: func(h http.Header, _ []byte) error {
			sig, err := sign(c.signer, onboardingTypedData(c.chainID))
			if err != nil {
				return err
			}
			h.Set("PARADEX-ETHEREUM-ACCOUNT", c.ethAccount)
			h.Set("PARADEX-STARKNET-ACCOUNT", c.signer.Account())
			h.Set("PARADEX-STARKNET-SIGNATURE", sig)
			h.Set("PARADEX-TIMESTAMP", strconv.FormatInt(c.now().Unix(), 10))
			return nil
		},
		classify: func(status int, body string) error {
			if underfunded(body) {
				return &FundingError{Account: c.signer.Account(), MinimumUSD: c.minFunding, Body: body}
			}
			return nil
		},
	}, nil)
}
