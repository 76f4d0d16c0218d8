// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/config"
)

// TokenValidity is how long an exchanged token is trusted, regardless of what IMS reports.
const TokenValidity = time.Hour

const exchangeTimeout = 30 * time.Second

var errMissingKey = errors.New("private key is empty")

// Credential is a bearer token and the instant it stops being handed out.
type Credential struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// IMSTokenProvider signs a service-account JWT and exchanges it at IMS,
// caching the access token for TokenValidity. Safe for concurrent use.
type IMSTokenProvider struct {
	conf   config.IMSConfig
	key    *rsa.PrivateKey
	client *http.Client
	logger log.Logger
	now    func() time.Time

	mu    sync.RWMutex
	cred  *Credential
	group singleflight.Group
}

type Option func(*IMSTokenProvider)

func WithHTTPClient(c *http.Client) Option {
	return func(p *IMSTokenProvider) { p.client = c }
}

func WithLogger(l log.Logger) Option {
	return func(p *IMSTokenProvider) { p.logger = l }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(p *IMSTokenProvider) { p.now = now }
}

func NewIMSTokenProvider(conf config.IMSConfig, opts ...Option) (*IMSTokenProvider, error) {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"client id", conf.ClientID},
		{"client secret", conf.ClientSecret},
		{"technical account id", conf.TechnicalAccountID},
		{"org id", conf.OrgID},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("invalid ims config, missing: %s", strings.Join(missing, ", "))
	}

	key, err := ParsePrivateKey(conf.PrivateKey)
	if err != nil {
		return nil, err
	}

	p := &IMSTokenProvider{
		conf:   conf,
		key:    key,
		client: &http.Client{Timeout: exchangeTimeout},
		logger: log.NewLogger(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *IMSTokenProvider) AccessToken(ctx context.Context) (string, error) {
	c, err := p.Credential(ctx)
	if err != nil {
		return "", err
	}
	return c.AccessToken, nil
}

// Credential returns the cached credential, exchanging a new one once it expired.
// Concurrent callers share a single exchange, which outlives the caller that started
// it; each caller still returns as soon as its own ctx is done.
func (p *IMSTokenProvider) Credential(ctx context.Context) (Credential, error) {
	if c, ok := p.cached(); ok {
		return c, nil
	}

	ch := p.group.DoChan("exchange", func() (interface{}, error) {
		if c, ok := p.cached(); ok {
			return c, nil
		}
		exCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exchangeTimeout)
		defer cancel()
		c, err := p.exchange(exCtx)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.cred = &c
		p.mu.Unlock()
		return c, nil
	})

	select {
	case <-ctx.Done():
		return Credential{}, &AuthError{Op: "exchange", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return Credential{}, res.Err
		}
		return res.Val.(Credential), nil
	}
}

// Invalidate forgets the cached credential.
func (p *IMSTokenProvider) Invalidate() {
	p.mu.Lock()
	p.cred = nil
	p.mu.Unlock()
}

func (p *IMSTokenProvider) cached() (Credential, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cred == nil || !p.now().Before(p.cred.ExpiresAt) {
		return Credential{}, false
	}
	return *p.cred, true
}

func (p *IMSTokenProvider) assertion(now time.Time) (string, error) {
	ims := p.conf.EndpointURL()
	claims := jwt.MapClaims{
		"exp": now.Add(TokenValidity).Unix(),
		"iss": p.conf.OrgID,
		"sub": p.conf.TechnicalAccountID,
		"aud": fmt.Sprintf("%s/c/%s", ims, p.conf.ClientID),
	}
	for _, scope := range p.conf.Scopes() {
		claims[fmt.Sprintf("%s/s/%s", ims, scope)] = true
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.key)
}

func (p *IMSTokenProvider) exchange(ctx context.Context) (Credential, error) {
	now := p.now()
	signed, err := p.assertion(now)
	if err != nil {
		return Credential{}, &AuthError{Op: "sign assertion", Err: err}
	}

	endpoint := p.conf.EndpointURL() + "/ims/exchange/jwt"
	form := url.Values{
		"client_id":     {p.conf.ClientID},
		"client_secret": {p.conf.ClientSecret},
		"jwt_token":     {signed},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, &AuthError{Op: "exchange", Err: err}
	}
	req.Header.Set("Content-Type", config.ContentTypeForm)

	p.logger.Debugf("[auth] exchanging JWT at %s", endpoint)
	resp, err := p.client.Do(req)
	if err != nil {
		return Credential{}, &AuthError{Op: "exchange", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Credential{}, &AuthError{Op: "exchange", StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := config.ProviderMessage(body)
		if msg == "" {
			msg = resp.Status
		}
		return Credential{}, &AuthError{Op: "exchange", StatusCode: resp.StatusCode, Body: body, Err: errors.New(msg)}
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return Credential{}, &AuthError{Op: "exchange", StatusCode: resp.StatusCode, Body: body, Err: err}
	}
	if out.AccessToken == "" {
		return Credential{}, &AuthError{Op: "exchange", StatusCode: resp.StatusCode, Body: body, Err: errors.New("response has no access_token")}
	}

	p.logger.Debugf("[auth] access token refreshed, valid until %s", now.Add(TokenValidity).Format(time.RFC3339))
	return Credential{AccessToken: out.AccessToken, ExpiresAt: now.Add(TokenValidity)}, nil
}
