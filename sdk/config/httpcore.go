// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/bitrise-io/go-utils/v2/retryhttp"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	headerAPIKey      = "x-api-key"
	contentTypeJSON   = "application/json"
	ContentTypeForm   = "application/x-www-form-urlencoded"
	ContentTypeBinary = "application/octet-stream"
)

// TokenProvider hands out a bearer token valid at the time of the call.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

type CoreHTTP interface {
	// BuildURL escapes every segment of path except a literal "*".
	BuildURL(path string, params url.Values) string
	// ResolveURL joins a provider-issued reference (already escaped) to the host.
	ResolveURL(ref string) string
	Do(ctx context.Context, method, url string, data []byte, headers map[string]string) ([]byte, int, error)
	// Stream returns the open response of a 2xx answer; the caller closes the body.
	Stream(ctx context.Context, method, url string) (*http.Response, error)
	// Client is a plain http.Client that authenticates every request.
	Client() *http.Client
}

type httpCore struct {
	client     *retryablehttp.Client
	tokens     TokenProvider
	coreConfig CoreConfig
	apiKey     string
}

func NewHTTPCore(client *retryablehttp.Client, tokens TokenProvider, conf Config) CoreHTTP {
	if client == nil {
		client = NewRetryableClient(log.NewLogger(), conf.Core.RetryMax)
	}
	return &httpCore{
		client:     client,
		tokens:     tokens,
		coreConfig: conf.Core,
		apiKey:     conf.APIKey(),
	}
}

// NewRetryableClient keeps provider bodies on failure and never retries POST or COPY.
func NewRetryableClient(logger log.Logger, retryMax int) *retryablehttp.Client {
	c := retryhttp.NewClient(logger)
	if retryMax < 0 {
		retryMax = 0
	}
	c.RetryMax = retryMax
	c.CheckRetry = idempotentRetryPolicy
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return c
}

type methodKey struct{}

// withMethod records the HTTP method on ctx; a transport error leaves the retry policy
// without a response to read it from.
func withMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, methodKey{}, method)
}

func idempotentRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	method, _ := ctx.Value(methodKey{}).(string)
	if resp != nil && resp.Request != nil {
		method = resp.Request.Method
	}
	switch method {
	case "", http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
	default:
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func (httpCore *httpCore) BuildURL(path string, params url.Values) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		if s != "*" {
			segments[i] = url.PathEscape(s)
		}
	}
	base := strings.TrimRight(httpCore.coreConfig.BaseURL, "/") + "/" + strings.Join(segments, "/")
	if len(params) > 0 {
		base += "?" + params.Encode()
	}
	return base
}

func (httpCore *httpCore) ResolveURL(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return strings.TrimRight(httpCore.coreConfig.BaseURL, "/") + "/" + strings.TrimLeft(ref, "/")
}

func (httpCore *httpCore) newRequest(ctx context.Context, method, url string, data []byte) (*retryablehttp.Request, error) {
	var body interface{}
	if data != nil {
		body = data
	}
	req, err := retryablehttp.NewRequestWithContext(withMethod(ctx, method), method, url, body)
	if err != nil {
		return nil, err
	}
	if err := httpCore.authorize(ctx, req.Header); err != nil {
		return nil, err
	}
	return req, nil
}

func (httpCore *httpCore) authorize(ctx context.Context, h http.Header) error {
	if httpCore.tokens != nil {
		tok, err := httpCore.tokens.AccessToken(ctx)
		if err != nil {
			return fmt.Errorf("access token: %w", err)
		}
		h.Set("Authorization", "Bearer "+tok)
	}
	if httpCore.apiKey != "" {
		h.Set(headerAPIKey, httpCore.apiKey)
	}
	return nil
}

func (httpCore *httpCore) Do(ctx context.Context, method, url string, data []byte, headers map[string]string) ([]byte, int, error) {
	req, err := httpCore.newRequest(ctx, method, url, data)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if data != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	resp, err := httpCore.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	b, rerr := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return b, resp.StatusCode, newProviderError(method, url, resp, b)
	}
	return b, resp.StatusCode, rerr
}

func (httpCore *httpCore) Stream(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := httpCore.newRequest(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpCore.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return nil, newProviderError(method, url, resp, b)
	}
	return resp, nil
}

func (httpCore *httpCore) Client() *http.Client {
	return &http.Client{
		Transport: &authTransport{core: httpCore, next: httpCore.client.StandardClient().Transport},
	}
}

type authTransport struct {
	core *httpCore
	next http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(withMethod(req.Context(), req.Method))
	if err := t.core.authorize(req.Context(), r.Header); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(r)
}

// ProviderError is any non-2xx answer of the DAM provider.
type ProviderError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       []byte
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("core responded with: %s - %s", e.Status, e.Message)
	}
	return fmt.Sprintf("core responded with: %s", e.Status)
}

func newProviderError(method, url string, resp *http.Response, body []byte) *ProviderError {
	status := resp.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return &ProviderError{
		Method:     method,
		URL:        url,
		StatusCode: resp.StatusCode,
		Status:     status,
		Body:       body,
		Message:    ProviderMessage(body),
	}
}

// ProviderMessage extracts the human message of an AEM/IMS error body.
func ProviderMessage(body []byte) string {
	var m map[string]any
	if json.Unmarshal(body, &m) != nil {
		return ""
	}
	if msg, ok := m["message"].(string); ok && msg != "" {
		return msg
	}
	if props, ok := m["properties"].(map[string]any); ok {
		if msg, ok := props["status.message"].(string); ok && msg != "" {
			return msg
		}
	}
	for _, k := range []string{"error_description", "error"} {
		if msg, ok := m[k].(string); ok && msg != "" {
			return msg
		}
	}
	return ""
}
