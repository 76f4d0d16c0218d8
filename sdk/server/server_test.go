// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/auth"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/config"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/server"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/services/assets"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/services/upload"
)

type fakeTokens struct {
	mu          sync.Mutex
	invalidated int
	err         error
}

func (f *fakeTokens) AccessToken(ctx context.Context) (string, error) {
	cred, err := f.Credential(ctx)
	return cred.AccessToken, err
}

func (f *fakeTokens) Credential(context.Context) (auth.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return auth.Credential{}, f.err
	}
	return auth.Credential{
		AccessToken: fmt.Sprintf("tok-%d", f.invalidated),
		ExpiresAt:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeTokens) Invalidate() {
	f.mu.Lock()
	f.invalidated++
	f.mu.Unlock()
}

type harness struct {
	handler http.Handler
	aem     *http.ServeMux
	tokens  *fakeTokens
	aemURL  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mux := http.NewServeMux()
	aem := httptest.NewServer(mux)
	t.Cleanup(aem.Close)

	tokens := &fakeTokens{}
	conf := config.Config{
		Core: config.CoreConfig{BaseURL: aem.URL},
		IMS:  config.IMSConfig{ClientID: "client-1"},
	}
	logger := log.NewLogger()

	assetSvc, err := assets.NewAssetService(context.Background(), conf, tokens, logger)
	require.NoError(t, err)
	uploadSvc, err := upload.NewUploadService(context.Background(), conf, tokens, upload.WithLogger(logger))
	require.NoError(t, err)

	srv, err := server.New(config.ServerConfig{Addr: ":0"}, server.Deps{
		Assets:   assetSvc,
		Uploads:  uploadSvc,
		Tokens:   tokens,
		Registry: prometheus.NewRegistry(),
	}, logger)
	require.NoError(t, err)

	return &harness{handler: srv.Handler(), aem: mux, tokens: tokens, aemURL: aem.URL}
}

func (h *harness) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestHealthzAndRequestID(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("X-Request-ID"), "dam-"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestListPassesProviderBodyThrough(t *testing.T) {
	h := newHarness(t)
	h.aem.HandleFunc("/api/assets/brand/logos.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-0", r.Header.Get("Authorization"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		_, _ = io.WriteString(w, `{"entities":[{"class":["assets/asset"]}]}`)
	})

	rec := h.do(http.MethodGet, "/api/assets/brand/logos?limit=20", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entities":[{"class":["assets/asset"]}]}`, rec.Body.String())
}

func TestProviderErrorKeepsStatusAndBody(t *testing.T) {
	h := newHarness(t)
	h.aem.HandleFunc("/api/assets/missing.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"not found"}`)
	})

	rec := h.do(http.MethodGet, "/api/assets/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, map[string]interface{}{"message": "not found"}, body["error"])
}

func TestTokenFailureIsBadGateway(t *testing.T) {
	h := newHarness(t)
	h.tokens.err = &auth.AuthError{Op: "exchange", StatusCode: http.StatusUnauthorized}

	rec := h.do(http.MethodGet, "/api/get/metadata/brand/logo.png", nil, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = h.do(http.MethodGet, "/api/token", nil, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestTokenRefresh(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/token", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok-0", decode(t, rec)["accessToken"])

	rec = h.do(http.MethodGet, "/api/token?refresh=true", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "tok-1", body["accessToken"])
	assert.Equal(t, "2030-01-01T00:00:00Z", body["expiresAt"])
}

func TestCreateFolderAcceptsNombre(t *testing.T) {
	h := newHarness(t)
	var got map[string]interface{}
	h.aem.HandleFunc("/api/assets/brand/new/*", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	})

	rec := h.do(http.MethodPost, "/api/folders",
		strings.NewReader(`{"nombre":"new","title":"New","direction":"brand/new"}`), "application/json")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "assetFolder", got["class"])

	rec = h.do(http.MethodPost, "/api/folders", strings.NewReader(`{"title":"New"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadIsAnAttachment(t *testing.T) {
	h := newHarness(t)
	h.aem.HandleFunc("/api/assets/brand/logo.png/renditions/original", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = io.WriteString(w, "PNGDATA")
	})

	rec := h.do(http.MethodGet, "/api/download/brand/logo.png?newFileName=copy.png", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="copy.png"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "PNGDATA", rec.Body.String())
}

func TestSearchRequiresPropertyAndValue(t *testing.T) {
	h := newHarness(t)
	h.aem.HandleFunc("/bin/querybuilder.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dc:title", r.URL.Query().Get("property"))
		_, _ = io.WriteString(w, `{"hits":[]}`)
	})

	rec := h.do(http.MethodGet, "/api/search/metadata?property=dc:title&value=Logo", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodGet, "/api/search/metadata?property=dc:title", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// serveUpload fakes initiate, parts and complete for the brand/campaign folder.
func (h *harness) serveUpload(t *testing.T, failComplete string) {
	h.aem.HandleFunc("/content/dam/brand/campaign.initiateUpload.json", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		var files []map[string]interface{}
		for _, name := range r.PostForm["fileName"] {
			files = append(files, map[string]interface{}{
				"fileName":    name,
				"uploadToken": "token-" + name,
				"uploadURIs":  []string{h.aemURL + "/blob/" + url.PathEscape(name)},
				"maxPartSize": 1 << 20,
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"completeURI": "/content/dam/brand/campaign.completeUpload.json",
			"files":       files,
		})
	})
	h.aem.HandleFunc("/blob/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusCreated)
	})
	h.aem.HandleFunc("/content/dam/brand/campaign.completeUpload.json", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		name := r.PostForm.Get("fileName")
		if name == failComplete {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"message":"boom"}`)
			return
		}
		_, _ = fmt.Fprintf(w, `{"path":"/content/dam/brand/campaign/%s"}`, name)
	})
}

func multipartBody(t *testing.T, files map[string]string, order []string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for _, name := range order {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, files[name])
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestUploadAllSucceed(t *testing.T) {
	h := newHarness(t)
	h.serveUpload(t, "")

	body, ct := multipartBody(t, map[string]string{"a.png": "aaaa", "b.jpg": "bb"}, []string{"a.png", "b.jpg"})
	rec := h.do(http.MethodPost, "/api/upload/brand/campaign?replace=true", body, ct)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	assert.Equal(t, true, resp["success"])
	data := resp["data"].([]interface{})
	require.Len(t, data, 2)
	assert.Equal(t, "a.png", data[0].(map[string]interface{})["fileName"])
	assert.Equal(t, "b.jpg", data[1].(map[string]interface{})["fileName"])
}

func TestUploadPartialIsMultiStatus(t *testing.T) {
	h := newHarness(t)
	h.serveUpload(t, "b.jpg")

	body, ct := multipartBody(t, map[string]string{"a.png": "a", "b.jpg": "b", "c.gif": "c"}, []string{"a.png", "b.jpg", "c.gif"})
	rec := h.do(http.MethodPost, "/api/upload/brand/campaign", body, ct)

	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].([]interface{})
	require.Len(t, data, 3)
	assert.Equal(t, true, data[0].(map[string]interface{})["success"])
	assert.Equal(t, false, data[1].(map[string]interface{})["success"])
	assert.Equal(t, true, data[2].(map[string]interface{})["success"])
}

func TestUploadWithoutFilesIsBadRequest(t *testing.T) {
	h := newHarness(t)

	body, ct := multipartBody(t, nil, nil)
	rec := h.do(http.MethodPost, "/api/upload/brand/campaign", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, ct = multipartBody(t, map[string]string{"a.png": "a"}, []string{"a.png"})
	rec = h.do(http.MethodPost, "/api/upload/brand/campaign?replace=maybe", body, ct)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodGet, "/healthz", nil, "")

	rec := h.do(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dam_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}
