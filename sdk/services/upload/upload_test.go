// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/config"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/services/upload"
)

const (
	container   = "brand/campaign"
	initPath    = "/content/dam/brand/campaign.initiateUpload.json"
	completeRef = "/content/dam/brand/campaign.completeUpload.json"
	folderPath  = "/api/assets/brand/campaign/*"
)

type staticToken string

func (s staticToken) AccessToken(context.Context) (string, error) { return string(s), nil }

type putCall struct {
	File          string
	Index         int
	Size          int
	ContentLength int64
	BlobType      string
	ContentType   string
	Auth          string
}

// fakeDAM plays AEM (initiate, complete, folder creation) and the blob store behind
// the pre-signed URIs.
type fakeDAM struct {
	t      *testing.T
	server *httptest.Server

	maxPartSize int64
	uriCount    int
	// initiate404 answers 404 to the first n initiations.
	initiate404  int
	folderReply  func(w http.ResponseWriter)
	failPut      func(file string, index int) int
	failComplete map[string]int

	mu        sync.Mutex
	initiates []url.Values
	folders   []map[string]interface{}
	puts      []putCall
	completes []url.Values
	total     int
}

func newFakeDAM(t *testing.T) *fakeDAM {
	f := &fakeDAM{t: t, maxPartSize: 2_000_000, uriCount: 5, failComplete: map[string]int{}}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeDAM) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total++

	switch {
	case r.Method == http.MethodPost && r.URL.Path == initPath:
		form, _ := url.ParseQuery(string(body))
		f.initiates = append(f.initiates, form)
		if len(f.initiates) <= f.initiate404 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		files := make([]map[string]interface{}, 0)
		for _, name := range form["fileName"] {
			u := make([]string, f.uriCount)
			for i := range u {
				u[i] = fmt.Sprintf("%s/blob/%s/%d?sig=abc", f.server.URL, name, i)
			}
			files = append(files, map[string]interface{}{
				"fileName":    name,
				"mimeType":    "ignored/by-client",
				"uploadToken": "token-" + name,
				"uploadURIs":  u,
				"minPartSize": 1024,
				"maxPartSize": f.maxPartSize,
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"completeURI": completeRef, "files": files})

	case r.Method == http.MethodPost && r.URL.Path == folderPath:
		var m map[string]interface{}
		_ = json.Unmarshal(body, &m)
		f.folders = append(f.folders, m)
		if f.folderReply != nil {
			f.folderReply(w)
			return
		}
		w.WriteHeader(http.StatusCreated)

	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/blob/"):
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/blob/"), "/")
		idx, _ := strconv.Atoi(parts[1])
		f.puts = append(f.puts, putCall{
			File:          parts[0],
			Index:         idx,
			Size:          len(body),
			ContentLength: r.ContentLength,
			BlobType:      r.Header.Get("x-ms-blob-type"),
			ContentType:   r.Header.Get("Content-Type"),
			Auth:          r.Header.Get("Authorization"),
		})
		if f.failPut != nil {
			if status := f.failPut(parts[0], idx); status != 0 {
				w.WriteHeader(status)
				_, _ = io.WriteString(w, "AuthenticationFailed")
				return
			}
		}
		w.WriteHeader(http.StatusCreated)

	case r.Method == http.MethodPost && r.URL.Path == completeRef:
		form, _ := url.ParseQuery(string(body))
		f.completes = append(f.completes, form)
		if status, ok := f.failComplete[form.Get("fileName")]; ok {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"message":"asset is locked"}`)
			return
		}
		_, _ = fmt.Fprintf(w, `{"fileName":%q,"path":"/content/dam/%s/%s"}`, form.Get("fileName"), container, form.Get("fileName"))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeDAM) putsFor(file string) []putCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []putCall
	for _, p := range f.puts {
		if p.File == file {
			out = append(out, p)
		}
	}
	return out
}

func newService(t *testing.T, f *fakeDAM, transfer config.TransferConfig, opts ...upload.Option) *upload.UploadService {
	t.Helper()
	conf := config.Config{
		Core:     config.CoreConfig{BaseURL: f.server.URL},
		IMS:      config.IMSConfig{ClientID: "client-1"},
		Transfer: transfer,
	}
	opts = append([]upload.Option{upload.WithLogger(log.NewLogger())}, opts...)
	svc, err := upload.NewUploadService(context.Background(), conf, staticToken("tok"), opts...)
	require.NoError(t, err)
	return svc
}

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

func boolPtr(b bool) *bool { return &b }

func TestUploadSmallAndChunkedFiles(t *testing.T) {
	f := newFakeDAM(t)
	reg := prometheus.NewRegistry()
	svc := newService(t, f, config.TransferConfig{}, upload.WithMetrics(upload.MustNewMetrics(reg)))

	dir := t.TempDir()
	a := writeFile(t, dir, "a.jpg", 1000)
	b := writeFile(t, dir, "b.png", 5_000_000)

	var mu sync.Mutex
	progress := map[string]int{}
	done := map[string]int64{}
	hook := &config.ProgressHook{
		OnProgress: func(key string, _, _ int64) {
			mu.Lock()
			progress[key]++
			mu.Unlock()
		},
		OnDone: func(key string, total int64, _ time.Duration) {
			mu.Lock()
			done[key] = total
			mu.Unlock()
		},
	}

	result, err := svc.Upload(context.Background(), upload.UploadRequest{
		Files:     []string{a, b},
		Container: container,
		Options:   upload.UploadOptions{Replace: boolPtr(true), Progress: hook},
	})
	require.NoError(t, err)

	require.Len(t, result, 2)
	assert.True(t, result.AllOK())
	assert.Equal(t, "a.jpg", result[0].FileName)
	assert.Equal(t, "b.png", result[1].FileName)
	assert.Contains(t, string(result[1].Payload), "/content/dam/brand/campaign/b.png")

	require.Len(t, f.initiates, 1)
	assert.Equal(t, []string{"a.jpg", "b.png"}, f.initiates[0]["fileName"])
	assert.Equal(t, []string{"1000", "5000000"}, f.initiates[0]["fileSize"])

	putsA := f.putsFor("a.jpg")
	require.Len(t, putsA, 1)
	assert.Equal(t, 0, putsA[0].Index)
	assert.Equal(t, 1000, putsA[0].Size)

	putsB := f.putsFor("b.png")
	require.Len(t, putsB, 3)
	for i, want := range []int{2_000_000, 2_000_000, 1_000_000} {
		assert.Equal(t, i, putsB[i].Index)
		assert.Equal(t, want, putsB[i].Size)
		assert.EqualValues(t, want, putsB[i].ContentLength)
	}
	for _, p := range append(putsA, putsB...) {
		assert.Equal(t, "BlockBlob", p.BlobType)
		assert.Equal(t, "application/octet-stream", p.ContentType)
		assert.Empty(t, p.Auth, "pre-signed URIs get no bearer token")
	}

	require.Len(t, f.completes, 2)
	assert.Equal(t, "a.jpg", f.completes[0].Get("fileName"))
	assert.Equal(t, "image/jpeg", f.completes[0].Get("mimeType"))
	assert.Equal(t, "token-a.jpg", f.completes[0].Get("uploadToken"))
	assert.Equal(t, "1000", f.completes[0].Get("fileSize"))
	assert.Equal(t, "true", f.completes[0].Get("replace"))
	assert.False(t, f.completes[0].Has("createVersion"))
	assert.Equal(t, "image/png", f.completes[1].Get("mimeType"))

	assert.Equal(t, map[string]int{"a.jpg": 1, "b.png": 3}, progress)
	assert.Equal(t, map[string]int64{"a.jpg": 1000, "b.png": 5_000_000}, done)

	assert.Equal(t, 4.0, counterValue(t, reg, "dam_upload_parts_total"))
	assert.Equal(t, 5_001_000.0, counterValue(t, reg, "dam_upload_bytes_total"))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestUploadCreatesMissingFolderOnce(t *testing.T) {
	f := newFakeDAM(t)
	f.initiate404 = 1
	svc := newService(t, f, config.TransferConfig{})
	a := writeFile(t, t.TempDir(), "a.jpg", 10)

	result, err := svc.Upload(context.Background(), upload.UploadRequest{Files: []string{a}, Container: container})
	require.NoError(t, err)
	assert.True(t, result.AllOK())

	assert.Len(t, f.initiates, 2)
	require.Len(t, f.folders, 1)
	assert.Equal(t, "assetFolder", f.folders[0]["class"])
	assert.Equal(t, map[string]interface{}{"name": "campaign", "title": "campaign"}, f.folders[0]["properties"])
}

func TestUploadSwallowsExistingFolderConflict(t *testing.T) {
	f := newFakeDAM(t)
	f.initiate404 = 1
	f.folderReply = func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"properties":{"status.message":"already exists"}}`)
	}
	svc := newService(t, f, config.TransferConfig{})
	a := writeFile(t, t.TempDir(), "a.jpg", 10)

	result, err := svc.Upload(context.Background(), upload.UploadRequest{Files: []string{a}, Container: container})
	require.NoError(t, err)
	assert.True(t, result.AllOK())
	assert.Len(t, f.initiates, 2)
}

func TestUploadSecondNotFoundPropagates(t *testing.T) {
	f := newFakeDAM(t)
	f.initiate404 = 100
	svc := newService(t, f, config.TransferConfig{})
	a := writeFile(t, t.TempDir(), "a.jpg", 10)

	_, err := svc.Upload(context.Background(), upload.UploadRequest{Files: []string{a}, Container: container})

	require.ErrorIs(t, err, upload.ErrContainerNotFound)
	var uerr *upload.UploadError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, upload.StageInitiating, uerr.Stage)
	assert.Len(t, f.initiates, 2)
	assert.Len(t, f.folders, 1)
	assert.Empty(t, f.puts)
}

func TestUploadMissingParentIsFatal(t *testing.T) {
	f := newFakeDAM(t)
	f.initiate404 = 1
	f.folderReply = func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"properties":{"status.message":"Parent does not exist"}}`)
	}
	svc := newService(t, f, config.TransferConfig{})
	a := writeFile(t, t.TempDir(), "a.jpg", 10)

	_, err := svc.Upload(context.Background(), upload.UploadRequest{Files: []string{a}, Container: container})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parent folder does not exist")
	assert.Len(t, f.initiates, 1)
}

func TestCompletionFailureIsPerFile(t *testing.T) {
	f := newFakeDAM(t)
	f.failComplete["b.png"] = http.StatusBadRequest
	svc := newService(t, f, config.TransferConfig{})
	dir := t.TempDir()
	files := []string{writeFile(t, dir, "a.png", 10), writeFile(t, dir, "b.png", 20), writeFile(t, dir, "c.png", 30)}

	result, err := svc.Upload(context.Background(), upload.UploadRequest{Files: files, Container: container})
	require.NoError(t, err)

	require.Len(t, result, 3)
	assert.True(t, result[0].OK())
	assert.False(t, result[1].OK())
	assert.True(t, result[2].OK())
	assert.Equal(t, "b.png", result[1].FileName)

	var cerr *upload.CompletionError
	require.ErrorAs(t, result[1].Err, &cerr)
	var perr *config.ProviderError
	require.ErrorAs(t, result[1].Err, &perr)
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
	assert.Equal(t, "asset is locked", perr.Message)

	assert.Len(t, f.completes, 3)
	assert.Len(t, result.Failed(), 1)
}

func TestUploadURIShortfallFailsBatch(t *testing.T) {
	f := newFakeDAM(t)
	f.uriCount = 2
	svc := newService(t, f, config.TransferConfig{})
	b := writeFile(t, t.TempDir(), "b.png", 5_000_000)

	_, err := svc.Upload(context.Background(), upload.UploadRequest{Files: []string{b}, Container: container})

	require.ErrorIs(t, err, upload.ErrNotEnoughURIs)
	var uerr *upload.UploadError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, upload.StageUploadingParts, uerr.Stage)
	assert.Equal(t, "b.png", uerr.FileName)
	assert.Empty(t, f.puts)
	assert.Empty(t, f.completes)
}

func TestPartFailureStopsRemainingChunks(t *testing.T) {
	f := newFakeDAM(t)
	f.failPut = func(file string, index int) int {
		if index == 1 {
			return http.StatusForbidden
		}
		return 0
	}
	svc := newService(t, f, config.TransferConfig{})
	b := writeFile(t, t.TempDir(), "b.png", 5_000_000)

	_, err := svc.Upload(context.Background(), upload.UploadRequest{Files: []string{b}, Container: container})

	var perr *upload.PartUploadError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, perr.Part)
	assert.Equal(t, http.StatusForbidden, perr.StatusCode)
	assert.Len(t, f.putsFor("b.png"), 2)
	assert.Empty(t, f.completes)
}

func TestValidationHappensBeforeAnyCall(t *testing.T) {
	f := newFakeDAM(t)
	svc := newService(t, f, config.TransferConfig{})
	a := writeFile(t, t.TempDir(), "a.jpg", 10)

	_, err := svc.Upload(context.Background(), upload.UploadRequest{
		Files:     []string{a, filepath.Join(t.TempDir(), "missing.png")},
		Container: container,
	})

	var verr *upload.ValidationError
	require.ErrorAs(t, err, &verr)
	var uerr *upload.UploadError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, upload.StageValidating, uerr.Stage)

	_, err = svc.Upload(context.Background(), upload.UploadRequest{Files: []string{a}, Container: "/"})
	require.ErrorAs(t, err, &verr)

	_, err = svc.Upload(context.Background(), upload.UploadRequest{Container: container})
	require.True(t, errors.Is(err, upload.ErrNoFiles))

	assert.Zero(t, f.total)
}

func TestUnreadableFileFailsValidation(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	f := newFakeDAM(t)
	svc := newService(t, f, config.TransferConfig{})
	a := writeFile(t, t.TempDir(), "a.jpg", 10)
	require.NoError(t, os.Chmod(a, 0o000))
	t.Cleanup(func() { _ = os.Chmod(a, 0o600) })

	_, err := svc.Upload(context.Background(), upload.UploadRequest{Files: []string{a}, Container: container})

	var verr *upload.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "a.jpg", verr.File)
	assert.ErrorIs(t, err, os.ErrPermission)
	var uerr *upload.UploadError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, upload.StageValidating, uerr.Stage)
	assert.Zero(t, f.total)
}

func TestConcurrentFilesKeepInputOrder(t *testing.T) {
	f := newFakeDAM(t)
	f.maxPartSize = 100
	svc := newService(t, f, config.TransferConfig{FileConcurrency: 3})
	dir := t.TempDir()
	var files []string
	for i := 0; i < 5; i++ {
		files = append(files, writeFile(t, dir, fmt.Sprintf("f%d.gif", i), 250+i))
	}

	result, err := svc.Upload(context.Background(), upload.UploadRequest{Files: files, Container: container})
	require.NoError(t, err)

	require.Len(t, result, 5)
	for i, o := range result {
		assert.Equal(t, fmt.Sprintf("f%d.gif", i), o.FileName)
		assert.True(t, o.OK())

		puts := f.putsFor(o.FileName)
		require.Len(t, puts, 3)
		for j, p := range puts {
			assert.Equal(t, j, p.Index, "chunks of one file stay in order")
		}
	}
}

func TestUploadDirectoryAndGlob(t *testing.T) {
	f := newFakeDAM(t)
	svc := newService(t, f, config.TransferConfig{})
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested", "deep"), 0o755))
	writeFile(t, dir, "nested/one.png", 5)
	writeFile(t, dir, "nested/deep/two.png", 6)
	writeFile(t, dir, "nested/deep/skip.txt", 7)
	other := t.TempDir()
	writeFile(t, other, "three.svg", 8)

	result, err := svc.Upload(context.Background(), upload.UploadRequest{
		Files:     []string{filepath.Join(dir, "nested", "**", "*.png"), other},
		Container: container,
	})
	require.NoError(t, err)

	var names []string
	for _, o := range result {
		names = append(names, o.FileName)
	}
	assert.Equal(t, []string{"two.png", "one.png", "three.svg"}, names)
}

func TestDuplicateNamesAreRejected(t *testing.T) {
	f := newFakeDAM(t)
	svc := newService(t, f, config.TransferConfig{})
	a := writeFile(t, t.TempDir(), "same.png", 5)
	b := writeFile(t, t.TempDir(), "same.png", 5)

	_, err := svc.Upload(context.Background(), upload.UploadRequest{Files: []string{a, b}, Container: container})
	var verr *upload.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "duplicate")
	assert.Zero(t, f.total)
}
