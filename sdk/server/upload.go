// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/services/upload"
)

const formFieldFiles = "files"

// formFileSource reads parts straight from a multipart upload, in memory or spooled by net/http.
type formFileSource struct {
	header *multipart.FileHeader

	mu sync.Mutex
	f  multipart.File
}

func (s *formFileSource) Name() string { return filepath.Base(s.header.Filename) }

func (s *formFileSource) Size(context.Context) (int64, error) { return s.header.Size, nil }

func (s *formFileSource) Part(_ context.Context, offset, length int64) (io.ReadSeeker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		f, err := s.header.Open()
		if err != nil {
			return nil, err
		}
		s.f = f
	}
	return io.NewSectionReader(s.f, offset, length), nil
}

func (s *formFileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

type fileResult struct {
	FileName string      `json:"fileName"`
	Success  bool        `json:"success"`
	Data     interface{} `json:"data,omitempty"`
	Error    string      `json:"error,omitempty"`
}

func (s *Server) uploadFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "expected a multipart form: "+err.Error())
		return
	}
	headers := form.File[formFieldFiles]
	if len(headers) == 0 {
		badRequest(c, "no files provided")
		return
	}
	defer func() { _ = form.RemoveAll() }()

	opts, err := uploadOptions(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	sources := make([]upload.Source, len(headers))
	for i, h := range headers {
		sources[i] = &formFileSource{header: h}
	}
	defer func() {
		for _, src := range sources {
			_ = src.Close()
		}
	}()

	result, err := s.deps.Uploads.UploadSources(c.Request.Context(), sources, c.Param("targetFolder"), opts)
	if err != nil {
		abortWithError(c, "Failed to upload files", err)
		return
	}

	files := make([]fileResult, len(result))
	for i, o := range result {
		files[i] = fileResult{FileName: o.FileName, Success: o.OK()}
		if o.OK() {
			files[i].Data = rawOrNil(o.Payload)
		} else {
			files[i].Error = o.Err.Error()
		}
	}

	if result.AllOK() {
		c.JSON(http.StatusOK, APIResponse{Success: true, Message: "Files uploaded", Data: files})
		return
	}
	c.JSON(http.StatusMultiStatus, APIResponse{
		Success: false,
		Message: strconv.Itoa(len(result.Failed())) + " of " + strconv.Itoa(len(result)) + " files failed to complete",
		Data:    files,
	})
}

func uploadOptions(c *gin.Context) (upload.UploadOptions, error) {
	opts := upload.UploadOptions{
		VersionLabel:   c.Query("versionLabel"),
		VersionComment: c.Query("versionComment"),
	}
	for key, dst := range map[string]**bool{"replace": &opts.Replace, "createVersion": &opts.CreateVersion} {
		raw, ok := c.GetQuery(key)
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, &upload.ValidationError{Err: err}
		}
		*dst = &v
	}
	return opts, nil
}

func rawOrNil(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}
