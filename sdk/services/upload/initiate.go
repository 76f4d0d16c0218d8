// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/config"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/services/assets"
)

type initiateStatus int

const (
	initiated initiateStatus = iota
	containerMissing
)

type initiateResult struct {
	status     initiateStatus
	initiation Initiation
}

// Initiate reserves upload slots for files in container. When the provider reports
// the container missing, the folder is created and initiation is retried exactly once.
func (s *UploadService) Initiate(ctx context.Context, files []FileInfo, container string) (Initiation, error) {
	return s.initiate(ctx, files, container, func(Stage) {})
}

func (s *UploadService) initiate(ctx context.Context, files []FileInfo, container string, enter func(Stage)) (Initiation, error) {
	container = strings.Trim(container, "/")
	if len(files) == 0 {
		return Initiation{}, &ValidationError{Err: ErrNoFiles}
	}
	if container == "" {
		return Initiation{}, &ValidationError{Err: errors.New("missing target folder")}
	}

	res, err := s.initiateOnce(ctx, files, container)
	if err != nil {
		return Initiation{}, err
	}
	if res.status == initiated {
		return res.initiation, nil
	}

	s.logger.Warnf("Folder %s not found, creating it", container)
	enter(StageCreatingContainer)
	err = s.createContainer(ctx, container)
	enter(StageInitiating)
	if err != nil {
		return Initiation{}, err
	}
	s.metrics.containerCreated()

	res, err = s.initiateOnce(ctx, files, container)
	if err != nil {
		return Initiation{}, err
	}
	if res.status == containerMissing {
		return Initiation{}, fmt.Errorf("%w after creating it: %s", ErrContainerNotFound, container)
	}
	return res.initiation, nil
}

func (s *UploadService) initiateOnce(ctx context.Context, files []FileInfo, container string) (initiateResult, error) {
	form := url.Values{}
	for _, f := range files {
		form.Add("fileName", f.Name)
		form.Add("fileSize", strconv.FormatInt(f.Size, 10))
	}

	endpoint := s.http.BuildURL("content/dam/"+container+".initiateUpload.json", nil)
	body, status, err := s.http.Do(ctx, http.MethodPost, endpoint, []byte(form.Encode()),
		map[string]string{"Content-Type": config.ContentTypeForm})
	if status == http.StatusNotFound {
		return initiateResult{status: containerMissing}, nil
	}
	if err != nil {
		return initiateResult{}, fmt.Errorf("initiate upload in %s: %w", container, err)
	}

	var resp initiateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return initiateResult{}, fmt.Errorf("initiate upload in %s: invalid response: %w", container, err)
	}
	if len(resp.Files) != len(files) {
		return initiateResult{}, fmt.Errorf("initiate upload in %s: %d slots for %d files", container, len(resp.Files), len(files))
	}
	if resp.CompleteURI == "" {
		return initiateResult{}, fmt.Errorf("initiate upload in %s: response has no completeURI", container)
	}

	slots := make([]UploadSlot, len(files))
	for i, f := range files {
		rf := resp.Files[i]
		slots[i] = UploadSlot{
			FileName:    f.Name,
			FileSize:    f.Size,
			MimeType:    MimeType(f.Name),
			UploadURIs:  rf.UploadURIs,
			UploadToken: rf.UploadToken,
			MinPartSize: rf.MinPartSize,
			MaxPartSize: rf.MaxPartSize,
		}
	}
	return initiateResult{status: initiated, initiation: Initiation{Slots: slots, CompleteURI: resp.CompleteURI}}, nil
}

// createContainer names the folder after the last path segment; an existing folder is fine.
func (s *UploadService) createContainer(ctx context.Context, container string) error {
	name := path.Base(container)
	err := s.folders.CreateFolder(ctx, name, name, container)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, assets.ErrFolderExists):
		s.logger.Debugf("[upload] folder %s already exists", container)
		return nil
	default:
		return fmt.Errorf("create folder %s: %w", container, err)
	}
}
