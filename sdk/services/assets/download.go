// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package assets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/melbahja/got"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/config"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/utils"
)

func (s *AssetService) renditionURL(assetPath string) string {
	return s.http.BuildURL("api/assets/"+cleanPath(assetPath)+"/renditions/original", nil)
}

// OpenDownload streams the original rendition. The caller closes the body.
func (s *AssetService) OpenDownload(ctx context.Context, assetPath string) (*http.Response, error) {
	if cleanPath(assetPath) == "" {
		return nil, errors.New("path is required")
	}
	return s.http.Stream(ctx, http.MethodGet, s.renditionURL(assetPath))
}

// Download saves the original rendition to a local path or to s3://bucket/key.
// A directory destination (existing, or ending in "/") receives NewFileName or the asset name.
func (s *AssetService) Download(ctx context.Context, req DownloadRequest) (*DownloadInfo, error) {
	assetPath := cleanPath(req.Path)
	if assetPath == "" {
		return nil, errors.New("path is required")
	}
	name := req.NewFileName
	if name == "" {
		name = path.Base(assetPath)
	}
	dest := req.Destination
	if dest == "" {
		dest = "."
	}

	p, err := utils.ParsePath(dest)
	if err != nil {
		return nil, err
	}
	if p.IsRemote() {
		return s.downloadToS3(ctx, assetPath, p, name)
	}

	target := p.Local
	if info, err := os.Stat(target); (err == nil && info.IsDir()) || strings.HasSuffix(dest, "/") {
		target = filepath.Join(target, name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	s.logger.Infof("Downloading %s → %s", assetPath, target)
	downloader := got.New()
	downloader.Client = s.http.Client()
	if err := downloader.Do(got.NewDownload(ctx, s.renditionURL(assetPath), target)); err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	s.logger.Donef("Downloaded %s (%s)", target, units.HumanSize(float64(info.Size())))
	return &DownloadInfo{Filename: filepath.Base(target), Size: info.Size(), Path: target}, nil
}

func (s *AssetService) downloadToS3(ctx context.Context, assetPath string, p *utils.ParsedPath, name string) (*DownloadInfo, error) {
	if s.s3 == nil {
		return nil, errors.New("s3 is not configured")
	}
	key := p.Key
	if key == "" || strings.HasSuffix(key, "/") {
		key += name
	}

	resp, err := s.OpenDownload(ctx, assetPath)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var written int64
	hook := &config.ProgressHook{
		OnDone: func(_ string, total int64, took time.Duration) {
			written = total
			s.logger.Donef("Copied %s to s3://%s/%s in %s", assetPath, p.Bucket, key, took.Round(time.Millisecond))
		},
	}
	if err := s.s3.PutStream(ctx, p.Bucket, key, resp.Header.Get("Content-Type"), resp.Body, resp.ContentLength, hook); err != nil {
		return nil, err
	}
	return &DownloadInfo{Filename: path.Base(key), Size: written, Path: fmt.Sprintf("s3://%s/%s", p.Bucket, key)}, nil
}
