// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/config"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/services/assets"
)

// ContainerCreator creates the target folder when initiation reports it missing.
type ContainerCreator interface {
	CreateFolder(ctx context.Context, name, title, direction string) error
}

type UploadService struct {
	http       config.CoreHTTP
	partClient *retryablehttp.Client
	folders    ContainerCreator
	s3         *config.S3Client
	transfer   config.TransferConfig
	logger     log.Logger
	metrics    *Metrics
}

type Option func(*UploadService)

func WithLogger(l log.Logger) Option {
	return func(s *UploadService) { s.logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(s *UploadService) { s.metrics = m }
}

func WithS3Client(c *config.S3Client) Option {
	return func(s *UploadService) { s.s3 = c }
}

func WithContainerCreator(c ContainerCreator) Option {
	return func(s *UploadService) { s.folders = c }
}

// WithPartClient replaces the client used for pre-signed part uploads.
func WithPartClient(c *retryablehttp.Client) Option {
	return func(s *UploadService) { s.partClient = c }
}

func NewUploadService(ctx context.Context, conf config.Config, tokens config.TokenProvider, opts ...Option) (*UploadService, error) {
	if conf.Core.BaseURL == "" {
		return nil, errors.New("invalid core config: missing AEM host")
	}

	s := &UploadService{
		transfer: conf.Transfer,
		logger:   log.NewLogger(),
	}
	for _, o := range opts {
		o(s)
	}

	s.http = config.NewHTTPCore(config.NewRetryableClient(s.logger, conf.Core.RetryMax), tokens, conf)
	if s.partClient == nil {
		s.partClient = config.NewRetryableClient(s.logger, conf.Transfer.PartRetryMax)
	}
	if s.folders == nil {
		s.folders = assets.NewAssetServiceWithCore(s.http, s.logger)
	}
	if s.s3 == nil && (conf.S3.Region != "" || conf.S3.EndpointURL != "") {
		s3c, err := config.NewS3Client(ctx, conf.S3)
		if err != nil {
			return nil, fmt.Errorf("S3 init failed: %w", err)
		}
		s.s3 = s3c
	}
	return s, nil
}
