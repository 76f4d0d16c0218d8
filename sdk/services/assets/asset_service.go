// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package assets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/config"
)

// AssetService proxies the AEM Assets HTTP API.
type AssetService struct {
	http   config.CoreHTTP
	s3     *config.S3Client
	logger log.Logger
}

func NewAssetService(ctx context.Context, conf config.Config, tokens config.TokenProvider, logger log.Logger) (*AssetService, error) {
	if conf.Core.BaseURL == "" {
		return nil, errors.New("invalid core config: missing AEM host")
	}
	if logger == nil {
		logger = log.NewLogger()
	}

	s := NewAssetServiceWithCore(config.NewHTTPCore(config.NewRetryableClient(logger, conf.Core.RetryMax), tokens, conf), logger)
	if conf.S3.Region != "" || conf.S3.EndpointURL != "" {
		s3c, err := config.NewS3Client(ctx, conf.S3)
		if err != nil {
			return nil, fmt.Errorf("S3 init failed: %w", err)
		}
		s.s3 = s3c
	}
	return s, nil
}

// NewAssetServiceWithCore builds a service on an existing CoreHTTP.
func NewAssetServiceWithCore(httpc config.CoreHTTP, logger log.Logger) *AssetService {
	if logger == nil {
		logger = log.NewLogger()
	}
	return &AssetService{http: httpc, logger: logger}
}

func cleanPath(p string) string {
	return strings.Trim(p, "/")
}
