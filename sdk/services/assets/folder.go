// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/config"
)

var (
	ErrFolderExists   = errors.New("folder already exists")
	ErrParentNotFound = errors.New("parent folder does not exist")
)

// CreateFolder creates an assetFolder through the Assets API under direction.
// A 409 is reported as ErrFolderExists or ErrParentNotFound depending on the provider message.
func (s *AssetService) CreateFolder(ctx context.Context, name, title, direction string) error {
	if name == "" || cleanPath(direction) == "" {
		return errors.New("name and direction are required")
	}
	if title == "" {
		title = name
	}

	body, err := json.Marshal(map[string]interface{}{
		"class": "assetFolder",
		"properties": map[string]string{
			"name":  name,
			"title": title,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	endpoint := s.http.BuildURL("api/assets/"+cleanPath(direction)+"/*", nil)
	_, status, err := s.http.Do(ctx, http.MethodPost, endpoint, body, nil)
	if err == nil {
		s.logger.Infof("Folder created: %s", name)
		return nil
	}

	if status == http.StatusConflict {
		var perr *config.ProviderError
		if errors.As(err, &perr) && strings.Contains(strings.ToLower(perr.Message), "parent does not exist") {
			return fmt.Errorf("%w: %s", ErrParentNotFound, direction)
		}
		return fmt.Errorf("%w: %s: %w", ErrFolderExists, direction, err)
	}
	return fmt.Errorf("create folder failed (status %d): %w", status, err)
}
