// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package assets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Delete removes an asset or a folder with its content.
func (s *AssetService) Delete(ctx context.Context, path string) error {
	if cleanPath(path) == "" {
		return errors.New("path is required")
	}
	_, status, err := s.http.Do(ctx, http.MethodDelete, s.http.BuildURL("api/assets/"+cleanPath(path), nil), nil, nil)
	if err != nil {
		return fmt.Errorf("delete failed (status %d): %w", status, err)
	}
	return nil
}

// DeleteDiscarded drops the cq:discarded node kept under the asset's jcr:content.
func (s *AssetService) DeleteDiscarded(ctx context.Context, path string) error {
	if cleanPath(path) == "" {
		return errors.New("path is required")
	}
	endpoint := s.http.BuildURL("content/dam/"+cleanPath(path)+"/jcr:content/cq:discarded", nil)
	_, status, err := s.http.Do(ctx, http.MethodDelete, endpoint, nil, nil)
	if err != nil {
		return fmt.Errorf("delete discarded failed (status %d): %w", status, err)
	}
	return nil
}
