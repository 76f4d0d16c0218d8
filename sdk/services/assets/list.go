// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// List returns one page of the folder listing as the provider sends it (Siren JSON).
func (s *AssetService) List(ctx context.Context, req ListRequest) ([]byte, int, error) {
	params := url.Values{}
	if req.Offset > 0 {
		params.Set("offset", strconv.Itoa(req.Offset))
	}
	if req.Limit > 0 {
		params.Set("limit", strconv.Itoa(req.Limit))
	}
	endpoint := s.http.BuildURL("api/assets/"+cleanPath(req.Path)+".json", params)
	return s.http.Do(ctx, http.MethodGet, endpoint, nil, nil)
}

// ListAllPages follows srn:paging until every entity of the folder is collected.
func (s *AssetService) ListAllPages(ctx context.Context, path string, pageSize int) ([]interface{}, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	var entities []interface{}
	offset := 0
	for {
		body, _, err := s.List(ctx, ListRequest{Path: path, Offset: offset, Limit: pageSize})
		if err != nil {
			return nil, err
		}

		var page struct {
			Properties map[string]interface{} `json:"properties"`
			Entities   []interface{}          `json:"entities"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("json parsing failed: %w", err)
		}
		entities = append(entities, page.Entities...)

		total := len(entities)
		if paging, ok := page.Properties["srn:paging"].(map[string]interface{}); ok {
			if t, ok := paging["total"].(float64); ok {
				total = int(t)
			}
		}
		offset += len(page.Entities)
		if len(page.Entities) == 0 || offset >= total {
			break
		}
	}
	return entities, nil
}
