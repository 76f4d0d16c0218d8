// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package assets

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

// Search runs a QueryBuilder property match over dam:Asset nodes, without a result limit.
func (s *AssetService) Search(ctx context.Context, req SearchRequest) ([]byte, int, error) {
	if req.Property == "" || req.Value == "" {
		return nil, 0, errors.New("property and value are required")
	}
	root := req.Root
	if root == "" {
		root = "/content/dam"
	}

	params := url.Values{
		"path":           {root},
		"type":           {"dam:Asset"},
		"property":       {req.Property},
		"property.value": {req.Value},
		"p.limit":        {"-1"},
	}
	return s.http.Do(ctx, http.MethodGet, s.http.BuildURL("bin/querybuilder.json", params), nil, nil)
}
