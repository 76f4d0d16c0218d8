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
	"os"

	"sigs.k8s.io/yaml"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/utils"
)

// GetMetadata returns the full JCR tree of an asset (.infinity.json).
func (s *AssetService) GetMetadata(ctx context.Context, path string) ([]byte, int, error) {
	if cleanPath(path) == "" {
		return nil, 0, errors.New("path is required")
	}
	endpoint := s.http.BuildURL("content/dam/"+cleanPath(path)+".infinity.json", nil)
	return s.http.Do(ctx, http.MethodGet, endpoint, nil, nil)
}

// UpdateMetadata PUTs new properties to the Assets API.
func (s *AssetService) UpdateMetadata(ctx context.Context, req UpdateMetadataRequest) ([]byte, error) {
	if cleanPath(req.Path) == "" {
		return nil, errors.New("path is required")
	}

	body := req.Body
	if req.FilePath != "" {
		data, err := os.ReadFile(req.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read metadata file: %w", err)
		}
		// JSON is valid YAML
		body, err = yaml.YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("yaml to json failed: %w", err)
		}
	}
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("metadata must be a JSON object: %w", err)
	}
	if _, ok := payload["properties"]; !ok {
		payload = map[string]interface{}{"class": "asset", "properties": payload}
	}

	if req.Merge {
		current, err := s.currentProperties(ctx, req.Path)
		if err != nil {
			return nil, err
		}
		if props, ok := payload["properties"].(map[string]interface{}); ok {
			payload["properties"] = utils.MergeMaps(current, props, nil)
		}
	}

	out, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal: %w", err)
	}

	endpoint := s.http.BuildURL("api/assets/"+cleanPath(req.Path), nil)
	resp, status, err := s.http.Do(ctx, http.MethodPut, endpoint, out, nil)
	if err != nil {
		return resp, fmt.Errorf("update failed (status %d): %w", status, err)
	}
	return resp, nil
}

func (s *AssetService) currentProperties(ctx context.Context, path string) (map[string]interface{}, error) {
	body, _, err := s.http.Do(ctx, http.MethodGet, s.http.BuildURL("api/assets/"+cleanPath(path)+".json", nil), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch current metadata: %w", err)
	}
	var entity struct {
		Properties map[string]interface{} `json:"properties"`
	}
	if err := json.Unmarshal(body, &entity); err != nil {
		return nil, fmt.Errorf("json parsing failed: %w", err)
	}
	if entity.Properties == nil {
		return map[string]interface{}{}, nil
	}
	return entity.Properties, nil
}
