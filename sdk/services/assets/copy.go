// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package assets

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

const methodCopy = "COPY"

// Copy duplicates an asset or folder under TargetPath, optionally renaming it.
func (s *AssetService) Copy(ctx context.Context, req CopyRequest) ([]byte, error) {
	src := cleanPath(req.SourcePath)
	if src == "" || cleanPath(req.TargetPath) == "" {
		return nil, errors.New("sourcePath and targetPath are required")
	}
	name := req.NewName
	if name == "" {
		name = path.Base(src)
	}
	if strings.Contains(name, "/") {
		return nil, errors.New("newName must not contain '/'")
	}

	overwrite := "F"
	if req.Overwrite {
		overwrite = "T"
	}
	headers := map[string]string{
		"X-Destination": s.http.BuildURL("api/assets/"+cleanPath(req.TargetPath)+"/"+name, nil),
		"X-Overwrite":   overwrite,
	}

	body, status, err := s.http.Do(ctx, methodCopy, s.http.BuildURL("api/assets/"+src, nil), nil, headers)
	if err != nil {
		return body, fmt.Errorf("copy failed (status %d): %w", status, err)
	}
	s.logger.Infof("Copied %s to %s/%s", src, cleanPath(req.TargetPath), name)
	return body, nil
}
