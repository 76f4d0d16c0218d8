// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func getIniPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return IniName
	}
	return filepath.Join(home, IniName)
}

// ParsedPath is a destination or source location, either local or s3://bucket/key.
type ParsedPath struct {
	Scheme string
	Bucket string
	Key    string
	Local  string
}

func (p *ParsedPath) IsRemote() bool { return p.Scheme == "s3" }

func (p *ParsedPath) String() string {
	if p.IsRemote() {
		return fmt.Sprintf("s3://%s/%s", p.Bucket, p.Key)
	}
	return p.Local
}

// ParsePath recognizes s3:// (and s3a://) URIs; anything else is a local path.
func ParsePath(path string) (*ParsedPath, error) {
	for _, scheme := range []string{"s3://", "s3a://"} {
		if !strings.HasPrefix(path, scheme) {
			continue
		}
		rest := strings.TrimPrefix(path, scheme)
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return nil, fmt.Errorf("invalid s3 path %q: missing bucket", path)
		}
		return &ParsedPath{Scheme: "s3", Bucket: bucket, Key: key}, nil
	}
	if strings.Contains(path, "://") {
		return nil, fmt.Errorf("unsupported scheme in %q", path)
	}
	return &ParsedPath{Scheme: "file", Local: path}, nil
}

// SplitList splits comma or whitespace separated values, dropping empties.
func SplitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
}

func GetStringValue(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func PrettyJSON(b []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "  "); err != nil {
		return string(b)
	}
	return out.String()
}
