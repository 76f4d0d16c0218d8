// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package assets

// ListRequest lists the children of a folder. Limit 0 keeps the provider default.
type ListRequest struct {
	Path   string
	Offset int
	Limit  int
}

type SearchRequest struct {
	Property string
	Value    string
	// Root defaults to /content/dam.
	Root string
}

// UpdateMetadataRequest carries the new properties as JSON Body or as a YAML/JSON file.
// With Merge the current properties are fetched and overlaid with the new ones.
type UpdateMetadataRequest struct {
	Path     string
	Body     []byte
	FilePath string
	Merge    bool
}

type CopyRequest struct {
	SourcePath string `json:"sourcePath"`
	TargetPath string `json:"targetPath"`
	NewName    string `json:"newName"`
	Overwrite  bool   `json:"overwrite"`
}

type DownloadRequest struct {
	Path string
	// Destination is a local file or directory, or an s3://bucket/key URI.
	Destination string
	NewFileName string
}

type DownloadInfo struct {
	Filename string `json:"filename" yaml:"filename"`
	Size     int64  `json:"size"     yaml:"size"`
	Path     string `json:"path"     yaml:"path"`
}
