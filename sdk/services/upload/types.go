// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"encoding/json"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/config"
)

// Stage of a batch upload.
type Stage string

const (
	StageValidating        Stage = "validating"
	StageInitiating        Stage = "initiating"
	StageCreatingContainer Stage = "creating-container"
	StageUploadingParts    Stage = "uploading-parts"
	StageCompleting        Stage = "completing"
	StageDone              Stage = "done"
	StageFailed            Stage = "failed"
)

// FileInfo is what the provider needs to reserve an upload slot.
type FileInfo struct {
	Name string
	Size int64
}

// UploadSlot is the provider-issued plan for one file. Immutable once initiated.
type UploadSlot struct {
	FileName    string   `json:"fileName"`
	FileSize    int64    `json:"fileSize"`
	MimeType    string   `json:"mimeType"`
	UploadURIs  []string `json:"uploadURIs"`
	UploadToken string   `json:"uploadToken"`
	MinPartSize int64    `json:"minPartSize"`
	MaxPartSize int64    `json:"maxPartSize"`
}

type Initiation struct {
	Slots       []UploadSlot
	CompleteURI string
}

// UploadOptions are forwarded to completion; nil pointers send nothing.
type UploadOptions struct {
	Replace        *bool
	CreateVersion  *bool
	VersionLabel   string
	VersionComment string

	// Progress receives per-file part events.
	Progress *config.ProgressHook
}

type UploadRequest struct {
	// Files are local paths, directories, doublestar globs or s3://bucket/key URIs.
	Files     []string
	Container string
	Options   UploadOptions
}

// CompleteFile is one entry of the completion step.
type CompleteFile struct {
	FileName    string
	MimeType    string
	UploadToken string
	FileSize    int64
}

// FileOutcome is the completion result of a single file.
type FileOutcome struct {
	FileName string
	Payload  json.RawMessage
	Err      error
}

func (o FileOutcome) OK() bool { return o.Err == nil }

func (o FileOutcome) MarshalJSON() ([]byte, error) {
	switch {
	case o.Err != nil:
		return json.Marshal(struct {
			FileName string `json:"fileName"`
			Error    string `json:"error"`
		}{o.FileName, o.Err.Error()})
	case len(o.Payload) == 0:
		return json.Marshal(struct {
			FileName string `json:"fileName"`
		}{o.FileName})
	default:
		return o.Payload, nil
	}
}

// BatchResult holds one outcome per input file, in input order.
type BatchResult []FileOutcome

func (r BatchResult) Failed() []FileOutcome {
	var out []FileOutcome
	for _, o := range r {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

func (r BatchResult) AllOK() bool { return len(r.Failed()) == 0 }

type initiateResponse struct {
	CompleteURI string `json:"completeURI"`
	Files       []struct {
		FileName    string   `json:"fileName"`
		MimeType    string   `json:"mimeType"`
		UploadToken string   `json:"uploadToken"`
		UploadURIs  []string `json:"uploadURIs"`
		MinPartSize int64    `json:"minPartSize"`
		MaxPartSize int64    `json:"maxPartSize"`
	} `json:"files"`
}
