// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrContainerNotFound is returned when initiation still answers 404 after the folder was created.
	ErrContainerNotFound = errors.New("target folder not found")
	ErrNotEnoughURIs     = errors.New("provider issued fewer upload URIs than parts")
	ErrNoFiles           = errors.New("no files to upload")
)

// ValidationError is raised before any network call.
type ValidationError struct {
	File string
	Err  error
}

func (e *ValidationError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("invalid upload request: %v", e.Err)
	}
	return fmt.Sprintf("invalid upload input %s: %v", e.File, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// PartUploadError fails the whole batch. Part is -1 when no part was sent.
type PartUploadError struct {
	FileName   string
	Part       int
	StatusCode int
	Err        error
}

func (e *PartUploadError) Error() string {
	if e.Part < 0 {
		return fmt.Sprintf("upload of %s: %v", e.FileName, e.Err)
	}
	return fmt.Sprintf("upload of %s, part %d: %v", e.FileName, e.Part+1, e.Err)
}

func (e *PartUploadError) Unwrap() error { return e.Err }

// CompletionError is recorded in a FileOutcome, never returned.
type CompletionError struct {
	FileName string
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion of %s: %v", e.FileName, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// UploadError is the fatal error of a batch, tagged with the stage it failed in.
type UploadError struct {
	Stage    Stage
	FileName string
	Err      error
}

func (e *UploadError) Error() string {
	if e.FileName != "" {
		return fmt.Sprintf("upload failed while %s (%s): %v", e.Stage, e.FileName, e.Err)
	}
	return fmt.Sprintf("upload failed while %s: %v", e.Stage, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
