// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/config"
)

// Complete finalizes every file, one request at a time. A failure is recorded in the
// file's outcome and the next file is still completed, so the result always has one
// entry per input, in input order.
func (s *UploadService) Complete(ctx context.Context, completeURI string, files []CompleteFile, opts UploadOptions) BatchResult {
	endpoint := s.http.ResolveURL(completeURI)
	result := make(BatchResult, len(files))

	for i, f := range files {
		result[i] = FileOutcome{FileName: f.FileName}

		body, _, err := s.http.Do(ctx, http.MethodPost, endpoint, []byte(completeForm(f, opts).Encode()),
			map[string]string{"Content-Type": config.ContentTypeForm})
		if err != nil {
			s.logger.Errorf("Failed to complete upload of %s: %v", f.FileName, err)
			s.metrics.completionFailed()
			result[i].Err = &CompletionError{FileName: f.FileName, Err: err}
			continue
		}

		result[i].Payload = asJSON(body)
		s.logger.Donef("Upload completed for %s", f.FileName)
	}
	return result
}

func completeForm(f CompleteFile, opts UploadOptions) url.Values {
	form := url.Values{}
	form.Set("fileName", f.FileName)
	form.Set("mimeType", f.MimeType)
	form.Set("uploadToken", f.UploadToken)
	form.Set("fileSize", strconv.FormatInt(f.FileSize, 10))
	if opts.Replace != nil {
		form.Set("replace", strconv.FormatBool(*opts.Replace))
	}
	if opts.CreateVersion != nil {
		form.Set("createVersion", strconv.FormatBool(*opts.CreateVersion))
	}
	if opts.VersionLabel != "" {
		form.Set("versionLabel", opts.VersionLabel)
	}
	if opts.VersionComment != "" {
		form.Set("versionComment", opts.VersionComment)
	}
	return form
}

// asJSON keeps JSON bodies as they are and wraps anything else (AEM may answer HTML) in a string.
func asJSON(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	b, _ := json.Marshal(string(body))
	return b
}
