// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/docker/go-units"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/config"
)

const headerBlobType = "x-ms-blob-type"

type partPlan struct {
	Index  int
	Offset int64
	Length int64
	URI    string
}

// planParts splits size bytes over the slot URIs: one part when it fits maxPartSize
// (or the slot sets no maximum), otherwise ceil(size/max) parts to URIs in order.
func planParts(size int64, slot UploadSlot) ([]partPlan, error) {
	if len(slot.UploadURIs) == 0 {
		return nil, ErrNotEnoughURIs
	}
	if slot.MaxPartSize <= 0 || size <= slot.MaxPartSize {
		return []partPlan{{Index: 0, Offset: 0, Length: size, URI: slot.UploadURIs[0]}}, nil
	}

	count := int((size + slot.MaxPartSize - 1) / slot.MaxPartSize)
	if count > len(slot.UploadURIs) {
		return nil, fmt.Errorf("%w: %d parts of %d bytes, %d URIs", ErrNotEnoughURIs, count, slot.MaxPartSize, len(slot.UploadURIs))
	}

	parts := make([]partPlan, count)
	for i := range parts {
		offset := int64(i) * slot.MaxPartSize
		length := slot.MaxPartSize
		if offset+length > size {
			length = size - offset
		}
		parts[i] = partPlan{Index: i, Offset: offset, Length: length, URI: slot.UploadURIs[i]}
	}
	return parts, nil
}

// UploadParts sends the binary of src to the slot's pre-signed URIs, one chunk at a
// time and in order. The first failed chunk aborts the file; nothing is retried
// unless the part client allows it.
func (s *UploadService) UploadParts(ctx context.Context, src Source, slot UploadSlot, hook *config.ProgressHook) error {
	parts, err := planParts(slot.FileSize, slot)
	if err != nil {
		return &PartUploadError{FileName: slot.FileName, Part: -1, Err: err}
	}

	if hook != nil && hook.OnStart != nil {
		hook.OnStart(slot.FileName, slot.FileSize)
	}
	start := time.Now()

	var sent int64
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return &PartUploadError{FileName: slot.FileName, Part: p.Index, Err: err}
		}
		status, err := s.putPart(ctx, src, p)
		if err != nil {
			return &PartUploadError{FileName: slot.FileName, Part: p.Index, StatusCode: status, Err: err}
		}
		sent += p.Length
		s.metrics.partUploaded(p.Length)

		if hook != nil && hook.OnProgress != nil {
			hook.OnProgress(slot.FileName, sent, slot.FileSize)
		}
		if len(parts) > 1 {
			s.logger.Printf("%s: uploaded %s of %s (%d%%)", slot.FileName,
				units.HumanSize(float64(sent)), units.HumanSize(float64(slot.FileSize)), sent*100/slot.FileSize)
		}
	}

	if hook != nil && hook.OnDone != nil {
		hook.OnDone(slot.FileName, slot.FileSize, time.Since(start))
	}
	s.logger.Debugf("[upload] %s: %d part(s) sent in %s", slot.FileName, len(parts), time.Since(start).Round(time.Millisecond))
	return nil
}

func (s *UploadService) putPart(ctx context.Context, src Source, p partPlan) (int, error) {
	body, err := src.Part(ctx, p.Offset, p.Length)
	if err != nil {
		return 0, fmt.Errorf("read part: %w", err)
	}
	if c, ok := body.(io.Closer); ok {
		defer c.Close()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut, p.URI, body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = p.Length
	req.Header.Set("Content-Type", config.ContentTypeBinary)
	if bt := s.transfer.BlobTypeHeader(); bt != "" {
		req.Header.Set(headerBlobType, bt)
	}

	resp, err := s.partClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, msg)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
