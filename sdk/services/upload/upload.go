// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/config"
)

// Upload resolves req.Files into sources and uploads them as one batch into req.Container.
func (s *UploadService) Upload(ctx context.Context, req UploadRequest) (BatchResult, error) {
	sources, err := ResolveSources(ctx, req.Files, s.s3)
	if err != nil {
		s.metrics.batchFinished("failed")
		return nil, &UploadError{Stage: StageValidating, Err: err}
	}
	defer func() {
		for _, src := range sources {
			if err := src.Close(); err != nil {
				s.logger.Warnf("Failed to close %s: %v", src.Name(), err)
			}
		}
	}()

	return s.UploadSources(ctx, sources, req.Container, req.Options)
}

// UploadSources runs validating → initiating → uploading-parts → completing → done.
// A fatal error is an *UploadError; completion failures only mark their own outcome.
// Sources are not closed.
func (s *UploadService) UploadSources(ctx context.Context, sources []Source, container string, opts UploadOptions) (BatchResult, error) {
	run := s.newRun(container)

	if len(sources) == 0 {
		return nil, run.fail("", &ValidationError{Err: ErrNoFiles})
	}
	if strings.Trim(container, "/") == "" {
		return nil, run.fail("", &ValidationError{Err: errors.New("missing target folder")})
	}

	files := make([]FileInfo, len(sources))
	var total int64
	for i, src := range sources {
		size, err := src.Size(ctx)
		if err != nil {
			return nil, run.fail(src.Name(), &ValidationError{File: src.Name(), Err: err})
		}
		files[i] = FileInfo{Name: src.Name(), Size: size}
		total += size
	}

	run.enter(StageInitiating)
	init, err := s.initiate(ctx, files, container, run.enter)
	if err != nil {
		return nil, run.fail("", err)
	}

	run.enter(StageUploadingParts)
	progress := newBatchProgress(s.logger, total, opts.Progress)
	if err := s.uploadAll(ctx, sources, init.Slots, progress.hook()); err != nil {
		var perr *PartUploadError
		name := ""
		if errors.As(err, &perr) {
			name = perr.FileName
		}
		return nil, run.fail(name, err)
	}
	progress.done()

	run.enter(StageCompleting)
	completes := make([]CompleteFile, len(init.Slots))
	for i, slot := range init.Slots {
		completes[i] = CompleteFile{
			FileName:    slot.FileName,
			MimeType:    slot.MimeType,
			UploadToken: slot.UploadToken,
			FileSize:    slot.FileSize,
		}
	}
	result := s.Complete(ctx, init.CompleteURI, completes, opts)

	run.enter(StageDone)
	failed := len(result.Failed())
	if failed == 0 {
		s.metrics.batchFinished("success")
		s.logger.Donef("Uploaded %d file(s) to %s", len(result), container)
	} else {
		s.metrics.batchFinished("partial")
		s.logger.Warnf("Uploaded %d of %d file(s) to %s", len(result)-failed, len(result), container)
	}
	return result, nil
}

// uploadAll sends files one after another unless FileConcurrency > 1. Chunks of a
// single file are always sequential. The first failure cancels the remaining files.
func (s *UploadService) uploadAll(ctx context.Context, sources []Source, slots []UploadSlot, hook *config.ProgressHook) error {
	limit := s.transfer.Concurrency()
	if limit == 1 || len(sources) == 1 {
		for i, src := range sources {
			if err := s.UploadParts(ctx, src, slots[i], hook); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range sources {
		src, slot := sources[i], slots[i]
		g.Go(func() error {
			return s.UploadParts(gctx, src, slot, hook)
		})
	}
	return g.Wait()
}

type batchRun struct {
	svc       *UploadService
	container string
	stage     Stage
	entered   time.Time
}

func (s *UploadService) newRun(container string) *batchRun {
	return &batchRun{svc: s, container: container, stage: StageValidating, entered: time.Now()}
}

func (r *batchRun) enter(stage Stage) {
	r.svc.metrics.observeStage(r.stage, time.Since(r.entered))
	r.svc.logger.Debugf("[upload] %s: %s -> %s", r.container, r.stage, stage)
	r.stage, r.entered = stage, time.Now()
}

func (r *batchRun) fail(fileName string, err error) error {
	stage := r.stage
	r.enter(StageFailed)
	r.svc.metrics.batchFinished("failed")
	return &UploadError{Stage: stage, FileName: fileName, Err: err}
}
