// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package upload

import (
	"sync"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/docker/go-units"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/config"
)

// batchProgress aggregates per-file progress into one batch-wide line and forwards
// events to an optional caller hook. Safe for concurrent files.
type batchProgress struct {
	mu         sync.Mutex
	logger     log.Logger
	next       *config.ProgressHook
	totalBytes int64
	doneBytes  int64
	perFile    map[string]int64
	lastTick   time.Time
	interval   time.Duration
}

func newBatchProgress(logger log.Logger, totalBytes int64, next *config.ProgressHook) *batchProgress {
	return &batchProgress{
		logger:     logger,
		next:       next,
		totalBytes: totalBytes,
		perFile:    make(map[string]int64),
		interval:   time.Second,
	}
}

func (bp *batchProgress) hook() *config.ProgressHook {
	return &config.ProgressHook{
		OnStart: func(key string, total int64) {
			if bp.next != nil && bp.next.OnStart != nil {
				bp.next.OnStart(key, total)
			}
		},
		OnProgress: func(key string, written, total int64) {
			bp.add(key, written)
			if bp.next != nil && bp.next.OnProgress != nil {
				bp.next.OnProgress(key, written, total)
			}
		},
		OnDone: func(key string, total int64, took time.Duration) {
			bp.add(key, total)
			if bp.next != nil && bp.next.OnDone != nil {
				bp.next.OnDone(key, total, took)
			}
		},
	}
}

func (bp *batchProgress) add(key string, written int64) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.doneBytes += written - bp.perFile[key]
	bp.perFile[key] = written
	bp.render(false)
}

// render throttles to one line per interval unless forced.
func (bp *batchProgress) render(force bool) {
	if !force && time.Since(bp.lastTick) < bp.interval {
		return
	}
	bp.lastTick = time.Now()

	if bp.totalBytes <= 0 {
		bp.logger.Printf("Progress: %s sent", units.HumanSize(float64(bp.doneBytes)))
		return
	}
	done := bp.doneBytes
	if done > bp.totalBytes {
		done = bp.totalBytes
	}
	pct := float64(done) / float64(bp.totalBytes) * 100
	bp.logger.Printf("Progress: %6.2f%% (%s / %s)", pct,
		units.HumanSizeWithPrecision(float64(done), 3), units.HumanSizeWithPrecision(float64(bp.totalBytes), 3))
}

func (bp *batchProgress) done() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.render(true)
}

func (bp *batchProgress) sent() int64 {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.doneBytes
}
