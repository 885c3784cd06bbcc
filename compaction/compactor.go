// Copyright (c) 2026 Quanta Exchange Contributors
//
// Compactor runs background merges on a ticker-driven loop, queuing
// tasks and bounding how many run concurrently. Shape (queued/active
// slices behind a mutex, a single goroutine owning queue state, worker
// goroutines reporting results on a channel) is adapted from
// internal/tui/download_manager.go's DownloadManager.

package compaction

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/quantaex/qx-store/memtable"
	"github.com/quantaex/qx-store/sstable"
)

// Result reports the outcome of one compaction task.
type Result struct {
	Task     Task
	OutRuns  []RunMeta
	Err      error
	Duration time.Duration
}

// Compactor schedules and executes compaction tasks against a Manifest.
type Compactor struct {
	manifest      *Manifest
	dir           string
	maxActive     int
	pollEvery     time.Duration
	indexInterval int
	bloomFPRate   float64
	logger        *slog.Logger

	resultCh chan Result

	mu       sync.Mutex
	active   int
	nextSeq  int
	tickStop chan struct{}
	doneCh   chan struct{}
}

// New creates a Compactor writing merged runs under dir, using the
// sstable package's default index interval and bloom false-positive rate.
func New(manifest *Manifest, dir string, maxActive int, pollEvery time.Duration, logger *slog.Logger) *Compactor {
	return NewWithTuning(manifest, dir, maxActive, pollEvery, sstable.IndexInterval, sstable.DefaultBloomFPRate, logger)
}

// NewWithTuning is New with an explicit output-run index interval
// (sstable.block_size_kb's nearest analog) and bloom false-positive
// target (sstable.bloom_fp_rate), e.g. sourced from config.Config.
func NewWithTuning(manifest *Manifest, dir string, maxActive int, pollEvery time.Duration, indexInterval int, bloomFPRate float64, logger *slog.Logger) *Compactor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Compactor{
		manifest:      manifest,
		dir:           dir,
		maxActive:     maxActive,
		pollEvery:     pollEvery,
		indexInterval: indexInterval,
		bloomFPRate:   bloomFPRate,
		logger:        logger,
		resultCh:      make(chan Result, 64),
		tickStop:      make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Results returns the channel carrying completed compaction outcomes.
func (c *Compactor) Results() <-chan Result {
	return c.resultCh
}

// Start launches the scheduling loop in the background.
func (c *Compactor) Start() {
	go c.loop()
}

// Close stops the scheduling loop and waits for it to exit. In-flight
// compactions are not cancelled, only new ones are prevented.
func (c *Compactor) Close() {
	close(c.tickStop)
	<-c.doneCh
}

func (c *Compactor) loop() {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.tickStop:
			return
		case <-ticker.C:
			for c.maybeLaunch() {
			}
		}
	}
}

func (c *Compactor) maybeLaunch() bool {
	c.mu.Lock()
	if c.active >= c.maxActive {
		c.mu.Unlock()
		return false
	}
	task := c.manifest.PickTask()
	if task == nil {
		c.mu.Unlock()
		return false
	}
	c.active++
	seq := c.nextSeq
	c.nextSeq++
	c.mu.Unlock()

	go func() {
		start := time.Now()
		outRuns, err := c.run(*task, seq)
		result := Result{Task: *task, OutRuns: outRuns, Err: err, Duration: time.Since(start)}

		c.mu.Lock()
		c.active--
		c.mu.Unlock()

		if err != nil {
			c.logger.Error("compaction failed", "src_level", task.SrcLevel, "dst_level", task.DstLevel, "err", err)
		} else {
			oldPaths := make([]string, len(task.Inputs))
			for i, in := range task.Inputs {
				oldPaths[i] = in.Path
			}
			c.manifest.ReplaceLevel(task.SrcLevel, task.DstLevel, oldPaths, outRuns)
			c.logger.Info("compaction complete", "src_level", task.SrcLevel, "dst_level", task.DstLevel,
				"inputs", len(task.Inputs), "outputs", len(outRuns), "duration", result.Duration)
		}
		c.resultCh <- result
	}()
	return true
}

// run performs the actual merge: open every input run, merge-sort their
// entries (dropping tombstones only when compacting into the deepest
// level), and write the result as a single new run in dstLevel.
func (c *Compactor) run(task Task, seq int) ([]RunMeta, error) {
	runs, err := OpenRuns(task.Inputs)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, r := range runs {
			r.Close()
		}
	}()

	entriesPerRun := make([][]memtable.Entry, len(runs))
	for i, r := range runs {
		entriesPerRun[i] = r.Entries()
	}

	dropTombstones := task.DstLevel == len(c.manifest.Levels())-1
	merged := MergeRuns(entriesPerRun, dropTombstones)
	if len(merged) == 0 {
		return nil, nil
	}

	outPath := filepath.Join(c.dir, fmt.Sprintf("L%d-%020d.sst", task.DstLevel, seq))
	if err := sstable.WriteOLTPRunWithOptions(outPath, merged, c.indexInterval, c.bloomFPRate); err != nil {
		return nil, err
	}
	info, err := os.Stat(outPath)
	if err != nil {
		return nil, err
	}

	return []RunMeta{{
		Path:     outPath,
		MinKey:   merged[0].Key,
		MaxKey:   merged[len(merged)-1].Key,
		NumBytes: info.Size(),
	}}, nil
}
