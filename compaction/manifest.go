// Copyright (c) 2026 Quanta Exchange Contributors
//
// Manifest tracks which OLTP SSTable runs belong to which level and
// performs atomic level-content swaps when a compaction completes.
// L0 holds unsorted, possibly key-overlapping runs flushed straight
// from frozen memtables; L1+ are non-overlapping and budget-bounded,
// following the classic LSM leveled layout.

package compaction

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/segmentio/encoding/json"

	"github.com/quantaex/qx-store/sstable"
)

// RunMeta describes one sealed OLTP SSTable run without holding it open.
type RunMeta struct {
	Path     string
	MinKey   string
	MaxKey   string
	NumBytes int64
}

// Manifest is the in-memory source of truth for which runs exist at
// which level. Levels are numbered from 0 (freshest, overlap-allowed)
// upward.
//
// Every mutation is persisted to persistPath (when set) so a restart
// can rediscover sealed runs instead of treating them as orphaned
// files under the SSTable directory.
type Manifest struct {
	mu        sync.RWMutex
	levels    [][]RunMeta
	l0Trigger int
	sizeRatio int

	persistPath string
	logger      *slog.Logger
}

// manifestDoc is the on-disk JSON representation of a Manifest.
type manifestDoc struct {
	Levels    [][]RunMeta `json:"levels"`
	L0Trigger int         `json:"l0_trigger"`
	SizeRatio int         `json:"size_ratio"`
}

// ManifestFileName is the name of the manifest's sidecar file, rooted
// at a store's top-level directory (not the sstable subdirectory,
// since the manifest also outlives any single sstable generation).
const ManifestFileName = "MANIFEST.json"

// NewManifest creates an empty manifest with numLevels levels, using the
// package defaults for the L0 compaction trigger and per-level size ratio.
func NewManifest(numLevels int) *Manifest {
	return NewManifestWithTuning(numLevels, L0CompactionTrigger, DefaultSizeRatio)
}

// NewManifestWithTuning creates an empty manifest with an explicit L0
// trigger (number of L0 runs that force a compaction) and per-level size
// ratio (how many times larger level N+1's byte budget is than level N's),
// e.g. from config's compaction.l0_trigger / compaction.size_ratio.
func NewManifestWithTuning(numLevels, l0Trigger, sizeRatio int) *Manifest {
	if l0Trigger <= 0 {
		l0Trigger = L0CompactionTrigger
	}
	if sizeRatio <= 0 {
		sizeRatio = DefaultSizeRatio
	}
	return &Manifest{levels: make([][]RunMeta, numLevels), l0Trigger: l0Trigger, sizeRatio: sizeRatio}
}

// LoadManifest reads path (if it exists) and rebuilds a Manifest from
// it; a missing file is treated as a fresh, empty manifest rather than
// an error, so first-run stores don't need a pre-seeded file. The
// returned Manifest persists every subsequent mutation back to path.
func LoadManifest(path string, numLevels, l0Trigger, sizeRatio int, logger *slog.Logger) (*Manifest, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := NewManifestWithTuning(numLevels, l0Trigger, sizeRatio)
	m.persistPath = path
	m.logger = logger

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("compaction: read manifest %s: %w", path, err)
	}

	var doc manifestDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("compaction: decode manifest %s: %w", path, err)
	}
	if len(doc.Levels) > numLevels {
		numLevels = len(doc.Levels)
	}
	levels := make([][]RunMeta, numLevels)
	copy(levels, doc.Levels)
	m.levels = levels
	if doc.L0Trigger > 0 {
		m.l0Trigger = doc.L0Trigger
	}
	if doc.SizeRatio > 0 {
		m.sizeRatio = doc.SizeRatio
	}
	return m, nil
}

// Save writes the manifest's current state to its persistPath
// atomically (write to a temp file, then rename), so a crash mid-write
// never leaves a torn manifest behind. A no-op if persistPath is unset.
func (m *Manifest) Save() error {
	m.mu.RLock()
	doc := manifestDoc{
		Levels:    m.levels,
		L0Trigger: m.l0Trigger,
		SizeRatio: m.sizeRatio,
	}
	path := m.persistPath
	m.mu.RUnlock()

	if path == "" {
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("compaction: encode manifest: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("compaction: write manifest temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("compaction: rename manifest into place: %w", err)
	}
	return nil
}

// saveBestEffort persists the manifest after a mutation, logging (but
// not propagating) any failure: a manifest write failure must never
// fail the in-memory mutation it followed, or callers would roll back
// state that compaction or a flush has already committed to disk.
func (m *Manifest) saveBestEffort() {
	if m.persistPath == "" {
		return
	}
	if err := m.Save(); err != nil {
		logger := m.logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("compaction: manifest persist failed", "path", m.persistPath, "error", err)
	}
}

// AddL0Run registers a freshly flushed memtable run at level 0.
func (m *Manifest) AddL0Run(run RunMeta) {
	m.mu.Lock()
	m.levels[0] = append(m.levels[0], run)
	m.mu.Unlock()
	m.saveBestEffort()
}

// Levels returns a snapshot of each level's run list.
func (m *Manifest) Levels() [][]RunMeta {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]RunMeta, len(m.levels))
	for i, runs := range m.levels {
		out[i] = append([]RunMeta(nil), runs...)
	}
	return out
}

// ReplaceLevel atomically removes oldPaths from srcLevel and dstLevel,
// and inserts newRuns into dstLevel. Used to cut over a compaction's
// output in one step so readers never observe a half-compacted state.
func (m *Manifest) ReplaceLevel(srcLevel, dstLevel int, oldPaths []string, newRuns []RunMeta) {
	m.mu.Lock()
	drop := make(map[string]bool, len(oldPaths))
	for _, p := range oldPaths {
		drop[p] = true
	}
	m.levels[srcLevel] = filterOut(m.levels[srcLevel], drop)
	if srcLevel != dstLevel {
		m.levels[dstLevel] = filterOut(m.levels[dstLevel], drop)
	}
	m.levels[dstLevel] = append(m.levels[dstLevel], newRuns...)
	sort.Slice(m.levels[dstLevel], func(i, j int) bool {
		return m.levels[dstLevel][i].MinKey < m.levels[dstLevel][j].MinKey
	})
	m.mu.Unlock()
	m.saveBestEffort()
}

func filterOut(runs []RunMeta, drop map[string]bool) []RunMeta {
	out := make([]RunMeta, 0, len(runs))
	for _, r := range runs {
		if !drop[r.Path] {
			out = append(out, r)
		}
	}
	return out
}

// Task describes one compaction: merge the runs at srcLevel into
// dstLevel.
type Task struct {
	SrcLevel int
	DstLevel int
	Inputs   []RunMeta
}

// L0CompactionTrigger is the default number of L0 runs that forces a
// compaction into L1, bounding the number of runs a point lookup must
// probe. Overridable per-Manifest via NewManifestWithTuning.
const L0CompactionTrigger = 4

// DefaultSizeRatio is the default per-level byte budget growth factor:
// level n+1's budget is DefaultSizeRatio times level n's. Overridable
// per-Manifest via NewManifestWithTuning.
const DefaultSizeRatio = 10

const l1BaseBudget = int64(64 << 20) // 64MiB for L1

// LevelByteBudget is the approximate byte budget for level n (n>=1)
// using the package-default size ratio. Kept for callers without a
// Manifest handy; m.levelByteBudget honors a Manifest's own tuning.
func LevelByteBudget(level int) int64 {
	return levelByteBudget(level, DefaultSizeRatio)
}

func levelByteBudget(level, sizeRatio int) int64 {
	budget := l1BaseBudget
	for i := 1; i < level; i++ {
		budget *= int64(sizeRatio)
	}
	return budget
}

// PickTask selects the next compaction to run, or nil if nothing is
// due. L0 is compacted whenever it crosses the manifest's L0 trigger;
// otherwise the lowest level exceeding its byte budget is compacted
// into the next level down.
func (m *Manifest) PickTask() *Task {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// withOverlap puts the dst-level runs whose key range overlaps src
	// ahead of src, so the output keeps dst non-overlapping; MergeRuns
	// treats later inputs as newer.
	withOverlap := func(src []RunMeta, dst int) []RunMeta {
		lo, hi := src[0].MinKey, src[0].MaxKey
		for _, r := range src {
			lo, hi = min(lo, r.MinKey), max(hi, r.MaxKey)
		}
		var inputs []RunMeta
		for _, r := range m.levels[dst] {
			if r.MaxKey >= lo && r.MinKey <= hi {
				inputs = append(inputs, r)
			}
		}
		return append(inputs, src...)
	}

	if len(m.levels[0]) >= m.l0Trigger {
		return &Task{SrcLevel: 0, DstLevel: 1, Inputs: withOverlap(m.levels[0], 1)}
	}
	for level := 1; level < len(m.levels)-1; level++ {
		var total int64
		for _, r := range m.levels[level] {
			total += r.NumBytes
		}
		if total > levelByteBudget(level, m.sizeRatio) {
			return &Task{SrcLevel: level, DstLevel: level + 1, Inputs: withOverlap(m.levels[level], level+1)}
		}
	}
	return nil
}

// OpenRuns opens every input run of a task for reading. Caller must
// close each returned run.
func OpenRuns(inputs []RunMeta) ([]*sstable.OLTPRun, error) {
	runs := make([]*sstable.OLTPRun, 0, len(inputs))
	for _, meta := range inputs {
		r, err := sstable.OpenOLTPRun(meta.Path)
		if err != nil {
			for _, opened := range runs {
				opened.Close()
			}
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, nil
}
