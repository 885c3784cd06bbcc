// Copyright (c) 2026 Quanta Exchange Contributors

package compaction_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/quantaex/qx-store/compaction"
	"github.com/quantaex/qx-store/memtable"
	"github.com/quantaex/qx-store/sstable"
)

func TestMergeRunsNewestWinsAndDropsTombstones(t *testing.T) {
	older := []memtable.Entry{
		{Key: "a", Value: []byte("old-a"), Seq: 1},
		{Key: "b", Value: []byte("old-b"), Seq: 2},
	}
	newer := []memtable.Entry{
		{Key: "a", Value: []byte("new-a"), Seq: 10},
		{Key: "c", Value: []byte("c"), Seq: 11, Tombstone: true},
	}

	merged := compaction.MergeRuns([][]memtable.Entry{older, newer}, true)
	byKey := map[string]memtable.Entry{}
	for _, e := range merged {
		byKey[e.Key] = e
	}

	if v := byKey["a"]; string(v.Value) != "new-a" {
		t.Fatalf("expected newest value for key a, got %+v", v)
	}
	if v, ok := byKey["b"]; !ok || string(v.Value) != "old-b" {
		t.Fatalf("expected untouched key b, got %+v ok=%v", v, ok)
	}
	if _, ok := byKey["c"]; ok {
		t.Fatalf("expected tombstone for key c to be dropped")
	}
}

func TestMergeRunsKeepsTombstonesWhenNotDropping(t *testing.T) {
	runs := [][]memtable.Entry{
		{{Key: "x", Value: nil, Seq: 5, Tombstone: true}},
	}
	merged := compaction.MergeRuns(runs, false)
	if len(merged) != 1 || !merged[0].Tombstone {
		t.Fatalf("expected tombstone to survive, got %+v", merged)
	}
}

func TestManifestPickTaskL0Trigger(t *testing.T) {
	m := compaction.NewManifest(3)
	for i := 0; i < compaction.L0CompactionTrigger; i++ {
		m.AddL0Run(compaction.RunMeta{Path: filepath.Join("run", string(rune('a'+i)))})
	}
	task := m.PickTask()
	if task == nil || task.SrcLevel != 0 || task.DstLevel != 1 {
		t.Fatalf("expected L0->L1 task, got %+v", task)
	}
	if len(task.Inputs) != compaction.L0CompactionTrigger {
		t.Fatalf("expected %d inputs, got %d", compaction.L0CompactionTrigger, len(task.Inputs))
	}
}

func TestManifestNoTaskBelowTrigger(t *testing.T) {
	m := compaction.NewManifest(3)
	m.AddL0Run(compaction.RunMeta{Path: "only-one"})
	if task := m.PickTask(); task != nil {
		t.Fatalf("expected no task below L0 trigger, got %+v", task)
	}
}

func TestLoadManifestSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, compaction.ManifestFileName)

	m, err := compaction.LoadManifest(path, 3, 2, 5, nil)
	if err != nil {
		t.Fatalf("LoadManifest (fresh): %v", err)
	}
	m.AddL0Run(compaction.RunMeta{Path: "run-a", MinKey: "a", MaxKey: "a"})
	m.AddL0Run(compaction.RunMeta{Path: "run-b", MinKey: "b", MaxKey: "b"})

	reloaded, err := compaction.LoadManifest(path, 3, 2, 5, nil)
	if err != nil {
		t.Fatalf("LoadManifest (reload): %v", err)
	}
	levels := reloaded.Levels()
	if len(levels[0]) != 2 {
		t.Fatalf("expected 2 runs to survive a reload, got %d", len(levels[0]))
	}
	if levels[0][0].Path != "run-a" || levels[0][1].Path != "run-b" {
		t.Fatalf("expected runs in append order, got %+v", levels[0])
	}
}

func TestLoadManifestMissingFileIsFresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, compaction.ManifestFileName)

	m, err := compaction.LoadManifest(path, 3, 0, 0, nil)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if task := m.PickTask(); task != nil {
		t.Fatalf("expected an empty manifest to have no pending task, got %+v", task)
	}
}

func TestCompactorMergesL0RunsIntoL1(t *testing.T) {
	dir := t.TempDir()
	manifest := compaction.NewManifest(3)

	for i := 0; i < compaction.L0CompactionTrigger; i++ {
		path := filepath.Join(dir, "l0-"+string(rune('a'+i))+".sst")
		entries := []memtable.Entry{
			{Key: "k" + string(rune('a'+i)), Value: []byte("v"), Seq: uint64(i + 1)},
		}
		if err := sstable.WriteOLTPRun(path, entries); err != nil {
			t.Fatalf("WriteOLTPRun: %v", err)
		}
		manifest.AddL0Run(compaction.RunMeta{Path: path, MinKey: entries[0].Key, MaxKey: entries[0].Key})
	}

	c := compaction.New(manifest, dir, 1, 10*time.Millisecond, nil)
	c.Start()
	defer c.Close()

	select {
	case result := <-c.Results():
		if result.Err != nil {
			t.Fatalf("compaction failed: %v", result.Err)
		}
		if len(result.OutRuns) != 1 {
			t.Fatalf("expected 1 output run, got %d", len(result.OutRuns))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for compaction result")
	}

	levels := manifest.Levels()
	if len(levels[0]) != 0 {
		t.Fatalf("expected L0 drained, got %d runs", len(levels[0]))
	}
	if len(levels[1]) != 1 {
		t.Fatalf("expected 1 run in L1, got %d", len(levels[1]))
	}
}
