// Copyright (c) 2026 Quanta Exchange Contributors

package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/quantaex/qx-store/config"
)

func TestDefaultMatchesSpecValues(t *testing.T) {
	c := config.Default()
	if c.WAL.BatchSize != 100 || c.WAL.FsyncIntervalUs != 1000 || c.WAL.SegmentSizeMB != 128 {
		t.Fatalf("unexpected WAL defaults: %+v", c.WAL)
	}
	if c.Memtable.MaxSizeMB != 64 || c.Memtable.MaxAgeS != 10 {
		t.Fatalf("unexpected Memtable defaults: %+v", c.Memtable)
	}
	if c.SSTable.BlockSizeKB != 4 || c.SSTable.BloomFPRate != 0.01 {
		t.Fatalf("unexpected SSTable defaults: %+v", c.SSTable)
	}
	if c.Compaction.L0Trigger != 4 || c.Compaction.SizeRatio != 10 {
		t.Fatalf("unexpected Compaction defaults: %+v", c.Compaction)
	}
	if c.Snapshot.PeekTimeoutS != 30 || c.Snapshot.DedupCache != 10_000 {
		t.Fatalf("unexpected Snapshot defaults: %+v", c.Snapshot)
	}
	if c.Gateway.BatchSize != 100 || c.Gateway.BatchIntervalMs != 100 || c.Gateway.BackpressureThreshold != 500 {
		t.Fatalf("unexpected Gateway defaults: %+v", c.Gateway)
	}
	if c.MarketData.CacheTTLMs != 100 || c.MarketData.RecoveryMinutes != 5 {
		t.Fatalf("unexpected MarketData defaults: %+v", c.MarketData)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestSetFromEnvOverridesAndLeavesUnsetFieldsAlone(t *testing.T) {
	os.Setenv("QX_WAL_BATCH_SIZE", "250")
	os.Setenv("QX_COMPACTION_L0_TRIGGER", "8")
	os.Setenv("QX_ALERT_WEBHOOK_URL", "https://alerts.example/hook")
	defer os.Unsetenv("QX_WAL_BATCH_SIZE")
	defer os.Unsetenv("QX_COMPACTION_L0_TRIGGER")
	defer os.Unsetenv("QX_ALERT_WEBHOOK_URL")
	os.Unsetenv("QX_WAL_SEGMENT_SIZE_MB")

	c := config.Default()
	if err := c.SetFromEnv(); err != nil {
		t.Fatalf("SetFromEnv: %v", err)
	}
	if c.WAL.BatchSize != 250 {
		t.Fatalf("expected WAL.BatchSize overridden to 250, got %d", c.WAL.BatchSize)
	}
	if c.Compaction.L0Trigger != 8 {
		t.Fatalf("expected Compaction.L0Trigger overridden to 8, got %d", c.Compaction.L0Trigger)
	}
	if c.AlertWebhookURL != "https://alerts.example/hook" {
		t.Fatalf("expected AlertWebhookURL overridden, got %q", c.AlertWebhookURL)
	}
	if c.WAL.SegmentSizeMB != 128 {
		t.Fatalf("expected unset env var to leave WAL.SegmentSizeMB at its default, got %d", c.WAL.SegmentSizeMB)
	}
}

func TestSetFromEnvRejectsMalformedInt(t *testing.T) {
	os.Setenv("QX_WAL_BATCH_SIZE", "not-a-number")
	defer os.Unsetenv("QX_WAL_BATCH_SIZE")

	c := config.Default()
	if err := c.SetFromEnv(); err == nil {
		t.Fatal("expected an error for a malformed integer environment variable")
	}
}

func TestValidateRejectsOutOfRangeBloomFPRate(t *testing.T) {
	c := config.Default()
	c.SSTable.BloomFPRate = 1.5
	if err := c.Validate(); err == nil {
		t.Fatal("expected Validate to reject a bloom false-positive rate >= 1")
	}
}

func TestValidateRejectsSizeRatioOfOne(t *testing.T) {
	c := config.Default()
	c.Compaction.SizeRatio = 1
	if err := c.Validate(); err == nil {
		t.Fatal("expected Validate to reject a size ratio of 1 (no growth)")
	}
}

func TestStorageConfigWiresSpecNamedKnobs(t *testing.T) {
	c := config.Default()
	c.Memtable.MaxSizeMB = 32
	c.Compaction.L0Trigger = 6
	c.Compaction.SizeRatio = 5
	c.SSTable.BloomFPRate = 0.02

	sc := c.StorageConfig(t.TempDir())
	if sc.OLTPMemtableBytes != 32<<20 {
		t.Fatalf("expected OLTPMemtableBytes=%d, got %d", 32<<20, sc.OLTPMemtableBytes)
	}
	if sc.CompactionL0Trigger != 6 || sc.CompactionSizeRatio != 5 {
		t.Fatalf("expected compaction tuning threaded through, got %+v", sc)
	}
	if sc.SSTableBloomFPRate != 0.02 {
		t.Fatalf("expected bloom fp rate threaded through, got %v", sc.SSTableBloomFPRate)
	}
	if sc.WAL.MaxBatchEntries != c.WAL.BatchSize {
		t.Fatalf("expected WAL batch size threaded through, got %d", sc.WAL.MaxBatchEntries)
	}
}

func TestGatewayAndSnapshotConversionHelpers(t *testing.T) {
	c := config.Default()
	c.Snapshot.PeekTimeoutS = 45
	c.Gateway.BatchIntervalMs = 250

	if got := c.SnapshotPeekTimeout(); got != 45*time.Second {
		t.Fatalf("expected 45s peek timeout, got %v", got)
	}
	if got := c.GatewayBatchInterval(); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms batch interval, got %v", got)
	}
	if got := c.MarketDataCacheTTL(); got != 100*time.Millisecond {
		t.Fatalf("expected default 100ms cache ttl, got %v", got)
	}
	if got := c.MarketDataRecoveryWindow(); got != 5*time.Minute {
		t.Fatalf("expected default 5m recovery window, got %v", got)
	}
}
