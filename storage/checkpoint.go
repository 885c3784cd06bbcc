// Copyright (c) 2026 Quanta Exchange Contributors

package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/segmentio/encoding/json"

	qx "github.com/quantaex/qx-store"
)

// checkpointFileName is the sidecar file Checkpoint writes and
// ReadCheckpointSeq reads back (cmd/qx-gateway calls it at startup, not
// Open) to decide where recovery should resume from. Distinct from the WAL's own in-band EntryType_Checkpoint
// marker, which TruncateBefore can legitimately delete along with the
// segment that contains it.
const checkpointFileName = "checkpoint.meta"

type checkpointDoc struct {
	LastAppliedSeq uint64 `json:"last_applied_seq"`
	TimestampNs    int64  `json:"ts_ns"`
}

// writeCheckpointMeta atomically persists seq as the store's recovery
// floor.
func writeCheckpointMeta(dir string, seq uint64) error {
	doc := checkpointDoc{LastAppliedSeq: seq, TimestampNs: qx.NowNanos()}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("storage: encode checkpoint metadata: %w", err)
	}
	path := filepath.Join(dir, checkpointFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("storage: write checkpoint temp file: %w", err)
	}
	return os.Rename(tmp, path)
}

// ReadCheckpointSeq returns the last_applied_seq recorded in dir's
// checkpoint sidecar file, or 0 if none exists yet (a store that has
// never checkpointed replays its entire WAL from the start).
func ReadCheckpointSeq(dir string) (uint64, error) {
	raw, err := os.ReadFile(filepath.Join(dir, checkpointFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("storage: read checkpoint metadata: %w", err)
	}
	var doc checkpointDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0, fmt.Errorf("storage: decode checkpoint metadata: %w", err)
	}
	return doc.LastAppliedSeq, nil
}

// checkpointMarkerPayload encodes lastAppliedSeq as the WAL's in-band
// checkpoint marker payload (forensic value only; see Checkpoint).
func checkpointMarkerPayload(lastAppliedSeq uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, lastAppliedSeq)
	return buf
}
