// Copyright (c) 2026 Quanta Exchange Contributors
//
// recover repopulates a Cache from the account WAL on boot. The WAL has no
// time index, so a bounded-window recovery still means a full sequential
// scan of the tail segments; only entries within the window are applied,
// following the same replay-then-filter shape as recovery.Coordinator's
// WAL walk.

package marketdata

import (
	"context"
	"fmt"
	"time"

	qx "github.com/quantaex/qx-store"
	"github.com/quantaex/qx-store/wal"
)

// DefaultRecoveryWindow is the spec default for how far back into the WAL
// Recover looks for tick/book entries.
const DefaultRecoveryWindow = 5 * time.Minute

// RecoverReport summarizes one Recover call.
type RecoverReport struct {
	EntriesRead    int
	TicksApplied   int
	BooksApplied   int
	TailTruncated  bool
}

// Recover replays walDir from the beginning and applies every TickData and
// OrderBookSnapshot record whose header timestamp falls within window of
// now to the cache. Earlier entries, and entries of any other record type,
// are skipped without error: they belong to C3/C4/C12's other consumers,
// not this one.
func (c *Cache) Recover(ctx context.Context, walDir string, now time.Time, window time.Duration) (RecoverReport, error) {
	if window <= 0 {
		window = DefaultRecoveryWindow
	}
	cutoffNs := now.Add(-window).UnixNano()

	var report RecoverReport
	result, err := wal.Replay(walDir, 0, func(entry wal.Entry) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report.EntriesRead++
		if entry.Type == wal.EntryType_Checkpoint {
			return nil
		}
		if len(entry.Payload) < qx.Header_Size {
			return fmt.Errorf("marketdata: entry seq %d shorter than a record header", entry.Seq)
		}
		rt := qx.RecordType(entry.Payload[0])
		if !rt.IsValid() {
			return fmt.Errorf("marketdata: entry seq %d has unknown record type %d", entry.Seq, entry.Payload[0])
		}

		switch rt {
		case qx.RecordType_TickData:
			var rec qx.TickData
			if err := rec.Fill_Raw(entry.Payload); err != nil {
				return fmt.Errorf("marketdata: decode tick seq %d: %w", entry.Seq, err)
			}
			if rec.Header.TimestampNs < cutoffNs {
				return nil
			}
			c.UpdateTick(qx.TrimNullBytes(rec.InstrumentID[:]), &rec)
			report.TicksApplied++
		case qx.RecordType_OrderBookSnapshot:
			var rec qx.OrderBookSnapshot
			if err := rec.Fill_Raw(entry.Payload); err != nil {
				return fmt.Errorf("marketdata: decode book seq %d: %w", entry.Seq, err)
			}
			if rec.Header.TimestampNs < cutoffNs {
				return nil
			}
			c.UpdateBook(qx.TrimNullBytes(rec.InstrumentID[:]), &rec)
			report.BooksApplied++
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("marketdata: recover: %w", err)
	}
	report.TailTruncated = result.TailTruncated
	return report, nil
}
