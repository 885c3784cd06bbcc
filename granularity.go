// Copyright (c) 2026 Quanta Exchange Contributors
//
// Granularity enumerates the supported K-line aggregation durations.
// Replaces the teacher's Databento venue/publisher enum tables (no
// domain analog in a single-exchange engine) with the duration
// vocabulary this engine's KLineFinished records and DIFF Gateway
// subscriptions actually need.

package qx

import (
	"encoding/json"
	"fmt"
	"time"
)

// Granularity is a K-line aggregation duration.
type Granularity int64

const (
	Granularity_3s  Granularity = 3 * int64(time.Second)
	Granularity_1m  Granularity = int64(time.Minute)
	Granularity_5m  Granularity = 5 * int64(time.Minute)
	Granularity_15m Granularity = 15 * int64(time.Minute)
	Granularity_30m Granularity = 30 * int64(time.Minute)
	Granularity_1h  Granularity = int64(time.Hour)
	Granularity_4h  Granularity = 4 * int64(time.Hour)
	Granularity_1d  Granularity = 24 * int64(time.Hour)
)

func (g Granularity) String() string {
	switch g {
	case Granularity_3s:
		return "3s"
	case Granularity_1m:
		return "1m"
	case Granularity_5m:
		return "5m"
	case Granularity_15m:
		return "15m"
	case Granularity_30m:
		return "30m"
	case Granularity_1h:
		return "1h"
	case Granularity_4h:
		return "4h"
	case Granularity_1d:
		return "1d"
	default:
		return fmt.Sprintf("%dns", int64(g))
	}
}

// DurationNs returns g's length in nanoseconds.
func (g Granularity) DurationNs() int64 {
	return int64(g)
}

// ParseGranularity parses one of the canonical strings (e.g. "1m", "4h")
// into a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "3s":
		return Granularity_3s, nil
	case "1m":
		return Granularity_1m, nil
	case "5m":
		return Granularity_5m, nil
	case "15m":
		return Granularity_15m, nil
	case "30m":
		return Granularity_30m, nil
	case "1h":
		return Granularity_1h, nil
	case "4h":
		return Granularity_4h, nil
	case "1d":
		return Granularity_1d, nil
	default:
		return 0, fmt.Errorf("unknown granularity %q", s)
	}
}

// KLineID computes the bucket identity for a timestamp under g, per
// kline_id = timestamp_ms*1_000_000/duration_ns.
func KLineID(timestampMs int64, g Granularity) int64 {
	return (timestampMs * 1_000_000) / g.DurationNs()
}

func (g Granularity) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.String())
}

func (g *Granularity) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseGranularity(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
