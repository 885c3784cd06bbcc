// Copyright (c) 2026 Quanta Exchange Contributors

package notify_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/quantaex/qx-store/notify"
)

func TestClassifyPriorityDrainOrderAndCaps(t *testing.T) {
	var mu sync.Mutex
	delivered := map[string][]notify.Notification{}

	gw := notify.NewGateway(1000, 10*time.Millisecond, 100000, time.Hour, func(sessionID string, batch []notify.Notification) {
		mu.Lock()
		delivered[sessionID] = append(delivered[sessionID], batch...)
		mu.Unlock()
	}, nil)
	gw.RegisterSession("s1")
	gw.Start()
	defer gw.Close()

	broker := notify.NewBroker(0, 10*time.Millisecond, nil)
	broker.RegisterGateway(gw)
	broker.Start()
	defer broker.Close()

	// 150 P2 (account update) notifications: spec caps a single drain at
	// 100, so this must take at least two drain ticks to fully deliver.
	for i := 0; i < 150; i++ {
		broker.Publish(notify.Notification{
			MessageID: fmt.Sprintf("p2-%d", i),
			Kind:      notify.KindAccountUpdate,
			SessionID: "s1",
		})
	}
	// One P0 (risk alert): must always be delivered in the very next drain.
	broker.Publish(notify.Notification{MessageID: "p0-1", Kind: notify.KindRiskAlert, SessionID: "s1"})

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(delivered["s1"])
		mu.Unlock()
		if n == 151 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected 151 notifications delivered, got %d", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	first := delivered["s1"][0]
	mu.Unlock()
	if first.Kind != notify.KindRiskAlert {
		t.Fatalf("expected the risk alert to be delivered first (P0 drains before P2), got kind=%v", first.Kind)
	}
}

func TestPublishDeduplicatesOnMessageID(t *testing.T) {
	var mu sync.Mutex
	var delivered []notify.Notification

	gw := notify.NewGateway(1000, 10*time.Millisecond, 100000, time.Hour, func(_ string, batch []notify.Notification) {
		mu.Lock()
		delivered = append(delivered, batch...)
		mu.Unlock()
	}, nil)
	gw.RegisterSession("s1")
	gw.Start()
	defer gw.Close()

	broker := notify.NewBroker(0, 10*time.Millisecond, nil)
	broker.RegisterGateway(gw)
	broker.Start()
	defer broker.Close()

	broker.Publish(notify.Notification{MessageID: "dup", Kind: notify.KindSystemNotice, SessionID: "s1"})
	broker.Publish(notify.Notification{MessageID: "dup", Kind: notify.KindSystemNotice, SessionID: "s1"})

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	n := len(delivered)
	mu.Unlock()
	if n != 1 {
		t.Fatalf("expected the duplicate publish to be suppressed, got %d delivered", n)
	}
}

func TestGatewayBackpressureDropsOldestHalf(t *testing.T) {
	// A never-flushing gateway (batchInterval=1h) with a small
	// backpressure limit: pushing well past that limit must leave the
	// pending queue bounded near the limit, not growing unboundedly.
	const limit = 50
	gw := notify.NewGateway(100000, time.Hour, limit, time.Hour, func(string, []notify.Notification) {}, nil)
	gw.RegisterSession("s1")

	broker := notify.NewBroker(0, 2*time.Millisecond, nil)
	broker.RegisterGateway(gw)

	for i := 0; i < 300; i++ {
		broker.Publish(notify.Notification{
			MessageID: fmt.Sprintf("m%d", i),
			Kind:      notify.KindSystemNotice,
			SessionID: "s1",
		})
	}
	broker.Start()
	time.Sleep(200 * time.Millisecond)
	broker.Close()

	if n := gw.PendingCount("s1"); n > 2*limit {
		t.Fatalf("expected backpressure to keep the pending queue bounded near %d, got %d pending", limit, n)
	}
}

func TestGatewayFlushesOnBatchSizeBeforeTick(t *testing.T) {
	flushed := make(chan int, 10)
	gw := notify.NewGateway(10, time.Hour, 100000, time.Hour, func(_ string, batch []notify.Notification) {
		flushed <- len(batch)
	}, nil)
	gw.RegisterSession("s1")
	gw.Start()
	defer gw.Close()

	broker := notify.NewBroker(0, 5*time.Millisecond, nil)
	broker.RegisterGateway(gw)
	broker.Start()
	defer broker.Close()

	for i := 0; i < 10; i++ {
		broker.Publish(notify.Notification{
			MessageID: fmt.Sprintf("m%d", i),
			Kind:      notify.KindSystemNotice,
			SessionID: "s1",
		})
	}

	select {
	case n := <-flushed:
		if n != 10 {
			t.Fatalf("expected a full batch of 10, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a size-triggered flush, got none")
	}
}

func TestBrokerQueueDepthsReflectsPendingPublishes(t *testing.T) {
	// GroupCommitInterval-style drain loop never started, so published
	// notifications stay queued and observable via QueueDepths.
	broker := notify.NewBroker(0, time.Hour, nil)

	broker.Publish(notify.Notification{MessageID: "r1", Kind: notify.KindRiskAlert, SessionID: "s1"})
	broker.Publish(notify.Notification{MessageID: "n1", Kind: notify.KindSystemNotice, SessionID: "s1"})
	broker.Publish(notify.Notification{MessageID: "n2", Kind: notify.KindSystemNotice, SessionID: "s1"})

	depths := broker.QueueDepths()
	var total int
	for _, d := range depths {
		total += d
	}
	if total != 3 {
		t.Fatalf("expected 3 queued notifications across priorities, got %d (%v)", total, depths)
	}
}

func TestGatewaySessionCountTracksRegistration(t *testing.T) {
	gw := notify.NewGateway(100, time.Hour, 100000, time.Hour, func(string, []notify.Notification) {}, nil)

	if n := gw.SessionCount(); n != 0 {
		t.Fatalf("expected 0 sessions before registration, got %d", n)
	}

	gw.RegisterSession("s1")
	gw.RegisterSession("s2")
	if n := gw.SessionCount(); n != 2 {
		t.Fatalf("expected 2 sessions after registration, got %d", n)
	}

	gw.RemoveSession("s1")
	if n := gw.SessionCount(); n != 1 {
		t.Fatalf("expected 1 session after removal, got %d", n)
	}
}

func TestGatewayReapsStaleSession(t *testing.T) {
	gw := notify.NewGateway(100, 5*time.Millisecond, 100000, 20*time.Millisecond, func(string, []notify.Notification) {}, nil)
	gw.RegisterSession("s1")
	gw.Start()
	defer gw.Close()

	time.Sleep(100 * time.Millisecond)

	if n := gw.SessionCount(); n != 0 {
		t.Fatalf("expected the silent session to be reaped, got %d sessions", n)
	}

	// Registering the reaped id again must still work (no panic /
	// deadlock).
	gw.RegisterSession("s1")
}
