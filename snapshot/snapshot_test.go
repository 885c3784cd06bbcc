// Copyright (c) 2026 Quanta Exchange Contributors

package snapshot_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/valyala/fastjson"

	"github.com/quantaex/qx-store/snapshot"
)

func TestPushPatchThenPeekFastPath(t *testing.T) {
	m := snapshot.NewManager(30*time.Second, 0)
	m.InitializeUser("u1")

	p := fastjson.MustParse(`{"trade":{"accounts":{"ACC":{"balance":105000.0}}}}`)
	if err := m.PushPatch("u1", "m1", p); err != nil {
		t.Fatalf("PushPatch: %v", err)
	}

	patches, err := m.Peek(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("expected 1 patch, got %d", len(patches))
	}

	snap, err := m.Snapshot("u1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	got := string(snap.MarshalTo(nil))
	want := `{"trade":{"accounts":{"ACC":{"balance":105000}}}}`
	if got != want {
		t.Fatalf("snapshot = %s, want %s", got, want)
	}
}

// TestPeekBlocksUntilPushPatch mirrors the S2 scenario: a peek blocks, a
// concurrent push_patch arrives 50ms later, and peek must return with
// exactly that one patch well before its 30s timeout.
func TestPeekBlocksUntilPushPatch(t *testing.T) {
	m := snapshot.NewManager(30*time.Second, 0)
	m.InitializeUser("u1")

	start := time.Now()
	done := make(chan []*fastjson.Value, 1)
	go func() {
		patches, err := m.Peek(context.Background(), "u1")
		if err != nil {
			t.Errorf("Peek: %v", err)
		}
		done <- patches
	}()

	time.Sleep(50 * time.Millisecond)
	p := fastjson.MustParse(`{"trade":{"accounts":{"ACC":{"balance":105000.0}}}}`)
	if err := m.PushPatch("u1", "m1", p); err != nil {
		t.Fatalf("PushPatch: %v", err)
	}

	select {
	case patches := <-done:
		elapsed := time.Since(start)
		if elapsed > 200*time.Millisecond {
			t.Fatalf("peek took too long: %v", elapsed)
		}
		if len(patches) != 1 {
			t.Fatalf("expected 1 patch, got %d", len(patches))
		}
	case <-time.After(time.Second):
		t.Fatal("peek never returned")
	}
}

func TestPeekTimesOutWithEmptyQueue(t *testing.T) {
	m := snapshot.NewManager(50*time.Millisecond, 0)
	m.InitializeUser("u1")

	start := time.Now()
	patches, err := m.Peek(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if patches != nil {
		t.Fatalf("expected empty result on timeout, got %v", patches)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("returned too early: %v", elapsed)
	}
}

func TestPushPatchFifoOrderAcrossPeeks(t *testing.T) {
	m := snapshot.NewManager(30*time.Second, 0)
	m.InitializeUser("u1")

	for i := 0; i < 3; i++ {
		p := fastjson.MustParse(fmt.Sprintf(`{"seq":%d}`, i))
		if err := m.PushPatch("u1", fmt.Sprintf("m%d", i), p); err != nil {
			t.Fatalf("PushPatch %d: %v", i, err)
		}
	}

	patches, err := m.Peek(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if len(patches) != 3 {
		t.Fatalf("expected 3 patches, got %d", len(patches))
	}
	for i, p := range patches {
		want := fmt.Sprintf(`{"seq":%d}`, i)
		if got := string(p.MarshalTo(nil)); got != want {
			t.Fatalf("patch %d = %s, want %s", i, got, want)
		}
	}
}

func TestPushPatchDuplicateMessageIDIsNoOp(t *testing.T) {
	m := snapshot.NewManager(30*time.Second, 0)
	m.InitializeUser("u1")

	p1 := fastjson.MustParse(`{"a":1}`)
	p2 := fastjson.MustParse(`{"a":2}`)
	if err := m.PushPatch("u1", "dup", p1); err != nil {
		t.Fatalf("PushPatch 1: %v", err)
	}
	if err := m.PushPatch("u1", "dup", p2); err != nil {
		t.Fatalf("PushPatch 2: %v", err)
	}

	patches, err := m.Peek(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if len(patches) != 1 {
		t.Fatalf("expected the duplicate push to be suppressed, got %d patches", len(patches))
	}

	snap, _ := m.Snapshot("u1")
	if got, want := string(snap.MarshalTo(nil)), `{"a":1}`; got != want {
		t.Fatalf("snapshot = %s, want %s", got, want)
	}
}

func TestApplyPatchesDoesNotEnqueue(t *testing.T) {
	m := snapshot.NewManager(50*time.Millisecond, 0)
	m.InitializeUser("u1")

	patches := []*fastjson.Value{
		fastjson.MustParse(`{"a":1}`),
		fastjson.MustParse(`{"b":2}`),
	}
	if err := m.ApplyPatches("u1", patches); err != nil {
		t.Fatalf("ApplyPatches: %v", err)
	}

	snap, err := m.Snapshot("u1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got, want := string(snap.MarshalTo(nil)), `{"a":1,"b":2}`; got != want {
		t.Fatalf("snapshot = %s, want %s", got, want)
	}

	// peek must time out empty: ApplyPatches never touches pending_patches.
	got, err := m.Peek(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no pending patches after ApplyPatches, got %v", got)
	}
}

func TestPeekUnknownUser(t *testing.T) {
	m := snapshot.NewManager(30*time.Second, 0)
	if _, err := m.Peek(context.Background(), "ghost"); err != snapshot.ErrUnknownUser {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestRemoveUserWakesBlockedPeek(t *testing.T) {
	m := snapshot.NewManager(30*time.Second, 0)
	m.InitializeUser("u1")

	done := make(chan error, 1)
	go func() {
		_, err := m.Peek(context.Background(), "u1")
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	m.RemoveUser("u1")

	select {
	case err := <-done:
		if err != snapshot.ErrUnknownUser {
			t.Fatalf("expected ErrUnknownUser after removal, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("peek never woke up after RemoveUser")
	}
}
