package core

import (
	"context"
	"os"
	"testing"
	"time"

	"tunveil/internal/core/types"
	"tunveil/internal/storage/models"
)

func TestSessionGuardRegistersProfile(t *testing.T) {
	store := newMemStore()
	guard := NewSessionGuard(store)
	ctx := context.Background()

	if err := guard.EnsureRegistered(ctx, "alpha"); err != nil {
		t.Fatalf("EnsureRegistered failed: %v", err)
	}

	row, _ := store.GetSession(ctx, "alpha")
	if row == nil || row.Status != string(types.StatusDisconnected) {
		t.Errorf("row = %+v, want Disconnected registration", row)
	}

	// Registering again must not clobber an existing row.
	row.Status = string(types.StatusConnected)
	if err := guard.EnsureRegistered(ctx, "alpha"); err != nil {
		t.Fatal(err)
	}
	row, _ = store.GetSession(ctx, "alpha")
	if row.Status != string(types.StatusConnected) {
		t.Error("EnsureRegistered overwrote an existing session row")
	}
}

func TestSessionGuardDetectsActiveSessions(t *testing.T) {
	store := newMemStore()
	guard := NewSessionGuard(store)
	ctx := context.Background()

	now := time.Now()
	sessions := []*models.Session{
		{Profile: "self", Status: string(types.StatusConnected), PID: os.Getpid(), UpdatedAt: now},
		{Profile: "live", Status: string(types.StatusConnected), PID: os.Getpid(), UpdatedAt: now},
		{Profile: "idle", Status: string(types.StatusDisconnected), UpdatedAt: now},
		// A row whose process died without cleanup is stale, not a conflict.
		{Profile: "stale", Status: string(types.StatusConnected), PID: 1 << 30, UpdatedAt: now},
	}
	for _, s := range sessions {
		if err := store.SaveSession(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	others, err := guard.ListOtherActiveSessions(ctx, "self")
	if err != nil {
		t.Fatalf("ListOtherActiveSessions failed: %v", err)
	}

	if len(others) != 1 {
		t.Fatalf("got %d active sessions, want 1: %+v", len(others), others)
	}
	if others[0].Profile != "live" {
		t.Errorf("active profile = %q, want live", others[0].Profile)
	}
}

func TestPortAllocator(t *testing.T) {
	var alloc PortAllocator

	port, err := alloc.FreePort()
	if err != nil {
		t.Fatalf("FreePort failed: %v", err)
	}
	if port <= 0 || port > 65535 {
		t.Errorf("FreePort returned %d", port)
	}

	if err := alloc.CheckPort(port); err != nil {
		t.Errorf("CheckPort(%d) on a just-freed port failed: %v", port, err)
	}

	if err := alloc.CheckPort(0); err == nil {
		t.Error("CheckPort(0) should fail")
	}
	if err := alloc.CheckPort(70000); err == nil {
		t.Error("CheckPort(70000) should fail")
	}
}
