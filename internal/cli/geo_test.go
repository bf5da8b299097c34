package cli

import (
	"context"
	"testing"

	"tunveil/internal/core/types"
)

type fakeRestarter struct {
	status   types.Status
	restarts int
}

func (f *fakeRestarter) Session() types.TunnelSession {
	return types.TunnelSession{Status: f.status}
}

func (f *fakeRestarter) Restart(ctx context.Context) error {
	f.restarts++
	return nil
}

func TestRestartAfterGeoChange(t *testing.T) {
	ctx := context.Background()

	// Both downloading and clearing the geo data invalidate the rules a
	// connected tunnel is running with, so an active session restarts.
	active := &fakeRestarter{status: types.StatusConnected}
	if err := restartAfterGeoChange(ctx, active); err != nil {
		t.Fatal(err)
	}
	if active.restarts != 1 {
		t.Errorf("restarts = %d, want 1", active.restarts)
	}

	idle := &fakeRestarter{status: types.StatusDisconnected}
	if err := restartAfterGeoChange(ctx, idle); err != nil {
		t.Fatal(err)
	}
	if idle.restarts != 0 {
		t.Errorf("restarts while disconnected = %d, want 0", idle.restarts)
	}
}
