package core

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"tunveil/internal/core/types"
	"tunveil/internal/storage"
	"tunveil/internal/storage/models"
	"tunveil/pkg/errors"
)

// HostVPN is the view of the host's VPN session table the orchestrator
// consults before bringing a tunnel up. Sessions belonging to processes
// that no longer exist are treated as stale and ignored.
type HostVPN interface {
	EnsureRegistered(ctx context.Context, profile string) error
	ListOtherActiveSessions(ctx context.Context, profile string) ([]types.SessionSummary, error)
}

// sessionGuard backs HostVPN with the sessions table.
type sessionGuard struct {
	store storage.Storage
}

// NewSessionGuard returns a HostVPN backed by store.
func NewSessionGuard(store storage.Storage) HostVPN {
	return &sessionGuard{store: store}
}

func (g *sessionGuard) EnsureRegistered(ctx context.Context, profile string) error {
	sess, err := g.store.GetSession(ctx, profile)
	if err != nil {
		return fmt.Errorf("failed to look up session %q: %w", profile, err)
	}
	if sess != nil {
		return nil
	}
	return g.store.SaveSession(ctx, &models.Session{
		Profile:   profile,
		Status:    string(types.StatusDisconnected),
		UpdatedAt: time.Now(),
	})
}

func (g *sessionGuard) ListOtherActiveSessions(ctx context.Context, profile string) ([]types.SessionSummary, error) {
	sessions, err := g.store.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var active []types.SessionSummary
	for _, s := range sessions {
		if s.Profile == profile {
			continue
		}
		if !types.Status(s.Status).Active() {
			continue
		}
		if s.PID > 0 && !processAlive(s.PID) {
			// The owning process died without cleaning up its row.
			continue
		}
		active = append(active, types.SessionSummary{
			Profile: s.Profile,
			Status:  types.Status(s.Status),
			PID:     s.PID,
		})
	}
	return active, nil
}

// processAlive reports whether pid refers to a live process.
func processAlive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}

// guardAgainstConflicts returns a ConflictError if another profile holds
// an active tunnel.
func guardAgainstConflicts(ctx context.Context, host HostVPN, profile string) error {
	if err := host.EnsureRegistered(ctx, profile); err != nil {
		return err
	}
	others, err := host.ListOtherActiveSessions(ctx, profile)
	if err != nil {
		return err
	}
	if len(others) > 0 {
		return &errors.ConflictError{
			Profile: others[0].Profile,
			Status:  string(others[0].Status),
		}
	}
	return nil
}
