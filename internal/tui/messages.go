package tui

import (
	"time"

	"github.com/driveshow/driveshow/internal/domain"
)

// tickMsg fires when it is time to advance the rotation.
type tickMsg time.Time

// snapshotMsg carries a freshly published cache snapshot.
type snapshotMsg struct {
	Snapshot *domain.Snapshot
}

// authEventMsg carries device-flow progress from the authenticator.
type authEventMsg struct {
	Event domain.AuthEvent
}

// slideMsg carries a rendered slide ready to display.
type slideMsg struct {
	Frame string
	Name  string
	Err   error
}
