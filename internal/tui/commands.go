package tui

import (
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/driveshow/driveshow/internal/domain"
)

// Command factories for async operations

// watchSnapshotsCmd waits for the sync engine to publish a new snapshot.
// Re-armed after every snapshotMsg.
func watchSnapshotsCmd(engine SnapshotSource) tea.Cmd {
	return func() tea.Msg {
		<-engine.Updates()
		return snapshotMsg{Snapshot: engine.Snapshot()}
	}
}

// watchAuthCmd waits for the next auth event. Re-armed after every
// authEventMsg.
func watchAuthCmd(events <-chan domain.AuthEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return authEventMsg{Event: ev}
	}
}

// tickCmd schedules the next rotation advance.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// renderSlideCmd decodes and renders an image off the update loop.
func renderSlideCmd(img domain.CachedImage, width, height int) tea.Cmd {
	return func() tea.Msg {
		frame, err := renderFile(img.LocalPath, width, height)
		name := img.Name
		if name == "" {
			name = filepath.Base(img.LocalPath)
		}
		return slideMsg{Frame: frame, Name: name, Err: err}
	}
}
