package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/driveshow/driveshow/internal/domain"
	"github.com/driveshow/driveshow/internal/logging"
)

type fakeSource struct {
	snap    *domain.Snapshot
	updates chan struct{}
	touched []string
}

func (f *fakeSource) Snapshot() *domain.Snapshot { return f.snap }
func (f *fakeSource) Updates() <-chan struct{}   { return f.updates }
func (f *fakeSource) Touch(id string)            { f.touched = append(f.touched, id) }

func newTestModel() Model {
	src := &fakeSource{updates: make(chan struct{}, 1)}
	events := make(chan domain.AuthEvent, 1)
	return NewModel(src, events, true, logging.Null())
}

func sized(t *testing.T, m Model, w, h int) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: w, Height: h})
	return next.(Model)
}

func TestModel_QuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c", "esc"} {
		m := newTestModel()
		var msg tea.Msg
		if key == "ctrl+c" {
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		} else if key == "esc" {
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		} else {
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
		}
		_, cmd := m.Update(msg)
		if cmd == nil {
			t.Fatalf("key %q: expected a command", key)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("key %q: expected quit", key)
		}
	}
}

func TestModel_SnapshotStartsSlideshow(t *testing.T) {
	m := sized(t, newTestModel(), 80, 24)

	snap := &domain.Snapshot{
		Images:   []domain.CachedImage{{ID: "a", Name: "beach.jpg", LocalPath: "/tmp/a.jpg"}},
		Interval: 15 * time.Second,
	}
	next, _ := m.Update(snapshotMsg{Snapshot: snap})
	m = next.(Model)

	if !m.hasCurrent {
		t.Fatal("expected a current image after a non-empty snapshot")
	}
	if m.interval != 15*time.Second {
		t.Errorf("interval = %v, want 15s", m.interval)
	}

	next, _ = m.Update(slideMsg{Frame: "FRAME", Name: "beach.jpg"})
	m = next.(Model)
	if m.state != stateShowing {
		t.Errorf("state = %v, want showing", m.state)
	}
	view := m.View()
	if !strings.Contains(view, "FRAME") {
		t.Error("expected rendered frame in view")
	}
	if !strings.Contains(view, "beach.jpg") {
		t.Error("expected caption in view")
	}
}

func TestModel_DisplayedImagesAreTouched(t *testing.T) {
	src := &fakeSource{updates: make(chan struct{}, 1)}
	events := make(chan domain.AuthEvent, 1)
	m := sized(t, NewModel(src, events, false, logging.Null()), 80, 24)

	snap := &domain.Snapshot{
		Images: []domain.CachedImage{
			{ID: "a", LocalPath: "/tmp/a.jpg"},
			{ID: "b", LocalPath: "/tmp/b.jpg"},
		},
		Interval: domain.MinInterval,
	}
	next, _ := m.Update(snapshotMsg{Snapshot: snap})
	m = next.(Model)
	if len(src.touched) != 1 {
		t.Fatalf("touched = %v, want one mark after the first slide", src.touched)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m = next.(Model)
	if len(src.touched) != 2 {
		t.Fatalf("touched = %v, want a second mark after skipping", src.touched)
	}
}

func TestModel_EmptySnapshotReturnsToWaiting(t *testing.T) {
	m := sized(t, newTestModel(), 80, 24)

	snap := &domain.Snapshot{
		Images:   []domain.CachedImage{{ID: "a", LocalPath: "/tmp/a.jpg"}},
		Interval: domain.MinInterval,
	}
	next, _ := m.Update(snapshotMsg{Snapshot: snap})
	m = next.(Model)
	next, _ = m.Update(slideMsg{Frame: "FRAME", Name: "a.jpg"})
	m = next.(Model)

	next, _ = m.Update(snapshotMsg{Snapshot: &domain.Snapshot{Interval: domain.MinInterval}})
	m = next.(Model)
	if m.state != stateWaiting {
		t.Errorf("state = %v, want waiting", m.state)
	}
	if strings.Contains(m.View(), "FRAME") {
		t.Error("stale frame still visible after images were removed")
	}
}

func TestModel_AuthPromptShowsCode(t *testing.T) {
	m := sized(t, newTestModel(), 80, 24)

	next, _ := m.Update(authEventMsg{Event: domain.AuthEvent{
		Kind:            domain.AuthEventCodeReady,
		VerificationURL: "https://example.com/device",
		UserCode:        "ABCD-1234",
	}})
	m = next.(Model)

	if m.state != stateAuthorizing {
		t.Fatalf("state = %v, want authorizing", m.state)
	}
	view := m.View()
	if !strings.Contains(view, "ABCD-1234") {
		t.Error("expected user code in view")
	}
	if !strings.Contains(view, "example.com/device") {
		t.Error("expected verification URL in view")
	}

	next, _ = m.Update(authEventMsg{Event: domain.AuthEvent{Kind: domain.AuthEventCompleted}})
	m = next.(Model)
	if m.state == stateAuthorizing {
		t.Error("prompt still shown after authorization completed")
	}
}

func TestModel_RenderErrorKeepsPreviousFrame(t *testing.T) {
	m := sized(t, newTestModel(), 80, 24)
	next, _ := m.Update(slideMsg{Frame: "GOOD", Name: "good.jpg"})
	m = next.(Model)

	next, _ = m.Update(slideMsg{Name: "bad.jpg", Err: errors.New("decode failed")})
	m = next.(Model)
	if !strings.Contains(m.View(), "GOOD") {
		t.Error("previous frame lost after a render failure")
	}
}
