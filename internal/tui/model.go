// Package tui is the presentation loop: a full-screen Bubble Tea
// program that rotates through the cached images on a timer.
package tui

import (
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/driveshow/driveshow/internal/domain"
	"github.com/driveshow/driveshow/internal/rotation"
)

// SnapshotSource is the slice of the sync engine the display reads.
// Touch reports that an image was shown so cache eviction can favor
// recently displayed images.
type SnapshotSource interface {
	Snapshot() *domain.Snapshot
	Updates() <-chan struct{}
	Touch(id string)
}

// displayState represents what the screen currently shows.
type displayState int

const (
	stateWaiting displayState = iota // no images yet, idle placeholder
	stateAuthorizing                 // first-run device-flow prompt
	stateShowing                     // slideshow running
)

// Model is the Bubble Tea model for the slideshow.
type Model struct {
	engine       SnapshotSource
	authEvents   <-chan domain.AuthEvent
	logger       *slog.Logger
	showCaptions bool

	state    displayState
	spinner  spinner.Model
	rotation *rotation.Rotation
	interval time.Duration

	width  int
	height int

	current    domain.CachedImage
	hasCurrent bool
	frame      string
	caption    string

	verificationURL string
	userCode        string
}

// NewModel creates the slideshow model.
func NewModel(engine SnapshotSource, authEvents <-chan domain.AuthEvent, showCaptions bool, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(Amber)
	return Model{
		engine:       engine,
		authEvents:   authEvents,
		logger:       logger,
		showCaptions: showCaptions,
		state:        stateWaiting,
		spinner:      sp,
		rotation:     rotation.New(),
		interval:     domain.MinInterval,
	}
}

// Init starts the watchers and the rotation timer.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		watchSnapshotsCmd(m.engine),
		watchAuthCmd(m.authEvents),
		func() tea.Msg { return snapshotMsg{Snapshot: m.engine.Snapshot()} },
		tickCmd(m.interval),
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ", "right", "n":
			if m.state == stateShowing || m.state == stateWaiting {
				return m, m.advance()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.hasCurrent {
			return m, renderSlideCmd(m.current, m.imageWidth(), m.imageHeight())
		}
		return m, nil

	case snapshotMsg:
		return m.applySnapshot(msg.Snapshot)

	case authEventMsg:
		return m.applyAuthEvent(msg.Event)

	case tickMsg:
		cmds := []tea.Cmd{tickCmd(m.interval)}
		if m.state != stateAuthorizing {
			if cmd := m.advance(); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return m, tea.Batch(cmds...)

	case slideMsg:
		if msg.Err != nil {
			// Keep the previous frame; the file will be retried on a
			// later pass through the rotation.
			m.logger.Warn("failed to render slide", "name", msg.Name, "error", msg.Err)
			return m, nil
		}
		m.frame = msg.Frame
		m.caption = msg.Name
		m.state = stateShowing
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// applySnapshot installs a new cache snapshot into the rotation.
func (m Model) applySnapshot(snap *domain.Snapshot) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{watchSnapshotsCmd(m.engine)}

	if snap == nil {
		return m, tea.Batch(cmds...)
	}
	m.interval = snap.Interval
	m.rotation.SetImages(snap.Images)

	if snap.Empty() {
		if m.state == stateShowing {
			m.state = stateWaiting
			m.frame = ""
			m.hasCurrent = false
		}
		return m, tea.Batch(cmds...)
	}

	// Show the first image as soon as one exists rather than waiting a
	// full interval.
	if !m.hasCurrent && m.state != stateAuthorizing {
		if cmd := m.advance(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

// applyAuthEvent reflects device-flow progress on screen.
func (m Model) applyAuthEvent(ev domain.AuthEvent) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{watchAuthCmd(m.authEvents)}

	switch ev.Kind {
	case domain.AuthEventCodeReady:
		m.state = stateAuthorizing
		m.verificationURL = ev.VerificationURL
		m.userCode = ev.UserCode
	case domain.AuthEventCompleted:
		if m.hasCurrent {
			m.state = stateShowing
		} else {
			m.state = stateWaiting
			if cmd := m.advance(); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	}
	return m, tea.Batch(cmds...)
}

// advance steps the rotation and kicks off rendering of the next slide.
func (m *Model) advance() tea.Cmd {
	img, ok := m.rotation.Next()
	if !ok {
		m.state = stateWaiting
		m.frame = ""
		m.hasCurrent = false
		return nil
	}
	m.current = img
	m.hasCurrent = true
	m.engine.Touch(img.ID)
	if m.width == 0 || m.height == 0 {
		return nil
	}
	return renderSlideCmd(img, m.imageWidth(), m.imageHeight())
}

// imageWidth and imageHeight return the cell area reserved for the
// slide itself.
func (m Model) imageWidth() int { return m.width }

func (m Model) imageHeight() int {
	if m.showCaptions && m.height > 1 {
		return m.height - 1
	}
	return m.height
}

// View renders the current state full-screen.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	switch m.state {
	case stateAuthorizing:
		return m.viewAuthPrompt()
	case stateShowing:
		if m.frame != "" {
			if m.showCaptions {
				caption := captionStyle.Render(truncate(m.caption, m.width))
				return lipgloss.JoinVertical(lipgloss.Center, m.frame,
					lipgloss.PlaceHorizontal(m.width, lipgloss.Center, caption))
			}
			return m.frame
		}
		fallthrough
	default:
		return m.viewWaiting()
	}
}

func (m Model) viewAuthPrompt() string {
	box := authBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render("Authorize this display"),
		"",
		subtitleStyle.Render("Open "+m.verificationURL+" in a browser"),
		subtitleStyle.Render("and enter the code"),
		"",
		codeStyle.Render(m.userCode),
		"",
		dimStyle.Render(m.spinner.View()+" waiting for approval"),
	))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) viewWaiting() string {
	msg := m.spinner.View() + " " + subtitleStyle.Render("waiting for images")
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, msg)
}

// truncate clips s to width runes.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width])
}
