package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/krishangoyal12/Video-Chat-Application/internal/call"
	"github.com/krishangoyal12/Video-Chat-Application/internal/mesh"
)

const refreshInterval = 250 * time.Millisecond

type tickMsg time.Time

// callModel redraws the call state on a timer and hangs up on q.
type callModel struct {
	snapshot func() call.Snapshot
	hangup   func()
	current  call.Snapshot
	spinner  spinner.Model
	quitting bool
}

func newCallModel(snapshot func() call.Snapshot, hangup func()) *callModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &callModel{
		snapshot: snapshot,
		hangup:   hangup,
		current:  snapshot(),
		spinner:  s,
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *callModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func (m *callModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			if m.hangup != nil {
				m.hangup()
			}
			return m, tea.Quit
		}

	case tickMsg:
		m.current = m.snapshot()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *callModel) View() string {
	if m.quitting {
		return ""
	}

	s := m.current
	var b strings.Builder

	b.WriteString(fmt.Sprintf("\n%s %s  %s  %s\n\n",
		IconRoom, TitleStyle.Render(s.RoomID), StatusBadge(s.Status), MutedStyle.Render(formatDuration(s.Elapsed))))

	switch {
	case !s.Connected:
		b.WriteString(fmt.Sprintf("%s Connecting to signaling server...\n", m.spinner.View()))
	case s.Status == mesh.StatusConnecting:
		b.WriteString(fmt.Sprintf("%s Negotiating media...\n", m.spinner.View()))
	default:
		b.WriteString(fmt.Sprintf("%s You are %s\n", IconPeer, MutedStyle.Render(shortID(s.LocalID))))
	}
	if s.LastError != "" {
		b.WriteString(WarningStyle.Render(IconWarning+" "+s.LastError) + "\n")
	}

	b.WriteString("\n" + PeersView(s.Peers) + "\n")
	b.WriteString("\n" + MutedStyle.Render("Press q to hang up"))
	return b.String()
}

// CallView is the live terminal view of a running call.
type CallView struct {
	program *tea.Program
}

// NewCallView builds a view that polls snapshot and calls hangup when the
// user quits.
func NewCallView(snapshot func() call.Snapshot, hangup func()) *CallView {
	return &CallView{
		program: tea.NewProgram(newCallModel(snapshot, hangup)),
	}
}

// Run blocks until the user quits, Quit is called or ctx is done.
func (v *CallView) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			v.program.Quit()
		case <-done:
		}
	}()

	_, err := v.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// Quit closes the view without hanging up.
func (v *CallView) Quit() {
	v.program.Quit()
}
