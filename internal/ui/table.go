package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/krishangoyal12/Video-Chat-Application/internal/call"
	"github.com/krishangoyal12/Video-Chat-Application/internal/mesh"
)

// RoomInfo is the box printed after a room is created.
type RoomInfo struct {
	RoomID   string
	RoomLink string
	JoinCmd  string
}

func (r RoomInfo) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Room Created!\n\n%s Room ID:    %s\n%s Room Link:  %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconWeb, MutedStyle.Render(r.RoomLink),
	)
	if r.JoinCmd != "" {
		content += fmt.Sprintf("\n%s Join with:  %s", IconCall, MutedStyle.Render(r.JoinCmd))
	}
	return boxStyle.Render(content)
}

// PeersView renders one row per negotiation.
func PeersView(peers []mesh.PeerSnapshot) string {
	if len(peers) == 0 {
		return MutedStyle.Render(IconWaiting + " Waiting for others to join...")
	}

	rows := make([][]string, 0, len(peers))
	states := make([]mesh.State, 0, len(peers))
	for _, p := range peers {
		role := "answer"
		if p.Offerer {
			role = "offer"
		}
		rows = append(rows, []string{
			shortID(p.RemoteID),
			p.State.String(),
			role,
			fmt.Sprintf("%d", p.Stats.Tracks),
			fmt.Sprintf("%d", p.Stats.PacketsReceived),
			formatBytes(p.Stats.BytesReceived),
			fmt.Sprintf("%d", p.Recoveries),
		})
		states = append(states, p.State)
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Peer", "State", "Role", "Tracks", "Packets", "Received", "Recoveries").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case col == 1:
				return stateStyle(states[row]).Padding(0, 1)
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// SummaryView renders the end of call totals.
func SummaryView(s call.Summary) string {
	t := prettytable.NewWriter()
	t.SetTitle("Call Summary")
	t.AppendHeader(prettytable.Row{"Metric", "Value"})
	t.AppendRows([]prettytable.Row{
		{"Room", s.RoomID},
		{"Duration", formatDuration(s.Duration)},
		{"Peers met", s.PeersMet},
		{"Recoveries", s.Recoveries},
		{"Reconnects", s.Reconnects},
	})
	t.SetStyle(prettytable.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.SetColumnConfigs([]prettytable.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	return t.Render()
}

func RenderSummary(s call.Summary) {
	fmt.Println(SummaryView(s))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
