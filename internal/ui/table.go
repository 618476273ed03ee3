package ui

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Participant is one row of the participant table.
type Participant struct {
	ID     string
	Name   string
	Self   bool
	Linked bool
	Audio  bool
	Video  bool
}

// ShortID trims a connection id to something readable.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ParticipantTableView renders participants sorted with self first, then by
// name and id.
func ParticipantTableView(participants []Participant) string {
	if len(participants) == 0 {
		return MutedStyle.Render("Nobody here yet")
	}

	sorted := append([]Participant(nil), participants...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Self != sorted[j].Self {
			return sorted[i].Self
		}
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].ID < sorted[j].ID
	})

	rows := make([][]string, 0, len(sorted))
	for _, p := range sorted {
		name := p.Name
		if name == "" {
			name = MutedStyle.Render("unknown")
		}
		if p.Self {
			name += " (you)"
		}
		link := "-"
		switch {
		case p.Self:
		case p.Linked:
			link = IconLink
		default:
			link = MutedStyle.Render("pending")
		}
		rows = append(rows, []string{ShortID(p.ID), name, micIcon(p.Audio), camIcon(p.Video), link})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("ID", "Name", "Mic", "Cam", "P2P").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func micIcon(on bool) string {
	if on {
		return IconMicOn
	}
	return IconMicOff
}

func camIcon(on bool) string {
	if on {
		return IconCamOn
	}
	return IconCamOff
}

// RoomInfoView is the box printed once a room has been created.
func RoomInfoView(roomID, serverURL string, copied bool) string {
	content := fmt.Sprintf("%s Room Created!\n\n%s Room code:  %s\n%s Server:     %s",
		IconSuccess,
		IconRoom, BoldStyle.Foreground(Primary).Render(roomID),
		IconWeb, MutedStyle.Render(serverURL),
	)
	if copied {
		content += fmt.Sprintf("\n%s %s", IconCopy, MutedStyle.Render("code copied to clipboard"))
	}
	content += "\n\n" + MutedStyle.Render("Others join with: connectly join "+roomID)
	return RoomBoxStyle.Render(content)
}
