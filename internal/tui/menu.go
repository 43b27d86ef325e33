package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type MenuModel struct {
	choices []string
	cursor  int
	width   int
	height  int
}

func NewMenuModel() *MenuModel {
	choices := make([]string, 0, len(Artifacts)+1)
	for _, a := range Artifacts {
		choices = append(choices, fmt.Sprintf("%s (%s)", a.Title, a.File))
	}
	choices = append(choices, "Exit")
	return &MenuModel{choices: choices}
}

func (m *MenuModel) Init() tea.Cmd {
	return nil
}

func (m *MenuModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			}
		case "enter", " ":
			return m, m.handleSelection()
		}
	}
	return m, nil
}

func (m *MenuModel) handleSelection() tea.Cmd {
	if m.cursor >= len(Artifacts) {
		return tea.Quit
	}
	artifact := Artifacts[m.cursor]
	return func() tea.Msg {
		return OpenArtifactMsg{Artifact: artifact}
	}
}

func (m *MenuModel) View() string {
	adaptiveTitleStyle, _, adaptiveHelpStyle := GetAdaptiveStyles(m.width, m.height)

	title := adaptiveTitleStyle.Render("WKI-WIP plan review")

	var menu string
	for i, choice := range m.choices {
		cursor := " "
		if m.cursor == i {
			cursor = ">"
			choice = selectedMenuItemStyle.Render(choice)
		} else {
			choice = menuItemStyle.Render(choice)
		}
		menu += fmt.Sprintf("%s %s\n", cursor, choice)
	}

	help := adaptiveHelpStyle.Render("↑/↓ (or j/k) to navigate • Enter to open • q to quit")

	content := lipgloss.JoinVertical(lipgloss.Center, title, menu, help)
	if m.width > 0 {
		content = lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	return content
}
