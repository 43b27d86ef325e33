// Package tui is a read-only terminal reviewer for plan files written by
// the detection commands.
package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type Screen int

const (
	MenuScreen Screen = iota
	ReviewScreen
)

type Model struct {
	currentScreen Screen
	menuModel     *MenuModel
	reviewModel   *ReviewModel
	quitting      bool
	width         int
	height        int
}

// NewModel builds the reviewer. Default plan names resolve against dir.
func NewModel(dir string) Model {
	return Model{
		currentScreen: MenuScreen,
		menuModel:     NewMenuModel(),
		reviewModel:   NewReviewModel(dir),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.menuModel.SetSize(msg.Width, msg.Height)
		m.reviewModel.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "q":
			// q is a valid path character while typing.
			if m.currentScreen != ReviewScreen || m.reviewModel.state != ReviewPathState {
				m.quitting = true
				return m, tea.Quit
			}
		case "esc":
			if m.currentScreen != MenuScreen {
				m.currentScreen = MenuScreen
				return m, nil
			}
		}

	case OpenArtifactMsg:
		m.reviewModel.Open(msg.Artifact)
		m.currentScreen = ReviewScreen
		return m, textinput.Blink
	}

	switch m.currentScreen {
	case MenuScreen:
		newMenuModel, cmd := m.menuModel.Update(msg)
		m.menuModel = newMenuModel.(*MenuModel)
		return m, cmd
	case ReviewScreen:
		newReviewModel, cmd := m.reviewModel.Update(msg)
		m.reviewModel = newReviewModel.(*ReviewModel)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.currentScreen {
	case MenuScreen:
		content = m.menuModel.View()
	case ReviewScreen:
		content = m.reviewModel.View()
	}
	return content
}

// OpenArtifactMsg switches to the review screen for one artifact.
type OpenArtifactMsg struct {
	Artifact Artifact
}
