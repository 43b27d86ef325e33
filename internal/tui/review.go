package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/MikeWKI/WKI-WIP/internal/report"
)

type ReviewState int

const (
	ReviewPathState ReviewState = iota
	ReviewListState
)

type ReviewModel struct {
	state     ReviewState
	dir       string
	artifact  Artifact
	pathInput textinput.Model
	scroll    progress.Model
	entries   []Entry
	offset    int
	err       error
	width     int
	height    int
}

// NewReviewModel returns a review screen resolving default artifact names
// against dir.
func NewReviewModel(dir string) *ReviewModel {
	input := textinput.New()
	input.Placeholder = "path/to/plan.json"
	input.CharLimit = 512

	return &ReviewModel{
		dir:       dir,
		pathInput: input,
		scroll: progress.New(
			progress.WithSolidFill("#00aadd"),
			progress.WithoutPercentage(),
		),
	}
}

func (m *ReviewModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *ReviewModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Open resets the screen for artifact, prefilling its default path.
func (m *ReviewModel) Open(a Artifact) {
	m.artifact = a
	m.state = ReviewPathState
	m.entries = nil
	m.offset = 0
	m.err = nil
	m.pathInput.SetValue(filepath.Join(m.dir, a.File))
	m.pathInput.CursorEnd()
	m.pathInput.Focus()
}

func (m *ReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch m.state {
	case ReviewPathState:
		if key.String() == "enter" {
			m.load()
			return m, nil
		}
		var cmd tea.Cmd
		m.pathInput, cmd = m.pathInput.Update(key)
		return m, cmd

	case ReviewListState:
		switch key.String() {
		case "up", "k":
			m.move(-1)
		case "down", "j":
			m.move(1)
		case "pgup":
			m.move(-m.pageSize())
		case "pgdown", " ":
			m.move(m.pageSize())
		case "home", "g":
			m.offset = 0
		case "end", "G":
			m.move(len(m.entries))
		case "r":
			m.state = ReviewPathState
			m.pathInput.Focus()
		}
	}
	return m, nil
}

func (m *ReviewModel) load() {
	path := strings.TrimSpace(m.pathInput.Value())
	entries, err := m.artifact.Load(path)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.entries = entries
	m.offset = 0
	m.state = ReviewListState
	m.pathInput.Blur()
}

func (m *ReviewModel) move(delta int) {
	m.offset += delta
	if last := len(m.entries) - m.pageSize(); m.offset > last {
		m.offset = last
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m *ReviewModel) pageSize() int {
	if m.height <= 0 {
		return 20
	}
	return max(m.height-12, 5)
}

// Visible returns the entries currently on screen.
func (m *ReviewModel) Visible() []Entry {
	end := min(m.offset+m.pageSize(), len(m.entries))
	if m.offset >= end {
		return nil
	}
	return m.entries[m.offset:end]
}

func (m *ReviewModel) View() string {
	adaptiveTitleStyle, adaptiveFormStyle, adaptiveHelpStyle := GetAdaptiveStyles(m.width, m.height)
	title := adaptiveTitleStyle.Render(m.artifact.Title)

	if m.state == ReviewPathState {
		form := adaptiveFormStyle.Render(labelStyle.Render("Plan file:") + "\n" + m.pathInput.View())
		parts := []string{title, form}
		if m.err != nil {
			parts = append(parts, errorStyle.Render(fmt.Sprintf("Cannot open plan: %v", m.err)))
		}
		parts = append(parts, adaptiveHelpStyle.Render("Enter: Load • Esc: Back to menu"))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	if len(m.entries) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left,
			title,
			warningStyle.Render("Nothing to review: the plan is empty."),
			adaptiveHelpStyle.Render("r: Other file • Esc: Back to menu"))
	}

	var rows strings.Builder
	for _, e := range m.Visible() {
		rows.WriteString(actionStyle(e.Action).Render(fmt.Sprintf("%-7s", e.Action)))
		rows.WriteString(" ")
		rows.WriteString(fmt.Sprintf("%-10s %-33s %s",
			report.Fit(e.RO, report.ColRO.Width),
			report.Fit(e.Customer, report.ColCustomer.Width),
			report.Fit(e.Detail, report.ColDetail.Width)))
		rows.WriteString("\n")
	}

	position := 1.0
	if last := len(m.entries) - m.pageSize(); last > 0 {
		position = float64(m.offset) / float64(last)
	}
	scrollWidth := min(max(m.width-10, 20), 80)
	m.scroll.Width = scrollWidth

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		summaryLine(m.entries),
		rows.String(),
		progressStyle.Render(m.scroll.ViewAs(position)),
		adaptiveHelpStyle.Render("↑/↓ PgUp/PgDn: Scroll • r: Other file • Esc: Back to menu"))
}

func summaryLine(entries []Entry) string {
	counts := Summary(entries)
	actions := make([]string, 0, len(counts))
	for a := range counts {
		actions = append(actions, string(a))
	}
	sort.Strings(actions)

	parts := make([]string, 0, len(actions)+1)
	for _, a := range actions {
		parts = append(parts, actionStyle(Action(a)).Render(fmt.Sprintf("%s %d", a, counts[Action(a)])))
	}
	parts = append(parts, fmt.Sprintf("of %d", len(entries)))
	return strings.Join(parts, "  ")
}
