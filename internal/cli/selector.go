package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	selectorTitleStyle  = lipgloss.NewStyle().Bold(true)
	selectorCursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectorHelpStyle   = lipgloss.NewStyle().Faint(true)
)

type selectorModel struct {
	title    string
	labels   []string
	selected []bool
	cursor   int
	done     bool
	aborted  bool
}

func (m selectorModel) Init() tea.Cmd { return nil }

func (m selectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.aborted = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.labels)-1 {
				m.cursor++
			}
		case " ":
			m.selected[m.cursor] = !m.selected[m.cursor]
		case "a":
			for i := range m.selected {
				m.selected[i] = true
			}
		case "n":
			for i := range m.selected {
				m.selected[i] = false
			}
		case "enter":
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m selectorModel) View() string {
	if m.done || m.aborted {
		return ""
	}
	s := selectorTitleStyle.Render(m.title) + "\n\n"
	for i, label := range m.labels {
		cursor := "  "
		if i == m.cursor {
			cursor = selectorCursorStyle.Render("> ")
		}
		mark := "[ ]"
		if m.selected[i] {
			mark = "[x]"
		}
		s += fmt.Sprintf("%s%s %s\n", cursor, mark, label)
	}
	s += "\n" + selectorHelpStyle.Render("space toggle · a all · n none · enter confirm · q abort")
	return s
}

// MultiSelect shows an interactive checklist and returns the chosen flags.
// Returns an error when the user aborts.
func MultiSelect(title string, labels []string, preselected []bool) ([]bool, error) {
	selected := make([]bool, len(labels))
	copy(selected, preselected)

	model := selectorModel{title: title, labels: labels, selected: selected}
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, err
	}
	result := final.(selectorModel)
	if result.aborted {
		return nil, fmt.Errorf("selection aborted")
	}
	return result.selected, nil
}
