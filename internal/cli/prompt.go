package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type promptModel struct {
	input   textinput.Model
	done    bool
	aborted bool
}

func (m promptModel) Init() tea.Cmd { return textinput.Blink }

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.aborted = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || m.aborted {
		return ""
	}
	return m.input.View() + "\n"
}

// TextPrompt shows a single-line input and returns the trimmed value.
// Returns an error when the user aborts.
func TextPrompt(prompt, placeholder string) (string, error) {
	input := textinput.New()
	input.Prompt = prompt
	input.Placeholder = placeholder
	input.Focus()

	final, err := tea.NewProgram(promptModel{input: input}).Run()
	if err != nil {
		return "", err
	}
	m := final.(promptModel)
	if m.aborted {
		return "", fmt.Errorf("input aborted")
	}
	return strings.TrimSpace(m.input.Value()), nil
}
