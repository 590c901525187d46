package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-ffi/ffi"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectShim modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	err      error
	session  *session
	outcome  *outcome
	shims    []*ffi.Shim
	inputs   []textinput.Model
	history  []string
	selected int
	focusIdx int
	state    modelState
}

type callResultMsg struct {
	err     error
	outcome *outcome
}

func newInteractiveModel(s *session) *interactiveModel {
	return &interactiveModel{
		session: s,
		shims:   s.shims(),
		state:   stateSelectShim,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectShim && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectShim && m.selected < len(m.shims)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectShim:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callShim
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callShim

			case stateShowResult:
				m.reset()
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectShim
				m.inputs = nil
			case stateShowResult:
				m.reset()
			}
		}

	case callResultMsg:
		m.outcome = msg.outcome
		m.err = msg.err
		m.state = stateShowResult
		if msg.outcome != nil {
			m.history = append(m.history, msg.outcome.Symbol+" -> "+msg.outcome.Status.String())
		}
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) reset() {
	m.state = stateSelectShim
	m.outcome = nil
	m.err = nil
}

func (m *interactiveModel) prepareInputs() {
	sh := m.shims[m.selected]
	m.inputs = make([]textinput.Model, len(sh.Params))
	for i, p := range sh.Params {
		ti := textinput.New()
		ti.Placeholder = placeholder(p)
		ti.Prompt = sh.ParamName(i) + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func placeholder(p *ffi.Type) string {
	switch p.Shape {
	case ffi.ShapeOwnedSlice, ffi.ShapeView:
		return "1 2 3"
	case ffi.ShapeExclusive, ffi.ShapeShared:
		return "value or null"
	}
	switch {
	case p.Kind == ffi.KindHandle:
		return "handle"
	case p.Kind.IsScalar():
		return p.String()
	}
	return "not enterable"
}

func (m *interactiveModel) callShim() tea.Msg {
	sh := m.shims[m.selected]
	args := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		args[i] = input.Value()
	}
	out, err := m.session.call(sh.Symbol, args)
	return callResultMsg{outcome: out, err: err}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("FFI Shims"))
	b.WriteString(" ")
	b.WriteString(fmt.Sprintf("%d exported", len(m.shims)))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectShim:
		b.WriteString("Select a shim to call:\n\n")
		for i, sh := range m.shims {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + sh.Signature()))
			} else {
				b.WriteString("  " + formatShim(sh))
			}
			b.WriteString("\n")
		}
		if len(m.history) > 0 {
			b.WriteString("\n")
			b.WriteString(helpStyle.Render("last: " + m.history[len(m.history)-1]))
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		sh := m.shims[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n", funcStyle.Render(sh.Symbol)))
		b.WriteString(helpStyle.Render(sh.Prototype()))
		b.WriteString("\n\n")
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(sh.Params[i].String()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		sh := m.shims[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(sh.Symbol)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			var out strings.Builder
			printOutcome(&out, palette{enabled: true}, m.outcome)
			b.WriteString(out.String())
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func formatShim(sh *ffi.Shim) string {
	sig := sh.Signature()
	if i := strings.Index(sig, ": "); i > 0 {
		return funcStyle.Render(sig[:i]) + typeStyle.Render(sig[i:])
	}
	return funcStyle.Render(sig)
}

func runInteractive(s *session) error {
	p := tea.NewProgram(newInteractiveModel(s), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
