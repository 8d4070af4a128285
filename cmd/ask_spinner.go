package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type askDoneMsg struct {
	err error
}

type askSpinnerModel struct {
	spinner spinner.Model
	label   string
	run     tea.Cmd
	err     error
	done    bool
}

func newAskSpinnerModel(label string, run tea.Cmd) askSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return askSpinnerModel{
		spinner: s,
		label:   label,
		run:     run,
	}
}

func (m askSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run)
}

func (m askSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case askDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m askSpinnerModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

func runAskSpinner(ctx context.Context, output io.Writer, run func(context.Context) error) error {
	runCmd := func() tea.Msg {
		return askDoneMsg{err: run(ctx)}
	}

	p := tea.NewProgram(
		newAskSpinnerModel("正在检索校园知识库…", runCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(askSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}
