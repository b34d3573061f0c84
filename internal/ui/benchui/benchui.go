// Package benchui renders a live benchmark run as a terminal UI.
package benchui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Result is one finished probe benchmark.
type Result struct {
	Name       string
	Iterations int
	Total      time.Duration
	PerOp      time.Duration
}

type resultMsg Result

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")).Bold(true)
	nameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC800"))
	timeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#B4B4B4"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true)
	abortedText = "aborted"
)

// Model is the bubbletea model for a benchmark run.
type Model struct {
	spinner  spinner.Model
	progress progress.Model
	results  []Result
	total    int
	aborted  bool
	ch       <-chan Result
}

// New creates a bench UI over a channel of results. The run is complete
// after total results arrive.
func New(total int, ch <-chan Result) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB4C8"))

	return Model{
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient()),
		total:    total,
		ch:       ch,
	}
}

// Run drives the UI until all results arrived or the user quits.
func Run(total int, ch <-chan Result) ([]Result, error) {
	final, err := tea.NewProgram(New(total, ch)).Run()
	if err != nil {
		return nil, fmt.Errorf("bench ui: %w", err)
	}
	m := final.(Model)
	if m.aborted {
		return m.results, fmt.Errorf("bench ui: %s", abortedText)
	}
	return m.results, nil
}

func (m Model) waitForResult() tea.Cmd {
	return func() tea.Msg {
		r, ok := <-m.ch
		if !ok {
			return tea.Quit()
		}
		return resultMsg(r)
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForResult())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		}
		return m, nil

	case resultMsg:
		m.results = append(m.results, Result(msg))
		if len(m.results) >= m.total {
			return m, tea.Quit
		}
		return m, m.waitForResult()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("microprobe bench"))
	b.WriteString("\n\n")

	for _, r := range m.results {
		b.WriteString(fmt.Sprintf("  %s %s\n",
			nameStyle.Render(fmt.Sprintf("%-16s", r.Name)),
			timeStyle.Render(fmt.Sprintf("%d iterations  %v total  %v/op",
				r.Iterations, r.Total.Round(time.Microsecond), r.PerOp.Round(time.Nanosecond)))))
	}

	if len(m.results) < m.total {
		b.WriteString(fmt.Sprintf("\n  %s running...\n", m.spinner.View()))
	} else {
		b.WriteString("\n  " + doneStyle.Render("done") + "\n")
	}

	frac := float64(len(m.results)) / float64(m.total)
	b.WriteString("\n  " + m.progress.ViewAs(frac) + "\n")

	return b.String()
}
