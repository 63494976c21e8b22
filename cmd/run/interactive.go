package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/script-runtime/pipeline"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	inputEchoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const historyLimit = 200

type consoleModel struct {
	p     *pipeline.Pipeline
	doc   *pipeline.Document
	input textinput.Model
	lines []string
}

func newConsoleModel(p *pipeline.Pipeline, doc *pipeline.Document, banner string) *consoleModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "script expression, :bindings, :stats, :quit"
	ti.Width = 70
	ti.Focus()

	var lines []string
	if banner != "" {
		lines = strings.Split(strings.TrimRight(banner, "\n"), "\n")
	}
	return &consoleModel{p: p, doc: doc, input: ti, lines: lines}
}

func (m *consoleModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "ctrl+d":
			return m, tea.Quit
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			if line == ":quit" || line == ":q" {
				return m, tea.Quit
			}
			m.echo(inputEchoStyle.Render("> " + line))
			m.eval(line)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *consoleModel) eval(line string) {
	switch line {
	case ":bindings":
		names := m.doc.Binder().BoundNames()
		if len(names) == 0 {
			m.echo(helpStyle.Render("no module exports bound"))
			return
		}
		m.echo(resultStyle.Render(strings.Join(names, ", ")))
	case ":stats":
		s := m.p.CacheStats()
		m.echo(resultStyle.Render(fmt.Sprintf(
			"%d hits, %d misses, %d compiles, %d evictions",
			s.Hits, s.Misses, s.Compiles, s.Evictions)))
	default:
		v, err := m.doc.Binder().Runtime().RunString(line)
		if err != nil {
			m.echo(errorStyle.Render(err.Error()))
			return
		}
		m.echo(resultStyle.Render(fmt.Sprintf("%v", v)))
	}
}

func (m *consoleModel) echo(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > historyLimit {
		m.lines = m.lines[len(m.lines)-historyLimit:]
	}
}

func (m *consoleModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("script console"))
	b.WriteString("\n\n")
	for _, line := range m.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(":bindings exports • :stats cache • :quit exit"))
	return b.String()
}

// runInteractive loads the given files into a document, then drops into a
// console evaluating lines in the document's global scope.
func runInteractive(files []string, typeToken string, log *zap.Logger) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("interactive mode requires a terminal")
	}
	ctx := context.Background()

	p, doc, err := loadDocument(ctx, files, typeToken, log)
	if err != nil {
		return err
	}
	defer doc.Close(ctx)

	banner := ""
	if len(files) > 0 {
		banner = formatResults(doc.Run(ctx))
	}

	prog := tea.NewProgram(newConsoleModel(p, doc, banner), tea.WithAltScreen())
	_, err = prog.Run()
	return err
}
