package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/canister-cdk/candid"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87CEEB"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// report is the rendered result of inspecting one message.
type report struct {
	size   int
	table  []string
	args   []string
	values []string
	dump   string
	err    error
	errAt  int
}

func inspectMessage(data []byte) report {
	r := report{size: len(data), dump: hex.Dump(data)}

	arena := candid.NewArena(0)
	defer arena.Destroy()

	dec, err := candid.NewDecoder(arena, data)
	if err != nil {
		r.err = err
		return r
	}
	for i, t := range dec.Table() {
		r.table = append(r.table, fmt.Sprintf("%d: %s", i, t))
	}
	for {
		t, v, err := dec.Next()
		if err != nil {
			if !dec.Done() {
				r.err = err
				r.errAt = dec.Offset()
			}
			break
		}
		r.args = append(r.args, t.String())
		r.values = append(r.values, v.String())
	}
	if r.err == nil && dec.Remaining() > 0 {
		r.err = fmt.Errorf("%d trailing bytes", dec.Remaining())
		r.errAt = dec.Offset()
	}
	return r
}

func (r report) render(styled bool) string {
	style := func(s lipgloss.Style, text string) string {
		if styled {
			return s.Render(text)
		}
		return text
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %d bytes\n\n", style(sectionStyle, "Message"), r.size)

	b.WriteString(style(sectionStyle, "Type table"))
	b.WriteByte('\n')
	if len(r.table) == 0 {
		b.WriteString("  (empty)\n")
	}
	for _, line := range r.table {
		b.WriteString("  " + line + "\n")
	}

	b.WriteByte('\n')
	b.WriteString(style(sectionStyle, "Arguments"))
	b.WriteByte('\n')
	for i := range r.args {
		fmt.Fprintf(&b, "  %d: %s = %s\n", i, style(typeStyle, r.args[i]), r.values[i])
	}
	if r.err != nil {
		b.WriteString(style(errorStyle, fmt.Sprintf("  error at offset %d: %v", r.errAt, r.err)))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	b.WriteString(style(sectionStyle, "Bytes"))
	b.WriteByte('\n')
	b.WriteString(r.dump)
	return b.String()
}

func (a *app) inspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	interactive := fs.Bool("i", false, "Interactive mode with TUI")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("inspect: expected one message")
	}
	data, err := readMessage(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}

	r := inspectMessage(data)
	tty := term.IsTerminal(int(os.Stdout.Fd()))
	if *interactive && tty {
		return runInteractive(fs.Arg(0), r)
	}
	_, err = fmt.Fprint(a.stdout, r.render(false))
	if err == nil && r.err != nil {
		return r.err
	}
	return err
}

type inspectModel struct {
	source   string
	body     string
	viewport viewport.Model
	ready    bool
}

func newInspectModel(source string, r report) *inspectModel {
	if len(source) > 40 {
		source = source[:37] + "..."
	}
	return &inspectModel{source: source, body: r.render(true)}
}

func (m *inspectModel) Init() tea.Cmd {
	return nil
}

func (m *inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		height := msg.Height - 3
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.SetContent(m.body)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *inspectModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Candid Inspector") + " " + m.source
	footer := helpStyle.Render(fmt.Sprintf("%3.f%% • ↑/↓ scroll • q quit", m.viewport.ScrollPercent()*100))
	return header + "\n" + m.viewport.View() + "\n" + footer
}

func runInteractive(source string, r report) error {
	p := tea.NewProgram(newInspectModel(source, r), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
