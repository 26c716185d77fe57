package cli

import (
	"fmt"
	"strings"
	"time"

	coreapp "svorder/internal/core/app"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	cycleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	omittedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
	omitted     bool
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type model struct {
	list       list.Model
	order      []string
	omitted    []string
	cycles     []coreapp.FileCycle
	lastErr    string
	lastUpdate time.Time
	runs       int
}

type updateMsg struct {
	result *coreapp.Result
	err    error
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	case updateMsg:
		m.lastUpdate = time.Now()
		m.runs++
		if msg.err != nil {
			// Keep showing the previous order next to the failure.
			m.lastErr = msg.err.Error()
			break
		}
		m.lastErr = ""
		m.order = msg.result.Order
		m.omitted = msg.result.Omitted
		m.cycles = msg.result.Cycles()
		m.list.SetItems(m.items())
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) items() []list.Item {
	items := make([]list.Item, 0, len(m.order)+len(m.omitted))
	for i, p := range m.order {
		items = append(items, item{title: fmt.Sprintf("%3d  %s", i+1, p), desc: "compile"})
	}
	inCycle := make(map[string]string)
	for _, c := range m.cycles {
		chain := strings.Join(c.Files, " -> ")
		for _, f := range c.Files {
			inCycle[f] = chain
		}
	}
	for _, p := range m.omitted {
		desc := "omitted: only reachable from omitted files"
		if chain, ok := inCycle[p]; ok {
			desc = "omitted: cycle " + chain
		}
		items = append(items, item{title: "  -  " + p, desc: desc, omitted: true})
	}
	return items
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf("Last update: %v | run %d | %d ordered",
		m.lastUpdate.Format("15:04:05"), m.runs, len(m.order)))

	var summary string
	switch {
	case m.lastErr != "":
		summary = cycleStyle.Render("Error: " + m.lastErr)
	case len(m.omitted) == 0:
		summary = successStyle.Render("All files ordered")
	default:
		summary = fmt.Sprintf("%s | %s",
			cycleStyle.Render(fmt.Sprintf("%d Cycles", len(m.cycles))),
			omittedStyle.Render(fmt.Sprintf("%d Omitted", len(m.omitted))))
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("SystemVerilog Compilation Order"), status, summary)
	return docStyle.Render(header + "\n" + m.list.View())
}

func initialModel() model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Compilation Order"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	return model{
		list:       l,
		lastUpdate: time.Now(),
	}
}
