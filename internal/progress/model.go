// Package progress renders a live view of a ranking run in the terminal.
package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	progressbar "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fyrsmithlabs/bertrank/internal/manager"
)

const (
	barWidth        = 40
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = sparklineWidth
	refreshInterval = time.Second
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// Model is the bubbletea model for a ranking run.
type Model struct {
	total     int
	done      int
	entries   int
	skipped   int
	lastQuery string

	started time.Time
	lastAt  time.Time
	now     time.Time

	// Seconds spent on each of the most recent queries.
	history []float64

	bar       progressbar.Model
	interrupt func()
	finished  bool
	quitting  bool
	err       error
}

// NewModel creates a Model for a run of total queries. interrupt, if not
// nil, is called when the user presses ctrl+c.
func NewModel(total int, interrupt func()) Model {
	now := time.Now()
	return Model{
		total:     total,
		started:   now,
		lastAt:    now,
		now:       now,
		history:   make([]float64, 0, historySize),
		interrupt: interrupt,
		bar: progressbar.New(
			progressbar.WithGradient("#00ffff", "#00ff00"),
			progressbar.WithWidth(barWidth),
		),
	}
}

type tickMsg time.Time

type queryDoneMsg struct {
	progress manager.Progress
	at       time.Time
}

type finishMsg struct{ err error }

// Init starts the elapsed-time refresh.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			if m.interrupt != nil {
				m.interrupt()
			}
		}

	case tickMsg:
		if m.finished {
			return m, nil
		}
		m.now = time.Time(msg)
		return m, tick()

	case queryDoneMsg:
		p := msg.progress
		m.history = appendToHistory(m.history, msg.at.Sub(m.lastAt).Seconds())
		m.lastAt = msg.at
		m.now = msg.at
		m.done = p.Done
		if p.Total > 0 {
			m.total = p.Total
		}
		m.entries += p.Entries
		m.skipped += p.Skipped
		m.lastQuery = p.QueryID

	case finishMsg:
		m.finished = true
		m.err = msg.err
		m.now = time.Now()
		return m, tea.Quit
	}

	return m, nil
}

// appendToHistory appends a value to history, maintaining max size.
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

func (m Model) ratio() float64 {
	if m.total <= 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

func (m Model) eta() (time.Duration, bool) {
	if m.done == 0 || m.done >= m.total {
		return 0, false
	}
	elapsed := m.lastAt.Sub(m.started)
	per := elapsed / time.Duration(m.done)
	return per * time.Duration(m.total-m.done), true
}

// View renders the run status.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("bertrank"))
	b.WriteString(" ")
	b.WriteString(m.status())
	b.WriteString("\n\n")

	b.WriteString(m.bar.ViewAs(m.ratio()))
	b.WriteString(" ")
	b.WriteString(valueStyle.Render(FormatPercentage(m.ratio())))
	b.WriteString("\n\n")

	elapsed := m.now.Sub(m.started)
	rows := [][2]string{
		{"queries", fmt.Sprintf("%d/%d", m.done, m.total)},
		{"entries", fmt.Sprintf("%d", m.entries)},
		{"skipped", fmt.Sprintf("%d", m.skipped)},
		{"elapsed", FormatDuration(elapsed)},
	}
	if minutes := elapsed.Minutes(); m.done > 0 && minutes > 0 {
		rows = append(rows, [2]string{"rate", FormatRate(float64(m.done) / minutes)})
	}
	if eta, ok := m.eta(); ok {
		rows = append(rows, [2]string{"eta", FormatDuration(eta)})
	}
	if m.lastQuery != "" {
		rows = append(rows, [2]string{"last", m.lastQuery})
	}
	for _, r := range rows {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-8s", r[0])))
		b.WriteString(valueStyle.Render(r[1]))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("seconds per query"))
	b.WriteString("\n")
	b.WriteString(createSparkline(m.history))
	b.WriteString("\n")

	if !m.finished && !m.quitting {
		b.WriteString(dimStyle.Render("ctrl+c to stop"))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return errorStyle.Render("✗ " + m.err.Error())
	case m.finished:
		return doneStyle.Render("✓ done")
	case m.quitting:
		return warningStyle.Render("stopping")
	default:
		return dimStyle.Render("ranking")
	}
}

// createSparkline creates a sparkline chart from historical data.
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()

	return sparklineStyle.Render(spark.View())
}
