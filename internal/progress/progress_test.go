package progress

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fyrsmithlabs/bertrank/internal/manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModel(t *testing.T) {
	m := NewModel(50, nil)
	assert.Equal(t, 50, m.total)
	assert.Zero(t, m.done)
	assert.False(t, m.finished)
	assert.NotNil(t, m.Init())
}

func TestModel_QueryDone(t *testing.T) {
	m := NewModel(4, nil)
	at := m.started.Add(2 * time.Second)

	updated, cmd := m.Update(queryDoneMsg{
		progress: manager.Progress{QueryID: "7", Done: 1, Total: 4, Entries: 10, Skipped: 2},
		at:       at,
	})
	assert.Nil(t, cmd)

	got := updated.(Model)
	assert.Equal(t, 1, got.done)
	assert.Equal(t, 10, got.entries)
	assert.Equal(t, 2, got.skipped)
	assert.Equal(t, "7", got.lastQuery)
	assert.Equal(t, []float64{2}, got.history)
	assert.InDelta(t, 0.25, got.ratio(), 1e-12)

	eta, ok := got.eta()
	require.True(t, ok)
	assert.Equal(t, 6*time.Second, eta)

	view := got.View()
	assert.Contains(t, view, "1/4")
	assert.Contains(t, view, "25.0%")
	assert.Contains(t, view, "ctrl+c to stop")
}

func TestModel_Tick(t *testing.T) {
	m := NewModel(1, nil)
	now := m.started.Add(90 * time.Second)

	updated, cmd := m.Update(tickMsg(now))
	assert.NotNil(t, cmd)
	assert.Contains(t, updated.(Model).View(), "1m 30s")
}

func TestModel_Finish(t *testing.T) {
	m := NewModel(1, nil)

	updated, cmd := m.Update(finishMsg{})
	assert.NotNil(t, cmd)
	got := updated.(Model)
	assert.True(t, got.finished)
	assert.Contains(t, got.View(), "done")
	assert.NotContains(t, got.View(), "ctrl+c")

	// Ticks stop after the run finishes.
	_, cmd = got.Update(tickMsg(time.Now()))
	assert.Nil(t, cmd)

	failed, _ := m.Update(finishMsg{err: errors.New("disk full")})
	assert.Contains(t, failed.(Model).View(), "disk full")
}

func TestModel_CtrlCInterrupts(t *testing.T) {
	interrupted := false
	m := NewModel(3, func() { interrupted = true })

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, interrupted)
	assert.True(t, updated.(Model).quitting)
	assert.Contains(t, updated.(Model).View(), "stopping")

	// Other keys are ignored.
	other, _ := NewModel(3, func() { t.Fatal("interrupted") }).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	assert.False(t, other.(Model).quitting)
}

func TestAppendToHistory(t *testing.T) {
	var h []float64
	for i := 0; i < historySize+5; i++ {
		h = appendToHistory(h, float64(i))
	}
	assert.Len(t, h, historySize)
	assert.Equal(t, 5.0, h[0])
}

func TestCreateSparkline_NoData(t *testing.T) {
	assert.Contains(t, createSparkline(nil), "no data")
	assert.NotEmpty(t, createSparkline([]float64{1, 2, 3}))
}

func TestReporter(t *testing.T) {
	var out bytes.Buffer
	r := Start(2, &out, nil, tea.WithInput(nil), tea.WithoutRenderer())

	r.Update(manager.Progress{QueryID: "1", Done: 1, Total: 2, Entries: 3})
	r.Update(manager.Progress{QueryID: "2", Done: 2, Total: 2, Entries: 3, Skipped: 1})
	require.NoError(t, r.Finish(nil))

	final := r.Final()
	assert.Equal(t, 2, final.done)
	assert.Equal(t, 6, final.entries)
	assert.Equal(t, 1, final.skipped)
	assert.True(t, final.finished)
}

func TestEnabled(t *testing.T) {
	assert.False(t, Enabled(nil))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, Enabled(f))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0s", FormatDuration(-time.Second))
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "2m 5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h 1m", FormatDuration(3661*time.Second))
	assert.Equal(t, "12.5 q/min", FormatRate(12.5))
	assert.Equal(t, "50.0%", FormatPercentage(0.5))
}
