package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fyrsmithlabs/bertrank/internal/manager"
	"golang.org/x/term"
)

// Enabled reports whether f is an interactive terminal.
func Enabled(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Reporter runs the progress view in the background for one run.
type Reporter struct {
	program *tea.Program
	done    chan struct{}
	final   Model
	err     error
}

// Start shows the progress view on out for a run of total queries.
// interrupt is called if the user presses ctrl+c.
func Start(total int, out io.Writer, interrupt func(), opts ...tea.ProgramOption) *Reporter {
	options := append([]tea.ProgramOption{tea.WithOutput(out)}, opts...)
	r := &Reporter{
		program: tea.NewProgram(NewModel(total, interrupt), options...),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		m, err := r.program.Run()
		if err != nil {
			r.err = fmt.Errorf("progress display: %w", err)
		}
		if fm, ok := m.(Model); ok {
			r.final = fm
		}
	}()
	return r
}

// Update records a finished query.
func (r *Reporter) Update(p manager.Progress) {
	r.program.Send(queryDoneMsg{progress: p, at: time.Now()})
}

// Finish shows the final state, stops the view and waits for it to exit.
func (r *Reporter) Finish(runErr error) error {
	r.program.Send(finishMsg{err: runErr})
	<-r.done
	return r.err
}

// Final returns the model as it was when the view exited.
func (r *Reporter) Final() Model {
	<-r.done
	return r.final
}
