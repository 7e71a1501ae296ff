package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/trajset/internal/viz"
)

const barWidth = 40

var ErrInterrupted = errors.New("tui: interrupted")

// Work runs a long job, reporting progress through the given callback.
type Work func(progress func(done, total int)) error

type progressMsg struct{ done, total int }

type doneMsg struct{ err error }

type tickMsg time.Time

type model struct {
	title   string
	done    int
	total   int
	started time.Time
	elapsed time.Duration

	finished    bool
	interrupted bool
	err         error
}

func newModel(title string, total int) model {
	return model{title: title, total: total, started: time.Now()}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd { return tick() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.interrupted = true
			return m, tea.Quit
		}
	case progressMsg:
		m.done, m.total = msg.done, msg.total
	case tickMsg:
		if m.finished {
			return m, nil
		}
		m.elapsed = time.Time(msg).Sub(m.started)
		return m, tick()
	case doneMsg:
		m.finished = true
		m.err = msg.err
		if msg.err == nil {
			m.done = m.total
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m model) percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(viz.Title.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(viz.ProgressBar(m.percent(), barWidth))
	fmt.Fprintf(&b, " %5.1f%%\n", 100*m.percent())
	b.WriteString(viz.Metric("trajectories", viz.Count(m.done)+" / "+viz.Count(m.total)))
	b.WriteString("  ")
	b.WriteString(viz.Metric("elapsed", m.elapsed.Round(100*time.Millisecond).String()))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(viz.Error.Render("failed: " + m.err.Error()))
		b.WriteString("\n")
	case m.finished:
		b.WriteString(viz.Success.Render("done"))
		b.WriteString("\n")
	default:
		b.WriteString(viz.KeyHint.Render("q to abort"))
		b.WriteString("\n")
	}

	return viz.Panel.Render(b.String()) + "\n"
}

// Run shows a progress view while work runs in the background. Aborting the
// view returns ErrInterrupted; the job itself is left to finish on its own.
func Run(title string, total int, work Work) error {
	p := tea.NewProgram(newModel(title, total))

	go func() {
		err := work(func(done, total int) {
			p.Send(progressMsg{done: done, total: total})
		})
		p.Send(doneMsg{err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return err
	}

	m := final.(model)
	if m.interrupted && !m.finished {
		return ErrInterrupted
	}
	return m.err
}
