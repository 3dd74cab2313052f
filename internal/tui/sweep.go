package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/bmcsim/internal/viz"
)

// RunFunc does the work of a sweep and reports finished jobs via progress.
type RunFunc func(ctx context.Context, progress func(done, total int)) error

type progressMsg struct{ done, total int }

type doneMsg struct{ err error }

type model struct {
	title  string
	total  int
	done   int
	start  time.Time
	err    error
	width  int
	cancel context.CancelFunc
	events chan tea.Msg
	run    RunFunc
	ctx    context.Context

	finished bool
	aborted  bool
}

func newModel(ctx context.Context, title string, total int, run RunFunc) model {
	ctx, cancel := context.WithCancel(ctx)
	return model{
		title:  title,
		total:  total,
		start:  time.Now(),
		width:  40,
		cancel: cancel,
		events: make(chan tea.Msg, 64),
		run:    run,
		ctx:    ctx,
	}
}

func (m model) Init() tea.Cmd {
	go func() {
		err := m.run(m.ctx, func(done, total int) {
			select {
			case m.events <- progressMsg{done, total}:
			default:
			}
		})
		m.events <- doneMsg{err}
	}()
	return m.wait()
}

func (m model) wait() tea.Cmd {
	return func() tea.Msg { return <-m.events }
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.aborted = true
			m.cancel()
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = max(msg.Width-30, 10)
		return m, nil
	case progressMsg:
		m.done = max(m.done, msg.done)
		m.total = msg.total
		return m, m.wait()
	case doneMsg:
		m.err = msg.err
		m.finished = true
		m.cancel()
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString("\n  " + viz.TitleStyle().Render(m.title) + "\n\n  ")

	frac := 0.0
	if m.total > 0 {
		frac = float64(m.done) / float64(m.total)
	}
	b.WriteString(viz.ProgressBar(frac, m.width))
	b.WriteString(fmt.Sprintf("  %d/%d", m.done, m.total))

	elapsed := time.Since(m.start).Round(100 * time.Millisecond)
	line := fmt.Sprintf("elapsed %s", elapsed)
	if m.done > 0 && m.done < m.total {
		eta := time.Duration(float64(elapsed) / frac * (1 - frac)).Round(time.Second)
		line += fmt.Sprintf("  eta %s", eta)
	}
	b.WriteString("\n  " + viz.SubtleStyle().Render(line) + "\n")

	switch {
	case m.finished && m.err != nil:
		b.WriteString("  " + viz.ErrorStyle().Render("failed: "+m.err.Error()) + "\n")
	case m.finished:
		b.WriteString("  " + viz.SuccessStyle().Render("done") + "\n")
	case m.aborted:
		b.WriteString("  " + viz.SubtleStyle().Render("stopping after running jobs...") + "\n")
	default:
		b.WriteString("  " + viz.SubtleStyle().Render("q abort") + "\n")
	}
	return b.String()
}

// RunSweep shows a progress bar while run executes and returns its error.
func RunSweep(ctx context.Context, title string, total int, run RunFunc) error {
	final, err := tea.NewProgram(newModel(ctx, title, total, run)).Run()
	if err != nil {
		return err
	}
	return final.(model).err
}
