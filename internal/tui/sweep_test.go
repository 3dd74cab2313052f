package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestModelTracksProgress(t *testing.T) {
	m := newModel(context.Background(), "sweep", 10, nil)

	next, cmd := m.Update(progressMsg{done: 3, total: 10})
	m = next.(model)
	if cmd == nil {
		t.Error("expected to keep waiting for events")
	}
	if !strings.Contains(m.View(), "3/10") {
		t.Errorf("progress missing from view:\n%s", m.View())
	}

	// out of order reports never move the bar back
	next, _ = m.Update(progressMsg{done: 2, total: 10})
	m = next.(model)
	if m.done != 3 {
		t.Errorf("done went back to %d", m.done)
	}

	next, cmd = m.Update(doneMsg{})
	m = next.(model)
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if !strings.Contains(m.View(), "done") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestModelAbortCancelsContext(t *testing.T) {
	m := newModel(context.Background(), "sweep", 4, nil)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = next.(model)
	if m.ctx.Err() == nil {
		t.Error("expected the run context to be cancelled")
	}
	if !strings.Contains(m.View(), "stopping") {
		t.Errorf("view:\n%s", m.View())
	}
}

func TestModelRunsWork(t *testing.T) {
	boom := errors.New("boom")
	m := newModel(context.Background(), "sweep", 2, func(ctx context.Context, progress func(int, int)) error {
		progress(1, 2)
		progress(2, 2)
		return boom
	})

	var msg tea.Msg = m.Init()()
	for {
		next, cmd := m.Update(msg)
		m = next.(model)
		if _, ok := msg.(doneMsg); ok {
			break
		}
		msg = cmd()
	}
	if !errors.Is(m.err, boom) || m.done != 2 {
		t.Errorf("unexpected final model: done %d err %v", m.done, m.err)
	}
	if !strings.Contains(m.View(), "failed: boom") {
		t.Errorf("view:\n%s", m.View())
	}
}
