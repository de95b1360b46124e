package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/shadowshield/internal/model"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
	// answer, when set, replies to dialog requests as they arrive.
	answer *dialogResult
}

func (s *recordingSender) Send(msg tea.Msg) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	answer := s.answer
	s.mu.Unlock()
	if answer == nil {
		return
	}
	switch msg := msg.(type) {
	case openDialogMsg:
		msg.reply <- *answer
	case saveDialogMsg:
		msg.reply <- *answer
	}
}

func (s *recordingSender) received() []tea.Msg {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tea.Msg(nil), s.msgs...)
}

func TestBridgeDropsCallsBeforeAttach(t *testing.T) {
	b := NewBridge()
	b.ShowLogin()
	path, ok, err := b.OpenFile(context.Background())
	if err != nil || ok || path != "" {
		t.Fatalf("expected cancelled dialog, got %q %v %v", path, ok, err)
	}
}

func TestBridgeForwardsHostCalls(t *testing.T) {
	s := &recordingSender{}
	b := NewBridge()
	b.Attach(s)

	b.ShowLogin()
	b.AttemptsUpdated(2)
	b.CloseLogin()
	b.ShowFrozen()
	b.UnlockResult(model.UnlockResult{OK: true, Msg: "System unlocked"})
	b.CloseFrozen()
	b.FocusLogin()
	b.Done()

	got := s.received()
	want := []tea.Msg{
		showLoginMsg{},
		attemptsMsg{remaining: 2},
		closeLoginMsg{},
		showFrozenMsg{},
		unlockResultMsg{res: model.UnlockResult{OK: true, Msg: "System unlocked"}},
		closeFrozenMsg{},
		focusLoginMsg{},
		sessionDoneMsg{},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("message %d: got %#v, want %#v", i, got[i], want[i])
		}
	}
}

func TestBridgeDialogReplies(t *testing.T) {
	s := &recordingSender{answer: &dialogResult{path: "/tmp/notes.txt", ok: true}}
	b := NewBridge()
	b.Attach(s)

	path, ok, err := b.OpenFile(context.Background())
	if err != nil || !ok || path != "/tmp/notes.txt" {
		t.Fatalf("unexpected open result %q %v %v", path, ok, err)
	}
	path, ok, err = b.SaveFile(context.Background(), "notes.txt")
	if err != nil || !ok || path != "/tmp/notes.txt" {
		t.Fatalf("unexpected save result %q %v %v", path, ok, err)
	}
	msgs := s.received()
	save, isSave := msgs[1].(saveDialogMsg)
	if !isSave || save.defaultName != "notes.txt" {
		t.Fatalf("unexpected save request %#v", msgs[1])
	}
}

func TestBridgeDialogHonoursContext(t *testing.T) {
	b := NewBridge()
	b.Attach(&recordingSender{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok, err := b.SaveFile(ctx, "x.txt")
	if ok {
		t.Fatalf("expected no selection")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestBridgeDrivesModel(t *testing.T) {
	env := newTestEnv(t, Options{})
	b := NewBridge()
	b.Attach(senderFunc(func(msg tea.Msg) { env.m.Update(msg) }))

	b.AttemptsUpdated(1)
	if env.m.attempts != 1 {
		t.Fatalf("expected attempts 1, got %d", env.m.attempts)
	}
	b.CloseLogin()
	b.ShowFrozen()
	if !env.m.frozenOpen || env.m.loginOpen {
		t.Fatalf("expected frozen screen only")
	}
	b.CloseFrozen()
	b.ShowLogin()
	if env.m.frozenOpen || !env.m.loginOpen {
		t.Fatalf("expected login screen only")
	}
	if env.m.focus != fieldUser {
		t.Fatalf("expected username focus after show")
	}
}

type senderFunc func(tea.Msg)

func (f senderFunc) Send(msg tea.Msg) { f(msg) }
