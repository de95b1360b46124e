package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/shadowshield/internal/model"
)

// Sender delivers messages into a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

type (
	showLoginMsg    struct{}
	focusLoginMsg   struct{}
	closeLoginMsg   struct{}
	showFrozenMsg   struct{}
	closeFrozenMsg  struct{}
	sessionDoneMsg  struct{}
	attemptsMsg     struct{ remaining int }
	unlockResultMsg struct{ res model.UnlockResult }
)

type dialogResult struct {
	path string
	ok   bool
}

type openDialogMsg struct {
	reply chan<- dialogResult
}

type saveDialogMsg struct {
	defaultName string
	reply       chan<- dialogResult
}

// Bridge turns session controller calls into program messages. It implements
// session.Host and session.Dialogs. Calls made before Attach are dropped and
// dialogs answer as cancelled.
type Bridge struct {
	mu     sync.Mutex
	sender Sender
}

// NewBridge returns an unattached bridge.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach routes future calls to s.
func (b *Bridge) Attach(s Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sender = s
}

func (b *Bridge) send(msg tea.Msg) bool {
	b.mu.Lock()
	s := b.sender
	b.mu.Unlock()
	if s == nil {
		return false
	}
	s.Send(msg)
	return true
}

func (b *Bridge) ShowLogin()   { b.send(showLoginMsg{}) }
func (b *Bridge) FocusLogin()  { b.send(focusLoginMsg{}) }
func (b *Bridge) CloseLogin()  { b.send(closeLoginMsg{}) }
func (b *Bridge) ShowFrozen()  { b.send(showFrozenMsg{}) }
func (b *Bridge) CloseFrozen() { b.send(closeFrozenMsg{}) }
func (b *Bridge) Done()        { b.send(sessionDoneMsg{}) }

func (b *Bridge) AttemptsUpdated(remaining int) {
	b.send(attemptsMsg{remaining: remaining})
}

func (b *Bridge) UnlockResult(res model.UnlockResult) {
	b.send(unlockResultMsg{res: res})
}

// OpenFile shows the file picker and waits for the user.
func (b *Bridge) OpenFile(ctx context.Context) (string, bool, error) {
	reply := make(chan dialogResult, 1)
	if !b.send(openDialogMsg{reply: reply}) {
		return "", false, nil
	}
	return await(ctx, reply)
}

// SaveFile asks for a destination path prefilled with defaultName.
func (b *Bridge) SaveFile(ctx context.Context, defaultName string) (string, bool, error) {
	reply := make(chan dialogResult, 1)
	if !b.send(saveDialogMsg{defaultName: defaultName, reply: reply}) {
		return "", false, nil
	}
	return await(ctx, reply)
}

func await(ctx context.Context, reply <-chan dialogResult) (string, bool, error) {
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case r := <-reply:
		return r.path, r.ok, nil
	}
}
