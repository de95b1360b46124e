// Package session owns the lock-screen lifecycle: which window is shown and
// how many login attempts remain. All mutation happens in message handlers
// that run one at a time.
package session

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/shadowshield/internal/logging"
	"github.com/verte-zerg/shadowshield/internal/model"
	"github.com/verte-zerg/shadowshield/internal/unlock"
)

const inboxSize = 16

// ErrStopped is returned when a message is sent to a controller that is no longer running.
var ErrStopped = errors.New("session controller stopped")

// Host renders the windows the controller decides on. Calls are one-way.
type Host interface {
	ShowLogin()
	FocusLogin()
	CloseLogin()
	ShowFrozen()
	CloseFrozen()
	AttemptsUpdated(remaining int)
	UnlockResult(res model.UnlockResult)
	Done()
}

// Dialogs shows file pickers. Implementations may block until the user answers.
type Dialogs interface {
	OpenFile(ctx context.Context) (path string, ok bool, err error)
	SaveFile(ctx context.Context, defaultName string) (path string, ok bool, err error)
}

// Recorder persists lifecycle events.
type Recorder interface {
	Record(ctx context.Context, rec model.AttemptRecord) error
}

// Controller is the session state machine.
type Controller struct {
	host     Host
	dialogs  Dialogs
	recorder Recorder
	log      *logging.Logger
	now      func() time.Time

	inbox   chan Message
	stopped chan struct{}

	// Owned by the handler goroutine.
	loginOpen  bool
	frozenOpen bool
	cycleID    string

	// Mirrors for readers on other goroutines.
	state    atomic.Int32
	attempts atomic.Int32
}

// Option configures a Controller.
type Option func(*Controller)

// WithRecorder persists lifecycle events.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// WithClock overrides the timestamp source for recorded events.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New builds a controller in the logged-out state with a full attempt budget.
func New(host Host, dialogs Dialogs, opts ...Option) *Controller {
	c := &Controller{
		host:    host,
		dialogs: dialogs,
		log:     logging.Discard(),
		now:     time.Now,
		inbox:   make(chan Message, inboxSize),
		stopped: make(chan struct{}),
		cycleID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.setState(model.StateLoggedOut)
	c.setAttempts(model.MaxAttempts)
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() model.SessionState {
	return model.SessionState(c.state.Load())
}

// AttemptsRemaining returns the current attempt budget.
func (c *Controller) AttemptsRemaining() int {
	return int(c.attempts.Load())
}

// Snapshot returns the lifecycle state and attempt budget.
func (c *Controller) Snapshot() (model.SessionState, int) {
	return c.State(), c.AttemptsRemaining()
}

// Start opens the login window. Run calls it; tests driving Handle directly call it once.
func (c *Controller) Start() {
	c.openLogin()
}

// Run starts the session and processes messages until the session is done
// or ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.stopped)
	c.Start()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-c.inbox:
			c.Handle(ctx, msg)
			if c.State() == model.StateDone {
				return nil
			}
		}
	}
}

// Send queues msg for the handler goroutine.
func (c *Controller) Send(msg Message) error {
	select {
	case <-c.stopped:
		return ErrStopped
	default:
	}
	select {
	case <-c.stopped:
		return ErrStopped
	case c.inbox <- msg:
		return nil
	}
}

// Handle processes one message to completion.
func (c *Controller) Handle(ctx context.Context, msg Message) {
	c.log.Debug("message", "name", msg.messageName(), "state", c.State().String())
	switch m := msg.(type) {
	case LoginResult:
		c.handleLoginResult(ctx, m)
	case UnlockAttempt:
		c.handleUnlockAttempt(ctx, m)
	case UnlockSystem:
		c.handleUnlockSystem(ctx)
	case ShutdownPrototype:
		c.handleShutdown(ctx)
	case OpenFileDialog:
		go c.answerOpen(ctx, m)
	case SaveFileDialog:
		go c.answerSave(ctx, m)
	}
}

func (c *Controller) handleLoginResult(ctx context.Context, m LoginResult) {
	// Success ends the session from any live state, frozen included.
	if m.Status == model.OutcomeSuccess && c.State() != model.StateDone {
		c.record(ctx, model.EventLogin, m.Status, m.Username, m.VectorValid)
		c.closeFrozen()
		c.closeLogin()
		c.finish()
		return
	}
	if c.State() != model.StateLoggedOut {
		c.log.Warn("login result ignored", "status", m.Status, "state", c.State().String())
		return
	}
	if m.Status != model.OutcomeAnomaly {
		m.Status = model.OutcomeFailed
	}

	remaining := c.AttemptsRemaining() - 1
	if remaining < 0 {
		remaining = 0
	}
	c.setAttempts(remaining)
	c.record(ctx, model.EventLogin, m.Status, m.Username, m.VectorValid)
	if c.loginOpen {
		c.host.AttemptsUpdated(remaining)
	}
	if remaining > 0 {
		return
	}

	c.setState(model.StateFrozen)
	c.frozenOpen = true
	c.host.ShowFrozen()
	c.closeLogin()
	c.record(ctx, model.EventLockout, "", "", false)
	c.log.Info("attempts exhausted, frozen", "cycle", c.cycleID)
}

func (c *Controller) handleUnlockAttempt(ctx context.Context, m UnlockAttempt) {
	if c.State() != model.StateFrozen {
		c.log.Warn("unlock attempt outside frozen state", "state", c.State().String())
		return
	}
	if !unlock.Validate(m.Passcode) {
		c.record(ctx, model.EventPasscode, "", "", false)
		if c.frozenOpen {
			c.host.UnlockResult(model.UnlockResult{OK: false, Msg: "Wrong passcode"})
		}
		return
	}
	if c.frozenOpen {
		c.host.UnlockResult(model.UnlockResult{OK: true, Msg: "Unlocked"})
	}
	c.record(ctx, model.EventUnlock, "", "", false)
	c.reset()
}

func (c *Controller) handleUnlockSystem(ctx context.Context) {
	if c.State() == model.StateDone {
		return
	}
	c.record(ctx, model.EventUnlock, "", "", false)
	c.reset()
}

func (c *Controller) handleShutdown(ctx context.Context) {
	if !c.frozenOpen {
		return
	}
	c.record(ctx, model.EventBypass, "", "", false)
	c.closeFrozen()
	if !c.loginOpen {
		c.finish()
	}
}

func (c *Controller) reset() {
	c.closeFrozen()
	c.setAttempts(model.MaxAttempts)
	c.setState(model.StateLoggedOut)
	c.cycleID = uuid.NewString()
	if c.loginOpen {
		c.host.FocusLogin()
		c.host.AttemptsUpdated(model.MaxAttempts)
		return
	}
	c.openLogin()
}

func (c *Controller) openLogin() {
	c.loginOpen = true
	c.host.ShowLogin()
	c.host.AttemptsUpdated(c.AttemptsRemaining())
}

func (c *Controller) closeLogin() {
	if !c.loginOpen {
		return
	}
	c.loginOpen = false
	c.host.CloseLogin()
}

func (c *Controller) closeFrozen() {
	if !c.frozenOpen {
		return
	}
	c.frozenOpen = false
	c.host.CloseFrozen()
}

func (c *Controller) finish() {
	c.setState(model.StateDone)
	c.host.Done()
}

func (c *Controller) answerOpen(ctx context.Context, m OpenFileDialog) {
	if c.dialogs == nil {
		m.Reply <- DialogReply{}
		return
	}
	path, ok, err := c.dialogs.OpenFile(ctx)
	m.Reply <- DialogReply{Path: path, OK: ok, Err: err}
}

func (c *Controller) answerSave(ctx context.Context, m SaveFileDialog) {
	if c.dialogs == nil {
		m.Reply <- DialogReply{}
		return
	}
	path, ok, err := c.dialogs.SaveFile(ctx, m.DefaultName)
	m.Reply <- DialogReply{Path: path, OK: ok, Err: err}
}

func (c *Controller) record(ctx context.Context, kind model.EventKind, status model.OutcomeStatus, username string, vectorValid bool) {
	if c.recorder == nil {
		return
	}
	rec := model.AttemptRecord{
		ID:                uuid.NewString(),
		CycleID:           c.cycleID,
		At:                c.now(),
		Kind:              kind,
		Status:            status,
		Username:          username,
		AttemptsRemaining: c.AttemptsRemaining(),
		VectorValid:       vectorValid,
	}
	if err := c.recorder.Record(ctx, rec); err != nil {
		c.log.Error("failed to record event", "kind", kind, "err", err)
	}
}

func (c *Controller) setState(s model.SessionState) {
	c.state.Store(int32(s))
}

func (c *Controller) setAttempts(n int) {
	c.attempts.Store(int32(n))
}

// DialogClient returns Dialogs that route through the controller's message
// queue, the way a UI task invokes a dialog on the privileged side.
func (c *Controller) DialogClient() Dialogs {
	return dialogClient{c: c}
}

type dialogClient struct {
	c *Controller
}

func (d dialogClient) OpenFile(ctx context.Context) (string, bool, error) {
	reply := make(chan DialogReply, 1)
	if err := d.c.Send(OpenFileDialog{Reply: reply}); err != nil {
		return "", false, err
	}
	return awaitReply(ctx, reply)
}

func (d dialogClient) SaveFile(ctx context.Context, defaultName string) (string, bool, error) {
	reply := make(chan DialogReply, 1)
	if err := d.c.Send(SaveFileDialog{DefaultName: defaultName, Reply: reply}); err != nil {
		return "", false, err
	}
	return awaitReply(ctx, reply)
}

func awaitReply(ctx context.Context, reply <-chan DialogReply) (string, bool, error) {
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case r := <-reply:
		return r.Path, r.OK, r.Err
	}
}
