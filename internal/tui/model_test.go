package tui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/shadowshield/internal/keystroke"
	"github.com/verte-zerg/shadowshield/internal/login"
	"github.com/verte-zerg/shadowshield/internal/model"
	"github.com/verte-zerg/shadowshield/internal/session"
	"github.com/verte-zerg/shadowshield/internal/vault"
)

type fakeController struct {
	mu   sync.Mutex
	msgs []session.Message
	err  error
}

func (c *fakeController) Send(msg session.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return c.err
}

type fakeSubmitter struct {
	capture *keystroke.Capture
	outcome model.LoginOutcome
	err     error
	users   []string
	vectors []model.TimingVector
}

func (s *fakeSubmitter) Submit(_ context.Context, username, _ string) (model.LoginOutcome, error) {
	s.users = append(s.users, username)
	s.vectors = append(s.vectors, s.capture.Vector())
	return s.outcome, s.err
}

type fakeVault struct {
	encryptText string
	encryptErr  error
	files       []string
	decrypted   []string
}

func (v *fakeVault) Encrypt(context.Context) (string, error) {
	return v.encryptText, v.encryptErr
}

func (v *fakeVault) List(context.Context) ([]string, error) {
	return v.files, nil
}

func (v *fakeVault) Decrypt(_ context.Context, name string) (string, error) {
	v.decrypted = append(v.decrypted, name)
	return "Decrypted and saved to: out.txt", nil
}

type testEnv struct {
	m     *Model
	ctrl  *fakeController
	login *fakeSubmitter
	vault *fakeVault
}

func newTestEnv(t *testing.T, opts Options) testEnv {
	t.Helper()
	at := time.Unix(1000, 0)
	capture := keystroke.NewWithClock(func() time.Time {
		at = at.Add(80 * time.Millisecond)
		return at
	})
	env := testEnv{
		ctrl:  &fakeController{},
		login: &fakeSubmitter{capture: capture},
		vault: &fakeVault{},
	}
	if opts.StartDir == "" {
		opts.StartDir = t.TempDir()
	}
	env.m = NewModel(context.Background(), Deps{
		Controller: env.ctrl,
		Login:      env.login,
		Capture:    capture,
		Vault:      env.vault,
	}, opts)
	env.m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	env.m.Update(showLoginMsg{})
	return env
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func keyType(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func typeText(m *Model, s string) {
	for _, r := range s {
		m.Update(keyRunes(string(r)))
	}
}

// run executes cmd and returns its messages with batches flattened.
// Spinner ticks are dropped.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	switch msg := msg.(type) {
	case nil:
		return nil
	case tea.BatchMsg:
		var out []tea.Msg
		for _, c := range msg {
			out = append(out, run(c)...)
		}
		return out
	}
	if _, ok := msg.(spinner.TickMsg); ok {
		return nil
	}
	return []tea.Msg{msg}
}

func findMsg[T any](msgs []tea.Msg) (T, bool) {
	for _, msg := range msgs {
		if v, ok := msg.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func submitPassword(t *testing.T, env testEnv, user, pass string) loginDoneMsg {
	t.Helper()
	typeText(env.m, user)
	env.m.Update(keyType(tea.KeyTab))
	typeText(env.m, pass)
	_, cmd := env.m.Update(keyType(tea.KeyEnter))
	if env.m.modal != modalChecking {
		t.Fatalf("expected checking modal, got %v", env.m.modal)
	}
	done, ok := findMsg[loginDoneMsg](run(cmd))
	if !ok {
		t.Fatalf("submit produced no login result")
	}
	return done
}

func TestSubmitCapturesFourKeyVector(t *testing.T) {
	env := newTestEnv(t, Options{})
	done := submitPassword(t, env, "alice", "1234")
	if done.err != nil {
		t.Fatalf("unexpected error: %v", done.err)
	}
	if len(env.login.vectors) != 1 {
		t.Fatalf("expected one submit, got %d", len(env.login.vectors))
	}
	vec := env.login.vectors[0]
	if !vec.Valid() {
		t.Fatalf("expected valid vector, got %+v", vec)
	}
	if vec.Flight[0] != 0 {
		t.Fatalf("expected first flight 0, got %v", vec.Flight[0])
	}
	for i, h := range vec.Hold {
		if h <= 0 {
			t.Fatalf("hold %d not positive: %v", i, h)
		}
	}
	if env.login.users[0] != "alice" {
		t.Fatalf("expected alice, got %q", env.login.users[0])
	}
}

func TestSubmitWithWrongLengthSendsEmptyVector(t *testing.T) {
	env := newTestEnv(t, Options{})
	submitPassword(t, env, "bob", "12345")
	if env.login.vectors[0].Valid() {
		t.Fatalf("expected invalid vector for five keys")
	}
	if len(env.login.vectors[0].Hold) != 0 {
		t.Fatalf("expected empty hold, got %v", env.login.vectors[0].Hold)
	}
}

func TestEnterOnUsernameMovesToPassword(t *testing.T) {
	env := newTestEnv(t, Options{})
	typeText(env.m, "carol")
	env.m.Update(keyType(tea.KeyEnter))
	if env.m.focus != fieldPass {
		t.Fatalf("expected password focus")
	}
	if env.m.modal == modalChecking {
		t.Fatalf("enter on username must not submit")
	}
	if len(env.login.users) != 0 {
		t.Fatalf("unexpected submit")
	}
}

func TestFocusResetsCapture(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.m.Update(keyType(tea.KeyTab))
	typeText(env.m, "12")
	env.m.Update(keyType(tea.KeyTab))
	env.m.Update(keyType(tea.KeyTab))
	if got := len(env.m.deps.Capture.Events()); got != 0 {
		t.Fatalf("expected capture reset on focus, got %d events", got)
	}
}

func TestLoginResultViews(t *testing.T) {
	cases := []struct {
		name    string
		outcome model.LoginOutcome
		want    []string
	}{
		{"success", model.LoginOutcome{Status: model.OutcomeSuccess}, []string{"LOGIN SUCCESS"}},
		{"failed", model.LoginOutcome{Status: model.OutcomeFailed}, []string{"WRONG PASSWORD"}},
		{
			"anomaly",
			model.LoginOutcome{Status: model.OutcomeAnomaly, KeystrokeAnomaly: true, TimeAnomaly: true},
			[]string{"ANOMALY DETECTED", "Keystroke pattern mismatch", "Unusual login time", "Access Denied"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, Options{})
			typeText(env.m, "dave")
			env.m.Update(loginDoneMsg{outcome: tc.outcome})
			view := env.m.View()
			for _, want := range tc.want {
				if !strings.Contains(view, want) {
					t.Fatalf("view missing %q:\n%s", want, view)
				}
			}
		})
	}
}

func TestDeniedClearsFieldsAndFocusesPassword(t *testing.T) {
	env := newTestEnv(t, Options{})
	done := submitPassword(t, env, "erin", "9999")
	done.outcome = model.LoginOutcome{Status: model.OutcomeFailed}
	env.m.Update(done)
	if env.m.modal != modalNone {
		t.Fatalf("expected checking modal closed")
	}
	if env.m.inputs[fieldUser].Value() != "" || env.m.inputs[fieldPass].Value() != "" {
		t.Fatalf("expected fields cleared")
	}
	if env.m.focus != fieldPass {
		t.Fatalf("expected password focus")
	}
}

func TestSuccessKeepsFields(t *testing.T) {
	env := newTestEnv(t, Options{})
	typeText(env.m, "frank")
	env.m.Update(loginDoneMsg{outcome: model.LoginOutcome{Status: model.OutcomeSuccess}})
	if env.m.inputs[fieldUser].Value() != "frank" {
		t.Fatalf("expected username kept, got %q", env.m.inputs[fieldUser].Value())
	}
}

func TestBackendErrorShowsAlert(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.m.Update(loginDoneMsg{err: errors.New("dial tcp: refused")})
	if env.m.modal != modalAlert {
		t.Fatalf("expected alert modal")
	}
	if !strings.Contains(env.m.View(), "Cannot reach backend") {
		t.Fatalf("expected backend alert, got:\n%s", env.m.View())
	}
	env.m.Update(keyType(tea.KeyEnter))
	if env.m.modal != modalNone {
		t.Fatalf("expected alert dismissed")
	}
}

func TestInFlightErrorIgnored(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.m.Update(loginDoneMsg{err: login.ErrInFlight})
	if env.m.modal != modalNone {
		t.Fatalf("expected no modal, got %v", env.m.modal)
	}
}

func TestAttemptsColour(t *testing.T) {
	cases := []struct {
		n    int
		want string
	}{
		{3, attemptsStyle.Render("Attempts: 3")},
		{2, warnStyle.Render("Attempts: 2")},
		{1, dangerStyle.Render("Attempts: 1")},
		{-1, dangerStyle.Render("Attempts: 0")},
	}
	for _, tc := range cases {
		if got := renderAttempts(tc.n); got != tc.want {
			t.Fatalf("renderAttempts(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
	env := newTestEnv(t, Options{})
	env.m.Update(attemptsMsg{remaining: 2})
	if !strings.Contains(env.m.View(), "Attempts: 2") {
		t.Fatalf("expected attempts in view")
	}
}

func TestFrozenPasscodeSendsUnlockAttempt(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.m.Update(closeLoginMsg{})
	env.m.Update(showFrozenMsg{})
	if !strings.Contains(env.m.View(), "SYSTEM FROZEN") {
		t.Fatalf("expected frozen view")
	}
	typeText(env.m, "9760")
	_, cmd := env.m.Update(keyType(tea.KeyEnter))
	run(cmd)
	if len(env.ctrl.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(env.ctrl.msgs))
	}
	got, ok := env.ctrl.msgs[0].(session.UnlockAttempt)
	if !ok || got.Passcode != "9760" {
		t.Fatalf("unexpected message %#v", env.ctrl.msgs[0])
	}

	env.m.Update(unlockResultMsg{res: model.UnlockResult{OK: false, Msg: "Wrong passcode"}})
	if !strings.Contains(env.m.View(), "Wrong passcode") {
		t.Fatalf("expected unlock result in view")
	}
	if env.m.passcode.Value() != "" {
		t.Fatalf("expected passcode cleared")
	}
}

func TestFrozenExitSendsShutdown(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.m.Update(showFrozenMsg{})
	_, cmd := env.m.Update(keyType(tea.KeyCtrlX))
	run(cmd)
	if len(env.ctrl.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(env.ctrl.msgs))
	}
	if _, ok := env.ctrl.msgs[0].(session.ShutdownPrototype); !ok {
		t.Fatalf("unexpected message %#v", env.ctrl.msgs[0])
	}
}

func TestDevKeysGateUnlockSystem(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.m.Update(showFrozenMsg{})
	_, cmd := env.m.Update(keyType(tea.KeyCtrlR))
	run(cmd)
	if len(env.ctrl.msgs) != 0 {
		t.Fatalf("ctrl+r must be inert without dev keys, got %#v", env.ctrl.msgs)
	}

	dev := newTestEnv(t, Options{DevKeys: true})
	dev.m.Update(showFrozenMsg{})
	_, cmd = dev.m.Update(keyType(tea.KeyCtrlR))
	run(cmd)
	if len(dev.ctrl.msgs) != 1 {
		t.Fatalf("expected unlock-system message")
	}
	if _, ok := dev.ctrl.msgs[0].(session.UnlockSystem); !ok {
		t.Fatalf("unexpected message %#v", dev.ctrl.msgs[0])
	}
}

func TestQuitKey(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, cmd := env.m.Update(keyType(tea.KeyCtrlC))
	if _, ok := findMsg[tea.QuitMsg](run(cmd)); !ok {
		t.Fatalf("expected quit")
	}

	kiosk := newTestEnv(t, Options{Kiosk: true})
	if kiosk.m.loginKeys.Quit.Enabled() {
		t.Fatalf("expected quit disabled in kiosk mode")
	}
}

func TestSessionDoneQuits(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, cmd := env.m.Update(sessionDoneMsg{})
	if _, ok := findMsg[tea.QuitMsg](run(cmd)); !ok {
		t.Fatalf("expected quit")
	}
	if !strings.Contains(env.m.View(), "Session closed.") {
		t.Fatalf("expected closed view")
	}
}

func TestSendFailureIsAbsorbed(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.ctrl.err = session.ErrStopped
	env.m.Update(showFrozenMsg{})
	_, cmd := env.m.Update(keyType(tea.KeyCtrlX))
	msgs := run(cmd)
	failed, ok := findMsg[sendFailedMsg](msgs)
	if !ok {
		t.Fatalf("expected send failure message")
	}
	if _, cmd := env.m.Update(failed); cmd != nil {
		t.Fatalf("expected no follow-up command")
	}
}

func TestEncryptShowsResult(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.vault.encryptText = "Encrypted and saved as: notes.txt.enc"
	_, cmd := env.m.Update(keyType(tea.KeyCtrlE))
	msgs := run(cmd)
	done, ok := findMsg[vaultDoneMsg](msgs)
	if !ok {
		t.Fatalf("expected vault result")
	}
	env.m.Update(done)
	if env.m.modal != modalAlert {
		t.Fatalf("expected alert")
	}
	if !strings.Contains(env.m.alert, "notes.txt.enc") {
		t.Fatalf("unexpected alert %q", env.m.alert)
	}
}

func TestEncryptFileErrorUsesMessage(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.vault.encryptErr = &vault.FileOperationError{Msg: "Encryption failed: backend unavailable", Err: errors.New("boom")}
	_, cmd := env.m.Update(keyType(tea.KeyCtrlE))
	done, _ := findMsg[vaultDoneMsg](run(cmd))
	env.m.Update(done)
	if env.m.alert != "Encryption failed: backend unavailable" {
		t.Fatalf("unexpected alert %q", env.m.alert)
	}
}

func TestVaultBusyBlocksSecondOperation(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, first := env.m.Update(keyType(tea.KeyCtrlE))
	if first == nil {
		t.Fatalf("expected encrypt command")
	}
	if _, second := env.m.Update(keyType(tea.KeyCtrlO)); second != nil {
		t.Fatalf("expected busy vault to refuse a second operation")
	}
}

func TestDecryptFromVaultList(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.vault.files = []string{"a.txt.enc", "b.txt.enc"}
	_, cmd := env.m.Update(keyType(tea.KeyCtrlO))
	list, ok := findMsg[vaultListMsg](run(cmd))
	if !ok {
		t.Fatalf("expected vault list")
	}
	env.m.Update(list)
	if env.m.modal != modalVaultList {
		t.Fatalf("expected vault list modal")
	}
	if !strings.Contains(env.m.View(), "a.txt.enc") {
		t.Fatalf("expected file in list view")
	}
	_, cmd = env.m.Update(keyType(tea.KeyEnter))
	done, ok := findMsg[vaultDoneMsg](run(cmd))
	if !ok {
		t.Fatalf("expected decrypt result")
	}
	if len(env.vault.decrypted) != 1 || env.vault.decrypted[0] != "a.txt.enc" {
		t.Fatalf("unexpected decrypt calls %v", env.vault.decrypted)
	}
	env.m.Update(done)
	if !strings.Contains(env.m.alert, "Decrypted") {
		t.Fatalf("unexpected alert %q", env.m.alert)
	}
}

func TestVaultListEscCloses(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.m.Update(vaultListMsg{files: []string{"a.txt.enc"}})
	env.m.Update(keyType(tea.KeyEsc))
	if env.m.modal != modalNone {
		t.Fatalf("expected list closed")
	}
}

func TestSaveDialogReplies(t *testing.T) {
	env := newTestEnv(t, Options{})
	reply := make(chan dialogResult, 1)
	env.m.Update(saveDialogMsg{defaultName: "report.txt", reply: reply})
	if env.m.modal != modalSaveFile {
		t.Fatalf("expected save dialog")
	}
	want := filepath.Join(env.m.opts.StartDir, "report.txt")
	env.m.Update(keyType(tea.KeyEnter))
	select {
	case res := <-reply:
		if !res.ok || res.path != want {
			t.Fatalf("unexpected reply %+v, want %q", res, want)
		}
	default:
		t.Fatalf("expected a reply")
	}
	if env.m.modal != modalNone {
		t.Fatalf("expected dialog closed")
	}
}

func TestOpenDialogCancel(t *testing.T) {
	env := newTestEnv(t, Options{})
	reply := make(chan dialogResult, 1)
	env.m.Update(openDialogMsg{reply: reply})
	if env.m.modal != modalOpenFile {
		t.Fatalf("expected open dialog")
	}
	env.m.Update(keyType(tea.KeyEsc))
	res := <-reply
	if res.ok {
		t.Fatalf("expected cancelled reply")
	}
}

func TestSecondDialogCancelledWhileOneWaits(t *testing.T) {
	env := newTestEnv(t, Options{})
	first := make(chan dialogResult, 1)
	second := make(chan dialogResult, 1)
	env.m.Update(saveDialogMsg{defaultName: "x.txt", reply: first})
	env.m.Update(openDialogMsg{reply: second})
	res := <-second
	if res.ok {
		t.Fatalf("expected second dialog cancelled")
	}
	if env.m.modal != modalSaveFile {
		t.Fatalf("expected first dialog still open")
	}
}
