// Package tui provides the Bubble Tea lock screen: the login form, the frozen
// overlay and the vault dialogs.
package tui

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/shadowshield/internal/keystroke"
	"github.com/verte-zerg/shadowshield/internal/logging"
	"github.com/verte-zerg/shadowshield/internal/login"
	"github.com/verte-zerg/shadowshield/internal/model"
	"github.com/verte-zerg/shadowshield/internal/session"
	"github.com/verte-zerg/shadowshield/internal/vault"
)

const backendDownMsg = "Cannot reach backend. Is the backend running?"

// Controller accepts session messages.
type Controller interface {
	Send(msg session.Message) error
}

// Submitter runs one login attempt.
type Submitter interface {
	Submit(ctx context.Context, username, password string) (model.LoginOutcome, error)
}

// Vault runs the interactive vault operations.
type Vault interface {
	Encrypt(ctx context.Context) (string, error)
	List(ctx context.Context) ([]string, error)
	Decrypt(ctx context.Context, vaultFilename string) (string, error)
}

// Options tunes the lock screen.
type Options struct {
	// Kiosk disables ctrl+c on the login screen.
	Kiosk bool
	// DevKeys enables ctrl+r, which resets attempts without a passcode.
	DevKeys bool
	// StartDir is where the file dialogs open.
	StartDir string
}

// Deps are the collaborators the lock screen drives.
type Deps struct {
	Controller Controller
	Login      Submitter
	Capture    *keystroke.Capture
	Vault      Vault
	Log        *logging.Logger
}

type modal int

const (
	modalNone modal = iota
	modalChecking
	modalAlert
	modalVaultList
	modalOpenFile
	modalSaveFile
)

const (
	fieldUser = iota
	fieldPass
)

type resultKind int

const (
	resultNone resultKind = iota
	resultOK
	resultDenied
)

type (
	loginDoneMsg struct {
		outcome model.LoginOutcome
		err     error
	}
	vaultDoneMsg struct {
		text string
		err  error
	}
	vaultListMsg struct {
		files []string
		err   error
	}
	sendFailedMsg struct{ err error }
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Width(10)
	attemptsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF9900"))
	dangerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF3333"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#32CD32")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	formStyle     = lipgloss.NewStyle().
			Padding(1, 3).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	modalStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	frozenStyle = lipgloss.NewStyle().
			Padding(1, 4).
			Border(lipgloss.ThickBorder(), true).
			BorderForeground(lipgloss.Color("#FF3333"))
)

// Model implements the Bubble Tea lock screen.
type Model struct {
	deps Deps
	opts Options
	ctx  context.Context

	width  int
	height int

	loginOpen  bool
	frozenOpen bool
	done       bool

	inputs   []textinput.Model
	focus    int
	attempts int
	result   []string
	resultAs resultKind

	passcode     textinput.Model
	unlockResult *model.UnlockResult

	modal      modal
	alert      string
	spinner    spinner.Model
	vaultBusy  bool
	vaultList  list.Model
	picker     filepicker.Model
	savePath   textinput.Model
	dialogWait chan<- dialogResult

	help       help.Model
	loginKeys  loginKeyMap
	frozenKeys frozenKeyMap
	dialogKeys dialogKeyMap
}

// NewModel constructs the lock screen. Nothing is shown until the session
// controller opens the login window.
func NewModel(ctx context.Context, deps Deps, opts Options) *Model {
	if deps.Log == nil {
		deps.Log = logging.Discard()
	}
	if deps.Capture == nil {
		deps.Capture = keystroke.New()
	}
	if opts.StartDir == "" {
		opts.StartDir = "."
	}
	m := &Model{
		deps:       deps,
		opts:       opts,
		ctx:        ctx,
		attempts:   model.MaxAttempts,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:       help.New(),
		loginKeys:  newLoginKeys(opts),
		frozenKeys: newFrozenKeys(opts),
		dialogKeys: newDialogKeys(),
	}
	user := textinput.New()
	user.Placeholder = "username"
	user.CharLimit = 64
	pass := textinput.New()
	pass.Placeholder = "password"
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'
	pass.CharLimit = 128
	m.inputs = []textinput.Model{user, pass}

	m.passcode = textinput.New()
	m.passcode.Placeholder = "passcode"
	m.passcode.EchoMode = textinput.EchoPassword
	m.passcode.EchoCharacter = '•'
	m.passcode.CharLimit = 16

	m.savePath = textinput.New()
	m.savePath.Prompt = "Save as: "
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resizeDialogs()
		return m, nil

	case showLoginMsg:
		m.loginOpen = true
		m.clearFields()
		m.result = nil
		m.resultAs = resultNone
		return m, m.setFocus(fieldUser)
	case focusLoginMsg:
		m.loginOpen = true
		return m, m.setFocus(fieldPass)
	case closeLoginMsg:
		m.loginOpen = false
		if m.modal == modalChecking {
			m.modal = modalNone
		}
		m.blurFields()
		return m, nil
	case showFrozenMsg:
		m.frozenOpen = true
		m.unlockResult = nil
		m.passcode.SetValue("")
		return m, m.passcode.Focus()
	case closeFrozenMsg:
		m.frozenOpen = false
		m.passcode.Blur()
		return m, nil
	case attemptsMsg:
		m.attempts = msg.remaining
		return m, nil
	case unlockResultMsg:
		res := msg.res
		m.unlockResult = &res
		m.passcode.SetValue("")
		return m, nil
	case sessionDoneMsg:
		m.done = true
		return m, tea.Quit

	case openDialogMsg:
		return m, m.openFileDialog(msg.reply)
	case saveDialogMsg:
		return m, m.openSaveDialog(msg.defaultName, msg.reply)

	case loginDoneMsg:
		return m, m.applyLoginResult(msg)
	case vaultListMsg:
		m.vaultBusy = false
		if msg.err != nil {
			m.showAlert(errorText(msg.err))
			return m, nil
		}
		m.showVaultList(msg.files)
		return m, nil
	case vaultDoneMsg:
		m.vaultBusy = false
		if msg.err != nil {
			m.showAlert(errorText(msg.err))
		} else {
			m.showAlert(msg.text)
		}
		return m, nil
	case sendFailedMsg:
		if !errors.Is(msg.err, session.ErrStopped) {
			m.deps.Log.Error("session message not delivered", "err", msg.err)
		}
		return m, nil

	case spinner.TickMsg:
		if m.modal != modalChecking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.modal == modalOpenFile {
		return m.updatePicker(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.modal {
	case modalOpenFile:
		return m.updatePicker(msg)
	case modalSaveFile:
		return m.updateSaveDialog(msg)
	}
	if m.frozenOpen {
		return m.updateFrozen(msg)
	}
	if !m.loginOpen {
		return m, nil
	}
	switch m.modal {
	case modalChecking:
		m.releasePending()
		return m, nil
	case modalAlert:
		if msg.Type == tea.KeyEnter || msg.Type == tea.KeyEsc || msg.Type == tea.KeySpace {
			m.modal = modalNone
			m.alert = ""
		}
		return m, nil
	case modalVaultList:
		return m.updateVaultList(msg)
	}
	return m.updateLogin(msg)
}

func (m *Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.focus == fieldPass {
		m.releasePending()
	}
	switch {
	case key.Matches(msg, m.loginKeys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.loginKeys.Reset):
		return m, m.send(session.UnlockSystem{})
	case key.Matches(msg, m.loginKeys.Encrypt):
		return m, m.startEncrypt()
	case key.Matches(msg, m.loginKeys.Decrypt):
		return m, m.startList()
	case key.Matches(msg, m.loginKeys.Next):
		next := fieldPass
		if m.focus == fieldPass {
			next = fieldUser
		}
		return m, m.setFocus(next)
	case key.Matches(msg, m.loginKeys.Submit):
		if m.focus == fieldUser {
			return m, m.setFocus(fieldPass)
		}
		return m, m.submit()
	}

	if m.focus == fieldPass && !msg.Paste {
		switch msg.Type {
		case tea.KeyRunes:
			if len(msg.Runes) == 1 && !msg.Alt {
				m.deps.Capture.KeyDown(string(msg.Runes))
			}
		case tea.KeySpace:
			m.deps.Capture.KeyDown(" ")
		}
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// releasePending closes the press of the last key. Terminals report presses
// only, so the next event in the password field stands in for the release.
func (m *Model) releasePending() {
	if k, ok := m.deps.Capture.Pending(); ok {
		m.deps.Capture.KeyUp(k)
	}
}

func (m *Model) submit() tea.Cmd {
	if m.deps.Login == nil {
		return nil
	}
	m.modal = modalChecking
	user := m.inputs[fieldUser].Value()
	pass := m.inputs[fieldPass].Value()
	ctx := m.ctx
	submitter := m.deps.Login
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		outcome, err := submitter.Submit(ctx, user, pass)
		return loginDoneMsg{outcome: outcome, err: err}
	})
}

func (m *Model) applyLoginResult(msg loginDoneMsg) tea.Cmd {
	if m.modal == modalChecking {
		m.modal = modalNone
	}
	if msg.err != nil {
		if errors.Is(msg.err, login.ErrInFlight) {
			return nil
		}
		m.deps.Log.Error("login failed", "err", msg.err)
		m.showAlert(backendDownMsg)
		return nil
	}
	switch msg.outcome.Status {
	case model.OutcomeSuccess:
		m.result = []string{"LOGIN SUCCESS"}
		m.resultAs = resultOK
		return nil
	case model.OutcomeAnomaly:
		lines := []string{"-_- ANOMALY DETECTED!", ""}
		for _, reason := range login.AnomalyReasons(msg.outcome) {
			lines = append(lines, "`_` "+reason)
		}
		m.result = append(lines, "", "Access Denied")
	default:
		m.result = []string{"WRONG PASSWORD"}
	}
	m.resultAs = resultDenied
	m.clearFields()
	if !m.loginOpen {
		return nil
	}
	return m.setFocus(fieldPass)
}

func (m *Model) updateFrozen(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.frozenKeys.Exit):
		return m, m.send(session.ShutdownPrototype{})
	case key.Matches(msg, m.frozenKeys.Reset):
		return m, m.send(session.UnlockSystem{})
	case key.Matches(msg, m.frozenKeys.Submit):
		code := m.passcode.Value()
		return m, m.send(session.UnlockAttempt{Passcode: code})
	}
	var cmd tea.Cmd
	m.passcode, cmd = m.passcode.Update(msg)
	return m, cmd
}

func (m *Model) send(msg session.Message) tea.Cmd {
	ctrl := m.deps.Controller
	if ctrl == nil {
		return nil
	}
	return func() tea.Msg {
		if err := ctrl.Send(msg); err != nil {
			return sendFailedMsg{err: err}
		}
		return nil
	}
}

func (m *Model) setFocus(field int) tea.Cmd {
	m.focus = field
	var cmd tea.Cmd
	for i := range m.inputs {
		if i == field {
			cmd = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	if field == fieldPass {
		m.deps.Capture.Reset()
	}
	return cmd
}

func (m *Model) blurFields() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

func (m *Model) clearFields() {
	for i := range m.inputs {
		m.inputs[i].SetValue("")
	}
}

func (m *Model) showAlert(text string) {
	m.modal = modalAlert
	m.alert = text
}

func errorText(err error) string {
	var fileErr *vault.FileOperationError
	if errors.As(err, &fileErr) {
		return fileErr.Msg
	}
	return err.Error()
}

// View implements tea.Model.
func (m *Model) View() string {
	var body string
	switch {
	case m.modal == modalOpenFile || m.modal == modalSaveFile:
		body = m.renderDialog()
	case m.frozenOpen:
		return m.place(m.renderFrozen())
	case m.done || !m.loginOpen:
		body = mutedStyle.Render("Session closed.")
	case m.modal == modalChecking:
		body = modalStyle.Render(m.spinner.View() + " Checking security...")
	case m.modal == modalAlert:
		body = m.renderAlert()
	case m.modal == modalVaultList:
		body = m.vaultList.View()
	default:
		body = m.renderLogin()
	}
	return m.place(body)
}

func (m *Model) place(content string) string {
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) renderLogin() string {
	lines := []string{
		titleStyle.Render("SHADOW SHIELD"),
		"",
		labelStyle.Render("Username") + m.inputs[fieldUser].View(),
		labelStyle.Render("Password") + m.inputs[fieldPass].View(),
		"",
		renderAttempts(m.attempts),
	}
	if len(m.result) > 0 {
		style := dangerStyle
		if m.resultAs == resultOK {
			style = successStyle
		}
		lines = append(lines, "", style.Render(strings.Join(m.result, "\n")))
	}
	form := formStyle.Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Center, form, m.help.View(m.loginKeys))
}

func renderAttempts(n int) string {
	if n < 0 {
		n = 0
	}
	text := "Attempts: " + strconv.Itoa(n)
	switch {
	case n <= 1:
		return dangerStyle.Render(text)
	case n == 2:
		return warnStyle.Render(text)
	default:
		return attemptsStyle.Render(text)
	}
}

func (m *Model) renderFrozen() string {
	lines := []string{
		dangerStyle.Bold(true).Render("SYSTEM FROZEN"),
		"",
		"Too many failed login attempts.",
		"Enter the passcode to unlock.",
		"",
		m.passcode.View(),
	}
	if m.unlockResult != nil {
		style := dangerStyle
		if m.unlockResult.OK {
			style = successStyle
		}
		lines = append(lines, "", style.Render(m.unlockResult.Msg))
	}
	box := frozenStyle.Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Center, box, m.help.View(m.frozenKeys))
}

func (m *Model) renderAlert() string {
	width := m.modalWidth()
	text := wrapText(m.alert, width)
	hint := mutedStyle.Render("enter to dismiss")
	return modalStyle.Render(text + "\n\n" + hint)
}

func (m *Model) modalWidth() int {
	w := m.width - 10
	if w > 60 {
		w = 60
	}
	if w < 20 {
		w = 20
	}
	return w
}
