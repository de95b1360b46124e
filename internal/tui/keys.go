package tui

import "github.com/charmbracelet/bubbles/key"

type loginKeyMap struct {
	Next    key.Binding
	Submit  key.Binding
	Encrypt key.Binding
	Decrypt key.Binding
	Reset   key.Binding
	Quit    key.Binding
}

func (k loginKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Submit, k.Encrypt, k.Decrypt, k.Reset, k.Quit}
}

func (k loginKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

type frozenKeyMap struct {
	Submit key.Binding
	Exit   key.Binding
	Reset  key.Binding
}

func (k frozenKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Exit, k.Reset}
}

func (k frozenKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

type dialogKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

func (k dialogKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Cancel}
}

func (k dialogKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func newLoginKeys(opts Options) loginKeyMap {
	k := loginKeyMap{
		Next:    key.NewBinding(key.WithKeys("tab", "shift+tab", "up", "down"), key.WithHelp("tab", "switch field")),
		Submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "login")),
		Encrypt: key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "encrypt file")),
		Decrypt: key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "decrypt from vault")),
		Reset:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reset attempts")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
	k.Reset.SetEnabled(opts.DevKeys)
	k.Quit.SetEnabled(!opts.Kiosk)
	return k
}

func newFrozenKeys(opts Options) frozenKeyMap {
	k := frozenKeyMap{
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "unlock")),
		Exit:   key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "exit prototype")),
		Reset:  key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reset system")),
	}
	k.Reset.SetEnabled(opts.DevKeys)
	return k
}

func newDialogKeys() dialogKeyMap {
	return dialogKeyMap{
		Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}
