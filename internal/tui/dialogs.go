package tui

import (
	"path/filepath"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type vaultItem string

func (i vaultItem) FilterValue() string { return string(i) }
func (i vaultItem) Title() string       { return string(i) }
func (i vaultItem) Description() string { return "" }

func (m *Model) startEncrypt() tea.Cmd {
	if m.deps.Vault == nil || m.vaultBusy {
		return nil
	}
	m.vaultBusy = true
	ctx := m.ctx
	v := m.deps.Vault
	return func() tea.Msg {
		text, err := v.Encrypt(ctx)
		return vaultDoneMsg{text: text, err: err}
	}
}

func (m *Model) startList() tea.Cmd {
	if m.deps.Vault == nil || m.vaultBusy {
		return nil
	}
	m.vaultBusy = true
	ctx := m.ctx
	v := m.deps.Vault
	return func() tea.Msg {
		files, err := v.List(ctx)
		return vaultListMsg{files: files, err: err}
	}
}

func (m *Model) startDecrypt(name string) tea.Cmd {
	if m.deps.Vault == nil || m.vaultBusy {
		return nil
	}
	m.vaultBusy = true
	ctx := m.ctx
	v := m.deps.Vault
	return func() tea.Msg {
		text, err := v.Decrypt(ctx, name)
		return vaultDoneMsg{text: text, err: err}
	}
}

func (m *Model) showVaultList(files []string) {
	items := make([]list.Item, len(files))
	for i, f := range files {
		items[i] = vaultItem(f)
	}
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)
	w, h := m.listSize()
	l := list.New(items, delegate, w, h)
	l.Title = "Vault"
	l.SetShowStatusBar(false)
	m.vaultList = l
	m.modal = modalVaultList
}

func (m *Model) updateVaultList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.vaultList.FilterState() != list.Filtering {
		switch msg.Type {
		case tea.KeyEsc:
			m.modal = modalNone
			return m, nil
		case tea.KeyEnter:
			item, ok := m.vaultList.SelectedItem().(vaultItem)
			m.modal = modalNone
			if !ok {
				return m, nil
			}
			return m, m.startDecrypt(string(item))
		}
	}
	var cmd tea.Cmd
	m.vaultList, cmd = m.vaultList.Update(msg)
	return m, cmd
}

func (m *Model) openFileDialog(reply chan<- dialogResult) tea.Cmd {
	if m.dialogWait != nil {
		reply <- dialogResult{}
		return nil
	}
	fp := filepicker.New()
	fp.CurrentDirectory = m.opts.StartDir
	fp.ShowPermissions = false
	fp.KeyMap.Back = key.NewBinding(key.WithKeys("h", "backspace", "left"), key.WithHelp("h", "back"))
	m.picker = fp
	m.sizePicker()
	m.dialogWait = reply
	m.modal = modalOpenFile
	return m.picker.Init()
}

func (m *Model) openSaveDialog(defaultName string, reply chan<- dialogResult) tea.Cmd {
	if m.dialogWait != nil {
		reply <- dialogResult{}
		return nil
	}
	m.savePath.SetValue(filepath.Join(m.opts.StartDir, defaultName))
	m.savePath.CursorEnd()
	m.dialogWait = reply
	m.modal = modalSaveFile
	return m.savePath.Focus()
}

func (m *Model) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && key.Matches(k, m.dialogKeys.Cancel) {
		m.answerDialog(dialogResult{})
		return m, nil
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	if ok, path := m.picker.DidSelectFile(msg); ok {
		m.answerDialog(dialogResult{path: path, ok: true})
		return m, nil
	}
	return m, cmd
}

func (m *Model) updateSaveDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.dialogKeys.Cancel):
		m.answerDialog(dialogResult{})
		return m, nil
	case key.Matches(msg, m.dialogKeys.Confirm):
		path := m.savePath.Value()
		m.answerDialog(dialogResult{path: path, ok: path != ""})
		return m, nil
	}
	var cmd tea.Cmd
	m.savePath, cmd = m.savePath.Update(msg)
	return m, cmd
}

// answerDialog replies to the waiting dialog caller and closes the dialog.
// The reply channel is buffered, so this never blocks the UI.
func (m *Model) answerDialog(res dialogResult) {
	if m.dialogWait != nil {
		m.dialogWait <- res
		m.dialogWait = nil
	}
	m.savePath.Blur()
	m.modal = modalNone
}

func (m *Model) renderDialog() string {
	var title, body string
	if m.modal == modalOpenFile {
		title = "Select a file to encrypt"
		body = mutedStyle.Render(truncate(m.picker.CurrentDirectory, m.modalWidth())) + "\n\n" + m.picker.View()
	} else {
		title = "Save decrypted file"
		body = m.savePath.View()
	}
	content := titleStyle.Render(title) + "\n\n" + body
	return lipgloss.JoinVertical(lipgloss.Center, modalStyle.Render(content), m.help.View(m.dialogKeys))
}

func (m *Model) listSize() (int, int) {
	w := m.modalWidth()
	h := m.height - 10
	if h < 5 {
		h = 5
	}
	if h > 20 {
		h = 20
	}
	return w, h
}

func (m *Model) resizeDialogs() {
	w, h := m.listSize()
	if m.modal == modalVaultList {
		m.vaultList.SetSize(w, h)
	}
	if m.modal == modalOpenFile {
		m.sizePicker()
	}
	m.savePath.Width = w - lipgloss.Width(m.savePath.Prompt)
}

// pickerMargin is the number of rows the file picker reserves below itself
// when sizing from a window size message.
const pickerMargin = 5

func (m *Model) sizePicker() {
	w, h := m.listSize()
	m.picker.AutoHeight = true
	m.picker, _ = m.picker.Update(tea.WindowSizeMsg{Width: w, Height: h + pickerMargin})
}
