package historyui

import "github.com/charmbracelet/bubbles/key"

type browseKeyMap struct {
	Left   key.Binding
	Right  key.Binding
	Filter key.Binding
	Reload key.Binding
	Top    key.Binding
	Bottom key.Binding
	Quit   key.Binding
}

func (k browseKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Right, k.Filter, k.Reload, k.Quit}
}

func (k browseKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), {k.Top, k.Bottom}}
}

type filterKeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Apply  key.Binding
	Cancel key.Binding
}

func (k filterKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Apply, k.Cancel}
}

func (k filterKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Prev, k.Apply, k.Cancel}}
}

func newBrowseKeys() browseKeyMap {
	return browseKeyMap{
		Left:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "prev tab")),
		Right:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next tab")),
		Filter: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Top:    key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom: key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func newFilterKeys() filterKeyMap {
	return filterKeyMap{
		Next:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		Prev:   key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev field")),
		Apply:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
		Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}
