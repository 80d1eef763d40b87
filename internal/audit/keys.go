package audit

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Switch    key.Binding
	Open      key.Binding
	Back      key.Binding
	Quit      key.Binding
	OpenLink  key.Binding
	ToggleRaw key.Binding
}

var keys = keyMap{
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Switch:    key.NewBinding(key.WithKeys("tab", "left", "right"), key.WithHelp("tab", "jobs/failures")),
	Open:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Back:      key.NewBinding(key.WithKeys("esc", "b", "backspace"), key.WithHelp("esc", "back")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	OpenLink:  key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open link")),
	ToggleRaw: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "raw/normalized")),
}

func (k keyMap) listHelp() []key.Binding {
	return []key.Binding{k.Switch, k.Up, k.Down, k.Open, k.Back, k.Quit}
}

func (k keyMap) detailHelp(hasRaw bool) []key.Binding {
	if hasRaw {
		return []key.Binding{k.OpenLink, k.ToggleRaw, k.Back, k.Quit}
	}
	return []key.Binding{k.OpenLink, k.Back, k.Quit}
}
