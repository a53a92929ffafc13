package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Open   key.Binding
	Speeds key.Binding
	Hide   key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("j/k", "navigate"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("j/k", "navigate"),
	),
	Open: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "open web ui"),
	),
	Speeds: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "toggle speeds"),
	),
	Hide: key.NewBinding(
		key.WithKeys("h", "esc"),
		key.WithHelp("h", "hide"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func keyHints() string {
	bindings := []key.Binding{keys.Down, keys.Open, keys.Speeds, keys.Hide, keys.Quit}
	out := ""
	for i, b := range bindings {
		if i > 0 {
			out += "  "
		}
		out += b.Help().Key + " " + b.Help().Desc
	}
	return out
}
