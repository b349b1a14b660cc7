package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Enter     key.Binding
	Back      key.Binding
	Search    key.Binding
	Severity  key.Binding
	Ecosystem key.Binding
	NextItem  key.Binding
	PrevItem  key.Binding
	Quit      key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("up/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("dn/j", "down"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "detail"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	Severity: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "severity"),
	),
	Ecosystem: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "ecosystem"),
	),
	NextItem: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "next"),
	),
	PrevItem: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "prev"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
