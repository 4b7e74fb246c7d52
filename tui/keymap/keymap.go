// Package keymap defines the progress view keybindings and their config
// overrides.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/grovetools/ragsync/config"
	"github.com/grovetools/ragsync/logging"
)

// KeyMap holds the progress view bindings.
type KeyMap struct {
	Start     key.Binding
	Stop      key.Binding
	Reconnect key.Binding
	Help      key.Binding
	Quit      key.Binding
}

// Default returns the built-in bindings.
func Default() KeyMap {
	return KeyMap{
		Start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start indexing"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop indexing"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reconnect"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// Load returns the default bindings with the "keys" config section applied:
//
//	keys:
//	  stop: ["X", "ctrl+x"]
func Load(cfg *config.Config) KeyMap {
	km := Default()
	if cfg == nil {
		return km
	}
	var overrides Overrides
	if err := cfg.UnmarshalExtension("keys", &overrides); err != nil {
		logging.NewLogger("keymap").WithError(err).Warn("Ignoring invalid keys section")
		return km
	}
	if unknown := km.Apply(overrides); len(unknown) > 0 {
		logging.NewLogger("keymap").WithField("keys", unknown).Warn("Unknown key bindings in config")
	}
	return km
}

// Sections groups the bindings for full help.
func (k KeyMap) Sections() []Section {
	return []Section{
		NewSection(SectionActions, k.Start, k.Stop, k.Reconnect),
		NewSection(SectionSystem, k.Help, k.Quit),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Stop, k.Reconnect, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	var columns [][]key.Binding
	for _, s := range k.Sections() {
		if !s.IsEmpty() {
			columns = append(columns, s.FilterEnabled())
		}
	}
	return columns
}
