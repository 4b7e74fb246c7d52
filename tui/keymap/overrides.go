package keymap

import (
	"sort"

	"github.com/charmbracelet/bubbles/key"
)

// Overrides maps binding names (start, stop, reconnect, help, quit) to
// replacement keys.
type Overrides map[string][]string

func (k *KeyMap) named() map[string]*key.Binding {
	return map[string]*key.Binding{
		"start":     &k.Start,
		"stop":      &k.Stop,
		"reconnect": &k.Reconnect,
		"help":      &k.Help,
		"quit":      &k.Quit,
	}
}

// Apply rebinds the named bindings, keeping their help text. It returns the
// override names that match no binding, sorted.
func (k *KeyMap) Apply(overrides Overrides) []string {
	bindings := k.named()
	var unknown []string
	for name, keys := range overrides {
		b, ok := bindings[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if len(keys) == 0 {
			continue
		}
		*b = key.NewBinding(
			key.WithKeys(keys...),
			key.WithHelp(keys[0], b.Help().Desc),
		)
	}
	sort.Strings(unknown)
	return unknown
}
