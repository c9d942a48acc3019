// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "github.com/charmbracelet/bubbles/key"

// =============================================================================
// KEY BINDINGS
// =============================================================================

// KeyMap holds every binding the chat screen knows about.
type KeyMap struct {
	Submit      key.Binding
	Stop        key.Binding
	Continue    key.Binding
	NewSession  key.Binding
	Sessions    key.Binding
	CopyAnswer  key.Binding
	ScrollUp    key.Binding
	ScrollDown  key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	GotoTop     key.Binding
	GotoBottom  key.Binding
	Help        key.Binding
	Quit        key.Binding

	// Picker-only bindings
	PickerUp     key.Binding
	PickerDown   key.Binding
	PickerOpen   key.Binding
	PickerDelete key.Binding
	PickerClose  key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Stop: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop answer"),
		),
		Continue: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "continue answer"),
		),
		NewSession: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new chat"),
		),
		Sessions: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "sessions"),
		),
		CopyAnswer: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("ctrl+y", "copy answer"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("up", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("down", "scroll down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("pgdn", "page down"),
		),
		GotoTop: key.NewBinding(
			key.WithKeys("home"),
			key.WithHelp("home", "top"),
		),
		GotoBottom: key.NewBinding(
			key.WithKeys("end"),
			key.WithHelp("end", "bottom"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("ctrl+g", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("ctrl+c", "quit"),
		),

		PickerUp: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "previous"),
		),
		PickerDown: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "next"),
		),
		PickerOpen: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		PickerDelete: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "delete"),
		),
		PickerClose: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
	}
}

// HelpContext filters bindings for the help bar by screen state.
type HelpContext int

const (
	HelpChat HelpContext = iota
	HelpStreaming
	HelpPicker
)

// HelpItem is one rendered binding in the help bar.
type HelpItem struct {
	Key  string
	Desc string
}

// HelpFor returns the bindings worth showing in the given context.
func (k KeyMap) HelpFor(ctx HelpContext) []HelpItem {
	var bindings []key.Binding
	switch ctx {
	case HelpStreaming:
		bindings = []key.Binding{k.Stop, k.CopyAnswer, k.Quit}
	case HelpPicker:
		bindings = []key.Binding{k.PickerUp, k.PickerDown, k.PickerOpen, k.PickerDelete, k.PickerClose}
	default:
		bindings = []key.Binding{k.Submit, k.Sessions, k.NewSession, k.Continue, k.CopyAnswer, k.Help, k.Quit}
	}

	items := make([]HelpItem, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		items = append(items, HelpItem{Key: h.Key, Desc: h.Desc})
	}
	return items
}
