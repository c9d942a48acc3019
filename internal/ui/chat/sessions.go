// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	core "github.com/jeranaias/gyankosh/internal/chat"
	"github.com/jeranaias/gyankosh/internal/model"
	"github.com/jeranaias/gyankosh/internal/store"
)

// =============================================================================
// SESSION PICKER
// =============================================================================

// picker is the session list overlay state.
type picker struct {
	items  []model.Session
	cursor int
}

// openPicker enters the picker with the cursor on the current session.
func (m *Model) openPicker(sessions []model.Session) {
	m.picker = picker{items: sessions}
	if cur := m.ctrl.CurrentSession(); cur != nil {
		for i, s := range sessions {
			if s.ID == cur.ID {
				m.picker.cursor = i
				break
			}
		}
	}
	m.state = StatePicker
}

func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.PickerClose):
		m.state = StateReady
		return m, nil

	case key.Matches(msg, m.keys.PickerUp):
		if m.picker.cursor > 0 {
			m.picker.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.PickerDown):
		if m.picker.cursor < len(m.picker.items)-1 {
			m.picker.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.PickerOpen):
		if len(m.picker.items) == 0 {
			m.state = StateReady
			return m, nil
		}
		sel := m.picker.items[m.picker.cursor]
		if cur := m.ctrl.CurrentSession(); cur != nil && cur.ID == sel.ID {
			m.state = StateReady
			return m, nil
		}
		return m, switchSessionCmd(m.ctrl, sel.ID)

	case key.Matches(msg, m.keys.PickerDelete):
		if len(m.picker.items) == 0 {
			return m, nil
		}
		sel := m.picker.items[m.picker.cursor]
		return m, deleteSessionCmd(m.store, sel.ID)
	}
	return m, nil
}

// =============================================================================
// PICKER RENDERING
// =============================================================================

// renderPicker draws the session list in place of the chat viewport.
func (m *Model) renderPicker() string {
	t := m.theme
	out := t.PickerTitle.Render("Sessions") + "\n\n"

	if len(m.picker.items) == 0 {
		out += t.PickerHint.Render("No sessions yet. Ask something to start one.")
		return out
	}

	visible := m.viewport.Height - 4
	if visible < 1 {
		visible = 1
	}
	start := 0
	if m.picker.cursor >= visible {
		start = m.picker.cursor - visible + 1
	}
	end := start + visible
	if end > len(m.picker.items) {
		end = len(m.picker.items)
	}

	for i := start; i < end; i++ {
		s := m.picker.items[i]
		line := fmt.Sprintf("%-40s %s", truncate(s.Title, 40), relTime(s.UpdatedAt))
		if cur := m.ctrl.CurrentSession(); cur != nil && cur.ID == s.ID {
			line += "  [open]"
		}
		if i == m.picker.cursor {
			out += t.PickerSelected.Render(line) + "\n"
		} else {
			out += t.PickerItem.Render(line) + "\n"
		}
	}

	out += "\n" + t.PickerHint.Render("enter open · ctrl+x delete · esc back")
	return out
}

// =============================================================================
// COMMANDS
// =============================================================================

func switchSessionCmd(ctrl *core.Controller, sessionID string) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.SwitchSession(context.Background(), sessionID); err != nil {
			return ErrorMsg{Err: err}
		}
		return SessionSwitchedMsg{Session: ctrl.CurrentSession()}
	}
}

func deleteSessionCmd(st store.Store, sessionID string) tea.Cmd {
	return func() tea.Msg {
		if err := st.DeleteSession(context.Background(), sessionID); err != nil {
			return ErrorMsg{Err: err}
		}
		return SessionDeletedMsg{ID: sessionID}
	}
}
