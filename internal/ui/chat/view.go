// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/gyankosh/internal/model"
	"github.com/jeranaias/gyankosh/internal/ui/components"
)

// streamCursor marks the live end of a streaming answer.
const streamCursor = "▌"

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderBody())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.theme.InputBox.Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderHeader() string {
	title := "new chat"
	if s := m.ctrl.CurrentSession(); s != nil {
		title = s.Title
	}
	return m.theme.Header.Render("gyankosh " + m.theme.HeaderTag.Render("· "+truncate(title, m.width-12)))
}

// renderBody shows the chat viewport, or the session picker padded to
// the same height so the chrome does not jump.
func (m Model) renderBody() string {
	if m.state == StatePicker {
		return lipgloss.NewStyle().
			Width(m.viewport.Width).
			Height(m.viewport.Height).
			Render(m.renderPicker())
	}
	return m.viewport.View()
}

func (m Model) renderStatus() string {
	if m.toast != "" {
		if m.toastErr {
			return m.theme.ToastError.Render(m.toast)
		}
		return m.theme.Toast.Render(m.toast)
	}

	snap := m.ctrl.Status()
	if snap.Stage.Active() {
		line := fmt.Sprintf("%s %s · %s", m.spin.View(), snap.Stage, fmtDuration(snap.Elapsed))
		if snap.Estimated > 0 {
			line += " · usually ~" + fmtDuration(snap.Estimated)
		}
		return m.theme.StatusBar.Render(line)
	}

	n := len(m.ctrl.Messages())
	switch n {
	case 0:
		return m.theme.StatusBar.Render("ready")
	case 1:
		return m.theme.StatusBar.Render("ready · 1 message")
	default:
		return m.theme.StatusBar.Render(fmt.Sprintf("ready · %d messages", n))
	}
}

func (m Model) renderHelp() string {
	ctx := HelpChat
	switch m.state {
	case StateStreaming:
		ctx = HelpStreaming
	case StatePicker:
		ctx = HelpPicker
	}

	items := m.keys.HelpFor(ctx)
	if ctx == HelpChat && !m.showHelp && len(items) > 3 {
		items = items[:3]
	}

	parts := make([]string, 0, len(items)+1)
	for _, it := range items {
		parts = append(parts, it.Key+" "+it.Desc)
	}
	if ctx == HelpChat && !m.showHelp {
		parts = append(parts, "ctrl+g more")
	}
	return m.theme.HelpBar.Render(strings.Join(parts, " · "))
}

// =============================================================================
// MESSAGE RENDERING
// =============================================================================

// renderMessages builds the full transcript from the reconciled view.
func (m *Model) renderMessages() string {
	msgs := m.ctrl.Messages()
	if len(msgs) == 0 {
		return m.renderWelcome()
	}

	streaming := m.state == StateStreaming && m.ctrl.Stage().Active()
	parts := make([]string, 0, len(msgs))
	for i, msg := range msgs {
		switch msg.Role {
		case model.RoleUser:
			parts = append(parts, m.renderUserMessage(msg))
		case model.RoleAssistant:
			live := streaming && i == len(msgs)-1
			parts = append(parts, m.renderAssistantMessage(msg, live))
		}
	}
	return strings.Join(parts, "\n\n")
}

func (m *Model) renderWelcome() string {
	hint := m.theme.HelpBar.Render("Answers stream in and progress is saved as it arrives.\nStopping keeps the partial answer; type \"continue\" to pick it up.")
	return "\n" + m.theme.AssistantName.Render("gyankosh") + "\n" +
		m.theme.Assistant.Render("Ask anything about your vault.") + "\n" + hint
}

func (m *Model) renderUserMessage(msg model.Message) string {
	wrapWidth := m.width*2/3 - 4
	if wrapWidth < 20 {
		wrapWidth = 20
	}
	bubble := m.theme.UserBubble.Render(wrapText(msg.Content, wrapWidth))
	meta := m.theme.Timestamp.Render(formatTimestamp(msg.CreatedAt))
	block := lipgloss.JoinVertical(lipgloss.Right, bubble, meta)
	return lipgloss.PlaceHorizontal(m.viewport.Width, lipgloss.Right, block)
}

// renderAssistantMessage lays out one answer: name line, body, and a
// note when the answer was interrupted. Finalized answers render as
// markdown; live ones stay plain with a cursor so the text never
// reflows mid-stream.
func (m *Model) renderAssistantMessage(msg model.Message, live bool) string {
	textWidth := m.viewport.Width - 4
	if textWidth < 20 {
		textWidth = 20
	}

	content := msg.Content
	stopped := false
	if m.stopMarker != "" && strings.HasSuffix(content, m.stopMarker) {
		content = strings.TrimSuffix(content, m.stopMarker)
		stopped = true
	}

	name := m.theme.AssistantName.Render("gyankosh")

	if content == "" && live {
		return name + "\n" + m.theme.Assistant.Render("thinking "+m.theme.Cursor.Render(streamCursor))
	}

	var rendered string
	if !live {
		if md, ok := m.renderMarkdown(content, textWidth); ok {
			rendered = md
		}
	}
	if rendered == "" {
		rendered = m.theme.Assistant.Render(m.renderPlainBody(content, textWidth))
	}

	out := name + "\n" + rendered
	switch {
	case live:
		out += m.theme.Cursor.Render(streamCursor)
	case stopped:
		out += "\n" + m.theme.StopNote.Render(`answer stopped here · send "continue" to resume`)
	default:
		out += "\n" + m.theme.Timestamp.Render(formatTimestamp(msg.CreatedAt))
	}
	return out
}

// renderPlainBody wraps prose and highlights code blocks without any
// markdown interpretation. Used for streaming answers and as the
// fallback when glamour is unavailable.
func (m *Model) renderPlainBody(content string, textWidth int) string {
	var body strings.Builder
	for _, seg := range components.ParseCodeBlocks(content) {
		if seg.Block != nil {
			body.WriteString(seg.Block.Render(textWidth))
			continue
		}
		wrapped := wrapText(seg.Text, textWidth)
		lines := strings.Split(wrapped, "\n")
		for i, line := range lines {
			lines[i] = components.RenderInlineCode(line)
		}
		body.WriteString(strings.Join(lines, "\n"))
	}
	return body.String()
}
