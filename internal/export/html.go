// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/jeranaias/gyankosh/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter renders a session transcript as a self-contained HTML
// page with inline styles and a light/dark theme toggle.
type HTMLExporter struct {
	opts *Options
}

// NewHTMLExporter creates an HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{opts: opts}
}

// FileExtension returns ".html".
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the HTML MIME type.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// codeBlockRe matches fenced code blocks so they can be wrapped in
// <pre> before the rest of the content is escaped line by line.
var codeBlockRe = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\n?(.*?)```")

// Export renders the session as a standalone HTML page.
func (e *HTMLExporter) Export(sess *model.Session, msgs []model.Message) ([]byte, error) {
	var sb strings.Builder

	theme := e.opts.Theme
	if theme != "light" {
		theme = "dark"
	}

	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString(fmt.Sprintf("<html lang=\"en\" data-theme=\"%s\">\n", theme))
	sb.WriteString("<head>\n")
	sb.WriteString("<meta charset=\"utf-8\">\n")
	sb.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	sb.WriteString(fmt.Sprintf("<title>%s</title>\n", html.EscapeString(sess.Title)))
	sb.WriteString("<style>\n")
	sb.WriteString(pageCSS)
	sb.WriteString("</style>\n")
	sb.WriteString("</head>\n<body>\n")

	e.renderHeader(&sb, sess, msgs)

	sb.WriteString("<main class=\"transcript\">\n")
	for _, msg := range msgs {
		if msg.Content == "" {
			continue
		}
		e.renderMessage(&sb, msg)
	}
	sb.WriteString("</main>\n")

	sb.WriteString("<script>\n")
	sb.WriteString(pageScript)
	sb.WriteString("</script>\n")
	sb.WriteString("</body>\n</html>\n")

	return []byte(sb.String()), nil
}

func (e *HTMLExporter) renderHeader(sb *strings.Builder, sess *model.Session, msgs []model.Message) {
	sb.WriteString("<header class=\"session-header\">\n")
	sb.WriteString(fmt.Sprintf("<h1>%s</h1>\n", html.EscapeString(sess.Title)))
	if e.opts.IncludeMetadata {
		sb.WriteString("<p class=\"meta\">")
		sb.WriteString(fmt.Sprintf("%s &middot; %d messages &middot; exported by gyankosh",
			html.EscapeString(formatTimestamp(sess.CreatedAt)), len(msgs)))
		sb.WriteString("</p>\n")
	}
	sb.WriteString("<button id=\"theme-toggle\" type=\"button\">Toggle theme</button>\n")
	sb.WriteString("</header>\n")
}

func (e *HTMLExporter) renderMessage(sb *strings.Builder, msg model.Message) {
	cssRole := "system"
	switch msg.Role {
	case model.RoleUser:
		cssRole = "user"
	case model.RoleAssistant:
		cssRole = "assistant"
	}

	sb.WriteString(fmt.Sprintf("<article class=\"message %s\">\n", cssRole))
	sb.WriteString("<div class=\"message-head\">")
	sb.WriteString(fmt.Sprintf("<span class=\"role\">%s</span>", html.EscapeString(roleLabel(msg.Role))))
	if e.opts.IncludeTimestamps {
		sb.WriteString(fmt.Sprintf("<span class=\"time\">%s</span>", html.EscapeString(formatShortTimestamp(msg.CreatedAt))))
	}
	sb.WriteString("</div>\n")

	if msg.DocumentRef != "" {
		sb.WriteString(fmt.Sprintf("<div class=\"doc-ref\">Grounded in %s</div>\n", html.EscapeString(msg.DocumentRef)))
	}

	sb.WriteString("<div class=\"content\">\n")
	sb.WriteString(formatContent(msg.Content))
	sb.WriteString("</div>\n")
	sb.WriteString("</article>\n")
}

// formatContent escapes message text for HTML, preserving fenced code
// blocks as <pre><code> and turning blank lines into paragraph breaks.
func formatContent(content string) string {
	type chunk struct {
		code bool
		lang string
		text string
	}

	var chunks []chunk
	last := 0
	for _, loc := range codeBlockRe.FindAllStringSubmatchIndex(content, -1) {
		if loc[0] > last {
			chunks = append(chunks, chunk{text: content[last:loc[0]]})
		}
		lang := content[loc[2]:loc[3]]
		body := content[loc[4]:loc[5]]
		chunks = append(chunks, chunk{code: true, lang: lang, text: body})
		last = loc[1]
	}
	if last < len(content) {
		chunks = append(chunks, chunk{text: content[last:]})
	}

	var sb strings.Builder
	for _, c := range chunks {
		if c.code {
			sb.WriteString("<pre><code")
			if c.lang != "" {
				sb.WriteString(fmt.Sprintf(" class=\"language-%s\"", html.EscapeString(c.lang)))
			}
			sb.WriteString(">")
			sb.WriteString(html.EscapeString(c.text))
			sb.WriteString("</code></pre>\n")
			continue
		}
		for _, para := range strings.Split(strings.TrimSpace(c.text), "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			escaped := html.EscapeString(para)
			escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
			sb.WriteString("<p>")
			sb.WriteString(escaped)
			sb.WriteString("</p>\n")
		}
	}
	return sb.String()
}

// pageCSS styles the exported page. The palette mirrors the terminal
// theme: saffron accents on a dark surface, with a light variant.
const pageCSS = `
:root[data-theme="dark"] {
  --bg: #1a1a2e; --surface: #23233b; --text: #e8e3d8; --muted: #8a8576;
  --accent: #e49b0f; --user: #2d4a3e; --assistant: #2b2b45; --border: #3a3a55;
}
:root[data-theme="light"] {
  --bg: #faf6ee; --surface: #ffffff; --text: #2a2a35; --muted: #76716a;
  --accent: #b07507; --user: #e3efe8; --assistant: #f0ede4; --border: #d8d2c4;
}
* { box-sizing: border-box; }
body {
  margin: 0; padding: 2rem 1rem;
  background: var(--bg); color: var(--text);
  font-family: "Segoe UI", system-ui, sans-serif; line-height: 1.6;
}
.session-header { max-width: 52rem; margin: 0 auto 2rem; }
.session-header h1 { color: var(--accent); margin: 0 0 0.25rem; }
.session-header .meta { color: var(--muted); margin: 0 0 1rem; font-size: 0.9rem; }
#theme-toggle {
  background: var(--surface); color: var(--text);
  border: 1px solid var(--border); border-radius: 4px;
  padding: 0.3rem 0.8rem; cursor: pointer; font-size: 0.85rem;
}
.transcript { max-width: 52rem; margin: 0 auto; }
.message {
  background: var(--surface); border: 1px solid var(--border);
  border-radius: 8px; padding: 1rem 1.25rem; margin-bottom: 1rem;
}
.message.user { background: var(--user); }
.message.assistant { background: var(--assistant); }
.message-head {
  display: flex; justify-content: space-between;
  margin-bottom: 0.5rem; font-size: 0.85rem;
}
.message-head .role { color: var(--accent); font-weight: 600; }
.message-head .time { color: var(--muted); }
.doc-ref {
  color: var(--muted); font-size: 0.8rem; font-style: italic;
  margin-bottom: 0.5rem;
}
.content p { margin: 0 0 0.75rem; }
.content p:last-child { margin-bottom: 0; }
.content pre {
  background: var(--bg); border: 1px solid var(--border);
  border-radius: 6px; padding: 0.75rem 1rem; overflow-x: auto;
}
.content code { font-family: "Cascadia Code", Consolas, monospace; font-size: 0.9rem; }
`

// pageScript toggles the theme and remembers the choice.
const pageScript = `
(function () {
  var root = document.documentElement;
  var btn = document.getElementById("theme-toggle");
  try {
    var saved = localStorage.getItem("gyankosh-theme");
    if (saved === "light" || saved === "dark") root.dataset.theme = saved;
  } catch (e) {}
  btn.addEventListener("click", function () {
    var next = root.dataset.theme === "dark" ? "light" : "dark";
    root.dataset.theme = next;
    try { localStorage.setItem("gyankosh-theme", next); } catch (e) {}
  });
})();
`
