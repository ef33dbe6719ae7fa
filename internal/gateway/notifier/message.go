package notifier

import (
	"strings"
	"time"

	"updown/internal/pkg/text"
)

// Telegram 单条消息上限 4096，留出余量。
const maxMessageBytes = 3800

type Section struct {
	Title string
	Lines []string
}

// Message 统一格式的推送：标题、若干代码块段落、页脚和时间。
type Message struct {
	Icon      string
	Title     string
	Sections  []Section
	Footer    string
	Timestamp time.Time
}

func (m Message) RenderMarkdown() string {
	var b strings.Builder
	if header := strings.TrimSpace(m.Icon + " " + m.Title); header != "" {
		b.WriteString(header)
		b.WriteString("\n\n")
	}
	b.WriteString(renderSections(m.Sections))
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(escapeFence(footer))
		b.WriteString("\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("时间：" + m.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	return text.Truncate(strings.TrimSpace(b.String()), maxMessageBytes)
}

// 段落统一放进一个代码块，空行与空段落跳过。
func renderSections(secs []Section) string {
	var body strings.Builder
	for _, sec := range secs {
		lines := nonEmpty(sec.Lines)
		if len(lines) == 0 {
			continue
		}
		if title := strings.TrimSpace(sec.Title); title != "" {
			body.WriteString(escapeFence(title))
			body.WriteString("\n")
		}
		for _, line := range lines {
			body.WriteString("  ")
			body.WriteString(escapeFence(line))
			body.WriteString("\n")
		}
	}
	if body.Len() == 0 {
		return ""
	}
	return "```\n" + body.String() + "```\n\n"
}

func nonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func escapeFence(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}
