package chatter

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	emoteStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD54F")).Italic(true)
	selfMentionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color(SelfHighlightColor)).Bold(true)
)

// Styled renders r for a terminal. Emotes cannot be drawn inline, so they keep
// their :code: text in a distinct style.
func Styled(r Rendered) string {
	var b strings.Builder
	for _, s := range r.Segments {
		switch s.Kind {
		case SegmentUsername:
			b.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(s.Color)).
				Bold(true).
				Render(s.Text))
		case SegmentMention:
			if s.Self {
				b.WriteString(selfMentionStyle.Render(s.Text))
				continue
			}
			b.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(s.Color)).
				Render(s.Text))
		case SegmentEmote:
			b.WriteString(emoteStyle.Render(s.Text))
		default:
			b.WriteString(s.Text)
		}
	}
	return b.String()
}
