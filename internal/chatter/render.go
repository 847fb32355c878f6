// Package chatter turns raw chat events into styled segments: the sender's
// name in a stable per-user color, inline emotes and highlighted mentions.
package chatter

import (
	"regexp"
	"sort"
	"strings"

	"github.com/vovakirdan/floatchat/internal/emote"
	"github.com/vovakirdan/floatchat/internal/proto"
)

// Separator follows the username segment.
const Separator = ": "

// SegmentKind tags a Segment.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentUsername
	SegmentMention
	SegmentEmote
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentText:
		return "text"
	case SegmentUsername:
		return "username"
	case SegmentMention:
		return "mention"
	case SegmentEmote:
		return "emote"
	default:
		return "unknown"
	}
}

// Segment is one styled piece of a chat line. Text always holds the literal
// source text, so a line can be printed without any styling support.
type Segment struct {
	Kind  SegmentKind
	Text  string
	Color string
	Self  bool
	Emote *emote.Emote
}

// Rendered is a chat event together with its display segments.
type Rendered struct {
	Event    proto.ChatEvent
	Segments []Segment
}

var (
	emotePattern   = regexp.MustCompile(`:(\w+):`)
	mentionPattern = regexp.MustCompile(`\B@(\w+)`)
)

type span struct {
	start, end int
	seg        Segment
}

// Render builds the segments for ev. emotes is a snapshot of the emote cache
// and self the local username used for mention highlighting. Unknown emote
// codes stay plain text.
func Render(ev proto.ChatEvent, emotes map[string]emote.Emote, self string) Rendered {
	segs := []Segment{
		{Kind: SegmentUsername, Text: ev.Username, Color: ColorFor(ev.Username)},
		{Kind: SegmentText, Text: Separator},
	}
	segs = append(segs, tokenize(ev.Message, emotes, self)...)
	return Rendered{Event: ev, Segments: segs}
}

func tokenize(msg string, emotes map[string]emote.Emote, self string) []Segment {
	spans := emoteSpans(msg, emotes)
	spans = append(spans, mentionSpans(msg, spans, self)...)
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var out []Segment
	pos := 0
	for _, sp := range spans {
		if sp.start < pos {
			continue
		}
		if sp.start > pos {
			out = append(out, Segment{Kind: SegmentText, Text: msg[pos:sp.start]})
		}
		out = append(out, sp.seg)
		pos = sp.end
	}
	if pos < len(msg) {
		out = append(out, Segment{Kind: SegmentText, Text: msg[pos:]})
	}
	return out
}

func emoteSpans(msg string, emotes map[string]emote.Emote) []span {
	if len(emotes) == 0 {
		return nil
	}
	var spans []span
	for pos := 0; pos < len(msg); {
		loc := emotePattern.FindStringSubmatchIndex(msg[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		code := msg[pos+loc[2] : pos+loc[3]]
		e, ok := emotes[code]
		if !ok {
			// the closing colon may open the next code
			pos = end - 1
			continue
		}
		spans = append(spans, span{start: start, end: end, seg: Segment{Kind: SegmentEmote, Text: msg[start:end], Emote: &e}})
		pos = end
	}
	return spans
}

func mentionSpans(msg string, taken []span, self string) []span {
	var spans []span
	for _, loc := range mentionPattern.FindAllStringSubmatchIndex(msg, -1) {
		start, end := loc[0], loc[1]
		if overlaps(taken, start, end) {
			continue
		}
		name := msg[loc[2]:loc[3]]
		seg := Segment{Kind: SegmentMention, Text: msg[start:end]}
		if self != "" && strings.EqualFold(name, self) {
			seg.Self = true
			seg.Color = SelfHighlightColor
		} else {
			seg.Color = ColorFor(name)
		}
		spans = append(spans, span{start: start, end: end, seg: seg})
	}
	return spans
}

func overlaps(spans []span, start, end int) bool {
	for _, sp := range spans {
		if start < sp.end && sp.start < end {
			return true
		}
	}
	return false
}

// Plain joins the literal text of every segment.
func Plain(r Rendered) string {
	var b strings.Builder
	for _, s := range r.Segments {
		b.WriteString(s.Text)
	}
	return b.String()
}
