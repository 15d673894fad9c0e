package service

import (
	"regexp"

	"shapeshift/internal/domain"
)

var innerThoughtPattern = regexp.MustCompile(`\*([^*]+)\*`)

// ParseInnerThoughts separa el texto en tramos hablados y pensamientos (*...*).
func ParseInnerThoughts(text string) []domain.Segment {
	matches := innerThoughtPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		if text == "" {
			return []domain.Segment{}
		}
		return []domain.Segment{{Text: text}}
	}

	segments := make([]domain.Segment, 0, len(matches)*2+1)
	last := 0
	for _, m := range matches {
		if m[0] > last {
			segments = append(segments, domain.Segment{Text: text[last:m[0]]})
		}
		segments = append(segments, domain.Segment{Text: text[m[2]:m[3]], IsInnerThought: true})
		last = m[1]
	}
	if last < len(text) {
		segments = append(segments, domain.Segment{Text: text[last:]})
	}
	return segments
}
