package chunker

import "strings"

// LineWindowSplitter is the in-tree default splitter: sliding windows
// of at most MaxLines lines overlapping by Overlap, each window also
// capped at MaxChars characters. It has no syntactic awareness; a
// language-aware splitter can replace it per language via Register.
type LineWindowSplitter struct {
	maxChars int
	maxLines int
	overlap  int
}

// NewLineWindowSplitter builds a splitter from cfg, substituting the
// package defaults for non-positive budgets.
func NewLineWindowSplitter(cfg Config) *LineWindowSplitter {
	s := &LineWindowSplitter{
		maxChars: cfg.MaxChars,
		maxLines: cfg.MaxLines,
		overlap:  cfg.Overlap,
	}
	if s.maxChars <= 0 {
		s.maxChars = DefaultMaxChars
	}
	if s.maxLines <= 0 {
		s.maxLines = DefaultMaxLines
	}
	if s.overlap < 0 || s.overlap >= s.maxLines {
		s.overlap = DefaultOverlap
	}
	return s
}

// Split divides content into overlapping line windows.
func (s *LineWindowSplitter) Split(content string) ([]string, error) {
	if content == "" {
		return nil, nil
	}

	lines := strings.Split(content, "\n")
	// A final newline yields a trailing empty element, not an extra
	// line; drop it so windows cover real lines only.
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil, nil
	}
	var pieces []string

	for start := 0; start < len(lines); {
		end := start
		chars := 0
		for end < len(lines) && end-start < s.maxLines {
			lineLen := len(lines[end]) + 1
			// A window always carries at least one line, even one that
			// alone exceeds the character budget.
			if chars+lineLen > s.maxChars && end > start {
				break
			}
			chars += lineLen
			end++
		}

		// A window of nothing but a blank line embeds to nothing;
		// never emit it.
		if piece := strings.Join(lines[start:end], "\n"); piece != "" {
			pieces = append(pieces, piece)
		}
		if end >= len(lines) {
			break
		}

		next := end - s.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return pieces, nil
}
