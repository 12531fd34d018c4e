package pattern

import "strings"

// DefaultInclude lists the source extensions indexed when the caller
// supplies no include patterns.
var DefaultInclude = []string{
	"**/*.ts",
	"**/*.tsx",
	"**/*.js",
	"**/*.jsx",
	"**/*.py",
	"**/*.go",
	"**/*.java",
	"**/*.rb",
	"**/*.rs",
	"**/*.c",
	"**/*.h",
	"**/*.cpp",
	"**/*.cs",
	"**/*.php",
	"**/*.ql",
}

// DefaultExclude lists paths skipped when the caller supplies no
// exclude patterns: dependency trees, build output, and minified files.
var DefaultExclude = []string{
	"**/node_modules/**",
	"**/dist/**",
	"**/.git/**",
	"**/build/**",
	"**/target/**",
	"**/__pycache__/**",
	"**/*.min.js",
	"**/*.min.css",
}

// Matcher decides which repository paths enter the indexing pipeline.
// Zero-length pattern slices fall back to the package defaults.
type Matcher struct {
	include []string
	exclude []string
}

// NewMatcher builds a Matcher, substituting DefaultInclude and
// DefaultExclude for empty pattern lists.
func NewMatcher(include, exclude []string) *Matcher {
	if len(include) == 0 {
		include = DefaultInclude
	}
	if len(exclude) == 0 {
		exclude = DefaultExclude
	}
	return &Matcher{include: include, exclude: exclude}
}

// Matches reports whether path passes the include list and is not
// struck by the exclude list. Exclusion wins over inclusion.
func (m *Matcher) Matches(path string) bool {
	for _, pat := range m.exclude {
		if excludeMatches(path, pat) {
			return false
		}
	}
	for _, pat := range m.include {
		if includeMatches(path, pat) {
			return true
		}
	}
	return false
}

// Excluded reports whether path is struck by the exclude list alone.
// The walker uses this to prune directories before listing them.
func (m *Matcher) Excluded(path string) bool {
	for _, pat := range m.exclude {
		if excludeMatches(path, pat) {
			return true
		}
	}
	return false
}

// includeMatches supports two pattern shapes: "**/*.ext" matches any
// path with that extension, anything else matches as a literal suffix.
func includeMatches(path, pat string) bool {
	if rest, ok := strings.CutPrefix(pat, "**/*"); ok {
		return strings.HasSuffix(path, rest)
	}
	return strings.HasSuffix(path, pat)
}

// excludeMatches handles directory patterns ("**/name/**") by whole
// path segment, and file patterns ("**/*.suffix") by suffix. Segment
// matching is deliberate: a naive substring test would also strike
// files merely named like an excluded directory (e.g. "node_modules.py").
func excludeMatches(path, pat string) bool {
	if seg, ok := directorySegment(pat); ok {
		for _, part := range strings.Split(path, "/") {
			if part == seg {
				return true
			}
		}
		return false
	}
	if rest, ok := strings.CutPrefix(pat, "**/*"); ok {
		return strings.HasSuffix(path, rest)
	}
	return strings.Contains(path, pat)
}

// directorySegment extracts "name" from a "**/name/**" pattern.
func directorySegment(pat string) (string, bool) {
	rest, ok := strings.CutPrefix(pat, "**/")
	if !ok {
		return "", false
	}
	seg, ok := strings.CutSuffix(rest, "/**")
	if !ok || seg == "" || strings.Contains(seg, "/") {
		return "", false
	}
	return seg, true
}
