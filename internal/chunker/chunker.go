package chunker

import (
	"strings"

	"go.uber.org/zap"

	"github.com/mforrest/repoctx/pkg/types"
)

// Default fragment budgets. A fragment never exceeds MaxChars
// characters; splitters aim for windows of MaxLines lines overlapping
// by Overlap lines.
const (
	DefaultMaxChars = 1500
	DefaultMaxLines = 40
	DefaultOverlap  = 15
)

// Config carries the fragment budgets handed to splitters and used for
// line mapping. Overlap must be smaller than MaxLines.
type Config struct {
	MaxChars int
	MaxLines int
	Overlap  int
}

// DefaultConfig returns the standard fragment budgets.
func DefaultConfig() Config {
	return Config{
		MaxChars: DefaultMaxChars,
		MaxLines: DefaultMaxLines,
		Overlap:  DefaultOverlap,
	}
}

// Splitter divides file content into fragment texts. Implementations
// are pure: same content in, same pieces out, no side effects.
type Splitter interface {
	Split(content string) ([]string, error)
}

// Chunker turns file contents into embedding-ready chunks. Languages
// with a registered splitter get windowed fragments with line ranges;
// everything else becomes a single whole-file chunk.
type Chunker struct {
	cfg       Config
	splitters map[string]Splitter
	logger    *zap.Logger
}

// New creates a Chunker with the default line-window splitter
// registered for every known source language.
func New(cfg Config, logger *zap.Logger) *Chunker {
	c := &Chunker{
		cfg:       cfg,
		splitters: make(map[string]Splitter),
		logger:    logger,
	}
	defaultSplitter := NewLineWindowSplitter(cfg)
	for _, lang := range []string{
		"go", "python", "typescript", "javascript", "java", "ruby",
		"rust", "c", "cpp", "csharp", "php", "swift", "kotlin",
		"scala", "ql",
	} {
		c.splitters[lang] = defaultSplitter
	}
	return c
}

// Register installs a splitter for a language, replacing any existing
// registration. Registering nil removes the language, sending its files
// down the whole-file path.
func (c *Chunker) Register(language string, s Splitter) {
	if s == nil {
		delete(c.splitters, language)
		return
	}
	c.splitters[language] = s
}

// Chunk fragments one file. Empty content yields no chunks. A language
// without a splitter, or a splitter failure, yields exactly one
// whole-file chunk with a nil range.
func (c *Chunker) Chunk(filepath, content string) []types.Chunk {
	if content == "" {
		return nil
	}

	splitter, ok := c.splitters[types.LanguageForPath(filepath)]
	if !ok {
		return []types.Chunk{wholeFile(filepath, content)}
	}

	pieces, err := splitter.Split(content)
	if err != nil {
		c.logger.Warn("splitter failed, falling back to whole file",
			zap.String("filepath", filepath),
			zap.Error(err))
		return []types.Chunk{wholeFile(filepath, content)}
	}
	if len(pieces) == 0 {
		return []types.Chunk{wholeFile(filepath, content)}
	}

	return c.mapPieces(filepath, content, pieces)
}

// mapPieces assigns each piece an absolute line range. Consecutive
// pieces are assumed to overlap by at most cfg.Overlap lines; each
// start line advances by at least one, so ranges strictly increase
// even when a splitter emits degenerate pieces.
func (c *Chunker) mapPieces(filepath, content string, pieces []string) []types.Chunk {
	totalLines := lineCount(content)
	chunks := make([]types.Chunk, 0, len(pieces))

	startLine := 0
	for i, piece := range pieces {
		if i > 0 {
			advance := lineCount(pieces[i-1]) - c.cfg.Overlap
			if advance < 1 {
				advance = 1
			}
			startLine += advance
		}

		endLine := startLine + lineCount(piece) - 1
		if endLine > totalLines-1 {
			endLine = totalLines - 1
		}

		chunks = append(chunks, types.Chunk{
			Filepath: filepath,
			Content:  piece,
			Range: &types.Range{
				Start: types.Position{Line: startLine},
				End:   types.Position{Line: endLine},
			},
		})
	}

	return chunks
}

func wholeFile(filepath, content string) types.Chunk {
	return types.Chunk{
		Filepath: filepath,
		Content:  content,
	}
}

// lineCount counts lines the way splitlines does: a final newline
// terminates the last line rather than starting an empty one.
func lineCount(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}
