package types

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Position is a zero-based line/character location within a file.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range spans from Start to End, inclusive on lines. Character offsets
// are carried for API symmetry; the pipeline only assigns line numbers.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Chunk is a fragment of a repository file. A nil Range means the chunk
// covers the whole file.
type Chunk struct {
	Filepath string `json:"filepath"`
	Content  string `json:"content"`
	Range    *Range `json:"range,omitempty"`
	Repo     string `json:"repo"`
	Branch   string `json:"branch"`
}

// StartLine returns the first line the chunk covers. Whole-file chunks
// start at line 0.
func (c *Chunk) StartLine() int {
	if c.Range == nil {
		return 0
	}
	return c.Range.Start.Line
}

// ID is the storage identity of the chunk: "filepath:start_line".
// Two runs over identical content produce identical IDs.
func (c *Chunk) ID() string {
	return fmt.Sprintf("%s:%d", c.Filepath, c.StartLine())
}

// Language derives the chunk's language from its file extension,
// returning "unknown" for unmapped extensions.
func (c *Chunk) Language() string {
	return LanguageForPath(c.Filepath)
}

// Validate checks structural integrity of the chunk.
func (c *Chunk) Validate() error {
	if c.Filepath == "" {
		return errors.New("chunk filepath cannot be empty")
	}
	if c.Content == "" {
		return errors.New("chunk content cannot be empty")
	}
	if c.Range != nil {
		if c.Range.Start.Line < 0 || c.Range.End.Line < 0 {
			return errors.New("chunk line numbers cannot be negative")
		}
		if c.Range.Start.Line > c.Range.End.Line {
			return errors.New("chunk start line must not exceed end line")
		}
	}
	return nil
}

// Tag scopes an index or a query to a repository and branch, optionally
// narrowed to a directory within the repository.
type Tag struct {
	Repo      string `json:"repo"`
	Branch    string `json:"branch"`
	Directory string `json:"directory,omitempty"`
}

// languageByExtension maps file extensions to language names. Extensions
// not listed here report "unknown".
var languageByExtension = map[string]string{
	".go":    "go",
	".py":    "python",
	".ts":    "typescript",
	".tsx":   "typescript",
	".js":    "javascript",
	".jsx":   "javascript",
	".java":  "java",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".scala": "scala",
	".sh":    "shell",
	".sql":   "sql",
	".ql":    "ql",
	".md":    "markdown",
	".yml":   "yaml",
	".yaml":  "yaml",
	".json":  "json",
	".toml":  "toml",
}

// LanguageForPath maps a file path to its language name by extension.
func LanguageForPath(filepath string) string {
	ext := strings.ToLower(path.Ext(filepath))
	if lang, ok := languageByExtension[ext]; ok {
		return lang
	}
	return "unknown"
}
