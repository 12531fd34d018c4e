package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatcherDefaults(t *testing.T) {
	m := NewMatcher(nil, nil)

	assert.True(t, m.Matches("src/main.py"))
	assert.True(t, m.Matches("internal/server/handler.go"))
	assert.True(t, m.Matches("web/app.tsx"))
	assert.False(t, m.Matches("README.md"))
	assert.False(t, m.Matches("assets/logo.png"))
}

func TestMatcherExcludesDependencyTrees(t *testing.T) {
	m := NewMatcher(nil, nil)

	assert.False(t, m.Matches("web/node_modules/lodash/index.js"))
	assert.False(t, m.Matches("server/dist/bundle.js"))
	assert.False(t, m.Matches(".git/hooks/pre-commit.py"))
	assert.False(t, m.Matches("lib/__pycache__/mod.py"))
	assert.False(t, m.Matches("static/vendor.min.js"))
}

// Exclusion is by whole path segment. A file that merely contains an
// excluded directory name in its own name must still be indexed.
func TestMatcherExcludeRequiresWholeSegment(t *testing.T) {
	m := NewMatcher(nil, nil)

	assert.True(t, m.Matches("tools/node_modules.py"))
	assert.True(t, m.Matches("scripts/build_index.py"))
	assert.False(t, m.Matches("tools/node_modules/helper.py"))
}

func TestMatcherCustomPatterns(t *testing.T) {
	m := NewMatcher([]string{"**/*.sql"}, []string{"**/migrations/**"})

	assert.True(t, m.Matches("db/schema.sql"))
	assert.False(t, m.Matches("db/migrations/0001_init.sql"))
	assert.False(t, m.Matches("src/main.go"))
}

func TestMatcherLiteralSuffixInclude(t *testing.T) {
	m := NewMatcher([]string{"Makefile", "**/*.go"}, nil)

	assert.True(t, m.Matches("build/Makefile"))
	assert.True(t, m.Matches("cmd/main.go"))
	assert.False(t, m.Matches("cmd/main.rs"))
}

func TestMatcherExclusionWinsOverInclusion(t *testing.T) {
	m := NewMatcher([]string{"**/*.js"}, []string{"**/*.min.js"})

	assert.True(t, m.Matches("app/index.js"))
	assert.False(t, m.Matches("app/index.min.js"))
}
