// Package pattern decides which repository paths are indexable.
//
// A Matcher holds include and exclude globs. Includes of the form
// "**/*.ext" match by file suffix; excludes of the form "**/name/**"
// match whole path segments, so a file merely named like an excluded
// directory still passes. Exclusion always wins over inclusion.
//
// Excluded reports whether a directory subtree can be pruned without
// listing it.
package pattern
