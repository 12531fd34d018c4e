// Package walker discovers indexable files in a remote repository.
//
// Walk performs a depth-first traversal over a remote.Client, applying
// the pattern matcher to every file and pruning excluded directories
// before they are listed. Results stream over an unbuffered channel, so
// the walk is lazy: a consumer that stops reading stops the traversal,
// and no listing happens ahead of demand.
//
// Listing failures for a subtree are reported as Result values with Err
// set; the consumer chooses between skipping the subtree and aborting.
package walker
