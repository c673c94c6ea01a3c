// Package repo is the narrow interface through which the engine reads and
// writes git repositories.
//
// Everything the engine needs from git goes through the Repository interface:
// locating the repository of a file, reading its HEAD, reading committed
// content, staging content without touching the working tree, committing,
// resetting, checking out branches and being told when HEAD moves.
//
// GitRepository drives the git command line. Staging uses plumbing commands
// (hash-object, update-index) so that the staged content can differ from the
// file on disk, which is how per-author staging works. InmemRepository keeps
// commits, branches and the index in memory and is used by tests.
package repo
