package editor

import (
	"errors"
	"os"

	"github.com/mosaicnetworks/gitmesh/src/repo"
)

// isNotExist reports whether a worktree could not find a file, in which case
// the buffer starts empty.
func isNotExist(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) || errors.Is(err, repo.ErrFileNotFound)
}
