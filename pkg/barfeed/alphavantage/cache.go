package alphavantage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/indalsig/barfeed/pkg/errors"
)

// Storage manages the on-disk CSV cache under a root directory. File
// existence is the only state tracked: there are no checksums and no
// staleness timestamps. Entries are created lazily on first successful
// download and invalidated only by force-download or external deletion.
type Storage struct {
	Root string
}

// EnsureRoot creates the storage root if it does not exist. It is
// idempotent; an existing directory is not an error.
func (s Storage) EnsureRoot() error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return errors.Wrapf(errors.ErrCodeFilesystem, err, "failed to create storage directory %s", s.Root)
	}

	return nil
}

// Path returns the cache file path for a symbol. The name is deterministic
// from the symbol and the vendor tag alone, so repeated runs hit the same
// file.
//
// Known limitation kept for compatibility with existing storage roots: the
// frequency is not part of the name, so requesting a different frequency
// for the same symbol and root silently reuses the cached file from the
// previous frequency.
func (s Storage) Path(symbol string) string {
	return filepath.Join(s.Root, fmt.Sprintf("%s-%s.csv", symbol, SourceTag))
}

// Exists reports whether a cache file is present for a symbol.
func (s Storage) Exists(symbol string) bool {
	_, err := os.Stat(s.Path(symbol))

	return err == nil
}

// ShouldDownload reports whether a fresh download is required: true when
// the path does not exist or the caller forces a refresh.
func ShouldDownload(path string, forceDownload bool) bool {
	if forceDownload {
		return true
	}

	_, err := os.Stat(path)

	return err != nil
}

// writeFileAtomic persists data with all-or-nothing semantics: the content
// goes to a uniquely named temporary file in the target directory and is
// renamed into place, fully replacing any prior file.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := fmt.Sprintf("%s.%s.tmp", path, uuid.New().String())

	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return errors.Wrapf(errors.ErrCodeFilesystem, err, "failed to write %s", tmpPath)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)

		return errors.Wrapf(errors.ErrCodeFilesystem, err, "failed to replace %s", path)
	}

	return nil
}
