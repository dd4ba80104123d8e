package build

import (
	"os"
	"path/filepath"
	"time"
)

// TestingDir is the directory that contains all of the files and folders
// created during testing (e.g. a world's MemoryDataProvider fixtures).
var TestingDir = filepath.Join(os.TempDir(), "BlockServerTesting")

// TempDir joins the provided directories and prefixes them with the
// testing directory, removing any stale contents from a previous run.
func TempDir(dirs ...string) string {
	path := filepath.Join(TestingDir, filepath.Join(dirs...))
	os.RemoveAll(path) // remove old test data
	return path
}

// Retry calls fn up to tries times, sleeping durationBetweenAttempts
// between attempts, returning as soon as fn returns nil. This is used by
// tests that wait on asynchronous state (e.g. a maintenance sweep
// evicting a column) without a fixed sleep.
func Retry(tries int, durationBetweenAttempts time.Duration, fn func() error) (err error) {
	for i := 1; i < tries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		time.Sleep(durationBetweenAttempts)
	}
	return fn()
}
