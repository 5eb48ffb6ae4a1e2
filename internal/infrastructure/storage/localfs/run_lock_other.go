//go:build !unix

package localfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Without flock the lock is an exclusive create; a crashed holder leaves the
// file behind and it has to be removed by hand.
func tryLockFile(path string) (func(), bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open run lock: %w", err)
	}
	return func() {
		_ = f.Close()
		_ = os.Remove(path)
	}, true, nil
}
