//go:build !linux

package fileutil

import (
	"io/fs"
	"os"
)

func renameNoReplace(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fs.ErrExist
	}
	return os.Rename(src, dst)
}
