package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"storybook/core"
)

// DiskSpaceInfo describes the filesystem holding a path.
type DiskSpaceInfo struct {
	Path           string
	Total          int64
	Free           int64
	Used           int64
	UsedPercent    float64
	FreeFormatted  string
	TotalFormatted string
}

// DiskSpaceError reports less free space than required.
type DiskSpaceError struct {
	Path      string
	Required  int64
	Available int64
}

func (e *DiskSpaceError) Error() string {
	return fmt.Sprintf("only %s free on %s, want at least %s",
		core.FormatBytes(e.Available), e.Path, core.FormatBytes(e.Required))
}

// GetDiskSpace reports on the filesystem containing path. A path that does
// not exist yet is measured at its nearest existing ancestor.
func GetDiskSpace(path string) (*DiskSpaceInfo, error) {
	dir, err := nearestExisting(path)
	if err != nil {
		return nil, err
	}

	total, free, err := getDiskSpace(dir)
	if err != nil {
		return nil, fmt.Errorf("statfs %s: %w", dir, err)
	}

	info := &DiskSpaceInfo{
		Path:           dir,
		Total:          total,
		Free:           free,
		Used:           total - free,
		FreeFormatted:  core.FormatBytes(free),
		TotalFormatted: core.FormatBytes(total),
	}
	if total > 0 {
		info.UsedPercent = float64(info.Used) / float64(total) * 100
	}
	return info, nil
}

// CheckDiskSpace returns a *DiskSpaceError when info has less than required
// bytes free.
func CheckDiskSpace(info *DiskSpaceInfo, required int64) error {
	if info.Free < required {
		return &DiskSpaceError{Path: info.Path, Required: required, Available: info.Free}
	}
	return nil
}

func nearestExisting(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(abs); err == nil {
			return abs, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("no existing ancestor of %s", path)
		}
		abs = parent
	}
}
