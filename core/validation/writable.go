package validation

import (
	"fmt"
	"os"
)

// CheckWritableDir reports whether files can be created in dir. A missing
// dir is checked at its nearest existing ancestor, where it would be
// created.
func CheckWritableDir(dir string) error {
	existing, err := nearestExisting(dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(existing)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", existing)
	}

	f, err := os.CreateTemp(existing, ".storybook-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
