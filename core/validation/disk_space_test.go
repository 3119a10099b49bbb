package validation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetDiskSpace(t *testing.T) {
	dir := t.TempDir()

	info, err := GetDiskSpace(dir)
	if err != nil {
		t.Fatalf("GetDiskSpace() error = %v", err)
	}
	if info.Total <= 0 || info.Free < 0 || info.Free > info.Total {
		t.Errorf("implausible figures: %+v", info)
	}
	if info.FreeFormatted == "" || info.TotalFormatted == "" {
		t.Error("formatted figures are empty")
	}
}

func TestGetDiskSpace_MissingPathUsesAncestor(t *testing.T) {
	dir := t.TempDir()

	info, err := GetDiskSpace(filepath.Join(dir, "a", "b", "c.db"))
	if err != nil {
		t.Fatalf("GetDiskSpace() error = %v", err)
	}
	if info.Path != dir {
		t.Errorf("Path = %q, want %q", info.Path, dir)
	}
}

func TestCheckDiskSpace(t *testing.T) {
	info := &DiskSpaceInfo{Path: "/data", Free: 1024}

	if err := CheckDiskSpace(info, 512); err != nil {
		t.Errorf("CheckDiskSpace(512) error = %v", err)
	}

	err := CheckDiskSpace(info, 2048)
	var dse *DiskSpaceError
	if !errors.As(err, &dse) {
		t.Fatalf("CheckDiskSpace(2048) error = %v, want *DiskSpaceError", err)
	}
	if !strings.Contains(err.Error(), "1.00 KB free on /data") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestCheckWritableDir(t *testing.T) {
	dir := t.TempDir()

	if err := CheckWritableDir(dir); err != nil {
		t.Errorf("CheckWritableDir(tempdir) error = %v", err)
	}
	if err := CheckWritableDir(filepath.Join(dir, "not", "yet")); err != nil {
		t.Errorf("CheckWritableDir(missing) error = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("probe left files behind: %v", entries)
	}

	file := filepath.Join(dir, "plain")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CheckWritableDir(file); err == nil {
		t.Error("CheckWritableDir(file) succeeded")
	}
}
