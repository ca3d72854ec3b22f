package wire

import (
	"syscall"
	"testing"
)

func TestFileModeClassification(t *testing.T) {
	sock := FileMode(syscall.S_IFSOCK)
	if sock.IsDir() {
		t.Error("socket should not report IsDir")
	}
	if !sock.IsSocket() {
		t.Error("socket should report IsSocket")
	}

	dir := FileMode(syscall.S_IFDIR | 0755)
	if !dir.IsDir() {
		t.Error("mode with S_IFDIR bits should report IsDir")
	}
	if dir.IsRegular() {
		t.Error("directory should not report IsRegular")
	}
}

func TestAttrFileMode(t *testing.T) {
	a := &Attr{Mode: uint32(syscall.S_IFLNK | 0777)}
	if !a.IsSymlink() {
		t.Error("attr with S_IFLNK mode should report IsSymlink")
	}
	if a.IsDir() {
		t.Error("symlink attr should not report IsDir")
	}
}
