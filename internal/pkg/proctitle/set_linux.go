//go:build linux

package proctitle

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// linux caps the comm name at 15 bytes plus the terminator.
const maxComm = 15

func setName(title string) error {
	b := make([]byte, maxComm+1)
	copy(b, title)
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&b[0])), 0, 0, 0)
}
