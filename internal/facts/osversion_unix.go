//go:build linux || darwin || freebsd || netbsd || openbsd

package facts

import "golang.org/x/sys/unix"

// osVersion returns the kernel release reported by uname(2).
func osVersion() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return Unknown
	}
	release := unix.ByteSliceToString(uts.Release[:])
	if release == "" {
		return Unknown
	}
	return release
}
