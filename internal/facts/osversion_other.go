//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package facts

func osVersion() string {
	return Unknown
}
