//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package audit

import (
	"runtime"

	"golang.org/x/sys/unix"
)

func readPlatform() (platformInfo, error) {
	var name unix.Utsname
	if unameError := unix.Uname(&name); unameError != nil {
		return platformInfo{System: runtime.GOOS, Machine: runtime.GOARCH}, unameError
	}
	return platformInfo{
		System:  unix.ByteSliceToString(name.Sysname[:]),
		Release: unix.ByteSliceToString(name.Release[:]),
		Machine: unix.ByteSliceToString(name.Machine[:]),
	}, nil
}
