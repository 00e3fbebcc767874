//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package audit

import "runtime"

func readPlatform() (platformInfo, error) {
	return platformInfo{System: runtime.GOOS, Machine: runtime.GOARCH}, nil
}
