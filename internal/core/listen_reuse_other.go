//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package core

import (
	"fmt"
	"runtime"
	"syscall"
)

func reuseControl(_, _ string, _ syscall.RawConn) error {
	return fmt.Errorf("--reuse-port is not supported on %s", runtime.GOOS)
}
