//go:build linux

package socket

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// applyPlatformOptions sets the Linux keepalive probe schedule
// (TCP_KEEPIDLE/TCP_KEEPINTVL/TCP_KEEPCNT) through golang.org/x/sys/unix's
// named constants.
func applyPlatformOptions(rawConn syscall.RawConn, cfg Config) error {
	if !cfg.KeepAlive {
		return nil
	}
	var opErr error
	err := rawConn.Control(func(fd uintptr) {
		if cfg.KeepAliveIdle > 0 {
			opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, cfg.KeepAliveIdle)
		}
		if opErr == nil && cfg.KeepAliveInterval > 0 {
			opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, cfg.KeepAliveInterval)
		}
		if opErr == nil && cfg.KeepAliveCount > 0 {
			opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, cfg.KeepAliveCount)
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

// applyListenerPlatformOptions sets TCP_DEFER_ACCEPT so the server isn't
// woken until the client has actually sent request bytes.
func applyListenerPlatformOptions(rawConn syscall.RawConn, cfg Config) error {
	var opErr error
	err := rawConn.Control(func(fd uintptr) {
		opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_DEFER_ACCEPT, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}
