//go:build !linux

package socket

import "syscall"

// applyPlatformOptions is a no-op on platforms without the Linux-specific
// keepalive tuning knobs.
func applyPlatformOptions(rawConn syscall.RawConn, cfg Config) error {
	return nil
}

// applyListenerPlatformOptions is a no-op on platforms without
// TCP_DEFER_ACCEPT.
func applyListenerPlatformOptions(rawConn syscall.RawConn, cfg Config) error {
	return nil
}
