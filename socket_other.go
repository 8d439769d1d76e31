//go:build !unix

package main

import "syscall"

// The Go runtime already sets SO_BROADCAST on UDP sockets here.
func broadcastControl(network, address string, c syscall.RawConn) error {
	return nil
}
