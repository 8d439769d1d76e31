package main

import (
	"context"
	"fmt"
	"net"
)

// listenUDP binds a broadcast-capable IPv4 datagram endpoint.
func listenUDP(ctx context.Context, addr string) (net.PacketConn, error) {
	lc := net.ListenConfig{Control: broadcastControl}
	conn, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return conn, nil
}
