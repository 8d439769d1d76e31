package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
)

// Discovery announces this instance with an encrypted probe on the broadcast
// address and collects the senders of valid probes into the peer set.
type Discovery struct {
	conn      net.PacketConn
	cipher    *Cipher
	state     *State
	metrics   *Metrics
	logger    *log.Logger
	broadcast *net.UDPAddr
	probe     []byte
	chatPort  int

	interval    time.Duration
	readTimeout time.Duration

	ignoreLocal bool
	localAddrs  map[string]struct{}

	lastAnnounce time.Time
}

// NewDiscovery binds the discovery endpoint. Peers it finds are recorded as
// ip:chatPort.
func NewDiscovery(ctx context.Context, cfg DiscoveryConfig, chatPort int, c *Cipher, state *State, metrics *Metrics, logger *log.Logger) (*Discovery, error) {
	broadcast, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(cfg.Broadcast, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("discovery: invalid broadcast address: %w", err)
	}

	conn, err := listenUDP(ctx, net.JoinHostPort(cfg.Bind, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	d := &Discovery{
		conn:        conn,
		cipher:      c,
		state:       state,
		metrics:     metrics,
		logger:      logger,
		broadcast:   broadcast,
		probe:       []byte(cfg.Probe),
		chatPort:    chatPort,
		interval:    cfg.Interval,
		readTimeout: cfg.ReadTimeout,
		ignoreLocal: cfg.IgnoreLocal,
		localAddrs:  make(map[string]struct{}),
	}
	if d.interval <= 0 {
		d.interval = announceInterval
	}
	if d.readTimeout <= 0 {
		d.readTimeout = discoveryReadTimeout
	}
	if d.ignoreLocal {
		d.loadLocalAddrs()
	}
	return d, nil
}

// loadLocalAddrs replaces the local address set with the current interface
// addresses. On error the previous set is kept.
func (d *Discovery) loadLocalAddrs() {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		d.logger.Warn("Could not list local interface addresses", "err", err)
		return
	}
	local := make(map[string]struct{}, len(addrs))
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok {
			local[ipNet.IP.String()] = struct{}{}
		}
	}
	d.localAddrs = local
}

// LocalAddr returns the bound address.
func (d *Discovery) LocalAddr() net.Addr {
	return d.conn.LocalAddr()
}

// Close closes the endpoint, unblocking Run.
func (d *Discovery) Close() error {
	return d.conn.Close()
}

// Run alternates announce and a bounded listen until ctx is cancelled. The
// announce step is skipped while discovery is paused or the interval has not
// elapsed.
func (d *Discovery) Run(ctx context.Context) error {
	d.logger.Info("Discovery listening", "addr", d.conn.LocalAddr(), "broadcast", d.broadcast)

	buffer := make([]byte, maxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if d.state.DiscoveryActive() {
			d.announceIfDue(time.Now())
		}

		d.conn.SetReadDeadline(time.Now().Add(d.readTimeout))
		length, addr, err := d.conn.ReadFrom(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			d.logger.Warn("Discovery read error", "err", err)
			continue
		}

		d.handleDatagram(buffer[:length], addr)
	}
}

// announceIfDue broadcasts the probe when the interval has elapsed since the
// last announce. The first call always announces.
func (d *Discovery) announceIfDue(now time.Time) {
	if !d.lastAnnounce.IsZero() && now.Sub(d.lastAnnounce) < d.interval {
		return
	}
	d.lastAnnounce = now
	// Interface addresses can change (DHCP renewal); our own broadcast must
	// keep matching the filter.
	if d.ignoreLocal {
		d.loadLocalAddrs()
	}
	d.sendProbe(d.broadcast)
}

// sendProbe seals a fresh probe and sends it to one address.
func (d *Discovery) sendProbe(to *net.UDPAddr) {
	wire, err := SealDatagram(d.cipher, d.probe)
	if err == nil {
		_, err = d.conn.WriteTo(wire, to)
	}
	d.metrics.sent(channelDiscovery, err)
	if err != nil {
		d.logger.Debug("Probe not sent", "to", to, "err", err)
	}
}

// handleDatagram processes one discovery datagram and reports whether it
// introduced a new peer.
func (d *Discovery) handleDatagram(data []byte, from net.Addr) bool {
	if !d.state.DiscoveryActive() {
		d.metrics.received(channelDiscovery, outcomeIgnored)
		return false
	}

	plaintext, err := OpenDatagram(d.cipher, data)
	if err != nil {
		d.metrics.received(channelDiscovery, discoveryOutcome(err))
		d.logger.Debug("Ignoring discovery datagram", "from", from, "err", err)
		return false
	}
	if !bytes.Equal(plaintext, d.probe) {
		d.metrics.received(channelDiscovery, outcomeIgnored)
		return false
	}

	udpAddr, ok := from.(*net.UDPAddr)
	if !ok || d.isSelf(udpAddr.IP) {
		d.metrics.received(channelDiscovery, outcomeIgnored)
		return false
	}
	d.metrics.received(channelDiscovery, outcomeProbe)

	peer := net.JoinHostPort(udpAddr.IP.String(), strconv.Itoa(d.chatPort))
	if !d.state.AddPeer(peer) {
		return false
	}

	d.metrics.Peers.Set(float64(d.state.PeerCount()))
	d.state.Append(EntryDiscovery, peer, "new user discovered: "+peer)
	d.logger.Info("Discovered peer", "peer", peer)

	// Answer directly so the peer does not wait for our next announce.
	d.sendProbe(udpAddr)
	return true
}

// isSelf reports whether ip belongs to this host.
func (d *Discovery) isSelf(ip net.IP) bool {
	if ip == nil || ip.IsLoopback() || ip.IsUnspecified() {
		return true
	}
	if !d.ignoreLocal {
		return false
	}
	_, local := d.localAddrs[ip.String()]
	return local
}

// discoveryOutcome maps an OpenDatagram error to a metric label.
func discoveryOutcome(err error) string {
	switch {
	case errors.Is(err, ErrDecode):
		return outcomeMalformed
	case errors.Is(err, ErrShortPayload):
		return outcomeShort
	default:
		return outcomeAuthFail
	}
}
