package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// MessageChannel owns the chat endpoint. Send is fire-and-forget and Run
// turns every received datagram into exactly one history entry.
type MessageChannel struct {
	conn    net.PacketConn
	cipher  *Cipher
	state   *State
	metrics *Metrics
	logger  *log.Logger
	port    int
	poll    time.Duration
}

// NewMessageChannel binds the chat endpoint on cfg.Bind:cfg.Port.
func NewMessageChannel(ctx context.Context, cfg ChatConfig, c *Cipher, state *State, metrics *Metrics, logger *log.Logger) (*MessageChannel, error) {
	conn, err := listenUDP(ctx, net.JoinHostPort(cfg.Bind, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("chat channel: %w", err)
	}

	poll := cfg.Poll
	if poll <= 0 {
		poll = chatPollInterval
	}

	return &MessageChannel{
		conn:    conn,
		cipher:  c,
		state:   state,
		metrics: metrics,
		logger:  logger,
		port:    cfg.Port,
		poll:    poll,
	}, nil
}

// LocalAddr returns the bound address.
func (mc *MessageChannel) LocalAddr() net.Addr {
	return mc.conn.LocalAddr()
}

// Close closes the endpoint, unblocking Run.
func (mc *MessageChannel) Close() error {
	return mc.conn.Close()
}

// Send encrypts plaintext under a fresh nonce and transmits it to dest
// ("host" or "host:port"). Failures are logged and dropped.
func (mc *MessageChannel) Send(plaintext, dest string) {
	if err := mc.send(plaintext, dest); err != nil {
		mc.logger.Debug("Dropped outgoing datagram", "dest", dest, "err", err)
	}
}

// send does the work of Send and records the result in the sent counter.
func (mc *MessageChannel) send(plaintext, dest string) (err error) {
	defer func() { mc.metrics.sent(channelChat, err) }()

	addr, err := resolveDestination(dest, mc.port)
	if err != nil {
		return err
	}
	wire, err := SealDatagram(mc.cipher, []byte(plaintext))
	if err != nil {
		return err
	}
	_, err = mc.conn.WriteTo(wire, addr)
	return err
}

// Run receives datagrams until ctx is cancelled or the endpoint is closed.
func (mc *MessageChannel) Run(ctx context.Context) error {
	mc.logger.Info("Chat channel listening", "addr", mc.conn.LocalAddr())

	buffer := make([]byte, maxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		mc.conn.SetReadDeadline(time.Now().Add(mc.poll))
		length, addr, err := mc.conn.ReadFrom(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			mc.logger.Warn("Chat read error", "err", err)
			continue
		}

		mc.handleDatagram(buffer[:length], addr)
	}
}

// handleDatagram classifies one datagram and records it.
func (mc *MessageChannel) handleDatagram(data []byte, from net.Addr) HistoryEntry {
	sender := from.String()

	plaintext, err := OpenDatagram(mc.cipher, data)
	switch {
	case err == nil:
		mc.metrics.received(channelChat, outcomeMessage)
		return mc.state.Append(EntryMessage, sender, strings.ToValidUTF8(string(plaintext), "�"))

	case errors.Is(err, ErrDecode):
		mc.metrics.received(channelChat, outcomeMalformed)
		mc.logger.Debug("Non-protocol datagram", "from", sender, "len", len(data))
		return mc.state.Append(EntryMalformed, sender, rawNotice(data))

	case errors.Is(err, ErrShortPayload):
		mc.metrics.received(channelChat, outcomeShort)
		mc.logger.Debug("Short datagram", "from", sender, "err", err)
		return mc.state.Append(EntryShort, sender, fmt.Sprintf("short or garbled data (%d bytes)", len(data)))

	default:
		mc.metrics.received(channelChat, outcomeAuthFail)
		mc.logger.Debug("Decryption failed", "from", sender, "err", err)
		return mc.state.Append(EntryDecryptFailed, sender, "decryption failed")
	}
}

// rawNotice renders foreign bytes for display.
func rawNotice(data []byte) string {
	if len(data) > maxNoticeBytes {
		data = data[:maxNoticeBytes]
	}
	return strings.ToValidUTF8(string(data), "�")
}

// resolveDestination accepts "host" or "host:port"; a bare host gets port.
func resolveDestination(dest string, port int) (*net.UDPAddr, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return nil, errors.New("empty destination")
	}
	if _, _, err := net.SplitHostPort(dest); err != nil {
		dest = net.JoinHostPort(dest, strconv.Itoa(port))
	}
	addr, err := net.ResolveUDPAddr("udp4", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dest, err)
	}
	return addr, nil
}

// normalizeDestination returns dest in the "host:port" form used as a peer key.
func normalizeDestination(dest string, port int) string {
	dest = strings.TrimSpace(dest)
	if _, _, err := net.SplitHostPort(dest); err != nil {
		return net.JoinHostPort(dest, strconv.Itoa(port))
	}
	return dest
}
