package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Node owns the chat channel, the discovery service and the shared state.
// The UI talks to it only through Submit, Broadcast, ToggleDiscovery and the
// State snapshots.
type Node struct {
	ID      string
	State   *State
	Metrics *Metrics

	cfg       *Config
	cipher    *Cipher
	logger    *log.Logger
	channel   *MessageChannel
	discovery *Discovery

	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
}

// NewNode binds both endpoints. Any bind failure is returned; the caller
// treats it as fatal.
func NewNode(ctx context.Context, cfg *Config, c *Cipher, logger *log.Logger) (*Node, error) {
	id := uuid.NewString()
	logger = logger.With("node", id[:8])

	state := NewState()
	metrics := NewMetrics()

	channel, err := NewMessageChannel(ctx, cfg.Chat, c, state, metrics, logger.With("component", "channel"))
	if err != nil {
		return nil, err
	}

	n := &Node{
		ID:      id,
		State:   state,
		Metrics: metrics,
		cfg:     cfg,
		cipher:  c,
		logger:  logger,
		channel: channel,
	}

	if cfg.Discovery.Enabled {
		discovery, err := NewDiscovery(ctx, cfg.Discovery, cfg.Chat.Port, c, state, metrics, logger.With("component", "discovery"))
		if err != nil {
			channel.Close()
			return nil, err
		}
		n.discovery = discovery
	} else {
		state.SetDiscoveryActive(false)
		logger.Info("Auto-discovery disabled")
	}

	for _, peer := range cfg.Peers {
		n.AddPeer(peer)
	}

	return n, nil
}

// Start launches the service loops. They stop when ctx is cancelled or Close
// is called.
func (n *Node) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)
	n.group, ctx = errgroup.WithContext(ctx)

	n.group.Go(func() error { return n.channel.Run(ctx) })
	if n.discovery != nil {
		n.group.Go(func() error { return n.discovery.Run(ctx) })
	}
	if n.cfg.Metrics.Addr != "" {
		n.group.Go(func() error { return serveMetrics(ctx, n.cfg.Metrics.Addr, n.Metrics, n.logger) })
	}

	n.State.Append(EntrySystem, "", fmt.Sprintf("Connected. Chat on %s, %s", n.channel.LocalAddr(), n.discoveryStatus()))
	n.logger.Info("Node started", "chat", n.channel.LocalAddr(), "cipher", n.cipher.Suite())
}

// discoveryStatus describes the discovery endpoint for the startup banner.
func (n *Node) discoveryStatus() string {
	if n.discovery == nil {
		return "discovery disabled"
	}
	return fmt.Sprintf("discovery on %s", n.discovery.LocalAddr())
}

// Close cancels the loops, closes both endpoints and waits for every
// goroutine to return. It is safe to call more than once.
func (n *Node) Close() error {
	var err error
	n.closeOnce.Do(func() {
		if n.cancel != nil {
			n.cancel()
		}
		err = errors.Join(err, n.channel.Close())
		if n.discovery != nil {
			err = errors.Join(err, n.discovery.Close())
		}
		if n.group != nil {
			err = errors.Join(err, n.group.Wait())
		}
		n.logger.Info("Node shut down")
	})
	return err
}

// Submit sends plaintext to one destination and records it. Transmission
// failures are not reported.
func (n *Node) Submit(plaintext, dest string) {
	if plaintext == "" || strings.TrimSpace(dest) == "" {
		return
	}
	dest = normalizeDestination(dest, n.cfg.Chat.Port)
	n.channel.Send(plaintext, dest)
	n.State.Append(EntrySent, dest, plaintext)
}

// Broadcast sends plaintext to every discovered peer and returns how many
// sends were attempted.
func (n *Node) Broadcast(plaintext string) int {
	if plaintext == "" {
		return 0
	}
	peers := n.State.Peers()
	if len(peers) == 0 {
		n.State.Append(EntrySystem, "", "No peers discovered yet; message not sent")
		return 0
	}
	for _, peer := range peers {
		n.channel.Send(plaintext, peer)
	}
	n.State.Append(EntrySent, "all", plaintext)
	return len(peers)
}

// AddPeer inserts a user-supplied address into the peer set.
func (n *Node) AddPeer(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}
	addr = normalizeDestination(addr, n.cfg.Chat.Port)
	if !n.State.AddPeer(addr) {
		return false
	}
	n.Metrics.Peers.Set(float64(n.State.PeerCount()))
	n.State.Append(EntryDiscovery, addr, "peer added: "+addr)
	return true
}

// ToggleDiscovery pauses or resumes announcing and probe handling.
func (n *Node) ToggleDiscovery() bool {
	if n.discovery == nil {
		n.State.Append(EntrySystem, "", "Discovery is disabled by configuration")
		return false
	}
	active := n.State.ToggleDiscovery()
	if active {
		n.State.Append(EntrySystem, "", "Discovery resumed")
	} else {
		n.State.Append(EntrySystem, "", "Discovery paused")
	}
	n.logger.Info("Discovery toggled", "active", active)
	return active
}

// ChatAddr returns the bound chat address.
func (n *Node) ChatAddr() string {
	return n.channel.LocalAddr().String()
}

// CipherSuite returns the configured suite name.
func (n *Node) CipherSuite() string {
	return n.cipher.Suite()
}
