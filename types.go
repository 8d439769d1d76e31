package main

import (
	"time"
)

const (
	defaultChatPort      = 8080
	defaultDiscoveryPort = 8081
	defaultBroadcast     = "255.255.255.255"
	defaultProbe         = "DISCOVERY_PING"
	announceInterval     = 5 * time.Second
	discoveryReadTimeout = 1 * time.Second
	chatPollInterval     = 1 * time.Second

	// Large enough for any UDP payload.
	maxDatagramSize = 64 * 1024
	// Raw bytes kept from a malformed datagram for display.
	maxNoticeBytes = 256
)

// EntryKind tags a HistoryEntry.
type EntryKind int

const (
	EntryMessage EntryKind = iota
	EntryDecryptFailed
	EntryMalformed
	EntryShort
	EntrySent
	EntryDiscovery
	EntrySystem
)

func (k EntryKind) String() string {
	switch k {
	case EntryMessage:
		return "message"
	case EntryDecryptFailed:
		return "decrypt-failed"
	case EntryMalformed:
		return "malformed"
	case EntryShort:
		return "short"
	case EntrySent:
		return "sent"
	case EntryDiscovery:
		return "discovery"
	case EntrySystem:
		return "system"
	default:
		return "unknown"
	}
}

// HistoryEntry is one line of the session log. Entries are append-only.
type HistoryEntry struct {
	ID   string
	Kind EntryKind
	Peer string // sender for incoming entries, destination for EntrySent
	Text string
	At   time.Time
}

// Incoming reports whether the entry describes a received datagram.
func (e HistoryEntry) Incoming() bool {
	switch e.Kind {
	case EntryMessage, EntryDecryptFailed, EntryMalformed, EntryShort:
		return true
	}
	return false
}
