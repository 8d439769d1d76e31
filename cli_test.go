package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFormatEntry(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 5, 7, 0, time.Local)

	tests := []struct {
		entry HistoryEntry
		want  string
	}{
		{HistoryEntry{Kind: EntryMessage, Peer: "10.0.0.2:8080", Text: "hi\nthere", At: at}, "09:05:07 [10.0.0.2:8080] hi there"},
		{HistoryEntry{Kind: EntrySent, Peer: "all", Text: "hello", At: at}, "09:05:07 [You → all] hello"},
		{HistoryEntry{Kind: EntryMalformed, Peer: "10.0.0.3:9", Text: "junk", At: at}, "09:05:07 ! unrecognized data from 10.0.0.3:9: junk"},
		{HistoryEntry{Kind: EntryDecryptFailed, Peer: "10.0.0.4:8080", Text: "decryption failed", At: at}, "09:05:07 ! 10.0.0.4:8080: decryption failed"},
		{HistoryEntry{Kind: EntryDiscovery, Peer: "10.0.0.5:8080", Text: "new user discovered: 10.0.0.5:8080", At: at}, "09:05:07 * new user discovered: 10.0.0.5:8080"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatEntry(tt.entry), tt.entry.Kind.String())
	}
}

func TestPrintHistory(t *testing.T) {
	state := NewState()
	state.Append(EntrySystem, "", "first")

	var out syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		printHistory(ctx, state, &out, 10*time.Millisecond)
	}()

	state.Append(EntryMessage, "10.0.0.2:8080", "second")
	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "\n") == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "* first")
	assert.Contains(t, lines[1], "[10.0.0.2:8080] second")
}
