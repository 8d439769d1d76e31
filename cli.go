package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
)

// runCLI is the line-oriented front end. A printer goroutine polls the
// history and writes new entries above the prompt.
func runCLI(ctx context.Context, node *Node) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
	if err != nil {
		return fmt.Errorf("failed to start console: %w", err)
	}
	closeConsole := sync.OnceFunc(func() { rl.Close() })
	defer closeConsole()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		printHistory(ctx, node.State, rl.Stdout(), refreshInterval)
	}()
	go func() {
		<-ctx.Done()
		closeConsole()
	}()

	console := NewConsole(node)
	fmt.Fprintln(rl.Stdout(), "Type /help for commands, /quit to exit")

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) && line != "" {
				continue
			}
			break
		}

		reply, quit := console.Handle(line)
		for _, l := range reply {
			fmt.Fprintln(rl.Stdout(), l)
		}
		if quit {
			break
		}
		if t := console.Target(); t != "" {
			rl.SetPrompt(fmt.Sprintf("[%s]> ", t))
		} else {
			rl.SetPrompt("> ")
		}
	}

	cancel()
	<-printed
	return nil
}

// printHistory writes every entry appended to state until ctx is done.
func printHistory(ctx context.Context, state *State, w io.Writer, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	seen := 0
	for {
		for _, e := range state.HistorySince(seen) {
			fmt.Fprintln(w, formatEntry(e))
			seen++
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// formatEntry renders an entry as one plain-text line.
func formatEntry(e HistoryEntry) string {
	ts := e.At.Format("15:04:05")
	text := strings.ReplaceAll(e.Text, "\n", " ")

	switch e.Kind {
	case EntryMessage:
		return fmt.Sprintf("%s [%s] %s", ts, e.Peer, text)
	case EntrySent:
		return fmt.Sprintf("%s [You → %s] %s", ts, e.Peer, text)
	case EntryMalformed:
		return fmt.Sprintf("%s ! unrecognized data from %s: %s", ts, e.Peer, text)
	case EntryShort, EntryDecryptFailed:
		return fmt.Sprintf("%s ! %s: %s", ts, e.Peer, text)
	default:
		return fmt.Sprintf("%s * %s", ts, text)
	}
}
