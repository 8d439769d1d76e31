package main

import (
	"fmt"
	"strings"
)

const helpText = `Commands:
  <text>              send to the selected peer, or to every discovered peer
  /to <addr>          select a peer as the target for plain text
  /all                clear the target and broadcast again
  /msg <addr> <text>  send one message to a specific address
  /add <addr>         add a peer by hand
  /peers              list discovered peers
  /discovery          pause or resume discovery
  /help               show this help
  /quit               exit`

// Console interprets one line of user input on behalf of a front end. It
// keeps the currently selected target between calls.
type Console struct {
	node   *Node
	target string
}

// NewConsole creates a Console with no target selected.
func NewConsole(node *Node) *Console {
	return &Console{node: node}
}

// Target returns the selected destination, or "" when broadcasting.
func (c *Console) Target() string {
	return c.target
}

// Handle runs input and returns any reply lines for the front end to show.
func (c *Console) Handle(input string) (reply []string, quit bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, false
	}
	if !strings.HasPrefix(input, "/") {
		if c.target != "" {
			c.node.Submit(input, c.target)
			return nil, false
		}
		c.node.Broadcast(input)
		return nil, false
	}

	cmd, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/quit", "/exit":
		return nil, true

	case "/to":
		if rest == "" {
			return []string{"Usage: /to <addr>"}, false
		}
		c.target = normalizeDestination(rest, c.node.cfg.Chat.Port)
		return []string{"Sending to " + c.target}, false

	case "/all":
		c.target = ""
		return []string{"Sending to all discovered peers"}, false

	case "/msg":
		addr, text, ok := strings.Cut(rest, " ")
		text = strings.TrimSpace(text)
		if !ok || addr == "" || text == "" {
			return []string{"Usage: /msg <addr> <text>"}, false
		}
		c.node.Submit(text, addr)
		return nil, false

	case "/add":
		if rest == "" {
			return []string{"Usage: /add <addr>"}, false
		}
		if !c.node.AddPeer(rest) {
			return []string{"Peer already known: " + rest}, false
		}
		return nil, false

	case "/peers":
		peers := c.node.State.Peers()
		if len(peers) == 0 {
			return []string{"No peers discovered"}, false
		}
		lines := []string{fmt.Sprintf("Discovered peers (%d):", len(peers))}
		for _, peer := range peers {
			lines = append(lines, "  - "+peer)
		}
		return lines, false

	case "/discovery":
		c.node.ToggleDiscovery()
		return nil, false

	case "/help":
		return strings.Split(helpText, "\n"), false

	default:
		return []string{fmt.Sprintf("Unknown command %s, try /help", cmd)}, false
	}
}
