package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	refreshInterval = 250 * time.Millisecond
	peerPanelWidth  = 30
	maxPeerRows     = 15
)

// Styles for the TUI
var (
	primaryColor    = lipgloss.Color("#7C3AED") // Purple
	accentColor     = lipgloss.Color("#10B981") // Green
	warningColor    = lipgloss.Color("#F59E0B") // Amber
	errorColor      = lipgloss.Color("#EF4444") // Red
	mutedColor      = lipgloss.Color("#6B7280") // Gray
	backgroundColor = lipgloss.Color("#1F2937") // Dark gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Background(backgroundColor).
			Padding(0, 1)

	inputStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)

	systemMessageStyle = lipgloss.NewStyle().
				Foreground(accentColor).
				Italic(true)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(primaryColor).
				Bold(true)

	peerMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#3B82F6"))

	warningMessageStyle = lipgloss.NewStyle().
				Foreground(warningColor)

	errorMessageStyle = lipgloss.NewStyle().
				Foreground(errorColor)

	timestampStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Faint(true)

	peerDotStyle = lipgloss.NewStyle().
			Foreground(accentColor)
)

// UI is the bubbletea model. It owns no network state: every tick it copies
// the history and peer set out of the node's State.
type UI struct {
	node     *Node
	console  *Console
	history  []HistoryEntry
	peers    []string
	overlay  []string
	flash    string
	viewport viewport.Model
	textarea textarea.Model
	ready    bool
	width    int
	height   int
	lastTick time.Time
}

// tickMsg triggers a refresh from State.
type tickMsg time.Time

func NewUI(node *Node) *UI {
	ta := textarea.New()
	ta.Placeholder = "Type a message or /help for commands..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 1000
	ta.SetWidth(80)
	ta.SetHeight(1)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(80, 20)
	vp.SetContent("")

	return &UI{
		node:     node,
		console:  NewConsole(node),
		viewport: vp,
		textarea: ta,
		lastTick: time.Now(),
	}
}

// Init starts the cursor blink and the refresh tick.
func (ui *UI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, ui.tickCmd())
}

// tickCmd schedules the next refresh.
func (ui *UI) tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles key presses, resizes and refresh ticks.
func (ui *UI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	ui.textarea, tiCmd = ui.textarea.Update(msg)
	ui.viewport, vpCmd = ui.viewport.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return ui, tea.Quit

		case tea.KeyEsc:
			if ui.overlay != nil {
				ui.overlay = nil
				ui.updateViewport()
				return ui, nil
			}
			return ui, tea.Quit

		case tea.KeyCtrlD:
			ui.node.ToggleDiscovery()
			return ui, nil

		case tea.KeyEnter:
			input := ui.textarea.Value()
			ui.textarea.Reset()

			reply, quit := ui.console.Handle(input)
			if quit {
				return ui, tea.Quit
			}
			ui.showReply(reply)
			ui.refresh()
			return ui, nil
		}

	case tea.WindowSizeMsg:
		ui.width = msg.Width
		ui.height = msg.Height
		ui.ready = true

		headerHeight := 3
		footerHeight := 5
		statusBarHeight := 1
		ui.viewport.Width = max(ui.width-peerPanelWidth-5, 10)
		ui.viewport.Height = max(ui.height-headerHeight-footerHeight-statusBarHeight-2, 3)
		ui.textarea.SetWidth(max(ui.width-6, 10))

		ui.updateViewport()

	case tickMsg:
		ui.lastTick = time.Time(msg)
		ui.refresh()
		return ui, ui.tickCmd()
	}

	return ui, tea.Batch(tiCmd, vpCmd)
}

// showReply puts a single line in the status bar and anything longer in an
// overlay over the history.
func (ui *UI) showReply(reply []string) {
	switch len(reply) {
	case 0:
	case 1:
		ui.flash = reply[0]
	default:
		ui.overlay = reply
		ui.updateViewport()
	}
}

// refresh polls the shared state and redraws if anything changed.
func (ui *UI) refresh() {
	ui.peers = ui.node.State.Peers()

	if fresh := ui.node.State.HistorySince(len(ui.history)); len(fresh) > 0 {
		ui.history = append(ui.history, fresh...)
		ui.updateViewport()
		if ui.overlay == nil {
			ui.viewport.GotoBottom()
		}
	}
}

// updateViewport redraws the history, or the overlay when one is open.
func (ui *UI) updateViewport() {
	var content strings.Builder

	if ui.overlay != nil {
		for _, line := range ui.overlay {
			content.WriteString(line)
			content.WriteString("\n")
		}
		content.WriteString("\n")
		content.WriteString(timestampStyle.Render("(Esc to return)"))
	} else {
		for _, entry := range ui.history {
			content.WriteString(ui.renderEntry(entry))
			content.WriteString("\n")
		}
	}

	ui.viewport.SetContent(content.String())
}

// renderEntry formats one history entry.
func (ui *UI) renderEntry(e HistoryEntry) string {
	timestamp := timestampStyle.Render(e.At.Format("15:04:05"))

	switch e.Kind {
	case EntryMessage:
		sender := peerMessageStyle.Render(fmt.Sprintf("[%s]", e.Peer))
		return fmt.Sprintf("%s %s %s", timestamp, sender, e.Text)

	case EntrySent:
		sender := userMessageStyle.Render(fmt.Sprintf("[You → %s]", e.Peer))
		return fmt.Sprintf("%s %s %s", timestamp, sender, e.Text)

	case EntryMalformed:
		return fmt.Sprintf("%s %s", timestamp,
			warningMessageStyle.Render(fmt.Sprintf("unrecognized data from %s: %s", e.Peer, e.Text)))

	case EntryShort:
		return fmt.Sprintf("%s %s", timestamp,
			warningMessageStyle.Render(fmt.Sprintf("%s: %s", e.Peer, e.Text)))

	case EntryDecryptFailed:
		return fmt.Sprintf("%s %s", timestamp,
			errorMessageStyle.Render(fmt.Sprintf("%s: %s", e.Peer, e.Text)))

	default:
		return fmt.Sprintf("%s %s", timestamp, systemMessageStyle.Render(e.Text))
	}
}

// View renders the whole screen.
func (ui *UI) View() string {
	if !ui.ready {
		return "\n  Initializing LAN chat...\n"
	}

	header := headerStyle.Render("LAN Chat - Encrypted Local Messaging")

	messagePanel := panelStyle.Width(ui.viewport.Width + 2).Height(ui.viewport.Height + 1).Render(
		fmt.Sprintf("Messages\n%s", ui.viewport.View()))

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, messagePanel, ui.renderPeerPanel())

	inputArea := inputStyle.Width(max(ui.width-4, 10)).Render(
		fmt.Sprintf("Input (/help, Ctrl+D toggles discovery)\n%s", ui.textarea.View()))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		mainContent,
		ui.renderStatusBar(),
		inputArea,
	)
}

// renderPeerPanel lists peers, marking the selected target.
func (ui *UI) renderPeerPanel() string {
	var content strings.Builder

	content.WriteString("Discovered Peers\n")
	content.WriteString(strings.Repeat("─", peerPanelWidth-4) + "\n")

	if len(ui.peers) == 0 {
		content.WriteString(timestampStyle.Render("  Waiting for peers...") + "\n")
		content.WriteString(timestampStyle.Render("  /add <addr> to add one") + "\n")
	}
	for i, peer := range ui.peers {
		if i >= maxPeerRows {
			content.WriteString(fmt.Sprintf("  ... and %d more\n", len(ui.peers)-maxPeerRows))
			break
		}
		marker := "  "
		if peer == ui.console.Target() {
			marker = "> "
		}
		content.WriteString(fmt.Sprintf("%s%s %s\n", marker, peerDotStyle.Render("●"), peer))
	}

	return panelStyle.Width(peerPanelWidth).Height(ui.viewport.Height + 1).Render(content.String())
}

// renderStatusBar shows the chat address, target, peer count and discovery state.
func (ui *UI) renderStatusBar() string {
	discovery := "discovery on"
	if !ui.node.State.DiscoveryActive() {
		discovery = "discovery off"
	}
	target := ui.console.Target()
	if target == "" {
		target = "all"
	}

	left := fmt.Sprintf("Chat: %s → %s", ui.node.ChatAddr(), target)
	if ui.flash != "" {
		left += " | " + ui.flash
	}
	right := fmt.Sprintf("Peers: %d | %s | %s | %s",
		len(ui.peers), discovery, ui.node.CipherSuite(), ui.lastTick.Format("15:04:05"))

	spacing := max(ui.width-4-lipgloss.Width(left)-lipgloss.Width(right), 0)
	return statusBarStyle.Width(max(ui.width-4, 10)).Render(left + strings.Repeat(" ", spacing) + right)
}
