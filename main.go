package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/awnumar/memguard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
)

func main() {
	cfg, genKey, err := loadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "lanchat: %v\n", err)
		os.Exit(2)
	}

	if genKey {
		key, err := GenerateKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "lanchat: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(key)
		return
	}

	logger, logFile, err := newLogger(cfg.Log.Level, cfg.LogPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "lanchat: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger, os.Stdout)
	stop()

	if err != nil {
		logger.Error("Exiting", "err", err)
	}
	memguard.Purge()
	logFile.Close()
	if err != nil {
		os.Exit(1)
	}
}

// run starts the node, drives the selected front end until it quits or ctx
// is cancelled, and shuts the node down. Startup failures are returned.
// Headless mode prints history to out.
func run(ctx context.Context, cfg *Config, logger *log.Logger, out io.Writer) error {
	enclave, err := cfg.LoadKey()
	if err != nil {
		return fmt.Errorf("failed to load key: %w", err)
	}
	cipher, err := NewCipherFromEnclave(enclave, cfg.Cipher)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}

	node, err := NewNode(ctx, cfg, cipher, logger)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}
	logger.Info("Starting", "config", cfg)

	if cfg.Bell {
		NewBell(logger).Attach(node.State)
	}
	node.Start(ctx)

	switch cfg.UI {
	case uiTUI:
		p := tea.NewProgram(NewUI(node), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && ctx.Err() == nil {
			logger.Error("Error running TUI", "err", err)
		}
	case uiCLI:
		if err := runCLI(ctx, node); err != nil {
			logger.Error("Error running console", "err", err)
		}
	default:
		fmt.Fprintf(out, "lanchat listening on %s, Ctrl+C to stop\n", node.ChatAddr())
		printed := make(chan struct{})
		go func() {
			defer close(printed)
			printHistory(ctx, node.State, out, refreshInterval)
		}()
		<-ctx.Done()
		<-printed
	}

	if err := node.Close(); err != nil {
		logger.Error("Shutdown error", "err", err)
	}
	return nil
}
