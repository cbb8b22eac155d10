package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/electvote/electvote/internal/app"
	"github.com/electvote/electvote/internal/browser"
	"github.com/electvote/electvote/internal/clock"
	"github.com/electvote/electvote/internal/config"
	"github.com/electvote/electvote/internal/logger"
)

// ANSI escape codes
const (
	reset  = "\033[0m"
	yellow = "\033[33m"
	red    = "\033[31m"
	green  = "\033[32m"
	cyan   = "\033[36m"
	bold   = "\033[1m"
)

var version = "dev"

const usageFooter = `
Configuration is read from (later wins): defaults, the -config YAML file
(or ELECTVOTE_CONFIG), a .env file, ELECTVOTE_* environment variables, flags.

Keyboard Shortcuts (when enabled):
  a              Open the current election in a browser
  h              Toggle HTTP request logging
  l              Cycle log level (debug → info → warn → error)
  q              Quit server
  ?              Show keyboard help

Examples:
  electvote                                      # sqlite electvote.db on :8081
  electvote -db-driver postgres -db postgres://vote@db/electvote
  electvote -redis redis://localhost:6379/0      # publish notifications
  electvote -config /etc/electvote.yaml -nokeyboard
`

func printBanner() {
	logo := []string{
		"  _____ _           _   __     __    _       ",
		" | ____| | ___  ___| |_ \\ \\   / /__ | |_ ___ ",
		" |  _| | |/ _ \\/ __| __| \\ \\ / / _ \\| __/ _ \\",
		" | |___| |  __/ (__| |_   \\ V / (_) | ||  __/",
		" |_____|_|\\___|\\___|\\__|   \\_/ \\___/ \\__\\___|",
	}
	width := len(logo[0]) + 4
	border := strings.Repeat("═", width)

	fmt.Printf("\n  %s╔%s╗%s\n", cyan, border, reset)
	for _, line := range logo {
		fmt.Printf("  %s║%s  %-*s  %s║%s\n", cyan, yellow, width-4, line, cyan, reset)
	}
	fmt.Printf("  %s╚%s╝%s\n\n", cyan, border, reset)
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		fmt.Fprint(os.Stderr, usageFooter)
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "electvote: %v\n", err)
		return 2
	}
	if cfg.ShowVersion {
		fmt.Printf("electvote %s\n", version)
		return 0
	}

	printBanner()

	appLog := logger.NewWithOptions(logger.Options{
		Level:       logger.ParseLevel(cfg.Log.Level),
		Format:      logger.ParseFormat(cfg.Log.Format),
		HTTPLogging: cfg.Log.HTTP,
	})
	appLog.Debug("Configuration loaded", "config", cfg.String())

	a, err := app.New(appLog, cfg, clock.System{})
	if err != nil {
		appLog.Error("Failed to initialize application", "error", err)
		return 1
	}
	if pw := a.AdminPassword(); pw != "" {
		appLog.Info("Admin account created", "username", cfg.Admin.Username, "password", pw)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.Run()
	}()

	if cfg.Keyboard {
		printKeyboardHelp()
		c := &console{log: appLog, open: browser.Open, target: a.CurrentElectionURL, quit: stop}
		go listenForKeyboard(ctx, c)
	} else {
		fmt.Printf("%sKeyboard shortcuts disabled%s\n\n", yellow, reset)
	}

	code := 0
	select {
	case err := <-serverErr:
		if err != nil {
			appLog.Error("Server failed", "error", err)
			code = 1
		}
	case <-ctx.Done():
		appLog.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		appLog.Warn("Shutdown incomplete", "error", err)
	}
	return code
}
