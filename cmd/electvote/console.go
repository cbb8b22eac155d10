package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"unicode"

	"github.com/electvote/electvote/internal/logger"
)

// console runs the keyboard shortcuts against the live server
type console struct {
	log    logger.Logger
	open   func(url string) error
	target func(ctx context.Context) string
	quit   func()
	out    io.Writer
}

func (c *console) printf(format string, args ...any) {
	out := c.out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, format, args...)
}

// handleKey performs the shortcut bound to key
func (c *console) handleKey(ctx context.Context, key byte) {
	switch unicode.ToLower(rune(key)) {
	case 'a':
		url := c.target(ctx)
		c.printf("%sOpening %s in browser...%s\n", cyan, url, reset)
		if err := c.open(url); err != nil {
			c.printf("%sError opening browser: %v%s\n", red, err, reset)
		}
	case 'h':
		if c.log.IsHTTPLoggingEnabled() {
			c.log.DisableHTTPLogging()
			c.printf("%sHTTP logging disabled%s\n", yellow, reset)
		} else {
			c.log.EnableHTTPLogging()
			c.printf("%sHTTP logging enabled%s\n", green, reset)
		}
	case 'l':
		next := nextLevel(c.log.GetLevel().String())
		c.log.SetLevel(logger.ParseLevel(next))
		c.printf("%sLog level: %s%s%s\n", green, yellow, next, reset)
	case 'q', '\x03':
		c.printf("%sShutting down server...%s\n", yellow, reset)
		c.quit()
	case '?':
		printKeyboardHelp()
	}
}

// readKeys feeds bytes from r to handleKey until ctx is done or r fails
func (c *console) readKeys(ctx context.Context, r io.Reader) {
	buf := make([]byte, 1)
	for ctx.Err() == nil {
		n, err := r.Read(buf)
		if err != nil {
			return
		}
		if n == 1 {
			c.handleKey(ctx, buf[0])
		}
	}
}

// nextLevel cycles debug -> info -> warn -> error -> debug
func nextLevel(current string) string {
	switch current {
	case "DEBUG":
		return "info"
	case "INFO":
		return "warn"
	case "WARN":
		return "error"
	case "ERROR":
		return "debug"
	}
	return "info"
}

func printKeyboardHelp() {
	fmt.Printf("%s%s  Keyboard shortcuts:%s\n", bold, green, reset)
	fmt.Printf("    %sa%s      - Open the current election in a browser\n", cyan, reset)
	fmt.Printf("    %sh%s      - Toggle HTTP request logging\n", cyan, reset)
	fmt.Printf("    %sl%s      - Cycle log level (debug → info → warn → error)\n", cyan, reset)
	fmt.Printf("    %sq%s      - Quit server\n", cyan, reset)
	fmt.Printf("    %s?%s      - Show this help\n\n", cyan, reset)
}
