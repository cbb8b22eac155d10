//go:build windows

package main

import (
	"context"
	"os"

	"golang.org/x/term"
)

// listenForKeyboard reads single key presses from the console
func listenForKeyboard(ctx context.Context, c *console) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return
	}
	go func() {
		<-ctx.Done()
		term.Restore(fd, state)
	}()
	c.readKeys(ctx, os.Stdin)
}
