//go:build linux || darwin

package main

import (
	"context"
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// listenForKeyboard switches stdin to unbuffered, no-echo input and
// dispatches single key presses. Output processing stays on so log lines
// keep their line endings.
func listenForKeyboard(ctx context.Context, c *console) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return
	}

	old, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return
	}
	cbreak := *old
	cbreak.Lflag &^= unix.ICANON | unix.ECHO
	cbreak.Cc[unix.VMIN] = 1
	cbreak.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &cbreak); err != nil {
		return
	}

	go func() {
		<-ctx.Done()
		unix.IoctlSetTermios(fd, ioctlSetTermios, old)
	}()
	c.readKeys(ctx, os.Stdin)
}
