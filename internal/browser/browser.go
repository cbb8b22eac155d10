// Package browser opens election pages in the host's default web browser.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Starter launches a process without waiting for it
type Starter interface {
	Start(name string, args ...string) error
}

// ExecStarter starts real processes
type ExecStarter struct{}

func (ExecStarter) Start(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// launchers maps GOOS to the command that hands a URL to the desktop
var launchers = map[string][]string{
	"linux":   {"xdg-open"},
	"freebsd": {"xdg-open"},
	"openbsd": {"xdg-open"},
	"darwin":  {"open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

// Opener opens http(s) URLs through a platform launcher
type Opener struct {
	Starter Starter
	GOOS    string
}

// New returns an Opener for the running platform
func New() *Opener {
	return &Opener{Starter: ExecStarter{}, GOOS: runtime.GOOS}
}

// Open validates rawURL and hands it to the platform launcher
func (o *Opener) Open(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("refusing to open %q: only absolute http(s) URLs are allowed", rawURL)
	}

	launcher, ok := launchers[o.GOOS]
	if !ok {
		return fmt.Errorf("unsupported platform: %s", o.GOOS)
	}
	args := append(append([]string{}, launcher[1:]...), u.String())
	return o.Starter.Start(launcher[0], args...)
}

// Open opens rawURL in the default browser of this machine
func Open(rawURL string) error {
	return New().Open(rawURL)
}
