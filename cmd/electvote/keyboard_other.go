//go:build !linux && !darwin && !windows

package main

import "context"

func listenForKeyboard(ctx context.Context, c *console) {}
