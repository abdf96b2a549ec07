//go:build !windows

package cmd

import (
	"context"
	"os/exec"
)

func createBaseCommand(c *Command, ctx context.Context) *exec.Cmd {
	if c.useShell {
		args := append([]string{"-c", c.Path}, c.Args...)
		return exec.CommandContext(ctx, "/bin/sh", args...)
	}
	return exec.CommandContext(ctx, c.Path, c.Args...)
}
