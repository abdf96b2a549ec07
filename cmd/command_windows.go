package cmd

import (
	"context"
	"os/exec"
)

func createBaseCommand(c *Command, ctx context.Context) *exec.Cmd {
	if c.useShell {
		args := append([]string{"/C", c.Path}, c.Args...)
		return exec.CommandContext(ctx, `C:\windows\system32\cmd.exe`, args...)
	}
	return exec.CommandContext(ctx, c.Path, c.Args...)
}
