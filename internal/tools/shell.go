package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// allowedCommands is the leading-token allow-list for the exploration
// sandbox's bash tool. Pipelines are permitted; only the first token is
// checked. Containment comes from the workspace cwd and the hard timeout.
var allowedCommands = map[string]bool{
	"ls": true, "cat": true, "grep": true, "jq": true, "awk": true,
	"sort": true, "uniq": true, "head": true, "tail": true, "wc": true,
	"cut": true, "tr": true, "echo": true, "expr": true, "bc": true,
}

func (e *Executor) bash(ctx context.Context, command string) string {
	if strings.TrimSpace(command) == "" {
		return "error: bash requires a command"
	}
	fields := strings.Fields(command)
	if !allowedCommands[fields[0]] {
		return fmt.Sprintf("error: command %q is not allowed; allowed commands: %s", fields[0], allowedList())
	}

	timeout := time.Duration(e.Limits.BashTimeoutS) * time.Second
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, "sh", "-c", command)
	cmd.Dir = e.WorkspaceDir
	out, err := cmd.CombinedOutput()

	e.Trace.Commands = append(e.Trace.Commands, command)

	if errors.Is(cmdCtx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("error: command timed out after %s", timeout)
	}
	if err != nil {
		return fmt.Sprintf("error: command failed (%v)\n%s", err, out)
	}
	if len(out) == 0 {
		return "(no output)"
	}
	return string(out)
}

func allowedList() string {
	return "ls, cat, grep, jq, awk, sort, uniq, head, tail, wc, cut, tr, echo, expr, bc"
}
