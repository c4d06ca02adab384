package gitstate

import (
	"context"
	"os/exec"
)

// runPreconditions evaluates the onlyif/unless gates. It returns skip=true
// with the comment to report when the run should be skipped: onlyif must
// exit zero and unless must exit non-zero for convergence to proceed. A
// skipped run is a success with no changes.
func runPreconditions(ctx context.Context, onlyif, unless string) (bool, string) {
	if onlyif != "" {
		if err := runShell(ctx, onlyif); err != nil {
			return true, "onlyif execution failed"
		}
	}
	if unless != "" {
		if err := runShell(ctx, unless); err == nil {
			return true, "unless execution succeeded"
		}
	}
	return false, ""
}

func runShell(ctx context.Context, command string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	return cmd.Run()
}
