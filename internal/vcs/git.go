package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/starbak/starbak/internal/util"
)

// Git snapshots repositories by shelling out to the git binary.
type Git struct{}

func NewGit() *Git {
	return &Git{}
}

// Mirror produces a complete bare mirror of the repository at dest: all
// refs, no working tree. Unreachable or private-without-access
// repositories fail with the transport error from git.
func (g *Git) Mirror(ctx context.Context, cloneURL, dest string) error {
	if err := util.RequireBinary("git"); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, "git", "clone", "--mirror", cloneURL, dest)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// Never prompt for credentials; a private repo should fail, not hang.
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git clone --mirror %s: %w: %s", cloneURL, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}
