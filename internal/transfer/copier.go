package transfer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"cardsync/internal/config"
	"cardsync/internal/fileutil"
)

// Copier copies one file and reports the bytes written.
type Copier interface {
	Copy(ctx context.Context, src, dst string) (int64, error)
}

// Executor abstracts command execution for the cp copier.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// NewCopier returns the copier selected by copy.method.
func NewCopier(cfg *config.Config) Copier {
	switch cfg.Copy.Method {
	case config.CopyMethodNative:
		return nativeCopier{}
	case config.CopyMethodVerified:
		return nativeCopier{verify: true}
	default:
		return &commandCopier{binary: cfg.Copy.CPBinary, exec: commandExecutor{}}
	}
}

// commandCopier runs the system cp. Paths go in argv, never through a shell,
// so quotes and spaces in file names need no escaping.
type commandCopier struct {
	binary string
	exec   Executor
}

func (c *commandCopier) Copy(ctx context.Context, src, dst string) (int64, error) {
	out, err := c.exec.Run(ctx, c.binary, []string{src, dst})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return 0, fmt.Errorf("%s: %w: %s", c.binary, err, msg)
		}
		return 0, fmt.Errorf("%s: %w", c.binary, err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		return 0, fmt.Errorf("stat copied file: %w", err)
	}
	return info.Size(), nil
}

type nativeCopier struct {
	verify bool
}

func (c nativeCopier) Copy(ctx context.Context, src, dst string) (int64, error) {
	if c.verify {
		return fileutil.CopyFileVerified(ctx, src, dst)
	}
	return fileutil.CopyFile(ctx, src, dst)
}
