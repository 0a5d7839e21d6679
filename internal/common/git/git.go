// Package git drives the version-control CLI with per-command timeouts.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

var ErrTimeout = errors.New("git: command timed out")

var credentialPattern = regexp.MustCompile(`://[^@/\s]+@`)

// Redact masks credentials embedded in remote URLs.
func Redact(s string) string {
	return credentialPattern.ReplaceAllString(s, "://***@")
}

// Runner executes one git invocation in dir and returns its combined output.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// CLI runs the git binary as a subprocess.
type CLI struct {
	Binary  string
	Timeout time.Duration
}

func NewCLI(binary string, timeout time.Duration) *CLI {
	if binary == "" {
		binary = "git"
	}
	return &CLI{Binary: binary, Timeout: timeout}
}

func (c *CLI) Run(ctx context.Context, dir string, args ...string) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Binary, args...)
	cmd.Dir = dir
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := strings.TrimSpace(out.String())
	if err != nil {
		command := Redact(strings.Join(args, " "))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return output, fmt.Errorf("%s %s after %s: %w", c.Binary, command, c.Timeout, ErrTimeout)
		}
		return output, fmt.Errorf("%s %s: %w: %s", c.Binary, command, err, Redact(output))
	}
	return output, nil
}

// Client wraps a Runner with the operations used to publish a working copy.
type Client struct {
	runner    Runner
	userName  string
	userEmail string
}

func NewClient(runner Runner, userName, userEmail string) *Client {
	return &Client{runner: runner, userName: userName, userEmail: userEmail}
}

// Clone clones remote into dir. dir must not exist or be empty.
func (c *Client) Clone(ctx context.Context, remote, dir string) error {
	_, err := c.runner.Run(ctx, "", "clone", "--quiet", remote, dir)
	return err
}

// CheckoutBranch switches to branch, creating it when the clone is empty.
func (c *Client) CheckoutBranch(ctx context.Context, dir, branch string) error {
	_, err := c.runner.Run(ctx, dir, "checkout", "-B", branch)
	return err
}

// ConfigureIdentity sets the committer identity for the working copy only.
func (c *Client) ConfigureIdentity(ctx context.Context, dir string) error {
	if _, err := c.runner.Run(ctx, dir, "config", "user.name", c.userName); err != nil {
		return err
	}
	_, err := c.runner.Run(ctx, dir, "config", "user.email", c.userEmail)
	return err
}

func (c *Client) AddAll(ctx context.Context, dir string) error {
	_, err := c.runner.Run(ctx, dir, "add", "-A")
	return err
}

// Commit records a commit even when the tree is unchanged, so every round
// yields its own commit identifier.
func (c *Client) Commit(ctx context.Context, dir, message string) error {
	_, err := c.runner.Run(ctx, dir, "commit", "--quiet", "--allow-empty", "-m", message)
	return err
}

func (c *Client) Push(ctx context.Context, dir, branch string) error {
	_, err := c.runner.Run(ctx, dir, "push", "--quiet", "origin", "HEAD:refs/heads/"+branch)
	return err
}

// HeadSHA returns the full commit hash of HEAD.
func (c *Client) HeadSHA(ctx context.Context, dir string) (string, error) {
	out, err := c.runner.Run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	sha := strings.TrimSpace(out)
	if sha == "" {
		return "", fmt.Errorf("git rev-parse HEAD returned no output")
	}
	return sha, nil
}
