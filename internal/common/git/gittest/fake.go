// Package gittest provides an in-memory git.Runner for tests.
package gittest

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FakeRunner simulates clone/commit/push against in-memory remotes.
// Clone materializes the remote's files, push snapshots the working copy back.
type FakeRunner struct {
	mu      sync.Mutex
	remotes map[string]map[string][]byte
	origins map[string]string // working dir -> remote key
	commits []string
	pushes  int
	calls   [][]string

	// FailOn makes the named subcommand ("push", "clone", ...) fail.
	FailOn map[string]error
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		remotes: make(map[string]map[string][]byte),
		origins: make(map[string]string),
		FailOn:  make(map[string]error),
	}
}

// RemoteKey strips credentials so authenticated and plain URLs match.
func RemoteKey(remote string) string {
	u, err := url.Parse(remote)
	if err != nil {
		return remote
	}
	u.User = nil
	return u.String()
}

// Seed sets the files of a remote before a clone.
func (f *FakeRunner) Seed(remote string, files map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snapshot := make(map[string][]byte, len(files))
	for name, content := range files {
		snapshot[name] = []byte(content)
	}
	f.remotes[RemoteKey(remote)] = snapshot
}

// Files returns the pushed content of a remote.
func (f *FakeRunner) Files(remote string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for name, data := range f.remotes[RemoteKey(remote)] {
		out[name] = string(data)
	}
	return out
}

func (f *FakeRunner) Commits() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commits...)
}

func (f *FakeRunner) Pushes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pushes
}

// Calls returns every invocation's arguments in order.
func (f *FakeRunner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

func (f *FakeRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, args)
	if len(args) == 0 {
		return "", fmt.Errorf("no git subcommand")
	}
	if err, ok := f.FailOn[args[0]]; ok {
		return "", err
	}

	switch args[0] {
	case "clone":
		remote, target := args[len(args)-2], args[len(args)-1]
		key := RemoteKey(remote)
		if err := os.MkdirAll(filepath.Join(target, ".git"), 0o755); err != nil {
			return "", err
		}
		for name, data := range f.remotes[key] {
			path := filepath.Join(target, name)
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return "", err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return "", err
			}
		}
		f.origins[target] = key
		return "", nil
	case "commit":
		for i, a := range args {
			if a == "-m" && i+1 < len(args) {
				f.commits = append(f.commits, args[i+1])
			}
		}
		return "", nil
	case "push":
		key, ok := f.origins[dir]
		if !ok {
			return "", fmt.Errorf("push from %s: not a clone", dir)
		}
		snapshot := make(map[string][]byte)
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			snapshot[filepath.ToSlash(rel)] = data
			return nil
		})
		if err != nil {
			return "", err
		}
		f.remotes[key] = snapshot
		f.pushes++
		return "", nil
	case "rev-parse":
		return fmt.Sprintf("%040x\n", len(f.commits)), nil
	default:
		// checkout, config, add
		if strings.HasPrefix(args[0], "-") {
			return "", fmt.Errorf("unexpected flag %s", args[0])
		}
		return "", nil
	}
}
