package compiler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/circleci/testservers/o11y"
)

type Compiler struct {
	dir string

	group singleflight.Group
	mu    sync.Mutex
	built map[string]string
}

func New() *Compiler {
	tempDir, err := os.MkdirTemp("", "testservers")
	if err != nil {
		panic(err)
	}

	return &Compiler{
		dir:   tempDir,
		built: map[string]string{},
	}
}

// Dir is where binaries are written.
func (c *Compiler) Dir() string {
	return c.dir
}

func (c *Compiler) Cleanup() {
	_ = os.RemoveAll(c.dir)
}

// Compile a binary for testing. target is the directory the go tool runs in, and
// source is the path to the main package.
func (c *Compiler) Compile(ctx context.Context, name, target, source string) (path string, err error) {
	ctx, span := o11y.StartSpan(ctx, "compiler: compile")
	defer o11y.End(span, &err)
	span.AddField("name", name)
	span.AddField("source", source)

	key := strings.Join([]string{name, target, source}, "\x00")

	c.mu.Lock()
	path, ok := c.built[key]
	c.mu.Unlock()
	if ok {
		span.AddField("cached", true)
		return path, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		path, err := c.build(ctx, key, name, target, source)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.built[key] = path
		c.mu.Unlock()
		return path, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Compiler) build(ctx context.Context, key, name, target, source string) (string, error) {
	cwd, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}

	path := binaryPath(key, name, c.dir)
	err = os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return "", err
	}
	stderr := &bytes.Buffer{}
	// #nosec - this is fine
	cmd := exec.CommandContext(ctx, goPath(), "build",
		"-o", path,
		source,
	)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	cmd.Stdout = os.Stdout
	cmd.Stderr = io.MultiWriter(stderr, os.Stderr)

	err = cmd.Run()
	if err != nil {
		return "", fmt.Errorf("go build %s: %w: %s", source, err, strings.TrimSpace(stderr.String()))
	}
	return path, nil
}

func goPath() string {
	goroot := os.Getenv("GOROOT")
	if goroot == "" {
		return "go"
	}
	return filepath.Join(goroot, "bin", "go")
}

// binaryPath keeps the binary name, in a directory unique to the build inputs, so the
// same name built from different sources does not share a file.
func binaryPath(key, name, tempDir string) string {
	sum := sha256.Sum256([]byte(key))
	path := filepath.Join(tempDir, hex.EncodeToString(sum[:4]), name)
	if runtime.GOOS == "windows" {
		return path + ".exe"
	}
	return path
}
