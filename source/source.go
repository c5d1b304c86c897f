// Package source provides the Rust files shown and run by rustplay.
//
// Files are addressed by logical name: "hello.rs" lives under src/, and
// names starting with "tests/" live under tests/.
package source

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidPath = errors.New("invalid path")
)

// DefaultFiles is listed when the source directory does not exist.
var DefaultFiles = []string{"hello.rs", "calculator.rs"}

const (
	srcDir    = "src"
	testsDir  = "tests"
	firstFile = "hello.rs"
)

// Provider lists and reads Rust files.
type Provider interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) (string, error)
}

//go:embed samples
var samples embed.FS

// FSProvider serves files from a filesystem laid out as src/ and tests/.
type FSProvider struct {
	fsys fs.FS
}

// NewFSProvider returns a provider over fsys.
func NewFSProvider(fsys fs.FS) *FSProvider {
	return &FSProvider{fsys: fsys}
}

// NewDirProvider returns a provider rooted at dir on the host.
func NewDirProvider(dir string) *FSProvider {
	return NewFSProvider(os.DirFS(dir))
}

// Embedded returns a provider over the sample programs built into the
// binary.
func Embedded() *FSProvider {
	sub, err := fs.Sub(samples, "samples")
	if err != nil {
		panic(err)
	}
	return NewFSProvider(sub)
}

// Resolve maps a logical name to its path inside the provider's
// filesystem. Every segment must be non-empty and free of "..", and the
// last one must be a .rs file.
func Resolve(name string) (string, error) {
	segments := strings.Split(strings.TrimPrefix(name, "/"), "/")
	for _, seg := range segments {
		if seg == "" || strings.Contains(seg, "..") {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
		}
	}
	if !strings.HasSuffix(segments[len(segments)-1], ".rs") {
		return "", fmt.Errorf("%w: %q is not a Rust file", ErrInvalidPath, name)
	}

	p := path.Join(segments...)
	if segments[0] != testsDir {
		p = path.Join(srcDir, p)
	}
	if !fs.ValidPath(p) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return p, nil
}

// Read returns the content of a logical file.
func (p *FSProvider) Read(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	resolved, err := Resolve(name)
	if err != nil {
		return "", err
	}
	data, err := fs.ReadFile(p.fsys, resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(data), nil
}

// List returns the .rs files under src/, excluding mod.rs, with hello.rs
// first and the rest sorted.
func (p *FSProvider) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(p.fsys, srcDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return append([]string(nil), DefaultFiles...), nil
		}
		return nil, fmt.Errorf("list %s: %w", srcDir, err)
	}

	var files []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasSuffix(n, ".rs") || n == "mod.rs" {
			continue
		}
		files = append(files, n)
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i] == firstFile {
			return files[j] != firstFile
		}
		if files[j] == firstFile {
			return false
		}
		return files[i] < files[j]
	})
	return files, nil
}

// TestFileName returns the logical name of the tests for a source file:
// calculator.rs -> tests/test_calculator.rs.
func TestFileName(name string) string {
	base := strings.TrimSuffix(path.Base(name), ".rs")
	return path.Join(testsDir, "test_"+base+".rs")
}

// FileFor returns the file to load for name in source or test view.
func FileFor(name string, test bool) string {
	if test {
		return TestFileName(name)
	}
	return name
}
