// Package snapshot materializes a read-only view of a target repository:
// the file listing plus contents that every analyzer runs against. A
// snapshot is loaded once per evaluation and never mutated, so concurrent
// analyses are safe without locking.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/steveyegge/jury/internal/types"
)

// Config holds snapshot loading options.
type Config struct {
	// MaxFileSize is the per-file content cap in bytes. Files larger than
	// this are listed with their size but loaded without contents.
	MaxFileSize int64

	// SkipDirs are directory names excluded from the walk.
	SkipDirs []string

	// CollectGit records the repository's git position (commit, branch,
	// dirty flag) on the snapshot. Requires a git binary; absence is not
	// an error.
	CollectGit bool
}

// DefaultConfig returns the default snapshot loading configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxFileSize: 1 << 20, // 1 MB
		SkipDirs: []string{
			".git", ".jj", ".hg", ".svn",
			"node_modules", "vendor", "dist", "build", "target",
			".idea", ".vscode", "__pycache__", ".venv", "venv",
		},
		CollectGit: true,
	}
}

// File is one entry in a snapshot. Path is slash-separated and relative
// to the snapshot root. Data is nil for binary files and for files over
// the size cap.
type File struct {
	Path   string
	Size   int64
	Data   []byte
	Binary bool
}

// Snapshot is the materialized file set of one repository at one moment.
// Files are sorted by path so every walk over them is deterministic.
type Snapshot struct {
	Root     string
	Name     string
	Files    []File
	Git      *types.GitInfo
	LoadedAt time.Time
}

// Load walks root and materializes a snapshot. Directories named in
// cfg.SkipDirs are pruned. Returns an error if root does not exist or is
// not a directory; an empty directory yields a snapshot with no files,
// which analyzers reject as unanalyzable.
func Load(ctx context.Context, root string, cfg *Config) (*Snapshot, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absRoot)
	}

	skip := make(map[string]bool, len(cfg.SkipDirs))
	for _, d := range cfg.SkipDirs {
		skip[d] = true
	}

	snap := &Snapshot{
		Root:     absRoot,
		Name:     filepath.Base(absRoot),
		LoadedAt: time.Now(),
	}

	err = filepath.Walk(absRoot, func(path string, info os.FileInfo, err error) error {
		// Check for cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			// Skip unreadable entries rather than failing the whole walk
			return nil
		}

		if info.IsDir() {
			if path != absRoot && skip[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}

		file := File{
			Path: filepath.ToSlash(rel),
			Size: info.Size(),
		}

		if info.Size() <= cfg.MaxFileSize {
			data, err := os.ReadFile(path)
			if err == nil {
				if looksBinary(data) {
					file.Binary = true
				} else {
					file.Data = data
				}
			}
		}

		snap.Files = append(snap.Files, file)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", absRoot, err)
	}

	sort.Slice(snap.Files, func(i, j int) bool {
		return snap.Files[i].Path < snap.Files[j].Path
	})

	if cfg.CollectGit {
		git, err := GitMetadata(ctx, absRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to read git metadata for %s: %w", absRoot, err)
		}
		snap.Git = git
	}

	return snap, nil
}

// Empty reports whether the snapshot holds no files at all.
func (s *Snapshot) Empty() bool {
	return len(s.Files) == 0
}

// FileCount returns the number of files in the snapshot.
func (s *Snapshot) FileCount() int {
	return len(s.Files)
}

// TotalSize returns the combined size of all files in bytes.
func (s *Snapshot) TotalSize() int64 {
	var total int64
	for _, f := range s.Files {
		total += f.Size
	}
	return total
}

// TextFiles returns the files with loaded text contents, in path order.
func (s *Snapshot) TextFiles() []File {
	out := make([]File, 0, len(s.Files))
	for _, f := range s.Files {
		if f.Data != nil && !f.Binary {
			out = append(out, f)
		}
	}
	return out
}

// Lookup returns the file at the given slash-separated relative path.
func (s *Snapshot) Lookup(path string) (File, bool) {
	i := sort.Search(len(s.Files), func(i int) bool {
		return s.Files[i].Path >= path
	})
	if i < len(s.Files) && s.Files[i].Path == path {
		return s.Files[i], true
	}
	return File{}, false
}

// looksBinary applies git's heuristic: a NUL byte in the first 8000
// bytes marks the file as binary.
func looksBinary(data []byte) bool {
	probe := data
	if len(probe) > 8000 {
		probe = probe[:8000]
	}
	return bytes.IndexByte(probe, 0) >= 0
}
