package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestLoadSortsAndSkips(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", []byte("package main\n"))
	writeFile(t, root, "README.md", []byte("# demo\n"))
	writeFile(t, root, "internal/util.go", []byte("package internal\n"))
	writeFile(t, root, ".git/config", []byte("[core]\n"))
	writeFile(t, root, "node_modules/pkg/index.js", []byte("module.exports = {}\n"))

	snap, err := Load(context.Background(), root, nil)
	require.NoError(t, err)

	paths := make([]string, 0, len(snap.Files))
	for _, f := range snap.Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"README.md", "internal/util.go", "main.go"}, paths)
	assert.Equal(t, 3, snap.FileCount())
	assert.False(t, snap.Empty())
	assert.Equal(t, filepath.Base(root), snap.Name)
}

func TestLoadBinarySniff(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.bin", []byte{0x7f, 'E', 'L', 'F', 0x00, 0x01})
	writeFile(t, root, "app.go", []byte("package app\n"))

	snap, err := Load(context.Background(), root, nil)
	require.NoError(t, err)
	require.Equal(t, 2, snap.FileCount())

	bin, ok := snap.Lookup("app.bin")
	require.True(t, ok)
	assert.True(t, bin.Binary)
	assert.Nil(t, bin.Data)

	text := snap.TextFiles()
	require.Len(t, text, 1)
	assert.Equal(t, "app.go", text[0].Path)
}

func TestLoadSizeCap(t *testing.T) {
	root := t.TempDir()
	big := make([]byte, 4096)
	for i := range big {
		big[i] = 'a'
	}
	writeFile(t, root, "big.txt", big)

	cfg := DefaultConfig()
	cfg.MaxFileSize = 1024
	snap, err := Load(context.Background(), root, cfg)
	require.NoError(t, err)

	f, ok := snap.Lookup("big.txt")
	require.True(t, ok)
	assert.Nil(t, f.Data, "contents beyond the cap are not loaded")
	assert.Equal(t, int64(4096), f.Size, "size is still recorded")
	assert.Equal(t, int64(4096), snap.TotalSize())
}

func TestLoadEmptyDir(t *testing.T) {
	snap, err := Load(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	assert.True(t, snap.Empty())
}

func TestLoadMissingRoot(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestLoadRootIsFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "f.txt", []byte("x"))
	_, err := Load(context.Background(), filepath.Join(root, "f.txt"), nil)
	assert.Error(t, err)
}

func TestGitMetadataNonRepo(t *testing.T) {
	info, err := GitMetadata(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, info)
}
