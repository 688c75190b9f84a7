package resource

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SetAndLookup(t *testing.T) {
	r := New()
	r.Set(map[string]Resource{"file://a.txt": {URI: "file://a.txt", Content: []byte("hi")}},
		map[string]Prompt{"greeting": {Name: "greeting", Content: "hello"}})

	res, ok := r.Resource("file://a.txt")
	require.True(t, ok)
	assert.Equal(t, "hi", string(res.Content))

	p, ok := r.Prompt("greeting")
	require.True(t, ok)
	assert.Equal(t, "hello", p.Content)

	_, ok = r.Resource("file://missing")
	assert.False(t, ok)
}

func TestLoadFromDir_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("v1"), 0644))

	r, err := LoadFromDir(dir)
	require.NoError(t, err)
	defer r.Close()

	res, ok := r.Resource("file://a.txt")
	require.True(t, ok)
	assert.Equal(t, "v1", string(res.Content))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("v2"), 0644))

	require.Eventually(t, func() bool {
		_, ok := r.Resource("file://b.txt")
		return ok
	}, 2*time.Second, 20*time.Millisecond)
}
