package profilewatch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magiconsole/magi/internal/profilewatch"
)

const profileA = `{"user":{"name":"Ada"},"github":{"highlighted_projects":[{"name":"Engine"}]},"contact":{"email":"ada@example.com"}}`
const profileB = `{"user":{"name":"Grace"},"github":{"highlighted_projects":[{"name":"Compiler"}]},"contact":{"email":"grace@example.com"}}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNew_LoadsProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	writeFile(t, path, profileA)

	w, err := profilewatch.New(path)
	require.NoError(t, err)
	assert.Equal(t, "Ada", w.Profile().User.Name)
}

func TestNew_InvalidProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	writeFile(t, path, `{"user":{}}`)

	_, err := profilewatch.New(path)
	assert.Error(t, err)
}

func TestReload_KeepsPreviousOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	writeFile(t, path, profileA)

	w, err := profilewatch.New(path)
	require.NoError(t, err)

	writeFile(t, path, `{not json`)
	assert.Error(t, w.Reload())
	assert.Equal(t, "Ada", w.Profile().User.Name)
	assert.Equal(t, int64(0), w.Reloads())
}

func TestWatch_SwapsRewrittenProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	writeFile(t, path, profileA)

	w, err := profilewatch.New(path, profilewatch.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, path, profileB)

	assert.Eventually(t, func() bool {
		return w.Profile().User.Name == "Grace"
	}, 5*time.Second, 20*time.Millisecond)

	p, ok := w.Profile().FirstProject()
	require.True(t, ok)
	assert.Equal(t, "Compiler", p.Name)

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.json")
	writeFile(t, path, profileA)

	w, err := profilewatch.New(path, profilewatch.WithDebounce(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Watch(ctx)

	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "other.json"), profileB)
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, int64(0), w.Reloads())
	assert.Equal(t, "Ada", w.Profile().User.Name)
}
