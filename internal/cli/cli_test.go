package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kilupskalvis/changelogs/internal/models"
	"github.com/kilupskalvis/changelogs/internal/sidebar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

func TestNewLogger(t *testing.T) {
	logger, err := newLogger("warn", "json")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = newLogger("debug", "console")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = newLogger("verbose", "console")
	assert.Error(t, err)
	_, err = newLogger("info", "xml")
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	items := []sidebar.Item{{Label: "All", Href: "/changelog/", IsCurrent: true}}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "json", items))
	assert.JSONEq(t, `[{"label":"All","href":"/changelog/","isCurrent":true}]`, buf.String())

	buf.Reset()
	require.NoError(t, render(&buf, "yaml", items))
	assert.Contains(t, buf.String(), "label: All")
	var decoded []sidebar.Item
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, items, decoded)

	assert.Error(t, render(&buf, "toml", items))
}

func TestRender_LabelsKeepJSONShape(t *testing.T) {
	paths := []*models.StaticPath{{
		Params: models.PathParams{Slug: "changelog"},
		Props: models.PathProps{
			Type:      models.PathVersions,
			Changelog: models.LoaderConfig{Base: "changelog", Title: models.Label{ByLocale: map[string]string{"en": "Changelog"}}},
		},
	}}

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "yaml", paths))

	var doc []map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	props := doc[0]["props"].(map[string]interface{})
	changelog := props["changelog"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"en": "Changelog"}, changelog["title"])
}

func TestWatcher_RebuildsOnWatchedFileChange(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "CHANGELOG.md")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(watched, []byte("# Changelog\n"), 0644))

	fsw, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer fsw.Close()

	var rebuilds int32
	w := &watcher{
		fsw:      fsw,
		debounce: 50 * time.Millisecond,
		log:      zap.NewNop(),
		rebuild: func(context.Context) ([]string, error) {
			atomic.AddInt32(&rebuilds, 1)
			return []string{watched}, nil
		},
	}
	w.watch([]string{watched})
	assert.Equal(t, map[string]bool{dir: true}, w.dirs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.run(ctx) }()

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&rebuilds), "unwatched files do not trigger a rebuild")

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(watched, []byte("# Changelog\n\n## 1.0.0\n"), 0644))
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&rebuilds) == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&rebuilds), "a burst of writes rebuilds once")

	cancel()
	require.NoError(t, <-done)
}

func TestWatcher_WatchReplacesDirectories(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	fsw, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer fsw.Close()

	w := &watcher{fsw: fsw, log: zap.NewNop()}
	w.watch([]string{filepath.Join(first, "a.md"), filepath.Join(first, "b.md")})
	assert.Len(t, w.files, 2)
	assert.Equal(t, map[string]bool{first: true}, w.dirs)

	w.watch([]string{filepath.Join(second, "a.md")})
	assert.Equal(t, map[string]bool{second: true}, w.dirs)
	assert.ElementsMatch(t, []string{second}, fsw.WatchList())
	assert.True(t, w.relevant(fsnotify.Event{Name: filepath.Join(second, "a.md"), Op: fsnotify.Write}))
	assert.False(t, w.relevant(fsnotify.Event{Name: filepath.Join(second, "a.md"), Op: fsnotify.Chmod}))
}
