package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild when the config or a local changelog changes",
	Long: `Run a build, then watch the config file and every local changelog file
and rebuild after they change. Remote sources are refetched on each rebuild.
Stop with Ctrl-C.`,
	Run: runWatch,
}

var watchDebounce time.Duration

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "Wait this long after the last change before rebuilding")
}

func runWatch(cmd *cobra.Command, args []string) {
	logger, err := newLogger(logLevel, logFormat)
	if err != nil {
		exitError("%v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signalContext()
	defer stop()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		exitError("failed to start file watcher: %v", err)
	}
	defer fsw.Close()

	w := &watcher{
		fsw:      fsw,
		debounce: watchDebounce,
		rebuild:  rebuildOnce(logger),
		log:      logger,
	}
	files, err := w.rebuild(ctx)
	if err != nil && files == nil {
		exitOnError(err)
	}
	w.watch(files)

	color.New(color.FgCyan).Printf("Watching %d files for changes\n", len(w.files))
	if err := w.run(ctx); err != nil {
		exitError("%v", err)
	}
}

// rebuildOnce reloads the config, runs a build and returns the files to watch
// next. The store is reopened on each run so config changes take effect.
func rebuildOnce(logger *zap.Logger) func(context.Context) ([]string, error) {
	var last []string
	return func(ctx context.Context) ([]string, error) {
		c, err := openContext(logger)
		if err != nil {
			logger.Error("failed to load project", zap.Error(err))
			return last, err
		}
		defer c.Store.Close()

		last = c.Builder.WatchPaths()
		report, err := c.Builder.Build(ctx)
		if err != nil {
			logger.Error("build failed", zap.Error(err))
			return last, err
		}
		printReport(report)
		return last, nil
	}
}

// watcher rebuilds after changes to a set of files. Parent directories are
// watched so editors that replace files on save are still seen.
type watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	rebuild  func(context.Context) ([]string, error)
	log      *zap.Logger

	files map[string]bool
	dirs  map[string]bool
}

// watch replaces the watched file set.
func (w *watcher) watch(files []string) {
	w.files = make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		f = filepath.Clean(f)
		w.files[f] = true
		dirs[filepath.Dir(f)] = true
	}

	for dir := range w.dirs {
		if !dirs[dir] {
			_ = w.fsw.Remove(dir)
		}
	}
	for dir := range dirs {
		if w.dirs[dir] {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			w.log.Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
			delete(dirs, dir)
		}
	}
	w.dirs = dirs
}

func (w *watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	return w.files[filepath.Clean(ev.Name)]
}

// run processes events until ctx is done. Bursts of events within the
// debounce window trigger a single rebuild.
func (w *watcher) run(ctx context.Context) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.log.Debug("change detected", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
			timer.Reset(w.debounce)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		case <-timer.C:
			files, err := w.rebuild(ctx)
			if files != nil {
				w.watch(files)
			}
			if err != nil {
				color.New(color.FgRed).Println("Build failed, waiting for changes")
			}
		}
	}
}
