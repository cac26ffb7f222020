// Package core runs the changelog build: it loads every enabled source into
// the entry store and expands the stored entries into static paths.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/kilupskalvis/changelogs/internal/config"
	"github.com/kilupskalvis/changelogs/internal/httpcache"
	"github.com/kilupskalvis/changelogs/internal/models"
	"github.com/kilupskalvis/changelogs/internal/paths"
	"github.com/kilupskalvis/changelogs/internal/provider"
	"github.com/kilupskalvis/changelogs/internal/sidebar"
	"github.com/kilupskalvis/changelogs/internal/store"
	"go.uber.org/zap"
)

// Options configures a Builder.
type Options struct {
	Logger     *zap.Logger
	Metrics    *metrics.Set
	HTTPClient *http.Client
	Retry      *httpcache.RetryConfig
}

// Builder runs builds for one project.
type Builder struct {
	cfg     *config.Config
	store   store.Store
	client  *httpcache.Client
	loaders *config.LoaderConfigStore
	log     *zap.Logger
	metrics *metrics.Set
}

// NewBuilder creates a Builder writing to st.
func NewBuilder(cfg *config.Config, st store.Store, opts Options) *Builder {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewSet()
	}
	return &Builder{
		cfg:   cfg,
		store: st,
		client: httpcache.New(httpcache.Options{
			Strict:     cfg.Strict,
			Retry:      opts.Retry,
			Logger:     opts.Logger,
			Metrics:    opts.Metrics,
			HTTPClient: opts.HTTPClient,
		}),
		loaders: config.NewLoaderConfigStore(cfg.LoaderConfigPath()),
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
}

// SourceReport describes what a build did to one changelog.
type SourceReport struct {
	Base      string `json:"base"`
	Source    string `json:"source"`
	Modified  bool   `json:"modified"`
	Mode      string `json:"mode,omitempty"`
	Written   int    `json:"written"`
	Unchanged int    `json:"unchanged"`
	Removed   int    `json:"removed"`
}

// Report summarizes a build.
type Report struct {
	BuildID             string          `json:"build_id"`
	LoaderConfigWritten bool            `json:"loader_config_written"`
	Sources             []*SourceReport `json:"sources"`
	Pruned              []string        `json:"pruned,omitempty"`
	Paths               int             `json:"paths"`
	ManifestWritten     bool            `json:"manifest_written"`
	Duration            time.Duration   `json:"duration"`
}

// Build loads every enabled source in declared order, prunes bases that are
// no longer enabled, and writes the loader config and the paths manifest.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{BuildID: uuid.NewString()}
	log := b.log.With(zap.String("build_id", report.BuildID))
	log.Info("build started", zap.Int("sources", len(b.cfg.Sources())))

	written, err := b.loaders.Save(b.cfg.Sources())
	if err != nil {
		return nil, err
	}
	report.LoaderConfigWritten = written

	for _, src := range b.cfg.Sources() {
		if !src.Enabled {
			log.Debug("skipping disabled changelog", zap.String("base", src.Base))
			continue
		}
		sr, err := b.loadSource(ctx, log, src)
		if err != nil {
			b.metrics.GetOrCreateCounter("changelogs_source_errors_total").Inc()
			return nil, err
		}
		report.Sources = append(report.Sources, sr)
	}

	pruned, err := b.prune(log)
	if err != nil {
		return nil, err
	}
	report.Pruned = pruned

	generated, err := b.Generate()
	if err != nil {
		return nil, err
	}
	report.Paths = len(generated)

	manifest, err := json.MarshalIndent(generated, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal paths manifest: %w", err)
	}
	report.ManifestWritten, err = config.WriteFileIfChanged(b.cfg.PathsManifestPath(), manifest)
	if err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	b.metrics.GetOrCreateCounter("changelogs_builds_total").Inc()
	b.metrics.GetOrCreateHistogram("changelogs_build_duration_seconds").Update(report.Duration.Seconds())
	log.Info("build finished",
		zap.Int("paths", report.Paths),
		zap.Bool("manifest_written", report.ManifestWritten),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// LoadSource fetches one changelog and applies the result to the store.
func (b *Builder) LoadSource(ctx context.Context, src *config.Source) (*SourceReport, error) {
	return b.loadSource(ctx, b.log, src)
}

func (b *Builder) loadSource(ctx context.Context, log *zap.Logger, src *config.Source) (*SourceReport, error) {
	log = log.With(zap.String("base", src.Base), zap.String("source", src.String()))
	report := &SourceReport{Base: src.Base, Source: src.String()}

	fetcher, err := provider.For(src.Provider, b.client)
	if err != nil {
		return nil, err
	}
	meta, err := b.store.GetCacheMeta(src.Base)
	if err != nil {
		return nil, fmt.Errorf("read cache meta of %s: %w", src.Base, err)
	}

	res, err := fetcher.Fetch(ctx, src, meta)
	if err != nil {
		return nil, err
	}
	if !res.Modified {
		log.Info("changelog not modified")
		b.metrics.GetOrCreateCounter(fmt.Sprintf(`changelogs_source_unmodified_total{base=%q}`, src.Base)).Inc()
		return report, nil
	}

	report.Modified = true
	report.Mode = res.Mode.String()
	switch res.Mode {
	case provider.Upsert:
		stats, err := b.store.UpsertBase(src.Base, res.Entries)
		if err != nil {
			return nil, fmt.Errorf("store entries of %s: %w", src.Base, err)
		}
		report.Written, report.Unchanged, report.Removed = stats.Written, stats.Unchanged, stats.Removed
	default:
		if err := b.store.ReplaceBase(src.Base, res.Entries); err != nil {
			return nil, fmt.Errorf("store entries of %s: %w", src.Base, err)
		}
		report.Written = len(res.Entries)
	}

	if err := b.store.SetCacheMeta(src.Base, res.Meta); err != nil {
		return nil, fmt.Errorf("save cache meta of %s: %w", src.Base, err)
	}

	b.metrics.GetOrCreateCounter(fmt.Sprintf(`changelogs_entries_written_total{base=%q}`, src.Base)).Add(report.Written)
	log.Info("changelog loaded",
		zap.String("mode", report.Mode),
		zap.Int("entries", len(res.Entries)),
		zap.Int("written", report.Written),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("removed", report.Removed),
	)
	return report, nil
}

// prune deletes stored bases that no enabled source owns.
func (b *Builder) prune(log *zap.Logger) ([]string, error) {
	active := make(map[string]bool)
	for _, src := range b.cfg.Sources() {
		if src.Enabled {
			active[src.Base] = true
		}
	}

	bases, err := b.store.Bases()
	if err != nil {
		return nil, fmt.Errorf("list bases: %w", err)
	}
	var pruned []string
	for _, base := range bases {
		if active[base] {
			continue
		}
		if err := b.store.DeleteBase(base); err != nil {
			return nil, fmt.Errorf("prune %s: %w", base, err)
		}
		log.Info("pruned changelog", zap.String("base", base))
		pruned = append(pruned, base)
	}
	return pruned, nil
}

// Links returns the link shaping options of the site.
func (b *Builder) Links() paths.LinkOptions {
	return paths.LinkOptions{Base: b.cfg.Site.Base, TrailingSlash: b.cfg.Site.TrailingSlash}
}

// Entries returns the stored entries of every enabled base in the persisted
// loader config, together with that config.
func (b *Builder) Entries() ([]models.LoaderConfig, map[string][]*models.VersionEntry, error) {
	configs, err := b.loaders.Load()
	if err != nil {
		return nil, nil, err
	}
	entries := make(map[string][]*models.VersionEntry, len(configs))
	for _, c := range configs {
		if !c.Enabled {
			continue
		}
		list, err := b.store.ListBase(c.Base)
		if err != nil {
			return nil, nil, fmt.Errorf("list entries of %s: %w", c.Base, err)
		}
		entries[c.Base] = list
	}
	return configs, entries, nil
}

// Generate expands the stored entries into static paths.
func (b *Builder) Generate() ([]*models.StaticPath, error) {
	configs, entries, err := b.Entries()
	if err != nil {
		return nil, err
	}
	return paths.Generate(configs, entries, paths.Options{
		Locales: b.cfg.Locales(),
		Links:   b.Links(),
	})
}

// Sidebar resolves the configured sidebar links for locale.
func (b *Builder) Sidebar(locale, currentPath string) ([]sidebar.Item, error) {
	configs, entries, err := b.Entries()
	if err != nil {
		return nil, err
	}
	r := &sidebar.Resolver{
		Loader:      configs,
		Entries:     entries,
		Links:       b.Links(),
		DefaultLang: b.cfg.Site.DefaultLang,
	}
	return r.ResolveAll(b.cfg.Sidebar, locale, currentPath)
}

// WatchPaths lists the local files a rebuild depends on.
func (b *Builder) WatchPaths() []string {
	files := []string{b.cfg.Path()}
	for _, src := range b.cfg.Sources() {
		if !src.Enabled || src.Changelog == "" || src.IsRemote() {
			continue
		}
		files = append(files, src.Changelog)
	}
	return files
}

// WriteMetrics writes the build metrics in Prometheus text format.
func (b *Builder) WriteMetrics(w io.Writer) {
	b.metrics.WritePrometheus(w)
}
