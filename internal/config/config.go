// Package config manages the changelogs project configuration.
// It handles loading, validating, and initializing the config file and
// persisting the serialized loader configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kilupskalvis/changelogs/internal/models"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	DefaultConfigFile = "changelogs.toml"
	DefaultOutDir     = ".changelogs"
	DatabaseFile      = "changelogs.db"
	LoaderConfigFile  = "loaders.json"
	PathsFile         = "paths.json"
	EnvPrefix         = "CHANGELOGS"
)

// Trailing slash policies for generated links.
const (
	TrailingSlashAlways = "always"
	TrailingSlashIgnore = "ignore"
	TrailingSlashNever  = "never"
)

// StoreConfig selects the entry store backend.
type StoreConfig struct {
	Driver string `toml:"driver"`
}

// SiteConfig describes how generated links are shaped.
type SiteConfig struct {
	Base          string   `toml:"base"`
	TrailingSlash string   `toml:"trailing_slash"`
	DefaultLang   string   `toml:"default_lang"`
	Locales       []string `toml:"locales,omitempty"`
}

// SidebarLink is a changelog-aware sidebar item.
type SidebarLink struct {
	Base  string `toml:"base"`
	Type  string `toml:"type"`
	Count int    `toml:"count,omitempty"`
	Label string `toml:"label,omitempty"`
}

// Config represents the project configuration
type Config struct {
	Root       string         `toml:"root"`
	OutDir     string         `toml:"out_dir"`
	Strict     bool           `toml:"strict"`
	Store      StoreConfig    `toml:"store"`
	Site       SiteConfig     `toml:"site"`
	Changelogs []SourceConfig `toml:"changelogs"`
	Sidebar    []SidebarLink  `toml:"sidebar,omitempty"`

	path    string // path to the config file
	root    string // absolute project root
	sources []*Source
}

// Load reads, validates and resolves the config file at path.
// A .env file next to the config is loaded first so tokens can be read from it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(abs), ".env")); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &models.UserError{
				Message: fmt.Sprintf("No changelogs config found at %s.", abs),
				Hint:    "Run 'changelogs init' to create one.",
			}
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data, abs)
}

// Parse decodes and validates config data as if read from path.
func Parse(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, models.NewUserError(fmt.Sprintf("Failed to parse config %s.", path), err)
	}
	cfg.path = path
	applyEnv(&cfg)
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides top-level settings from CHANGELOGS_* environment variables.
func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range []string{"root", "out_dir", "strict", "store.driver", "site.base", "site.trailing_slash", "site.default_lang"} {
		_ = v.BindEnv(key)
	}

	if v.IsSet("root") {
		cfg.Root = v.GetString("root")
	}
	if v.IsSet("out_dir") {
		cfg.OutDir = v.GetString("out_dir")
	}
	if v.IsSet("strict") {
		cfg.Strict = v.GetBool("strict")
	}
	if v.IsSet("store.driver") {
		cfg.Store.Driver = v.GetString("store.driver")
	}
	if v.IsSet("site.base") {
		cfg.Site.Base = v.GetString("site.base")
	}
	if v.IsSet("site.trailing_slash") {
		cfg.Site.TrailingSlash = v.GetString("site.trailing_slash")
	}
	if v.IsSet("site.default_lang") {
		cfg.Site.DefaultLang = v.GetString("site.default_lang")
	}
}

// resolve applies defaults and validates every source and sidebar link.
func (c *Config) resolve() error {
	if c.Root == "" {
		c.Root = "."
	}
	if c.OutDir == "" {
		c.OutDir = DefaultOutDir
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "bbolt"
	}
	if c.Site.Base == "" {
		c.Site.Base = "/"
	}
	if c.Site.TrailingSlash == "" {
		c.Site.TrailingSlash = TrailingSlashIgnore
	}
	if c.Site.DefaultLang == "" {
		c.Site.DefaultLang = "en"
	}

	c.root = c.Root
	if !filepath.IsAbs(c.root) {
		c.root = filepath.Join(filepath.Dir(c.path), c.root)
	}

	var issues []string
	switch c.Site.TrailingSlash {
	case TrailingSlashAlways, TrailingSlashIgnore, TrailingSlashNever:
	default:
		issues = append(issues, fmt.Sprintf("site.trailing_slash must be always, ignore or never, got %q", c.Site.TrailingSlash))
	}
	switch c.Store.Driver {
	case "bbolt", "sqlite":
	default:
		issues = append(issues, fmt.Sprintf("store.driver must be bbolt or sqlite, got %q", c.Store.Driver))
	}

	c.sources = nil
	bases := make(map[string]int)
	for i := range c.Changelogs {
		src := c.Changelogs[i].build(i, c.root, &issues)
		if src == nil {
			continue
		}
		if prev, ok := bases[src.Base]; ok {
			issues = append(issues, fmt.Sprintf("changelogs[%d]: base %q is already used by changelogs[%d]", i, src.Base, prev))
			continue
		}
		bases[src.Base] = i
		c.sources = append(c.sources, src)
	}

	for i := range c.Sidebar {
		link := &c.Sidebar[i]
		link.Base = StripSlashes(link.Base)
		if link.Base == "" {
			issues = append(issues, fmt.Sprintf("sidebar[%d]: base is required", i))
		}
		switch link.Type {
		case "all", "latest":
		case "recent":
			if link.Count <= 0 {
				issues = append(issues, fmt.Sprintf("sidebar[%d]: count must be positive for recent links", i))
			}
		default:
			issues = append(issues, fmt.Sprintf("sidebar[%d]: type must be all, latest or recent, got %q", i, link.Type))
		}
	}

	if len(issues) > 0 {
		return &models.UserError{
			Message: "The provided changelogs loader configuration is invalid.\n" + strings.Join(issues, "\n"),
			Hint:    fmt.Sprintf("Fix the configuration in %s and run the build again.", c.path),
		}
	}
	return nil
}

// Sources returns the validated changelog sources in declared order.
func (c *Config) Sources() []*Source {
	return c.sources
}

// Path returns the path to the config file
func (c *Config) Path() string {
	return c.path
}

// ProjectRoot returns the absolute project root.
func (c *Config) ProjectRoot() string {
	return c.root
}

// OutPath returns the absolute output directory.
func (c *Config) OutPath() string {
	if filepath.IsAbs(c.OutDir) {
		return c.OutDir
	}
	return filepath.Join(c.root, c.OutDir)
}

// DatabasePath returns the path to the entry store database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.OutPath(), DatabaseFile)
}

// LoaderConfigPath returns the path of the serialized loader configuration.
func (c *Config) LoaderConfigPath() string {
	return filepath.Join(c.OutPath(), LoaderConfigFile)
}

// PathsManifestPath returns the path of the generated static paths manifest.
func (c *Config) PathsManifestPath() string {
	return filepath.Join(c.OutPath(), PathsFile)
}

// Locales returns the locale keys to generate pages for. The root locale is "".
func (c *Config) Locales() []string {
	if len(c.Site.Locales) == 0 {
		return []string{""}
	}
	locales := make([]string, 0, len(c.Site.Locales))
	for _, l := range c.Site.Locales {
		if l == "root" {
			l = ""
		}
		locales = append(locales, l)
	}
	return locales
}

// LangFor maps a locale key to its language tag.
func (c *Config) LangFor(locale string) string {
	if locale == "" {
		return c.Site.DefaultLang
	}
	return locale
}

// Sample returns the configuration written by Initialize.
func Sample() *Config {
	return &Config{
		Root:   ".",
		OutDir: DefaultOutDir,
		Store:  StoreConfig{Driver: "bbolt"},
		Site: SiteConfig{
			Base:          "/",
			TrailingSlash: TrailingSlashIgnore,
			DefaultLang:   "en",
		},
		Changelogs: []SourceConfig{
			{
				Provider: string(ProviderGitHub),
				Base:     "changelog",
				Owner:    "diesel-rs",
				Repo:     "diesel",
				TokenEnv: "GITHUB_TOKEN",
			},
		},
		Sidebar: []SidebarLink{
			{Base: "changelog", Type: "all", Label: "All versions"},
			{Base: "changelog", Type: "latest", Label: "Latest version"},
		},
	}
}

// Initialize writes a sample config file at path. It refuses to overwrite.
func Initialize(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFile
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("config file %s already exists", path)
	}

	cfg := Sample()
	cfg.path = path
	if err := cfg.Save(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(c.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(c.path, data, 0644)
}
