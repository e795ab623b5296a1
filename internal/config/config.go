// Package config loads and validates the bindery.yaml project configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
)

// DefaultPath is the configuration file looked up when --config is not given.
const DefaultPath = "bindery.yaml"

// Config represents the project configuration.
type Config struct {
	Book      BookConfig      `yaml:"book"`
	Manifests ManifestsConfig `yaml:"manifests"`
	Output    OutputConfig    `yaml:"output"`
	Formats   FormatsConfig   `yaml:"formats"`
	Store     StoreConfig     `yaml:"store"`
	Changelog string          `yaml:"changelog,omitempty"`
	Channels  []ChannelConfig `yaml:"channels,omitempty"`
	Retry     RetryConfig     `yaml:"retry"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Events    EventsConfig    `yaml:"events"`
}

// BookConfig describes the work being assembled.
type BookConfig struct {
	Title         string `yaml:"title"`
	Subtitle      string `yaml:"subtitle,omitempty"`
	Author        string `yaml:"author"`
	Language      string `yaml:"language,omitempty"`
	CopyrightYear int    `yaml:"copyright_year,omitempty"`
	ManuscriptDir string `yaml:"manuscript_dir,omitempty"`
}

// ManifestsConfig locates the target manifests.
type ManifestsConfig struct {
	Dir string `yaml:"dir,omitempty"`
	// FullTarget names the manifest every other target must be a
	// subsequence of.
	FullTarget string `yaml:"full_target,omitempty"`
}

// OutputConfig controls where rendered artifacts land.
type OutputConfig struct {
	Dir   string `yaml:"dir,omitempty"`
	Clean bool   `yaml:"clean,omitempty"`
}

// StoreConfig locates the release ledger database.
type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env files first so ${VAR} expansion below can see them.
	if loaded := loadEnvFiles(); loaded != "" {
		fmt.Fprintf(os.Stderr, "Loaded environment variables from %s\n", loaded)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, binderrors.ConfigNotFound(configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, binderrors.Wrap(err, binderrors.KindConfig, binderrors.CategoryConfig, binderrors.SeverityFatal, "failed to read config file").
			WithContext("path", configPath)
	}

	// Expand environment variables in the YAML content.
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, binderrors.Wrap(err, binderrors.KindConfig, binderrors.CategoryConfig, binderrors.SeverityFatal, "failed to unmarshal config").
			WithContext("path", configPath)
	}

	ApplyDefaults(&config)

	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	exampleConfig := Config{
		Book: BookConfig{
			Title:         "Working Title",
			Author:        "Author Name",
			Language:      "en",
			CopyrightYear: 2026,
			ManuscriptDir: "manuscript",
		},
		Manifests: ManifestsConfig{
			Dir:        "manifests",
			FullTarget: "full",
		},
		Output: OutputConfig{
			Dir: "build",
		},
		Formats: FormatsConfig{
			HTML: HTMLFormatConfig{TOCDepth: 3, Numbering: true},
			EPUB: EPUBFormatConfig{TOCDepth: 2},
			PDF:  PDFFormatConfig{Converter: "pandoc", PageSize: "a4", TOCDepth: 3},
		},
		Store: StoreConfig{Path: ".bindery/bindery.db"},
		Channels: []ChannelConfig{
			{
				Name:   "origin",
				Type:   ChannelGit,
				Remote: "origin",
			},
			{
				Name:   "storefront",
				Type:   ChannelStorefront,
				APIURL: "https://press.example.com/api/v1",
				Slug:   "working-title",
				Auth:   &AuthConfig{Type: "token", Token: "${STOREFRONT_TOKEN}"},
			},
		},
		Retry: RetryConfig{
			Backoff:      RetryBackoffLinear,
			InitialDelay: "1s",
			MaxDelay:     "30s",
			MaxRetries:   2,
		},
		Daemon: DaemonConfig{
			BuildInterval: "15m",
			HTTPAddr:      ":9180",
		},
	}

	data, err := yaml.Marshal(&exampleConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Targets returns the target names of all manifest files present in the
// manifests dir, full target first when present.
func (c *Config) Targets() ([]string, error) {
	entries, err := os.ReadDir(c.Manifests.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading manifests dir: %w", err)
	}
	var targets []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		const ext = ".manifest"
		if len(name) <= len(ext) || name[len(name)-len(ext):] != ext {
			continue
		}
		targets = append(targets, name[:len(name)-len(ext)])
	}
	// Full target leads so downstream subsequence checks see it first.
	for i, t := range targets {
		if t == c.Manifests.FullTarget && i > 0 {
			targets[0], targets[i] = targets[i], targets[0]
			break
		}
	}
	return targets, nil
}
