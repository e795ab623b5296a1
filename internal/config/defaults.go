package config

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config)
	Domain() string
}

// BookDefaultApplier handles book and path defaults.
type BookDefaultApplier struct{}

func (BookDefaultApplier) Domain() string { return "book" }

func (BookDefaultApplier) ApplyDefaults(cfg *Config) {
	if cfg.Book.Title == "" {
		cfg.Book.Title = "Untitled"
	}
	if cfg.Book.Language == "" {
		cfg.Book.Language = "en"
	}
	if cfg.Book.ManuscriptDir == "" {
		cfg.Book.ManuscriptDir = "manuscript"
	}
	if cfg.Manifests.Dir == "" {
		cfg.Manifests.Dir = "manifests"
	}
	if cfg.Manifests.FullTarget == "" {
		cfg.Manifests.FullTarget = "full"
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "build"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = ".bindery/bindery.db"
	}
	if cfg.Changelog == "" {
		cfg.Changelog = "CHANGELOG.md"
	}
}

// FormatsDefaultApplier handles per-format render defaults.
type FormatsDefaultApplier struct{}

func (FormatsDefaultApplier) Domain() string { return "formats" }

func (FormatsDefaultApplier) ApplyDefaults(cfg *Config) {
	if cfg.Formats.HTML.TOCDepth <= 0 {
		cfg.Formats.HTML.TOCDepth = 3
	}
	if cfg.Formats.EPUB.TOCDepth <= 0 {
		cfg.Formats.EPUB.TOCDepth = 2
	}
	if cfg.Formats.PDF.TOCDepth <= 0 {
		cfg.Formats.PDF.TOCDepth = 3
	}
	if cfg.Formats.PDF.Converter == "" {
		cfg.Formats.PDF.Converter = "pandoc"
	}
	if cfg.Formats.PDF.PageSize == "" {
		cfg.Formats.PDF.PageSize = "a4"
	}
}

// ChannelsDefaultApplier handles channel descriptor defaults.
type ChannelsDefaultApplier struct{}

func (ChannelsDefaultApplier) Domain() string { return "channels" }

func (ChannelsDefaultApplier) ApplyDefaults(cfg *Config) {
	for i := range cfg.Channels {
		ch := &cfg.Channels[i]
		if t := NormalizeChannelType(string(ch.Type)); t != "" {
			ch.Type = t
		}
		if ch.Type == ChannelGit && ch.Remote == "" {
			ch.Remote = "origin"
		}
		if ch.Timeout == "" {
			ch.Timeout = "60s"
		}
	}
}

// RetryDefaultApplier handles retry policy defaults.
type RetryDefaultApplier struct{}

func (RetryDefaultApplier) Domain() string { return "retry" }

func (RetryDefaultApplier) ApplyDefaults(cfg *Config) {
	if cfg.Retry.Backoff == "" {
		cfg.Retry.Backoff = RetryBackoffLinear
	} else {
		cfg.Retry.Backoff = NormalizeRetryBackoff(string(cfg.Retry.Backoff))
		if cfg.Retry.Backoff == "" { // fallback to default if unknown
			cfg.Retry.Backoff = RetryBackoffLinear
		}
	}
	if cfg.Retry.InitialDelay == "" {
		cfg.Retry.InitialDelay = "1s"
	}
	if cfg.Retry.MaxDelay == "" {
		cfg.Retry.MaxDelay = "30s"
	}
	if cfg.Retry.MaxRetries < 0 {
		cfg.Retry.MaxRetries = 0
	}
}

// DaemonDefaultApplier handles daemon and events defaults.
type DaemonDefaultApplier struct{}

func (DaemonDefaultApplier) Domain() string { return "daemon" }

func (DaemonDefaultApplier) ApplyDefaults(cfg *Config) {
	if cfg.Daemon.HTTPAddr == "" {
		cfg.Daemon.HTTPAddr = ":9180"
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "bindery"
	}
}

// ApplyDefaults runs every domain applier against the config in order.
func ApplyDefaults(cfg *Config) {
	appliers := []DefaultApplier{
		BookDefaultApplier{},
		FormatsDefaultApplier{},
		ChannelsDefaultApplier{},
		RetryDefaultApplier{},
		DaemonDefaultApplier{},
	}
	for _, a := range appliers {
		a.ApplyDefaults(cfg)
	}
}
