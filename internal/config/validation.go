package config

import (
	"fmt"
	"time"

	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
)

// ValidateConfig validates the complete configuration structure.
func ValidateConfig(cfg *Config) error {
	validator := newConfigurationValidator(cfg)
	return validator.validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

// validate performs validation in order of dependencies.
func (cv *configurationValidator) validate() error {
	if err := cv.validateBook(); err != nil {
		return err
	}
	if err := cv.validateChannels(); err != nil {
		return err
	}
	if err := cv.validateRetry(); err != nil {
		return err
	}
	if err := cv.validateDaemon(); err != nil {
		return err
	}
	return nil
}

func (cv *configurationValidator) validateBook() error {
	if cv.config.Book.Title == "" {
		return binderrors.ConfigInvalid("book.title", "cannot be empty")
	}
	if cv.config.Book.ManuscriptDir == "" {
		return binderrors.ConfigInvalid("book.manuscript_dir", "cannot be empty")
	}
	if cv.config.Manifests.Dir == "" {
		return binderrors.ConfigInvalid("manifests.dir", "cannot be empty")
	}
	if cv.config.Output.Dir == "" {
		return binderrors.ConfigInvalid("output.dir", "cannot be empty")
	}
	return nil
}

func (cv *configurationValidator) validateChannels() error {
	names := make(map[string]bool)
	for i, ch := range cv.config.Channels {
		field := fmt.Sprintf("channels[%d]", i)
		if ch.Name == "" {
			return binderrors.ConfigInvalid(field+".name", "cannot be empty")
		}
		if names[ch.Name] {
			return binderrors.ConfigInvalid(field+".name", "duplicate channel name "+ch.Name)
		}
		names[ch.Name] = true

		switch ch.Type {
		case ChannelGit:
			// Remote defaults to origin; URL optional.
		case ChannelForge:
			if ch.APIURL == "" {
				return binderrors.ConfigInvalid(field+".api_url", "required for forge channels")
			}
			if ch.Owner == "" || ch.Repo == "" {
				return binderrors.ConfigInvalid(field, "owner and repo required for forge channels")
			}
		case ChannelStorefront:
			if ch.APIURL == "" {
				return binderrors.ConfigInvalid(field+".api_url", "required for storefront channels")
			}
			if ch.Slug == "" {
				return binderrors.ConfigInvalid(field+".slug", "required for storefront channels")
			}
		default:
			return binderrors.ConfigInvalid(field+".type", fmt.Sprintf("unsupported channel type %q", ch.Type))
		}

		if ch.Timeout != "" {
			if _, err := time.ParseDuration(ch.Timeout); err != nil {
				return binderrors.ConfigInvalid(field+".timeout", "not a duration: "+ch.Timeout)
			}
		}
		if ch.Auth != nil {
			switch ch.Auth.Type {
			case "token":
				if ch.Auth.Token == "" {
					return binderrors.ConfigInvalid(field+".auth.token", "required for token auth")
				}
			case "basic":
				if ch.Auth.Username == "" {
					return binderrors.ConfigInvalid(field+".auth.username", "required for basic auth")
				}
			default:
				return binderrors.ConfigInvalid(field+".auth.type", fmt.Sprintf("unsupported auth type %q", ch.Auth.Type))
			}
		}
	}
	return nil
}

func (cv *configurationValidator) validateRetry() error {
	r := cv.config.Retry
	if r.InitialDelay != "" {
		if _, err := time.ParseDuration(r.InitialDelay); err != nil {
			return binderrors.ConfigInvalid("retry.initial_delay", "not a duration: "+r.InitialDelay)
		}
	}
	if r.MaxDelay != "" {
		if _, err := time.ParseDuration(r.MaxDelay); err != nil {
			return binderrors.ConfigInvalid("retry.max_delay", "not a duration: "+r.MaxDelay)
		}
	}
	if r.InitialDelayDuration() > r.MaxDelayDuration() && r.MaxDelay != "" {
		return binderrors.ConfigInvalid("retry.initial_delay", "exceeds retry.max_delay")
	}
	return nil
}

func (cv *configurationValidator) validateDaemon() error {
	d := cv.config.Daemon
	if d.BuildInterval != "" {
		if _, err := time.ParseDuration(d.BuildInterval); err != nil {
			return binderrors.ConfigInvalid("daemon.build_interval", "not a duration: "+d.BuildInterval)
		}
	}
	if d.SyncInterval != "" {
		if _, err := time.ParseDuration(d.SyncInterval); err != nil {
			return binderrors.ConfigInvalid("daemon.sync_interval", "not a duration: "+d.SyncInterval)
		}
	}
	if cv.config.Events.Enabled && cv.config.Events.URL == "" {
		return binderrors.ConfigInvalid("events.url", "required when events are enabled")
	}
	return nil
}
