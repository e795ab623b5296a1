package config

import "strings"

// ChannelType enumerates supported distribution channel kinds.
type ChannelType string

const (
	// ChannelGit tags the source tree and pushes the tag to a remote.
	ChannelGit ChannelType = "git"
	// ChannelForge creates a release on the hosting service and attaches
	// artifact assets to the tag.
	ChannelForge ChannelType = "forge"
	// ChannelStorefront triggers the commercial platform's regeneration
	// from the latest synced source.
	ChannelStorefront ChannelType = "storefront"
)

// NormalizeChannelType converts arbitrary user input (case-insensitive) into a typed
// channel type, returning empty string for unknown.
func NormalizeChannelType(raw string) ChannelType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ChannelGit):
		return ChannelGit
	case string(ChannelForge):
		return ChannelForge
	case string(ChannelStorefront):
		return ChannelStorefront
	default:
		return ""
	}
}

// ChannelConfig describes one distribution channel.
type ChannelConfig struct {
	Name string      `yaml:"name"`
	Type ChannelType `yaml:"type"`

	// git
	Remote string `yaml:"remote,omitempty"`
	URL    string `yaml:"url,omitempty"`

	// forge
	APIURL string `yaml:"api_url,omitempty"`
	Owner  string `yaml:"owner,omitempty"`
	Repo   string `yaml:"repo,omitempty"`

	// storefront
	Slug string `yaml:"slug,omitempty"`

	Auth    *AuthConfig `yaml:"auth,omitempty"`
	Timeout string      `yaml:"timeout,omitempty"`
}

// AuthConfig represents authentication configuration for a channel.
type AuthConfig struct {
	Type     string `yaml:"type"` // "token", "basic"
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
}
