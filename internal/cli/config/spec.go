package config

import "time"

// CLIConfig is the on-disk meshbus-cli configuration.
type CLIConfig struct {
	DefaultOutput  string             `yaml:"default_output"`
	CurrentProfile string             `yaml:"current_profile,omitempty"`
	Profiles       map[string]Profile `yaml:"profiles,omitempty"`
}

// Profile stores the connection details for one store.
type Profile struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password,omitempty"`
	Database int           `yaml:"database,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	TLS      bool          `yaml:"tls,omitempty"`
	CAFile   string        `yaml:"ca_file,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *CLIConfig {
	return &CLIConfig{
		DefaultOutput: "table",
		Profiles:      make(map[string]Profile),
	}
}

// DefaultProfile is the profile used when none is named.
func DefaultProfile() Profile {
	return Profile{Host: "localhost", Port: 6379, Timeout: 2 * time.Second}
}

// Current returns the named profile, falling back to CurrentProfile and
// then to DefaultProfile.
func (c *CLIConfig) Current(name string) (Profile, bool) {
	if name == "" {
		name = c.CurrentProfile
	}
	if name == "" {
		return DefaultProfile(), true
	}
	p, ok := c.Profiles[name]
	if !ok {
		return DefaultProfile(), false
	}
	def := DefaultProfile()
	if p.Host == "" {
		p.Host = def.Host
	}
	if p.Port == 0 {
		p.Port = def.Port
	}
	if p.Timeout == 0 {
		p.Timeout = def.Timeout
	}
	return p, true
}
