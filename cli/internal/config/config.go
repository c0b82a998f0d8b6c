package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAPIURL is used when neither a profile nor VIDCTL_API_URL names one.
const DefaultAPIURL = "http://localhost:8080"

// EnvAPIURL overrides the default API URL.
const EnvAPIURL = "VIDCTL_API_URL"

type Config struct {
	CurrentProfile string              `yaml:"current_profile"`
	Profiles       map[string]*Profile `yaml:"profiles"`
	Defaults       *Defaults           `yaml:"defaults,omitempty"`
	path           string
}

type Profile struct {
	APIURL      string    `yaml:"api_url"`
	Email       string    `yaml:"email,omitempty"`
	AccessToken string    `yaml:"access_token"`
	ExpiresAt   time.Time `yaml:"expires_at,omitempty"`
}

type Defaults struct {
	APIURL  string `yaml:"api_url"`
	NATSURL string `yaml:"nats_url,omitempty"`
}

func Default() *Config {
	return &Config{
		CurrentProfile: "default",
		Profiles:       make(map[string]*Profile),
		Defaults:       &Defaults{APIURL: DefaultAPIURL, NATSURL: "nats://localhost:4222"},
	}
}

// DefaultPath is ~/.vidctl/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".vidctl", "config.yaml"), nil
}

// Load reads cfgFile, or the default path when empty. A missing file yields
// the defaults. VIDCTL_API_URL overrides the default API URL.
func Load(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		cfgFile = p
	}

	cfg := Default()
	cfg.path = cfgFile

	data, err := os.ReadFile(cfgFile)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfgFile, err)
		}
	}

	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]*Profile)
	}
	if cfg.Defaults == nil {
		cfg.Defaults = Default().Defaults
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.Defaults.APIURL = v
	}
	return cfg, nil
}

func (c *Config) Path() string { return c.path }

func (c *Config) Save() error {
	if c.path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		c.path = p
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0600)
}

// SaveProfile stores a session under name and makes it current.
func (c *Config) SaveProfile(name string, p *Profile) error {
	if c.Profiles == nil {
		c.Profiles = make(map[string]*Profile)
	}
	c.Profiles[name] = p
	c.CurrentProfile = name
	return c.Save()
}

// GetProfile returns the named profile, or the current one when name is "".
func (c *Config) GetProfile(name string) (*Profile, error) {
	if name == "" {
		name = c.CurrentProfile
	}
	profile, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile '%s' not found", name)
	}
	return profile, nil
}

func (c *Config) RemoveProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("profile '%s' not found", name)
	}
	delete(c.Profiles, name)
	if c.CurrentProfile == name {
		c.CurrentProfile = ""
	}
	return c.Save()
}

// APIURL resolves the API URL for a profile: its own URL, else the default.
func (c *Config) APIURL(profile string) string {
	if p, err := c.GetProfile(profile); err == nil && p.APIURL != "" {
		return p.APIURL
	}
	if c.Defaults != nil && c.Defaults.APIURL != "" {
		return c.Defaults.APIURL
	}
	return DefaultAPIURL
}
