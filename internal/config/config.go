package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	LoginPassword = "password"
	LoginWechat   = "wechat"
)

type Config struct {
	PollInterval time.Duration `yaml:"-"`
	RawInterval  string        `yaml:"poll_interval"`
	LeadTime     *int          `yaml:"lead_time,omitempty"`
	Course       string        `yaml:"course"`
	AutoStart    bool          `yaml:"auto_start"`
	Workdir      string        `yaml:"workdir"`
	LogFile      string        `yaml:"log_file"`
	Backend      BackendConfig `yaml:"backend"`
	Login        LoginConfig   `yaml:"login"`
	Log          LogConfig     `yaml:"log"`
	TUI          TUIConfig     `yaml:"tui"`
}

type BackendConfig struct {
	BaseURL           string        `yaml:"base_url"`
	RequestTimeout    time.Duration `yaml:"-"`
	RawTimeout        string        `yaml:"request_timeout"`
	RequestsPerSecond float64       `yaml:"max_requests_per_second"`
}

type LoginConfig struct {
	Method   string `yaml:"method"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Link     string `yaml:"link"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TUIConfig struct {
	RefreshInterval time.Duration `yaml:"-"`
	RawInterval     string        `yaml:"refresh_interval"`
}

// Load reads the YAML config at path. A missing file is not an error when
// the environment provides what is needed. Variables from a .env file next to
// the working directory override the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DFYSIGN_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("DFYSIGN_USERNAME"); v != "" {
		c.Login.Username = v
	}
	if v := os.Getenv("DFYSIGN_PASSWORD"); v != "" {
		c.Login.Password = v
	}
	if v := os.Getenv("DFYSIGN_LINK"); v != "" {
		c.Login.Link = v
	}
}

func (c *Config) setDefaults() error {
	if c.RawInterval == "" {
		c.RawInterval = "1s"
	}
	d, err := time.ParseDuration(c.RawInterval)
	if err != nil {
		return fmt.Errorf("parse poll_interval %q: %w", c.RawInterval, err)
	}
	c.PollInterval = d

	if c.LeadTime == nil {
		defaultLead := 10
		c.LeadTime = &defaultLead
	}

	if c.Workdir == "" {
		c.Workdir = "/tmp/dfysign"
	}
	if c.LogFile == "" {
		c.LogFile = c.Workdir + "/logs/dfysign.log"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://localhost:10087/dfysign"
	}
	if c.Backend.RawTimeout == "" {
		c.Backend.RawTimeout = "10s"
	}
	timeout, err := time.ParseDuration(c.Backend.RawTimeout)
	if err != nil {
		return fmt.Errorf("parse backend.request_timeout %q: %w", c.Backend.RawTimeout, err)
	}
	c.Backend.RequestTimeout = timeout
	if c.Backend.RequestsPerSecond == 0 {
		c.Backend.RequestsPerSecond = 5
	}

	if c.Login.Method == "" {
		if c.Login.Link != "" && c.Login.Username == "" {
			c.Login.Method = LoginWechat
		} else {
			c.Login.Method = LoginPassword
		}
	}

	if c.TUI.RawInterval == "" {
		c.TUI.RawInterval = "500ms"
	}
	tuiInterval, err := time.ParseDuration(c.TUI.RawInterval)
	if err != nil {
		return fmt.Errorf("parse tui.refresh_interval %q: %w", c.TUI.RawInterval, err)
	}
	if tuiInterval <= 0 {
		return fmt.Errorf("tui.refresh_interval must be positive, got %s", c.TUI.RawInterval)
	}
	c.TUI.RefreshInterval = tuiInterval

	return nil
}

func (c *Config) validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.RawInterval)
	}
	if *c.LeadTime < 0 || *c.LeadTime > 600 {
		return fmt.Errorf("lead_time must be between 0 and 600 seconds, got %d", *c.LeadTime)
	}
	if c.Backend.RequestTimeout < 0 {
		return fmt.Errorf("backend.request_timeout must not be negative, got %s", c.Backend.RawTimeout)
	}
	if c.Backend.RequestsPerSecond < 0 {
		return fmt.Errorf("backend.max_requests_per_second must not be negative")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend.base_url %q must be an http(s) url", c.Backend.BaseURL)
	}

	switch c.Login.Method {
	case LoginPassword:
		if c.Login.Username == "" || c.Login.Password == "" {
			return fmt.Errorf("login: username and password required for password login")
		}
	case LoginWechat:
		if c.Login.Link == "" {
			return fmt.Errorf("login: link required for wechat login")
		}
	default:
		return fmt.Errorf("login: invalid method %q (password|wechat)", c.Login.Method)
	}
	return nil
}
