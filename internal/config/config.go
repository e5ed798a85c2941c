// Package config provides configuration management for dogan.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kilimcininkoroglu/dogan/internal/engine"
	"github.com/kilimcininkoroglu/dogan/internal/media"
)

// Config represents the complete dogan configuration
type Config struct {
	Tools    ToolsConfig        `yaml:"tools"`
	Download DownloadConfig     `yaml:"download"`
	UI       UIConfig           `yaml:"ui"`
	Hooks    HooksConfig        `yaml:"hooks"`
	Publish  PublishConfig      `yaml:"publish"`
	Metrics  MetricsConfig      `yaml:"metrics"`
	Logging  LoggingConfig      `yaml:"logging"`
	Profiles map[string]Profile `yaml:"profiles,omitempty"`
}

// ToolsConfig locates the external binaries
type ToolsConfig struct {
	YtDlp     string   `yaml:"ytdlp"`
	FFmpeg    string   `yaml:"ffmpeg"`
	ExtraArgs []string `yaml:"extra_args,omitempty"` // appended to every invocation
}

// DownloadConfig holds transfer settings
type DownloadConfig struct {
	Directory string `yaml:"directory"`
	Mode      string `yaml:"mode"`       // video, audio
	Container string `yaml:"container"`  // container listed in video mode
	MaxHeight int    `yaml:"max_height"` // cap for the automatic video choice
	RateLimit string `yaml:"rate_limit"` // e.g. "2M", "500K"
	Proxy     string `yaml:"proxy"`
	Checksum  string `yaml:"checksum"` // digest computed after each transfer
}

// UIConfig holds interactive controller settings
type UIConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	ClearAfter   time.Duration `yaml:"clear_after"` // 0 keeps the finished transfer on screen
	LogLines     int           `yaml:"log_lines"`
	Colors       bool          `yaml:"colors"`
}

// HooksConfig holds notification settings
type HooksConfig struct {
	OnStart          string        `yaml:"on_start"`
	OnComplete       string        `yaml:"on_complete"`
	OnError          string        `yaml:"on_error"`
	Webhook          string        `yaml:"webhook"`
	WebhookProxy     string        `yaml:"webhook_proxy"` // socks5://host:port
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

// PublishConfig holds the upload target for finished files
type PublishConfig struct {
	Target          string        `yaml:"target"` // ftp://, ftps:// or sftp:// URL
	PrivateKey      string        `yaml:"private_key"`
	KnownHosts      string        `yaml:"known_hosts"`
	InsecureHostKey bool          `yaml:"insecure_host_key"`
	Timeout         time.Duration `yaml:"timeout"`
}

// MetricsConfig holds the metrics endpoint settings
type MetricsConfig struct {
	Address string `yaml:"address"` // empty disables the endpoint
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"` // debug, info, warn, error
	File   string `yaml:"file"`
	Format string `yaml:"format"` // text, json
}

// Profile represents a named configuration override
type Profile struct {
	Mode      string `yaml:"mode,omitempty"`
	Directory string `yaml:"directory,omitempty"`
	MaxHeight int    `yaml:"max_height,omitempty"`
	RateLimit string `yaml:"rate_limit,omitempty"`
	Proxy     string `yaml:"proxy,omitempty"`
	Publish   string `yaml:"publish,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Tools: ToolsConfig{
			YtDlp:  "yt-dlp",
			FFmpeg: "ffmpeg",
		},
		Download: DownloadConfig{
			Directory: ".",
			Mode:      "video",
			Container: media.DefaultContainer,
			MaxHeight: media.DefaultMaxHeight,
		},
		UI: UIConfig{
			PollInterval: 100 * time.Millisecond,
			ClearAfter:   2 * time.Second,
			LogLines:     8,
			Colors:       true,
		},
		Hooks: HooksConfig{
			ProgressInterval: 5 * time.Second,
		},
		Publish: PublishConfig{
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Profiles: make(map[string]Profile),
	}
}

// ConfigPaths returns the list of config file paths in priority order
func ConfigPaths() []string {
	paths := make([]string, 0, 6)

	if envPath := os.Getenv("DOGAN_CONFIG"); envPath != "" {
		paths = append(paths, envPath)
	}

	paths = append(paths, ".dogan.yaml", ".dogan.yml")

	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "dogan", "config.yaml"))
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".dogan.yaml"))
	}

	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/dogan/config.yaml")
	}

	return paths
}

// Load reads .env, then the first config file found, then the environment
// overrides. Missing files are not an error.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	config := DefaultConfig()
	for _, path := range ConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := config.LoadFile(path); err != nil {
				return nil, fmt.Errorf("loading config from %s: %w", path, err)
			}
			break
		}
	}

	config.ApplyEnv()
	return config, nil
}

// LoadPath loads defaults, then the given file, then the environment.
func LoadPath(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := config.LoadFile(path); err != nil {
		return nil, err
	}
	config.ApplyEnv()
	return config, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// LoadFile loads configuration from a specific file
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides tool paths and the output directory from the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DOGAN_YTDLP"); v != "" {
		c.Tools.YtDlp = v
	}
	if v := os.Getenv("DOGAN_FFMPEG"); v != "" {
		c.Tools.FFmpeg = v
	}
	if v := os.Getenv("DOGAN_OUTPUT_DIR"); v != "" {
		c.Download.Directory = v
	}
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if c.Tools.YtDlp == "" {
		return fmt.Errorf("tools.ytdlp must not be empty")
	}
	if _, err := media.ParseMode(c.Download.Mode); err != nil {
		return fmt.Errorf("download.mode: %w", err)
	}
	if c.Download.MaxHeight < 0 {
		return fmt.Errorf("download.max_height must not be negative")
	}
	if _, err := ParseBandwidth(c.Download.RateLimit); err != nil {
		return fmt.Errorf("download.rate_limit: %w", err)
	}
	if _, err := engine.ParseAlgorithm(c.Download.Checksum); err != nil {
		return fmt.Errorf("download.checksum: %w", err)
	}
	if c.UI.PollInterval <= 0 {
		return fmt.Errorf("ui.poll_interval must be positive")
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ApplyProfile applies a named profile to the config
func (c *Config) ApplyProfile(name string) error {
	profile, ok := c.Profiles[name]
	if !ok {
		return fmt.Errorf("profile not found: %s", name)
	}

	if profile.Mode != "" {
		c.Download.Mode = profile.Mode
	}
	if profile.Directory != "" {
		c.Download.Directory = profile.Directory
	}
	if profile.MaxHeight > 0 {
		c.Download.MaxHeight = profile.MaxHeight
	}
	if profile.RateLimit != "" {
		c.Download.RateLimit = profile.RateLimit
	}
	if profile.Proxy != "" {
		c.Download.Proxy = profile.Proxy
	}
	if profile.Publish != "" {
		c.Publish.Target = profile.Publish
	}

	return nil
}

// GetDefaultConfigPath returns the default path for saving user config
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "dogan", "config.yaml"), nil
}

// ParseBandwidth parses a bandwidth string (e.g., "10M", "500K") to bytes per second
func ParseBandwidth(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}

	var value float64
	var unit string

	if _, err := fmt.Sscanf(s, "%f%s", &value, &unit); err != nil {
		if _, err := fmt.Sscanf(s, "%f", &value); err != nil {
			return 0, fmt.Errorf("invalid bandwidth format: %s", s)
		}
		return int64(value), nil
	}

	var multiplier int64
	switch unit {
	case "K", "k", "KB", "kb":
		multiplier = 1024
	case "M", "m", "MB", "mb":
		multiplier = 1024 * 1024
	case "G", "g", "GB", "gb":
		multiplier = 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unknown bandwidth unit: %s", unit)
	}

	return int64(value * float64(multiplier)), nil
}

// GenerateDefaultConfig generates a default config file content
func GenerateDefaultConfig() string {
	return `# dogan configuration file

# External tools
tools:
  ytdlp: "yt-dlp"           # metadata and transfer tool
  ffmpeg: "ffmpeg"          # muxer, needed to merge video and audio
  # extra_args: ["--cookies-from-browser", "firefox"]

# Transfers
download:
  directory: "."            # where finished files land
  mode: "video"             # video or audio
  container: "mp4"          # container listed in video mode
  max_height: 1080          # cap for the automatic video choice
  rate_limit: ""            # e.g. "2M", "500K"
  proxy: ""                 # passed to the transfer tool
  checksum: ""              # md5, sha1, sha256, sha512 or blake3

# Interactive controller
ui:
  poll_interval: 100ms      # how often a running query is checked
  clear_after: 2s           # reset the form after a transfer (0 = never)
  log_lines: 8              # output lines kept on screen
  colors: true

# Notifications
hooks:
  on_start: ""              # shell command, DOGAN_* variables are set
  on_complete: ""
  on_error: ""
  webhook: ""               # URL receiving JSON events
  webhook_proxy: ""         # socks5://127.0.0.1:9050
  progress_interval: 5s     # minimum gap between progress events

# Copy finished files elsewhere
publish:
  target: ""                # ftp://host/dir, ftps://host/dir or sftp://user@host/dir
  private_key: ""           # sftp key, defaults to ~/.ssh/id_ed25519 or id_rsa
  known_hosts: ""           # defaults to ~/.ssh/known_hosts
  insecure_host_key: false
  timeout: 30s

# Metrics endpoint
metrics:
  address: ""               # e.g. ":9090"

# Logging
logging:
  level: "info"             # debug, info, warn, error
  file: ""                  # log file path (empty = stderr, silent in the TUI)
  format: "text"            # text, json

# Named profiles (use with --profile)
profiles:
  music:
    mode: "audio"
    directory: "~/Music"
  mobile:
    max_height: 480
    rate_limit: "1M"
`
}

// ExpandPath replaces a leading "~" with the user's home directory
func ExpandPath(p string) string {
	if p != "~" && !hasHomePrefix(p) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}

func hasHomePrefix(p string) bool {
	return len(p) > 1 && p[0] == '~' && (p[1] == '/' || p[1] == filepath.Separator)
}
