package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
	DataDir   string `toml:"data_dir"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
}

// Admission contains the request-rate and disk-space admission policy.
type Admission struct {
	Capacity              int   `toml:"capacity"`
	RefillTokens          int   `toml:"refill_tokens"`
	RefillIntervalSeconds int   `toml:"refill_interval_seconds"`
	MinFreeGB             int64 `toml:"min_free_gb"`
}

// Executor contains worker pool and resource guard sizing.
type Executor struct {
	Workers               int `toml:"workers"`
	QueueCapacity         int `toml:"queue_capacity"`
	MaxConcurrent         int `toml:"max_concurrent"`
	AcquireTimeoutSeconds int `toml:"acquire_timeout_seconds"`
}

// Retention contains the job record and output file sweep schedule.
type Retention struct {
	JobRetentionMinutes     int    `toml:"job_retention_minutes"`
	JobSweepIntervalMinutes int    `toml:"job_sweep_interval_minutes"`
	FileRetentionHours      int    `toml:"file_retention_hours"`
	FileSweepTime           string `toml:"file_sweep_time"`
}

// YouTube contains metadata lookup and download tool settings.
type YouTube struct {
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url"`
	CacheTTLHours   int    `toml:"cache_ttl_hours"`
	CacheMaxEntries int    `toml:"cache_max_entries"`
	YtDlpBinary     string `toml:"ytdlp_binary"`
}

// Encoding contains settings for the AV1 re-encode of the mkv format.
type Encoding struct {
	DraptoEnabled bool `toml:"drapto_enabled"`
}

// Mirror contains the optional Redis job snapshot mirror.
type Mirror struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Convify.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Admission Admission `toml:"admission"`
	Executor  Executor  `toml:"executor"`
	Retention Retention `toml:"retention"`
	YouTube   YouTube   `toml:"youtube"`
	Encoding  Encoding  `toml:"encoding"`
	Mirror    Mirror    `toml:"mirror"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("convify.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir, c.Paths.DataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite archive location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "convify.db")
}

// LockPath returns the daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "convify.lock")
}

// RefillInterval is the period over which RefillTokens are restored.
func (c *Config) RefillInterval() time.Duration {
	return time.Duration(c.Admission.RefillIntervalSeconds) * time.Second
}

// MinFreeBytes is the free-space floor for the output filesystem, in decimal gigabytes.
func (c *Config) MinFreeBytes() uint64 {
	return uint64(c.Admission.MinFreeGB) * 1_000_000_000
}

// AcquireTimeout bounds how long a job waits for a transcode slot.
func (c *Config) AcquireTimeout() time.Duration {
	return time.Duration(c.Executor.AcquireTimeoutSeconds) * time.Second
}

// JobRetention is how long terminal job records are kept after completion.
func (c *Config) JobRetention() time.Duration {
	return time.Duration(c.Retention.JobRetentionMinutes) * time.Minute
}

// JobSweepInterval is the period between job record sweeps.
func (c *Config) JobSweepInterval() time.Duration {
	return time.Duration(c.Retention.JobSweepIntervalMinutes) * time.Minute
}

// FileRetention is the maximum age of output files before deletion.
func (c *Config) FileRetention() time.Duration {
	return time.Duration(c.Retention.FileRetentionHours) * time.Hour
}

// TitleCacheTTL is how long fetched titles are reused.
func (c *Config) TitleCacheTTL() time.Duration {
	return time.Duration(c.YouTube.CacheTTLHours) * time.Hour
}

// FileSweepClock returns the daily file sweep time as hour and minute.
func (c *Config) FileSweepClock() (int, int) {
	hour, minute, _ := parseClock(c.Retention.FileSweepTime)
	return hour, minute
}

// MirrorEnabled reports whether a Redis address was configured.
func (c *Config) MirrorEnabled() bool {
	return strings.TrimSpace(c.Mirror.RedisAddr) != ""
}

// FFmpegBinary returns the ffmpeg executable name used by yt-dlp merges.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
