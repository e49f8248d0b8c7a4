package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateYouTube(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"admission.capacity":                   c.Admission.Capacity,
		"admission.refill_tokens":              c.Admission.RefillTokens,
		"admission.refill_interval_seconds":    c.Admission.RefillIntervalSeconds,
		"executor.workers":                     c.Executor.Workers,
		"executor.queue_capacity":              c.Executor.QueueCapacity,
		"executor.max_concurrent":              c.Executor.MaxConcurrent,
		"executor.acquire_timeout_seconds":     c.Executor.AcquireTimeoutSeconds,
		"retention.job_retention_minutes":      c.Retention.JobRetentionMinutes,
		"retention.job_sweep_interval_minutes": c.Retention.JobSweepIntervalMinutes,
		"retention.file_retention_hours":       c.Retention.FileRetentionHours,
		"youtube.cache_ttl_hours":              c.YouTube.CacheTTLHours,
		"youtube.cache_max_entries":            c.YouTube.CacheMaxEntries,
	}); err != nil {
		return err
	}
	if c.Admission.MinFreeGB < 0 {
		return errors.New("admission.min_free_gb must be zero or positive")
	}
	if _, _, err := parseClock(c.Retention.FileSweepTime); err != nil {
		return fmt.Errorf("retention.file_sweep_time: %w", err)
	}
	if c.Mirror.RedisDB < 0 {
		return errors.New("mirror.redis_db must be zero or positive")
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return c.validateLogging()
}

func (c *Config) validateYouTube() error {
	if c.YouTube.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("youtube.api_key is required. Set YOUTUBE_API_KEY env var or edit %s (create with 'convify config init')", defaultPath)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
