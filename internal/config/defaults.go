package config

const (
	defaultConfigPath              = "~/.config/convify/config.toml"
	defaultOutputDir               = "~/.local/share/convify/downloads"
	defaultLogDir                  = "~/.local/share/convify/logs"
	defaultDataDir                 = "~/.local/share/convify"
	defaultAPIBind                 = "127.0.0.1:8080"
	defaultAdmissionCapacity       = 10
	defaultRefillTokens            = 10
	defaultRefillIntervalSeconds   = 60
	defaultMinFreeGB               = 1
	defaultWorkers                 = 5
	defaultQueueCapacity           = 100
	defaultMaxConcurrent           = 3
	defaultAcquireTimeoutSeconds   = 30
	defaultJobRetentionMinutes     = 60
	defaultJobSweepIntervalMinutes = 60
	defaultFileRetentionHours      = 24
	defaultFileSweepTime           = "02:00"
	defaultYouTubeBaseURL          = "https://www.googleapis.com/youtube/v3"
	defaultCacheTTLHours           = 24
	defaultCacheMaxEntries         = 1000
	defaultYtDlpBinary             = "yt-dlp"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 14
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			DataDir:   defaultDataDir,
			APIBind:   defaultAPIBind,
		},
		Admission: Admission{
			Capacity:              defaultAdmissionCapacity,
			RefillTokens:          defaultRefillTokens,
			RefillIntervalSeconds: defaultRefillIntervalSeconds,
			MinFreeGB:             defaultMinFreeGB,
		},
		Executor: Executor{
			Workers:               defaultWorkers,
			QueueCapacity:         defaultQueueCapacity,
			MaxConcurrent:         defaultMaxConcurrent,
			AcquireTimeoutSeconds: defaultAcquireTimeoutSeconds,
		},
		Retention: Retention{
			JobRetentionMinutes:     defaultJobRetentionMinutes,
			JobSweepIntervalMinutes: defaultJobSweepIntervalMinutes,
			FileRetentionHours:      defaultFileRetentionHours,
			FileSweepTime:           defaultFileSweepTime,
		},
		YouTube: YouTube{
			BaseURL:         defaultYouTubeBaseURL,
			CacheTTLHours:   defaultCacheTTLHours,
			CacheMaxEntries: defaultCacheMaxEntries,
			YtDlpBinary:     defaultYtDlpBinary,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
