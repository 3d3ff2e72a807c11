package config

// Environment variables read by parseEnv.
const (
	EnvAPIURL            = "DWR_API_URL"
	EnvDatabaseDSN       = "DWR_DATABASE_DSN"
	EnvAccessToken       = "DWR_ACCESS_TOKEN"
	EnvRefreshToken      = "DWR_REFRESH_TOKEN"
	EnvDeviceID          = "DWR_DEVICE_ID"
	EnvLogLevel          = "DWR_LOG_LEVEL"
	EnvArchivePassphrase = "DWR_ARCHIVE_PASSPHRASE"
	EnvS3AccessKey       = "DWR_S3_ACCESS_KEY"
	EnvS3SecretKey       = "DWR_S3_SECRET_KEY"
)

// parseEnv overlays cfg with the non-empty DWR_* variables.
func parseEnv(cfg *Config, getenv func(string) string) {
	setString(&cfg.APIBaseURL, getenv(EnvAPIURL))
	setString(&cfg.DatabaseDSN, getenv(EnvDatabaseDSN))
	setString(&cfg.AccessToken, getenv(EnvAccessToken))
	setString(&cfg.RefreshToken, getenv(EnvRefreshToken))
	setString(&cfg.DeviceID, getenv(EnvDeviceID))
	setString(&cfg.LogLevel, getenv(EnvLogLevel))
	setString(&cfg.Archive.Passphrase, getenv(EnvArchivePassphrase))
	setString(&cfg.Archive.AccessKey, getenv(EnvS3AccessKey))
	setString(&cfg.Archive.SecretKey, getenv(EnvS3SecretKey))
}
