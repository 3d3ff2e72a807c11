package config

import (
	"os"
	"time"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
)

// Archive configures the S3 archive of change sets discarded by a purge.
type Archive struct {
	Bucket     string
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Passphrase string
}

// Enabled reports whether a bucket is configured.
func (a Archive) Enabled() bool { return a.Bucket != "" }

// Config holds runtime settings for the offline client.
type Config struct {
	APIBaseURL   string
	DatabaseDSN  string
	AccessToken  string
	RefreshToken string
	// DeviceID overrides the generated device identity when set.
	DeviceID     string
	DefaultRigID int64

	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration

	CheckoutStatuses      []models.DWRStatus
	FallbackCheckoutTTL   time.Duration
	MaxRetries            int
	RetryBaseDelay        time.Duration
	PurgeOnPartialFailure bool
	AutoSync              bool

	LogLevel  string
	LogFormat string

	Archive Archive
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8000"
	c.DatabaseDSN = "offline.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 30 * time.Second
	c.CheckoutStatuses = models.DefaultCheckoutStatuses()
	c.FallbackCheckoutTTL = 24 * time.Hour
	c.MaxRetries = models.DefaultMaxRetries
	c.RetryBaseDelay = time.Second
	c.PurgeOnPartialFailure = true
	c.AutoSync = true
	c.LogLevel = "info"
	c.LogFormat = "json"
}

// LoadConfig builds a Config from defaults, the config file, the
// environment and the process command line, in that order.
func LoadConfig() *Config {
	return Load(os.Args[1:], os.Getenv)
}

// Load is LoadConfig over explicit arguments and environment lookup.
// It panics on an unreadable config file or an invalid flag value.
func Load(args []string, getenv func(string) string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg, args, getenv)
	parseEnv(cfg, getenv)
	parseFlags(cfg, args)
	return cfg
}
