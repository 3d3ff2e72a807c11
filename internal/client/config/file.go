package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/client/models"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/flagx"
	"github.com/EvolveDigitalDesign/TAV2-Mobile/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is a DTO used exclusively for config file decoding. Absent
// fields leave the current value untouched.
type FileConfig struct {
	APIBaseURL            string             `json:"api_base_url" yaml:"api_base_url"`
	DatabaseDSN           string             `json:"database_dsn" yaml:"database_dsn"`
	AccessToken           string             `json:"access_token" yaml:"access_token"`
	RefreshToken          string             `json:"refresh_token" yaml:"refresh_token"`
	DeviceID              string             `json:"device_id" yaml:"device_id"`
	DefaultRigID          int64              `json:"default_rig_id" yaml:"default_rig_id"`
	OnlineCheckInterval   timex.Duration     `json:"online_check_interval" yaml:"online_check_interval"`
	RequestTimeout        timex.Duration     `json:"request_timeout" yaml:"request_timeout"`
	CheckoutStatuses      []models.DWRStatus `json:"checkout_statuses" yaml:"checkout_statuses"`
	FallbackCheckoutTTL   timex.Duration     `json:"fallback_checkout_ttl" yaml:"fallback_checkout_ttl"`
	MaxRetries            int                `json:"max_retries" yaml:"max_retries"`
	RetryBaseDelay        timex.Duration     `json:"retry_base_delay" yaml:"retry_base_delay"`
	PurgeOnPartialFailure *bool              `json:"purge_on_partial_failure" yaml:"purge_on_partial_failure"`
	AutoSync              *bool              `json:"auto_sync" yaml:"auto_sync"`
	LogLevel              string             `json:"log_level" yaml:"log_level"`
	LogFormat             string             `json:"log_format" yaml:"log_format"`
	Archive               FileArchive        `json:"archive" yaml:"archive"`
}

type FileArchive struct {
	Bucket     string `json:"bucket" yaml:"bucket"`
	Region     string `json:"region" yaml:"region"`
	Endpoint   string `json:"endpoint" yaml:"endpoint"`
	AccessKey  string `json:"access_key" yaml:"access_key"`
	SecretKey  string `json:"secret_key" yaml:"secret_key"`
	Passphrase string `json:"passphrase" yaml:"passphrase"`
}

// parseFile overlays cfg with the file named by -c/-config, if any.
func parseFile(cfg *Config, args []string, getenv func(string) string) {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	fc, err := decodeFile(path, data, getenv)
	if err != nil {
		panic(err)
	}
	fc.apply(cfg)
}

func decodeFile(path string, data []byte, getenv func(string) string) (*FileConfig, error) {
	content := os.Expand(string(data), getenv)

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(content), &fc); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal([]byte(content), &fc); err != nil {
			return nil, err
		}
	}
	return &fc, nil
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.APIBaseURL, fc.APIBaseURL)
	setString(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setString(&cfg.AccessToken, fc.AccessToken)
	setString(&cfg.RefreshToken, fc.RefreshToken)
	setString(&cfg.DeviceID, fc.DeviceID)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)

	if fc.DefaultRigID != 0 {
		cfg.DefaultRigID = fc.DefaultRigID
	}
	if fc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = fc.OnlineCheckInterval.Duration
	}
	if fc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if len(fc.CheckoutStatuses) > 0 {
		cfg.CheckoutStatuses = fc.CheckoutStatuses
	}
	if fc.FallbackCheckoutTTL.Duration != 0 {
		cfg.FallbackCheckoutTTL = fc.FallbackCheckoutTTL.Duration
	}
	if fc.MaxRetries != 0 {
		cfg.MaxRetries = fc.MaxRetries
	}
	if fc.RetryBaseDelay.Duration != 0 {
		cfg.RetryBaseDelay = fc.RetryBaseDelay.Duration
	}
	if fc.PurgeOnPartialFailure != nil {
		cfg.PurgeOnPartialFailure = *fc.PurgeOnPartialFailure
	}
	if fc.AutoSync != nil {
		cfg.AutoSync = *fc.AutoSync
	}

	setString(&cfg.Archive.Bucket, fc.Archive.Bucket)
	setString(&cfg.Archive.Region, fc.Archive.Region)
	setString(&cfg.Archive.Endpoint, fc.Archive.Endpoint)
	setString(&cfg.Archive.AccessKey, fc.Archive.AccessKey)
	setString(&cfg.Archive.SecretKey, fc.Archive.SecretKey)
	setString(&cfg.Archive.Passphrase, fc.Archive.Passphrase)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
