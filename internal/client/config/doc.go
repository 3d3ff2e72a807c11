// Package config loads runtime configuration for the offline client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or -config. Files ending in
//     .yaml or .yml are parsed as YAML, anything else as JSON. ${VAR}
//     placeholders are replaced from the environment before parsing.
//  3. DWR_* environment variables.
//  4. Command-line flags, which override everything else.
//
// Supported flags
//
//	-a string   API base URL
//	-d string   database DSN
//	-i int      online status check interval (seconds)
//	-t int      request timeout (seconds)
//	-r int      default rig id
//
// # File schema
//
// Intervals use timex.Duration, so values can be strings like "3s" or
// integer nanoseconds:
//
//	api_base_url: https://tav2.example.com
//	database_dsn: /data/offline.db
//	online_check_interval: 3s
//	checkout_statuses: [draft, pending]
//	archive:
//	  bucket: dwr-archive
//	  passphrase: ${ARCHIVE_PASSPHRASE}
package config
