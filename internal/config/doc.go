// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Secrets may also come straight from the environment (REALTIME_TOKEN,
// REALTIME_CHANNEL, REALTIME_DATABASE_PASSWORD), which override the file.
package config
