// Package config loads crmkit configuration from YAML files, .env files and
// the process environment.
//
// Files are resolved from standard locations (cmd/<service>/config.yml,
// config/config.yml, ./config.yml) unless passed explicitly. Environment
// variables with the configured prefix override file values, using
// underscores for nesting:
//
//	CRMCTL_CRM_BASE_URL=https://api.example.com  ->  crm.base_url
//
// After unmarshalling, LoadConfig calls ApplyDefaults and Validate on the
// target when it implements them.
//
// # Usage
//
//	var cfg Config
//	err := config.LoadConfig("crmctl", &cfg, config.WithConfigFile(path))
package config
