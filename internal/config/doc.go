// Package config provides centralized configuration management for the dashboard.
// It handles loading configuration from multiple sources, validation, and path
// resolution for the project folders and generated reports.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file (DASH_CONFIG_FILE, config.yaml or configs/config.yaml)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern DASH_<SECTION>_<FIELD>:
//
//	DASH_SERVER_PORT=8080
//	DASH_PROJECTS_ROOT=/srv/construction
//	DASH_REPORTS_DIR=/var/lib/projectdash/reports
//	DASH_LOGGING_LEVEL=debug
//
// CONSTRUCTION_FOLDER_PATH is still accepted for the projects root when
// DASH_PROJECTS_ROOT is not set.
//
// # Usage
//
// Load configuration once at startup and pass it down explicitly:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	paths, err := cfg.ResolvePaths()
package config
