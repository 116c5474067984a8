package config

// Application constants
const (
	AppName    = "projectdash"
	AppTitle   = "Construction Project Management Dashboard"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable read by Load.
	EnvPrefix = "DASH"

	// ConfigFileEnv names an explicit YAML config file.
	ConfigFileEnv = "DASH_CONFIG_FILE"

	// LegacyProjectsRootEnv is honoured when DASH_PROJECTS_ROOT is unset.
	LegacyProjectsRootEnv = "CONSTRUCTION_FOLDER_PATH"

	DefaultProjectsRoot  = "./Construction"
	DefaultHistogramBins = 20
	DefaultReportsSubdir = "projectdash-reports"
)
