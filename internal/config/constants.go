package config

// ImageFileExt is the extension of serialized module images.
const ImageFileExt = ".elai"

// ConfigFileNames are the file names FindConfig looks for, in order, in
// each directory.
var ConfigFileNames = []string{"ela.yaml", "ela.yml", "ela.toml"}

// EnvConfig names a config file that overrides the search.
const EnvConfig = "ELA_CONFIG"

// Version is reported by the version command.
// Can be set at build time using: -ldflags "-X github.com/funvibe/ela/internal/config.Version=1.2.0"
var Version = "0.1.0-dev"

// Log levels accepted in the log section.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Defaults applied by setDefaults.
const (
	DefaultLogLevel = LogLevelWarn
	DefaultWorkers  = 4
)
