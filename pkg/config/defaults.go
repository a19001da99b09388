package config

import "time"

// Resolver defaults.
const (
	DefaultResolverStrict        = true
	DefaultResolverCacheSize     = 256
	DefaultResolverUsePythonPath = true
)

// Bundle defaults.
const (
	DefaultBundleDropMainGuards = true
	DefaultBundleAllowCycles    = false
)

// Strip defaults.
const (
	DefaultStripAllParameters = false
	DefaultStripJobs          = 4
)

// DefaultStripModules are the annotation-only modules removed by strip.
var DefaultStripModules = []string{"typing"}

// Logging defaults.
const (
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "text"
)

// DefaultWatchDebounce is the quiet period before a watched bundle is rebuilt.
const DefaultWatchDebounce = 300 * time.Millisecond
