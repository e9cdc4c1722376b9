// Package constants provides shared constants used throughout the studiosync codebase.
// This includes timeouts, retry limits, well-known registry endpoints and file
// permissions that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// QueryTimeout is the timeout for GraphQL read queries (registries and host)
	QueryTimeout = 15 * time.Second

	// MutationTimeout is the timeout for host catalog create/update mutations
	MutationTimeout = 60 * time.Second

	// RESTTimeout is the timeout for TPDB REST lookups
	RESTTimeout = 10 * time.Second

	// CommandTimeout is the default timeout for a single-studio CLI run
	CommandTimeout = 10 * time.Minute

	// ShutdownTimeout bounds cleanup after a failed or interrupted run
	ShutdownTimeout = 5 * time.Second
)

// Retry constants
const (
	// MaxRetries is the number of attempts made for one registry or host call
	MaxRetries = 5

	// RetryBackoff is the base backoff; attempt n sleeps RetryBackoff * 2^n
	RetryBackoff = 1 * time.Second

	// RetryMultiplier is the exponential growth factor between attempts
	RetryMultiplier = 2.0

	// MaxRetryBackoff caps a single sleep between attempts
	MaxRetryBackoff = 30 * time.Second
)

// Matching constants
const (
	// DefaultFuzzyThreshold is the minimum score for a fuzzy candidate to be accepted
	DefaultFuzzyThreshold = 85

	// MaxScore is the score of an exact case-insensitive name match
	MaxScore = 100

	// SignificantWordLength is the length a word must exceed to count as significant
	SignificantWordLength = 4
)

// Batch constants
const (
	// ProgressEvery controls how often batch progress is logged at info level
	ProgressEvery = 10

	// DefaultConcurrency processes studios one at a time
	DefaultConcurrency = 1

	// MaxConcurrency bounds the studio worker pool
	MaxConcurrency = 16

	// TPDBSearchLimit is the page size requested from the TPDB sites endpoint
	TPDBSearchLimit = 100
)

// Cache constants
const (
	// CacheTTL is the lifetime of a cached registry search or fetch within one run
	CacheTTL = 30 * time.Minute

	// CacheCleanupInterval is how often expired cache entries are purged
	CacheCleanupInterval = 10 * time.Minute
)

// Well-known registry endpoints. Stash records TPDB refs under its GraphQL
// endpoint even though lookups go through the REST API.
const (
	// StashDBEndpoint is the StashDB stash-box GraphQL endpoint
	StashDBEndpoint = "https://stashdb.org/graphql"

	// TPDBEndpoint is the registry id used for ThePornDB refs
	TPDBEndpoint = "https://theporndb.net/graphql"

	// TPDBRESTURL is the base URL of the ThePornDB REST API
	TPDBRESTURL = "https://api.theporndb.net"

	// TPDBHostMarker identifies a TPDB endpoint among configured stash-boxes
	TPDBHostMarker = "theporndb.net"
)

// Host defaults
const (
	// DefaultStashScheme is the default scheme of the local Stash server
	DefaultStashScheme = "http"

	// DefaultStashHost is the default host of the local Stash server
	DefaultStashHost = "localhost"

	// DefaultStashPort is the default port of the local Stash server
	DefaultStashPort = 9999
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644

	// SecureFilePermissions is for files holding API keys (rw-------)
	SecureFilePermissions = 0600
)

// Path constants
const (
	// DefaultConfigName is the config file name searched in $HOME and the working directory
	DefaultConfigName = ".studiosync"

	// DefaultLockFile is the lock file guarding against concurrent runs
	DefaultLockFile = "studiosync.lock"

	// EnvPrefix prefixes environment variables read by viper
	EnvPrefix = "STUDIOSYNC"
)

// DryRunIDPrefix prefixes placeholder ids handed out in dry-run mode.
const DryRunIDPrefix = "dry-run-"
