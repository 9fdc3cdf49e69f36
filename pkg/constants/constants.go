// Package constants provides shared constants used throughout the uniqloc codebase.
// This includes timeouts, page sizes, matching defaults, file permissions and other
// values that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to OpenAgenda
	DefaultHTTPTimeout = 30 * time.Second

	// RunTimeout bounds a full reconciliation run (all phases)
	RunTimeout = 2 * time.Hour

	// FlushTimeout bounds the final store flush after a run was aborted
	FlushTimeout = 30 * time.Second

	// ShutdownTimeout is given to the CLI to clean up after an error
	ShutdownTimeout = 5 * time.Second

	// TokenExpiryMargin is subtracted from access token lifetimes
	TokenExpiryMargin = 30 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Matching and paging defaults
const (
	// DefaultGeoDistanceThreshold is the distance in meters under which two mentions are close
	DefaultGeoDistanceThreshold = 100.0

	// DefaultPercentSimilarThreshold is the name similarity percentage from which two names match
	DefaultPercentSimilarThreshold = 70.0

	// DefaultPageSize is the number of events requested per page
	DefaultPageSize = 100

	// MaxPageSize is the largest page OpenAgenda accepts
	MaxPageSize = 300

	// DefaultIDField is the custom event field holding the canonical location id
	DefaultIDField = "uniquelocationid"
)

// OpenAgenda endpoints
const (
	// DefaultPublicURL serves the public events.json listing
	DefaultPublicURL = "https://openagenda.com"

	// DefaultAPIURL serves the authenticated v2 API
	DefaultAPIURL = "https://api.openagenda.com"
)

// Store and report defaults
const (
	// DefaultStoreDriver is used when no store driver is configured
	DefaultStoreDriver = "file"

	// DefaultStorePath is the default location of the YAML index file
	DefaultStorePath = "./uniqloc-index.yaml"

	// DefaultReportDir is where CSV reports are written
	DefaultReportDir = "."

	// ReportFilePrefix starts every CSV report file name
	ReportFilePrefix = "unique-locations-"

	// TimeFormatFilename is the format used in generated report filenames
	TimeFormatFilename = "2006-01-02T15-04"
)
