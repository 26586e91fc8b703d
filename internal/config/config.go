// Package config provides configuration management for hostsync.
package config

import (
	"strings"
	"time"
)

// Config is the root configuration structure for hostsync.
type Config struct {
	Checkmk     CheckmkConfig      `mapstructure:"checkmk" validate:"required"`
	HTTP        HTTPConfig         `mapstructure:"http"`
	Logging     LoggingConfig      `mapstructure:"logging"`
	Connections []ConnectionConfig `mapstructure:"connections" validate:"required,min=1,dive"`
}

// CheckmkConfig describes the Checkmk site the tool reconciles against.
type CheckmkConfig struct {
	Endpoint string        `mapstructure:"endpoint" validate:"required,url"`
	Site     string        `mapstructure:"site" validate:"required"`
	Username string        `mapstructure:"username" validate:"required"`
	Secret   string        `mapstructure:"secret" validate:"required"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// API selects the wire protocol once at configuration time:
	// "rest" for the REST API, "legacy" for the old web API.
	API string `mapstructure:"api" validate:"oneof=rest legacy"`
}

// ConnectionConfig describes one import connection: a source file and
// the rules for reconciling it against the site.
type ConnectionConfig struct {
	ID       string        `mapstructure:"id" validate:"required"`
	Disabled bool          `mapstructure:"disabled"`
	Interval time.Duration `mapstructure:"interval"`
	Path     string        `mapstructure:"path" validate:"required"`
	Format   string        `mapstructure:"format" validate:"omitempty,oneof=csv json bvq xlsx"`

	// Folder is the fixed target folder, or the root segment when
	// LabelPathTemplate is set. Empty means the main folder.
	Folder string `mapstructure:"folder"`

	LowercaseAll   bool `mapstructure:"lowercase_all"`
	SanitizeValues bool `mapstructure:"sanitize_values"`

	HostFilters         []string `mapstructure:"host_filters"`
	HostOvertakeFilters []string `mapstructure:"host_overtake_filters"`

	// ChunkSize bounds how many hosts one mutating API call carries.
	// 0 applies everything unchunked.
	ChunkSize int `mapstructure:"chunk_size" validate:"gte=0"`

	// DisableDiscovery skips the bulk service discovery that normally
	// follows host creation.
	DisableDiscovery bool `mapstructure:"disable_service_discovery"`

	// LabelPathTemplate derives folder paths from labels, e.g.
	// "site/rack" places hosts in <folder>/<site label>/<rack label>.
	LabelPathTemplate string `mapstructure:"label_path_template"`

	CSVDelimiter string `mapstructure:"csv_delimiter"`
	XLSXSheet    string `mapstructure:"xlsx_sheet"`
	LabelPrefix  string `mapstructure:"label_prefix"`

	// SnapshotDir is where the phase-1 snapshot is persisted for
	// phase 2. Empty uses the system temp directory.
	SnapshotDir string `mapstructure:"snapshot_dir"`
}

// Identity returns the ownership marker this connection writes into
// locked_by. It includes the site so connections of different sites
// never collide.
func (c ConnectionConfig) Identity(site string) string {
	return site + "/hostsync/" + c.ID
}

// LabelPathKeys returns the ordered label keys of the path template,
// or nil when folder paths are not label-derived.
func (c ConnectionConfig) LabelPathKeys() []string {
	if c.LabelPathTemplate == "" {
		return nil
	}
	return strings.Split(c.LabelPathTemplate, "/")
}

// LoggingConfig contains configurations for logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// HTTPConfig contains HTTP client configurations including retry settings.
type HTTPConfig struct {
	Retry RetryConfig `mapstructure:"retry"`
}

// RetryConfig defines retry behavior for HTTP requests.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}
