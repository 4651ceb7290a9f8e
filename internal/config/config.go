// Package config manages the omads daemon configuration using koanf/v2.
//
// Supports YAML files, environment variables, and CLI flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete omads daemon configuration.
type Config struct {
	GRPC     GRPCConfig      `koanf:"grpc"`
	Metrics  MetricsConfig   `koanf:"metrics"`
	Log      LogConfig       `koanf:"log"`
	Sync     SyncConfig      `koanf:"sync"`
	Sessions []SessionConfig `koanf:"sessions"`
}

// GRPCConfig holds the ConnectRPC admin/control-plane server configuration.
type GRPCConfig struct {
	// Addr is the listen address (e.g., ":50051").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// SyncConfig holds the daemon-wide sync engine defaults (spec §6 "Session
// config"). Per-session entries may override any of these.
type SyncConfig struct {
	// ListenAddr is the HTTP listen address for the SyncML sync endpoint
	// itself (e.g., ":8080"), distinct from GRPCConfig.Addr's admin plane.
	ListenAddr string `koanf:"listen_addr"`

	// ProtocolVersion is the SyncML VerDTD to advertise (e.g. "1.2").
	ProtocolVersion string `koanf:"protocol_version"`

	// MaxMsgSize bounds a single outbound message, including headers
	// (spec §4.6 "MaxMsgSize").
	MaxMsgSize int64 `koanf:"max_msg_size"`

	// ChangeLogPath is the bbolt database file backing the ChangeLog
	// store (spec §4.4).
	ChangeLogPath string `koanf:"changelog_path"`

	// ConflictPolicy is the default conflict resolution policy:
	// "prefer_local" or "prefer_remote" (spec §4.3).
	ConflictPolicy string `koanf:"conflict_policy"`

	// AuthScheme is the default minimum auth scheme this daemon accepts:
	// "none", "basic", or "md5" (spec §4.5).
	AuthScheme string `koanf:"auth_scheme"`
}

// SessionConfig describes one declarative sync profile from the
// configuration file. Each entry maps a local datastore to a remote URI
// and the sync type used to seed that target (spec §3 SyncTarget).
type SessionConfig struct {
	// RemoteDevice identifies the peer this profile applies to
	// (changelog.Key.RemoteDevice).
	RemoteDevice string `koanf:"remote_device"`

	// LocalURI is the local datastore this profile serves (e.g. "./contacts").
	LocalURI string `koanf:"local_uri"`

	// RemoteURI is the peer-side datastore URI (e.g. "./card").
	RemoteURI string `koanf:"remote_uri"`

	// SyncType is the initial sync type: "fast", "slow", or "refresh".
	SyncType string `koanf:"sync_type"`

	// ConflictPolicy overrides SyncConfig.ConflictPolicy for this profile,
	// if non-empty.
	ConflictPolicy string `koanf:"conflict_policy"`

	// Username and Password are the credentials this daemon expects from
	// RemoteDevice when SyncConfig.AuthScheme is not "none" (spec §4.5
	// "Session config": auth_type, username, password).
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// SessionKey returns a unique identifier for the profile based on
// (remote device, local URI). Used for diffing profiles on reload.
func (sc SessionConfig) SessionKey() string {
	return sc.RemoteDevice + "|" + sc.LocalURI
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		GRPC: GRPCConfig{
			Addr: ":50051",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Sync: SyncConfig{
			ListenAddr:      ":8080",
			ProtocolVersion: "1.2",
			MaxMsgSize:      64 * 1024,
			ChangeLogPath:   "omads.db",
			ConflictPolicy:  "prefer_local",
			AuthScheme:      "none",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for omads configuration.
// Variables are named OMADS_<section>_<key>, e.g., OMADS_GRPC_ADDR.
const envPrefix = "OMADS_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (OMADS_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	OMADS_GRPC_ADDR           -> grpc.addr
//	OMADS_METRICS_ADDR        -> metrics.addr
//	OMADS_METRICS_PATH        -> metrics.path
//	OMADS_LOG_LEVEL           -> log.level
//	OMADS_LOG_FORMAT          -> log.format
//	OMADS_SYNC_PROTOCOL_VERSION -> sync.protocol_version
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults first.
	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	// Load YAML file on top of defaults.
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	// Load environment variable overrides on top of YAML.
	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms OMADS_SYNC_MAX_MSG_SIZE -> sync.max_msg_size.
// Strips the OMADS_ prefix, lowercases, and replaces the first _ (the
// section separator) with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.Replace(s, "_", ".", 1)
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"grpc.addr":                   defaults.GRPC.Addr,
		"metrics.addr":                defaults.Metrics.Addr,
		"metrics.path":                defaults.Metrics.Path,
		"log.level":                   defaults.Log.Level,
		"log.format":                  defaults.Log.Format,
		"sync.listen_addr":            defaults.Sync.ListenAddr,
		"sync.protocol_version":       defaults.Sync.ProtocolVersion,
		"sync.max_msg_size":           defaults.Sync.MaxMsgSize,
		"sync.changelog_path":         defaults.Sync.ChangeLogPath,
		"sync.conflict_policy":        defaults.Sync.ConflictPolicy,
		"sync.auth_scheme":            defaults.Sync.AuthScheme,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyGRPCAddr indicates the admin server listen address is empty.
	ErrEmptyGRPCAddr = errors.New("grpc.addr must not be empty")

	// ErrEmptyListenAddr indicates the sync endpoint listen address is empty.
	ErrEmptyListenAddr = errors.New("sync.listen_addr must not be empty")

	// ErrInvalidMaxMsgSize indicates sync.max_msg_size is non-positive.
	ErrInvalidMaxMsgSize = errors.New("sync.max_msg_size must be > 0")

	// ErrInvalidProtocolVersion indicates sync.protocol_version is unrecognized.
	ErrInvalidProtocolVersion = errors.New("sync.protocol_version must be 1.1 or 1.2")

	// ErrInvalidConflictPolicy indicates a conflict_policy string is unrecognized.
	ErrInvalidConflictPolicy = errors.New("conflict_policy must be prefer_local or prefer_remote")

	// ErrInvalidAuthScheme indicates auth_scheme is unrecognized.
	ErrInvalidAuthScheme = errors.New("auth_scheme must be none, basic, or md5")

	// ErrInvalidSyncType indicates a session has an unrecognized sync_type.
	ErrInvalidSyncType = errors.New("session sync_type must be fast, slow, or refresh")

	// ErrMissingLocalURI indicates a session entry has no local_uri.
	ErrMissingLocalURI = errors.New("session local_uri must not be empty")

	// ErrDuplicateSessionKey indicates two sessions share the same
	// (remote device, local URI) key.
	ErrDuplicateSessionKey = errors.New("duplicate session key")
)

// ValidProtocolVersions lists the recognized SyncML protocol versions.
var ValidProtocolVersions = map[string]bool{"1.1": true, "1.2": true}

// ValidConflictPolicies lists the recognized conflict policy strings.
var ValidConflictPolicies = map[string]bool{"prefer_local": true, "prefer_remote": true}

// ValidAuthSchemes lists the recognized auth scheme strings.
var ValidAuthSchemes = map[string]bool{"none": true, "basic": true, "md5": true}

// ValidSyncTypes lists the recognized session sync_type strings.
var ValidSyncTypes = map[string]bool{"fast": true, "slow": true, "refresh": true}

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.GRPC.Addr == "" {
		return ErrEmptyGRPCAddr
	}

	if cfg.Sync.ListenAddr == "" {
		return ErrEmptyListenAddr
	}

	if cfg.Sync.MaxMsgSize <= 0 {
		return ErrInvalidMaxMsgSize
	}

	if !ValidProtocolVersions[cfg.Sync.ProtocolVersion] {
		return ErrInvalidProtocolVersion
	}

	if cfg.Sync.ConflictPolicy != "" && !ValidConflictPolicies[cfg.Sync.ConflictPolicy] {
		return ErrInvalidConflictPolicy
	}

	if cfg.Sync.AuthScheme != "" && !ValidAuthSchemes[cfg.Sync.AuthScheme] {
		return ErrInvalidAuthScheme
	}

	if err := validateSessions(cfg.Sessions); err != nil {
		return err
	}

	return nil
}

// validateSessions checks each declarative session entry for correctness.
func validateSessions(sessions []SessionConfig) error {
	seen := make(map[string]struct{}, len(sessions))

	for i, sc := range sessions {
		if sc.LocalURI == "" {
			return fmt.Errorf("sessions[%d]: %w", i, ErrMissingLocalURI)
		}

		if sc.SyncType != "" && !ValidSyncTypes[sc.SyncType] {
			return fmt.Errorf("sessions[%d] sync_type %q: %w", i, sc.SyncType, ErrInvalidSyncType)
		}

		if sc.ConflictPolicy != "" && !ValidConflictPolicies[sc.ConflictPolicy] {
			return fmt.Errorf("sessions[%d]: %w", i, ErrInvalidConflictPolicy)
		}

		key := sc.SessionKey()
		if _, dup := seen[key]; dup {
			return fmt.Errorf("sessions[%d] key %q: %w", i, key, ErrDuplicateSessionKey)
		}
		seen[key] = struct{}{}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
