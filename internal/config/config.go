package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// AdminDigestHex is the SHA-256 hex digest of the operator elevation
	// credential. Empty means elevation is disabled: every attempt is
	// rejected (fail closed). Generate with:
	//   echo -n "<your-token>" | sha256sum
	AdminDigestHex string `json:"admin_digest_hex,omitempty"`

	// SessionTTLSeconds is the privileged-session window. 0 means the
	// built-in default of one hour. Use a shorter window in
	// high-sensitivity deployments.
	SessionTTLSeconds int `json:"session_ttl_seconds,omitempty"`

	// ProjectContext is an optional free-text line included in composed
	// prompt headers.
	ProjectContext string `json:"project_context,omitempty"`

	// CompanionPhrases replaces the built-in companion activation phrase
	// list when non-empty.
	CompanionPhrases []string `json:"companion_phrases,omitempty"`

	// TaskIndicators replaces the built-in task-indicator token list when
	// non-empty.
	TaskIndicators []string `json:"task_indicators,omitempty"`

	// ExtraBannedPatterns are appended to the built-in hard-blocked
	// content list. The built-ins cannot be removed.
	ExtraBannedPatterns []string `json:"extra_banned_patterns,omitempty"`

	// ExtraTonePatterns are appended to the built-in tone-violation list.
	ExtraTonePatterns []string `json:"extra_tone_patterns,omitempty"`

	// ExtraCapabilities grants additional capability names per mode
	// ("default", "companion", "privileged"). Validated at startup; a
	// grant that breaks the mode invariants aborts startup.
	ExtraCapabilities map[string][]string `json:"extra_capabilities,omitempty"`

	// DisabledCapabilities removes capability names per mode. A removal
	// that empties a mode's list aborts startup.
	DisabledCapabilities map[string][]string `json:"disabled_capabilities,omitempty"`

	// PromptSections overrides the built-in prompt layer text by layer
	// name ("baseline", "companion-additive", "privileged").
	PromptSections map[string]string `json:"prompt_sections,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from
	// registration. Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database
	// connections. If set to 1, all database access is serialized.
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database
	// connections. 0 means use sql.DB default.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SessionTTLSeconds: int(time.Hour / time.Second),
	}
}

// SessionTTL returns the configured session window as a duration.
func (c *Config) SessionTTL() time.Duration {
	if c.SessionTTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of
// ~/.arbiter.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and
// deduplicated, except the phrase lists which are whole-list replacements
// (an operator tuning mode detection wants full control of the list).
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.AdminDigestHex = overlay.AdminDigestHex
	if result.AdminDigestHex == "" {
		result.AdminDigestHex = base.AdminDigestHex
	}

	result.SessionTTLSeconds = overlay.SessionTTLSeconds
	if result.SessionTTLSeconds == 0 {
		result.SessionTTLSeconds = base.SessionTTLSeconds
	}

	result.ProjectContext = overlay.ProjectContext
	if result.ProjectContext == "" {
		result.ProjectContext = base.ProjectContext
	}

	// Whole-list replacement
	result.CompanionPhrases = overlay.CompanionPhrases
	if len(result.CompanionPhrases) == 0 {
		result.CompanionPhrases = base.CompanionPhrases
	}
	result.TaskIndicators = overlay.TaskIndicators
	if len(result.TaskIndicators) == 0 {
		result.TaskIndicators = base.TaskIndicators
	}

	// Arrays: merge and deduplicate
	result.ExtraBannedPatterns = mergeStringSlice(base.ExtraBannedPatterns, overlay.ExtraBannedPatterns)
	result.ExtraTonePatterns = mergeStringSlice(base.ExtraTonePatterns, overlay.ExtraTonePatterns)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	result.ExtraCapabilities = mergeStringMap(base.ExtraCapabilities, overlay.ExtraCapabilities)
	result.DisabledCapabilities = mergeStringMap(base.DisabledCapabilities, overlay.DisabledCapabilities)

	result.PromptSections = map[string]string{}
	for k, v := range base.PromptSections {
		result.PromptSections[k] = v
	}
	for k, v := range overlay.PromptSections {
		result.PromptSections[k] = v
	}
	if len(result.PromptSections) == 0 {
		result.PromptSections = nil
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes
// duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// mergeStringMap merges per-mode capability lists key by key.
func mergeStringMap(a, b map[string][]string) map[string][]string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	result := make(map[string][]string)
	for k, v := range a {
		result[k] = mergeStringSlice(v, nil)
	}
	for k, v := range b {
		result[k] = mergeStringSlice(result[k], v)
	}
	return result
}
