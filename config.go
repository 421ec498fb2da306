package pggw

// Config is the core gateway configuration. It is built once at startup and
// passed by reference into the Dispatcher and Executor; core logic never
// reads the process environment.
type Config struct {
	// WritesEnabled gates every write-classified tool and the mutating-verb
	// check of the generic query tool. Read on every call, written never.
	WritesEnabled bool               `json:"writes_enabled" yaml:"writes_enabled"`
	Pool          PoolConfig         `json:"pool" yaml:"pool"`
	Query         QueryConfig        `json:"query" yaml:"query"`
	ErrorPrompts  []ErrorPromptRule  `json:"error_prompts" yaml:"error_prompts"`
	Sanitization  []SanitizationRule `json:"sanitization" yaml:"sanitization"`
}

// ServerConfig embeds Config and adds the serving surface: transports,
// authentication, and logging.
type ServerConfig struct {
	Config `yaml:",inline"`

	// DefaultTarget is the connection descriptor used when neither the call
	// nor the session supplies one. Optional.
	DefaultTarget string         `json:"default_target" yaml:"default_target"`
	Server        ServerSettings `json:"server" yaml:"server"`
	Logging       LoggingConfig  `json:"logging" yaml:"logging"`
}

// PoolConfig holds per-call connection pool settings.
type PoolConfig struct {
	MaxConns int `json:"max_conns" yaml:"max_conns"`
	MinConns int `json:"min_conns" yaml:"min_conns"`
}

// QueryConfig holds execution settings for the generic query tool.
type QueryConfig struct {
	DefaultTimeoutSeconds int           `json:"default_timeout_seconds" yaml:"default_timeout_seconds"`
	MaxSQLLength          int           `json:"max_sql_length" yaml:"max_sql_length"`
	MaxResultLength       int           `json:"max_result_length" yaml:"max_result_length"`
	TimeoutRules          []TimeoutRule `json:"timeout_rules" yaml:"timeout_rules"`
}

// TimeoutRule maps a SQL regex pattern to a specific timeout duration.
type TimeoutRule struct {
	Pattern        string `json:"pattern" yaml:"pattern"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// ErrorPromptRule maps a store error pattern to a guidance message appended
// to the error text.
type ErrorPromptRule struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Message string `json:"message" yaml:"message"`
}

// SanitizationRule defines a regex-based result field sanitization rule.
type SanitizationRule struct {
	Pattern     string `json:"pattern" yaml:"pattern"`
	Replacement string `json:"replacement" yaml:"replacement"`
	Description string `json:"description" yaml:"description"`
}

// ServerSettings holds HTTP server settings.
type ServerSettings struct {
	Port int `json:"port" yaml:"port"`

	// APIKey is the shared secret callers must present. When empty the whole
	// surface is unavailable: every request is rejected.
	APIKey string `json:"api_key" yaml:"api_key"`

	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`

	// KeepAliveSeconds is the ping interval for streaming sessions.
	// Defaults to 30.
	KeepAliveSeconds int `json:"keep_alive_seconds" yaml:"keep_alive_seconds"`

	HealthCheckEnabled bool   `json:"health_check_enabled" yaml:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path" yaml:"health_check_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // json, text
	Output string `json:"output" yaml:"output"` // stdout, stderr, or file path
}
