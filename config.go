package pgromcp

// Config is the base configuration used by library mode via New().
type Config struct {
	Pool         PoolConfig         `json:"pool"`
	Query        QueryConfig        `json:"query"`
	Schema       string             `json:"schema"`
	Timezone     string             `json:"timezone"`
	ErrorPrompts []ErrorPromptRule  `json:"error_prompts"`
	Sanitization []SanitizationRule `json:"sanitization"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Connection ConnectionConfig `json:"connection"`
	Server     ServerSettings   `json:"server"`
	Auth       AuthConfig       `json:"auth"`
	Logging    LoggingConfig    `json:"logging"`
}

// ConnectionConfig holds database connection parameters used by CLI mode.
// Credentials (user/password) are resolved separately — from the environment,
// the OS keyring, or an interactive prompt — and are never written to the
// config file.
type ConnectionConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	DBName  string `json:"dbname"`
	SSLMode string `json:"sslmode"`
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MinConns              int    `json:"min_conns"`
	MaxConns              int    `json:"max_conns"`
	AcquireTimeoutSeconds int    `json:"acquire_timeout_seconds"`
	MaxConnLifetime       string `json:"max_conn_lifetime"`
	MaxConnIdleTime       string `json:"max_conn_idle_time"`
	HealthCheckPeriod     string `json:"health_check_period"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	DefaultTimeoutSeconds       int           `json:"default_timeout_seconds"`
	ListTablesTimeoutSeconds    int           `json:"list_tables_timeout_seconds"`
	DescribeTableTimeoutSeconds int           `json:"describe_table_timeout_seconds"`
	MaxSQLLength                int           `json:"max_sql_length"`
	MaxResultLength             int           `json:"max_result_length"`
	TimeoutRules                []TimeoutRule `json:"timeout_rules"`
}

// TimeoutRule maps a SQL pattern to a specific timeout duration.
type TimeoutRule struct {
	Pattern        string `json:"pattern"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ErrorPromptRule maps an error message pattern to a guidance message
// appended to the error text returned to the agent.
type ErrorPromptRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

// SanitizationRule defines a regex-based field sanitization rule applied to
// result values before serialization.
type SanitizationRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
}

// ServerSettings holds HTTP server settings for CLI mode.
type ServerSettings struct {
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
	HealthCheckPingsDB bool   `json:"health_check_pings_db"`
}

// AuthConfig holds API key authentication settings for CLI mode. When no key
// is resolved (config, env, or keyring), authentication is disabled and a
// warning is logged at startup.
type AuthConfig struct {
	Enabled bool `json:"enabled"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stderr, stdout, or file path
}

// Defaults matching the upstream server: pool 1..10 connections with a 60
// second acquire timeout, 30 second query timeout, public schema.
const (
	DefaultMinConns              = 1
	DefaultMaxConns              = 10
	DefaultAcquireTimeoutSeconds = 60
	DefaultQueryTimeoutSeconds   = 30
	DefaultSchema                = "public"
)

// withDefaults returns a copy of c with zero values replaced by defaults.
// Negative values are left alone so New can reject them.
func (c Config) withDefaults() Config {
	if c.Pool.MinConns == 0 {
		c.Pool.MinConns = DefaultMinConns
	}
	if c.Pool.MaxConns == 0 {
		c.Pool.MaxConns = DefaultMaxConns
	}
	if c.Pool.AcquireTimeoutSeconds == 0 {
		c.Pool.AcquireTimeoutSeconds = DefaultAcquireTimeoutSeconds
	}
	if c.Query.DefaultTimeoutSeconds == 0 {
		c.Query.DefaultTimeoutSeconds = DefaultQueryTimeoutSeconds
	}
	if c.Query.ListTablesTimeoutSeconds == 0 {
		c.Query.ListTablesTimeoutSeconds = 10
	}
	if c.Query.DescribeTableTimeoutSeconds == 0 {
		c.Query.DescribeTableTimeoutSeconds = 10
	}
	if c.Query.MaxSQLLength == 0 {
		c.Query.MaxSQLLength = 100000
	}
	if c.Query.MaxResultLength == 0 {
		c.Query.MaxResultLength = 100000
	}
	if c.Schema == "" {
		c.Schema = DefaultSchema
	}
	return c
}
