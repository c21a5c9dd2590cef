package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-viper/mapstructure/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"golang.org/x/term"

	pgromcp "github.com/kvanryn/pgromcp"
	"github.com/kvanryn/pgromcp/internal/secrets"
)

func runServe() error {
	ctx := context.Background()

	serverConfig, err := loadServerConfig(os.Getenv("PGROMCP_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if serverConfig.Server.Port <= 0 {
		panic("pgromcp: server.port must be > 0")
	}

	logger := setupLogger(serverConfig.Logging)

	// Resolve credentials once at startup: env, then OS keyring, then prompt.
	connString, err := secrets.ConnString()
	if err != nil {
		logger.Warn().Err(err).Msg("keyring unavailable, falling back to prompt")
	}
	if connString == "" {
		username := promptInput("Username: ")
		password := promptPassword("Password: ")
		connString = buildConnString(serverConfig.Connection, username, password)
	}

	apiKey := ""
	if serverConfig.Auth.Enabled {
		apiKey, err = secrets.APIKey()
		if err != nil {
			logger.Warn().Err(err).Msg("keyring unavailable while resolving API key")
		}
		if apiKey == "" {
			logger.Warn().Msg("no API key configured, authentication disabled")
		}
	}

	eng, err := pgromcp.New(ctx, connString, serverConfig.Config, logger)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Close(ctx)

	logger.Info().Msg("testing database connection")
	if err := eng.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("database connection test failed")
		return fmt.Errorf("database connection test failed: %w", err)
	}
	logger.Info().
		Str("resource_base_url", pgromcp.ResourceBaseURL(connString)).
		Msg("database connection test successful")

	hooks := &server.Hooks{}
	hooks.AddAfterInitialize(func(ctx context.Context, id any, req *mcp.InitializeRequest, result *mcp.InitializeResult) {
		logger.Info().
			Str("client_name", req.Params.ClientInfo.Name).
			Str("client_version", req.Params.ClientInfo.Version).
			Msg("AI agent connected (MCP initialize)")
	})

	mcpServer := server.NewMCPServer("pgromcp", version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithHooks(hooks),
	)

	pgromcp.RegisterMCPTools(mcpServer, eng)
	pgromcp.RegisterMCPResources(mcpServer, eng)
	pgromcp.RegisterMathTools(mcpServer, eng)

	addr := fmt.Sprintf(":%d", serverConfig.Server.Port)
	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)

	healthPath := serverConfig.Server.HealthCheckPath
	if serverConfig.Server.HealthCheckEnabled {
		if healthPath == "" {
			panic("pgromcp: health_check_path must be set when health_check_enabled is true")
		}
		router.Get(healthPath, healthHandler(eng, serverConfig.Server.HealthCheckPingsDB))
	}

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	streamableServer := server.NewStreamableHTTPServer(mcpServer,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
		server.WithStreamableHTTPServer(httpSrv),
	)

	// Register the MCP handler manually — Start() does not register when a
	// custom *http.Server is provided. The API key gate covers /mcp only;
	// the health path stays open for the orchestrator.
	router.Group(func(r chi.Router) {
		r.Use(apiKeyMiddleware(apiKey))
		r.Handle("/mcp", streamableServer)
	})

	logger.Info().Int("port", serverConfig.Server.Port).Msg("starting pgromcp server")
	return streamableServer.Start(addr)
}

// healthHandler reports process liveness. With pingDB it additionally checks
// out one pooled connection to prove the database is reachable.
func healthHandler(eng *pgromcp.Engine, pingDB bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if pingDB {
			if err := eng.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unhealthy"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}
}

// loadServerConfig reads .pgromcp/config.yaml (or the file at configPath) and
// applies PGROMCP_* environment overrides. A missing file is not an error —
// defaults apply.
func loadServerConfig(configPath string) (*pgromcp.ServerConfig, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".pgromcp")
	}
	v.SetEnvPrefix("PGROMCP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.health_check_enabled", true)
	v.SetDefault("server.health_check_path", "/health")
	v.SetDefault("auth.enabled", true)
	v.SetDefault("connection.host", "localhost")
	v.SetDefault("connection.port", 5432)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config pgromcp.ServerConfig
	if err := v.Unmarshal(&config, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "json"
		dc.Squash = true
	}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}

func buildConnString(conn pgromcp.ConnectionConfig, username, password string) string {
	parts := []string{}
	if conn.Host != "" {
		parts = append(parts, fmt.Sprintf("host=%s", conn.Host))
	}
	if conn.Port > 0 {
		parts = append(parts, fmt.Sprintf("port=%d", conn.Port))
	}
	if conn.DBName != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", conn.DBName))
	}
	if username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", username))
	}
	if password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", password))
	}
	if conn.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", conn.SSLMode))
	}
	return strings.Join(parts, " ")
}

func setupLogger(config pgromcp.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var output io.Writer = os.Stderr
	if config.Output == "stdout" {
		output = os.Stdout
	} else if config.Output != "" && config.Output != "stderr" {
		f, err := os.OpenFile(config.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			output = f
		}
	}

	if config.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func promptInput(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	var input string
	fmt.Scanln(&input)
	return input
}

func promptPassword(prompt string) string {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after password input
	if err != nil {
		return ""
	}
	return string(password)
}
