package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/kvanryn/pgromcp/internal/secrets"
)

// runConfigure walks through an interactive setup: connection parameters go
// to the config file, credentials go to the OS keyring.
func runConfigure() error {
	fs := flag.NewFlagSet("configure", flag.ExitOnError)
	configPath := fs.String("config", ".pgromcp/config.yaml", "Path to configuration file")
	fs.Parse(os.Args[2:])

	printBanner(os.Stderr, isTTY(os.Stderr.Fd()))
	fmt.Fprintln(os.Stderr, "pgromcp configuration wizard")
	fmt.Fprintln(os.Stderr)

	host := promptDefault("Database host", "localhost")
	port := promptIntDefault("Database port", 5432)
	dbname := promptDefault("Database name", "")
	sslmode := promptDefault("SSL mode (disable/require/verify-full)", "require")
	schema := promptDefault("Schema to expose", "public")
	serverPort := promptIntDefault("HTTP server port", 8000)

	username := promptInput("Database username: ")
	password := promptPassword("Database password: ")

	connString := fmt.Sprintf("postgres://%s@%s:%d/%s?sslmode=%s", username, host, port, dbname, sslmode)
	if password != "" {
		connString = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", username, password, host, port, dbname, sslmode)
	}
	if err := secrets.StoreConnString(connString); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not store credentials in OS keyring: %v\n", err)
		fmt.Fprintf(os.Stderr, "Set %s in the environment instead.\n", secrets.EnvConnString)
	} else {
		fmt.Fprintln(os.Stderr, "Credentials stored in OS keyring.")
	}

	apiKey := promptPassword("API key for inbound calls (empty to disable auth): ")
	if apiKey != "" {
		if err := secrets.StoreAPIKey(apiKey); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not store API key in OS keyring: %v\n", err)
			fmt.Fprintf(os.Stderr, "Set %s in the environment instead.\n", secrets.EnvAPIKey)
		}
	}

	v := viper.New()
	v.Set("connection.host", host)
	v.Set("connection.port", port)
	v.Set("connection.dbname", dbname)
	v.Set("connection.sslmode", sslmode)
	v.Set("schema", schema)
	v.Set("server.port", serverPort)
	v.Set("server.health_check_enabled", true)
	v.Set("server.health_check_path", "/health")
	v.Set("auth.enabled", apiKey != "")
	v.Set("logging.level", "info")
	v.Set("logging.format", "json")

	if err := os.MkdirAll(filepath.Dir(*configPath), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := v.WriteConfigAs(*configPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\nConfiguration written to %s\n", *configPath)
	fmt.Fprintln(os.Stderr, "Run 'pgromcp doctor' to verify, then 'pgromcp serve' to start.")
	return nil
}

func promptDefault(label, def string) string {
	if def != "" {
		fmt.Fprintf(os.Stderr, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(os.Stderr, "%s: ", label)
	}
	var input string
	fmt.Scanln(&input)
	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}

func promptIntDefault(label string, def int) int {
	input := promptDefault(label, strconv.Itoa(def))
	n, err := strconv.Atoi(input)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
